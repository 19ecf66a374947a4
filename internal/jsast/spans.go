package jsast

import (
	"io"

	"github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/js"
)

// span is a byte range [start, end) of the source text.
type span struct {
	start, end int
}

// Lexer states while scanning for require("...") sequences.
const (
	scanIdle = iota
	scanCallee
	scanOpen
	scanLiteral
)

// locateLiterals finds the text span of each call's argument literal by
// re-lexing src. It returns nil unless the lexer finds exactly the calls the
// parser found, with identical literal text, in the same order.
func locateLiterals(src string, calls []*Call) []span {
	if len(calls) == 0 {
		return []span{}
	}

	l := js.NewLexer(parse.NewInputString(src))
	var (
		spans   []span
		raws    []string
		pending span
		state   = scanIdle
		prev    = js.ErrorToken
		offset  = 0
	)
	for {
		tt, data := l.Next()
		if tt == js.ErrorToken {
			if l.Err() != io.EOF {
				return nil
			}
			break
		}
		if (tt == js.DivToken || tt == js.DivEqToken) && !divisionAllowed(prev) {
			// The slash starts a regular expression; RegExp re-reads it.
			tt, data = l.RegExp()
			if tt == js.ErrorToken {
				return nil
			}
		}

		start := offset
		offset += len(data)

		switch tt {
		case js.WhitespaceToken, js.LineTerminatorToken, js.CommentToken, js.CommentLineTerminatorToken:
			continue
		}

		switch {
		case state == scanLiteral && (tt == js.CloseParenToken || tt == js.CommaToken):
			spans = append(spans, pending)
			raws = append(raws, src[pending.start:pending.end])
			state = scanIdle
		case state == scanOpen && tt == js.StringToken:
			pending = span{start: start, end: offset}
			state = scanLiteral
		case state == scanCallee && tt == js.OpenParenToken:
			state = scanOpen
		case state == scanCallee && tt == js.OptChainToken:
		case tt == js.IdentifierToken && string(data) == RequireCallee && prev != js.DotToken && prev != js.OptChainToken:
			state = scanCallee
		default:
			state = scanIdle
		}
		prev = tt
	}

	if len(spans) != len(calls) {
		return nil
	}
	for i, call := range calls {
		if raws[i] != call.raw {
			return nil
		}
	}
	return spans
}

// divisionAllowed reports whether a slash following a token of type prev is
// a division operator rather than the start of a regular expression.
func divisionAllowed(prev js.TokenType) bool {
	switch prev {
	case js.CloseParenToken, js.CloseBracketToken, js.CloseBraceToken,
		js.StringToken, js.TemplateToken, js.TemplateEndToken, js.RegExpToken,
		js.PrivateIdentifierToken, js.ThisToken, js.SuperToken,
		js.TrueToken, js.FalseToken, js.NullToken,
		js.IncrToken, js.DecrToken:
		return true
	}
	return js.IsNumeric(prev) || js.IsIdentifier(prev)
}
