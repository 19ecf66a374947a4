// Package loader implements the per-file source transform pipeline.
//
// A Pipeline holds an ordered list of rules. Each rule pairs a path matcher
// with a list of loaders. For a given file, the loaders of every matching
// rule are concatenated in declaration order and then applied right to
// left: the last loader receives the raw source first, and each earlier
// loader post-processes the output of the one after it.
package loader

import (
	"context"
	"fmt"
	"path/filepath"
)

// Loader transforms source text.
type Loader interface {
	// Name identifies the loader in errors and logs.
	Name() string

	// Load returns the transformed source.
	Load(ctx context.Context, source string) (string, error)
}

// Func adapts a plain function to the Loader interface.
type Func struct {
	name string
	fn   func(source string) (string, error)
}

// FromFunc returns a loader named name that calls fn.
func FromFunc(name string, fn func(source string) (string, error)) Func {
	return Func{name: name, fn: fn}
}

// Name implements Loader.
func (f Func) Name() string {
	return f.name
}

// Load implements Loader.
func (f Func) Load(_ context.Context, source string) (string, error) {
	return f.fn(source)
}

// Matcher selects files by path. *regexp.Regexp satisfies it.
type Matcher interface {
	MatchString(s string) bool
}

// Rule applies Use to every file whose slash-separated path matches Test.
type Rule struct {
	Test Matcher
	Use  []Loader
}

// Error reports a loader failure.
type Error struct {
	Loader string
	Path   string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("loader %s failed on %s: %v", e.Loader, e.Path, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Pipeline is an ordered set of rules.
type Pipeline struct {
	rules []Rule
}

// NewPipeline returns a pipeline over rules, in declaration order.
func NewPipeline(rules ...Rule) *Pipeline {
	return &Pipeline{rules: append([]Rule(nil), rules...)}
}

// Loaders returns the combined loader list for path, in declaration order.
func (p *Pipeline) Loaders(path string) []Loader {
	if p == nil {
		return nil
	}
	slashed := filepath.ToSlash(path)

	var loaders []Loader
	for _, rule := range p.rules {
		if rule.Test != nil && rule.Test.MatchString(slashed) {
			loaders = append(loaders, rule.Use...)
		}
	}
	return loaders
}

// Transform folds source through the loaders selected for path, right to left.
// The first failing loader aborts the transform.
func (p *Pipeline) Transform(ctx context.Context, path, source string) (string, error) {
	loaders := p.Loaders(path)
	for i := len(loaders) - 1; i >= 0; i-- {
		out, err := loaders[i].Load(ctx, source)
		if err != nil {
			return "", &Error{Loader: loaders[i].Name(), Path: path, Err: err}
		}
		source = out
	}
	return source, nil
}
