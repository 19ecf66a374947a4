package packconfig

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"time"

	"go.starlark.net/starlark"
	"go.uber.org/zap"

	"github.com/albertocavalcante/skypack/internal/compiler"
	"github.com/albertocavalcante/skypack/internal/graph"
	"github.com/albertocavalcante/skypack/internal/plugins"
)

// DefaultStarlarkTimeout bounds the execution of a config file and of each
// scripted loader or hook call.
const DefaultStarlarkTimeout = 5 * time.Second

// ErrConfigureNotFound is returned when skypack.star doesn't define configure().
var ErrConfigureNotFound = errors.New("skypack.star must define a configure() function")

// ErrConfigureReturnType is returned when configure() doesn't return a dict.
var ErrConfigureReturnType = errors.New("configure() must return a dict")

// LoadStarlarkConfig loads a configuration from a Starlark file.
// The file must define a configure() function that returns a dict.
// The execution is sandboxed: no filesystem or network access, with a timeout.
func LoadStarlarkConfig(path string, timeout time.Duration) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	thread := &starlark.Thread{Name: path}
	stop := cancelOnDone(ctx, thread)
	defer stop()

	globals, err := starlark.ExecFile(thread, path, data, configPredeclared())
	if err != nil {
		return nil, fmt.Errorf("executing config %s: %w", path, err)
	}

	configureFn, ok := globals["configure"]
	if !ok {
		return nil, fmt.Errorf("%s: %w", path, ErrConfigureNotFound)
	}
	fn, ok := configureFn.(*starlark.Function)
	if !ok {
		return nil, fmt.Errorf("%s: configure must be a function, got %s", path, configureFn.Type())
	}

	result, err := starlark.Call(thread, fn, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: calling configure(): %w", path, err)
	}
	dict, ok := result.(*starlark.Dict)
	if !ok {
		return nil, fmt.Errorf("%s: %w, got %s", path, ErrConfigureReturnType, result.Type())
	}
	dict.Freeze()

	cfg, err := dictToConfig(dict)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// cancelOnDone cancels thread when ctx is done. The returned function
// releases the watcher.
func cancelOnDone(ctx context.Context, thread *starlark.Thread) func() {
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			thread.Cancel("execution timeout")
		case <-done:
		}
	}()
	return func() { close(done) }
}

// configPredeclared returns the predeclared values for config files.
func configPredeclared() starlark.StringDict {
	return starlark.StringDict{
		"getenv":    starlark.NewBuiltin("getenv", builtinGetenv),
		"host_os":   starlark.String(runtime.GOOS),
		"host_arch": starlark.String(runtime.GOARCH),
		"plugin":    starlark.NewBuiltin("plugin", builtinPlugin),
	}
}

// builtinGetenv implements getenv(name, default="") -> string.
func builtinGetenv(_ *starlark.Thread, _ *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var name string
	var defaultVal starlark.String
	if err := starlark.UnpackArgs("getenv", args, kwargs, "name", &name, "default?", &defaultVal); err != nil {
		return nil, err
	}

	val := os.Getenv(name)
	if val == "" {
		return defaultVal, nil
	}
	return starlark.String(val), nil
}

// pluginValue is the Starlark value returned by plugin().
type pluginValue struct {
	name string
	run  starlark.Callable
	done starlark.Callable
}

var _ starlark.Value = (*pluginValue)(nil)

func (p *pluginValue) String() string        { return fmt.Sprintf("plugin(%q)", p.name) }
func (p *pluginValue) Type() string          { return "plugin" }
func (p *pluginValue) Truth() starlark.Bool  { return starlark.True }
func (p *pluginValue) Hash() (uint32, error) { return starlark.String(p.name).Hash() }
func (p *pluginValue) Freeze() {
	if p.run != nil {
		p.run.Freeze()
	}
	if p.done != nil {
		p.done.Freeze()
	}
}

// builtinPlugin implements plugin(name, run=None, done=None).
func builtinPlugin(_ *starlark.Thread, _ *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var name string
	var run, done starlark.Value = starlark.None, starlark.None
	if err := starlark.UnpackArgs("plugin", args, kwargs, "name", &name, "run?", &run, "done?", &done); err != nil {
		return nil, err
	}
	if err := plugins.ValidateName(name); err != nil {
		return nil, err
	}

	p := &pluginValue{name: name}
	var err error
	if p.run, err = optionalCallable("run", run); err != nil {
		return nil, err
	}
	if p.done, err = optionalCallable("done", done); err != nil {
		return nil, err
	}
	if p.run == nil && p.done == nil {
		return nil, fmt.Errorf("plugin %q: at least one of run or done is required", name)
	}
	return p, nil
}

func optionalCallable(what string, v starlark.Value) (starlark.Callable, error) {
	if v == starlark.None {
		return nil, nil
	}
	fn, ok := v.(starlark.Callable)
	if !ok {
		return nil, fmt.Errorf("%s must be callable, got %s", what, v.Type())
	}
	return fn, nil
}

// dictToConfig converts the dict returned by configure() to a Config.
func dictToConfig(d *starlark.Dict) (*Config, error) {
	cfg := &Config{}

	for _, item := range d.Items() {
		key, ok := starlark.AsString(item[0])
		if !ok {
			return nil, fmt.Errorf("config keys must be strings, got %s", item[0].Type())
		}
		v := item[1]

		var err error
		switch key {
		case "context":
			cfg.Context, err = asString(key, v)
		case "entry":
			cfg.Entry, err = parseEntry(v)
		case "output":
			err = parseOutput(v, &cfg.Output)
		case "module":
			err = parseModule(v, &cfg.Module)
		case "resolve":
			err = parseResolve(v, &cfg.Resolve)
		case "plugins":
			cfg.Plugins, err = parsePlugins(v)
		default:
			err = fmt.Errorf("unknown config key %q", key)
		}
		if err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// parseEntry accepts a path string or a name to path dict. Dicts keep
// insertion order.
func parseEntry(v starlark.Value) (Entries, error) {
	if s, ok := starlark.AsString(v); ok {
		return compiler.SingleEntry(s), nil
	}
	d, ok := v.(*starlark.Dict)
	if !ok {
		return nil, fmt.Errorf("entry must be a string or a dict, got %s", v.Type())
	}

	entries := make(Entries, 0, d.Len())
	for _, item := range d.Items() {
		name, ok := starlark.AsString(item[0])
		if !ok {
			return nil, fmt.Errorf("entry names must be strings, got %s", item[0].Type())
		}
		path, err := asString("entry["+name+"]", item[1])
		if err != nil {
			return nil, err
		}
		entries = append(entries, graph.EntryPoint{Name: name, Path: path})
	}
	return entries, nil
}

func parseOutput(v starlark.Value, cfg *OutputConfig) error {
	d, err := asDict("output", v)
	if err != nil {
		return err
	}
	return eachKey("output", d, func(key string, v starlark.Value) (err error) {
		switch key {
		case "path":
			cfg.Path, err = asString("output.path", v)
		case "filename":
			cfg.Filename, err = asString("output.filename", v)
		default:
			err = fmt.Errorf("unknown key output.%s", key)
		}
		return err
	})
}

func parseModule(v starlark.Value, cfg *ModuleConfig) error {
	d, err := asDict("module", v)
	if err != nil {
		return err
	}
	return eachKey("module", d, func(key string, v starlark.Value) error {
		if key != "rules" {
			return fmt.Errorf("unknown key module.%s", key)
		}
		list, ok := v.(*starlark.List)
		if !ok {
			return fmt.Errorf("module.rules must be a list, got %s", v.Type())
		}
		for i := 0; i < list.Len(); i++ {
			rule, err := parseRule(i, list.Index(i))
			if err != nil {
				return err
			}
			cfg.Rules = append(cfg.Rules, rule)
		}
		return nil
	})
}

func parseRule(i int, v starlark.Value) (Rule, error) {
	field := fmt.Sprintf("module.rules[%d]", i)
	var rule Rule

	d, err := asDict(field, v)
	if err != nil {
		return rule, err
	}
	err = eachKey(field, d, func(key string, v starlark.Value) (err error) {
		switch key {
		case "test":
			rule.Test, err = asString(field+".test", v)
		case "use":
			rule.Use, err = parseUse(field+".use", v)
		default:
			err = fmt.Errorf("unknown key %s.%s", field, key)
		}
		return err
	})
	return rule, err
}

// parseUse accepts a loader, or a list of loaders. A loader is a named
// loader spec or a callable taking and returning the source.
func parseUse(field string, v starlark.Value) (Loaders, error) {
	list, ok := v.(*starlark.List)
	if !ok {
		ref, err := parseLoader(field, v)
		if err != nil {
			return nil, err
		}
		return Loaders{ref}, nil
	}

	use := make(Loaders, 0, list.Len())
	for i := 0; i < list.Len(); i++ {
		ref, err := parseLoader(fmt.Sprintf("%s[%d]", field, i), list.Index(i))
		if err != nil {
			return nil, err
		}
		use = append(use, ref)
	}
	return use, nil
}

func parseLoader(field string, v starlark.Value) (LoaderRef, error) {
	if s, ok := starlark.AsString(v); ok {
		return LoaderRef{Spec: s}, nil
	}
	if fn, ok := v.(starlark.Callable); ok {
		return LoaderRef{Func: fn}, nil
	}
	return LoaderRef{}, fmt.Errorf("%s must be a string or a function, got %s", field, v.Type())
}

func parseResolve(v starlark.Value, cfg *ResolveConfig) error {
	d, err := asDict("resolve", v)
	if err != nil {
		return err
	}
	return eachKey("resolve", d, func(key string, v starlark.Value) (err error) {
		if key != "extensions" {
			return fmt.Errorf("unknown key resolve.%s", key)
		}
		cfg.Extensions, err = asStringList("resolve.extensions", v)
		return err
	})
}

func parsePlugins(v starlark.Value) ([]PluginRef, error) {
	list, ok := v.(*starlark.List)
	if !ok {
		return nil, fmt.Errorf("plugins must be a list, got %s", v.Type())
	}

	refs := make([]PluginRef, 0, list.Len())
	for i := 0; i < list.Len(); i++ {
		switch p := list.Index(i).(type) {
		case starlark.String:
			refs = append(refs, PluginRef{Name: string(p)})
		case *pluginValue:
			refs = append(refs, PluginRef{Name: p.name, Run: p.run, Done: p.done})
		default:
			return nil, fmt.Errorf("plugins[%d] must be a name or a plugin(), got %s", i, p.Type())
		}
	}
	return refs, nil
}

func asDict(field string, v starlark.Value) (*starlark.Dict, error) {
	d, ok := v.(*starlark.Dict)
	if !ok {
		return nil, fmt.Errorf("%s must be a dict, got %s", field, v.Type())
	}
	return d, nil
}

func asString(field string, v starlark.Value) (string, error) {
	s, ok := starlark.AsString(v)
	if !ok {
		return "", fmt.Errorf("%s must be a string, got %s", field, v.Type())
	}
	return s, nil
}

func asStringList(field string, v starlark.Value) ([]string, error) {
	list, ok := v.(*starlark.List)
	if !ok {
		return nil, fmt.Errorf("%s must be a list, got %s", field, v.Type())
	}
	out := make([]string, 0, list.Len())
	for i := 0; i < list.Len(); i++ {
		s, err := asString(fmt.Sprintf("%s[%d]", field, i), list.Index(i))
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func eachKey(field string, d *starlark.Dict, fn func(key string, v starlark.Value) error) error {
	for _, item := range d.Items() {
		key, ok := starlark.AsString(item[0])
		if !ok {
			return fmt.Errorf("%s keys must be strings, got %s", field, item[0].Type())
		}
		if err := fn(key, item[1]); err != nil {
			return err
		}
	}
	return nil
}

// callStarlark calls fn on a fresh thread, cancelling it when ctx is done or
// timeout elapses. print() output goes to log.
func callStarlark(ctx context.Context, timeout time.Duration, log *zap.Logger, fn starlark.Callable, args ...starlark.Value) (starlark.Value, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	thread := &starlark.Thread{
		Name: fn.Name(),
		Print: func(thread *starlark.Thread, msg string) {
			log.Info(msg, zap.String("function", thread.Name))
		},
	}
	stop := cancelOnDone(ctx, thread)
	defer stop()

	return starlark.Call(thread, fn, starlark.Tuple(args), nil)
}

// scriptLoader is a loader implemented by a Starlark function.
type scriptLoader struct {
	fn      starlark.Callable
	timeout time.Duration
	log     *zap.Logger
}

func (l *scriptLoader) Name() string {
	return l.fn.Name()
}

func (l *scriptLoader) Load(ctx context.Context, source string) (string, error) {
	result, err := callStarlark(ctx, l.timeout, l.log, l.fn, starlark.String(source))
	if err != nil {
		return "", err
	}
	out, ok := starlark.AsString(result)
	if !ok {
		return "", fmt.Errorf("%s returned %s, want string", l.fn.Name(), result.Type())
	}
	return out, nil
}

// scriptHook adapts a Starlark callback to a hook listener. Hooks cannot
// fail, so errors are logged.
func scriptHook(name string, fn starlark.Callable, log *zap.Logger) func() {
	return func() {
		if _, err := callStarlark(context.Background(), DefaultStarlarkTimeout, log, fn); err != nil {
			log.Error("plugin callback failed", zap.String("plugin", name), zap.Error(err))
		}
	}
}
