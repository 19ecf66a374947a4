// Package hooks provides the compiler's lifecycle hooks: named, synchronous
// listener lists that plugins tap and the compiler calls at fixed points.
// Listeners observe the build; they receive no payload and cannot alter or
// stop it.
package hooks

import (
	"fmt"
	"sort"
	"sync"
)

// Hook names.
const (
	// Run fires once before any module is built.
	Run = "run"
	// Done fires once after every asset exists.
	Done = "done"
)

// Tap is a registered listener.
type Tap struct {
	Name string
	Fn   func()
}

// SyncHook calls its listeners in registration order.
type SyncHook struct {
	name string

	mu   sync.Mutex
	taps []Tap
}

// NewSyncHook creates an empty hook.
func NewSyncHook(name string) *SyncHook {
	return &SyncHook{name: name}
}

// Name returns the hook name.
func (h *SyncHook) Name() string {
	return h.name
}

// Tap registers fn under the listener name.
func (h *SyncHook) Tap(name string, fn func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.taps = append(h.taps, Tap{Name: name, Fn: fn})
}

// Call invokes every listener registered so far, in order.
func (h *SyncHook) Call() {
	h.mu.Lock()
	taps := append([]Tap(nil), h.taps...)
	h.mu.Unlock()

	for _, tap := range taps {
		tap.Fn()
	}
}

// Listeners returns the registered listener names, in order.
func (h *SyncHook) Listeners() []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	names := make([]string, len(h.taps))
	for i, tap := range h.taps {
		names[i] = tap.Name
	}
	return names
}

// Hooks is the set of hooks owned by one compiler.
type Hooks struct {
	Run  *SyncHook
	Done *SyncHook
}

// New creates the compiler hook set.
func New() *Hooks {
	return &Hooks{
		Run:  NewSyncHook(Run),
		Done: NewSyncHook(Done),
	}
}

// Get returns the hook called name.
func (h *Hooks) Get(name string) (*SyncHook, bool) {
	switch name {
	case Run:
		return h.Run, true
	case Done:
		return h.Done, true
	default:
		return nil, false
	}
}

// Tap registers fn as listener on the hook called hookName.
func (h *Hooks) Tap(hookName, listener string, fn func()) error {
	hook, ok := h.Get(hookName)
	if !ok {
		return fmt.Errorf("unknown hook %q (available: %v)", hookName, Names())
	}
	hook.Tap(listener, fn)
	return nil
}

// Names returns the available hook names, sorted.
func Names() []string {
	names := []string{Run, Done}
	sort.Strings(names)
	return names
}
