package backend

import (
	"context"
	"sort"
	"sync"
	"time"

	"gitlab.com/tozd/go/errors"
)

// Settings configure a backend. In-process backends ignore the fields describing an
// external analysis host.
type Settings struct {
	// Command launches the external analysis host (a language server).
	Command []string
	// LanguageID is sent to the host with every opened document.
	LanguageID string
	// FileName is the name each compiled unit is written under.
	FileName string
	// Manifest files are written once into the workspace root (go.mod, Cargo.toml).
	Manifest map[string]string
	// DiagnosticsWait bounds how long to wait for pushed diagnostics.
	DiagnosticsWait time.Duration
	// WorkDir is where scaffolded workspaces are created. Empty means os.TempDir.
	WorkDir string
	// Extension overrides the file extension reported by the backend.
	Extension string
}

// Factory builds a backend from settings.
type Factory func(ctx context.Context, settings Settings) (Backend, error)

// Registry maps backend names to factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

func (me *Registry) Register(name string, factory Factory) {
	me.mu.Lock()
	defer me.mu.Unlock()
	me.factories[name] = factory
}

func (me *Registry) Names() []string {
	me.mu.RLock()
	defer me.mu.RUnlock()
	names := make([]string, 0, len(me.factories))
	for name := range me.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (me *Registry) New(ctx context.Context, name string, settings Settings) (Backend, error) {
	me.mu.RLock()
	factory, ok := me.factories[name]
	me.mu.RUnlock()
	if !ok {
		return nil, errors.Errorf("%w: %q (known: %v)", ErrUnknown, name, me.Names())
	}

	b, err := factory(ctx, settings)
	if err != nil {
		return nil, errors.Errorf("creating backend %s: %w", name, err)
	}
	return b, nil
}
