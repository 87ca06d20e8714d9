// Package engine defines the registration surface the bridge targets and an
// in-process reference engine implementing it.
//
// The reference engine stores singleton and factory registrations under a
// (uri, name) key and drives the two-phase construction state machine for
// instantiated objects. It runs a single-threaded cooperative model: one
// engine-wide mutex serializes host-object interaction and is never held
// across notification callbacks.
package engine

import (
	"fmt"
	"sync"

	"github.com/go-drift/bridge/pkg/meta"
)

// Object is the engine-visible surface of a bridged host object.
type Object interface {
	// Descriptor returns the finalized structural descriptor.
	Descriptor() *meta.Object
	// Property reads a property by its descriptor name.
	Property(name string) (any, error)
	// SetProperty writes a property by its descriptor name.
	SetProperty(name string, value any) error
	// Invoke calls a slot by its descriptor name.
	Invoke(name string, args ...any) (any, error)
	// Connect subscribes to a named signal.
	Connect(signal string, fn func(args ...any)) *Subscription
	// CompleteConstruction runs the object's construction-completion hooks.
	// The engine calls it at most once per object.
	CompleteConstruction()
}

// Model is implemented by objects that expose row-oriented data.
type Model interface {
	RowCount() int
	ColumnCount() int
	Value(row, role int) any
	SetValue(row int, value any) bool
	RoleNames() map[int]string
}

// Factory creates one host-backed object per declarative instantiation.
type Factory func() (Object, error)

// Registrar is the subset of the engine the bridge registers against.
type Registrar interface {
	RegisterSingleton(uri string, major, minor int, name string, obj Object) error
	RegisterType(uri string, major, minor int, name string, factory Factory) error
}

type regKey struct {
	uri  string
	name string
}

// Engine is the in-process reference implementation of Registrar.
type Engine struct {
	mu         sync.Mutex
	singletons map[regKey]Object
	factories  map[regKey]Factory
}

// New returns an empty reference engine.
func New() *Engine {
	return &Engine{
		singletons: make(map[regKey]Object),
		factories:  make(map[regKey]Factory),
	}
}

// RegisterSingleton makes obj available under uri/name as a shared instance.
func (e *Engine) RegisterSingleton(uri string, major, minor int, name string, obj Object) error {
	if obj == nil {
		return fmt.Errorf("engine: nil object for %s/%s", uri, name)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	k := regKey{uri, name}
	if _, exists := e.singletons[k]; exists {
		return fmt.Errorf("engine: %s %d.%d already registers singleton %s", uri, major, minor, name)
	}
	e.singletons[k] = obj
	return nil
}

// RegisterType makes factory available under uri/name for per-use creation.
func (e *Engine) RegisterType(uri string, major, minor int, name string, factory Factory) error {
	if factory == nil {
		return fmt.Errorf("engine: nil factory for %s/%s", uri, name)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	k := regKey{uri, name}
	if _, exists := e.factories[k]; exists {
		return fmt.Errorf("engine: %s %d.%d already registers type %s", uri, major, minor, name)
	}
	e.factories[k] = factory
	return nil
}

// Singleton returns the shared object registered under uri/name.
func (e *Engine) Singleton(uri, name string) (Object, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	obj, ok := e.singletons[regKey{uri, name}]
	return obj, ok
}

// Instantiate creates a new object from the factory registered under uri/name
// and returns it in the properties-binding phase. The caller binds properties
// through the instance and then calls CompleteConstruction exactly once.
func (e *Engine) Instantiate(uri, name string) (*Instance, error) {
	e.mu.Lock()
	factory, ok := e.factories[regKey{uri, name}]
	e.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("engine: no type %s registered under %s", name, uri)
	}
	obj, err := factory()
	if err != nil {
		return nil, fmt.Errorf("engine: creating %s: %w", name, err)
	}
	inst := &Instance{Object: obj, state: StateCreated}
	inst.state = StatePropertiesBinding
	return inst, nil
}
