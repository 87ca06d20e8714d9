package engine

import "fmt"

// State is the construction phase of an instantiated object.
type State int

const (
	// StateCreated means the host object exists but no properties are bound.
	StateCreated State = iota
	// StatePropertiesBinding means the declarative layer is assigning
	// initial property values.
	StatePropertiesBinding
	// StateConstructionComplete is terminal; completion hooks have run.
	StateConstructionComplete
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "Created"
	case StatePropertiesBinding:
		return "PropertiesBinding"
	case StateConstructionComplete:
		return "ConstructionComplete"
	default:
		return "invalid"
	}
}

// Destructible is implemented by objects that release resources when the
// declarative layer destroys their instance.
type Destructible interface {
	Destroy()
}

// Instance wraps a factory-created object with its construction state.
type Instance struct {
	Object
	state     State
	destroyed bool
}

// State returns the instance's current construction phase.
func (i *Instance) State() State { return i.state }

// SetProperty binds a property during construction or writes it afterwards.
func (i *Instance) SetProperty(name string, value any) error {
	return i.Object.SetProperty(name, value)
}

// CompleteConstruction transitions the instance to its terminal state and
// runs the object's completion hooks. The transition is one-shot; a second
// call is an error and the hooks do not run again.
func (i *Instance) CompleteConstruction() error {
	if i.state == StateConstructionComplete {
		return fmt.Errorf("engine: construction of %s already complete", i.Descriptor().ClassName())
	}
	i.state = StateConstructionComplete
	i.Object.CompleteConstruction()
	return nil
}

// Destroy tears the instance down. It runs at most once; the wrapped
// object's release hook, when implemented, fires on the first call.
func (i *Instance) Destroy() {
	if i.destroyed {
		return
	}
	i.destroyed = true
	if d, ok := i.Object.(Destructible); ok {
		d.Destroy()
	}
}
