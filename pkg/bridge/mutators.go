package bridge

import (
	"fmt"

	"github.com/go-drift/bridge/pkg/introspect"
)

// MutatorKind identifies the bracket semantics of a declared mutator.
type MutatorKind int

const (
	// MutatorInsert wraps a method that adds one row.
	MutatorInsert MutatorKind = iota
	// MutatorRemove wraps a method that deletes one row.
	MutatorRemove
	// MutatorMove wraps a method that relocates one row.
	MutatorMove
	// MutatorEdit wraps a method that changes one row in place.
	MutatorEdit
	// MutatorReset wraps a method that replaces the whole data set.
	MutatorReset
	// MutatorComplete marks a construction-completion hook.
	MutatorComplete
)

func (k MutatorKind) String() string {
	switch k {
	case MutatorInsert:
		return "insert"
	case MutatorRemove:
		return "remove"
	case MutatorMove:
		return "move"
	case MutatorEdit:
		return "edit"
	case MutatorReset:
		return "reset"
	case MutatorComplete:
		return "complete"
	default:
		return "invalid"
	}
}

// Well-known parameter names used for position extraction.
const (
	paramIndex     = "index"
	paramFromIndex = "fromIndex"
	paramToIndex   = "toIndex"
)

// Mutator declares the bracket semantics of one host method together with
// the method's parameter names in declaration order. Reflection resolves
// arity but not names, so the declaration carries them.
type Mutator struct {
	Kind   MutatorKind
	Params []string
}

// Mutators maps host method names to their mutator declarations.
type Mutators map[string]Mutator

// HasMutators is implemented by host types that declare mutation brackets.
type HasMutators interface {
	BridgeMutators() Mutators
}

// Insert declares a row-adding method. When params omits "index" the row is
// always appended; when present, the named argument selects the position and
// an omitted named argument falls back to appending.
func Insert(params ...string) Mutator { return Mutator{Kind: MutatorInsert, Params: params} }

// Remove declares a row-deleting method. Params must include "index".
func Remove(params ...string) Mutator { return Mutator{Kind: MutatorRemove, Params: params} }

// Move declares a row-relocating method. Params must include "fromIndex"
// and "toIndex".
func Move(params ...string) Mutator { return Mutator{Kind: MutatorMove, Params: params} }

// Edit declares an in-place row change. Params must include "index"; the
// call emits a single-row change notification instead of brackets.
func Edit(params ...string) Mutator { return Mutator{Kind: MutatorEdit, Params: params} }

// Reset declares a whole-data-set replacement wrapped in a model reset.
func Reset(params ...string) Mutator { return Mutator{Kind: MutatorReset, Params: params} }

// Complete declares a zero-argument construction-completion hook. It runs
// when construction finishes, not through the slot call path's brackets.
func Complete() Mutator { return Mutator{Kind: MutatorComplete} }

func (m Mutator) hasParam(name string) bool {
	for _, p := range m.Params {
		if p == name {
			return true
		}
	}
	return false
}

func (m Mutator) paramPos(name string) int {
	for i, p := range m.Params {
		if p == name {
			return i
		}
	}
	return -1
}

// validateMutators checks every declaration against the introspected member
// table. Declared names must cover the method's full arity, and each kind's
// required position parameters must be present.
func validateMutators(info *introspect.TypeInfo, muts Mutators) error {
	for name, spec := range muts {
		var method *introspect.Method
		for i := range info.Methods {
			if info.Methods[i].Name == name {
				method = &info.Methods[i]
				break
			}
		}
		if method == nil {
			return fmt.Errorf("mutator %s.%s does not name a callable method", info.Name, name)
		}
		if len(spec.Params) != method.ParamCount {
			return fmt.Errorf("mutator %s.%s declares %d parameter names for a method of arity %d",
				info.Name, name, len(spec.Params), method.ParamCount)
		}
		switch spec.Kind {
		case MutatorRemove, MutatorEdit:
			if !spec.hasParam(paramIndex) {
				return fmt.Errorf("mutator %s.%s (%s) must declare an %q parameter",
					info.Name, name, spec.Kind, paramIndex)
			}
		case MutatorMove:
			if !spec.hasParam(paramFromIndex) || !spec.hasParam(paramToIndex) {
				return fmt.Errorf("mutator %s.%s (move) must declare %q and %q parameters",
					info.Name, name, paramFromIndex, paramToIndex)
			}
		case MutatorComplete:
			if method.ParamCount != 0 {
				return fmt.Errorf("mutator %s.%s (complete) must take no arguments", info.Name, name)
			}
		}
		if spec.Kind != MutatorComplete && !info.HasData {
			return fmt.Errorf("mutator %s.%s (%s) requires a %s accessor on the host type",
				info.Name, name, spec.Kind, introspect.DataMethod)
		}
	}
	return nil
}
