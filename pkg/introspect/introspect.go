// Package introspect performs the registration-time reflection pass over a
// host type, producing the typed member table the descriptor synthesizer
// consumes.
//
// The pass runs once per type. Exported struct fields classify as observable
// properties; exported methods classify as callable slots. Well-known members
// (the data accessor, the cell writer, the mutator declaration) are skipped
// because the bridge handles them out of band.
package introspect

import (
	"fmt"
	"reflect"
	"unicode"

	"github.com/go-drift/bridge/pkg/meta"
)

// Well-known member names handled outside the callable table.
const (
	// DataMethod is the data accessor required by adapter models.
	DataMethod = "Data"
	// SetItemMethod is the cell writer used by the adapter write path.
	SetItemMethod = "SetItem"
	// MutatorsMethod declares mutation brackets for host methods.
	MutatorsMethod = "BridgeMutators"
)

// PropertyKind classifies a property's declared shape.
type PropertyKind int

const (
	// KindValue is a plain value property.
	KindValue PropertyKind = iota
	// KindList is a sequence of primitive values.
	KindList
	// KindMap is a mapping value.
	KindMap
	// KindObjectList is a sequence of pointers to struct types. Whether it
	// becomes an engine list property depends on the element type being
	// registered, which is resolved at synthesis time.
	KindObjectList
)

// TypeName returns the descriptor type name for the property kind.
func (k PropertyKind) TypeName() string {
	switch k {
	case KindList:
		return "list"
	case KindMap:
		return "map"
	case KindObjectList:
		return "objectlist"
	default:
		return "value"
	}
}

// Property describes one observable property discovered on a host type.
type Property struct {
	Name string
	Kind PropertyKind
	// Index is the struct field index.
	Index int
	// Type is the declared field type.
	Type reflect.Type
	// Elem is the element type for KindObjectList, nil otherwise.
	Elem reflect.Type
}

// Method describes one callable discovered on a host type.
type Method struct {
	Name string
	// ParamCount excludes the receiver.
	ParamCount int
	// Return is the value contract of the first non-error return.
	Return meta.ReturnKind
	// ReturnsError reports whether the method's last return is an error.
	ReturnsError bool
	// Index is the method index on the pointer type.
	Index int
}

// TypeInfo is the member table for one host type.
type TypeInfo struct {
	// Type is the pointer-to-struct type that was inspected.
	Type reflect.Type
	// Name is the bare struct type name.
	Name string

	Methods    []Method
	Properties []Property

	// HasData reports whether the type exposes the data accessor.
	HasData bool
	// HasSetItem reports whether the type exposes the cell writer.
	HasSetItem bool
}

var errType = reflect.TypeOf((*error)(nil)).Elem()

// MemberName converts an exported Go member name to the declarative layer's
// convention: the first rune is lowercased ("Count" becomes "count").
func MemberName(goName string) string {
	if goName == "" {
		return goName
	}
	r := []rune(goName)
	r[0] = unicode.ToLower(r[0])
	return string(r)
}

// Inspect walks the visible member set of t, which must be a pointer to a
// struct type, and classifies every member in a single pass. A callable whose
// arity cannot be resolved (a variadic method) fails the whole inspection,
// naming the offending member.
func Inspect(t reflect.Type) (*TypeInfo, error) {
	if t == nil || t.Kind() != reflect.Pointer || t.Elem().Kind() != reflect.Struct {
		return nil, fmt.Errorf("introspect: %v is not a pointer to a struct type", t)
	}
	elem := t.Elem()

	info := &TypeInfo{
		Type: t,
		Name: elem.Name(),
	}

	for i := 0; i < elem.NumField(); i++ {
		f := elem.Field(i)
		if !f.IsExported() || f.Anonymous {
			continue
		}
		info.Properties = append(info.Properties, Property{
			Name:  f.Name,
			Kind:  classifyField(f.Type),
			Index: i,
			Type:  f.Type,
			Elem:  objectListElem(f.Type),
		})
	}

	for i := 0; i < t.NumMethod(); i++ {
		m := t.Method(i)
		switch m.Name {
		case DataMethod:
			info.HasData = true
			continue
		case SetItemMethod:
			info.HasSetItem = true
			continue
		case MutatorsMethod:
			continue
		}
		if m.Type.IsVariadic() {
			return nil, fmt.Errorf(
				"introspect: cannot introspect method %s.%s: variadic signature has no fixed arity",
				info.Name, m.Name)
		}
		ret, hasErr := classifyReturns(m.Type)
		info.Methods = append(info.Methods, Method{
			Name:         m.Name,
			ParamCount:   m.Type.NumIn() - 1,
			Return:       ret,
			ReturnsError: hasErr,
			Index:        i,
		})
	}

	return info, nil
}

// classifyField maps a declared field type to a property kind.
func classifyField(t reflect.Type) PropertyKind {
	switch t.Kind() {
	case reflect.Map:
		return KindMap
	case reflect.Slice, reflect.Array:
		if objectListElem(t) != nil {
			return KindObjectList
		}
		return KindList
	default:
		return KindValue
	}
}

// objectListElem returns the pointer-to-struct element type of a slice field,
// or nil when the field is not an object list.
func objectListElem(t reflect.Type) reflect.Type {
	if t.Kind() != reflect.Slice {
		return nil
	}
	e := t.Elem()
	if e.Kind() == reflect.Pointer && e.Elem().Kind() == reflect.Struct {
		return e
	}
	return nil
}

// classifyReturns derives the return contract of a method type. A trailing
// error return is part of the call contract, not the value contract.
func classifyReturns(mt reflect.Type) (meta.ReturnKind, bool) {
	n := mt.NumOut()
	hasErr := n > 0 && mt.Out(n-1) == errType
	if hasErr {
		n--
	}
	if n == 0 {
		return meta.ReturnVoid, hasErr
	}
	switch mt.Out(0).Kind() {
	case reflect.Slice, reflect.Array:
		return meta.ReturnList, hasErr
	case reflect.Map:
		return meta.ReturnMap, hasErr
	default:
		return meta.ReturnValue, hasErr
	}
}
