// Package meta provides the structural-descriptor builder for bridged types.
//
// A descriptor is the engine's reflective metadata record for a host type:
// its callable slots, its properties, and the notification signals the
// properties are bound to. Descriptors are built incrementally during
// registration and finalized exactly once into an immutable Object shared by
// every engine-visible instance of the type.
package meta

import (
	"errors"
	"fmt"
)

// ReturnKind describes the value contract of a slot's return.
type ReturnKind int

const (
	// ReturnVoid means the slot returns nothing.
	ReturnVoid ReturnKind = iota
	// ReturnValue means the slot returns an opaque value.
	ReturnValue
	// ReturnList means the slot returns a sequence value.
	ReturnList
	// ReturnMap means the slot returns a mapping value.
	ReturnMap
)

func (k ReturnKind) String() string {
	switch k {
	case ReturnVoid:
		return "void"
	case ReturnValue:
		return "value"
	case ReturnList:
		return "list"
	case ReturnMap:
		return "map"
	default:
		return "invalid"
	}
}

// Model role identifiers. RoleDisplay is the fixed display role used by flat
// lists. Record-field roles are assigned from RoleRecordBase upward so they
// never collide with engine-reserved roles below roleUserBase.
const (
	RoleDisplay  = 0
	roleUserBase = 0x0100
	// RoleRecordBase is the first role id assigned to a record field.
	RoleRecordBase = roleUserBase + 1000
)

// Class-info marker keys attached to every synthesized descriptor.
const (
	// InfoElement marks the type as creatable from the declarative layer.
	InfoElement = "Bridge.Element"
	// InfoParserStatus opts the type into construction lifecycle callbacks.
	InfoParserStatus = "Bridge.ParserStatus"
	// InfoDefaultProperty names the default property, when one was supplied
	// at registration.
	InfoDefaultProperty = "DefaultProperty"
)

// Slot describes one callable member.
type Slot struct {
	Name       string
	ParamCount int
	Return     ReturnKind
}

// Signal describes one notification channel.
type Signal struct {
	Name string
}

// Property describes one observable property and the signal it notifies on.
type Property struct {
	Name     string
	TypeName string
	// Notify is the index of the property's notification signal, or -1.
	Notify int
}

// ErrFinalized is returned when a builder is used after Build.
var ErrFinalized = errors.New("descriptor already finalized")

// Builder accumulates descriptor entries for one host type.
// It is not safe for concurrent use; registration is single-threaded.
type Builder struct {
	className string
	slots     []Slot
	signals   []Signal
	props     []Property
	classInfo map[string]string
	finalized bool
}

// NewBuilder returns a Builder for the named class.
func NewBuilder(className string) *Builder {
	return &Builder{
		className: className,
		classInfo: make(map[string]string),
	}
}

// AddSlot registers a callable entry and returns its method index.
func (b *Builder) AddSlot(name string, paramCount int, ret ReturnKind) (int, error) {
	if b.finalized {
		return -1, ErrFinalized
	}
	b.slots = append(b.slots, Slot{Name: name, ParamCount: paramCount, Return: ret})
	return len(b.slots) - 1, nil
}

// AddSignal registers a notification channel and returns its signal index.
func (b *Builder) AddSignal(name string) (int, error) {
	if b.finalized {
		return -1, ErrFinalized
	}
	b.signals = append(b.signals, Signal{Name: name})
	return len(b.signals) - 1, nil
}

// AddProperty registers a property bound to the given notify signal index
// (-1 for none) and returns its property index.
func (b *Builder) AddProperty(name, typeName string, notify int) (int, error) {
	if b.finalized {
		return -1, ErrFinalized
	}
	if notify >= len(b.signals) {
		return -1, fmt.Errorf("property %s: notify signal %d not registered", name, notify)
	}
	b.props = append(b.props, Property{Name: name, TypeName: typeName, Notify: notify})
	return len(b.props) - 1, nil
}

// AddClassInfo attaches a marker key/value pair to the descriptor.
func (b *Builder) AddClassInfo(key, value string) error {
	if b.finalized {
		return ErrFinalized
	}
	b.classInfo[key] = value
	return nil
}

// Build finalizes the descriptor. It must be called exactly once, after all
// members have been added; a second call returns ErrFinalized.
func (b *Builder) Build() (*Object, error) {
	if b.finalized {
		return nil, ErrFinalized
	}
	b.finalized = true

	obj := &Object{
		className: b.className,
		slots:     make([]Slot, len(b.slots)),
		signals:   make([]Signal, len(b.signals)),
		props:     make([]Property, len(b.props)),
		classInfo: make(map[string]string, len(b.classInfo)),
		slotIdx:   make(map[string]int, len(b.slots)),
		propIdx:   make(map[string]int, len(b.props)),
	}
	copy(obj.slots, b.slots)
	copy(obj.signals, b.signals)
	copy(obj.props, b.props)
	for k, v := range b.classInfo {
		obj.classInfo[k] = v
	}
	for i, s := range obj.slots {
		obj.slotIdx[s.Name] = i
	}
	for i, p := range obj.props {
		obj.propIdx[p.Name] = i
	}
	return obj, nil
}

// Object is a finalized, immutable descriptor.
type Object struct {
	className string
	slots     []Slot
	signals   []Signal
	props     []Property
	classInfo map[string]string
	slotIdx   map[string]int
	propIdx   map[string]int
}

// ClassName returns the descriptor's class name.
func (o *Object) ClassName() string { return o.className }

// SlotCount returns the number of callable entries.
func (o *Object) SlotCount() int { return len(o.slots) }

// SignalCount returns the number of notification channels.
func (o *Object) SignalCount() int { return len(o.signals) }

// PropertyCount returns the number of properties.
func (o *Object) PropertyCount() int { return len(o.props) }

// Slot returns the slot at index i.
func (o *Object) Slot(i int) Slot { return o.slots[i] }

// Signal returns the signal at index i.
func (o *Object) Signal(i int) Signal { return o.signals[i] }

// Property returns the property at index i.
func (o *Object) Property(i int) Property { return o.props[i] }

// SlotByName returns the named slot and whether it exists.
func (o *Object) SlotByName(name string) (Slot, bool) {
	i, ok := o.slotIdx[name]
	if !ok {
		return Slot{}, false
	}
	return o.slots[i], true
}

// PropertyByName returns the named property and whether it exists.
func (o *Object) PropertyByName(name string) (Property, bool) {
	i, ok := o.propIdx[name]
	if !ok {
		return Property{}, false
	}
	return o.props[i], true
}

// PropertyIndex returns the index of the named property, or -1.
func (o *Object) PropertyIndex(name string) int {
	i, ok := o.propIdx[name]
	if !ok {
		return -1
	}
	return i
}

// ClassInfo returns the marker value for key, or "".
func (o *Object) ClassInfo(key string) string { return o.classInfo[key] }
