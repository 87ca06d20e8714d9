package bridge

import (
	"fmt"
	"reflect"

	"github.com/go-drift/bridge/pkg/errors"
	"github.com/go-drift/bridge/pkg/introspect"
)

// ListProperty is the engine-visible view of an object-list field whose
// element type is registered. The declarative layer grows and reads the
// list through this view; whole-property assignment is rejected upstream.
type ListProperty struct {
	handler *Handler
	name    string
	prop    introspect.Property
}

// Name returns the property's descriptor name.
func (l *ListProperty) Name() string { return l.name }

func (l *ListProperty) field() reflect.Value {
	return l.handler.host.Elem().Field(l.prop.Index)
}

// Count returns the current element count.
func (l *ListProperty) Count() int {
	return l.field().Len()
}

// At returns the element at index i as its engine-visible object when one
// exists, and as the raw host pointer otherwise. Out-of-range indexes
// return nil.
func (l *ListProperty) At(i int) any {
	f := l.field()
	if i < 0 || i >= f.Len() {
		return nil
	}
	elem := f.Index(i).Interface()
	if h, ok := l.handler.registry.Handler(elem); ok {
		return h
	}
	return elem
}

// Append adds an element and emits the property's change notification. The
// argument may be the engine-visible object or the host pointer itself;
// either resolves through the registry's identity maps.
func (l *ListProperty) Append(obj any) error {
	host := l.handler.registry.hostFor(obj)
	hv := reflect.ValueOf(host)
	if !hv.IsValid() || !hv.Type().AssignableTo(l.prop.Elem) {
		err := &errors.BridgeError{
			Op:     "bridge.ListProperty.Append",
			Kind:   errors.KindCall,
			Type:   l.handler.info.Name,
			Member: l.prop.Name,
			Err:    fmt.Errorf("cannot append %T to a list of %s", obj, l.prop.Elem),
		}
		errors.Report(err)
		return err
	}
	f := l.field()
	f.Set(reflect.Append(f, hv))
	l.handler.notifyProperty(l.name, l.prop)
	return nil
}

// Clear empties the list and emits the property's change notification.
func (l *ListProperty) Clear() {
	f := l.field()
	f.Set(reflect.MakeSlice(f.Type(), 0, 0))
	l.handler.notifyProperty(l.name, l.prop)
}
