package model

import (
	"reflect"

	"github.com/go-drift/bridge/pkg/errors"
	"github.com/go-drift/bridge/pkg/introspect"
)

// Shape is the inferred structural category of a host object's exposed data.
type Shape int

const (
	// ShapeUnknown means no usable data accessor was found. Adapters with an
	// unknown shape report zero rows rather than failing.
	ShapeUnknown Shape = iota
	// ShapeFlatList is a flat sequence of primitive values, one column.
	ShapeFlatList
	// ShapeRecordList is a sequence of uniform structured records, one role
	// per record field.
	ShapeRecordList
	// ShapeTable is reserved for tabular data sources. No inference path
	// currently produces it and adapters treat it as empty.
	ShapeTable
)

func (s Shape) String() string {
	switch s {
	case ShapeFlatList:
		return "FlatList"
	case ShapeRecordList:
		return "RecordList"
	case ShapeTable:
		return "Table"
	default:
		return "Unknown"
	}
}

// Infer determines the data shape of a host object. It first inspects the
// declared return type of the data accessor; when the declaration carries no
// usable element type (for example []any), it probes the first live result.
// Inference never raises: a failing or absent accessor yields ShapeUnknown.
func Infer(backend any) Shape {
	if backend == nil {
		return ShapeUnknown
	}
	v := reflect.ValueOf(backend)
	m := v.MethodByName(introspect.DataMethod)
	if !m.IsValid() {
		return ShapeUnknown
	}

	// Hint pass: the accessor's declared return type.
	mt := m.Type()
	if mt.NumOut() >= 1 {
		out := mt.Out(0)
		if out.Kind() == reflect.Slice || out.Kind() == reflect.Array {
			elem := out.Elem()
			switch {
			case isRecordType(elem):
				return ShapeRecordList
			case elem.Kind() == reflect.Interface:
				// No usable hint; fall through to the live probe.
			default:
				return ShapeFlatList
			}
		} else if out.Kind() != reflect.Interface {
			return ShapeUnknown
		}
	}

	// Probe pass: one live call, absorbed on failure.
	data, ok := callData(v, "model.Infer")
	if !ok {
		return ShapeUnknown
	}
	if data.Kind() != reflect.Slice && data.Kind() != reflect.Array {
		return ShapeUnknown
	}
	if data.Len() == 0 {
		return ShapeFlatList
	}
	first := data.Index(0)
	if first.Kind() == reflect.Interface {
		first = first.Elem()
	}
	if first.IsValid() && isRecordType(first.Type()) {
		return ShapeRecordList
	}
	return ShapeFlatList
}

// isRecordType reports whether t is a struct or pointer-to-struct record.
func isRecordType(t reflect.Type) bool {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.Kind() == reflect.Struct
}

// callData invokes the data accessor with panic recovery and error
// absorption, returning the result slice value and whether it is usable.
func callData(backend reflect.Value, op string) (result reflect.Value, ok bool) {
	defer errors.RecoverWithCallback(op, func(any) {
		result, ok = reflect.Value{}, false
	})

	m := backend.MethodByName(introspect.DataMethod)
	if !m.IsValid() || m.Type().NumIn() != 0 {
		return reflect.Value{}, false
	}
	outs := m.Call(nil)
	if len(outs) == 0 {
		return reflect.Value{}, false
	}
	if last := outs[len(outs)-1]; last.Type() == errType {
		if !last.IsNil() {
			errors.Report(&errors.BridgeError{
				Op:   op,
				Kind: errors.KindQuery,
				Err:  last.Interface().(error),
			})
			return reflect.Value{}, false
		}
		outs = outs[:len(outs)-1]
		if len(outs) == 0 {
			return reflect.Value{}, false
		}
	}
	v := outs[0]
	if v.Kind() == reflect.Interface {
		v = v.Elem()
	}
	if !v.IsValid() {
		return reflect.Value{}, false
	}
	return v, true
}

var errType = reflect.TypeOf((*error)(nil)).Elem()
