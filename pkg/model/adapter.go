// Package model implements the list/table model protocol over a host
// object's exposed data.
//
// An Adapter never caches rows: every query re-invokes the host's data
// accessor, so host-side mutations are always visible on the next access.
// Host failures during a query are absorbed at the adapter boundary, logged,
// and downgraded to an empty result; the engine's call stack never observes
// an error from a model query.
package model

import (
	"fmt"
	"reflect"

	"github.com/go-drift/bridge/pkg/errors"
	"github.com/go-drift/bridge/pkg/introspect"
	"github.com/go-drift/bridge/pkg/meta"
	"github.com/go-drift/bridge/pkg/variant"
)

// Listener receives the mutation brackets and change notifications the
// adapter emits, in the order the engine's bookkeeping requires.
type Listener interface {
	BeginInsertRows(first, last int)
	EndInsertRows()
	BeginRemoveRows(first, last int)
	EndRemoveRows()
	BeginMoveRows(sourceFirst, sourceLast, destination int)
	EndMoveRows()
	BeginResetModel()
	EndResetModel()
	DataChanged(row int, roles []int)
}

// Adapter exposes one host object's data as a flat, row-oriented model.
type Adapter struct {
	backend  reflect.Value
	typeName string
	shape    Shape

	// roles maps role id to record field name. Built lazily for
	// ShapeRecordList and rebuilt after a reset if it was empty.
	roles  map[int]string
	fields []string

	listener Listener
}

// New creates an adapter over backend with the given inferred shape.
func New(backend any, shape Shape) *Adapter {
	a := &Adapter{
		backend: reflect.ValueOf(backend),
		shape:   shape,
	}
	if backend != nil {
		t := reflect.TypeOf(backend)
		if t.Kind() == reflect.Pointer {
			t = t.Elem()
		}
		a.typeName = t.Name()
	}
	if shape == ShapeRecordList {
		a.buildRoles()
	}
	return a
}

// SetListener attaches the engine-side listener for brackets and change
// notifications. A nil listener silently drops notifications.
func (a *Adapter) SetListener(l Listener) { a.listener = l }

// Shape returns the adapter's inferred shape.
func (a *Adapter) Shape() Shape { return a.shape }

// Backend returns the wrapped host object.
func (a *Adapter) Backend() any {
	if !a.backend.IsValid() {
		return nil
	}
	return a.backend.Interface()
}

// RowCount re-invokes the host data accessor and returns the row count.
// Unknown and Table shapes report zero rows; so does any host failure.
func (a *Adapter) RowCount() int {
	if a.shape != ShapeFlatList && a.shape != ShapeRecordList {
		return 0
	}
	data, ok := callData(a.backend, "model.RowCount")
	if !ok || (data.Kind() != reflect.Slice && data.Kind() != reflect.Array) {
		return 0
	}
	return data.Len()
}

// ColumnCount returns the column count. Both supported shapes are
// single-column; records expose their fields through roles, not columns.
func (a *Adapter) ColumnCount() int { return 1 }

// ParentIsValid reports whether any row has a parent. The hierarchy is
// always flat, so the answer is always false.
func (a *Adapter) ParentIsValid(int) bool { return false }

// Value fetches the cell value at row for the given role. Out-of-range
// indexes and unmapped roles return the empty value, never an error.
func (a *Adapter) Value(row, role int) any {
	if a.shape != ShapeFlatList && a.shape != ShapeRecordList {
		return nil
	}
	data, ok := callData(a.backend, "model.Value")
	if !ok || (data.Kind() != reflect.Slice && data.Kind() != reflect.Array) {
		return nil
	}
	if row < 0 || row >= data.Len() {
		return nil
	}
	item := data.Index(row)
	if item.Kind() == reflect.Interface {
		item = item.Elem()
	}
	if !item.IsValid() {
		return nil
	}

	if a.shape == ShapeFlatList {
		if role != meta.RoleDisplay {
			return nil
		}
		return variant.ToValue(item.Interface())
	}

	// RecordList: resolve the role to a record field.
	field, ok := a.roles[role]
	if !ok {
		if role == meta.RoleDisplay {
			// Empty or missing role mapping degrades to the display
			// stringification of the whole record.
			return fmt.Sprintf("%v", item.Interface())
		}
		return nil
	}
	rec := item
	if rec.Kind() == reflect.Pointer {
		if rec.IsNil() {
			return nil
		}
		rec = rec.Elem()
	}
	if rec.Kind() != reflect.Struct {
		return nil
	}
	fv := rec.FieldByName(field)
	if !fv.IsValid() {
		return nil
	}
	return variant.ToValue(fv.Interface())
}

// SetValue writes a cell through the host's SetItem method. On any host
// failure it returns false without emitting a notification; on success it
// emits exactly one data-changed notification for the written cell.
func (a *Adapter) SetValue(row int, value any) (ok bool) {
	defer errors.RecoverWithCallback("model.SetValue", func(any) { ok = false })

	m := a.backend.MethodByName(introspect.SetItemMethod)
	if !m.IsValid() {
		errors.Report(&errors.BridgeError{
			Op:   "model.SetValue",
			Kind: errors.KindQuery,
			Type: a.typeName,
			Err:  fmt.Errorf("host type has no %s method", introspect.SetItemMethod),
		})
		return false
	}
	mt := m.Type()
	if mt.NumIn() != 2 || mt.In(0).Kind() != reflect.Int {
		errors.Report(&errors.BridgeError{
			Op:   "model.SetValue",
			Kind: errors.KindQuery,
			Type: a.typeName,
			Err:  fmt.Errorf("%s must accept (index int, value)", introspect.SetItemMethod),
		})
		return false
	}
	arg := reflect.New(mt.In(1)).Elem()
	if value != nil {
		vv := reflect.ValueOf(value)
		if !vv.Type().AssignableTo(mt.In(1)) {
			if vv.Type().ConvertibleTo(mt.In(1)) {
				vv = vv.Convert(mt.In(1))
			} else {
				errors.Report(&errors.BridgeError{
					Op:   "model.SetValue",
					Kind: errors.KindQuery,
					Type: a.typeName,
					Err:  fmt.Errorf("cannot pass %T to %s", value, introspect.SetItemMethod),
				})
				return false
			}
		}
		arg.Set(vv)
	}
	outs := m.Call([]reflect.Value{reflect.ValueOf(row), arg})
	if len(outs) > 0 {
		if last := outs[len(outs)-1]; last.Type() == errType && !last.IsNil() {
			errors.Report(&errors.BridgeError{
				Op:   "model.SetValue",
				Kind: errors.KindQuery,
				Type: a.typeName,
				Err:  last.Interface().(error),
			})
			return false
		}
	}
	a.DataChanged(row)
	return true
}

// RoleNames returns the role id to role name mapping. Flat lists expose the
// fixed display role; record lists expose one role per record field, built
// lazily, with the display role as the degraded fallback.
func (a *Adapter) RoleNames() map[int]string {
	if a.shape == ShapeRecordList {
		if len(a.roles) == 0 {
			a.buildRoles()
		}
		if len(a.roles) > 0 {
			out := make(map[int]string, len(a.roles)+1)
			for id, field := range a.roles {
				out[id] = introspect.MemberName(field)
			}
			return out
		}
	}
	return map[int]string{meta.RoleDisplay: "display"}
}

// buildRoles assigns one role per record field from the fixed base offset.
// Role ids are stable: once assigned for a record shape they never change.
func (a *Adapter) buildRoles() {
	a.fields = a.recordFields()
	if len(a.fields) == 0 {
		return
	}
	a.roles = make(map[int]string, len(a.fields))
	for i, f := range a.fields {
		a.roles[meta.RoleRecordBase+i] = f
	}
}

// recordFields resolves the record's field names, preferring the accessor's
// declared element type and falling back to the first live row.
func (a *Adapter) recordFields() []string {
	m := a.backend.MethodByName(introspect.DataMethod)
	if m.IsValid() && m.Type().NumOut() >= 1 {
		out := m.Type().Out(0)
		if out.Kind() == reflect.Slice || out.Kind() == reflect.Array {
			if fields := structFieldNames(out.Elem()); len(fields) > 0 {
				return fields
			}
		}
	}

	data, ok := callData(a.backend, "model.recordFields")
	if !ok || (data.Kind() != reflect.Slice && data.Kind() != reflect.Array) || data.Len() == 0 {
		return nil
	}
	first := data.Index(0)
	if first.Kind() == reflect.Interface {
		first = first.Elem()
	}
	if !first.IsValid() {
		return nil
	}
	return structFieldNames(first.Type())
}

// structFieldNames returns the exported field names of a struct or
// pointer-to-struct type, in declaration order.
func structFieldNames(t reflect.Type) []string {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil
	}
	var names []string
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.IsExported() && !f.Anonymous {
			names = append(names, f.Name)
		}
	}
	return names
}

// Mutation brackets. Each pair forwards to the attached listener; the
// bracket protocol guarantees the end call on every exit path, so these
// must never themselves fail.

func (a *Adapter) BeginInsertRows(first, last int) {
	if a.listener != nil {
		a.listener.BeginInsertRows(first, last)
	}
}

func (a *Adapter) EndInsertRows() {
	if a.listener != nil {
		a.listener.EndInsertRows()
	}
}

func (a *Adapter) BeginRemoveRows(first, last int) {
	if a.listener != nil {
		a.listener.BeginRemoveRows(first, last)
	}
}

func (a *Adapter) EndRemoveRows() {
	if a.listener != nil {
		a.listener.EndRemoveRows()
	}
}

func (a *Adapter) BeginMoveRows(sourceFirst, sourceLast, destination int) {
	if a.listener != nil {
		a.listener.BeginMoveRows(sourceFirst, sourceLast, destination)
	}
}

func (a *Adapter) EndMoveRows() {
	if a.listener != nil {
		a.listener.EndMoveRows()
	}
}

func (a *Adapter) BeginResetModel() {
	if a.listener != nil {
		a.listener.BeginResetModel()
	}
}

// EndResetModel closes a model-wide reset. If the shape is RecordList and no
// role mapping existed yet, the mapping is rebuilt; this handles data
// arriving after an initially-empty construction.
func (a *Adapter) EndResetModel() {
	if a.shape == ShapeRecordList && len(a.roles) == 0 {
		a.fields = nil
		a.buildRoles()
	}
	if a.listener != nil {
		a.listener.EndResetModel()
	}
}

// DataChanged emits a single-cell change notification for row.
func (a *Adapter) DataChanged(row int) {
	if a.listener != nil {
		a.listener.DataChanged(row, []int{meta.RoleDisplay})
	}
}
