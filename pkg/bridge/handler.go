package bridge

import (
	"fmt"
	"reflect"
	"time"

	"github.com/go-drift/bridge/pkg/engine"
	"github.com/go-drift/bridge/pkg/errors"
	"github.com/go-drift/bridge/pkg/introspect"
	"github.com/go-drift/bridge/pkg/meta"
	"github.com/go-drift/bridge/pkg/model"
	"github.com/go-drift/bridge/pkg/variant"
)

// Handler is the engine-visible object wrapping one host instance. It
// implements engine.Object and, when the host exposes a data accessor,
// engine.Model.
type Handler struct {
	registry *Registry
	host     reflect.Value
	info     *introspect.TypeInfo
	desc     *meta.Object
	adapter  *model.Adapter
	emitter  *engine.Emitter
	mutators Mutators

	props     map[string]introspect.Property
	slots     map[string]introspect.Method
	listProps map[string]*ListProperty
}

func newHandler(r *Registry, host any, info *introspect.TypeInfo, desc *meta.Object,
	adapter *model.Adapter, muts Mutators) *Handler {

	h := &Handler{
		registry: r,
		host:     reflect.ValueOf(host),
		info:     info,
		desc:     desc,
		adapter:  adapter,
		emitter:  engine.NewEmitter(),
		mutators: muts,
		props:    make(map[string]introspect.Property, len(info.Properties)),
		slots:    make(map[string]introspect.Method, len(info.Methods)),
	}
	for _, p := range info.Properties {
		h.props[introspect.MemberName(p.Name)] = p
	}
	for _, m := range info.Methods {
		h.slots[introspect.MemberName(m.Name)] = m
	}
	return h
}

// Host returns the wrapped host object.
func (h *Handler) Host() any { return h.host.Interface() }

// Adapter returns the handler's data adapter, or nil when the host exposes
// no data accessor.
func (h *Handler) Adapter() *model.Adapter { return h.adapter }

// Descriptor returns the finalized structural descriptor.
func (h *Handler) Descriptor() *meta.Object { return h.desc }

// Connect subscribes to a named signal on this object.
func (h *Handler) Connect(signal string, fn func(args ...any)) *engine.Subscription {
	return h.emitter.Connect(signal, fn)
}

// Property reads a property by its descriptor name. An object-list property
// whose element type is registered reads as its list-property view.
func (h *Handler) Property(name string) (any, error) {
	p, ok := h.props[name]
	if !ok {
		return nil, &errors.BridgeError{
			Op:   "bridge.Property",
			Kind: errors.KindCall,
			Type: h.info.Name,
			Err:  fmt.Errorf("no property %q", name),
		}
	}
	if lp := h.listProperty(name, p); lp != nil {
		return lp, nil
	}
	field := h.host.Elem().Field(p.Index)
	if p.Kind == introspect.KindValue {
		return variant.ToValue(field.Interface()), nil
	}
	return field.Interface(), nil
}

// SetProperty writes a property and emits its change notification. Writing
// to a registered object-list property is logged and ignored.
func (h *Handler) SetProperty(name string, value any) error {
	p, ok := h.props[name]
	if !ok {
		return &errors.BridgeError{
			Op:   "bridge.SetProperty",
			Kind: errors.KindCall,
			Type: h.info.Name,
			Err:  fmt.Errorf("no property %q", name),
		}
	}
	if h.listProperty(name, p) != nil {
		errors.Report(&errors.BridgeError{
			Op:     "bridge.SetProperty",
			Kind:   errors.KindCall,
			Type:   h.info.Name,
			Member: p.Name,
			Err:    fmt.Errorf("list property %q cannot be assigned as a whole; use append", name),
		})
		return nil
	}
	field := h.host.Elem().Field(p.Index)
	if err := assignValue(field, value); err != nil {
		return &errors.BridgeError{
			Op:     "bridge.SetProperty",
			Kind:   errors.KindCall,
			Type:   h.info.Name,
			Member: p.Name,
			Err:    err,
		}
	}
	h.notifyProperty(name, p)
	return nil
}

// listProperty returns the cached list-property view for p, creating it when
// p is an object list whose element type is registered, and nil otherwise.
func (h *Handler) listProperty(name string, p introspect.Property) *ListProperty {
	if p.Kind != introspect.KindObjectList || !h.registry.typeRegistered(p.Elem) {
		return nil
	}
	if lp, ok := h.listProps[name]; ok {
		return lp
	}
	if h.listProps == nil {
		h.listProps = make(map[string]*ListProperty)
	}
	lp := &ListProperty{handler: h, name: name, prop: p}
	h.listProps[name] = lp
	return lp
}

// notifyProperty emits the property's change signal with its current value.
func (h *Handler) notifyProperty(name string, p introspect.Property) {
	value := h.host.Elem().Field(p.Index).Interface()
	h.emitter.Emit(name+"Changed", value)
}

// Invoke calls a slot by its descriptor name. Methods with a mutator
// declaration go through the bracketed call path.
func (h *Handler) Invoke(name string, args ...any) (any, error) {
	m, ok := h.slots[name]
	if !ok {
		return nil, &errors.BridgeError{
			Op:   "bridge.Invoke",
			Kind: errors.KindCall,
			Type: h.info.Name,
			Err:  fmt.Errorf("no slot %q", name),
		}
	}
	if spec, ok := h.mutators[m.Name]; ok && spec.Kind != MutatorComplete {
		return h.invokeMutator(m, spec, args)
	}
	return h.invokePlain(m, args)
}

// invokePlain calls the host method with panic recovery and the trailing
// error stripped from the value result.
func (h *Handler) invokePlain(m introspect.Method, args []any) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			pe := &errors.PanicError{
				Op:         "bridge.Invoke",
				Value:      r,
				StackTrace: errors.CaptureStack(),
				Timestamp:  time.Now(),
			}
			errors.ReportPanic(pe)
			result, err = nil, &errors.BridgeError{
				Op:     "bridge.Invoke",
				Kind:   errors.KindPanic,
				Type:   h.info.Name,
				Member: m.Name,
				Err:    pe,
			}
		}
	}()
	return h.call(m, args)
}

// invokeMutator runs the bracketed call path: extract row positions from the
// declared parameter names, open the bracket, invoke, and close the bracket
// on every exit path. A host panic is recovered to an error after the
// bracket closes.
func (h *Handler) invokeMutator(m introspect.Method, spec Mutator, args []any) (result any, err error) {
	if h.adapter == nil {
		return nil, &errors.BridgeError{
			Op:     "bridge.Invoke",
			Kind:   errors.KindCall,
			Type:   h.info.Name,
			Member: m.Name,
			Err:    fmt.Errorf("mutator called on a host with no data accessor"),
		}
	}

	defer func() {
		if r := recover(); r != nil {
			pe := &errors.PanicError{
				Op:         "bridge.Invoke",
				Value:      r,
				StackTrace: errors.CaptureStack(),
				Timestamp:  time.Now(),
			}
			errors.ReportPanic(pe)
			result, err = nil, &errors.BridgeError{
				Op:     "bridge.Invoke",
				Kind:   errors.KindPanic,
				Type:   h.info.Name,
				Member: m.Name,
				Err:    pe,
			}
		}
	}()

	positional, err := h.mutatorArgs(m, spec, args)
	if err != nil {
		return nil, err
	}

	switch spec.Kind {
	case MutatorInsert:
		pos := h.adapter.RowCount()
		if i := spec.paramPos(paramIndex); i >= 0 {
			if positional[i] == nil {
				positional[i] = pos
			} else if v, ok := variant.AsInt(positional[i]); ok {
				pos = v
			}
		}
		h.adapter.BeginInsertRows(pos, pos)
		defer h.adapter.EndInsertRows()
		return h.call(m, positional)

	case MutatorRemove:
		idx, err := h.positionArg(m, spec, positional, paramIndex)
		if err != nil {
			return nil, err
		}
		h.adapter.BeginRemoveRows(idx, idx)
		defer h.adapter.EndRemoveRows()
		return h.call(m, positional)

	case MutatorMove:
		from, err := h.positionArg(m, spec, positional, paramFromIndex)
		if err != nil {
			return nil, err
		}
		to, err := h.positionArg(m, spec, positional, paramToIndex)
		if err != nil {
			return nil, err
		}
		// Bracket destinations count in pre-move coordinates, so a
		// forward move lands one past the stated target.
		dest := to
		if to > from {
			dest = to + 1
		}
		h.adapter.BeginMoveRows(from, from, dest)
		defer h.adapter.EndMoveRows()
		return h.call(m, positional)

	case MutatorEdit:
		idx, err := h.positionArg(m, spec, positional, paramIndex)
		if err != nil {
			return nil, err
		}
		result, err := h.call(m, positional)
		if err != nil {
			return nil, err
		}
		h.adapter.DataChanged(idx)
		return result, nil

	case MutatorReset:
		h.adapter.BeginResetModel()
		defer h.adapter.EndResetModel()
		return h.call(m, positional)

	default:
		return h.call(m, positional)
	}
}

// mutatorArgs normalizes the call arguments against the declared parameter
// names. A single map argument whose keys are all declared names is treated
// as the named form; missing named entries stay nil for the caller to
// default or reject.
func (h *Handler) mutatorArgs(m introspect.Method, spec Mutator, args []any) ([]any, error) {
	if len(args) == 1 && len(spec.Params) > 0 {
		if named, ok := args[0].(map[string]any); ok {
			declared := true
			for k := range named {
				if !spec.hasParam(k) {
					declared = false
					break
				}
			}
			if declared {
				out := make([]any, len(spec.Params))
				for i, p := range spec.Params {
					if v, ok := named[p]; ok {
						out[i] = v
					}
				}
				return out, nil
			}
		}
	}
	if len(args) != len(spec.Params) {
		return nil, &errors.BridgeError{
			Op:     "bridge.Invoke",
			Kind:   errors.KindCall,
			Type:   h.info.Name,
			Member: m.Name,
			Err:    fmt.Errorf("expected %d arguments, got %d", len(spec.Params), len(args)),
		}
	}
	out := make([]any, len(args))
	copy(out, args)
	return out, nil
}

// positionArg extracts a required row position from the normalized argument
// list by parameter name.
func (h *Handler) positionArg(m introspect.Method, spec Mutator, positional []any, name string) (int, error) {
	i := spec.paramPos(name)
	if i < 0 || positional[i] == nil {
		return 0, &errors.BridgeError{
			Op:     "bridge.Invoke",
			Kind:   errors.KindCall,
			Type:   h.info.Name,
			Member: m.Name,
			Err:    fmt.Errorf("missing %q argument", name),
		}
	}
	v, ok := variant.AsInt(positional[i])
	if !ok {
		return 0, &errors.BridgeError{
			Op:     "bridge.Invoke",
			Kind:   errors.KindCall,
			Type:   h.info.Name,
			Member: m.Name,
			Err:    fmt.Errorf("%q argument %v is not an index", name, positional[i]),
		}
	}
	return v, nil
}

// call invokes the host method without recovery. The trailing error return,
// when present, becomes the call error; the first remaining return, when
// present, becomes the result.
func (h *Handler) call(m introspect.Method, args []any) (any, error) {
	mv := h.host.Method(m.Index)
	mt := mv.Type()
	if len(args) != mt.NumIn() {
		return nil, &errors.BridgeError{
			Op:     "bridge.Invoke",
			Kind:   errors.KindCall,
			Type:   h.info.Name,
			Member: m.Name,
			Err:    fmt.Errorf("expected %d arguments, got %d", mt.NumIn(), len(args)),
		}
	}
	in := make([]reflect.Value, len(args))
	for i, a := range args {
		v := reflect.New(mt.In(i)).Elem()
		if err := assignValue(v, a); err != nil {
			return nil, &errors.BridgeError{
				Op:     "bridge.Invoke",
				Kind:   errors.KindCall,
				Type:   h.info.Name,
				Member: m.Name,
				Err:    fmt.Errorf("argument %d: %w", i, err),
			}
		}
		in[i] = v
	}
	outs := mv.Call(in)
	if m.ReturnsError {
		last := outs[len(outs)-1]
		if !last.IsNil() {
			return nil, &errors.BridgeError{
				Op:     "bridge.Invoke",
				Kind:   errors.KindCall,
				Type:   h.info.Name,
				Member: m.Name,
				Err:    last.Interface().(error),
			}
		}
		outs = outs[:len(outs)-1]
	}
	if len(outs) == 0 {
		return nil, nil
	}
	switch m.Return {
	case meta.ReturnList, meta.ReturnMap:
		return outs[0].Interface(), nil
	default:
		return variant.ToValue(outs[0].Interface()), nil
	}
}

// CompleteConstruction runs the host's completion hooks and then emits every
// property's change notification once, so bindings established during
// construction observe their final initial values.
func (h *Handler) CompleteConstruction() {
	for name, spec := range h.mutators {
		if spec.Kind != MutatorComplete {
			continue
		}
		if m, ok := h.slots[introspect.MemberName(name)]; ok {
			func() {
				defer errors.Recover("bridge.CompleteConstruction")
				if _, err := h.call(m, nil); err != nil {
					if be, ok := err.(*errors.BridgeError); ok {
						errors.Report(be)
						return
					}
					errors.Report(&errors.BridgeError{
						Op:     "bridge.CompleteConstruction",
						Kind:   errors.KindCall,
						Type:   h.info.Name,
						Member: m.Name,
						Err:    err,
					})
				}
			}()
		}
	}
	for _, p := range h.info.Properties {
		h.notifyProperty(introspect.MemberName(p.Name), p)
	}
}

// Destroy releases the handler's registry state when the engine destroys
// the owning instance. The host object itself is left to the collector.
func (h *Handler) Destroy() {
	h.registry.release(h.Host())
}

// Model delegation. A handler without an adapter reports an empty model.

func (h *Handler) RowCount() int {
	if h.adapter == nil {
		return 0
	}
	return h.adapter.RowCount()
}

func (h *Handler) ColumnCount() int {
	if h.adapter == nil {
		return 0
	}
	return h.adapter.ColumnCount()
}

func (h *Handler) Value(row, role int) any {
	if h.adapter == nil {
		return nil
	}
	return h.adapter.Value(row, role)
}

func (h *Handler) SetValue(row int, value any) bool {
	if h.adapter == nil {
		return false
	}
	return h.adapter.SetValue(row, value)
}

func (h *Handler) RoleNames() map[int]string {
	if h.adapter == nil {
		return nil
	}
	return h.adapter.RoleNames()
}

// assignValue stores a call or property value into dst, converting the
// loosely-typed forms the declarative layer delivers.
func assignValue(dst reflect.Value, value any) error {
	if value == nil {
		dst.Set(reflect.Zero(dst.Type()))
		return nil
	}
	v := reflect.ValueOf(value)
	if v.Type().AssignableTo(dst.Type()) {
		dst.Set(v)
		return nil
	}
	switch dst.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if n, ok := variant.AsInt(value); ok {
			dst.SetInt(int64(n))
			return nil
		}
	case reflect.Float32, reflect.Float64:
		switch x := value.(type) {
		case float64:
			dst.SetFloat(x)
			return nil
		case int:
			dst.SetFloat(float64(x))
			return nil
		}
	}
	if v.Type().ConvertibleTo(dst.Type()) {
		dst.Set(v.Convert(dst.Type()))
		return nil
	}
	return fmt.Errorf("cannot assign %T to %s", value, dst.Type())
}
