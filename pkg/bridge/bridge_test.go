package bridge

import (
	"fmt"
	"strings"
	"testing"

	"github.com/go-drift/bridge/pkg/engine"
	"github.com/go-drift/bridge/pkg/errors"
	"github.com/go-drift/bridge/pkg/meta"
)

// todoList is the flat-list host used across registration tests.
type todoList struct {
	Title string
	items []string
}

func (l *todoList) Data() []string { return l.items }

func (l *todoList) SetItem(index int, value string) error {
	if index < 0 || index >= len(l.items) {
		return fmt.Errorf("index %d out of range", index)
	}
	l.items[index] = value
	return nil
}

func (l *todoList) Add(value string) {
	l.items = append(l.items, value)
}

func (l *todoList) InsertAt(value string, index int) {
	if index < 0 || index > len(l.items) {
		index = len(l.items)
	}
	l.items = append(l.items[:index], append([]string{value}, l.items[index:]...)...)
}

func (l *todoList) RemoveAt(index int) error {
	if index < 0 || index >= len(l.items) {
		return fmt.Errorf("index %d out of range", index)
	}
	l.items = append(l.items[:index], l.items[index+1:]...)
	return nil
}

func (l *todoList) MoveTo(fromIndex, toIndex int) {
	v := l.items[fromIndex]
	l.items = append(l.items[:fromIndex], l.items[fromIndex+1:]...)
	l.items = append(l.items[:toIndex], append([]string{v}, l.items[toIndex:]...)...)
}

func (l *todoList) Rename(index int, value string) error {
	if index < 0 || index >= len(l.items) {
		return fmt.Errorf("index %d out of range", index)
	}
	l.items[index] = value
	return nil
}

func (l *todoList) ReplaceAll(values []string) {
	l.items = values
}

func (l *todoList) Count() int { return len(l.items) }

func (l *todoList) BridgeMutators() Mutators {
	return Mutators{
		"Add":        Insert("value"),
		"InsertAt":   Insert("value", "index"),
		"RemoveAt":   Remove("index"),
		"MoveTo":     Move("fromIndex", "toIndex"),
		"Rename":     Edit("index", "value"),
		"ReplaceAll": Reset("values"),
	}
}

// spyRegistrar records registrations without an engine behind them.
type spyRegistrar struct {
	singletons map[string]engine.Object
	factories  map[string]engine.Factory
	typeCalls  int
	uri        string
	major      int
	minor      int
}

func newSpyRegistrar() *spyRegistrar {
	return &spyRegistrar{
		singletons: make(map[string]engine.Object),
		factories:  make(map[string]engine.Factory),
	}
}

func (s *spyRegistrar) RegisterSingleton(uri string, major, minor int, name string, obj engine.Object) error {
	s.uri, s.major, s.minor = uri, major, minor
	s.singletons[name] = obj
	return nil
}

func (s *spyRegistrar) RegisterType(uri string, major, minor int, name string, factory engine.Factory) error {
	s.uri, s.major, s.minor = uri, major, minor
	s.typeCalls++
	s.factories[name] = factory
	return nil
}

// spyErrors collects reports instead of logging them.
type spyErrors struct {
	errs   []*errors.BridgeError
	panics []*errors.PanicError
}

func (s *spyErrors) HandleError(err *errors.BridgeError) { s.errs = append(s.errs, err) }
func (s *spyErrors) HandlePanic(err *errors.PanicError) { s.panics = append(s.panics, err) }

func captureErrors(t *testing.T) *spyErrors {
	t.Helper()
	spy := &spyErrors{}
	errors.SetHandler(spy)
	t.Cleanup(func() { errors.SetHandler(nil) })
	return spy
}

func TestRegisterInstanceSynthesizesDescriptor(t *testing.T) {
	captureErrors(t)
	reg := newSpyRegistrar()
	r, err := NewRegistry(reg, WithURI("Tasks"), WithVersion("2.1"))
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	host := &todoList{items: []string{"a"}}
	if err := r.RegisterInstance(host, WithDefaultProperty("title")); err != nil {
		t.Fatalf("RegisterInstance: %v", err)
	}

	if reg.uri != "Tasks" || reg.major != 2 || reg.minor != 1 {
		t.Errorf("registered under %s %d.%d", reg.uri, reg.major, reg.minor)
	}
	obj, ok := reg.singletons["todoList"]
	if !ok {
		t.Fatal("singleton todoList not registered")
	}

	desc := obj.Descriptor()
	// Add, InsertAt, RemoveAt, MoveTo, Rename, ReplaceAll, Count.
	if got := desc.SlotCount(); got != 7 {
		t.Errorf("expected 7 slots, got %d", got)
	}
	if got := desc.SignalCount(); got != 1 {
		t.Errorf("expected 1 signal, got %d", got)
	}
	if got := desc.PropertyCount(); got != 1 {
		t.Errorf("expected 1 property, got %d", got)
	}

	slot, ok := desc.SlotByName("insertAt")
	if !ok {
		t.Fatal("slot insertAt not found")
	}
	if slot.ParamCount != 2 {
		t.Errorf("insertAt: expected 2 params, got %d", slot.ParamCount)
	}
	slot, _ = desc.SlotByName("count")
	if slot.Return != meta.ReturnValue {
		t.Errorf("count: expected value return, got %v", slot.Return)
	}

	p, ok := desc.PropertyByName("title")
	if !ok {
		t.Fatal("property title not found")
	}
	if got := desc.Signal(p.Notify).Name; got != "titleChanged" {
		t.Errorf("expected notify titleChanged, got %q", got)
	}

	if desc.ClassInfo(meta.InfoElement) != "true" {
		t.Error("missing element marker")
	}
	if desc.ClassInfo(meta.InfoParserStatus) != "true" {
		t.Error("missing parser-status marker")
	}
	if desc.ClassInfo(meta.InfoDefaultProperty) != "title" {
		t.Errorf("expected default property title, got %q", desc.ClassInfo(meta.InfoDefaultProperty))
	}
}

type noAccessor struct {
	Title string
}

func (n *noAccessor) Refresh() {}

func TestRegisterInstanceRequiresData(t *testing.T) {
	captureErrors(t)
	r, _ := NewRegistry(newSpyRegistrar())

	err := r.RegisterInstance(&noAccessor{})
	if err == nil {
		t.Fatal("expected error for host without a data accessor")
	}
	if !strings.Contains(err.Error(), "Data") {
		t.Errorf("error should name the missing accessor: %v", err)
	}
}

type scalarAccessor struct{}

func (s *scalarAccessor) Data() int { return 7 }

func TestRegisterInstanceRejectsUninferrableShape(t *testing.T) {
	captureErrors(t)
	r, _ := NewRegistry(newSpyRegistrar())

	if err := r.RegisterInstance(&scalarAccessor{}); err == nil {
		t.Error("expected error for uninferrable data shape")
	}
}

func TestRegisterTypeIdempotent(t *testing.T) {
	spy := captureErrors(t)
	reg := newSpyRegistrar()
	r, _ := NewRegistry(reg)

	if err := r.RegisterType((*todoList)(nil)); err != nil {
		t.Fatalf("first RegisterType: %v", err)
	}
	if err := r.RegisterType((*todoList)(nil)); err != nil {
		t.Fatalf("second RegisterType must not fail: %v", err)
	}

	if reg.typeCalls != 1 {
		t.Errorf("expected 1 engine registration, got %d", reg.typeCalls)
	}
	if len(spy.errs) != 1 || spy.errs[0].Kind != errors.KindRegistration {
		t.Errorf("expected 1 registration warning, got %+v", spy.errs)
	}
}

func TestRegisterTypeRejectsBadPrototype(t *testing.T) {
	captureErrors(t)
	r, _ := NewRegistry(newSpyRegistrar())

	if err := r.RegisterType(42); err == nil {
		t.Error("expected error for non-pointer prototype")
	}
	if err := r.RegisterType(todoList{}); err == nil {
		t.Error("expected error for non-pointer prototype")
	}
}

func TestVersionValidation(t *testing.T) {
	tests := []struct {
		version string
		wantErr bool
	}{
		{"1.0", false},
		{"2.15", false},
		{"1", true},
		{"1.0.0", true},
		{"banana", true},
		{"1.x", true},
	}
	for _, tt := range tests {
		t.Run(tt.version, func(t *testing.T) {
			_, err := NewRegistry(newSpyRegistrar(), WithVersion(tt.version))
			if tt.wantErr && err == nil {
				t.Errorf("expected error for version %q", tt.version)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error for version %q: %v", tt.version, err)
			}
		})
	}
}

func TestPropertyReadWrite(t *testing.T) {
	captureErrors(t)
	reg := newSpyRegistrar()
	r, _ := NewRegistry(reg)
	host := &todoList{Title: "Groceries", items: []string{"a"}}
	if err := r.RegisterInstance(host); err != nil {
		t.Fatalf("RegisterInstance: %v", err)
	}
	h := reg.singletons["todoList"]

	got, err := h.Property("title")
	if err != nil {
		t.Fatalf("Property: %v", err)
	}
	if got != "Groceries" {
		t.Errorf("expected Groceries, got %v", got)
	}

	var notified []any
	h.Connect("titleChanged", func(args ...any) { notified = append(notified, args...) })

	if err := h.SetProperty("title", "Chores"); err != nil {
		t.Fatalf("SetProperty: %v", err)
	}
	if host.Title != "Chores" {
		t.Errorf("host field not updated: %q", host.Title)
	}
	if len(notified) != 1 || notified[0] != "Chores" {
		t.Errorf("expected one titleChanged with Chores, got %v", notified)
	}

	if _, err := h.Property("missing"); err == nil {
		t.Error("expected error for unknown property")
	}
	if err := h.SetProperty("missing", 1); err == nil {
		t.Error("expected error for unknown property write")
	}
	if err := h.SetProperty("title", struct{}{}); err == nil {
		t.Error("expected error for unassignable value")
	}
}

func TestInvokePlainSlot(t *testing.T) {
	captureErrors(t)
	reg := newSpyRegistrar()
	r, _ := NewRegistry(reg)
	r.RegisterInstance(&todoList{items: []string{"a", "b"}})
	h := reg.singletons["todoList"]

	got, err := h.Invoke("count")
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if got != 2 {
		t.Errorf("expected 2, got %v", got)
	}

	if _, err := h.Invoke("missing"); err == nil {
		t.Error("expected error for unknown slot")
	}
	if _, err := h.Invoke("count", 1); err == nil {
		t.Error("expected error for wrong arity")
	}
}

func TestDestroyReleasesIdentityMap(t *testing.T) {
	captureErrors(t)
	eng := engine.New()
	r, err := NewRegistry(eng, WithURI("Tasks"))
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	if err := r.RegisterType((*todoList)(nil)); err != nil {
		t.Fatalf("RegisterType: %v", err)
	}

	var instances []*engine.Instance
	for i := 0; i < 100; i++ {
		inst, err := eng.Instantiate("Tasks", "todoList")
		if err != nil {
			t.Fatalf("Instantiate %d: %v", i, err)
		}
		if err := inst.CompleteConstruction(); err != nil {
			t.Fatalf("CompleteConstruction %d: %v", i, err)
		}
		instances = append(instances, inst)
	}

	r.mu.Lock()
	live := len(r.handlers)
	r.mu.Unlock()
	if live != 100 {
		t.Fatalf("expected 100 live handlers, got %d", live)
	}

	for _, inst := range instances {
		inst.Destroy()
	}
	r.mu.Lock()
	live = len(r.handlers)
	r.mu.Unlock()
	if live != 0 {
		t.Errorf("handlers retained after destruction: %d", live)
	}

	// A second destroy changes nothing.
	instances[0].Destroy()
}

func TestEndToEndTypeInstantiation(t *testing.T) {
	captureErrors(t)
	eng := engine.New()
	r, err := NewRegistry(eng, WithURI("Tasks"))
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	if err := r.RegisterType((*todoList)(nil)); err != nil {
		t.Fatalf("RegisterType: %v", err)
	}

	inst, err := eng.Instantiate("Tasks", "todoList")
	if err != nil {
		t.Fatalf("Instantiate: %v", err)
	}

	var sweeps int
	inst.Connect("titleChanged", func(...any) { sweeps++ })

	if err := inst.SetProperty("title", "Today"); err != nil {
		t.Fatalf("SetProperty: %v", err)
	}
	if err := inst.CompleteConstruction(); err != nil {
		t.Fatalf("CompleteConstruction: %v", err)
	}
	// One notification from the write, one from the completion sweep.
	if sweeps != 2 {
		t.Errorf("expected 2 title notifications, got %d", sweeps)
	}

	if _, err := inst.Invoke("add", "x"); err != nil {
		t.Fatalf("Invoke add: %v", err)
	}

	m, ok := inst.Object.(engine.Model)
	if !ok {
		t.Fatal("instance does not expose the model surface")
	}
	if got := m.RowCount(); got != 1 {
		t.Fatalf("expected 1 row, got %d", got)
	}
	if got := m.Value(0, meta.RoleDisplay); got != "x" {
		t.Errorf("expected x, got %v", got)
	}
	if !m.SetValue(0, "y") {
		t.Fatal("SetValue failed")
	}
	if got := m.Value(0, meta.RoleDisplay); got != "y" {
		t.Errorf("expected y, got %v", got)
	}
}
