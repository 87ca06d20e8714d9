package bridge

import (
	"testing"

	"github.com/go-drift/bridge/pkg/engine"
)

type note struct {
	Text string
}

type folder struct {
	Name  string
	Notes []*note
}

func setupFolder(t *testing.T) (*engine.Engine, *Registry, *engine.Instance) {
	t.Helper()
	eng := engine.New()
	r, err := NewRegistry(eng, WithURI("Notes"))
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	if err := r.RegisterType((*note)(nil)); err != nil {
		t.Fatalf("RegisterType note: %v", err)
	}
	if err := r.RegisterType((*folder)(nil), WithDefaultProperty("notes")); err != nil {
		t.Fatalf("RegisterType folder: %v", err)
	}
	inst, err := eng.Instantiate("Notes", "folder")
	if err != nil {
		t.Fatalf("Instantiate: %v", err)
	}
	return eng, r, inst
}

func TestListPropertyAppendAndRead(t *testing.T) {
	captureErrors(t)
	eng, _, inst := setupFolder(t)

	got, err := inst.Property("notes")
	if err != nil {
		t.Fatalf("Property: %v", err)
	}
	lp, ok := got.(*ListProperty)
	if !ok {
		t.Fatalf("expected a list-property view, got %T", got)
	}
	if lp.Count() != 0 {
		t.Fatalf("expected empty list, got %d", lp.Count())
	}

	var changes int
	inst.Connect("notesChanged", func(...any) { changes++ })

	// Append accepts the engine-visible object and resolves it back to
	// the host pointer.
	child, err := eng.Instantiate("Notes", "note")
	if err != nil {
		t.Fatalf("Instantiate note: %v", err)
	}
	if err := child.SetProperty("text", "first"); err != nil {
		t.Fatalf("SetProperty: %v", err)
	}
	if err := lp.Append(child.Object); err != nil {
		t.Fatalf("Append: %v", err)
	}

	if lp.Count() != 1 {
		t.Fatalf("expected 1 element, got %d", lp.Count())
	}
	host := inst.Object.(*Handler).Host().(*folder)
	if len(host.Notes) != 1 || host.Notes[0].Text != "first" {
		t.Fatalf("host slice not extended: %+v", host.Notes)
	}

	// At resolves a registered element back to its engine object.
	elem, ok := lp.At(0).(*Handler)
	if !ok {
		t.Fatalf("expected handler element, got %T", lp.At(0))
	}
	if text, _ := elem.Property("text"); text != "first" {
		t.Errorf("expected first, got %v", text)
	}
	if lp.At(5) != nil {
		t.Error("out-of-range At must return nil")
	}

	lp.Clear()
	if lp.Count() != 0 {
		t.Errorf("expected empty list after Clear, got %d", lp.Count())
	}
	if changes != 2 {
		t.Errorf("expected 2 change notifications, got %d", changes)
	}
}

func TestListPropertyAppendHostPointer(t *testing.T) {
	captureErrors(t)
	_, _, inst := setupFolder(t)

	got, _ := inst.Property("notes")
	lp := got.(*ListProperty)

	if err := lp.Append(&note{Text: "raw"}); err != nil {
		t.Fatalf("Append host pointer: %v", err)
	}
	if lp.Count() != 1 {
		t.Errorf("expected 1 element, got %d", lp.Count())
	}

	if err := lp.Append("not a note"); err == nil {
		t.Error("expected error appending a foreign value")
	}
}

func TestListPropertyWholeAssignmentIgnored(t *testing.T) {
	spyErr := captureErrors(t)
	_, _, inst := setupFolder(t)

	if err := inst.SetProperty("notes", []*note{{Text: "x"}}); err != nil {
		t.Fatalf("whole assignment must not fail: %v", err)
	}
	host := inst.Object.(*Handler).Host().(*folder)
	if len(host.Notes) != 0 {
		t.Errorf("whole assignment must be ignored, got %+v", host.Notes)
	}
	if len(spyErr.errs) == 0 {
		t.Error("expected the ignored write to be reported")
	}
}

func TestUnregisteredElementListStaysPlain(t *testing.T) {
	captureErrors(t)
	eng := engine.New()
	r, _ := NewRegistry(eng)
	// folder alone: note is not registered, so Notes reads as a plain slice.
	if err := r.RegisterType((*folder)(nil)); err != nil {
		t.Fatalf("RegisterType: %v", err)
	}
	inst, err := eng.Instantiate("backend", "folder")
	if err != nil {
		t.Fatalf("Instantiate: %v", err)
	}

	got, err := inst.Property("notes")
	if err != nil {
		t.Fatalf("Property: %v", err)
	}
	if _, ok := got.(*ListProperty); ok {
		t.Error("unregistered element type must not produce a list-property view")
	}
}
