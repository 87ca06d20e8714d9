package bridge

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadManifestAbsentFile(t *testing.T) {
	m, err := LoadManifest(t.TempDir())
	if err != nil {
		t.Fatalf("absent manifest must not fail: %v", err)
	}
	if m.URI != "" || m.Version != "" || len(m.Types) != 0 {
		t.Errorf("expected zero manifest, got %+v", m)
	}
}

func TestLoadManifest(t *testing.T) {
	dir := t.TempDir()
	data := []byte(`uri: Tasks
version: "2.0"
types:
  todoList:
    name: TodoModel
    default_property: title
`)
	if err := os.WriteFile(filepath.Join(dir, "bridge.yaml"), data, 0o644); err != nil {
		t.Fatal(err)
	}

	m, err := LoadManifest(dir)
	if err != nil {
		t.Fatalf("LoadManifest: %v", err)
	}
	if m.URI != "Tasks" || m.Version != "2.0" {
		t.Errorf("unexpected import settings: %+v", m)
	}
	tm := m.Types["todoList"]
	if tm.Name != "TodoModel" || tm.DefaultProperty != "title" {
		t.Errorf("unexpected type overrides: %+v", tm)
	}
}

func TestLoadManifestMalformed(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "bridge.yaml"), []byte("uri: [broken"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadManifest(dir); err == nil {
		t.Error("expected error for malformed manifest")
	}
}

func TestManifestAppliesRegistryDefaults(t *testing.T) {
	captureErrors(t)
	reg := newSpyRegistrar()
	m := Manifest{
		URI:     "Tasks",
		Version: "3.2",
		Types: map[string]TypeManifest{
			"todoList": {Name: "TodoModel", DefaultProperty: "title"},
		},
	}
	r, err := NewRegistry(reg, WithManifest(m))
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	if err := r.RegisterInstance(&todoList{items: []string{"a"}}); err != nil {
		t.Fatalf("RegisterInstance: %v", err)
	}
	if reg.uri != "Tasks" || reg.major != 3 || reg.minor != 2 {
		t.Errorf("registered under %s %d.%d", reg.uri, reg.major, reg.minor)
	}
	obj, ok := reg.singletons["TodoModel"]
	if !ok {
		t.Fatal("manifest name override not applied")
	}
	if got := obj.Descriptor().ClassInfo("DefaultProperty"); got != "title" {
		t.Errorf("expected default property title, got %q", got)
	}

	// Explicit options win over the manifest.
	r2, _ := NewRegistry(newSpyRegistrar(), WithManifest(m), WithURI("Override"))
	if r2.URI() != "Override" {
		t.Errorf("expected Override, got %q", r2.URI())
	}
}
