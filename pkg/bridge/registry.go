// Package bridge exposes host Go objects to a declarative engine.
//
// A Registry owns the identity maps and per-type state for one engine
// connection. Host objects register either as live singletons
// (RegisterInstance) or as instantiable types (RegisterType); in both cases
// the registry introspects the host type once, synthesizes an immutable
// structural descriptor, and wraps each host instance in a Handler that
// implements the engine's object surface.
package bridge

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/mod/semver"

	"github.com/go-drift/bridge/pkg/engine"
	"github.com/go-drift/bridge/pkg/errors"
	"github.com/go-drift/bridge/pkg/introspect"
	"github.com/go-drift/bridge/pkg/meta"
	"github.com/go-drift/bridge/pkg/model"
)

// attachment is the per-type state shared by every instance of a registered
// type: one descriptor, one member table, one mutator table.
type attachment struct {
	name            string
	desc            *meta.Object
	info            *introspect.TypeInfo
	mutators        Mutators
	defaultProperty string
}

// Registry connects host objects to one engine registrar.
type Registry struct {
	reg      engine.Registrar
	uri      string
	version  string
	major    int
	minor    int
	manifest Manifest

	// mu serializes registry state the way the host runtime's global
	// execution lock would. It is never held across engine callbacks.
	mu          sync.Mutex
	handlers    map[any]*Handler
	attachments map[reflect.Type]*attachment
	infoCache   map[reflect.Type]*introspect.TypeInfo
}

// Option configures a Registry.
type Option func(*Registry)

// WithURI sets the declarative import URI registrations appear under.
func WithURI(uri string) Option {
	return func(r *Registry) { r.uri = uri }
}

// WithVersion sets the import version as a "major.minor" string.
func WithVersion(version string) Option {
	return func(r *Registry) { r.version = version }
}

// WithManifest applies manifest defaults for the URI, version, and per-type
// overrides. Explicit options take precedence over the manifest.
func WithManifest(m Manifest) Option {
	return func(r *Registry) { r.manifest = m }
}

// NewRegistry creates a registry bound to reg. The default import is
// "backend" version "1.0"; the version must parse as major.minor.
func NewRegistry(reg engine.Registrar, opts ...Option) (*Registry, error) {
	if reg == nil {
		return nil, fmt.Errorf("bridge: nil registrar")
	}
	r := &Registry{
		reg:         reg,
		handlers:    make(map[any]*Handler),
		attachments: make(map[reflect.Type]*attachment),
		infoCache:   make(map[reflect.Type]*introspect.TypeInfo),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.uri == "" {
		r.uri = r.manifest.URI
	}
	if r.uri == "" {
		r.uri = "backend"
	}
	if r.version == "" {
		r.version = r.manifest.Version
	}
	if r.version == "" {
		r.version = "1.0"
	}
	var err error
	r.major, r.minor, err = parseVersion(r.version)
	if err != nil {
		return nil, &errors.BridgeError{
			Op:   "bridge.NewRegistry",
			Kind: errors.KindRegistration,
			Err:  err,
		}
	}
	return r, nil
}

// URI returns the declarative import URI registrations appear under.
func (r *Registry) URI() string { return r.uri }

// RegisterOption configures one registration.
type RegisterOption func(*registerConfig)

type registerConfig struct {
	name            string
	defaultProperty string
}

// WithName overrides the declarative type name, which defaults to the host
// struct type's name.
func WithName(name string) RegisterOption {
	return func(c *registerConfig) { c.name = name }
}

// WithDefaultProperty names the property children assign to implicitly.
func WithDefaultProperty(name string) RegisterOption {
	return func(c *registerConfig) { c.defaultProperty = name }
}

// RegisterInstance exposes a live host object as a shared singleton. The
// host must expose a data accessor with an inferrable shape; the adapter is
// built before descriptor synthesis so every engine-visible query goes
// through it from the first access.
func (r *Registry) RegisterInstance(host any, opts ...RegisterOption) error {
	const op = "bridge.RegisterInstance"

	info, err := r.inspect(reflect.TypeOf(host))
	if err != nil {
		return r.fail(op, errors.KindIntrospection, "", err)
	}
	cfg := r.resolveConfig(info.Name, opts)

	if !info.HasData {
		return r.fail(op, errors.KindRegistration, info.Name,
			fmt.Errorf("instance registration requires a %s accessor exposing the object's rows",
				introspect.DataMethod))
	}
	shape := model.Infer(host)
	if shape == model.ShapeUnknown {
		return r.fail(op, errors.KindRegistration, info.Name,
			fmt.Errorf("could not infer a data shape from %s", introspect.DataMethod))
	}
	adapter := model.New(host, shape)

	muts, err := resolveMutators(host, info)
	if err != nil {
		return r.fail(op, errors.KindRegistration, info.Name, err)
	}

	desc, err := synthesize(info, cfg.defaultProperty)
	if err != nil {
		return r.fail(op, errors.KindRegistration, info.Name, err)
	}

	h := newHandler(r, host, info, desc, adapter, muts)
	if err := r.reg.RegisterSingleton(r.uri, r.major, r.minor, cfg.name, h); err != nil {
		return r.fail(op, errors.KindEngine, info.Name, err)
	}

	r.mu.Lock()
	r.handlers[host] = h
	r.mu.Unlock()
	return nil
}

// RegisterType exposes a host type for per-use instantiation from the
// declarative layer. prototype is a pointer to the host struct type and may
// be nil; only its type is consulted. Registering the same type twice is a
// reported warning, not an error, and leaves the first registration intact.
func (r *Registry) RegisterType(prototype any, opts ...RegisterOption) error {
	const op = "bridge.RegisterType"

	t := reflect.TypeOf(prototype)
	if t == nil || t.Kind() != reflect.Pointer || t.Elem().Kind() != reflect.Struct {
		return r.fail(op, errors.KindRegistration, "",
			fmt.Errorf("prototype %T is not a pointer to a struct type", prototype))
	}

	r.mu.Lock()
	_, exists := r.attachments[t]
	r.mu.Unlock()
	if exists {
		errors.Report(&errors.BridgeError{
			Op:   op,
			Kind: errors.KindRegistration,
			Type: t.Elem().Name(),
			Err:  fmt.Errorf("type already registered; keeping the first registration"),
		})
		return nil
	}

	info, err := r.inspect(t)
	if err != nil {
		return r.fail(op, errors.KindIntrospection, t.Elem().Name(), err)
	}
	cfg := r.resolveConfig(info.Name, opts)

	// Mutator declarations come from a throwaway instance; the prototype
	// pointer may be nil.
	muts, err := resolveMutators(reflect.New(t.Elem()).Interface(), info)
	if err != nil {
		return r.fail(op, errors.KindRegistration, info.Name, err)
	}

	desc, err := synthesize(info, cfg.defaultProperty)
	if err != nil {
		return r.fail(op, errors.KindRegistration, info.Name, err)
	}

	att := &attachment{
		name:            cfg.name,
		desc:            desc,
		info:            info,
		mutators:        muts,
		defaultProperty: cfg.defaultProperty,
	}
	r.mu.Lock()
	r.attachments[t] = att
	r.mu.Unlock()

	factory := func() (engine.Object, error) {
		return r.newInstance(t, att)
	}
	if err := r.reg.RegisterType(r.uri, r.major, r.minor, cfg.name, factory); err != nil {
		r.mu.Lock()
		delete(r.attachments, t)
		r.mu.Unlock()
		return r.fail(op, errors.KindEngine, info.Name, err)
	}
	return nil
}

// newInstance creates one host-backed object for a declarative
// instantiation of a registered type.
func (r *Registry) newInstance(t reflect.Type, att *attachment) (engine.Object, error) {
	host := reflect.New(t.Elem()).Interface()

	var adapter *model.Adapter
	if att.info.HasData {
		adapter = model.New(host, model.Infer(host))
	}

	h := newHandler(r, host, att.info, att.desc, adapter, att.mutators)
	r.mu.Lock()
	r.handlers[host] = h
	r.mu.Unlock()
	return h, nil
}

// release erases the identity mapping for host. Called from the handler's
// destruction hook when the engine tears an instance down.
func (r *Registry) release(host any) {
	r.mu.Lock()
	delete(r.handlers, host)
	r.mu.Unlock()
}

// Handler returns the handler wrapping host, if host is registered.
func (r *Registry) Handler(host any) (*Handler, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.handlers[host]
	return h, ok
}

// typeRegistered reports whether t (a pointer-to-struct type) has a type
// registration.
func (r *Registry) typeRegistered(t reflect.Type) bool {
	if t == nil {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.attachments[t]
	return ok
}

// hostFor unwraps an engine-visible object back to its host object.
func (r *Registry) hostFor(obj any) any {
	switch x := obj.(type) {
	case *Handler:
		return x.Host()
	case interface{ Host() any }:
		return x.Host()
	default:
		return obj
	}
}

// inspect returns the cached member table for t, running the introspection
// pass on first use.
func (r *Registry) inspect(t reflect.Type) (*introspect.TypeInfo, error) {
	r.mu.Lock()
	if info, ok := r.infoCache[t]; ok {
		r.mu.Unlock()
		return info, nil
	}
	r.mu.Unlock()

	info, err := introspect.Inspect(t)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	r.infoCache[t] = info
	r.mu.Unlock()
	return info, nil
}

// resolveConfig folds manifest overrides and registration options into the
// final name and default property for one registration.
func (r *Registry) resolveConfig(typeName string, opts []RegisterOption) registerConfig {
	cfg := registerConfig{name: typeName}
	if tm, ok := r.manifest.Types[typeName]; ok {
		if tm.Name != "" {
			cfg.name = tm.Name
		}
		if tm.DefaultProperty != "" {
			cfg.defaultProperty = tm.DefaultProperty
		}
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

func (r *Registry) fail(op string, kind errors.ErrorKind, typeName string, err error) error {
	be := &errors.BridgeError{Op: op, Kind: kind, Type: typeName, Err: err}
	errors.Report(be)
	return be
}

// resolveMutators collects and validates the host's mutator declarations.
func resolveMutators(host any, info *introspect.TypeInfo) (Mutators, error) {
	hm, ok := host.(HasMutators)
	if !ok {
		return nil, nil
	}
	muts := hm.BridgeMutators()
	if err := validateMutators(info, muts); err != nil {
		return nil, err
	}
	return muts, nil
}

// synthesize builds the immutable descriptor for one member table: one slot
// per callable, one change signal plus one property per field, and the
// standard marker entries. The builder finalizes exactly once.
func synthesize(info *introspect.TypeInfo, defaultProperty string) (*meta.Object, error) {
	b := meta.NewBuilder(info.Name)
	for _, m := range info.Methods {
		if _, err := b.AddSlot(introspect.MemberName(m.Name), m.ParamCount, m.Return); err != nil {
			return nil, err
		}
	}
	for _, p := range info.Properties {
		name := introspect.MemberName(p.Name)
		sig, err := b.AddSignal(name + "Changed")
		if err != nil {
			return nil, err
		}
		if _, err := b.AddProperty(name, p.Kind.TypeName(), sig); err != nil {
			return nil, err
		}
	}
	if err := b.AddClassInfo(meta.InfoElement, "true"); err != nil {
		return nil, err
	}
	if err := b.AddClassInfo(meta.InfoParserStatus, "true"); err != nil {
		return nil, err
	}
	if defaultProperty != "" {
		if err := b.AddClassInfo(meta.InfoDefaultProperty, defaultProperty); err != nil {
			return nil, err
		}
	}
	return b.Build()
}

// parseVersion splits a "major.minor" version string, rejecting anything
// that is not a valid two-segment semantic version prefix.
func parseVersion(v string) (major, minor int, err error) {
	if strings.Count(v, ".") != 1 || !semver.IsValid("v"+v) {
		return 0, 0, fmt.Errorf("version %q is not a major.minor version", v)
	}
	parts := strings.SplitN(v, ".", 2)
	major, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("version %q: %w", v, err)
	}
	minor, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, fmt.Errorf("version %q: %w", v, err)
	}
	return major, minor, nil
}
