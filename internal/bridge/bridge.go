// Package bridge keeps the engine's proxies and the form subsystem's mirror
// proxies in sync.
//
// The bridge registers a definition for every native type it meets, binds
// every native object to exactly one mirror proxy, and moves property values
// between the two through an Adapter. It also reacts to active selection
// changes and delete requests coming from the UI.
//
// A Bridge is not safe for concurrent use. Every call, including the ones
// made from controller notifications, must run on the same goroutine; the
// transport funnels them through a dispatch.Loop.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-logr/logr"
	"go.uber.org/multierr"

	"github.com/matthewbaird/pvbridge/internal/forms"
	"github.com/matthewbaird/pvbridge/internal/journal"
	"github.com/matthewbaird/pvbridge/internal/metrics"
	"github.com/matthewbaird/pvbridge/internal/native"
	"github.com/matthewbaird/pvbridge/internal/schema"
	"github.com/matthewbaird/pvbridge/internal/uistate"
)

// ErrNotBound is returned when a native id has no mirror proxy.
var ErrNotBound = errors.New("bridge: native object not bound")

const handlerOwner = "bridge"

// Forms is the part of the form subsystem the bridge drives.
// *forms.Manager implements it.
type Forms interface {
	HasDefinition(typ string) bool
	LoadModel(def *schema.Definition) error
	LoadUI(layout *schema.Layout) error
	Create(typ string, obj native.Object, adapter forms.ObjectAdapter) (*forms.Proxy, error)
	Get(id forms.ID) *forms.Proxy
	Delete(id forms.ID) error
	Fetch(id forms.ID) error
	OnCommit(l forms.CommitListener)
	SetAdvanced(advanced bool)
}

var _ Forms = (*forms.Manager)(nil)

// Options configures a Bridge. The zero value is usable.
type Options struct {
	Logger logr.Logger
	// DefinitionsDir, when set, receives a copy of every registered model
	// and layout, at <dir>/<group>/<name>.yaml and .xml.
	DefinitionsDir string
	Metrics        *metrics.Metrics
	Journal        journal.Store
	// Settings lists the settings proxies published by
	// UpdateActiveProxies. Nil means DefaultSettings.
	Settings []Setting
}

// Bridge owns the identity map and the definition bookkeeping.
type Bridge struct {
	engine       native.Engine
	forms        Forms
	introspector schema.Introspector
	state        *uistate.State
	ctrl         *uistate.Controller

	logger         logr.Logger
	metrics        *metrics.Metrics
	journal        journal.Store
	definitionsDir string
	settings       []Setting

	adapter *Adapter
	ids     *identityMap
	// defining holds the types whose definition is being derived.
	defining map[string]bool

	// depth counts nested EnsureBinding calls.
	depth int
	// refetch holds proxies that saw a pending reference while fetching.
	refetch  []forms.ID
	flushing bool
	closed   bool
}

// New creates a bridge and registers its controller handlers: data and
// active proxy changes run OnActiveChange, active proxy refreshes run
// RefreshActiveProxies. A nil introspector uses schema.Reflect.
func New(engine native.Engine, fm Forms, introspector schema.Introspector, state *uistate.State, ctrl *uistate.Controller, opts Options) *Bridge {
	if introspector == nil {
		introspector = schema.Reflect
	}
	if opts.Logger.GetSink() == nil {
		opts.Logger = logr.Discard()
	}
	if opts.Settings == nil {
		opts.Settings = DefaultSettings
	}
	b := &Bridge{
		engine:         engine,
		forms:          fm,
		introspector:   introspector,
		state:          state,
		ctrl:           ctrl,
		logger:         opts.Logger.WithName("bridge"),
		metrics:        opts.Metrics,
		journal:        opts.Journal,
		definitionsDir: opts.DefinitionsDir,
		settings:       opts.Settings,
		ids:            newIdentityMap(),
		defining:       make(map[string]bool),
	}
	b.adapter = &Adapter{bridge: b}

	fm.OnCommit(b.onCommit)
	ctrl.On(uistate.DataChanged, handlerOwner, b.OnActiveChange)
	ctrl.On(uistate.ActiveProxyChanged, handlerOwner, b.OnActiveChange)
	ctrl.On(uistate.RefreshActiveProxies, handlerOwner, b.RefreshActiveProxies)
	state.Watch(uistate.UIAdvanced, func(v any) {
		advanced, _ := v.(bool)
		if err := b.SetAdvanced(advanced); err != nil {
			b.logger.Error(err, "Switching advanced mode failed")
		}
	})

	state.Set(uistate.SourceID, forms.NoID)
	state.Set(uistate.RepresentationID, forms.NoID)
	return b
}

// Close unregisters the controller handlers. The bridge must not be used
// afterwards.
func (b *Bridge) Close() {
	b.closed = true
	b.ctrl.Off(handlerOwner)
}

// Adapter returns the object adapter attached to every mirror proxy.
func (b *Bridge) Adapter() *Adapter { return b.adapter }

// Lookup returns the binding state of a native id.
func (b *Bridge) Lookup(nativeID string) (State, forms.ID) {
	return b.ids.lookup(nativeID)
}

// NativeID returns the native id bound to a mirror id.
func (b *Bridge) NativeID(id forms.ID) (string, bool) {
	return b.ids.nativeOf(id)
}

// Len returns the number of bound native objects.
func (b *Bridge) Len() int { return b.ids.len() }

// Handle makes sure obj has a definition and a mirror proxy, and returns the
// mirror id. A nil obj, or one whose binding is still pending, yields
// forms.NoID.
func (b *Bridge) Handle(obj native.Object) (forms.ID, error) {
	obj = native.Unwrap(obj)
	if obj == nil {
		return forms.NoID, nil
	}
	if err := b.EnsureDefinition(obj); err != nil {
		return forms.NoID, err
	}
	return b.EnsureBinding(obj)
}

// EnsureDefinition registers the definition and layout of obj's type, after
// the ones of its sub-objects. Registered types are never derived again.
func (b *Bridge) EnsureDefinition(obj native.Object) error {
	obj = native.Unwrap(obj)
	if obj == nil {
		return nil
	}
	typ := native.TypeOf(obj)
	if b.forms.HasDefinition(typ) || b.defining[typ] {
		return nil
	}
	b.defining[typ] = true
	defer delete(b.defining, typ)

	for _, sub := range native.SubObjects(obj) {
		if err := b.EnsureDefinition(sub); err != nil {
			return err
		}
	}

	def, err := b.introspector.Introspect(obj)
	if err != nil {
		return fmt.Errorf("introspecting %s: %w", typ, err)
	}
	layout := schema.LayoutOf(def)
	if err := b.forms.LoadModel(def); err != nil {
		return fmt.Errorf("loading model of %s: %w", typ, err)
	}
	if err := b.forms.LoadUI(layout); err != nil {
		return fmt.Errorf("loading layout of %s: %w", typ, err)
	}
	b.metrics.DefinitionRegistered()
	b.logger.V(2).Info("Registered definition", "type", typ, "properties", len(def.Properties))

	if b.definitionsDir != "" {
		return b.writeDefinition(typ, def, layout)
	}
	return nil
}

func (b *Bridge) writeDefinition(typ string, def *schema.Definition, layout *schema.Layout) error {
	model, err := def.MarshalModel()
	if err != nil {
		return fmt.Errorf("rendering model of %s: %w", typ, err)
	}
	ui, err := layout.Marshal()
	if err != nil {
		return fmt.Errorf("rendering layout of %s: %w", typ, err)
	}
	base := filepath.Join(append([]string{b.definitionsDir}, native.SplitType(typ)...)...)
	if err := os.MkdirAll(filepath.Dir(base), 0o755); err != nil {
		return fmt.Errorf("creating definitions directory: %w", err)
	}
	if err := os.WriteFile(base+".yaml", model, 0o644); err != nil {
		return fmt.Errorf("writing model of %s: %w", typ, err)
	}
	if err := os.WriteFile(base+".xml", ui, 0o644); err != nil {
		return fmt.Errorf("writing layout of %s: %w", typ, err)
	}
	return nil
}

// EnsureBinding creates the mirror proxy of obj, after the ones of its
// sub-objects, and fetches its values. An object that is already pending or
// bound is left alone. On failure the pending entry of obj is dropped.
//
// Proxies that met a pending reference while fetching are fetched again once
// the outermost binding is done, when every reference is resolved.
func (b *Bridge) EnsureBinding(obj native.Object) (forms.ID, error) {
	obj = native.Unwrap(obj)
	if obj == nil {
		return forms.NoID, nil
	}
	nid := obj.GlobalID()
	if !b.ids.reserve(nid) {
		_, id := b.ids.lookup(nid)
		return id, nil
	}

	b.depth++
	id, err := b.bind(obj)
	b.depth--
	if err != nil {
		b.ids.forget(nid)
		b.metrics.BindingFailed()
		if b.depth == 0 {
			b.refetch = nil
		}
		return forms.NoID, err
	}
	if b.depth == 0 {
		if err := b.flushRefetch(); err != nil {
			return id, err
		}
	}
	return id, nil
}

func (b *Bridge) bind(obj native.Object) (forms.ID, error) {
	typ := native.TypeOf(obj)
	for _, sub := range native.SubObjects(obj) {
		if _, err := b.EnsureBinding(sub); err != nil {
			return forms.NoID, fmt.Errorf("binding sub-object %s of %s: %w", sub.GlobalID(), typ, err)
		}
	}

	// Sub-objects of a type registered earlier may be of a type not seen
	// yet.
	if err := b.EnsureDefinition(obj); err != nil {
		return forms.NoID, err
	}
	p, err := b.forms.Create(typ, obj, b.adapter)
	if err != nil {
		return forms.NoID, fmt.Errorf("creating proxy for %s %s: %w", typ, obj.GlobalID(), err)
	}
	b.ids.bind(obj.GlobalID(), p.ID())
	b.metrics.BindingCreated(obj.Group())
	b.logger.V(4).Info("Bound object", "type", typ, "native", obj.GlobalID(), "proxy", p.ID())

	if err := b.forms.Fetch(p.ID()); err != nil {
		err = fmt.Errorf("fetching %s %s: %w", typ, obj.GlobalID(), err)
		if derr := b.forms.Delete(p.ID()); derr != nil {
			err = multierr.Append(err, fmt.Errorf("deleting proxy %d: %w", p.ID(), derr))
		}
		return forms.NoID, err
	}
	return p.ID(), nil
}

// deferFetch queues id for a fetch after the outermost binding.
func (b *Bridge) deferFetch(id forms.ID) {
	for _, q := range b.refetch {
		if q == id {
			return
		}
	}
	b.refetch = append(b.refetch, id)
}

func (b *Bridge) flushRefetch() error {
	if b.flushing {
		return nil
	}
	b.flushing = true
	defer func() { b.flushing = false }()

	for len(b.refetch) > 0 {
		id := b.refetch[0]
		b.refetch = b.refetch[1:]
		if b.forms.Get(id) == nil {
			continue
		}
		if err := b.forms.Fetch(id); err != nil {
			b.refetch = nil
			return fmt.Errorf("refetching proxy %d: %w", id, err)
		}
	}
	return nil
}

// onCommit records effective commits and asks for a re-render.
func (b *Bridge) onCommit(p *forms.Proxy, edited []string, changes int) {
	if changes == 0 {
		return
	}
	if b.journal != nil {
		nid, _ := b.ids.nativeOf(p.ID())
		e := journal.NewEntry(uint64(p.ID()), nid, p.Type(), edited, changes)
		if err := b.journal.Record(context.Background(), e); err != nil {
			b.logger.Error(err, "Recording commit failed", "proxy", p.ID())
		}
	}
	if err := b.ctrl.Trigger(uistate.DataChanged); err != nil {
		b.logger.Error(err, "Data change handlers failed", "proxy", p.ID())
	}
}
