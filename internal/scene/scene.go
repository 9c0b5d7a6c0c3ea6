// Package scene is an in-memory visualization engine implementing the
// native contract. It keeps a catalog of proxy prototypes, instantiates
// objects with engine-assigned global ids, pairs sources with views through
// representations and tracks the active source and view.
//
// An Engine is not safe for concurrent use; drive it from one goroutine.
package scene

import (
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/matthewbaird/pvbridge/internal/native"
)

var (
	// ErrUnknownPrototype is returned when creating an object whose
	// prototype is not in the catalog.
	ErrUnknownPrototype = errors.New("scene: unknown prototype")
	// ErrUnknownObject is returned for objects the engine does not own.
	ErrUnknownObject = errors.New("scene: unknown object")
	// ErrInUse is returned when deleting a source that is still shown in a
	// view, or an object another live object references.
	ErrInUse = native.ErrInUse
)

// Default groups of the built-in catalog.
const (
	GroupSources            = "sources"
	GroupFilters            = "filters"
	GroupViews              = "views"
	GroupRepresentations    = "representations"
	GroupLookupTables       = "lookup_tables"
	GroupImplicitFunctions  = "implicit_functions"
	GroupSettings           = "settings"
	RenderViewName          = "RenderView"
	GeometryRepresentation  = "GeometryRepresentation"
	representationsProperty = "Representations"
)

// Object is a proxy instance.
type Object struct {
	id     string
	seq    int
	group  string
	name   string
	props  []*Property
	byName map[string]*Property
	groups []groupIndex
	// owned sub-objects are deleted with their owner.
	owned   []*Object
	applied int
}

type groupIndex struct {
	label string
	props []*Property
}

func (o *Object) GlobalID() string { return o.id }
func (o *Object) Group() string    { return o.group }
func (o *Object) Name() string     { return o.name }

func (o *Object) Property(name string) native.Property {
	p, ok := o.byName[name]
	if !ok {
		return nil
	}
	return p
}

// Prop returns the concrete property, or nil.
func (o *Object) Prop(name string) *Property {
	return o.byName[name]
}

func (o *Object) Properties() []native.Property {
	out := make([]native.Property, len(o.props))
	for i, p := range o.props {
		out[i] = p
	}
	return out
}

func (o *Object) PropertyGroups() []native.PropertyGroup {
	out := make([]native.PropertyGroup, 0, len(o.groups))
	for _, g := range o.groups {
		props := make([]native.Property, len(g.props))
		for i, p := range g.props {
			props[i] = p
		}
		out = append(out, native.PropertyGroup{Label: g.label, Properties: props})
	}
	return out
}

func (o *Object) UpdateVTKObjects() { o.applied++ }

// Applied returns how many times UpdateVTKObjects ran.
func (o *Object) Applied() int { return o.applied }

type repKey struct {
	source string
	view   string
}

// Engine owns every object it creates.
type Engine struct {
	prototypes map[string]Prototype
	objects    map[string]*Object
	views      []*Object
	reps       map[repKey]*Object
	settings   map[string]*Object
	nextID     int

	activeSource *Object
	activeView   *Object
}

// New returns an engine loaded with the built-in catalog.
func New() *Engine {
	e := &Engine{
		prototypes: make(map[string]Prototype),
		objects:    make(map[string]*Object),
		reps:       make(map[repKey]*Object),
		settings:   make(map[string]*Object),
	}
	for _, p := range Catalog() {
		e.Register(p)
	}
	return e
}

// Register adds or replaces a prototype.
func (e *Engine) Register(p Prototype) {
	e.prototypes[p.key()] = p
}

// Create instantiates the prototype group/name.
func (e *Engine) Create(group, name string) (*Object, error) {
	proto, ok := e.prototypes[group+native.TypeSeparator+name]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", ErrUnknownPrototype, group, name)
	}
	e.nextID++
	obj := &Object{
		id:     strconv.Itoa(e.nextID),
		seq:    e.nextID,
		group:  group,
		name:   name,
		byName: make(map[string]*Property, len(proto.Properties)),
	}
	for _, ps := range proto.Properties {
		p := newProperty(ps.PropertyInfo)
		obj.props = append(obj.props, p)
		obj.byName[ps.Name] = p
		obj.addToGroup(ps.groupLabel(), p)
		if ps.Owns == "" {
			continue
		}
		g, n := splitKey(ps.Owns)
		sub, err := e.Create(g, n)
		if err != nil {
			return nil, fmt.Errorf("creating %s of %s/%s: %w", ps.Name, group, name, err)
		}
		obj.owned = append(obj.owned, sub)
		p.SetProxy(0, sub)
	}
	e.objects[obj.id] = obj
	if group == GroupViews {
		e.views = append(e.views, obj)
	}
	return obj, nil
}

func (o *Object) addToGroup(label string, p *Property) {
	for i := range o.groups {
		if o.groups[i].label == label {
			o.groups[i].props = append(o.groups[i].props, p)
			return
		}
	}
	o.groups = append(o.groups, groupIndex{label: label, props: []*Property{p}})
}

// Lookup returns the object with the given global id.
func (e *Engine) Lookup(id string) (*Object, bool) {
	o, ok := e.objects[id]
	return o, ok
}

func (e *Engine) FindObject(id string) native.Object {
	if o, ok := e.objects[id]; ok {
		return o
	}
	return nil
}

// Len returns the number of live objects.
func (e *Engine) Len() int { return len(e.objects) }

// Show returns the representation of source in view, creating it when the
// source is not yet shown there.
func (e *Engine) Show(source, view native.Object) (*Object, error) {
	src, err := e.own(source)
	if err != nil {
		return nil, err
	}
	v, err := e.own(view)
	if err != nil {
		return nil, err
	}
	key := repKey{source: src.id, view: v.id}
	if rep, ok := e.reps[key]; ok {
		return rep, nil
	}
	rep, err := e.Create(GroupRepresentations, GeometryRepresentation)
	if err != nil {
		return nil, err
	}
	if p := rep.Prop("Input"); p != nil {
		p.SetProxy(0, src)
	}
	if p := v.Prop(representationsProperty); p != nil {
		p.SetProxy(p.NumberOfProxies(), rep)
	}
	e.reps[key] = rep
	return rep, nil
}

func (e *Engine) ActiveSource() native.Object {
	if e.activeSource == nil {
		return nil
	}
	return e.activeSource
}

// SetActiveSource makes obj the active source; nil clears it.
func (e *Engine) SetActiveSource(obj native.Object) {
	e.activeSource, _ = e.own(obj)
}

func (e *Engine) ActiveView() native.Object {
	if e.activeView == nil {
		return nil
	}
	return e.activeView
}

func (e *Engine) SetActiveView(view native.Object) {
	e.activeView, _ = e.own(view)
}

func (e *Engine) CreateRenderView() (native.Object, error) {
	return e.Create(GroupViews, RenderViewName)
}

func (e *Engine) Views() []native.Object {
	out := make([]native.Object, len(e.views))
	for i, v := range e.views {
		out[i] = v
	}
	return out
}

func (e *Engine) Representation(source, view native.Object) native.Object {
	src, err := e.own(source)
	if err != nil {
		return nil
	}
	v, err := e.own(view)
	if err != nil {
		return nil
	}
	rep, ok := e.reps[repKey{source: src.id, view: v.id}]
	if !ok {
		return nil
	}
	return rep
}

func (e *Engine) SettingsProxy(name string) native.Object {
	if s, ok := e.settings[name]; ok {
		return s
	}
	s, err := e.Create(GroupSettings, name)
	if err != nil {
		return nil
	}
	e.settings[name] = s
	return s
}

// Delete removes obj and the sub-objects it owns. Deleting a
// representation detaches it from its view; deleting a view deletes its
// representations. Deleting a source still shown in a view, or an object
// another live object references, fails with ErrInUse.
func (e *Engine) Delete(obj native.Object) error {
	o, err := e.own(obj)
	if err != nil {
		return err
	}
	if o == nil {
		return fmt.Errorf("%w: nil", ErrUnknownObject)
	}
	doomed := make(map[*Object]bool)
	e.collect(o, doomed)
	for key, rep := range e.reps {
		if key.source == o.id {
			return fmt.Errorf("%w: %s is shown in view %s", ErrInUse, o.id, key.view)
		}
		if key.view == o.id {
			e.collect(rep, doomed)
		}
	}
	if users := e.consumers(doomed); len(users) > 0 {
		return fmt.Errorf("%w: %s is referenced by %s", ErrInUse, o.id, users[0].GlobalID())
	}

	for key, rep := range e.reps {
		if key.view == o.id {
			e.remove(rep)
			delete(e.reps, key)
		}
		if rep == o {
			if v, ok := e.objects[key.view]; ok {
				if p := v.Prop(representationsProperty); p != nil {
					p.removeProxy(o)
				}
			}
			delete(e.reps, key)
		}
	}
	e.remove(o)
	return nil
}

// Consumers returns the live objects referencing obj, or the objects it
// owns, other than its representations.
func (e *Engine) Consumers(obj native.Object) []native.Object {
	o, err := e.own(obj)
	if err != nil || o == nil {
		return nil
	}
	doomed := make(map[*Object]bool)
	e.collect(o, doomed)
	for key, rep := range e.reps {
		if key.source == o.id || key.view == o.id {
			e.collect(rep, doomed)
		}
	}
	return e.consumers(doomed)
}

// collect adds o and everything it owns to set.
func (e *Engine) collect(o *Object, set map[*Object]bool) {
	if set[o] {
		return
	}
	set[o] = true
	for _, sub := range o.owned {
		e.collect(sub, set)
	}
}

// consumers returns the live objects outside doomed that reference an
// object in doomed, ordered by creation. A view listing a doomed
// representation does not count; Delete detaches it.
func (e *Engine) consumers(doomed map[*Object]bool) []native.Object {
	var users []*Object
	for _, c := range e.objects {
		if doomed[c] {
			continue
		}
		for _, p := range c.props {
			if !p.info.Kind.References() {
				continue
			}
			if c.group == GroupViews && p.info.Name == representationsProperty {
				continue
			}
			if p.references(doomed) {
				users = append(users, c)
				break
			}
		}
	}
	sort.Slice(users, func(i, j int) bool { return users[i].seq < users[j].seq })
	out := make([]native.Object, len(users))
	for i, u := range users {
		out[i] = u
	}
	return out
}

func (e *Engine) remove(o *Object) {
	for _, sub := range o.owned {
		e.remove(sub)
	}
	delete(e.objects, o.id)
	for i, v := range e.views {
		if v == o {
			e.views = append(e.views[:i], e.views[i+1:]...)
			break
		}
	}
	for name, s := range e.settings {
		if s == o {
			delete(e.settings, name)
		}
	}
	if e.activeSource == o {
		e.activeSource = nil
	}
	if e.activeView == o {
		e.activeView = nil
	}
}

// own resolves obj to an object of this engine. A nil obj yields nil.
func (e *Engine) own(obj native.Object) (*Object, error) {
	obj = native.Unwrap(obj)
	if obj == nil {
		return nil, nil
	}
	o, ok := e.objects[obj.GlobalID()]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownObject, obj.GlobalID())
	}
	return o, nil
}

var _ native.Engine = (*Engine)(nil)
var _ native.Object = (*Object)(nil)
var _ native.Property = (*Property)(nil)
