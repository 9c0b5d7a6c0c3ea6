// Package native defines the contract of the visualization engine's proxy
// object graph as seen by the bridge.
//
// An Object is a server-manager proxy (a source, filter, view,
// representation, lookup table or settings proxy). It exposes an ordered set
// of properties; some properties carry plain elements, others reference other
// objects. Property groups are the engine's UI grouping of properties and are
// also where sub-object references are discovered.
package native

import (
	"errors"
	"reflect"
	"strings"
)

// TypeSeparator joins the group and name of an object into its type
// classification.
const TypeSeparator = "__"

// ErrInUse is returned when deleting an object that live objects still
// reference.
var ErrInUse = errors.New("native: object in use")

// Value is a single property element: int, float64, string or bool.
type Value = any

// PropertyKind tells element-valued properties apart from reference-valued
// ones.
type PropertyKind int

const (
	ElementProperty PropertyKind = iota
	ProxyProperty
	InputProperty
)

// References reports whether the property holds object references.
func (k PropertyKind) References() bool {
	return k == ProxyProperty || k == InputProperty
}

func (k PropertyKind) String() string {
	switch k {
	case ElementProperty:
		return "element"
	case ProxyProperty:
		return "proxy"
	case InputProperty:
		return "input"
	default:
		return "unknown"
	}
}

// ElementType is the scalar type of the elements of an element property.
type ElementType int

const (
	DoubleElement ElementType = iota
	IntElement
	StringElement
	BoolElement
)

func (t ElementType) String() string {
	switch t {
	case DoubleElement:
		return "double"
	case IntElement:
		return "int"
	case StringElement:
		return "string"
	case BoolElement:
		return "bool"
	default:
		return "unknown"
	}
}

// DomainKind classifies a property domain.
type DomainKind int

const (
	RangeDomain DomainKind = iota
	EnumerationDomain
	BooleanDomain
	ProxyListDomain
)

// Entry is one choice of an enumeration domain.
type Entry struct {
	Text  string
	Value Value
}

// Domain constrains the values a property accepts.
type Domain struct {
	Kind    DomainKind
	Min     Value    // RangeDomain, nil when unbounded
	Max     Value    // RangeDomain, nil when unbounded
	Entries []Entry  // EnumerationDomain
	Proxies []string // ProxyListDomain: accepted "<group>__<name>" types
}

// PropertyInfo is the static description of a property.
type PropertyInfo struct {
	Name          string
	Label         string
	Documentation string
	Kind          PropertyKind
	ElementType   ElementType
	// Size is the fixed number of elements, or 0 for a variable number.
	Size     int
	Defaults []Value
	Domain   *Domain
	Advanced bool
}

// Property is a single named property of an Object.
type Property interface {
	Info() PropertyInfo

	NumberOfElements() int
	Element(i int) Value
	SetElement(i int, v Value)
	SetUncheckedElement(i int, v Value)

	NumberOfProxies() int
	Proxy(i int) Object
	SetProxy(i int, o Object)
	SetUncheckedProxy(i int, o Object)

	// ClearUncheckedElements drops staged values that were never applied.
	ClearUncheckedElements()
}

// PropertyGroup is a labelled subset of an object's properties.
type PropertyGroup struct {
	Label      string
	Properties []Property
}

// Object is a proxy in the engine's object graph.
type Object interface {
	// GlobalID is unique across the engine's lifetime.
	GlobalID() string
	Group() string
	Name() string

	// Property returns nil when the object has no property with that name.
	Property(name string) Property
	Properties() []Property
	PropertyGroups() []PropertyGroup

	// UpdateVTKObjects pushes the current property values to the live
	// object.
	UpdateVTKObjects()
}

// Engine is the subset of the engine's session API used by the bridge.
type Engine interface {
	ActiveSource() Object
	ActiveView() Object
	SetActiveView(view Object)
	CreateRenderView() (Object, error)
	Views() []Object

	// Representation returns the representation showing source in view,
	// or nil.
	Representation(source, view Object) Object
	Delete(obj Object) error
	// Consumers returns the live objects that reference obj through an
	// input or proxy property, other than obj's own representations and
	// the objects deleted along with obj.
	Consumers(obj Object) []Object
	// FindObject returns the live object with the given global id, or nil.
	FindObject(globalID string) Object

	// SettingsProxy returns the named settings proxy, or nil.
	SettingsProxy(name string) Object
}

// Unwrapper is implemented by handles that wrap a canonical Object.
type Unwrapper interface {
	Unwrap() Object
}

// Unwrap resolves obj to its canonical object. Typed nil values are
// returned as a plain nil.
func Unwrap(obj Object) Object {
	for {
		if IsNil(obj) {
			return nil
		}
		u, ok := obj.(Unwrapper)
		if !ok {
			return obj
		}
		obj = u.Unwrap()
	}
}

// IsNil reports whether obj is nil or a typed nil pointer.
func IsNil(obj Object) bool {
	if obj == nil {
		return true
	}
	v := reflect.ValueOf(obj)
	switch v.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func:
		return v.IsNil()
	}
	return false
}

// TypeOf returns the type classification of obj, "<group>__<name>".
func TypeOf(obj Object) string {
	return obj.Group() + TypeSeparator + obj.Name()
}

// SplitType splits a type classification into its segments.
func SplitType(typ string) []string {
	return strings.Split(typ, TypeSeparator)
}

// SubObjects returns the objects referenced by the proxy properties of obj's
// property groups, in group and property order. Pipeline inputs are not
// sub-objects.
func SubObjects(obj Object) []Object {
	var subs []Object
	for _, g := range obj.PropertyGroups() {
		for _, p := range g.Properties {
			if p.Info().Kind != ProxyProperty {
				continue
			}
			for i := 0; i < p.NumberOfProxies(); i++ {
				if s := p.Proxy(i); !IsNil(s) {
					subs = append(subs, s)
				}
			}
		}
	}
	return subs
}
