package scene

import (
	"math"

	"github.com/matthewbaird/pvbridge/internal/native"
)

// Property is the engine-side storage of a property. Element and reference
// slots are kept twice: the checked values that UpdateVTKObjects pushes, and
// the unchecked values used for interactive previews.
type Property struct {
	info native.PropertyInfo

	elements  []native.Value
	unchecked []native.Value

	proxies          []native.Object
	uncheckedProxies []native.Object
}

func newProperty(info native.PropertyInfo) *Property {
	p := &Property{info: info}
	for _, d := range info.Defaults {
		p.elements = append(p.elements, coerce(info.ElementType, d))
	}
	p.unchecked = append([]native.Value(nil), p.elements...)
	return p
}

func (p *Property) Info() native.PropertyInfo { return p.info }

func (p *Property) NumberOfElements() int { return len(p.elements) }

func (p *Property) Element(i int) native.Value {
	if i < 0 || i >= len(p.elements) {
		return nil
	}
	return p.elements[i]
}

// UncheckedElement returns the staged value at i.
func (p *Property) UncheckedElement(i int) native.Value {
	if i < 0 || i >= len(p.unchecked) {
		return nil
	}
	return p.unchecked[i]
}

func (p *Property) SetElement(i int, v native.Value) {
	if i < 0 {
		return
	}
	v = coerce(p.info.ElementType, v)
	p.elements = growValues(p.elements, i+1, p.zero())
	p.unchecked = growValues(p.unchecked, i+1, p.zero())
	p.elements[i] = v
	p.unchecked[i] = v
}

func (p *Property) SetUncheckedElement(i int, v native.Value) {
	if i < 0 {
		return
	}
	p.unchecked = growValues(p.unchecked, i+1, p.zero())
	p.unchecked[i] = coerce(p.info.ElementType, v)
}

func (p *Property) NumberOfProxies() int { return len(p.proxies) }

func (p *Property) Proxy(i int) native.Object {
	if i < 0 || i >= len(p.proxies) || native.IsNil(p.proxies[i]) {
		return nil
	}
	return p.proxies[i]
}

// UncheckedProxy returns the staged reference at i.
func (p *Property) UncheckedProxy(i int) native.Object {
	if i < 0 || i >= len(p.uncheckedProxies) || native.IsNil(p.uncheckedProxies[i]) {
		return nil
	}
	return p.uncheckedProxies[i]
}

func (p *Property) SetProxy(i int, o native.Object) {
	if i < 0 {
		return
	}
	o = native.Unwrap(o)
	p.proxies = growObjects(p.proxies, i+1)
	p.uncheckedProxies = growObjects(p.uncheckedProxies, i+1)
	p.proxies[i] = o
	p.uncheckedProxies[i] = o
}

func (p *Property) SetUncheckedProxy(i int, o native.Object) {
	if i < 0 {
		return
	}
	p.uncheckedProxies = growObjects(p.uncheckedProxies, i+1)
	p.uncheckedProxies[i] = native.Unwrap(o)
}

func (p *Property) ClearUncheckedElements() {
	p.unchecked = append(p.unchecked[:0], p.elements...)
	p.uncheckedProxies = append(p.uncheckedProxies[:0], p.proxies...)
}

// references reports whether a checked or unchecked slot holds an object
// of set.
func (p *Property) references(set map[*Object]bool) bool {
	for _, slots := range [][]native.Object{p.proxies, p.uncheckedProxies} {
		for _, x := range slots {
			if o, ok := x.(*Object); ok && set[o] {
				return true
			}
		}
	}
	return false
}

// removeProxy drops every reference to o.
func (p *Property) removeProxy(o native.Object) {
	keep := p.proxies[:0]
	for _, x := range p.proxies {
		if x != o {
			keep = append(keep, x)
		}
	}
	p.proxies = keep
	p.uncheckedProxies = append(p.uncheckedProxies[:0], p.proxies...)
}

func (p *Property) zero() native.Value {
	switch p.info.ElementType {
	case native.IntElement:
		return 0
	case native.StringElement:
		return ""
	case native.BoolElement:
		return false
	default:
		return 0.0
	}
}

func growValues(s []native.Value, n int, zero native.Value) []native.Value {
	for len(s) < n {
		s = append(s, zero)
	}
	return s
}

func growObjects(s []native.Object, n int) []native.Object {
	for len(s) < n {
		s = append(s, nil)
	}
	return s
}

// coerce converts v to the Go type used for elements of type t. Values that
// cannot be converted are stored unchanged.
func coerce(t native.ElementType, v native.Value) native.Value {
	switch t {
	case native.DoubleElement:
		switch n := v.(type) {
		case int:
			return float64(n)
		case int64:
			return float64(n)
		case float32:
			return float64(n)
		}
	case native.IntElement:
		switch n := v.(type) {
		case int64:
			return int(n)
		case float64:
			if n == math.Trunc(n) {
				return int(n)
			}
		case bool:
			if n {
				return 1
			}
			return 0
		}
	case native.BoolElement:
		switch n := v.(type) {
		case int:
			return n != 0
		case float64:
			return n != 0
		}
	}
	return v
}
