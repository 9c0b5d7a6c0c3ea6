package bridge

import (
	"fmt"
	"reflect"

	"github.com/matthewbaird/pvbridge/internal/forms"
	"github.com/matthewbaird/pvbridge/internal/native"
)

// Adapter moves values between mirror proxies and their native objects. It
// implements forms.ObjectAdapter.
//
// Mirror values of element properties are a scalar for one element and a
// list for several. Mirror values of proxy properties are mirror ids, again
// a scalar or a list. Nil values are never written to the native side.
type Adapter struct {
	bridge *Bridge
}

var _ forms.ObjectAdapter = (*Adapter)(nil)

// assignment is one property write resolved ahead of time, so that a bad
// reference fails the operation before anything is written.
type assignment struct {
	prop native.Property
	refs []native.Object
	// values is nil for reference assignments.
	values []native.Value
}

// Fetch reads every property of the proxy's definition from the native
// object, then accepts the result as the proxy's canonical state. Empty
// native properties leave the mirror value unset.
func (a *Adapter) Fetch(p *forms.Proxy) error {
	obj := native.Unwrap(p.Object())
	if obj == nil {
		return fmt.Errorf("proxy %d has no native object", p.ID())
	}
	for _, name := range p.PropertyNames() {
		prop := obj.Property(name)
		if prop == nil {
			continue
		}
		if prop.Info().Kind.References() {
			if err := a.fetchRefs(p, name, prop); err != nil {
				return err
			}
			continue
		}
		switch n := prop.NumberOfElements(); n {
		case 0:
			unset(p, name)
		case 1:
			p.Set(name, prop.Element(0))
		default:
			values := make([]any, n)
			for i := range values {
				values[i] = prop.Element(i)
			}
			p.Set(name, values)
		}
	}
	p.Accept()
	a.bridge.metrics.Fetched()
	return nil
}

func (a *Adapter) fetchRefs(p *forms.Proxy, name string, prop native.Property) error {
	n := prop.NumberOfProxies()
	ids := make([]forms.ID, 0, n)
	for i := 0; i < n; i++ {
		ref := native.Unwrap(prop.Proxy(i))
		id, err := a.bridge.Handle(ref)
		if err != nil {
			return fmt.Errorf("resolving %s[%d]: %w", name, i, err)
		}
		if ref != nil && id == forms.NoID {
			a.bridge.deferFetch(p.ID())
		}
		ids = append(ids, id)
	}
	switch len(ids) {
	case 0:
		unset(p, name)
	case 1:
		p.Set(name, ids[0])
	default:
		p.Set(name, ids)
	}
	return nil
}

// unset clears a value a previous fetch left behind.
func unset(p *forms.Proxy, name string) {
	if p.Get(name) != nil {
		p.Set(name, nil)
	}
}

// Commit writes the edited values to the native object and returns the
// number of element or proxy slots whose value changed. The native object
// applies its properties only when something changed.
func (a *Adapter) Commit(p *forms.Proxy) (int, error) {
	obj := native.Unwrap(p.Object())
	if obj == nil {
		a.bridge.metrics.CommitFailed()
		return 0, fmt.Errorf("proxy %d has no native object", p.ID())
	}
	plan, err := a.plan(p, obj, p.EditedPropertyNames())
	if err != nil {
		a.bridge.metrics.CommitFailed()
		return 0, err
	}

	changes := 0
	for _, as := range plan {
		if as.values == nil {
			for i, ref := range as.refs {
				before := as.prop.Proxy(i)
				as.prop.SetProxy(i, ref)
				if !sameObject(before, as.prop.Proxy(i)) {
					changes++
				}
			}
			continue
		}
		for i, v := range as.values {
			if v == nil {
				continue
			}
			before := as.prop.Element(i)
			as.prop.SetElement(i, v)
			if before != as.prop.Element(i) {
				changes++
			}
		}
	}
	if changes > 0 {
		obj.UpdateVTKObjects()
	}
	a.bridge.metrics.Committed(changes)
	return changes, nil
}

// Reset clears the unchecked values of every edited property.
func (a *Adapter) Reset(p *forms.Proxy) error {
	obj := native.Unwrap(p.Object())
	if obj == nil {
		return fmt.Errorf("proxy %d has no native object", p.ID())
	}
	for _, name := range p.EditedPropertyNames() {
		if prop := obj.Property(name); prop != nil {
			prop.ClearUncheckedElements()
		}
	}
	return nil
}

// Update writes the named values to the unchecked slots of the native
// properties, for previews that are not committed.
func (a *Adapter) Update(p *forms.Proxy, names ...string) error {
	obj := native.Unwrap(p.Object())
	if obj == nil {
		return fmt.Errorf("proxy %d has no native object", p.ID())
	}
	plan, err := a.plan(p, obj, names)
	if err != nil {
		return err
	}
	for _, as := range plan {
		if as.values == nil {
			for i, ref := range as.refs {
				as.prop.SetUncheckedProxy(i, ref)
			}
			continue
		}
		for i, v := range as.values {
			if v != nil {
				as.prop.SetUncheckedElement(i, v)
			}
		}
	}
	return nil
}

// plan resolves the values of names against obj. Nil values and properties
// obj does not have are skipped.
func (a *Adapter) plan(p *forms.Proxy, obj native.Object, names []string) ([]assignment, error) {
	var plan []assignment
	for _, name := range names {
		v := p.Get(name)
		if v == nil {
			continue
		}
		prop := obj.Property(name)
		if prop == nil {
			continue
		}
		if !prop.Info().Kind.References() {
			plan = append(plan, assignment{prop: prop, values: elementsOf(v)})
			continue
		}
		refs, err := a.resolve(v)
		if err != nil {
			return nil, fmt.Errorf("property %s: %w", name, err)
		}
		plan = append(plan, assignment{prop: prop, refs: refs})
	}
	return plan, nil
}

// resolve maps a mirror reference, or a list of them, to native objects.
// The null id maps to nil.
func (a *Adapter) resolve(v any) ([]native.Object, error) {
	var ids []forms.ID
	switch x := v.(type) {
	case forms.ID:
		ids = []forms.ID{x}
	case []forms.ID:
		ids = x
	case []any:
		for _, e := range x {
			id, ok := e.(forms.ID)
			if !ok && e != nil {
				return nil, fmt.Errorf("invalid reference %v (%T)", e, e)
			}
			ids = append(ids, id)
		}
	default:
		return nil, fmt.Errorf("invalid reference %v (%T)", v, v)
	}

	refs := make([]native.Object, len(ids))
	for i, id := range ids {
		if id == forms.NoID {
			continue
		}
		ref := a.bridge.forms.Get(id)
		if ref == nil {
			return nil, fmt.Errorf("%w: %d", forms.ErrNotFound, id)
		}
		refs[i] = native.Unwrap(ref.Object())
	}
	return refs, nil
}

// elementsOf returns the elements of a scalar or list value.
func elementsOf(v any) []native.Value {
	if list, ok := v.([]any); ok {
		return list
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice {
		return []native.Value{v}
	}
	out := make([]native.Value, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out
}

// sameObject compares two references by native identity.
func sameObject(x, y native.Object) bool {
	x, y = native.Unwrap(x), native.Unwrap(y)
	if x == nil || y == nil {
		return x == nil && y == nil
	}
	return x.GlobalID() == y.GlobalID()
}
