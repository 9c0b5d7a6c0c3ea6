package schema

import (
	"fmt"
	"strings"

	"github.com/matthewbaird/pvbridge/internal/native"
)

// Introspector derives the definition of a native object's type.
type Introspector interface {
	Introspect(obj native.Object) (*Definition, error)
}

// IntrospectorFunc adapts a plain function to the Introspector interface.
type IntrospectorFunc func(obj native.Object) (*Definition, error)

func (f IntrospectorFunc) Introspect(obj native.Object) (*Definition, error) {
	return f(obj)
}

// Catalog maps type classifications to introspectors. Types without an entry
// go to the fallback.
type Catalog struct {
	byType   map[string]Introspector
	fallback Introspector
}

// NewCatalog creates a catalog. A nil fallback uses Reflect.
func NewCatalog(fallback Introspector) *Catalog {
	if fallback == nil {
		fallback = Reflect
	}
	return &Catalog{byType: make(map[string]Introspector), fallback: fallback}
}

// Register sets the introspector of one type classification.
func (c *Catalog) Register(typ string, in Introspector) {
	c.byType[typ] = in
}

func (c *Catalog) Introspect(obj native.Object) (*Definition, error) {
	if in, ok := c.byType[native.TypeOf(obj)]; ok {
		return in.Introspect(obj)
	}
	return c.fallback.Introspect(obj)
}

// Reflect builds a definition from the property descriptions the engine
// exposes on obj.
var Reflect = IntrospectorFunc(reflectDefinition)

func reflectDefinition(obj native.Object) (*Definition, error) {
	if native.IsNil(obj) {
		return nil, fmt.Errorf("introspect: nil object")
	}
	groupOf := make(map[string]string)
	for _, g := range obj.PropertyGroups() {
		for _, p := range g.Properties {
			if _, ok := groupOf[p.Info().Name]; !ok {
				groupOf[p.Info().Name] = g.Label
			}
		}
	}

	def := &Definition{Type: native.TypeOf(obj), Label: spaced(obj.Name())}
	for _, np := range obj.Properties() {
		info := np.Info()
		p := Property{
			Name:     info.Name,
			Label:    info.Label,
			Help:     info.Documentation,
			Kind:     kindOf(info),
			Size:     info.Size,
			Default:  defaultOf(info.Defaults),
			Domain:   domainOf(info.Domain),
			Advanced: info.Advanced,
			Group:    groupOf[info.Name],
		}
		if p.Label == "" {
			p.Label = spaced(info.Name)
		}
		def.Properties = append(def.Properties, p)
	}
	return def, nil
}

func kindOf(info native.PropertyInfo) Kind {
	if info.Kind.References() {
		return KindProxy
	}
	switch info.ElementType {
	case native.IntElement:
		return KindInt
	case native.StringElement:
		return KindString
	case native.BoolElement:
		return KindBool
	default:
		return KindFloat
	}
}

func defaultOf(values []native.Value) any {
	switch len(values) {
	case 0:
		return nil
	case 1:
		return values[0]
	default:
		return append([]any(nil), values...)
	}
}

func domainOf(d *native.Domain) *Domain {
	if d == nil {
		return nil
	}
	switch d.Kind {
	case native.RangeDomain:
		return &Domain{Kind: DomainRange, Min: d.Min, Max: d.Max}
	case native.EnumerationDomain:
		out := &Domain{Kind: DomainList}
		for _, e := range d.Entries {
			out.Choices = append(out.Choices, Choice{Text: e.Text, Value: e.Value})
		}
		return out
	case native.BooleanDomain:
		return &Domain{Kind: DomainBool}
	case native.ProxyListDomain:
		return &Domain{Kind: DomainProxy, Types: d.Proxies}
	}
	return nil
}

func spaced(name string) string {
	var b strings.Builder
	for i, r := range name {
		if i > 0 && r >= 'A' && r <= 'Z' && !(name[i-1] >= 'A' && name[i-1] <= 'Z') {
			b.WriteByte(' ')
		}
		b.WriteRune(r)
	}
	return b.String()
}
