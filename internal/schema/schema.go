// Package schema describes proxy types for the form subsystem.
//
// A Definition is the property model of one native type classification: the
// ordered properties with their kinds, sizes, defaults and domains. It is
// derived once per type by an Introspector, rendered as a declarative YAML
// model and an XML layout, and registered with the form subsystem.
package schema

import (
	"fmt"
	"math"
)

// Kind is the value kind of a property as seen by the form subsystem.
type Kind string

const (
	KindInt    Kind = "int32"
	KindFloat  Kind = "float64"
	KindString Kind = "string"
	KindBool   Kind = "bool"
	KindProxy  Kind = "proxy"
)

// DomainKind classifies a Domain.
type DomainKind string

const (
	DomainRange DomainKind = "Range"
	DomainList  DomainKind = "LabelList"
	DomainBool  DomainKind = "Boolean"
	DomainProxy DomainKind = "ProxyBuilder"
)

// Choice is one entry of a list domain.
type Choice struct {
	Text  string `yaml:"text" json:"text"`
	Value any    `yaml:"value" json:"value"`
}

// Domain restricts the values of a property.
type Domain struct {
	Kind    DomainKind `json:"kind"`
	Min     any        `json:"min,omitempty"`
	Max     any        `json:"max,omitempty"`
	Choices []Choice   `json:"choices,omitempty"`
	Types   []string   `json:"types,omitempty"`
}

// Property describes one property of a Definition.
type Property struct {
	Name  string `json:"name"`
	Label string `json:"label"`
	Help  string `json:"help,omitempty"`
	Kind  Kind   `json:"kind"`
	// Size is the number of elements, 0 when variable.
	Size     int     `json:"size"`
	Default  any     `json:"default,omitempty"`
	Domain   *Domain `json:"domain,omitempty"`
	Advanced bool    `json:"advanced,omitempty"`
	// Group is the label of the layout section holding the property.
	Group string `json:"group,omitempty"`
}

// Definition is the property model of one type classification.
type Definition struct {
	Type       string     `json:"type"`
	Label      string     `json:"label"`
	Properties []Property `json:"properties"`
}

// Property returns the named property.
func (d *Definition) Property(name string) (*Property, bool) {
	for i := range d.Properties {
		if d.Properties[i].Name == name {
			return &d.Properties[i], true
		}
	}
	return nil, false
}

// Names returns the property names in model order.
func (d *Definition) Names() []string {
	names := make([]string, len(d.Properties))
	for i, p := range d.Properties {
		names[i] = p.Name
	}
	return names
}

// Coerce converts a UI-originated value to the Go type of kind k. Lists are
// converted element-wise. Proxy values are returned unchanged.
func (k Kind) Coerce(v any) (any, error) {
	if list, ok := v.([]any); ok {
		out := make([]any, len(list))
		for i, e := range list {
			c, err := k.Coerce(e)
			if err != nil {
				return nil, fmt.Errorf("element %d: %w", i, err)
			}
			out[i] = c
		}
		return out, nil
	}
	switch k {
	case KindInt:
		switch n := v.(type) {
		case float64:
			if n != math.Trunc(n) {
				return nil, fmt.Errorf("%v is not an integer", n)
			}
			return int(n), nil
		case int64:
			return int(n), nil
		case bool:
			if n {
				return 1, nil
			}
			return 0, nil
		}
	case KindFloat:
		switch n := v.(type) {
		case int:
			return float64(n), nil
		case int64:
			return float64(n), nil
		case float32:
			return float64(n), nil
		}
	case KindBool:
		switch n := v.(type) {
		case float64:
			return n != 0, nil
		case int:
			return n != 0, nil
		}
	}
	return v, nil
}
