package forms

import (
	"github.com/matthewbaird/pvbridge/internal/native"
	"github.com/matthewbaird/pvbridge/internal/schema"
)

// ID identifies a Proxy. Identifiers start at 1; NoID is the null reference.
type ID uint64

// NoID is the null proxy identifier.
const NoID ID = 0

// Proxy is the editable mirror of one native object. Values live in two
// layers: the canonical values last accepted, and the pending values staged
// by edits. Names of staged properties are tracked as edited until the
// pending layer is accepted or discarded.
type Proxy struct {
	id      ID
	def     *schema.Definition
	object  native.Object
	adapter ObjectAdapter

	values  map[string]any
	pending map[string]any
	edited  []string
}

func (p *Proxy) ID() ID                         { return p.id }
func (p *Proxy) Type() string                   { return p.def.Type }
func (p *Proxy) Definition() *schema.Definition { return p.def }

// Object returns the bound native object.
func (p *Proxy) Object() native.Object { return p.object }

// PropertyNames returns every property name of the proxy's definition.
func (p *Proxy) PropertyNames() []string { return p.def.Names() }

// EditedPropertyNames returns the names staged since the last accept, in
// edit order.
func (p *Proxy) EditedPropertyNames() []string {
	return append([]string(nil), p.edited...)
}

// Get returns the pending value of name, or its canonical value.
func (p *Proxy) Get(name string) any {
	if v, ok := p.pending[name]; ok {
		return v
	}
	return p.values[name]
}

// Set stages v for name and marks it edited.
func (p *Proxy) Set(name string, v any) {
	if _, ok := p.pending[name]; !ok {
		p.edited = append(p.edited, name)
	}
	p.pending[name] = v
}

// Accept makes the pending values canonical and clears edit tracking.
func (p *Proxy) Accept() {
	for name, v := range p.pending {
		p.values[name] = v
	}
	p.Discard()
}

// Discard drops every pending value.
func (p *Proxy) Discard() {
	p.pending = make(map[string]any)
	p.edited = nil
}

// Snapshot is a JSON-friendly view of a proxy.
type Snapshot struct {
	ID         ID             `json:"id"`
	Type       string         `json:"type"`
	NativeID   string         `json:"native_id"`
	Properties map[string]any `json:"properties"`
	Edited     []string       `json:"edited,omitempty"`
}

// Snapshot returns the current values, pending edits included.
func (p *Proxy) Snapshot() Snapshot {
	s := Snapshot{
		ID:         p.id,
		Type:       p.def.Type,
		Properties: make(map[string]any, len(p.values)),
		Edited:     p.EditedPropertyNames(),
	}
	if !native.IsNil(p.object) {
		s.NativeID = p.object.GlobalID()
	}
	for _, name := range p.def.Names() {
		if v := p.Get(name); v != nil {
			s.Properties[name] = v
		}
	}
	return s
}
