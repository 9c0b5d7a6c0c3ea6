// Package forms is the property-editing subsystem: it stores definitions and
// layouts, owns the editable mirror proxies, validates edits and delegates
// the exchange with the bound native object to an ObjectAdapter.
package forms

import (
	"errors"
	"fmt"
	"sync"

	"go.uber.org/multierr"

	"github.com/matthewbaird/pvbridge/internal/native"
	"github.com/matthewbaird/pvbridge/internal/schema"
)

var (
	// ErrNoDefinition is returned when creating a proxy of an unregistered
	// type.
	ErrNoDefinition = errors.New("forms: no definition registered")
	// ErrNotFound is returned for unknown proxy ids.
	ErrNotFound = errors.New("forms: proxy not found")
	// ErrUnknownProperty is returned when editing a property the
	// definition does not declare.
	ErrUnknownProperty = errors.New("forms: unknown property")
	// ErrValidation wraps every domain violation.
	ErrValidation = errors.New("forms: validation failed")
)

// ObjectAdapter moves state between a proxy and its native object.
type ObjectAdapter interface {
	// Commit pushes the edited values to the native object and returns
	// the number of effective changes.
	Commit(p *Proxy) (int, error)
	// Reset discards staged values of the edited properties on the native
	// object.
	Reset(p *Proxy) error
	// Fetch reads the native object into the proxy.
	Fetch(p *Proxy) error
	// Update stages the named values on the native object without
	// committing them.
	Update(p *Proxy, names ...string) error
}

// CommitListener is called after every successful commit with the names
// that were edited and the number of effective changes.
type CommitListener func(p *Proxy, edited []string, changes int)

// Manager owns definitions, layouts and proxies.
type Manager struct {
	mu        sync.RWMutex
	defs      map[string]*schema.Definition
	layouts   map[string]*schema.Layout
	proxies   map[ID]*Proxy
	nextID    ID
	advanced  bool
	listeners []CommitListener

	validator *validator
}

// NewManager creates an empty manager.
func NewManager() *Manager {
	return &Manager{
		defs:      make(map[string]*schema.Definition),
		layouts:   make(map[string]*schema.Layout),
		proxies:   make(map[ID]*Proxy),
		validator: newValidator(),
	}
}

// LoadModel registers a definition, replacing any previous one of the same
// type.
func (m *Manager) LoadModel(def *schema.Definition) error {
	if def == nil || def.Type == "" {
		return fmt.Errorf("forms: loading model: missing type")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.defs[def.Type] = def
	return nil
}

// LoadUI registers the layout of a type.
func (m *Manager) LoadUI(layout *schema.Layout) error {
	if layout == nil || layout.Type == "" {
		return fmt.Errorf("forms: loading ui: missing type")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.layouts[layout.Type] = layout
	return nil
}

func (m *Manager) HasDefinition(typ string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.defs[typ]
	return ok
}

// Definition returns the definition of typ, or nil.
func (m *Manager) Definition(typ string) *schema.Definition {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.defs[typ]
}

// Layout returns the layout of typ filtered by the advanced mode, or nil.
func (m *Manager) Layout(typ string) *schema.Layout {
	m.mu.RLock()
	defer m.mu.RUnlock()
	l, ok := m.layouts[typ]
	if !ok {
		return nil
	}
	return l.Visible(m.advanced)
}

// SetAdvanced toggles the visibility of advanced properties in layouts.
func (m *Manager) SetAdvanced(advanced bool) {
	m.mu.Lock()
	m.advanced = advanced
	m.mu.Unlock()
}

func (m *Manager) Advanced() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.advanced
}

// OnCommit registers a commit listener.
func (m *Manager) OnCommit(l CommitListener) {
	m.mu.Lock()
	m.listeners = append(m.listeners, l)
	m.mu.Unlock()
}

// Create makes a proxy of type typ bound to obj. The definition of typ must
// already be registered.
func (m *Manager) Create(typ string, obj native.Object, adapter ObjectAdapter) (*Proxy, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	def, ok := m.defs[typ]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoDefinition, typ)
	}
	m.nextID++
	p := &Proxy{
		id:      m.nextID,
		def:     def,
		object:  obj,
		adapter: adapter,
		values:  make(map[string]any),
		pending: make(map[string]any),
	}
	m.proxies[p.id] = p
	return p, nil
}

// Get returns the proxy with the given id, or nil.
func (m *Manager) Get(id ID) *Proxy {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.proxies[id]
}

// Delete removes a proxy.
func (m *Manager) Delete(id ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.proxies[id]; !ok {
		return fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	delete(m.proxies, id)
	return nil
}

// Len returns the number of live proxies.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.proxies)
}

// Set stages a UI edit of one property. Values are coerced to the property
// kind; proxy references are given as ids.
func (m *Manager) Set(id ID, name string, v any) error {
	p, err := m.lookup(id)
	if err != nil {
		return err
	}
	prop, ok := p.def.Property(name)
	if !ok {
		return fmt.Errorf("%w: %s.%s", ErrUnknownProperty, p.def.Type, name)
	}
	if prop.Kind == schema.KindProxy {
		v, err = coerceRef(v)
	} else {
		v, err = prop.Kind.Coerce(v)
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrValidation, name, err)
	}
	p.Set(name, v)
	return nil
}

// Commit validates the edited values, pushes them through the adapter and
// accepts them. The returned count is the adapter's number of effective
// changes. On validation failure nothing is pushed and the edits stay
// pending.
func (m *Manager) Commit(id ID) (int, error) {
	p, err := m.lookup(id)
	if err != nil {
		return 0, err
	}
	var errs error
	for _, name := range p.EditedPropertyNames() {
		prop, ok := p.def.Property(name)
		if !ok {
			continue
		}
		errs = multierr.Append(errs, m.validator.validate(p.def.Type, prop, p.Get(name)))
	}
	if errs != nil {
		return 0, errs
	}

	edited := p.EditedPropertyNames()
	changes, err := p.adapter.Commit(p)
	if err != nil {
		return changes, fmt.Errorf("committing proxy %d: %w", id, err)
	}
	p.Accept()

	m.mu.RLock()
	listeners := append([]CommitListener(nil), m.listeners...)
	m.mu.RUnlock()
	for _, l := range listeners {
		l(p, edited, changes)
	}
	return changes, nil
}

// Reset discards the staged values on the native object and on the proxy.
func (m *Manager) Reset(id ID) error {
	p, err := m.lookup(id)
	if err != nil {
		return err
	}
	if err := p.adapter.Reset(p); err != nil {
		return fmt.Errorf("resetting proxy %d: %w", id, err)
	}
	p.Discard()
	return nil
}

// Fetch refreshes the proxy from its native object.
func (m *Manager) Fetch(id ID) error {
	p, err := m.lookup(id)
	if err != nil {
		return err
	}
	return p.adapter.Fetch(p)
}

// Update stages the named pending values on the native object.
func (m *Manager) Update(id ID, names ...string) error {
	p, err := m.lookup(id)
	if err != nil {
		return err
	}
	return p.adapter.Update(p, names...)
}

func (m *Manager) lookup(id ID) (*Proxy, error) {
	p := m.Get(id)
	if p == nil {
		return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	return p, nil
}

// coerceRef converts JSON numbers to proxy ids.
func coerceRef(v any) (any, error) {
	switch x := v.(type) {
	case nil, ID:
		return v, nil
	case float64:
		if x < 0 || x != float64(uint64(x)) {
			return nil, fmt.Errorf("invalid proxy id %v", x)
		}
		return ID(x), nil
	case int:
		if x < 0 {
			return nil, fmt.Errorf("invalid proxy id %d", x)
		}
		return ID(x), nil
	case []any:
		ids := make([]ID, len(x))
		for i, e := range x {
			c, err := coerceRef(e)
			if err != nil {
				return nil, err
			}
			if c == nil {
				continue
			}
			id, ok := c.(ID)
			if !ok {
				return nil, fmt.Errorf("invalid proxy reference %T in list", e)
			}
			ids[i] = id
		}
		return ids, nil
	}
	return nil, fmt.Errorf("invalid proxy reference %T", v)
}
