// Package uistate holds the UI-facing shared state and the named
// notifications UI components subscribe to. Both forward what happens to an
// optional Publisher so transports can push it to clients.
package uistate

import (
	"fmt"
	"sync"

	"go.uber.org/multierr"
)

// State keys published by the bridge.
const (
	SourceID                    = "source_id"
	RepresentationID            = "representation_id"
	ViewID                      = "view_id"
	ActiveProxySourceID         = "active_proxy_source_id"
	ActiveProxyRepresentationID = "active_proxy_representation_id"
	SettingProxies              = "setting_proxies"
	UIAdvanced                  = "ui_advanced"
)

// Notification names.
const (
	DataChanged                   = "data_changed"
	ActiveProxyChanged            = "active_proxy_changed"
	ReloadDomains                 = "reload_domains"
	ReloadData                    = "reload_data"
	RefreshActiveProxies          = "refresh_active_proxies"
	RepresentationScalarBarUpdate = "representation_scalarbar_update"
)

// EventKind tells state changes from notifications.
type EventKind string

const (
	StateEvent  EventKind = "state"
	NotifyEvent EventKind = "notify"
)

// Event is a state change or a fired notification.
type Event struct {
	Kind  EventKind `json:"kind"`
	Name  string    `json:"name"`
	Value any       `json:"value,omitempty"`
}

// Publisher receives every Event.
type Publisher interface {
	Publish(evt Event)
}

// State is a set of named values.
type State struct {
	mu       sync.RWMutex
	values   map[string]any
	watchers map[string][]func(any)
	pub      Publisher
}

// NewState creates an empty state. pub may be nil.
func NewState(pub Publisher) *State {
	return &State{
		values:   make(map[string]any),
		watchers: make(map[string][]func(any)),
		pub:      pub,
	}
}

// Set stores v under key, then runs the watchers of key and publishes the
// change.
func (s *State) Set(key string, v any) {
	s.mu.Lock()
	s.values[key] = v
	watchers := append(([]func(any))(nil), s.watchers[key]...)
	s.mu.Unlock()

	for _, w := range watchers {
		w(v)
	}
	if s.pub != nil {
		s.pub.Publish(Event{Kind: StateEvent, Name: key, Value: v})
	}
}

// Get returns the value of key, or nil.
func (s *State) Get(key string) any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.values[key]
}

// Snapshot copies every value.
func (s *State) Snapshot() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]any, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}

// Watch calls fn with the new value every time key is set.
func (s *State) Watch(key string, fn func(any)) {
	s.mu.Lock()
	s.watchers[key] = append(s.watchers[key], fn)
	s.mu.Unlock()
}

// Handler reacts to a notification.
type Handler func() error

type namedHandler struct {
	owner   string
	handler Handler
}

// Controller fires named notifications. Handlers run synchronously in
// registration order.
type Controller struct {
	mu       sync.RWMutex
	handlers map[string][]namedHandler
	pub      Publisher
}

// NewController creates a controller. pub may be nil.
func NewController(pub Publisher) *Controller {
	return &Controller{handlers: make(map[string][]namedHandler), pub: pub}
}

// On adds a handler for name on behalf of owner.
func (c *Controller) On(name, owner string, h Handler) {
	c.mu.Lock()
	c.handlers[name] = append(c.handlers[name], namedHandler{owner: owner, handler: h})
	c.mu.Unlock()
}

// Off removes every handler owner registered.
func (c *Controller) Off(owner string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for name, hs := range c.handlers {
		keep := hs[:0]
		for _, h := range hs {
			if h.owner != owner {
				keep = append(keep, h)
			}
		}
		c.handlers[name] = keep
	}
}

// Trigger fires name. Every handler runs; their errors are combined.
func (c *Controller) Trigger(name string) error {
	c.mu.RLock()
	hs := append([]namedHandler(nil), c.handlers[name]...)
	c.mu.RUnlock()

	if c.pub != nil {
		c.pub.Publish(Event{Kind: NotifyEvent, Name: name})
	}
	var errs error
	for _, h := range hs {
		if err := h.handler(); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s handler %s: %w", name, h.owner, err))
		}
	}
	return errs
}
