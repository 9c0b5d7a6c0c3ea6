package bridge

import (
	"fmt"
	"strings"

	"go.uber.org/multierr"

	"github.com/matthewbaird/pvbridge/internal/forms"
	"github.com/matthewbaird/pvbridge/internal/native"
	"github.com/matthewbaird/pvbridge/internal/uistate"
)

const visibilityProperty = "Visibility"

// Setting names a settings proxy shown in the UI.
type Setting struct {
	Name  string
	Proxy string
	Icon  string
}

// DefaultSettings are the settings proxies published when Options.Settings
// is nil.
var DefaultSettings = []Setting{
	{Name: "General", Proxy: "GeneralSettings", Icon: "mdi-cog"},
	{Name: "Color Palette", Proxy: "ColorPalette", Icon: "mdi-palette"},
	{Name: "Render View", Proxy: "RenderViewSettings", Icon: "mdi-cube-outline"},
}

// SettingProxy is one published entry of the settings list.
type SettingProxy struct {
	Name string   `json:"name"`
	ID   forms.ID `json:"id"`
	Icon string   `json:"icon"`
}

// OnActiveChange binds the active source, view and the representation
// pairing them, and publishes their mirror ids.
func (b *Bridge) OnActiveChange() error {
	source := native.Unwrap(b.engine.ActiveSource())
	view := native.Unwrap(b.engine.ActiveView())
	var rep native.Object
	if source != nil && view != nil {
		rep = native.Unwrap(b.engine.Representation(source, view))
	}

	b.state.Set(uistate.ActiveProxySourceID, globalID(source))
	b.state.Set(uistate.ActiveProxyRepresentationID, globalID(rep))

	var errs error
	publish := func(key string, obj native.Object) {
		id, err := b.Handle(obj)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("handling %s: %w", key, err))
		}
		b.state.Set(key, id)
	}
	publish(uistate.SourceID, source)
	publish(uistate.RepresentationID, rep)
	publish(uistate.ViewID, view)

	return multierr.Append(errs, b.ctrl.Trigger(uistate.RepresentationScalarBarUpdate))
}

// OnDelete deletes a bound native object together with its representations
// in every view, and their mirror proxies. Representations are hidden
// before deletion. Sub-objects the engine deleted along with them are
// unbound too. An object another live object still references, such as a
// source feeding a filter, is left alone and native.ErrInUse is returned.
// A later Handle of the same object creates a new mirror proxy.
func (b *Bridge) OnDelete(nativeID string) error {
	st, id := b.ids.lookup(nativeID)
	if st != Bound {
		return fmt.Errorf("%w: %s", ErrNotBound, nativeID)
	}
	p := b.forms.Get(id)
	if p == nil {
		b.ids.forget(nativeID)
		return fmt.Errorf("%w: %s has no proxy", ErrNotBound, nativeID)
	}
	source := native.Unwrap(p.Object())
	if source == nil {
		return fmt.Errorf("%w: %s has no native object", ErrNotBound, nativeID)
	}

	if users := b.engine.Consumers(source); len(users) > 0 {
		ids := make([]string, len(users))
		for i, u := range users {
			ids[i] = u.GlobalID()
		}
		return fmt.Errorf("%w: %s feeds %s", native.ErrInUse, nativeID, strings.Join(ids, ", "))
	}

	var reps []native.Object
	for _, view := range b.engine.Views() {
		if rep := native.Unwrap(b.engine.Representation(source, view)); rep != nil {
			reps = append(reps, rep)
		}
	}
	doomed := append(append([]native.Object(nil), reps...), source)
	subs := subObjectsOf(doomed)

	for _, rep := range reps {
		if vis := rep.Property(visibilityProperty); vis != nil {
			vis.SetElement(0, false)
			rep.UpdateVTKObjects()
		}
		if err := b.engine.Delete(rep); err != nil {
			return fmt.Errorf("deleting representation %s: %w", rep.GlobalID(), err)
		}
	}
	if err := b.engine.Delete(source); err != nil {
		return fmt.Errorf("deleting %s: %w", nativeID, err)
	}

	removed := make(map[forms.ID]bool)
	var errs error
	unbind := func(obj native.Object) {
		mid, err := b.unbind(obj.GlobalID())
		errs = multierr.Append(errs, err)
		if mid != forms.NoID {
			removed[mid] = true
		}
	}
	for _, obj := range doomed {
		unbind(obj)
	}
	for _, sub := range subs {
		if b.engine.FindObject(sub.GlobalID()) == nil {
			unbind(sub)
		}
	}
	b.metrics.Deleted(len(removed))

	// Views listed the deleted representations.
	for _, view := range b.engine.Views() {
		if st, vid := b.ids.lookup(view.GlobalID()); st == Bound {
			if err := b.forms.Fetch(vid); err != nil {
				errs = multierr.Append(errs, fmt.Errorf("fetching view %s: %w", view.GlobalID(), err))
			}
		}
	}
	b.logger.V(2).Info("Deleted object", "native", nativeID, "representations", len(reps), "unbound", len(removed))

	for _, key := range []string{uistate.SourceID, uistate.RepresentationID, uistate.ViewID} {
		if cur, ok := b.state.Get(key).(forms.ID); ok && removed[cur] {
			b.state.Set(key, forms.NoID)
		}
	}

	errs = multierr.Append(errs, b.ctrl.Trigger(uistate.ActiveProxyChanged))
	return multierr.Append(errs, b.ctrl.Trigger(uistate.DataChanged))
}

// subObjectsOf returns the sub-objects reachable from roots, each once,
// roots excluded.
func subObjectsOf(roots []native.Object) []native.Object {
	seen := make(map[string]bool, len(roots))
	for _, r := range roots {
		seen[r.GlobalID()] = true
	}
	var out []native.Object
	queue := append([]native.Object(nil), roots...)
	for len(queue) > 0 {
		obj := queue[0]
		queue = queue[1:]
		for _, sub := range native.SubObjects(obj) {
			sub = native.Unwrap(sub)
			if sub == nil || seen[sub.GlobalID()] {
				continue
			}
			seen[sub.GlobalID()] = true
			out = append(out, sub)
			queue = append(queue, sub)
		}
	}
	return out
}

// unbind forgets nativeID and deletes its mirror proxy, if any.
func (b *Bridge) unbind(nativeID string) (forms.ID, error) {
	st, id := b.ids.lookup(nativeID)
	if st == Absent {
		return forms.NoID, nil
	}
	b.ids.forget(nativeID)
	if st != Bound {
		return forms.NoID, nil
	}
	if err := b.forms.Delete(id); err != nil {
		return id, fmt.Errorf("deleting proxy %d: %w", id, err)
	}
	return id, nil
}

// RefreshActiveProxies fetches the active source and representation proxies
// again, then asks the UI to reload data and domains.
func (b *Bridge) RefreshActiveProxies() error {
	var errs error
	for _, key := range []string{uistate.SourceID, uistate.RepresentationID} {
		id, _ := b.state.Get(key).(forms.ID)
		if id == forms.NoID || b.forms.Get(id) == nil {
			continue
		}
		if err := b.forms.Fetch(id); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("fetching %s: %w", key, err))
		}
	}
	if err := b.flushRefetch(); err != nil {
		errs = multierr.Append(errs, err)
	}
	errs = multierr.Append(errs, b.ctrl.Trigger(uistate.ReloadData))
	return multierr.Append(errs, b.ctrl.Trigger(uistate.ReloadDomains))
}

// UpdateActiveProxies publishes the settings proxies and the active view.
// When no view is active a render view is created and activated.
func (b *Bridge) UpdateActiveProxies() error {
	var errs error
	list := make([]SettingProxy, 0, len(b.settings))
	for _, s := range b.settings {
		id, err := b.Handle(b.engine.SettingsProxy(s.Proxy))
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("handling settings %s: %w", s.Proxy, err))
		}
		list = append(list, SettingProxy{Name: s.Name, ID: id, Icon: s.Icon})
	}
	b.state.Set(uistate.SettingProxies, list)

	view := native.Unwrap(b.engine.ActiveView())
	if view == nil {
		v, err := b.engine.CreateRenderView()
		if err != nil {
			return multierr.Append(errs, fmt.Errorf("creating render view: %w", err))
		}
		b.engine.SetActiveView(v)
		view = v
	}
	id, err := b.Handle(view)
	if err != nil {
		errs = multierr.Append(errs, fmt.Errorf("handling view: %w", err))
	}
	b.state.Set(uistate.ViewID, id)
	return errs
}

// SetAdvanced shows or hides advanced properties and asks the UI to reload
// domains. It runs when the ui_advanced state value changes.
func (b *Bridge) SetAdvanced(advanced bool) error {
	if b.closed {
		return nil
	}
	b.forms.SetAdvanced(advanced)
	return b.ctrl.Trigger(uistate.ReloadDomains)
}

func globalID(obj native.Object) string {
	if obj == nil {
		return ""
	}
	return obj.GlobalID()
}
