package bridge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matthewbaird/pvbridge/internal/forms"
	"github.com/matthewbaird/pvbridge/internal/native"
	"github.com/matthewbaird/pvbridge/internal/scene"
	"github.com/matthewbaird/pvbridge/internal/schema"
	"github.com/matthewbaird/pvbridge/internal/uistate"
)

// pipeline is a sphere shown in an active render view.
type pipeline struct {
	sphere *scene.Object
	view   native.Object
	rep    *scene.Object
}

func (f *fixture) pipeline(t *testing.T) pipeline {
	t.Helper()
	sphere := f.create(t, scene.GroupSources, "SphereSource")
	view, err := f.engine.CreateRenderView()
	require.NoError(t, err)
	rep, err := f.engine.Show(sphere, view)
	require.NoError(t, err)
	f.engine.SetActiveSource(sphere)
	f.engine.SetActiveView(view)
	return pipeline{sphere: sphere, view: view, rep: rep}
}

func (f *fixture) mirror(t *testing.T, obj native.Object) forms.ID {
	t.Helper()
	st, id := f.bridge.Lookup(obj.GlobalID())
	require.Equal(t, Bound, st, "object %s", obj.GlobalID())
	return id
}

func TestOnActiveChange_PublishesIDs(t *testing.T) {
	f := newFixture(t)
	pl := f.pipeline(t)

	require.NoError(t, f.bridge.OnActiveChange())

	assert.Equal(t, f.mirror(t, pl.sphere), f.state.Get(uistate.SourceID))
	assert.Equal(t, f.mirror(t, pl.rep), f.state.Get(uistate.RepresentationID))
	assert.Equal(t, f.mirror(t, pl.view), f.state.Get(uistate.ViewID))
	assert.Equal(t, pl.sphere.GlobalID(), f.state.Get(uistate.ActiveProxySourceID))
	assert.Equal(t, pl.rep.GlobalID(), f.state.Get(uistate.ActiveProxyRepresentationID))
	assert.Equal(t, 1, f.triggers[uistate.RepresentationScalarBarUpdate])
}

func TestOnActiveChange_NothingActive(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.bridge.OnActiveChange())

	assert.Equal(t, forms.NoID, f.state.Get(uistate.SourceID))
	assert.Equal(t, forms.NoID, f.state.Get(uistate.RepresentationID))
	assert.Equal(t, forms.NoID, f.state.Get(uistate.ViewID))
	assert.Equal(t, "", f.state.Get(uistate.ActiveProxySourceID))
	assert.Zero(t, f.forms.Len())
}

func TestOnActiveChange_RunsOnNotifications(t *testing.T) {
	f := newFixture(t)
	pl := f.pipeline(t)

	require.NoError(t, f.ctrl.Trigger(uistate.ActiveProxyChanged))
	assert.Equal(t, f.mirror(t, pl.sphere), f.state.Get(uistate.SourceID))

	other := f.create(t, scene.GroupSources, "ConeSource")
	f.engine.SetActiveSource(other)
	require.NoError(t, f.ctrl.Trigger(uistate.DataChanged))
	assert.Equal(t, f.mirror(t, other), f.state.Get(uistate.SourceID))
	assert.Equal(t, forms.NoID, f.state.Get(uistate.RepresentationID))
}

func TestOnDelete_RoundTrip(t *testing.T) {
	f := newFixture(t)
	pl := f.pipeline(t)
	require.NoError(t, f.bridge.OnActiveChange())
	sourceID := f.mirror(t, pl.sphere)
	repID := f.mirror(t, pl.rep)
	lut := pl.rep.Prop("LookupTable").Proxy(0)
	lutID := f.mirror(t, lut)
	triggers := f.triggers[uistate.DataChanged]

	require.NoError(t, f.bridge.OnDelete(pl.sphere.GlobalID()))

	assert.Nil(t, f.forms.Get(sourceID))
	assert.Nil(t, f.forms.Get(repID))
	assert.Nil(t, f.forms.Get(lutID))
	assert.Nil(t, f.engine.FindObject(pl.sphere.GlobalID()))
	assert.Nil(t, f.engine.FindObject(pl.rep.GlobalID()))
	assert.Equal(t, false, pl.rep.Prop("Visibility").Element(0))
	for _, obj := range []native.Object{pl.sphere, pl.rep, lut} {
		st, _ := f.bridge.Lookup(obj.GlobalID())
		assert.Equal(t, Absent, st)
	}

	assert.Equal(t, forms.NoID, f.state.Get(uistate.SourceID))
	assert.Equal(t, forms.NoID, f.state.Get(uistate.RepresentationID))
	assert.Equal(t, f.mirror(t, pl.view), f.state.Get(uistate.ViewID))
	assert.Equal(t, triggers+1, f.triggers[uistate.DataChanged])
	assert.Equal(t, 1, f.triggers[uistate.ActiveProxyChanged])

	// The view no longer lists the representation.
	assert.Nil(t, f.forms.Get(f.mirror(t, pl.view)).Get("Representations"))

	id, err := f.bridge.Handle(pl.sphere)
	require.NoError(t, err)
	assert.NotEqual(t, forms.NoID, id)
	assert.NotEqual(t, sourceID, id)
	assert.Greater(t, uint64(id), uint64(sourceID))
}

func TestOnDelete_NotBound(t *testing.T) {
	f := newFixture(t)
	sphere := f.create(t, scene.GroupSources, "SphereSource")

	err := f.bridge.OnDelete(sphere.GlobalID())
	assert.ErrorIs(t, err, ErrNotBound)
	assert.NotNil(t, f.engine.FindObject(sphere.GlobalID()))

	assert.ErrorIs(t, f.bridge.OnDelete("no-such-id"), ErrNotBound)
}

func TestOnDelete_WithoutRepresentation(t *testing.T) {
	f := newFixture(t)
	sphere := f.create(t, scene.GroupSources, "SphereSource")
	p := f.handle(t, sphere)

	require.NoError(t, f.bridge.OnDelete(sphere.GlobalID()))

	assert.Nil(t, f.forms.Get(p.ID()))
	assert.Nil(t, f.engine.FindObject(sphere.GlobalID()))
}

func TestOnDelete_RepresentationsInEveryView(t *testing.T) {
	f := newFixture(t)
	pl := f.pipeline(t)
	second, err := f.engine.CreateRenderView()
	require.NoError(t, err)
	rep2, err := f.engine.Show(pl.sphere, second)
	require.NoError(t, err)
	f.handle(t, pl.rep)
	f.handle(t, rep2)
	// Bound only through the representations' inputs.
	f.mirror(t, pl.sphere)

	require.NoError(t, f.bridge.OnDelete(pl.sphere.GlobalID()))

	for _, obj := range []native.Object{pl.sphere, pl.rep, rep2} {
		assert.Nil(t, f.engine.FindObject(obj.GlobalID()))
		st, _ := f.bridge.Lookup(obj.GlobalID())
		assert.Equal(t, Absent, st)
	}
	assert.NotNil(t, f.engine.FindObject(second.GlobalID()))
}

func TestOnDelete_UnboundRepresentation(t *testing.T) {
	f := newFixture(t)
	pl := f.pipeline(t)
	f.handle(t, pl.sphere)
	st, _ := f.bridge.Lookup(pl.rep.GlobalID())
	require.Equal(t, Absent, st)

	require.NoError(t, f.bridge.OnDelete(pl.sphere.GlobalID()))
	assert.Nil(t, f.engine.FindObject(pl.rep.GlobalID()))
}

func TestOnDelete_SourceFeedingFilter(t *testing.T) {
	f := newFixture(t)
	pl := f.pipeline(t)
	shrink := f.create(t, scene.GroupFilters, "Shrink")
	shrink.Prop("Input").SetProxy(0, pl.sphere)
	require.NoError(t, f.bridge.OnActiveChange())
	shrinkProxy := f.handle(t, shrink)
	sourceID := f.mirror(t, pl.sphere)
	bound := f.bridge.Len()

	err := f.bridge.OnDelete(pl.sphere.GlobalID())
	require.ErrorIs(t, err, native.ErrInUse)
	assert.ErrorContains(t, err, shrink.GlobalID())

	// Nothing was hidden, deleted or unbound.
	assert.NotNil(t, f.engine.FindObject(pl.sphere.GlobalID()))
	assert.NotNil(t, f.engine.FindObject(pl.rep.GlobalID()))
	assert.Equal(t, true, pl.rep.Prop("Visibility").Element(0))
	assert.Zero(t, pl.rep.Applied())
	assert.NotNil(t, f.forms.Get(sourceID))
	assert.Equal(t, bound, f.bridge.Len())
	assert.Equal(t, sourceID, f.state.Get(uistate.SourceID))
	assert.Zero(t, f.triggers[uistate.DataChanged])

	require.NoError(t, f.ctrl.Trigger(uistate.RefreshActiveProxies))
	assert.Equal(t, bound, f.bridge.Len())
	assert.Equal(t, sourceID, shrinkProxy.Get("Input"))

	// Once the filter is gone the source can go too.
	require.NoError(t, f.bridge.OnDelete(shrink.GlobalID()))
	require.NoError(t, f.bridge.OnDelete(pl.sphere.GlobalID()))
	assert.Nil(t, f.engine.FindObject(pl.sphere.GlobalID()))
	assert.Nil(t, f.forms.Get(sourceID))
}

func TestOnDelete_View(t *testing.T) {
	f := newFixture(t)
	pl := f.pipeline(t)
	require.NoError(t, f.bridge.OnActiveChange())
	viewID := f.mirror(t, pl.view)
	repID := f.mirror(t, pl.rep)
	lut := pl.rep.Prop("LookupTable").Proxy(0)
	lutID := f.mirror(t, lut)

	require.NoError(t, f.bridge.OnDelete(pl.view.GlobalID()))

	for _, obj := range []native.Object{pl.view, pl.rep, lut} {
		assert.Nil(t, f.engine.FindObject(obj.GlobalID()), "object %s", obj.GlobalID())
		st, _ := f.bridge.Lookup(obj.GlobalID())
		assert.Equal(t, Absent, st, "object %s", obj.GlobalID())
	}
	for _, id := range []forms.ID{viewID, repID, lutID} {
		assert.Nil(t, f.forms.Get(id))
	}
	assert.NotNil(t, f.engine.FindObject(pl.sphere.GlobalID()))
	assert.Equal(t, f.mirror(t, pl.sphere), f.state.Get(uistate.SourceID))
	assert.Equal(t, forms.NoID, f.state.Get(uistate.RepresentationID))
	assert.Equal(t, forms.NoID, f.state.Get(uistate.ViewID))

	// The source lost its last representation and deletes cleanly.
	require.NoError(t, f.bridge.OnDelete(pl.sphere.GlobalID()))
}

func TestRefreshActiveProxies(t *testing.T) {
	f := newFixture(t)
	pl := f.pipeline(t)
	require.NoError(t, f.bridge.OnActiveChange())
	pl.sphere.Prop("Radius").SetElement(0, 4.0)
	pl.rep.Prop("Opacity").SetElement(0, 0.25)

	require.NoError(t, f.ctrl.Trigger(uistate.RefreshActiveProxies))

	assert.Equal(t, 4.0, f.forms.Get(f.mirror(t, pl.sphere)).Get("Radius"))
	assert.Equal(t, 0.25, f.forms.Get(f.mirror(t, pl.rep)).Get("Opacity"))
	assert.Equal(t, 1, f.triggers[uistate.ReloadData])
	assert.Equal(t, 1, f.triggers[uistate.ReloadDomains])
}

func TestUpdateActiveProxies_CreatesView(t *testing.T) {
	f := newFixture(t)
	require.Nil(t, f.engine.ActiveView())

	require.NoError(t, f.bridge.UpdateActiveProxies())

	view := f.engine.ActiveView()
	require.NotNil(t, view)
	assert.Equal(t, f.mirror(t, view), f.state.Get(uistate.ViewID))

	settings, ok := f.state.Get(uistate.SettingProxies).([]SettingProxy)
	require.True(t, ok)
	require.Len(t, settings, len(DefaultSettings))
	for i, s := range settings {
		assert.Equal(t, DefaultSettings[i].Name, s.Name)
		assert.Equal(t, DefaultSettings[i].Icon, s.Icon)
		p := f.forms.Get(s.ID)
		require.NotNil(t, p)
		assert.Equal(t, "settings__"+DefaultSettings[i].Proxy, p.Type())
	}
}

func TestUpdateActiveProxies_KeepsActiveView(t *testing.T) {
	f := newFixture(t)
	pl := f.pipeline(t)

	require.NoError(t, f.bridge.UpdateActiveProxies())

	assert.Len(t, f.engine.Views(), 1)
	assert.Equal(t, f.mirror(t, pl.view), f.state.Get(uistate.ViewID))
}

func TestSetAdvanced_FollowsState(t *testing.T) {
	f := newFixture(t)
	f.handle(t, f.create(t, scene.GroupSources, "SphereSource"))
	basic := f.forms.Layout("sources__SphereSource")

	f.state.Set(uistate.UIAdvanced, true)

	assert.True(t, f.forms.Advanced())
	assert.Equal(t, 1, f.triggers[uistate.ReloadDomains])
	full := f.forms.Layout("sources__SphereSource")
	assert.Greater(t, inputs(full), inputs(basic))
}

func inputs(l *schema.Layout) int {
	n := 0
	for _, s := range l.Sections {
		n += len(s.Inputs)
	}
	return n
}
