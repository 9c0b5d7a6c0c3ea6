package scene

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matthewbaird/pvbridge/internal/native"
)

func TestCreate_DefaultsAndIDs(t *testing.T) {
	e := New()
	a, err := e.Create(GroupSources, "SphereSource")
	require.NoError(t, err)
	b, err := e.Create(GroupSources, "SphereSource")
	require.NoError(t, err)

	assert.NotEqual(t, a.GlobalID(), b.GlobalID())
	assert.Equal(t, "sources__SphereSource", native.TypeOf(a))

	radius := a.Property("Radius")
	require.NotNil(t, radius)
	assert.Equal(t, 1, radius.NumberOfElements())
	assert.Equal(t, 0.5, radius.Element(0))
	assert.Equal(t, 3, a.Property("Center").NumberOfElements())
	assert.Nil(t, a.Property("NoSuchProperty"))
}

func TestCreate_UnknownPrototype(t *testing.T) {
	_, err := New().Create(GroupSources, "Teapot")
	assert.ErrorIs(t, err, ErrUnknownPrototype)
}

func TestCreate_OwnsSubObjects(t *testing.T) {
	e := New()
	clip, err := e.Create(GroupFilters, "Clip")
	require.NoError(t, err)

	subs := native.SubObjects(clip)
	require.Len(t, subs, 1)
	assert.Equal(t, "implicit_functions__Plane", native.TypeOf(subs[0]))

	require.NoError(t, e.Delete(clip))
	_, ok := e.Lookup(subs[0].GlobalID())
	assert.False(t, ok, "owned plane deleted with its clip")
}

func TestProperty_SetElementCoerces(t *testing.T) {
	e := New()
	sphere, err := e.Create(GroupSources, "SphereSource")
	require.NoError(t, err)

	sphere.Property("Radius").SetElement(0, 2)
	assert.Equal(t, 2.0, sphere.Property("Radius").Element(0))

	sphere.Property("ThetaResolution").SetElement(0, 16.0)
	assert.Equal(t, 16, sphere.Property("ThetaResolution").Element(0))
}

func TestProperty_UncheckedSlots(t *testing.T) {
	e := New()
	sphere, err := e.Create(GroupSources, "SphereSource")
	require.NoError(t, err)
	radius := sphere.Prop("Radius")

	radius.SetUncheckedElement(0, 3.0)
	assert.Equal(t, 0.5, radius.Element(0))
	assert.Equal(t, 3.0, radius.UncheckedElement(0))

	radius.ClearUncheckedElements()
	assert.Equal(t, 0.5, radius.UncheckedElement(0))
}

func TestShow_PairsSourceAndView(t *testing.T) {
	e := New()
	sphere, err := e.Create(GroupSources, "SphereSource")
	require.NoError(t, err)
	view, err := e.CreateRenderView()
	require.NoError(t, err)

	rep, err := e.Show(sphere, view)
	require.NoError(t, err)
	again, err := e.Show(sphere, view)
	require.NoError(t, err)
	assert.Same(t, rep, again)

	assert.Equal(t, native.Object(rep), e.Representation(sphere, view))
	assert.Equal(t, native.Object(sphere), rep.Property("Input").Proxy(0))
	assert.Equal(t, 1, view.Property("Representations").NumberOfProxies())
}

func TestDelete_SourceInUse(t *testing.T) {
	e := New()
	sphere, _ := e.Create(GroupSources, "SphereSource")
	view, _ := e.CreateRenderView()
	rep, err := e.Show(sphere, view)
	require.NoError(t, err)

	assert.ErrorIs(t, e.Delete(sphere), ErrInUse)

	require.NoError(t, e.Delete(rep))
	assert.Nil(t, e.Representation(sphere, view))
	assert.Equal(t, 0, view.Property("Representations").NumberOfProxies())

	e.SetActiveSource(sphere)
	require.NoError(t, e.Delete(sphere))
	assert.Nil(t, e.ActiveSource())
	assert.ErrorIs(t, e.Delete(sphere), ErrUnknownObject)
}

func TestDelete_ViewDropsRepresentations(t *testing.T) {
	e := New()
	sphere, _ := e.Create(GroupSources, "SphereSource")
	view, _ := e.CreateRenderView()
	rep, err := e.Show(sphere, view)
	require.NoError(t, err)

	require.NoError(t, e.Delete(view))
	_, ok := e.Lookup(rep.GlobalID())
	assert.False(t, ok)
	assert.Empty(t, e.Views())
	require.NoError(t, e.Delete(sphere))
}

func TestDelete_ReferencedObject(t *testing.T) {
	e := New()
	sphere, _ := e.Create(GroupSources, "SphereSource")
	shrink, _ := e.Create(GroupFilters, "Shrink")
	shrink.Prop("Input").SetProxy(0, sphere)
	clip, _ := e.Create(GroupFilters, "Clip")
	clip.Prop("Input").SetUncheckedProxy(0, shrink)

	assert.ErrorIs(t, e.Delete(sphere), ErrInUse)
	assert.ErrorIs(t, e.Delete(sphere), native.ErrInUse)
	assert.ErrorIs(t, e.Delete(shrink), ErrInUse, "staged references count")
	assert.NotNil(t, e.FindObject(sphere.GlobalID()))

	// An owned sub-object cannot go while its owner lives.
	plane := clip.Prop("ClipType").Proxy(0)
	require.NotNil(t, plane)
	assert.ErrorIs(t, e.Delete(plane), ErrInUse)

	require.NoError(t, e.Delete(clip))
	assert.Nil(t, e.FindObject(plane.GlobalID()))
	require.NoError(t, e.Delete(shrink))
	require.NoError(t, e.Delete(sphere))
}

func TestConsumers(t *testing.T) {
	e := New()
	sphere, _ := e.Create(GroupSources, "SphereSource")
	view, _ := e.CreateRenderView()
	rep, err := e.Show(sphere, view)
	require.NoError(t, err)
	assert.Empty(t, e.Consumers(sphere), "representations do not count")
	assert.Empty(t, e.Consumers(view))
	assert.Empty(t, e.Consumers(rep), "the view listing it does not count")

	a, _ := e.Create(GroupFilters, "Shrink")
	b, _ := e.Create(GroupFilters, "Shrink")
	a.Prop("Input").SetProxy(0, sphere)
	b.Prop("Input").SetProxy(0, sphere)
	assert.Equal(t, []native.Object{a, b}, e.Consumers(sphere))

	lut := rep.Prop("LookupTable").Proxy(0)
	assert.Equal(t, []native.Object{rep}, e.Consumers(lut))
	assert.Nil(t, e.Consumers(nil))
}

func TestSettingsProxy_Singleton(t *testing.T) {
	e := New()
	a := e.SettingsProxy("GeneralSettings")
	require.NotNil(t, a)
	assert.Equal(t, a, e.SettingsProxy("GeneralSettings"))
	assert.Nil(t, e.SettingsProxy("NoSuchSettings"))
}

func TestPropertyGroups_Order(t *testing.T) {
	e := New()
	rep, err := e.Create(GroupRepresentations, GeometryRepresentation)
	require.NoError(t, err)

	var labels []string
	for _, g := range rep.PropertyGroups() {
		labels = append(labels, g.Label)
	}
	assert.Equal(t, []string{"Properties", "Coloring", "Styling"}, labels)
}
