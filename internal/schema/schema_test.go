package schema

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/matthewbaird/pvbridge/internal/native"
	"github.com/matthewbaird/pvbridge/internal/scene"
)

func sphere(t *testing.T) native.Object {
	t.Helper()
	obj, err := scene.New().Create(scene.GroupSources, "SphereSource")
	require.NoError(t, err)
	return obj
}

func TestReflect_Sphere(t *testing.T) {
	def, err := Reflect.Introspect(sphere(t))
	require.NoError(t, err)

	assert.Equal(t, "sources__SphereSource", def.Type)
	assert.Equal(t, "Sphere Source", def.Label)
	assert.Equal(t, []string{"Center", "Radius", "ThetaResolution", "PhiResolution", "StartTheta", "EndTheta"}, def.Names())

	radius, ok := def.Property("Radius")
	require.True(t, ok)
	assert.Equal(t, KindFloat, radius.Kind)
	assert.Equal(t, 1, radius.Size)
	assert.Equal(t, 0.5, radius.Default)
	assert.Equal(t, "Radius of the sphere.", radius.Help)
	require.NotNil(t, radius.Domain)
	assert.Equal(t, DomainRange, radius.Domain.Kind)

	center, _ := def.Property("Center")
	assert.Equal(t, []any{0.0, 0.0, 0.0}, center.Default)

	theta, _ := def.Property("StartTheta")
	assert.True(t, theta.Advanced)

	_, ok = def.Property("Missing")
	assert.False(t, ok)
}

func TestReflect_ProxyProperties(t *testing.T) {
	rep, err := scene.New().Create(scene.GroupRepresentations, scene.GeometryRepresentation)
	require.NoError(t, err)

	def, err := Reflect.Introspect(rep)
	require.NoError(t, err)

	lut, ok := def.Property("LookupTable")
	require.True(t, ok)
	assert.Equal(t, KindProxy, lut.Kind)
	assert.Equal(t, "Coloring", lut.Group)
	assert.Equal(t, []string{"lookup_tables__PVLookupTable"}, lut.Domain.Types)
	assert.Empty(t, lut.Constraint())

	vis, _ := def.Property("Visibility")
	assert.Equal(t, KindBool, vis.Kind)
	assert.Equal(t, true, vis.Default)
}

func TestCatalog_Override(t *testing.T) {
	c := NewCatalog(nil)
	custom := &Definition{Type: "sources__SphereSource", Label: "Ball"}
	c.Register("sources__SphereSource", IntrospectorFunc(func(native.Object) (*Definition, error) {
		return custom, nil
	}))

	def, err := c.Introspect(sphere(t))
	require.NoError(t, err)
	assert.Same(t, custom, def)

	cone, err := scene.New().Create(scene.GroupSources, "ConeSource")
	require.NoError(t, err)
	def, err = c.Introspect(cone)
	require.NoError(t, err)
	assert.Equal(t, "sources__ConeSource", def.Type)
}

func TestMarshalModel_KeepsOrder(t *testing.T) {
	def, err := Reflect.Introspect(sphere(t))
	require.NoError(t, err)

	out, err := def.MarshalModel()
	require.NoError(t, err)
	text := string(out)

	assert.True(t, strings.HasPrefix(text, "sources__SphereSource:\n"))
	assert.Contains(t, text, "    _help: Radius of the sphere.\n")
	assert.Contains(t, text, "    initial: 0.5\n")
	assert.Less(t, strings.Index(text, "  Center:"), strings.Index(text, "  Radius:"))
	assert.Less(t, strings.Index(text, "  Radius:"), strings.Index(text, "  ThetaResolution:"))

	var decoded map[string]map[string]map[string]any
	require.NoError(t, yaml.Unmarshal(out, &decoded))
	radius := decoded["sources__SphereSource"]["Radius"]
	assert.Equal(t, "float64", radius["type"])
	assert.Equal(t, 1, radius["size"])
}

func TestLayoutOf_Sections(t *testing.T) {
	rep, err := scene.New().Create(scene.GroupRepresentations, scene.GeometryRepresentation)
	require.NoError(t, err)
	def, err := Reflect.Introspect(rep)
	require.NoError(t, err)

	layout := LayoutOf(def)
	want := []Section{
		{Title: "Properties", Inputs: []Input{{Name: "Input"}, {Name: "Visibility"}, {Name: "Representation"}, {Name: "Opacity"}}},
		{Title: "Coloring", Inputs: []Input{{Name: "DiffuseColor"}, {Name: "LookupTable"}}},
		{Title: "Styling", Inputs: []Input{{Name: "PointSize", Advanced: true}}},
	}
	if diff := cmp.Diff(want, layout.Sections); diff != "" {
		t.Errorf("sections mismatch (-want +got):\n%s", diff)
	}

	basic := layout.Visible(false)
	assert.Len(t, basic.Sections, 2)
	assert.Same(t, layout, layout.Visible(true))

	out, err := layout.Marshal()
	require.NoError(t, err)
	assert.Contains(t, string(out), `<layout id="representations__GeometryRepresentation">`)
	assert.Contains(t, string(out), `<input name="PointSize" advanced="true"></input>`)
}

func TestConstraint(t *testing.T) {
	tests := []struct {
		name string
		prop Property
		want string
	}{
		{"plain float", Property{Kind: KindFloat}, "number"},
		{"closed range", Property{Kind: KindInt, Domain: &Domain{Kind: DomainRange, Min: 3, Max: 1024}}, "int & >=3 & <=1024"},
		{"open range", Property{Kind: KindFloat, Domain: &Domain{Kind: DomainRange, Min: 0.0}}, "number & >=0"},
		{"list", Property{Kind: KindString, Domain: &Domain{Kind: DomainList, Choices: []Choice{{Text: "A", Value: "A"}, {Text: "B", Value: "B"}}}}, `string & ("A" | "B")`},
		{"bool", Property{Kind: KindBool, Domain: &Domain{Kind: DomainBool}}, "bool"},
		{"proxy", Property{Kind: KindProxy}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.prop.Constraint())
		})
	}
}

func TestKind_Coerce(t *testing.T) {
	v, err := KindInt.Coerce(4.0)
	require.NoError(t, err)
	assert.Equal(t, 4, v)

	_, err = KindInt.Coerce(4.5)
	assert.Error(t, err)

	v, err = KindFloat.Coerce([]any{1, 2.5})
	require.NoError(t, err)
	assert.Equal(t, []any{1.0, 2.5}, v)

	v, err = KindBool.Coerce(0.0)
	require.NoError(t, err)
	assert.Equal(t, false, v)
}
