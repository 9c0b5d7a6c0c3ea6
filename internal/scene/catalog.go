package scene

import (
	"strings"

	"github.com/matthewbaird/pvbridge/internal/native"
)

// PropertySpec declares one property of a prototype.
type PropertySpec struct {
	native.PropertyInfo
	// Group is the property group label; empty means "Properties".
	Group string
	// Owns names the "<group>__<name>" prototype instantiated into slot 0
	// of a proxy property whenever the prototype is created.
	Owns string
}

func (s PropertySpec) groupLabel() string {
	if s.Group == "" {
		return "Properties"
	}
	return s.Group
}

// Prototype declares a proxy type.
type Prototype struct {
	Group      string
	Name       string
	Properties []PropertySpec
}

func (p Prototype) key() string { return p.Group + native.TypeSeparator + p.Name }

func splitKey(key string) (string, string) {
	group, name, _ := strings.Cut(key, native.TypeSeparator)
	return group, name
}

func doubles(name string, size int, defaults ...native.Value) PropertySpec {
	return PropertySpec{PropertyInfo: native.PropertyInfo{
		Name:        name,
		Label:       label(name),
		Kind:        native.ElementProperty,
		ElementType: native.DoubleElement,
		Size:        size,
		Defaults:    defaults,
	}}
}

func ints(name string, size int, defaults ...native.Value) PropertySpec {
	s := doubles(name, size, defaults...)
	s.ElementType = native.IntElement
	return s
}

func boolean(name string, def bool) PropertySpec {
	s := doubles(name, 1, def)
	s.ElementType = native.BoolElement
	s.Domain = &native.Domain{Kind: native.BooleanDomain}
	return s
}

func enum(name string, def string, values ...string) PropertySpec {
	s := doubles(name, 1, def)
	s.ElementType = native.StringElement
	d := &native.Domain{Kind: native.EnumerationDomain}
	for _, v := range values {
		d.Entries = append(d.Entries, native.Entry{Text: v, Value: v})
	}
	s.Domain = d
	return s
}

func proxy(name string, kind native.PropertyKind, accepts ...string) PropertySpec {
	return PropertySpec{PropertyInfo: native.PropertyInfo{
		Name:   name,
		Label:  label(name),
		Kind:   kind,
		Domain: &native.Domain{Kind: native.ProxyListDomain, Proxies: accepts},
	}}
}

func (s PropertySpec) ranged(min, max native.Value) PropertySpec {
	s.Domain = &native.Domain{Kind: native.RangeDomain, Min: min, Max: max}
	return s
}

func (s PropertySpec) in(group string) PropertySpec {
	s.Group = group
	return s
}

func (s PropertySpec) advanced() PropertySpec {
	s.Advanced = true
	return s
}

func (s PropertySpec) doc(text string) PropertySpec {
	s.Documentation = text
	return s
}

func (s PropertySpec) owns(key string) PropertySpec {
	s.Owns = key
	return s
}

// label turns a CamelCase property name into a spaced label.
func label(name string) string {
	var b strings.Builder
	for i, r := range name {
		if i > 0 && r >= 'A' && r <= 'Z' && !(name[i-1] >= 'A' && name[i-1] <= 'Z') {
			b.WriteByte(' ')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Catalog returns the built-in prototypes.
func Catalog() []Prototype {
	input := proxy("Input", native.InputProperty, GroupSources+native.TypeSeparator+"*", GroupFilters+native.TypeSeparator+"*")
	return []Prototype{
		{Group: GroupSources, Name: "SphereSource", Properties: []PropertySpec{
			doubles("Center", 3, 0.0, 0.0, 0.0),
			doubles("Radius", 1, 0.5).ranged(0.0, nil).doc("Radius of the sphere."),
			ints("ThetaResolution", 1, 8).ranged(3, 1024),
			ints("PhiResolution", 1, 8).ranged(3, 1024),
			doubles("StartTheta", 1, 0.0).ranged(0.0, 360.0).advanced(),
			doubles("EndTheta", 1, 360.0).ranged(0.0, 360.0).advanced(),
		}},
		{Group: GroupSources, Name: "ConeSource", Properties: []PropertySpec{
			doubles("Center", 3, 0.0, 0.0, 0.0),
			doubles("Direction", 3, 1.0, 0.0, 0.0),
			doubles("Height", 1, 1.0).ranged(0.0, nil),
			doubles("Radius", 1, 0.5).ranged(0.0, nil),
			ints("Resolution", 1, 6).ranged(0, 512),
			boolean("Capping", true).advanced(),
		}},
		{Group: GroupFilters, Name: "Clip", Properties: []PropertySpec{
			input,
			proxy("ClipType", native.ProxyProperty, GroupImplicitFunctions+native.TypeSeparator+"Plane").
				owns(GroupImplicitFunctions + native.TypeSeparator + "Plane").in("Clip Type"),
			boolean("Invert", true),
			boolean("Crinkleclip", false).advanced(),
		}},
		{Group: GroupFilters, Name: "Shrink", Properties: []PropertySpec{
			input,
			doubles("ShrinkFactor", 1, 0.5).ranged(0.0, 1.0),
		}},
		{Group: GroupImplicitFunctions, Name: "Plane", Properties: []PropertySpec{
			doubles("Origin", 3, 0.0, 0.0, 0.0),
			doubles("Normal", 3, 1.0, 0.0, 0.0),
			doubles("Offset", 1, 0.0).advanced(),
		}},
		{Group: GroupViews, Name: RenderViewName, Properties: []PropertySpec{
			doubles("Background", 3, 0.32, 0.34, 0.43).ranged(0.0, 1.0).in("Background"),
			boolean("OrientationAxesVisibility", true).in("Annotations"),
			boolean("CameraParallelProjection", false),
			ints("ViewSize", 2, 800, 600).advanced(),
			proxy(representationsProperty, native.ProxyProperty).advanced(),
		}},
		{Group: GroupRepresentations, Name: GeometryRepresentation, Properties: []PropertySpec{
			input,
			boolean("Visibility", true),
			enum("Representation", "Surface", "Points", "Wireframe", "Surface", "Surface With Edges"),
			doubles("Opacity", 1, 1.0).ranged(0.0, 1.0),
			doubles("DiffuseColor", 3, 1.0, 1.0, 1.0).ranged(0.0, 1.0).in("Coloring"),
			proxy("LookupTable", native.ProxyProperty, GroupLookupTables+native.TypeSeparator+"PVLookupTable").
				owns(GroupLookupTables + native.TypeSeparator + "PVLookupTable").in("Coloring"),
			doubles("PointSize", 1, 2.0).ranged(0.0, nil).in("Styling").advanced(),
		}},
		{Group: GroupLookupTables, Name: "PVLookupTable", Properties: []PropertySpec{
			doubles("RGBPoints", 0, 0.0, 0.23, 0.299, 0.754, 1.0, 0.706, 0.016, 0.15),
			enum("ColorSpace", "Diverging", "RGB", "HSV", "Lab", "Diverging"),
			boolean("ScalarRangeInitialized", false).advanced(),
		}},
		{Group: GroupSettings, Name: "GeneralSettings", Properties: []PropertySpec{
			boolean("AutoApply", false),
			enum("ScalarBarMode", "Automatically hide unused scalar bars",
				"Automatically hide unused scalar bars", "Manual"),
			ints("BlockColorsDistinctValues", 1, 7).ranged(1, 64).advanced(),
		}},
		{Group: GroupSettings, Name: "ColorPalette", Properties: []PropertySpec{
			doubles("BackgroundColor", 3, 0.32, 0.34, 0.43).ranged(0.0, 1.0),
			doubles("ForegroundColor", 3, 1.0, 1.0, 1.0).ranged(0.0, 1.0),
		}},
		{Group: GroupSettings, Name: "RenderViewSettings", Properties: []PropertySpec{
			doubles("LODThreshold", 1, 20.0).ranged(0.0, nil),
			boolean("UseFXAA", false),
		}},
	}
}
