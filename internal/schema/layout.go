package schema

import (
	"encoding/xml"
	"fmt"
)

// Layout is the UI layout of a definition: one section per property group,
// in first-appearance order.
type Layout struct {
	XMLName  xml.Name  `xml:"layout" json:"-"`
	Type     string    `xml:"id,attr" json:"type"`
	Sections []Section `xml:"section" json:"sections"`
}

// Section is a titled list of inputs.
type Section struct {
	Title  string  `xml:"title,attr" json:"title"`
	Inputs []Input `xml:"input" json:"inputs"`
}

// Input places one property in the layout.
type Input struct {
	Name     string `xml:"name,attr" json:"name"`
	Advanced bool   `xml:"advanced,attr,omitempty" json:"advanced,omitempty"`
}

// LayoutOf derives the layout of d.
func LayoutOf(d *Definition) *Layout {
	l := &Layout{Type: d.Type}
	index := make(map[string]int)
	for _, p := range d.Properties {
		title := p.Group
		if title == "" {
			title = "Properties"
		}
		i, ok := index[title]
		if !ok {
			i = len(l.Sections)
			index[title] = i
			l.Sections = append(l.Sections, Section{Title: title})
		}
		l.Sections[i].Inputs = append(l.Sections[i].Inputs, Input{Name: p.Name, Advanced: p.Advanced})
	}
	return l
}

// Visible returns a copy of l without advanced inputs unless advanced is
// set. Sections left empty are dropped.
func (l *Layout) Visible(advanced bool) *Layout {
	if advanced {
		return l
	}
	out := &Layout{Type: l.Type}
	for _, s := range l.Sections {
		var inputs []Input
		for _, in := range s.Inputs {
			if !in.Advanced {
				inputs = append(inputs, in)
			}
		}
		if len(inputs) > 0 {
			out.Sections = append(out.Sections, Section{Title: s.Title, Inputs: inputs})
		}
	}
	return out
}

// Marshal renders the layout as an XML document.
func (l *Layout) Marshal() ([]byte, error) {
	body, err := xml.MarshalIndent(l, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding layout %s: %w", l.Type, err)
	}
	return append([]byte(xml.Header), append(body, '\n')...), nil
}
