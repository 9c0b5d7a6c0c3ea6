package schema

import (
	"fmt"
	"strconv"
	"strings"
)

// Constraint renders the accepted values of a single element of p as a CUE
// expression. Proxy properties have no element constraint and yield "".
func (p *Property) Constraint() string {
	base := ""
	switch p.Kind {
	case KindInt:
		base = "int"
	case KindFloat:
		base = "number"
	case KindString:
		base = "string"
	case KindBool:
		base = "bool"
	default:
		return ""
	}
	if p.Domain == nil {
		return base
	}
	switch p.Domain.Kind {
	case DomainRange:
		parts := []string{base}
		if p.Domain.Min != nil {
			parts = append(parts, ">="+literal(p.Domain.Min))
		}
		if p.Domain.Max != nil {
			parts = append(parts, "<="+literal(p.Domain.Max))
		}
		return strings.Join(parts, " & ")
	case DomainList:
		if len(p.Domain.Choices) == 0 {
			return base
		}
		alts := make([]string, len(p.Domain.Choices))
		for i, c := range p.Domain.Choices {
			alts[i] = literal(c.Value)
		}
		return base + " & (" + strings.Join(alts, " | ") + ")"
	}
	return base
}

// literal formats v as a CUE literal.
func literal(v any) string {
	switch x := v.(type) {
	case string:
		return strconv.Quote(x)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'g', -1, 32)
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprint(x)
	}
}
