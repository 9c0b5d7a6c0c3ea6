package forms

import (
	"fmt"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"github.com/matthewbaird/pvbridge/internal/schema"
)

// validator checks values against the CUE rendering of property domains.
// Compiled constraints are cached per type and property.
type validator struct {
	mu    sync.Mutex
	ctx   *cue.Context
	cache map[string]cue.Value
}

func newValidator() *validator {
	return &validator{
		ctx:   cuecontext.New(),
		cache: make(map[string]cue.Value),
	}
}

// validate checks v, or each element of v when it is a list. Nil values
// and elements are left unset by commits and pass.
func (vd *validator) validate(typ string, p *schema.Property, v any) error {
	expr := p.Constraint()
	if expr == "" || v == nil {
		return nil
	}
	vd.mu.Lock()
	defer vd.mu.Unlock()

	key := typ + "." + p.Name
	c, ok := vd.cache[key]
	if !ok {
		c = vd.ctx.CompileString(expr)
		if err := c.Err(); err != nil {
			return fmt.Errorf("compiling constraint of %s: %w", key, err)
		}
		vd.cache[key] = c
	}

	if list, ok := v.([]any); ok {
		for i, e := range list {
			if e == nil {
				continue
			}
			if err := vd.check(c, e); err != nil {
				return fmt.Errorf("%w: %s[%d]: %v", ErrValidation, p.Name, i, err)
			}
		}
		return nil
	}
	if err := vd.check(c, v); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrValidation, p.Name, err)
	}
	return nil
}

func (vd *validator) check(c cue.Value, v any) error {
	val := vd.ctx.Encode(v)
	if err := val.Err(); err != nil {
		return err
	}
	return c.Unify(val).Validate(cue.Concrete(true))
}
