package force

import (
	"fmt"
)

type entry struct {
	field Field
	expr  *Expr
	// scale and scaleErr are the expression result for scaleFrame.
	scale      float64
	scaleFrame int
	scaleErr   error
}

// Evaluator holds the registered fields in registration order and sums
// their effects. It is not safe for concurrent use.
type Evaluator struct {
	entries []*entry
	byID    map[string]int
}

func NewEvaluator() *Evaluator {
	return &Evaluator{byID: map[string]int{}}
}

// Add validates f, compiles its strength expression and registers it.
func (e *Evaluator) Add(f Field) error {
	if err := f.Validate(); err != nil {
		return fmt.Errorf("force: field %q: %w", f.ID, err)
	}
	if _, ok := e.byID[f.ID]; ok {
		return fmt.Errorf("force: field %q: duplicate id", f.ID)
	}
	var expr *Expr
	if f.StrengthExpr != "" {
		var err error
		expr, err = CompileExpr(f.StrengthExpr)
		if err != nil {
			return fmt.Errorf("force: field %q: strength_expr: %w", f.ID, err)
		}
	}
	e.byID[f.ID] = len(e.entries)
	e.entries = append(e.entries, &entry{field: f.Clone(), expr: expr, scaleFrame: -1})
	return nil
}

// Remove drops a field. It reports whether the id was known.
func (e *Evaluator) Remove(id string) bool {
	idx, ok := e.byID[id]
	if !ok {
		return false
	}
	e.entries = append(e.entries[:idx], e.entries[idx+1:]...)
	delete(e.byID, id)
	for i := idx; i < len(e.entries); i++ {
		e.byID[e.entries[i].field.ID] = i
	}
	return true
}

// SetEnabled toggles a field without removing it.
func (e *Evaluator) SetEnabled(id string, enabled bool) bool {
	idx, ok := e.byID[id]
	if !ok {
		return false
	}
	e.entries[idx].field.Enabled = enabled
	return true
}

func (e *Evaluator) Has(id string) bool {
	_, ok := e.byID[id]
	return ok
}

func (e *Evaluator) Len() int {
	return len(e.entries)
}

// Fields returns copies of the registered fields.
func (e *Evaluator) Fields() []Field {
	out := make([]Field, len(e.entries))
	for i, en := range e.entries {
		out[i] = en.field.Clone()
	}
	return out
}

// Prepare evaluates strength expressions for the frame in ctx. Fields whose
// script fails contribute nothing this frame; their errors are returned so
// the caller can report them.
func (e *Evaluator) Prepare(ctx Context) []error {
	var errs []error
	for _, en := range e.entries {
		if en.scaleFrame == ctx.Frame {
			continue
		}
		en.scaleFrame = ctx.Frame
		en.scale, en.scaleErr = 1, nil
		if en.expr == nil || !en.field.Active(ctx.Frame) {
			continue
		}
		s, err := en.expr.Eval(ctx.Frame, ctx.Time)
		if err != nil {
			en.scale = 0
			en.scaleErr = err
			errs = append(errs, fmt.Errorf("force: field %q: %w", en.field.ID, err))
			continue
		}
		en.scale = s
	}
	return errs
}

// Apply sums every active field that affects t. Prepare must have been
// called for ctx.Frame.
func (e *Evaluator) Apply(ctx Context, t Target) Effect {
	var total Effect
	for _, en := range e.entries {
		f := &en.field
		if !f.Active(ctx.Frame) || !f.Affects(t.ID) {
			continue
		}
		scale := 1.0
		if en.scaleFrame == ctx.Frame {
			scale = en.scale
		}
		if scale == 0 {
			continue
		}
		total = total.Add(f.Apply(ctx, t, scale))
	}
	return total
}

// Clone deep-copies the evaluator, including compiled scripts.
func (e *Evaluator) Clone() *Evaluator {
	out := &Evaluator{
		entries: make([]*entry, len(e.entries)),
		byID:    make(map[string]int, len(e.byID)),
	}
	for i, en := range e.entries {
		c := *en
		c.field = en.field.Clone()
		c.expr = en.expr.Clone()
		out.entries[i] = &c
	}
	for k, v := range e.byID {
		out.byID[k] = v
	}
	return out
}
