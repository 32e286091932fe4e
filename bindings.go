package temper

import (
	"fmt"
	"strings"
)

// Bindings maps variable names to the Values a template renders with.
// Rendering never modifies Bindings, so one Bindings can be shared by
// concurrent renders as long as its Iterables are safe to walk
// concurrently.
type Bindings map[string]Value

// NewBindings converts every value in values with ValueOf.
func NewBindings(values map[string]any) (Bindings, error) {
	bindings := make(Bindings, len(values))
	for name, raw := range values {
		v, err := ValueOf(raw)
		if err != nil {
			return nil, fmt.Errorf("error binding %q: %w", name, err)
		}
		bindings[name] = v
	}
	return bindings, nil
}

// cursor is an active loop's position in its sequence.
type cursor struct {
	iter    Iterator
	current Value
}

// bindingResolver is the Resolver for rendering one Program against one
// Bindings. It holds the iteration state for a single execution and must
// not be reused.
type bindingResolver struct {
	program  *Program
	bindings Bindings

	// cursors holds active loops, keyed by induction variable index.
	cursors map[int]*cursor

	// include renders an include target by name. It may be nil, in which
	// case includes render as nothing.
	include func(name string, out *strings.Builder)
}

var _ Resolver = &bindingResolver{}

func newBindingResolver(p *Program, bindings Bindings, include func(string, *strings.Builder)) *bindingResolver {
	return &bindingResolver{
		program:  p,
		bindings: bindings,
		cursors:  map[int]*cursor{},
		include:  include,
	}
}

// lookup returns the variable's current value. An active loop's induction
// variable shadows a binding of the same name.
func (r *bindingResolver) lookup(variable int) (Value, bool) {
	if c, ok := r.cursors[variable]; ok {
		return c.current, true
	}
	v, ok := r.bindings[r.program.variables[variable]]
	return v, ok
}

func (r *bindingResolver) PrintValue(variable int, out *strings.Builder) {
	v, ok := r.lookup(variable)
	if !ok || !v.Printable() {
		return
	}
	out.WriteString(v.String())
}

func (r *bindingResolver) Exists(variable int) bool {
	_, ok := r.lookup(variable)
	return ok
}

func (r *bindingResolver) AdvanceList(induction, list int) bool {
	if c, ok := r.cursors[induction]; ok {
		next, more := c.iter.Next()
		if !more {
			delete(r.cursors, induction)
			return false
		}
		c.current = next
		return true
	}

	seq, ok := r.lookup(list)
	if !ok || !seq.IsSequence() {
		return false
	}
	iter := seq.Iterate()
	first, ok := iter.Next()
	if !ok {
		return false
	}
	r.cursors[induction] = &cursor{iter: iter, current: first}
	return true
}

func (r *bindingResolver) RenderInclude(include int, out *strings.Builder) {
	if r.include == nil {
		return
	}
	r.include(r.program.includes[include], out)
}

// Render executes the program against bindings. Include directives render
// as nothing; use a Collection to resolve them.
func (p *Program) Render(bindings Bindings) (string, error) {
	return Execute(p, newBindingResolver(p, bindings, nil))
}
