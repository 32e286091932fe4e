package temper

import (
	"fmt"
	"strings"
)

// Resolver gives Execute access to a program's variables and includes by
// table index, without Execute knowing anything about how values are
// stored.
type Resolver interface {
	// PrintValue appends the textual form of the variable's current
	// value to out. It appends nothing if the variable is absent or its
	// value isn't printable.
	PrintValue(variable int, out *strings.Builder)

	// Exists reports whether the variable currently denotes a value,
	// either through the bindings or as an active loop's induction
	// variable.
	Exists(variable int) bool

	// AdvanceList moves the loop whose induction variable is induction
	// to the next element of the sequence bound to list, starting the
	// loop if it isn't active yet. It returns false, ending the loop,
	// when there is no next element.
	AdvanceList(induction, list int) bool

	// RenderInclude appends the rendered output of the include target
	// to out. Failures append nothing and are not reported.
	RenderInclude(include int, out *strings.Builder)
}

// Execute runs the program against r and returns the rendered output.
//
// The only error Execute returns is ErrInvalidInstruction, which a program
// produced by Compile never triggers. No partial output is returned with
// it.
func Execute(p *Program, r Resolver) (string, error) {
	var out strings.Builder
	code := p.instructions
	for pc := 0; pc < len(code); pc++ {
		ins := code[pc]
		switch ins.Opcode() {
		case OpHalt:
			if ins.Operand() != 0 {
				return "", fmt.Errorf("%w: %04d: %s", ErrInvalidInstruction, pc, ins)
			}
			return out.String(), nil
		case OpCopy:
			out.WriteString(p.fragments[ins.Operand()])
		case OpSubstitute:
			r.PrintValue(ins.Operand(), &out)
		case OpImmediate:
			// consumed by the jump that follows
		case OpFalseJump:
			if !r.Exists(code[pc-1].Operand()) {
				pc = ins.Operand() - 1
			}
		case OpListEndJump:
			if !r.AdvanceList(code[pc-2].Operand(), code[pc-1].Operand()) {
				pc = ins.Operand() - 1
			}
		case OpJump:
			pc = ins.Operand() - 1
		case OpInclude:
			r.RenderInclude(ins.Operand(), &out)
		default:
			return "", fmt.Errorf("%w: %04d: %s", ErrInvalidInstruction, pc, ins)
		}
	}
	return out.String(), nil
}
