package temper

import (
	"fmt"
	"slices"
	"strings"
)

const (
	operandBits = 13
	operandMask = 1<<operandBits - 1

	// MaxOperand is the largest fragment, variable, or include index, and
	// the largest jump target, that an Instruction can carry.
	MaxOperand = operandMask
)

// Opcode is the tag stored in the high three bits of an Instruction.
type Opcode uint16

const (
	// OpHalt ends execution. Its operand must be zero.
	OpHalt Opcode = iota << operandBits

	// OpCopy appends the fragment named by its operand verbatim.
	OpCopy

	// OpSubstitute appends the textual value of the variable named by
	// its operand.
	OpSubstitute

	// OpImmediate names a variable for the control instruction that
	// follows it. It produces no output.
	OpImmediate

	// OpFalseJump jumps to its operand when the variable named by the
	// preceding OpImmediate does not exist.
	OpFalseJump

	// OpListEndJump advances the loop named by the two preceding
	// OpImmediate instructions (induction variable, then list) and jumps
	// to its operand when the list has no more items.
	OpListEndJump

	// OpJump unconditionally jumps to its operand.
	OpJump

	// OpInclude renders the include target named by its operand.
	OpInclude
)

const opcodeMask = Opcode(^uint16(operandMask))

var opcodeNames = map[Opcode]string{
	OpHalt:        "HALT",
	OpCopy:        "COPY",
	OpSubstitute:  "SUBSTITUTE",
	OpImmediate:   "IMMEDIATE",
	OpFalseJump:   "FALSE_JUMP",
	OpListEndJump: "LIST_END_JUMP",
	OpJump:        "JUMP",
	OpInclude:     "INCLUDE",
}

func (op Opcode) String() string {
	if name, ok := opcodeNames[op]; ok {
		return name
	}
	return fmt.Sprintf("Opcode(0x%04X)", uint16(op))
}

func (op Opcode) isJump() bool {
	return op == OpFalseJump || op == OpListEndJump || op == OpJump
}

// Instruction is a single fixed-width bytecode word: an Opcode in the high
// bits and a 13-bit operand in the low bits.
type Instruction uint16

func encode(op Opcode, operand int) Instruction {
	return Instruction(uint16(op) | uint16(operand&operandMask))
}

// Opcode returns the instruction's tag.
func (i Instruction) Opcode() Opcode {
	return Opcode(i) & opcodeMask
}

// Operand returns the instruction's table index or jump target.
func (i Instruction) Operand() int {
	return int(i & operandMask)
}

func (i Instruction) String() string {
	if i.Opcode() == OpHalt && i.Operand() == 0 {
		return OpHalt.String()
	}
	return fmt.Sprintf("%s %d", i.Opcode(), i.Operand())
}

// Program is a compiled template. It is immutable once Compile returns it,
// and can be executed by any number of goroutines at once.
type Program struct {
	fragments    []string
	variables    []string
	includes     []string
	instructions []Instruction
}

// Fragments returns the literal text slices copied by OpCopy, by index.
func (p *Program) Fragments() []string {
	return slices.Clone(p.fragments)
}

// Variables returns the distinct variable names the program refers to, in
// order of first occurrence.
func (p *Program) Variables() []string {
	return slices.Clone(p.variables)
}

// Includes returns the distinct include targets the program refers to, in
// order of first occurrence.
func (p *Program) Includes() []string {
	return slices.Clone(p.includes)
}

// Instructions returns the program's bytecode.
func (p *Program) Instructions() []Instruction {
	return slices.Clone(p.instructions)
}

// validate checks the structural guarantees the compiler makes, so
// programs that didn't come from Compile can be trusted by Execute.
//
// Besides table bounds, the jumps must nest the way if and for blocks do:
// FalseJump and ListEndJump jump forward to the end of their block, never
// past the end of an enclosing one, and the only backward jump is the one
// closing a loop, which sits just before the loop's end and returns to the
// loop's ListEndJump. Every backward jump then advances a list, so
// execution terminates once the lists do.
func (p *Program) validate() error {
	count := len(p.instructions)
	if count == 0 || p.instructions[count-1] != encode(OpHalt, 0) {
		return fmt.Errorf("%w: program does not end in %s", ErrInvalidProgram, OpHalt)
	}
	type openBlock struct {
		start, end int
	}
	var blocks []openBlock
	for pc, ins := range p.instructions {
		for len(blocks) > 0 && blocks[len(blocks)-1].end == pc {
			blocks = blocks[:len(blocks)-1]
		}
		operand := ins.Operand()
		var limit int
		switch ins.Opcode() {
		case OpHalt:
			if operand != 0 {
				return fmt.Errorf("%w: %04d: %s has an operand", ErrInvalidProgram, pc, ins)
			}
			continue
		case OpCopy:
			limit = len(p.fragments)
		case OpSubstitute, OpImmediate:
			limit = len(p.variables)
		case OpInclude:
			limit = len(p.includes)
		case OpFalseJump, OpListEndJump, OpJump:
			limit = count
		}
		if operand >= limit {
			return fmt.Errorf("%w: %04d: %s operand out of range", ErrInvalidProgram, pc, ins)
		}
		switch ins.Opcode() {
		case OpFalseJump, OpListEndJump:
			if ins.Opcode() == OpFalseJump && (pc < 1 || p.instructions[pc-1].Opcode() != OpImmediate) {
				return fmt.Errorf("%w: %04d: %s is not preceded by %s", ErrInvalidProgram, pc, ins, OpImmediate)
			}
			if ins.Opcode() == OpListEndJump && (pc < 2 || p.instructions[pc-1].Opcode() != OpImmediate || p.instructions[pc-2].Opcode() != OpImmediate) {
				return fmt.Errorf("%w: %04d: %s is not preceded by two %s", ErrInvalidProgram, pc, ins, OpImmediate)
			}
			if operand <= pc {
				return fmt.Errorf("%w: %04d: %s does not jump forward", ErrInvalidProgram, pc, ins)
			}
			if len(blocks) > 0 && operand > blocks[len(blocks)-1].end {
				return fmt.Errorf("%w: %04d: %s jumps out of its enclosing block", ErrInvalidProgram, pc, ins)
			}
			blocks = append(blocks, openBlock{start: pc, end: operand})
		case OpJump:
			if len(blocks) == 0 {
				return fmt.Errorf("%w: %04d: %s does not close a loop", ErrInvalidProgram, pc, ins)
			}
			loop := blocks[len(blocks)-1]
			if p.instructions[loop.start].Opcode() != OpListEndJump || loop.start != operand || loop.end != pc+1 {
				return fmt.Errorf("%w: %04d: %s does not close a loop", ErrInvalidProgram, pc, ins)
			}
		}
	}
	return nil
}

// Disassemble returns a human-readable listing of the program's tables and
// bytecode.
func (p *Program) Disassemble() string {
	var sb strings.Builder

	if len(p.fragments) > 0 {
		sb.WriteString("; fragments:\n")
		for i, frag := range p.fragments {
			fmt.Fprintf(&sb, ";   [%3d] %q\n", i, abbreviate(frag))
		}
	}
	if len(p.variables) > 0 {
		sb.WriteString("; variables:\n")
		for i, name := range p.variables {
			fmt.Fprintf(&sb, ";   [%3d] %s\n", i, name)
		}
	}
	if len(p.includes) > 0 {
		sb.WriteString("; includes:\n")
		for i, name := range p.includes {
			fmt.Fprintf(&sb, ";   [%3d] %s\n", i, name)
		}
	}

	for pc, ins := range p.instructions {
		op, operand := ins.Opcode(), ins.Operand()
		if op == OpHalt {
			fmt.Fprintf(&sb, "%04d  %s\n", pc, ins)
			continue
		}
		fmt.Fprintf(&sb, "%04d  %-14s %4d", pc, op, operand)
		switch {
		case op == OpCopy && operand < len(p.fragments):
			fmt.Fprintf(&sb, "    ; %q", abbreviate(p.fragments[operand]))
		case (op == OpSubstitute || op == OpImmediate) && operand < len(p.variables):
			fmt.Fprintf(&sb, "    ; %s", p.variables[operand])
		case op == OpInclude && operand < len(p.includes):
			fmt.Fprintf(&sb, "    ; %s", p.includes[operand])
		case op.isJump():
			fmt.Fprintf(&sb, "    ; -> %04d", operand)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func abbreviate(s string) string {
	if len(s) > 40 {
		return s[:37] + "..."
	}
	return s
}
