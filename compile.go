package temper

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	directiveOpener = "$("
	directiveCloser = ')'
	escapeChar      = '\\'
)

const identifier = `[A-Za-z_][A-Za-z0-9_]*`

var (
	substituteExp = regexp.MustCompile(`^(` + identifier + `)$`)
	ifExp         = regexp.MustCompile(`^if\s+(` + identifier + `)$`)
	forExp        = regexp.MustCompile(`^for\s+(` + identifier + `)\s+in\s+(` + identifier + `)$`)
	includeExp    = regexp.MustCompile(`(?s)^include (.+)$`)
)

// block is an open if or for waiting for its end.
type block struct {
	// jump is the address of the block's FalseJump or ListEndJump.
	jump int

	// offset and directive locate the opener for error messages.
	offset    int
	directive string
}

type compiler struct {
	src     string
	prog    *Program
	blocks  []block
	literal strings.Builder
}

// Compile turns template source into a Program. It returns a *SyntaxError
// if a directive can't be parsed, or if an if or for block is left open or
// closed twice.
func Compile(src string) (*Program, error) {
	c := &compiler{
		src:  src,
		prog: &Program{},
	}
	if err := c.compile(); err != nil {
		return nil, err
	}
	return c.prog, nil
}

// MustCompile is like Compile but panics if the template doesn't compile.
func MustCompile(src string) *Program {
	prog, err := Compile(src)
	if err != nil {
		panic(fmt.Sprintf("temper: Compile(%q): %v", src, err))
	}
	return prog
}

func (c *compiler) compile() error {
	pos := 0
	for pos < len(c.src) {
		idx := strings.Index(c.src[pos:], directiveOpener)
		if idx < 0 {
			c.literal.WriteString(c.src[pos:])
			break
		}
		start := pos + idx

		escapes := 0
		for start-escapes-1 >= pos && c.src[start-escapes-1] == escapeChar {
			escapes++
		}
		if escapes > 0 {
			// the backslash touching the opener is always consumed;
			// the rest of the run is literal text
			c.literal.WriteString(c.src[pos : start-1])
			if escapes%2 == 1 {
				c.literal.WriteString(directiveOpener)
				pos = start + len(directiveOpener)
				continue
			}
		} else {
			c.literal.WriteString(c.src[pos:start])
		}
		if err := c.flushLiteral(start); err != nil {
			return err
		}

		bodyStart := start + len(directiveOpener)
		length := strings.IndexByte(c.src[bodyStart:], directiveCloser)
		if length < 0 {
			return newSyntaxError(c.src, start, "", ErrUnterminatedDirective)
		}
		if err := c.directive(start, c.src[bodyStart:bodyStart+length]); err != nil {
			return err
		}
		pos = bodyStart + length + 1
	}
	if err := c.flushLiteral(len(c.src)); err != nil {
		return err
	}

	if len(c.blocks) > 0 {
		open := c.blocks[len(c.blocks)-1]
		return newSyntaxError(c.src, open.offset, open.directive, ErrUnterminatedBlock)
	}
	_, err := c.emit(len(c.src), OpHalt, 0)
	return err
}

func (c *compiler) directive(offset int, body string) error {
	if body == "end" {
		return c.end(offset, body)
	}
	if m := substituteExp.FindStringSubmatch(body); m != nil {
		idx, err := c.variable(offset, m[1])
		if err != nil {
			return err
		}
		_, err = c.emit(offset, OpSubstitute, idx)
		return err
	}
	if m := ifExp.FindStringSubmatch(body); m != nil {
		idx, err := c.variable(offset, m[1])
		if err != nil {
			return err
		}
		if _, err := c.emit(offset, OpImmediate, idx); err != nil {
			return err
		}
		return c.open(offset, body, OpFalseJump)
	}
	if m := forExp.FindStringSubmatch(body); m != nil {
		for _, name := range m[1:] {
			idx, err := c.variable(offset, name)
			if err != nil {
				return err
			}
			if _, err := c.emit(offset, OpImmediate, idx); err != nil {
				return err
			}
		}
		return c.open(offset, body, OpListEndJump)
	}
	if m := includeExp.FindStringSubmatch(body); m != nil {
		idx, err := c.register(offset, &c.prog.includes, m[1])
		if err != nil {
			return err
		}
		_, err = c.emit(offset, OpInclude, idx)
		return err
	}
	return newSyntaxError(c.src, offset, body, ErrMalformedDirective)
}

// open emits a forward jump with a placeholder target and pushes it onto
// the block stack for end to patch.
func (c *compiler) open(offset int, body string, op Opcode) error {
	addr, err := c.emit(offset, op, 0)
	if err != nil {
		return err
	}
	c.blocks = append(c.blocks, block{jump: addr, offset: offset, directive: body})
	return nil
}

func (c *compiler) end(offset int, body string) error {
	if len(c.blocks) == 0 {
		return newSyntaxError(c.src, offset, body, ErrUnmatchedEnd)
	}
	open := c.blocks[len(c.blocks)-1]
	c.blocks = c.blocks[:len(c.blocks)-1]

	if c.prog.instructions[open.jump].Opcode() == OpListEndJump {
		// loop back to re-test the list
		if _, err := c.emit(offset, OpJump, open.jump); err != nil {
			return err
		}
	}
	next := len(c.prog.instructions)
	if next > MaxOperand {
		return newSyntaxError(c.src, offset, body, ErrOperandOverflow)
	}
	op := c.prog.instructions[open.jump].Opcode()
	c.prog.instructions[open.jump] = encode(op, next)
	return nil
}

func (c *compiler) flushLiteral(offset int) error {
	if c.literal.Len() == 0 {
		return nil
	}
	c.prog.fragments = append(c.prog.fragments, c.literal.String())
	c.literal.Reset()
	_, err := c.emit(offset, OpCopy, len(c.prog.fragments)-1)
	return err
}

func (c *compiler) variable(offset int, name string) (int, error) {
	return c.register(offset, &c.prog.variables, name)
}

// register returns the index of name in table, appending it if it isn't
// there yet.
func (c *compiler) register(offset int, table *[]string, name string) (int, error) {
	for i, existing := range *table {
		if existing == name {
			return i, nil
		}
	}
	if len(*table) > MaxOperand {
		return 0, newSyntaxError(c.src, offset, name, ErrOperandOverflow)
	}
	*table = append(*table, name)
	return len(*table) - 1, nil
}

// emit appends an instruction and returns its address.
func (c *compiler) emit(offset int, op Opcode, operand int) (int, error) {
	if operand > MaxOperand || len(c.prog.instructions) > MaxOperand {
		return 0, newSyntaxError(c.src, offset, "", ErrOperandOverflow)
	}
	c.prog.instructions = append(c.prog.instructions, encode(op, operand))
	return len(c.prog.instructions) - 1, nil
}
