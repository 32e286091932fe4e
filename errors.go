package temper

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrSyntax matches every *SyntaxError when used with errors.Is.
	ErrSyntax = errors.New("syntax error")

	// ErrMalformedDirective is returned when the body of a directive
	// doesn't match any known directive shape.
	ErrMalformedDirective = errors.New("malformed directive")

	// ErrUnterminatedDirective is returned when a directive opener has no
	// closer after it.
	ErrUnterminatedDirective = errors.New("unterminated directive")

	// ErrUnmatchedEnd is returned when an end directive has no open if or
	// for block to close.
	ErrUnmatchedEnd = errors.New("end without matching if or for")

	// ErrUnterminatedBlock is returned when an if or for block is still
	// open at the end of the template.
	ErrUnterminatedBlock = errors.New("unterminated block")

	// ErrOperandOverflow is returned when a template needs more
	// fragments, variables, includes, or instructions than an
	// Instruction operand can address.
	ErrOperandOverflow = fmt.Errorf("operand exceeds %d", MaxOperand)

	// ErrInvalidInstruction is returned by Execute when it encounters an
	// instruction no conforming compiler emits.
	ErrInvalidInstruction = errors.New("invalid instruction")

	// ErrInvalidProgram is returned when a decoded Program fails
	// validation.
	ErrInvalidProgram = errors.New("invalid program")

	// ErrTemplateNotFound is returned when rendering a template name the
	// Collection doesn't hold.
	ErrTemplateNotFound = errors.New("template not found")

	// ErrIncludeDepthExceeded is reported (and swallowed) when nested
	// includes go deeper than the configured maximum.
	ErrIncludeDepthExceeded = errors.New("maximum include depth exceeded")

	// ErrIncludeLimitExceeded is reported (and swallowed) when a single
	// render expands more includes than the configured maximum.
	ErrIncludeLimitExceeded = errors.New("maximum includes per render exceeded")

	// ErrIncludeCycle is returned when templates in a Collection include
	// each other in a cycle, and reported (and swallowed) when a render
	// re-enters a template it is already rendering.
	ErrIncludeCycle = errors.New("include cycle detected")

	// ErrUnsupportedValue is returned when a Go value can't be
	// represented as a binding Value.
	ErrUnsupportedValue = errors.New("unsupported value")

	// ErrNoTemplateDir is returned when reloading a Collection that
	// wasn't loaded from an fs.FS.
	ErrNoTemplateDir = errors.New("collection has no template directory")

	// ErrUnknownConfigKey is returned when a config file sets a key
	// Config doesn't have.
	ErrUnknownConfigKey = errors.New("unknown config key")
)

// SyntaxError describes a template that failed to compile.
type SyntaxError struct {
	// Offset is the byte offset of the offending directive's opener.
	Offset int

	// Line and Column are the 1-based position of Offset. Column counts
	// bytes.
	Line, Column int

	// Directive is the directive text, without its opener or closer.
	// It's empty when the error isn't about a single directive.
	Directive string

	// Err is one of the Err* syntax sentinels.
	Err error
}

func newSyntaxError(src string, offset int, directive string, err error) *SyntaxError {
	line := 1 + strings.Count(src[:offset], "\n")
	column := offset + 1
	if nl := strings.LastIndexByte(src[:offset], '\n'); nl >= 0 {
		column = offset - nl
	}
	return &SyntaxError{
		Offset:    offset,
		Line:      line,
		Column:    column,
		Directive: directive,
		Err:       err,
	}
}

func (e *SyntaxError) Error() string {
	if e.Directive == "" {
		return fmt.Sprintf("syntax error at %d:%d: %v", e.Line, e.Column, e.Err)
	}
	return fmt.Sprintf("syntax error at %d:%d in %q: %v", e.Line, e.Column, e.Directive, e.Err)
}

func (e *SyntaxError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrSyntax.
func (e *SyntaxError) Is(target error) bool {
	return target == ErrSyntax
}
