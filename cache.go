package temper

import (
	"context"
	"fmt"
	"io"
	"slices"

	"github.com/fxamacker/cbor/v2"
)

// cacheVersion is bumped whenever the encoding of programWire changes.
const cacheVersion = 1

// cborEncMode encodes canonically, so the same collection always produces
// the same bytes.
var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("temper: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

type programWire struct {
	Version      int      `cbor:"1,keyasint"`
	Fragments    []string `cbor:"2,keyasint,omitempty"`
	Variables    []string `cbor:"3,keyasint,omitempty"`
	Includes     []string `cbor:"4,keyasint,omitempty"`
	Instructions []uint16 `cbor:"5,keyasint"`
}

type collectionWire struct {
	Version   int                    `cbor:"1,keyasint"`
	Templates map[string]programWire `cbor:"2,keyasint"`
}

func (p *Program) wire() programWire {
	code := make([]uint16, len(p.instructions))
	for i, ins := range p.instructions {
		code[i] = uint16(ins)
	}
	return programWire{
		Version:      cacheVersion,
		Fragments:    p.fragments,
		Variables:    p.variables,
		Includes:     p.includes,
		Instructions: code,
	}
}

func programFromWire(w programWire) (*Program, error) {
	if w.Version != cacheVersion {
		return nil, fmt.Errorf("%w: unsupported encoding version %d", ErrInvalidProgram, w.Version)
	}
	p := &Program{
		fragments:    slices.Clone(w.Fragments),
		variables:    slices.Clone(w.Variables),
		includes:     slices.Clone(w.Includes),
		instructions: make([]Instruction, len(w.Instructions)),
	}
	for i, word := range w.Instructions {
		p.instructions[i] = Instruction(word)
	}
	if err := p.validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// MarshalBinary encodes the compiled program as CBOR.
func (p *Program) MarshalBinary() ([]byte, error) {
	return cborEncMode.Marshal(p.wire())
}

// UnmarshalBinary decodes a program encoded by MarshalBinary, replacing p.
// Programs that couldn't have come from Compile are rejected with an error
// wrapping ErrInvalidProgram.
func (p *Program) UnmarshalBinary(data []byte) error {
	var w programWire
	if err := cbor.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("error decoding program: %w", err)
	}
	decoded, err := programFromWire(w)
	if err != nil {
		return err
	}
	*p = *decoded
	return nil
}

// WriteCache writes every compiled template in the Collection to w, so
// LoadCache can restore them without recompiling.
func (c *Collection) WriteCache(w io.Writer) error {
	c.programsMu.RLock()
	wire := collectionWire{
		Version:   cacheVersion,
		Templates: make(map[string]programWire, len(c.programs)),
	}
	for name, prog := range c.programs {
		wire.Templates[name] = prog.wire()
	}
	c.programsMu.RUnlock()

	if err := cborEncMode.NewEncoder(w).Encode(wire); err != nil {
		return fmt.Errorf("error writing template cache: %w", err)
	}
	return nil
}

// LoadCache builds a Collection from templates written by WriteCache. The
// result has no template directory, so it can't be reloaded.
func LoadCache(ctx context.Context, r io.Reader, cfg Config) (*Collection, error) {
	var wire collectionWire
	if err := cbor.NewDecoder(r).Decode(&wire); err != nil {
		return nil, fmt.Errorf("error reading template cache: %w", err)
	}
	if wire.Version != cacheVersion {
		return nil, fmt.Errorf("%w: unsupported cache version %d", ErrInvalidProgram, wire.Version)
	}
	c := New(cfg)
	for name, w := range wire.Templates {
		prog, err := programFromWire(w)
		if err != nil {
			return nil, fmt.Errorf("error restoring %q: %w", name, err)
		}
		c.programs[name] = prog
	}
	if err := checkIncludes(ctx, c.programs, cfg); err != nil {
		return nil, err
	}
	logger(ctx).DebugContext(ctx, "restored templates from cache", "templates", len(c.programs))
	return c, nil
}
