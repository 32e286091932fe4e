package temper_test

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"impractical.co/temper"
)

func TestProgramBinaryRoundTrip(t *testing.T) {
	t.Parallel()

	src := "Hi $(who)! $(for n in xs)$(if n)<$(n)>$(end)$(end)$(include footer)"
	prog := temper.MustCompile(src)

	data, err := prog.MarshalBinary()
	if err != nil {
		t.Fatalf("Unexpected error encoding: %v", err)
	}
	again, err := prog.MarshalBinary()
	if err != nil {
		t.Fatalf("Unexpected error encoding: %v", err)
	}
	if !bytes.Equal(data, again) {
		t.Errorf("Expected encoding to be deterministic")
	}

	var decoded temper.Program
	if err := decoded.UnmarshalBinary(data); err != nil {
		t.Fatalf("Unexpected error decoding: %v", err)
	}
	if diff := cmp.Diff(prog.Disassemble(), decoded.Disassemble()); diff != "" {
		t.Errorf("decoded program mismatch (-want +got):\n%s", diff)
	}

	bindings, err := temper.NewBindings(map[string]any{"who": "you", "xs": []int{1, 2}})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	want, _ := prog.Render(bindings)
	got, err := decoded.Render(bindings)
	if err != nil {
		t.Fatalf("Unexpected error rendering decoded program: %v", err)
	}
	if want != got {
		t.Errorf("Expected decoded program to render %q, got %q", want, got)
	}
}

func TestProgramUnmarshalRejectsInvalid(t *testing.T) {
	t.Parallel()

	tests := map[string]map[int]any{
		"no instructions":       {1: 1},
		"no halt":               {1: 1, 2: []string{"a"}, 5: []uint16{0x2000}},
		"halt with operand":     {1: 1, 5: []uint16{0x0001}},
		"fragment out of range": {1: 1, 5: []uint16{0x2001, 0}},
		"variable out of range": {1: 1, 3: []string{"a"}, 5: []uint16{0x4001, 0}},
		"include out of range":  {1: 1, 5: []uint16{0xE000, 0}},
		"jump out of range":     {1: 1, 5: []uint16{0xC005, 0}},
		"false jump alone":      {1: 1, 3: []string{"a"}, 5: []uint16{0x8001, 0}},
		"list jump one operand": {1: 1, 3: []string{"a"}, 5: []uint16{0x6000, 0xA002, 0}},
		"unsupported version":   {1: 99, 5: []uint16{0}},
		"jump to itself":        {1: 1, 5: []uint16{0xC000, 0}},
		"false jump backward":   {1: 1, 3: []string{"a"}, 5: []uint16{0x6000, 0x8000, 0}},
		"list jump to itself":   {1: 1, 3: []string{"a", "b"}, 5: []uint16{0x6000, 0x6001, 0xA002, 0}},
		"jump into an if":       {1: 1, 3: []string{"a"}, 5: []uint16{0x6000, 0x8003, 0xC000, 0}},
		"loop restarted":        {1: 1, 3: []string{"a", "b"}, 5: []uint16{0x6000, 0x6001, 0xA004, 0xC002, 0xC002, 0}},
		"crossing blocks":       {1: 1, 3: []string{"a"}, 5: []uint16{0x6000, 0x8005, 0x6000, 0x8006, 0x4000, 0x4000, 0}},
		"jump before loop end":  {1: 1, 3: []string{"a", "b"}, 5: []uint16{0x6000, 0x6001, 0xA005, 0xC002, 0x4000, 0}},
	}

	for name, wire := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			data, err := cbor.Marshal(wire)
			if err != nil {
				t.Fatalf("Unexpected error encoding: %v", err)
			}
			var prog temper.Program
			err = prog.UnmarshalBinary(data)
			if !errors.Is(err, temper.ErrInvalidProgram) {
				t.Errorf("Expected ErrInvalidProgram, got %v", err)
			}
		})
	}

	var prog temper.Program
	if err := prog.UnmarshalBinary([]byte{0xff, 0x00}); err == nil {
		t.Errorf("Expected error decoding garbage")
	}
}

func TestCollectionCache(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	coll := temper.New(temper.DefaultConfig())
	for name, src := range map[string]string{
		"page":   "$(include header)body $(who)",
		"header": "[$(title)] ",
	} {
		if err := coll.Add(ctx, name, src); err != nil {
			t.Fatalf("Unexpected error adding %q: %v", name, err)
		}
	}

	var buf, again bytes.Buffer
	if err := coll.WriteCache(&buf); err != nil {
		t.Fatalf("Unexpected error writing cache: %v", err)
	}
	if err := coll.WriteCache(&again); err != nil {
		t.Fatalf("Unexpected error writing cache: %v", err)
	}
	if !bytes.Equal(buf.Bytes(), again.Bytes()) {
		t.Errorf("Expected cache encoding to be deterministic")
	}

	restored, err := temper.LoadCache(ctx, bytes.NewReader(buf.Bytes()), temper.DefaultConfig())
	if err != nil {
		t.Fatalf("Unexpected error loading cache: %v", err)
	}
	if diff := cmp.Diff(coll.Names(), restored.Names()); diff != "" {
		t.Errorf("names mismatch (-want +got):\n%s", diff)
	}
	for _, name := range coll.Names() {
		want, _ := coll.Lookup(name)
		got, _ := restored.Lookup(name)
		if diff := cmp.Diff(want.Variables(), got.Variables(), cmpopts.EquateEmpty()); diff != "" {
			t.Errorf("%s variables mismatch (-want +got):\n%s", name, diff)
		}
		if diff := cmp.Diff(want.Instructions(), got.Instructions(), cmpopts.EquateEmpty()); diff != "" {
			t.Errorf("%s instructions mismatch (-want +got):\n%s", name, diff)
		}
	}
	renderExpect(t, ctx, restored, "page", temper.Bindings{
		"title": temper.String("Cached"),
		"who":   temper.String("here"),
	}, "[Cached] body here")

	if err := restored.Reload(ctx, false); !errors.Is(err, temper.ErrNoTemplateDir) {
		t.Errorf("Expected ErrNoTemplateDir, got %v", err)
	}

	if err := coll.Add(ctx, "header", "$(include page)"); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	buf.Reset()
	if err := coll.WriteCache(&buf); err != nil {
		t.Fatalf("Unexpected error writing cache: %v", err)
	}
	_, err = temper.LoadCache(ctx, &buf, temper.Config{RejectIncludeCycles: true})
	if !errors.Is(err, temper.ErrIncludeCycle) {
		t.Errorf("Expected ErrIncludeCycle, got %v", err)
	}
}

func TestLoadCacheRejectsInvalid(t *testing.T) {
	t.Parallel()

	data, err := cbor.Marshal(map[int]any{
		1: 1,
		2: map[string]map[int]any{
			"bad": {1: 1, 5: []uint16{0x2000}},
		},
	})
	if err != nil {
		t.Fatalf("Unexpected error encoding: %v", err)
	}
	_, err = temper.LoadCache(context.Background(), bytes.NewReader(data), temper.DefaultConfig())
	if !errors.Is(err, temper.ErrInvalidProgram) {
		t.Errorf("Expected ErrInvalidProgram, got %v", err)
	}

	data, err = cbor.Marshal(map[int]any{1: 2})
	if err != nil {
		t.Fatalf("Unexpected error encoding: %v", err)
	}
	_, err = temper.LoadCache(context.Background(), bytes.NewReader(data), temper.DefaultConfig())
	if !errors.Is(err, temper.ErrInvalidProgram) {
		t.Errorf("Expected ErrInvalidProgram for a future cache version, got %v", err)
	}
}
