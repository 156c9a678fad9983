// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package lincircuit

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const smallCircuit = `# y0 = x0 ^ x1, y1 = !(x1 ^ x2)
3 0 1 0 2 0
t0 = x0 XOR x1
y0 = t0 XOR x2
y0 = y0 XOR x2
y1 = x1 XNOR x2
`

func TestParseCircuit(t *testing.T) {
	c, err := ParseCircuitString("small", smallCircuit)
	require.NoError(t, err)

	require.Equal(t, "small", c.Name())
	require.Equal(t, 3, c.NumInputs())
	require.Equal(t, 2, c.NumOutputs())
	require.Equal(t, 4, c.NumGates())
	require.Equal(t, Gate{
		Target: Register{FileY, 1},
		Op1:    Register{FileX, 1},
		Op2:    Register{FileX, 2},
		Opcode: OpXNOR,
	}, c.Gates()[3])
}

func TestParseCircuitOffsets(t *testing.T) {
	src := "2 5 1 10 1 20\n\nt10 = x5 XOR x6\ny20 = t10 XNOR x5\n"
	c, err := ParseCircuitString("offsets", src)
	require.NoError(t, err)

	gates := c.Gates()
	require.Equal(t, Register{FileX, 0}, gates[0].Op1)
	require.Equal(t, Register{FileX, 1}, gates[0].Op2)
	require.Equal(t, Register{FileT, 0}, gates[0].Target)
	require.Equal(t, Register{FileY, 0}, gates[1].Target)

	// String re-emits literal register numbers.
	again, err := ParseCircuitString("offsets", c.String())
	require.NoError(t, err)
	require.Equal(t, c.Header(), again.Header())
	require.Equal(t, gates, again.Gates())
}

func TestParseCircuitErrors(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		wantErr error
	}{
		{"missing header", "# nothing\n", ErrParse},
		{"short header", "1 0 1 0\n", ErrParse},
		{"negative header", "1 0 -1 0 1 0\n", ErrParse},
		{"no inputs", "0 0 0 0 1 0\n", ErrParse},
		{"unknown opcode", "2 0 0 0 1 0\ny0 = x0 AND x1\n", ErrParse},
		{"missing equals", "2 0 0 0 1 0\ny0 x0 XOR x1\n", ErrParse},
		{"extra field", "2 0 0 0 1 0\ny0 = x0 XOR x1 x0\n", ErrParse},
		{"unknown file", "2 0 0 0 1 0\ny0 = z0 XOR x1\n", ErrParse},
		{"bad index", "2 0 0 0 1 0\ny0 = xa XOR x1\n", ErrParse},
		{"signed index", "2 0 0 0 1 0\ny+0 = x+0 XOR x+1\n", ErrParse},
		{"signed operand", "2 0 0 0 1 0\ny0 = x0 XOR x-0\n", ErrParse},
		{"signed header", "+2 0 0 0 1 0\ny0 = x0 XOR x1\n", ErrParse},
		{"writes input", "2 0 0 0 1 0\nx0 = x0 XOR x1\n", ErrParse},
		{"input past count", "32 0 0 0 1 0\ny0 = x32 XOR x0\n", ErrRegisterOutOfBounds},
		{"output past count", "2 0 0 0 1 0\ny1 = x0 XOR x1\n", ErrRegisterOutOfBounds},
		{"below offset", "2 4 0 0 1 0\ny0 = x3 XOR x4\n", ErrRegisterOutOfBounds},
		{"reads unwritten temp", "2 0 1 0 1 0\ny0 = t0 XOR x1\n", ErrUnorderedCircuit},
		{"reads unwritten output", "2 0 0 0 2 0\ny0 = y1 XOR x1\ny1 = x0 XOR x1\n", ErrUnorderedCircuit},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCircuitString(tt.name, tt.src)
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestParseCircuitErrorLine(t *testing.T) {
	_, err := ParseCircuitString("bad", "2 0 0 0 1 0\n\ny0 = x0 NAND x1\n")
	require.ErrorIs(t, err, ErrParse)
	require.Contains(t, err.Error(), "bad:3:")
}

func TestNewCircuitValidates(t *testing.T) {
	h := Header{Counts: [numFiles]int{2, 0, 1}}
	_, err := NewCircuit("bad-file", h, []Gate{{
		Target: Register{FileY, 0},
		Op1:    Register{File(7), 0},
		Op2:    Register{FileX, 0},
	}})
	require.ErrorIs(t, err, ErrParse)

	_, err = NewCircuit("bad-opcode", h, []Gate{{
		Target: Register{FileY, 0},
		Op1:    Register{FileX, 0},
		Op2:    Register{FileX, 1},
		Opcode: Opcode(9),
	}})
	require.ErrorIs(t, err, ErrParse)

	gates := []Gate{{Target: Register{FileY, 0}, Op1: Register{FileX, 0}, Op2: Register{FileX, 1}}}
	c, err := NewCircuit("ok", h, gates)
	require.NoError(t, err)

	// The circuit keeps its own copy of the gate list.
	gates[0].Opcode = OpXNOR
	require.Equal(t, OpXOR, c.Gates()[0].Opcode)
}

func TestEmbeddedCircuits(t *testing.T) {
	require.Equal(t, []string{CircuitMixColumns}, EmbeddedCircuitNames())

	c, err := EmbeddedCircuit(CircuitMixColumns)
	require.NoError(t, err)
	require.Equal(t, 32, c.NumInputs())
	require.Equal(t, 32, c.NumOutputs())
	require.Equal(t, 94, c.NumGates())

	_, err = EmbeddedCircuit("sbox")
	require.ErrorIs(t, err, ErrUnknownCircuit)
}

func TestEmbeddedCircuitAlias(t *testing.T) {
	c, err := EmbeddedCircuit("mixcolumns2")
	require.NoError(t, err)
	want, err := EmbeddedCircuit(CircuitMixColumns)
	require.NoError(t, err)
	require.Same(t, want, c)

	c, err = Loader{}.Load("mixcolumns2")
	require.NoError(t, err)
	require.Same(t, want, c)
}

func TestLoader(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "small.txt"), []byte(smallCircuit), 0600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.txt"), []byte("1 0 0 0 1 0\ny0 = x0 XOR x1\n"), 0600))

	l := Loader{Dir: dir}

	c, err := l.Load("small")
	require.NoError(t, err)
	require.Equal(t, 4, c.NumGates())

	c, err = l.Load(CircuitMixColumns)
	require.NoError(t, err)
	require.Equal(t, 94, c.NumGates())

	_, err = l.Load("broken")
	require.ErrorIs(t, err, ErrRegisterOutOfBounds)

	for _, name := range []string{"missing", "../small", "sub/small", ""} {
		_, err = l.Load(name)
		require.ErrorIs(t, err, ErrUnknownCircuit, "name %q", name)
	}

	_, err = Loader{}.Load("small")
	require.ErrorIs(t, err, ErrUnknownCircuit)
}

func FuzzParseCircuit(f *testing.F) {
	f.Add(smallCircuit)
	f.Add("2 0 0 0 1 0\ny0 = x0 XOR x1\n")
	f.Add("1 0 0 0 1 0\ny0 = x0 XNOR x9999999999999999999\n")

	f.Fuzz(func(t *testing.T, src string) {
		c, err := ParseCircuitString("fuzz", src)
		if err != nil {
			return
		}
		// Accepted circuits survive a render and reparse unchanged.
		again, err := ParseCircuitString("fuzz", c.String())
		if err != nil {
			t.Fatalf("reparse failed: %v\n%s", err, c.String())
		}
		if c.String() != again.String() {
			t.Fatalf("render mismatch:\n%s\n%s", c.String(), again.String())
		}
	})
}
