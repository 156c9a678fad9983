// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package lincircuit

import (
	"fmt"
	"strings"
)

// File names one of the three register files of a circuit.
type File uint8

const (
	// FileX holds the primary inputs.
	FileX File = iota
	// FileT holds intermediate values.
	FileT
	// FileY holds the outputs.
	FileY

	numFiles = 3

	// maxFileSize bounds the registers a single file may declare.
	maxFileSize = 1 << 20
)

func (f File) String() string {
	switch f {
	case FileX:
		return "x"
	case FileT:
		return "t"
	case FileY:
		return "y"
	default:
		return fmt.Sprintf("File(%d)", uint8(f))
	}
}

// Register addresses a slot of a register file. Index is zero-based: the
// literal suffix of the textual form minus the file offset.
type Register struct {
	File  File
	Index int
}

// Opcode is a linear gate.
type Opcode uint8

const (
	// OpXOR computes op1 XOR op2.
	OpXOR Opcode = iota
	// OpXNOR computes NOT(op1 XOR op2).
	OpXNOR
)

func (op Opcode) String() string {
	switch op {
	case OpXOR:
		return "XOR"
	case OpXNOR:
		return "XNOR"
	default:
		return fmt.Sprintf("Opcode(%d)", uint8(op))
	}
}

// Gate writes Op1 Opcode Op2 into Target.
type Gate struct {
	Target Register
	Op1    Register
	Op2    Register
	Opcode Opcode
}

// Header declares the size and literal offset of every register file,
// indexed by File.
type Header struct {
	Counts  [numFiles]int
	Offsets [numFiles]int
}

// Circuit is a validated straight-line linear program. Its gate list is a
// topological order of the gate graph: no gate reads an intermediate or
// output register before an earlier gate wrote it.
type Circuit struct {
	name   string
	header Header
	gates  []Gate
}

// NewCircuit validates header and gates and returns the circuit.
func NewCircuit(name string, header Header, gates []Gate) (*Circuit, error) {
	for f := range File(numFiles) {
		if header.Counts[f] < 0 || header.Offsets[f] < 0 {
			return nil, fmt.Errorf("%w: negative size or offset for file %s", ErrParse, f)
		}
		if header.Counts[f] > maxFileSize {
			return nil, fmt.Errorf("%w: file %s declares %d registers, limit %d",
				ErrParse, f, header.Counts[f], maxFileSize)
		}
	}
	if header.Counts[FileX] == 0 || header.Counts[FileY] == 0 {
		return nil, fmt.Errorf("%w: circuit needs at least one input and one output", ErrParse)
	}

	written := [numFiles][]bool{
		FileT: make([]bool, header.Counts[FileT]),
		FileY: make([]bool, header.Counts[FileY]),
	}
	for i, g := range gates {
		if g.Opcode != OpXOR && g.Opcode != OpXNOR {
			return nil, fmt.Errorf("%w: gate %d: unknown opcode %s", ErrParse, i, g.Opcode)
		}
		for _, r := range [...]Register{g.Target, g.Op1, g.Op2} {
			if err := header.check(r); err != nil {
				return nil, fmt.Errorf("gate %d: %w", i, err)
			}
		}
		if g.Target.File == FileX {
			return nil, fmt.Errorf("%w: gate %d writes input register %s", ErrParse, i, header.format(g.Target))
		}
		for _, r := range [...]Register{g.Op1, g.Op2} {
			if r.File != FileX && !written[r.File][r.Index] {
				return nil, fmt.Errorf("%w: gate %d reads %s", ErrUnorderedCircuit, i, header.format(r))
			}
		}
		written[g.Target.File][g.Target.Index] = true
	}

	return &Circuit{
		name:   name,
		header: header,
		gates:  append([]Gate(nil), gates...),
	}, nil
}

func (h Header) check(r Register) error {
	if r.File >= numFiles {
		return fmt.Errorf("%w: unknown register file %d", ErrParse, r.File)
	}
	if r.Index < 0 || r.Index >= h.Counts[r.File] {
		return fmt.Errorf("%w: %s outside file %s of %d registers",
			ErrRegisterOutOfBounds, h.format(r), r.File, h.Counts[r.File])
	}
	return nil
}

// format renders r with its literal suffix.
func (h Header) format(r Register) string {
	if r.File >= numFiles {
		return fmt.Sprintf("%s%d", r.File, r.Index)
	}
	return fmt.Sprintf("%s%d", r.File, r.Index+h.Offsets[r.File])
}

// Name returns the name the circuit was loaded under.
func (c *Circuit) Name() string { return c.name }

// Header returns the register file declaration.
func (c *Circuit) Header() Header { return c.header }

// Gates returns a copy of the gate list in execution order.
func (c *Circuit) Gates() []Gate {
	return append([]Gate(nil), c.gates...)
}

// NumGates returns the number of gates.
func (c *Circuit) NumGates() int { return len(c.gates) }

// NumInputs returns the size of the input file.
func (c *Circuit) NumInputs() int { return c.header.Counts[FileX] }

// NumOutputs returns the size of the output file.
func (c *Circuit) NumOutputs() int { return c.header.Counts[FileY] }

// String renders the circuit in the textual source format.
func (c *Circuit) String() string {
	var b strings.Builder
	h := c.header
	fmt.Fprintf(&b, "%d %d %d %d %d %d\n",
		h.Counts[FileX], h.Offsets[FileX],
		h.Counts[FileT], h.Offsets[FileT],
		h.Counts[FileY], h.Offsets[FileY])
	for _, g := range c.gates {
		fmt.Fprintf(&b, "%s = %s %s %s\n", h.format(g.Target), h.format(g.Op1), g.Opcode, h.format(g.Op2))
	}
	return b.String()
}
