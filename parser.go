// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package lincircuit

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ParseCircuit reads a circuit in the textual format: a header line of six
// non-negative integers
//
//	x_count x_offset t_count t_offset y_count y_offset
//
// followed by one gate per line
//
//	target = op1 OPCODE op2
//
// where registers are x, t or y followed by their literal number and OPCODE
// is XOR or XNOR. Blank lines and lines starting with # are ignored.
func ParseCircuit(name string, r io.Reader) (*Circuit, error) {
	sc := bufio.NewScanner(r)

	var (
		header   Header
		gates    []Gate
		haveHead bool
		lineNo   int
	)
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)

		if !haveHead {
			h, err := parseHeader(fields)
			if err != nil {
				return nil, fmt.Errorf("%s:%d: %w", name, lineNo, err)
			}
			header, haveHead = h, true
			continue
		}

		g, err := parseGate(header, fields)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %w", name, lineNo, err)
		}
		gates = append(gates, g)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("%w: %s: read: %w", ErrParse, name, err)
	}
	if !haveHead {
		return nil, fmt.Errorf("%w: %s: missing header", ErrParse, name)
	}

	c, err := NewCircuit(name, header, gates)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return c, nil
}

// ParseCircuitString parses a circuit held in memory.
func ParseCircuitString(name, source string) (*Circuit, error) {
	return ParseCircuit(name, strings.NewReader(source))
}

func parseHeader(fields []string) (Header, error) {
	var h Header
	if len(fields) != 2*numFiles {
		return h, fmt.Errorf("%w: header has %d fields, expected %d", ErrParse, len(fields), 2*numFiles)
	}
	for i, s := range fields {
		n, err := parseIndex(s)
		if err != nil {
			return h, fmt.Errorf("%w: header field %q is not a non-negative integer", ErrParse, s)
		}
		if i%2 == 0 {
			h.Counts[i/2] = n
		} else {
			h.Offsets[i/2] = n
		}
	}
	return h, nil
}

func parseGate(h Header, fields []string) (Gate, error) {
	var g Gate
	if len(fields) != 5 || fields[1] != "=" {
		return g, fmt.Errorf("%w: expected \"target = op1 OPCODE op2\"", ErrParse)
	}

	switch fields[3] {
	case "XOR":
		g.Opcode = OpXOR
	case "XNOR":
		g.Opcode = OpXNOR
	default:
		return g, fmt.Errorf("%w: unknown opcode %q", ErrParse, fields[3])
	}

	var err error
	if g.Target, err = parseRegister(h, fields[0]); err != nil {
		return g, err
	}
	if g.Op1, err = parseRegister(h, fields[2]); err != nil {
		return g, err
	}
	if g.Op2, err = parseRegister(h, fields[4]); err != nil {
		return g, err
	}
	return g, nil
}

func parseRegister(h Header, tok string) (Register, error) {
	var r Register
	if len(tok) < 2 {
		return r, fmt.Errorf("%w: malformed register %q", ErrParse, tok)
	}
	switch tok[0] {
	case 'x':
		r.File = FileX
	case 't':
		r.File = FileT
	case 'y':
		r.File = FileY
	default:
		return r, fmt.Errorf("%w: unknown register file in %q", ErrParse, tok)
	}

	n, err := parseIndex(tok[1:])
	if err != nil {
		return r, fmt.Errorf("%w: register index in %q is not a non-negative integer", ErrParse, tok)
	}
	r.Index = n - h.Offsets[r.File]
	if r.Index < 0 {
		return r, fmt.Errorf("%w: %s below offset %d of file %s", ErrRegisterOutOfBounds, tok, h.Offsets[r.File], r.File)
	}
	return r, nil
}

// parseIndex accepts only unsigned decimal digits, so "+1" and "-0" are rejected.
func parseIndex(s string) (int, error) {
	if s == "" {
		return 0, strconv.ErrSyntax
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, strconv.ErrSyntax
		}
	}
	return strconv.Atoi(s)
}
