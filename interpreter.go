// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package lincircuit

import (
	"fmt"
	"slices"
)

// Interpreter executes linear circuits over encrypted bits.
type Interpreter struct {
	eval   Evaluator
	loader Loader
}

// NewInterpreter creates an interpreter over eval. Named circuits resolve
// through loader.
func NewInterpreter(eval Evaluator, loader Loader) *Interpreter {
	return &Interpreter{eval: eval, loader: loader}
}

// registers is the working storage of one execution.
type registers [numFiles][]*Ciphertext

func newRegisters(h Header, inputs []*Ciphertext) registers {
	var regs registers
	regs[FileX] = slices.Clone(inputs)
	for _, f := range [...]File{FileT, FileY} {
		regs[f] = make([]*Ciphertext, h.Counts[f])
		for i := range regs[f] {
			regs[f][i] = Trivial(0)
		}
	}
	return regs
}

func (regs *registers) slot(r Register) (**Ciphertext, error) {
	if r.File >= numFiles || r.Index < 0 || r.Index >= len(regs[r.File]) {
		return nil, fmt.Errorf("%w: %s%d", ErrRegisterOutOfBounds, r.File, r.Index)
	}
	return &regs[r.File][r.Index], nil
}

// Execute runs c over inputs, one ciphertext per input register, and returns
// the output registers. Gates run strictly in list order. XOR is a
// homomorphic sum of boolean ciphertexts; XNOR additionally adds 1 modulo 2.
//
// Register files are private to the call: on error no partial output is
// returned.
func (in *Interpreter) Execute(c *Circuit, inputs []*Ciphertext) ([]*Ciphertext, error) {
	if len(inputs) != c.NumInputs() {
		return nil, fmt.Errorf("execute %s: %w: got %d inputs, expected %d",
			c.Name(), ErrArityMismatch, len(inputs), c.NumInputs())
	}
	for i, ct := range inputs {
		if ct == nil {
			return nil, fmt.Errorf("execute %s: input %d: %w: nil ciphertext", c.Name(), i, ErrInvalidEncoding)
		}
	}

	regs := newRegisters(c.header, inputs)
	for i, g := range c.gates {
		op1, err := regs.slot(g.Op1)
		if err != nil {
			return nil, fmt.Errorf("execute %s: gate %d: %w", c.Name(), i, err)
		}
		op2, err := regs.slot(g.Op2)
		if err != nil {
			return nil, fmt.Errorf("execute %s: gate %d: %w", c.Name(), i, err)
		}
		target, err := regs.slot(g.Target)
		if err != nil {
			return nil, fmt.Errorf("execute %s: gate %d: %w", c.Name(), i, err)
		}

		result, err := in.eval.Sum(*op1, *op2)
		if err != nil {
			return nil, fmt.Errorf("execute %s: gate %d: %w: %w", c.Name(), i, ErrEvaluatorFailure, err)
		}
		if g.Opcode == OpXNOR {
			if result, err = in.eval.AddPublicConstant(result, 1, 2); err != nil {
				return nil, fmt.Errorf("execute %s: gate %d: %w: %w", c.Name(), i, ErrEvaluatorFailure, err)
			}
		}
		*target = result
	}

	return regs[FileY], nil
}

// ExecuteNamed resolves name and executes the circuit over inputs.
func (in *Interpreter) ExecuteNamed(name string, inputs []*Ciphertext) ([]*Ciphertext, error) {
	c, err := in.loader.Load(name)
	if err != nil {
		return nil, err
	}
	return in.Execute(c, inputs)
}
