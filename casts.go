// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package lincircuit

import (
	"fmt"
	"maps"
)

// RecomposeWidth is the number of bits packed by Recompose.
const RecomposeWidth = 4

// recomposeWeights are applied positionally to the bits. The last weight is
// reached by scaling a weight-3 encoding by 3 instead of a fourth lookup.
var recomposeWeights = [RecomposeWidth]uint64{4, 2, 1, 3}

const recomposeScaledBit = RecomposeWidth - 1

// defaultInverses maps supported recomposition moduli to the inverse of 3.
var defaultInverses = map[uint64]uint64{17: 6}

// Converter switches encrypted values between a modular encoding and their
// encrypted bits.
type Converter struct {
	eval     Evaluator
	inverses map[uint64]uint64
}

// ConverterOption configures a Converter.
type ConverterOption func(*Converter) error

// WithInverseTable replaces the table of supported recomposition moduli. Each
// entry maps a modulus to the inverse of 3 modulo it.
func WithInverseTable(table map[uint64]uint64) ConverterOption {
	return func(c *Converter) error {
		for p, inv := range table {
			if p < 2 || (3*inv)%p != 1 {
				return fmt.Errorf("%w: %d is not the inverse of 3 modulo %d", ErrUnsupportedModulus, inv, p)
			}
		}
		c.inverses = maps.Clone(table)
		return nil
	}
}

// NewConverter creates a converter over eval.
func NewConverter(eval Evaluator, opts ...ConverterOption) (*Converter, error) {
	c := &Converter{eval: eval, inverses: defaultInverses}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// SupportsModulus reports whether Recompose can target modulus.
func (c *Converter) SupportsModulus(modulus uint64) bool {
	_, ok := c.inverses[modulus]
	return ok
}

// Decompose splits ct, whose domain must have a power-of-two size, into its
// bits, most significant first, each encoded under target. All bits are
// extracted by one multi-value bootstrap.
func (c *Converter) Decompose(ct *Ciphertext, target Encoding) ([]*Ciphertext, error) {
	if ct == nil {
		return nil, fmt.Errorf("decompose: %w: nil ciphertext", ErrInvalidEncoding)
	}
	if ct.IsTrivial() {
		return nil, fmt.Errorf("decompose: %w: trivial ciphertext has no encoding", ErrInvalidEncoding)
	}
	enc := ct.Encoding()
	if !enc.IsPowerOfTwoDomain() {
		return nil, fmt.Errorf("decompose: %w: bit-decomposition requires a power-of-two domain, got %d",
			ErrInvalidEncoding, enc.OriginModulus())
	}

	width := enc.BitWidth()
	encs := make([]Encoding, width)
	fns := make([]func(uint64) uint64, width)
	for k := range width {
		i := width - 1 - k
		encs[k] = target
		fns[k] = func(v uint64) uint64 { return (v >> i) & 1 }
	}

	bits, err := c.eval.MultiValueBootstrap(ct, encs, fns)
	if err != nil {
		return nil, fmt.Errorf("decompose: %w: %w", ErrEvaluatorFailure, err)
	}
	if len(bits) != width {
		return nil, fmt.Errorf("decompose: %w: evaluator returned %d bits, expected %d",
			ErrEvaluatorFailure, len(bits), width)
	}
	return bits, nil
}

// Recompose packs four boolean ciphertexts into one value under target.
//
// Bit i is switched to the negacyclic binary encoding {p-w, w} of its weight
// w and shifted by w, so it contributes 0 or 2w. The weight-3 bit is then
// multiplied by 3. The four contributions are summed and the sum is tagged
// with target.
func (c *Converter) Recompose(bits []*Ciphertext, target Encoding) (*Ciphertext, error) {
	if len(bits) != RecomposeWidth {
		return nil, fmt.Errorf("recompose: %w: got %d bits, expected %d", ErrArityMismatch, len(bits), RecomposeWidth)
	}
	p := target.Modulus()
	if !c.SupportsModulus(p) {
		return nil, fmt.Errorf("recompose: %w: no inverse of 3 known modulo %d", ErrUnsupportedModulus, p)
	}
	for i, bit := range bits {
		if bit == nil || bit.IsTrivial() || !bit.Encoding().IsBoolean() {
			return nil, fmt.Errorf("recompose: bit %d: %w: expected a boolean-domain ciphertext", i, ErrInvalidEncoding)
		}
	}

	terms := make([]*Ciphertext, RecomposeWidth)
	for i, bit := range bits {
		w := recomposeWeights[i]
		enc, err := NewNegacyclicBinaryEncoding(w, p)
		if err != nil {
			return nil, fmt.Errorf("recompose: bit %d: %w", i, err)
		}
		switched, err := c.eval.SwitchEncoding(bit, enc)
		if err != nil {
			return nil, fmt.Errorf("recompose: bit %d: %w: %w", i, ErrEvaluatorFailure, err)
		}
		if terms[i], err = c.eval.SwitchEncodingAddConstant(switched, w, p); err != nil {
			return nil, fmt.Errorf("recompose: bit %d: %w: %w", i, ErrEvaluatorFailure, err)
		}
	}

	scaled, err := c.eval.MulConstant(terms[recomposeScaledBit], 3)
	if err != nil {
		return nil, fmt.Errorf("recompose: %w: %w", ErrEvaluatorFailure, err)
	}
	terms[recomposeScaledBit] = scaled

	sum, err := c.eval.Sum(terms...)
	if err != nil {
		return nil, fmt.Errorf("recompose: %w: %w", ErrEvaluatorFailure, err)
	}
	if sum.IsTrivial() {
		return nil, fmt.Errorf("recompose: %w: evaluator returned a trivial sum", ErrEvaluatorFailure)
	}
	return sum.WithEncoding(target), nil
}
