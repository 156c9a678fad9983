// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package lincircuit

import "errors"

// Common errors. Callers match them with errors.Is; every returned error wraps
// exactly one of these.
var (
	// ErrInvalidEncoding is returned for malformed encodings and for values whose
	// encoding does not admit the requested operation (bit decomposition of a
	// non power-of-two domain, recomposition of non-boolean bits).
	ErrInvalidEncoding = errors.New("invalid encoding")
	// ErrUnsupportedModulus is returned when recomposition targets a modulus with
	// no known inverse of 3.
	ErrUnsupportedModulus = errors.New("unsupported modulus")
	// ErrArityMismatch is returned for a wrong number of inputs or bits.
	ErrArityMismatch = errors.New("arity mismatch")
	// ErrRegisterOutOfBounds is returned when a register index falls outside
	// its file once the file offset is subtracted.
	ErrRegisterOutOfBounds = errors.New("register out of bounds")
	// ErrParse is returned for malformed circuit sources.
	ErrParse = errors.New("circuit parse error")
	// ErrUnorderedCircuit is returned when a gate reads an intermediate or
	// output register that no earlier gate has written.
	ErrUnorderedCircuit = errors.New("gate reads unwritten register")
	// ErrUnknownCircuit is returned when no circuit is known under a name.
	ErrUnknownCircuit = errors.New("unknown circuit")
	// ErrEvaluatorFailure wraps failures reported by the homomorphic evaluator.
	ErrEvaluatorFailure = errors.New("evaluator failure")
	// ErrIncompatibleEncoding is returned when ciphertexts under different
	// moduli are combined.
	ErrIncompatibleEncoding = errors.New("incompatible encodings")
)
