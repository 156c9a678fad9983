// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package lincircuit

import (
	"fmt"

	"github.com/luxfi/lattice/v7/core/rlwe"
)

// Ciphertext is an encrypted scalar tagged with its Encoding, or a trivial
// public value used as a placeholder for registers not yet written.
type Ciphertext struct {
	*rlwe.Ciphertext

	encoding Encoding
	trivial  uint64
}

// NewEncryptedCiphertext tags an LWE ciphertext with enc.
func NewEncryptedCiphertext(ct *rlwe.Ciphertext, enc Encoding) *Ciphertext {
	return &Ciphertext{Ciphertext: ct, encoding: enc}
}

// Trivial wraps a public value.
func Trivial(value uint64) *Ciphertext {
	return &Ciphertext{trivial: value}
}

// IsTrivial reports whether ct holds a public value.
func (ct *Ciphertext) IsTrivial() bool {
	return ct.Ciphertext == nil
}

// Encoding returns the encoding of an encrypted value. Trivial values report
// the zero Encoding.
func (ct *Ciphertext) Encoding() Encoding {
	return ct.encoding
}

// TrivialValue returns the public value of a trivial ciphertext.
func (ct *Ciphertext) TrivialValue() uint64 {
	return ct.trivial
}

// WithEncoding re-tags ct with enc. The payload is shared: evaluator
// operations never mutate their operands.
func (ct *Ciphertext) WithEncoding(enc Encoding) *Ciphertext {
	return &Ciphertext{Ciphertext: ct.Ciphertext, encoding: enc, trivial: ct.trivial}
}

// CopyNew returns a deep copy of ct.
func (ct *Ciphertext) CopyNew() *Ciphertext {
	if ct.IsTrivial() {
		return Trivial(ct.trivial)
	}
	return &Ciphertext{Ciphertext: ct.Ciphertext.CopyNew(), encoding: ct.encoding}
}

func (ct *Ciphertext) String() string {
	if ct.IsTrivial() {
		return fmt.Sprintf("Trivial(%d)", ct.trivial)
	}
	return fmt.Sprintf("Encrypted(%v)", ct.encoding)
}
