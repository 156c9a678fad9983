// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package lincircuit

import (
	"fmt"
	"math"
	"sync"

	"github.com/luxfi/lattice/v7/core/rlwe"
	"github.com/luxfi/lattice/v7/ring"
)

// Decryptor decrypts LWE ciphertexts back to residues and domain values
type Decryptor struct {
	params Parameters
	ringQ  *ring.Ring

	mu        sync.Mutex
	decryptor *rlwe.Decryptor
}

// NewDecryptor creates a new decryptor from secret key
func NewDecryptor(params Parameters, sk *SecretKey) *Decryptor {
	return &Decryptor{
		params:    params,
		decryptor: rlwe.NewDecryptor(params.paramsLWE, sk.SKLWE),
		ringQ:     params.paramsLWE.RingQ(),
	}
}

// DecryptResidue returns the residue modulo the ciphertext's encoding modulus.
// Trivial ciphertexts return their public value.
func (dec *Decryptor) DecryptResidue(ct *Ciphertext) uint64 {
	if ct.IsTrivial() {
		return ct.TrivialValue()
	}
	return dec.decryptResidue(ct.Ciphertext, ct.Encoding().Modulus())
}

func (dec *Decryptor) decryptResidue(ct *rlwe.Ciphertext, modulus uint64) uint64 {
	pt := rlwe.NewPlaintext(dec.params.paramsLWE, ct.Level())
	dec.mu.Lock()
	dec.decryptor.Decrypt(ct, pt)
	dec.mu.Unlock()

	if pt.IsNTT {
		dec.ringQ.INTT(pt.Value, pt.Value)
	}

	// Get the constant term and round c * modulus / Q to the nearest residue.
	// Values just below Q carry negative noise around residue 0 and round to
	// modulus, which the reduction folds back.
	c := pt.Value.Coeffs[0][0]
	q := dec.params.QLWE()

	scaled := math.Round(float64(c) * float64(modulus) / float64(q))
	return uint64(scaled) % modulus
}

// Decrypt returns the domain value of ct, decoded through its encoding
func (dec *Decryptor) Decrypt(ct *Ciphertext) (uint64, error) {
	if ct.IsTrivial() {
		return ct.TrivialValue(), nil
	}
	v, err := ct.Encoding().Decode(dec.DecryptResidue(ct))
	if err != nil {
		return 0, fmt.Errorf("decrypt: %w", err)
	}
	return v, nil
}

// DecryptBits decrypts boolean ciphertexts into bits
func (dec *Decryptor) DecryptBits(cts []*Ciphertext) ([]uint64, error) {
	out := make([]uint64, len(cts))
	for i, ct := range cts {
		v, err := dec.Decrypt(ct)
		if err != nil {
			return nil, fmt.Errorf("bit %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

// DecryptBytes packs groups of 8 decrypted bits (MSB first) into bytes
func (dec *Decryptor) DecryptBytes(cts []*Ciphertext) ([]byte, error) {
	if len(cts)%8 != 0 {
		return nil, fmt.Errorf("%w: %d bits do not form whole bytes", ErrArityMismatch, len(cts))
	}
	bits, err := dec.DecryptBits(cts)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(cts)/8)
	for i, bit := range bits {
		out[i/8] |= byte(bit&1) << (7 - i%8)
	}
	return out, nil
}
