// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package lincircuit

import (
	"fmt"
	"sync"

	"github.com/luxfi/lattice/v7/core/rlwe"
)

// Encryptor encrypts domain values into LWE ciphertexts tagged with their encoding
type Encryptor struct {
	params Parameters

	mu        sync.Mutex
	encryptor *rlwe.Encryptor
}

// NewEncryptor creates a new encryptor from secret key
func NewEncryptor(params Parameters, sk *SecretKey) *Encryptor {
	return &Encryptor{
		params:    params,
		encryptor: rlwe.NewEncryptor(params.paramsLWE, sk.SKLWE),
	}
}

// Encrypt encrypts domain value v under enc
func (enc *Encryptor) Encrypt(v uint64, encoding Encoding) (*Ciphertext, error) {
	residue, err := encoding.Encode(v)
	if err != nil {
		return nil, err
	}
	ct, err := enc.encryptResidue(residue, encoding.Modulus())
	if err != nil {
		return nil, err
	}
	return NewEncryptedCiphertext(ct, encoding), nil
}

// encryptResidue encrypts residue mod modulus scaled by Q/modulus into the
// constant coefficient.
func (enc *Encryptor) encryptResidue(residue, modulus uint64) (*rlwe.Ciphertext, error) {
	pt := rlwe.NewPlaintext(enc.params.paramsLWE, enc.params.paramsLWE.MaxLevel())

	q := enc.params.QLWE()
	pt.Value.Coeffs[0][0] = (residue % modulus) * enc.params.delta(modulus) % q

	enc.params.paramsLWE.RingQ().NTT(pt.Value, pt.Value)

	ct := rlwe.NewCiphertext(enc.params.paramsLWE, 1, enc.params.paramsLWE.MaxLevel())

	enc.mu.Lock()
	defer enc.mu.Unlock()
	if err := enc.encryptor.Encrypt(pt, ct); err != nil {
		return nil, fmt.Errorf("encrypt: %w", err)
	}
	return ct, nil
}

// EncryptBit encrypts a single bit under the boolean encoding
func (enc *Encryptor) EncryptBit(bit uint64) (*Ciphertext, error) {
	return enc.Encrypt(bit&1, NewBooleanEncoding())
}

// EncryptBytes encrypts bytes as 8 bit ciphertexts each (MSB first), the
// register layout of the embedded cipher circuits
func (enc *Encryptor) EncryptBytes(data []byte) ([]*Ciphertext, error) {
	cts := make([]*Ciphertext, 0, 8*len(data))
	for _, b := range data {
		for i := 7; i >= 0; i-- {
			ct, err := enc.EncryptBit(uint64(b>>i) & 1)
			if err != nil {
				return nil, err
			}
			cts = append(cts, ct)
		}
	}
	return cts, nil
}
