// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package lincircuit

import (
	"fmt"
	"math/bits"
)

// Encoding describes the domain a ciphertext's plaintext lives in.
//
// A domain value v in [0, OriginModulus) is represented under encryption by the
// residue Coefficients[v] modulo Modulus. Encodings are immutable; every method
// returning an Encoding returns a new value.
type Encoding struct {
	originModulus uint64
	modulus       uint64
	coefficients  []uint64
}

// NewCanonicalEncoding creates an encoding mapping domain value v to
// coefficients[v] mod modulus.
func NewCanonicalEncoding(originModulus uint64, coefficients []uint64, modulus uint64) (Encoding, error) {
	if modulus < 2 {
		return Encoding{}, fmt.Errorf("%w: modulus %d must be at least 2", ErrInvalidEncoding, modulus)
	}
	if originModulus == 0 {
		return Encoding{}, fmt.Errorf("%w: empty domain", ErrInvalidEncoding)
	}
	if uint64(len(coefficients)) != originModulus {
		return Encoding{}, fmt.Errorf("%w: %d coefficients for a domain of %d values",
			ErrInvalidEncoding, len(coefficients), originModulus)
	}
	for v, c := range coefficients {
		if c >= modulus {
			return Encoding{}, fmt.Errorf("%w: coefficient %d of value %d not below modulus %d",
				ErrInvalidEncoding, c, v, modulus)
		}
	}
	return Encoding{
		originModulus: originModulus,
		modulus:       modulus,
		coefficients:  append([]uint64(nil), coefficients...),
	}, nil
}

// NewRawEncoding creates the identity encoding over [0, modulus).
func NewRawEncoding(modulus uint64) Encoding {
	coeffs := make([]uint64, modulus)
	for i := range coeffs {
		coeffs[i] = uint64(i)
	}
	return Encoding{originModulus: modulus, modulus: modulus, coefficients: coeffs}
}

// NewBooleanEncoding returns the encoding of bits modulo 2, under which
// homomorphic sums compute XOR.
func NewBooleanEncoding() Encoding {
	return NewRawEncoding(2)
}

// NewNegacyclicBinaryEncoding maps false to modulus-weight and true to weight.
func NewNegacyclicBinaryEncoding(weight, modulus uint64) (Encoding, error) {
	if weight == 0 || weight >= modulus {
		return Encoding{}, fmt.Errorf("%w: weight %d outside (0, %d)", ErrInvalidEncoding, weight, modulus)
	}
	return NewCanonicalEncoding(2, []uint64{modulus - weight, weight}, modulus)
}

// OriginModulus returns the number of domain values.
func (e Encoding) OriginModulus() uint64 { return e.originModulus }

// Modulus returns the modulus of the encrypted representation.
func (e Encoding) Modulus() uint64 { return e.modulus }

// Arity returns the number of distinct plaintext values (2 for booleans).
func (e Encoding) Arity() int { return int(e.originModulus) }

// Coefficients returns a copy of the per-value residue table.
func (e Encoding) Coefficients() []uint64 {
	return append([]uint64(nil), e.coefficients...)
}

// IsZero reports whether e is the zero Encoding.
func (e Encoding) IsZero() bool { return e.modulus == 0 }

// IsBoolean reports whether the domain has exactly two values.
func (e Encoding) IsBoolean() bool { return e.originModulus == 2 }

// IsPowerOfTwoDomain reports whether the domain size is a power of two, as
// required for bit decomposition.
func (e Encoding) IsPowerOfTwoDomain() bool {
	return e.originModulus >= 2 && e.originModulus&(e.originModulus-1) == 0
}

// BitWidth returns log2 of the domain size for power-of-two domains.
func (e Encoding) BitWidth() int {
	return bits.TrailingZeros64(e.originModulus)
}

// Compatible reports whether ciphertexts under e and other may be combined.
func (e Encoding) Compatible(other Encoding) bool {
	return e.modulus == other.modulus
}

// Equal reports whether both encodings describe the same mapping.
func (e Encoding) Equal(other Encoding) bool {
	if e.originModulus != other.originModulus || e.modulus != other.modulus {
		return false
	}
	for i := range e.coefficients {
		if e.coefficients[i] != other.coefficients[i] {
			return false
		}
	}
	return true
}

// Encode returns the residue representing domain value v.
func (e Encoding) Encode(v uint64) (uint64, error) {
	if v >= e.originModulus {
		return 0, fmt.Errorf("%w: value %d outside domain of %d values", ErrInvalidEncoding, v, e.originModulus)
	}
	return e.coefficients[v], nil
}

// Decode returns the first domain value represented by residue.
func (e Encoding) Decode(residue uint64) (uint64, error) {
	if e.modulus == 0 {
		return 0, fmt.Errorf("%w: zero encoding", ErrInvalidEncoding)
	}
	residue %= e.modulus
	for v, c := range e.coefficients {
		if c == residue {
			return uint64(v), nil
		}
	}
	return 0, fmt.Errorf("%w: residue %d represents no value", ErrInvalidEncoding, residue)
}

// AddConstant returns the encoding obtained after adding c to a ciphertext
// under e: the domain is unchanged and every residue is shifted by c.
func (e Encoding) AddConstant(c uint64) Encoding {
	out := Encoding{originModulus: e.originModulus, modulus: e.modulus, coefficients: make([]uint64, len(e.coefficients))}
	for i, coeff := range e.coefficients {
		out.coefficients[i] = (coeff + c%e.modulus) % e.modulus
	}
	return out
}

// MulConstant returns the encoding obtained after multiplying a ciphertext
// under e by k.
func (e Encoding) MulConstant(k uint64) Encoding {
	out := Encoding{originModulus: e.originModulus, modulus: e.modulus, coefficients: make([]uint64, len(e.coefficients))}
	for i, coeff := range e.coefficients {
		hi, lo := bits.Mul64(coeff, k%e.modulus)
		_, out.coefficients[i] = bits.Div64(hi%e.modulus, lo, e.modulus)
	}
	return out
}

func (e Encoding) String() string {
	return fmt.Sprintf("Encoding(%d -> %v mod %d)", e.originModulus, e.coefficients, e.modulus)
}
