// Package lincircuit evaluates linear (XOR/XNOR) boolean circuits over
// encrypted bits and converts encrypted values between a single modular
// encoding and their constituent encrypted bits.
//
// It is the linear half of a block cipher evaluated under FHE: a substitution
// layer produces values in a modular encoding, Converter.Decompose splits them
// into encrypted bits, Interpreter.Execute runs a diffusion circuit such as
// AES MixColumns over those bits, and Converter.Recompose packs the result
// back for the next substitution layer.
//
// The package consumes an Evaluator capability. LWEEvaluator is a reference
// implementation built on luxfi/lattice primitives:
//   - LWE encryption of residues modulo small plaintext moduli
//   - exact additive homomorphism for sums, constants and scalar products
//   - blind rotations for lookups (programmable bootstrapping)
//
// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause
package lincircuit

import (
	"fmt"

	"github.com/luxfi/lattice/v7/core/rgsw/blindrot"
	"github.com/luxfi/lattice/v7/core/rlwe"
	"github.com/luxfi/lattice/v7/utils"
)

// Parameters defines the LWE and blind rotation parameter sets
type Parameters struct {
	// paramsLWE defines parameters for LWE samples (encrypted residues)
	paramsLWE rlwe.Parameters
	// paramsBR defines parameters for blind rotation (lookups)
	paramsBR rlwe.Parameters
	// evkParams defines the blind rotation key decomposition
	evkParams rlwe.EvaluationKeyParameters
}

// ParametersLiteral is a user-friendly parameter specification
type ParametersLiteral struct {
	// LogNLWE is log2 of the LWE dimension
	LogNLWE int
	// LogNBR is log2 of the blind rotation dimension
	LogNBR int
	// QLWE is the LWE modulus
	QLWE uint64
	// QBR is the blind rotation modulus
	QBR uint64
	// BaseTwoDecomposition for the blind rotation key
	BaseTwoDecomposition int
}

// Standard parameter sets. The blind rotation ring is wider than the LWE
// ring: a lookup on an odd modulus p keeps NBR/(2p) positions of margin after
// the switch to 2*NBR, against rounding noise growing with sqrt(N).
var (
	// PN9QP27 is the fast set used by tests.
	// N=512, NBR=2048, Q=134246401
	PN9QP27 = ParametersLiteral{
		LogNLWE:              9,
		LogNBR:               11,
		QLWE:                 0x8007001, // Prime ~2^27, 1 mod 4096
		QBR:                  0x8007001,
		BaseTwoDecomposition: 7,
	}

	// PN10QP27 trades speed for a larger LWE dimension.
	// N=1024, NBR=4096, Q=~2^27
	PN10QP27 = ParametersLiteral{
		LogNLWE:              10,
		LogNBR:               12,
		QLWE:                 0x7fff801, // 1 mod 2048
		QBR:                  0x7ff6001, // 1 mod 8192
		BaseTwoDecomposition: 7,
	}

	// PN11QP54 leaves a much larger noise margin for long gate chains.
	// N=2048, NBR=4096, Q=~2^54
	PN11QP54 = ParametersLiteral{
		LogNLWE:              11,
		LogNBR:               12,
		QLWE:                 0x3FFFFFFFFED001, // 1 mod 4096
		QBR:                  0x3FFFFFFFFD6001, // 1 mod 8192
		BaseTwoDecomposition: 10,
	}
)

// Presets lists the standard parameter sets by name.
var Presets = map[string]ParametersLiteral{
	"PN9QP27":  PN9QP27,
	"PN10QP27": PN10QP27,
	"PN11QP54": PN11QP54,
}

// NewParametersFromLiteral creates Parameters from a literal specification
func NewParametersFromLiteral(lit ParametersLiteral) (params Parameters, err error) {
	if lit.QLWE < 1<<16 || lit.QBR < 1<<16 {
		return params, fmt.Errorf("moduli QLWE=%d QBR=%d too small for residue encodings", lit.QLWE, lit.QBR)
	}
	if lit.BaseTwoDecomposition <= 0 {
		return params, fmt.Errorf("invalid base two decomposition %d", lit.BaseTwoDecomposition)
	}

	params.paramsLWE, err = rlwe.NewParametersFromLiteral(rlwe.ParametersLiteral{
		LogN:    lit.LogNLWE,
		Q:       []uint64{lit.QLWE},
		NTTFlag: true,
	})
	if err != nil {
		return
	}

	params.paramsBR, err = rlwe.NewParametersFromLiteral(rlwe.ParametersLiteral{
		LogN:    lit.LogNBR,
		Q:       []uint64{lit.QBR},
		NTTFlag: true,
	})
	if err != nil {
		return
	}

	params.evkParams = rlwe.EvaluationKeyParameters{
		BaseTwoDecomposition: utils.Pointy(lit.BaseTwoDecomposition),
	}

	return
}

// N returns the LWE dimension
func (p Parameters) N() int {
	return p.paramsLWE.N()
}

// NBR returns the blind rotation dimension
func (p Parameters) NBR() int {
	return p.paramsBR.N()
}

// QLWE returns the LWE modulus
func (p Parameters) QLWE() uint64 {
	return p.paramsLWE.Q()[0]
}

// QBR returns the blind rotation modulus
func (p Parameters) QBR() uint64 {
	return p.paramsBR.Q()[0]
}

// delta returns the scaling factor floor(QLWE/modulus) placing residues
// modulo modulus in the upper bits of the ciphertext modulus.
func (p Parameters) delta(modulus uint64) uint64 {
	return p.QLWE() / modulus
}

// SecretKey contains the LWE and blind rotation secret keys
type SecretKey struct {
	// SKLWE encrypts residues
	SKLWE *rlwe.SecretKey
	// SKBR decrypts blind rotation results
	SKBR *rlwe.SecretKey
}

// BootstrapKey contains the blind rotation key used by lookups
type BootstrapKey struct {
	// BRK holds RGSW encryptions of the LWE secret under SKBR
	BRK blindrot.BlindRotationEvaluationKeySet
}

// KeyGenerator generates keys
type KeyGenerator struct {
	params  Parameters
	kgenLWE *rlwe.KeyGenerator
	kgenBR  *rlwe.KeyGenerator
}

// NewKeyGenerator creates a new key generator
func NewKeyGenerator(params Parameters) *KeyGenerator {
	return &KeyGenerator{
		params:  params,
		kgenLWE: rlwe.NewKeyGenerator(params.paramsLWE),
		kgenBR:  rlwe.NewKeyGenerator(params.paramsBR),
	}
}

// GenSecretKey generates a new secret key pair. When LWE and blind rotation
// share a dimension the same secret is used for both.
func (kg *KeyGenerator) GenSecretKey() *SecretKey {
	if kg.params.N() == kg.params.NBR() {
		sk := kg.kgenBR.GenSecretKeyNew()
		return &SecretKey{SKLWE: sk, SKBR: sk}
	}
	return &SecretKey{
		SKLWE: kg.kgenLWE.GenSecretKeyNew(),
		SKBR:  kg.kgenBR.GenSecretKeyNew(),
	}
}

// GenBootstrapKey generates the blind rotation key from secret keys
func (kg *KeyGenerator) GenBootstrapKey(sk *SecretKey) *BootstrapKey {
	brk := blindrot.GenEvaluationKeyNew(kg.params.paramsBR, sk.SKBR, kg.params.paramsLWE, sk.SKLWE, kg.params.evkParams)
	return &BootstrapKey{BRK: brk}
}
