// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package lincircuit

import (
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"github.com/luxfi/lattice/v7/core/rgsw/blindrot"
	"github.com/luxfi/lattice/v7/core/rlwe"
	"github.com/luxfi/lattice/v7/ring"
)

// Evaluator is the homomorphic capability consumed by Converter and
// Interpreter. Implementations never mutate their operands.
type Evaluator interface {
	// SwitchEncoding re-encodes ct under enc through a lookup. The domain value
	// is preserved.
	SwitchEncoding(ct *Ciphertext, enc Encoding) (*Ciphertext, error)
	// SwitchEncodingAddConstant adds constant to ct, whose encoding modulus
	// must be modulus, and shifts its encoding so the domain value is kept.
	SwitchEncodingAddConstant(ct *Ciphertext, constant, modulus uint64) (*Ciphertext, error)
	// MulConstant multiplies ct by a public constant and scales its encoding
	// so the domain value is kept.
	MulConstant(ct *Ciphertext, constant uint64) (*Ciphertext, error)
	// Sum adds ciphertexts sharing one modulus. The result carries the raw
	// encoding of that modulus.
	Sum(cts ...*Ciphertext) (*Ciphertext, error)
	// AddPublicConstant adds constant to the plaintext residue of ct modulo
	// modulus. The result carries the raw encoding of modulus.
	AddPublicConstant(ct *Ciphertext, constant, modulus uint64) (*Ciphertext, error)
	// MultiValueBootstrap applies every fns[i] to the domain value of ct in a
	// single bootstrap, returning one ciphertext per function encoded under
	// encs[i].
	MultiValueBootstrap(ct *Ciphertext, encs []Encoding, fns []func(uint64) uint64) ([]*Ciphertext, error)
}

// LWEEvaluator implements Evaluator over LWE ciphertexts.
//
// Linear operations are exact ciphertext arithmetic. Lookups run a blind
// rotation per function; a multi-value bootstrap places the input in several
// slots and evaluates one test polynomial per slot in a single rotation. The
// rotated result is decrypted under the blind rotation key and re-encrypted
// under the LWE key, so the evaluator holds the secret key and must only run
// where that key may live.
type LWEEvaluator struct {
	params   Parameters
	ringQLWE *ring.Ring
	ringQBR  *ring.Ring
	bsk      *BootstrapKey
	enc      *Encryptor

	mu        sync.Mutex
	eval      *blindrot.Evaluator
	decBR     *rlwe.Decryptor
	rotations atomic.Int64
}

var _ Evaluator = (*LWEEvaluator)(nil)

// NewLWEEvaluator creates a new evaluator with bootstrap key.
func NewLWEEvaluator(params Parameters, bsk *BootstrapKey, sk *SecretKey) *LWEEvaluator {
	return &LWEEvaluator{
		params:   params,
		ringQLWE: params.paramsLWE.RingQ(),
		ringQBR:  params.paramsBR.RingQ(),
		bsk:      bsk,
		enc:      NewEncryptor(params, sk),
		eval:     blindrot.NewEvaluator(params.paramsBR, params.paramsLWE),
		decBR:    rlwe.NewDecryptor(params.paramsBR, sk.SKBR),
	}
}

// BlindRotations returns the number of blind rotations run so far.
func (eval *LWEEvaluator) BlindRotations() int64 {
	return eval.rotations.Load()
}

// addCiphertexts adds two ciphertexts element-wise
func (eval *LWEEvaluator) addCiphertexts(ct1, ct2 *rlwe.Ciphertext) *rlwe.Ciphertext {
	result := rlwe.NewCiphertext(eval.params.paramsLWE, 1, ct1.Level())

	eval.ringQLWE.Add(ct1.Value[0], ct2.Value[0], result.Value[0])
	eval.ringQLWE.Add(ct1.Value[1], ct2.Value[1], result.Value[1])

	result.IsNTT = ct1.IsNTT

	return result
}

// mulCiphertext multiplies a ciphertext by k with double-and-add
func (eval *LWEEvaluator) mulCiphertext(ct *rlwe.Ciphertext, k uint64) *rlwe.Ciphertext {
	acc := rlwe.NewCiphertext(eval.params.paramsLWE, 1, ct.Level())
	acc.IsNTT = ct.IsNTT

	base := ct.CopyNew()
	for ; k > 0; k >>= 1 {
		if k&1 == 1 {
			acc = eval.addCiphertexts(acc, base)
		}
		base = eval.addCiphertexts(base, base)
	}
	return acc
}

// addConstant adds a scaled constant to the constant term of the body
// polynomial.
func (eval *LWEEvaluator) addConstant(ct *rlwe.Ciphertext, scaled uint64) *rlwe.Ciphertext {
	result := ct.CopyNew()

	if result.IsNTT {
		eval.ringQLWE.INTT(result.Value[0], result.Value[0])
	}

	q := eval.params.QLWE()
	result.Value[0].Coeffs[0][0] = (result.Value[0].Coeffs[0][0] + scaled%q) % q

	if ct.IsNTT {
		eval.ringQLWE.NTT(result.Value[0], result.Value[0])
	}

	return result
}

// trivialCiphertext builds the noiseless encryption (residue*delta, 0).
func (eval *LWEEvaluator) trivialCiphertext(residue, modulus uint64) *rlwe.Ciphertext {
	ct := rlwe.NewCiphertext(eval.params.paramsLWE, 1, eval.params.paramsLWE.MaxLevel())

	q := eval.params.QLWE()
	ct.Value[0].Coeffs[0][0] = (residue % modulus) * eval.params.delta(modulus) % q

	eval.ringQLWE.NTT(ct.Value[0], ct.Value[0])
	ct.IsNTT = true

	return ct
}

func checkOperand(ct *Ciphertext) error {
	if ct == nil {
		return fmt.Errorf("%w: nil ciphertext", ErrInvalidEncoding)
	}
	return nil
}

func checkModulus(ct *Ciphertext, modulus uint64) error {
	if err := checkOperand(ct); err != nil {
		return err
	}
	if modulus < 2 {
		return fmt.Errorf("%w: modulus %d", ErrInvalidEncoding, modulus)
	}
	if !ct.IsTrivial() && ct.Encoding().Modulus() != modulus {
		return fmt.Errorf("%w: ciphertext modulus %d, operation modulus %d",
			ErrIncompatibleEncoding, ct.Encoding().Modulus(), modulus)
	}
	return nil
}

// lookup maps every residue of an input modulus to an output residue.
type lookup struct {
	table   []uint64
	modulus uint64
}

// newLookup tabulates f from the domain of in to the domain of out. Residues
// representing no value of in map to residue 0.
func newLookup(in, out Encoding, f func(uint64) uint64) (lookup, error) {
	table := make([]uint64, in.Modulus())
	for r := range table {
		v, err := in.Decode(uint64(r))
		if err != nil {
			continue
		}
		if table[r], err = out.Encode(f(v)); err != nil {
			return lookup{}, fmt.Errorf("value %d: %w", v, err)
		}
	}
	return lookup{table: table, modulus: out.Modulus()}, nil
}

// nearestResidue rounds u, a phase in units of the input step, to a residue
// modulo p and returns the distance to it.
func nearestResidue(u float64, p uint64) (uint64, float64) {
	n := math.Round(u)
	r := int64(n) % int64(p)
	if r < 0 {
		r += int64(p)
	}
	return uint64(r), math.Abs(u - n)
}

// centered lifts v mod q to (-q/2, q/2].
func centered(v, q uint64) float64 {
	if v > q/2 {
		return -float64(q - v)
	}
	return float64(v)
}

// testPolynomial builds the blind rotation test polynomial of lut for inputs
// modulo p, and the constant to add to the rotated result.
//
// The rotation is negacyclic: a phase shifted by Q/2 reads the negated value.
// For odd p the residues and their shifted images interleave at half steps,
// so each position takes the value of the nearest one. For p = 2 the two
// residues are images of each other; their targets are centered on an offset
// added back after the rotation.
func (eval *LWEEvaluator) testPolynomial(p uint64, lut lookup) (*ring.Poly, uint64, error) {
	if p%2 == 0 && p != 2 {
		return nil, 0, fmt.Errorf("%w: lookups need an odd input modulus or 2, got %d", ErrUnsupportedModulus, p)
	}

	qBR := eval.params.QBR()
	deltaOut := qBR / lut.modulus
	targets := make([]uint64, p)
	for r := range targets {
		targets[r] = lut.table[r] % lut.modulus * deltaOut
	}

	var offset uint64
	if p == 2 {
		sum := (targets[0] + targets[1]) % qBR
		if sum%2 == 0 {
			offset = sum / 2
		} else {
			offset = (sum + qBR) / 2
		}
		for r := range targets {
			targets[r] = (targets[r] + qBR - offset) % qBR
		}
	}

	// x = 4*phase/QLWE on [-1, 1]; the half circle holds p/2 input steps.
	half := float64(p) / 2
	poly := blindrot.InitTestPolynomial(func(x float64) float64 {
		u := x * half / 2
		r, d := nearestResidue(u, p)
		rShift, dShift := nearestResidue(u+half, p)
		if d <= dShift {
			return centered(targets[r], qBR)
		}
		return -centered(targets[rShift], qBR)
	}, rlwe.NewScale(1), eval.ringQBR, -1, 1)

	return &poly, offset, nil
}

// replicate returns ct multiplied by 1 + X + ... + X^(k-1). Coefficient i < k
// of the phase then holds the residue of coefficient 0 plus noise terms.
func (eval *LWEEvaluator) replicate(ct *rlwe.Ciphertext, k int) *rlwe.Ciphertext {
	out := ct.CopyNew()
	if !out.IsNTT {
		eval.ringQLWE.NTT(out.Value[0], out.Value[0])
		eval.ringQLWE.NTT(out.Value[1], out.Value[1])
		out.IsNTT = true
	}
	if k == 1 {
		return out
	}

	ones := eval.ringQLWE.NewPoly()
	for i := 0; i < k; i++ {
		ones.Coeffs[0][i] = 1
	}
	eval.ringQLWE.NTT(ones, ones)

	eval.ringQLWE.MulCoeffsBarrett(out.Value[0], ones, out.Value[0])
	eval.ringQLWE.MulCoeffsBarrett(out.Value[1], ones, out.Value[1])
	return out
}

// addConstantBR adds c to the constant term of a blind rotation result.
func (eval *LWEEvaluator) addConstantBR(ct *rlwe.Ciphertext, c uint64) {
	if c == 0 {
		return
	}
	q := eval.params.QBR()
	if ct.IsNTT {
		// A constant polynomial is constant in every NTT slot.
		for i := range ct.Value[0].Coeffs[0] {
			ct.Value[0].Coeffs[0][i] = (ct.Value[0].Coeffs[0][i] + c) % q
		}
		return
	}
	ct.Value[0].Coeffs[0][0] = (ct.Value[0].Coeffs[0][0] + c) % q
}

// bootstrap evaluates every lookup on ct with one blind rotation and returns
// fresh LWE ciphertexts of the output residues.
func (eval *LWEEvaluator) bootstrap(ct *Ciphertext, luts []lookup) ([]*rlwe.Ciphertext, error) {
	p := ct.Encoding().Modulus()

	testPolys := make(map[int]*ring.Poly, len(luts))
	offsets := make([]uint64, len(luts))
	for i, lut := range luts {
		poly, offset, err := eval.testPolynomial(p, lut)
		if err != nil {
			return nil, err
		}
		testPolys[i] = poly
		offsets[i] = offset
	}

	input := eval.replicate(ct.Ciphertext, len(luts))

	eval.mu.Lock()
	defer eval.mu.Unlock()

	results, err := eval.eval.Evaluate(input, testPolys, eval.bsk.BRK)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: %w", err)
	}
	eval.rotations.Add(1)

	qBR := eval.params.QBR()
	out := make([]*rlwe.Ciphertext, len(luts))
	for i, lut := range luts {
		ctBR, ok := results[i]
		if !ok {
			return nil, fmt.Errorf("bootstrap: no result for slot %d", i)
		}
		eval.addConstantBR(ctBR, offsets[i])

		// Decrypt BR result and re-encrypt as LWE
		ptBR := rlwe.NewPlaintext(eval.params.paramsBR, ctBR.Level())
		eval.decBR.Decrypt(ctBR, ptBR)
		if ptBR.IsNTT {
			eval.ringQBR.INTT(ptBR.Value, ptBR.Value)
		}

		c := ptBR.Value.Coeffs[0][0]
		residue := uint64(math.Round(float64(c)*float64(lut.modulus)/float64(qBR))) % lut.modulus

		if out[i], err = eval.enc.encryptResidue(residue, lut.modulus); err != nil {
			return nil, fmt.Errorf("bootstrap: slot %d: %w", i, err)
		}
	}
	return out, nil
}

// SwitchEncoding re-encodes ct under enc with one blind rotation. Trivial
// ciphertexts are re-encoded without noise.
func (eval *LWEEvaluator) SwitchEncoding(ct *Ciphertext, enc Encoding) (*Ciphertext, error) {
	if err := checkOperand(ct); err != nil {
		return nil, fmt.Errorf("switch encoding: %w", err)
	}
	if enc.IsZero() {
		return nil, fmt.Errorf("switch encoding: %w: zero target", ErrInvalidEncoding)
	}
	if ct.IsTrivial() {
		residue, err := enc.Encode(ct.TrivialValue())
		if err != nil {
			return nil, fmt.Errorf("switch encoding: %w", err)
		}
		return NewEncryptedCiphertext(eval.trivialCiphertext(residue, enc.Modulus()), enc), nil
	}

	lut, err := newLookup(ct.Encoding(), enc, func(v uint64) uint64 { return v })
	if err != nil {
		return nil, fmt.Errorf("switch encoding: %w", err)
	}
	out, err := eval.bootstrap(ct, []lookup{lut})
	if err != nil {
		return nil, fmt.Errorf("switch encoding: %w", err)
	}
	return NewEncryptedCiphertext(out[0], enc), nil
}

// SwitchEncodingAddConstant adds constant to ct and shifts its encoding.
func (eval *LWEEvaluator) SwitchEncodingAddConstant(ct *Ciphertext, constant, modulus uint64) (*Ciphertext, error) {
	if err := checkOperand(ct); err != nil {
		return nil, err
	}
	if ct.IsTrivial() {
		return nil, fmt.Errorf("switch encoding: %w: trivial ciphertext has no encoding", ErrInvalidEncoding)
	}
	if err := checkModulus(ct, modulus); err != nil {
		return nil, err
	}
	c := constant % modulus
	out := eval.addConstant(ct.Ciphertext, c*eval.params.delta(modulus))
	return NewEncryptedCiphertext(out, ct.Encoding().AddConstant(c)), nil
}

// MulConstant multiplies ct by constant and scales its encoding.
func (eval *LWEEvaluator) MulConstant(ct *Ciphertext, constant uint64) (*Ciphertext, error) {
	if err := checkOperand(ct); err != nil {
		return nil, fmt.Errorf("mul constant: %w", err)
	}
	if ct.IsTrivial() {
		return Trivial(ct.TrivialValue() * constant), nil
	}
	if ct.Encoding().IsZero() {
		return nil, fmt.Errorf("mul constant: %w: zero encoding", ErrInvalidEncoding)
	}
	k := constant % ct.Encoding().Modulus()
	out := eval.mulCiphertext(ct.Ciphertext, k)
	return NewEncryptedCiphertext(out, ct.Encoding().MulConstant(k)), nil
}

// Sum adds ciphertexts sharing one modulus; trivial operands are folded in as
// public constants.
func (eval *LWEEvaluator) Sum(cts ...*Ciphertext) (*Ciphertext, error) {
	if len(cts) == 0 {
		return nil, fmt.Errorf("sum: %w: no operands", ErrArityMismatch)
	}

	var (
		acc       *rlwe.Ciphertext
		modulus   uint64
		public    uint64
		encrypted int
	)
	for i, ct := range cts {
		if err := checkOperand(ct); err != nil {
			return nil, fmt.Errorf("sum: operand %d: %w", i, err)
		}
		if ct.IsTrivial() {
			public += ct.TrivialValue()
			continue
		}
		encrypted++
		if acc == nil {
			acc = ct.Ciphertext
			modulus = ct.Encoding().Modulus()
			continue
		}
		if ct.Encoding().Modulus() != modulus {
			return nil, fmt.Errorf("sum: operand %d: %w: modulus %d, expected %d",
				i, ErrIncompatibleEncoding, ct.Encoding().Modulus(), modulus)
		}
		acc = eval.addCiphertexts(acc, ct.Ciphertext)
	}

	if acc == nil {
		return Trivial(public), nil
	}
	if public%modulus != 0 {
		acc = eval.addConstant(acc, (public%modulus)*eval.params.delta(modulus))
	} else if encrypted == 1 {
		acc = acc.CopyNew()
	}
	return NewEncryptedCiphertext(acc, NewRawEncoding(modulus)), nil
}

// AddPublicConstant adds constant to the residue of ct modulo modulus.
func (eval *LWEEvaluator) AddPublicConstant(ct *Ciphertext, constant, modulus uint64) (*Ciphertext, error) {
	if err := checkModulus(ct, modulus); err != nil {
		return nil, err
	}
	if ct.IsTrivial() {
		return Trivial((ct.TrivialValue() + constant) % modulus), nil
	}
	c := constant % modulus
	out := eval.addConstant(ct.Ciphertext, c*eval.params.delta(modulus))
	return NewEncryptedCiphertext(out, NewRawEncoding(modulus)), nil
}

// MultiValueBootstrap evaluates all fns on ct with one blind rotation. Every
// fns[i] must map the whole domain of ct into the domain of encs[i].
func (eval *LWEEvaluator) MultiValueBootstrap(ct *Ciphertext, encs []Encoding, fns []func(uint64) uint64) ([]*Ciphertext, error) {
	if err := checkOperand(ct); err != nil {
		return nil, fmt.Errorf("multi-value bootstrap: %w", err)
	}
	if len(encs) != len(fns) {
		return nil, fmt.Errorf("multi-value bootstrap: %w: %d encodings for %d functions",
			ErrArityMismatch, len(encs), len(fns))
	}
	if ct.IsTrivial() {
		return nil, fmt.Errorf("multi-value bootstrap: %w: trivial ciphertext has no encoding", ErrInvalidEncoding)
	}
	if len(fns) == 0 {
		return nil, nil
	}
	if len(fns) > eval.params.N() {
		return nil, fmt.Errorf("multi-value bootstrap: %w: %d functions exceed %d slots",
			ErrArityMismatch, len(fns), eval.params.N())
	}

	luts := make([]lookup, len(fns))
	for i, f := range fns {
		if encs[i].IsZero() {
			return nil, fmt.Errorf("multi-value bootstrap: function %d: %w: zero target", i, ErrInvalidEncoding)
		}
		lut, err := newLookup(ct.Encoding(), encs[i], f)
		if err != nil {
			return nil, fmt.Errorf("multi-value bootstrap: function %d: %w", i, err)
		}
		luts[i] = lut
	}

	cts, err := eval.bootstrap(ct, luts)
	if err != nil {
		return nil, fmt.Errorf("multi-value bootstrap: %w", err)
	}
	out := make([]*Ciphertext, len(cts))
	for i := range cts {
		out[i] = NewEncryptedCiphertext(cts[i], encs[i])
	}
	return out, nil
}
