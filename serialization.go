// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package lincircuit

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"errors"
	"fmt"
	"io"

	"github.com/luxfi/lattice/v7/core/rlwe"
)

// maxSerializedLen bounds length prefixes read from untrusted input.
const maxSerializedLen = 1 << 28

// ========== Secret Key Serialization ==========

// MarshalBinary serializes the secret key to binary format
func (sk *SecretKey) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)
	if err := enc.Encode(sk.SKLWE); err != nil {
		return nil, fmt.Errorf("serialize SKLWE: %w", err)
	}
	if err := enc.Encode(sk.SKBR); err != nil {
		return nil, fmt.Errorf("serialize SKBR: %w", err)
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary deserializes the secret key from binary format
func (sk *SecretKey) UnmarshalBinary(data []byte) error {
	dec := gob.NewDecoder(bytes.NewReader(data))
	var sklwe, skbr rlwe.SecretKey
	if err := dec.Decode(&sklwe); err != nil {
		return fmt.Errorf("deserialize SKLWE: %w", err)
	}
	if err := dec.Decode(&skbr); err != nil {
		return fmt.Errorf("deserialize SKBR: %w", err)
	}
	sk.SKLWE = &sklwe
	sk.SKBR = &skbr
	return nil
}

// ========== Encoding Serialization ==========

// MarshalBinary serializes the encoding to binary format
func (e Encoding) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	if err := writeEncoding(&buf, e); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary deserializes the encoding from binary format
func (e *Encoding) UnmarshalBinary(data []byte) error {
	dec, err := readEncoding(bytes.NewReader(data))
	if err != nil {
		return err
	}
	*e = dec
	return nil
}

func writeEncoding(w io.Writer, e Encoding) error {
	if err := binary.Write(w, binary.LittleEndian, e.originModulus); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, e.modulus); err != nil {
		return err
	}
	return binary.Write(w, binary.LittleEndian, e.coefficients)
}

func readEncoding(r io.Reader) (Encoding, error) {
	var origin, modulus uint64
	if err := binary.Read(r, binary.LittleEndian, &origin); err != nil {
		return Encoding{}, fmt.Errorf("read origin modulus: %w", err)
	}
	if err := binary.Read(r, binary.LittleEndian, &modulus); err != nil {
		return Encoding{}, fmt.Errorf("read modulus: %w", err)
	}
	if origin == 0 && modulus == 0 {
		return Encoding{}, nil
	}
	if origin > maxSerializedLen/8 {
		return Encoding{}, fmt.Errorf("%w: domain of %d values", ErrInvalidEncoding, origin)
	}
	coeffs := make([]uint64, origin)
	if err := binary.Read(r, binary.LittleEndian, coeffs); err != nil {
		return Encoding{}, fmt.Errorf("read coefficients: %w", err)
	}
	return NewCanonicalEncoding(origin, coeffs, modulus)
}

// ========== Ciphertext Serialization ==========

const (
	kindTrivial   uint8 = 0
	kindEncrypted uint8 = 1
)

// MarshalBinary serializes a ciphertext to binary format
func (ct *Ciphertext) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer

	if ct.IsTrivial() {
		if err := binary.Write(&buf, binary.LittleEndian, kindTrivial); err != nil {
			return nil, err
		}
		if err := binary.Write(&buf, binary.LittleEndian, ct.trivial); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}

	if err := binary.Write(&buf, binary.LittleEndian, kindEncrypted); err != nil {
		return nil, err
	}
	if err := writeEncoding(&buf, ct.encoding); err != nil {
		return nil, fmt.Errorf("write encoding: %w", err)
	}
	payload, err := ct.Ciphertext.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("marshal lwe ciphertext: %w", err)
	}
	if err := writeBlock(&buf, payload); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary deserializes a ciphertext from binary format
func (ct *Ciphertext) UnmarshalBinary(data []byte) error {
	r := bytes.NewReader(data)

	var kind uint8
	if err := binary.Read(r, binary.LittleEndian, &kind); err != nil {
		return fmt.Errorf("read kind: %w", err)
	}

	switch kind {
	case kindTrivial:
		var v uint64
		if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
			return fmt.Errorf("read trivial value: %w", err)
		}
		*ct = Ciphertext{trivial: v}
		return nil
	case kindEncrypted:
		enc, err := readEncoding(r)
		if err != nil {
			return fmt.Errorf("read encoding: %w", err)
		}
		payload, err := readBlock(r)
		if err != nil {
			return err
		}
		lwe := new(rlwe.Ciphertext)
		if err := lwe.UnmarshalBinary(payload); err != nil {
			return fmt.Errorf("unmarshal lwe ciphertext: %w", err)
		}
		*ct = Ciphertext{Ciphertext: lwe, encoding: enc}
		return nil
	default:
		return fmt.Errorf("unknown ciphertext kind %d", kind)
	}
}

// ========== Vector Serialization ==========

// MarshalCiphertexts serializes a ciphertext vector, such as a register file
func MarshalCiphertexts(cts []*Ciphertext) ([]byte, error) {
	var buf bytes.Buffer

	if err := binary.Write(&buf, binary.LittleEndian, uint32(len(cts))); err != nil {
		return nil, err
	}
	for i, ct := range cts {
		data, err := ct.MarshalBinary()
		if err != nil {
			return nil, fmt.Errorf("ciphertext %d: %w", i, err)
		}
		if err := writeBlock(&buf, data); err != nil {
			return nil, fmt.Errorf("ciphertext %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}

// UnmarshalCiphertexts deserializes a vector written by MarshalCiphertexts
func UnmarshalCiphertexts(data []byte) ([]*Ciphertext, error) {
	r := bytes.NewReader(data)

	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, fmt.Errorf("read length: %w", err)
	}
	if int64(n) > int64(r.Len()) {
		return nil, fmt.Errorf("vector of %d ciphertexts exceeds %d bytes", n, r.Len())
	}

	cts := make([]*Ciphertext, n)
	for i := range cts {
		block, err := readBlock(r)
		if err != nil {
			return nil, fmt.Errorf("ciphertext %d: %w", i, err)
		}
		cts[i] = new(Ciphertext)
		if err := cts[i].UnmarshalBinary(block); err != nil {
			return nil, fmt.Errorf("ciphertext %d: %w", i, err)
		}
	}
	if r.Len() != 0 {
		return nil, fmt.Errorf("%d trailing bytes after ciphertext vector", r.Len())
	}
	return cts, nil
}

func writeBlock(w io.Writer, data []byte) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(len(data))); err != nil {
		return err
	}
	_, err := w.Write(data)
	return err
}

func readBlock(r io.Reader) ([]byte, error) {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, fmt.Errorf("read block length: %w", err)
	}
	if n > maxSerializedLen {
		return nil, fmt.Errorf("block of %d bytes exceeds limit", n)
	}
	data := make([]byte, n)
	if _, err := io.ReadFull(r, data); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("truncated block: %w", err)
		}
		return nil, err
	}
	return data, nil
}
