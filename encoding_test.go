// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package lincircuit

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewCanonicalEncoding(t *testing.T) {
	tests := []struct {
		name    string
		origin  uint64
		coeffs  []uint64
		modulus uint64
		wantErr bool
	}{
		{"identity", 4, []uint64{0, 1, 2, 3}, 5, false},
		{"permuted", 3, []uint64{2, 0, 1}, 3, false},
		{"modulus too small", 1, []uint64{0}, 1, true},
		{"empty domain", 0, nil, 5, true},
		{"length mismatch", 3, []uint64{0, 1}, 5, true},
		{"coefficient not reduced", 2, []uint64{0, 5}, 5, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enc, err := NewCanonicalEncoding(tt.origin, tt.coeffs, tt.modulus)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidEncoding)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.origin, enc.OriginModulus())
			require.Equal(t, tt.modulus, enc.Modulus())
			require.Equal(t, tt.coeffs, enc.Coefficients())
		})
	}
}

func TestEncodingIsImmutable(t *testing.T) {
	coeffs := []uint64{0, 1, 2, 3}
	enc, err := NewCanonicalEncoding(4, coeffs, 5)
	require.NoError(t, err)

	coeffs[0] = 4
	got := enc.Coefficients()
	got[1] = 4
	require.Equal(t, []uint64{0, 1, 2, 3}, enc.Coefficients())
}

func TestBooleanEncoding(t *testing.T) {
	enc := NewBooleanEncoding()
	require.True(t, enc.IsBoolean())
	require.True(t, enc.IsPowerOfTwoDomain())
	require.Equal(t, 1, enc.BitWidth())
	require.Equal(t, 2, enc.Arity())
	require.True(t, enc.Equal(NewRawEncoding(2)))
	require.False(t, enc.IsZero())
	require.True(t, Encoding{}.IsZero())
}

func TestNegacyclicBinaryEncoding(t *testing.T) {
	enc, err := NewNegacyclicBinaryEncoding(3, 17)
	require.NoError(t, err)
	require.Equal(t, []uint64{14, 3}, enc.Coefficients())
	require.True(t, enc.IsBoolean())

	_, err = NewNegacyclicBinaryEncoding(0, 17)
	require.ErrorIs(t, err, ErrInvalidEncoding)
	_, err = NewNegacyclicBinaryEncoding(17, 17)
	require.ErrorIs(t, err, ErrInvalidEncoding)
}

func TestEncodeDecode(t *testing.T) {
	enc, err := NewCanonicalEncoding(3, []uint64{4, 0, 2}, 7)
	require.NoError(t, err)

	for v := uint64(0); v < 3; v++ {
		r, err := enc.Encode(v)
		require.NoError(t, err)
		got, err := enc.Decode(r)
		require.NoError(t, err)
		require.Equal(t, v, got)
	}

	// Residues are reduced before lookup.
	got, err := enc.Decode(11)
	require.NoError(t, err)
	require.Equal(t, uint64(0), got)

	_, err = enc.Encode(3)
	require.ErrorIs(t, err, ErrInvalidEncoding)
	_, err = enc.Decode(1)
	require.ErrorIs(t, err, ErrInvalidEncoding)
	_, err = Encoding{}.Decode(0)
	require.ErrorIs(t, err, ErrInvalidEncoding)
}

func TestEncodingTransforms(t *testing.T) {
	enc, err := NewNegacyclicBinaryEncoding(4, 17)
	require.NoError(t, err)

	shifted := enc.AddConstant(4)
	require.Equal(t, []uint64{0, 8}, shifted.Coefficients())
	require.Equal(t, []uint64{13, 4}, enc.Coefficients())

	scaled := shifted.MulConstant(3)
	require.Equal(t, []uint64{0, 24 % 17}, scaled.Coefficients())
	require.True(t, scaled.Compatible(enc))
	require.False(t, scaled.Compatible(NewBooleanEncoding()))
}

func TestPowerOfTwoDomain(t *testing.T) {
	tests := []struct {
		origin uint64
		pow2   bool
		width  int
	}{
		{2, true, 1},
		{4, true, 2},
		{16, true, 4},
		{3, false, 0},
		{17, false, 0},
	}
	for _, tt := range tests {
		enc := NewRawEncoding(tt.origin)
		require.Equal(t, tt.pow2, enc.IsPowerOfTwoDomain(), "origin %d", tt.origin)
		if tt.pow2 {
			require.Equal(t, tt.width, enc.BitWidth(), "origin %d", tt.origin)
		}
	}
	require.False(t, NewRawEncoding(1).IsPowerOfTwoDomain())
}
