// Copyright 2019 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package trsconv_test

import (
	"errors"
	"testing"

	"github.com/google/trsconv"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseElementFormat(t *testing.T) {
	for _, s := range []string{"<f8", ">f4", "|u1", "|i1", "<i2", ">u4", "<i8"} {
		f, err := trsconv.ParseElementFormat(s)
		if assert.NoError(t, err, s) {
			assert.Equal(t, s, f.String())
			assert.False(t, f.IsZero(), s)
		}
	}
	for _, s := range []string{"", "<f", "<f2", "<c16", "=f8", "<u1x", "<u3", "|f8"} {
		_, err := trsconv.ParseElementFormat(s)
		if !errors.Is(err, trsconv.ErrUnsupportedFormat) {
			t.Errorf("ParseElementFormat(%q) = %v, want ErrUnsupportedFormat", s, err)
		}
	}
}

func TestZeroElementFormat(t *testing.T) {
	var f trsconv.ElementFormat
	assert.True(t, f.IsZero())
	assert.Empty(t, f.String())
}

func TestFloat64s(t *testing.T) {
	for _, tc := range []struct {
		format string
		raw    []byte
		want   []float64
	}{
		{"<f8", trsconv.EncodeFloat64s([]float64{1.5, -2}), []float64{1.5, -2}},
		{">f4", []byte{0x3f, 0xc0, 0x00, 0x00}, []float64{1.5}},
		{"|i1", []byte{0xff, 0x7f}, []float64{-1, 127}},
		{"|u1", []byte{0xff, 0x7f}, []float64{255, 127}},
		{"<i2", []byte{0xfe, 0xff, 0x01, 0x00}, []float64{-2, 1}},
		{">u2", []byte{0x01, 0x00}, []float64{256}},
		{"<i4", []byte{0xff, 0xff, 0xff, 0xff}, []float64{-1}},
		{">i8", []byte{0, 0, 0, 0, 0, 0, 0x01, 0x00}, []float64{256}},
	} {
		f, err := trsconv.ParseElementFormat(tc.format)
		require.NoError(t, err)
		got, err := f.Float64s(tc.raw)
		require.NoError(t, err, tc.format)
		assert.Equal(t, tc.want, got, tc.format)
	}
}

func TestFloat64sRejectsPartialElements(t *testing.T) {
	_, err := trsconv.Float64LE.Float64s(make([]byte, 12))
	assert.ErrorIs(t, err, trsconv.ErrSizeMismatch)
}
