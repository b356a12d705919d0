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
	"bytes"
	"testing"

	"github.com/google/trsconv"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteReadNpy(t *testing.T) {
	raw := trsconv.EncodeFloat64s([]float64{1, 2, 3})
	var buf bytes.Buffer
	require.NoError(t, trsconv.WriteNpy(&buf, trsconv.Float64LE, raw))
	// Data starts on a 64 byte boundary.
	assert.Equal(t, 0, (buf.Len()-len(raw))%64)

	rec, err := trsconv.ReadNpy(&buf)
	require.NoError(t, err)
	assert.Equal(t, "<f8", rec.Format.String())
	assert.Equal(t, raw, rec.Samples)
}

func TestReadNpyHeader(t *testing.T) {
	header := "{'descr': '>i2', 'fortran_order': False, 'shape': (1, 2), }\n"
	data := append([]byte("\x93NUMPY\x01\x00"), byte(len(header)), 0)
	data = append(data, header...)
	data = append(data, 0x00, 0x01, 0xff, 0xff)

	rec, err := trsconv.ReadNpy(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, ">i2", rec.Format.String())
	values, err := rec.Format.Float64s(rec.Samples)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, -1}, values)
}

func TestReadNpyRejectsBadInput(t *testing.T) {
	_, err := trsconv.ReadNpy(bytes.NewReader([]byte("not numpy at all")))
	assert.ErrorIs(t, err, trsconv.ErrUnsupportedFormat)

	var buf bytes.Buffer
	require.NoError(t, trsconv.WriteNpy(&buf, trsconv.Float64LE, make([]byte, 16)))
	_, err = trsconv.ReadNpy(bytes.NewReader(buf.Bytes()[:buf.Len()-1]))
	assert.ErrorIs(t, err, trsconv.ErrSizeMismatch)

	header := "{'descr': '<c16', 'fortran_order': False, 'shape': (1,), }\n"
	data := append([]byte("\x93NUMPY\x01\x00"), byte(len(header)), 0)
	data = append(data, header...)
	data = append(data, make([]byte, 16)...)
	_, err = trsconv.ReadNpy(bytes.NewReader(data))
	assert.ErrorIs(t, err, trsconv.ErrUnsupportedFormat)

	header = "{'descr': '<f8', 'fortran_order': True, 'shape': (2, 2), }\n"
	data = append([]byte("\x93NUMPY\x01\x00"), byte(len(header)), 0)
	data = append(data, header...)
	data = append(data, make([]byte, 32)...)
	_, err = trsconv.ReadNpy(bytes.NewReader(data))
	assert.ErrorIs(t, err, trsconv.ErrUnsupportedFormat)
}
