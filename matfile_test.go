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
	"encoding/binary"
	"errors"
	"testing"

	"github.com/google/trsconv"
)

func matBytes(t *testing.T, vars []trsconv.MatVariable, compress bool) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := trsconv.WriteMat(&buf, vars, compress); err != nil {
		t.Fatalf("WriteMat failed: %v", err)
	}
	return buf.Bytes()
}

func TestReadMatVariable(t *testing.T) {
	samples := []float64{0.25, -1, 3.5, 1e-3, 42}
	for _, compress := range []bool{false, true} {
		data := matBytes(t, []trsconv.MatVariable{
			trsconv.MatDoubleRow("other", []float64{9, 9}),
			trsconv.MatDoubleRow("trace", samples),
		}, compress)

		rec, err := trsconv.ReadMatVariable(bytes.NewReader(data), "trace")
		if err != nil {
			t.Fatalf("ReadMatVariable (compress %v) failed: %v", compress, err)
		}
		if rec.Format.String() != "<f8" {
			t.Errorf("Format = %s, want <f8", rec.Format)
		}
		if !bytes.Equal(rec.Samples, trsconv.EncodeFloat64s(samples)) {
			t.Errorf("Samples (compress %v) = % x", compress, rec.Samples)
		}
		if rec.Metadata != nil {
			t.Errorf("MAT records must take metadata from the filename")
		}
	}
}

func TestReadMatVariableMissing(t *testing.T) {
	data := matBytes(t, []trsconv.MatVariable{trsconv.MatDoubleRow("scope", []float64{1})}, false)
	_, err := trsconv.ReadMatVariable(bytes.NewReader(data), "trace")
	if !errors.Is(err, trsconv.ErrMissingVariable) {
		t.Errorf("ReadMatVariable = %v, want ErrMissingVariable", err)
	}
}

func TestReadMatVariableWidensStorageType(t *testing.T) {
	// MATLAB stores integer valued doubles in the smallest type that fits.
	data := matBytes(t, []trsconv.MatVariable{{
		Name:  "trace",
		Class: trsconv.MxDoubleClass,
		Type:  trsconv.MiUint8,
		Dims:  []int32{1, 3},
		Data:  []byte{0, 7, 255},
	}}, false)
	rec, err := trsconv.ReadMatVariable(bytes.NewReader(data), "trace")
	if err != nil {
		t.Fatalf("ReadMatVariable failed: %v", err)
	}
	if !bytes.Equal(rec.Samples, trsconv.EncodeFloat64s([]float64{0, 7, 255})) {
		t.Errorf("Samples = % x", rec.Samples)
	}

	data = matBytes(t, []trsconv.MatVariable{{
		Name:  "trace",
		Class: trsconv.MxInt16Class,
		Type:  trsconv.MiInt8,
		Dims:  []int32{2, 1},
		Data:  []byte{0xff, 0x05},
	}}, true)
	rec, err = trsconv.ReadMatVariable(bytes.NewReader(data), "trace")
	if err != nil {
		t.Fatalf("ReadMatVariable failed: %v", err)
	}
	if rec.Format.String() != "<i2" {
		t.Errorf("Format = %s, want <i2", rec.Format)
	}
	if want := []byte{0xff, 0xff, 0x05, 0x00}; !bytes.Equal(rec.Samples, want) {
		t.Errorf("Samples = % x, want % x", rec.Samples, want)
	}
}

func TestReadMatVariableUint8Class(t *testing.T) {
	data := matBytes(t, []trsconv.MatVariable{{
		Name:  "trace",
		Class: trsconv.MxUint8Class,
		Type:  trsconv.MiUint8,
		Dims:  []int32{1, 4},
		Data:  []byte{1, 2, 3, 4},
	}}, false)
	rec, err := trsconv.ReadMatVariable(bytes.NewReader(data), "trace")
	if err != nil {
		t.Fatalf("ReadMatVariable failed: %v", err)
	}
	if rec.Format.String() != "|u1" || !bytes.Equal(rec.Samples, []byte{1, 2, 3, 4}) {
		t.Errorf("Got %s % x", rec.Format, rec.Samples)
	}
}

func TestReadMatVariableMatrixRowMajor(t *testing.T) {
	// [[1 2 3]; [4 5 6]] as MATLAB stores it, column by column.
	data := matBytes(t, []trsconv.MatVariable{{
		Name:  "trace",
		Class: trsconv.MxDoubleClass,
		Type:  trsconv.MiDouble,
		Dims:  []int32{2, 3},
		Data:  trsconv.EncodeFloat64s([]float64{1, 4, 2, 5, 3, 6}),
	}}, true)
	rec, err := trsconv.ReadMatVariable(bytes.NewReader(data), "trace")
	if err != nil {
		t.Fatalf("ReadMatVariable failed: %v", err)
	}
	got, err := rec.Format.Float64s(rec.Samples)
	if err != nil {
		t.Fatalf("Float64s failed: %v", err)
	}
	want := []float64{1, 2, 3, 4, 5, 6}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Samples = %v, want %v", got, want)
		}
	}

	// Column vectors keep their order.
	data = matBytes(t, []trsconv.MatVariable{{
		Name:  "trace",
		Class: trsconv.MxUint8Class,
		Type:  trsconv.MiUint8,
		Dims:  []int32{4, 1},
		Data:  []byte{9, 8, 7, 6},
	}}, false)
	rec, err = trsconv.ReadMatVariable(bytes.NewReader(data), "trace")
	if err != nil {
		t.Fatalf("ReadMatVariable failed: %v", err)
	}
	if !bytes.Equal(rec.Samples, []byte{9, 8, 7, 6}) {
		t.Errorf("Samples = % x", rec.Samples)
	}
}

func TestReadMatVariableRejectsBadInput(t *testing.T) {
	if _, err := trsconv.ReadMatVariable(bytes.NewReader([]byte("MATLAB 5.0")), "trace"); !errors.Is(err, trsconv.ErrUnsupportedFormat) {
		t.Errorf("short header: %v", err)
	}

	data := matBytes(t, []trsconv.MatVariable{trsconv.MatDoubleRow("trace", []float64{1, 2})}, false)
	bad := append([]byte{}, data...)
	copy(bad[126:], "XX")
	if _, err := trsconv.ReadMatVariable(bytes.NewReader(bad), "trace"); !errors.Is(err, trsconv.ErrUnsupportedFormat) {
		t.Errorf("bad endian indicator: %v", err)
	}

	// Claim three elements while storing two.
	bad = append([]byte{}, data...)
	dims := 128 + 8 + 16 + 8
	binary.LittleEndian.PutUint32(bad[dims+4:], 3)
	if _, err := trsconv.ReadMatVariable(bytes.NewReader(bad), "trace"); !errors.Is(err, trsconv.ErrSizeMismatch) {
		t.Errorf("dimension mismatch: %v", err)
	}

	if _, err := trsconv.ReadMatVariable(bytes.NewReader(data[:len(data)-4]), "trace"); !errors.Is(err, trsconv.ErrUnsupportedFormat) {
		t.Errorf("truncated file: %v", err)
	}
}
