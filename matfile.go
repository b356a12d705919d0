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

// Reading and writing of MATLAB level 5 MAT-files.
// https://www.mathworks.com/help/pdf_doc/matlab/matfile_format.pdf
package trsconv

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
)

// MAT-file data types.
const (
	MiInt8       = 1
	MiUint8      = 2
	MiInt16      = 3
	MiUint16     = 4
	MiInt32      = 5
	MiUint32     = 6
	MiSingle     = 7
	MiDouble     = 9
	MiInt64      = 12
	MiUint64     = 13
	MiMatrix     = 14
	MiCompressed = 15
)

// MAT-file array classes.
const (
	MxDoubleClass = 6
	MxSingleClass = 7
	MxInt8Class   = 8
	MxUint8Class  = 9
	MxInt16Class  = 10
	MxUint16Class = 11
	MxInt32Class  = 12
	MxUint32Class = 13
	MxInt64Class  = 14
	MxUint64Class = 15
)

const (
	matHeaderLen   = 128
	matVersion     = 0x0100
	matComplexFlag = 0x0800
)

var miTypeFormats = map[uint32]ElementFormat{
	MiInt8:   {NotApplicable, KindInt, 1},
	MiUint8:  {NotApplicable, KindUnsigned, 1},
	MiInt16:  {0, KindInt, 2},
	MiUint16: {0, KindUnsigned, 2},
	MiInt32:  {0, KindInt, 4},
	MiUint32: {0, KindUnsigned, 4},
	MiSingle: {0, KindFloat, 4},
	MiDouble: {0, KindFloat, 8},
	MiInt64:  {0, KindInt, 8},
	MiUint64: {0, KindUnsigned, 8},
}

var mxClassFormats = map[uint32]ElementFormat{
	MxDoubleClass: {0, KindFloat, 8},
	MxSingleClass: {0, KindFloat, 4},
	MxInt8Class:   {NotApplicable, KindInt, 1},
	MxUint8Class:  {NotApplicable, KindUnsigned, 1},
	MxInt16Class:  {0, KindInt, 2},
	MxUint16Class: {0, KindUnsigned, 2},
	MxInt32Class:  {0, KindInt, 4},
	MxUint32Class: {0, KindUnsigned, 4},
	MxInt64Class:  {0, KindInt, 8},
	MxUint64Class: {0, KindUnsigned, 8},
}

// Reads one numeric variable from each .mat file.
type MatDecoder struct {
	Variable string
}

func (d *MatDecoder) Decode(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	rec, err := ReadMatVariable(f, d.Variable)
	if err != nil {
		return nil, err
	}
	return []Record{rec}, nil
}

// Reads the named numeric variable. Samples are returned in the class type
// of the variable and in the byte order of the file, whatever narrower type
// MATLAB chose for storage.
func ReadMatVariable(r io.Reader, name string) (Record, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Record{}, err
	}
	if len(data) < matHeaderLen {
		return Record{}, fmt.Errorf("%w: MAT header truncated", ErrUnsupportedFormat)
	}
	var order binary.ByteOrder
	var orderMark byte
	switch string(data[126:128]) {
	case "IM":
		order, orderMark = binary.LittleEndian, LittleEndian
	case "MI":
		order, orderMark = binary.BigEndian, BigEndian
	default:
		return Record{}, fmt.Errorf("%w: not a level 5 MAT file", ErrUnsupportedFormat)
	}
	if v := order.Uint16(data[124:126]); v != matVersion {
		return Record{}, fmt.Errorf("%w: MAT version 0x%04x", ErrUnsupportedFormat, v)
	}

	buf := data[matHeaderLen:]
	for len(buf) > 0 {
		typ, payload, rest, err := nextMatElement(buf, order)
		if err != nil {
			return Record{}, err
		}
		buf = rest
		if typ == MiCompressed {
			if payload, err = inflate(payload); err != nil {
				return Record{}, err
			}
			if typ, payload, _, err = nextMatElement(payload, order); err != nil {
				return Record{}, err
			}
		}
		if typ != MiMatrix {
			continue
		}
		m, err := parseMatMatrix(payload, order)
		if err != nil {
			return Record{}, err
		}
		if m.name != name {
			continue
		}
		return m.record(order, orderMark)
	}
	return Record{}, fmt.Errorf("%w: %q", ErrMissingVariable, name)
}

// Splits the next data element off buf. Handles the small data element
// format and the 8 byte alignment of uncompressed elements.
func nextMatElement(buf []byte, order binary.ByteOrder) (uint32, []byte, []byte, error) {
	if len(buf) < 8 {
		return 0, nil, nil, fmt.Errorf("%w: MAT element tag truncated", ErrUnsupportedFormat)
	}
	first := order.Uint32(buf[0:4])
	if small := first >> 16; small != 0 {
		if small > 4 {
			return 0, nil, nil, fmt.Errorf("%w: MAT small element of %d bytes", ErrUnsupportedFormat, small)
		}
		return first & 0xffff, buf[4 : 4+small], buf[8:], nil
	}
	n := int(order.Uint32(buf[4:8]))
	if n < 0 || 8+n > len(buf) {
		return 0, nil, nil, fmt.Errorf("%w: MAT element of %d bytes truncated", ErrUnsupportedFormat, n)
	}
	payload := buf[8 : 8+n]
	next := 8 + n
	if first != MiCompressed {
		next = 8 + (n+7)&^7
	}
	if next > len(buf) {
		next = len(buf)
	}
	return first, payload, buf[next:], nil
}

func inflate(payload []byte) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: MAT compressed element: %v", ErrUnsupportedFormat, err)
	}
	defer zr.Close()
	out, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("%w: MAT compressed element: %v", ErrUnsupportedFormat, err)
	}
	return out, nil
}

type matMatrix struct {
	name     string
	class    uint32
	complex  bool
	dims     []int32
	realType uint32
	real     []byte
}

func parseMatMatrix(payload []byte, order binary.ByteOrder) (*matMatrix, error) {
	m := &matMatrix{}
	// An empty matrix element carries no subelements.
	if len(payload) == 0 {
		return m, nil
	}
	var sub [4]struct {
		typ  uint32
		data []byte
	}
	buf := payload
	for i := range sub {
		if len(buf) == 0 {
			if i < 3 {
				return nil, fmt.Errorf("%w: MAT matrix truncated", ErrUnsupportedFormat)
			}
			break
		}
		typ, data, rest, err := nextMatElement(buf, order)
		if err != nil {
			return nil, err
		}
		sub[i].typ, sub[i].data, buf = typ, data, rest
	}
	if len(sub[0].data) < 4 {
		return nil, fmt.Errorf("%w: MAT array flags truncated", ErrUnsupportedFormat)
	}
	flags := order.Uint32(sub[0].data[0:4])
	m.class = flags & 0xff
	m.complex = flags&matComplexFlag != 0
	for i := 0; i+4 <= len(sub[1].data); i += 4 {
		m.dims = append(m.dims, int32(order.Uint32(sub[1].data[i:])))
	}
	m.name = string(sub[2].data)
	m.realType, m.real = sub[3].typ, sub[3].data
	return m, nil
}

func (m *matMatrix) record(order binary.ByteOrder, orderMark byte) (Record, error) {
	target, ok := mxClassFormats[m.class]
	if !ok || m.complex {
		return Record{}, fmt.Errorf("%w: MAT variable %q of class %d (complex %v)",
			ErrUnsupportedFormat, m.name, m.class, m.complex)
	}
	stored, ok := miTypeFormats[m.realType]
	if !ok {
		return Record{}, fmt.Errorf("%w: MAT data type %d", ErrUnsupportedFormat, m.realType)
	}
	if target.Width > 1 {
		target.Order = orderMark
	}
	if stored.Width > 1 {
		stored.Order = orderMark
	}

	count := 1
	for _, d := range m.dims {
		count *= int(d)
	}
	if count*stored.Width != len(m.real) {
		return Record{}, fmt.Errorf("%w: MAT variable %q holds %d bytes for %d elements of %s",
			ErrSizeMismatch, m.name, len(m.real), count, stored)
	}

	samples := m.real
	if stored != target {
		var err error
		if samples, err = widen(m.real, stored, target, order); err != nil {
			return Record{}, err
		}
	}
	return Record{Format: target, Samples: rowMajor(samples, m.dims, target.Width)}, nil
}

// Reorders column major MAT data into row major order, the layout NumPy
// writes. Always returns a fresh slice.
func rowMajor(raw []byte, dims []int32, width int) []byte {
	out := make([]byte, len(raw))
	spread := 0
	for _, d := range dims {
		if d > 1 {
			spread++
		}
	}
	if spread < 2 {
		copy(out, raw)
		return out
	}

	idx := make([]int32, len(dims))
	for i := 0; i*width < len(out); i++ {
		src, stride := 0, 1
		for k, d := range dims {
			src += int(idx[k]) * stride
			stride *= int(d)
		}
		copy(out[i*width:(i+1)*width], raw[src*width:(src+1)*width])
		for k := len(dims) - 1; k >= 0; k-- {
			if idx[k]++; idx[k] < dims[k] {
				break
			}
			idx[k] = 0
		}
	}
	return out
}

// Converts values stored with a narrower type to the class type.
func widen(raw []byte, stored, target ElementFormat, order binary.ByteOrder) ([]byte, error) {
	count := len(raw) / stored.Width
	out := make([]byte, count*target.Width)
	if target.Kind == KindFloat {
		values, err := stored.Float64s(raw)
		if err != nil {
			return nil, err
		}
		for i, v := range values {
			b := out[i*target.Width : (i+1)*target.Width]
			if target.Width == 8 {
				order.PutUint64(b, math.Float64bits(v))
			} else {
				order.PutUint32(b, math.Float32bits(float32(v)))
			}
		}
		return out, nil
	}
	if stored.Kind == KindFloat {
		return nil, fmt.Errorf("%w: integer class stored as %s", ErrUnsupportedFormat, stored)
	}
	for i := 0; i < count; i++ {
		v := readUint(order, raw[i*stored.Width:(i+1)*stored.Width])
		if stored.Kind == KindInt {
			v = uint64(signExtend(v, stored.Width))
		}
		putUint(order, out[i*target.Width:(i+1)*target.Width], v)
	}
	return out, nil
}

// A numeric variable to be written with WriteMat. Data holds little endian
// values of the storage type.
type MatVariable struct {
	Name  string
	Class uint32
	Type  uint32
	Dims  []int32
	Data  []byte
}

// A 1xN double variable.
func MatDoubleRow(name string, samples []float64) MatVariable {
	return MatVariable{
		Name:  name,
		Class: MxDoubleClass,
		Type:  MiDouble,
		Dims:  []int32{1, int32(len(samples))},
		Data:  EncodeFloat64s(samples),
	}
}

// Writes a little endian level 5 MAT-file.
func WriteMat(w io.Writer, vars []MatVariable, compress bool) error {
	header := make([]byte, matHeaderLen)
	copy(header, bytes.Repeat([]byte{' '}, 116))
	copy(header, "MATLAB 5.0 MAT-file, Platform: GLNXA64, Created by: trsconv")
	binary.LittleEndian.PutUint16(header[124:], matVersion)
	copy(header[126:], "IM")
	if _, err := w.Write(header); err != nil {
		return err
	}

	for _, v := range vars {
		var body bytes.Buffer
		flags := make([]byte, 8)
		binary.LittleEndian.PutUint32(flags, v.Class)
		writeMatElement(&body, MiUint32, flags)
		dims := make([]byte, 4*len(v.Dims))
		for i, d := range v.Dims {
			binary.LittleEndian.PutUint32(dims[4*i:], uint32(d))
		}
		writeMatElement(&body, MiInt32, dims)
		writeMatElement(&body, MiInt8, []byte(v.Name))
		writeMatElement(&body, v.Type, v.Data)

		var matrix bytes.Buffer
		writeMatElement(&matrix, MiMatrix, body.Bytes())
		if !compress {
			if _, err := w.Write(matrix.Bytes()); err != nil {
				return err
			}
			continue
		}

		var packed bytes.Buffer
		zw := zlib.NewWriter(&packed)
		if _, err := zw.Write(matrix.Bytes()); err != nil {
			return err
		}
		if err := zw.Close(); err != nil {
			return err
		}
		tag := make([]byte, 8)
		binary.LittleEndian.PutUint32(tag[0:], MiCompressed)
		binary.LittleEndian.PutUint32(tag[4:], uint32(packed.Len()))
		if _, err := w.Write(tag); err != nil {
			return err
		}
		if _, err := w.Write(packed.Bytes()); err != nil {
			return err
		}
	}
	return nil
}

func writeMatElement(buf *bytes.Buffer, typ uint32, data []byte) {
	tag := make([]byte, 8)
	binary.LittleEndian.PutUint32(tag[0:], typ)
	binary.LittleEndian.PutUint32(tag[4:], uint32(len(data)))
	buf.Write(tag)
	buf.Write(data)
	if pad := (8 - len(data)%8) % 8; pad > 0 {
		buf.Write(make([]byte, pad))
	}
}
