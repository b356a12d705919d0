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

package trsconv

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
)

// Byte order markers, as used by NumPy type descriptors.
const (
	LittleEndian  = '<'
	BigEndian     = '>'
	NotApplicable = '|'
)

// Element kinds.
const (
	KindFloat    = 'f'
	KindInt      = 'i'
	KindUnsigned = 'u'
)

// Describes how a flat byte buffer is reinterpreted as an array of samples.
// The string form is a NumPy type descriptor such as "<f8" or "|u1".
type ElementFormat struct {
	Order byte
	Kind  byte
	Width int
}

var (
	Float64LE = ElementFormat{LittleEndian, KindFloat, 8}
	Float32LE = ElementFormat{LittleEndian, KindFloat, 4}
)

func (f ElementFormat) String() string {
	if f.Width == 0 {
		return ""
	}
	return string([]byte{f.Order, f.Kind}) + strconv.Itoa(f.Width)
}

func (f ElementFormat) IsZero() bool {
	return f == ElementFormat{}
}

// Parses a descriptor such as "<f8". Single byte types must use '|'
// and multi byte types must carry an explicit byte order.
func ParseElementFormat(s string) (ElementFormat, error) {
	if len(s) < 3 {
		return ElementFormat{}, fmt.Errorf("%w: descriptor %q too short", ErrUnsupportedFormat, s)
	}
	width, err := strconv.Atoi(s[2:])
	if err != nil {
		return ElementFormat{}, fmt.Errorf("%w: descriptor %q has bad width", ErrUnsupportedFormat, s)
	}
	f := ElementFormat{Order: s[0], Kind: s[1], Width: width}
	if err := f.Validate(); err != nil {
		return ElementFormat{}, err
	}
	return f, nil
}

func (f ElementFormat) Validate() error {
	switch f.Kind {
	case KindFloat:
		if f.Width != 4 && f.Width != 8 {
			return fmt.Errorf("%w: float width %d", ErrUnsupportedFormat, f.Width)
		}
	case KindInt, KindUnsigned:
		if f.Width != 1 && f.Width != 2 && f.Width != 4 && f.Width != 8 {
			return fmt.Errorf("%w: integer width %d", ErrUnsupportedFormat, f.Width)
		}
	default:
		return fmt.Errorf("%w: kind %q", ErrUnsupportedFormat, f.Kind)
	}
	switch f.Order {
	case LittleEndian, BigEndian:
	case NotApplicable:
		if f.Width != 1 {
			return fmt.Errorf("%w: %d byte type without byte order", ErrUnsupportedFormat, f.Width)
		}
	default:
		return fmt.Errorf("%w: byte order %q", ErrUnsupportedFormat, f.Order)
	}
	return nil
}

func (f ElementFormat) ByteOrder() binary.ByteOrder {
	if f.Order == BigEndian {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

// Reinterprets raw sample bytes as float64 values.
func (f ElementFormat) Float64s(raw []byte) ([]float64, error) {
	if f.Width == 0 || len(raw)%f.Width != 0 {
		return nil, fmt.Errorf("%w: %d bytes is not a multiple of %s", ErrSizeMismatch, len(raw), f)
	}
	order := f.ByteOrder()
	out := make([]float64, len(raw)/f.Width)
	for i := range out {
		b := raw[i*f.Width : (i+1)*f.Width]
		switch {
		case f.Kind == KindFloat && f.Width == 8:
			out[i] = math.Float64frombits(order.Uint64(b))
		case f.Kind == KindFloat && f.Width == 4:
			out[i] = float64(math.Float32frombits(order.Uint32(b)))
		case f.Kind == KindInt:
			out[i] = float64(signExtend(readUint(order, b), f.Width))
		case f.Kind == KindUnsigned:
			out[i] = float64(readUint(order, b))
		default:
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, f)
		}
	}
	return out, nil
}

func readUint(order binary.ByteOrder, b []byte) uint64 {
	switch len(b) {
	case 1:
		return uint64(b[0])
	case 2:
		return uint64(order.Uint16(b))
	case 4:
		return uint64(order.Uint32(b))
	}
	return order.Uint64(b)
}

func signExtend(v uint64, width int) int64 {
	shift := uint(64 - 8*width)
	return int64(v<<shift) >> shift
}

func putUint(order binary.ByteOrder, b []byte, v uint64) {
	switch len(b) {
	case 1:
		b[0] = byte(v)
	case 2:
		order.PutUint16(b, uint16(v))
	case 4:
		order.PutUint32(b, uint32(v))
	default:
		order.PutUint64(b, v)
	}
}

// Serializes float64 samples as little endian doubles.
func EncodeFloat64s(samples []float64) []byte {
	buf := make([]byte, 8*len(samples))
	for i, s := range samples {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(s))
	}
	return buf
}
