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

// Reading and writing of NumPy .npy arrays.
// https://numpy.org/doc/stable/reference/generated/numpy.lib.format.html
package trsconv

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"
)

const npyMagic = "\x93NUMPY"

var (
	npyDescr   = regexp.MustCompile(`'descr':\s*'([^']*)'`)
	npyFortran = regexp.MustCompile(`'fortran_order':\s*(True|False)`)
	npyShape   = regexp.MustCompile(`'shape':\s*\(([^)]*)\)`)
)

// Reads .npy files holding a single numeric array.
type NpyDecoder struct{}

func (*NpyDecoder) Decode(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	rec, err := ReadNpy(f)
	if err != nil {
		return nil, err
	}
	return []Record{rec}, nil
}

func ReadNpy(r io.Reader) (Record, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Record{}, err
	}
	if len(data) < 10 || string(data[:6]) != npyMagic {
		return Record{}, fmt.Errorf("%w: not a .npy file", ErrUnsupportedFormat)
	}
	var headerLen, offset int
	switch major := data[6]; major {
	case 1:
		headerLen, offset = int(binary.LittleEndian.Uint16(data[8:10])), 10
	case 2, 3:
		if len(data) < 12 {
			return Record{}, fmt.Errorf("%w: .npy header truncated", ErrUnsupportedFormat)
		}
		headerLen, offset = int(binary.LittleEndian.Uint32(data[8:12])), 12
	default:
		return Record{}, fmt.Errorf("%w: .npy version %d", ErrUnsupportedFormat, major)
	}
	if offset+headerLen > len(data) {
		return Record{}, fmt.Errorf("%w: .npy header truncated", ErrUnsupportedFormat)
	}
	header := string(data[offset : offset+headerLen])
	body := data[offset+headerLen:]

	m := npyDescr.FindStringSubmatch(header)
	if m == nil {
		return Record{}, fmt.Errorf("%w: .npy header has no descr", ErrUnsupportedFormat)
	}
	format, err := ParseElementFormat(m[1])
	if err != nil {
		return Record{}, err
	}
	m = npyShape.FindStringSubmatch(header)
	if m == nil {
		return Record{}, fmt.Errorf("%w: .npy header has no shape", ErrUnsupportedFormat)
	}
	count, multiDim := 1, 0
	for _, dim := range strings.Split(m[1], ",") {
		dim = strings.TrimSpace(dim)
		if dim == "" {
			continue
		}
		n, err := strconv.Atoi(dim)
		if err != nil {
			return Record{}, fmt.Errorf("%w: .npy shape %q", ErrUnsupportedFormat, m[1])
		}
		if n > 1 {
			multiDim++
		}
		count *= n
	}
	// Row major bytes are required; Fortran order only matches for vectors.
	if m := npyFortran.FindStringSubmatch(header); m != nil && m[1] == "True" && multiDim > 1 {
		return Record{}, fmt.Errorf("%w: Fortran ordered .npy matrix", ErrUnsupportedFormat)
	}
	if count*format.Width != len(body) {
		return Record{}, fmt.Errorf("%w: .npy holds %d bytes for %d elements of %s",
			ErrSizeMismatch, len(body), count, format)
	}
	samples := make([]byte, len(body))
	copy(samples, body)
	return Record{Format: format, Samples: samples}, nil
}

// Writes a version 1.0 .npy file holding a 1-D array.
func WriteNpy(w io.Writer, format ElementFormat, data []byte) error {
	if err := format.Validate(); err != nil {
		return err
	}
	if len(data)%format.Width != 0 {
		return fmt.Errorf("%w: %d bytes of %s", ErrSizeMismatch, len(data), format)
	}
	header := fmt.Sprintf("{'descr': '%s', 'fortran_order': False, 'shape': (%d,), }",
		format, len(data)/format.Width)
	// Magic, version, length and header are padded to a multiple of 64.
	total := len(npyMagic) + 4 + len(header) + 1
	header += strings.Repeat(" ", (64-total%64)%64) + "\n"

	var buf bytes.Buffer
	buf.WriteString(npyMagic)
	buf.Write([]byte{1, 0})
	binary.Write(&buf, binary.LittleEndian, uint16(len(header)))
	buf.WriteString(header)
	buf.Write(data)
	_, err := w.Write(buf.Bytes())
	return err
}
