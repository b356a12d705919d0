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
	"sort"
	"strings"
)

//go:generate mockgen -destination=mocks/decoder.go -package=mocks github.com/google/trsconv Decoder

// Loads the traces stored in one capture file.
type Decoder interface {
	Decode(path string) ([]Record, error)
}

// Decoders keyed by filename extension (".mat", ".json.gz", ...).
type Decoders map[string]Decoder

// Decoders for every supported capture format. Matlab files are read from
// the given variable name.
func DefaultDecoders(variable string) Decoders {
	return Decoders{
		".mat":     &MatDecoder{Variable: variable},
		".npy":     &NpyDecoder{},
		".json.gz": &CaptureDecoder{},
	}
}

// Returns the decoder with the longest extension matching name.
func (d Decoders) Lookup(name string) (Decoder, bool) {
	best := ""
	for ext := range d {
		if strings.HasSuffix(name, ext) && len(ext) > len(best) {
			best = ext
		}
	}
	if best == "" {
		return nil, false
	}
	return d[best], true
}

func (d Decoders) Extensions() []string {
	exts := make([]string, 0, len(d))
	for ext := range d {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// Decodes gocw capture files. Each trace becomes one record and keeps its
// embedded key, plaintext and ciphertext.
type CaptureDecoder struct{}

func (*CaptureDecoder) Decode(path string) ([]Record, error) {
	capture, err := LoadCapture(path)
	if err != nil {
		return nil, err
	}
	return capture.Records(), nil
}
