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

// Capture records and the filename convention that carries their metadata.
package trsconv

import (
	"compress/gzip"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"regexp"
)

// Number of hex characters following each filename marker.
const FieldHexLen = 16

// Filename markers, in the order they appear in
// trace_DES__k=f49d7b07c3ee29ef_m=004c5517a01903c7_c=c2eb8188c1e11cd6.mat
const (
	KeyMarker        = "k="
	PlaintextMarker  = "m="
	CiphertextMarker = "c="
)

var markerPatterns = map[string]*regexp.Regexp{
	KeyMarker:        regexp.MustCompile(KeyMarker + `([0-9A-Fa-f]*)`),
	PlaintextMarker:  regexp.MustCompile(PlaintextMarker + `([0-9A-Fa-f]*)`),
	CiphertextMarker: regexp.MustCompile(CiphertextMarker + `([0-9A-Fa-f]*)`),
}

// Key, plaintext (message) and ciphertext of one trace, as hex strings.
type Metadata struct {
	Key        string
	Plaintext  string
	Ciphertext string
}

func (m Metadata) PlaintextBytes() ([]byte, error) {
	return hex.DecodeString(m.Plaintext)
}

// Extracts the k=, m= and c= fields from a capture filename.
// Each marker must be present and followed by exactly 16 hex characters.
func ParseFilename(name string) (Metadata, error) {
	var fields [3]string
	for i, marker := range []string{KeyMarker, PlaintextMarker, CiphertextMarker} {
		match := markerPatterns[marker].FindStringSubmatch(name)
		if match == nil {
			return Metadata{}, &FilenameError{Name: name, Marker: marker, Reason: "not found"}
		}
		if len(match[1]) != FieldHexLen {
			return Metadata{}, &FilenameError{Name: name, Marker: marker,
				Reason: fmt.Sprintf("followed by %d hex characters, want %d", len(match[1]), FieldHexLen)}
		}
		fields[i] = match[1]
	}
	return Metadata{Key: fields[0], Plaintext: fields[1], Ciphertext: fields[2]}, nil
}

// One decoded trace ready to be appended to a trace-set.
type Record struct {
	// Set when the capture file carries its own metadata. Otherwise
	// metadata comes from the filename.
	Metadata *Metadata
	Format   ElementFormat
	Samples  []byte
}

// A trace as stored by gocw capture files (.json.gz).
type Trace struct {
	Key               []byte    `json:"k"`
	Pt                []byte    `json:"pt"`
	Ct                []byte    `json:"ct"`
	PowerMeasurements []float64 `json:"pm"`
}

type Capture []Trace

// Exported for testing.
func LoadCaptureIo(src io.Reader) (Capture, error) {
	var capture Capture
	zipper, err := gzip.NewReader(src)
	if err != nil {
		return nil, fmt.Errorf("gzip NewReader failed: %w", err)
	}
	decoder := json.NewDecoder(zipper)
	if err = decoder.Decode(&capture); err != nil {
		return nil, fmt.Errorf("JSON decoder failed: %w", err)
	}
	return capture, nil
}

// Loads capture from file.
func LoadCapture(filename string) (Capture, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("error opening capture file: %w", err)
	}
	defer f.Close()
	return LoadCaptureIo(f)
}

// Exported for testing.
func (c Capture) SaveIo(dst io.Writer) error {
	zipper := gzip.NewWriter(dst)
	encoder := json.NewEncoder(zipper)
	if err := encoder.Encode(c); err != nil {
		return fmt.Errorf("JSON encoder failed: %w", err)
	}
	if err := zipper.Close(); err != nil {
		return fmt.Errorf("gzip close failed: %w", err)
	}
	return nil
}

func (c Capture) Save(filename string) error {
	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("error creating capture file: %w", err)
	}
	if err = c.SaveIo(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Converts every trace to a record. Power measurements are stored as
// little endian doubles.
func (c Capture) Records() []Record {
	records := make([]Record, 0, len(c))
	for _, t := range c {
		records = append(records, Record{
			Metadata: &Metadata{
				Key:        hex.EncodeToString(t.Key),
				Plaintext:  hex.EncodeToString(t.Pt),
				Ciphertext: hex.EncodeToString(t.Ct),
			},
			Format:  Float64LE,
			Samples: EncodeFloat64s(t.PowerMeasurements),
		})
	}
	return records
}
