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

// Read access to a converted trace-set.
package trsconv

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gonum.org/v1/gonum/mat"
)

type TraceSet struct {
	Manifest   *Manifest
	TracesPath string
	InputPath  string
	traces     *os.File
	inputs     *os.File
}

// Actual and expected size of one blob.
type BlobStatus struct {
	Path     string
	Size     int64
	Expected int64
}

func (b BlobStatus) OK() bool {
	return b.Size == b.Expected
}

// Opens the trace-set described by a manifest. Blob paths are taken from
// the manifest, or from the manifest's directory when the trace-set was
// moved or written relative to another working directory.
func OpenTraceSet(manifestPath string) (*TraceSet, error) {
	m, err := LoadManifest(manifestPath)
	if err != nil {
		return nil, err
	}
	ts := &TraceSet{Manifest: m}
	dir := filepath.Dir(manifestPath)
	if ts.TracesPath, err = resolveBlob(dir, m.TracesPath); err != nil {
		return nil, err
	}
	if ts.InputPath, err = resolveBlob(dir, m.InputPath); err != nil {
		return nil, err
	}
	if ts.traces, err = os.Open(ts.TracesPath); err != nil {
		return nil, err
	}
	if ts.inputs, err = os.Open(ts.InputPath); err != nil {
		ts.traces.Close()
		return nil, err
	}
	return ts, nil
}

func resolveBlob(dir, path string) (string, error) {
	candidates := []string{path, filepath.Join(dir, filepath.Base(path))}
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		} else if !errors.Is(err, fs.ErrNotExist) {
			return "", err
		}
	}
	return "", fmt.Errorf("trace-set blob %s: %w", path, fs.ErrNotExist)
}

func (ts *TraceSet) Close() error {
	err := ts.traces.Close()
	if ierr := ts.inputs.Close(); err == nil {
		err = ierr
	}
	return err
}

func (ts *TraceSet) Len() int {
	return ts.Manifest.NumTraces
}

func (ts *TraceSet) Blobs() ([]BlobStatus, error) {
	m := ts.Manifest
	blobs := []BlobStatus{
		{Path: ts.TracesPath, Expected: int64(m.NumTraces) * int64(m.NSamples)},
		{Path: ts.InputPath, Expected: int64(m.NumTraces) * int64(m.InputWidth)},
	}
	for i, f := range []*os.File{ts.traces, ts.inputs} {
		fi, err := f.Stat()
		if err != nil {
			return nil, err
		}
		blobs[i].Size = fi.Size()
	}
	return blobs, nil
}

// Checks that both blobs hold exactly what the manifest describes. Data
// appended by an earlier or later run shows up here.
func (ts *TraceSet) Verify() error {
	blobs, err := ts.Blobs()
	if err != nil {
		return err
	}
	for _, b := range blobs {
		if !b.OK() {
			return fmt.Errorf("%w: %s holds %d bytes, manifest describes %d",
				ErrSizeMismatch, b.Path, b.Size, b.Expected)
		}
	}
	return nil
}

func (ts *TraceSet) checkIndex(i int) error {
	if i < 0 || i >= ts.Len() {
		return fmt.Errorf("trace %d out of range [0, %d)", i, ts.Len())
	}
	return nil
}

// Raw sample bytes of trace i.
func (ts *TraceSet) RawTrace(i int) ([]byte, error) {
	if err := ts.checkIndex(i); err != nil {
		return nil, err
	}
	n := ts.Manifest.NSamples
	buf := make([]byte, n)
	if _, err := ts.traces.ReadAt(buf, int64(i)*int64(n)); err != nil {
		return nil, fmt.Errorf("reading trace %d: %w", i, err)
	}
	return buf, nil
}

func (ts *TraceSet) Trace(i int) ([]float64, error) {
	raw, err := ts.RawTrace(i)
	if err != nil {
		return nil, err
	}
	return ts.Manifest.Format.Float64s(raw)
}

// Plaintext bytes of trace i.
func (ts *TraceSet) Input(i int) ([]byte, error) {
	if err := ts.checkIndex(i); err != nil {
		return nil, err
	}
	n := ts.Manifest.InputWidth
	buf := make([]byte, n)
	if _, err := ts.inputs.ReadAt(buf, int64(i)*int64(n)); err != nil {
		return nil, fmt.Errorf("reading input %d: %w", i, err)
	}
	return buf, nil
}

// Collects all samples in a single m (#traces) by n (#samples) matrix.
//
//	 _         _
//	| -- T1  -- |
//	| -- T2  -- |
//	| -- ..  -- |
//	| -- TM  -- |
//	|_         _|
func (ts *TraceSet) SamplesMatrix() (*mat.Dense, error) {
	rows := ts.Len()
	cols := ts.Manifest.SamplesPerTrace()
	if rows == 0 || cols == 0 {
		return nil, fmt.Errorf("%w: empty trace-set", ErrSizeMismatch)
	}
	data := make([]float64, 0, rows*cols)
	for i := 0; i < rows; i++ {
		t, err := ts.Trace(i)
		if err != nil {
			return nil, err
		}
		data = append(data, t...)
	}
	return mat.NewDense(rows, cols, data), nil
}
