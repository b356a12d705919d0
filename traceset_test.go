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
	"os"
	"path/filepath"
	"testing"

	"github.com/google/trsconv"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func convertedSet(t *testing.T, n, samples int) trsconv.Config {
	t.Helper()
	cfg := testConfig(t)
	for i := 0; i < n; i++ {
		writeMatCapture(t, cfg.InputDir, captureName(i, ".mat"), testSamples(i, samples))
	}
	_, err := run(t, cfg)
	require.NoError(t, err)
	return cfg
}

func TestTraceSetReadBack(t *testing.T) {
	cfg := convertedSet(t, 3, 4)
	ts, err := trsconv.OpenTraceSet(cfg.ManifestPath())
	require.NoError(t, err)
	defer ts.Close()

	require.NoError(t, ts.Verify())
	assert.Equal(t, 3, ts.Len())
	assert.Equal(t, 4, ts.Manifest.SamplesPerTrace())

	trace, err := ts.Trace(2)
	require.NoError(t, err)
	assert.Equal(t, testSamples(2, 4), trace)
	pt, err := ts.Input(1)
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 0, 0, 0, 0, 0, 0, 1}, pt)

	_, err = ts.Trace(3)
	assert.Error(t, err)
	_, err = ts.Input(-1)
	assert.Error(t, err)

	m, err := ts.SamplesMatrix()
	require.NoError(t, err)
	rows, cols := m.Dims()
	assert.Equal(t, 3, rows)
	assert.Equal(t, 4, cols)
	assert.Equal(t, testSamples(1, 4), mat.Row(nil, 1, m))
}

func TestTraceSetDetectsAppendedData(t *testing.T) {
	cfg := convertedSet(t, 2, 4)
	// A second run appending behind the converter's back.
	f, err := os.OpenFile(cfg.InputPath(), os.O_WRONLY|os.O_APPEND, 0644)
	require.NoError(t, err)
	_, err = f.Write(make([]byte, 2*8))
	require.NoError(t, err)
	require.NoError(t, f.Close())

	ts, err := trsconv.OpenTraceSet(cfg.ManifestPath())
	require.NoError(t, err)
	defer ts.Close()
	assert.ErrorIs(t, ts.Verify(), trsconv.ErrSizeMismatch)

	blobs, err := ts.Blobs()
	require.NoError(t, err)
	require.Len(t, blobs, 2)
	assert.True(t, blobs[0].OK())
	assert.False(t, blobs[1].OK())
	assert.Equal(t, int64(4*8), blobs[1].Size)
	assert.Equal(t, int64(2*8), blobs[1].Expected)
}

func TestTraceSetMovedDirectory(t *testing.T) {
	cfg := convertedSet(t, 2, 2)
	moved := filepath.Join(t.TempDir(), "moved")
	require.NoError(t, os.Rename(cfg.OutputDir, moved))

	ts, err := trsconv.OpenTraceSet(filepath.Join(moved, cfg.BaseName+".config"))
	require.NoError(t, err)
	defer ts.Close()
	assert.Equal(t, filepath.Join(moved, cfg.BaseName+".traces"), ts.TracesPath)
	assert.NoError(t, ts.Verify())
}

func TestPlotTraces(t *testing.T) {
	cfg := convertedSet(t, 2, 32)
	ts, err := trsconv.OpenTraceSet(cfg.ManifestPath())
	require.NoError(t, err)
	defer ts.Close()

	out := filepath.Join(t.TempDir(), "traces.png")
	require.NoError(t, trsconv.PlotTraces(ts, []int{0, 1}, out))
	assert.Greater(t, fileSize(t, out), int64(0))

	assert.Error(t, trsconv.PlotTraces(ts, nil, out))
	assert.Error(t, trsconv.PlotTraces(ts, []int{5}, out))
}
