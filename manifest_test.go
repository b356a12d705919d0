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
	"errors"
	"strings"
	"testing"

	"github.com/google/trsconv"

	"github.com/google/go-cmp/cmp"
)

func testGeneral() trsconv.GeneralConfig {
	g := trsconv.DefaultConfig().General
	g.Algorithm = "DES"
	g.Position = "LUT/DES_BEFORE_SBOX"
	return g
}

func TestManifestText(t *testing.T) {
	m := &trsconv.Manifest{
		Format:     trsconv.Float64LE,
		NumTraces:  37,
		NSamples:   5000,
		TracesPath: "out/trace-set.trs.traces",
		InputPath:  "out/trace-set.trs.input",
		InputWidth: 8,
		Key:        "f49d7b07c3ee29ef",
		General:    testGeneral(),
	}
	var buf bytes.Buffer
	if _, err := m.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo failed: %v", err)
	}
	want := `
[Traces]
files=1
trace_type=<f8
transpose=true
index=0
nsamples=5000
trace=out/trace-set.trs.traces 37 5000

[Guesses]
files=1
guess_type=u
transpose=true
guess=out/trace-set.trs.input 37 8

[General]
threads=8
order=1
return_type=double
algorithm=DES
position=LUT/DES_BEFORE_SBOX
round=0
bitnum=none
bytenum=all
#correct_key=f49d7b07c3ee29ef
memory=4G
top=20
`
	if diff := cmp.Diff(want, buf.String()); diff != "" {
		t.Errorf("Manifest mismatch (-want +got):\n%s", diff)
	}
}

func TestManifestRoundTrip(t *testing.T) {
	m := &trsconv.Manifest{
		Format:     trsconv.ElementFormat{Order: trsconv.BigEndian, Kind: trsconv.KindInt, Width: 2},
		NumTraces:  3,
		NSamples:   10,
		TracesPath: "/data/x.traces",
		InputPath:  "/data/x.input",
		InputWidth: 16,
		Key:        "2b7e151628aed2a6abf7158809cf4f3c",
		RunID:      "7c1b1e52-0d7b-4c59-9c8a-5b7f0a5d2f10",
		General:    testGeneral(),
	}
	var buf bytes.Buffer
	if _, err := m.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo failed: %v", err)
	}
	if !strings.Contains(buf.String(), "#run_id="+m.RunID+"\nmemory=4G\n") {
		t.Errorf("run id comment missing:\n%s", buf.String())
	}
	got, err := trsconv.ParseManifest(buf.Bytes())
	if err != nil {
		t.Fatalf("ParseManifest failed: %v", err)
	}
	if diff := cmp.Diff(m, got); diff != "" {
		t.Errorf("ParseManifest mismatch (-want +got):\n%s", diff)
	}
	if got.SamplesPerTrace() != 5 {
		t.Errorf("SamplesPerTrace = %d, want 5", got.SamplesPerTrace())
	}
}

func TestParseManifestInconsistent(t *testing.T) {
	m := &trsconv.Manifest{
		Format: trsconv.Float64LE, NumTraces: 2, NSamples: 16,
		TracesPath: "a.traces", InputPath: "a.input", InputWidth: 8, General: testGeneral(),
	}
	var buf bytes.Buffer
	m.WriteTo(&buf)
	text := strings.Replace(buf.String(), "guess=a.input 2 8", "guess=a.input 3 8", 1)
	if _, err := trsconv.ParseManifest([]byte(text)); !errors.Is(err, trsconv.ErrSizeMismatch) {
		t.Errorf("ParseManifest = %v, want ErrSizeMismatch", err)
	}
	text = strings.Replace(buf.String(), "top=20\n", "", 1)
	if _, err := trsconv.ParseManifest([]byte(text)); err == nil || !strings.Contains(err.Error(), "top") {
		t.Errorf("ParseManifest accepted a manifest without top: %v", err)
	}
}
