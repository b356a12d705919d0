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
	"bytes"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/template"

	"gopkg.in/ini.v1"
)

// Fixed guess width for filename metadata: 16 hex characters.
const FilenamePlaintextLen = FieldHexLen / 2

// Daredevil reads these section and key names verbatim.
var manifestTemplate = template.Must(template.New("manifest").Parse(`
[Traces]
files=1
trace_type={{.Format}}
transpose=true
index=0
nsamples={{.NSamples}}
trace={{.TracesPath}} {{.NumTraces}} {{.NSamples}}

[Guesses]
files=1
guess_type=u
transpose=true
guess={{.InputPath}} {{.NumTraces}} {{.InputWidth}}

[General]
threads={{.General.Threads}}
order={{.General.Order}}
return_type={{.General.ReturnType}}
algorithm={{.General.Algorithm}}
position={{.General.Position}}
round={{.General.Round}}
bitnum={{.General.Bitnum}}
bytenum={{.General.Bytenum}}
#correct_key={{.Key}}
{{if .RunID}}#run_id={{.RunID}}
{{end}}memory={{.General.Memory}}
top={{.General.Top}}
`))

// Describes a trace-set to Daredevil.
type Manifest struct {
	Format ElementFormat
	// Traces in both blobs.
	NumTraces int
	// Bytes per trace in the traces blob.
	NSamples   int
	TracesPath string
	InputPath  string
	// Bytes per trace in the input blob.
	InputWidth int
	// Informational only, written as a comment.
	Key     string
	RunID   string
	General GeneralConfig
}

// Samples per trace, as opposed to NSamples which counts bytes.
func (m *Manifest) SamplesPerTrace() int {
	if m.Format.Width == 0 {
		return 0
	}
	return m.NSamples / m.Format.Width
}

func (m *Manifest) WriteTo(w io.Writer) (int64, error) {
	var buf bytes.Buffer
	if err := manifestTemplate.Execute(&buf, m); err != nil {
		return 0, err
	}
	return buf.WriteTo(w)
}

// Writes the manifest, replacing any previous content.
func (m *Manifest) Save(filename string) error {
	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("error creating manifest: %w", err)
	}
	if _, err = m.WriteTo(f); err != nil {
		f.Close()
		return fmt.Errorf("error writing manifest: %w", err)
	}
	return f.Close()
}

func LoadManifest(filename string) (*Manifest, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("error reading manifest: %w", err)
	}
	m, err := ParseManifest(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	return m, nil
}

// Parses a manifest produced by WriteTo. File paths must not contain
// whitespace, as Daredevil itself separates them from the counts by spaces.
func ParseManifest(data []byte) (*Manifest, error) {
	f, err := ini.Load(data)
	if err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	p := manifestParser{file: f}
	m := &Manifest{}

	if m.Format, err = ParseElementFormat(p.str("Traces", "trace_type")); err != nil {
		p.fail(err)
	}
	m.NSamples = p.num("Traces", "nsamples")
	var traceSamples int
	m.TracesPath, m.NumTraces, traceSamples = p.fileLine("Traces", "trace")
	if p.err == nil && traceSamples != m.NSamples {
		p.fail(fmt.Errorf("%w: trace line reports %d samples, nsamples is %d", ErrSizeMismatch, traceSamples, m.NSamples))
	}
	var guessTraces int
	m.InputPath, guessTraces, m.InputWidth = p.fileLine("Guesses", "guess")
	if p.err == nil && guessTraces != m.NumTraces {
		p.fail(fmt.Errorf("%w: guess line reports %d traces, trace line %d", ErrSizeMismatch, guessTraces, m.NumTraces))
	}

	m.General = GeneralConfig{
		Threads:    p.num("General", "threads"),
		Order:      p.num("General", "order"),
		ReturnType: p.str("General", "return_type"),
		Algorithm:  p.str("General", "algorithm"),
		Position:   p.str("General", "position"),
		Round:      p.num("General", "round"),
		Bitnum:     p.str("General", "bitnum"),
		Bytenum:    p.str("General", "bytenum"),
		Memory:     p.str("General", "memory"),
		Top:        p.num("General", "top"),
	}
	if p.err != nil {
		return nil, p.err
	}
	if sec, err := f.GetSection("General"); err == nil {
		for _, key := range sec.Keys() {
			for _, line := range strings.Split(key.Comment, "\n") {
				line = strings.TrimLeft(strings.TrimSpace(line), "#; ")
				if v, ok := strings.CutPrefix(line, "correct_key="); ok {
					m.Key = v
				}
				if v, ok := strings.CutPrefix(line, "run_id="); ok {
					m.RunID = v
				}
			}
		}
	}
	return m, nil
}

// Keeps the first error so lookups can be chained.
type manifestParser struct {
	file *ini.File
	err  error
}

func (p *manifestParser) fail(err error) {
	if p.err == nil {
		p.err = err
	}
}

func (p *manifestParser) str(section, key string) string {
	if p.err != nil {
		return ""
	}
	sec, err := p.file.GetSection(section)
	if err != nil {
		p.err = fmt.Errorf("manifest: missing section [%s]", section)
		return ""
	}
	k, err := sec.GetKey(key)
	if err != nil {
		p.err = fmt.Errorf("manifest: missing key %s in [%s]", key, section)
		return ""
	}
	return k.String()
}

func (p *manifestParser) num(section, key string) int {
	s := p.str(section, key)
	if p.err != nil {
		return 0
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		p.err = fmt.Errorf("manifest: %s in [%s] is not a number: %q", key, section, s)
	}
	return v
}

// Parses "<path> <count> <width>".
func (p *manifestParser) fileLine(section, key string) (string, int, int) {
	s := p.str(section, key)
	if p.err != nil {
		return "", 0, 0
	}
	fields := strings.Fields(s)
	if len(fields) != 3 {
		p.err = fmt.Errorf("manifest: %s in [%s] must be <path> <count> <width>, got %q", key, section, s)
		return "", 0, 0
	}
	count, err1 := strconv.Atoi(fields[1])
	width, err2 := strconv.Atoi(fields[2])
	if err1 != nil || err2 != nil {
		p.err = fmt.Errorf("manifest: %s in [%s] has non numeric counts: %q", key, section, s)
		return "", 0, 0
	}
	return fields[0], count, width
}
