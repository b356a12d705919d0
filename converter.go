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

// Converts a directory of capture files into a Daredevil trace-set.
package trsconv

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"
	"github.com/golang/glog"
	"github.com/google/uuid"
)

// Summary of one conversion run.
type Stats struct {
	RunID     string
	Processed int
	// Input entries that were not decoded.
	Skipped       []string
	Format        ElementFormat
	BytesPerTrace int
	InputWidth    int
	LastKey       string
	// Set when the run stopped at Config.Limit.
	Limited bool
}

type Converter struct {
	cfg      Config
	decoders Decoders
}

// Uses DefaultDecoders when decoders is nil.
func NewConverter(cfg Config, decoders Decoders) (*Converter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if decoders == nil {
		decoders = DefaultDecoders(cfg.Variable)
	}
	return &Converter{cfg: cfg, decoders: decoders}, nil
}

// Converts every capture in the input directory, in file name order, then
// writes the manifest. Captures appended before an error stay on disk.
func (c *Converter) Run(ctx context.Context) (*Stats, error) {
	entries, err := os.ReadDir(c.cfg.InputDir)
	if err != nil {
		return nil, fmt.Errorf("reading input directory: %w", err)
	}
	if err = os.MkdirAll(c.cfg.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOutputDirUnavailable, err)
	}

	lock := flock.New(c.cfg.LockPath())
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOutputDirUnavailable, err)
	}
	if !locked {
		return nil, fmt.Errorf("%w: %s", ErrOutputLocked, c.cfg.LockPath())
	}
	defer lock.Unlock()

	if err = c.prepareOutputs(); err != nil {
		return nil, err
	}
	w, err := openSink(c.cfg.TracesPath(), c.cfg.InputPath(), c.cfg.Sync)
	if err != nil {
		return nil, err
	}
	defer w.Close()

	stats := &Stats{RunID: uuid.NewString()}
	glog.Infof("Run %s: converting %s into %s", stats.RunID, c.cfg.InputDir, c.cfg.OutputDir)

	accepted := strings.Join(c.decoders.Extensions(), " ")
scan:
	for _, entry := range entries {
		if err = ctx.Err(); err != nil {
			return stats, err
		}
		if c.limitReached(stats) {
			break
		}
		name := entry.Name()
		decoder, ok := c.decoders.Lookup(name)
		if entry.IsDir() || !ok {
			// One line per skipped entry, mirrored by Stats.Skipped.
			glog.Warningf("  skipping %s (accepted: %s)", name, accepted)
			stats.Skipped = append(stats.Skipped, name)
			continue
		}

		path := filepath.Join(c.cfg.InputDir, name)
		records, err := decoder.Decode(path)
		if err != nil {
			return stats, fmt.Errorf("decoding %s: %w", path, err)
		}
		// A gocw capture file holds many traces.
		for _, rec := range records {
			if c.limitReached(stats) {
				break scan
			}
			if err = c.append(w, name, rec, stats); err != nil {
				return stats, err
			}
			if c.cfg.ProgressEvery > 0 && stats.Processed%c.cfg.ProgressEvery == 0 {
				glog.Infof(" %d traces processed", stats.Processed)
			}
		}
	}

	if stats.Processed == 0 {
		return stats, fmt.Errorf("%w in %s", ErrNoCaptures, c.cfg.InputDir)
	}
	if err = w.Close(); err != nil {
		return stats, err
	}
	if err = c.Manifest(stats).Save(c.cfg.ManifestPath()); err != nil {
		return stats, err
	}
	glog.Infof("Run %s: %d traces of %d bytes (%s), %d entries skipped",
		stats.RunID, stats.Processed, stats.BytesPerTrace, stats.Format, len(stats.Skipped))
	return stats, nil
}

func (c *Converter) limitReached(stats *Stats) bool {
	if c.cfg.Limit <= 0 || stats.Processed < c.cfg.Limit {
		return false
	}
	stats.Limited = true
	glog.Infof("Stopping after %d traces (limit)", c.cfg.Limit)
	return true
}

// Builds the manifest describing the outcome of a run.
func (c *Converter) Manifest(stats *Stats) *Manifest {
	return &Manifest{
		Format:     stats.Format,
		NumTraces:  stats.Processed,
		NSamples:   stats.BytesPerTrace,
		TracesPath: c.cfg.TracesPath(),
		InputPath:  c.cfg.InputPath(),
		InputWidth: stats.InputWidth,
		Key:        stats.LastKey,
		RunID:      stats.RunID,
		General:    c.cfg.General,
	}
}

// Refuses to add to an existing trace-set, or empties it when overwriting.
func (c *Converter) prepareOutputs() error {
	for _, path := range []string{c.cfg.TracesPath(), c.cfg.InputPath(), c.cfg.ManifestPath()} {
		fi, err := os.Stat(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return fmt.Errorf("%w: %v", ErrOutputDirUnavailable, err)
		}
		if fi.Size() == 0 {
			continue
		}
		if !c.cfg.Overwrite {
			return fmt.Errorf("%w: %s", ErrOutputNotEmpty, path)
		}
		glog.Warningf("Overwriting %s", path)
		if err = os.Truncate(path, 0); err != nil {
			return fmt.Errorf("%w: %v", ErrOutputDirUnavailable, err)
		}
	}
	return nil
}

func (c *Converter) append(w *sink, name string, rec Record, stats *Stats) error {
	meta := rec.Metadata
	if meta == nil {
		m, err := ParseFilename(name)
		if err != nil {
			return err
		}
		meta = &m
	}
	pt, err := meta.PlaintextBytes()
	if err != nil {
		return &FilenameError{Name: name, Marker: PlaintextMarker, Reason: err.Error()}
	}
	if err = rec.Format.Validate(); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	if len(rec.Samples) == 0 {
		return fmt.Errorf("%w: %s holds no samples", ErrSampleLengthMismatch, name)
	}

	if stats.Format.IsZero() {
		stats.Format = rec.Format
		stats.BytesPerTrace = len(rec.Samples)
		stats.InputWidth = len(pt)
	} else {
		if rec.Format != stats.Format {
			return fmt.Errorf("%w: %s is %s, previous captures are %s",
				ErrFormatMismatch, name, rec.Format, stats.Format)
		}
		if len(rec.Samples) != stats.BytesPerTrace {
			return fmt.Errorf("%w: %s has %d bytes, previous captures have %d",
				ErrSampleLengthMismatch, name, len(rec.Samples), stats.BytesPerTrace)
		}
		if len(pt) != stats.InputWidth {
			return fmt.Errorf("%w: %s has a %d byte plaintext, previous captures have %d",
				ErrSampleLengthMismatch, name, len(pt), stats.InputWidth)
		}
	}

	if err = w.Append(rec.Samples, pt); err != nil {
		return fmt.Errorf("writing %s: %w", name, err)
	}
	stats.Processed++
	stats.LastKey = meta.Key
	glog.V(1).Infof("Processed %s: pt=%s, %d bytes", name, meta.Plaintext, len(rec.Samples))
	return nil
}
