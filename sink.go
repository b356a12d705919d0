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
	"fmt"
	"os"
)

// The two append-only blobs of a trace-set. Writes go straight to the
// files, so every appended capture has reached the OS once Append returns.
type sink struct {
	traces *os.File
	inputs *os.File
	sync   bool
}

func openSink(tracesPath, inputPath string, sync bool) (*sink, error) {
	const flags = os.O_WRONLY | os.O_CREATE | os.O_APPEND
	traces, err := os.OpenFile(tracesPath, flags, 0644)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOutputDirUnavailable, err)
	}
	inputs, err := os.OpenFile(inputPath, flags, 0644)
	if err != nil {
		traces.Close()
		return nil, fmt.Errorf("%w: %v", ErrOutputDirUnavailable, err)
	}
	return &sink{traces: traces, inputs: inputs, sync: sync}, nil
}

func (s *sink) Append(samples, plaintext []byte) error {
	if _, err := s.traces.Write(samples); err != nil {
		return err
	}
	if _, err := s.inputs.Write(plaintext); err != nil {
		return err
	}
	if !s.sync {
		return nil
	}
	if err := s.traces.Sync(); err != nil {
		return err
	}
	return s.inputs.Sync()
}

// Safe to call more than once.
func (s *sink) Close() error {
	var err error
	for _, f := range []**os.File{&s.traces, &s.inputs} {
		if *f == nil {
			continue
		}
		if cerr := (*f).Close(); cerr != nil && err == nil {
			err = cerr
		}
		*f = nil
	}
	return err
}
