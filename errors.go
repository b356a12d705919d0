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
	"errors"
	"fmt"
)

var (
	ErrMalformedFilename    = errors.New("malformed capture filename")
	ErrOutputDirUnavailable = errors.New("output directory unavailable")
	ErrOutputNotEmpty       = errors.New("output trace-set already exists")
	ErrOutputLocked         = errors.New("output trace-set is locked by another run")
	ErrFormatMismatch       = errors.New("sample format differs from previous captures")
	ErrSampleLengthMismatch = errors.New("sample length differs from previous captures")
	ErrMissingVariable      = errors.New("capture variable not found")
	ErrUnsupportedFormat    = errors.New("unsupported sample format")
	ErrNoCaptures           = errors.New("no captures processed")
	ErrInvalidConfig        = errors.New("invalid configuration")
	ErrSizeMismatch         = errors.New("trace-set size mismatch")
)

// Reports a capture filename that lacks one of the k=, m=, c= fields.
type FilenameError struct {
	Name   string
	Marker string
	Reason string
}

func (e *FilenameError) Error() string {
	return fmt.Sprintf("%v: %s: %s %s", ErrMalformedFilename, e.Name, e.Marker, e.Reason)
}

func (e *FilenameError) Unwrap() error {
	return ErrMalformedFilename
}
