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

package main

import (
	"encoding/hex"
	"fmt"
	"strconv"

	"github.com/google/trsconv"

	"github.com/spf13/cobra"
)

func newInspectCommand() *cobra.Command {
	var showInputs int
	cmd := &cobra.Command{
		Use:   "inspect <manifest>...",
		Short: "Describe trace-sets and check their sizes against the manifest",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var failed int
			for _, path := range args {
				ok, err := inspect(cmd, path, showInputs)
				if err != nil {
					return err
				}
				if !ok {
					failed++
				}
			}
			if failed > 0 {
				return fmt.Errorf("%w: %d of %d trace-sets", trsconv.ErrSizeMismatch, failed, len(args))
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&showInputs, "inputs", 0, "Also list the first N plaintexts")
	return cmd
}

func inspect(cmd *cobra.Command, path string, showInputs int) (bool, error) {
	ts, err := trsconv.OpenTraceSet(path)
	if err != nil {
		return false, err
	}
	defer ts.Close()

	out := cmd.OutOrStdout()
	m := ts.Manifest
	fields := [][]string{
		{"manifest", path},
		{"trace_type", m.Format.String()},
		{"traces", strconv.Itoa(m.NumTraces)},
		{"bytes per trace", strconv.Itoa(m.NSamples)},
		{"samples per trace", strconv.Itoa(m.SamplesPerTrace())},
		{"plaintext bytes", strconv.Itoa(m.InputWidth)},
		{"algorithm", m.General.Algorithm},
		{"position", m.General.Position},
		{"correct key", m.Key},
		{"run", m.RunID},
	}
	fmt.Fprintln(out, renderTable(out, []string{"Field", "Value"}, fields, nil))

	blobs, err := ts.Blobs()
	if err != nil {
		return false, err
	}
	ok := true
	rows := make([][]string, 0, len(blobs))
	for _, b := range blobs {
		status := "ok"
		if !b.OK() {
			status, ok = "SIZE MISMATCH", false
		}
		rows = append(rows, []string{b.Path, strconv.FormatInt(b.Size, 10), strconv.FormatInt(b.Expected, 10), status})
	}
	fmt.Fprintln(out, renderTable(out, []string{"File", "Bytes", "Expected", "Status"}, rows,
		[]columnAlignment{alignLeft, alignRight, alignRight, alignLeft}))

	if showInputs > 0 && ok {
		n := min(showInputs, ts.Len())
		rows = rows[:0]
		for i := 0; i < n; i++ {
			pt, err := ts.Input(i)
			if err != nil {
				return false, err
			}
			rows = append(rows, []string{strconv.Itoa(i), hex.EncodeToString(pt)})
		}
		fmt.Fprintln(out, renderTable(out, []string{"Trace", "Plaintext"}, rows,
			[]columnAlignment{alignRight, alignLeft}))
	}
	return ok, nil
}
