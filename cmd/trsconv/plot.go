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
	"fmt"

	"github.com/google/trsconv"

	"github.com/golang/glog"
	"github.com/spf13/cobra"
)

func newPlotCommand() *cobra.Command {
	var traces []int
	var output string
	cmd := &cobra.Command{
		Use:   "plot <manifest>",
		Short: "Render traces of a trace-set to an image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ts, err := trsconv.OpenTraceSet(args[0])
			if err != nil {
				return err
			}
			defer ts.Close()
			if err = ts.Verify(); err != nil {
				glog.Warningf("Plotting a damaged trace-set: %v", err)
			}
			if err = trsconv.PlotTraces(ts, traces, output); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", output)
			return nil
		},
	}
	cmd.Flags().IntSliceVar(&traces, "traces", []int{0}, "Indices of the traces to plot")
	cmd.Flags().StringVarP(&output, "out", "o", "traces.png", "Output image (.png, .svg, .pdf)")
	return cmd
}
