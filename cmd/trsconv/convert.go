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
	"github.com/spf13/pflag"
)

// Command line overrides for the configuration file. Only flags set on the
// command line are applied.
type convertFlags struct {
	cfg trsconv.Config
}

func (f *convertFlags) register(fs *pflag.FlagSet) {
	def := trsconv.DefaultConfig()
	fs.StringVarP(&f.cfg.InputDir, "input", "i", "", "Directory of capture files")
	fs.StringVarP(&f.cfg.OutputDir, "output", "o", "", "Directory receiving the trace-set")
	fs.StringVar(&f.cfg.BaseName, "base", def.BaseName, "Base name of the trace-set files")
	fs.StringVar(&f.cfg.Variable, "variable", def.Variable, "Sample array variable in .mat captures")
	fs.IntVar(&f.cfg.ProgressEvery, "progress-every", def.ProgressEvery, "Log progress every N traces (0 disables)")
	fs.IntVar(&f.cfg.Limit, "limit", def.Limit, "Stop after N traces (0 converts everything)")
	fs.BoolVar(&f.cfg.Overwrite, "overwrite", def.Overwrite, "Replace an existing trace-set")
	fs.BoolVar(&f.cfg.Sync, "sync", def.Sync, "fsync the trace-set after every capture")
	fs.IntVar(&f.cfg.General.Threads, "threads", def.General.Threads, "Daredevil threads")
	fs.IntVar(&f.cfg.General.Order, "order", def.General.Order, "Daredevil attack order")
	fs.StringVar(&f.cfg.General.ReturnType, "return-type", def.General.ReturnType, "Daredevil return type")
	fs.StringVar(&f.cfg.General.Algorithm, "algorithm", "", "Target algorithm (AES, DES, ...)")
	fs.StringVar(&f.cfg.General.Position, "position", "", "Target intermediate value (e.g. LUT/DES_BEFORE_SBOX)")
	fs.IntVar(&f.cfg.General.Round, "round", def.General.Round, "Target round")
	fs.StringVar(&f.cfg.General.Bitnum, "bitnum", def.General.Bitnum, "Target bit selection")
	fs.StringVar(&f.cfg.General.Bytenum, "bytenum", def.General.Bytenum, "Target byte selection")
	fs.StringVar(&f.cfg.General.Memory, "memory", def.General.Memory, "Daredevil memory budget")
	fs.IntVar(&f.cfg.General.Top, "top", def.General.Top, "Number of best key candidates reported")
}

func (f *convertFlags) apply(fs *pflag.FlagSet, cfg *trsconv.Config) {
	set := map[string]func(){
		"input":          func() { cfg.InputDir = f.cfg.InputDir },
		"output":         func() { cfg.OutputDir = f.cfg.OutputDir },
		"base":           func() { cfg.BaseName = f.cfg.BaseName },
		"variable":       func() { cfg.Variable = f.cfg.Variable },
		"progress-every": func() { cfg.ProgressEvery = f.cfg.ProgressEvery },
		"limit":          func() { cfg.Limit = f.cfg.Limit },
		"overwrite":      func() { cfg.Overwrite = f.cfg.Overwrite },
		"sync":           func() { cfg.Sync = f.cfg.Sync },
		"threads":        func() { cfg.General.Threads = f.cfg.General.Threads },
		"order":          func() { cfg.General.Order = f.cfg.General.Order },
		"return-type":    func() { cfg.General.ReturnType = f.cfg.General.ReturnType },
		"algorithm":      func() { cfg.General.Algorithm = f.cfg.General.Algorithm },
		"position":       func() { cfg.General.Position = f.cfg.General.Position },
		"round":          func() { cfg.General.Round = f.cfg.General.Round },
		"bitnum":         func() { cfg.General.Bitnum = f.cfg.General.Bitnum },
		"bytenum":        func() { cfg.General.Bytenum = f.cfg.General.Bytenum },
		"memory":         func() { cfg.General.Memory = f.cfg.General.Memory },
		"top":            func() { cfg.General.Top = f.cfg.General.Top },
	}
	fs.Visit(func(flag *pflag.Flag) {
		if fn, ok := set[flag.Name]; ok {
			fn()
		}
	})
}

func newConvertCommand(configFlag *string) *cobra.Command {
	flags := &convertFlags{}
	cmd := &cobra.Command{
		Use:   "convert",
		Short: "Convert a directory of captures into a trace-set",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := trsconv.LoadConfig(*configFlag)
			if err != nil {
				return err
			}
			flags.apply(cmd.Flags(), &cfg)

			conv, err := trsconv.NewConverter(cfg, nil)
			if err != nil {
				return err
			}
			stats, err := conv.Run(cmd.Context())
			if err != nil {
				return err
			}
			if stats.Limited {
				glog.Warningf("Stopped at the limit of %d traces", cfg.Limit)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d traces written to %s (%d skipped)\n",
				stats.Processed, cfg.ManifestPath(), len(stats.Skipped))
			return nil
		},
	}
	flags.register(cmd.Flags())
	return cmd
}
