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

	"github.com/google/trsconv/util"
	"github.com/google/trsconv/viewer"

	"github.com/golang/glog"
	"github.com/spf13/cobra"
)

func newServeCommand() *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "serve <dir>",
		Short: "Browse the trace-sets of a directory over HTTP",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := args[0]
			broker := util.NewBroker()
			go broker.Start()
			defer broker.Stop()

			go func() {
				if err := util.WatchDir(cmd.Context(), dir, viewer.IsManifest, broker); err != nil {
					glog.Errorf("Watching %s failed: %v", dir, err)
				}
			}()

			glog.Infof("Serving %s on port %d", dir, port)
			return viewer.New(dir, broker).Start(fmt.Sprintf(":%d", port))
		},
	}
	cmd.Flags().IntVar(&port, "port", 8080, "Server HTTP port number")
	return cmd
}
