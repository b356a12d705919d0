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

// Converts power trace captures into Daredevil trace-sets, and inspects,
// plots and serves the result.
//
//	$ trsconv convert --input captures/ --output processed/ --algorithm DES --position LUT/DES_BEFORE_SBOX -logtostderr
//	$ trsconv inspect processed/trace-set.trs.config
//	$ trsconv plot processed/trace-set.trs.config --traces 0,1 --out traces.png
//	$ trsconv serve processed/ --port 8080
package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/golang/glog"
)

func main() {
	defer glog.Flush()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		glog.Exit(err)
	}
}
