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

package util

import (
	"context"

	"github.com/fsnotify/fsnotify"
	"github.com/golang/glog"
)

// Publishes writes, creations, removals and renames of files in dir whose
// name satisfies match. Blocks until ctx is done or the watcher fails.
func WatchDir(ctx context.Context, dir string, match func(name string) bool, broker *Broker) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err = watcher.Add(dir); err != nil {
		return err
	}

	const relevant = fsnotify.Write | fsnotify.Create | fsnotify.Remove | fsnotify.Rename
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				glog.Warning("watcher.Events closed")
				return nil
			}
			glog.V(1).Infof("Watcher event: %v", event)
			if event.Op&relevant != 0 && match(event.Name) {
				broker.Publish(Event{Path: event.Name, Op: event.Op.String()})
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				glog.Warning("watcher.Errors closed")
				return nil
			}
			glog.Warningf("Watcher error: %v", err)
		}
	}
}
