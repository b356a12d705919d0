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

// A change to a file in a watched directory.
type Event struct {
	Path string
	Op   string
}

// Broadcasts events from a single publisher to multiple subscribers.
// Slow subscribers miss events rather than block the broker.
type Broker struct {
	stopCh    chan struct{}
	publishCh chan Event
	subCh     chan chan Event
	unsubCh   chan chan Event
}

func NewBroker() *Broker {
	return &Broker{
		stopCh:    make(chan struct{}),
		publishCh: make(chan Event, 1),
		subCh:     make(chan chan Event),
		unsubCh:   make(chan chan Event),
	}
}

// Runs the broker until Stop is called.
func (b *Broker) Start() {
	subs := map[chan Event]struct{}{}
	for {
		select {
		case <-b.stopCh:
			return
		case ch := <-b.subCh:
			subs[ch] = struct{}{}
		case ch := <-b.unsubCh:
			delete(subs, ch)
		case ev := <-b.publishCh:
			for ch := range subs {
				select {
				case ch <- ev:
				default:
				}
			}
		}
	}
}

func (b *Broker) Stop() {
	close(b.stopCh)
}

// The subscription is active once Subscribe returns.
func (b *Broker) Subscribe() chan Event {
	ch := make(chan Event, 5)
	select {
	case b.subCh <- ch:
	case <-b.stopCh:
	}
	return ch
}

func (b *Broker) Unsubscribe(ch chan Event) {
	select {
	case b.unsubCh <- ch:
	case <-b.stopCh:
	}
}

func (b *Broker) Publish(ev Event) {
	select {
	case b.publishCh <- ev:
	case <-b.stopCh:
	}
}
