// Copyright 2025 Momentum Labs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package server

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/momentumhq/momentum-agent/pkg/agent"
)

// ndjsonEmitter writes one JSON object per line and flushes after every
// frame so clients see progress in real time.
type ndjsonEmitter struct {
	mu      sync.Mutex
	w       http.ResponseWriter
	flusher http.Flusher
	closed  bool
}

func newNDJSONEmitter(w http.ResponseWriter) *ndjsonEmitter {
	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Accel-Buffering", "no")
	flusher, _ := w.(http.Flusher)
	return &ndjsonEmitter{w: w, flusher: flusher}
}

func (e *ndjsonEmitter) Emit(frame agent.Frame) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return http.ErrHandlerTimeout
	}

	line, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	if _, err := e.w.Write(append(line, '\n')); err != nil {
		e.closed = true
		return err
	}
	if e.flusher != nil {
		e.flusher.Flush()
	}
	return nil
}

var _ agent.Emitter = (*ndjsonEmitter)(nil)
