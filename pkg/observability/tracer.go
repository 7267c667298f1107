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

// Package observability provides tracing span helpers and Prometheus
// metrics for the HTTP layer and tool dispatch.
package observability

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const (
	AttrToolName   = "tool.name"
	AttrBrandID    = "tenant.brand_id"
	AttrLLMModel   = "llm.model"
	AttrStatusCode = "http.status_code"

	SpanAgentTurn     = "agent.turn"
	SpanLLMRequest    = "agent.llm_request"
	SpanToolExecution = "agent.tool_execution"
	SpanMemoryLookup  = "agent.memory_lookup"
	SpanIndexOp       = "search.index_op"

	DefaultServiceName = "momentum-agent"
)

// GetTracer returns a tracer from the global provider. Without an SDK
// installed this is a no-op tracer, which keeps spans free in tests.
func GetTracer(name string) trace.Tracer {
	return otel.Tracer(name)
}
