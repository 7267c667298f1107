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

package tools

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/momentumhq/momentum-agent/pkg/llms"
	"github.com/momentumhq/momentum-agent/pkg/observability"
	"github.com/momentumhq/momentum-agent/pkg/protocol"
	"github.com/momentumhq/momentum-agent/pkg/registry"
	"github.com/momentumhq/momentum-agent/pkg/tenant"
)

// Registry is the named tool catalogue. Dispatch validates arguments
// against the tool's schema and answers invalid calls with an error
// result instead of raising, so the model can recover.
type Registry struct {
	*registry.BaseRegistry[Tool]
}

func NewRegistry() *Registry {
	return &Registry{BaseRegistry: registry.NewBaseRegistry[Tool]()}
}

// Add registers a tool under its own name.
func (r *Registry) Add(tool Tool) error {
	return r.Register(tool.Name(), tool)
}

// Definitions compiles every registered tool's schema, sorted by name.
func (r *Registry) Definitions() []llms.ToolDefinition {
	names := r.Names()
	defs := make([]llms.ToolDefinition, 0, len(names))
	for _, name := range names {
		if tool, ok := r.Get(name); ok {
			defs = append(defs, Definition(tool))
		}
	}
	return defs
}

// Dispatch executes a tool call under the given tenant context. The
// returned result is always normalised for media duality; failures are
// expressed in the result envelope, never as a panic.
func (r *Registry) Dispatch(ctx context.Context, tc tenant.Context, call *protocol.ToolCall) ToolResult {
	startTime := time.Now()

	tracer := observability.GetTracer(observability.DefaultServiceName)
	ctx, span := tracer.Start(ctx, observability.SpanToolExecution,
		trace.WithAttributes(
			attribute.String(observability.AttrToolName, call.Name),
			attribute.String(observability.AttrBrandID, tc.BrandID),
		),
	)
	defer span.End()

	result := r.dispatch(ctx, tc, call)
	result.NormalizeMedia()

	duration := time.Since(startTime)
	var recordErr error
	if result.IsError() {
		recordErr = fmt.Errorf("%s", result.Message)
		span.RecordError(recordErr)
		span.SetStatus(codes.Error, result.Message)
	} else {
		span.SetStatus(codes.Ok, "success")
	}
	observability.RecordToolExecution(call.Name, duration, recordErr)

	span.SetAttributes(
		attribute.Bool("tool.success", !result.IsError()),
		attribute.Int64("tool.duration_ms", duration.Milliseconds()),
	)
	return result
}

func (r *Registry) dispatch(ctx context.Context, tc tenant.Context, call *protocol.ToolCall) ToolResult {
	tool, ok := r.Get(call.Name)
	if !ok {
		return Errorf("unknown tool %q", call.Name)
	}

	if missing := missingArgs(tool, call.Arguments); len(missing) > 0 {
		return Errorf("tool %q is missing required arguments: %v", call.Name, missing)
	}

	result, err := tool.Execute(ctx, tc, call.Arguments)
	if err != nil {
		return Errorf("tool %q failed: %v", call.Name, err)
	}
	if result.Status == "" {
		result.Status = StatusSuccess
	}
	return result
}

func missingArgs(tool Tool, args map[string]any) []string {
	var missing []string
	for _, param := range tool.Parameters() {
		if !param.Required {
			continue
		}
		value, present := args[param.Name]
		if !present || value == nil {
			missing = append(missing, param.Name)
			continue
		}
		if s, ok := value.(string); ok && s == "" {
			missing = append(missing, param.Name)
		}
	}
	return missing
}
