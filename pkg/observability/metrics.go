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

package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "momentum_http_requests_total",
		Help: "HTTP requests by route, method and status class.",
	}, []string{"route", "method", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "momentum_http_request_duration_seconds",
		Help:    "HTTP request latency by route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})

	HTTPRequestsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "momentum_http_requests_in_flight",
		Help: "Currently streaming or in-progress HTTP requests.",
	})

	ToolExecutionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "momentum_tool_executions_total",
		Help: "Tool dispatches by tool name and outcome.",
	}, []string{"tool", "outcome"})

	ToolExecutionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "momentum_tool_execution_duration_seconds",
		Help:    "Tool execution latency by tool name.",
		Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
	}, []string{"tool"})

	LLMTokensTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "momentum_llm_tokens_total",
		Help: "Tokens reported by the LLM provider per model.",
	}, []string{"model"})
)

// RecordToolExecution records one tool dispatch.
func RecordToolExecution(tool string, d time.Duration, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	ToolExecutionsTotal.WithLabelValues(tool, outcome).Inc()
	ToolExecutionDuration.WithLabelValues(tool).Observe(d.Seconds())
}
