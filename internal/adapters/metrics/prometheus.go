package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mnemos_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mnemos_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	MessagesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mnemos_messages_total",
		Help: "Total messages processed",
	})

	AgentTurnsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mnemos_agent_turns_total",
		Help: "Total agent loop turns by outcome",
	}, []string{"outcome"})

	ToolExecutionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mnemos_tool_executions_total",
		Help: "Total memory tool executions",
	}, []string{"tool", "status"})

	ToolExecutionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mnemos_tool_execution_duration_seconds",
		Help:    "Memory tool execution duration",
		Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10},
	}, []string{"tool"})

	MemoryOperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mnemos_memory_operations_total",
		Help: "Total memory store operations",
	}, []string{"operation", "scope", "status"})

	LLMRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mnemos_llm_requests_total",
		Help: "Total LLM requests",
	}, []string{"model", "status"})

	LLMRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mnemos_llm_request_duration_seconds",
		Help:    "LLM request duration",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
	}, []string{"model"})
)
