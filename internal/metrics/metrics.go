// Package metrics holds the Prometheus collectors of the API server.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SignupsTotal counts created accounts.
	SignupsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lingua_signups_total",
		Help: "Total number of accounts created",
	})

	// LoginsTotal counts login attempts by result (success, invalid, throttled).
	LoginsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lingua_logins_total",
		Help: "Total number of login attempts by result",
	}, []string{"result"})

	// FriendRequestTransitions counts committed friend-request transitions.
	FriendRequestTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lingua_friend_request_transitions_total",
		Help: "Total number of friend-request transitions by kind",
	}, []string{"transition"})

	// ChatProviderCalls counts calls to the chat provider by operation and result.
	ChatProviderCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lingua_chat_provider_calls_total",
		Help: "Total number of chat provider calls by operation and result",
	}, []string{"operation", "result"})

	// HTTPRequestDuration records request latency by method, route and status.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "lingua_http_request_duration_seconds",
		Help:    "HTTP request latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
)

// Result labels.
const (
	ResultSuccess   = "success"
	ResultError     = "error"
	ResultInvalid   = "invalid"
	ResultThrottled = "throttled"
)
