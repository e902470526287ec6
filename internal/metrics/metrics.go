// Package metrics exposes the Prometheus instruments for the chat service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chat_connections_active",
		Help: "The current number of active WebSocket connections.",
	})
	TotalConnections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chat_connections_total",
		Help: "The total number of WebSocket connections accepted.",
	})
	FramesReceived = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chat_frames_received_total",
		Help: "The total number of frames received from clients.",
	})
	FramesSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chat_frames_sent_total",
		Help: "The total number of frames written to clients.",
	})
	DeliveryFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chat_delivery_failures_total",
		Help: "The total number of live-delivery attempts that failed and triggered cleanup.",
	})
	AuthFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_auth_failures_total",
		Help: "The total number of rejected connection attempts.",
	}, []string{"reason"})
)
