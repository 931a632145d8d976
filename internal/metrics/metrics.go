package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DecisionsTotal counts committed decisions by outcome (clean|fraud).
	DecisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pixguard_decisions_total",
		Help: "Committed transaction decisions by outcome.",
	}, []string{"outcome"})

	// PublishFailuresTotal counts queue publishes that failed after commit.
	PublishFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pixguard_publish_failures_total",
		Help: "Decision events that could not be published to the queue.",
	})

	// ConsumerMessagesTotal counts consumed queue messages by result
	// (fraud|clean|malformed).
	ConsumerMessagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pixguard_consumer_messages_total",
		Help: "Decision messages processed by the background consumer.",
	}, []string{"result"})
)
