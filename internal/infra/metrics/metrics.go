package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	quotesGenerated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quotes_generated_total",
			Help: "Total number of instant quotes returned, by source",
		},
		[]string{"source"},
	)

	crmCommits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crm_commits_total",
			Help: "Total number of CRM lead commits, by outcome",
		},
		[]string{"status"},
	)

	outboxPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outbox_events_published_total",
			Help: "Total number of outbox events published to the broker",
		},
		[]string{"type"},
	)

	outboxConsumed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outbox_events_consumed_total",
			Help: "Total number of outbox events consumed, by result",
		},
		[]string{"type", "result"},
	)

	integrationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "integration_errors_total",
			Help: "Total number of integration errors",
		},
		[]string{"service"},
	)
)

func RecordQuote(source string) {
	quotesGenerated.WithLabelValues(source).Inc()
}

func RecordCommit(ok bool) {
	status := "committed"
	if !ok {
		status = "failed"
	}
	crmCommits.WithLabelValues(status).Inc()
}

func RecordPublished(eventType string) {
	outboxPublished.WithLabelValues(eventType).Inc()
}

func RecordConsumed(eventType, result string) {
	outboxConsumed.WithLabelValues(eventType, result).Inc()
}

func RecordIntegrationError(service string) {
	integrationErrors.WithLabelValues(service).Inc()
}
