package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	leadsPulled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crm_leads_pulled_total",
			Help: "Total number of lead pull attempts by result",
		},
		[]string{"result"},
	)

	smsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crm_sms_sent_total",
			Help: "Total number of SMS sends by status",
		},
		[]string{"status"},
	)

	approvalDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crm_approvals_total",
			Help: "Total number of approval decisions",
		},
		[]string{"decision"},
	)

	integrationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crm_integration_errors_total",
			Help: "Total number of errors from external services",
		},
		[]string{"service"},
	)
)

func recordPull(result string) {
	leadsPulled.WithLabelValues(result).Inc()
}

func recordSMS(status string) {
	smsSent.WithLabelValues(status).Inc()
}

func recordApproval(decision string) {
	approvalDecisions.WithLabelValues(decision).Inc()
}

func recordIntegrationError(service string) {
	integrationErrors.WithLabelValues(service).Inc()
}
