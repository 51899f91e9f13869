// Package metrics exposes Prometheus collectors for the funnel and messaging.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// FunnelMetrics counts inbound traffic, funnel transitions, leads and sends.
// A nil *FunnelMetrics is valid and records nothing.
type FunnelMetrics struct {
	inboundTotal     *prometheus.CounterVec
	transitionsTotal *prometheus.CounterVec
	leadsTotal       *prometheus.CounterVec
	outboundTotal    *prometheus.CounterVec
	webhookLatency   *prometheus.HistogramVec
}

func NewFunnelMetrics(reg prometheus.Registerer) *FunnelMetrics {
	m := &FunnelMetrics{
		inboundTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vicky",
			Subsystem: "messaging",
			Name:      "inbound_total",
			Help:      "Inbound WhatsApp messages by type and outcome",
		}, []string{"type", "status"}),
		transitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vicky",
			Subsystem: "funnel",
			Name:      "transitions_total",
			Help:      "Funnel state transitions",
		}, []string{"flow", "from", "to"}),
		leadsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vicky",
			Subsystem: "funnel",
			Name:      "leads_total",
			Help:      "Leads forwarded to the advisor",
		}, []string{"flow", "outcome"}),
		outboundTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vicky",
			Subsystem: "messaging",
			Name:      "outbound_total",
			Help:      "Outbound sends by recipient kind and status",
		}, []string{"recipient", "status"}),
		webhookLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "vicky",
			Subsystem: "messaging",
			Name:      "webhook_latency_seconds",
			Help:      "Latency of webhook processing",
			Buckets:   prometheus.DefBuckets,
		}, []string{"provider"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.inboundTotal, m.transitionsTotal, m.leadsTotal, m.outboundTotal, m.webhookLatency)
	return m
}

func (m *FunnelMetrics) ObserveInbound(msgType, status string) {
	if m == nil {
		return
	}
	m.inboundTotal.WithLabelValues(msgType, status).Inc()
}

// ObserveTransition records a turn that moved the sender between states.
// Turns that stay in the same state are not counted.
func (m *FunnelMetrics) ObserveTransition(flow, from, to string) {
	if m == nil || from == to {
		return
	}
	if flow == "" {
		flow = "none"
	}
	m.transitionsTotal.WithLabelValues(flow, from, to).Inc()
}

func (m *FunnelMetrics) ObserveLead(flow, outcome string) {
	if m == nil {
		return
	}
	if flow == "" {
		flow = "none"
	}
	m.leadsTotal.WithLabelValues(flow, outcome).Inc()
}

func (m *FunnelMetrics) ObserveOutbound(recipient string, err error) {
	if m == nil {
		return
	}
	status := "sent"
	if err != nil {
		status = "failed"
	}
	m.outboundTotal.WithLabelValues(recipient, status).Inc()
}

func (m *FunnelMetrics) ObserveWebhookLatency(provider string, seconds float64) {
	if m == nil {
		return
	}
	m.webhookLatency.WithLabelValues(provider).Observe(seconds)
}
