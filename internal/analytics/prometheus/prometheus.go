// Package promsink records quota modal events as Prometheus counters.
package promsink

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/uncleJim21/pullthatupjamie/internal/analytics"
)

// Sink implements analytics.Sink using Prometheus.
type Sink struct {
	shownTotal  *prometheus.CounterVec
	actionTotal *prometheus.CounterVec
}

var _ analytics.Sink = (*Sink)(nil)

// New registers the counters on reg.
func New(reg prometheus.Registerer, namespace string) *Sink {
	factory := promauto.With(reg)

	return &Sink{
		shownTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quota_modal_shown_total",
			Help:      "Total number of quota modal activations shown to the user.",
		}, []string{"tier", "entitlement"}),

		actionTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quota_modal_action_total",
			Help:      "Total number of choices made in the quota modal.",
		}, []string{"tier", "entitlement", "action"}),
	}
}

func (s *Sink) Track(e analytics.Event) {
	switch e.Name {
	case analytics.ModalShown:
		s.shownTotal.WithLabelValues(string(e.Tier), e.Entitlement).Inc()
	case analytics.ModalAction:
		s.actionTotal.WithLabelValues(string(e.Tier), e.Entitlement, string(e.Action)).Inc()
	}
}
