package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	signIns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "portal",
		Name:      "sign_in_total",
		Help:      "Sign-in attempts by outcome.",
	}, []string{"outcome"})

	refreshes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "portal",
		Name:      "session_refresh_total",
		Help:      "Access token refresh attempts by outcome.",
	}, []string{"outcome"})
)

func SignIn(outcome string) {
	signIns.WithLabelValues(outcome).Inc()
}

func SessionRefresh(outcome string) {
	refreshes.WithLabelValues(outcome).Inc()
}
