package telemetry

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/arklim/identity-adapter/internal/core/port"
)

// AuthMetrics records authentication outcomes as Prometheus counters.
type AuthMetrics struct {
	Authentications *prometheus.CounterVec
	Provisioned     *prometheus.CounterVec
}

// NewAuthMetrics registers the authentication collectors with reg, reusing
// collectors that are already registered under the same name.
func NewAuthMetrics(reg prometheus.Registerer) (*AuthMetrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	authentications, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "iam",
		Name:      "authentications_total",
		Help:      "Authentication attempts partitioned by method and outcome.",
	}, []string{"method", "outcome"}))
	if err != nil {
		return nil, err
	}

	provisioned, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "iam",
		Name:      "external_accounts_provisioned_total",
		Help:      "Accounts created on first sign-in through an external provider.",
	}, []string{"provider"}))
	if err != nil {
		return nil, err
	}

	return &AuthMetrics{Authentications: authentications, Provisioned: provisioned}, nil
}

func registerCounterVec(reg prometheus.Registerer, c *prometheus.CounterVec) (*prometheus.CounterVec, error) {
	if err := reg.Register(c); err != nil {
		already, ok := err.(prometheus.AlreadyRegisteredError)
		if !ok {
			return nil, fmt.Errorf("register collector: %w", err)
		}
		existing, ok := already.ExistingCollector.(*prometheus.CounterVec)
		if !ok {
			return nil, fmt.Errorf("existing collector has unexpected type %T", already.ExistingCollector)
		}
		return existing, nil
	}
	return c, nil
}

// ObserveAuthentication counts one attempt.
func (m *AuthMetrics) ObserveAuthentication(method, outcome string) {
	if m == nil {
		return
	}
	m.Authentications.WithLabelValues(method, outcome).Inc()
}

// ObserveExternalProvisioned counts one newly provisioned federated account.
func (m *AuthMetrics) ObserveExternalProvisioned(provider string) {
	if m == nil {
		return
	}
	m.Provisioned.WithLabelValues(provider).Inc()
}

var _ port.AuthObserver = (*AuthMetrics)(nil)
