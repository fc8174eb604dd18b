package port

// Authentication outcome labels.
const (
	AuthMethodLocal    = "local"
	AuthMethodExternal = "external"

	AuthOutcomeSuccess     = "success"
	AuthOutcomeFailure     = "failure"
	AuthOutcomeLockedOut   = "locked_out"
	AuthOutcomeUnsupported = "unsupported"
	AuthOutcomeRejected    = "rejected"
)

// AuthObserver receives authentication outcomes for instrumentation.
type AuthObserver interface {
	ObserveAuthentication(method, outcome string)
	ObserveExternalProvisioned(provider string)
}

// NopAuthObserver discards observations.
type NopAuthObserver struct{}

func (NopAuthObserver) ObserveAuthentication(string, string) {}
func (NopAuthObserver) ObserveExternalProvisioned(string)    {}
