package metrics

// Default is the process-wide registry.
var Default = NewRegistry("copilot")

// Host holds the metrics recorded by the input method host.
type Host struct {
	KeysTotal       *Counter
	AcceptedTotal   *Counter
	CommitsTotal    *Counter
	FilterDuration  *Histogram
	SessionsStarted *Counter
}

// NewHost registers the host metrics in r. Metrics already registered under
// the same name are shared.
func NewHost(r *Registry) *Host {
	if r == nil {
		r = Default
	}
	return &Host{
		KeysTotal: r.Counter("keys_total",
			"Key press events offered to the host", nil),
		AcceptedTotal: r.Counter("keys_accepted_total",
			"Key press events consumed by a processor", nil),
		CommitsTotal: r.Counter("commits_total",
			"Text commits sent to the client", nil),
		FilterDuration: r.Histogram("filter_duration_seconds",
			"Time to translate, filter and page candidates", nil, LatencyBuckets),
		SessionsStarted: r.Counter("sessions_started_total",
			"Editing sessions started", nil),
	}
}
