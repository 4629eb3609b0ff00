// Package delivery wraps the third-party delivery-optimization service. The
// service is an external collaborator: this gateway only gates on capability
// and answers status queries, it does not reimplement any of the service's
// scoring.
package delivery

// Status describes the gateway's current capability state.
type Status struct {
	Enabled  bool   `json:"enabled"`
	Endpoint string `json:"endpoint,omitempty"`
}

// Gateway is a capability-gated handle on the delivery-optimization service.
type Gateway struct {
	enabled  bool
	endpoint string
}

// NewGateway builds a gateway. An empty endpoint forces the disabled state.
func NewGateway(enabled bool, endpoint string) *Gateway {
	if endpoint == "" {
		enabled = false
	}
	return &Gateway{enabled: enabled, endpoint: endpoint}
}

// Enabled reports whether the delivery service is configured for use.
func (g *Gateway) Enabled() bool {
	return g.enabled
}

// Status returns the gateway's capability state.
func (g *Gateway) Status() Status {
	return Status{Enabled: g.enabled, Endpoint: g.endpoint}
}
