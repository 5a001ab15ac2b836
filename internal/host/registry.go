package host

import "fmt"

// Registry dispatches a share URL to whichever registered Client can
// handle it. Only one host is expected in practice, but the orchestrator
// depends on this indirection rather than a concrete Client.
type Registry struct {
	clients []Client
}

func NewRegistry(clients ...Client) *Registry {
	return &Registry{clients: clients}
}

// For returns the first registered client that claims shareURL.
func (r *Registry) For(shareURL string) (Client, error) {
	for _, c := range r.clients {
		if c.CanHandle(shareURL) {
			return c, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedURL, shareURL)
}
