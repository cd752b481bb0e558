package throttlego

import "fmt"

// MemoryStore holds one in-process limiter per policy: a default policy plus
// optional per-endpoint overrides keyed like "POST /login".
type MemoryStore struct {
	defaultLimiter MessageLimiter[string]
	endpoints      map[string]MessageLimiter[string]
}

// NewMemoryStore builds every limiter up front, so a bad policy fails here
// instead of on the first request.
func NewMemoryStore(config Config, endpointPolicies map[string]Config, opts ...Option) (*MemoryStore, error) {
	defaultLimiter, err := New(config, opts...)
	if err != nil {
		return nil, fmt.Errorf("default policy: %w", err)
	}
	endpoints := make(map[string]MessageLimiter[string], len(endpointPolicies))
	for endpoint, policy := range endpointPolicies {
		limiter, err := New(policy, opts...)
		if err != nil {
			return nil, fmt.Errorf("policy for %q: %w", endpoint, err)
		}
		endpoints[endpoint] = limiter
	}
	return &MemoryStore{defaultLimiter: defaultLimiter, endpoints: endpoints}, nil
}

// Limiter returns the limiter for endpoint and whether it is an override.
func (m *MemoryStore) Limiter(endpoint string) (MessageLimiter[string], bool) {
	if limiter, ok := m.endpoints[endpoint]; ok {
		return limiter, true
	}
	return m.defaultLimiter, false
}
