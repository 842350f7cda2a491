package chat

import (
	"maps"
	"sync/atomic"
)

// Endpoint is an immutable backend target captured at call start.
type Endpoint struct {
	BaseURL  string `toml:"base_url"`
	APIKey   string `toml:"api_key"`
	AppToken string `toml:"app_token"`
}

// Merge returns endpoint with empty fields taken from fallback.
func (endpoint Endpoint) Merge(fallback Endpoint) Endpoint {
	if endpoint.BaseURL == "" {
		endpoint.BaseURL = fallback.BaseURL
	}
	if endpoint.APIKey == "" {
		endpoint.APIKey = fallback.APIKey
	}
	if endpoint.AppToken == "" {
		endpoint.AppToken = fallback.AppToken
	}
	return endpoint
}

// Agent is a named deployment with its own endpoint.
type Agent struct {
	ID          string   `toml:"id"`
	Name        string   `toml:"name"`
	Description string   `toml:"description"`
	Endpoint    Endpoint `toml:"endpoint"`
}

// EndpointResolver hands out endpoint snapshots. The default endpoint and the
// agent table are swapped atomically, so readers never observe a half-applied
// configuration.
type EndpointResolver struct {
	current atomic.Pointer[Endpoint]
	agents  atomic.Pointer[map[string]Endpoint]
}

// NewEndpointResolver creates a resolver with a default endpoint and optional agents.
func NewEndpointResolver(defaultEndpoint Endpoint, agents ...Agent) *EndpointResolver {
	resolver := &EndpointResolver{}
	resolver.Retarget(defaultEndpoint)
	resolver.SetAgents(agents)
	return resolver
}

// Retarget replaces the default endpoint for calls that start afterwards.
func (resolver *EndpointResolver) Retarget(endpoint Endpoint) {
	resolver.current.Store(&endpoint)
}

// SetAgents replaces the agent table.
func (resolver *EndpointResolver) SetAgents(agents []Agent) {
	table := make(map[string]Endpoint, len(agents))
	for _, agent := range agents {
		if agent.ID != "" {
			table[agent.ID] = agent.Endpoint
		}
	}
	resolver.agents.Store(&table)
}

// Agents returns a copy of the agent endpoint table.
func (resolver *EndpointResolver) Agents() map[string]Endpoint {
	return maps.Clone(*resolver.agents.Load())
}

// Resolve returns the endpoint snapshot for agentID. Unknown or empty agent
// ids resolve to the default endpoint; agent fields left empty inherit from it.
func (resolver *EndpointResolver) Resolve(agentID string) Endpoint {
	defaultEndpoint := *resolver.current.Load()
	if agentID == "" {
		return defaultEndpoint
	}
	agentEndpoint, ok := (*resolver.agents.Load())[agentID]
	if !ok {
		return defaultEndpoint
	}
	return agentEndpoint.Merge(defaultEndpoint)
}
