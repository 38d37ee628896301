package marathon

import (
	"log/slog"
	"sync"
)

// Pool caches one Client per Marathon URL. Deployments in a manifest may
// target different schedulers; all of them share credentials and timeouts.
type Pool struct {
	clients map[string]*Client // base URL -> client
	config  Config
	logger  *slog.Logger
	mu      sync.RWMutex
}

// NewPool creates a pool. config.BaseURL is ignored; each client gets the
// URL it is requested for.
func NewPool(config Config, logger *slog.Logger) *Pool {
	return &Pool{
		clients: make(map[string]*Client),
		config:  config,
		logger:  logger,
	}
}

// Get returns the client for marathonURL, creating it on first use.
func (p *Pool) Get(marathonURL string) (*Client, error) {
	key := ResolveBaseURL(marathonURL)

	// Fast path: check if client exists
	p.mu.RLock()
	client, exists := p.clients[key]
	p.mu.RUnlock()

	if exists {
		return client, nil
	}

	// Slow path: create client
	p.mu.Lock()
	defer p.mu.Unlock()

	// Double-check after acquiring write lock
	if client, exists := p.clients[key]; exists {
		return client, nil
	}

	cfg := p.config
	cfg.BaseURL = key
	client, err := NewClient(cfg, p.logger)
	if err != nil {
		return nil, err
	}
	p.clients[key] = client
	return client, nil
}

// Len returns the number of cached clients.
func (p *Pool) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.clients)
}
