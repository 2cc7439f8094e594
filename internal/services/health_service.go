// Package services holds thin service objects sitting between transports and
// the dispatch core.
package services

import (
	"time"

	"fintools/internal/config"
	"fintools/internal/tools"
)

// HealthStatus is the health endpoint's response body.
type HealthStatus struct {
	Status         string   `json:"status"`
	Version        string   `json:"version"`
	Uptime         string   `json:"uptime"`
	OperationCount int      `json:"operation_count"`
	Operations     []string `json:"operations"`
	Protocols      []string `json:"protocols"`
	CacheMode      string   `json:"cache_mode"`
	Timestamp      string   `json:"timestamp"`
}

// HealthService reports process liveness and the served catalog.
type HealthService struct {
	registry  *tools.Registry
	cacheMode string
	startedAt time.Time
	now       func() time.Time
}

// NewHealthService creates a health service over the injected registry.
func NewHealthService(registry *tools.Registry, cfg *config.Config) *HealthService {
	return &HealthService{
		registry:  registry,
		cacheMode: cfg.Cache.Mode,
		startedAt: time.Now(),
		now:       time.Now,
	}
}

// Check returns the current health snapshot.
func (s *HealthService) Check() HealthStatus {
	now := s.now()
	return HealthStatus{
		Status:         "healthy",
		Version:        config.AppVersion,
		Uptime:         now.Sub(s.startedAt).Round(time.Second).String(),
		OperationCount: s.registry.Count(),
		Operations:     s.registry.Names(),
		Protocols:      []string{"sync", "stream", "websocket"},
		CacheMode:      s.cacheMode,
		Timestamp:      now.UTC().Format(time.RFC3339),
	}
}
