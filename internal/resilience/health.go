package resilience

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// HealthStatus represents the health status of a component.
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "HEALTHY"
	HealthStatusDegraded  HealthStatus = "DEGRADED"
	HealthStatusUnhealthy HealthStatus = "UNHEALTHY"
)

// ComponentHealth represents the health of a single component.
type ComponentHealth struct {
	Name      string        `json:"name"`
	Status    HealthStatus  `json:"status"`
	Message   string        `json:"message"`
	LastCheck time.Time     `json:"last_check"`
	Latency   time.Duration `json:"latency"`
}

// HealthCheck represents a health check function.
type HealthCheck func(ctx context.Context) ComponentHealth

// SystemHealth is the result of one round of checks.
type SystemHealth struct {
	Status     HealthStatus      `json:"status"`
	Components []ComponentHealth `json:"components"`
}

// HealthChecker runs registered component checks on demand.
type HealthChecker struct {
	mu         sync.Mutex
	components map[string]HealthCheck
	timeout    time.Duration
}

// NewHealthChecker creates a checker whose checks share timeout.
func NewHealthChecker(timeout time.Duration) *HealthChecker {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HealthChecker{
		components: make(map[string]HealthCheck),
		timeout:    timeout,
	}
}

// RegisterComponent adds a named check.
func (c *HealthChecker) RegisterComponent(name string, check HealthCheck) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.components[name] = check
}

// Check runs every check concurrently. A panicking check reports unhealthy.
func (c *HealthChecker) Check(ctx context.Context) SystemHealth {
	c.mu.Lock()
	components := make(map[string]HealthCheck, len(c.components))
	for k, v := range c.components {
		components[k] = v
	}
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var wg sync.WaitGroup
	results := make(chan ComponentHealth, len(components))

	for name, check := range components {
		wg.Add(1)
		go func() {
			defer wg.Done()
			start := time.Now()
			defer func() {
				if r := recover(); r != nil {
					results <- ComponentHealth{
						Name:      name,
						Status:    HealthStatusUnhealthy,
						Message:   fmt.Sprintf("check panicked: %v", r),
						LastCheck: time.Now(),
						Latency:   time.Since(start),
					}
				}
			}()

			health := check(ctx)
			health.Name = name
			health.LastCheck = time.Now()
			health.Latency = time.Since(start)
			results <- health
		}()
	}

	wg.Wait()
	close(results)

	out := SystemHealth{Status: HealthStatusHealthy}
	for health := range results {
		out.Components = append(out.Components, health)
		switch health.Status {
		case HealthStatusUnhealthy:
			out.Status = HealthStatusUnhealthy
		case HealthStatusDegraded:
			if out.Status == HealthStatusHealthy {
				out.Status = HealthStatusDegraded
			}
		}
	}
	sort.Slice(out.Components, func(i, j int) bool {
		return out.Components[i].Name < out.Components[j].Name
	})
	return out
}

// DatabaseHealthCheck creates a health check for database connections.
func DatabaseHealthCheck(ping func(ctx context.Context) error) HealthCheck {
	return func(ctx context.Context) ComponentHealth {
		start := time.Now()
		err := ping(ctx)
		latency := time.Since(start)

		switch {
		case err != nil:
			return ComponentHealth{Status: HealthStatusUnhealthy, Message: fmt.Sprintf("Database ping failed: %v", err)}
		case latency > 100*time.Millisecond:
			return ComponentHealth{Status: HealthStatusDegraded, Message: fmt.Sprintf("Database slow: %v", latency)}
		}
		return ComponentHealth{Status: HealthStatusHealthy, Message: "Database reachable"}
	}
}

// BreakerHealthCheck reports unhealthy while any circuit is open and
// degraded while one is probing.
func BreakerHealthCheck(stats func() []CircuitBreakerStats) HealthCheck {
	return func(ctx context.Context) ComponentHealth {
		var open, halfOpen []string
		for _, s := range stats() {
			switch s.State {
			case CircuitOpen:
				open = append(open, s.Name)
			case CircuitHalfOpen:
				halfOpen = append(halfOpen, s.Name)
			}
		}

		switch {
		case len(open) > 0:
			return ComponentHealth{Status: HealthStatusUnhealthy, Message: fmt.Sprintf("Circuits open: %v", open)}
		case len(halfOpen) > 0:
			return ComponentHealth{Status: HealthStatusDegraded, Message: fmt.Sprintf("Circuits recovering: %v", halfOpen)}
		}
		return ComponentHealth{Status: HealthStatusHealthy, Message: "All circuits closed"}
	}
}
