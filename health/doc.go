// Package health exposes circuit breaker state as health checks.
//
// A closed circuit is healthy, a half-open circuit is degraded while its
// recovery probe is in flight, and an open circuit is unhealthy. Individual
// keys can be checked with CircuitChecker; RegistryChecker aggregates every
// key the registry has seen into one composite status.
package health
