// Package metrics holds shared Prometheus registration helpers.
package metrics

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Namespace prefixes every collector the service exports.
const Namespace = "doclogs"

// Register registers c with reg. When an equal collector is already
// registered, the existing one is returned instead so constructors can be
// called more than once against the same registry.
func Register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	err := reg.Register(c)
	if err == nil {
		return c, nil
	}
	var already prometheus.AlreadyRegisteredError
	if errors.As(err, &already) {
		existing, ok := already.ExistingCollector.(T)
		if !ok {
			var zero T
			return zero, fmt.Errorf("existing collector has unexpected type %T", already.ExistingCollector)
		}
		return existing, nil
	}
	var zero T
	return zero, fmt.Errorf("register collector: %w", err)
}
