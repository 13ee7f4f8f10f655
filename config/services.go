package config

import (
	"errors"
	"fmt"
	"strings"
)

// ServiceMode represents the available service modes.
type ServiceMode string

const (
	// ServiceModeHTTP runs the HTTP API (job submission, lookup and result callback).
	ServiceModeHTTP ServiceMode = "http"
	// ServiceModeResultsConsumer runs the results stream consumer.
	ServiceModeResultsConsumer ServiceMode = "results-consumer"
	// ServiceModeOutboxRelay publishes outbox events to the broker.
	ServiceModeOutboxRelay ServiceMode = "outbox-relay"
	// ServiceModeOutboxSweeper prunes outbox rows past the retention window.
	ServiceModeOutboxSweeper ServiceMode = "outbox-sweeper"
)

// ValidServiceModes returns all valid service mode names.
func ValidServiceModes() []ServiceMode {
	return []ServiceMode{
		ServiceModeHTTP,
		ServiceModeResultsConsumer,
		ServiceModeOutboxRelay,
		ServiceModeOutboxSweeper,
	}
}

func validServiceNames() string {
	modes := ValidServiceModes()
	names := make([]string, 0, len(modes))
	for _, m := range modes {
		names = append(names, string(m))
	}
	return strings.Join(names, ", ")
}

// ParseServices parses a comma-delimited string of service names and returns the enabled services.
// It validates that all service names are valid and returns an error if any are invalid.
func ParseServices(servicesStr string) (map[ServiceMode]bool, error) {
	services := make(map[ServiceMode]bool)

	if servicesStr == "" {
		return services, errors.New("at least one service must be specified")
	}

	for _, part := range strings.Split(servicesStr, ",") {
		serviceName := strings.TrimSpace(part)
		if serviceName == "" {
			continue
		}

		mode := ServiceMode(serviceName)
		switch mode {
		case ServiceModeHTTP,
			ServiceModeResultsConsumer,
			ServiceModeOutboxRelay,
			ServiceModeOutboxSweeper:
			services[mode] = true
		default:
			return nil, fmt.Errorf(
				"invalid service name: %q (valid options: %s)",
				serviceName, validServiceNames(),
			)
		}
	}

	if len(services) == 0 {
		return nil, errors.New("at least one valid service must be specified")
	}

	return services, nil
}
