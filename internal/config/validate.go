package config

import (
	"fmt"
	"strings"

	"github.com/devfleet/devfleet/internal/domain"
)

// Validate checks the manifest for errors
func Validate(m *Manifest) error {
	var errs []string

	if m.API.Port < 0 || m.API.Port > 65535 {
		errs = append(errs, fmt.Sprintf("api.port: must be between 0 and 65535, got %d", m.API.Port))
	}

	if len(m.Services) == 0 {
		errs = append(errs, "services: at least one service must be defined")
	}

	for name, svc := range m.Services {
		if err := ValidateServiceName(name); err != nil {
			errs = append(errs, fmt.Sprintf("services.%s: %v", name, err))
		}
		if svc.Command == "" {
			errs = append(errs, fmt.Sprintf("services.%s.command: command is required", name))
		}
		if svc.Restart != "" {
			if _, ok := domain.ParseRestartPolicy(svc.Restart); !ok {
				errs = append(errs, fmt.Sprintf("services.%s.restart: unknown policy %q", name, svc.Restart))
			}
		}
		for _, port := range svc.Ports {
			if port <= 0 || port > 65535 {
				errs = append(errs, fmt.Sprintf("services.%s.ports: invalid port %d", name, port))
			}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", domain.ErrInvalidConfig, strings.Join(errs, "; "))
	}

	return nil
}

// ValidateServiceName checks if a service name is usable as a registry key
// and a log file name
func ValidateServiceName(name string) error {
	if name == "" {
		return fmt.Errorf("service name cannot be empty")
	}
	if strings.ContainsAny(name, " \t\n/\\") {
		return fmt.Errorf("service name cannot contain whitespace or path separators")
	}
	return nil
}
