// Package config loads the workspace manifest: the declarative list of
// services, ports, and health-check URLs that the supervisor runs.
package config

import (
	"fmt"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/devfleet/devfleet/internal/constants"
	"github.com/devfleet/devfleet/internal/domain"
)

// Manifest represents the top-level devfleet workspace configuration
type Manifest struct {
	LogDir   string                   `yaml:"log_dir"`
	EnvFile  string                   `yaml:"env_file"`
	API      APIConfig                `yaml:"api"`
	Services map[string]ServiceConfig `yaml:"services"`
}

// APIConfig defines the control API configuration
type APIConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// ServiceConfig represents one service entry. The simple form is a bare
// command string; the expanded form carries the full set of options.
type ServiceConfig struct {
	Command        string            `yaml:"command"`
	Args           []string          `yaml:"args"`
	Dir            string            `yaml:"dir"`
	Env            map[string]string `yaml:"env"`
	EnvFile        string            `yaml:"env_file"`
	Ports          []int             `yaml:"ports"`
	HealthCheck    string            `yaml:"health_check"`
	HealthInterval string            `yaml:"health_interval"`
	HealthTimeout  string            `yaml:"health_timeout"`
	StartupTimeout string            `yaml:"startup_timeout"`
	Restart        string            `yaml:"restart"`
	LogFile        string            `yaml:"log_file"`
}

// rawManifest handles the flexible service format during initial parsing
type rawManifest struct {
	LogDir   string         `yaml:"log_dir"`
	EnvFile  string         `yaml:"env_file"`
	API      APIConfig      `yaml:"api"`
	Services map[string]any `yaml:"services"`
}

// Load reads and parses a manifest file
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", domain.ErrManifestNotFound, path)
		}
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	return Parse(data)
}

// Parse parses a manifest from YAML bytes and applies defaults
func Parse(data []byte) (*Manifest, error) {
	var raw rawManifest
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing yaml: %w", err)
	}

	m := &Manifest{
		LogDir:   raw.LogDir,
		EnvFile:  raw.EnvFile,
		API:      raw.API,
		Services: make(map[string]ServiceConfig),
	}

	if m.LogDir == "" {
		m.LogDir = constants.DefaultLogDir
	}
	if m.API.Host == "" {
		m.API.Host = constants.DefaultAPIHost
	}
	if m.API.Port == 0 {
		m.API.Port = constants.DefaultAPIPort
	}

	for name, value := range raw.Services {
		svc, err := parseServiceConfig(value)
		if err != nil {
			return nil, fmt.Errorf("service %q: %w", name, err)
		}
		m.Services[name] = svc
	}

	if err := Validate(m); err != nil {
		return nil, err
	}

	return m, nil
}

// parseServiceConfig handles both simple and expanded service definitions
func parseServiceConfig(value any) (ServiceConfig, error) {
	switch v := value.(type) {
	case string:
		// Simple form: gateway: ./bin/gateway
		return ServiceConfig{Command: v}, nil
	case map[string]any:
		// Expanded form: re-marshal and unmarshal to struct
		data, err := yaml.Marshal(v)
		if err != nil {
			return ServiceConfig{}, fmt.Errorf("marshaling service config: %w", err)
		}
		var svc ServiceConfig
		if err := yaml.Unmarshal(data, &svc); err != nil {
			return ServiceConfig{}, fmt.Errorf("unmarshaling service config: %w", err)
		}
		return svc, nil
	default:
		return ServiceConfig{}, fmt.Errorf("invalid service configuration type: %T", value)
	}
}

// ServiceNames returns the manifest's service names, sorted
func (m *Manifest) ServiceNames() []string {
	names := make([]string, 0, len(m.Services))
	for name := range m.Services {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ToServiceConfigs converts manifest entries into supervisor-ready
// configurations, merging environment files and resolving paths relative
// to configDir. Services are returned sorted by name.
func (m *Manifest) ToServiceConfigs(configDir string) ([]domain.ServiceConfig, error) {
	configs := make([]domain.ServiceConfig, 0, len(m.Services))

	for _, name := range m.ServiceNames() {
		svc := m.Services[name]

		env, err := LoadServiceEnv(m.EnvFile, svc.EnvFile, svc.Env, configDir)
		if err != nil {
			return nil, fmt.Errorf("service %q: %w", name, err)
		}

		policy, ok := domain.ParseRestartPolicy(svc.Restart)
		if !ok {
			return nil, fmt.Errorf("%w: service %q: unknown restart policy %q",
				domain.ErrInvalidConfig, name, svc.Restart)
		}

		cfg := domain.ServiceConfig{
			Name:           name,
			Command:        svc.Command,
			Args:           svc.Args,
			Dir:            svc.Dir,
			Env:            env,
			EnvFile:        svc.EnvFile,
			Ports:          svc.Ports,
			HealthCheckURL: svc.HealthCheck,
			HealthInterval: constants.DefaultHealthInterval,
			HealthTimeout:  constants.DefaultHealthTimeout,
			StartupTimeout: constants.DefaultStartupTimeout,
			RestartPolicy:  policy,
			LogFile:        svc.LogFile,
		}

		if svc.HealthInterval != "" {
			if d, err := time.ParseDuration(svc.HealthInterval); err == nil {
				cfg.HealthInterval = d
			}
		}
		if svc.HealthTimeout != "" {
			if d, err := time.ParseDuration(svc.HealthTimeout); err == nil {
				cfg.HealthTimeout = d
			}
		}
		if svc.StartupTimeout != "" {
			if d, err := time.ParseDuration(svc.StartupTimeout); err == nil {
				cfg.StartupTimeout = d
			}
		}

		configs = append(configs, cfg)
	}

	return configs, nil
}

// FindManifest searches for a manifest file in standard locations
func FindManifest() (string, error) {
	candidates := []string{
		constants.DefaultManifestFile,
		"devfleet.yml",
		".devfleet.yaml",
		".devfleet.yml",
	}

	for _, name := range candidates {
		if _, err := os.Stat(name); err == nil {
			return name, nil
		}
	}

	return "", fmt.Errorf("%w (tried: %v)", domain.ErrManifestNotFound, candidates)
}
