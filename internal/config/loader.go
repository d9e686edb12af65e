package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// LoadEnvFile reads a .env file and returns the variables as a map
func LoadEnvFile(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("env file not found: %s", path)
	}

	env, err := godotenv.Read(path)
	if err != nil {
		return nil, fmt.Errorf("reading env file %s: %w", path, err)
	}

	return env, nil
}

// MergeEnv merges multiple environment maps in order, with later maps
// taking precedence
func MergeEnv(envMaps ...map[string]string) map[string]string {
	result := make(map[string]string)
	for _, env := range envMaps {
		for k, v := range env {
			result[k] = v
		}
	}
	return result
}

// LoadServiceEnv loads and merges environment variables for a service.
// Priority (lowest to highest):
// 1. Global env_file
// 2. Service env_file
// 3. Service env variables
func LoadServiceEnv(globalEnvFile, serviceEnvFile string, serviceEnv map[string]string, configDir string) (map[string]string, error) {
	var globalEnv, fileEnv map[string]string
	var err error

	if globalEnvFile != "" {
		globalEnv, err = LoadEnvFile(resolvePath(globalEnvFile, configDir))
		if err != nil {
			return nil, fmt.Errorf("loading global env file: %w", err)
		}
	}

	if serviceEnvFile != "" {
		fileEnv, err = LoadEnvFile(resolvePath(serviceEnvFile, configDir))
		if err != nil {
			return nil, fmt.Errorf("loading service env file: %w", err)
		}
	}

	return MergeEnv(globalEnv, fileEnv, serviceEnv), nil
}

// resolvePath resolves a potentially relative path against a base directory
func resolvePath(path, baseDir string) string {
	if filepath.IsAbs(path) || baseDir == "" {
		return path
	}
	return filepath.Join(baseDir, path)
}
