// Package cli implements the devfleet command line interface.
package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/devfleet/devfleet/internal/config"
	"github.com/devfleet/devfleet/internal/constants"
)

// Version is set during build
var Version = "dev"

// Global flags
var (
	configPath string
	apiAddr    string
	verbose    bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "devfleet",
	Short: "A local development environment orchestrator",
	Long: `devfleet runs the services of a local development environment from a
single manifest. It supports:
  - Process supervision with restart policies
  - HTTP health checks with automatic restart of unhealthy services
  - Log file tailing with structured parsing and filtering
  - A local HTTP control API`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Client commands discover the API address from the manifest
		// unless --addr was given explicitly.
		clientCommands := map[string]bool{
			"status":  true,
			"logs":    true,
			"start":   true,
			"stop":    true,
			"restart": true,
			"down":    true,
		}
		if clientCommands[cmd.Name()] && !cmd.Flags().Changed("addr") {
			apiAddr = discoverAPIAddress()
		}
	},
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("devfleet version %s\n", Version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Manifest file (default: devfleet.yaml)")
	rootCmd.PersistentFlags().StringVar(&apiAddr, "addr", defaultAPIAddress(), "API address for remote commands")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")

	rootCmd.SetVersionTemplate("devfleet version {{.Version}}\n")

	rootCmd.AddCommand(versionCmd)
}

func defaultAPIAddress() string {
	return fmt.Sprintf("http://%s:%d", constants.DefaultAPIHost, constants.DefaultAPIPort)
}

// loadManifest locates and parses the manifest. It returns the manifest and
// the directory relative paths are resolved against.
func loadManifest() (*config.Manifest, string, error) {
	path := configPath
	if path == "" {
		found, err := config.FindManifest()
		if err != nil {
			return nil, "", err
		}
		path = found
	}

	m, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}

	dir := filepath.Dir(path)
	if abs, err := filepath.Abs(path); err == nil {
		dir = filepath.Dir(abs)
	}
	return m, dir, nil
}

// discoverAPIAddress reads the API address from the manifest when one is
// present; otherwise the default address is used.
func discoverAPIAddress() string {
	m, _, err := loadManifest()
	if err != nil {
		return defaultAPIAddress()
	}
	return fmt.Sprintf("http://%s:%d", m.API.Host, m.API.Port)
}
