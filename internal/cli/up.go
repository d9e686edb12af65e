package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/devfleet/devfleet/internal/api"
	"github.com/devfleet/devfleet/internal/constants"
	"github.com/devfleet/devfleet/internal/domain"
	"github.com/devfleet/devfleet/internal/logs"
	"github.com/devfleet/devfleet/internal/supervisor"
)

var (
	upLevel string
	upQuiet bool
)

// upCmd starts the services defined in the manifest
var upCmd = &cobra.Command{
	Use:   "up [service...]",
	Short: "Start services and run until interrupted",
	Long: `Start every service in the manifest, or only the named ones, tail
their log files, and serve the control API until interrupted.`,
	RunE: runUp,
}

func init() {
	upCmd.Flags().StringVar(&upLevel, "level", "", "Minimum log level to print (trace|debug|info|warn|error)")
	upCmd.Flags().BoolVarP(&upQuiet, "quiet", "q", false, "Do not print service logs to the terminal")
	rootCmd.AddCommand(upCmd)
}

func runUp(cmd *cobra.Command, args []string) error {
	manifest, configDir, err := loadManifest()
	if err != nil {
		return err
	}

	configs, err := manifest.ToServiceConfigs(configDir)
	if err != nil {
		return err
	}
	if len(args) > 0 {
		configs, err = selectServices(configs, args)
		if err != nil {
			return err
		}
	}

	logDir := manifest.LogDir
	if !filepath.IsAbs(logDir) {
		logDir = filepath.Join(configDir, logDir)
	}

	streamer := logs.NewStreamer()
	sup := supervisor.New(nil, streamer, supervisor.DefaultConfig())

	handlers := api.NewHandlers(sup, streamer)
	apiServer := api.NewServer(api.ServerConfig{
		Host: manifest.API.Host,
		Port: manifest.API.Port,
	}, handlers)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	fmt.Printf("Starting devfleet (%d services)\n", len(configs))
	fmt.Printf("API server: http://%s\n", apiServer.Addr())

	for i := range configs {
		cfg := configs[i]

		if cfg.LogFile == "" {
			path, err := streamer.CreateLogFile(cfg.Name, logDir)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error preparing logs for %s: %v\n", cfg.Name, err)
				continue
			}
			cfg.LogFile = path
		}
		streamer.AddLogFile(cfg.Name, cfg.LogFile, true)

		if err := sup.Start(cfg); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to start service %s: %v\n", cfg.Name, err)
		}
	}

	go func() {
		if err := apiServer.Start(); err != nil {
			if !strings.Contains(err.Error(), "Server closed") {
				fmt.Fprintf(os.Stderr, "API server error: %v\n", err)
			}
		}
	}()

	streamCtx, stopStream := context.WithCancel(context.Background())
	defer stopStream()
	if !upQuiet {
		streamCfg := domain.StreamConfig{Follow: true, Format: domain.FormatPretty}
		if upLevel != "" {
			level, ok := domain.ParseLevel(upLevel)
			if !ok {
				return fmt.Errorf("unknown log level %q", upLevel)
			}
			streamCfg.MinLevel = &level
		}
		go func() {
			_ = streamer.Stream(streamCtx, streamCfg, os.Stdout)
		}()
	}

	sig := <-sigCh
	fmt.Printf("\nReceived %s, shutting down...\n", sig)
	stopStream()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.DefaultShutdownTimeout)
	defer cancel()
	_ = apiServer.Shutdown(shutdownCtx)

	sup.Close()
	streamer.Close()

	fmt.Println("Shutdown complete")
	return nil
}

// selectServices filters configs down to the named services, failing on
// names the manifest does not define.
func selectServices(configs []domain.ServiceConfig, names []string) ([]domain.ServiceConfig, error) {
	byName := make(map[string]domain.ServiceConfig, len(configs))
	for _, cfg := range configs {
		byName[cfg.Name] = cfg
	}

	selected := make([]domain.ServiceConfig, 0, len(names))
	for _, name := range names {
		cfg, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("%w: %s", domain.ErrServiceNotFound, name)
		}
		selected = append(selected, cfg)
	}
	return selected, nil
}
