package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/devfleet/devfleet/internal/api"
	"github.com/devfleet/devfleet/internal/constants"
	"github.com/devfleet/devfleet/internal/domain"
	"github.com/devfleet/devfleet/internal/logs"
)

var (
	goodStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	warnStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	badStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	dimStyle  = lipgloss.NewStyle().Faint(true)
)

// colorizeState styles a lifecycle state for table output
func colorizeState(state string) string {
	switch domain.ProcessState(state) {
	case domain.ProcessStateRunning:
		return goodStyle.Render(state)
	case domain.ProcessStateFailed:
		return badStyle.Render(state)
	case domain.ProcessStateStopped:
		return dimStyle.Render(state)
	default:
		return warnStyle.Render(state)
	}
}

// colorizeHealth styles a health status for table output
func colorizeHealth(status string) string {
	switch domain.HealthStatus(status) {
	case domain.HealthStatusHealthy:
		return goodStyle.Render(status)
	case domain.HealthStatusDegraded:
		return warnStyle.Render(status)
	case domain.HealthStatusUnhealthy:
		return badStyle.Render(status)
	default:
		return dimStyle.Render(status)
	}
}

var statusJSON bool

// statusCmd shows the state of every service in a running instance
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show service states and health",
	RunE: func(cmd *cobra.Command, args []string) error {
		client := NewClient(apiAddr)

		status, err := client.GetStatus()
		if err != nil {
			return fmt.Errorf("%w\nIs devfleet running? Try 'devfleet up' first", err)
		}
		services, err := client.GetServices()
		if err != nil {
			return err
		}

		if statusJSON {
			return json.NewEncoder(os.Stdout).Encode(map[string]any{
				"status":   status,
				"services": services.Services,
			})
		}

		fmt.Printf("Status: %s\n", status.Status)
		fmt.Printf("Uptime: %s\n", formatDuration(time.Duration(status.UptimeSeconds)*time.Second))
		fmt.Println()

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tSTATE\tPID\tUPTIME\tRESTARTS\tHEALTH")
		fmt.Fprintln(w, "----\t-----\t---\t------\t--------\t------")
		for _, s := range services.Services {
			uptime := formatDuration(time.Duration(s.UptimeSeconds) * time.Second)
			health := colorizeHealth(s.Health)
			if s.HealthReason != "" {
				health = fmt.Sprintf("%s (%s)", health, s.HealthReason)
			}
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%d\t%s\n",
				s.Name, stateCell(s), s.PID, uptime, s.Restarts, health)
		}
		return w.Flush()
	},
}

// stateCell renders a service's state, appending the reason when one is set
func stateCell(s api.ServiceResponse) string {
	if s.StateReason != "" {
		return fmt.Sprintf("%s (%s)", colorizeState(s.State), s.StateReason)
	}
	return colorizeState(s.State)
}

// startCmd starts a stopped service
var startCmd = &cobra.Command{
	Use:   "start <service>",
	Short: "Start a service",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := NewClient(apiAddr)
		if err := client.StartService(args[0]); err != nil {
			return fmt.Errorf("starting %s: %w", args[0], err)
		}
		fmt.Printf("Started service: %s\n", args[0])
		return nil
	},
}

var stopForce bool

// stopCmd stops a running service
var stopCmd = &cobra.Command{
	Use:   "stop <service>",
	Short: "Stop a service",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := NewClient(apiAddr)
		if err := client.StopService(args[0], stopForce); err != nil {
			return fmt.Errorf("stopping %s: %w", args[0], err)
		}
		fmt.Printf("Stopped service: %s\n", args[0])
		return nil
	},
}

// restartCmd restarts a service
var restartCmd = &cobra.Command{
	Use:   "restart <service>",
	Short: "Restart a service",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := NewClient(apiAddr)
		if err := client.RestartService(args[0]); err != nil {
			return fmt.Errorf("restarting %s: %w", args[0], err)
		}
		fmt.Printf("Restarted service: %s\n", args[0])
		return nil
	},
}

// downCmd stops every service in a running instance
var downCmd = &cobra.Command{
	Use:   "down",
	Short: "Stop all services",
	RunE: func(cmd *cobra.Command, args []string) error {
		client := NewClient(apiAddr)
		services, err := client.GetServices()
		if err != nil {
			return err
		}

		failures := 0
		for _, s := range services.Services {
			if err := client.StopService(s.Name, false); err != nil {
				fmt.Fprintf(os.Stderr, "Error stopping %s: %v\n", s.Name, err)
				failures++
				continue
			}
			fmt.Printf("Stopped service: %s\n", s.Name)
		}
		if failures > 0 {
			return fmt.Errorf("%d services failed to stop", failures)
		}
		return nil
	},
}

var logsParams LogParams
var logsFormat string

// logsCmd prints or follows the aggregated log stream
var logsCmd = &cobra.Command{
	Use:   "logs [service]",
	Short: "Show aggregated service logs",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		params := logsParams
		if len(args) > 0 && params.Service == "" {
			params.Service = args[0]
		}
		if params.Level != "" {
			if _, ok := domain.ParseLevel(params.Level); !ok {
				return fmt.Errorf("unknown log level %q", params.Level)
			}
		}

		format := domain.LogFormat(logsFormat)
		switch format {
		case domain.FormatPretty, domain.FormatJSON, domain.FormatRaw:
		default:
			return fmt.Errorf("unknown format %q (want pretty, json, or raw)", logsFormat)
		}

		client := NewClient(apiAddr)
		return client.StreamLogs(params, func(entry domain.LogEntry) {
			logs.Render(os.Stdout, entry, format)
		})
	},
}

// formatDuration formats a duration for table output
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
}

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "Output as JSON")

	stopCmd.Flags().BoolVar(&stopForce, "force", false, "Kill immediately instead of stopping gracefully")

	logsCmd.Flags().BoolVarP(&logsParams.Follow, "follow", "f", false, "Stream new records as they arrive")
	logsCmd.Flags().IntVarP(&logsParams.Lines, "lines", "n", constants.DefaultLogLimit, "Number of records to show")
	logsCmd.Flags().StringVar(&logsParams.Level, "level", "", "Minimum level (trace|debug|info|warn|error)")
	logsCmd.Flags().StringVar(&logsParams.Service, "service", "", "Only records whose service name contains this value")
	logsCmd.Flags().StringVar(&logsParams.Pattern, "pattern", "", "Only records whose message matches this regex")
	logsCmd.Flags().StringVar(&logsFormat, "format", string(domain.FormatPretty), "Output format (pretty|json|raw)")

	rootCmd.AddCommand(statusCmd, startCmd, stopCmd, restartCmd, downCmd, logsCmd)
}
