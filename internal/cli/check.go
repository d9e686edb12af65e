package cli

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/devfleet/devfleet/internal/domain"
	"github.com/devfleet/devfleet/internal/health"
)

// checkCmd probes every health-checked service once, without requiring a
// running instance. It exits non-zero when any probe is not healthy.
var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Run every health check once and report the results",
	RunE: func(cmd *cobra.Command, args []string) error {
		manifest, _, err := loadManifest()
		if err != nil {
			return err
		}

		monitor := health.NewMonitor()
		checked := 0
		for _, name := range manifest.ServiceNames() {
			svc := manifest.Services[name]
			if svc.HealthCheck == "" {
				continue
			}
			monitor.Register(name, domain.HealthCheck{Endpoint: svc.HealthCheck})
			checked++
		}
		if checked == 0 {
			fmt.Println("No services define a health check")
			return nil
		}

		monitor.CheckAll(cmd.Context())

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tSTATUS\tLATENCY\tDETAIL")
		fmt.Fprintln(w, "----\t------\t-------\t------")
		for _, result := range monitor.All() {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
				result.Name, colorizeHealth(result.Status.String()),
				result.Latency.Round(time.Millisecond), result.Reason)
		}
		if err := w.Flush(); err != nil {
			return err
		}

		if unhealthy := monitor.UnhealthyServices(); len(unhealthy) > 0 {
			return fmt.Errorf("%d of %d services are not healthy", len(unhealthy), checked)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
}
