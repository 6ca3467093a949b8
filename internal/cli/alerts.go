package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Joseph-Mutua/fastweigh-intelligence/internal/alerts"
)

// AlertsOptions holds flags for the alerts command.
type AlertsOptions struct {
	*RootOptions
	Notify bool
}

// NewAlertsCommand creates the alerts command.
func NewAlertsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AlertsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "alerts",
		Short: "Evaluate alert rules against the rebuilt aggregates",
		Long: `Scan the gold tables against the configured thresholds. Triggered
findings are appended to the alert audit log; with --notify they are also
delivered to the enabled channels.

Requires a prior model rebuild.

Example:
  fastweigh alerts --config tenant.yaml
  fastweigh alerts --notify`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAlerts(opts, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Notify, "notify", false, "deliver findings to the enabled notification channels")

	return cmd
}

func runAlerts(opts *AlertsOptions, cmd *cobra.Command) error {
	log := setupLogger(opts.RootOptions)

	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return err
	}

	wh, err := openWarehouse(cfg)
	if err != nil {
		return err
	}
	defer wh.Close()

	engineOpts := []alerts.Option{alerts.WithLogger(log)}
	if opts.Notify {
		var notifiers []alerts.Notifier
		if cfg.Email.Enabled {
			notifiers = append(notifiers, alerts.NewEmailNotifier(cfg.Email))
		}
		if cfg.Webhook.Enabled {
			notifiers = append(notifiers, alerts.NewWebhookNotifier(cfg.Webhook, nil))
		}
		engineOpts = append(engineOpts, alerts.WithNotifiers(notifiers...))
	}

	engine := alerts.NewEngine(wh, cfg.TenantName, cfg.Alerts, engineOpts...)
	findings, err := engine.Run(cmd.Context())
	if err != nil {
		return WrapExitError(ExitFailure, "alert evaluation failed", err)
	}

	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
	if opts.Format == "json" {
		if findings == nil {
			findings = []alerts.Finding{}
		}
		return formatter.Success(findings)
	}
	return formatter.Success(formatFindings(findings))
}

func formatFindings(findings []alerts.Finding) string {
	if len(findings) == 0 {
		return "no alerts triggered"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d alert(s) triggered\n", len(findings))
	for _, f := range findings {
		fmt.Fprintf(&b, "[%s] %s: %s\n", strings.ToUpper(f.Severity), f.Rule, f.Detail)
	}
	return strings.TrimSuffix(b.String(), "\n")
}
