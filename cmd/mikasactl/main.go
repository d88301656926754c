package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"mikasa-gate/internal/config"
	"mikasa-gate/internal/domain"
	"mikasa-gate/internal/repository"
	"mikasa-gate/internal/server"
	"mikasa-gate/internal/service"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	envFileFlag string

	// grant flags
	grantPlanFlag string
	grantDaysFlag int

	// demo-usage flags
	demoDeviceFlag string
)

var rootCmd = &cobra.Command{
	Use:           "mikasactl",
	Short:         "Mikasa entitlement and usage tooling",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if err := godotenv.Load(envFileFlag); err != nil && cmd.Flags().Changed("env-file") {
			fmt.Fprintf(os.Stderr, "Warning: could not load %s: %v\n", envFileFlag, err)
		}
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withContainer(cmd.Context(), func(ctx context.Context, c *config.Container) error {
			return server.Run(ctx, c)
		})
	},
}

var usageCmd = &cobra.Command{
	Use:   "usage <user-id>",
	Short: "Show a user's plan and today's usage",
	Long:  `Resolve a registered user's entitlement and today's message count with the service role key.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withContainer(cmd.Context(), func(ctx context.Context, c *config.Container) error {
			account := &domain.Account{ID: args[0], Tier: domain.TierFree}
			entitlement := c.AdminEntitlementResolver().Resolve(ctx, account)

			tracker := service.NewUsageTracker(
				service.NewRemoteUsageStore(c.AdminUsageRepository),
				"remote",
				c.Config.GetUsageTimeout(),
				c.Logger,
				c.Metrics,
			)
			usage := tracker.TodayUsage(ctx, account, entitlement.MessagesLimit)

			return printJSON(cmd, map[string]interface{}{
				"user_id":     account.ID,
				"tier":        entitlement.Tier(false),
				"entitlement": entitlement,
				"usage":       usage,
			})
		})
	},
}

var grantCmd = &cobra.Command{
	Use:   "grant <user-id>",
	Short: "Set a user's plan without checkout",
	Long: `Grant a plan to a registered user. Granting "free" cancels the active subscription.

Examples:
  mikasactl grant 6c1f... --plan premium --days 30
  mikasactl grant 6c1f... --plan pro --days 0   # open-ended
`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		plan, ok := domain.ParsePlanType(grantPlanFlag)
		if !ok {
			return fmt.Errorf("%w: %q", domain.ErrInvalidPlan, grantPlanFlag)
		}
		return withContainer(cmd.Context(), func(ctx context.Context, c *config.Container) error {
			sub, err := c.SubscriptionService.Grant(ctx, args[0], plan, grantDaysFlag)
			if err != nil {
				return err
			}
			return printJSON(cmd, map[string]interface{}{
				"user_id":      args[0],
				"plan_type":    plan,
				"subscription": sub,
			})
		})
	},
}

var demoUsageCmd = &cobra.Command{
	Use:   "demo-usage",
	Short: "Dump the local usage record of a demo device",
	RunE: func(cmd *cobra.Command, args []string) error {
		if demoDeviceFlag == "" {
			return fmt.Errorf("--device is required")
		}
		return withContainer(cmd.Context(), func(ctx context.Context, c *config.Container) error {
			store := service.NewLocalUsageStore(repository.NewScopedKeyValueStore(c.LocalStore, demoDeviceFlag), c.Clock)
			blob, err := store.Blob()
			if err != nil {
				return err
			}
			today := domain.DayKey(c.Clock.Now())
			return printJSON(cmd, map[string]interface{}{
				"device_id": demoDeviceFlag,
				"today":     today,
				"usage":     domain.NewUsageSnapshot(blob[today], domain.FreeDailyLimit),
				"days":      blob,
			})
		})
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFileFlag, "env-file", ".env", "Environment file to load before running")

	grantCmd.Flags().StringVar(&grantPlanFlag, "plan", string(domain.PlanPremium), "Plan to grant (free, premium, pro)")
	grantCmd.Flags().IntVar(&grantDaysFlag, "days", 30, "Length of the granted period in days; 0 for open-ended")

	demoUsageCmd.Flags().StringVar(&demoDeviceFlag, "device", "", "Device id the demo account is bound to")

	rootCmd.AddCommand(serveCmd, usageCmd, grantCmd, demoUsageCmd)
}

func withContainer(ctx context.Context, fn func(context.Context, *config.Container) error) error {
	c, err := config.NewContainer(ctx)
	if err != nil {
		return err
	}
	runErr := fn(ctx, c)
	if err := c.Close(); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}
