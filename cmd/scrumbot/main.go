package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/stellarlinkco/scrumbot/internal/bot"
	"github.com/stellarlinkco/scrumbot/internal/config"
	"github.com/stellarlinkco/scrumbot/internal/platform"
	"github.com/stellarlinkco/scrumbot/internal/report"
	"github.com/stellarlinkco/scrumbot/internal/store"
	"github.com/stellarlinkco/scrumbot/internal/validator"
)

var rootCmd = &cobra.Command{
	Use:   "scrumbot",
	Short: "scrumbot - daily report bot for Mattermost",
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the bot (scheduler + event feed)",
	RunE:  runServe,
}

var onboardCmd = &cobra.Command{
	Use:   "onboard",
	Short: "Initialize config",
	RunE:  runOnboard,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show scrumbot status",
	RunE:  runStatus,
}

var reportsCmd = &cobra.Command{
	Use:   "reports",
	Short: "Print monthly report statistics",
	RunE:  runReports,
}

var webCmd = &cobra.Command{
	Use:   "web",
	Short: "Serve monthly statistics as read-only JSON",
	RunE:  runWeb,
}

var (
	yearFlag  int
	monthFlag int
)

func init() {
	now := time.Now()
	reportsCmd.Flags().IntVarP(&yearFlag, "year", "y", now.Year(), "Year to report on")
	reportsCmd.Flags().IntVarP(&monthFlag, "month", "m", int(now.Month()), "Month to report on (1-12)")
	rootCmd.AddCommand(serveCmd, onboardCmd, statusCmd, reportsCmd, webCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Mattermost.Token == "" {
		return fmt.Errorf("Mattermost token not set. Run 'scrumbot onboard' or set MATTERMOST_TOKEN")
	}

	st, err := store.Open(cfg.Store.DBPath, cfg.Report.Location())
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	client := platform.NewClient(cfg.Mattermost.URL, cfg.Mattermost.Token, cfg.Mattermost.TeamName)
	gateway := validator.New(cfg.Validator)
	b := bot.New(cfg, client, st, gateway)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	return b.Run(ctx)
}

func runOnboard(cmd *cobra.Command, args []string) error {
	cfgPath := config.ConfigPath()

	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		if err := config.SaveConfig(config.DefaultConfig()); err != nil {
			return fmt.Errorf("write config: %w", err)
		}
		fmt.Printf("Created config: %s\n", cfgPath)
	} else {
		fmt.Printf("Config already exists: %s\n", cfgPath)
	}

	fmt.Println("\nNext steps:")
	fmt.Printf("  1. Edit %s to set the Mattermost URL, token, and team\n", cfgPath)
	fmt.Println("  2. Or set MATTERMOST_URL / MATTERMOST_TOKEN environment variables")
	fmt.Println("  3. Run 'scrumbot serve' to start the bot")

	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Printf("Config: error (%v)\n", err)
		return nil
	}

	fmt.Printf("Config: %s\n", config.ConfigPath())
	fmt.Printf("Mattermost: %s (team %q)\n", cfg.Mattermost.URL, cfg.Mattermost.TeamName)
	if token := cfg.Mattermost.Token; token != "" && len(token) > 8 {
		fmt.Printf("Token: %s...%s\n", token[:4], token[len(token)-4:])
	} else if cfg.Mattermost.Token != "" {
		fmt.Println("Token: set")
	} else {
		fmt.Println("Token: not set")
	}
	fmt.Printf("Report time: %s (UTC%+d), days %v\n",
		cfg.Report.Time, cfg.Report.TimezoneOffsetHours, cfg.Report.Days)
	fmt.Printf("Reminder interval: %dh\n", cfg.Report.ReminderIntervalHours)
	fmt.Printf("Excluded users: %v\n", cfg.Report.ExcludedUsers)
	fmt.Printf("Validator: enabled=%v model=%s\n", cfg.Validator.Enabled, cfg.Validator.Model)
	fmt.Printf("Store: %s\n", cfg.Store.DBPath)

	return nil
}

func runReports(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	st, err := store.Open(cfg.Store.DBPath, cfg.Report.Location())
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	monthly, err := report.BuildMonthly(st, yearFlag, time.Month(monthFlag))
	if err != nil {
		return err
	}

	fmt.Printf("Report statistics for %04d-%02d (%d working days)\n\n",
		monthly.Year, monthly.Month, monthly.WorkingDays)
	fmt.Printf("%-20s %10s %8s %8s\n", "USER", "SUBMITTED", "MISSED", "RATE")
	for _, s := range monthly.Statistics {
		fmt.Printf("%-20s %10d %8d %7.1f%%\n", s.Username, s.Submitted, s.Missed, s.Rate)
	}
	if len(monthly.Statistics) == 0 {
		fmt.Println("(no reports recorded)")
	}

	return nil
}

func runWeb(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	st, err := store.Open(cfg.Store.DBPath, cfg.Report.Location())
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	srv := report.NewServer(st, cfg.Web.Host, cfg.Web.Port)
	return srv.Start(ctx)
}
