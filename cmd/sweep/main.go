// Package main provides the sweep CLI application entry point.
// sweep orchestrates time-correlated measurement campaigns: it brackets a
// treatment interval with configurable wait windows, drives the configured
// modules through the lifecycle, and persists every run as a versioned
// report.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"sweep/internal/config"
	"sweep/internal/logger"
	"sweep/internal/measure"
	_ "sweep/internal/modules/builtin" // Import for side effects (init functions)
	"sweep/internal/orchestration"
	"sweep/internal/report"
	"sweep/internal/version"
	"sweep/pkg/sweeptypes"
)

var (
	logLevel     string
	logFile      string
	probeMode    string
	setOverrides []string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "sweep",
	Short: "sweep - measurement campaign orchestrator",
	Long: `sweep runs time-correlated measurement campaigns against a system under test.
It brackets a treatment interval with configurable wait windows, drives the
configured workload modules through the lifecycle, and persists each run as a
versioned, reloadable report.`,
}

// runCmd executes one run of a campaign.
var runCmd = &cobra.Command{
	Use:   "run <config.yaml>",
	Short: "Execute one measurement run for a campaign",
	Args:  cobra.ExactArgs(1),
	Run:   runCampaign,
}

// probeCmd checks measurement availability without running.
var probeCmd = &cobra.Command{
	Use:   "probe <config.yaml>",
	Short: "Check that the configured measurements yield data",
	Args:  cobra.ExactArgs(1),
	Run:   runProbe,
}

// reportsCmd enumerates persisted reports of a campaign.
var reportsCmd = &cobra.Command{
	Use:   "reports <config.yaml>",
	Short: "List persisted reports matching the campaign's location template",
	Args:  cobra.ExactArgs(1),
	Run:   runReports,
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(_ *cobra.Command, _ []string) {
		fmt.Println(version.GetFormattedVersion())
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Set log level (debug|info|warn|error) [default: info]")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Write logs to file instead of stderr")

	if err := viper.BindPFlag("log-level", rootCmd.PersistentFlags().Lookup("log-level")); err != nil {
		fmt.Fprintf(os.Stderr, "Error binding log-level flag: %v\n", err)
		os.Exit(1)
	}
	if err := viper.BindPFlag("log-file", rootCmd.PersistentFlags().Lookup("log-file")); err != nil {
		fmt.Fprintf(os.Stderr, "Error binding log-file flag: %v\n", err)
		os.Exit(1)
	}

	runCmd.Flags().StringVar(&probeMode, "probe", "warn",
		`Check measurement availability before running:
'dry' quits after probing,
'warn' logs warnings (default),
'fail' aborts when any measurement is missing,
'none' skips probing.`)
	reportsCmd.Flags().StringArrayVar(&setOverrides, "set", nil,
		"Override a location template variable, e.g. --set runHash=ab12cd34 (repeatable)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(probeCmd)
	rootCmd.AddCommand(reportsCmd)
	rootCmd.AddCommand(versionCmd)

	// Configure logger before any command execution
	cobra.OnInitialize(initConfig)
}

func initConfig() {
	config.LoadDotEnv()
	if err := logger.Configure(logLevel, logFile); err != nil {
		fmt.Fprintf(os.Stderr, "Error configuring logger: %v\n", err)
		os.Exit(1)
	}
}

func loadCampaign(path string) *config.Config {
	cfg, err := config.Load(path)
	if err != nil {
		logger.Fatal("Failed to load configuration", "error", err)
	}
	return cfg
}

func buildOrchestrator(cfg *config.Config) *orchestration.Orchestrator {
	orch, err := orchestration.New(cfg, logger.NewStyledLogger("Orchestrator"))
	if err != nil {
		logger.Fatal("Failed to create orchestrator", "error", err)
	}
	sources, services, err := measure.FromConfig(cfg, logger.NewStyledLogger("Measure"))
	if err != nil {
		logger.Fatal("Failed to build measurement sources", "error", err)
	}
	orch.SetSources(sources)
	orch.SetServices(services)
	return orch
}

func runCampaign(_ *cobra.Command, args []string) {
	logger.Info("Starting sweep", "version", version.GetVersion(), "config", args[0])
	cfg := loadCampaign(args[0])
	orch := buildOrchestrator(cfg)
	ctx := context.Background()

	if err := orch.Connect(ctx); err != nil {
		logger.Fatal("Connect failed", "error", err)
	}

	if probeMode != "none" {
		results := orch.Probe(ctx)
		allAvailable := true
		for name, available := range results {
			if available {
				logger.Info("Measurement is available", "measurement", name)
			} else {
				logger.Warn("Measurement is NOT available", "measurement", name)
				allAvailable = false
			}
		}
		if probeMode == "dry" {
			logger.Info("Dry run complete")
			return
		}
		if !allAvailable && probeMode == "fail" {
			logger.Fatal("Not all measurements are available")
		}
	}

	session := sweeptypes.Session{Name: cfg.Session.Name, Extras: cfg.Session.Extras}
	if err := orch.StartSession(session); err != nil {
		logger.Fatal("Failed to start session", "error", err)
	}

	// In trigger mode the CLI drives the treatment interactively: the
	// treatment spans until the user hits Enter.
	var trigger sweeptypes.TriggerFunc
	if cfg.Observation.Mode == config.ModeTrigger {
		trigger = waitForEnter
	}

	run, err := orch.Run(ctx, trigger)
	if err != nil {
		logger.Fatal("Run failed", "error", err)
	}
	if err := orch.EndSession(); err != nil {
		logger.Fatal("Failed to end session", "error", err)
	}
	logger.Info("Sweep finished", "runHash", run.RunHash, "duration", run.Duration())
}

func runProbe(_ *cobra.Command, args []string) {
	cfg := loadCampaign(args[0])
	orch := buildOrchestrator(cfg)
	ctx := context.Background()

	if err := orch.Connect(ctx); err != nil {
		logger.Fatal("Connect failed", "error", err)
	}
	exitCode := 0
	for name, available := range orch.Probe(ctx) {
		if available {
			fmt.Printf("%s: available\n", name)
		} else {
			fmt.Printf("%s: NOT available\n", name)
			exitCode = 1
		}
	}
	os.Exit(exitCode)
}

func runReports(_ *cobra.Command, args []string) {
	cfg := loadCampaign(args[0])
	store := report.NewStore(cfg, logger.NewStyledLogger("ReportStore"))

	overrides := make(map[string]string, len(setOverrides))
	for _, entry := range setOverrides {
		key, value, found := strings.Cut(entry, "=")
		if !found || key == "" {
			logger.Fatal("Invalid --set entry, expected key=value", "entry", entry)
		}
		overrides[key] = value
	}

	reports, err := store.LoadFromConfig(overrides)
	if err != nil {
		logger.Fatal("Failed to enumerate reports", "error", err)
	}
	for _, rep := range reports {
		run := rep.Metadata.Run
		fmt.Printf("%s\t%s\t%s\t%d measurement(s)\n",
			rep.Location, rep.Metadata.Session.Name, run.RunHash, len(rep.Measurements()))
	}
	if len(reports) == 0 {
		fmt.Println("no reports found")
	}
}

// waitForEnter blocks until the user hits Enter, bounding the treatment
// interval in trigger mode.
func waitForEnter() (map[string]any, error) {
	fmt.Print("Hit Enter to stop measuring...")
	reader := bufio.NewReader(os.Stdin)
	if _, err := reader.ReadString('\n'); err != nil {
		return nil, err
	}
	return nil, nil
}
