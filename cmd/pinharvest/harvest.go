package main

import (
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"pinharvest/pkg/auth"
	"pinharvest/pkg/config"
	"pinharvest/pkg/logger"
	"pinharvest/pkg/scraper"
	"pinharvest/pkg/ui"
)

var (
	// Harvest command flags
	email       string
	password    string
	cookiesPath string
	outputDir   string
	dbPath      string
	concurrent  int
	maxItems    int
	noHeadless   bool
	accountName  string
	resumeRun    bool
	forceRestart bool
)

// harvestCmd represents the harvest command
var harvestCmd = &cobra.Command{
	Use:   "harvest [target...]",
	Short: "Harvest pins and media from the configured targets",
	Long: `Harvest every configured target in order: authenticate, scroll the
listing until it is exhausted or the item limit is reached, download the
referenced media and persist each item to the document store.

Targets come from the configuration file. Positional arguments add ad-hoc
targets on top: a board or profile URL, or a bare search query.

Interrupting the run (Ctrl+C) stops cleanly between items; whatever was
already collected stays persisted and a later run with --resume picks up
where this one stopped.`,
	Example: `  # Harvest the targets from pinharvest.yaml
  pinharvest harvest

  # Harvest one board ad hoc
  pinharvest harvest https://www.pinterest.com/someuser/travel-ideas/

  # Search query with an item cap
  pinharvest harvest "mid century lamps" --max-items 200

  # Resume an interrupted run
  pinharvest harvest --resume

  # Watch the browser work
  pinharvest harvest --no-headless`,
	Args: cobra.ArbitraryArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		runHarvest(cmd, args)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(harvestCmd)

	harvestCmd.Flags().StringVar(&email, "email", "", "account email for direct or federated login")
	harvestCmd.Flags().StringVar(&password, "password", "", "account password (prefer PINHARVEST_PASSWORD)")
	harvestCmd.Flags().StringVar(&cookiesPath, "cookies-path", "", "path to the saved session cookie file")
	harvestCmd.Flags().StringVarP(&outputDir, "output", "o", "", "base directory for downloaded media")
	harvestCmd.Flags().StringVar(&dbPath, "db", "", "path to the SQLite document store")
	harvestCmd.Flags().IntVar(&concurrent, "concurrent", 0, "number of concurrent media downloads")
	harvestCmd.Flags().IntVar(&maxItems, "max-items", 0, "item limit applied to every target")
	harvestCmd.Flags().BoolVar(&noHeadless, "no-headless", false, "run the browser with a visible window")
	harvestCmd.Flags().StringVarP(&accountName, "account", "a", "", "use a specific stored account")
	harvestCmd.Flags().BoolVar(&resumeRun, "resume", false, "resume each target from its last checkpoint")
	harvestCmd.Flags().BoolVar(&forceRestart, "force-restart", false, "discard existing checkpoints and start fresh")
}

func runHarvest(cmd *cobra.Command, args []string) {
	// Build flags map from command line
	flags := make(map[string]interface{})
	if email != "" {
		flags["email"] = email
	}
	if password != "" {
		flags["password"] = password
	}
	if cookiesPath != "" {
		flags["cookies-path"] = cookiesPath
	}
	if outputDir != "" {
		flags["output"] = outputDir
	}
	if dbPath != "" {
		flags["db"] = dbPath
	}
	if concurrent > 0 {
		flags["concurrent"] = concurrent
	}
	if maxItems > 0 {
		flags["max-items"] = maxItems
	}
	if noHeadless {
		flags["no-headless"] = true
	}
	if logLevel != "info" {
		flags["log-level"] = logLevel
	}

	// Load configuration
	cfg, err := config.Load(configFile, flags)
	if err != nil {
		ui.PrintError("Failed to load configuration", err.Error())
		os.Exit(1)
	}

	// Ad-hoc targets from the command line
	for _, arg := range args {
		target, err := targetFromArg(arg)
		if err != nil {
			ui.PrintError("Invalid target", err.Error())
			os.Exit(1)
		}
		if maxItems > 0 {
			target.MaxItems = maxItems
		}
		cfg.Targets = append(cfg.Targets, target)
	}

	if len(cfg.Targets) == 0 {
		ui.PrintError("No targets configured", "add targets to the config file or pass a URL or search query")
		os.Exit(1)
	}

	// Initialize logger
	if err := logger.Initialize(&cfg.Logging); err != nil {
		ui.PrintError("Failed to initialize logger", err.Error())
		os.Exit(1)
	}
	log := logger.GetLogger()
	log.WithField("version", version).Info("Pinharvest starting")

	// A named account overrides the credentials from config and env
	if accountName != "" {
		manager, err := auth.NewManager(cfg.Auth.CookiesPath)
		if err != nil {
			ui.PrintError("Failed to initialize credential manager", err.Error())
			os.Exit(1)
		}
		account, err := manager.Retrieve(accountName)
		if err != nil {
			ui.PrintError("Account not found", accountName)
			ui.PrintInfo("Available accounts", "Use 'pinharvest auth list' to see stored accounts")
			os.Exit(1)
		}
		cfg.Auth.Email = account.Email
		cfg.Auth.Password = account.Password
		log.WithField("account", account.Name).Info("Using stored credentials")
		ui.PrintInfo("Using account", account.Name)
	}

	if cfg.Auth.Email == "" {
		ui.PrintWarning("No login credentials configured", "only a previously saved session can authenticate")
	}

	for _, t := range cfg.Targets {
		ui.PrintInfo("Target", fmt.Sprintf("%s (%s)", t.Name, t.Kind))
	}

	// Ctrl+C stops the run between items; collected work stays persisted
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ui.PrintHighlight("[STARTING HARVEST RUN]")

	s, err := scraper.New(cfg)
	if err != nil {
		ui.PrintError("Failed to initialize harvester", err.Error())
		os.Exit(1)
	}
	defer s.Close()
	s.SetResume(resumeRun, forceRestart)

	if err := s.Start(ctx); err != nil {
		log.WithError(err).Error("Browser launch failed")
		ui.PrintError("Browser launch failed", err.Error())
		os.Exit(1)
	}

	stats, runErr := s.Run(ctx, cfg.Targets)
	printRunSummary(stats)

	if runErr != nil {
		log.WithError(runErr).Error("Harvest run failed")
		ui.PrintError("HARVEST FAILED", runErr.Error())
		os.Exit(1)
	}

	log.WithField("run_id", stats.RunID).Info("Harvest run completed")
	ui.PrintSuccess("[HARVEST COMPLETED]")
}

func printRunSummary(stats *scraper.RunStats) {
	if stats == nil {
		return
	}
	fmt.Println()
	ui.PrintHighlight("Run Summary")
	ui.PrintInfo("Items collected", fmt.Sprintf("%d", stats.ItemsCollected))
	ui.PrintInfo("Items persisted", fmt.Sprintf("%d", stats.ItemsPersisted))
	ui.PrintInfo("Media fetched", fmt.Sprintf("%d", stats.MediaFetched))
	ui.PrintInfo("Errors", fmt.Sprintf("%d", stats.Errors))
	ui.PrintInfo("Duration", stats.Duration().Round(10*time.Millisecond).String())
	for _, t := range stats.Targets {
		line := fmt.Sprintf("%s: %d collected, %d persisted", t.State, t.Collected, t.Persisted)
		if t.Err != nil {
			line += " (" + t.Err.Error() + ")"
		}
		ui.PrintInfo("  "+t.Target, line)
	}
}

// targetFromArg turns a positional argument into a target. URLs map to
// board or profile targets by path depth; anything else is a search query.
func targetFromArg(arg string) (config.TargetConfig, error) {
	arg = strings.TrimSpace(arg)
	if arg == "" {
		return config.TargetConfig{}, fmt.Errorf("empty target")
	}

	if !strings.Contains(arg, "://") {
		return config.TargetConfig{
			Name:  arg,
			Kind:  "search",
			Query: arg,
		}, nil
	}

	u, err := url.Parse(arg)
	if err != nil {
		return config.TargetConfig{}, fmt.Errorf("unparseable target URL %q: %w", arg, err)
	}

	if strings.Contains(u.Path, "/search/") {
		query := u.Query().Get("q")
		if query == "" {
			return config.TargetConfig{}, fmt.Errorf("search URL %q has no q parameter", arg)
		}
		return config.TargetConfig{Name: query, Kind: "search", Query: query}, nil
	}

	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	switch {
	case len(segments) == 1 && segments[0] != "":
		return config.TargetConfig{Name: segments[0], Kind: "profile", URL: arg}, nil
	case len(segments) >= 2:
		return config.TargetConfig{
			Name: segments[len(segments)-2] + "/" + segments[len(segments)-1],
			Kind: "board",
			URL:  arg,
		}, nil
	default:
		return config.TargetConfig{}, fmt.Errorf("cannot infer target kind from %q", arg)
	}
}
