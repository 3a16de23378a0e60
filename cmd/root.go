package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/joescharf/civic/internal/classifier"
	"github.com/joescharf/civic/internal/lifecycle"
	"github.com/joescharf/civic/internal/logging"
	"github.com/joescharf/civic/internal/models"
	"github.com/joescharf/civic/internal/output"
	"github.com/joescharf/civic/internal/store"
)

// Build information, set from main via Execute.
var (
	buildVersion = "dev"
	buildCommit  = "none"
	buildDate    = "unknown"
)

// Package-level shared dependencies, initialized in cobra.OnInitialize.
var (
	ui        *output.UI
	dataStore store.Store
	logger    *zap.Logger
	triage    *classifier.Classifier

	verbose bool
	dryRun  bool
)

var rootCmd = &cobra.Command{
	Use:   "civic",
	Short: "Civic complaint tracker - triage, route and resolve citizen complaints",
	Long: `civic tracks municipal complaints from submission to verified closure.
Each complaint is classified into a department and a priority, queued for
that department's admins, and closed once the citizen confirms the fix.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	DisableAutoGenTag: true,
}

// Execute is the main entry point called from main.go.
func Execute(version, commit, date string) {
	buildVersion = version
	buildCommit = commit
	buildDate = date

	err := rootCmd.Execute()
	if logger != nil {
		_ = logger.Sync()
	}
	if dataStore != nil {
		_ = dataStore.Close()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig, initDeps)

	rootCmd.RunE = func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	}

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVarP(&dryRun, "dry-run", "n", false, "Show what would happen without making changes")
	rootCmd.PersistentFlags().String("config", "", "Config file (default ~/.config/civic/config.yaml)")
}

func initConfig() {
	// .env values become plain environment variables before viper reads them.
	_ = godotenv.Load()

	// If --config is explicitly set, use that file
	if cfgFile, _ := rootCmd.PersistentFlags().GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		dir, err := configDirFunc()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: cannot find home directory: %v\n", err)
			os.Exit(1)
		}
		viper.AddConfigPath(dir)
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("CIVIC")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	defaultDir, _ := configDirFunc()
	setDefaults(defaultDir)

	// Read config file if it exists (optional)
	_ = viper.ReadInConfig()
}

// setDefaults registers every config key with its default value.
func setDefaults(stateDir string) {
	viper.SetDefault("state_dir", stateDir)
	viper.SetDefault("db_path", filepath.Join(stateDir, "civic.db"))
	viper.SetDefault("corpus_path", filepath.Join(stateDir, "corpus.csv"))
	viper.SetDefault("port", 8080)

	def := lifecycle.DefaultPolicy()
	viper.SetDefault("policy.solve_same_department", def.SolveRequiresSameDepartment)
	viper.SetDefault("policy.transfer_same_department", def.TransferRequiresSameDepartment)
	viper.SetDefault("policy.default_rating", def.DefaultRating)

	viper.SetDefault("log.level", "warn")
	viper.SetDefault("log.format", "console")

	viper.SetDefault("anthropic.api_key", "")
	viper.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
}

func initDeps() {
	ui = output.New()
	ui.Verbose = verbose
	ui.DryRun = dryRun

	// Store, logger and classifier are initialized lazily so that config
	// and version commands run without a database.
}

// getStore returns the shared store, initializing it on first call.
func getStore() (store.Store, error) {
	if dataStore != nil {
		return dataStore, nil
	}

	dbPath := viper.GetString("db_path")
	s, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := s.Migrate(context.Background()); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	dataStore = s
	return dataStore, nil
}

// getLogger returns the shared structured logger built from log.level and
// log.format. --verbose forces debug level.
func getLogger() (*zap.Logger, error) {
	if logger != nil {
		return logger, nil
	}

	cfg := logging.Config{
		Level:  viper.GetString("log.level"),
		Format: viper.GetString("log.format"),
	}
	if verbose {
		cfg.Level = "debug"
	}
	l, err := logging.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}

	logger = l
	return logger, nil
}

// getClassifier returns the shared classifier, fitted on corpus_path. A
// missing or unusable corpus leaves it in keyword-only mode with a warning.
func getClassifier() (*classifier.Classifier, error) {
	if triage != nil {
		return triage, nil
	}

	l, err := getLogger()
	if err != nil {
		return nil, err
	}

	corpus := viper.GetString("corpus_path")
	c, err := classifier.FromCorpusFile(corpus, classifier.WithLogger(l.Named("classifier")))
	if err != nil {
		if !errors.Is(err, classifier.ErrUnavailable) {
			return nil, err
		}
		l.Warn("classifier running on keywords only",
			zap.String("corpus_path", corpus),
			zap.Error(err))
	}

	triage = c
	return triage, nil
}

// policyFromConfig reads the department-match policy keys.
func policyFromConfig() lifecycle.Policy {
	return lifecycle.Policy{
		SolveRequiresSameDepartment:    viper.GetBool("policy.solve_same_department"),
		TransferRequiresSameDepartment: viper.GetBool("policy.transfer_same_department"),
		DefaultRating:                  viper.GetInt("policy.default_rating"),
	}
}

// getManager wires the store, classifier and logger into a lifecycle manager.
func getManager() (*lifecycle.Manager, error) {
	s, err := getStore()
	if err != nil {
		return nil, err
	}
	c, err := getClassifier()
	if err != nil {
		return nil, err
	}
	l, err := getLogger()
	if err != nil {
		return nil, err
	}
	return lifecycle.NewManager(s, c,
		lifecycle.WithPolicy(policyFromConfig()),
		lifecycle.WithLogger(l.Named("lifecycle")),
	), nil
}

// resolveActor looks up the user named by --as.
func resolveActor(ctx context.Context, s store.Store, username string) (*models.User, error) {
	if username == "" {
		return nil, errors.New("--as is required: name the acting user")
	}
	u, err := s.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("user not found: %s (add it with 'civic user add')", username)
		}
		return nil, err
	}
	return u, nil
}

// shortID returns the first 12 characters of an ID for display.
func shortID(id string) string {
	return lifecycle.ShortID(id)
}
