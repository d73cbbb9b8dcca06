// Package cmd wires the driftline engine behind a thin CLI: lifecycle
// hooks in, drift queries and conflict resolution out.
package cmd

import (
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/driftline/driftline/internal/completion"
	"github.com/driftline/driftline/internal/config"
	"github.com/driftline/driftline/internal/gitio"
	"github.com/driftline/driftline/internal/logging"
	"github.com/driftline/driftline/internal/resolve"
	"github.com/driftline/driftline/internal/timeline"
)

var rootCmd = &cobra.Command{
	Use:   "driftline",
	Short: "File timeline tracking and merge reconciliation for concurrent coding tasks",
	Long: `Driftline records how files evolve on the main branch while
autonomous coding tasks work in isolated workspaces, and reconciles each
task's changes against that evolution before they land.`,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is $HOME/.config/driftline/config.yaml)")
	rootCmd.PersistentFlags().StringP("repo", "r", ".", "repository directory")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("repo", rootCmd.PersistentFlags().Lookup("repo"))
}

func initConfig() {
	config.SetDefaults()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(config.ConfigDir())
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("DRIFTLINE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	_ = viper.ReadInConfig()
}

// engine bundles the wired components a subcommand works with.
type engine struct {
	cfg      *config.Config
	logger   *logging.Logger
	repo     *gitio.Repo
	store    *timeline.Store
	tracker  *timeline.Tracker
	resolver *resolve.Resolver
}

// newEngine wires config, logging, git, store, tracker, and resolver for
// the repository named by the --repo flag.
func newEngine() (*engine, error) {
	cfg := config.Get()

	logger, err := logging.NewLogger(cfg.Logging.Dir, cfg.Logging.Level)
	if err != nil {
		return nil, err
	}

	for _, problem := range cfg.Validate() {
		logger.Warn("config problem", "problem", problem)
	}

	repoDir := viper.GetString("repo")
	repo, err := gitio.Open(repoDir, cfg.Git.TargetBranch)
	if err != nil {
		return nil, err
	}

	storageDir := cfg.Storage.Dir
	if storageDir == "" {
		storageDir = filepath.Join(repo.Root(), ".driftline", "timelines")
	}
	persist, err := timeline.NewJSONStore(storageDir)
	if err != nil {
		return nil, err
	}

	store := timeline.NewStore(persist, logger)
	if err := store.LoadAll(); err != nil {
		logger.Warn("failed to load persisted timelines", "error", err)
	}

	tracker := timeline.NewTracker(store, repo, logger)
	svc := completion.NewCLIService(cfg.Completion.Command, cfg.Completion.TimeoutSeconds)
	resolver := resolve.New(tracker, svc, cfg, logger)

	return &engine{
		cfg:      cfg,
		logger:   logger,
		repo:     repo,
		store:    store,
		tracker:  tracker,
		resolver: resolver,
	}, nil
}

// close flushes the engine's logger.
func (e *engine) close() {
	e.store.UpdateIndex()
	_ = e.logger.Close()
}
