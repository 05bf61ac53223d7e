package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/agentic-research/contentgraph/internal/config"
	"github.com/agentic-research/contentgraph/internal/content"
	"github.com/agentic-research/contentgraph/internal/graph"
	"github.com/agentic-research/contentgraph/internal/query"
	"github.com/agentic-research/contentgraph/internal/ref"
	"github.com/agentic-research/contentgraph/internal/relations"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	configPath string
	contentDir string
	sqlitePath string
	logLevel   string
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file (default ./"+config.DefaultFile+" if present)")
	rootCmd.PersistentFlags().StringVarP(&contentDir, "content", "d", "", "Content directory (overrides config)")
	rootCmd.PersistentFlags().StringVar(&sqlitePath, "db", "", "SQLite content database (overrides content directory)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
}

var rootCmd = &cobra.Command{
	Use:           "contentgraph",
	Short:         "Contentgraph: relationship graph and query engine for content collections",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// env is everything a command needs, wired from config and flags.
type env struct {
	cfg       *config.Config
	logger    *zap.Logger
	store     content.Store
	cache     *graph.Cache
	relations *relations.Resolver
	refs      *ref.Resolver
	engine    *query.Engine
	closers   []func() error
}

// loadConfig reads the config file and applies flag overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	flags := cmd.Flags()
	if flags.Changed("content") {
		cfg.ContentDir = contentDir
	}
	if flags.Changed("db") {
		cfg.SQLite = sqlitePath
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = logLevel
	}
	return cfg, nil
}

func openEnv(cmd *cobra.Command) (*env, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger, err := cfg.NewLogger()
	if err != nil {
		return nil, err
	}
	e := &env{cfg: cfg, logger: logger}
	e.closers = append(e.closers, func() error {
		_ = logger.Sync() // stderr sync fails on some platforms
		return nil
	})

	if cfg.SQLite != "" {
		s, err := content.OpenSQLiteStore(cfg.SQLite)
		if err != nil {
			return nil, err
		}
		e.store = s
		e.closers = append(e.closers, s.Close)
		logger.Debug("using sqlite content store", zap.String("path", cfg.SQLite))
	} else {
		e.store = content.NewFileStore(osfs.New(cfg.ContentDir))
		logger.Debug("using file content store", zap.String("dir", cfg.ContentDir))
	}

	e.cache = graph.NewCache(e.store, graph.WithLogger(logger))
	e.relations = relations.NewResolver(e.cache, cfg.Graph, logger)
	e.refs = ref.NewResolver(e.store, &cfg.Site, nil, cfg.Resolve, logger)
	e.engine = query.NewEngine(e.store, e.relations, logger)
	return e, nil
}

func (e *env) Close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		_ = e.closers[i]() // best effort on exit
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
