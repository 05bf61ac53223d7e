// Package config loads engine configuration from an HCL file.
//
// Example:
//
//	content_dir = "./content"
//	log_level   = "info"
//
//	graph {
//	  include_indirect   = true
//	  max_indirect_depth = 2
//	  parent_field       = "parent"
//	}
//
//	resolve {
//	  max_depth   = 3
//	  skip_prefix = "_"
//	}
//
//	collection "blog" {
//	  pages       = true
//	  url_prefix  = "blog"
//	  title_field = "title"
//	}
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/agentic-research/contentgraph/api"
	"github.com/agentic-research/contentgraph/internal/graph"
	"github.com/agentic-research/contentgraph/internal/ref"
	"github.com/go-playground/validator/v10"
	"github.com/hashicorp/hcl/v2/hclsimple"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// DefaultFile is looked up in the working directory when no path is given.
const DefaultFile = "contentgraph.hcl"

// Config is the resolved engine configuration.
type Config struct {
	ContentDir string `validate:"required_without=SQLite"`
	SQLite     string
	LogLevel   string `validate:"oneof=debug info warn error"`

	Graph   graph.Options
	Resolve ref.Options
	Site    api.Site
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Graph:    graph.DefaultOptions(),
		Resolve:  ref.DefaultOptions(),
		Site:     api.Site{Version: "v1"},
	}
}

// file mirrors the HCL document.
type file struct {
	ContentDir  string            `hcl:"content_dir,optional"`
	SQLite      string            `hcl:"sqlite,optional"`
	LogLevel    string            `hcl:"log_level,optional"`
	Graph       *graphBlock       `hcl:"graph,block"`
	Resolve     *resolveBlock     `hcl:"resolve,block"`
	Collections []collectionBlock `hcl:"collection,block"`
}

type graphBlock struct {
	IncludeIndirect  *bool   `hcl:"include_indirect,optional"`
	MaxIndirectDepth *int    `hcl:"max_indirect_depth,optional"`
	ParentField      *string `hcl:"parent_field,optional"`
}

type resolveBlock struct {
	MaxDepth   *int    `hcl:"max_depth,optional"`
	SkipPrefix *string `hcl:"skip_prefix,optional"`
}

type collectionBlock struct {
	Name       string `hcl:"name,label"`
	Pages      bool   `hcl:"pages,optional"`
	URLPrefix  string `hcl:"url_prefix,optional"`
	TitleField string `hcl:"title_field,optional"`
}

// Load reads path, or DefaultFile when path is empty. A missing default
// file yields Default(); a missing explicit file is an error.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}
	src, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(path, src)
}

// Parse decodes HCL (or HCL-JSON, by .json extension) source over the defaults.
func Parse(filename string, src []byte) (*Config, error) {
	var f file
	if err := hclsimple.Decode(filename, src, nil, &f); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", filename, err)
	}

	cfg := Default()
	if f.ContentDir != "" {
		cfg.ContentDir = f.ContentDir
	}
	cfg.SQLite = f.SQLite
	if f.LogLevel != "" {
		cfg.LogLevel = f.LogLevel
	}
	if g := f.Graph; g != nil {
		if g.IncludeIndirect != nil {
			cfg.Graph.IncludeIndirect = *g.IncludeIndirect
		}
		if g.MaxIndirectDepth != nil {
			cfg.Graph.MaxIndirectDepth = *g.MaxIndirectDepth
		}
		if g.ParentField != nil {
			cfg.Graph.ParentField = *g.ParentField
		}
	}
	if r := f.Resolve; r != nil {
		if r.MaxDepth != nil {
			cfg.Resolve.MaxDepth = *r.MaxDepth
		}
		if r.SkipPrefix != nil {
			cfg.Resolve.SkipPrefix = *r.SkipPrefix
		}
	}
	for _, c := range f.Collections {
		cfg.Site.Collections = append(cfg.Site.Collections, api.Collection{
			Name:       c.Name,
			Pages:      c.Pages,
			URLPrefix:  c.URLPrefix,
			TitleField: c.TitleField,
		})
	}
	return cfg, nil
}

var validate = validator.New()

// Validate checks the configuration once every override has been applied.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if err := validate.Var(c.Graph.MaxIndirectDepth, "gte=1,lte=6"); err != nil {
		return fmt.Errorf("invalid config: graph.max_indirect_depth: %w", err)
	}
	if err := validate.Var(c.Resolve.MaxDepth, "gte=1,lte=10"); err != nil {
		return fmt.Errorf("invalid config: resolve.max_depth: %w", err)
	}
	seen := make(map[string]bool, len(c.Site.Collections))
	for _, col := range c.Site.Collections {
		if seen[col.Name] {
			return fmt.Errorf("invalid config: collection %q declared twice", col.Name)
		}
		seen[col.Name] = true
	}
	return nil
}

// NewLogger builds a console logger at the configured level.
func (c *Config) NewLogger() (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	zc := zap.NewDevelopmentConfig()
	zc.Level = zap.NewAtomicLevelAt(lvl)
	zc.DisableStacktrace = true
	return zc.Build()
}
