// Package config provides configuration loading for braind.
//
// Configuration is loaded from a YAML file plus environment variable
// overrides, via LoadWithFile. This package aggregates the leaf configs
// of every storage, retrieval, and indexing component braind wires
// together; each subsystem owns and validates its own config type, this
// package only composes them and applies the security-hardening loading
// mechanics (see loader.go).
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/fyrsmithlabs/braind/internal/embeddings"
	"github.com/fyrsmithlabs/braind/internal/indexer"
	"github.com/fyrsmithlabs/braind/internal/llmclient"
	"github.com/fyrsmithlabs/braind/internal/memorystore"
	"github.com/fyrsmithlabs/braind/internal/secrets"
)

// Config holds the complete braind configuration.
type Config struct {
	Production  ProductionConfig  `koanf:"production"`
	Server      ServerConfig      `koanf:"server"`
	MemoryStore MemoryStoreConfig `koanf:"memorystore"`
	Embeddings  embeddings.Config `koanf:"embeddings"`
	Indexer     indexer.Config    `koanf:"indexer"`
	LLMClient   llmclient.Config  `koanf:"llmclient"`
	Secrets     secrets.Config    `koanf:"secrets"`
	Context     ContextConfig     `koanf:"context"`
}

// ServerConfig holds the health/metrics HTTP server configuration.
type ServerConfig struct {
	Port            int           `koanf:"http_port"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// MemoryStoreConfig selects and configures the memorystore.Store backend.
type MemoryStoreConfig struct {
	// Backend is "postgres" (production) or "chromem" (local/dev, no
	// external database required). Default: "chromem".
	Backend  string                    `koanf:"backend"`
	Postgres memorystore.PGConfig      `koanf:"postgres"`
	Chromem  memorystore.ChromemConfig `koanf:"chromem"`
}

// ContextConfig configures the Context Assembler.
type ContextConfig struct {
	// BaseSystemPromptPath points at the base system prompt text file.
	// Empty falls back to the built-in default prompt.
	BaseSystemPromptPath string `koanf:"base_system_prompt_path"`
}

// Load builds a Config from hardcoded defaults with no file or
// environment overlay. Prefer LoadWithFile for normal startup; Load is
// useful for tests that want a valid, ready-to-validate Config without
// touching the filesystem.
func Load() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Validate validates the configuration, including every aggregated
// subsystem config that defines its own Validate method.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be 1-65535)", c.Server.Port)
	}
	if c.Server.ShutdownTimeout <= 0 {
		return errors.New("shutdown timeout must be positive")
	}

	switch c.MemoryStore.Backend {
	case "postgres":
		if c.MemoryStore.Postgres.DSN == "" {
			return errors.New("memorystore.postgres.dsn is required when backend is postgres")
		}
	case "chromem":
		if err := validatePath(c.MemoryStore.Chromem.Path); err != nil {
			return fmt.Errorf("invalid memorystore.chromem.path: %w", err)
		}
	default:
		return fmt.Errorf("unsupported memorystore backend: %q (supported: postgres, chromem)", c.MemoryStore.Backend)
	}

	if c.Embeddings.OpenAI.BaseURL != "" {
		if err := validateURL(c.Embeddings.OpenAI.BaseURL); err != nil {
			return fmt.Errorf("invalid embeddings.openai.base_url: %w", err)
		}
	}

	if c.LLMClient.BaseURL != "" {
		if err := validateURL(c.LLMClient.BaseURL); err != nil {
			return fmt.Errorf("invalid llmclient.base_url: %w", err)
		}
	}

	if c.Context.BaseSystemPromptPath != "" {
		if err := validatePath(c.Context.BaseSystemPromptPath); err != nil {
			return fmt.Errorf("invalid context.base_system_prompt_path: %w", err)
		}
	}

	if err := c.Secrets.Validate(); err != nil {
		return fmt.Errorf("secrets config validation failed: %w", err)
	}

	if err := c.Production.Validate(); err != nil {
		return fmt.Errorf("production config validation failed: %w", err)
	}

	return nil
}

// ProductionConfig holds production deployment safety configuration.
type ProductionConfig struct {
	// Enabled indicates whether production mode is active.
	// Set via CONTEXTD_PRODUCTION_MODE=1 environment variable.
	Enabled bool `koanf:"enabled"`

	// LocalModeAcknowledged allows development features in production mode.
	// Set via CONTEXTD_LOCAL_MODE=1 environment variable.
	// Use only for local development/testing.
	LocalModeAcknowledged bool `koanf:"local_mode_acknowledged"`

	// RequireAuthentication enforces authentication in production.
	RequireAuthentication bool `koanf:"require_authentication"`

	// AuthenticationConfigured indicates if auth is properly set up.
	AuthenticationConfigured bool `koanf:"authentication_configured"`

	// RequireTLS enforces TLS for external services (Postgres, the LLM
	// and embeddings endpoints).
	RequireTLS bool `koanf:"require_tls"`

	// AllowNoIsolation permits NoIsolation mode (testing only).
	// Always false in production mode.
	AllowNoIsolation bool `koanf:"allow_no_isolation"`
}

// IsProduction returns true if running in production mode.
func (c *ProductionConfig) IsProduction() bool {
	return c.Enabled
}

// IsLocal returns true if local mode is acknowledged.
func (c *ProductionConfig) IsLocal() bool {
	return c.LocalModeAcknowledged
}

// Validate checks production configuration for security issues.
func (c *ProductionConfig) Validate() error {
	if !c.Enabled {
		return nil // Not in production, skip validation
	}

	if c.AllowNoIsolation {
		return fmt.Errorf("SECURITY: NoIsolation mode cannot be enabled in production")
	}

	if c.RequireAuthentication && !c.AuthenticationConfigured {
		return fmt.Errorf("SECURITY: RequireAuthentication enabled but authentication not configured")
	}

	return nil
}

// validatePath checks if a path is safe (no path traversal)
func validatePath(path string) error {
	// Check for path traversal sequences
	if strings.Contains(path, "..") {
		return fmt.Errorf("path contains traversal sequence: %s", path)
	}

	// For absolute paths, verify the cleaned path doesn't escape
	if filepath.IsAbs(path) {
		clean := filepath.Clean(path)
		// Count directory depth - compare original vs cleaned
		// If cleaned has fewer separators, upward traversal occurred
		origDepth := strings.Count(path, string(filepath.Separator))
		cleanDepth := strings.Count(clean, string(filepath.Separator))

		if cleanDepth < origDepth-1 {
			return fmt.Errorf("path traversal detected: %s (resolves to %s)", path, clean)
		}
	}

	return nil
}

// validateURL checks if a URL uses allowed schemes (http/https only)
func validateURL(urlStr string) error {
	// Only allow http and https schemes
	if !strings.HasPrefix(urlStr, "http://") && !strings.HasPrefix(urlStr, "https://") {
		return fmt.Errorf("URL must use http:// or https:// scheme, got: %s", urlStr)
	}
	return nil
}
