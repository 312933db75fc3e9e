package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/noorkids/storyplayer/pkg/types"
	"gopkg.in/yaml.v3"
)

// Load reads and parses the configuration file
// It also supports environment variable overrides with SP_ prefix
func Load(configPath string) (*types.Config, error) {
	// Read config file
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse YAML
	var cfg types.Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Apply environment variable overrides
	applyEnvOverrides(&cfg)

	// Validate configuration
	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// Validate checks if the configuration is valid
func Validate(cfg *types.Config) error {
	// Validate server config
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", cfg.Server.Port)
	}

	// Validate storage adapter
	if cfg.Storage.Adapter != "local" && cfg.Storage.Adapter != "s3" {
		return fmt.Errorf("invalid storage adapter: %s (must be 'local' or 's3')", cfg.Storage.Adapter)
	}

	if cfg.Storage.Adapter == "local" {
		if cfg.Storage.Local.BasePath == "" {
			return fmt.Errorf("local storage base_path is required")
		}
		// Ensure base path is absolute
		if !filepath.IsAbs(cfg.Storage.Local.BasePath) {
			return fmt.Errorf("local storage base_path must be absolute: %s", cfg.Storage.Local.BasePath)
		}
	}

	if cfg.Storage.Adapter == "s3" {
		if cfg.Storage.S3.Bucket == "" {
			return fmt.Errorf("s3 bucket is required")
		}
		if cfg.Storage.S3.Region == "" {
			return fmt.Errorf("s3 region is required")
		}
	}

	// Validate player config
	if cfg.Player.TargetWordsPerPage <= 0 {
		cfg.Player.TargetWordsPerPage = 80 // default
	}
	if cfg.Player.CoverWeight <= 0 {
		cfg.Player.CoverWeight = 1.5 // default
	}

	// Validate export layout
	if cfg.Export.PageWidth <= 0 {
		cfg.Export.PageWidth = 1024
	}
	if cfg.Export.PageHeight <= 0 {
		cfg.Export.PageHeight = 1448
	}
	if cfg.Export.Margin <= 0 {
		cfg.Export.Margin = 72
	}
	if cfg.Export.Margin*2 >= cfg.Export.PageWidth {
		return fmt.Errorf("export margin %d leaves no room on a %dpx page", cfg.Export.Margin, cfg.Export.PageWidth)
	}
	if cfg.Export.FontSize <= 0 {
		cfg.Export.FontSize = 28
	}
	if cfg.Export.TitleFontSize <= 0 {
		cfg.Export.TitleFontSize = 44
	}
	if cfg.Export.LineSpacing <= 0 {
		cfg.Export.LineSpacing = 1.4
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides
// Environment variables should be prefixed with SP_ (StoryPlayer)
func applyEnvOverrides(cfg *types.Config) {
	// Server overrides
	if val := os.Getenv("SP_SERVER_HOST"); val != "" {
		cfg.Server.Host = val
	}
	if val := os.Getenv("SP_SERVER_PORT"); val != "" {
		fmt.Sscanf(val, "%d", &cfg.Server.Port)
	}

	// Storage overrides
	if val := os.Getenv("SP_STORAGE_ADAPTER"); val != "" {
		cfg.Storage.Adapter = val
	}
	if val := os.Getenv("SP_STORAGE_LOCAL_BASE_PATH"); val != "" {
		cfg.Storage.Local.BasePath = val
	}
	if val := os.Getenv("SP_STORAGE_S3_BUCKET"); val != "" {
		cfg.Storage.S3.Bucket = val
	}
	if val := os.Getenv("SP_STORAGE_S3_REGION"); val != "" {
		cfg.Storage.S3.Region = val
	}
	if val := os.Getenv("SP_STORAGE_S3_ENDPOINT"); val != "" {
		cfg.Storage.S3.Endpoint = val
	}
	if val := os.Getenv("SP_STORAGE_S3_ACCESS_KEY_ID"); val != "" {
		cfg.Storage.S3.AccessKeyID = val
	}
	if val := os.Getenv("SP_STORAGE_S3_SECRET_ACCESS_KEY"); val != "" {
		cfg.Storage.S3.SecretAccessKey = val
	}

	// Player overrides
	if val := os.Getenv("SP_PLAYER_TARGET_WORDS_PER_PAGE"); val != "" {
		fmt.Sscanf(val, "%d", &cfg.Player.TargetWordsPerPage)
	}
	if val := os.Getenv("SP_PLAYER_COVER_WEIGHT"); val != "" {
		fmt.Sscanf(val, "%f", &cfg.Player.CoverWeight)
	}

	// Export overrides
	if val := os.Getenv("SP_EXPORT_FONT_PATH"); val != "" {
		cfg.Export.FontPath = val
	}
}

// GetDefault returns a default configuration
func GetDefault() *types.Config {
	return &types.Config{
		Server: types.ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  15,
			WriteTimeout: 15,
		},
		Storage: types.StorageConfig{
			Adapter: "local",
			Local: types.LocalStorageOpts{
				BasePath: "/var/lib/storyplayer/storage",
			},
		},
		Player: types.PlayerConfig{
			TargetWordsPerPage: 80,
			CoverWeight:        1.5,
		},
		Export: types.ExportConfig{
			PageWidth:     1024,
			PageHeight:    1448,
			Margin:        72,
			FontSize:      28,
			TitleFontSize: 44,
			LineSpacing:   1.4,
		},
	}
}
