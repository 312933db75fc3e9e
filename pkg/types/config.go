package types

// Config represents the overall application configuration
type Config struct {
	Server  ServerConfig  `yaml:"server" json:"server"`
	Storage StorageConfig `yaml:"storage" json:"storage"`
	Player  PlayerConfig  `yaml:"player" json:"player"`
	Export  ExportConfig  `yaml:"export" json:"export"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Host         string `yaml:"host" json:"host"`
	Port         int    `yaml:"port" json:"port"`
	ReadTimeout  int    `yaml:"read_timeout" json:"read_timeout"`   // seconds
	WriteTimeout int    `yaml:"write_timeout" json:"write_timeout"` // seconds
}

// StorageConfig defines storage adapter settings
type StorageConfig struct {
	Adapter string            `yaml:"adapter" json:"adapter"` // "local" or "s3"
	Local   LocalStorageOpts  `yaml:"local" json:"local"`
	S3      S3StorageOpts     `yaml:"s3" json:"s3"`
	Options map[string]string `yaml:"options" json:"options"` // Additional adapter-specific options
}

// LocalStorageOpts configures the local filesystem adapter
type LocalStorageOpts struct {
	BasePath string `yaml:"base_path" json:"base_path"`
}

// S3StorageOpts configures the S3-compatible adapter
type S3StorageOpts struct {
	Endpoint        string `yaml:"endpoint" json:"endpoint"`
	Region          string `yaml:"region" json:"region"`
	Bucket          string `yaml:"bucket" json:"bucket"`
	AccessKeyID     string `yaml:"access_key_id" json:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key" json:"secret_access_key"`
	UseSSL          bool   `yaml:"use_ssl" json:"use_ssl"`
}

// PlayerConfig holds pagination and timing defaults for reading sessions
type PlayerConfig struct {
	TargetWordsPerPage int     `yaml:"target_words_per_page" json:"target_words_per_page"`
	CoverWeight        float64 `yaml:"cover_weight" json:"cover_weight"` // dwell-time weight of the cover page
}

// ExportConfig holds layout settings for the static document exporter
type ExportConfig struct {
	PageWidth     int     `yaml:"page_width" json:"page_width"`   // pixels
	PageHeight    int     `yaml:"page_height" json:"page_height"` // pixels
	Margin        int     `yaml:"margin" json:"margin"`           // pixels
	FontPath      string  `yaml:"font_path" json:"font_path"`     // TTF file for body text
	FontSize      float64 `yaml:"font_size" json:"font_size"`
	TitleFontSize float64 `yaml:"title_font_size" json:"title_font_size"`
	LineSpacing   float64 `yaml:"line_spacing" json:"line_spacing"` // multiple of line height
}
