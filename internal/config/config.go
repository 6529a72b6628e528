package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"shortsync/internal/domain"
)

type Config struct {
	Channels []string                 `yaml:"channels"`
	Database DatabaseConfig           `yaml:"database"`
	Sync     SyncConfig               `yaml:"sync"`
	Acquire  AcquireConfig            `yaml:"acquire"`
	Ytdlp    YtdlpConfig              `yaml:"ytdlp"`
	FFmpeg   FFmpegConfig             `yaml:"ffmpeg"`
	Profiles map[string]ProfileConfig `yaml:"profiles"`
	RabbitMQ RabbitMQConfig           `yaml:"rabbitmq"`
	Metrics  MetricsConfig            `yaml:"metrics"`
	LogLevel string                   `yaml:"log_level"`
}

type DatabaseConfig struct {
	Driver   string `yaml:"driver"` // "sqlite" or "postgres"
	Path     string `yaml:"path"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
}

func (d DatabaseConfig) DSN() string {
	if d.Driver == "sqlite" {
		return d.Path
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

type SyncConfig struct {
	Interval        time.Duration        `yaml:"interval"`
	Views           []domain.ListingView `yaml:"views"`
	MaxItemsPerView int                  `yaml:"max_items_per_view"`
	AfterDate       string               `yaml:"after_date"`
	ChannelWorkers  int                  `yaml:"channel_workers"`
	ItemWorkers     int                  `yaml:"item_workers"`
	NormalsPolicy   domain.NormalsPolicy `yaml:"normals_policy"`
}

type AcquireConfig struct {
	OutputDir string `yaml:"output_dir"`
	TempDir   string `yaml:"temp_dir"`
	Language  string `yaml:"language"`
	Profile   string `yaml:"profile"`
}

type YtdlpConfig struct {
	Path         string        `yaml:"path"`
	ListTimeout  time.Duration `yaml:"list_timeout"`
	FetchTimeout time.Duration `yaml:"fetch_timeout"`
	Retry        RetryConfig   `yaml:"retry"`
}

type RetryConfig struct {
	MaxAttempts    int           `yaml:"max_attempts"`
	InitialBackoff time.Duration `yaml:"initial_backoff"`
	MaxBackoff     time.Duration `yaml:"max_backoff"`
}

type FFmpegConfig struct {
	Path    string        `yaml:"path"`
	Timeout time.Duration `yaml:"timeout"`
}

type ProfileConfig struct {
	Extension   string   `yaml:"extension"`
	Format      string   `yaml:"format"`
	Args        []string `yaml:"args"`
	Passthrough bool     `yaml:"passthrough"`
	Height      int      `yaml:"height"`
	FPS         int      `yaml:"fps"`
}

type RabbitMQConfig struct {
	URL        string `yaml:"url"`
	Exchange   string `yaml:"exchange"`
	RoutingKey string `yaml:"routing_key"`
	QueueName  string `yaml:"queue_name"`
}

// Enabled reports whether acquisition events should be published.
func (r RabbitMQConfig) Enabled() bool {
	return r.URL != ""
}

type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	return Parse(data)
}

// Parse decodes a YAML document after expanding ${VAR} references, then applies
// defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.setDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) setDefaults() {
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	if c.Database.Driver == "sqlite" && c.Database.Path == "" {
		c.Database.Path = "shortsync.db"
	}
	if c.Database.Driver == "postgres" {
		if c.Database.Port == 0 {
			c.Database.Port = 5432
		}
		if c.Database.SSLMode == "" {
			c.Database.SSLMode = "disable"
		}
	}
	if len(c.Sync.Views) == 0 {
		c.Sync.Views = append([]domain.ListingView(nil), domain.DefaultViews...)
	}
	if c.Sync.MaxItemsPerView == 0 {
		c.Sync.MaxItemsPerView = 30
	}
	if c.Sync.ChannelWorkers == 0 {
		c.Sync.ChannelWorkers = 2
	}
	if c.Sync.ItemWorkers == 0 {
		c.Sync.ItemWorkers = 2
	}
	if c.Sync.NormalsPolicy == "" {
		c.Sync.NormalsPolicy = domain.NormalsSkip
	}
	if c.Acquire.OutputDir == "" {
		c.Acquire.OutputDir = "downloads"
	}
	if c.Acquire.Profile == "" {
		c.Acquire.Profile = "h264-mp4"
	}
	if c.Ytdlp.Path == "" {
		c.Ytdlp.Path = "yt-dlp"
	}
	if c.Ytdlp.ListTimeout == 0 {
		c.Ytdlp.ListTimeout = 5 * time.Minute
	}
	if c.Ytdlp.FetchTimeout == 0 {
		c.Ytdlp.FetchTimeout = 30 * time.Minute
	}
	if c.Ytdlp.Retry.MaxAttempts == 0 {
		c.Ytdlp.Retry.MaxAttempts = 3
	}
	if c.Ytdlp.Retry.InitialBackoff == 0 {
		c.Ytdlp.Retry.InitialBackoff = 1 * time.Second
	}
	if c.Ytdlp.Retry.MaxBackoff == 0 {
		c.Ytdlp.Retry.MaxBackoff = 30 * time.Second
	}
	if c.FFmpeg.Path == "" {
		c.FFmpeg.Path = "ffmpeg"
	}
	if c.FFmpeg.Timeout == 0 {
		c.FFmpeg.Timeout = 30 * time.Minute
	}
	if c.Profiles == nil {
		c.Profiles = make(map[string]ProfileConfig)
	}
	for name, p := range DefaultProfiles() {
		if _, ok := c.Profiles[name]; !ok {
			c.Profiles[name] = p
		}
	}
	if c.RabbitMQ.Exchange == "" {
		c.RabbitMQ.Exchange = "shortsync"
	}
	if c.RabbitMQ.RoutingKey == "" {
		c.RabbitMQ.RoutingKey = "acquired"
	}
	if c.RabbitMQ.QueueName == "" {
		c.RabbitMQ.QueueName = "shortsync_acquired"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

func (c *Config) Validate() error {
	var errs []error

	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Errorf("database.driver: unsupported driver %q", c.Database.Driver))
	}
	for _, v := range c.Sync.Views {
		if v != domain.ViewShorts && v != domain.ViewVideos {
			errs = append(errs, fmt.Errorf("sync.views: unknown view %q", v))
		}
	}
	if c.Sync.AfterDate != "" {
		if _, err := time.Parse("20060102", c.Sync.AfterDate); err != nil {
			errs = append(errs, fmt.Errorf("sync.after_date: want YYYYMMDD, got %q", c.Sync.AfterDate))
		}
	}
	if !c.Sync.NormalsPolicy.Valid() {
		errs = append(errs, fmt.Errorf("sync.normals_policy: want ask or skip, got %q", c.Sync.NormalsPolicy))
	}
	if c.Sync.ChannelWorkers < 0 || c.Sync.ItemWorkers < 0 {
		errs = append(errs, errors.New("sync: worker counts must not be negative"))
	}
	if _, ok := c.Profiles[c.Acquire.Profile]; !ok {
		errs = append(errs, fmt.Errorf("acquire.profile: unknown profile %q", c.Acquire.Profile))
	}
	for name, p := range c.Profiles {
		if p.Extension == "" || p.Format == "" {
			errs = append(errs, fmt.Errorf("profiles.%s: extension and format are required", name))
		}
	}

	return errors.Join(errs...)
}

// Profile resolves the selected transcode profile.
func (c *Config) Profile() domain.TranscodeProfile {
	p := c.Profiles[c.Acquire.Profile]
	return domain.TranscodeProfile{
		Name:        c.Acquire.Profile,
		Extension:   p.Extension,
		Format:      p.Format,
		Args:        append([]string(nil), p.Args...),
		Passthrough: p.Passthrough,
		Height:      p.Height,
		FPS:         p.FPS,
	}
}
