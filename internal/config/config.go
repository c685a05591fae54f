// Package config loads service settings from defaults, an optional YAML
// file and CLEFSHIFT_-prefixed environment variables, in rising priority.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Settings is the full runtime configuration tree.
type Settings struct {
	Server  ServerSettings  `mapstructure:"server"`
	Upload  UploadSettings  `mapstructure:"upload"`
	Tasks   TaskSettings    `mapstructure:"tasks"`
	Clef    ClefSettings    `mapstructure:"clef"`
	OMR     OMRSettings     `mapstructure:"omr"`
	Render  RenderSettings  `mapstructure:"render"`
	Storage StorageSettings `mapstructure:"storage"`
}

type ServerSettings struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

type UploadSettings struct {
	Dir       string `mapstructure:"dir"`
	MaxSizeMB int64  `mapstructure:"max_size_mb"`
}

type TaskSettings struct {
	Timeout  time.Duration `mapstructure:"timeout"`
	Capacity int           `mapstructure:"capacity"`
	Workers  int           `mapstructure:"workers"`
	TTL      time.Duration `mapstructure:"ttl"`
}

type ClefSettings struct {
	MaxLedgerLines int    `mapstructure:"max_ledger_lines"`
	SourceClef     string `mapstructure:"source_clef"`
	TargetClef     string `mapstructure:"target_clef"`
}

// OMRSettings configure the remote recognition service. With an empty
// BaseURL the built-in recognizer is used instead.
type OMRSettings struct {
	BaseURL      string `mapstructure:"base_url"`
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	TokenURL     string `mapstructure:"token_url"`
}

type RenderSettings struct {
	Width  int `mapstructure:"width"`
	Height int `mapstructure:"height"`
}

type StorageSettings struct {
	Driver string `mapstructure:"driver"` // memory or sqlite
	Path   string `mapstructure:"path"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8000)
	v.SetDefault("upload.dir", "data/uploads")
	v.SetDefault("upload.max_size_mb", 100)
	v.SetDefault("tasks.timeout", 300*time.Second)
	v.SetDefault("tasks.capacity", 10)
	v.SetDefault("tasks.workers", 4)
	v.SetDefault("tasks.ttl", time.Hour)
	v.SetDefault("clef.max_ledger_lines", 6)
	v.SetDefault("clef.source_clef", "alto")
	v.SetDefault("clef.target_clef", "treble")
	v.SetDefault("omr.base_url", "")
	v.SetDefault("omr.client_id", "")
	v.SetDefault("omr.client_secret", "")
	v.SetDefault("omr.token_url", "")
	v.SetDefault("render.width", 800)
	v.SetDefault("render.height", 600)
	v.SetDefault("storage.driver", "memory")
	v.SetDefault("storage.path", "data/tasks.db")
}

// Load reads the settings. path names an explicit config file; when empty,
// clefshift.yaml is searched for in the working directory and a missing
// file is fine.
func Load(path string) (Settings, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("CLEFSHIFT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("clefshift")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Settings{}, fmt.Errorf("config: read: %w", err)
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return Settings{}, fmt.Errorf("config: unmarshal: %w", err)
	}
	return s, s.validate()
}

func (s Settings) validate() error {
	if s.Server.Port <= 0 || s.Server.Port > 65535 {
		return fmt.Errorf("config: invalid server port %d", s.Server.Port)
	}
	if s.Tasks.Capacity <= 0 {
		return fmt.Errorf("config: task capacity must be positive")
	}
	if s.Tasks.Workers <= 0 {
		return fmt.Errorf("config: worker count must be positive")
	}
	switch s.Storage.Driver {
	case "memory", "sqlite":
	default:
		return fmt.Errorf("config: unknown storage driver %q", s.Storage.Driver)
	}
	return nil
}

// Addr is the listen address in host:port form.
func (s ServerSettings) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// MaxBytes is the upload cap in bytes.
func (s UploadSettings) MaxBytes() int64 {
	return s.MaxSizeMB << 20
}
