// Package config loads and validates the three human-edited config files
// from spec §6: the channel list, the genre-keyword rules, and the run
// config (including the env-var-named API key).
package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/kureha2310/youtube-timestamp-scraper/internal/genre"
	"github.com/kureha2310/youtube-timestamp-scraper/internal/model"
)

// RunConfig is the run config file (spec §6).
type RunConfig struct {
	APIKeyEnv            string  `koanf:"api_key_env" validate:"required"`
	DailyQuotaUnits      int     `koanf:"daily_quota_units" validate:"required,gt=0"`
	MaxParallelChannels  int     `koanf:"max_parallel_channels" validate:"required,gt=0"`
	CommentsPerVideo     int     `koanf:"comments_per_video" validate:"required,gt=0"`
	ConfidenceThreshold  float64 `koanf:"confidence_threshold" validate:"gte=0,lte=1"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("channel_id", func(fl validator.FieldLevel) bool {
		return channelIDPattern.MatchString(fl.Field().String())
	})
	return v
}

// LoadChannels reads and validates the channel list config file.
func LoadChannels(path string) ([]model.Channel, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, model.NewError(model.KindConfig, "config.LoadChannels", err)
	}

	var channels []model.Channel
	if err := k.Unmarshal("channels", &channels); err != nil {
		return nil, model.NewError(model.KindConfig, "config.LoadChannels", err)
	}

	seen := make(map[string]bool, len(channels))
	for _, c := range channels {
		if err := validate.Struct(c); err != nil {
			return nil, model.NewError(model.KindConfig, "config.LoadChannels", err)
		}
		if seen[c.ID] {
			return nil, model.NewError(model.KindConfig, "config.LoadChannels", fmt.Errorf("duplicate channel_id %q", c.ID))
		}
		seen[c.ID] = true
	}
	return channels, nil
}

// LoadGenreConfig reads the genre-keyword rules file.
func LoadGenreConfig(path string) (genre.Config, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return genre.Config{}, model.NewError(model.KindConfig, "config.LoadGenreConfig", err)
	}

	var cfg genre.Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return genre.Config{}, model.NewError(model.KindConfig, "config.LoadGenreConfig", err)
	}
	return cfg, nil
}

// LoadRunConfig reads the run config file, then overlays any
// RUN_CONFIG_*-prefixed environment variables (additive convenience: the
// file remains authoritative when no override is present).
func LoadRunConfig(path string) (RunConfig, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return RunConfig{}, model.NewError(model.KindConfig, "config.LoadRunConfig", err)
	}
	if err := k.Load(env.Provider("RUN_CONFIG_", ".", envKeyTransform), nil); err != nil {
		return RunConfig{}, model.NewError(model.KindConfig, "config.LoadRunConfig", err)
	}

	var cfg RunConfig
	if err := k.Unmarshal("", &cfg); err != nil {
		return RunConfig{}, model.NewError(model.KindConfig, "config.LoadRunConfig", err)
	}
	if err := validate.Struct(cfg); err != nil {
		return RunConfig{}, model.NewError(model.KindConfig, "config.LoadRunConfig", err)
	}
	return cfg, nil
}
