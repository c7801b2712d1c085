package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. PARTYBOT_GAME_PROMPT_QUOTA.
const EnvPrefix = "PARTYBOT"

type Config struct {
	Telegram TelegramConfig `mapstructure:"telegram"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Game     GameConfig     `mapstructure:"game"`
	Log      LogConfig      `mapstructure:"log"`
	Status   StatusConfig   `mapstructure:"status"`
}

type TelegramConfig struct {
	Token string `mapstructure:"token"`
	Debug bool   `mapstructure:"debug"`
	// BotLink is shown in the group when prompt collection starts
	BotLink string `mapstructure:"bot_link"`
}

type StorageConfig struct {
	Path string `mapstructure:"path"`
}

type GameConfig struct {
	PromptQuota           int `mapstructure:"prompt_quota"`
	CollectionSeconds     int `mapstructure:"collection_seconds"`
	RatingMaxPrompts      int `mapstructure:"rating_max_prompts"`
	DebateMaxPrompts      int `mapstructure:"debate_max_prompts"`
	AnswerSeconds         int `mapstructure:"answer_seconds"`
	BetweenAnswersSeconds int `mapstructure:"between_answers_seconds"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type StatusConfig struct {
	// Addr is the listen address of the status server; empty disables it
	Addr string `mapstructure:"addr"`
}

func (g GameConfig) CollectionWindow() time.Duration {
	return time.Duration(g.CollectionSeconds) * time.Second
}

func (g GameConfig) AnswerWindow() time.Duration {
	return time.Duration(g.AnswerSeconds) * time.Second
}

func (g GameConfig) BetweenAnswers() time.Duration {
	return time.Duration(g.BetweenAnswersSeconds) * time.Second
}

// Default returns a Config with the values used when nothing overrides them.
func Default() *Config {
	return &Config{
		Storage: StorageConfig{
			Path: "data/party.db",
		},
		Game: GameConfig{
			PromptQuota:           3,
			CollectionSeconds:     60,
			RatingMaxPrompts:      10,
			DebateMaxPrompts:      3,
			AnswerSeconds:         60,
			BetweenAnswersSeconds: 5,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		Status: StatusConfig{
			Addr: ":8080",
		},
	}
}

// SetDefaults registers default values with v.
func SetDefaults(v *viper.Viper) {
	defaults := Default()

	v.SetDefault("telegram.token", defaults.Telegram.Token)
	v.SetDefault("telegram.debug", defaults.Telegram.Debug)
	v.SetDefault("telegram.bot_link", defaults.Telegram.BotLink)

	v.SetDefault("storage.path", defaults.Storage.Path)

	v.SetDefault("game.prompt_quota", defaults.Game.PromptQuota)
	v.SetDefault("game.collection_seconds", defaults.Game.CollectionSeconds)
	v.SetDefault("game.rating_max_prompts", defaults.Game.RatingMaxPrompts)
	v.SetDefault("game.debate_max_prompts", defaults.Game.DebateMaxPrompts)
	v.SetDefault("game.answer_seconds", defaults.Game.AnswerSeconds)
	v.SetDefault("game.between_answers_seconds", defaults.Game.BetweenAnswersSeconds)

	v.SetDefault("log.level", defaults.Log.Level)
	v.SetDefault("log.format", defaults.Log.Format)

	v.SetDefault("status.addr", defaults.Status.Addr)
}

// Load builds the configuration from defaults, the optional file at path and the
// environment, then validates it.
func Load(path string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	// the token name the bot has always used
	if cfg.Telegram.Token == "" {
		cfg.Telegram.Token = os.Getenv("TELEGRAM_BOT_TOKEN")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.Telegram.Token == "" {
		errs = append(errs, errors.New("telegram.token is required (or TELEGRAM_BOT_TOKEN)"))
	}
	if c.Storage.Path == "" {
		errs = append(errs, errors.New("storage.path must not be empty"))
	}
	if c.Game.PromptQuota < 1 {
		errs = append(errs, fmt.Errorf("game.prompt_quota must be at least 1, got %d", c.Game.PromptQuota))
	}
	if c.Game.RatingMaxPrompts < 1 {
		errs = append(errs, fmt.Errorf("game.rating_max_prompts must be at least 1, got %d", c.Game.RatingMaxPrompts))
	}
	if c.Game.DebateMaxPrompts < 1 {
		errs = append(errs, fmt.Errorf("game.debate_max_prompts must be at least 1, got %d", c.Game.DebateMaxPrompts))
	}
	for key, seconds := range map[string]int{
		"game.collection_seconds":      c.Game.CollectionSeconds,
		"game.answer_seconds":          c.Game.AnswerSeconds,
		"game.between_answers_seconds": c.Game.BetweenAnswersSeconds,
	} {
		if seconds <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %d", key, seconds))
		}
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format must be console or json, got %q", c.Log.Format))
	}
	return errors.Join(errs...)
}
