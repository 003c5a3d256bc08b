package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"go.uber.org/multierr"
	"golang.org/x/crypto/bcrypt"

	"github.com/avialu/dixit-sub000/internal/engine"
)

// Config is read from the environment at startup. A .env file in the working
// directory is loaded first if present; real environment variables win.
type Config struct {
	Addr           string        `env:"DIXIT_ADDR"             envDefault:":8080"`
	LogLevel       string        `env:"DIXIT_LOG_LEVEL"        envDefault:"info"`
	LogFormat      string        `env:"DIXIT_LOG_FORMAT"       envDefault:"json"`
	AllowedOrigins []string      `env:"DIXIT_ALLOWED_ORIGINS"  envSeparator:","`
	TokenSecret    string        `env:"DIXIT_TOKEN_SECRET"`
	TokenTTL       time.Duration `env:"DIXIT_TOKEN_TTL"        envDefault:"24h"`

	HandSize     int `env:"DIXIT_HAND_SIZE"      envDefault:"6"`
	MinPlayers   int `env:"DIXIT_MIN_PLAYERS"    envDefault:"3"`
	CardQuota    int `env:"DIXIT_CARD_QUOTA"     envDefault:"200"`
	MaxCardBytes int `env:"DIXIT_MAX_CARD_BYTES" envDefault:"5242880"`
	WinTarget    int `env:"DIXIT_WIN_TARGET"     envDefault:"30"`
	SecretCost   int `env:"DIXIT_SECRET_COST"    envDefault:"10"`

	StorytellerTimeout time.Duration `env:"DIXIT_STORYTELLER_TIMEOUT" envDefault:"90s"`
	PlayersTimeout     time.Duration `env:"DIXIT_PLAYERS_TIMEOUT"     envDefault:"60s"`
	VotingTimeout      time.Duration `env:"DIXIT_VOTING_TIMEOUT"      envDefault:"60s"`
	RevealTimeout      time.Duration `env:"DIXIT_REVEAL_TIMEOUT"      envDefault:"30s"`

	AdminGrace        time.Duration `env:"DIXIT_ADMIN_GRACE"        envDefault:"30s"`
	DisconnectTimeout time.Duration `env:"DIXIT_DISCONNECT_TIMEOUT" envDefault:"5m"`
	SweepInterval     time.Duration `env:"DIXIT_SWEEP_INTERVAL"     envDefault:"5s"`
	IdleRoomTimeout   time.Duration `env:"DIXIT_IDLE_ROOM_TIMEOUT"  envDefault:"30m"`
	ShutdownTimeout   time.Duration `env:"DIXIT_SHUTDOWN_TIMEOUT"   envDefault:"10s"`
}

const minTokenSecret = 16

// Load reads an optional .env file named by files (default ".env"), then
// parses and validates the environment.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var err error
	if len(c.TokenSecret) < minTokenSecret {
		err = multierr.Append(err, fmt.Errorf("DIXIT_TOKEN_SECRET must be at least %d bytes", minTokenSecret))
	}
	if c.TokenTTL <= 0 {
		err = multierr.Append(err, errors.New("DIXIT_TOKEN_TTL must be positive"))
	}
	if c.HandSize < 1 {
		err = multierr.Append(err, errors.New("DIXIT_HAND_SIZE must be positive"))
	}
	if c.MinPlayers < 3 {
		err = multierr.Append(err, errors.New("DIXIT_MIN_PLAYERS must be at least 3"))
	}
	if c.CardQuota < 1 {
		err = multierr.Append(err, errors.New("DIXIT_CARD_QUOTA must be positive"))
	}
	if c.MaxCardBytes < 1 {
		err = multierr.Append(err, errors.New("DIXIT_MAX_CARD_BYTES must be positive"))
	}
	if c.SecretCost < bcrypt.MinCost || c.SecretCost > bcrypt.MaxCost {
		err = multierr.Append(err, fmt.Errorf("DIXIT_SECRET_COST must be within %d-%d", bcrypt.MinCost, bcrypt.MaxCost))
	}
	if c.WinTarget < engine.MinWinTarget || c.WinTarget > engine.MaxWinTarget {
		err = multierr.Append(err, fmt.Errorf("DIXIT_WIN_TARGET must be within %d-%d", engine.MinWinTarget, engine.MaxWinTarget))
	}
	for _, d := range []struct {
		name string
		val  time.Duration
	}{
		{"DIXIT_STORYTELLER_TIMEOUT", c.StorytellerTimeout},
		{"DIXIT_PLAYERS_TIMEOUT", c.PlayersTimeout},
		{"DIXIT_VOTING_TIMEOUT", c.VotingTimeout},
		{"DIXIT_REVEAL_TIMEOUT", c.RevealTimeout},
		{"DIXIT_ADMIN_GRACE", c.AdminGrace},
		{"DIXIT_DISCONNECT_TIMEOUT", c.DisconnectTimeout},
		{"DIXIT_SWEEP_INTERVAL", c.SweepInterval},
		{"DIXIT_IDLE_ROOM_TIMEOUT", c.IdleRoomTimeout},
		{"DIXIT_SHUTDOWN_TIMEOUT", c.ShutdownTimeout},
	} {
		if d.val <= 0 {
			err = multierr.Append(err, fmt.Errorf("%s must be positive", d.name))
		}
	}
	return err
}

// Rules converts the game settings for the engine.
func (c Config) Rules() engine.Rules {
	return engine.Rules{
		HandSize:           c.HandSize,
		MinPlayers:         c.MinPlayers,
		CardQuota:          c.CardQuota,
		MaxCardBytes:       c.MaxCardBytes,
		DefaultWinTarget:   c.WinTarget,
		StorytellerTimeout: c.StorytellerTimeout,
		PlayersTimeout:     c.PlayersTimeout,
		VotingTimeout:      c.VotingTimeout,
		RevealTimeout:      c.RevealTimeout,
		AdminGrace:         c.AdminGrace,
		DisconnectTimeout:  c.DisconnectTimeout,
		SecretCost:         c.SecretCost,
	}
}
