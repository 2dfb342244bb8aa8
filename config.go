package main

import (
	"time"

	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

// Display defines the playfield bounds. Ball positions and paddle
// offsets are expressed in these units.
type Display struct {
	Width  float64
	Height float64
}

// LogConfig controls logrus output and lumberjack rotation.
type LogConfig struct {
	Filename   string
	MaxSize    int // megabytes
	MaxBackups int
	MaxAge     int // days
	Compress   bool
	Level      string
}

// Config holds all server settings.
type Config struct {
	Addr         string
	DBPath       string
	PublicURL    string // base URL embedded in invite QR codes
	Display      Display
	WinScore     int
	TickInterval time.Duration
	PaddleWidth  float64
	PaddleHeight float64
	BallSpeed    float64 // units per second at serve
	SpeedFactor  float64 // multiplier applied when the speed option is on
	Log          LogConfig
}

// LoadConfig reads pong.yaml from the given directory (or the working
// directory when empty), applies defaults and PONG_* env overrides.
// A missing config file is not an error; defaults apply.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("pong")
	v.SetConfigType("yaml")
	if path != "" {
		v.AddConfigPath(path)
	}
	v.AddConfigPath("./")
	v.SetEnvPrefix("pong")
	v.AutomaticEnv()

	v.SetDefault("addr", ":8080")
	v.SetDefault("db", "pong.db")
	v.SetDefault("publicURL", "http://localhost:8080")
	v.SetDefault("display.width", 1000)
	v.SetDefault("display.height", 600)
	v.SetDefault("game.winScore", 10)
	v.SetDefault("game.tickMillis", 30)
	v.SetDefault("game.paddleWidth", 16)
	v.SetDefault("game.paddleHeight", 120)
	v.SetDefault("game.ballSpeed", 420)
	v.SetDefault("game.speedFactor", 1.6)
	v.SetDefault("log.filename", "pong.log")
	v.SetDefault("log.maxSize", 10)
	v.SetDefault("log.maxBackups", 5)
	v.SetDefault("log.maxAge", 28)
	v.SetDefault("log.compress", false)
	v.SetDefault("log.level", "info")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	cfg := &Config{
		Addr:      cast.ToString(v.Get("addr")),
		DBPath:    cast.ToString(v.Get("db")),
		PublicURL: cast.ToString(v.Get("publicURL")),
		Display: Display{
			Width:  cast.ToFloat64(v.Get("display.width")),
			Height: cast.ToFloat64(v.Get("display.height")),
		},
		WinScore:     cast.ToInt(v.Get("game.winScore")),
		TickInterval: time.Duration(cast.ToInt(v.Get("game.tickMillis"))) * time.Millisecond,
		PaddleWidth:  cast.ToFloat64(v.Get("game.paddleWidth")),
		PaddleHeight: cast.ToFloat64(v.Get("game.paddleHeight")),
		BallSpeed:    cast.ToFloat64(v.Get("game.ballSpeed")),
		SpeedFactor:  cast.ToFloat64(v.Get("game.speedFactor")),
		Log: LogConfig{
			Filename:   cast.ToString(v.Get("log.filename")),
			MaxSize:    cast.ToInt(v.Get("log.maxSize")),
			MaxBackups: cast.ToInt(v.Get("log.maxBackups")),
			MaxAge:     cast.ToInt(v.Get("log.maxAge")),
			Compress:   cast.ToBool(v.Get("log.compress")),
			Level:      cast.ToString(v.Get("log.level")),
		},
	}
	return cfg, nil
}

// TestConfig returns a config suitable for unit tests: small field,
// short games, no log file.
func TestConfig() *Config {
	return &Config{
		Addr:         ":0",
		Display:      Display{Width: 1000, Height: 600},
		WinScore:     3,
		TickInterval: 30 * time.Millisecond,
		PaddleWidth:  16,
		PaddleHeight: 120,
		BallSpeed:    420,
		SpeedFactor:  1.6,
	}
}
