package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	defaultEnvFile   = ".env"
	defaultChunkSize = 4096
	minChunkSize     = 256
)

// Config stores runtime configuration for the widget and its shells.
type Config struct {
	Backend  BackendConfig
	Audio    AudioConfig
	Playback PlaybackConfig
	Session  SessionConfig
	Log      LogConfig
	Serve    ServeConfig
}

type BackendConfig struct {
	URL     string
	Path    string
	Timeout time.Duration
}

type AudioConfig struct {
	RecorderCommand string
	InputFormat     string
	InputDevice     string
	SampleRate      int
	Channels        int
}

type PlaybackConfig struct {
	PlayerCommand string
}

type SessionConfig struct {
	ChunkSize int
}

type LogConfig struct {
	Level string
}

type ServeConfig struct {
	Addr string
}

// fileConfig mirrors the optional YAML file named by PRESSTALK_CONFIG. Zero
// values leave the built-in default in place.
type fileConfig struct {
	Backend struct {
		URL       string `yaml:"url"`
		Path      string `yaml:"path"`
		TimeoutMS int    `yaml:"timeout_ms"`
	} `yaml:"backend"`
	Audio struct {
		FFmpegCommand string `yaml:"ffmpeg_command"`
		InputFormat   string `yaml:"input_format"`
		InputDevice   string `yaml:"input_device"`
		SampleRate    int    `yaml:"sample_rate"`
		Channels      int    `yaml:"channels"`
		ChunkSize     int    `yaml:"chunk_size"`
	} `yaml:"audio"`
	Playback struct {
		FFplayCommand string `yaml:"ffplay_command"`
	} `yaml:"playback"`
	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
	Serve struct {
		Addr string `yaml:"addr"`
	} `yaml:"serve"`
}

// Defaults returns the configuration used when nothing is set.
func Defaults() Config {
	return Config{
		Backend: BackendConfig{
			URL:  "http://localhost:8000",
			Path: "/process-audio/",
		},
		Audio: AudioConfig{
			RecorderCommand: "ffmpeg",
			InputFormat:     "pulse",
			InputDevice:     "default",
			SampleRate:      16000,
			Channels:        1,
		},
		Playback: PlaybackConfig{PlayerCommand: "ffplay"},
		Session:  SessionConfig{ChunkSize: defaultChunkSize},
		Log:      LogConfig{Level: "info"},
		Serve:    ServeConfig{Addr: "127.0.0.1:8765"},
	}
}

// Load resolves configuration from the process environment, a .env file, the
// optional YAML file and built-in defaults, in that order of precedence.
func Load() (Config, error) {
	dotenv, err := readDotEnv(strings.TrimSpace(os.Getenv("PRESSTALK_ENV_FILE")))
	if err != nil {
		return Config{}, err
	}
	env := source{dotenv: dotenv}

	cfg := Defaults()
	if path := env.get("PRESSTALK_CONFIG"); path != "" {
		file, err := readFile(path)
		if err != nil {
			return Config{}, err
		}
		file.applyTo(&cfg)
	}

	cfg.Backend.URL = env.orDefault("PRESSTALK_BACKEND_URL", cfg.Backend.URL)
	cfg.Backend.Path = env.orDefault("PRESSTALK_BACKEND_PATH", cfg.Backend.Path)
	if ms := env.nonNegativeInt("PRESSTALK_BACKEND_TIMEOUT_MS", -1); ms >= 0 {
		cfg.Backend.Timeout = time.Duration(ms) * time.Millisecond
	}

	cfg.Audio.RecorderCommand = env.orDefault("PRESSTALK_FFMPEG_COMMAND", cfg.Audio.RecorderCommand)
	cfg.Audio.InputFormat = env.orDefault("PRESSTALK_AUDIO_INPUT_FORMAT", cfg.Audio.InputFormat)
	cfg.Audio.InputDevice = firstNonEmpty(
		env.get("PRESSTALK_AUDIO_INPUT_DEVICE"),
		env.get("PULSE_SOURCE"),
		cfg.Audio.InputDevice,
	)
	cfg.Audio.SampleRate = env.orDefaultInt("PRESSTALK_SAMPLE_RATE", cfg.Audio.SampleRate)
	cfg.Audio.Channels = env.orDefaultInt("PRESSTALK_CHANNELS", cfg.Audio.Channels)
	cfg.Session.ChunkSize = env.orDefaultInt("PRESSTALK_AUDIO_CHUNK_SIZE", cfg.Session.ChunkSize)
	cfg.Playback.PlayerCommand = env.orDefault("PRESSTALK_FFPLAY_COMMAND", cfg.Playback.PlayerCommand)
	cfg.Log.Level = strings.ToLower(env.orDefault("PRESSTALK_LOG_LEVEL", cfg.Log.Level))
	cfg.Serve.Addr = env.orDefault("PRESSTALK_SERVE_ADDR", cfg.Serve.Addr)

	if cfg.Audio.SampleRate <= 0 {
		cfg.Audio.SampleRate = 16000
	}
	if cfg.Audio.Channels <= 0 {
		cfg.Audio.Channels = 1
	}
	if cfg.Session.ChunkSize < minChunkSize {
		cfg.Session.ChunkSize = defaultChunkSize
	}

	return cfg, nil
}

func readDotEnv(path string) (map[string]string, error) {
	explicit := path != ""
	if !explicit {
		path = defaultEnvFile
	}
	values, err := godotenv.Read(path)
	if err == nil {
		return values, nil
	}
	if errors.Is(err, os.ErrNotExist) && !explicit {
		return nil, nil
	}
	return nil, fmt.Errorf("read env file %s: %w", path, err)
}

func readFile(path string) (fileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return fileConfig{}, fmt.Errorf("read config file: %w", err)
	}
	var file fileConfig
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fileConfig{}, fmt.Errorf("parse config file %s: %w", path, err)
	}
	return file, nil
}

func (f fileConfig) applyTo(cfg *Config) {
	setString(&cfg.Backend.URL, f.Backend.URL)
	setString(&cfg.Backend.Path, f.Backend.Path)
	if f.Backend.TimeoutMS > 0 {
		cfg.Backend.Timeout = time.Duration(f.Backend.TimeoutMS) * time.Millisecond
	}
	setString(&cfg.Audio.RecorderCommand, f.Audio.FFmpegCommand)
	setString(&cfg.Audio.InputFormat, f.Audio.InputFormat)
	setString(&cfg.Audio.InputDevice, f.Audio.InputDevice)
	setInt(&cfg.Audio.SampleRate, f.Audio.SampleRate)
	setInt(&cfg.Audio.Channels, f.Audio.Channels)
	setInt(&cfg.Session.ChunkSize, f.Audio.ChunkSize)
	setString(&cfg.Playback.PlayerCommand, f.Playback.FFplayCommand)
	setString(&cfg.Log.Level, f.Log.Level)
	setString(&cfg.Serve.Addr, f.Serve.Addr)
}

func setString(dst *string, value string) {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		*dst = trimmed
	}
}

func setInt(dst *int, value int) {
	if value > 0 {
		*dst = value
	}
}

// source looks keys up in the process environment first, then in the .env file.
type source struct {
	dotenv map[string]string
}

func (s source) get(key string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return strings.TrimSpace(s.dotenv[key])
}

func (s source) orDefault(key string, fallback string) string {
	value := s.get(key)
	if value == "" {
		return fallback
	}
	return value
}

func (s source) orDefaultInt(key string, fallback int) int {
	value := s.get(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func (s source) nonNegativeInt(key string, fallback int) int {
	parsed := s.orDefaultInt(key, fallback)
	if parsed < 0 {
		return fallback
	}
	return parsed
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed != "" {
			return trimmed
		}
	}
	return ""
}
