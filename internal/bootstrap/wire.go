package bootstrap

import (
	"io"
	"os"

	"github.com/charmbracelet/log"

	"presstalk/internal/audio"
	"presstalk/internal/backend"
	"presstalk/internal/config"
	"presstalk/internal/metrics"
	"presstalk/internal/ports"
	"presstalk/internal/usecase"
	"presstalk/internal/view"
)

// Services is the assembled runtime graph shared by every shell.
type Services struct {
	Config     config.Config
	Logger     *log.Logger
	Controller *usecase.SessionController
	View       *view.Model
	Metrics    *metrics.Metrics
	Backend    *backend.Client
	Player     *audio.FFPlayPlayer
}

// Build loads the configuration and wires all runtime dependencies. Logs go
// to logOutput, or stderr when it is nil.
func Build(logOutput io.Writer) (Services, error) {
	cfg, err := config.Load()
	if err != nil {
		return Services{}, err
	}
	if logOutput == nil {
		logOutput = os.Stderr
	}
	return Assemble(cfg, NewLogger(logOutput, cfg.Log.Level))
}

// Assemble wires the runtime graph for an already resolved configuration.
func Assemble(cfg config.Config, logger *log.Logger) (Services, error) {
	client, err := backend.NewClient(backend.Config{
		BaseURL: cfg.Backend.URL,
		Path:    cfg.Backend.Path,
		Timeout: cfg.Backend.Timeout,
	}, logger.WithPrefix("backend"))
	if err != nil {
		return Services{}, err
	}

	m := metrics.New()
	model := view.NewModel()
	events := m.ObserveEvents(model)
	model.ReportTo(events)

	controller := usecase.NewSessionController(
		audio.NewFFMPEGCapture(cfg.Audio.RecorderCommand),
		m.InstrumentUploader(client),
		events,
		logger.WithPrefix("session"),
		usecase.Config{
			Audio: ports.AudioConfig{
				SampleRate:  cfg.Audio.SampleRate,
				Channels:    cfg.Audio.Channels,
				InputFormat: cfg.Audio.InputFormat,
				InputDevice: cfg.Audio.InputDevice,
			},
			ChunkSize: cfg.Session.ChunkSize,
		},
	)

	logger.Debug("runtime assembled",
		"backend", client.Endpoint(),
		"input_format", cfg.Audio.InputFormat,
		"input_device", cfg.Audio.InputDevice,
		"timeout", cfg.Backend.Timeout,
	)

	return Services{
		Config:     cfg,
		Logger:     logger,
		Controller: controller,
		View:       model,
		Metrics:    m,
		Backend:    client,
		Player:     audio.NewFFPlayPlayer(cfg.Playback.PlayerCommand),
	}, nil
}

// NewLogger builds the process logger. Unknown levels fall back to info.
func NewLogger(out io.Writer, level string) *log.Logger {
	parsed, err := log.ParseLevel(level)
	if err != nil {
		parsed = log.InfoLevel
	}
	return log.NewWithOptions(out, log.Options{
		Prefix:          "presstalk",
		ReportTimestamp: true,
		Level:           parsed,
	})
}
