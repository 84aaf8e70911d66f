package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"presstalk/internal/ports"
)

const (
	startupWindow = 250 * time.Millisecond
	stopGrace     = 1200 * time.Millisecond
	pipeWaitDelay = 500 * time.Millisecond
)

// FFMPEGCapture streams raw PCM16 microphone audio from an ffmpeg child process.
type FFMPEGCapture struct {
	command string
}

func NewFFMPEGCapture(command string) *FFMPEGCapture {
	if command == "" {
		command = "ffmpeg"
	}
	return &FFMPEGCapture{command: command}
}

func (c *FFMPEGCapture) Start(ctx context.Context, cfg ports.AudioConfig) (ports.AudioSession, error) {
	cfg = withCaptureDefaults(cfg)

	cmd := exec.CommandContext(ctx, c.command, captureArgs(cfg)...)
	cmd.WaitDelay = pipeWaitDelay

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	// Wait only returns once every byte written by ffmpeg has been handed to
	// the reader, so the last fragment survives Stop.
	reader, writer := io.Pipe()
	cmd.Stdout = writer

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", c.command, err)
	}

	waitErr := make(chan error, 1)
	go func() {
		err := cmd.Wait()
		_ = writer.Close()
		waitErr <- err
		close(waitErr)
	}()

	select {
	case err := <-waitErr:
		if err != nil {
			return nil, fmt.Errorf("%s exited before capture started: %w: %s", c.command, err, trimOutput(stderr.String()))
		}
		return nil, fmt.Errorf("%s exited before capture started", c.command)
	case <-ctx.Done():
		_ = cmd.Process.Kill()
		return nil, ctx.Err()
	case <-time.After(startupWindow):
	}

	return &ffmpegSession{
		stdout:  reader,
		stderr:  &stderr,
		process: cmd.Process,
		waitErr: waitErr,
	}, nil
}

func withCaptureDefaults(cfg ports.AudioConfig) ports.AudioConfig {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 16000
	}
	if cfg.Channels <= 0 {
		cfg.Channels = 1
	}
	if cfg.InputFormat == "" {
		cfg.InputFormat = "pulse"
	}
	if cfg.InputDevice == "" {
		cfg.InputDevice = "default"
	}
	return cfg
}

func captureArgs(cfg ports.AudioConfig) []string {
	return []string{
		"-nostdin",
		"-hide_banner",
		"-loglevel", "warning",
		"-f", cfg.InputFormat,
		"-i", cfg.InputDevice,
		"-ac", strconv.Itoa(cfg.Channels),
		"-ar", strconv.Itoa(cfg.SampleRate),
		"-f", "s16le",
		"-",
	}
}

type ffmpegSession struct {
	stdout *io.PipeReader
	stderr *bytes.Buffer

	process *os.Process
	waitErr <-chan error

	stopOnce sync.Once
	stopErr  error
}

func (s *ffmpegSession) Read(p []byte) (int, error) {
	return s.stdout.Read(p)
}

func (s *ffmpegSession) Close() error {
	return s.Stop()
}

// Stop interrupts ffmpeg so it flushes its output, killing it after a grace period.
func (s *ffmpegSession) Stop() error {
	s.stopOnce.Do(func() {
		if s.process != nil {
			_ = s.process.Signal(os.Interrupt)
		}

		select {
		case err, ok := <-s.waitErr:
			if ok {
				s.stopErr = normalizeStopErr(err)
			}
		case <-time.After(stopGrace):
			if s.process != nil {
				_ = s.process.Kill()
			}
			// Unblock a pending write when nobody drains the pipe anymore.
			_ = s.stdout.CloseWithError(io.ErrClosedPipe)
			err, ok := <-s.waitErr
			if ok {
				s.stopErr = normalizeStopErr(err)
			}
		}

		if s.stopErr != nil && s.stderr != nil && s.stderr.Len() > 0 {
			s.stopErr = fmt.Errorf("%w: %s", s.stopErr, trimOutput(s.stderr.String()))
		}
	})

	return s.stopErr
}

func normalizeStopErr(err error) error {
	if err == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) || errors.Is(err, exec.ErrWaitDelay) || errors.Is(err, io.ErrClosedPipe) {
		return nil
	}
	return err
}

func trimOutput(input string) string {
	if input == "" {
		return input
	}
	return string(bytes.TrimSpace([]byte(input)))
}
