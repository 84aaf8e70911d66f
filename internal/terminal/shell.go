package terminal

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"

	"presstalk/internal/domain"
	"presstalk/internal/ports"
	"presstalk/internal/usecase"
	"presstalk/internal/view"
)

const drainPollInterval = 20 * time.Millisecond

// Controller is the part of the session controller the terminal drives.
type Controller interface {
	StartAsync(ctx context.Context) <-chan error
	StopAsync(ctx context.Context) <-chan error
	Abort() error
	Status() domain.Status
}

// ViewModel is the snapshot source the terminal prints.
type ViewModel interface {
	Snapshot() view.Snapshot
	Subscribe(fn func(view.Snapshot)) func()
	PlaybackEnded()
	PlaybackFailed(detail string)
}

// Styles holds the lipgloss styles of the terminal shell.
type Styles struct {
	Title      lipgloss.Style
	Idle       lipgloss.Style
	Recording  lipgloss.Style
	Processing lipgloss.Style
	Error      lipgloss.Style
	Label      lipgloss.Style
	Help       lipgloss.Style
}

func DefaultStyles() Styles {
	return Styles{
		Title:      lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#00ff9f")),
		Idle:       lipgloss.NewStyle().Foreground(lipgloss.Color("#87CEEB")),
		Recording:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF5F5F")),
		Processing: lipgloss.NewStyle().Foreground(lipgloss.Color("#FFD700")),
		Error:      lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FFA07A")),
		Label:      lipgloss.NewStyle().Bold(true),
		Help:       lipgloss.NewStyle().Foreground(lipgloss.Color("#6e7681")),
	}
}

// Shell is the line-driven push-to-talk front end: Enter starts a recording,
// the next Enter sends it.
type Shell struct {
	controller Controller
	model      ViewModel
	player     ports.Player
	styles     Styles
	log        *log.Logger

	outMu  sync.Mutex
	out    io.Writer
	last   view.Snapshot
	shown  bool
	closed bool

	playback sync.WaitGroup
}

func NewShell(controller Controller, model ViewModel, player ports.Player, out io.Writer, logger *log.Logger) *Shell {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Shell{
		controller: controller,
		model:      model,
		player:     player,
		styles:     DefaultStyles(),
		log:        logger,
		out:        out,
	}
}

// WithStyles replaces the default styles.
func (s *Shell) WithStyles(styles Styles) *Shell {
	s.styles = styles
	return s
}

// Run reads commands from in until it is exhausted, "q" is entered or ctx is
// cancelled. An unfinished recording is discarded on exit. When the input
// ends, a recording already sent is allowed to finish and its reply to play.
func (s *Shell) Run(ctx context.Context, in io.Reader) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	unsubscribe := s.model.Subscribe(func(snap view.Snapshot) { s.render(ctx, snap) })

	s.println(s.styles.Title.Render("presstalk") + " " + s.styles.Help.Render("Enter to talk, Enter again to send, q to quit"))
	s.render(ctx, s.model.Snapshot())

	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			s.shutdown(cancel, unsubscribe)
			return ctx.Err()
		case err := <-readErr:
			s.drain(ctx)
			s.shutdown(cancel, unsubscribe)
			return err
		case line := <-lines:
			switch strings.ToLower(strings.TrimSpace(line)) {
			case "q", "quit", "exit":
				s.shutdown(cancel, unsubscribe)
				return nil
			default:
				s.toggle(ctx)
			}
		}
	}
}

func (s *Shell) toggle(ctx context.Context) {
	status := s.controller.Status()
	switch {
	case status.State == domain.SessionStateProcessing:
		s.println(s.styles.Help.Render("still processing the previous recording"))
	case status.Active:
		go s.await("stop", s.controller.StopAsync(ctx))
	default:
		go s.await("start", s.controller.StartAsync(ctx))
	}
}

func (s *Shell) await(name string, done <-chan error) {
	err := <-done
	switch {
	case err == nil:
	case errors.Is(err, usecase.ErrSessionBusy),
		errors.Is(err, usecase.ErrNoActiveSession),
		errors.Is(err, usecase.ErrStartAborted):
		s.log.Debug("command ignored", "command", name, "reason", err)
	default:
		s.log.Debug("command failed", "command", name, "error", err)
	}
}

// drain waits for a submitted recording to be answered and for the reply
// playback it started. A recording still in progress is left to shutdown.
func (s *Shell) drain(ctx context.Context) {
	ticker := time.NewTicker(drainPollInterval)
	defer ticker.Stop()
	for s.controller.Status().State == domain.SessionStateProcessing {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}

	// The reply is rendered before the controller reports idle, so any
	// playback it needs has already been added.
	played := make(chan struct{})
	go func() {
		s.playback.Wait()
		close(played)
	}()
	select {
	case <-ctx.Done():
	case <-played:
	}
}

func (s *Shell) shutdown(cancel context.CancelFunc, unsubscribe func()) {
	cancel()
	if err := s.controller.Abort(); err != nil && !errors.Is(err, usecase.ErrNoActiveSession) {
		s.log.Warn("failed to discard recording", "error", err)
	}
	unsubscribe()

	// A notification already in flight must not start playback once waiting begins.
	s.outMu.Lock()
	s.closed = true
	s.outMu.Unlock()
	s.playback.Wait()
}

// render prints what changed since the previous snapshot and starts playback
// of new reply audio.
func (s *Shell) render(ctx context.Context, snap view.Snapshot) {
	s.outMu.Lock()
	defer s.outMu.Unlock()
	if s.closed {
		return
	}
	prev, shown := s.last, s.shown
	s.last, s.shown = snap, true

	if !shown || snap.Status != prev.Status {
		fmt.Fprintln(s.out, s.statusStyle(snap).Render("● "+snap.Status))
	}
	if snap.UserText != prev.UserText || snap.AssistantText != prev.AssistantText {
		if snap.UserText != "" || snap.AssistantText != "" {
			fmt.Fprintln(s.out, s.styles.Label.Render("You:")+" "+snap.UserText)
			fmt.Fprintln(s.out, s.styles.Label.Render("Assistant:")+" "+snap.AssistantText)
		}
	}
	if shown && snap.PlaybackSeq != prev.PlaybackSeq && snap.AudioSource != "" && s.player != nil {
		s.playback.Add(1)
		go s.play(ctx, snap.AudioSource)
	}
}

func (s *Shell) play(ctx context.Context, source string) {
	defer s.playback.Done()
	if err := s.player.Play(ctx, source); err != nil {
		if ctx.Err() != nil {
			return
		}
		s.log.Warn("reply playback failed", "error", err)
		s.model.PlaybackFailed(err.Error())
		return
	}
	s.model.PlaybackEnded()
}

func (s *Shell) statusStyle(snap view.Snapshot) lipgloss.Style {
	switch {
	case snap.State == domain.SessionStateRecording:
		return s.styles.Recording
	case snap.State == domain.SessionStateProcessing:
		return s.styles.Processing
	case snap.ErrorCode != "" && snap.ErrorCode != domain.ErrorCodeAudioStream:
		return s.styles.Error
	default:
		return s.styles.Idle
	}
}

func (s *Shell) println(text string) {
	s.outMu.Lock()
	defer s.outMu.Unlock()
	fmt.Fprintln(s.out, text)
}
