package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/charmbracelet/log"
	"github.com/wailsapp/wails/v2/pkg/runtime"

	"presstalk/internal/bootstrap"
	"presstalk/internal/domain"
	"presstalk/internal/usecase"
	"presstalk/internal/view"
)

const eventView = "presstalk:view"

// App is the Wails application root.
type App struct {
	ctx context.Context

	services   bootstrap.Services
	controller *usecase.SessionController
	model      *view.Model
	log        *log.Logger
	bootErr    error

	build       func() (bootstrap.Services, error)
	emit        func(ctx context.Context, name string, data ...interface{})
	unsubscribe func()
}

func NewApp() *App {
	return &App{
		build: func() (bootstrap.Services, error) { return bootstrap.Build(nil) },
		emit:  runtime.EventsEmit,
	}
}

func (a *App) startup(ctx context.Context) {
	a.ctx = ctx

	services, err := a.build()
	if err != nil {
		a.bootErr = err
		a.log = log.New(io.Discard)
		a.model = view.NewModel()
		a.unsubscribe = a.model.Subscribe(a.emitView)
		a.model.SessionError(domain.ErrorCodeStartup, err.Error())
		return
	}

	a.services = services
	a.controller = services.Controller
	a.model = services.View
	a.log = services.Logger.WithPrefix("desktop")
	a.unsubscribe = a.model.Subscribe(a.emitView)
	a.model.SessionStateChanged(domain.SessionStateIdle, domain.SessionReasonReady)
}

func (a *App) shutdown(_ context.Context) {
	if a.controller != nil {
		if err := a.controller.Abort(); err != nil && !errors.Is(err, usecase.ErrNoActiveSession) {
			a.log.Warn("failed to discard recording on shutdown", "error", err)
		}
	}
	if a.unsubscribe != nil {
		a.unsubscribe()
	}
}

// StartPTT begins a push-to-talk recording. It returns once the session is
// reserved; microphone acquisition continues in the background.
func (a *App) StartPTT() (domain.Status, error) {
	if err := a.requireReady(); err != nil {
		return domain.Status{}, err
	}
	if err := a.settle("start", a.controller.StartAsync(a.ctx)); err != nil {
		return domain.Status{}, err
	}
	return a.controller.Status(), nil
}

// StopPTT ends the recording and submits it. It returns once the session has
// left the recording phase; the reply is delivered through view events.
func (a *App) StopPTT() (domain.Status, error) {
	if err := a.requireReady(); err != nil {
		return domain.Status{}, err
	}
	if err := a.settle("stop", a.controller.StopAsync(a.ctx)); err != nil {
		return domain.Status{}, err
	}
	return a.controller.Status(), nil
}

// LeavePTT handles the pointer leaving the control while pressed.
func (a *App) LeavePTT() (domain.Status, error) {
	if err := a.requireReady(); err != nil {
		return domain.Status{}, err
	}
	if err := a.settle("leave", a.controller.LeaveAsync(a.ctx)); err != nil {
		return domain.Status{}, err
	}
	return a.controller.Status(), nil
}

// AbortPTT discards an in-progress recording.
func (a *App) AbortPTT() error {
	if err := a.requireReady(); err != nil {
		return err
	}
	if err := a.controller.Abort(); err != nil && !errors.Is(err, usecase.ErrNoActiveSession) {
		return err
	}
	return nil
}

// PlaybackEnded is called by the page when the reply audio finished.
func (a *App) PlaybackEnded() {
	if a.model != nil {
		a.model.PlaybackEnded()
	}
}

// PlaybackFailed is called by the page when the reply audio could not play.
func (a *App) PlaybackFailed(detail string) {
	if a.model != nil {
		a.model.PlaybackFailed(detail)
	}
}

// GetStatus returns the current session status.
func (a *App) GetStatus() domain.Status {
	if a.controller == nil {
		status := domain.Status{State: domain.SessionStateIdle}
		if a.bootErr != nil {
			status.Message = a.bootErr.Error()
		}
		return status
	}
	return a.controller.Status()
}

// GetView returns the snapshot the page should render.
func (a *App) GetView() view.Snapshot {
	if a.model == nil {
		return view.InitialSnapshot()
	}
	return a.model.Snapshot()
}

// GetRuntimeInfo returns non-sensitive config for the UI.
func (a *App) GetRuntimeInfo() map[string]string {
	if a.bootErr != nil {
		return map[string]string{"error": a.bootErr.Error()}
	}
	if a.controller == nil {
		return map[string]string{}
	}

	cfg := a.services.Config
	info := map[string]string{
		"backend":          a.services.Backend.Endpoint(),
		"audioInput":       cfg.Audio.InputDevice,
		"audioInputFormat": cfg.Audio.InputFormat,
		"sampleRate":       strconv.Itoa(cfg.Audio.SampleRate),
		"channels":         strconv.Itoa(cfg.Audio.Channels),
	}
	if cfg.Backend.Timeout > 0 {
		info["backendTimeout"] = cfg.Backend.Timeout.String()
	}
	return info
}

func (a *App) requireReady() error {
	if a.bootErr != nil {
		return a.bootErr
	}
	if a.controller == nil {
		return fmt.Errorf("application is not initialized")
	}
	return nil
}

// settle reports an immediate failure of an async controller call and logs
// the eventual outcome otherwise. Ignored presses and releases are not errors
// for the page; the view already reflects them.
func (a *App) settle(name string, done <-chan error) error {
	select {
	case err := <-done:
		if err == nil {
			return nil
		}
		if ignorable(err) {
			a.log.Debug("control input ignored", "command", name, "reason", err)
			return nil
		}
		return err
	default:
	}

	go func() {
		if err := <-done; err != nil && !ignorable(err) {
			a.log.Debug("control input failed", "command", name, "error", err)
		}
	}()
	return nil
}

func ignorable(err error) bool {
	return errors.Is(err, usecase.ErrSessionBusy) ||
		errors.Is(err, usecase.ErrNoActiveSession) ||
		errors.Is(err, usecase.ErrStartAborted)
}

func (a *App) emitView(snap view.Snapshot) {
	if a.ctx == nil || a.emit == nil {
		return
	}
	a.emit(a.ctx, eventView, snap)
}
