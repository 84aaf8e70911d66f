package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"presstalk/internal/audio/wav"
	"presstalk/internal/domain"
	"presstalk/internal/ports"
)

func TestSessionControllerStartStopSuccessWithAudio(t *testing.T) {
	t.Parallel()

	audioSession := &fakeAudioSession{chunks: [][]byte{[]byte("ab"), []byte("cd"), []byte("ef")}}
	uploader := &fakeUploader{reply: domain.Reply{
		UserText:      "hello",
		AssistantText: "hi there",
		AudioURL:      "data:audio/wav;base64,UklGRg==",
	}}
	events := &fakeEventSink{}

	controller := NewSessionController(
		&fakeAudioCapture{sessions: []ports.AudioSession{audioSession}},
		uploader,
		events,
		nil,
		Config{ChunkSize: 512, Audio: ports.AudioConfig{SampleRate: 16000, Channels: 1}},
	)

	if err := controller.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if got := controller.Status().State; got != domain.SessionStateRecording {
		t.Fatalf("expected recording, got %s", got)
	}

	reply, err := controller.Stop(context.Background())
	if err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	if reply.AssistantText != "hi there" {
		t.Fatalf("unexpected reply: %+v", reply)
	}

	recordings := uploader.snapshot()
	if len(recordings) != 1 {
		t.Fatalf("expected exactly one upload, got %d", len(recordings))
	}
	audio := recordings[0].Audio
	if len(audio) < wav.HeaderSize || string(audio[:4]) != "RIFF" || string(audio[8:12]) != "WAVE" {
		t.Fatalf("upload is not wav: %q", audio)
	}
	if samples := audio[wav.HeaderSize:]; string(samples) != "abcdef" {
		t.Fatalf("expected concatenated fragments in order, got %q", samples)
	}
	if recordings[0].ContentType != wav.ContentType || recordings[0].Fragments != 3 {
		t.Fatalf("unexpected recording metadata: %+v", recordings[0])
	}

	if audioSession.stops() != 1 {
		t.Fatalf("expected microphone released exactly once, got %d", audioSession.stops())
	}

	if len(events.playbacks) != 1 || events.playbacks[0] != "data:audio/wav;base64,UklGRg==" {
		t.Fatalf("expected playback of exact source, got %v", events.playbacks)
	}

	states := events.snapshotStates()
	want := []stateEvent{
		{domain.SessionStateRecording, domain.SessionReasonRecordingStarted},
		{domain.SessionStateProcessing, domain.SessionReasonProcessing},
		{domain.SessionStateIdle, domain.SessionReasonReplyPlaying},
	}
	assertStates(t, states, want)

	if got := controller.Status(); got.State != domain.SessionStateIdle || got.Active {
		t.Fatalf("expected idle after completion, got %+v", got)
	}
}

func TestSessionControllerTextOnlyReply(t *testing.T) {
	t.Parallel()

	events := &fakeEventSink{}
	controller := NewSessionController(
		&fakeAudioCapture{sessions: []ports.AudioSession{&fakeAudioSession{chunks: [][]byte{[]byte("x")}}}},
		&fakeUploader{reply: domain.Reply{UserText: "u", AssistantText: "a"}},
		events,
		nil,
		Config{},
	)

	mustStart(t, controller)
	if _, err := controller.Stop(context.Background()); err != nil {
		t.Fatalf("stop failed: %v", err)
	}

	if len(events.playbacks) != 0 {
		t.Fatalf("expected no playback, got %v", events.playbacks)
	}
	states := events.snapshotStates()
	if states[len(states)-1].reason != domain.SessionReasonReplyTextOnly {
		t.Fatalf("expected text-only reason, got %s", states[len(states)-1].reason)
	}
}

func TestSessionControllerStartIsNoOpUnlessIdle(t *testing.T) {
	t.Parallel()

	capture := &fakeAudioCapture{sessions: []ports.AudioSession{&fakeAudioSession{}, &fakeAudioSession{}}}
	controller := NewSessionController(capture, &fakeUploader{}, &fakeEventSink{}, nil, Config{})

	mustStart(t, controller)
	if err := controller.Start(context.Background()); !errors.Is(err, ErrSessionBusy) {
		t.Fatalf("expected ErrSessionBusy, got %v", err)
	}
	if capture.callCount() != 1 {
		t.Fatalf("expected a single microphone request, got %d", capture.callCount())
	}
	if got := controller.Status().State; got != domain.SessionStateRecording {
		t.Fatalf("expected recording, got %s", got)
	}
}

func TestSessionControllerStopWhileIdleResetsWithoutError(t *testing.T) {
	t.Parallel()

	events := &fakeEventSink{}
	uploader := &fakeUploader{}
	controller := NewSessionController(&fakeAudioCapture{}, uploader, events, nil, Config{})

	_, err := controller.Stop(context.Background())
	if !errors.Is(err, ErrNoActiveSession) {
		t.Fatalf("expected ErrNoActiveSession, got %v", err)
	}
	if got := controller.Status().State; got != domain.SessionStateIdle {
		t.Fatalf("expected idle, got %s", got)
	}

	assertStates(t, events.snapshotStates(), []stateEvent{
		{domain.SessionStateIdle, domain.SessionReasonNoActiveRecording},
	})
	if errs := events.snapshotErrors(); len(errs) != 0 {
		t.Fatalf("expected no error events, got %+v", errs)
	}
	if len(uploader.snapshot()) != 0 {
		t.Fatalf("expected no upload")
	}
}

func TestSessionControllerLeaveOnlyStopsWhileRecording(t *testing.T) {
	t.Parallel()

	events := &fakeEventSink{}
	audioSession := &fakeAudioSession{chunks: [][]byte{[]byte("x")}}
	uploader := &fakeUploader{reply: domain.Reply{UserText: "u"}}
	controller := NewSessionController(
		&fakeAudioCapture{sessions: []ports.AudioSession{audioSession}},
		uploader,
		events,
		nil,
		Config{},
	)

	if _, err := controller.Leave(context.Background()); !errors.Is(err, ErrNoActiveSession) {
		t.Fatalf("expected ErrNoActiveSession, got %v", err)
	}
	if states := events.snapshotStates(); len(states) != 0 {
		t.Fatalf("expected leave while idle to be silent, got %+v", states)
	}

	mustStart(t, controller)
	if _, err := controller.Leave(context.Background()); err != nil {
		t.Fatalf("leave while recording failed: %v", err)
	}
	if len(uploader.snapshot()) != 1 {
		t.Fatalf("expected leave to submit the recording")
	}
	if audioSession.stops() != 1 {
		t.Fatalf("expected microphone released once, got %d", audioSession.stops())
	}
}

func TestSessionControllerMicrophoneFailureStaysIdle(t *testing.T) {
	t.Parallel()

	events := &fakeEventSink{}
	controller := NewSessionController(
		&fakeAudioCapture{err: errors.New("permission denied")},
		&fakeUploader{},
		events,
		nil,
		Config{},
	)

	err := controller.Start(context.Background())
	if !errors.Is(err, domain.ErrMicrophoneUnavailable) {
		t.Fatalf("expected ErrMicrophoneUnavailable, got %v", err)
	}
	if got := controller.Status(); got.State != domain.SessionStateIdle || got.Active {
		t.Fatalf("expected idle, got %+v", got)
	}

	errs := events.snapshotErrors()
	if len(errs) != 1 || errs[0].code != domain.ErrorCodeMicrophone {
		t.Fatalf("expected microphone error event, got %+v", errs)
	}
	assertStates(t, events.snapshotStates(), []stateEvent{
		{domain.SessionStateIdle, domain.SessionReasonMicUnavailable},
	})

	// The next release after a failed start is a quiet reset.
	if _, err := controller.Stop(context.Background()); !errors.Is(err, ErrNoActiveSession) {
		t.Fatalf("expected ErrNoActiveSession, got %v", err)
	}
}

func TestSessionControllerServerErrorClearsTexts(t *testing.T) {
	t.Parallel()

	events := &fakeEventSink{}
	audioSession := &fakeAudioSession{chunks: [][]byte{[]byte("x")}}
	controller := NewSessionController(
		&fakeAudioCapture{sessions: []ports.AudioSession{audioSession}},
		&fakeUploader{err: &domain.ServerError{StatusCode: 400, Status: "Bad Request", Detail: "bad audio"}},
		events,
		nil,
		Config{},
	)

	mustStart(t, controller)
	_, err := controller.Stop(context.Background())
	var serverErr *domain.ServerError
	if !errors.As(err, &serverErr) {
		t.Fatalf("expected server error, got %v", err)
	}

	errs := events.snapshotErrors()
	if len(errs) != 1 || errs[0].code != domain.ErrorCodeServer || errs[0].detail != "bad audio" {
		t.Fatalf("unexpected error events: %+v", errs)
	}
	convo := events.snapshotConversations()
	last := convo[len(convo)-1]
	if last.user != "" || last.assistant != "" {
		t.Fatalf("expected cleared texts, got %+v", last)
	}
	states := events.snapshotStates()
	if states[len(states)-1] != (stateEvent{domain.SessionStateIdle, domain.SessionReasonRequestFailed}) {
		t.Fatalf("unexpected final state: %+v", states[len(states)-1])
	}
	if audioSession.stops() != 1 {
		t.Fatalf("expected microphone released once, got %d", audioSession.stops())
	}
}

func TestSessionControllerNetworkErrorReturnsToIdle(t *testing.T) {
	t.Parallel()

	events := &fakeEventSink{}
	controller := NewSessionController(
		&fakeAudioCapture{sessions: []ports.AudioSession{&fakeAudioSession{}, &fakeAudioSession{}}},
		&fakeUploader{err: fmt.Errorf("%w: connection refused", domain.ErrNetwork)},
		events,
		nil,
		Config{},
	)

	mustStart(t, controller)
	if _, err := controller.Stop(context.Background()); !errors.Is(err, domain.ErrNetwork) {
		t.Fatalf("expected network error, got %v", err)
	}

	errs := events.snapshotErrors()
	if len(errs) != 1 || errs[0].code != domain.ErrorCodeNetwork {
		t.Fatalf("expected network error event, got %+v", errs)
	}

	// The control is usable again after any error.
	if err := controller.Start(context.Background()); err != nil {
		t.Fatalf("expected restart after network error, got %v", err)
	}
}

func TestSessionControllerStopWhileProcessingIsNoOp(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	uploader := &fakeUploader{block: release, reply: domain.Reply{UserText: "u"}}
	controller := NewSessionController(
		&fakeAudioCapture{sessions: []ports.AudioSession{&fakeAudioSession{}}},
		uploader,
		&fakeEventSink{},
		nil,
		Config{},
	)

	mustStart(t, controller)

	done := make(chan error, 1)
	go func() {
		_, err := controller.Stop(context.Background())
		done <- err
	}()

	waitForState(t, controller, domain.SessionStateProcessing)

	if _, err := controller.Stop(context.Background()); !errors.Is(err, ErrSessionBusy) {
		t.Fatalf("expected ErrSessionBusy while processing, got %v", err)
	}
	if err := controller.Start(context.Background()); !errors.Is(err, ErrSessionBusy) {
		t.Fatalf("expected start to be rejected while processing, got %v", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	if len(uploader.snapshot()) != 1 {
		t.Fatalf("expected exactly one upload, got %d", len(uploader.snapshot()))
	}
}

func TestSessionControllerStopDuringMicrophoneRequestDiscards(t *testing.T) {
	t.Parallel()

	audioSession := &fakeAudioSession{}
	capture := &blockingAudioCapture{
		entered: make(chan struct{}),
		grant:   make(chan struct{}),
		session: audioSession,
	}
	events := &fakeEventSink{}
	uploader := &fakeUploader{}
	controller := NewSessionController(capture, uploader, events, nil, Config{})

	startErr := make(chan error, 1)
	go func() { startErr <- controller.Start(context.Background()) }()
	<-capture.entered

	if !controller.Status().Active {
		t.Fatalf("expected pending acquisition to report active")
	}
	if err := controller.Start(context.Background()); !errors.Is(err, ErrSessionBusy) {
		t.Fatalf("expected second start to be rejected, got %v", err)
	}
	if _, err := controller.Stop(context.Background()); !errors.Is(err, ErrNoActiveSession) {
		t.Fatalf("expected ErrNoActiveSession, got %v", err)
	}

	close(capture.grant)
	if err := <-startErr; !errors.Is(err, ErrStartAborted) {
		t.Fatalf("expected ErrStartAborted, got %v", err)
	}

	if audioSession.stops() != 1 {
		t.Fatalf("expected late stream to be released once, got %d", audioSession.stops())
	}
	if got := controller.Status().State; got != domain.SessionStateIdle {
		t.Fatalf("expected idle, got %s", got)
	}
	if len(uploader.snapshot()) != 0 {
		t.Fatalf("expected no upload for a discarded start")
	}
	assertStates(t, events.snapshotStates(), []stateEvent{
		{domain.SessionStateIdle, domain.SessionReasonRecordingDiscarded},
	})
}

func TestSessionControllerLateStreamReleaseDoesNotBlockStatus(t *testing.T) {
	t.Parallel()

	audioSession := &fakeAudioSession{stopGate: make(chan struct{})}
	capture := &blockingAudioCapture{
		entered: make(chan struct{}),
		grant:   make(chan struct{}),
		session: audioSession,
	}
	controller := NewSessionController(capture, &fakeUploader{}, &fakeEventSink{}, nil, Config{})

	startErr := make(chan error, 1)
	go func() { startErr <- controller.Start(context.Background()) }()
	<-capture.entered

	if err := controller.Abort(); err != nil {
		t.Fatalf("abort failed: %v", err)
	}
	close(capture.grant)

	// Status must not wait for the slow stop of the late stream.
	deadline := time.Now().Add(2 * time.Second)
	for {
		statusDone := make(chan domain.Status, 1)
		go func() { statusDone <- controller.Status() }()
		var status domain.Status
		select {
		case status = <-statusDone:
		case <-time.After(time.Until(deadline)):
			t.Fatalf("status blocked while the late stream was stopping")
		}
		if !status.Active && status.State == domain.SessionStateIdle {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("pending start was never cleared: %+v", status)
		}
		time.Sleep(5 * time.Millisecond)
	}

	select {
	case err := <-startErr:
		t.Fatalf("start returned before the stream was stopped: %v", err)
	default:
	}
	close(audioSession.stopGate)
	if err := <-startErr; !errors.Is(err, ErrStartAborted) {
		t.Fatalf("expected ErrStartAborted, got %v", err)
	}
	if audioSession.stops() != 1 {
		t.Fatalf("expected late stream to be released once, got %d", audioSession.stops())
	}
}

func TestSessionControllerAbortReleasesWithoutUpload(t *testing.T) {
	t.Parallel()

	audioSession := &fakeAudioSession{chunks: [][]byte{[]byte("abc")}}
	uploader := &fakeUploader{}
	events := &fakeEventSink{}
	controller := NewSessionController(
		&fakeAudioCapture{sessions: []ports.AudioSession{audioSession}},
		uploader,
		events,
		nil,
		Config{},
	)

	if err := controller.Abort(); !errors.Is(err, ErrNoActiveSession) {
		t.Fatalf("expected ErrNoActiveSession, got %v", err)
	}

	mustStart(t, controller)
	if err := controller.Abort(); err != nil {
		t.Fatalf("abort failed: %v", err)
	}
	if audioSession.stops() != 1 {
		t.Fatalf("expected microphone released once, got %d", audioSession.stops())
	}
	if len(uploader.snapshot()) != 0 {
		t.Fatalf("expected no upload on abort")
	}
	states := events.snapshotStates()
	if states[len(states)-1].reason != domain.SessionReasonRecordingDiscarded {
		t.Fatalf("expected discarded reason, got %s", states[len(states)-1].reason)
	}
}

func TestSessionControllerStopReportsAudioStopFailure(t *testing.T) {
	t.Parallel()

	audioSession := &fakeAudioSession{stopErr: errors.New("stuck")}
	events := &fakeEventSink{}
	controller := NewSessionController(
		&fakeAudioCapture{sessions: []ports.AudioSession{audioSession}},
		&fakeUploader{reply: domain.Reply{UserText: "u"}},
		events,
		nil,
		Config{},
	)

	mustStart(t, controller)
	if _, err := controller.Stop(context.Background()); err != nil {
		t.Fatalf("stop failure must not abort the upload: %v", err)
	}

	errs := events.snapshotErrors()
	if len(errs) == 0 || errs[0].code != domain.ErrorCodeAudioStop {
		t.Fatalf("expected audio stop error event, got %+v", errs)
	}
	if audioSession.stops() != 1 {
		t.Fatalf("expected microphone released once, got %d", audioSession.stops())
	}
}

func TestSessionControllerStateAlwaysKnown(t *testing.T) {
	t.Parallel()

	sessions := make([]ports.AudioSession, 0, 8)
	for i := 0; i < 8; i++ {
		sessions = append(sessions, &fakeAudioSession{chunks: [][]byte{[]byte("x")}})
	}
	controller := NewSessionController(
		&fakeAudioCapture{sessions: sessions},
		&fakeUploader{reply: domain.Reply{UserText: "u"}},
		&fakeEventSink{},
		nil,
		Config{},
	)

	valid := map[domain.SessionState]bool{
		domain.SessionStateIdle:       true,
		domain.SessionStateRecording:  true,
		domain.SessionStateProcessing: true,
	}

	signals := []bool{true, true, false, false, true, false, true, true, false, false}
	for i, start := range signals {
		if start {
			_ = controller.Start(context.Background())
		} else {
			_, _ = controller.Stop(context.Background())
		}
		if state := controller.Status().State; !valid[state] {
			t.Fatalf("signal %d left unknown state %q", i, state)
		}
	}
	if got := controller.Status().State; got != domain.SessionStateIdle {
		t.Fatalf("expected idle after balanced signals, got %s", got)
	}
}

func TestSessionControllerAsyncReleaseObservesPendingPress(t *testing.T) {
	t.Parallel()

	audioSession := &fakeAudioSession{}
	capture := &blockingAudioCapture{
		entered: make(chan struct{}),
		grant:   make(chan struct{}),
		session: audioSession,
	}
	events := &fakeEventSink{}
	uploader := &fakeUploader{}
	controller := NewSessionController(capture, uploader, events, nil, Config{})

	started := controller.StartAsync(context.Background())
	if err := <-controller.StopAsync(context.Background()); !errors.Is(err, ErrNoActiveSession) {
		t.Fatalf("expected release to abort the pending press, got %v", err)
	}

	<-capture.entered
	close(capture.grant)
	if err := <-started; !errors.Is(err, ErrStartAborted) {
		t.Fatalf("expected ErrStartAborted, got %v", err)
	}
	if audioSession.stops() != 1 {
		t.Fatalf("expected late stream to be released once, got %d", audioSession.stops())
	}
	if len(uploader.snapshot()) != 0 {
		t.Fatalf("expected no upload")
	}
}

func TestSessionControllerAsyncStopTransitionsBeforeReturning(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	uploader := &fakeUploader{block: release, reply: domain.Reply{UserText: "u"}}
	controller := NewSessionController(
		&fakeAudioCapture{sessions: []ports.AudioSession{&fakeAudioSession{chunks: [][]byte{[]byte("ab")}}}},
		uploader,
		&fakeEventSink{},
		nil,
		Config{},
	)

	if err := <-controller.StartAsync(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	done := controller.StopAsync(context.Background())
	if got := controller.Status().State; got != domain.SessionStateProcessing {
		t.Fatalf("expected processing as soon as StopAsync returns, got %s", got)
	}
	if err := <-controller.LeaveAsync(context.Background()); !errors.Is(err, ErrSessionBusy) {
		t.Fatalf("expected leave to be a no-op while processing, got %v", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	if got := controller.Status().State; got != domain.SessionStateIdle {
		t.Fatalf("expected idle, got %s", got)
	}
	if len(uploader.snapshot()) != 1 {
		t.Fatalf("expected one upload, got %d", len(uploader.snapshot()))
	}
}

func mustStart(t *testing.T, controller *SessionController) {
	t.Helper()
	if err := controller.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
}

func waitForState(t *testing.T, controller *SessionController, want domain.SessionState) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if controller.Status().State == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for state %s", want)
}

func assertStates(t *testing.T, got []stateEvent, want []stateEvent) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("expected %d transitions, got %d: %+v", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("transition %d: expected %+v, got %+v", i, want[i], got[i])
		}
	}
}

type fakeAudioCapture struct {
	mu       sync.Mutex
	sessions []ports.AudioSession
	err      error
	calls    int
}

func (f *fakeAudioCapture) Start(_ context.Context, _ ports.AudioConfig) (ports.AudioSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if f.calls >= len(f.sessions) {
		return nil, errors.New("no audio session configured")
	}
	session := f.sessions[f.calls]
	f.calls++
	return session, nil
}

func (f *fakeAudioCapture) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type blockingAudioCapture struct {
	entered chan struct{}
	grant   chan struct{}
	session ports.AudioSession
}

func (f *blockingAudioCapture) Start(_ context.Context, _ ports.AudioConfig) (ports.AudioSession, error) {
	close(f.entered)
	<-f.grant
	return f.session, nil
}

type fakeAudioSession struct {
	mu        sync.Mutex
	chunks    [][]byte
	index     int
	stopCalls int
	stopErr   error
	// stopGate, when set, holds Stop until it is closed.
	stopGate chan struct{}
}

func (f *fakeAudioSession) Read(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.index >= len(f.chunks) {
		return 0, io.EOF
	}
	n := copy(p, f.chunks[f.index])
	f.index++
	return n, nil
}

func (f *fakeAudioSession) Close() error { return nil }

func (f *fakeAudioSession) Stop() error {
	if f.stopGate != nil {
		<-f.stopGate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopCalls++
	return f.stopErr
}

func (f *fakeAudioSession) stops() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stopCalls
}

type fakeUploader struct {
	mu         sync.Mutex
	reply      domain.Reply
	err        error
	block      chan struct{}
	recordings []domain.Recording
}

func (f *fakeUploader) Submit(ctx context.Context, recording domain.Recording) (domain.Reply, error) {
	f.mu.Lock()
	f.recordings = append(f.recordings, recording)
	f.mu.Unlock()

	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return domain.Reply{}, ctx.Err()
		}
	}
	if f.err != nil {
		return domain.Reply{}, f.err
	}
	return f.reply, nil
}

func (f *fakeUploader) snapshot() []domain.Recording {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.Recording, len(f.recordings))
	copy(out, f.recordings)
	return out
}

type fakeEventSink struct {
	mu sync.Mutex

	states        []stateEvent
	conversations []conversationEvent
	playbacks     []string
	errors        []errEvent
}

type stateEvent struct {
	state  domain.SessionState
	reason domain.SessionStateReason
}

type conversationEvent struct {
	user      string
	assistant string
}

type errEvent struct {
	code   domain.ErrorCode
	detail string
}

func (f *fakeEventSink) SessionStateChanged(state domain.SessionState, reason domain.SessionStateReason) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.states = append(f.states, stateEvent{state: state, reason: reason})
}

func (f *fakeEventSink) ConversationUpdated(userText string, assistantText string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.conversations = append(f.conversations, conversationEvent{user: userText, assistant: assistantText})
}

func (f *fakeEventSink) PlaybackRequested(source string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.playbacks = append(f.playbacks, source)
}

func (f *fakeEventSink) SessionError(code domain.ErrorCode, detail string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errors = append(f.errors, errEvent{code: code, detail: detail})
}

func (f *fakeEventSink) snapshotStates() []stateEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]stateEvent, len(f.states))
	copy(out, f.states)
	return out
}

func (f *fakeEventSink) snapshotConversations() []conversationEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]conversationEvent, len(f.conversations))
	copy(out, f.conversations)
	return out
}

func (f *fakeEventSink) snapshotErrors() []errEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]errEvent, len(f.errors))
	copy(out, f.errors)
	return out
}
