package capture

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/spigell/hirewire/internal/logger"
	"github.com/spigell/hirewire/internal/metrics"
)

var (
	ErrNoStream      = errors.New("no media stream acquired")
	ErrBusy          = errors.New("device is recording")
	ErrUnknownAction = errors.New("unknown action")
)

// Uploader transfers an artifact and returns a reference to the stored copy.
// progress is called with percentages as the transfer advances.
type Uploader interface {
	Upload(ctx context.Context, a Artifact, progress func(float64)) (string, error)
}

// Snapshot is a consistent view of the machine for rendering.
type Snapshot struct {
	State       State
	Progress    float64
	Artifact    *Artifact
	HasStream   bool
	DeviceError *DeviceError
	UploadError error
	Ref         string
}

// Machine drives one capture widget: recording, review and upload.
type Machine struct {
	logger   *zap.Logger
	device   Device
	uploader Uploader

	// OnComplete is called once, with the stored reference, when an upload
	// succeeds.
	OnComplete func(ref string)
	// OnProgress receives every accepted progress value.
	OnProgress func(float64)

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu        sync.Mutex
	state     State
	stream    Stream
	deviceErr *DeviceError

	take      uint64
	recording Recording
	collected chan [][]byte
	artifact  *Artifact

	attempt       uint64
	cancelAttempt context.CancelFunc
	progress      float64
	uploadErr     error
	ref           string
	completed     bool
}

func NewMachine(log *zap.Logger, device Device, uploader Uploader) *Machine {
	ctx, cancel := context.WithCancel(context.Background())

	return &Machine{
		logger:   logger.ForComponent(logger.OrNop(log), "capture"),
		device:   device,
		uploader: uploader,
		ctx:      ctx,
		cancel:   cancel,
		state:    StateIdle,
	}
}

// Mount acquires the device. Failures are classified and kept in the
// snapshot; nothing retries them.
func (m *Machine) Mount(ctx context.Context) error {
	return m.acquire(ctx)
}

// Reacquire runs acquisition again after a device failure.
func (m *Machine) Reacquire(ctx context.Context) error {
	return m.acquire(ctx)
}

func (m *Machine) acquire(ctx context.Context) error {
	m.mu.Lock()
	if m.state == StateRecording {
		m.mu.Unlock()
		return ErrBusy
	}
	m.mu.Unlock()

	stream, err := m.device.Acquire(ctx)

	m.mu.Lock()
	previous := m.stream
	if err != nil {
		m.stream = nil
		m.deviceErr = Classify(err)
	} else {
		m.stream = stream
		m.deviceErr = nil
	}
	deviceErr := m.deviceErr
	m.mu.Unlock()

	if previous != nil {
		_ = previous.Close()
	}

	if deviceErr != nil {
		m.logger.Warn("device acquisition failed", zap.String("kind", string(deviceErr.Kind)), zap.Error(err))
		return deviceErr
	}

	m.logger.Debug("device acquired")
	return nil
}

// Dispatch applies a user action. changed is false when the action has no
// transition from the current state.
func (m *Machine) Dispatch(ctx context.Context, a Action) (changed bool, err error) {
	switch a {
	case ActionStart:
		return m.start(ctx)
	case ActionStop:
		return m.stop(ctx)
	case ActionRedo:
		return m.redo()
	case ActionConfirm, ActionRetry:
		return m.upload(a)
	case ActionAbort:
		return m.abort()
	default:
		return false, fmt.Errorf("%w: %q", ErrUnknownAction, a)
	}
}

func (m *Machine) start(ctx context.Context) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	next, ok := Next(m.state, ActionStart)
	if !ok {
		return false, nil
	}
	if m.stream == nil {
		return false, ErrNoStream
	}

	rec, err := m.stream.Record(ctx)
	if err != nil {
		return false, fmt.Errorf("start recording: %w", err)
	}

	collected := make(chan [][]byte, 1)
	m.take++
	m.recording = rec
	m.collected = collected
	m.artifact = nil
	m.state = next

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()

		var chunks [][]byte
		for chunk := range rec.Chunks() {
			if len(chunk) > 0 {
				chunks = append(chunks, chunk)
			}
		}
		collected <- chunks
	}()

	m.logger.Debug("recording started")
	return true, nil
}

// stop ends the take and assembles the artifact once the recording reports
// that its last chunk was delivered.
func (m *Machine) stop(ctx context.Context) (bool, error) {
	m.mu.Lock()
	next, ok := Next(m.state, ActionStop)
	if !ok || m.collected == nil {
		m.mu.Unlock()
		return false, nil
	}
	// Claim the take: a concurrent stop finds nothing to wait on.
	rec, collected, take := m.recording, m.collected, m.take
	m.collected = nil
	m.mu.Unlock()

	if err := rec.Stop(); err != nil {
		m.logger.Warn("stop recording", zap.Error(err))
	}

	var chunks [][]byte
	select {
	case chunks = <-collected:
	case <-ctx.Done():
		m.mu.Lock()
		if m.take == take && m.state == StateRecording && m.collected == nil {
			m.collected = collected
		}
		m.mu.Unlock()
		return false, ctx.Err()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.take != take || m.state != StateRecording {
		return false, nil
	}

	m.artifact = assemble(chunks, rec.MIMEType())
	m.recording = nil
	m.collected = nil
	m.state = next

	m.logger.Debug("recording assembled", zap.Int("chunks", m.artifact.Chunks), zap.Int("bytes", m.artifact.Size()))
	return true, nil
}

func (m *Machine) redo() (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	next, ok := Next(m.state, ActionRedo)
	if !ok {
		return false, nil
	}

	m.artifact = nil
	m.state = next
	return true, nil
}

func (m *Machine) upload(a Action) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	next, ok := Next(m.state, a)
	if !ok || m.artifact == nil {
		return false, nil
	}

	m.attempt++
	attempt := m.attempt
	ctx, cancel := context.WithCancel(m.ctx)

	m.cancelAttempt = cancel
	m.progress = 0
	m.uploadErr = nil
	m.state = next
	artifact := *m.artifact

	m.wg.Add(1)
	go m.runUpload(ctx, cancel, attempt, artifact)

	m.logger.Debug("upload started", zap.Uint64("attempt", attempt), zap.Int("bytes", artifact.Size()))
	return true, nil
}

func (m *Machine) runUpload(ctx context.Context, cancel context.CancelFunc, attempt uint64, artifact Artifact) {
	defer m.wg.Done()
	defer cancel()

	ref, err := m.uploader.Upload(ctx, artifact, func(p float64) { m.report(attempt, p) })

	m.mu.Lock()
	if attempt != m.attempt || m.state != StateUploading {
		m.mu.Unlock()
		m.logger.Debug("ignoring result of a stale upload", zap.Uint64("attempt", attempt))
		return
	}
	m.cancelAttempt = nil

	if err != nil {
		m.state = StateUploadError
		m.uploadErr = err
		m.mu.Unlock()

		metrics.Uploads.WithLabelValues("failed").Inc()
		m.logger.Warn("upload failed", zap.Uint64("attempt", attempt), zap.Error(err))
		return
	}

	m.progress = 100
	m.ref = ref
	m.state = StateDone
	first := !m.completed
	m.completed = true
	onProgress, onComplete := m.OnProgress, m.OnComplete
	m.mu.Unlock()

	metrics.Uploads.WithLabelValues("done").Inc()
	m.logger.Info("upload finished", zap.String("ref", ref))

	if onProgress != nil {
		onProgress(100)
	}
	if first && onComplete != nil {
		onComplete(ref)
	}
}

// report accepts a progress value of the current attempt. Values are clamped
// to 0..100 and never move backwards.
func (m *Machine) report(attempt uint64, p float64) {
	m.mu.Lock()
	if attempt != m.attempt || m.state != StateUploading {
		m.mu.Unlock()
		return
	}

	switch {
	case p > 100:
		p = 100
	case p < 0:
		p = 0
	}
	if p <= m.progress {
		m.mu.Unlock()
		return
	}
	m.progress = p
	onProgress := m.OnProgress
	m.mu.Unlock()

	if onProgress != nil {
		onProgress(p)
	}
}

func (m *Machine) abort() (bool, error) {
	m.mu.Lock()

	next, ok := Next(m.state, ActionAbort)
	if !ok {
		m.mu.Unlock()
		return false, nil
	}

	switch m.state {
	case StateRecording:
		rec := m.recording
		m.take++
		m.recording = nil
		m.collected = nil
		m.state = next
		m.mu.Unlock()

		if err := rec.Stop(); err != nil {
			m.logger.Warn("stop recording", zap.Error(err))
		}
		m.logger.Debug("recording discarded")
		return true, nil

	default:
		m.attempt++
		cancel := m.cancelAttempt
		m.cancelAttempt = nil
		m.progress = 0
		m.uploadErr = nil
		m.state = next
		m.mu.Unlock()

		if cancel != nil {
			cancel()
		}
		metrics.Uploads.WithLabelValues("aborted").Inc()
		m.logger.Debug("upload aborted, artifact kept")
		return true, nil
	}
}

func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	return Snapshot{
		State:       m.state,
		Progress:    m.progress,
		Artifact:    m.artifact,
		HasStream:   m.stream != nil,
		DeviceError: m.deviceErr,
		UploadError: m.uploadErr,
		Ref:         m.ref,
	}
}

// Wait blocks until background recording and upload work has finished.
func (m *Machine) Wait() {
	m.wg.Wait()
}

// Close cancels any upload, stops any recording and releases the stream.
func (m *Machine) Close() error {
	m.mu.Lock()
	m.attempt++
	m.take++
	switch m.state {
	case StateRecording:
		m.state = StateIdle
	case StateUploading:
		m.state = StateReviewing
	}
	rec := m.recording
	m.recording = nil
	m.collected = nil
	stream := m.stream
	m.stream = nil
	m.mu.Unlock()

	m.cancel()
	if rec != nil {
		_ = rec.Stop()
	}
	m.wg.Wait()

	if stream != nil {
		return stream.Close()
	}
	return nil
}
