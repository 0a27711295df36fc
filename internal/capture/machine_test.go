package capture

import (
	"context"
	"errors"
	"io/fs"
	"sync"
	"testing"
	"time"
)

type fakeRecording struct {
	chunks chan []byte
	final  []byte
	once   sync.Once
}

func newFakeRecording(final []byte) *fakeRecording {
	return &fakeRecording{chunks: make(chan []byte, 16), final: final}
}

// Stop delivers the final chunk later, then signals completion by closing
// the channel, the way a real encoder flushes after stop.
func (r *fakeRecording) Stop() error {
	r.once.Do(func() {
		go func() {
			time.Sleep(20 * time.Millisecond)
			if r.final != nil {
				r.chunks <- r.final
			}
			close(r.chunks)
		}()
	})
	return nil
}

func (r *fakeRecording) Chunks() <-chan []byte { return r.chunks }
func (r *fakeRecording) MIMEType() string      { return "video/webm" }

type fakeStream struct {
	mu    sync.Mutex
	takes []*fakeRecording
	final []byte
}

func (s *fakeStream) Record(context.Context) (Recording, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := newFakeRecording(s.final)
	s.takes = append(s.takes, r)
	return r, nil
}

func (s *fakeStream) Close() error { return nil }

func (s *fakeStream) last() *fakeRecording {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.takes[len(s.takes)-1]
}

type fakeDevice struct {
	stream *fakeStream
	err    error
	calls  int
}

func (d *fakeDevice) Acquire(context.Context) (Stream, error) {
	d.calls++
	if d.err != nil {
		return nil, d.err
	}
	return d.stream, nil
}

// scriptedUploader reports the given progress values and then fails or
// succeeds. With block set it waits for cancellation instead.
type scriptedUploader struct {
	mu       sync.Mutex
	progress [][]float64
	results  []error
	block    bool
	calls    int
}

func (u *scriptedUploader) Upload(ctx context.Context, a Artifact, progress func(float64)) (string, error) {
	u.mu.Lock()
	call := u.calls
	u.calls++
	block := u.block
	var steps []float64
	if call < len(u.progress) {
		steps = u.progress[call]
	}
	var result error
	if call < len(u.results) {
		result = u.results[call]
	}
	u.mu.Unlock()

	for _, p := range steps {
		progress(p)
	}
	if block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if result != nil {
		return "", result
	}
	return "s3://pitches/take.webm", nil
}

func TestNextIsTotal(t *testing.T) {
	known := map[State]bool{}
	for _, s := range States {
		known[s] = true
	}

	for _, s := range States {
		for _, a := range Actions {
			next, ok := Next(s, a)
			if !known[next] {
				t.Fatalf("Next(%s, %s) = unknown state %q", s, a, next)
			}
			if !ok && next != s {
				t.Fatalf("no-op Next(%s, %s) changed state to %s", s, a, next)
			}
		}
	}

	cases := []struct {
		state  State
		action Action
		want   State
		ok     bool
	}{
		{StateIdle, ActionStop, StateIdle, false},
		{StateUploading, ActionRetry, StateUploading, false},
		{StateIdle, ActionStart, StateRecording, true},
		{StateRecording, ActionStop, StateReviewing, true},
		{StateRecording, ActionAbort, StateIdle, true},
		{StateReviewing, ActionRedo, StateIdle, true},
		{StateReviewing, ActionConfirm, StateUploading, true},
		{StateUploading, ActionAbort, StateReviewing, true},
		{StateUploadError, ActionRetry, StateUploading, true},
		{StateUploadError, ActionAbort, StateReviewing, true},
		{StateDone, ActionStart, StateDone, false},
	}
	for _, tc := range cases {
		got, ok := Next(tc.state, tc.action)
		if got != tc.want || ok != tc.ok {
			t.Errorf("Next(%s, %s) = %s, %v; want %s, %v", tc.state, tc.action, got, ok, tc.want, tc.ok)
		}
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{name: "permission", err: ErrPermissionDenied, want: KindPermissionDenied},
		{name: "fs permission", err: &fs.PathError{Op: "open", Path: "/dev/video0", Err: fs.ErrPermission}, want: KindPermissionDenied},
		{name: "not found", err: ErrDeviceNotFound, want: KindNotFound},
		{name: "fs not exist", err: fs.ErrNotExist, want: KindNotFound},
		{name: "other", err: errors.New("busy"), want: KindFault},
		{name: "already classified", err: &DeviceError{Kind: KindNotFound, Err: errors.New("x")}, want: KindNotFound},
	}

	messages := map[string]bool{}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			de := Classify(tc.err)
			if de.Kind != tc.want {
				t.Fatalf("Classify() kind = %s, want %s", de.Kind, tc.want)
			}
			if de.UserMessage() == "" {
				t.Fatal("empty user message")
			}
			messages[de.UserMessage()] = true
		})
	}
	if len(messages) != 3 {
		t.Fatalf("expected three distinct messages, got %d", len(messages))
	}
	if Classify(nil) != nil {
		t.Fatal("Classify(nil) should be nil")
	}
}

func recordTake(t *testing.T, m *Machine, stream *fakeStream, chunks ...string) {
	t.Helper()
	ctx := context.Background()

	if changed, err := m.Dispatch(ctx, ActionStart); !changed || err != nil {
		t.Fatalf("start: %v %v", changed, err)
	}
	for _, c := range chunks {
		stream.last().chunks <- []byte(c)
	}
	if changed, err := m.Dispatch(ctx, ActionStop); !changed || err != nil {
		t.Fatalf("stop: %v %v", changed, err)
	}
}

func TestStopWaitsForFinalChunk(t *testing.T) {
	stream := &fakeStream{final: []byte("-tail")}
	m := NewMachine(nil, &fakeDevice{stream: stream}, &scriptedUploader{})
	defer m.Close()

	if err := m.Mount(context.Background()); err != nil {
		t.Fatalf("mount: %v", err)
	}
	recordTake(t, m, stream, "head", "-body")

	snap := m.Snapshot()
	if snap.State != StateReviewing {
		t.Fatalf("state = %s, want reviewing", snap.State)
	}
	if got := string(snap.Artifact.Data); got != "head-body-tail" {
		t.Fatalf("artifact = %q, final chunk missing", got)
	}
	if snap.Artifact.Chunks != 3 || snap.Artifact.MIMEType != "video/webm" {
		t.Fatalf("unexpected artifact %+v", snap.Artifact)
	}
}

func TestStartWithoutStream(t *testing.T) {
	device := &fakeDevice{err: ErrPermissionDenied}
	m := NewMachine(nil, device, &scriptedUploader{})
	defer m.Close()

	err := m.Mount(context.Background())
	var de *DeviceError
	if !errors.As(err, &de) || de.Kind != KindPermissionDenied {
		t.Fatalf("expected permission error, got %v", err)
	}

	if changed, err := m.Dispatch(context.Background(), ActionStart); changed || !errors.Is(err, ErrNoStream) {
		t.Fatalf("start without stream: %v %v", changed, err)
	}
	if m.Snapshot().State != StateIdle {
		t.Fatal("state changed without stream")
	}

	device.err = nil
	device.stream = &fakeStream{}
	if err := m.Reacquire(context.Background()); err != nil {
		t.Fatalf("reacquire: %v", err)
	}
	if snap := m.Snapshot(); !snap.HasStream || snap.DeviceError != nil {
		t.Fatalf("reacquire did not recover: %+v", snap)
	}
	if device.calls != 2 {
		t.Fatalf("expected 2 acquisitions, got %d", device.calls)
	}
}

func TestRedoKeepsStream(t *testing.T) {
	stream := &fakeStream{}
	device := &fakeDevice{stream: stream}
	m := NewMachine(nil, device, &scriptedUploader{})
	defer m.Close()

	_ = m.Mount(context.Background())
	recordTake(t, m, stream, "a")

	if changed, _ := m.Dispatch(context.Background(), ActionRedo); !changed {
		t.Fatal("redo was a no-op")
	}
	snap := m.Snapshot()
	if snap.State != StateIdle || snap.Artifact != nil || !snap.HasStream {
		t.Fatalf("unexpected snapshot after redo %+v", snap)
	}
	if device.calls != 1 {
		t.Fatalf("redo re-acquired the device")
	}
}

func TestUploadFailureThenRetry(t *testing.T) {
	stream := &fakeStream{}
	uploader := &scriptedUploader{
		progress: [][]float64{{10, 60, 40}, {20, 15, 90}},
		results:  []error{errors.New("connection reset"), nil},
	}
	m := NewMachine(nil, &fakeDevice{stream: stream}, uploader)
	defer m.Close()

	var (
		mu        sync.Mutex
		seen      []float64
		completed []string
	)
	m.OnProgress = func(p float64) {
		mu.Lock()
		seen = append(seen, p)
		mu.Unlock()
	}
	m.OnComplete = func(ref string) {
		mu.Lock()
		completed = append(completed, ref)
		mu.Unlock()
	}

	_ = m.Mount(context.Background())
	recordTake(t, m, stream, "pitch")

	if changed, _ := m.Dispatch(context.Background(), ActionConfirm); !changed {
		t.Fatal("confirm was a no-op")
	}
	m.Wait()

	snap := m.Snapshot()
	if snap.State != StateUploadError || snap.UploadError == nil {
		t.Fatalf("expected upload_error, got %+v", snap)
	}
	if snap.Artifact == nil || string(snap.Artifact.Data) != "pitch" {
		t.Fatal("artifact lost on upload error")
	}

	if changed, _ := m.Dispatch(context.Background(), ActionRetry); !changed {
		t.Fatal("retry was a no-op")
	}
	m.Wait()

	snap = m.Snapshot()
	if snap.State != StateDone || snap.Progress != 100 || snap.Ref == "" {
		t.Fatalf("expected done, got %+v", snap)
	}

	mu.Lock()
	defer mu.Unlock()
	want := []float64{10, 60, 20, 90, 100}
	if len(seen) != len(want) {
		t.Fatalf("progress = %v, want %v", seen, want)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("progress = %v, want %v", seen, want)
		}
	}
	if len(completed) != 1 {
		t.Fatalf("completion fired %d times", len(completed))
	}
}

func TestAbortUploadKeepsArtifact(t *testing.T) {
	stream := &fakeStream{}
	uploader := &scriptedUploader{progress: [][]float64{{30}}, block: true}
	m := NewMachine(nil, &fakeDevice{stream: stream}, uploader)
	defer m.Close()

	completed := 0
	m.OnComplete = func(string) { completed++ }

	_ = m.Mount(context.Background())
	recordTake(t, m, stream, "pitch")
	_, _ = m.Dispatch(context.Background(), ActionConfirm)

	if changed, _ := m.Dispatch(context.Background(), ActionRetry); changed {
		t.Fatal("retry while uploading changed state")
	}
	if changed, _ := m.Dispatch(context.Background(), ActionAbort); !changed {
		t.Fatal("abort was a no-op")
	}
	m.Wait()

	snap := m.Snapshot()
	if snap.State != StateReviewing || snap.Artifact == nil || snap.UploadError != nil {
		t.Fatalf("unexpected snapshot after abort %+v", snap)
	}
	if completed != 0 {
		t.Fatal("completion fired for an aborted upload")
	}
}

func TestAbortRecordingDiscardsChunks(t *testing.T) {
	stream := &fakeStream{final: []byte("tail")}
	m := NewMachine(nil, &fakeDevice{stream: stream}, &scriptedUploader{})
	defer m.Close()

	_ = m.Mount(context.Background())
	_, _ = m.Dispatch(context.Background(), ActionStart)
	stream.last().chunks <- []byte("partial")

	if changed, _ := m.Dispatch(context.Background(), ActionAbort); !changed {
		t.Fatal("abort was a no-op")
	}
	m.Wait()

	snap := m.Snapshot()
	if snap.State != StateIdle || snap.Artifact != nil {
		t.Fatalf("unexpected snapshot after abort %+v", snap)
	}
	if changed, _ := m.Dispatch(context.Background(), ActionStop); changed {
		t.Fatal("stop after abort changed state")
	}
}

func TestConcurrentStopSettlesOnce(t *testing.T) {
	stream := &fakeStream{final: []byte("-tail")}
	m := NewMachine(nil, &fakeDevice{stream: stream}, &scriptedUploader{})
	defer m.Close()

	if err := m.Mount(context.Background()); err != nil {
		t.Fatalf("mount: %v", err)
	}
	if changed, err := m.Dispatch(context.Background(), ActionStart); !changed || err != nil {
		t.Fatalf("start: %v %v", changed, err)
	}
	stream.last().chunks <- []byte("head")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var wg sync.WaitGroup
	results := make(chan bool, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			changed, err := m.Dispatch(ctx, ActionStop)
			if err != nil {
				t.Errorf("stop: %v", err)
			}
			results <- changed
		}()
	}
	wg.Wait()
	close(results)

	transitions := 0
	for changed := range results {
		if changed {
			transitions++
		}
	}
	if transitions != 1 {
		t.Fatalf("expected exactly one stop to transition, got %d", transitions)
	}
	if snap := m.Snapshot(); snap.State != StateReviewing || string(snap.Artifact.Data) != "head-tail" {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
}

func TestStopCancelledCanBeRetried(t *testing.T) {
	stream := &fakeStream{final: []byte("-tail")}
	m := NewMachine(nil, &fakeDevice{stream: stream}, &scriptedUploader{})
	defer m.Close()

	if err := m.Mount(context.Background()); err != nil {
		t.Fatalf("mount: %v", err)
	}
	if _, err := m.Dispatch(context.Background(), ActionStart); err != nil {
		t.Fatalf("start: %v", err)
	}

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	if changed, err := m.Dispatch(cancelled, ActionStop); changed || !errors.Is(err, context.Canceled) {
		t.Fatalf("cancelled stop: %v %v", changed, err)
	}

	if changed, err := m.Dispatch(context.Background(), ActionStop); !changed || err != nil {
		t.Fatalf("retried stop: %v %v", changed, err)
	}
	if got := string(m.Snapshot().Artifact.Data); got != "-tail" {
		t.Fatalf("artifact = %q", got)
	}
}
