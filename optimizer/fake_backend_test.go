package optimizer_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/Skryldev/image-optimizer/core"
)

// fakeHandle is the in-memory image state a fakeBackend mutates.
type fakeHandle struct {
	source      string
	format      string
	frames      int
	orientation int
	flips       int
	rotation    float64
	stripped    bool
	compression core.CompressionSpec
	writtenTo   []string
	released    bool
}

func (h *fakeHandle) Source() string { return h.source }

// fakeBackend records every call it receives, in order.
type fakeBackend struct {
	mu     sync.Mutex
	calls  []string
	failOn map[string]error
	files  map[string]*fakeHandle
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{failOn: map[string]error{}, files: map[string]*fakeHandle{}}
}

var queryCalls = map[string]bool{"frameCount": true, "format": true, "orientation": true}

func (b *fakeBackend) record(call string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, call)
	name := call
	if i := strings.IndexByte(call, '('); i >= 0 {
		name = call[:i]
	}
	return b.failOn[name]
}

func (b *fakeBackend) Calls() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.calls...)
}

// Mutations returns the recorded calls that change image state.
func (b *fakeBackend) Mutations() []string {
	var out []string
	for _, c := range b.Calls() {
		if !queryCalls[c] {
			out = append(out, c)
		}
	}
	return out
}

func (b *fakeBackend) Reset() {
	b.mu.Lock()
	b.calls = nil
	b.mu.Unlock()
}

func (b *fakeBackend) Name() string { return "fake" }

func (b *fakeBackend) Decode(data []byte) (core.Handle, error) {
	if len(data) == 0 {
		return nil, errors.New("fake: empty input")
	}
	return &fakeHandle{format: string(data), frames: 1}, nil
}

func (b *fakeBackend) Open(path string) (core.Handle, error) {
	if err := b.record("open"); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	h, ok := b.files[path]
	if !ok {
		return nil, fmt.Errorf("fake: %s: no such file", path)
	}
	return h, nil
}

func (b *fakeBackend) Format(h core.Handle) (string, error) {
	if err := b.record("format"); err != nil {
		return "", err
	}
	return h.(*fakeHandle).format, nil
}

func (b *fakeBackend) FrameCount(h core.Handle) (int, error) {
	if err := b.record("frameCount"); err != nil {
		return 0, err
	}
	return h.(*fakeHandle).frames, nil
}

func (b *fakeBackend) Orientation(h core.Handle) (int, error) {
	if err := b.record("orientation"); err != nil {
		return 0, err
	}
	return h.(*fakeHandle).orientation, nil
}

func (b *fakeBackend) SetOrientation(h core.Handle, code int) error {
	if err := b.record(fmt.Sprintf("setOrientation(%d)", code)); err != nil {
		return err
	}
	h.(*fakeHandle).orientation = code
	return nil
}

func (b *fakeBackend) FlipHorizontal(h core.Handle) error {
	if err := b.record("flipHorizontal"); err != nil {
		return err
	}
	h.(*fakeHandle).flips++
	return nil
}

func (b *fakeBackend) Rotate(h core.Handle, degrees float64, background string) error {
	if err := b.record(fmt.Sprintf("rotate(%g,%s)", degrees, background)); err != nil {
		return err
	}
	h.(*fakeHandle).rotation += degrees
	return nil
}

func (b *fakeBackend) StripMetadata(h core.Handle) error {
	if err := b.record("stripMetadata"); err != nil {
		return err
	}
	h.(*fakeHandle).stripped = true
	return nil
}

func (b *fakeBackend) SetCompression(h core.Handle, algorithm core.CompressionAlgorithm, quality int) error {
	if err := b.record(fmt.Sprintf("setCompression(%s,%d)", algorithm, quality)); err != nil {
		return err
	}
	h.(*fakeHandle).compression = core.CompressionSpec{Algorithm: algorithm, Quality: quality}
	return nil
}

func (b *fakeBackend) WriteSingleFrame(h core.Handle, destination string) error {
	if err := b.record(fmt.Sprintf("writeSingleFrame(%s)", destination)); err != nil {
		return err
	}
	fh := h.(*fakeHandle)
	fh.writtenTo = append(fh.writtenTo, destination)
	return nil
}

func (b *fakeBackend) WriteAllFrames(h core.Handle, destination string) error {
	if err := b.record(fmt.Sprintf("writeAllFrames(%s)", destination)); err != nil {
		return err
	}
	fh := h.(*fakeHandle)
	fh.writtenTo = append(fh.writtenTo, destination)
	return nil
}

func (b *fakeBackend) Release(h core.Handle) {
	_ = b.record("release")
	h.(*fakeHandle).released = true
}

func (b *fakeBackend) ExportSingleFrame(h core.Handle) ([]byte, error) {
	if err := b.record("exportSingleFrame"); err != nil {
		return nil, err
	}
	return []byte("single:" + h.(*fakeHandle).format), nil
}

func (b *fakeBackend) ExportAllFrames(h core.Handle) ([]byte, error) {
	if err := b.record("exportAllFrames"); err != nil {
		return nil, err
	}
	return []byte("all:" + h.(*fakeHandle).format), nil
}

// memStorage is an in-memory core.StorageAdapter.
type memStorage struct {
	mu      sync.Mutex
	objects map[core.StorageKey][]byte
	meta    map[core.StorageKey]map[string]string
}

func newMemStorage() *memStorage {
	return &memStorage{
		objects: map[core.StorageKey][]byte{},
		meta:    map[core.StorageKey]map[string]string{},
	}
}

func (m *memStorage) Put(_ context.Context, key core.StorageKey, r io.Reader, meta map[string]string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.objects[key] = data
	m.meta[key] = meta
	m.mu.Unlock()
	return nil
}

func (m *memStorage) Get(_ context.Context, key core.StorageKey) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, errors.New("not found")
	}
	return io.NopCloser(strings.NewReader(string(data))), nil
}

func (m *memStorage) Delete(_ context.Context, key core.StorageKey) error {
	m.mu.Lock()
	delete(m.objects, key)
	m.mu.Unlock()
	return nil
}

func (m *memStorage) Exists(_ context.Context, key core.StorageKey) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[key]
	return ok, nil
}

// recordingHook captures step events.
type recordingHook struct {
	mu     sync.Mutex
	events []string
}

func (r *recordingHook) BeforeStep(_ context.Context, name string, _ core.Handle) {
	r.mu.Lock()
	r.events = append(r.events, "before:"+name)
	r.mu.Unlock()
}

func (r *recordingHook) AfterStep(_ context.Context, name string, _ core.Handle, _ time.Duration, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		r.events = append(r.events, "error:"+name)
		return
	}
	r.events = append(r.events, "after:"+name)
}

var (
	_ core.Backend        = (*fakeBackend)(nil)
	_ core.Exporter       = (*fakeBackend)(nil)
	_ core.StorageAdapter = (*memStorage)(nil)
	_ core.Hook           = (*recordingHook)(nil)
)
