package capture

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"

	"github.com/spigell/hirewire/internal/utils"
)

// FileDevice uses a local media file as the capture source. Every take
// replays the file from the start.
type FileDevice struct {
	Path      string
	ChunkSize int
}

func (d FileDevice) Acquire(context.Context) (Stream, error) {
	f, err := os.Open(d.Path)
	if err != nil {
		return nil, Classify(err)
	}
	info, err := f.Stat()
	_ = f.Close()
	if err != nil {
		return nil, Classify(err)
	}
	if info.IsDir() {
		return nil, &DeviceError{Kind: KindNotFound, Err: errors.New(d.Path + " is a directory")}
	}

	size := d.ChunkSize
	if size <= 0 {
		size = defaultChunkSize
	}

	return &fileStream{
		path:      d.Path,
		chunkSize: size,
		mimeType:  utils.FirstNonEmpty(typeByExtension(filepath.Ext(d.Path)), "application/octet-stream"),
	}, nil
}

type fileStream struct {
	path      string
	chunkSize int
	mimeType  string
}

func (s *fileStream) Record(context.Context) (Recording, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, err
	}

	r := &fileRecording{
		chunks:   make(chan []byte),
		mimeType: s.mimeType,
	}
	go r.read(f, s.chunkSize)

	return r, nil
}

func (s *fileStream) Close() error { return nil }

// fileRecording always delivers the whole file; Stop only marks the take as
// finished and the channel closes at end of file.
type fileRecording struct {
	chunks   chan []byte
	mimeType string
}

func (r *fileRecording) read(f *os.File, size int) {
	defer close(r.chunks)
	defer f.Close()

	for {
		buf := make([]byte, size)
		n, err := io.ReadFull(f, buf)
		if n > 0 {
			r.chunks <- buf[:n]
		}
		if err != nil {
			return
		}
	}
}

func (r *fileRecording) Chunks() <-chan []byte { return r.chunks }

func (r *fileRecording) Stop() error { return nil }

func (r *fileRecording) MIMEType() string { return r.mimeType }
