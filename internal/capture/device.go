package capture

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"mime"
	"strings"
)

var (
	ErrPermissionDenied = errors.New("permission denied")
	ErrDeviceNotFound   = errors.New("device not found")
)

// Device produces a media stream. Acquisition is separate from recording so
// a stream can serve several takes.
type Device interface {
	Acquire(ctx context.Context) (Stream, error)
}

type Stream interface {
	Record(ctx context.Context) (Recording, error)
	Close() error
}

// Recording delivers media in chunks. Chunks is closed once the recording
// has fully stopped and the last chunk was sent.
type Recording interface {
	Chunks() <-chan []byte
	Stop() error
	MIMEType() string
}

type ErrorKind string

const (
	KindPermissionDenied ErrorKind = "permission_denied"
	KindNotFound         ErrorKind = "not_found"
	KindFault            ErrorKind = "fault"
)

var kindMessages = map[ErrorKind]string{
	KindPermissionDenied: "Camera or microphone access was denied. Allow access and try again.",
	KindNotFound:         "No camera or microphone was found. Connect a device and try again.",
	KindFault:            "The recording device could not be started. Try again.",
}

// DeviceError is a classified acquisition failure.
type DeviceError struct {
	Kind ErrorKind
	Err  error
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("acquire device (%s): %v", e.Kind, e.Err)
}

func (e *DeviceError) Unwrap() error { return e.Err }

// UserMessage is what the widget shows for this failure.
func (e *DeviceError) UserMessage() string {
	return kindMessages[e.Kind]
}

// Classify maps an acquisition error to its kind.
func Classify(err error) *DeviceError {
	if err == nil {
		return nil
	}

	var de *DeviceError
	if errors.As(err, &de) {
		return de
	}

	switch {
	case errors.Is(err, ErrPermissionDenied), errors.Is(err, fs.ErrPermission):
		return &DeviceError{Kind: KindPermissionDenied, Err: err}
	case errors.Is(err, ErrDeviceNotFound), errors.Is(err, fs.ErrNotExist):
		return &DeviceError{Kind: KindNotFound, Err: err}
	default:
		return &DeviceError{Kind: KindFault, Err: err}
	}
}

// Artifact is an assembled recording ready for review and upload.
type Artifact struct {
	Data     []byte
	MIMEType string
	Chunks   int
}

func (a *Artifact) Size() int {
	if a == nil {
		return 0
	}
	return len(a.Data)
}

func assemble(chunks [][]byte, mimeType string) *Artifact {
	size := 0
	for _, c := range chunks {
		size += len(c)
	}

	data := make([]byte, 0, size)
	for _, c := range chunks {
		data = append(data, c...)
	}

	return &Artifact{Data: data, MIMEType: mimeType, Chunks: len(chunks)}
}

// mediaTypes covers the containers browsers and capture tools produce; the
// system table often lacks them.
var mediaTypes = map[string]string{
	".webm": "video/webm",
	".mp4":  "video/mp4",
	".mov":  "video/quicktime",
	".mkv":  "video/x-matroska",
	".ogg":  "audio/ogg",
	".wav":  "audio/wav",
}

func typeByExtension(ext string) string {
	if t, ok := mediaTypes[strings.ToLower(ext)]; ok {
		return t
	}
	return mime.TypeByExtension(ext)
}

func extensionByType(mimeType string) string {
	base, _, _ := strings.Cut(mimeType, ";")
	base = strings.TrimSpace(base)
	for ext, t := range mediaTypes {
		if t == base {
			return ext
		}
	}
	if exts, err := mime.ExtensionsByType(base); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ".bin"
}
