package diskworker

import (
	"github.com/google/uuid"

	"github.com/marmos91/tiercache/pkg/asset"
)

// CommandKind identifies the type of a Command.
type CommandKind int

const (
	KindLoadImage CommandKind = iota
	KindSaveToFile
	KindGenerateThumbnail
)

// String returns the string representation of CommandKind.
func (k CommandKind) String() string {
	switch k {
	case KindLoadImage:
		return "load_image"
	case KindSaveToFile:
		return "save_to_file"
	case KindGenerateThumbnail:
		return "generate_thumbnail"
	default:
		return "unknown"
	}
}

// Command is a unit of work for the disk worker.
//
// Commands are values: byte payloads are copied on Submit so the caller and
// the worker never share memory.
type Command interface {
	Kind() CommandKind
	Target() asset.Key
}

// LoadImage reads (and where possible recompresses) an image from disk.
//
// TargetWidth and TargetHeight bound the returned image; zero means use the
// worker's configured maximum dimension. Quality is the JPEG quality for
// recompression; zero means the worker default.
type LoadImage struct {
	Path         asset.Key
	Priority     asset.Priority
	TargetWidth  int
	TargetHeight int
	Quality      int
}

func (LoadImage) Kind() CommandKind   { return KindLoadImage }
func (c LoadImage) Target() asset.Key { return c.Path }

// SaveToFile durably writes Bytes to Path.
type SaveToFile struct {
	Path  asset.Key
	Bytes []byte
}

func (SaveToFile) Kind() CommandKind   { return KindSaveToFile }
func (c SaveToFile) Target() asset.Key { return c.Path }

// GenerateThumbnail is part of the protocol but not implemented; the worker
// answers it with an Error of kind ErrorUnsupported.
type GenerateThumbnail struct {
	Path    asset.Key
	MaxSize int
}

func (GenerateThumbnail) Kind() CommandKind   { return KindGenerateThumbnail }
func (c GenerateThumbnail) Target() asset.Key { return c.Path }

// Request pairs a command with the identifier used to correlate its response.
type Request struct {
	ID      string
	Command Command
}

// NewRequest wraps cmd in a Request with a fresh UUID.
func NewRequest(cmd Command) Request {
	return Request{ID: uuid.NewString(), Command: cmd}
}

// Result is the payload of a Response: ImageLoaded, Error, or FileSaved.
type Result interface {
	result()
}

// ImageLoaded carries freshly allocated encoded bytes.
type ImageLoaded struct {
	Path  asset.Key
	Bytes []byte
}

// Error reports a failed command.
type Error struct {
	Path   asset.Key
	Reason string
	Kind   ErrorKind
}

// FileSaved reports the outcome of a SaveToFile command.
type FileSaved struct {
	Path    asset.Key
	Success bool
}

func (ImageLoaded) result() {}
func (Error) result()       {}
func (FileSaved) result()   {}

// Response answers exactly one Request. Responses may arrive in any order;
// CommandID correlates them.
type Response struct {
	CommandID string
	Result    Result
}
