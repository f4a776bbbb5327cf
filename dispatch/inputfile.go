package dispatch

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
)

// InputFile represents a file to upload or reference.
// Use one of the constructors: FromReader, FromBytes, FromPath, FromFileID, FromURL.
type InputFile struct {
	// FileID references an existing file on the remote servers.
	FileID string

	// URL references a file by HTTP URL (the service will download it).
	URL string

	// Reader provides file content for upload.
	// WARNING: io.Reader can only be consumed once. If the request is
	// retried, the retry will send an empty file. Prefer FromBytes or
	// FromPath for retry-safe uploads.
	Reader io.Reader

	// Source is a factory that returns a fresh io.Reader for each attempt.
	// When set, this takes priority over Reader, making the request retry-safe.
	Source func() (io.Reader, error)

	// FileName is required when Reader or Source is set.
	FileName string
}

// FromReader creates an InputFile from an io.Reader.
// Not retry-safe: a retried request finds the reader at EOF.
func FromReader(r io.Reader, filename string) InputFile {
	return InputFile{Reader: r, FileName: filename}
}

// FromBytes creates a retry-safe InputFile from in-memory bytes.
func FromBytes(data []byte, filename string) InputFile {
	return InputFile{
		Source: func() (io.Reader, error) {
			return bytes.NewReader(data), nil
		},
		FileName: filename,
	}
}

// FromPath creates a retry-safe InputFile that opens the given local path
// freshly on every attempt.
func FromPath(path string) InputFile {
	return InputFile{
		Source: func() (io.Reader, error) {
			return os.Open(path)
		},
		FileName: filepath.Base(path),
	}
}

// FromFileID creates an InputFile referencing an existing remote file.
func FromFileID(fileID string) InputFile {
	return InputFile{FileID: fileID}
}

// FromURL creates an InputFile from a URL.
func FromURL(url string) InputFile {
	return InputFile{URL: url}
}

// IsUpload returns true if this InputFile requires upload (has Reader or Source).
func (f InputFile) IsUpload() bool {
	return f.Reader != nil || f.Source != nil
}

// IsEmpty returns true if the InputFile has no value set.
func (f InputFile) IsEmpty() bool {
	return f.FileID == "" && f.URL == "" && f.Reader == nil && f.Source == nil
}

// Value returns the string value (FileID or URL) for form serialization.
// Returns empty string if this is an upload.
func (f InputFile) Value() string {
	if f.FileID != "" {
		return f.FileID
	}
	return f.URL
}

// open returns a reader for the file content.
// If Source is set, returns a fresh reader (retry-safe).
// Otherwise returns Reader directly (single-use).
func (f InputFile) open() (io.Reader, error) {
	if f.Source != nil {
		return f.Source()
	}
	return f.Reader, nil
}
