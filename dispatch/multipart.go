package dispatch

import (
	"fmt"
	"io"
	"mime/multipart"
)

// MultipartEncoder encodes a normalized form as multipart/form-data.
// File content is streamed, not buffered: every parameter that is not a
// file is re-serialized as a multipart field.
type MultipartEncoder struct {
	w *multipart.Writer
}

// NewMultipartEncoder creates a new multipart encoder writing to w.
func NewMultipartEncoder(w io.Writer) *MultipartEncoder {
	return &MultipartEncoder{
		w: multipart.NewWriter(w),
	}
}

// ContentType returns the Content-Type header value including boundary.
func (e *MultipartEncoder) ContentType() string {
	return e.w.FormDataContentType()
}

// Close closes the multipart writer.
func (e *MultipartEncoder) Close() error {
	return e.w.Close()
}

// Encode writes all file parts and parameter fields of the form.
func (e *MultipartEncoder) Encode(form wireForm) error {
	for _, file := range form.files {
		if err := e.writeFile(file); err != nil {
			return fmt.Errorf("file %s: %w", file.FieldName, err)
		}
	}

	for name, values := range form.fields {
		for _, value := range values {
			if err := e.w.WriteField(name, value); err != nil {
				return fmt.Errorf("param %s: %w", name, err)
			}
		}
	}

	return nil
}

func (e *MultipartEncoder) writeFile(file FilePart) error {
	part, err := e.w.CreateFormFile(file.FieldName, file.FileName)
	if err != nil {
		return fmt.Errorf("create form file: %w", err)
	}

	r, err := file.file.open()
	if err != nil {
		return fmt.Errorf("open: %w", err)
	}
	if c, ok := r.(io.Closer); ok {
		defer c.Close()
	}

	// Stream directly - no buffering
	_, err = io.Copy(part, r)
	return err
}
