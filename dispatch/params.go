package dispatch

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Params is the parameter mapping for one call. Values are scalars,
// nested structures (JSON-encoded before transmission), or file
// references (InputFile, *os.File, or a string that resolves to a
// readable local path).
type Params map[string]any

// FilePart is one file routed to multipart encoding.
type FilePart struct {
	FieldName string
	FileName  string
	file      InputFile
}

// wireForm is the wire-ready shape of a parameter mapping.
// If any file is present the whole request is multipart-encoded;
// otherwise it goes out as application/x-www-form-urlencoded.
type wireForm struct {
	fields url.Values
	files  []FilePart
}

func (f wireForm) hasUploads() bool { return len(f.files) > 0 }

// normalizeParams converts a parameter mapping into wire-ready form:
// scalars are stringified, nested structures JSON-encoded, and file
// references collected for multipart encoding.
func normalizeParams(params Params) (wireForm, error) {
	form := wireForm{fields: url.Values{}}

	for name, value := range params {
		if value == nil {
			continue
		}
		if err := normalizeValue(&form, name, value); err != nil {
			return form, fmt.Errorf("param %s: %w", name, err)
		}
	}

	return form, nil
}

func normalizeValue(form *wireForm, name string, value any) error {
	switch v := value.(type) {
	case InputFile:
		return normalizeInputFile(form, name, v)

	case *InputFile:
		if v == nil {
			return nil
		}
		return normalizeInputFile(form, name, *v)

	case *os.File:
		form.files = append(form.files, FilePart{
			FieldName: name,
			FileName:  filepath.Base(v.Name()),
			file:      FromReader(v, filepath.Base(v.Name())),
		})
		return nil

	case string:
		if isReadablePath(v) {
			f := FromPath(v)
			form.files = append(form.files, FilePart{
				FieldName: name,
				FileName:  f.FileName,
				file:      f,
			})
			return nil
		}
		form.fields.Set(name, v)
		return nil

	case bool:
		form.fields.Set(name, strconv.FormatBool(v))
		return nil

	case int:
		form.fields.Set(name, strconv.Itoa(v))
		return nil

	case int32:
		form.fields.Set(name, strconv.FormatInt(int64(v), 10))
		return nil

	case int64:
		form.fields.Set(name, strconv.FormatInt(v, 10))
		return nil

	case float32:
		form.fields.Set(name, strconv.FormatFloat(float64(v), 'f', -1, 32))
		return nil

	case float64:
		form.fields.Set(name, strconv.FormatFloat(v, 'f', -1, 64))
		return nil

	case json.RawMessage:
		form.fields.Set(name, string(v))
		return nil

	default:
		// Nested structures (structs, slices, maps) are JSON-encoded.
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("JSON marshal: %w", err)
		}
		form.fields.Set(name, string(data))
		return nil
	}
}

func normalizeInputFile(form *wireForm, name string, f InputFile) error {
	if f.IsEmpty() {
		return fmt.Errorf("InputFile must have FileID, URL, Reader, or Source set")
	}
	if !f.IsUpload() {
		form.fields.Set(name, f.Value())
		return nil
	}
	fileName := f.FileName
	if fileName == "" {
		fileName = name
	}
	form.files = append(form.files, FilePart{
		FieldName: name,
		FileName:  fileName,
		file:      f,
	})
	return nil
}

// isReadablePath reports whether s names a readable regular file on the
// local filesystem. Only plausible short single-line strings are checked
// to avoid stat calls on message bodies.
func isReadablePath(s string) bool {
	if s == "" || len(s) > 4096 || strings.ContainsAny(s, "\n\r") {
		return false
	}
	fi, err := os.Stat(s)
	if err != nil || !fi.Mode().IsRegular() {
		return false
	}
	f, err := os.Open(s)
	if err != nil {
		return false
	}
	f.Close()
	return true
}
