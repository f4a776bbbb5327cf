package dispatch

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeScalars(t *testing.T) {
	form, err := normalizeParams(Params{
		"chat_id":              int64(42),
		"text":                 "hello world",
		"disable_notification": true,
		"message_thread_id":    7,
		"horizontal_accuracy":  1.5,
	})
	require.NoError(t, err)

	assert.False(t, form.hasUploads())
	assert.Equal(t, "42", form.fields.Get("chat_id"))
	assert.Equal(t, "hello world", form.fields.Get("text"))
	assert.Equal(t, "true", form.fields.Get("disable_notification"))
	assert.Equal(t, "7", form.fields.Get("message_thread_id"))
	assert.Equal(t, "1.5", form.fields.Get("horizontal_accuracy"))
}

func TestNormalizeSkipsNilValues(t *testing.T) {
	form, err := normalizeParams(Params{
		"chat_id":      int64(1),
		"reply_markup": nil,
	})
	require.NoError(t, err)
	assert.False(t, form.fields.Has("reply_markup"))
}

func TestNormalizeNestedStructuresAsJSON(t *testing.T) {
	markup := map[string]any{
		"inline_keyboard": [][]map[string]string{
			{{"text": "Yes", "callback_data": "yes"}},
		},
	}

	form, err := normalizeParams(Params{
		"chat_id":      int64(1),
		"reply_markup": markup,
	})
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(form.fields.Get("reply_markup")), &decoded))
	assert.Contains(t, decoded, "inline_keyboard")
}

func TestNormalizeRawJSONPassesThrough(t *testing.T) {
	form, err := normalizeParams(Params{
		"entities": json.RawMessage(`[{"type":"bold","offset":0,"length":5}]`),
	})
	require.NoError(t, err)
	assert.Equal(t, `[{"type":"bold","offset":0,"length":5}]`, form.fields.Get("entities"))
}

func TestNormalizeInputFileUpload(t *testing.T) {
	form, err := normalizeParams(Params{
		"chat_id":  int64(1),
		"document": FromBytes([]byte("data"), "doc.txt"),
	})
	require.NoError(t, err)

	require.True(t, form.hasUploads())
	require.Len(t, form.files, 1)
	assert.Equal(t, "document", form.files[0].FieldName)
	assert.Equal(t, "doc.txt", form.files[0].FileName)

	// Non-file parameters stay in the field set for multipart re-serialization.
	assert.Equal(t, "1", form.fields.Get("chat_id"))
}

func TestNormalizeFileIDStaysInline(t *testing.T) {
	form, err := normalizeParams(Params{
		"document": FromFileID("AgACAgIAAXc"),
	})
	require.NoError(t, err)

	assert.False(t, form.hasUploads())
	assert.Equal(t, "AgACAgIAAXc", form.fields.Get("document"))
}

func TestNormalizeEmptyInputFileFails(t *testing.T) {
	_, err := normalizeParams(Params{
		"document": InputFile{},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "document")
}

func TestNormalizeStringPathBecomesUpload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "upload.bin")
	require.NoError(t, os.WriteFile(path, []byte("payload"), 0o600))

	form, err := normalizeParams(Params{
		"document": path,
	})
	require.NoError(t, err)

	require.True(t, form.hasUploads())
	assert.Equal(t, "upload.bin", form.files[0].FileName)
}

func TestNormalizePlainStringStaysString(t *testing.T) {
	form, err := normalizeParams(Params{
		"text": "/nonexistent/definitely/not/a/file",
	})
	require.NoError(t, err)
	assert.False(t, form.hasUploads())
	assert.Equal(t, "/nonexistent/definitely/not/a/file", form.fields.Get("text"))
}

func TestMultipartEncoderStreamsFilesAndFields(t *testing.T) {
	form, err := normalizeParams(Params{
		"chat_id":  int64(42),
		"caption":  "quarterly report",
		"document": FromBytes([]byte("file-bytes"), "q3.pdf"),
	})
	require.NoError(t, err)

	var buf strings.Builder
	enc := NewMultipartEncoder(&buf)
	require.NoError(t, enc.Encode(form))
	require.NoError(t, enc.Close())

	body := buf.String()
	assert.Contains(t, enc.ContentType(), "multipart/form-data; boundary=")
	assert.Contains(t, body, `filename="q3.pdf"`)
	assert.Contains(t, body, "file-bytes")
	assert.Contains(t, body, `name="chat_id"`)
	assert.Contains(t, body, "quarterly report")
}

func TestFromPathIsRetrySafe(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "retry.txt")
	require.NoError(t, os.WriteFile(path, []byte("same bytes"), 0o600))

	f := FromPath(path)

	for i := 0; i < 2; i++ {
		r, err := f.open()
		require.NoError(t, err)
		data := make([]byte, 16)
		n, _ := r.Read(data)
		assert.Equal(t, "same bytes", string(data[:n]))
		if c, ok := r.(interface{ Close() error }); ok {
			c.Close()
		}
	}
}
