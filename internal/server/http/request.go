package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/dmitrijs2005/staffkeeper/internal/server/services"
)

const multipartMemory = 1 << 20

var errTooLarge = errors.New("request body too large")

// requestData holds body fields keyed by name as JSON values. Form posts are
// converted so that every value is a JSON string.
type requestData struct {
	fields map[string]json.RawMessage
	form   *multipart.Form
}

// readRequest accepts application/json, multipart/form-data and
// application/x-www-form-urlencoded bodies. An empty body yields no fields.
func readRequest(w http.ResponseWriter, r *http.Request) (*requestData, error) {
	d := &requestData{fields: map[string]json.RawMessage{}}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "multipart/form-data":
		r.Body = http.MaxBytesReader(w, r.Body, maxMultipartBody)
		if err := r.ParseMultipartForm(multipartMemory); err != nil {
			return nil, bodyErr(err)
		}
		d.form = r.MultipartForm
		d.addValues(r.MultipartForm.Value)

	case "application/x-www-form-urlencoded":
		r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
		if err := r.ParseForm(); err != nil {
			return nil, bodyErr(err)
		}
		d.addValues(r.PostForm)

	default:
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxJSONBody))
		if err != nil {
			return nil, bodyErr(err)
		}
		if len(bytes.TrimSpace(body)) == 0 {
			return d, nil
		}
		if err := json.Unmarshal(body, &d.fields); err != nil {
			return nil, fmt.Errorf("decode json body: %w", err)
		}
		if d.fields == nil {
			d.fields = map[string]json.RawMessage{}
		}
	}

	return d, nil
}

func bodyErr(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return errTooLarge
	}
	return err
}

func (d *requestData) addValues(values map[string][]string) {
	for k, vs := range values {
		if len(vs) == 0 {
			continue
		}
		raw, _ := json.Marshal(vs[0])
		d.fields[k] = raw
	}
}

// String returns the field as text. Numbers and booleans are returned in
// their literal form; null and absent fields are empty.
func (d *requestData) String(key string) string {
	raw, ok := d.fields[key]
	if !ok {
		return ""
	}
	raw = bytes.TrimSpace(raw)
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	if bytes.Equal(raw, []byte("null")) {
		return ""
	}
	return string(raw)
}

// Avatar opens the uploaded file under key, if any. The content type is
// sniffed from the file itself; the part header is not trusted. The returned
// closer must be called once the upload is consumed.
func (d *requestData) Avatar(key string) (*services.AvatarUpload, func(), error) {
	if d.form == nil || len(d.form.File[key]) == 0 {
		return nil, func() {}, nil
	}
	fh := d.form.File[key][0]
	f, err := fh.Open()
	if err != nil {
		return nil, func() {}, fmt.Errorf("open upload: %w", err)
	}
	closer := func() { _ = f.Close() }

	contentType, err := sniffContentType(f)
	if err != nil {
		closer()
		return nil, func() {}, fmt.Errorf("read upload: %w", err)
	}

	return &services.AvatarUpload{
		Filename:    fh.Filename,
		ContentType: contentType,
		Size:        fh.Size,
		Body:        f,
	}, closer, nil
}

// sniffContentType detects the media type from the first 512 bytes of f
// and rewinds it.
func sniffContentType(f io.ReadSeeker) (string, error) {
	head := make([]byte, 512)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	ct, _, _ := mime.ParseMediaType(http.DetectContentType(head[:n]))
	return strings.ToLower(ct), nil
}

// writeBodyError answers a request whose body could not be read.
func writeBodyError(w http.ResponseWriter, err error) {
	if errors.Is(err, errTooLarge) {
		writeError(w, http.StatusRequestEntityTooLarge, "request_too_large")
		return
	}
	writeError(w, http.StatusBadRequest, "invalid_request")
}

// writeUploadBodyError is writeBodyError for endpoints taking an avatar: an
// oversized multipart body can only be the file, so it is reported as a
// field error on avatar like any other avatar that is too large.
func writeUploadBodyError(w http.ResponseWriter, r *http.Request, err error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if errors.Is(err, errTooLarge) && mediaType == "multipart/form-data" {
		writeJSON(w, http.StatusBadRequest, validationResponse{
			Error:  "validation_error",
			Fields: map[string][]string{"avatar": {services.AvatarTooLargeMessage}},
		})
		return
	}
	writeBodyError(w, err)
}
