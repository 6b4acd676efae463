package api

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
)

const multipartMemory = 32 << 20

// HTTPError represents an error with an associated HTTP status code.
type HTTPError struct {
	Status  int
	Message string
}

func (e *HTTPError) Error() string {
	return e.Message
}

// ParseRequestBody decodes the request body into the provided value based on
// Content-Type. Fields absent from the body keep the values v already holds.
func ParseRequestBody(r *http.Request, v interface{}) error {
	contentType := r.Header.Get("Content-Type")
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = contentType
	}

	switch strings.ToLower(mediaType) {
	case contentTypeJSON:
		if err := json.NewDecoder(r.Body).Decode(v); err != nil {
			return bodyError(err)
		}
	case contentTypeMsgpack:
		if err := msgpack.NewDecoder(r.Body).Decode(v); err != nil {
			return bodyError(err)
		}
	case "multipart/form-data":
		if err := parseMultipart(r, v); err != nil {
			return err
		}
	default:
		return &HTTPError{Status: http.StatusUnsupportedMediaType, Message: "Unsupported content type"}
	}

	return nil
}

func bodyError(err error) error {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return &HTTPError{Status: http.StatusRequestEntityTooLarge, Message: "Request body too large"}
	}
	return &HTTPError{Status: http.StatusBadRequest, Message: "Invalid request body"}
}

// parseMultipart decodes a multipart/form-data request into v. Uploaded files
// land in the field named after their form key.
func parseMultipart(r *http.Request, v interface{}) error {
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return &HTTPError{Status: http.StatusRequestEntityTooLarge, Message: "Request body too large"}
		}
		return &HTTPError{Status: http.StatusBadRequest, Message: "Invalid multipart form"}
	}

	if len(r.MultipartForm.Value) == 0 && len(r.MultipartForm.File) == 0 {
		return &HTTPError{Status: http.StatusBadRequest, Message: "Empty multipart form"}
	}

	data := map[string]interface{}{}

	// A "payload" field holds the JSON parameters; other fields are merged over it.
	if payloads, ok := r.MultipartForm.Value["payload"]; ok && len(payloads) > 0 {
		if err := json.Unmarshal([]byte(payloads[0]), &data); err != nil {
			return &HTTPError{Status: http.StatusBadRequest, Message: "Invalid multipart payload"}
		}
	}

	for key, values := range r.MultipartForm.Value {
		if key == "payload" || len(values) == 0 {
			continue
		}
		val := values[0]

		var decoded interface{}
		if err := json.Unmarshal([]byte(val), &decoded); err == nil {
			data[key] = decoded
			continue
		}

		data[key] = val
	}

	for key, files := range r.MultipartForm.File {
		if len(files) == 0 {
			continue
		}
		buf, err := readUpload(files[0])
		if err != nil {
			return &HTTPError{Status: http.StatusBadRequest, Message: "Invalid file upload"}
		}
		data[key] = buf
	}

	marshaled, err := json.Marshal(data)
	if err != nil {
		return &HTTPError{Status: http.StatusBadRequest, Message: "Invalid multipart data"}
	}

	if err := json.Unmarshal(marshaled, v); err != nil {
		return &HTTPError{Status: http.StatusBadRequest, Message: "Invalid multipart data"}
	}

	return nil
}

func readUpload(fh *multipart.FileHeader) ([]byte, error) {
	file, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return io.ReadAll(file)
}

// IsHTTPError checks whether an error is an *HTTPError.
func IsHTTPError(err error) (*HTTPError, bool) {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr, true
	}
	return nil, false
}
