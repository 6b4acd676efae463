package api

import (
	"encoding/json"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/vamp-go/vamp-go/internal/schema"
)

const (
	contentTypeJSON    = "application/json"
	contentTypeMsgpack = "application/msgpack"
)

// WriteError writes an error response using upstream format.
func WriteError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(schema.ErrorResponse{Detail: message})
}

// WriteJSON writes the data structure as JSON.
func WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// WriteMsgpack writes the data structure as MessagePack.
func WriteMsgpack(w http.ResponseWriter, status int, data interface{}) {
	body, err := msgpack.Marshal(data)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "Failed to encode response")
		return
	}
	w.Header().Set("Content-Type", contentTypeMsgpack)
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// WriteResponse encodes data as MessagePack when the client accepts it and as
// JSON otherwise.
func WriteResponse(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	if AcceptsMsgpack(r) {
		WriteMsgpack(w, status, data)
		return
	}
	WriteJSON(w, status, data)
}

// AcceptsMsgpack reports whether the Accept header names MessagePack.
func AcceptsMsgpack(r *http.Request) bool {
	return acceptsMediaType(r, contentTypeMsgpack)
}

// AcceptsJSON reports whether the Accept header names JSON.
func AcceptsJSON(r *http.Request) bool {
	return acceptsMediaType(r, contentTypeJSON)
}

func acceptsMediaType(r *http.Request, want string) bool {
	for _, part := range strings.Split(r.Header.Get("Accept"), ",") {
		mediaType, _, err := mime.ParseMediaType(strings.TrimSpace(part))
		if err == nil && strings.EqualFold(mediaType, want) {
			return true
		}
	}
	return false
}

// WriteAudio writes binary audio data with the appropriate content type.
func WriteAudio(w http.ResponseWriter, format string, data []byte) {
	w.Header().Set("Content-Type", GetAudioContentType(format))
	w.Header().Set("Content-Disposition", "attachment; filename=audio."+strings.ToLower(format))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// GetAudioContentType returns the MIME type for a given audio format.
func GetAudioContentType(format string) string {
	switch strings.ToLower(format) {
	case "wav":
		return "audio/wav"
	case "mp3":
		return "audio/mpeg"
	case "flac":
		return "audio/flac"
	default:
		return "application/octet-stream"
	}
}
