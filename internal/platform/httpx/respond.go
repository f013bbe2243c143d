// Package httpx writes JSON and RFC 7807 problem responses for the access API.
package httpx

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
)

// MaxBodyBytes bounds credential and admin request bodies.
const MaxBodyBytes = 64 << 10

// ErrEmptyBody is returned by DecodeJSON when the request carries no payload.
var ErrEmptyBody = errors.New("httpx: empty request body")

// ProblemDetail is the body of every error response.
type ProblemDetail struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// JSON writes data with status and no caching.
func JSON(w http.ResponseWriter, status int, data any) {
	write(w, "application/json", status, data)
}

// Problem answers with application/problem+json. Detail is shown to the
// caller verbatim, so it must never carry backend specifics.
func Problem(w http.ResponseWriter, status int, title, detail string) {
	write(w, "application/problem+json", status, ProblemDetail{
		Type:   "about:blank",
		Title:  title,
		Status: status,
		Detail: detail,
	})
}

func write(w http.ResponseWriter, contentType string, status int, data any) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// DecodeJSON reads at most MaxBodyBytes of r's body into target.
func DecodeJSON(r *http.Request, target any) error {
	if r.Body == nil {
		return ErrEmptyBody
	}
	err := json.NewDecoder(http.MaxBytesReader(nil, r.Body, MaxBodyBytes)).Decode(target)
	if errors.Is(err, io.EOF) {
		return ErrEmptyBody
	}
	return err
}
