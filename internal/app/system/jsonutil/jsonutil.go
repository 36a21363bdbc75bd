// Package jsonutil writes the JSON API's responses. Errors always have the
// shape {"error": "message"}; the message is shown to the user as is, so
// internal details belong in the log, not here.
package jsonutil

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
)

// maxBodyBytes caps a JSON request body. API payloads are short text; media
// goes through multipart forms.
const maxBodyBytes = 1 << 20

// JSON writes data with status. A nil data writes no body.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

func OK(w http.ResponseWriter, data any)      { JSON(w, http.StatusOK, data) }
func Created(w http.ResponseWriter, data any) { JSON(w, http.StatusCreated, data) }
func NoContent(w http.ResponseWriter)         { w.WriteHeader(http.StatusNoContent) }

// Error writes {"error": message} with status.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

func BadRequest(w http.ResponseWriter, message string)    { Error(w, http.StatusBadRequest, message) }
func Unauthorized(w http.ResponseWriter, message string)  { Error(w, http.StatusUnauthorized, message) }
func Forbidden(w http.ResponseWriter, message string)     { Error(w, http.StatusForbidden, message) }
func NotFound(w http.ResponseWriter, message string)      { Error(w, http.StatusNotFound, message) }
func Conflict(w http.ResponseWriter, message string)      { Error(w, http.StatusConflict, message) }
func InternalError(w http.ResponseWriter, message string) { Error(w, http.StatusInternalServerError, message) }

// ErrEmptyBody is returned by Decode for a request without a body.
var ErrEmptyBody = errors.New("request body is empty")

// Decode reads one JSON value from the request body into v. Bodies over
// 1 MiB and trailing data after the value are rejected.
func Decode(r *http.Request, v any) error {
	if r.Body == nil {
		return ErrEmptyBody
	}
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes+1))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return ErrEmptyBody
		}
		return err
	}
	if dec.More() {
		return errors.New("unexpected data after JSON body")
	}
	return nil
}
