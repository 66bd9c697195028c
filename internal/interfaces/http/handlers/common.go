// Package handlers implements the HTTP handlers of the molcore API.
package handlers

import (
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"

	"github.com/turtacn/molcore/pkg/errors"
)

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

// writeAppError maps err to the status of its error code. Server-side
// failures are masked.
func writeAppError(w http.ResponseWriter, err error) {
	code := errors.GetCode(err)
	status := errors.HTTPStatusForCode(code)
	if status >= http.StatusInternalServerError {
		writeJSON(w, status, ErrorResponse{
			Code:    string(errors.ErrCodeInternal),
			Message: errors.DefaultMessageForCode(errors.ErrCodeInternal),
		})
		return
	}
	resp := ErrorResponse{Code: string(code), Message: err.Error()}
	var ae *errors.AppError
	if stderrors.As(err, &ae) {
		resp.Message = ae.Message
		resp.Detail = ae.Detail
	}
	writeJSON(w, status, resp)
}

// NotFound answers requests that match no route with a not-found error body.
func NotFound(w http.ResponseWriter, r *http.Request) {
	writeAppError(w, errors.NotFound("no route for "+r.Method+" "+r.URL.Path))
}

// decodeJSON reads at most maxBytes of r's body into dst. Malformed or
// oversized bodies yield a bad-request AppError.
func decodeJSON(w http.ResponseWriter, r *http.Request, maxBytes int64, dst interface{}) error {
	body := http.MaxBytesReader(w, r.Body, maxBytes)
	dec := json.NewDecoder(body)
	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case stderrors.As(err, &tooLarge):
			return errors.InvalidParam("request body too large").WithDetail(err.Error())
		case stderrors.Is(err, io.EOF):
			return errors.InvalidParam("request body is empty")
		default:
			return errors.InvalidParam("malformed request body").WithDetail(err.Error())
		}
	}
	if dec.More() {
		return errors.InvalidParam("malformed request body").WithDetail("trailing data after JSON value")
	}
	return nil
}
