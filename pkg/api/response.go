package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dmitrymomot/wapair/pkg/logger"
)

// Response renders itself to an http.ResponseWriter.
type Response interface {
	Render(w http.ResponseWriter, r *http.Request) error
}

type jsonResponse struct {
	status int
	body   any
}

// JSON renders body with the given status.
func JSON(status int, body any) Response {
	return jsonResponse{status: status, body: body}
}

func (j jsonResponse) Render(w http.ResponseWriter, _ *http.Request) error {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(j.status)
	return json.NewEncoder(w).Encode(j.body)
}

type errorBody struct {
	Error string `json:"error"`
}

// Error renders {"error": message} with the given status.
func Error(status int, err error) Response {
	return JSON(status, errorBody{Error: message(err)})
}

type emptyResponse int

// Empty writes only the status line.
func Empty(status int) Response {
	return emptyResponse(status)
}

func (e emptyResponse) Render(w http.ResponseWriter, _ *http.Request) error {
	w.WriteHeader(int(e))
	return nil
}

// message flattens errors.Join output onto one line.
func message(err error) string {
	if err == nil {
		return http.StatusText(http.StatusInternalServerError)
	}
	return strings.ReplaceAll(err.Error(), "\n", ": ")
}

// handle adapts a Response-returning function to http.HandlerFunc.
func handle(log *slog.Logger, fn func(r *http.Request) Response) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := fn(r).Render(w, r); err != nil {
			log.ErrorContext(r.Context(), "failed to render response", logger.Error(err))
		}
	}
}
