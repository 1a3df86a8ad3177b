package httpapi

import (
	"net/http"

	json "github.com/goccy/go-json"
	"github.com/hashicorp/go-hclog"
)

// ErrorResponse is the body of every 4xx answer.
type ErrorResponse struct {
	Err string `json:"error"`
}

func WriteResponse(w http.ResponseWriter, r *http.Request, status int, response any, logger hclog.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(response); err != nil {
		logger.Error("write response error", "url", r.URL, "status", status, "err", err)
	}
}

func WriteErrorResponse(w http.ResponseWriter, r *http.Request, status int, err error, logger hclog.Logger) {
	logger.Info("error happened", "url", r.URL, "status", status, "err", err)

	WriteResponse(w, r, status, ErrorResponse{Err: err.Error()}, logger)
}
