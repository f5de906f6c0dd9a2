package httpapi

import (
	"context"
	"errors"
	"net/http"

	sonic "github.com/bytedance/sonic"
	"github.com/riskibarqy/oddsline/internal/usecase"
)

const (
	googleAPIVersion = "2.0"
	errorDomain      = "oddsline"
)

type googleResponseEnvelope struct {
	APIVersion string           `json:"apiVersion"`
	Data       any              `json:"data,omitempty"`
	Error      *googleErrorBody `json:"error,omitempty"`
}

type googleErrorBody struct {
	Code    int               `json:"code"`
	Message string            `json:"message"`
	Status  string            `json:"status"`
	Errors  []googleErrorItem `json:"errors,omitempty"`
}

type googleErrorItem struct {
	Domain  string `json:"domain"`
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

type mappedError struct {
	HTTPStatus int
	Reason     string
	Status     string
}

func writeJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	ctx, span := startSpan(ctx, "httpapi.writeJSON")
	defer span.End()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = sonic.ConfigDefault.NewEncoder(w).Encode(payload)
}

func writeSuccess(ctx context.Context, w http.ResponseWriter, status int, data any) {
	ctx, span := startSpan(ctx, "httpapi.writeSuccess")
	defer span.End()

	writeJSON(ctx, w, status, googleResponseEnvelope{
		APIVersion: googleAPIVersion,
		Data:       data,
	})
}

// errorMappings is checked in order; the first sentinel matched wins.
var errorMappings = []struct {
	target error
	mapped mappedError
}{
	{usecase.ErrInvalidInput, mappedError{http.StatusBadRequest, "invalidInput", "INVALID_ARGUMENT"}},
	{usecase.ErrNotFound, mappedError{http.StatusNotFound, "notFound", "NOT_FOUND"}},
	{usecase.ErrUnauthorized, mappedError{http.StatusUnauthorized, "unauthorized", "UNAUTHENTICATED"}},
	{usecase.ErrDependencyUnavailable, mappedError{http.StatusServiceUnavailable, "dependencyUnavailable", "UNAVAILABLE"}},
	{usecase.ErrAlreadyRunning, mappedError{http.StatusConflict, "invalidState", "FAILED_PRECONDITION"}},
	{usecase.ErrNotRunning, mappedError{http.StatusConflict, "invalidState", "FAILED_PRECONDITION"}},
	{usecase.ErrMatchNotFinishable, mappedError{http.StatusConflict, "matchNotFinishable", "FAILED_PRECONDITION"}},
	{usecase.ErrConflict, mappedError{http.StatusConflict, "conflict", "ABORTED"}},
}

var internalError = mappedError{http.StatusInternalServerError, "internalError", "INTERNAL"}

const internalErrorMessage = "internal server error"

// writeError renders err in the error envelope. Unmapped errors are reported
// as a generic internal error so storage details stay in the logs.
func writeError(ctx context.Context, w http.ResponseWriter, err error) {
	ctx, span := startSpan(ctx, "httpapi.writeError")
	defer span.End()

	mapped := mapError(ctx, err)
	msg := err.Error()
	if mapped == internalError {
		msg = internalErrorMessage
	}
	writeErrorEnvelope(ctx, w, mapped, msg)
}

func writeInternalError(ctx context.Context, w http.ResponseWriter) {
	ctx, span := startSpan(ctx, "httpapi.writeInternalError")
	defer span.End()

	writeErrorEnvelope(ctx, w, internalError, internalErrorMessage)
}

func writeErrorEnvelope(ctx context.Context, w http.ResponseWriter, mapped mappedError, msg string) {
	writeJSON(ctx, w, mapped.HTTPStatus, googleResponseEnvelope{
		APIVersion: googleAPIVersion,
		Error: &googleErrorBody{
			Code:    mapped.HTTPStatus,
			Message: msg,
			Status:  mapped.Status,
			Errors: []googleErrorItem{
				{Domain: errorDomain, Reason: mapped.Reason, Message: msg},
			},
		},
	})
}

func mapError(ctx context.Context, err error) mappedError {
	_, span := startSpan(ctx, "httpapi.mapError")
	defer span.End()

	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			return m.mapped
		}
	}
	return internalError
}
