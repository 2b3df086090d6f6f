package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vitalis-care/plantao/pkg/llm"
	"github.com/vitalis-care/plantao/pkg/store"
)

func errorResponse(message string) gin.H {
	return gin.H{"status": "error", "error": message}
}

// mapEngineError maps engine errors to HTTP responses. Lock and in-flight
// conflicts are retryable by the gateway, so they report "busy".
func mapEngineError(err error) (int, gin.H) {
	switch {
	case errors.Is(err, store.ErrLockDenied):
		return http.StatusTooManyRequests, gin.H{"status": "busy", "error": "session is processing another message"}
	case errors.Is(err, store.ErrInFlight):
		return http.StatusConflict, gin.H{"status": "busy", "error": "message is already being processed"}
	case errors.Is(err, llm.ErrUnavailable):
		return http.StatusServiceUnavailable, errorResponse("language model unavailable")
	case errors.Is(err, store.ErrConcurrentModification):
		return http.StatusConflict, errorResponse("session was modified concurrently, retry")
	default:
		return http.StatusInternalServerError, errorResponse("internal server error")
	}
}
