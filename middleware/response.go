package middleware

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
)

// CodeRateLimited is the machine-readable error code carried by every
// throttling rejection.
const CodeRateLimited = "RATE_LIMITED"

// RateLimited is the throttling rejection payload. Its three fields are a
// stable wire contract consumed by clients; do not add or rename fields.
type RateLimited struct {
	Error             string `json:"error"`
	Message           string `json:"message"`
	RetryAfterSeconds int    `json:"retryAfterSeconds"`
}

// NewRateLimited builds the rejection payload for a retry hint in seconds.
// The message embeds the same value so UI toasts can show it verbatim.
func NewRateLimited(retryAfterSeconds int) RateLimited {
	return RateLimited{
		Error:             CodeRateLimited,
		Message:           fmt.Sprintf("You're going too fast. Try again in %ds.", retryAfterSeconds),
		RetryAfterSeconds: retryAfterSeconds,
	}
}

// WriteRateLimited writes the standardized 429 rejection: the RateLimited
// JSON body plus a Retry-After header carrying the same integer.
func WriteRateLimited(w http.ResponseWriter, retryAfterSeconds int) {
	body := NewRateLimited(retryAfterSeconds)

	w.Header().Set("Retry-After", strconv.Itoa(body.RetryAfterSeconds))
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusTooManyRequests)
	// An encode failure here means the client is gone; nothing to recover.
	_ = json.NewEncoder(w).Encode(body)
}
