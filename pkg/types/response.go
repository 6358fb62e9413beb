package types

// SuccessEnvelope wraps every successful API payload.
type SuccessEnvelope struct {
	Data any `json:"data"`
}

// APIError is the client-facing error body. RetryAfterSeconds mirrors the
// Retry-After header when the server knows when a retry can succeed.
type APIError struct {
	Code              string `json:"code"`
	Message           string `json:"message"`
	Details           any    `json:"details,omitempty"`
	Retryable         bool   `json:"retryable"`
	RetryAfterSeconds int    `json:"retryAfterSeconds,omitempty"`
	RequestID         string `json:"requestId,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}
