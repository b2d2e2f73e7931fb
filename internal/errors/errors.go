package errors

import "errors"

var (
	UpstreamError          = errors.New("Upstream error")
	APIClientError         = errors.New("Client error")
	RatelimitExceededError = errors.New("Ratelimit exceeded")
)
