package llm

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/googleapis/gax-go/v2/apierror"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// GenerateError is a generic provider failure during text generation.
type GenerateError struct {
	Message string
	Cause   error
}

func (e *GenerateError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("generate error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("generate error: %s", e.Message)
}

func (e *GenerateError) Unwrap() error {
	return e.Cause
}

// RateLimitError signals provider throttling. RetryAfter carries the
// provider's suggested delay when it was available, nil otherwise.
type RateLimitError struct {
	Message    string
	RetryAfter *time.Duration
	Cause      error
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited: %s", e.Message)
}

func (e *RateLimitError) Unwrap() error {
	return e.Cause
}

// wrapGenerateError classifies a provider error into the tagged variants the
// pipelines dispatch on. Throttling is detected from the gRPC status code;
// message sniffing is kept only as a fallback for transport-level wrapping.
func wrapGenerateError(err error) error {
	msg := err.Error()

	if s, ok := status.FromError(err); ok && s.Code() == codes.ResourceExhausted {
		return &RateLimitError{Message: msg, RetryAfter: retryAfterFromDetails(err), Cause: err}
	}

	if strings.Contains(msg, "RESOURCE_EXHAUSTED") || strings.Contains(strings.ToLower(msg), "quota") {
		return &RateLimitError{Message: msg, RetryAfter: retryAfterFromMessage(msg), Cause: err}
	}

	return &GenerateError{Message: "generation failed", Cause: err}
}

// retryAfterFromDetails reads the structured RetryInfo detail the API
// attaches to RESOURCE_EXHAUSTED responses.
func retryAfterFromDetails(err error) *time.Duration {
	var apiErr *apierror.APIError
	if !errors.As(err, &apiErr) {
		return nil
	}

	info := apiErr.Details().RetryInfo
	if info == nil || info.GetRetryDelay() == nil {
		return nil
	}

	delay := info.GetRetryDelay().AsDuration()
	return &delay
}

// retryAfterFromMessage scans an error message for a "<seconds>s" token.
// Best-effort only; the structured detail is preferred.
func retryAfterFromMessage(msg string) *time.Duration {
	for _, token := range strings.Fields(msg) {
		token = strings.TrimSuffix(strings.TrimSuffix(token, "."), ",")
		if !strings.HasSuffix(token, "s") {
			continue
		}
		secs, err := strconv.ParseFloat(strings.TrimSuffix(token, "s"), 64)
		if err != nil || secs <= 0 {
			continue
		}
		delay := time.Duration(secs * float64(time.Second))
		return &delay
	}
	return nil
}
