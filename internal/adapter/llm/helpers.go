package llm

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"go.opentelemetry.io/otel/trace"

	"github.com/cheerhou/DevoLight/internal/domain"
	"github.com/cheerhou/DevoLight/internal/infra/tracer"
)

const subsystem = "responder"

// maxResponseBody is the maximum response body size we read from the API.
const maxResponseBody = 4 * 1024 * 1024

// maxErrorDetail bounds how much of an error body ends up in error messages.
const maxErrorDetail = 512

// doJSONRequest performs a JSON POST request and returns the response body.
// Returns a domain error for transport failures and non-200 responses.
func doJSONRequest(ctx context.Context, client *http.Client, op, url string, body []byte, headers map[string]string) ([]byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		httpReq.Header.Set(k, v)
	}

	httpResp, err := client.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, domain.NewSubSystemError(subsystem, op, domain.ErrTimeout, err.Error())
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("%s: %w", op, ctxErr)
		}
		return nil, domain.NewSubSystemError(subsystem, op, domain.ErrProviderError, "http request: "+err.Error())
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBody))
	if err != nil {
		return nil, domain.NewSubSystemError(subsystem, op, domain.ErrProviderError, "read response: "+err.Error())
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, mapHTTPError(op, httpResp.StatusCode, respBody)
	}
	return respBody, nil
}

// mapHTTPError maps an HTTP status code + response body to a domain error so
// the circuit breaker and the error codes classify API failures correctly.
func mapHTTPError(op string, statusCode int, body []byte) error {
	if len(body) > maxErrorDetail {
		body = body[:maxErrorDetail]
	}
	detail := fmt.Sprintf("API error %d: %s", statusCode, body)

	switch {
	case statusCode == http.StatusTooManyRequests:
		return domain.NewSubSystemError(subsystem, op, domain.ErrRateLimit, detail)
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return domain.NewSubSystemError(subsystem, op, domain.ErrAuthInvalid, detail)
	case statusCode == http.StatusRequestTimeout || statusCode == http.StatusGatewayTimeout:
		return domain.NewSubSystemError(subsystem, op, domain.ErrTimeout, detail)
	default:
		return domain.NewSubSystemError(subsystem, op, domain.ErrProviderError, detail)
	}
}

// setUsageAttrs adds token usage attributes to a trace span.
func setUsageAttrs(span trace.Span, inputTokens, outputTokens int) {
	span.SetAttributes(
		tracer.IntAttr("llm.input_tokens", inputTokens),
		tracer.IntAttr("llm.output_tokens", outputTokens),
	)
}
