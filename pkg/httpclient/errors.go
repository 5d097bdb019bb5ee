package httpclient

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	apperrors "github.com/Capstone-POKI/Pitchcoach-BACK/pkg/errors"
)

// upstreamError accepts the two error body shapes we meet upstream: the
// {"error":{"code","message"}} envelope and the OAuth 2.0 form
// {"error":"...","error_description":"..."} used by identity providers.
type upstreamError struct {
	Code    string
	Message string
}

func (u *upstreamError) UnmarshalJSON(data []byte) error {
	var envelope struct {
		Error json.RawMessage `json:"error"`
		Desc  string          `json:"error_description"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return err
	}
	if len(envelope.Error) == 0 || string(envelope.Error) == "null" {
		return fmt.Errorf("no error field")
	}

	var code string
	if json.Unmarshal(envelope.Error, &code) == nil {
		u.Code, u.Message = code, envelope.Desc
		return nil
	}

	var nested struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(envelope.Error, &nested); err != nil {
		return err
	}
	u.Code, u.Message = nested.Code, nested.Message
	return nil
}

// ParseResponseError reads the body of a non-2xx HTTP response and translates
// it into an AppError when the body carries a recognised error shape.
// Otherwise a plain error with the status code and raw body is returned.
// The response body is fully consumed and closed.
func ParseResponseError(resp *http.Response, upstream string) error {
	defer func() { _ = resp.Body.Close() }()

	bodyBytes, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20)) // 1 MB limit
	if err != nil {
		return fmt.Errorf("%s returned status %d (failed to read body: %w)", upstream, resp.StatusCode, err)
	}

	var parsed upstreamError
	if json.Unmarshal(bodyBytes, &parsed) == nil {
		return mapUpstreamError(resp.StatusCode, parsed.Code, parsed.Message, upstream)
	}

	return fmt.Errorf("%s returned status %d: %s", upstream, resp.StatusCode, string(bodyBytes))
}

func mapUpstreamError(status int, code, message, upstream string) error {
	qualifiedMsg := fmt.Sprintf("%s: %s", upstream, message)

	switch {
	case status == http.StatusNotFound:
		return apperrors.NotFound(upstream, message)
	case status == http.StatusBadRequest:
		return apperrors.InvalidInput(qualifiedMsg)
	case status == http.StatusConflict:
		return apperrors.Conflict(qualifiedMsg)
	case status == http.StatusUnauthorized:
		return apperrors.Unauthorized(qualifiedMsg)
	case status == http.StatusForbidden:
		return apperrors.Forbidden(qualifiedMsg)
	case status == http.StatusServiceUnavailable:
		return &apperrors.AppError{
			Code:    code,
			Message: qualifiedMsg,
			Status:  http.StatusServiceUnavailable,
			Err:     apperrors.ErrServiceUnavail,
		}
	case status >= 500:
		return fmt.Errorf("%s server error (%d/%s): %s", upstream, status, code, message)
	default:
		return &apperrors.AppError{
			Code:    code,
			Message: qualifiedMsg,
			Status:  status,
		}
	}
}

// IsClientError returns true if the HTTP status code is a 4xx client error.
func IsClientError(status int) bool {
	return status >= 400 && status < 500
}
