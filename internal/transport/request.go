package transport

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/agentstation/aliasmap/pkg/errors"
)

// maxErrorBody bounds how much of an error response is kept as the message.
const maxErrorBody = 512

// DecodeResponse decodes a 2xx JSON response into target and closes the body.
// Other statuses become an *errors.APIError carrying any Retry-After hint.
func DecodeResponse(resp *http.Response, provider string, target any) error {
	defer func() { _ = resp.Body.Close() }()

	endpoint := ""
	if resp.Request != nil && resp.Request.URL != nil {
		endpoint = resp.Request.URL.Redacted()
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &errors.APIError{
			Provider: provider,
			Endpoint: endpoint,
			Message:  "reading response body",
			Err:      err,
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &errors.APIError{
			Provider:   provider,
			StatusCode: resp.StatusCode,
			Endpoint:   endpoint,
			Message:    errorMessage(resp, body),
			RetryAfter: ParseRetryAfter(resp.Header.Get("Retry-After"), time.Now()),
		}
	}

	if err := json.Unmarshal(body, target); err != nil {
		return errors.WrapParse("json", endpoint, err)
	}
	return nil
}

// errorMessage prefers the management API error envelope over raw body text.
func errorMessage(resp *http.Response, body []byte) string {
	var envelope struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &envelope) == nil && envelope.Error.Code != "" {
		return envelope.Error.Code + ": " + envelope.Error.Message
	}
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		return resp.Status
	}
	if len(msg) > maxErrorBody {
		msg = msg[:maxErrorBody]
	}
	return msg
}

// ParseRetryAfter reads a Retry-After header given in seconds or as an HTTP date.
func ParseRetryAfter(value string, now time.Time) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if secs, err := strconv.Atoi(value); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(value); err == nil {
		if d := at.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}
