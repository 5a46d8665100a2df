package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
)

// doJSON: arma la request, agrega authorization y decodifica la respuesta.
// Los GET se reintentan con backoff exponencial si el error es transitorio.
func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	if method != http.MethodGet || c.maxRetries == 0 {
		return c.once(ctx, method, path, body, out)
	}
	b := retry.WithMaxRetries(c.maxRetries, retry.NewExponential(c.retryBase))
	return retry.Do(ctx, b, func(ctx context.Context) error {
		err := c.once(ctx, method, path, body, out)
		if err != nil && isTransient(err) {
			return retry.RetryableError(err)
		}
		return err
	})
}

func (c *Client) once(ctx context.Context, method, path string, body, out any) error {
	return c.send(ctx, method, path, body, out, true)
}

// send hace una request; con wait429 espera el Retry-After de un 429 y
// reintenta una sola vez.
func (c *Client) send(ctx context.Context, method, path string, body, out any, wait429 bool) error {
	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("backend encode: %w", err)
		}
		rd = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return fmt.Errorf("backend request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", c.token)

	res, err := c.http.Do(req)
	if err != nil {
		return &transportError{err: err}
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusTooManyRequests && wait429 {
		if ra := res.Header.Get("Retry-After"); ra != "" {
			if sec, _ := strconv.Atoi(ra); sec > 0 {
				select {
				case <-time.After(time.Duration(sec) * time.Second):
				case <-ctx.Done():
					return ctx.Err()
				}
				return c.send(ctx, method, path, body, out, false)
			}
		}
	}

	raw, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return &transportError{err: err}
	}

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return decodeAPIError(res.StatusCode, raw)
	}
	// el backend a veces responde 2xx con {code, message}
	if apiErr := probeAPIError(res.StatusCode, raw); apiErr != nil {
		return apiErr
	}
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("backend decode %s %s: %w", method, path, err)
	}
	return nil
}

type errorEnvelope struct {
	Code    json.RawMessage `json:"code"`
	Message *string         `json:"message"`
}

func decodeAPIError(status int, raw []byte) *APIError {
	if apiErr := probeAPIError(status, raw); apiErr != nil {
		return apiErr
	}
	return &APIError{Status: status, Message: strings.TrimSpace(string(raw))}
}

func probeAPIError(status int, raw []byte) *APIError {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil
	}
	var env errorEnvelope
	if err := json.Unmarshal(trimmed, &env); err != nil || len(env.Code) == 0 || env.Message == nil {
		return nil
	}
	if status < 400 {
		status = http.StatusBadGateway
	}
	return &APIError{
		Status:  status,
		Code:    strings.Trim(string(env.Code), `"`),
		Message: *env.Message,
	}
}
