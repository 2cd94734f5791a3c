package httputils

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// StatusError is returned for non-2xx responses; Body holds the raw payload.
type StatusError struct {
	StatusCode int
	Body       []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("bad status: %d: %s", e.StatusCode, truncate(e.Body, 512))
}

// DoJSON sends body (if non-nil) as JSON and decodes a 2xx reply into resp (if non-nil).
func DoJSON(ctx context.Context, client *http.Client, method, url string, body interface{}, resp interface{}) error {
	return DoJSONWithHeader(ctx, client, method, url, nil, body, resp)
}

// DoJSONWithHeader is DoJSON with extra request headers. Credentials belong
// here rather than in url, which ends up in transport errors.
func DoJSONWithHeader(ctx context.Context, client *http.Client, method, url string, header http.Header, body interface{}, resp interface{}) error {
	if client == nil {
		client = http.DefaultClient
	}
	var reader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(jsonBody)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	r, err := client.Do(req)
	if err != nil {
		return err
	}
	defer r.Body.Close()
	if r.StatusCode < 200 || r.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(r.Body, 64<<10))
		return &StatusError{StatusCode: r.StatusCode, Body: b}
	}
	if resp != nil {
		return json.NewDecoder(r.Body).Decode(resp)
	}
	return nil
}

func PostJSON(ctx context.Context, url string, body interface{}, resp interface{}) error {
	return DoJSON(ctx, nil, http.MethodPost, url, body, resp)
}

func GetJSON(ctx context.Context, url string, resp interface{}) error {
	return DoJSON(ctx, nil, http.MethodGet, url, nil, resp)
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
