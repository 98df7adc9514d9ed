package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/jjant/topmeals-frontend/session"
)

// Transport failure classes. Request errors wrap one of these, so callers
// test with errors.Is.
var (
	ErrTimeout = errors.New("request timed out")
	ErrNetwork = errors.New("network failure")
)

// ErrNotSignedIn gates operations that need a credential.
var ErrNotSignedIn = errors.New("not signed in")

// StatusError is a non-2xx response. Messages holds the flattened
// field-level errors the server sent, or a single generic message when the
// body carried no usable error shape.
type StatusError struct {
	Code     int
	Messages []string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("server returned %d: %v", e.Code, e.Messages)
}

// BodyError is a 2xx response whose body could not be decoded.
type BodyError struct {
	Detail string
}

func (e *BodyError) Error() string {
	return "undecodable response body: " + e.Detail
}

const genericErrorMessage = "server error"

// Client issues authorized JSON requests against the API.
type Client struct {
	base string
	http *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		base: baseURL,
		http: &http.Client{Timeout: timeout},
	}
}

// Do sends one request. The bearer header is attached only when cred is
// non-nil; body (when non-nil) is JSON-encoded; a decoded 2xx body lands
// in out (when non-nil). Failures are classified into StatusError,
// BodyError, ErrTimeout or ErrNetwork.
func (c *Client) Do(ctx context.Context, method, path string, query url.Values, cred *session.Credential, body, out any) error {
	u := c.base + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if cred != nil {
		cred.Attach(req.Header)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return classifyTransport(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return classifyTransport(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Code: resp.StatusCode, Messages: decodeErrors(data)}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &BodyError{Detail: err.Error()}
	}
	return nil
}

func classifyTransport(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrNetwork, err)
}

// decodeErrors flattens a {"errors":{field:[msg,...]}} body into
// "field msg" strings, fields in sorted order, messages in server order.
// Any other shape collapses to one generic message.
func decodeErrors(raw []byte) []string {
	var body struct {
		Errors map[string][]string `json:"errors"`
	}
	if err := json.Unmarshal(raw, &body); err != nil || len(body.Errors) == 0 {
		return []string{genericErrorMessage}
	}

	fields := make([]string, 0, len(body.Errors))
	for f := range body.Errors {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	var out []string
	for _, f := range fields {
		for _, msg := range body.Errors[f] {
			out = append(out, f+" "+msg)
		}
	}
	if len(out) == 0 {
		return []string{genericErrorMessage}
	}
	return out
}
