package api

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
	"strconv"
	"strings"

	"mediaflow/internal/request"
)

// ErrAPIUnavailable reports that no daemon answered at the configured address.
var ErrAPIUnavailable = errors.New("mediaflow API unavailable")

// Error is a non-2xx response decoded from the daemon.
type Error struct {
	StatusCode int
	Body       ErrorResponse
}

func (e *Error) Error() string {
	msg := strings.TrimSpace(e.Body.Error)
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	if e.Body.Kind != "" {
		return fmt.Sprintf("%s (%s, status %d)", msg, e.Body.Kind, e.StatusCode)
	}
	return fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
}

// Client talks to a running daemon over HTTP.
type Client struct {
	base  *url.URL
	token string
	http  *http.Client
}

// NewClient builds a client for bind, which may be host:port or a URL.
func NewClient(bind, token string) (*Client, error) {
	bind = strings.TrimSpace(bind)
	if bind == "" {
		return nil, ErrAPIUnavailable
	}
	if !strings.Contains(bind, "://") {
		bind = "http://" + bind
	}
	base, err := url.Parse(bind)
	if err != nil {
		return nil, err
	}
	base.Path = ""
	base.RawQuery = ""
	base.Fragment = ""

	return &Client{
		base:  base,
		token: strings.TrimSpace(token),
		// No timeout: result queries block until the job finishes or the
		// caller cancels.
		http: &http.Client{},
	}, nil
}

// Submit enqueues req and returns the new job id.
func (c *Client) Submit(ctx context.Context, req request.Request) (SubmitResponse, error) {
	var out SubmitResponse
	err := c.do(ctx, http.MethodPost, "/api/jobs", nil, req, &out)
	return out, err
}

// SubmitAndWait submits req and blocks until the job is terminal.
func (c *Client) SubmitAndWait(ctx context.Context, req request.Request) (ResultResponse, error) {
	var out ResultResponse
	err := c.do(ctx, http.MethodPost, "/api/jobs", url.Values{"wait": {"true"}}, req, &out)
	return out, err
}

// ListJobs returns history records, newest first. Empty state matches all.
func (c *Client) ListJobs(ctx context.Context, state string, limit int) ([]Job, error) {
	values := url.Values{}
	if strings.TrimSpace(state) != "" {
		values.Set("status", state)
	}
	if limit > 0 {
		values.Set("limit", strconv.Itoa(limit))
	}
	var out JobListResponse
	if err := c.do(ctx, http.MethodGet, "/api/jobs", values, nil, &out); err != nil {
		return nil, err
	}
	return out.Jobs, nil
}

// GetJob returns one job.
func (c *Client) GetJob(ctx context.Context, id string) (Job, error) {
	var out JobResponse
	err := c.do(ctx, http.MethodGet, "/api/jobs/"+url.PathEscape(id), nil, nil, &out)
	return out.Job, err
}

// Result blocks until the job is terminal and returns its aggregated result.
func (c *Client) Result(ctx context.Context, id string) (ResultResponse, error) {
	var out ResultResponse
	err := c.do(ctx, http.MethodGet, "/api/jobs/"+url.PathEscape(id)+"/result", nil, nil, &out)
	return out, err
}

// ActivityResult blocks until the named activity's result is available.
func (c *Client) ActivityResult(ctx context.Context, id, activity string) (ActivityResultResponse, error) {
	var out ActivityResultResponse
	path := "/api/jobs/" + url.PathEscape(id) + "/results/" + url.PathEscape(activity)
	err := c.do(ctx, http.MethodGet, path, nil, nil, &out)
	return out, err
}

// Activities lists the activities the daemon accepts.
func (c *Client) Activities(ctx context.Context) ([]string, error) {
	var out ActivitiesResponse
	if err := c.do(ctx, http.MethodGet, "/api/activities", nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Activities, nil
}

// Status returns daemon runtime information.
func (c *Client) Status(ctx context.Context) (DaemonStatus, error) {
	var out DaemonStatus
	err := c.do(ctx, http.MethodGet, "/api/status", nil, nil, &out)
	return out, err
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	if c == nil {
		return ErrAPIUnavailable
	}
	endpoint := c.base.ResolveReference(&url.URL{Path: path, RawQuery: query.Encode()})

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		apiErr := &Error{StatusCode: resp.StatusCode}
		_ = json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&apiErr.Body)
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

// IsAPIUnavailable reports whether err means no daemon is listening.
func IsAPIUnavailable(err error) bool {
	if err == nil {
		return false
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		err = urlErr.Err
	}
	var opErr *net.OpError
	return errors.Is(err, ErrAPIUnavailable) || errors.As(err, &opErr)
}
