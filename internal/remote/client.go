// Package remote implements the HTTP clients for the three contracts the
// check-in engine consumes from the registration backend: credential
// refresh (pull), online verification (call-response), and batch sync
// (push), plus the health probe that drives the connectivity monitor.
//
// The engine treats any transport failure, timeout, or non-2xx response as
// "unavailable" (ErrUnavailable). Callers fall back to the offline path and
// never surface these to the operator as errors.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"gatecheck/internal/store"
)

// ErrUnavailable marks any transport-level failure talking to the
// registration backend. Per the engine's contract it is handled identically
// to absence of network.
var ErrUnavailable = errors.New("remote authority unavailable")

// DefaultTimeout bounds each request. The scan loop must settle a decision
// quickly even when the venue uplink is black-holing packets.
const DefaultTimeout = 5 * time.Second

// Client talks to the registration backend.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client (used in tests and to
// tune transport timeouts).
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithAPIKey sets the device API key sent on every request.
func WithAPIKey(key string) Option {
	return func(c *Client) { c.apiKey = key }
}

// New creates a client for the backend at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// VerifyRequest is the online verification call.
type VerifyRequest struct {
	Token       string `json:"token"`
	CheckinType string `json:"checkinType"`
	SessionID   string `json:"sessionId,omitempty"`
}

// Verification outcomes returned by the backend.
const (
	VerifyCheckedIn        = "checked_in"
	VerifyAlreadyCheckedIn = "already_checked_in"
	VerifyInactive         = "inactive"
	VerifyNotPaid          = "not_paid"
	VerifyNotFound         = "not_found"
)

// VerifyResponse is the backend's verdict, interpreted verbatim.
// Display identity is present for operator context even on denials where
// the person is identifiable (inactive, not paid, already checked in).
type VerifyResponse struct {
	Result           string `json:"result"`
	PersonName       string `json:"personName"`
	KoreanName       string `json:"koreanName"`
	ConfirmationCode string `json:"confirmationCode"`
	CheckinType      string `json:"checkinType"`
	Message          string `json:"message,omitempty"`
}

// BatchItem is one queued offline admission submitted for reconciliation.
// The nonce is the idempotency key; the backend must accept a nonce it has
// already recorded without double-counting.
type BatchItem struct {
	Token       string `json:"token"`
	CheckinType string `json:"checkinType"`
	SessionID   string `json:"sessionId,omitempty"`
	Nonce       string `json:"nonce"`
	Timestamp   string `json:"timestamp"`
}

// Batch sync outcomes.
const (
	SyncSuccess = "success"
	SyncError   = "error"
)

// BatchResult is the backend's per-nonce outcome.
type BatchResult struct {
	Nonce   string `json:"nonce"`
	Outcome string `json:"outcome"`
	Message string `json:"message,omitempty"`
}

// FetchCredentials pulls the full admission snapshot for an event.
func (c *Client) FetchCredentials(ctx context.Context, eventID string) ([]store.Credential, error) {
	var body struct {
		Credentials []struct {
			Token              string `json:"token"`
			PersonName         string `json:"personName"`
			KoreanName         string `json:"koreanName"`
			ConfirmationCode   string `json:"confirmationCode"`
			IsActive           bool   `json:"isActive"`
			RegistrationStatus string `json:"registrationStatus"`
		} `json:"credentials"`
	}

	path := fmt.Sprintf("/api/events/%s/credentials", url.PathEscape(eventID))
	if err := c.do(ctx, http.MethodGet, path, nil, &body); err != nil {
		return nil, err
	}

	creds := make([]store.Credential, 0, len(body.Credentials))
	for _, rc := range body.Credentials {
		creds = append(creds, store.Credential{
			Token:              rc.Token,
			PersonName:         rc.PersonName,
			KoreanName:         rc.KoreanName,
			ConfirmationCode:   rc.ConfirmationCode,
			IsActive:           rc.IsActive,
			RegistrationStatus: rc.RegistrationStatus,
		})
	}
	return creds, nil
}

// Verify asks the backend to admit a token right now.
// Any transport or non-2xx failure returns ErrUnavailable; the caller falls
// back to the offline decision for this single scan.
func (c *Client) Verify(ctx context.Context, req VerifyRequest) (VerifyResponse, error) {
	var resp VerifyResponse
	if err := c.do(ctx, http.MethodPost, "/api/checkin/verify", req, &resp); err != nil {
		return VerifyResponse{}, err
	}
	return resp, nil
}

// SyncBatch pushes queued offline admissions and returns per-nonce outcomes.
func (c *Client) SyncBatch(ctx context.Context, items []BatchItem) ([]BatchResult, error) {
	req := struct {
		Checkins []BatchItem `json:"checkins"`
	}{Checkins: items}

	var body struct {
		Results []BatchResult `json:"results"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/checkin/sync", req, &body); err != nil {
		return nil, err
	}
	return body.Results, nil
}

// Ping probes backend reachability. Used by the connectivity monitor.
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/api/health", nil, nil)
}

// do sends one request and decodes the response. All failure modes collapse
// into ErrUnavailable with the cause attached.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var reqBody *bytes.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reqBody = bytes.NewReader(raw)
	} else {
		reqBody = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-Device-Key", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: %s %s returned %d", ErrUnavailable, method, path, resp.StatusCode)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("%w: decode response: %v", ErrUnavailable, err)
		}
	}
	return nil
}
