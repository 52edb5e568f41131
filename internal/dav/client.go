// Package dav talks to the remote WebDAV store: a thin verb-level transport
// client, the push/pull sync engine and the rolling backup manager.
package dav

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/emersion/go-webdav"
)

var (
	ErrNetworkUnavailable = errors.New("network unavailable")
	ErrAuthFailed         = errors.New("authentication failed")
	ErrRemoteNotFound     = errors.New("remote resource not found")
	ErrSyncFailed         = errors.New("sync failed")
)

const (
	defaultTimeout = 30 * time.Second
	minTLSVersion  = tls.VersionTLS12

	// Error bodies are truncated to this many bytes before being surfaced.
	errBodyPreview = 512
)

// Response is a normalized WebDAV response. Non-2xx statuses live here, not
// in an error: an error from Do always means the transport itself failed.
type Response struct {
	OK     bool
	Status int
	JSON   json.RawMessage // set when the body is JSON
	Text   string          // raw body otherwise, truncated for error statuses
}

// ErrorMessage extracts a human-readable message from an error response,
// preferring a JSON error field over the raw body.
func (r *Response) ErrorMessage() string {
	if r.JSON != nil {
		var payload struct {
			Error   string `json:"error"`
			Message string `json:"message"`
		}
		if err := json.Unmarshal(r.JSON, &payload); err == nil {
			if payload.Error != "" {
				return payload.Error
			}
			if payload.Message != "" {
				return payload.Message
			}
		}
	}
	if r.Text != "" {
		return r.Text
	}
	return http.StatusText(r.Status)
}

// Client executes single WebDAV verbs against a remote endpoint with Basic
// auth. The credentials are held by the wrapped HTTP client and are never
// logged.
type Client struct {
	httpClient webdav.HTTPClient
}

// NewClient creates a WebDAV transport client for the given credentials.
func NewClient(username, password string) *Client {
	transport := &http.Transport{
		TLSClientConfig: &tls.Config{
			MinVersion: minTLSVersion,
		},
		MaxIdleConns:        10,
		IdleConnTimeout:     30 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}

	httpClient := &http.Client{
		Timeout:   defaultTimeout,
		Transport: transport,
	}

	return &Client{
		httpClient: webdav.HTTPClientWithBasicAuth(httpClient, username, password),
	}
}

// Do executes one verb. Supported: GET, PUT, DELETE, MKCOL, PROPFIND (sent
// with Depth: 1) and COPY/MOVE (Destination/Overwrite headers when a
// destination is given).
func (c *Client) Do(ctx context.Context, method, endpoint string, body []byte, destination string) (*Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", "BoxySync/1.0")
	switch method {
	case http.MethodPut:
		req.Header.Set("Content-Type", "application/json")
	case "PROPFIND":
		req.Header.Set("Depth", "1")
	case "COPY", "MOVE":
		if destination != "" {
			req.Header.Set("Destination", destination)
			req.Header.Set("Overwrite", "T")
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNetworkUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %w", ErrNetworkUnavailable, err)
	}

	out := &Response{
		OK:     resp.StatusCode >= 200 && resp.StatusCode < 300,
		Status: resp.StatusCode,
	}

	contentType := resp.Header.Get("Content-Type")
	if strings.Contains(contentType, "json") && json.Valid(raw) {
		out.JSON = raw
	} else {
		out.Text = string(raw)
		if !out.OK && len(out.Text) > errBodyPreview {
			out.Text = out.Text[:errBodyPreview]
		}
	}

	return out, nil
}
