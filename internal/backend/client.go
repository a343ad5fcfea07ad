// Package backend is the HTTP client for the invoice-generation API.
//
// The console only needs two operations: /api/v1/generate and /api/v1/health.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Client talks to the invoice backend.
type Client struct {
	BaseURL *url.URL
	HTTP    *http.Client
}

// NewClient constructs a backend client.
func NewClient(base string, timeout time.Duration) (*Client, error) {
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("parse backend url: %w", err)
	}
	c := &Client{
		BaseURL: u,
		HTTP: &http.Client{
			Timeout: timeout,
		},
	}
	return c, nil
}

// Generate submits one invoice-generation request.
//
// The returned response may still carry Success=false (a logical failure the
// backend reports with a 200); callers decide how to render that. A non-nil
// error means the exchange itself failed and is already normalized into a
// single message.
func (c *Client) Generate(ctx context.Context, genReq GenerateRequest) (*GenerateResponse, error) {
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)

	if err := writeFilePart(w, "po_pdf", genReq.PO); err != nil {
		return nil, err
	}
	for _, ts := range genReq.Timesheets {
		if err := writeFilePart(w, "timesheets", ts); err != nil {
			return nil, err
		}
	}
	if err := writeFilePart(w, "template", genReq.Template); err != nil {
		return nil, err
	}
	if err := w.WriteField("engineer_config", genReq.EngineerConfig); err != nil {
		return nil, fmt.Errorf("write engineer_config field: %w", err)
	}
	if err := w.WriteField("strict", strconv.FormatBool(genReq.Strict)); err != nil {
		return nil, fmt.Errorf("write strict field: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("finalize multipart body: %w", err)
	}

	u := c.BaseURL.ResolveReference(&url.URL{Path: "/api/v1/generate"})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errorFromBody(resp)
	}

	dec := json.NewDecoder(resp.Body)
	var out GenerateResponse
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("decode generate response: %w", err)
	}
	return &out, nil
}

// Health pings the backend health endpoint. Success iff the HTTP status is
// in the ok range; any failure at all counts as offline.
func (c *Client) Health(ctx context.Context) error {
	u := c.BaseURL.ResolveReference(&url.URL{Path: "/api/v1/health"})
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return err
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode >= 200 && resp.StatusCode < 400 {
		return nil
	}
	return fmt.Errorf("backend health status %d", resp.StatusCode)
}

func writeFilePart(w *multipart.Writer, field string, f File) error {
	name := f.Name
	if name == "" {
		name = field
	}
	part, err := w.CreateFormFile(field, name)
	if err != nil {
		return fmt.Errorf("create %s part: %w", field, err)
	}
	if _, err := part.Write(f.Data); err != nil {
		return fmt.Errorf("write %s part: %w", field, err)
	}
	return nil
}

// errorFromBody normalizes a non-ok response into a single error message:
// the JSON body's "detail", then its "errors" list, then the bare status.
func errorFromBody(resp *http.Response) error {
	buf, _ := ioReadAllLimit(resp.Body, 1024*1024)

	var payload struct {
		Detail string   `json:"detail"`
		Errors []string `json:"errors"`
	}
	if err := json.Unmarshal(buf, &payload); err == nil {
		if payload.Detail != "" {
			return fmt.Errorf("backend error: %s", payload.Detail)
		}
		if len(payload.Errors) > 0 {
			return fmt.Errorf("backend error: %s", strings.Join(payload.Errors, "; "))
		}
	}
	return fmt.Errorf("backend returned status %d", resp.StatusCode)
}

func ioReadAllLimit(r io.Reader, max int64) ([]byte, error) {
	buf := &bytes.Buffer{}
	if max <= 0 {
		return io.ReadAll(r)
	}
	_, err := io.CopyN(buf, r, max+1)
	if err != nil && err != io.EOF {
		return nil, err
	}
	b := buf.Bytes()
	if int64(len(b)) > max {
		return b[:max], nil
	}
	return b, nil
}
