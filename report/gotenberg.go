package report

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// ErrDisabled is returned when no Gotenberg endpoint is configured.
var ErrDisabled = errors.New("report: pdf rendering disabled")

const (
	healthPath  = "/health"
	convertPath = "/forms/chromium/convert/html"
	maxPDFBytes = 20 << 20
)

// PageOptions maps onto the Chromium form fields of Gotenberg. Sizes are in
// inches; zero values leave Gotenberg's defaults.
type PageOptions struct {
	PaperWidth   float64
	PaperHeight  float64
	MarginTop    float64
	MarginBottom float64
	MarginLeft   float64
	MarginRight  float64
	Landscape    bool
}

// A4Portrait is the layout of the order statement.
var A4Portrait = PageOptions{
	PaperWidth:   8.27,
	PaperHeight:  11.7,
	MarginTop:    0.5,
	MarginBottom: 0.5,
	MarginLeft:   0.4,
	MarginRight:  0.4,
}

func (p PageOptions) fields() map[string]string {
	out := map[string]string{}
	set := func(name string, v float64) {
		if v > 0 {
			out[name] = strconv.FormatFloat(v, 'f', -1, 64)
		}
	}
	set("paperWidth", p.PaperWidth)
	set("paperHeight", p.PaperHeight)
	set("marginTop", p.MarginTop)
	set("marginBottom", p.MarginBottom)
	set("marginLeft", p.MarginLeft)
	set("marginRight", p.MarginRight)
	if p.Landscape {
		out["landscape"] = "true"
	}
	return out
}

// Client talks to a Gotenberg instance.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient constructs a new client. An empty baseURL yields a disabled client.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Ready reports whether an endpoint is configured.
func (c *Client) Ready() bool {
	return c != nil && c.baseURL != ""
}

// Ping checks the Gotenberg health endpoint.
func (c *Client) Ping(ctx context.Context) error {
	if !c.Ready() {
		return ErrDisabled
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+healthPath, nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("report: gotenberg health: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("report: gotenberg health returned status %d", resp.StatusCode)
	}
	return nil
}

// RenderHTML converts an HTML document into PDF bytes.
func (c *Client) RenderHTML(ctx context.Context, html string, page PageOptions) ([]byte, error) {
	if !c.Ready() {
		return nil, ErrDisabled
	}
	body, contentType, err := htmlForm(html, page)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+convertPath, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("report: gotenberg convert: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode >= http.StatusBadRequest {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("report: render failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxPDFBytes))
}

func htmlForm(html string, page PageOptions) (*bytes.Buffer, string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	// Chromium route requires the entry document to be named index.html.
	part, err := writer.CreateFormFile("files", "index.html")
	if err != nil {
		return nil, "", err
	}
	if _, err := io.WriteString(part, html); err != nil {
		return nil, "", err
	}
	for name, value := range page.fields() {
		if err := writer.WriteField(name, value); err != nil {
			return nil, "", err
		}
	}
	if err := writer.Close(); err != nil {
		return nil, "", err
	}
	return body, writer.FormDataContentType(), nil
}
