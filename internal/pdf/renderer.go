package pdf

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"
)

// DefaultRenderTimeout bounds one HTML-to-PDF conversion.
const DefaultRenderTimeout = 30 * time.Second

// HTTPRenderer converts HTML to PDF bytes through a Gotenberg-compatible
// render service (POST multipart with an index.html part).
type HTTPRenderer struct {
	client  *http.Client
	url     string
	timeout time.Duration
}

func NewHTTPRenderer(url string, timeout time.Duration) *HTTPRenderer {
	if timeout <= 0 {
		timeout = DefaultRenderTimeout
	}
	return &HTTPRenderer{
		client:  &http.Client{},
		url:     url,
		timeout: timeout,
	}
}

// RenderHTML posts the document and returns the PDF bytes.
func (r *HTTPRenderer) RenderHTML(ctx context.Context, html string) ([]byte, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	part, err := mw.CreateFormFile("files", "index.html")
	if err != nil {
		return nil, fmt.Errorf("build form: %w", err)
	}
	if _, err := part.Write([]byte(html)); err != nil {
		return nil, fmt.Errorf("write form: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("close form: %w", err)
	}

	ctxTimeout, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctxTimeout, http.MethodPost, r.url, &body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("render request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("render service status %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}

	pdf, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read pdf: %w", err)
	}
	if len(pdf) == 0 {
		return nil, fmt.Errorf("render service returned empty document")
	}
	return pdf, nil
}
