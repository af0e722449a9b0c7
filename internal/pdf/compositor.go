// Package pdf renders letter-of-intent documents and lays them over the
// company letterhead. Rendering goes through an external HTML-to-PDF
// service; the letterhead merge happens locally with pdfcpu.
package pdf

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// Renderer converts HTML into PDF bytes.
type Renderer interface {
	RenderHTML(ctx context.Context, html string) ([]byte, error)
}

// Compositor produces the final attachment: rendered body content stamped
// onto the single-page letterhead.
type Compositor struct {
	renderer       Renderer
	letterheadPath string
}

func NewCompositor(renderer Renderer, letterheadPath string) (*Compositor, error) {
	if letterheadPath != "" {
		if _, err := os.Stat(letterheadPath); err != nil {
			return nil, fmt.Errorf("letterhead: %w", err)
		}
	}
	return &Compositor{renderer: renderer, letterheadPath: letterheadPath}, nil
}

// Compose renders the HTML body and merges it onto the letterhead.
// With no letterhead configured the rendered document is returned as-is.
func (c *Compositor) Compose(ctx context.Context, html string) ([]byte, error) {
	doc, err := c.renderer.RenderHTML(ctx, html)
	if err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}

	if c.letterheadPath == "" {
		return doc, nil
	}

	merged, err := c.applyLetterhead(doc)
	if err != nil {
		return nil, fmt.Errorf("letterhead merge: %w", err)
	}
	return merged, nil
}

// applyLetterhead stamps the letterhead page beneath every page of the
// rendered document at full scale.
func (c *Compositor) applyLetterhead(doc []byte) ([]byte, error) {
	wm, err := api.PDFWatermark(c.letterheadPath, "scale:1 abs, rot:0", false, false, types.POINTS)
	if err != nil {
		return nil, err
	}

	var out bytes.Buffer
	if err := api.AddWatermarks(bytes.NewReader(doc), &out, nil, wm, nil); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}
