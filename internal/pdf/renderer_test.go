package pdf

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestHTTPRenderer_Success(t *testing.T) {
	var gotContentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("ParseMultipartForm: %v", err)
		}
		f, _, err := r.FormFile("files")
		if err != nil {
			t.Errorf("FormFile: %v", err)
		} else {
			body, _ := io.ReadAll(f)
			if !strings.Contains(string(body), "<h1>LOI</h1>") {
				t.Errorf("form body = %q", body)
			}
		}
		w.Write([]byte("%PDF-1.7 fake"))
	}))
	defer srv.Close()

	r := NewHTTPRenderer(srv.URL, time.Second)
	pdf, err := r.RenderHTML(context.Background(), "<h1>LOI</h1>")
	if err != nil {
		t.Fatalf("RenderHTML: %v", err)
	}
	if !strings.HasPrefix(string(pdf), "%PDF") {
		t.Errorf("pdf = %q", pdf)
	}
	if !strings.HasPrefix(gotContentType, "multipart/form-data") {
		t.Errorf("content type = %q", gotContentType)
	}
}

func TestHTTPRenderer_ServiceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "chromium crashed", http.StatusInternalServerError)
	}))
	defer srv.Close()

	r := NewHTTPRenderer(srv.URL, time.Second)
	if _, err := r.RenderHTML(context.Background(), "<p>x</p>"); err == nil {
		t.Error("RenderHTML should fail on 500")
	} else if !strings.Contains(err.Error(), "chromium crashed") {
		t.Errorf("error should carry service message, got %v", err)
	}
}

func TestHTTPRenderer_EmptyDocument(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	r := NewHTTPRenderer(srv.URL, time.Second)
	if _, err := r.RenderHTML(context.Background(), "<p>x</p>"); err == nil {
		t.Error("RenderHTML should reject an empty document")
	}
}

func TestHTTPRenderer_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Drain the upload so the client abort is observed and Close
		// does not wait on this handler.
		io.Copy(io.Discard, r.Body)
		<-r.Context().Done()
	}))
	defer srv.Close()

	r := NewHTTPRenderer(srv.URL, 50*time.Millisecond)
	start := time.Now()
	_, err := r.RenderHTML(context.Background(), "<p>x</p>")
	if err == nil {
		t.Fatal("RenderHTML should time out")
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("timeout took %s", elapsed)
	}
}

type stubRenderer struct {
	pdf []byte
	err error
}

func (s *stubRenderer) RenderHTML(ctx context.Context, html string) ([]byte, error) {
	return s.pdf, s.err
}

func TestCompositor_NoLetterheadPassThrough(t *testing.T) {
	c, err := NewCompositor(&stubRenderer{pdf: []byte("%PDF-doc")}, "")
	if err != nil {
		t.Fatalf("NewCompositor: %v", err)
	}
	out, err := c.Compose(context.Background(), "<p>x</p>")
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	if string(out) != "%PDF-doc" {
		t.Errorf("out = %q", out)
	}
}

func TestCompositor_RenderFailure(t *testing.T) {
	c, _ := NewCompositor(&stubRenderer{err: errors.New("boom")}, "")
	if _, err := c.Compose(context.Background(), "<p>x</p>"); err == nil {
		t.Error("Compose should propagate render errors")
	}
}

func TestNewCompositor_MissingLetterhead(t *testing.T) {
	if _, err := NewCompositor(&stubRenderer{}, "/no/such/letterhead.pdf"); err == nil {
		t.Error("NewCompositor should reject a missing letterhead file")
	}
}
