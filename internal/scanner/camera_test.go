package scanner

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewGray(image.Rect(0, 0, 8, 8))); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestSnapshotCameraForbidden(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	t.Cleanup(server.Close)

	cam := &SnapshotCamera{URL: server.URL}
	_, err := cam.Open(context.Background())
	if !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied, got %v", err)
	}
}

func TestSnapshotCameraUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(server.Close)

	cam := &SnapshotCamera{URL: server.URL}
	if _, err := cam.Open(context.Background()); !errors.Is(err, ErrCameraUnavailable) {
		t.Fatalf("expected ErrCameraUnavailable, got %v", err)
	}
	if _, err := (&SnapshotCamera{}).Open(context.Background()); !errors.Is(err, ErrCameraUnavailable) {
		t.Fatalf("expected ErrCameraUnavailable without url, got %v", err)
	}
}

func TestSnapshotCameraFrames(t *testing.T) {
	data := pngBytes(t)
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "image/png")
		w.Write(data)
	}))
	t.Cleanup(server.Close)

	cam := &SnapshotCamera{URL: server.URL, Interval: time.Millisecond}
	st, err := cam.Open(context.Background())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	for i := 0; i < 2; i++ {
		img, err := st.Next(context.Background())
		if err != nil {
			t.Fatalf("Next #%d: %v", i, err)
		}
		if img.Bounds().Dx() != 8 {
			t.Errorf("unexpected frame bounds %v", img.Bounds())
		}
	}
	if n := hits.Load(); n != 2 {
		t.Errorf("expected the verification frame to be reused, got %d fetches", n)
	}

	st.Close()
	if _, err := st.Next(context.Background()); err == nil {
		t.Error("expected error after close")
	}
}
