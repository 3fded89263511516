package fetch

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vinith200527/webcamrng/internal/registry"
)

func encodeJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: byte(x), G: byte(y), B: 0x42, A: 0xFF})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}

func testOptions() Options {
	return Options{
		Timeout:           2 * time.Second,
		MaxSnapshotBytes:  4 * 1024 * 1024,
		MaxMJPEGScanBytes: 2 * 1024 * 1024,
	}
}

func TestFetchSnapshotCamera(t *testing.T) {
	jpegBytes := encodeJPEG(t, 200, 200)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write(jpegBytes)
	}))
	defer srv.Close()

	client := New(testOptions(), 4)
	reg := registry.New(10, registry.DefaultDigestWindowSize)
	reg.Load([]string{srv.URL})

	f, err := client.Fetch(context.Background(), reg, srv.URL)
	require.NoError(t, err)
	assert.Equal(t, 200, f.Image.Bounds().Dx())
	assert.Equal(t, 200, f.Image.Bounds().Dy())
	assert.Equal(t, len(jpegBytes), f.SizeBytes)
}

func TestFetchMJPEGStreamReturnsFirstFrame(t *testing.T) {
	first := encodeJPEG(t, 150, 150)
	second := encodeJPEG(t, 150, 150)
	stream := append(append([]byte{}, first...), second...)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
		w.Write(stream)
	}))
	defer srv.Close()

	client := New(testOptions(), 4)
	reg := registry.New(10, registry.DefaultDigestWindowSize)
	reg.Load([]string{srv.URL})

	f, err := client.Fetch(context.Background(), reg, srv.URL)
	require.NoError(t, err)
	assert.Equal(t, 150, f.Image.Bounds().Dx())
}

func TestFetchHTMLLandingPageFindsImage(t *testing.T) {
	bigJPEG := encodeJPEG(t, 500, 500)

	mux := http.NewServeMux()
	mux.HandleFunc("/404.jpg", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	mux.HandleFunc("/500.jpg", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	mux.HandleFunc("/text.jpg", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("not an image"))
	})
	mux.HandleFunc("/good.jpg", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write(bigJPEG)
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><body>
			<img src="/404.jpg">
			<img src="/500.jpg">
			<img src="/text.jpg">
			<img src="/good.jpg">
		</body></html>`)
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := New(testOptions(), 4)
	reg := registry.New(10, registry.DefaultDigestWindowSize)
	reg.Load([]string{srv.URL})

	f, err := client.Fetch(context.Background(), reg, srv.URL)
	require.NoError(t, err)
	assert.Equal(t, 500, f.Image.Bounds().Dx())
}

func TestFetchRejectsUnrecognisedContentType(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	client := New(testOptions(), 4)
	reg := registry.New(10, registry.DefaultDigestWindowSize)
	reg.Load([]string{srv.URL})

	_, err := client.Fetch(context.Background(), reg, srv.URL)
	require.Error(t, err)
}

func TestFetchRejectsNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := New(testOptions(), 4)
	reg := registry.New(10, registry.DefaultDigestWindowSize)
	reg.Load([]string{srv.URL})

	_, err := client.Fetch(context.Background(), reg, srv.URL)
	require.Error(t, err)
}

func TestFetchRejectsBelowMinimumDimensions(t *testing.T) {
	tiny := encodeJPEG(t, 50, 50)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write(tiny)
	}))
	defer srv.Close()

	client := New(testOptions(), 4)
	reg := registry.New(10, registry.DefaultDigestWindowSize)
	reg.Load([]string{srv.URL})

	_, err := client.Fetch(context.Background(), reg, srv.URL)
	require.Error(t, err)
}
