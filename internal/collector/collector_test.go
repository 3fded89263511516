package collector

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vinith200527/webcamrng/internal/fetch"
	"github.com/vinith200527/webcamrng/internal/registry"
)

func encodeJPEG(t *testing.T, w, h int, fill byte) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: byte(x), G: byte(y), B: fill, A: 0xFF})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}

func newFetchClient() *fetch.Client {
	return fetch.New(fetch.Options{
		Timeout:           2 * time.Second,
		MaxSnapshotBytes:  4 * 1024 * 1024,
		MaxMJPEGScanBytes: 2 * 1024 * 1024,
	}, 16)
}

// goodCamera serves a distinct, large-enough JPEG on every request so each
// fetch produces a fresh fingerprint.
func goodCamera(t *testing.T) *httptest.Server {
	var counter int32
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&counter, 1)
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write(encodeJPEG(t, 150, 150, byte(n)))
	}))
}

// failingCamera always returns 500.
func failingCamera() *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
}

// staticCamera always serves the exact same bytes, so every fetch after the
// first is a duplicate.
func staticCamera(t *testing.T) *httptest.Server {
	data := encodeJPEG(t, 150, 150, 0x77)
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write(data)
	}))
}

func TestRunStopsEarlyOnceSuccessGoalReached(t *testing.T) {
	servers := make([]*httptest.Server, 0, 5)
	urls := make([]string, 0, 5)
	for i := 0; i < 5; i++ {
		srv := goodCamera(t)
		servers = append(servers, srv)
		urls = append(urls, srv.URL)
	}
	defer func() {
		for _, s := range servers {
			s.Close()
		}
	}()

	reg := registry.New(10, registry.DefaultDigestWindowSize)
	reg.Load(urls)

	c := New(reg, newFetchClient(), Options{
		ConcurrencyLimit: 5,
		SuccessGoal:      3,
		FailureThreshold: 10,
	})

	frames, err := c.Run(context.Background())
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(frames), 3)
}

func TestRunDisablesURLAfterRepeatedFailures(t *testing.T) {
	bad := failingCamera()
	defer bad.Close()

	reg := registry.New(2, registry.DefaultDigestWindowSize)
	reg.Load([]string{bad.URL})

	c := New(reg, newFetchClient(), Options{
		ConcurrencyLimit: 1,
		SuccessGoal:      1,
		FailureThreshold: 2,
	})

	for i := 0; i < 2; i++ {
		_, err := c.Run(context.Background())
		assert.Error(t, err)
	}

	assert.Empty(t, reg.Snapshot(), "url should be disabled after reaching the failure threshold")
}

func TestRunTreatsDuplicateFrameAsNotAFailure(t *testing.T) {
	static := staticCamera(t)
	defer static.Close()

	reg := registry.New(1, registry.DefaultDigestWindowSize)
	reg.Load([]string{static.URL})

	c := New(reg, newFetchClient(), Options{
		ConcurrencyLimit: 1,
		SuccessGoal:      1,
		FailureThreshold: 1,
	})

	_, err := c.Run(context.Background())
	require.NoError(t, err) // first fetch is novel and meets the goal of 1

	// Run again: the camera now only ever produces duplicates of the
	// already-seen frame, which must not count as a failure and must not
	// disable the url.
	_, err = c.Run(context.Background())
	assert.Error(t, err)
	assert.Contains(t, reg.Snapshot(), static.URL, "duplicate frames must not disable the url")
}

func TestRunReturnsErrInsufficientFramesWhenRegistryEmpty(t *testing.T) {
	reg := registry.New(10, registry.DefaultDigestWindowSize)
	c := New(reg, newFetchClient(), Options{
		ConcurrencyLimit: 1,
		SuccessGoal:      1,
		FailureThreshold: 1,
	})

	_, err := c.Run(context.Background())
	assert.ErrorIs(t, err, ErrInsufficientFrames)
}
