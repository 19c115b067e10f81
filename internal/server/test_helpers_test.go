package server

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/MeKo-Tech/lanedetect/internal/lanes"
	"github.com/MeKo-Tech/lanedetect/internal/pipeline"
	"github.com/MeKo-Tech/lanedetect/internal/testutil"
	"github.com/stretchr/testify/require"
)

// mockDetector returns a fixed result or error without running detection.
type mockDetector struct {
	result *pipeline.FrameResult
	err    error
	closed bool
	calls  int
}

func (m *mockDetector) ProcessImageContext(ctx context.Context, img image.Image) (*pipeline.FrameResult, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.result, nil
}

func (m *mockDetector) ProcessFrameContext(ctx context.Context, f lanes.Frame) (*pipeline.FrameResult, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.result, nil
}

func (m *mockDetector) Info() map[string]any { return map[string]any{"mock": true} }

func (m *mockDetector) Close() error {
	m.closed = true
	return nil
}

func newTestServer(t *testing.T, cfg Config) *Server {
	t.Helper()

	if cfg.CORSOrigin == "" {
		cfg.CORSOrigin = "*"
	}
	if cfg.Pipeline.Detector.Hough.Threshold == 0 {
		cfg.Pipeline = pipeline.DefaultConfig()
	}
	s, err := NewServer(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newMux(s *Server) *http.ServeMux {
	mux := http.NewServeMux()
	s.SetupRoutes(mux)
	return mux
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func twoLanePNG(t *testing.T) []byte {
	t.Helper()
	return encodePNG(t, testutil.TwoLaneScene(640, 480).Render())
}

// createMultipartFormRequest builds a POST with the image under the "image" field.
func createMultipartFormRequest(t *testing.T, url string, data []byte, fields map[string]string) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("image", "frame.png")
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, url, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}
