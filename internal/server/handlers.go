package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/MeKo-Tech/lanedetect/internal/lanes"
	"github.com/MeKo-Tech/lanedetect/internal/pipeline"
	"github.com/MeKo-Tech/lanedetect/internal/utils"
)

const (
	formatJSON    = "json"
	formatCSV     = "csv"
	formatText    = "text"
	formatOverlay = "overlay"
	formatMatrix  = "matrix"
)

func validResponseFormat(format string) bool {
	switch format {
	case formatJSON, formatCSV, formatText, formatOverlay, formatMatrix:
		return true
	}
	return false
}

// healthHandler returns server health status.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	now := time.Now()
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "healthy",
		Version:   s.version,
		Time:      now.UTC().Format(time.RFC3339),
		UptimeSec: now.Sub(s.started).Seconds(),
	})
}

// configHandler returns the active detector parameters.
func (s *Server) configHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, s.detector.Info())
}

// laneImageHandler detects lanes in an uploaded image. The image is read from
// the multipart field "image" or, for other content types, from the raw body.
func (s *Server) laneImageHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	data, format, err := s.parseImageRequest(w, r)
	if err != nil {
		detectRequestsTotal.WithLabelValues("image", "bad_request").Inc()
		writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}
	if format == formatOverlay && !s.overlayEnabled {
		writeErrorResponse(w, http.StatusBadRequest, "overlay output is disabled")
		return
	}

	img, _, err := utils.DecodeImage(data)
	if err != nil {
		detectRequestsTotal.WithLabelValues("image", "bad_request").Inc()
		writeErrorResponse(w, http.StatusBadRequest, fmt.Sprintf("Failed to decode image: %v", err))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	start := time.Now()
	res, err := s.detector.ProcessImageContext(ctx, img)
	if err != nil {
		s.writeDetectError(w, "image", err)
		return
	}
	observeResult("image", time.Since(start).Seconds(), res.Fallback, len(res.Segments))

	s.writeResult(w, img, res, format)
}

// laneFrameHandler detects lanes in a raw BGR frame posted as the request
// body. The query parameters width and height give the frame size.
func (s *Server) laneFrameHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	width, werr := strconv.Atoi(r.URL.Query().Get("width"))
	height, herr := strconv.Atoi(r.URL.Query().Get("height"))
	if werr != nil || herr != nil {
		detectRequestsTotal.WithLabelValues("frame", "bad_request").Inc()
		writeErrorResponse(w, http.StatusBadRequest, "width and height query parameters must be integers")
		return
	}
	format := formatFromQuery(r)
	if !validResponseFormat(format) {
		detectRequestsTotal.WithLabelValues("frame", "bad_request").Inc()
		writeErrorResponse(w, http.StatusBadRequest, fmt.Sprintf("unsupported format %q", format))
		return
	}
	if format == formatOverlay && !s.overlayEnabled {
		writeErrorResponse(w, http.StatusBadRequest, "overlay output is disabled")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadMB*1024*1024)
	data, err := io.ReadAll(r.Body)
	if err != nil {
		detectRequestsTotal.WithLabelValues("frame", "bad_request").Inc()
		writeErrorResponse(w, http.StatusBadRequest, fmt.Sprintf("Failed to read frame: %v", err))
		return
	}
	uploadSizeBytes.Observe(float64(len(data)))

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	start := time.Now()
	res, err := s.detector.ProcessFrameContext(ctx, lanes.NewFrame(data, width, height))
	if err != nil {
		s.writeDetectError(w, "frame", err)
		return
	}
	observeResult("frame", time.Since(start).Seconds(), res.Fallback, len(res.Segments))

	var img image.Image
	if format == formatOverlay {
		img, err = utils.BGRToImage(data, width, height)
		if err != nil {
			writeErrorResponse(w, http.StatusInternalServerError, err.Error())
			return
		}
	}
	s.writeResult(w, img, res, format)
}

// parseImageRequest returns the image bytes and the requested output format.
func (s *Server) parseImageRequest(w http.ResponseWriter, r *http.Request) ([]byte, string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadMB*1024*1024)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	var data []byte
	if mediaType == "multipart/form-data" {
		if err := r.ParseMultipartForm(s.maxUploadMB * 1024 * 1024); err != nil {
			return nil, "", fmt.Errorf("failed to parse form: %w", err)
		}
		file, _, err := r.FormFile("image")
		if err != nil {
			return nil, "", fmt.Errorf("no image file provided: %w", err)
		}
		defer func() { _ = file.Close() }()
		if data, err = io.ReadAll(file); err != nil {
			return nil, "", fmt.Errorf("failed to read image: %w", err)
		}
	} else {
		var err error
		if data, err = io.ReadAll(r.Body); err != nil {
			return nil, "", fmt.Errorf("failed to read image: %w", err)
		}
	}
	if len(data) == 0 {
		return nil, "", errors.New("no image data provided")
	}
	uploadSizeBytes.Observe(float64(len(data)))

	format := formatFromQuery(r)
	if f := strings.ToLower(r.FormValue("format")); f != "" && r.URL.Query().Get("format") == "" {
		format = f
	}
	if !validResponseFormat(format) {
		return nil, "", fmt.Errorf("unsupported format %q", format)
	}
	return data, format, nil
}

func formatFromQuery(r *http.Request) string {
	if f := strings.ToLower(r.URL.Query().Get("format")); f != "" {
		return f
	}
	return formatJSON
}

func (s *Server) writeDetectError(w http.ResponseWriter, kind string, err error) {
	switch {
	case lanes.IsDimensionError(err):
		detectRequestsTotal.WithLabelValues(kind, "bad_request").Inc()
		writeErrorResponse(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		detectRequestsTotal.WithLabelValues(kind, "timeout").Inc()
		writeErrorResponse(w, http.StatusGatewayTimeout, "lane detection timed out")
	default:
		detectRequestsTotal.WithLabelValues(kind, "error").Inc()
		slog.Error("Lane detection failed", "type", kind, "error", err)
		writeErrorResponse(w, http.StatusInternalServerError, fmt.Sprintf("lane detection failed: %v", err))
	}
}

func (s *Server) writeResult(w http.ResponseWriter, img image.Image, res *pipeline.FrameResult, format string) {
	switch format {
	case formatCSV:
		out, err := pipeline.ToCSV(res)
		if err != nil {
			writeErrorResponse(w, http.StatusInternalServerError, err.Error())
			return
		}
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		_, _ = io.WriteString(w, out)
	case formatText:
		out, err := pipeline.ToPlainText(res)
		if err != nil {
			writeErrorResponse(w, http.StatusInternalServerError, err.Error())
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = io.WriteString(w, out+"\n")
	case formatOverlay:
		overlay, err := pipeline.RenderOverlay(img, res, s.overlay)
		if err != nil {
			writeErrorResponse(w, http.StatusInternalServerError, err.Error())
			return
		}
		w.Header().Set("Content-Type", "image/png")
		if err := png.Encode(w, overlay); err != nil {
			slog.Error("Failed to encode overlay", "error", err)
		}
	case formatMatrix:
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Header().Set("X-Segment-Rows", strconv.Itoa(len(res.Segments)))
		if err := lanes.WriteSegmentMatrix(w, res.Segments); err != nil {
			slog.Error("Failed to write segment matrix", "error", err)
		}
	default:
		writeJSON(w, http.StatusOK, LaneResponse{Success: true, Result: res})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// writeErrorResponse writes a JSON error body with the given status.
func writeErrorResponse(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, LaneResponse{Success: false, Error: message})
}
