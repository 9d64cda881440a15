package camera

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"sync"
	"time"

	"wardwatch/internal/model"
)

// StreamSource reads an MJPEG stream (multipart/x-mixed-replace) from an IP
// camera over HTTP. This is the format served by motion-style Pi cameras and
// most low-end network cameras.
type StreamSource struct {
	url    string
	width  int
	height int

	mu     sync.Mutex
	closed bool
	resp   *http.Response
	parts  *multipart.Reader
	frame  uint64
}

// OpenStream connects to the stream URL and verifies the content type before
// returning. The returned source is not safe for concurrent Reads; the worker
// is its only reader.
func OpenStream(ctx context.Context, url string, set Settings) (*StreamSource, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("connect stream: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("stream returned status %d", resp.StatusCode)
	}
	mediaType, params, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil || mediaType != "multipart/x-mixed-replace" || params["boundary"] == "" {
		resp.Body.Close()
		return nil, fmt.Errorf("not an mjpeg stream: content-type %q", resp.Header.Get("Content-Type"))
	}
	return &StreamSource{
		url:    url,
		width:  set.FrameWidth,
		height: set.FrameHeight,
		resp:   resp,
		parts:  multipart.NewReader(resp.Body, params["boundary"]),
	}, nil
}

func (s *StreamSource) Read(ctx context.Context) (Frame, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return Frame{}, errors.New("stream source closed")
	}
	parts := s.parts
	s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return Frame{}, err
	}
	part, err := parts.NextPart()
	if err != nil {
		return Frame{}, fmt.Errorf("next frame: %w", err)
	}
	data, err := io.ReadAll(part)
	part.Close()
	if err != nil {
		return Frame{}, fmt.Errorf("read frame body: %w", err)
	}
	s.mu.Lock()
	s.frame++
	n := s.frame
	s.mu.Unlock()
	return Frame{
		Data:      data,
		Width:     s.width,
		Height:    s.height,
		Number:    n,
		Timestamp: time.Now().UTC(),
	}, nil
}

func (s *StreamSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.resp.Body.Close()
}

// OpenSource is the default OpenFunc: it dispatches on the resource's
// locator.
func OpenSource(ctx context.Context, cam model.CameraResource, set Settings) (FrameSource, error) {
	switch {
	case cam.StreamURL != "":
		return OpenStream(ctx, cam.StreamURL, set)
	case cam.DeviceIndex != nil:
		return OpenDevice(ctx, *cam.DeviceIndex, set)
	default:
		return nil, ErrNoSource
	}
}
