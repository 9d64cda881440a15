package camera

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"time"
)

var jpegSOI = []byte{0xff, 0xd8}

// DeviceSource captures a local video device through an ffmpeg child process
// emitting MJPEG on stdout. Avoids linking a capture library while still
// speaking to any V4L2 device.
type DeviceSource struct {
	cmd    *exec.Cmd
	stdout io.ReadCloser
	reader *bufio.Reader

	mu     sync.Mutex
	closed bool
	frame  uint64
	width  int
	height int
}

// OpenDevice starts ffmpeg against /dev/video<index>. The process is killed
// on Close.
func OpenDevice(ctx context.Context, index int, set Settings) (*DeviceSource, error) {
	device := fmt.Sprintf("/dev/video%d", index)
	args := []string{
		"-hide_banner", "-loglevel", "error",
		"-f", "v4l2",
		"-video_size", fmt.Sprintf("%dx%d", set.FrameWidth, set.FrameHeight),
		"-framerate", fmt.Sprintf("%g", set.FrameRate),
		"-i", device,
		"-f", "mjpeg",
		"-q:v", "5",
		"-",
	}
	cmd := exec.Command("ffmpeg", args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start ffmpeg for %s: %w", device, err)
	}
	src := &DeviceSource{
		cmd:    cmd,
		stdout: stdout,
		reader: bufio.NewReaderSize(stdout, 1<<20),
		width:  set.FrameWidth,
		height: set.FrameHeight,
	}
	// Probe one frame so a missing or busy device fails the open, not the
	// first worker tick.
	probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := src.Read(probeCtx); err != nil {
		src.Close()
		return nil, fmt.Errorf("probe %s: %w", device, err)
	}
	return src, nil
}

func (d *DeviceSource) Read(ctx context.Context) (Frame, error) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return Frame{}, errors.New("device source closed")
	}
	d.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return Frame{}, err
	}
	data, err := readJPEG(d.reader)
	if err != nil {
		return Frame{}, err
	}
	d.mu.Lock()
	d.frame++
	n := d.frame
	d.mu.Unlock()
	return Frame{
		Data:      data,
		Width:     d.width,
		Height:    d.height,
		Number:    n,
		Timestamp: time.Now().UTC(),
	}, nil
}

func (d *DeviceSource) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	d.mu.Unlock()

	_ = d.stdout.Close()
	if d.cmd.Process != nil {
		_ = d.cmd.Process.Kill()
	}
	_ = d.cmd.Wait()
	return nil
}

// readJPEG scans the MJPEG byte stream for the next complete JPEG image
// (SOI..EOI).
func readJPEG(r *bufio.Reader) ([]byte, error) {
	// Seek start-of-image.
	for {
		b, err := r.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("read frame: %w", err)
		}
		if b != 0xff {
			continue
		}
		next, err := r.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("read frame: %w", err)
		}
		if next == 0xd8 {
			break
		}
	}
	buf := bytes.NewBuffer(nil)
	buf.Write(jpegSOI)
	prev := byte(0)
	for {
		b, err := r.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("read frame: %w", err)
		}
		buf.WriteByte(b)
		if prev == 0xff && b == 0xd9 {
			return buf.Bytes(), nil
		}
		prev = b
	}
}
