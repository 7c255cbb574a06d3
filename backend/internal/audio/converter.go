// Package audio turns synthesized files into Opus packets Discord can send.
package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"runtime"
	"strings"
)

// Converter runs ffmpeg
type Converter struct {
	ffmpegPath string
}

// NewConverter creates a converter. An empty path looks ffmpeg up on PATH.
func NewConverter(ffmpegPath string) *Converter {
	if ffmpegPath == "" {
		ffmpegPath = FindFFmpeg()
	}
	return &Converter{ffmpegPath: ffmpegPath}
}

// FindFFmpeg finds the ffmpeg executable
func FindFFmpeg() string {
	if path, err := exec.LookPath("ffmpeg"); err == nil {
		return path
	}

	if runtime.GOOS == "windows" {
		if path, err := exec.LookPath("ffmpeg.exe"); err == nil {
			return path
		}
	}

	return "ffmpeg"
}

// Args returns the ffmpeg arguments used to encode inputPath for Discord
func (c *Converter) Args(inputPath string) []string {
	// Discord voice: Opus, 48kHz, stereo, 20ms frames
	return []string{
		"-hide_banner",
		"-loglevel", "error",
		"-i", inputPath,
		"-f", "ogg",
		"-c:a", "libopus",
		"-ar", "48000",
		"-ac", "2",
		"-b:a", "64k",
		"-application", "voip",
		"-frame_duration", "20",
		"pipe:1",
	}
}

// ToOggOpus starts ffmpeg on inputPath and returns its Ogg/Opus output.
// Closing the stream stops ffmpeg.
func (c *Converter) ToOggOpus(ctx context.Context, inputPath string) (io.ReadCloser, error) {
	cmd := exec.CommandContext(ctx, c.ffmpegPath, c.Args(inputPath)...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdout pipe: %w", err)
	}

	stderr := &limitedBuffer{max: 2048}
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		stdout.Close()
		return nil, fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	// Return a ReadCloser that closes the command when done
	return &cmdReadCloser{
		Reader: stdout,
		cmd:    cmd,
		stderr: stderr,
	}, nil
}

// cmdReadCloser wraps a Reader and ensures the command is cleaned up
type cmdReadCloser struct {
	io.Reader
	cmd    *exec.Cmd
	stderr *limitedBuffer
	closed bool
}

func (c *cmdReadCloser) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	if c.cmd.Process != nil {
		_ = c.cmd.Process.Kill()
	}
	err := c.cmd.Wait()
	if msg := strings.TrimSpace(c.stderr.String()); msg != "" {
		return fmt.Errorf("ffmpeg: %s", msg)
	}
	// Killed after a complete read is expected
	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		return err
	}
	return nil
}

// limitedBuffer keeps the first max bytes written to it
type limitedBuffer struct {
	buf bytes.Buffer
	max int
}

func (l *limitedBuffer) Write(p []byte) (int, error) {
	if room := l.max - l.buf.Len(); room > 0 {
		if len(p) > room {
			l.buf.Write(p[:room])
		} else {
			l.buf.Write(p)
		}
	}
	return len(p), nil
}

func (l *limitedBuffer) String() string {
	return l.buf.String()
}
