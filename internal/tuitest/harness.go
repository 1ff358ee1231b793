// Package tuitest drives the feedscout binary inside a pseudo terminal so tests can script
// key presses and inspect what was drawn.
package tuitest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/creack/pty"
)

const (
	defaultWidth   = 100
	defaultHeight  = 30
	defaultTimeout = 10 * time.Second
	pollInterval   = 20 * time.Millisecond
)

// Step is one scripted interaction. When WaitFor is set the harness waits until the
// rendered output contains that text before sleeping Delay and writing Input.
type Step struct {
	WaitFor string
	Delay   time.Duration
	Input   []byte
}

// Keys returns a step that types s once the screen shows waitFor.
func Keys(waitFor, s string) Step {
	return Step{WaitFor: waitFor, Input: []byte(s)}
}

// Config configures how the harness spawns and drives the program.
type Config struct {
	Command          []string
	Dir              string
	Env              []string
	Width            int
	Height           int
	Steps            []Step
	Timeout          time.Duration
	AllowedExitCodes []int
}

// Recording holds the raw terminal stream and the frames parsed from it.
type Recording struct {
	Raw      []byte
	Frames   []Frame
	Duration time.Duration
}

// transcript is the PTY output shared between the reader goroutine and the script.
type transcript struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (t *transcript) Write(p []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, _ = t.buf.Write(p)
}

func (t *transcript) Bytes() []byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]byte(nil), t.buf.Bytes()...)
}

// contains reports whether text appears in the plain rendering since offset and returns
// the new offset to search from.
func (t *transcript) contains(text string, offset int) (bool, int) {
	raw := t.Bytes()
	if offset > len(raw) {
		offset = len(raw)
	}
	plain := stripANSI(strings.ReplaceAll(string(raw[offset:]), "\r", ""))
	if strings.Contains(plain, text) {
		return true, len(raw)
	}
	return false, offset
}

// Run starts the command inside a PTY, replays the steps and waits for the program to
// exit.
func Run(ctx context.Context, cfg Config) (*Recording, error) {
	if len(cfg.Command) == 0 {
		return nil, errors.New("tuitest: command is required")
	}
	width := cfg.Width
	if width <= 0 {
		width = defaultWidth
	}
	height := cfg.Height
	if height <= 0 {
		height = defaultHeight
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, cfg.Command[0], cfg.Command[1:]...)
	cmd.Dir = cfg.Dir
	cmd.Env = buildEnv(cfg.Env)

	ptmx, err := pty.StartWithSize(cmd, &pty.Winsize{Rows: uint16(height), Cols: uint16(width)})
	if err != nil {
		return nil, fmt.Errorf("tuitest: start program: %w", err)
	}
	defer func() { _ = ptmx.Close() }()

	out := &transcript{}
	copyDone := make(chan struct{})
	go func() {
		defer close(copyDone)
		responder := newTerminalResponder(ptmx)
		buf := make([]byte, 4096)
		for {
			n, readErr := ptmx.Read(buf)
			if n > 0 {
				responder.Process(buf[:n])
				out.Write(buf[:n])
			}
			if readErr != nil {
				return
			}
		}
	}()

	waitErr := make(chan error, 1)
	go func() { waitErr <- cmd.Wait() }()

	start := time.Now()
	offset := 0
	for i, step := range cfg.Steps {
		if step.WaitFor != "" {
			if offset, err = waitFor(ctx, out, step.WaitFor, offset); err != nil {
				return nil, fmt.Errorf("tuitest: step %d: %w", i, err)
			}
		}
		if step.Delay > 0 {
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("tuitest: step %d: %w", i, ctx.Err())
			case <-time.After(step.Delay):
			}
		}
		if len(step.Input) > 0 {
			if _, err := ptmx.Write(step.Input); err != nil {
				return nil, fmt.Errorf("tuitest: write input: %w", err)
			}
		}
	}

	select {
	case err := <-waitErr:
		if err != nil && !allowedExit(err, cfg.AllowedExitCodes) {
			return nil, fmt.Errorf("tuitest: program exited with error: %w\n%s", err, tail(out.Bytes()))
		}
	case <-ctx.Done():
		return nil, fmt.Errorf("tuitest: timeout waiting for program exit: %w\n%s", ctx.Err(), tail(out.Bytes()))
	}

	_ = ptmx.Close()
	<-copyDone

	raw := out.Bytes()
	return &Recording{Raw: raw, Frames: parseFrames(raw), Duration: time.Since(start)}, nil
}

func waitFor(ctx context.Context, out *transcript, text string, offset int) (int, error) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		ok, next := out.contains(text, offset)
		if ok {
			return next, nil
		}
		select {
		case <-ctx.Done():
			return offset, fmt.Errorf("waiting for %q: %w\n%s", text, ctx.Err(), tail(out.Bytes()))
		case <-ticker.C:
		}
	}
}

func allowedExit(err error, codes []int) bool {
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return false
	}
	for _, code := range codes {
		if exitErr.ExitCode() == code {
			return true
		}
	}
	return false
}

// tail returns the last screenful of plain output for error messages.
func tail(raw []byte) string {
	plain := normalizeLines(stripANSI(strings.ReplaceAll(string(raw), "\r", "")))
	lines := strings.Split(plain, "\n")
	if len(lines) > defaultHeight {
		lines = lines[len(lines)-defaultHeight:]
	}
	return strings.Join(lines, "\n")
}

func buildEnv(extra []string) []string {
	env := append(os.Environ(), extra...)
	for _, entry := range env {
		if strings.HasPrefix(entry, "TERM=") {
			return env
		}
	}
	return append(env, "TERM=xterm-256color")
}

var (
	// KeyEnter sends a carriage return.
	KeyEnter = []byte{'\r'}
	// KeyCtrlC interrupts the program.
	KeyCtrlC = []byte{3}
	// KeyEsc closes the search prompt.
	KeyEsc = []byte{27}
	// KeyTab switches between lists.
	KeyTab = []byte{'\t'}
	// KeyDown moves the selection one row down.
	KeyDown = []byte("\x1b[B")
	// KeyEnd jumps to the last row.
	KeyEnd = []byte("\x1b[F")
)
