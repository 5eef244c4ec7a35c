// Package detector talks to an external pose model process. Frames go to
// the process on stdin and results come back on stdout, both as msgpack
// messages behind a 4 byte big endian length prefix.
package detector

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/jpeg"
	"io"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"

	"github.com/banshee-data/pose.report/internal/monitoring"
	"github.com/banshee-data/pose.report/internal/pose"
	"github.com/banshee-data/pose.report/internal/pose/fusion"
	"github.com/banshee-data/pose.report/internal/pose/pipeline"
)

var logf = monitoring.Prefixed("detector")

// ErrClosed is returned once the worker has been closed or its process
// has gone away.
var ErrClosed = errors.New("detector worker closed")

const (
	DefaultTimeout     = 2 * time.Second
	DefaultStopTimeout = 2 * time.Second
	DefaultJPEGQuality = 85
)

// Config describes the worker process.
type Config struct {
	Command     string
	Args        []string
	Timeout     time.Duration // Per request
	StopTimeout time.Duration // Grace period before the process is killed
	JPEGQuality int
}

func (c Config) withDefaults() Config {
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.StopTimeout <= 0 {
		c.StopTimeout = DefaultStopTimeout
	}
	if c.JPEGQuality <= 0 || c.JPEGQuality > 100 {
		c.JPEGQuality = DefaultJPEGQuality
	}
	return c
}

// Worker multiplexes landmark and box requests over one process. It is
// safe for concurrent use by several streams.
type Worker struct {
	cfg    Config
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	exited chan struct{}

	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[uint64]chan Response
	err     error

	nextID    atomic.Uint64
	requests  atomic.Uint64
	failures  atomic.Uint64
	closeOnce sync.Once
}

// Start launches cfg.Command and returns a worker bound to it.
func Start(ctx context.Context, cfg Config) (*Worker, error) {
	if cfg.Command == "" {
		return nil, errors.New("detector command is required")
	}
	cfg = cfg.withDefaults()

	cmd := exec.CommandContext(ctx, cfg.Command, cfg.Args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", cfg.Command, err)
	}
	logf("started %s (pid %d)", cfg.Command, cmd.Process.Pid)

	w := newWorker(cfg, stdin, stdout)
	w.cmd = cmd
	go logStderr(stderr)
	go func() {
		err := cmd.Wait()
		if err != nil && ctx.Err() == nil {
			logf("process exited: %v", err)
		}
		w.fail(fmt.Errorf("process exited: %w", ErrClosed))
		close(w.exited)
	}()
	return w, nil
}

// newWorker wires a worker to an already running peer.
func newWorker(cfg Config, stdin io.WriteCloser, stdout io.Reader) *Worker {
	w := &Worker{
		cfg:     cfg.withDefaults(),
		stdin:   stdin,
		exited:  make(chan struct{}),
		pending: make(map[uint64]chan Response),
	}
	go w.readLoop(stdout)
	return w
}

func logStderr(r io.Reader) {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		logf("stderr: %s", sc.Text())
	}
}

func (w *Worker) readLoop(r io.Reader) {
	for {
		var resp Response
		if err := ReadMessage(r, &resp); err != nil {
			if errors.Is(err, io.EOF) {
				w.fail(ErrClosed)
			} else {
				w.fail(fmt.Errorf("%w: %v", ErrClosed, err))
			}
			return
		}
		w.mu.Lock()
		ch, ok := w.pending[resp.ID]
		delete(w.pending, resp.ID)
		w.mu.Unlock()
		if !ok {
			logf("dropping response for unknown request %d", resp.ID)
			continue
		}
		ch <- resp
	}
}

// fail records the first terminal error and releases every waiter.
func (w *Worker) fail(err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return
	}
	w.err = err
	for id, ch := range w.pending {
		close(ch)
		delete(w.pending, id)
	}
}

func (w *Worker) failure() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}

// Call sends req and waits for its response, at most cfg.Timeout.
func (w *Worker) Call(ctx context.Context, req Request) (Response, error) {
	w.requests.Add(1)
	resp, err := w.call(ctx, req)
	if err != nil {
		w.failures.Add(1)
	}
	return resp, err
}

func (w *Worker) call(ctx context.Context, req Request) (Response, error) {
	ctx, cancel := context.WithTimeout(ctx, w.cfg.Timeout)
	defer cancel()

	req.ID = w.nextID.Add(1)
	ch := make(chan Response, 1)
	w.mu.Lock()
	if w.err != nil {
		err := w.err
		w.mu.Unlock()
		return Response{}, err
	}
	w.pending[req.ID] = ch
	w.mu.Unlock()

	written := make(chan error, 1)
	go func() {
		w.writeMu.Lock()
		defer w.writeMu.Unlock()
		written <- WriteMessage(w.stdin, req)
	}()

	select {
	case err := <-written:
		if err != nil {
			w.fail(fmt.Errorf("%w: %v", ErrClosed, err))
			return Response{}, err
		}
	case <-ctx.Done():
		// A half written frame leaves the stream unusable.
		w.fail(fmt.Errorf("%w: write timed out", ErrClosed))
		return Response{}, fmt.Errorf("%s request %d: %w", req.Op, req.ID, ctx.Err())
	}

	select {
	case resp, ok := <-ch:
		if !ok {
			return Response{}, w.failure()
		}
		if resp.Error != "" {
			return resp, fmt.Errorf("%s request %d: worker error: %s", req.Op, req.ID, resp.Error)
		}
		return resp, nil
	case <-ctx.Done():
		w.mu.Lock()
		delete(w.pending, req.ID)
		w.mu.Unlock()
		return Response{}, fmt.Errorf("%s request %d: %w", req.Op, req.ID, ctx.Err())
	}
}

func (w *Worker) request(op string, f pipeline.Frame) (Request, error) {
	width, height := f.Size()
	req := Request{Op: op, Seq: f.Seq, Width: width, Height: height}
	if f.Image != nil {
		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, f.Image, &jpeg.Options{Quality: w.cfg.JPEGQuality}); err != nil {
			return Request{}, fmt.Errorf("encode frame %d: %w", f.Seq, err)
		}
		req.Image = buf.Bytes()
	}
	return req, nil
}

// DetectLandmarks implements pipeline.LandmarkDetector.
func (w *Worker) DetectLandmarks(ctx context.Context, f pipeline.Frame) (*pose.LandmarkSet, error) {
	req, err := w.request(OpLandmarks, f)
	if err != nil {
		return nil, err
	}
	resp, err := w.Call(ctx, req)
	if err != nil {
		return nil, err
	}
	return resp.LandmarkSet(), nil
}

// DetectBoxes implements pipeline.CoarseDetector.
func (w *Worker) DetectBoxes(ctx context.Context, f pipeline.Frame) ([]fusion.DetectionBox, error) {
	req, err := w.request(OpBoxes, f)
	if err != nil {
		return nil, err
	}
	resp, err := w.Call(ctx, req)
	if err != nil {
		return nil, err
	}
	return resp.Boxes, nil
}

// Counters returns the number of requests sent and how many failed.
func (w *Worker) Counters() (requests, failures uint64) {
	return w.requests.Load(), w.failures.Load()
}

// Close closes stdin so the process can exit on its own, then kills it
// after the stop timeout.
func (w *Worker) Close() error {
	var err error
	w.closeOnce.Do(func() {
		w.fail(ErrClosed)
		err = w.stdin.Close()
		if w.cmd == nil {
			return
		}
		select {
		case <-w.exited:
		case <-time.After(w.cfg.StopTimeout):
			logf("process did not exit after %s, killing", w.cfg.StopTimeout)
			if kerr := w.cmd.Process.Kill(); kerr != nil {
				logf("kill: %v", kerr)
			}
			<-w.exited
		}
	})
	return err
}
