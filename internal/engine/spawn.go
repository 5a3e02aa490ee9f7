package engine

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
)

// SpawnConfig configures a SpawnEngine.
type SpawnConfig struct {
	// Bin is the worker executable. It must accept --host, --port and --model
	// and serve the HTTPEngine protocol.
	Bin          string
	Host         string
	ExtraArgs    []string
	ReadyTimeout time.Duration
	Logger       zerolog.Logger
}

// SpawnEngine starts one worker process per loaded pipeline. Closing the
// pipeline stops the process so the accelerator memory goes back to the OS.
type SpawnEngine struct {
	cfg SpawnConfig
	log zerolog.Logger

	mu   sync.Mutex
	live *HTTPEngine
}

// NewSpawn constructs a SpawnEngine.
func NewSpawn(cfg SpawnConfig) *SpawnEngine {
	if strings.TrimSpace(cfg.Host) == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.ReadyTimeout <= 0 {
		cfg.ReadyTimeout = 5 * time.Minute
	}
	return &SpawnEngine{cfg: cfg, log: cfg.Logger.With().Str("engine", "spawn").Logger()}
}

func (s *SpawnEngine) Name() string { return "spawn" }

// Load starts a worker, waits for it to become healthy and creates the pipeline.
func (s *SpawnEngine) Load(ctx context.Context, spec LoadSpec) (Pipeline, error) {
	if strings.TrimSpace(s.cfg.Bin) == "" {
		return nil, fmt.Errorf("%w: worker binary not configured", ErrUnavailable)
	}
	port, err := pickFreePort(s.cfg.Host)
	if err != nil {
		return nil, err
	}
	baseURL := fmt.Sprintf("http://%s:%d", s.cfg.Host, port)
	args := []string{"--host", s.cfg.Host, "--port", fmt.Sprint(port), "--model", spec.ModelID}
	if spec.CacheDir != "" {
		args = append(args, "--cache-dir", spec.CacheDir)
	}
	args = append(args, s.cfg.ExtraArgs...)

	cmd := exec.Command(s.cfg.Bin, args...)
	stderr := &tailBuffer{max: 4096}
	cmd.Stderr = stderr
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: start worker: %v", ErrUnavailable, err)
	}
	pid := cmd.Process.Pid
	s.log.Info().Str("event", "spawn_start").Str("model_id", spec.ModelID).Int("pid", pid).Int("port", port).Msg("worker started")

	proc := &workerProc{cmd: cmd, done: make(chan struct{})}
	go func() {
		proc.waitErr = cmd.Wait()
		close(proc.done)
	}()

	client := NewHTTP(HTTPConfig{BaseURL: baseURL, Logger: s.log})
	if err := s.waitReady(ctx, client, proc, stderr); err != nil {
		proc.stop()
		s.log.Warn().Str("event", "spawn_failed").Int("pid", pid).Err(err).Msg("worker not ready")
		return nil, err
	}
	s.log.Info().Str("event", "spawn_ready").Int("pid", pid).Str("url", baseURL).Msg("worker ready")

	inner, err := client.Load(ctx, spec)
	if err != nil {
		proc.stop()
		return nil, err
	}
	s.mu.Lock()
	s.live = client
	s.mu.Unlock()
	return &spawnPipeline{s: s, inner: inner, client: client, proc: proc}, nil
}

func (s *SpawnEngine) waitReady(ctx context.Context, client *HTTPEngine, proc *workerProc, stderr *tailBuffer) error {
	deadline := time.Now().Add(s.cfg.ReadyTimeout)
	for {
		if time.Now().After(deadline) {
			return fmt.Errorf("%w: worker not ready in time: %s", ErrUnavailable, client.BaseURL())
		}
		select {
		case <-proc.done:
			if proc.waitErr != nil {
				return fmt.Errorf("%w: worker exited early: %v; stderr tail: %s", ErrUnavailable, proc.waitErr, stderr.String())
			}
			return fmt.Errorf("%w: worker exited before ready", ErrUnavailable)
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if client.Healthy(ctx, time.Second) {
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}
}

// Check verifies the worker binary can be found.
func (s *SpawnEngine) Check(ctx context.Context) error {
	if strings.TrimSpace(s.cfg.Bin) == "" {
		return fmt.Errorf("%w: worker binary not configured", ErrUnavailable)
	}
	if _, err := exec.LookPath(s.cfg.Bin); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Utilization asks the live worker. Without one there is nothing to ask.
func (s *SpawnEngine) Utilization(ctx context.Context) (Utilization, error) {
	s.mu.Lock()
	live := s.live
	s.mu.Unlock()
	if live == nil {
		return Utilization{}, fmt.Errorf("%w: no worker running", ErrUnavailable)
	}
	return live.Utilization(ctx)
}

type spawnPipeline struct {
	s      *SpawnEngine
	inner  Pipeline
	client *HTTPEngine
	proc   *workerProc
}

func (p *spawnPipeline) Synthesize(ctx context.Context, params Params) (Image, error) {
	select {
	case <-p.proc.done:
		return Image{}, fmt.Errorf("%w: worker exited: %v", ErrUnavailable, p.proc.waitErr)
	default:
	}
	return p.inner.Synthesize(ctx, params)
}

func (p *spawnPipeline) Close() error {
	err := p.inner.Close()
	p.proc.stop()
	p.s.mu.Lock()
	if p.s.live == p.client {
		p.s.live = nil
	}
	p.s.mu.Unlock()
	p.s.log.Info().Str("event", "spawn_stop").Int("pid", p.proc.cmd.Process.Pid).Msg("worker stopped")
	if err != nil && errors.Is(err, ErrUnavailable) {
		// the process is gone either way
		return nil
	}
	return err
}

type workerProc struct {
	cmd      *exec.Cmd
	done     chan struct{}
	waitErr  error
	stopOnce sync.Once
}

// stop sends SIGTERM, then kills after 2s.
func (w *workerProc) stop() {
	w.stopOnce.Do(func() {
		if w.cmd.Process == nil {
			return
		}
		_ = w.cmd.Process.Signal(syscall.SIGTERM)
		select {
		case <-w.done:
		case <-time.After(2 * time.Second):
			_ = w.cmd.Process.Kill()
			<-w.done
		}
	})
}

func pickFreePort(host string) (int, error) {
	l, err := net.Listen("tcp", net.JoinHostPort(host, "0"))
	if err != nil {
		return 0, err
	}
	defer l.Close()
	addr, ok := l.Addr().(*net.TCPAddr)
	if !ok {
		return 0, fmt.Errorf("unexpected addr: %s", l.Addr())
	}
	return addr.Port, nil
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	mu  sync.Mutex
	max int
	buf []byte
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	t.buf = append(t.buf, p...)
	if len(t.buf) > t.max {
		t.buf = t.buf[len(t.buf)-t.max:]
	}
	t.mu.Unlock()
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return string(t.buf)
}
