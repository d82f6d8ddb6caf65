package capture

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// defaultStopTimeout bounds how long Stop waits for ffmpeg to flush after SIGINT before killing it.
const defaultStopTimeout = 10 * time.Second

// FFmpegConfig describes the capture process.
type FFmpegConfig struct {
	Binary      string
	AudioInput  []string
	VideoInput  []string
	OutputDir   string
	StopTimeout time.Duration
}

// FFmpegDevice captures audio or video by running ffmpeg against a local input and writing a temporary file.
type FFmpegDevice struct {
	cfg FFmpegConfig
	log *zap.Logger

	mu         sync.Mutex
	kind       Kind
	outputPath string
	cmd        *exec.Cmd
	exited     chan struct{}
	startedAt  time.Time
	stoppedAt  time.Time
}

// NewFFmpegDevice creates a device. The output directory is created lazily on Prepare.
func NewFFmpegDevice(cfg FFmpegConfig, log *zap.Logger) *FFmpegDevice {
	if cfg.Binary == "" {
		cfg.Binary = "ffmpeg"
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = os.TempDir()
	}
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = defaultStopTimeout
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &FFmpegDevice{cfg: cfg, log: log}
}

func (d *FFmpegDevice) inputArgs(kind Kind) []string {
	if kind == KindVideo {
		return d.cfg.VideoInput
	}
	return d.cfg.AudioInput
}

// RequestPermission grants access when ffmpeg resolves and every file-backed input (e.g. /dev/video0) can be opened.
func (d *FFmpegDevice) RequestPermission(_ context.Context, kind Kind) (bool, error) {
	if _, err := exec.LookPath(d.cfg.Binary); err != nil {
		return false, fmt.Errorf("lookup %s: %w", d.cfg.Binary, err)
	}
	args := d.inputArgs(kind)
	for i := 0; i+1 < len(args); i++ {
		if args[i] != "-i" || !strings.HasPrefix(args[i+1], "/") {
			continue
		}
		f, err := os.Open(args[i+1])
		if err != nil {
			if errors.Is(err, os.ErrPermission) {
				return false, nil
			}
			return false, fmt.Errorf("open input %s: %w", args[i+1], err)
		}
		_ = f.Close()
	}
	return true, nil
}

// Prepare picks a fresh temporary output path for the next capture.
func (d *FFmpegDevice) Prepare(_ context.Context, kind Kind) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cmd != nil {
		return errors.New("capture already running")
	}
	if err := os.MkdirAll(d.cfg.OutputDir, 0750); err != nil {
		return fmt.Errorf("create capture dir: %w", err)
	}
	d.kind = kind
	d.outputPath = filepath.Join(d.cfg.OutputDir, "capture_"+uuid.NewString()+kind.Ext())
	d.startedAt = time.Time{}
	d.stoppedAt = time.Time{}
	return nil
}

// Start launches ffmpeg. The request context is not bound to the process so that only Stop ends it.
func (d *FFmpegDevice) Start(_ context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.outputPath == "" {
		return errors.New("capture not prepared")
	}
	if d.cmd != nil {
		return errors.New("capture already running")
	}

	args := append([]string{}, d.inputArgs(d.kind)...)
	args = append(args, "-y", d.outputPath)
	cmd := exec.Command(d.cfg.Binary, args...)
	cmd.Stdout = nil
	cmd.Stderr = nil
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start ffmpeg: %w", err)
	}

	exited := make(chan struct{})
	go func() {
		_ = cmd.Wait()
		close(exited)
	}()

	d.cmd = cmd
	d.exited = exited
	d.startedAt = time.Now()
	d.log.Info("capture started", zap.String("kind", string(d.kind)), zap.String("output", d.outputPath))
	return nil
}

// Stop interrupts ffmpeg so it writes the container trailer, killing it if it does not exit in time.
func (d *FFmpegDevice) Stop(_ context.Context) error {
	d.mu.Lock()
	cmd, exited, out := d.cmd, d.exited, d.outputPath
	d.cmd, d.exited = nil, nil
	d.stoppedAt = time.Now()
	d.mu.Unlock()

	if cmd == nil || cmd.Process == nil {
		return errors.New("capture not running")
	}

	_ = cmd.Process.Signal(os.Interrupt)
	select {
	case <-exited:
	case <-time.After(d.cfg.StopTimeout):
		d.log.Warn("ffmpeg did not exit after interrupt, killing", zap.Int("pid", cmd.Process.Pid))
		_ = cmd.Process.Kill()
		<-exited
	}
	d.log.Info("capture stopped", zap.String("output", out))
	return nil
}

// QueryState reports whether ffmpeg is still running, how long it has run and, once the file exists, its path.
func (d *FFmpegDevice) QueryState() (State, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var st State
	if d.cmd != nil {
		select {
		case <-d.exited:
		default:
			st.Active = true
		}
	}
	switch {
	case d.startedAt.IsZero():
	case st.Active:
		st.Elapsed = time.Since(d.startedAt)
	case !d.stoppedAt.IsZero():
		st.Elapsed = d.stoppedAt.Sub(d.startedAt)
	}
	if d.outputPath != "" {
		if _, err := os.Stat(d.outputPath); err == nil {
			st.URI = d.outputPath
		}
	}
	return st, nil
}
