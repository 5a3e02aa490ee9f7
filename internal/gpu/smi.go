// Package gpu reads accelerator memory from nvidia-smi. It backs the
// manager's utilization report when the engine cannot answer itself.
package gpu

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"fluxd/internal/engine"
)

const mib = 1024 * 1024

// SMIProber implements engine.Prober by shelling out to nvidia-smi.
type SMIProber struct {
	// Path defaults to "nvidia-smi" looked up on PATH.
	Path string
	// Index selects the device when several are present.
	Index   int
	Timeout time.Duration

	run func(ctx context.Context, name string, args ...string) ([]byte, error)
}

// NewSMIProber returns a prober for device index.
func NewSMIProber(path string, index int) *SMIProber {
	if strings.TrimSpace(path) == "" {
		path = "nvidia-smi"
	}
	return &SMIProber{Path: path, Index: index, Timeout: 5 * time.Second, run: runCommand}
}

// Utilization reports used and total memory of the selected device.
// nvidia-smi has no notion of reserved memory, so Reserved equals Allocated.
func (p *SMIProber) Utilization(ctx context.Context) (engine.Utilization, error) {
	ctx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()
	out, err := p.run(ctx, p.Path,
		"--query-gpu=index,name,memory.used,memory.total",
		"--format=csv,noheader,nounits")
	if err != nil {
		return engine.Utilization{}, fmt.Errorf("%w: %v", engine.ErrUnavailable, err)
	}
	devices, err := parseSMI(string(out))
	if err != nil {
		return engine.Utilization{}, err
	}
	for _, d := range devices {
		if d.index == p.Index {
			return d.Utilization, nil
		}
	}
	return engine.Utilization{}, fmt.Errorf("%w: gpu %d not found", engine.ErrUnavailable, p.Index)
}

type device struct {
	index int
	engine.Utilization
}

// parseSMI reads one CSV row per device: index, name, used MiB, total MiB.
func parseSMI(output string) ([]device, error) {
	output = strings.TrimSpace(output)
	if output == "" {
		return nil, errors.New("empty nvidia-smi output")
	}
	r := csv.NewReader(strings.NewReader(output))
	r.TrimLeadingSpace = true
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse nvidia-smi csv: %w", err)
	}
	out := make([]device, 0, len(records))
	for _, rec := range records {
		if len(rec) < 4 {
			return nil, fmt.Errorf("unexpected field count: got %d, expected 4", len(rec))
		}
		idx, err := strconv.Atoi(strings.TrimSpace(rec[0]))
		if err != nil {
			return nil, fmt.Errorf("parse index: %w", err)
		}
		used, err := strconv.ParseFloat(strings.TrimSpace(rec[2]), 64)
		if err != nil {
			return nil, fmt.Errorf("parse memory used: %w", err)
		}
		total, err := strconv.ParseFloat(strings.TrimSpace(rec[3]), 64)
		if err != nil {
			return nil, fmt.Errorf("parse memory total: %w", err)
		}
		usedB := uint64(used * mib)
		out = append(out, device{index: idx, Utilization: engine.Utilization{
			Device:         fmt.Sprintf("cuda:%d %s", idx, strings.TrimSpace(rec[1])),
			AllocatedBytes: usedB,
			ReservedBytes:  usedB,
			TotalBytes:     uint64(total * mib),
		}})
	}
	return out, nil
}

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("nvidia-smi failed: %w (stderr: %s)", err, strings.TrimSpace(stderr.String()))
	}
	return stdout.Bytes(), nil
}
