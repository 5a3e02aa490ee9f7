package gpu

import (
	"context"
	"errors"
	"testing"

	"fluxd/internal/engine"
)

func TestParseSMI(t *testing.T) {
	out := "0, NVIDIA GeForce RTX 4090, 20480, 24564\n1, NVIDIA A100-SXM4-80GB, 1024, 81920\n"
	devs, err := parseSMI(out)
	if err != nil {
		t.Fatalf("parseSMI: %v", err)
	}
	if len(devs) != 2 {
		t.Fatalf("devices=%d", len(devs))
	}
	d := devs[0]
	if d.index != 0 || d.Device != "cuda:0 NVIDIA GeForce RTX 4090" {
		t.Fatalf("device=%+v", d)
	}
	if d.AllocatedBytes != 20<<30 || d.ReservedBytes != d.AllocatedBytes || d.TotalBytes != 24564*mib {
		t.Fatalf("memory=%+v", d.Utilization)
	}
}

func TestParseSMI_Errors(t *testing.T) {
	for _, in := range []string{"", "0, gpu, 1", "x, gpu, 1, 2", "0, gpu, N/A, 2"} {
		if _, err := parseSMI(in); err == nil {
			t.Fatalf("expected error for %q", in)
		}
	}
}

func TestSMIProber_SelectsIndex(t *testing.T) {
	p := NewSMIProber("", 1)
	if p.Path != "nvidia-smi" {
		t.Fatalf("path=%s", p.Path)
	}
	p.run = func(ctx context.Context, name string, args ...string) ([]byte, error) {
		return []byte("0, a, 1024, 2048\n1, b, 512, 4096\n"), nil
	}
	u, err := p.Utilization(context.Background())
	if err != nil {
		t.Fatalf("Utilization: %v", err)
	}
	if u.AllocatedBytes != 512*mib || u.TotalBytes != 4096*mib {
		t.Fatalf("u=%+v", u)
	}

	p.Index = 7
	if _, err := p.Utilization(context.Background()); !errors.Is(err, engine.ErrUnavailable) {
		t.Fatalf("expected unavailable, got %v", err)
	}
}

func TestSMIProber_CommandFailure(t *testing.T) {
	p := NewSMIProber("/nonexistent/nvidia-smi", 0)
	if _, err := p.Utilization(context.Background()); !errors.Is(err, engine.ErrUnavailable) {
		t.Fatalf("expected unavailable, got %v", err)
	}
}
