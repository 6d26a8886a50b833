package fingerprint

import (
	"testing"
)

func TestCompute_ExplicitFingerprintWins(t *testing.T) {
	event := map[string]any{
		"fingerprint": "upstream-fp",
		"name":        "HighCPU",
	}
	if got := Compute(event); got != "upstream-fp" {
		t.Errorf("Compute() = %q, want upstream-fp", got)
	}
}

func TestCompute_StableAcrossVolatileFields(t *testing.T) {
	base := map[string]any{
		"name":    "HighCPU",
		"service": "billing",
		"labels":  map[string]any{"region": "eu-west-1", "severity": "critical"},
	}
	withNoise := map[string]any{
		"name":      "HighCPU",
		"service":   "billing",
		"labels":    map[string]any{"severity": "critical", "region": "eu-west-1"},
		"startsAt":  "2026-08-01T10:00:00Z",
		"value":     "97.2",
		"runbook":   "https://wiki/runbooks/highcpu",
		"timestamp": 1754042400,
	}

	a, b := Compute(base), Compute(withNoise)
	if a != b {
		t.Errorf("fingerprints differ across volatile fields: %q vs %q", a, b)
	}
}

func TestCompute_DiffersOnIdentity(t *testing.T) {
	a := Compute(map[string]any{"name": "HighCPU", "service": "billing"})
	b := Compute(map[string]any{"name": "HighCPU", "service": "checkout"})
	if a == b {
		t.Error("different services must produce different fingerprints")
	}

	c := Compute(map[string]any{
		"name":   "HighCPU",
		"labels": map[string]any{"region": "eu-west-1"},
	})
	d := Compute(map[string]any{
		"name":   "HighCPU",
		"labels": map[string]any{"region": "us-east-1"},
	})
	if c == d {
		t.Error("different label sets must produce different fingerprints")
	}
}

func TestCompute_AlertnameAlias(t *testing.T) {
	a := Compute(map[string]any{"alertname": "DiskPressure"})
	b := Compute(map[string]any{"alertname": "DiskPressure"})
	if a != b {
		t.Error("expected deterministic fingerprint for alertname payloads")
	}
	if a == Compute(map[string]any{"alertname": "PodCrashLooping"}) {
		t.Error("different alertnames must differ")
	}
}

func TestComputeFromParts(t *testing.T) {
	a := ComputeFromParts("grafana", "rule-1")
	b := ComputeFromParts("grafana", "rule-1")
	if a != b {
		t.Error("expected deterministic hash")
	}
	if a == ComputeFromParts("grafana", "rule-2") {
		t.Error("different parts must differ")
	}
	if len(a) != 64 {
		t.Errorf("len = %d, want 64 hex chars", len(a))
	}
}
