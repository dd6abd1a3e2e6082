package config

import (
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("MATCH_THRESHOLD", "")
	t.Setenv("CLUSTER_EPS", "")
	t.Setenv("DETECT_CONFIDENCE", "")

	cfg := Load()

	if cfg.Pipeline.MatchThreshold != 0.4 {
		t.Errorf("MatchThreshold = %v; want 0.4", cfg.Pipeline.MatchThreshold)
	}
	if cfg.Pipeline.ClusterEps != 0.6 {
		t.Errorf("ClusterEps = %v; want 0.6", cfg.Pipeline.ClusterEps)
	}
	if cfg.Pipeline.DetectConfidence != 0.7 {
		t.Errorf("DetectConfidence = %v; want 0.7", cfg.Pipeline.DetectConfidence)
	}
	if cfg.Database.MaxConns != 10 {
		t.Errorf("MaxConns = %d; want 10", cfg.Database.MaxConns)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("MATCH_THRESHOLD", "0.35")
	t.Setenv("CLUSTER_EPS", "0.5")
	t.Setenv("DATABASE_MAX_CONNS", "3")

	cfg := Load()

	if cfg.Pipeline.MatchThreshold != 0.35 {
		t.Errorf("MatchThreshold = %v; want 0.35", cfg.Pipeline.MatchThreshold)
	}
	if cfg.Pipeline.ClusterEps != 0.5 {
		t.Errorf("ClusterEps = %v; want 0.5", cfg.Pipeline.ClusterEps)
	}
	if cfg.Database.MaxConns != 3 {
		t.Errorf("MaxConns = %d; want 3", cfg.Database.MaxConns)
	}
}

func TestLoadInvalidValuesFallBack(t *testing.T) {
	t.Setenv("MATCH_THRESHOLD", "not-a-number")
	t.Setenv("DATABASE_MAX_CONNS", "-5")

	cfg := Load()

	if cfg.Pipeline.MatchThreshold != 0.4 {
		t.Errorf("MatchThreshold = %v; want 0.4 fallback", cfg.Pipeline.MatchThreshold)
	}
	if cfg.Database.MaxConns != 10 {
		t.Errorf("MaxConns = %d; want 10 fallback", cfg.Database.MaxConns)
	}
}

func TestEmbeddedModelManifest(t *testing.T) {
	cfg := Load()

	if cfg.Models.Models.Embedder.Dim != 512 {
		t.Errorf("embedder dim = %d; want 512", cfg.Models.Models.Embedder.Dim)
	}
	if cfg.Models.Models.Embedder.InputSize != 112 {
		t.Errorf("embedder input size = %d; want 112", cfg.Models.Models.Embedder.InputSize)
	}
	if cfg.Models.Models.Detector.Name == "" {
		t.Error("detector model name should not be empty")
	}
}
