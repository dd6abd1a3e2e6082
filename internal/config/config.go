// Package config loads pipeline configuration from environment variables and
// an embedded model manifest.
package config

import (
	_ "embed"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

//go:embed models.yaml
var modelsYAML []byte

// Config holds everything the server and pipeline need at startup.
type Config struct {
	Database DatabaseConfig
	Vision   VisionConfig
	Pipeline PipelineConfig
	Web      WebConfig
	Models   ModelsConfig
}

// DatabaseConfig configures the PostgreSQL identity store.
type DatabaseConfig struct {
	URL      string // PostgreSQL connection URL
	MaxConns int    // Maximum pool connections (default 10)
}

// VisionConfig configures the inference sidecar.
type VisionConfig struct {
	URL string // base URL of the vision inference service (default http://localhost:8500)
}

// PipelineConfig holds the thresholds driving matching and clustering.
type PipelineConfig struct {
	MatchThreshold   float64 // cosine distance below which a face matches an identity (default 0.4)
	ClusterEps       float64 // DBSCAN eps for batch reclustering (default 0.6, looser than matching)
	DetectConfidence float64 // minimum detection confidence (default 0.7)
}

// WebConfig configures the HTTP API server.
type WebConfig struct {
	Host string
	Port int
}

// ModelsConfig describes the inference models the sidecar is expected to
// serve. Parsed from the embedded models.yaml manifest.
type ModelsConfig struct {
	Models struct {
		Detector ModelSpec `yaml:"detector"`
		Embedder ModelSpec `yaml:"embedder"`
	} `yaml:"models"`
}

// ModelSpec describes one model in the manifest.
type ModelSpec struct {
	Name        string `yaml:"name"`
	File        string `yaml:"file"`
	InputWidth  int    `yaml:"input_width"`
	InputHeight int    `yaml:"input_height"`
	InputSize   int    `yaml:"input_size"`
	Dim         int    `yaml:"dim"`
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads an environment variable and parses it as a positive float.
// Returns the default value if the env var is unset, empty, or invalid.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 {
		return f
	}
	return defaultVal
}

// Load reads configuration from the environment.
func Load() *Config {
	var models ModelsConfig
	if err := yaml.Unmarshal(modelsYAML, &models); err != nil {
		// Embedded file, so this should never happen in practice
		panic("failed to unmarshal embedded models.yaml: " + err.Error())
	}

	return &Config{
		Database: DatabaseConfig{
			URL:      os.Getenv("DATABASE_URL"),
			MaxConns: envInt("DATABASE_MAX_CONNS", 10),
		},
		Vision: VisionConfig{
			URL: os.Getenv("VISION_URL"),
		},
		Pipeline: PipelineConfig{
			MatchThreshold:   envFloat("MATCH_THRESHOLD", 0.4),
			ClusterEps:       envFloat("CLUSTER_EPS", 0.6),
			DetectConfidence: envFloat("DETECT_CONFIDENCE", 0.7),
		},
		Web: WebConfig{
			Host: envString("WEB_HOST", "0.0.0.0"),
			Port: envInt("WEB_PORT", 8080),
		},
		Models: models,
	}
}

func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}
