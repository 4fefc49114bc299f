// Package config loads and validates ingestion recipes: the declarative
// description of one pipeline's source, sink and state tracking settings.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Recipe is the top-level configuration for one ingestion pipeline.
type Recipe struct {
	PipelineName       string `yaml:"pipeline_name" json:"pipeline_name"`
	PlatformInstanceID string `yaml:"platform_instance_id" json:"platform_instance_id"`
	JobName            string `yaml:"job_name" json:"job_name"`
	RunID              string `yaml:"run_id" json:"run_id"`

	Source   SourceConfig   `yaml:"source" json:"source"`
	Sink     SinkConfig     `yaml:"sink" json:"sink"`
	Graph    GraphConfig    `yaml:"graph" json:"graph"`
	Stateful StatefulConfig `yaml:"stateful" json:"stateful"`
}

// SourceConfig selects and configures the work unit source.
type SourceConfig struct {
	Type string           `yaml:"type" json:"type"`
	File FileSourceConfig `yaml:"file" json:"file"`
}

// FileSourceConfig configures the file source.
type FileSourceConfig struct {
	Path string `yaml:"path" json:"path"`
}

// SinkConfig selects and configures the emission transport.
type SinkConfig struct {
	Type   string           `yaml:"type" json:"type"`
	Rest   RestSinkConfig   `yaml:"rest" json:"rest"`
	File   FileSinkConfig   `yaml:"file" json:"file"`
	NATS   NATSSinkConfig   `yaml:"nats" json:"nats"`
	Kafka  KafkaSinkConfig  `yaml:"kafka" json:"kafka"`
	Mirror MirrorSinkConfig `yaml:"mirror" json:"mirror"`
}

// RestSinkConfig configures the synchronous catalog REST sink.
type RestSinkConfig struct {
	Server  string        `yaml:"server" json:"server"`
	Token   string        `yaml:"token" json:"token"`
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
}

// FileSinkConfig configures the newline-delimited JSON file sink.
type FileSinkConfig struct {
	Path string `yaml:"path" json:"path"`
}

// NATSSinkConfig configures the asynchronous JetStream sink.
type NATSSinkConfig struct {
	URL           string `yaml:"url" json:"url"`
	Stream        string `yaml:"stream" json:"stream"`
	SubjectPrefix string `yaml:"subject_prefix" json:"subject_prefix"`
	MaxPending    int    `yaml:"max_pending" json:"max_pending"`
}

// KafkaSinkConfig configures the asynchronous Kafka sink.
type KafkaSinkConfig struct {
	Brokers  []string `yaml:"brokers" json:"brokers"`
	Topic    string   `yaml:"topic" json:"topic"`
	ClientID string   `yaml:"client_id" json:"client_id"`
}

// MirrorSinkConfig configures the local Neo4j mirror sink.
type MirrorSinkConfig struct {
	URI      string `yaml:"uri" json:"uri"`
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
	Database string `yaml:"database" json:"database"`
}

// GraphConfig configures the catalog read client used for checkpoint loads
// and connectivity checks.
type GraphConfig struct {
	Server  string        `yaml:"server" json:"server"`
	Token   string        `yaml:"token" json:"token"`
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
}

// StatefulConfig controls cross-run state tracking.
type StatefulConfig struct {
	Enabled             bool `yaml:"enabled" json:"enabled"`
	RemoveStaleMetadata bool `yaml:"remove_stale_metadata" json:"remove_stale_metadata"`
}

// Load reads a recipe from a YAML or JSON file, applies defaults and
// validates it.
func Load(path string) (*Recipe, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read recipe: %w", err)
	}

	recipe := &Recipe{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = json.Unmarshal(data, recipe)
	default:
		err = yaml.Unmarshal(data, recipe)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse recipe: %w", err)
	}

	recipe.applyDefaults()
	if err := recipe.Validate(); err != nil {
		return nil, err
	}
	return recipe, nil
}

func (r *Recipe) applyDefaults() {
	if r.Source.Type == "" {
		r.Source.Type = "file"
	}
	if r.Sink.Type == "" {
		r.Sink.Type = "rest"
	}
	if r.Sink.Rest.Server == "" {
		r.Sink.Rest.Server = "http://localhost:8080"
	}
	if r.Sink.Rest.Timeout == 0 {
		r.Sink.Rest.Timeout = 30 * time.Second
	}
	if r.Graph.Server == "" {
		r.Graph.Server = r.Sink.Rest.Server
	}
	if r.Graph.Token == "" {
		r.Graph.Token = r.Sink.Rest.Token
	}
	if r.Graph.Timeout == 0 {
		r.Graph.Timeout = 30 * time.Second
	}
	if r.Sink.NATS.URL == "" {
		r.Sink.NATS.URL = "nats://localhost:4222"
	}
	if r.Sink.Kafka.ClientID == "" {
		r.Sink.Kafka.ClientID = "lodestar"
	}
}

// Validate checks the recipe for the mistakes a pipeline could otherwise
// only discover mid-run.
func (r *Recipe) Validate() error {
	if r.PipelineName == "" {
		return fmt.Errorf("recipe requires pipeline_name")
	}

	switch r.Source.Type {
	case "file":
		if r.Source.File.Path == "" {
			return fmt.Errorf("file source requires a path")
		}
	default:
		return fmt.Errorf("unknown source type %q", r.Source.Type)
	}

	switch r.Sink.Type {
	case "rest":
		if r.Sink.Rest.Server == "" {
			return fmt.Errorf("rest sink requires a server")
		}
	case "file":
		if r.Sink.File.Path == "" {
			return fmt.Errorf("file sink requires a path")
		}
	case "nats":
		if r.Sink.NATS.URL == "" {
			return fmt.Errorf("nats sink requires a url")
		}
	case "kafka":
		if len(r.Sink.Kafka.Brokers) == 0 {
			return fmt.Errorf("kafka sink requires at least one broker")
		}
	case "mirror":
		if r.Sink.Mirror.URI == "" {
			return fmt.Errorf("mirror sink requires a uri")
		}
	default:
		return fmt.Errorf("unknown sink type %q", r.Sink.Type)
	}

	if r.Stateful.Enabled {
		if r.PlatformInstanceID == "" {
			return fmt.Errorf("stateful ingestion requires platform_instance_id")
		}
		if r.Graph.Server == "" {
			return fmt.Errorf("stateful ingestion requires a graph server")
		}
	}
	return nil
}

// Snapshot renders the recipe as the JSON blob stored inside checkpoints
// for debugging, with credentials stripped.
func (r *Recipe) Snapshot() (string, error) {
	redacted := *r
	redacted.Sink.Rest.Token = ""
	redacted.Sink.Mirror.Password = ""
	redacted.Graph.Token = ""
	data, err := json.Marshal(&redacted)
	if err != nil {
		return "", fmt.Errorf("snapshot recipe: %w", err)
	}
	return string(data), nil
}
