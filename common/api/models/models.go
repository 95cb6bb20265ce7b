package models

import (
	"encoding/json"
	"time"

	"github.com/monobilisim/logagent/common/types"
)

// LogRecord is the persisted form of a log entry.
type LogRecord struct {
	ID        string    `json:"id" gorm:"primaryKey;size:64"`
	Timestamp time.Time `json:"timestamp" gorm:"index"`
	Level     string    `json:"level" gorm:"index;size:16"`
	Source    string    `json:"source" gorm:"index;size:128"`
	Message   string    `json:"message" gorm:"type:text"`
	Metadata  string    `json:"metadata" gorm:"type:text"` // JSON object, may be empty
	CreatedAt time.Time `json:"created_at"`
}

func (LogRecord) TableName() string {
	return "log_entries"
}

// ToEntry converts a stored row into the domain entry. Unrecognized levels
// come back as UNKNOWN and undecodable metadata is dropped.
func (r LogRecord) ToEntry() types.LogEntry {
	e := types.LogEntry{
		ID:        r.ID,
		Timestamp: r.Timestamp,
		Level:     types.NormalizeLevel(r.Level),
		Source:    r.Source,
		Message:   r.Message,
	}
	if r.Metadata != "" {
		var md map[string]any
		if err := json.Unmarshal([]byte(r.Metadata), &md); err == nil && len(md) > 0 {
			e.Metadata = md
		}
	}
	return e
}

// FromEntry is the inverse of ToEntry.
func FromEntry(e types.LogEntry) LogRecord {
	r := LogRecord{
		ID:        e.ID,
		Timestamp: e.Timestamp,
		Level:     string(e.Level),
		Source:    e.Source,
		Message:   e.Message,
	}
	if len(e.Metadata) > 0 {
		if b, err := json.Marshal(e.Metadata); err == nil {
			r.Metadata = string(b)
		}
	}
	return r
}

// ServerConfig is the "server" section of logagent.yaml.
type ServerConfig struct {
	Port string `mapstructure:"port"`
	URL  string `mapstructure:"url"`
}

// PostgresConfig is used when store.driver is "postgres".
type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Dbname   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

// StoreConfig is the "store" section of logagent.yaml.
type StoreConfig struct {
	Driver       string         `mapstructure:"driver"` // sqlite or postgres
	Path         string         `mapstructure:"path"`
	Postgres     PostgresConfig `mapstructure:"postgres"`
	DefaultLimit int            `mapstructure:"default_limit"`
	SeedCount    int            `mapstructure:"seed_count"`
}

// ValkeyConfig represents Valkey cache configuration
type ValkeyConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	Address      string `mapstructure:"address"`
	Password     string `mapstructure:"password"`
	Database     int    `mapstructure:"database"`
	KeyPrefix    string `mapstructure:"key_prefix"`
	SearchTTL    int    `mapstructure:"search_ttl"`    // in seconds
	WriteTimeout int    `mapstructure:"write_timeout"` // in seconds
}

// AMQPConfig is the "ingest.amqp" section of logagent.yaml.
type AMQPConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	URL        string `mapstructure:"url"`
	Exchange   string `mapstructure:"exchange"`
	Queue      string `mapstructure:"queue"`
	RoutingKey string `mapstructure:"routing_key"`
}

// AssistantConfig tells the client where the chat backend lives and how to
// read its responses.
type AssistantConfig struct {
	URL        string        `mapstructure:"url"`
	ReplyPath  string        `mapstructure:"reply_path"`
	IntentPath string        `mapstructure:"intent_path"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// ShipConfig controls forwarding of the agent's own log events to a server.
type ShipConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	URL      string `mapstructure:"url"`
	MinLevel string `mapstructure:"min_level"`
	Retries  int    `mapstructure:"retries"`
}
