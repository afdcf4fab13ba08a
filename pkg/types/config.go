package types

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// State backend constants
const (
	StateBackendFile   = "file"   // JSON file on local disk
	StateBackendRedis  = "redis"  // Redis string + hash
	StateBackendS3     = "s3"     // Single JSON object
	StateBackendMemory = "memory" // In-process, lost on exit
)

// AppConfig is the root configuration for gmail2tg
type AppConfig struct {
	DebugMode  bool `key:"debugMode" json:"debug_mode"`
	PrettyLogs bool `key:"prettyLogs" json:"pretty_logs"`

	Telegram TelegramConfig `key:"telegram" json:"telegram"`
	Gmail    GmailConfig    `key:"gmail" json:"gmail"`
	Poll     PollConfig     `key:"poll" json:"poll"`
	Message  MessageConfig  `key:"message" json:"message"`
	State    StateConfig    `key:"state" json:"state"`
	HTTP     HTTPConfig     `key:"http" json:"http"`
}

// Validate reports configuration gaps that must stop the process at startup.
func (c *AppConfig) Validate() error {
	var errs []error
	if c.Telegram.Token == "" {
		errs = append(errs, errors.New("telegram.token is required (TG_TOKEN)"))
	}
	if c.Telegram.ChatID == 0 {
		errs = append(errs, errors.New("telegram.chatId is required (TG_CHAT_ID), run 'gmail2tg chatid' to find it"))
	}
	if c.Gmail.MaxPerTick <= 0 {
		errs = append(errs, fmt.Errorf("gmail.maxPerTick must be positive, got %d", c.Gmail.MaxPerTick))
	}
	if c.Poll.Interval <= 0 {
		errs = append(errs, fmt.Errorf("poll.interval must be positive, got %s", c.Poll.Interval))
	}
	if c.State.CompactLow <= 0 || c.State.CompactHigh < c.State.CompactLow {
		errs = append(errs, fmt.Errorf("state compaction marks invalid: high=%d low=%d", c.State.CompactHigh, c.State.CompactLow))
	}
	switch c.State.Backend {
	case StateBackendFile, StateBackendMemory:
	case StateBackendRedis:
		if len(c.State.Redis.Addrs) == 0 {
			errs = append(errs, errors.New("state.redis.addrs is required for the redis backend"))
		}
	case StateBackendS3:
		if c.State.S3.Bucket == "" {
			errs = append(errs, errors.New("state.s3.bucket is required for the s3 backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown state backend %q", c.State.Backend))
	}
	return errors.Join(errs...)
}

// ----------------------------------------------------------------------------
// Telegram
// ----------------------------------------------------------------------------

type TelegramConfig struct {
	Token   string        `key:"token" json:"token"`
	ChatID  int64         `key:"chatId" json:"chat_id"`
	APIBase string        `key:"apiBase" json:"api_base"` // e.g., https://api.telegram.org
	Timeout time.Duration `key:"timeout" json:"timeout"`

	// MinSendInterval paces sendMessage calls, zero disables pacing
	MinSendInterval time.Duration `key:"minSendInterval" json:"min_send_interval"`
}

// Redact returns a copy with the bot token hidden
func (c TelegramConfig) Redact() TelegramConfig {
	if c.Token != "" {
		c.Token = "[REDACTED]"
	}
	return c
}

// ----------------------------------------------------------------------------
// Gmail
// ----------------------------------------------------------------------------

type GmailConfig struct {
	UserID      string `key:"userId" json:"user_id"`
	Query       string `key:"query" json:"query"`
	MaxPerTick  int64  `key:"maxPerTick" json:"max_per_tick"`
	MarkerLabel string `key:"markerLabel" json:"marker_label"`

	// Candidate locations, first existing file wins
	CredentialsPaths []string `key:"credentialsPaths" json:"credentials_paths"`
	TokenPaths       []string `key:"tokenPaths" json:"token_paths"`
}

// ----------------------------------------------------------------------------
// Polling
// ----------------------------------------------------------------------------

type PollConfig struct {
	Interval    time.Duration `key:"interval" json:"interval"`
	TickTimeout time.Duration `key:"tickTimeout" json:"tick_timeout"`
}

// MessageConfig holds the size caps applied when composing notifications
type MessageConfig struct {
	MaxBodyChars    int `key:"maxBodyChars" json:"max_body_chars"`
	MaxHeaderChars  int `key:"maxHeaderChars" json:"max_header_chars"`
	MaxAttachments  int `key:"maxAttachments" json:"max_attachments"`
	MaxMessageChars int `key:"maxMessageChars" json:"max_message_chars"`
}

// ----------------------------------------------------------------------------
// State
// ----------------------------------------------------------------------------

type StateConfig struct {
	Backend     string      `key:"backend" json:"backend"`
	Path        string      `key:"path" json:"path"`
	CompactHigh int         `key:"compactHigh" json:"compact_high"`
	CompactLow  int         `key:"compactLow" json:"compact_low"`
	Redis       RedisConfig `key:"redis" json:"redis"`
	S3          S3Config    `key:"s3" json:"s3"`
}

type RedisMode string

const (
	RedisModeSingle  RedisMode = "single"
	RedisModeCluster RedisMode = "cluster"
)

type RedisConfig struct {
	Mode               RedisMode     `key:"mode" json:"mode"`
	Addrs              []string      `key:"addrs" json:"addrs"`
	Username           string        `key:"username" json:"username"`
	Password           string        `key:"password" json:"password"`
	ClientName         string        `key:"clientName" json:"client_name"`
	EnableTLS          bool          `key:"enableTLS" json:"enable_tls"`
	InsecureSkipVerify bool          `key:"insecureSkipVerify" json:"insecure_skip_verify"`
	DialTimeout        time.Duration `key:"dialTimeout" json:"dial_timeout"`
	ReadTimeout        time.Duration `key:"readTimeout" json:"read_timeout"`
	WriteTimeout       time.Duration `key:"writeTimeout" json:"write_timeout"`
	KeyPrefix          string        `key:"keyPrefix" json:"key_prefix"`
}

type S3Config struct {
	Bucket    string `key:"bucket" json:"bucket"`
	Key       string `key:"key" json:"key"`
	Region    string `key:"region" json:"region"`
	Endpoint  string `key:"endpoint" json:"endpoint"`
	AccessKey string `key:"accessKey" json:"access_key"`
	SecretKey string `key:"secretKey" json:"secret_key"`
}

// ----------------------------------------------------------------------------
// HTTP
// ----------------------------------------------------------------------------

type HTTPConfig struct {
	Host             string        `key:"host" json:"host"`
	Port             int           `key:"port" json:"port"`
	EnablePrettyLogs bool          `key:"enablePrettyLogs" json:"enable_pretty_logs"`
	ShutdownTimeout  time.Duration `key:"shutdownTimeout" json:"shutdown_timeout"`
}

// Addr returns the listen address
func (c HTTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", strings.TrimSpace(c.Host), c.Port)
}
