package common

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
	"github.com/rs/zerolog/log"
)

//go:embed config.default.yaml
var defaultConfig []byte

const (
	configPathEnv = "CONFIG_PATH"
	configTag     = "key"
	keyDelimiter  = "."
)

// EnvKeys maps the supported environment variables onto config keys.
// Anything not listed here is ignored.
var EnvKeys = map[string]string{
	"TG_TOKEN":          "telegram.token",
	"TG_CHAT_ID":        "telegram.chatId",
	"POLL_SECONDS":      "poll.interval",
	"PORT":              "http.port",
	"STATE_PATH":        "state.path",
	"STATE_BACKEND":     "state.backend",
	"MAX_PER_TICK":      "gmail.maxPerTick",
	"MARKER_LABEL":      "gmail.markerLabel",
	"GMAIL_CREDENTIALS": "gmail.credentialsPaths",
	"GMAIL_TOKEN":       "gmail.tokenPaths",
	"REDIS_ADDR":        "state.redis.addrs",
	"S3_BUCKET":         "state.s3.bucket",
	"PRETTY_LOGS":       "prettyLogs",
	"DEBUG":             "debugMode",
}

// ConfigManager loads layered configuration into T: embedded defaults, an
// optional file named by CONFIG_PATH, then environment variables.
type ConfigManager[T any] struct {
	k      *koanf.Koanf
	config T
}

func NewConfigManager[T any]() (*ConfigManager[T], error) {
	cm := &ConfigManager[T]{k: koanf.New(keyDelimiter)}

	if err := cm.k.Load(rawbytes.Provider(defaultConfig), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to load default config: %w", err)
	}

	if path := os.Getenv(configPathEnv); path != "" {
		if err := cm.loadFile(path); err != nil {
			return nil, err
		}
	}

	// A missing .env is the normal case in deployments
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Msg("failed to read .env file")
	}

	if err := cm.k.Load(env.ProviderWithValue("", keyDelimiter, envValue), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	if err := cm.unmarshal(); err != nil {
		return nil, err
	}
	return cm, nil
}

func (cm *ConfigManager[T]) GetConfig() T {
	return cm.config
}

// String returns a key from the merged config, or "" when unset
func (cm *ConfigManager[T]) String(key string) string {
	return cm.k.String(key)
}

func (cm *ConfigManager[T]) loadFile(path string) error {
	var parser koanf.Parser = yaml.Parser()
	if strings.EqualFold(filepath.Ext(path), ".json") {
		parser = json.Parser()
	}

	if err := cm.k.Load(file.Provider(path), parser); err != nil {
		return fmt.Errorf("failed to load config file %s: %w", path, err)
	}
	log.Debug().Str("path", path).Msg("loaded config file")
	return nil
}

func (cm *ConfigManager[T]) unmarshal() error {
	var config T
	err := cm.k.UnmarshalWithConf("", &config, koanf.UnmarshalConf{
		Tag: configTag,
		DecoderConfig: &mapstructure.DecoderConfig{
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.StringToSliceHookFunc(","),
			),
			Result:           &config,
			WeaklyTypedInput: true,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to decode config: %w", err)
	}
	cm.config = config
	return nil
}

// envValue translates an environment variable into a config key and value.
// Returning an empty key drops the variable.
func envValue(name, value string) (string, any) {
	key, ok := EnvKeys[name]
	if !ok || value == "" {
		return "", nil
	}

	switch name {
	case "POLL_SECONDS":
		// Plain integers are seconds
		if !strings.ContainsAny(value, "hmsuµn") {
			value += "s"
		}
	}
	return key, value
}
