package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/murmurlabs/murmur-core/internal/history"
	"github.com/murmurlabs/murmur-core/internal/prompt"
	"github.com/murmurlabs/murmur-core/internal/speech"
)

type TelemetryConfig struct {
	LogLevel       string `yaml:"log_level"`
	OTLPEndpoint   string `yaml:"otlp_endpoint"`
	OTLPInsecure   bool   `yaml:"otlp_insecure"`
	PrometheusBind string `yaml:"prometheus_bind"`
}

type HTTPConfig struct {
	Bind string `yaml:"bind"`
	Port int    `yaml:"port"`
}

type BusConfig struct {
	Embedded       bool     `yaml:"embedded"`
	Port           int      `yaml:"port"`
	Servers        []string `yaml:"servers"`
	Username       string   `yaml:"username"`
	Password       string   `yaml:"password"`
	Token          string   `yaml:"token"`
	TLSInsecure    bool     `yaml:"tls_insecure"`
	ConnectTimeout int      `yaml:"connect_timeout_ms"`
	StoreDir       string   `yaml:"store_dir"`
}

type WhisperConfig struct {
	Command          string `yaml:"command"`
	ModelPath        string `yaml:"model_path"`
	FallbackLanguage string `yaml:"fallback_language"`
}

type CloudProviderConfig struct {
	APIKey    string `yaml:"api_key"`
	Endpoint  string `yaml:"endpoint"`
	Model     string `yaml:"model"`
	TimeoutMS int    `yaml:"timeout_ms"`
}

type SpeechConfig struct {
	Provider string              `yaml:"provider"`
	Whisper  WhisperConfig       `yaml:"whisper"`
	OpenAI   CloudProviderConfig `yaml:"openai"`
	Groq     CloudProviderConfig `yaml:"groq"`
}

type PromptConfig struct {
	Template         string `yaml:"template"`
	CustomText       string `yaml:"custom_text"`
	OutputLanguage   string `yaml:"output_language"`
	ActiveAppCommand string `yaml:"active_app_command"`
}

type CaptureConfig struct {
	Command       string `yaml:"command"`
	Device        string `yaml:"device"`
	Directory     string `yaml:"directory"`
	StopTimeoutMS int    `yaml:"stop_timeout_ms"`
}

type HistoryConfig struct {
	Directory  string `yaml:"directory"`
	MaxRecords int    `yaml:"max_records"`
	Eviction   string `yaml:"eviction"`
}

type EventLogConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Path          string `yaml:"path"`
	RetentionDays int    `yaml:"retention_days"`
	MaxSessions   int    `yaml:"max_sessions"`
}

type SessionConfig struct {
	TranscribeTimeoutMS int `yaml:"transcribe_timeout_ms"`
}

type Config struct {
	RuntimeName string          `yaml:"runtime_name"`
	Environment string          `yaml:"environment"`
	HTTP        HTTPConfig      `yaml:"http"`
	Telemetry   TelemetryConfig `yaml:"telemetry"`
	Bus         BusConfig       `yaml:"bus"`
	Speech      SpeechConfig    `yaml:"speech"`
	Prompt      PromptConfig    `yaml:"prompt"`
	Capture     CaptureConfig   `yaml:"capture"`
	History     HistoryConfig   `yaml:"history"`
	EventLog    EventLogConfig  `yaml:"event_log"`
	Session     SessionConfig   `yaml:"session"`
}

func Default() Config {
	return Config{
		RuntimeName: "murmur-core",
		Environment: "development",
		HTTP: HTTPConfig{
			Bind: "127.0.0.1",
			Port: 8090,
		},
		Telemetry: TelemetryConfig{
			LogLevel:       "info",
			OTLPEndpoint:   "",
			OTLPInsecure:   true,
			PrometheusBind: ":9091",
		},
		Bus: BusConfig{
			Embedded:       true,
			Port:           4222,
			Servers:        []string{"nats://localhost:4222"},
			ConnectTimeout: 2000,
			StoreDir:       "./data/nats",
		},
		Speech: SpeechConfig{
			Provider: string(speech.ProviderLocal),
			Whisper: WhisperConfig{
				Command:          "whisper-cli",
				ModelPath:        "./models/ggml-base.en.bin",
				FallbackLanguage: "en",
			},
			OpenAI: CloudProviderConfig{
				Endpoint:  speech.OpenAIEndpoint,
				Model:     speech.OpenAIModel,
				TimeoutMS: 60000,
			},
			Groq: CloudProviderConfig{
				Endpoint:  speech.GroqEndpoint,
				Model:     speech.GroqModel,
				TimeoutMS: 60000,
			},
		},
		Prompt: PromptConfig{
			Template:       string(prompt.TemplateNone),
			OutputLanguage: string(prompt.LanguageAuto),
		},
		Capture: CaptureConfig{
			Command:       "arecord -q -D {device} -f S16_LE -r 16000 -c 1 {output}",
			Device:        "default",
			Directory:     "./data/capture",
			StopTimeoutMS: 3000,
		},
		History: HistoryConfig{
			Directory:  "./data/history",
			MaxRecords: history.DefaultMaxRecords,
			Eviction:   string(history.EvictOldest),
		},
		EventLog: EventLogConfig{
			Enabled:       true,
			Path:          "./data/murmur-events.db",
			RetentionDays: 30,
			MaxSessions:   10000,
		},
		Session: SessionConfig{
			TranscribeTimeoutMS: 60000,
		},
	}
}

func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return cfg, fmt.Errorf("config file not found: %w", err)
			}
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	overrideString(&cfg.RuntimeName, "MURMUR_RUNTIME_NAME")
	overrideString(&cfg.Environment, "MURMUR_RUNTIME_ENVIRONMENT")
	overrideString(&cfg.HTTP.Bind, "MURMUR_HTTP_BIND")
	overrideInt(&cfg.HTTP.Port, "MURMUR_HTTP_PORT")
	overrideString(&cfg.Telemetry.LogLevel, "MURMUR_TELEMETRY_LOG_LEVEL")
	overrideString(&cfg.Telemetry.OTLPEndpoint, "MURMUR_TELEMETRY_OTLP_ENDPOINT")
	overrideBool(&cfg.Telemetry.OTLPInsecure, "MURMUR_TELEMETRY_OTLP_INSECURE")
	overrideString(&cfg.Telemetry.PrometheusBind, "MURMUR_TELEMETRY_PROMETHEUS_BIND")
	overrideBool(&cfg.Bus.Embedded, "MURMUR_BUS_EMBEDDED")
	overrideInt(&cfg.Bus.Port, "MURMUR_BUS_PORT")
	overrideStringSlice(&cfg.Bus.Servers, "MURMUR_BUS_SERVERS")
	overrideString(&cfg.Bus.Username, "MURMUR_BUS_USERNAME")
	overrideString(&cfg.Bus.Password, "MURMUR_BUS_PASSWORD")
	overrideString(&cfg.Bus.Token, "MURMUR_BUS_TOKEN")
	overrideBool(&cfg.Bus.TLSInsecure, "MURMUR_BUS_TLS_INSECURE")
	overrideInt(&cfg.Bus.ConnectTimeout, "MURMUR_BUS_CONNECT_TIMEOUT_MS")
	overrideString(&cfg.Bus.StoreDir, "MURMUR_BUS_STORE_DIR")
	overrideString(&cfg.Speech.Provider, "MURMUR_SPEECH_PROVIDER")
	overrideString(&cfg.Speech.Whisper.Command, "MURMUR_SPEECH_WHISPER_COMMAND")
	overrideString(&cfg.Speech.Whisper.ModelPath, "MURMUR_SPEECH_WHISPER_MODEL_PATH")
	overrideString(&cfg.Speech.Whisper.FallbackLanguage, "MURMUR_SPEECH_WHISPER_FALLBACK_LANGUAGE")
	overrideString(&cfg.Speech.OpenAI.APIKey, "MURMUR_SPEECH_OPENAI_API_KEY")
	overrideString(&cfg.Speech.OpenAI.Endpoint, "MURMUR_SPEECH_OPENAI_ENDPOINT")
	overrideString(&cfg.Speech.OpenAI.Model, "MURMUR_SPEECH_OPENAI_MODEL")
	overrideInt(&cfg.Speech.OpenAI.TimeoutMS, "MURMUR_SPEECH_OPENAI_TIMEOUT_MS")
	overrideString(&cfg.Speech.Groq.APIKey, "MURMUR_SPEECH_GROQ_API_KEY")
	overrideString(&cfg.Speech.Groq.Endpoint, "MURMUR_SPEECH_GROQ_ENDPOINT")
	overrideString(&cfg.Speech.Groq.Model, "MURMUR_SPEECH_GROQ_MODEL")
	overrideInt(&cfg.Speech.Groq.TimeoutMS, "MURMUR_SPEECH_GROQ_TIMEOUT_MS")
	overrideString(&cfg.Prompt.Template, "MURMUR_PROMPT_TEMPLATE")
	overrideString(&cfg.Prompt.CustomText, "MURMUR_PROMPT_CUSTOM_TEXT")
	overrideString(&cfg.Prompt.OutputLanguage, "MURMUR_PROMPT_OUTPUT_LANGUAGE")
	overrideString(&cfg.Prompt.ActiveAppCommand, "MURMUR_PROMPT_ACTIVE_APP_COMMAND")
	overrideString(&cfg.Capture.Command, "MURMUR_CAPTURE_COMMAND")
	overrideString(&cfg.Capture.Device, "MURMUR_CAPTURE_DEVICE")
	overrideString(&cfg.Capture.Directory, "MURMUR_CAPTURE_DIRECTORY")
	overrideInt(&cfg.Capture.StopTimeoutMS, "MURMUR_CAPTURE_STOP_TIMEOUT_MS")
	overrideString(&cfg.History.Directory, "MURMUR_HISTORY_DIRECTORY")
	overrideInt(&cfg.History.MaxRecords, "MURMUR_HISTORY_MAX_RECORDS")
	overrideString(&cfg.History.Eviction, "MURMUR_HISTORY_EVICTION")
	overrideBool(&cfg.EventLog.Enabled, "MURMUR_EVENT_LOG_ENABLED")
	overrideString(&cfg.EventLog.Path, "MURMUR_EVENT_LOG_PATH")
	overrideInt(&cfg.EventLog.RetentionDays, "MURMUR_EVENT_LOG_RETENTION_DAYS")
	overrideInt(&cfg.EventLog.MaxSessions, "MURMUR_EVENT_LOG_MAX_SESSIONS")
	overrideInt(&cfg.Session.TranscribeTimeoutMS, "MURMUR_SESSION_TRANSCRIBE_TIMEOUT_MS")
}

func overrideString(target *string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok && strings.TrimSpace(value) != "" {
		*target = value
	}
}

func overrideInt(target *int, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			*target = parsed
		}
	}
}

func overrideBool(target *bool, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			*target = parsed
		}
	}
}

func overrideStringSlice(target *[]string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		parts := strings.Split(value, ",")
		var trimmed []string
		for _, p := range parts {
			if s := strings.TrimSpace(p); s != "" {
				trimmed = append(trimmed, s)
			}
		}
		if len(trimmed) > 0 {
			*target = trimmed
		}
	}
}

// validate rejects structurally broken configuration. API keys are not
// required here: a cloud provider without a key is reported when a session
// starts, so local-only setups load cleanly.
func validate(cfg Config) error {
	if cfg.RuntimeName == "" {
		return errors.New("runtime_name must not be empty")
	}
	if cfg.HTTP.Port <= 0 || cfg.HTTP.Port > 65535 {
		return errors.New("http.port must be between 1 and 65535")
	}
	if cfg.Bus.Embedded {
		if cfg.Bus.Port <= 0 || cfg.Bus.Port > 65535 {
			return errors.New("bus.port must be between 1 and 65535 when embedded mode is enabled")
		}
	} else {
		if len(cfg.Bus.Servers) == 0 {
			return errors.New("bus.servers must not be empty when embedded mode is disabled")
		}
	}
	if !speech.Provider(cfg.Speech.Provider).Valid() {
		return fmt.Errorf("speech.provider must be one of local|openai|groq, got %q", cfg.Speech.Provider)
	}
	if cfg.Speech.Whisper.Command == "" {
		return errors.New("speech.whisper.command must not be empty")
	}
	if cfg.Speech.Whisper.ModelPath == "" {
		return errors.New("speech.whisper.model_path must not be empty")
	}
	if !prompt.Template(cfg.Prompt.Template).Valid() {
		return fmt.Errorf("prompt.template %q is unknown", cfg.Prompt.Template)
	}
	if prompt.Template(cfg.Prompt.Template) == prompt.TemplateCustom && strings.TrimSpace(cfg.Prompt.CustomText) == "" {
		return errors.New("prompt.custom_text must be set when template=custom")
	}
	if !prompt.Language(cfg.Prompt.OutputLanguage).Valid() {
		return fmt.Errorf("prompt.output_language %q is unknown", cfg.Prompt.OutputLanguage)
	}
	if cfg.Capture.Command == "" {
		return errors.New("capture.command must not be empty")
	}
	if cfg.Capture.Directory == "" {
		return errors.New("capture.directory must not be empty")
	}
	if cfg.History.Directory == "" {
		return errors.New("history.directory must not be empty")
	}
	if cfg.History.MaxRecords <= 0 {
		return errors.New("history.max_records must be positive")
	}
	if !history.EvictionPolicy(cfg.History.Eviction).Valid() {
		return fmt.Errorf("history.eviction must be one of evict-oldest|evict-most-recent, got %q", cfg.History.Eviction)
	}
	if cfg.EventLog.Enabled && cfg.EventLog.Path == "" {
		return errors.New("event_log.path must not be empty when the event log is enabled")
	}
	if cfg.EventLog.RetentionDays < 0 {
		return errors.New("event_log.retention_days must be >= 0")
	}
	if cfg.Telemetry.PrometheusBind == "" {
		return errors.New("telemetry.prometheus_bind must not be empty")
	}
	if cfg.Session.TranscribeTimeoutMS <= 0 {
		return errors.New("session.transcribe_timeout_ms must be positive")
	}
	return nil
}
