package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"waterwatch/internal/domain"
	"waterwatch/internal/templatefmt"
	"waterwatch/internal/threshold"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

const (
	defaultServiceName         = "waterwatch"
	defaultDeviceID            = "default"
	defaultStaleAfterSeconds   = 120
	defaultHTTPListen          = ":8080"
	defaultHealthPath          = "/healthz"
	defaultReadyPath           = "/readyz"
	defaultStatusPath          = "/status"
	defaultReadingsPath        = "/readings"
	defaultMetricsPath         = "/metrics"
	defaultMaxBodyBytes        = 64 << 10
	defaultNATSURL             = "nats://127.0.0.1:4222"
	defaultNATSStateBucket     = "waterwatch_state"
	defaultNATSRelayBucket     = "waterwatch_relay"
	defaultMQTTConnectTimeout  = 10
	defaultNotifyRepeatSeconds = 300
	defaultNotificationID      = "water-quality-alert"
	defaultRelayNotificationID = "water-quality-relay"
	defaultTelegramAPIBase     = "https://api.telegram.org"
	defaultTelegramTemplate    = "<b>{{ .Title }}</b>\n{{ .Body }}"
	defaultTransportTimeoutSec = 10
	defaultNotifyQueueSize     = 64
	defaultNotifyQueueAttempts = 3
	defaultNotifyQueueBackoff  = 500
	defaultRelayTopic          = "water_quality_alerts"
	defaultRelayRetentionSec   = 3600
	defaultRelayStalenessSec   = 300
	defaultRelaySweepSec       = 600
	defaultCriticalLowFactor   = 0.8
	defaultCriticalHighFactor  = 1.2

	boundMin      = "min"
	boundMax      = "max"
	boundIdealMax = "ideal_max"

	// ServiceModeNATS keeps NATS-backed state, relay and ingest.
	ServiceModeNATS = "nats"
	// ServiceModeSingle keeps single-instance mode without NATS dependencies.
	ServiceModeSingle = "single"

	// EnvTelegramBotToken overrides notify.telegram.bot_token.
	EnvTelegramBotToken = "WATERWATCH_TELEGRAM_BOT_TOKEN"
	// EnvTelegramChatID overrides notify.telegram.chat_id.
	EnvTelegramChatID = "WATERWATCH_TELEGRAM_CHAT_ID"
	// EnvMQTTPassword overrides ingest.mqtt.password.
	EnvMQTTPassword = "WATERWATCH_MQTT_PASSWORD"
	// EnvNATSURL overrides nats.url with a comma-separated list.
	EnvNATSURL = "WATERWATCH_NATS_URL"
	// EnvDeviceID overrides service.device_id.
	EnvDeviceID = "WATERWATCH_DEVICE_ID"
)

// Config holds service runtime settings and threshold bands.
// Params: TOML sections from file or merged directory snapshot.
// Returns: validated runtime configuration.
type Config struct {
	Service    ServiceConfig         `toml:"service"`
	Log        LogConfig             `toml:"log"`
	HTTP       HTTPConfig            `toml:"http"`
	Ingest     IngestConfig          `toml:"ingest"`
	Notify     NotifyConfig          `toml:"notify"`
	Relay      RelayConfig           `toml:"relay"`
	State      StateConfig           `toml:"state"`
	NATS       NATSConfig            `toml:"nats"`
	Evaluation EvaluationConfig      `toml:"evaluation"`
	Threshold  map[string]BandConfig `toml:"threshold"`
}

// ServiceConfig contains process-level settings.
// Params: name, device identity, runtime mode and staleness window.
// Returns: service behavior defaults.
type ServiceConfig struct {
	Name          string `toml:"name"`
	DeviceID      string `toml:"device_id"`
	Mode          string `toml:"mode"`
	StaleAfterSec int    `toml:"stale_after_sec"`
}

// LogConfig contains console/file logging sinks.
// Params: sink settings for each output target.
// Returns: logger setup options.
type LogConfig struct {
	Console LogSinkConfig `toml:"console"`
	File    LogSinkConfig `toml:"file"`
}

// LogSinkConfig defines one logging sink.
// Params: sink enable flag, level, format, and path.
// Returns: sink-specific behavior.
type LogSinkConfig struct {
	Enabled bool   `toml:"enabled"`
	Level   string `toml:"level"`
	Format  string `toml:"format"`
	Path    string `toml:"path"`
}

// HTTPConfig configures the embedded HTTP server.
// Params: listen address and endpoint paths.
// Returns: HTTP server layout.
type HTTPConfig struct {
	Listen      string `toml:"listen"`
	HealthPath  string `toml:"health_path"`
	ReadyPath   string `toml:"ready_path"`
	StatusPath  string `toml:"status_path"`
	MetricsPath string `toml:"metrics_path"`
}

// IngestConfig defines reading feed interfaces.
// Params: HTTP push, NATS subject and MQTT topic subscriptions.
// Returns: ingestion runtime options.
type IngestConfig struct {
	HTTP HTTPIngestConfig `toml:"http"`
	NATS NATSIngestConfig `toml:"nats"`
	MQTT MQTTIngestConfig `toml:"mqtt"`
}

// HTTPIngestConfig configures POST reading endpoint.
// Params: enable flag, path, and body size limit.
// Returns: HTTP ingest behavior.
type HTTPIngestConfig struct {
	Enabled      bool   `toml:"enabled"`
	Path         string `toml:"path"`
	MaxBodyBytes int64  `toml:"max_body_bytes"`
}

// NATSIngestConfig configures core NATS subscription for readings.
// Params: enable flag and subject (defaults to waterwatch.readings.<device>).
// Returns: NATS ingest behavior.
type NATSIngestConfig struct {
	Enabled bool   `toml:"enabled"`
	Subject string `toml:"subject"`
}

// MQTTIngestConfig configures MQTT broker subscription for readings.
// Params: broker, credentials, topic, qos and client id.
// Returns: MQTT ingest behavior.
type MQTTIngestConfig struct {
	Enabled           bool   `toml:"enabled"`
	Broker            string `toml:"broker"`
	ClientID          string `toml:"client_id"`
	Topic             string `toml:"topic"`
	QoS               int    `toml:"qos"`
	Username          string `toml:"username"`
	Password          string `toml:"password"`
	ConnectTimeoutSec int    `toml:"connect_timeout_sec"`
}

// NotifyConfig defines outbound notification behavior.
// Params: repeat cadence, fixed notification ids and transport settings.
// Returns: notification controls.
type NotifyConfig struct {
	RepeatEverySec      int              `toml:"repeat_every_sec"`
	NotificationID      string           `toml:"notification_id"`
	RelayNotificationID string           `toml:"relay_notification_id"`
	Telegram            TelegramNotifier `toml:"telegram"`
	Webhook             WebhookNotifier  `toml:"webhook"`
	Queue               NotifyQueue      `toml:"queue"`
}

// NotifyQueue configures the in-process delivery outbox.
// Params: buffer size, attempts per job, and retry backoff.
// Returns: outbox worker settings.
type NotifyQueue struct {
	Size           int `toml:"size"`
	MaxAttempts    int `toml:"max_attempts"`
	RetryBackoffMS int `toml:"retry_backoff_ms"`
}

// TelegramNotifier configures Telegram transport.
// Params: bot credentials, target chat, API base and message template.
// Returns: Telegram sender settings.
type TelegramNotifier struct {
	Enabled    bool   `toml:"enabled"`
	BotToken   string `toml:"bot_token"`
	ChatID     string `toml:"chat_id"`
	APIBase    string `toml:"api_base"`
	Template   string `toml:"template"`
	TimeoutSec int    `toml:"timeout_sec"`
}

// WebhookNotifier configures generic HTTP transport.
// Params: endpoint URL, method, static headers and timeout.
// Returns: webhook sender settings.
type WebhookNotifier struct {
	Enabled    bool              `toml:"enabled"`
	URL        string            `toml:"url"`
	Method     string            `toml:"method"`
	Headers    map[string]string `toml:"headers"`
	TimeoutSec int               `toml:"timeout_sec"`
}

// RelayConfig configures cross-device relay channel.
// Params: enable flag, topic, retention, staleness and sweep cadence.
// Returns: relay behavior.
type RelayConfig struct {
	Enabled          bool   `toml:"enabled"`
	Topic            string `toml:"topic"`
	RetentionSec     int    `toml:"retention_sec"`
	StalenessSec     int    `toml:"staleness_sec"`
	SweepIntervalSec int    `toml:"sweep_interval_sec"`
}

// StateConfig configures durable notification state in single mode.
// Params: optional JSON file path; empty keeps state in memory.
// Returns: state backend selection.
type StateConfig struct {
	Path string `toml:"path"`
}

// NATSConfig contains connection and bucket settings for nats mode.
// Params: URL list and KV bucket names.
// Returns: NATS backend options.
type NATSConfig struct {
	URL         []string `toml:"url"`
	StateBucket string   `toml:"state_bucket"`
	RelayBucket string   `toml:"relay_bucket"`
}

// EvaluationConfig holds hysteresis margins.
// Params: critical cutoff factors applied to violated bounds.
// Returns: classifier settings.
type EvaluationConfig struct {
	CriticalLowFactor  float64 `toml:"critical_low_factor"`
	CriticalHighFactor float64 `toml:"critical_high_factor"`
}

// BandConfig describes one `[threshold.<parameter>]` table.
// Params: optional min, max and ideal_max bounds plus bounds to drop from the default band.
// Returns: raw overlay applied onto the built-in band.
type BandConfig struct {
	Min      *float64 `toml:"min"`
	Max      *float64 `toml:"max"`
	IdealMax *float64 `toml:"ideal_max"`
	Unset    []string `toml:"unset"`
}

// Band overlays configured bounds onto base; keys left out keep the base value.
// Params: built-in band for the parameter (zero band for unknown parameters).
// Returns: merged band or error for unknown/conflicting `unset` entries.
func (b BandConfig) Band(base threshold.Band) (threshold.Band, error) {
	out := base
	for _, raw := range b.Unset {
		name := strings.ToLower(strings.TrimSpace(raw))
		var set bool
		switch name {
		case boundMin:
			out.Min, set = domain.Absent(), b.Min != nil
		case boundMax:
			out.Max, set = domain.Absent(), b.Max != nil
		case boundIdealMax:
			out.IdealMax, set = domain.Absent(), b.IdealMax != nil
		default:
			return threshold.Band{}, fmt.Errorf("unset has unknown bound %q", raw)
		}
		if set {
			return threshold.Band{}, fmt.Errorf("bound %q is both set and unset", name)
		}
	}
	if b.Min != nil {
		out.Min = domain.Present(*b.Min)
	}
	if b.Max != nil {
		out.Max = domain.Present(*b.Max)
	}
	if b.IdealMax != nil {
		out.IdealMax = domain.Present(*b.IdealMax)
	}
	return out, nil
}

// overlay merges a later fragment's band table field by field.
func (b BandConfig) overlay(src BandConfig) BandConfig {
	if src.Min != nil {
		b.Min = src.Min
	}
	if src.Max != nil {
		b.Max = src.Max
	}
	if src.IdealMax != nil {
		b.IdealMax = src.IdealMax
	}
	if len(src.Unset) > 0 {
		b.Unset = append(append([]string(nil), b.Unset...), src.Unset...)
	}
	return b
}

// ConfigSource describes where configuration is loaded from.
// Params: exactly one of file path or directory path, plus optional env file.
// Returns: normalized source descriptor.
type ConfigSource struct {
	File    string
	Dir     string
	EnvFile string
}

// FromCLI builds normalized source configuration from input paths.
// Params: optional file, directory and env-file arguments.
// Returns: source descriptor or validation error.
func FromCLI(filePath, dirPath, envFile string) (ConfigSource, error) {
	filePath = strings.TrimSpace(filePath)
	dirPath = strings.TrimSpace(dirPath)
	envFile = strings.TrimSpace(envFile)

	if filePath == "" && dirPath == "" {
		return ConfigSource{}, errors.New("either --config-file or --config-dir must be provided")
	}
	if filePath != "" && dirPath != "" {
		return ConfigSource{}, errors.New("config source must be either file or dir")
	}

	if filePath != "" {
		return ConfigSource{File: filePath, EnvFile: envFile}, nil
	}
	return ConfigSource{Dir: dirPath, EnvFile: envFile}, nil
}

// LoadSnapshot loads, overrides from environment and validates configuration.
// Params: source selects file or directory mode and optional env file.
// Returns: validated config or load/validation error.
func LoadSnapshot(src ConfigSource) (Config, error) {
	var cfg Config
	var err error
	if src.File != "" {
		cfg, err = loadFile(src.File)
	} else {
		cfg, err = loadDir(src.Dir)
	}
	if err != nil {
		return Config{}, err
	}

	lookup, err := envLookup(src.EnvFile)
	if err != nil {
		return Config{}, err
	}
	ApplyEnv(&cfg, lookup)
	applyDefaults(&cfg)
	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// envLookup layers process environment over optional dotenv file values.
// Params: dotenv path (empty to use process environment only).
// Returns: lookup function or env-file read error.
func envLookup(envFile string) (func(string) (string, bool), error) {
	if envFile == "" {
		return os.LookupEnv, nil
	}
	fileValues, err := godotenv.Read(envFile)
	if err != nil {
		return nil, fmt.Errorf("read env file %q: %w", envFile, err)
	}
	return func(key string) (string, bool) {
		if value, ok := os.LookupEnv(key); ok {
			return value, true
		}
		value, ok := fileValues[key]
		return value, ok
	}, nil
}

// ApplyEnv overrides secrets and deployment identity from environment.
// Params: config pointer and env lookup function.
// Returns: overrides applied in place.
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) {
	if lookup == nil {
		return
	}
	if value, ok := lookup(EnvTelegramBotToken); ok && strings.TrimSpace(value) != "" {
		cfg.Notify.Telegram.BotToken = strings.TrimSpace(value)
	}
	if value, ok := lookup(EnvTelegramChatID); ok && strings.TrimSpace(value) != "" {
		cfg.Notify.Telegram.ChatID = strings.TrimSpace(value)
	}
	if value, ok := lookup(EnvMQTTPassword); ok && value != "" {
		cfg.Ingest.MQTT.Password = value
	}
	if value, ok := lookup(EnvNATSURL); ok && strings.TrimSpace(value) != "" {
		cfg.NATS.URL = normalizeNATSURLs(strings.Split(value, ","))
	}
	if value, ok := lookup(EnvDeviceID); ok && strings.TrimSpace(value) != "" {
		cfg.Service.DeviceID = strings.TrimSpace(value)
	}
}

// ThresholdTable builds validated threshold table from configured bands.
// Params: none.
// Returns: table where each configured key overrides only that bound of the default band.
func (c Config) ThresholdTable() (threshold.Table, error) {
	bands := threshold.DefaultBands()
	for name, cfg := range c.Threshold {
		param := domain.Parameter(strings.ToLower(strings.TrimSpace(name)))
		band, err := cfg.Band(bands[param])
		if err != nil {
			return threshold.Table{}, fmt.Errorf("threshold.%s: %w", name, err)
		}
		bands[param] = band
	}
	return threshold.NewTable(bands)
}

// configMergeHints carries explicit bool-presence markers used for directory overlays.
// Params: sparse fields decoded from one TOML fragment.
// Returns: merge behavior hints for zero-value bool overrides.
type configMergeHints struct {
	Ingest struct {
		HTTP enabledHint `toml:"http"`
		NATS enabledHint `toml:"nats"`
		MQTT enabledHint `toml:"mqtt"`
	} `toml:"ingest"`
	Notify struct {
		Telegram enabledHint `toml:"telegram"`
		Webhook  enabledHint `toml:"webhook"`
	} `toml:"notify"`
	Relay enabledHint `toml:"relay"`
}

// enabledHint tracks explicit enabled flag in one section.
type enabledHint struct {
	Enabled *bool `toml:"enabled"`
}

// loadFile reads one TOML configuration file.
// Params: file path to config snapshot.
// Returns: decoded config or read/decode error.
func loadFile(path string) (Config, error) {
	cfg, _, err := loadFileForMerge(path)
	return cfg, err
}

// loadFileForMerge reads one TOML file with merge hints.
// Params: file path to config fragment.
// Returns: decoded config plus explicit-bool hints for overlay merge.
func loadFileForMerge(path string) (Config, configMergeHints, error) {
	body, err := os.ReadFile(path)
	if err != nil {
		return Config{}, configMergeHints{}, fmt.Errorf("read config file %q: %w", path, err)
	}
	var cfg Config
	if err := toml.Unmarshal(body, &cfg); err != nil {
		return Config{}, configMergeHints{}, fmt.Errorf("decode config file %q: %w", path, err)
	}
	var hints configMergeHints
	if err := toml.Unmarshal(body, &hints); err != nil {
		return Config{}, configMergeHints{}, fmt.Errorf("decode merge hints %q: %w", path, err)
	}
	return cfg, hints, nil
}

// loadDir reads and merges TOML files from one directory.
// Params: directory containing config fragments.
// Returns: merged config snapshot or load/decode error.
func loadDir(dir string) (Config, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return Config{}, fmt.Errorf("read config dir %q: %w", dir, err)
	}

	files := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.ToLower(filepath.Ext(name)) != ".toml" {
			continue
		}
		files = append(files, filepath.Join(dir, name))
	}
	if len(files) == 0 {
		return Config{}, fmt.Errorf("no .toml files found in %q", dir)
	}
	sort.Strings(files)

	var merged Config
	for _, file := range files {
		fragment, hints, err := loadFileForMerge(file)
		if err != nil {
			return Config{}, err
		}
		mergeConfig(&merged, fragment, hints)
	}
	return merged, nil
}

// mergeConfig overlays source onto destination.
// Params: destination config, next fragment and its bool hints.
// Returns: merged configuration side-effect in dst.
func mergeConfig(dst *Config, src Config, hints configMergeHints) {
	if src.Service != (ServiceConfig{}) {
		dst.Service = src.Service
	}
	if src.Log != (LogConfig{}) {
		dst.Log = src.Log
	}
	if src.HTTP != (HTTPConfig{}) {
		dst.HTTP = src.HTTP
	}
	if src.Ingest.HTTP != (HTTPIngestConfig{}) || hints.Ingest.HTTP.Enabled != nil {
		dst.Ingest.HTTP = src.Ingest.HTTP
	}
	if src.Ingest.NATS != (NATSIngestConfig{}) || hints.Ingest.NATS.Enabled != nil {
		dst.Ingest.NATS = src.Ingest.NATS
	}
	if src.Ingest.MQTT != (MQTTIngestConfig{}) || hints.Ingest.MQTT.Enabled != nil {
		dst.Ingest.MQTT = src.Ingest.MQTT
	}
	if src.Notify.RepeatEverySec != 0 {
		dst.Notify.RepeatEverySec = src.Notify.RepeatEverySec
	}
	if src.Notify.NotificationID != "" {
		dst.Notify.NotificationID = src.Notify.NotificationID
	}
	if src.Notify.RelayNotificationID != "" {
		dst.Notify.RelayNotificationID = src.Notify.RelayNotificationID
	}
	if src.Notify.Telegram != (TelegramNotifier{}) || hints.Notify.Telegram.Enabled != nil {
		dst.Notify.Telegram = src.Notify.Telegram
	}
	if hasWebhookConfig(src.Notify.Webhook) || hints.Notify.Webhook.Enabled != nil {
		dst.Notify.Webhook = src.Notify.Webhook
	}
	if src.Notify.Queue != (NotifyQueue{}) {
		dst.Notify.Queue = src.Notify.Queue
	}
	if src.Relay != (RelayConfig{}) || hints.Relay.Enabled != nil {
		dst.Relay = src.Relay
	}
	if src.State != (StateConfig{}) {
		dst.State = src.State
	}
	if len(src.NATS.URL) > 0 || src.NATS.StateBucket != "" || src.NATS.RelayBucket != "" {
		dst.NATS = src.NATS
	}
	if src.Evaluation != (EvaluationConfig{}) {
		dst.Evaluation = src.Evaluation
	}
	for name, band := range src.Threshold {
		if dst.Threshold == nil {
			dst.Threshold = make(map[string]BandConfig, len(src.Threshold))
		}
		dst.Threshold[name] = dst.Threshold[name].overlay(band)
	}
}

// hasWebhookConfig reports whether webhook fragment sets any field.
func hasWebhookConfig(cfg WebhookNotifier) bool {
	return cfg.Enabled || cfg.URL != "" || cfg.Method != "" || len(cfg.Headers) > 0 || cfg.TimeoutSec != 0
}

// applyDefaults fills omitted settings.
// Params: config pointer.
// Returns: defaults applied in place.
func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.Service.Name) == "" {
		cfg.Service.Name = defaultServiceName
	}
	if strings.TrimSpace(cfg.Service.DeviceID) == "" {
		cfg.Service.DeviceID = defaultDeviceID
	}
	cfg.Service.Mode = NormalizeServiceMode(cfg.Service.Mode)
	if cfg.Service.StaleAfterSec <= 0 {
		cfg.Service.StaleAfterSec = defaultStaleAfterSeconds
	}

	if cfg.Log.Console.Level == "" {
		cfg.Log.Console.Level = "info"
	}
	if cfg.Log.Console.Format == "" {
		cfg.Log.Console.Format = "line"
	}
	if cfg.Log.File.Level == "" {
		cfg.Log.File.Level = "info"
	}
	if cfg.Log.File.Format == "" {
		cfg.Log.File.Format = "json"
	}
	if !cfg.Log.Console.Enabled && !cfg.Log.File.Enabled {
		cfg.Log.Console.Enabled = true
	}

	if strings.TrimSpace(cfg.HTTP.Listen) == "" {
		cfg.HTTP.Listen = defaultHTTPListen
	}
	if strings.TrimSpace(cfg.HTTP.HealthPath) == "" {
		cfg.HTTP.HealthPath = defaultHealthPath
	}
	if strings.TrimSpace(cfg.HTTP.ReadyPath) == "" {
		cfg.HTTP.ReadyPath = defaultReadyPath
	}
	if strings.TrimSpace(cfg.HTTP.StatusPath) == "" {
		cfg.HTTP.StatusPath = defaultStatusPath
	}
	if strings.TrimSpace(cfg.HTTP.MetricsPath) == "" {
		cfg.HTTP.MetricsPath = defaultMetricsPath
	}

	if strings.TrimSpace(cfg.Ingest.HTTP.Path) == "" {
		cfg.Ingest.HTTP.Path = defaultReadingsPath
	}
	if cfg.Ingest.HTTP.MaxBodyBytes <= 0 {
		cfg.Ingest.HTTP.MaxBodyBytes = defaultMaxBodyBytes
	}
	if strings.TrimSpace(cfg.Ingest.NATS.Subject) == "" {
		cfg.Ingest.NATS.Subject = "waterwatch.readings." + cfg.Service.DeviceID
	}
	if strings.TrimSpace(cfg.Ingest.MQTT.Topic) == "" {
		cfg.Ingest.MQTT.Topic = "waterwatch/" + cfg.Service.DeviceID + "/readings"
	}
	if strings.TrimSpace(cfg.Ingest.MQTT.ClientID) == "" {
		cfg.Ingest.MQTT.ClientID = cfg.Service.Name + "-" + cfg.Service.DeviceID
	}
	if cfg.Ingest.MQTT.ConnectTimeoutSec <= 0 {
		cfg.Ingest.MQTT.ConnectTimeoutSec = defaultMQTTConnectTimeout
	}
	if cfg.Service.Mode == ServiceModeSingle {
		// Single mode never dials NATS regardless of user flags.
		cfg.Ingest.NATS.Enabled = false
	}
	if !cfg.Ingest.HTTP.Enabled && !cfg.Ingest.NATS.Enabled && !cfg.Ingest.MQTT.Enabled {
		cfg.Ingest.HTTP.Enabled = true
	}

	cfg.NATS.URL = normalizeNATSURLs(cfg.NATS.URL)
	if len(cfg.NATS.URL) == 0 {
		cfg.NATS.URL = []string{defaultNATSURL}
	}
	if strings.TrimSpace(cfg.NATS.StateBucket) == "" {
		cfg.NATS.StateBucket = defaultNATSStateBucket
	}
	if strings.TrimSpace(cfg.NATS.RelayBucket) == "" {
		cfg.NATS.RelayBucket = defaultNATSRelayBucket
	}

	if cfg.Notify.RepeatEverySec <= 0 {
		cfg.Notify.RepeatEverySec = defaultNotifyRepeatSeconds
	}
	if strings.TrimSpace(cfg.Notify.NotificationID) == "" {
		cfg.Notify.NotificationID = defaultNotificationID
	}
	if strings.TrimSpace(cfg.Notify.RelayNotificationID) == "" {
		cfg.Notify.RelayNotificationID = defaultRelayNotificationID
	}
	if cfg.Notify.Telegram.APIBase == "" {
		cfg.Notify.Telegram.APIBase = defaultTelegramAPIBase
	}
	if strings.TrimSpace(cfg.Notify.Telegram.Template) == "" {
		cfg.Notify.Telegram.Template = defaultTelegramTemplate
	}
	if cfg.Notify.Telegram.TimeoutSec <= 0 {
		cfg.Notify.Telegram.TimeoutSec = defaultTransportTimeoutSec
	}
	if cfg.Notify.Webhook.Method == "" {
		cfg.Notify.Webhook.Method = "POST"
	}
	cfg.Notify.Webhook.Method = strings.ToUpper(cfg.Notify.Webhook.Method)
	if cfg.Notify.Webhook.TimeoutSec <= 0 {
		cfg.Notify.Webhook.TimeoutSec = defaultTransportTimeoutSec
	}
	if cfg.Notify.Queue.Size <= 0 {
		cfg.Notify.Queue.Size = defaultNotifyQueueSize
	}
	if cfg.Notify.Queue.MaxAttempts <= 0 {
		cfg.Notify.Queue.MaxAttempts = defaultNotifyQueueAttempts
	}
	if cfg.Notify.Queue.RetryBackoffMS <= 0 {
		cfg.Notify.Queue.RetryBackoffMS = defaultNotifyQueueBackoff
	}

	if strings.TrimSpace(cfg.Relay.Topic) == "" {
		cfg.Relay.Topic = defaultRelayTopic
	}
	if cfg.Relay.RetentionSec <= 0 {
		cfg.Relay.RetentionSec = defaultRelayRetentionSec
	}
	if cfg.Relay.StalenessSec <= 0 {
		cfg.Relay.StalenessSec = defaultRelayStalenessSec
	}
	if cfg.Relay.SweepIntervalSec <= 0 {
		cfg.Relay.SweepIntervalSec = defaultRelaySweepSec
	}

	if cfg.Evaluation.CriticalLowFactor == 0 {
		cfg.Evaluation.CriticalLowFactor = defaultCriticalLowFactor
	}
	if cfg.Evaluation.CriticalHighFactor == 0 {
		cfg.Evaluation.CriticalHighFactor = defaultCriticalHighFactor
	}
}

// validateConfig checks cross-field constraints after defaults.
// Params: config snapshot.
// Returns: first validation error.
func validateConfig(cfg Config) error {
	if !IsSupportedServiceMode(cfg.Service.Mode) {
		return fmt.Errorf("service.mode has unsupported value %q", cfg.Service.Mode)
	}
	if strings.ContainsAny(cfg.Service.DeviceID, " .*>/") {
		return fmt.Errorf("service.device_id %q must not contain spaces, dots, slashes or wildcards", cfg.Service.DeviceID)
	}
	if err := validateLogSink("log.console", cfg.Log.Console, false); err != nil {
		return err
	}
	if err := validateLogSink("log.file", cfg.Log.File, true); err != nil {
		return err
	}
	for name, path := range map[string]string{
		"http.health_path":  cfg.HTTP.HealthPath,
		"http.ready_path":   cfg.HTTP.ReadyPath,
		"http.status_path":  cfg.HTTP.StatusPath,
		"http.metrics_path": cfg.HTTP.MetricsPath,
		"ingest.http.path":  cfg.Ingest.HTTP.Path,
	} {
		if !strings.HasPrefix(path, "/") {
			return fmt.Errorf("%s must start with /", name)
		}
	}

	if cfg.Ingest.MQTT.Enabled {
		if strings.TrimSpace(cfg.Ingest.MQTT.Broker) == "" {
			return errors.New("ingest.mqtt.broker is required when ingest.mqtt.enabled=true")
		}
		if cfg.Ingest.MQTT.QoS < 0 || cfg.Ingest.MQTT.QoS > 2 {
			return errors.New("ingest.mqtt.qos must be 0, 1 or 2")
		}
	}
	if cfg.Service.Mode == ServiceModeNATS {
		for i, url := range cfg.NATS.URL {
			if url == "" {
				return fmt.Errorf("nats.url[%d] is empty", i)
			}
		}
	}

	if cfg.Notify.Telegram.Enabled {
		if strings.TrimSpace(cfg.Notify.Telegram.BotToken) == "" {
			return errors.New("notify.telegram.bot_token is required when telegram is enabled")
		}
		if strings.TrimSpace(cfg.Notify.Telegram.ChatID) == "" {
			return errors.New("notify.telegram.chat_id is required when telegram is enabled")
		}
		if err := validateMessageTemplate("notify.telegram.template", cfg.Notify.Telegram.Template); err != nil {
			return err
		}
	}
	if cfg.Notify.Webhook.Enabled && strings.TrimSpace(cfg.Notify.Webhook.URL) == "" {
		return errors.New("notify.webhook.url is required when webhook is enabled")
	}
	if cfg.Notify.NotificationID == cfg.Notify.RelayNotificationID {
		return errors.New("notify.relay_notification_id must differ from notify.notification_id")
	}

	if cfg.Relay.StalenessSec > cfg.Relay.RetentionSec {
		return errors.New("relay.staleness_sec must not exceed relay.retention_sec")
	}

	if cfg.Evaluation.CriticalLowFactor <= 0 || cfg.Evaluation.CriticalLowFactor > 1 {
		return errors.New("evaluation.critical_low_factor must be in (0, 1]")
	}
	if cfg.Evaluation.CriticalHighFactor < 1 {
		return errors.New("evaluation.critical_high_factor must be >= 1")
	}

	if _, err := cfg.ThresholdTable(); err != nil {
		return fmt.Errorf("threshold: %w", err)
	}
	return nil
}

// normalizeNATSURLs trims spaces around each configured NATS URL.
// Params: raw URL list from config.
// Returns: normalized URL list preserving element count for validation.
func normalizeNATSURLs(urls []string) []string {
	if len(urls) == 0 {
		return nil
	}
	out := make([]string, len(urls))
	for i := range urls {
		out[i] = strings.TrimSpace(urls[i])
	}
	return out
}

// NormalizeServiceMode canonicalizes service mode and applies default.
// Params: raw mode value from config.
// Returns: normalized mode (`single` by default).
func NormalizeServiceMode(value string) string {
	normalized := strings.ToLower(strings.TrimSpace(value))
	if normalized == "" {
		return ServiceModeSingle
	}
	return normalized
}

// IsSupportedServiceMode reports whether mode value is supported.
// Params: mode value.
// Returns: true for known modes.
func IsSupportedServiceMode(mode string) bool {
	switch NormalizeServiceMode(mode) {
	case ServiceModeNATS, ServiceModeSingle:
		return true
	default:
		return false
	}
}

// validateMessageTemplate validates one notification template.
// Params: field path and template body.
// Returns: parse/empty error.
func validateMessageTemplate(path, body string) error {
	trimmed := strings.TrimSpace(body)
	if trimmed == "" {
		return fmt.Errorf("%s is required", path)
	}
	if _, err := templatefmt.ParseNotificationTemplate(path, trimmed); err != nil {
		return fmt.Errorf("%s is invalid: %w", path, err)
	}
	return nil
}

// validateLogSink validates one log sink configuration.
// Params: sink name, sink values, and whether path is required.
// Returns: sink validation error.
func validateLogSink(name string, sink LogSinkConfig, requirePath bool) error {
	if !sink.Enabled {
		return nil
	}

	switch strings.ToLower(strings.TrimSpace(sink.Level)) {
	case "debug", "info", "warn", "error", "panic":
	default:
		return fmt.Errorf("%s.level has unsupported value %q", name, sink.Level)
	}

	switch strings.ToLower(strings.TrimSpace(sink.Format)) {
	case "line", "json":
	default:
		return fmt.Errorf("%s.format has unsupported value %q", name, sink.Format)
	}

	if requirePath && strings.TrimSpace(sink.Path) == "" {
		return fmt.Errorf("%s.path is required", name)
	}

	return nil
}
