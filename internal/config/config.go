package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"pulsescan-go/internal/processing"
)

// AppConfig is the daemon configuration. Defaults are overlaid by an
// optional YAML file and then by command-line flags. Broker credentials
// come only from the environment so they stay out of config files.
type AppConfig struct {
	Port            int     `yaml:"port"`
	Endpoint        string  `yaml:"endpoint"`
	Mode            string  `yaml:"mode"`
	LowCut          float64 `yaml:"low_cut_hz"`
	HighCut         float64 `yaml:"high_cut_hz"`
	WindowSize      int     `yaml:"window_size"`
	WaveformSeconds float64 `yaml:"waveform_seconds"`
	Filter          string  `yaml:"filter"`
	OutputDir       string  `yaml:"output_dir"`
	RawLogEnabled   bool    `yaml:"raw_log"`
	RawLogDir       string  `yaml:"raw_log_dir"`
	ModelPath       string  `yaml:"model_path"`
	TrackerURL      string  `yaml:"tracker_url"`
	TrackerPollMs   int     `yaml:"tracker_poll_ms"`
	MQTTBroker      string  `yaml:"mqtt_broker"`
	MQTTPrefix      string  `yaml:"mqtt_prefix"`
	NATSURL         string  `yaml:"nats_url"`
	NATSSubject     string  `yaml:"nats_subject"`
	FeedRateMs      int     `yaml:"feed_rate_ms"`
	IngestLogEvery  int     `yaml:"ingest_log_every"`
	IngestFallback  bool    `yaml:"ingest_fallback"`
	Debug           bool    `yaml:"debug"`
	DebugPulseRate  float64 `yaml:"debug_pulse_rate"`
	DebugJitter     float64 `yaml:"debug_jitter"`
	DebugSessionSec float64 `yaml:"debug_session_sec"`

	MQTTUsername string `yaml:"-"`
	MQTTPassword string `yaml:"-"`
}

func Default() AppConfig {
	eng := processing.DefaultConfig()
	return AppConfig{
		Port:            8888,
		Endpoint:        "tcp://localhost:5550",
		Mode:            "live",
		LowCut:          eng.LowCut,
		HighCut:         eng.HighCut,
		WindowSize:      eng.WindowSize,
		WaveformSeconds: eng.WaveformSeconds,
		Filter:          eng.Filter,
		OutputDir:       "output",
		RawLogDir:       "rawlog",
		TrackerPollMs:   1000,
		MQTTPrefix:      "pulsescan",
		NATSSubject:     "pulsescan.af.score",
		FeedRateMs:      250,
		IngestLogEvery:  100,
		IngestFallback:  true,
		DebugPulseRate:  72,
		DebugJitter:     0.03,
		DebugSessionSec: 45,
	}
}

// Load returns the defaults overlaid with the YAML file at path and the
// environment. An empty path skips the file.
func Load(path string) (AppConfig, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	}
	applyEnv(&cfg)
	if err := Validate(&cfg); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// applyEnv pulls credentials and broker overrides from the environment,
// reading a .env file first when one exists.
func applyEnv(cfg *AppConfig) {
	_ = godotenv.Load()
	cfg.MQTTUsername = getEnv("MQTT_USERNAME", cfg.MQTTUsername)
	cfg.MQTTPassword = getEnv("MQTT_PASSWORD", cfg.MQTTPassword)
	cfg.MQTTBroker = getEnv("MQTT_BROKER", cfg.MQTTBroker)
	cfg.NATSURL = getEnv("NATS_URL", cfg.NATSURL)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func Validate(cfg *AppConfig) error {
	if cfg.Port < 1 || cfg.Port > 65535 {
		return fmt.Errorf("port %d out of range", cfg.Port)
	}
	if cfg.Mode != "live" && cfg.Mode != "measurement" {
		return fmt.Errorf("unknown mode %q", cfg.Mode)
	}
	if cfg.LowCut <= 0 || cfg.HighCut <= cfg.LowCut {
		return fmt.Errorf("passband [%v, %v] Hz is not usable", cfg.LowCut, cfg.HighCut)
	}
	if cfg.WindowSize < 2 {
		return fmt.Errorf("window size %d too small", cfg.WindowSize)
	}
	if cfg.Filter != processing.FilterFFT && cfg.Filter != processing.FilterIIR {
		return fmt.Errorf("unknown filter %q", cfg.Filter)
	}
	return nil
}

// Engine maps the app configuration onto the processing knobs.
func (c AppConfig) Engine() processing.Config {
	return processing.Config{
		LowCut:          c.LowCut,
		HighCut:         c.HighCut,
		WindowSize:      c.WindowSize,
		WaveformSeconds: c.WaveformSeconds,
		Filter:          c.Filter,
	}
}
