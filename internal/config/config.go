package config

import (
	"fmt"
	"strings"
	"time"
)

type Config struct {
	Server   ServerConfig
	LLM      LLMConfig
	Gateway  GatewayConfig
	Storage  StorageConfig
	Schedule ScheduleConfig
	Engage   EngageConfig
	Diary    DiaryConfig
	Log      LogConfig
}

type ServerConfig struct {
	Port      int
	MCPPort   int
	AuthToken string
}

type LLMConfig struct {
	BaseURL string
	APIKey  string
	Model   string
}

type GatewayConfig struct {
	BaseURL string
	Token   string
	SelfID  string
}

type StorageConfig struct {
	DataDir        string
	PlanningDBPath string
}

type ScheduleConfig struct {
	CheckIntervalMinutes  int
	PostCooldownMinutes   int
	BrowseCooldownMinutes int
	DiaryTime             string // "HH:MM", empty disables
}

type EngageConfig struct {
	SilentHours         string // "HH:MM-HH:MM,..."
	LikeDuringSilent    bool
	CommentDuringSilent bool
	LikeProbability     float64
	CommentProbability  float64
	FetchCount          int
	HandledCapacity     int
	RepliedCapacity     int
	ReadListMode        string // "whitelist" or "blacklist"
	ReadList            string // comma-separated QQ ids
	AutoReply           bool
	Topics              string // comma-separated post topics
	PacingMinSeconds    int
	PacingMaxSeconds    int
}

type DiaryConfig struct {
	Words      int
	MinSources int
	Publish    bool
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:    4200,
			MCPPort: 4201,
		},
		LLM: LLMConfig{
			BaseURL: "http://localhost:11434/v1",
			Model:   "qwen2.5",
		},
		Gateway: GatewayConfig{
			BaseURL: "http://localhost:3000",
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Schedule: ScheduleConfig{
			CheckIntervalMinutes:  5,
			PostCooldownMinutes:   120,
			BrowseCooldownMinutes: 40,
			DiaryTime:             "23:00",
		},
		Engage: EngageConfig{
			LikeProbability:    0.5,
			CommentProbability: 0.3,
			FetchCount:         20,
			HandledCapacity:    100,
			RepliedCapacity:    100,
			ReadListMode:       "blacklist",
			AutoReply:          true,
			PacingMinSeconds:   1,
			PacingMaxSeconds:   4,
		},
		Diary: DiaryConfig{
			Words: 300,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// CheckInterval returns the scheduler cadence as a duration.
func (c ScheduleConfig) CheckInterval() time.Duration {
	return time.Duration(c.CheckIntervalMinutes) * time.Minute
}

// PostCooldown returns the post cooldown as a duration.
func (c ScheduleConfig) PostCooldown() time.Duration {
	return time.Duration(c.PostCooldownMinutes) * time.Minute
}

// BrowseCooldown returns the browse cooldown as a duration.
func (c ScheduleConfig) BrowseCooldown() time.Duration {
	return time.Duration(c.BrowseCooldownMinutes) * time.Minute
}

// Owners splits the read list into individual ids.
func (c EngageConfig) Owners() []string {
	return splitList(c.ReadList)
}

// TopicList splits the topic pool into individual topics.
func (c EngageConfig) TopicList() []string {
	return splitList(c.Topics)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Load reads configuration from the platform-native backend, environment
// variables, and platform secret store.
//
// On macOS the backend is UserDefaults (domain: com.maizone.app) and secrets
// fall back to macOS Keychain. On Linux the backend is a JSON file at
// $XDG_CONFIG_HOME/maizone/config.json and secrets come from a secrets file
// under $XDG_DATA_HOME/maizone.
//
// Environment variables (MAIZONE_*) override backend values on all platforms.
func Load() (Config, error) {
	return loadWith(newPlatformBackend(), keychainReader{})
}

// keychain abstracts secret-store access for testing.
type keychain interface {
	Get(service, account string) (string, error)
}

func loadWith(b ConfigBackend, kc keychain) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	// Try the platform secret store for secrets still empty.
	if cfg.Gateway.Token == "" {
		if v, err := kc.Get("maizone", "gateway_token"); err == nil && v != "" {
			cfg.Gateway.Token = v
		}
	}
	if cfg.LLM.APIKey == "" {
		if v, err := kc.Get("maizone", "llm_api_key"); err == nil && v != "" {
			cfg.LLM.APIKey = v
		}
	}

	if cfg.Gateway.SelfID == "" {
		msg := "missing required config: own QQ id. " +
			"Set it via `maizone config set gateway.self_id <qq>` " +
			"or environment variable MAIZONE_GATEWAY_SELF_ID"
		return Config{}, fmt.Errorf("%s", msg)
	}

	return cfg, nil
}

// keychainReader reads from the platform secret store.
type keychainReader struct{}

func (keychainReader) Get(service, account string) (string, error) {
	out, err := keychainExec(service, account)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}
