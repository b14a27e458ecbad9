package config

import (
	"fmt"
	"os"
	"strconv"
)

type keyType int

const (
	kString keyType = iota
	kInt
	kBool
	kFloat
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	secret  bool
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "server.port", typ: kInt, env: "MAIZONE_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "server.mcp_port", typ: kInt, env: "MAIZONE_SERVER_MCP_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.MCPPort = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.MCPPort },
	},
	{
		key: "server.auth_token", typ: kString, env: "MAIZONE_SERVER_AUTH_TOKEN",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Server.AuthToken = v.(string) },
		extract: func(cfg Config) any { return cfg.Server.AuthToken },
	},
	{
		key: "llm.base_url", typ: kString, env: "MAIZONE_LLM_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.LLM.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.LLM.BaseURL },
	},
	{
		key: "llm.api_key", typ: kString, env: "MAIZONE_LLM_API_KEY",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.LLM.APIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.LLM.APIKey },
	},
	{
		key: "llm.model", typ: kString, env: "MAIZONE_LLM_MODEL",
		apply:   func(cfg *Config, v any) { cfg.LLM.Model = v.(string) },
		extract: func(cfg Config) any { return cfg.LLM.Model },
	},
	{
		key: "gateway.base_url", typ: kString, env: "MAIZONE_GATEWAY_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Gateway.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Gateway.BaseURL },
	},
	{
		key: "gateway.token", typ: kString, env: "MAIZONE_GATEWAY_TOKEN",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Gateway.Token = v.(string) },
		extract: func(cfg Config) any { return cfg.Gateway.Token },
	},
	{
		key: "gateway.self_id", typ: kString, env: "MAIZONE_GATEWAY_SELF_ID",
		apply:   func(cfg *Config, v any) { cfg.Gateway.SelfID = v.(string) },
		extract: func(cfg Config) any { return cfg.Gateway.SelfID },
	},
	{
		key: "storage.data_dir", typ: kString, env: "MAIZONE_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "storage.planning_db", typ: kString, env: "MAIZONE_STORAGE_PLANNING_DB",
		apply:   func(cfg *Config, v any) { cfg.Storage.PlanningDBPath = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.PlanningDBPath },
	},
	{
		key: "schedule.check_interval_minutes", typ: kInt, env: "MAIZONE_SCHEDULE_CHECK_INTERVAL_MINUTES",
		apply:   func(cfg *Config, v any) { cfg.Schedule.CheckIntervalMinutes = v.(int) },
		extract: func(cfg Config) any { return cfg.Schedule.CheckIntervalMinutes },
	},
	{
		key: "schedule.post_cooldown_minutes", typ: kInt, env: "MAIZONE_SCHEDULE_POST_COOLDOWN_MINUTES",
		apply:   func(cfg *Config, v any) { cfg.Schedule.PostCooldownMinutes = v.(int) },
		extract: func(cfg Config) any { return cfg.Schedule.PostCooldownMinutes },
	},
	{
		key: "schedule.browse_cooldown_minutes", typ: kInt, env: "MAIZONE_SCHEDULE_BROWSE_COOLDOWN_MINUTES",
		apply:   func(cfg *Config, v any) { cfg.Schedule.BrowseCooldownMinutes = v.(int) },
		extract: func(cfg Config) any { return cfg.Schedule.BrowseCooldownMinutes },
	},
	{
		key: "schedule.diary_time", typ: kString, env: "MAIZONE_SCHEDULE_DIARY_TIME",
		apply:   func(cfg *Config, v any) { cfg.Schedule.DiaryTime = v.(string) },
		extract: func(cfg Config) any { return cfg.Schedule.DiaryTime },
	},
	{
		key: "engage.silent_hours", typ: kString, env: "MAIZONE_ENGAGE_SILENT_HOURS",
		apply:   func(cfg *Config, v any) { cfg.Engage.SilentHours = v.(string) },
		extract: func(cfg Config) any { return cfg.Engage.SilentHours },
	},
	{
		key: "engage.like_during_silent", typ: kBool, env: "MAIZONE_ENGAGE_LIKE_DURING_SILENT",
		apply:   func(cfg *Config, v any) { cfg.Engage.LikeDuringSilent = v.(bool) },
		extract: func(cfg Config) any { return cfg.Engage.LikeDuringSilent },
	},
	{
		key: "engage.comment_during_silent", typ: kBool, env: "MAIZONE_ENGAGE_COMMENT_DURING_SILENT",
		apply:   func(cfg *Config, v any) { cfg.Engage.CommentDuringSilent = v.(bool) },
		extract: func(cfg Config) any { return cfg.Engage.CommentDuringSilent },
	},
	{
		key: "engage.like_probability", typ: kFloat, env: "MAIZONE_ENGAGE_LIKE_PROBABILITY",
		apply:   func(cfg *Config, v any) { cfg.Engage.LikeProbability = v.(float64) },
		extract: func(cfg Config) any { return cfg.Engage.LikeProbability },
	},
	{
		key: "engage.comment_probability", typ: kFloat, env: "MAIZONE_ENGAGE_COMMENT_PROBABILITY",
		apply:   func(cfg *Config, v any) { cfg.Engage.CommentProbability = v.(float64) },
		extract: func(cfg Config) any { return cfg.Engage.CommentProbability },
	},
	{
		key: "engage.fetch_count", typ: kInt, env: "MAIZONE_ENGAGE_FETCH_COUNT",
		apply:   func(cfg *Config, v any) { cfg.Engage.FetchCount = v.(int) },
		extract: func(cfg Config) any { return cfg.Engage.FetchCount },
	},
	{
		key: "engage.handled_capacity", typ: kInt, env: "MAIZONE_ENGAGE_HANDLED_CAPACITY",
		apply:   func(cfg *Config, v any) { cfg.Engage.HandledCapacity = v.(int) },
		extract: func(cfg Config) any { return cfg.Engage.HandledCapacity },
	},
	{
		key: "engage.replied_capacity", typ: kInt, env: "MAIZONE_ENGAGE_REPLIED_CAPACITY",
		apply:   func(cfg *Config, v any) { cfg.Engage.RepliedCapacity = v.(int) },
		extract: func(cfg Config) any { return cfg.Engage.RepliedCapacity },
	},
	{
		key: "engage.read_list_mode", typ: kString, env: "MAIZONE_ENGAGE_READ_LIST_MODE",
		apply:   func(cfg *Config, v any) { cfg.Engage.ReadListMode = v.(string) },
		extract: func(cfg Config) any { return cfg.Engage.ReadListMode },
	},
	{
		key: "engage.read_list", typ: kString, env: "MAIZONE_ENGAGE_READ_LIST",
		apply:   func(cfg *Config, v any) { cfg.Engage.ReadList = v.(string) },
		extract: func(cfg Config) any { return cfg.Engage.ReadList },
	},
	{
		key: "engage.auto_reply", typ: kBool, env: "MAIZONE_ENGAGE_AUTO_REPLY",
		apply:   func(cfg *Config, v any) { cfg.Engage.AutoReply = v.(bool) },
		extract: func(cfg Config) any { return cfg.Engage.AutoReply },
	},
	{
		key: "engage.topics", typ: kString, env: "MAIZONE_ENGAGE_TOPICS",
		apply:   func(cfg *Config, v any) { cfg.Engage.Topics = v.(string) },
		extract: func(cfg Config) any { return cfg.Engage.Topics },
	},
	{
		key: "engage.pacing_min_seconds", typ: kInt, env: "MAIZONE_ENGAGE_PACING_MIN_SECONDS",
		apply:   func(cfg *Config, v any) { cfg.Engage.PacingMinSeconds = v.(int) },
		extract: func(cfg Config) any { return cfg.Engage.PacingMinSeconds },
	},
	{
		key: "engage.pacing_max_seconds", typ: kInt, env: "MAIZONE_ENGAGE_PACING_MAX_SECONDS",
		apply:   func(cfg *Config, v any) { cfg.Engage.PacingMaxSeconds = v.(int) },
		extract: func(cfg Config) any { return cfg.Engage.PacingMaxSeconds },
	},
	{
		key: "diary.words", typ: kInt, env: "MAIZONE_DIARY_WORDS",
		apply:   func(cfg *Config, v any) { cfg.Diary.Words = v.(int) },
		extract: func(cfg Config) any { return cfg.Diary.Words },
	},
	{
		key: "diary.min_sources", typ: kInt, env: "MAIZONE_DIARY_MIN_SOURCES",
		apply:   func(cfg *Config, v any) { cfg.Diary.MinSources = v.(int) },
		extract: func(cfg Config) any { return cfg.Diary.MinSources },
	},
	{
		key: "diary.publish", typ: kBool, env: "MAIZONE_DIARY_PUBLISH",
		apply:   func(cfg *Config, v any) { cfg.Diary.Publish = v.(bool) },
		extract: func(cfg Config) any { return cfg.Diary.Publish },
	},
	{
		key: "log.level", typ: kString, env: "MAIZONE_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
}

func applyBackend(cfg *Config, b ConfigBackend) error {
	for _, s := range specs {
		if s.secret {
			continue
		}
		switch s.typ {
		case kString:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kInt:
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kBool:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok && v != "" {
				if bv, err := strconv.ParseBool(v); err == nil {
					s.apply(cfg, bv)
				} else {
					fmt.Fprintf(os.Stderr, "[WARN] could not parse bool from config key %s=%q: %v. Using default value.\n", s.key, v, err)
				}
			}
		case kFloat:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok && v != "" {
				if f, err := strconv.ParseFloat(v, 64); err == nil {
					s.apply(cfg, f)
				} else {
					fmt.Fprintf(os.Stderr, "[WARN] could not parse float from config key %s=%q: %v. Using default value.\n", s.key, v, err)
				}
			}
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		if s.env == "" {
			continue
		}
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		switch s.typ {
		case kString:
			s.apply(cfg, raw)
		case kInt:
			if i, err := strconv.Atoi(raw); err == nil {
				s.apply(cfg, i)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse integer from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		case kBool:
			if b, err := strconv.ParseBool(raw); err == nil {
				s.apply(cfg, b)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse bool from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		case kFloat:
			if f, err := strconv.ParseFloat(raw, 64); err == nil {
				s.apply(cfg, f)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse float from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		}
	}
}
