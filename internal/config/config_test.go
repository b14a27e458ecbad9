package config

import (
	"strings"
	"testing"
)

// mockKeychain is a test double for the keychain interface.
type mockKeychain struct {
	values map[string]string
}

func (m mockKeychain) Get(_, account string) (string, error) {
	return m.values[account], nil
}

// mapBackend is an in-memory ConfigBackend.
type mapBackend map[string]any

func (b mapBackend) GetString(key string) (string, bool, error) {
	v, ok := b[key]
	if !ok {
		return "", false, nil
	}
	return v.(string), true, nil
}

func (b mapBackend) GetInt(key string) (int, bool, error) {
	v, ok := b[key]
	if !ok {
		return 0, false, nil
	}
	return v.(int), true, nil
}

func (b mapBackend) SetString(key, val string) error { b[key] = val; return nil }
func (b mapBackend) SetInt(key string, val int) error { b[key] = val; return nil }
func (b mapBackend) Delete(key string) error          { delete(b, key); return nil }

func TestDefaults(t *testing.T) {
	cfg, err := loadWith(mapBackend{"gateway.self_id": "10000"}, mockKeychain{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 4200 {
		t.Errorf("Server.Port = %d, want 4200", cfg.Server.Port)
	}
	if cfg.Server.MCPPort != 4201 {
		t.Errorf("Server.MCPPort = %d, want 4201", cfg.Server.MCPPort)
	}
	if cfg.Schedule.PostCooldownMinutes != 120 {
		t.Errorf("PostCooldownMinutes = %d, want 120", cfg.Schedule.PostCooldownMinutes)
	}
	if cfg.Schedule.BrowseCooldownMinutes != 40 {
		t.Errorf("BrowseCooldownMinutes = %d, want 40", cfg.Schedule.BrowseCooldownMinutes)
	}
	if cfg.Engage.HandledCapacity != 100 || cfg.Engage.RepliedCapacity != 100 {
		t.Errorf("capacities = %d/%d, want 100/100", cfg.Engage.HandledCapacity, cfg.Engage.RepliedCapacity)
	}
	if cfg.Engage.ReadListMode != "blacklist" {
		t.Errorf("ReadListMode = %q, want blacklist", cfg.Engage.ReadListMode)
	}
	if !cfg.Engage.AutoReply {
		t.Error("AutoReply should default to true")
	}
}

func TestBackendValues(t *testing.T) {
	b := mapBackend{
		"gateway.self_id":                 "10000",
		"server.port":                     5000,
		"llm.model":                       "deepseek-chat",
		"engage.silent_hours":             "23:00-07:00",
		"engage.like_probability":         "0.8",
		"engage.auto_reply":               "false",
		"schedule.check_interval_minutes": 10,
	}
	cfg, err := loadWith(b, mockKeychain{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 5000 {
		t.Errorf("Server.Port = %d, want 5000", cfg.Server.Port)
	}
	if cfg.LLM.Model != "deepseek-chat" {
		t.Errorf("LLM.Model = %q", cfg.LLM.Model)
	}
	if cfg.Engage.SilentHours != "23:00-07:00" {
		t.Errorf("SilentHours = %q", cfg.Engage.SilentHours)
	}
	if cfg.Engage.LikeProbability != 0.8 {
		t.Errorf("LikeProbability = %v, want 0.8", cfg.Engage.LikeProbability)
	}
	if cfg.Engage.AutoReply {
		t.Error("AutoReply should be overridden to false")
	}
	if cfg.Schedule.CheckIntervalMinutes != 10 {
		t.Errorf("CheckIntervalMinutes = %d, want 10", cfg.Schedule.CheckIntervalMinutes)
	}
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("MAIZONE_LLM_MODEL", "env-model")
	t.Setenv("MAIZONE_ENGAGE_COMMENT_PROBABILITY", "0.9")

	cfg, err := loadWith(mapBackend{
		"gateway.self_id": "10000",
		"llm.model":       "backend-model",
	}, mockKeychain{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.LLM.Model != "env-model" {
		t.Errorf("LLM.Model = %q, env must win over backend", cfg.LLM.Model)
	}
	if cfg.Engage.CommentProbability != 0.9 {
		t.Errorf("CommentProbability = %v, want 0.9", cfg.Engage.CommentProbability)
	}
}

func TestMissingSelfID(t *testing.T) {
	_, err := loadWith(mapBackend{}, mockKeychain{})
	if err == nil {
		t.Fatal("expected error for missing self id")
	}
	if !strings.Contains(err.Error(), "missing required config") {
		t.Errorf("error = %q", err)
	}
}

func TestKeychainFallbackForSecrets(t *testing.T) {
	kc := mockKeychain{values: map[string]string{
		"gateway_token": "kc-token",
		"llm_api_key":   "kc-key",
	}}
	cfg, err := loadWith(mapBackend{"gateway.self_id": "10000"}, kc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Gateway.Token != "kc-token" {
		t.Errorf("Gateway.Token = %q, want keychain value", cfg.Gateway.Token)
	}
	if cfg.LLM.APIKey != "kc-key" {
		t.Errorf("LLM.APIKey = %q, want keychain value", cfg.LLM.APIKey)
	}
}

func TestListHelpers(t *testing.T) {
	e := EngageConfig{ReadList: "123, 456,,789 ", Topics: ""}
	owners := e.Owners()
	if len(owners) != 3 || owners[0] != "123" || owners[2] != "789" {
		t.Errorf("Owners() = %v", owners)
	}
	if e.TopicList() != nil {
		t.Errorf("TopicList() = %v, want nil for empty", e.TopicList())
	}
}

func TestSetKeyValidation(t *testing.T) {
	if err := SetKey("gateway.token", "x"); err == nil {
		t.Error("setting a secret must be rejected")
	}
	if err := SetKey("no.such.key", "x"); err == nil {
		t.Error("unknown key must be rejected")
	}
}
