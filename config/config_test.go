package config

import (
	"os"
	"testing"
	"time"
)

func TestGetEnvListParsesAndTrims(t *testing.T) {
	os.Setenv("TEST_RELAYCORE_LIST", " anthropic, openai ,ollama")
	defer os.Unsetenv("TEST_RELAYCORE_LIST")

	got := getEnvList("TEST_RELAYCORE_LIST", nil)
	want := []string{"anthropic", "openai", "ollama"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestGetEnvListFallsBackWhenUnset(t *testing.T) {
	os.Unsetenv("TEST_RELAYCORE_UNSET_LIST")
	got := getEnvList("TEST_RELAYCORE_UNSET_LIST", []string{"default"})
	if len(got) != 1 || got[0] != "default" {
		t.Fatalf("expected fallback, got %v", got)
	}
}

func TestProviderTimeoutFallsBackToDefault(t *testing.T) {
	cfg := &Config{
		DefaultTimeout:   30,
		ProviderTimeouts: map[string]time.Duration{},
	}
	if cfg.ProviderTimeout("unregistered") != 30 {
		t.Fatalf("expected unregistered provider to fall back to default timeout")
	}
}

func TestIsLocalOnlyWithNoCloudKeys(t *testing.T) {
	for _, k := range []string{
		"ANTHROPIC_API_KEY", "OPENAI_API_KEY", "GEMINI_API_KEY", "AZURE_OPENAI_KEY",
		"MISTRAL_API_KEY", "COHERE_API_KEY", "TOGETHER_API_KEY", "GROQ_API_KEY", "AWS_ACCESS_KEY_ID",
	} {
		os.Unsetenv(k)
	}
	cfg := &Config{}
	if !cfg.IsLocalOnly() {
		t.Fatalf("expected local-only mode with no cloud credentials present")
	}

	os.Setenv("ANTHROPIC_API_KEY", "sk-test")
	defer os.Unsetenv("ANTHROPIC_API_KEY")
	if cfg.IsLocalOnly() {
		t.Fatalf("expected local-only mode to be false once a cloud credential is present")
	}
}
