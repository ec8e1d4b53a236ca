package internal

import (
	"strings"
	"testing"
	"time"
)

func TestAuthConfig_DisabledMode(t *testing.T) {
	cfg := AuthConfig{Mode: "disabled", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled mode should pass: %v", err)
	}
	if cfg.AuthEnabled() {
		t.Error("disabled mode should not be enabled")
	}
}

func TestAuthConfig_EmptyModeDefaultsDisabled(t *testing.T) {
	cfg := AuthConfig{Mode: "", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty mode should default to disabled: %v", err)
	}
	if cfg.Mode != AuthModeDisabled {
		t.Errorf("mode = %q, want %q", cfg.Mode, AuthModeDisabled)
	}
}

func TestAuthConfig_TokenModeValid(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: "mysecret"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("token mode with token should pass: %v", err)
	}
	if !cfg.AuthEnabled() {
		t.Error("token mode should be enabled")
	}
}

func TestAuthConfig_TokenModeEmptyToken(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: ""}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("token mode with empty token should fail")
	}
	if !strings.Contains(err.Error(), "token is empty") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestAuthConfig_InvalidMode(t *testing.T) {
	cfg := AuthConfig{Mode: "magic", Token: "x"}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("invalid mode should fail validation")
	}
}

func TestFullConfig_AuthValidationCalled(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Auth.Mode = "token"
	cfg.Auth.Token = ""
	err := cfg.Validate()
	if err == nil {
		t.Fatal("full config validate should catch auth error")
	}
}

func TestReplicaConfig_GeneratesID(t *testing.T) {
	cfg := ReplicaConfig{QueueSize: 8}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty id should be generated: %v", err)
	}
	if cfg.ID == "" {
		t.Error("id was not generated")
	}
}

func TestReplicaConfig_RejectsBadID(t *testing.T) {
	for _, id := range []string{"has space", "-leading", "a/b", strings.Repeat("x", 65)} {
		cfg := ReplicaConfig{ID: id, QueueSize: 8}
		if err := cfg.Validate(); err == nil {
			t.Errorf("id %q should fail", id)
		}
	}
	cfg := ReplicaConfig{ID: "edit-bay.2", QueueSize: 8}
	if err := cfg.Validate(); err != nil {
		t.Errorf("valid id rejected: %v", err)
	}
}

func TestSpoolConfig_OnlyValidatedWhenEnabled(t *testing.T) {
	cfg := SpoolConfig{}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled spool should pass: %v", err)
	}
	cfg.Enabled = true
	if err := cfg.Validate(); err == nil {
		t.Fatal("enabled spool without dir should fail")
	}
	cfg.Dir = "/tmp/spool"
	cfg.Retention = time.Minute
	if err := cfg.Validate(); err != nil {
		t.Fatalf("enabled spool with dir should pass: %v", err)
	}
}

func TestPeersConfig_Modes(t *testing.T) {
	cfg := PeersConfig{URLs: []string{"http://peer:8080"}}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default mode should pass: %v", err)
	}
	if !cfg.Pushes() || cfg.Follows() {
		t.Errorf("default mode = %q, want push only", cfg.Mode)
	}

	cfg.Mode = PeerModeBoth
	if !cfg.Pushes() || !cfg.Follows() {
		t.Error("both mode should push and follow")
	}

	cfg.Mode = "gossip"
	if err := cfg.Validate(); err == nil {
		t.Error("unknown mode should fail")
	}
}

func TestPeersConfig_InvalidURL(t *testing.T) {
	cfg := PeersConfig{URLs: []string{"not a url"}}
	if err := cfg.Validate(); err == nil {
		t.Fatal("invalid peer url should fail")
	}
}

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := NewDefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should be valid: %v", err)
	}
	if cfg.Replica.ID == "" {
		t.Error("default config has no replica id after validation")
	}
}
