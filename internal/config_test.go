package internal

import (
	"strings"
	"testing"

	"github.com/starford/dagaz/internal/query"
)

func TestDefaultConfigValidates(t *testing.T) {
	cfg := NewDefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should pass: %v", err)
	}
}

func TestJournalConfig_ModeParsing(t *testing.T) {
	cfg := NewDefaultConfig()
	tagMode, err := cfg.Journal.TagMode()
	if err != nil {
		t.Fatalf("TagMode: %v", err)
	}
	if tagMode != query.AnyOf {
		t.Errorf("tag mode = %v, want AnyOf", tagMode)
	}
	dateMode, err := cfg.Journal.DateMode()
	if err != nil {
		t.Fatalf("DateMode: %v", err)
	}
	if dateMode != query.Continuous {
		t.Errorf("date mode = %v, want Continuous", dateMode)
	}
}

func TestJournalConfig_InvalidTagMode(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Journal.DefaultTagMode = "some_of"
	if err := cfg.Validate(); err == nil {
		t.Fatal("unknown tag mode should fail validation")
	}
}

func TestJournalConfig_InvalidDateMode(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Journal.DefaultDateMode = "sparse"
	if err := cfg.Validate(); err == nil {
		t.Fatal("unknown date mode should fail validation")
	}
}

func TestJournalConfig_WeekdayOriginRange(t *testing.T) {
	cfg := NewDefaultConfig()
	for _, origin := range []int{0, 6} {
		cfg.Journal.WeekdayOrigin = origin
		if err := cfg.Validate(); err != nil {
			t.Errorf("origin %d should pass: %v", origin, err)
		}
	}
	cfg.Journal.WeekdayOrigin = 7
	if err := cfg.Validate(); err == nil {
		t.Error("origin 7 should fail validation")
	}
}

func TestJournalConfig_MissingDatabasePath(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Journal.DatabasePath = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("empty database path should fail validation")
	}
}

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
	if err := cfg.Validate(); err == nil {
		t.Fatal("invalid mode should fail validation")
	}
}

func TestFullConfig_AuthValidationCalled(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Auth.Mode = "token"
	cfg.Auth.Token = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("full config validate should catch auth error")
	}
}
