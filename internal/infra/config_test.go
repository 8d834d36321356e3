package infra

import (
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://example")
	t.Setenv("PORT", "")
	t.Setenv("BASE_PER_CONTRIBUTION_CENTS", "")
	t.Setenv("REFERENCE_UTC_OFFSET_HOURS", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.Port != "8080" {
		t.Fatalf("Port = %q, want 8080", cfg.Port)
	}
	if cfg.BasePerContributionCents != 5000 || cfg.BaseAnnualCents != 20000 || cfg.ElevatedPerElectionCents != 350000 {
		t.Fatalf("cap defaults = %d/%d/%d", cfg.BasePerContributionCents, cfg.BaseAnnualCents, cfg.ElevatedPerElectionCents)
	}
	if cfg.ReferenceUTCOffsetHours != -5 {
		t.Fatalf("ReferenceUTCOffsetHours = %d, want -5", cfg.ReferenceUTCOffsetHours)
	}
	if cfg.ElectionAPITimeout != 5*time.Second {
		t.Fatalf("ElectionAPITimeout = %v, want 5s", cfg.ElectionAPITimeout)
	}
}

func TestLoadConfigRequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	if _, err := LoadConfig(); err == nil {
		t.Fatalf("LoadConfig accepted missing DATABASE_URL")
	}
}

func TestLoadConfigRejectsNonPositiveCaps(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://example")
	t.Setenv("BASE_ANNUAL_CENTS", "-1")
	if _, err := LoadConfig(); err == nil {
		t.Fatalf("LoadConfig accepted negative cap")
	}
}

func TestLoadConfigParsesOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://example")
	t.Setenv("ELEVATED_PER_ELECTION_CENTS", "330000")
	t.Setenv("ALLOWED_ORIGINS", "https://app.example.org, https://admin.example.org ")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.ElevatedPerElectionCents != 330000 {
		t.Fatalf("ElevatedPerElectionCents = %d, want 330000", cfg.ElevatedPerElectionCents)
	}
	want := []string{"https://app.example.org", "https://admin.example.org"}
	if len(cfg.AllowedOrigins) != len(want) {
		t.Fatalf("AllowedOrigins = %#v, want %#v", cfg.AllowedOrigins, want)
	}
	for i := range want {
		if cfg.AllowedOrigins[i] != want[i] {
			t.Fatalf("AllowedOrigins[%d] = %q, want %q", i, cfg.AllowedOrigins[i], want[i])
		}
	}
}
