package main

import (
	"testing"
	"time"
)

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("CMS_ENDPOINT", "https://repo.cdn.prismic.io/api/v2")
	t.Setenv("SITE_LOCALE", "pt-BR")
	t.Setenv("CMS_LANG", "pt-br")
	t.Setenv("PAGE_SIZE", "5")
	t.Setenv("REVALIDATE", "-1s")
	t.Setenv("RATE_WINDOW", "30s")
	t.Setenv("SKIP_GENERATE", "true")

	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.CMSEndpoint != "https://repo.cdn.prismic.io/api/v2" || cfg.Locale != "pt-BR" || cfg.CMSLang != "pt-br" {
		t.Errorf("cfg = %#v", cfg)
	}
	if cfg.PageSize != 5 || cfg.Revalidate != -time.Second || cfg.RateWindow != 30*time.Second || !cfg.SkipGenerate {
		t.Errorf("parsed values = %d %s %s %v", cfg.PageSize, cfg.Revalidate, cfg.RateWindow, cfg.SkipGenerate)
	}
}

func TestLoadConfigRejectsBadValues(t *testing.T) {
	tests := map[string]string{
		"PAGE_SIZE":     "two",
		"REVALIDATE":    "daily",
		"SKIP_GENERATE": "maybe",
	}
	for key, value := range tests {
		t.Run(key, func(t *testing.T) {
			t.Setenv("CMS_ENDPOINT", "https://repo.cdn.prismic.io/api/v2")
			t.Setenv(key, value)
			if _, err := loadConfig(); err == nil {
				t.Errorf("loadConfig with %s=%q succeeded, want error", key, value)
			}
		})
	}
}
