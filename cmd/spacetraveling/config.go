package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/eringen/spacetraveling"
)

// loadConfig builds the site configuration from environment variables.
// Unset variables keep the App defaults.
func loadConfig() (spacetraveling.SiteConfig, error) {
	cfg := spacetraveling.SiteConfig{
		Name:           spacetraveling.EnvOr("SITE_NAME", ""),
		URL:            spacetraveling.EnvOr("SITE_URL", ""),
		Description:    spacetraveling.EnvOr("SITE_DESCRIPTION", ""),
		Author:         spacetraveling.EnvOr("SITE_AUTHOR", ""),
		Locale:         spacetraveling.EnvOr("SITE_LOCALE", ""),
		Addr:           spacetraveling.EnvOr("ADDR", ""),
		DatabasePath:   spacetraveling.EnvOr("DATABASE_PATH", ""),
		CMSEndpoint:    spacetraveling.MustEnv("CMS_ENDPOINT"),
		CMSAccessToken: spacetraveling.EnvOr("CMS_ACCESS_TOKEN", ""),
		DocumentType:   spacetraveling.EnvOr("CMS_DOCUMENT_TYPE", ""),
		Orderings:      spacetraveling.EnvOr("CMS_ORDERINGS", ""),
		CMSLang:        spacetraveling.EnvOr("CMS_LANG", ""),
		HTMXSrc:        spacetraveling.EnvOr("HTMX_SRC", ""),
	}

	var err error
	if cfg.PageSize, err = envInt("PAGE_SIZE"); err != nil {
		return cfg, err
	}
	if cfg.BannerMaxWidth, err = envInt("BANNER_MAX_WIDTH"); err != nil {
		return cfg, err
	}
	if cfg.RateLimit, err = envInt("RATE_LIMIT"); err != nil {
		return cfg, err
	}
	if cfg.Revalidate, err = envDuration("REVALIDATE"); err != nil {
		return cfg, err
	}
	if cfg.RateWindow, err = envDuration("RATE_WINDOW"); err != nil {
		return cfg, err
	}
	if v := spacetraveling.EnvOr("SKIP_GENERATE", ""); v != "" {
		if cfg.SkipGenerate, err = strconv.ParseBool(v); err != nil {
			return cfg, fmt.Errorf("SKIP_GENERATE: %w", err)
		}
	}
	return cfg, nil
}

func envInt(key string) (int, error) {
	v := spacetraveling.EnvOr(key, "")
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func envDuration(key string) (time.Duration, error) {
	v := spacetraveling.EnvOr(key, "")
	if v == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
