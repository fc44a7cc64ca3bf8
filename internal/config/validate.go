package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateNaming(); err != nil {
		return err
	}
	if err := c.validateEngines(); err != nil {
		return err
	}
	if err := c.validateStages(); err != nil {
		return err
	}
	if err := c.validatePublish(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePaths() error {
	if c.Paths.OutputDir == "" {
		return errors.New("paths.output_dir must be set")
	}
	if c.Paths.OrganisedDir == "" {
		return errors.New("paths.organised_dir must be set")
	}
	if c.Paths.LogDir == "" {
		return errors.New("paths.log_dir must be set")
	}
	return nil
}

func (c *Config) validateNaming() error {
	if c.Naming.BrandPrefix == "" {
		return errors.New("naming.brand_prefix must be set")
	}
	if strings.ContainsAny(c.Naming.BrandPrefix, `/\ `) {
		return fmt.Errorf("naming.brand_prefix %q must not contain spaces or path separators", c.Naming.BrandPrefix)
	}
	return nil
}

func (c *Config) validateEngines() error {
	templates := map[string][]string{
		"engines.downloader":     c.Engines.Downloader,
		"engines.converter":      c.Engines.Converter,
		"engines.separator":      c.Engines.Separator,
		"engines.lyrics":         c.Engines.Lyrics,
		"engines.title_renderer": c.Engines.TitleRenderer,
		"engines.composer":       c.Engines.Composer,
	}
	for key, argv := range templates {
		if len(argv) == 0 || strings.TrimSpace(argv[0]) == "" {
			return fmt.Errorf("%s must name a command", key)
		}
	}
	return nil
}

func (c *Config) validateStages() error {
	lists := []struct {
		key    string
		values []string
	}{
		{"pipeline.stages", c.Pipeline.Stages},
		{"batch.phase1_stages", c.Batch.Phase1Stages},
		{"batch.phase2_stages", c.Batch.Phase2Stages},
	}
	for _, list := range lists {
		seen := make(map[string]struct{}, len(list.values))
		for _, name := range list.values {
			if _, dup := seen[name]; dup {
				return fmt.Errorf("%s lists %q more than once", list.key, name)
			}
			seen[name] = struct{}{}
		}
	}
	return nil
}

func (c *Config) validatePublish() error {
	if !c.Publish.Enabled {
		return nil
	}
	if c.Publish.Endpoint == "" {
		return errors.New("publish.endpoint must be set when publish.enabled is true")
	}
	if strings.Contains(c.Publish.Endpoint, "://") {
		return errors.New("publish.endpoint must be host[:port] without a scheme; use publish.use_ssl")
	}
	if c.Publish.Bucket == "" {
		return errors.New("publish.bucket must be set when publish.enabled is true")
	}
	if c.Publish.AccessKey == "" || c.Publish.SecretKey == "" {
		return fmt.Errorf("publish credentials are required; set publish.access_key/secret_key or %s/%s", EnvS3AccessKey, EnvS3SecretKey)
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.Notifications.WebhookURL == "" {
		return nil
	}
	parsed, err := url.Parse(c.Notifications.WebhookURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("notifications.webhook_url %q is not an absolute URL", c.Notifications.WebhookURL)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level %q is not recognised", c.Logging.Level)
	}
	return nil
}
