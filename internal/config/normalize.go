package config

import (
	"fmt"
	"os"
	"strings"
)

// Environment fallbacks consulted when the corresponding key is empty.
const (
	EnvNtfyTopic   = "KARAOKEPREP_NTFY_TOPIC"
	EnvWebhookURL  = "KARAOKEPREP_WEBHOOK_URL"
	EnvS3AccessKey = "KARAOKEPREP_S3_ACCESS_KEY"
	EnvS3SecretKey = "KARAOKEPREP_S3_SECRET_KEY"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeNaming()
	c.normalizeLock()
	c.normalizeStages()
	c.normalizePublish()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.OutputDir, err = expandPath(strings.TrimSpace(c.Paths.OutputDir)); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	if c.Paths.OrganisedDir, err = expandPath(strings.TrimSpace(c.Paths.OrganisedDir)); err != nil {
		return fmt.Errorf("paths.organised_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(strings.TrimSpace(c.Paths.LogDir)); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LockDir) == "" {
		c.Paths.LockDir = defaultLockDir()
	}
	if c.Paths.LockDir, err = expandPath(strings.TrimSpace(c.Paths.LockDir)); err != nil {
		return fmt.Errorf("paths.lock_dir: %w", err)
	}
	if strings.TrimSpace(c.Batch.JournalPath) != "" {
		if c.Batch.JournalPath, err = expandPath(strings.TrimSpace(c.Batch.JournalPath)); err != nil {
			return fmt.Errorf("batch.journal_path: %w", err)
		}
	}
	return nil
}

func (c *Config) normalizeNaming() {
	c.Naming.BrandPrefix = strings.TrimSpace(c.Naming.BrandPrefix)
	c.Naming.AudioFormat = normalizeFormat(c.Naming.AudioFormat, defaultAudioFormat)
	c.Naming.StemFormat = normalizeFormat(c.Naming.StemFormat, defaultStemFormat)
	c.Naming.VideoFormat = normalizeFormat(c.Naming.VideoFormat, defaultVideoFormat)
	c.Naming.SeparatorModel = strings.TrimSpace(c.Naming.SeparatorModel)
	if c.Naming.SeparatorModel == "" {
		c.Naming.SeparatorModel = defaultSeparatorModel
	}
}

func normalizeFormat(value, fallback string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	value = strings.TrimPrefix(value, ".")
	if value == "" {
		return fallback
	}
	return value
}

func (c *Config) normalizeLock() {
	c.Lock.Resource = strings.TrimSpace(c.Lock.Resource)
	if c.Lock.Resource == "" {
		c.Lock.Resource = defaultLockResource
	}
	if c.Lock.PollIntervalMS <= 0 {
		c.Lock.PollIntervalMS = defaultLockPollIntervalMS
	}
	if c.Lock.MaxWaitSeconds < 0 {
		c.Lock.MaxWaitSeconds = 0
	}
}

func (c *Config) normalizeStages() {
	c.Pipeline.Stages = normalizeStageList(c.Pipeline.Stages, defaultPipelineStages)
	c.Batch.Phase1Stages = normalizeStageList(c.Batch.Phase1Stages, defaultPhase1Stages)
	c.Batch.Phase2Stages = normalizeStageList(c.Batch.Phase2Stages, defaultPhase2Stages)
	if c.Pipeline.Parallel <= 0 {
		c.Pipeline.Parallel = 1
	}
}

func normalizeStageList(values, fallback []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		value = strings.ToLower(strings.TrimSpace(value))
		if value == "" {
			continue
		}
		out = append(out, value)
	}
	if len(out) == 0 {
		return cloneStrings(fallback)
	}
	return out
}

func (c *Config) normalizePublish() {
	c.Publish.Endpoint = strings.TrimSpace(c.Publish.Endpoint)
	c.Publish.Bucket = strings.TrimSpace(c.Publish.Bucket)
	c.Publish.Prefix = strings.Trim(strings.TrimSpace(c.Publish.Prefix), "/")
	c.Publish.Region = strings.TrimSpace(c.Publish.Region)
	if c.Publish.Region == "" {
		c.Publish.Region = defaultPublishRegion
	}
	c.Publish.AccessKey = envFallback(c.Publish.AccessKey, EnvS3AccessKey)
	c.Publish.SecretKey = envFallback(c.Publish.SecretKey, EnvS3SecretKey)
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = envFallback(c.Notifications.NtfyTopic, EnvNtfyTopic)
	c.Notifications.WebhookURL = envFallback(c.Notifications.WebhookURL, EnvWebhookURL)
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultRequestTimeout
	}
}

func envFallback(value, key string) string {
	value = strings.TrimSpace(value)
	if value != "" {
		return value
	}
	if env, ok := os.LookupEnv(key); ok {
		return strings.TrimSpace(env)
	}
	return ""
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.MaxSizeMB <= 0 {
		c.Logging.MaxSizeMB = defaultLogMaxSizeMB
	}
	if c.Logging.MaxBackups < 0 {
		c.Logging.MaxBackups = 0
	}
	if c.Logging.MaxAgeDays < 0 {
		c.Logging.MaxAgeDays = 0
	}
}
