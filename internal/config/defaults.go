package config

import (
	"os"
	"path/filepath"
)

const (
	defaultOutputDir          = "~/karaoke/tracks"
	defaultOrganisedDir       = "~/karaoke/organised"
	defaultLogDir             = "~/.local/share/karaokeprep/logs"
	defaultBrandPrefix        = "KARA"
	defaultAudioFormat        = "wav"
	defaultStemFormat         = "flac"
	defaultVideoFormat        = "mp4"
	defaultSeparatorModel     = "model_bs_roformer_ep_317_sdr_12.9755.ckpt"
	defaultLockResource       = "audio-separation"
	defaultLockPollIntervalMS = 2000
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
	defaultLogMaxSizeMB       = 50
	defaultLogMaxBackups      = 5
	defaultLogMaxAgeDays      = 30
	defaultRequestTimeout     = 10
	defaultPublishRegion      = "us-east-1"
)

var (
	defaultPipelineStages = []string{"acquire", "separate", "lyrics", "title", "compose", "finalize", "distribute"}
	defaultPhase1Stages   = []string{"acquire", "separate"}
	defaultPhase2Stages   = []string{"lyrics", "title", "compose", "finalize", "distribute"}
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			OutputDir:    defaultOutputDir,
			OrganisedDir: defaultOrganisedDir,
			LogDir:       defaultLogDir,
			LockDir:      defaultLockDir(),
		},
		Naming: Naming{
			BrandPrefix:    defaultBrandPrefix,
			AudioFormat:    defaultAudioFormat,
			StemFormat:     defaultStemFormat,
			VideoFormat:    defaultVideoFormat,
			SeparatorModel: defaultSeparatorModel,
		},
		Engines: Engines{
			Downloader:    []string{"yt-dlp", "--extract-audio", "--audio-format", "{format}", "--output", "{output}", "{input}"},
			Converter:     []string{"ffmpeg", "-nostdin", "-y", "-i", "{input}", "{output}"},
			Separator:     []string{"karaoke-separate", "--model", "{model}", "--input", "{input}", "--instrumental", "{instrumental}", "--vocals", "{vocals}"},
			Lyrics:        []string{"karaoke-lyrics", "--artist", "{artist}", "--title", "{title}", "--audio", "{input}", "--output", "{output}"},
			TitleRenderer: []string{"karaoke-title", "--artist", "{artist}", "--title", "{title}", "--output", "{output}"},
			Composer:      []string{"karaoke-render", "--instrumental", "{instrumental}", "--lyrics", "{lyrics}", "--title-card", "{title_card}", "--output", "{output}"},
		},
		Lock: Lock{
			Resource:       defaultLockResource,
			PollIntervalMS: defaultLockPollIntervalMS,
		},
		Pipeline: Pipeline{
			Stages:   cloneStrings(defaultPipelineStages),
			Parallel: 1,
		},
		Batch: Batch{
			Phase1Stages:   cloneStrings(defaultPhase1Stages),
			Phase2Stages:   cloneStrings(defaultPhase2Stages),
			JournalEnabled: true,
		},
		Publish: Publish{
			Region: defaultPublishRegion,
			UseSSL: true,
		},
		Notifications: Notifications{
			RequestTimeout: defaultRequestTimeout,
			TrackPublished: true,
			StageFailures:  true,
			StaleLocks:     true,
			BatchSummary:   true,
		},
		Logging: Logging{
			Format:     defaultLogFormat,
			Level:      defaultLogLevel,
			MaxSizeMB:  defaultLogMaxSizeMB,
			MaxBackups: defaultLogMaxBackups,
			MaxAgeDays: defaultLogMaxAgeDays,
		},
	}
}

// defaultLockDir is the shared temp directory so unrelated invocations on the
// same host see the same lock records.
func defaultLockDir() string {
	return filepath.Join(os.TempDir(), "karaokeprep-locks")
}

func cloneStrings(values []string) []string {
	out := make([]string, len(values))
	copy(out, values)
	return out
}
