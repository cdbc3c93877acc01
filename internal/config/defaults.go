package config

const (
	defaultConfigPath            = "~/.config/castsync/config.toml"
	defaultDataDir               = "~/.local/share/castsync"
	defaultLogDir                = "~/.local/share/castsync/logs"
	defaultMediaServerTimeout    = 15
	defaultTMDBLanguage          = "en-US"
	defaultTMDBBaseURL           = "https://api.themoviedb.org/3"
	defaultTMDBTimeout           = 10
	defaultRegionalTimeout       = 10
	defaultRegionalDetailEntries = 512
	defaultTargetLanguage        = "zh"
	defaultTranslationEntries    = 4096
	defaultLLMBaseURL            = "https://openrouter.ai/api/v1/chat/completions"
	defaultLLMModel              = "google/gemini-3-flash-preview"
	defaultLLMReferer            = "https://github.com/castsync/castsync"
	defaultLLMTitle              = "castsync translator"
	defaultLLMTimeoutSeconds     = 60
	defaultMaxCastSize           = 50
	defaultRateFloorMS           = 500
	defaultRateCeilingMS         = 10000
	defaultRateRecoverAfter      = 5
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
	defaultLogMaxSizeMB          = 20
	defaultLogMaxBackups         = 5
	defaultLogMaxAgeDays         = 30
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		MediaServer: MediaServer{
			TimeoutSeconds: defaultMediaServerTimeout,
		},
		TMDB: TMDB{
			Language:       defaultTMDBLanguage,
			BaseURL:        defaultTMDBBaseURL,
			TimeoutSeconds: defaultTMDBTimeout,
		},
		Regional: Regional{
			TimeoutSeconds:     defaultRegionalTimeout,
			DetailCacheEntries: defaultRegionalDetailEntries,
		},
		Translation: Translation{
			TargetLanguage: defaultTargetLanguage,
			CacheEntries:   defaultTranslationEntries,
		},
		LLM: LLM{
			BaseURL:        defaultLLMBaseURL,
			Model:          defaultLLMModel,
			Referer:        defaultLLMReferer,
			Title:          defaultLLMTitle,
			TimeoutSeconds: defaultLLMTimeoutSeconds,
		},
		Reconcile: Reconcile{
			MaxCastSize: defaultMaxCastSize,
			FuzzyMatch:  true,
		},
		RateLimit: RateLimit{
			FloorMS:      defaultRateFloorMS,
			CeilingMS:    defaultRateCeilingMS,
			RecoverAfter: defaultRateRecoverAfter,
		},
		Workflow: Workflow{
			QueuePollInterval:  5,
			ErrorRetryInterval: 10,
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
