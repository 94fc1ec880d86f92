package config

const (
	defaultProjectDir           = "."
	defaultLogDir               = "~/.local/share/cinecast/logs"
	defaultLLMBaseURL           = "http://localhost:11434/v1"
	defaultLLMModel             = "qwen3-14b"
	defaultLLMTimeoutSeconds    = 300
	defaultLLMMaxTokens         = 4096
	defaultLLMTemperature       = 0.6
	defaultLLMTopP              = 0.8
	defaultSourceChunkSize      = 3000
	defaultTTSBaseURL           = "http://127.0.0.1:7860"
	defaultTTSTimeoutSeconds    = 600
	defaultTTSLanguage          = "English"
	defaultRenderWorkers        = 2
	defaultRenderBatchSize      = 4
	defaultMaxChunkChars        = 500
	defaultSameSpeakerPauseMs   = 250
	defaultSpeakerChangePauseMs = 500
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			ProjectDir: defaultProjectDir,
			LogDir:     defaultLogDir,
		},
		LLM: LLM{
			BaseURL:         defaultLLMBaseURL,
			Model:           defaultLLMModel,
			TimeoutSeconds:  defaultLLMTimeoutSeconds,
			MaxTokens:       defaultLLMMaxTokens,
			Temperature:     defaultLLMTemperature,
			TopP:            defaultLLMTopP,
			SourceChunkSize: defaultSourceChunkSize,
		},
		TTS: TTS{
			BaseURL:        defaultTTSBaseURL,
			TimeoutSeconds: defaultTTSTimeoutSeconds,
			Language:       defaultTTSLanguage,
		},
		Render: Render{
			Workers:       defaultRenderWorkers,
			BatchSize:     defaultRenderBatchSize,
			MaxChunkChars: defaultMaxChunkChars,
		},
		Assembly: Assembly{
			SameSpeakerPauseMs:   defaultSameSpeakerPauseMs,
			SpeakerChangePauseMs: defaultSpeakerChangePauseMs,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
