package config

import "strings"

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeLLM()
	c.normalizeTTS()
	c.normalizeRender()
	c.normalizeAssembly()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	projectDir, err := expandPath(valueOr(c.Paths.ProjectDir, defaultProjectDir))
	if err != nil {
		return err
	}
	c.Paths.ProjectDir = projectDir

	logDir, err := expandPath(valueOr(c.Paths.LogDir, defaultLogDir))
	if err != nil {
		return err
	}
	c.Paths.LogDir = logDir
	return nil
}

func (c *Config) normalizeLLM() {
	c.LLM.BaseURL = valueOr(c.LLM.BaseURL, defaultLLMBaseURL)
	c.LLM.Model = valueOr(c.LLM.Model, defaultLLMModel)
	if c.LLM.TimeoutSeconds <= 0 {
		c.LLM.TimeoutSeconds = defaultLLMTimeoutSeconds
	}
	if c.LLM.MaxTokens <= 0 {
		c.LLM.MaxTokens = defaultLLMMaxTokens
	}
	if c.LLM.Temperature <= 0 {
		c.LLM.Temperature = defaultLLMTemperature
	}
	if c.LLM.TopP <= 0 {
		c.LLM.TopP = defaultLLMTopP
	}
	if c.LLM.SourceChunkSize <= 0 {
		c.LLM.SourceChunkSize = defaultSourceChunkSize
	}
}

func (c *Config) normalizeTTS() {
	c.TTS.BaseURL = valueOr(c.TTS.BaseURL, defaultTTSBaseURL)
	if c.TTS.TimeoutSeconds <= 0 {
		c.TTS.TimeoutSeconds = defaultTTSTimeoutSeconds
	}
	c.TTS.Language = valueOr(c.TTS.Language, defaultTTSLanguage)
}

func (c *Config) normalizeRender() {
	if c.Render.Workers <= 0 {
		c.Render.Workers = defaultRenderWorkers
	}
	if c.Render.BatchSize <= 0 {
		c.Render.BatchSize = defaultRenderBatchSize
	}
	if c.Render.MaxChunkChars <= 0 {
		c.Render.MaxChunkChars = defaultMaxChunkChars
	}
}

func (c *Config) normalizeAssembly() {
	if c.Assembly.SameSpeakerPauseMs <= 0 {
		c.Assembly.SameSpeakerPauseMs = defaultSameSpeakerPauseMs
	}
	if c.Assembly.SpeakerChangePauseMs <= 0 {
		c.Assembly.SpeakerChangePauseMs = defaultSpeakerChangePauseMs
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(valueOr(c.Logging.Format, defaultLogFormat))
	c.Logging.Level = strings.ToLower(valueOr(c.Logging.Level, defaultLogLevel))
}

func valueOr(value, fallback string) string {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		return trimmed
	}
	return fallback
}
