package main

import (
	"log/slog"
	"strings"
	"sync"

	"cinecast/internal/chunkstore"
	"cinecast/internal/config"
	"cinecast/internal/logging"
	"cinecast/internal/script"
	"cinecast/internal/services/llm"
	"cinecast/internal/services/tts"
	"cinecast/internal/voice"

	"github.com/spf13/cobra"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) ensureLogger() *slog.Logger {
	c.loggerOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.logger = logging.NewNop()
			return
		}
		logger, logErr := logging.NewFromConfig(cfg)
		if logErr != nil {
			c.logger = logging.NewNop()
			return
		}
		c.logger = logger
	})
	return c.logger
}

// openStore opens the chunk store with a rebuild path wired to the annotated
// script, so a corrupted or missing chunk file recovers automatically.
func (c *commandContext) openStore() (*chunkstore.Store, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	rebuild := func() ([]chunkstore.Chunk, error) {
		entries, loadErr := script.LoadEntries(cfg.ScriptPath())
		if loadErr != nil {
			return nil, loadErr
		}
		return script.Chunk(entries, cfg.Render.MaxChunkChars), nil
	}
	return chunkstore.Open(cfg.ChunksPath(),
		chunkstore.WithRebuild(rebuild),
		chunkstore.WithLogger(c.ensureLogger()),
	), nil
}

func (c *commandContext) loadVoices() (*voice.Config, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return voice.Load(cfg.VoiceConfigPath())
}

func (c *commandContext) newLLMClient() (*llm.Client, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return llm.NewClient(llm.Config{
		APIKey:         cfg.LLM.APIKey,
		BaseURL:        cfg.LLM.BaseURL,
		Model:          cfg.LLM.Model,
		TimeoutSeconds: cfg.LLM.TimeoutSeconds,
		MaxTokens:      cfg.LLM.MaxTokens,
		Temperature:    cfg.LLM.Temperature,
		TopP:           cfg.LLM.TopP,
	}), nil
}

func (c *commandContext) newTTSClient() (*tts.Client, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return tts.NewClient(tts.Config{
		BaseURL:        cfg.TTS.BaseURL,
		TimeoutSeconds: cfg.TTS.TimeoutSeconds,
		Language:       cfg.TTS.Language,
	}), nil
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
