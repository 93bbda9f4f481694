package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/RyanBlaney/sonido-emotion/classifier"
	"github.com/RyanBlaney/sonido-emotion/config"
	"github.com/RyanBlaney/sonido-emotion/emotion"
	"github.com/RyanBlaney/sonido-emotion/features"
	"github.com/RyanBlaney/sonido-emotion/logging"
	"github.com/RyanBlaney/sonido-emotion/model"
	"github.com/RyanBlaney/sonido-emotion/tracing"
	"github.com/RyanBlaney/sonido-emotion/transcode"
)

type commandContext struct {
	configFlag   *string
	logLevelFlag *string

	configOnce sync.Once
	config     *config.Config
	configPath string
	configSeen bool
	configErr  error
}

func newCommandContext(configFlag, logLevelFlag *string) *commandContext {
	return &commandContext{
		configFlag:   configFlag,
		logLevelFlag: logLevelFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, resolved, exists, err := config.Load(path)
		if err != nil {
			c.configErr = fmt.Errorf("load config: %w", err)
			return
		}
		c.config = cfg
		c.configPath = resolved
		c.configSeen = exists
	})
	return c.config, c.configErr
}

// setupLogging installs the configured logger as the global one. Diagnostics
// go to stderr so stdout stays clean for tables and JSON.
func (c *commandContext) setupLogging() error {
	opts := c.config.Logging
	opts.Stderr = true
	if c.logLevelFlag != nil && strings.TrimSpace(*c.logLevelFlag) != "" {
		opts.Level = strings.TrimSpace(*c.logLevelFlag)
	}

	logger, err := logging.New(opts)
	if err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}
	logging.SetGlobalLogger(logger)
	return nil
}

// pipeline is a classifier plus everything that has to be released with it.
type pipeline struct {
	classifier *classifier.Classifier
	tracing    bool
}

// openPipeline builds the decoder, extractor and scorer from the loaded
// configuration and starts tracing when an exporter is configured.
func (c *commandContext) openPipeline(ctx context.Context) (*pipeline, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}

	if err := tracing.Initialize(ctx, cfg.Tracing); err != nil {
		return nil, fmt.Errorf("initialize tracing: %w", err)
	}
	p := &pipeline{tracing: true}

	decoder, err := transcode.NewDecoder(cfg.DecoderConfig())
	if err != nil {
		p.close()
		return nil, fmt.Errorf("create decoder: %w", err)
	}

	extractor, err := features.NewExtractor(cfg.Features)
	if err != nil {
		p.close()
		return nil, fmt.Errorf("create feature extractor: %w", err)
	}

	scorer, err := model.NewScorer(cfg.Model)
	if err != nil {
		p.close()
		return nil, fmt.Errorf("load model: %w", err)
	}

	mode, err := emotion.ParseNormalizeMode(cfg.Model.Normalize)
	if err != nil {
		scorer.Close()
		p.close()
		return nil, err
	}

	p.classifier, err = classifier.New(decoder, extractor, scorer,
		classifier.WithNormalizeMode(mode),
		classifier.WithTempDir(cfg.Server.TempDir),
	)
	if err != nil {
		scorer.Close()
		p.close()
		return nil, err
	}

	logging.Debug("Pipeline ready", logging.Fields{
		"decoder":  decoder.Name(),
		"backend":  string(cfg.Model.Backend),
		"model":    cfg.Model.Path,
		"features": features.VectorLength,
	})
	return p, nil
}

func (p *pipeline) close() {
	var errs []error
	if p.classifier != nil {
		errs = append(errs, p.classifier.Close())
	}
	errs = append(errs, model.DestroyRuntime())
	if p.tracing {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		errs = append(errs, tracing.Shutdown(ctx))
	}
	if err := errors.Join(errs...); err != nil {
		logging.Warn("Failed to release pipeline", logging.Fields{"error": err.Error()})
	}
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
