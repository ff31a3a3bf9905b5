// Package engine assembles the avatar pipeline: tag parsing, emotion
// heuristics, prompt composition, and image generation behind one
// response-processing surface.
package engine

import (
	"context"
	"errors"
	"fmt"
	"syscall"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"companion.arpa/engine/archive"
	"companion.arpa/engine/avatar"
	"companion.arpa/engine/config"
	"companion.arpa/engine/emotion"
	"companion.arpa/engine/httpapi"
	"companion.arpa/engine/personality"
	"companion.arpa/engine/prompt"
	"companion.arpa/engine/provider"
	"companion.arpa/engine/tags"
	"companion.arpa/logger"
)

type Engine struct {
	BuildOpts config.BuildOpts
	logger    logger.Logger
	log       *zap.Logger
	config    config.Config

	analyzer      emotion.Analyzer
	controller    *avatar.Controller
	composer      *prompt.Composer
	meta          *prompt.Delegator
	personalities *personality.ConfigSource
	archives      *archive.Storage
	orchestrator  *avatar.Orchestrator
	httpServer    *httpapi.Server
	configManager *config.ConfigManager
	unsubscribe   func()
}

func NewEngine(buildOpts config.BuildOpts) *Engine {
	return &Engine{
		BuildOpts: buildOpts,
	}
}

func (s *Engine) Setup(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	var err error
	s.config = s.BuildOpts.MakeConfig(cmd)

	isProd := s.config.Environment == config.EnvironmentProduction
	s.logger, err = logger.NewLogger(logger.LoggerOpts{
		Level:        s.config.LogLevel,
		IsProduction: isProd,
		JSONConsole:  isProd,
		FilePath:     s.config.LogFile,
	})
	if err != nil {
		return ctx, err
	}
	s.log = s.logger.Get()

	s.log.Debug("Running engine with features.", zap.Any("features", s.config.Features))

	s.analyzer = emotion.NewKeywordAnalyzer()
	s.controller = avatar.NewController(s.log)
	s.composer = prompt.NewComposer(s.log, s.config.Prompt)
	s.personalities = personality.NewConfigSource(s.log, s.config.Personality)

	if config.HasFeature(s.config.Features, config.FeatureMeta) {
		text, err := provider.NewOpenAIText(s.log, s.config.OpenAI)
		if err != nil {
			s.log.Warn("Meta-prompting unavailable", zap.Error(err))
		} else {
			s.meta = prompt.NewDelegator(s.log, s.config.Meta, text)
		}
	}

	if config.HasFeature(s.config.Features, config.FeatureArchive) {
		s.archives, err = archive.NewStorage(s.config.DataDir)
		if err != nil {
			return ctx, fmt.Errorf("open image archive: %w", err)
		}
	}

	var image provider.ImageProvider
	if s.config.Gemini.APIKey != "" {
		gemini, err := provider.NewGemini(ctx, s.log, s.config.Gemini)
		if err != nil {
			return ctx, fmt.Errorf("create gemini provider: %w", err)
		}
		image = gemini
	} else {
		s.log.Warn("No image provider configured, avatar generation disabled")
	}

	s.orchestrator = avatar.NewOrchestrator(s.log, s.config.Avatar, avatar.OrchestratorOpts{
		Controller:    s.controller,
		Composer:      s.composer,
		Meta:          s.meta,
		Personalities: s.personalities,
		Image:         image,
		Releaser:      avatar.NewFileReleaser(s.log),
		Archive:       s.archives,
	})

	if config.HasFeature(s.config.Features, config.FeatureHTTP) {
		s.httpServer = httpapi.NewServer(s.log, s.config.HTTP, s)
	}

	if s.config.ConfigFile != "" {
		manager, err := config.NewConfigManager(s.log, s.BuildOpts, config.ExtractCLIOverrides(cmd), s.config.ConfigFile)
		if err != nil {
			s.log.Warn("Config hot-reload unavailable", zap.Error(err))
		} else {
			s.configManager = manager
			s.unsubscribe = manager.Subscribe(func(c *config.Config) {
				s.personalities.Update(c.Personality)
			})
		}
	}

	return ctx, nil
}

func (s *Engine) Run(runCtx context.Context) error {
	if s.httpServer != nil {
		return s.httpServer.Run(runCtx)
	}

	<-runCtx.Done()
	return nil
}

func (s *Engine) BeginShutdown(ctx context.Context) error {
	if s.httpServer != nil {
		if err := s.httpServer.BeginShutdown(ctx); err != nil {
			return fmt.Errorf("begin shutdown http server: %w", err)
		}
	}
	return nil
}

// Shutdown resources in reverse order of the Setup/Run
func (s *Engine) Shutdown(ctx context.Context) error {
	var errs error
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			errs = errors.Join(errs, fmt.Errorf("shutdown http server: %w", err))
		}
	}
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
	if s.configManager != nil {
		if err := s.configManager.Close(); err != nil {
			errs = errors.Join(errs, fmt.Errorf("close config manager: %w", err))
		}
	}
	if s.orchestrator != nil {
		s.orchestrator.Close()
	}
	if s.controller != nil {
		s.controller.Close()
	}
	if s.archives != nil {
		if err := s.archives.Close(); err != nil {
			errs = errors.Join(errs, fmt.Errorf("close image archive: %w", err))
		}
	}
	// Sync throws an error when logging to console (sync is for buffered file logging)
	// `sync /dev/stderr: inappropriate ioctl for device`
	// https://github.com/uber-go/zap/issues/880
	// https://github.com/uber-go/zap/issues/991#issuecomment-962098428
	if err := s.log.Sync(); err != nil && !errors.Is(err, syscall.ENOTTY) {
		errs = errors.Join(errs, fmt.Errorf("sync logger: %w", err))
	}
	return errs
}

func (s *Engine) ForceShutdown(ctx context.Context) error {
	return nil
}

func (s *Engine) Logger() *zap.Logger {
	return s.logger.Get()
}

// ProcessResponse ingests a raw AI response. Explicit command tags apply
// first, then narrative image/position/hide tags, then the emotion fallback
// when nothing explicit addressed the avatar. Returns the display text with
// all tags stripped.
func (s *Engine) ProcessResponse(ctx context.Context, text string) (string, error) {
	clean, cmds := tags.ParseCommandTags(text)
	clean, photo, hide := tags.ParseNarrativeTags(clean)

	if hide {
		cmds = append(cmds, hideCommand())
	}

	if len(cmds) > 0 {
		if err := s.controller.ExecuteCommands(ctx, cmds); err != nil {
			return clean, fmt.Errorf("execute commands: %w", err)
		}
	}

	if photo != nil {
		if err := s.orchestrator.GenerateFromDescription(ctx, photo.Description, photo.Position); err != nil {
			// Already surfaced on the state record; the cleaned text still ships.
			s.log.Warn("Description-driven generation failed", zap.Error(err))
		}
		return clean, nil
	}

	if len(cmds) == 0 {
		if cmd, ok := s.emotionCommand(text); ok {
			if err := s.controller.ApplyCommand(ctx, cmd); err != nil {
				return clean, fmt.Errorf("apply emotion command: %w", err)
			}
		}
	}

	return clean, nil
}

// ProcessCommand applies explicit command tag text only; no narrative tags,
// no emotion fallback.
func (s *Engine) ProcessCommand(ctx context.Context, text string) (string, error) {
	clean, cmds := tags.ParseCommandTags(text)
	if len(cmds) == 0 {
		return clean, nil
	}
	if err := s.controller.ExecuteCommands(ctx, cmds); err != nil {
		return clean, fmt.Errorf("execute commands: %w", err)
	}
	return clean, nil
}

func (s *Engine) AvatarState() avatar.State {
	return s.controller.Snapshot()
}

// emotionCommand turns the analyzer's reading of the message into a state
// command. Returns false when the message carries no avatar-relevant signal.
func (s *Engine) emotionCommand(text string) (avatar.Command, bool) {
	ec := s.analyzer.Analyze(text)

	var cmd avatar.Command
	if ec.Expression != "" {
		expr := ec.Expression
		cmd.Expression = &expr
	}
	if ec.Pose != "" {
		pose := ec.Pose
		cmd.Pose = &pose
	}
	if ec.Action != "" {
		action := ec.Action
		cmd.Action = &action
	}
	if ec.ShouldShow {
		show := true
		cmd.Show = &show
	}
	return cmd, !cmd.IsZero()
}

func hideCommand() avatar.Command {
	hide := true
	return avatar.Command{Hide: &hide}
}
