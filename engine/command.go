package engine

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"companion.arpa/engine/prompt"
	"companion.arpa/engine/tags"
)

type analyzeCommandFlags struct {
	Text string
}

func newAnalyzeCommandFlags(cmd *cli.Command) *analyzeCommandFlags {
	return &analyzeCommandFlags{
		Text: cmd.String("text"),
	}
}

func newAnalyzeCommand(s *Engine) *cli.Command {
	return &cli.Command{
		Name:   "analyze",
		Usage:  "Parse a response text and report the avatar commands and emotion it carries",
		Action: cmdWithEngine(analyze, s),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "text",
				Aliases:  []string{"t"},
				Usage:    "Response text to analyze",
				Required: true,
			},
		},
	}
}

func analyze(ctx context.Context, cmd *cli.Command, s *Engine) error {
	f := newAnalyzeCommandFlags(cmd)
	if f.Text == "" {
		return fmt.Errorf("text is required")
	}

	clean, cmds := tags.ParseCommandTags(f.Text)
	clean, photo, hide := tags.ParseNarrativeTags(clean)
	ec := s.analyzer.Analyze(f.Text)

	s.log.Info("Analysis complete",
		zap.String("clean", clean),
		zap.Int("commands", len(cmds)),
		zap.Bool("hide", hide),
	)
	for i, c := range cmds {
		s.log.Info("Command tag", zap.Int("index", i), zap.Any("command", c))
	}
	if photo != nil {
		s.log.Info("Image request",
			zap.String("description", photo.Description),
			zap.String("position", photo.Position),
		)
	}
	s.log.Info("Emotion reading",
		zap.String("expression", ec.Expression),
		zap.String("pose", ec.Pose),
		zap.String("action", ec.Action),
		zap.Bool("shouldShow", ec.ShouldShow),
	)
	return nil
}

type composeCommandFlags struct {
	Expression  string
	Pose        string
	Action      string
	Description string
	Seed        int64
	Context     string
}

func newComposeCommandFlags(cmd *cli.Command) *composeCommandFlags {
	return &composeCommandFlags{
		Expression:  cmd.String("expression"),
		Pose:        cmd.String("pose"),
		Action:      cmd.String("action"),
		Description: cmd.String("description"),
		Seed:        int64(cmd.Int("seed")),
		Context:     cmd.String("context"),
	}
}

func newComposeCommand(s *Engine) *cli.Command {
	return &cli.Command{
		Name:   "compose",
		Usage:  "Compose and print the image prompt for a given avatar state",
		Action: cmdWithEngine(compose, s),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "expression",
				Usage: "Avatar expression",
			},
			&cli.StringFlag{
				Name:  "pose",
				Usage: "Avatar pose",
			},
			&cli.StringFlag{
				Name:  "action",
				Usage: "Avatar action",
			},
			&cli.StringFlag{
				Name:    "description",
				Aliases: []string{"d"},
				Usage:   "Explicit scene description",
			},
			&cli.IntFlag{
				Name:  "seed",
				Usage: "Variation seed for reproducible output",
			},
			&cli.StringFlag{
				Name:  "context",
				Usage: "Conversation context to mine for keywords",
			},
		},
	}
}

func compose(ctx context.Context, cmd *cli.Command, s *Engine) error {
	f := newComposeCommandFlags(cmd)

	params := prompt.Parameters{
		Expression:    f.Expression,
		Pose:          f.Pose,
		Action:        f.Action,
		AIDescription: f.Description,
		VariationSeed: f.Seed,
		Style:         s.config.Avatar.Style,
		Background:    s.config.Avatar.Background,
		Lighting:      s.config.Avatar.Lighting,
		Quality:       s.config.Avatar.Quality,
	}.Defaulted()

	pers, err := s.personalities.Active()
	if err != nil {
		s.log.Warn("Composing without personality", zap.Error(err))
		pers = nil
	}

	components := s.composer.Compose(params, pers, f.Context)
	finalPrompt, negativePrompt := components.Compile()

	s.log.Info("Composed prompt",
		zap.String("prompt", finalPrompt),
		zap.String("negative", negativePrompt),
	)
	return nil
}

type generateCommandFlags struct {
	Description string
	Position    string
}

func newGenerateCommandFlags(cmd *cli.Command) *generateCommandFlags {
	return &generateCommandFlags{
		Description: cmd.String("description"),
		Position:    cmd.String("position"),
	}
}

func newGenerateCommand(s *Engine) *cli.Command {
	return &cli.Command{
		Name:   "generate",
		Usage:  "Generate one avatar image from a scene description",
		Action: cmdWithEngine(generate, s),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "description",
				Aliases:  []string{"d"},
				Usage:    "Scene description to generate from",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "position",
				Usage: "Screen position for the avatar (left, right, center, top, bottom)",
			},
		},
	}
}

func generate(ctx context.Context, cmd *cli.Command, s *Engine) error {
	f := newGenerateCommandFlags(cmd)
	if f.Description == "" {
		return fmt.Errorf("description is required")
	}
	if f.Position != "" && !tags.IsPosition(f.Position) {
		return fmt.Errorf("invalid position: %s", f.Position)
	}

	s.log.Info("Generating avatar image", zap.String("description", f.Description))

	if err := s.orchestrator.GenerateFromDescription(ctx, f.Description, f.Position); err != nil {
		return fmt.Errorf("generate: %w", err)
	}

	state := s.controller.Snapshot()
	if state.HasError {
		return fmt.Errorf("generation failed: %s", state.ErrorMessage)
	}
	s.log.Info("Generation complete", zap.String("image", state.ImageURL))
	return nil
}
