package engine

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"companion.arpa/engine/config"
)

type cmdWithArgs func(ctx context.Context, cmd *cli.Command, s *Engine) error

// Wrap subcommands to inject the engine dependency
func cmdWithEngine(action cmdWithArgs, engine *Engine) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		return action(ctx, cmd, engine)
	}
}

type setupWithArgs func(ctx context.Context, cmd *cli.Command) (context.Context, error)

func setup(setup setupWithArgs) cli.BeforeFunc {
	return func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
		return setup(ctx, cmd)
	}
}

func NewCommandRoot(s *Engine) (*bool, *cli.Command) {
	opts := s.BuildOpts
	version := fmt.Sprintf("%s (%s)", opts.BuildVersion, opts.BuildTime)
	if opts.BuildTime == "" {
		version = opts.BuildVersion
	}
	start := new(bool)
	return start, &cli.Command{
		Name:    "companion",
		Usage:   "Avatar orchestration and prompt-synthesis engine for an AI companion",
		Version: version,
		Before:  setup(s.Setup), // runs before any command to initialize the engine
		Action: func(ctx context.Context, cmd *cli.Command) error {
			*start = true
			return nil
		},
		Commands: Commands(s),
		Flags:    config.Flags(),
	}
}

func Commands(s *Engine) []*cli.Command {
	return []*cli.Command{
		newAnalyzeCommand(s),
		newComposeCommand(s),
		newGenerateCommand(s),
	}
}
