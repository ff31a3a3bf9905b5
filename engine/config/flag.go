package config

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"

	altsrc "github.com/urfave/cli-altsrc/v3"
	altsrcyaml "github.com/urfave/cli-altsrc/v3/yaml"
	"github.com/urfave/cli/v3"
)

// configFilePath backs the yaml value sources below: flags resolve against
// whatever file --config-file points at.
var configFilePath string

func Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "log-level",
			Usage:   "log level",
			Value:   "info",
			Sources: cli.EnvVars("LOG_LEVEL"),
			Action: func(ctx context.Context, cmd *cli.Command, v string) error {
				options := []string{"error", "warn", "info", "debug", "none"}
				if slices.Contains(options, strings.ToLower(v)) {
					return nil
				}
				return cli.Exit(fmt.Errorf("'log-level' must be %v. Received: %v", strings.Join(options, ", "), v), 2)
			},
		},
		&cli.StringFlag{
			Name:    "log-file",
			Usage:   "Optional JSON log file path",
			Sources: cli.EnvVars("LOG_FILE"),
		},
		&cli.StringFlag{
			Name:    "env",
			Usage:   "build environment description",
			Value:   "development",
			Sources: cli.EnvVars("ENVIRONMENT"),
			Action: func(ctx context.Context, cmd *cli.Command, v string) error {
				options := []string{EnvironmentDevelopment.String(), EnvironmentProduction.String()}
				if slices.Contains(options, strings.ToLower(v)) {
					return nil
				}
				return cli.Exit(fmt.Errorf("'env' must be %v. Received: %v", strings.Join(options, ", "), v), 2)
			},
		},
		&cli.StringFlag{
			Name:    "data-dir",
			Usage:   "Data storage directory, may be relative or absolute",
			Value:   "./tmp",
			Sources: cli.EnvVars("DATA_DIR"),
			Action: func(ctx context.Context, cmd *cli.Command, v string) error {
				if err := validateDirectoryInput(v, 0755); err != nil {
					return cli.Exit(fmt.Errorf("invalid data directory: %v", err), 2)
				}
				return nil
			},
		},
		&cli.StringFlag{
			Name:        "config-file",
			Usage:       "Path to a yaml or json configuration file",
			Destination: &configFilePath,
			Sources:     cli.EnvVars("CONFIG_FILE"),
			Action: func(ctx context.Context, cmd *cli.Command, v string) error {
				if v == "" {
					return nil
				}
				if err := validateFileInput(v); err != nil {
					return cli.Exit(fmt.Errorf("invalid config file: %v", err), 2)
				}
				return nil
			},
		},
		&cli.StringSliceFlag{
			Name:    "features",
			Sources: cli.EnvVars("FEATURES"),
			Action: func(ctx context.Context, cmd *cli.Command, values []string) error {
				for _, v := range values {
					if !IsFeature(v) {
						return cli.Exit(fmt.Errorf("invalid feature option: %s", v), 2)
					}
				}
				return nil
			},
		},
		&cli.StringFlag{
			Name:    "server-url",
			Usage:   "Server URL",
			Value:   "http://localhost:4200",
			Sources: cli.EnvVars("SERVER_URL"),
			Action: func(ctx context.Context, cmd *cli.Command, v string) error {
				if err := validateURLInput(v); err != nil {
					return cli.Exit(fmt.Errorf("invalid server URL: %v", err), 2)
				}
				return nil
			},
		},
		&cli.StringFlag{
			Name:    "gemini-api-key",
			Usage:   "Gemini API key for avatar image generation",
			Sources: cli.EnvVars("GEMINI_API_KEY"),
		},
		&cli.StringFlag{
			Name: "gemini-model",
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("GEMINI_MODEL"),
				altsrcyaml.YAML("gemini.model", altsrc.NewStringPtrSourcer(&configFilePath)),
			),
		},
		&cli.StringFlag{
			Name:    "image-dir",
			Usage:   "Directory for locally written avatar images, defaults under data-dir",
			Sources: cli.EnvVars("IMAGE_DIR"),
		},
		&cli.StringFlag{
			Name:    "openai-api-key",
			Usage:   "OpenAI API key for meta-prompting",
			Sources: cli.EnvVars("OPENAI_API_KEY"),
		},
		&cli.StringFlag{
			Name: "openai-model",
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("OPENAI_MODEL"),
				altsrcyaml.YAML("openai.model", altsrc.NewStringPtrSourcer(&configFilePath)),
			),
		},
		&cli.StringFlag{
			Name:  "personality",
			Usage: "Active personality profile name",
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("PERSONALITY"),
				altsrcyaml.YAML("personality.active", altsrc.NewStringPtrSourcer(&configFilePath)),
			),
		},
		&cli.StringFlag{
			Name:  "avatar-style",
			Usage: "Default avatar art style",
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("AVATAR_STYLE"),
				altsrcyaml.YAML("avatar.style", altsrc.NewStringPtrSourcer(&configFilePath)),
			),
		},
		&cli.BoolFlag{
			Name:  "meta-prompting",
			Usage: "Delegate creative prompt authoring to a language model",
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("META_PROMPTING"),
				altsrcyaml.YAML("prompt.meta.enabled", altsrc.NewStringPtrSourcer(&configFilePath)),
			),
		},
	}
}

// Ensures the directory input is valid.
//
// The directory must either exist or the parent directory must exist.
// Will create if the directory doesn't exist.
func validateDirectoryInput(dir string, permissions os.FileMode) error {
	if dir == "" {
		return errors.New("directory is required")
	} else {
		parent := filepath.Dir(dir)
		_, err := os.Stat(parent)
		if err != nil {
			return err
		}
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			err := os.MkdirAll(dir, permissions)
			if err != nil {
				return err
			}
		}
	}
	return nil
}

// Ensures the file input is valid.
func validateFileInput(file string) error {
	if file == "" {
		return errors.New("file is required")
	} else {
		_, err := os.Stat(file)
		if err != nil {
			return err
		}
	}
	return nil
}

func validateURLInput(input string) error {
	if input == "" {
		return errors.New("URL is required")
	} else {
		u, err := url.ParseRequestURI(input)
		if err != nil {
			return fmt.Errorf("invalid url '%v': %v", input, err)
		}
		host, _, err := net.SplitHostPort(u.Host)
		if err != nil || host == "" {
			return fmt.Errorf("invalid url '%v': %v", input, err)
		}
		return nil
	}
}
