package config

import (
	"os"
	"path"
	"path/filepath"
	"slices"

	"github.com/urfave/cli/v3"

	"companion.arpa/engine/avatar"
	"companion.arpa/engine/httpapi"
	"companion.arpa/engine/personality"
	"companion.arpa/engine/prompt"
	"companion.arpa/engine/provider"
)

type Feature string
type Environment string

const (
	FeatureMeta    Feature = "meta"
	FeatureArchive Feature = "archive"
	FeatureHTTP    Feature = "http"

	EnvironmentDevelopment Environment = "development"
	EnvironmentProduction  Environment = "production"
)

func (f Feature) String() string {
	return string(f)
}

func (e Environment) String() string {
	return string(e)
}

func environmentFromString(s string) Environment {
	switch s {
	case EnvironmentDevelopment.String():
		return EnvironmentDevelopment
	case EnvironmentProduction.String():
		return EnvironmentProduction
	default:
		return ""
	}
}

var (
	Features = []Feature{FeatureMeta, FeatureArchive, FeatureHTTP}
)

func IsFeature(f string) bool {
	return slices.Contains(Features, Feature(f))
}

func HasFeature(features []Feature, f Feature) bool {
	return slices.Contains(features, f)
}

// From LDFLAGS
type BuildOpts struct {
	BuildVersion string
	BuildTime    string
}

// MakeConfig builds the merged configuration for a command invocation: file
// config first, then CLI/env overrides on top.
func (l BuildOpts) MakeConfig(cmd *cli.Command) Config {
	if l.BuildVersion == "" {
		l.BuildVersion = "dev"
	}
	if l.BuildTime == "" {
		l.BuildTime = "unknown"
	}

	overrides := ExtractCLIOverrides(cmd)

	var fileConfig FileConfig
	if p := cmd.String("config-file"); p != "" {
		// A missing or malformed file is tolerated here; the manager logs it.
		_ = ReadConfig(p, &fileConfig)
	}

	return newConfig(l, fileConfig, overrides)
}

type Config struct {
	Version     string
	BuildTime   string
	LogLevel    string
	LogFile     string
	Environment Environment
	DataDir     string
	ConfigFile  string
	Features    []Feature // Feature flags

	HTTP        httpapi.Config
	Gemini      provider.GeminiConfig
	OpenAI      provider.OpenAIConfig
	Prompt      prompt.Config
	Meta        prompt.MetaConfig
	Avatar      avatar.Config
	Personality personality.FileConfig
}

func newConfig(build BuildOpts, fileConfig FileConfig, overrides *CLIOverrides) Config {
	if overrides == nil {
		overrides = &CLIOverrides{}
	}

	var features []Feature
	for _, f := range overrides.Features {
		if IsFeature(f) {
			features = append(features, Feature(f))
		}
	}

	dataDir := stringWithOverride("./tmp", overrides.DataDir)
	dataDir, _ = relativeToAbsolutePath(dataDir)

	imageDir := stringWithOverride(path.Join(dataDir, "avatars"), overrides.ImageDir)

	c := Config{
		Version:     build.BuildVersion,
		BuildTime:   build.BuildTime,
		LogLevel:    stringWithOverride("info", overrides.LogLevel),
		LogFile:     stringWithOverride("", overrides.LogFile),
		Environment: environmentFromString(stringWithOverride(EnvironmentDevelopment.String(), overrides.Environment)),
		DataDir:     dataDir,
		ConfigFile:  stringWithOverride("", overrides.ConfigFile),
		Features:    features,
		HTTP: httpapi.Config{
			ServerURL: stringWithOverride("http://localhost:4200", overrides.ServerURL),
		},
		Gemini: provider.GeminiConfig{
			APIKey:   stringWithOverride("", overrides.GeminiAPIKey),
			Model:    stringWithOverride("", overrides.GeminiModel),
			ImageDir: imageDir,
		},
		OpenAI: provider.OpenAIConfig{
			APIKey: stringWithOverride("", overrides.OpenAIAPIKey),
			Model:  stringWithOverride("", overrides.OpenAIModel),
		},
		Prompt: prompt.Config{
			CharacterIdentity: stringWithFile("", fileConfig.Prompt.CharacterIdentity),
			StyleKeywords:     stringWithFile("", fileConfig.Prompt.StyleKeywords),
			QualityKeywords:   stringWithFile("", fileConfig.Prompt.QualityKeywords),
		},
		Meta: prompt.MetaConfig{
			Enabled:     boolWithFileAndOverride(fileConfig.Prompt.Meta.Enabled, false, overrides.MetaEnabled),
			Temperature: floatWithFile(0, fileConfig.Prompt.Meta.Temperature),
			MaxTokens:   intWithFile(0, fileConfig.Prompt.Meta.MaxTokens),
		},
		Avatar: avatar.Config{
			Style:         stringWithFileAndOverride(fileConfig.Avatar.Style, "", overrides.AvatarStyle),
			Background:    stringWithFile("", fileConfig.Avatar.Background),
			Lighting:      stringWithFile("", fileConfig.Avatar.Lighting),
			Quality:       stringWithFile("", fileConfig.Avatar.Quality),
			Width:         intWithFile(0, fileConfig.Avatar.Width),
			Height:        intWithFile(0, fileConfig.Avatar.Height),
			Steps:         intWithFile(0, fileConfig.Avatar.Steps),
			Guidance:      floatWithFile(0, fileConfig.Avatar.Guidance),
			ArchiveKeep:   intWithFile(0, fileConfig.Avatar.ArchiveKeep),
			CleanupChance: floatWithFile(0, fileConfig.Avatar.CleanupChance),
		},
		Personality: fileConfig.Personality,
	}

	if overrides.PersonalityActive != nil {
		c.Personality.Active = *overrides.PersonalityActive
	}

	return c
}

// Relative path from the executable directory.
// Returns the input if it's already absolute.
func relativeToAbsolutePath(input string) (string, error) {
	if path.IsAbs(input) {
		return input, nil
	}
	cwd, err := currentExecutableDirectory()
	if err != nil {
		return input, err
	}
	return path.Clean(path.Join(cwd, input)), nil
}

// Returns the directory of the current executable.
// Not the same as the CWD, this depends on where the executable is instead.
func currentExecutableDirectory() (string, error) {
	ex, err := os.Executable()
	if err != nil {
		return "", err
	}
	return filepath.Dir(ex), nil
}

// Helper functions for configuration merging. Precedence: CLI override,
// then file value, then default.

func stringWithOverride(defaultValue string, override *string) string {
	if override != nil {
		return *override
	}
	return defaultValue
}

func stringWithFile(defaultValue string, fileValue *string) string {
	if fileValue != nil {
		return *fileValue
	}
	return defaultValue
}

func intWithFile(defaultValue int, fileValue *int) int {
	if fileValue != nil {
		return *fileValue
	}
	return defaultValue
}

func floatWithFile(defaultValue float64, fileValue *float64) float64 {
	if fileValue != nil {
		return *fileValue
	}
	return defaultValue
}

func stringWithFileAndOverride(fileValue *string, defaultValue string, override *string) string {
	if override != nil {
		return *override
	}
	if fileValue != nil {
		return *fileValue
	}
	return defaultValue
}

func boolWithFileAndOverride(fileValue *bool, defaultValue bool, override *bool) bool {
	if override != nil {
		return *override
	}
	if fileValue != nil {
		return *fileValue
	}
	return defaultValue
}
