package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"companion.arpa/engine/avatar"
	"companion.arpa/engine/httpapi"
	"companion.arpa/engine/personality"
	"companion.arpa/engine/prompt"
)

// ConfigProvider provides access to live configuration with hot-reload support
type ConfigProvider interface {
	GetConfig() *Config
	GetAvatarConfig() avatar.Config
	GetPromptConfig() prompt.Config
	GetMetaConfig() prompt.MetaConfig
	GetPersonalityConfig() personality.FileConfig
	GetHTTPConfig() httpapi.Config
	Subscribe(callback func(*Config)) func() // Returns unsubscribe function
	Close() error
}

// CLIOverrides holds values explicitly set via CLI flags
type CLIOverrides struct {
	// Global settings
	LogLevel    *string
	LogFile     *string
	Environment *string
	DataDir     *string
	ConfigFile  *string
	Features    []string

	// Server settings
	ServerURL *string

	// Provider settings
	GeminiAPIKey *string
	GeminiModel  *string
	ImageDir     *string
	OpenAIAPIKey *string
	OpenAIModel  *string

	// Engine settings
	PersonalityActive *string
	AvatarStyle       *string
	MetaEnabled       *bool
}

// ConfigManager manages unified configuration with hot-reload support
type ConfigManager struct {
	log          *zap.Logger
	cliOverrides *CLIOverrides
	buildOpts    BuildOpts

	// Hot-reloadable file config
	fileConfig atomic.Pointer[FileConfig]

	// Merged config cache
	mergedConfig atomic.Pointer[Config]

	// File watching
	watcher    *fsnotify.Watcher
	configPath string

	// Subscribers for config changes
	subscribers []func(*Config)
	subsMutex   sync.RWMutex

	// Control
	ctx    context.Context
	cancel context.CancelFunc
}

// NewConfigManager creates a new configuration manager
func NewConfigManager(log *zap.Logger, buildOpts BuildOpts, cliOverrides *CLIOverrides, configPath string) (*ConfigManager, error) {
	if configPath != "" {
		// Watch events report cleaned paths; match against the same form.
		configPath = filepath.Clean(configPath)
	}

	ctx, cancel := context.WithCancel(context.Background())

	cm := &ConfigManager{
		log:          log,
		cliOverrides: cliOverrides,
		buildOpts:    buildOpts,
		configPath:   configPath,
		ctx:          ctx,
		cancel:       cancel,
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	cm.watcher = watcher

	if err := cm.loadFileConfig(); err != nil {
		log.Warn("Failed to load initial config file, using defaults",
			zap.String("path", configPath),
			zap.Error(err))
		cm.fileConfig.Store(&FileConfig{}) // Empty config as fallback
	}

	cm.rebuildMergedConfig()

	if configPath != "" {
		if err := cm.startWatching(); err != nil {
			log.Warn("Failed to watch config file",
				zap.String("path", configPath),
				zap.Error(err))
		}
	}

	return cm, nil
}

// loadFileConfig loads configuration from file
func (cm *ConfigManager) loadFileConfig() error {
	if cm.configPath == "" {
		return fmt.Errorf("no config file path specified")
	}

	var fileConfig FileConfig
	err := ReadConfig(cm.configPath, &fileConfig)
	if err != nil {
		return err
	}

	cm.fileConfig.Store(&fileConfig)
	cm.log.Debug("Loaded configuration from file", zap.String("path", cm.configPath))
	return nil
}

// rebuildMergedConfig merges CLI overrides with file config
func (cm *ConfigManager) rebuildMergedConfig() {
	fileConfig := cm.fileConfig.Load()
	if fileConfig == nil {
		fileConfig = &FileConfig{}
	}

	config := newConfig(cm.buildOpts, *fileConfig, cm.cliOverrides)
	cm.mergedConfig.Store(&config)
	cm.log.Debug("Rebuilt merged configuration")
}

// startWatching starts watching the config file for changes
func (cm *ConfigManager) startWatching() error {
	if cm.configPath == "" {
		return nil
	}

	// Watch the directory containing the config file
	configDir := filepath.Dir(cm.configPath)
	if err := cm.watcher.Add(configDir); err != nil {
		return fmt.Errorf("failed to watch config directory: %w", err)
	}

	// Start the watcher goroutine
	go cm.watchLoop()

	cm.log.Info("Started watching config file", zap.String("path", cm.configPath))
	return nil
}

// watchLoop processes file system events
func (cm *ConfigManager) watchLoop() {
	for {
		select {
		case <-cm.ctx.Done():
			return

		case event, ok := <-cm.watcher.Events:
			if !ok {
				return
			}

			// Only process events for our config file
			if event.Name != cm.configPath {
				continue
			}

			// Handle write events (file modified)
			if event.Op&fsnotify.Write == fsnotify.Write {
				cm.handleConfigChange()
			}

		case err, ok := <-cm.watcher.Errors:
			if !ok {
				return
			}
			cm.log.Error("Config file watcher error", zap.Error(err))
		}
	}
}

// handleConfigChange reloads config when file changes
func (cm *ConfigManager) handleConfigChange() {
	cm.log.Info("Config file changed, reloading", zap.String("path", cm.configPath))

	// Small delay to avoid partial write issues
	time.Sleep(100 * time.Millisecond)

	// Reload file config
	if err := cm.loadFileConfig(); err != nil {
		cm.log.Error("Failed to reload config file",
			zap.String("path", cm.configPath),
			zap.Error(err))
		return
	}

	// Rebuild merged config
	cm.rebuildMergedConfig()

	// Notify subscribers
	config := cm.mergedConfig.Load()
	if config != nil {
		cm.notifySubscribers(config)
	}

	cm.log.Info("Configuration reloaded successfully")
}

// notifySubscribers notifies all subscribers of config changes
func (cm *ConfigManager) notifySubscribers(config *Config) {
	cm.subsMutex.RLock()
	defer cm.subsMutex.RUnlock()

	for _, callback := range cm.subscribers {
		if callback == nil {
			continue
		}
		// Run callbacks in goroutines to avoid blocking
		go func(cb func(*Config)) {
			defer func() {
				if r := recover(); r != nil {
					cm.log.Error("Config subscriber callback panicked",
						zap.Any("panic", r))
				}
			}()
			cb(config)
		}(callback)
	}
}

// ConfigProvider interface implementations

func (cm *ConfigManager) GetConfig() *Config {
	return cm.mergedConfig.Load()
}

func (cm *ConfigManager) GetAvatarConfig() avatar.Config {
	config := cm.GetConfig()
	if config == nil {
		return avatar.Config{}
	}
	return config.Avatar
}

func (cm *ConfigManager) GetPromptConfig() prompt.Config {
	config := cm.GetConfig()
	if config == nil {
		return prompt.Config{}
	}
	return config.Prompt
}

func (cm *ConfigManager) GetMetaConfig() prompt.MetaConfig {
	config := cm.GetConfig()
	if config == nil {
		return prompt.MetaConfig{}
	}
	return config.Meta
}

func (cm *ConfigManager) GetPersonalityConfig() personality.FileConfig {
	config := cm.GetConfig()
	if config == nil {
		return personality.FileConfig{}
	}
	return config.Personality
}

func (cm *ConfigManager) GetHTTPConfig() httpapi.Config {
	config := cm.GetConfig()
	if config == nil {
		return httpapi.Config{}
	}
	return config.HTTP
}

func (cm *ConfigManager) Subscribe(callback func(*Config)) func() {
	cm.subsMutex.Lock()
	defer cm.subsMutex.Unlock()

	cm.subscribers = append(cm.subscribers, callback)
	index := len(cm.subscribers) - 1

	// Return unsubscribe function
	return func() {
		cm.subsMutex.Lock()
		defer cm.subsMutex.Unlock()

		// Remove callback by setting to nil (avoid slice reshuffling)
		if index < len(cm.subscribers) {
			cm.subscribers[index] = nil
		}
	}
}

func (cm *ConfigManager) Close() error {
	cm.cancel()

	if cm.watcher != nil {
		return cm.watcher.Close()
	}
	return nil
}

// ExtractCLIOverrides extracts CLI overrides from urfave/cli command
func ExtractCLIOverrides(cmd *cli.Command) *CLIOverrides {
	overrides := &CLIOverrides{}

	// Extract values only if they were explicitly set (not just defaults)
	if cmd.IsSet("log-level") {
		val := cmd.String("log-level")
		overrides.LogLevel = &val
	}
	if cmd.IsSet("log-file") {
		val := cmd.String("log-file")
		overrides.LogFile = &val
	}
	if cmd.IsSet("env") {
		val := cmd.String("env")
		overrides.Environment = &val
	}
	if cmd.IsSet("data-dir") {
		val := cmd.String("data-dir")
		overrides.DataDir = &val
	}
	if cmd.IsSet("config-file") {
		val := cmd.String("config-file")
		overrides.ConfigFile = &val
	}
	if cmd.IsSet("features") {
		overrides.Features = cmd.StringSlice("features")
	}
	if cmd.IsSet("server-url") {
		val := cmd.String("server-url")
		overrides.ServerURL = &val
	}
	if cmd.IsSet("gemini-api-key") || cmd.String("gemini-api-key") != "" {
		val := cmd.String("gemini-api-key")
		overrides.GeminiAPIKey = &val
	}
	if cmd.IsSet("gemini-model") {
		val := cmd.String("gemini-model")
		overrides.GeminiModel = &val
	}
	if cmd.IsSet("image-dir") {
		val := cmd.String("image-dir")
		overrides.ImageDir = &val
	}
	if cmd.IsSet("openai-api-key") || cmd.String("openai-api-key") != "" {
		val := cmd.String("openai-api-key")
		overrides.OpenAIAPIKey = &val
	}
	if cmd.IsSet("openai-model") {
		val := cmd.String("openai-model")
		overrides.OpenAIModel = &val
	}
	if cmd.IsSet("personality") {
		val := cmd.String("personality")
		overrides.PersonalityActive = &val
	}
	if cmd.IsSet("avatar-style") {
		val := cmd.String("avatar-style")
		overrides.AvatarStyle = &val
	}
	if cmd.IsSet("meta-prompting") {
		val := cmd.Bool("meta-prompting")
		overrides.MetaEnabled = &val
	}

	return overrides
}
