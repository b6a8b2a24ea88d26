// Package core contains the orchestration logic for conductor: the task
// tree, the execution controller, configuration, and the stable message
// strings spoken to the planner.
package core

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/valter-silva-au/conductor/internal/codec"
	"github.com/valter-silva-au/conductor/pkg/models"
)

// ConfigurationManager loads and validates the .conductorrc configuration.
type ConfigurationManager interface {
	LoadConfig() (*models.Config, error)
	ValidateConfig(cfg *models.Config) error
}

// viperConfigManager implements ConfigurationManager using Viper for
// reading the YAML configuration file.
type viperConfigManager struct {
	// basePath is the directory where .conductorrc resides.
	basePath string
}

// NewConfigurationManager creates a ConfigurationManager that reads the
// configuration file relative to basePath.
func NewConfigurationManager(basePath string) ConfigurationManager {
	return &viperConfigManager{basePath: basePath}
}

// defaultConfig returns a Config populated with sensible defaults.
func defaultConfig() *models.Config {
	return &models.Config{
		Format:       string(codec.FormatJSON),
		MaxTasks:     DefaultMaxTasks,
		Namespace:    "conductor",
		Scope:        "tasks",
		ManagerName:  "manager",
		InvocationID: "",
		StorePath:    "",
		TypeHint:     true,
		EnableSkip:   false,
	}
}

// LoadConfig reads the .conductorrc file from the base path using Viper.
// If the file does not exist, defaults are returned.
func (cm *viperConfigManager) LoadConfig() (*models.Config, error) {
	cfg := defaultConfig()

	v := viper.New()
	v.SetConfigName(".conductorrc")
	v.SetConfigType("yaml")
	v.AddConfigPath(cm.basePath)

	// Viper defaults so missing keys fall back gracefully.
	v.SetDefault("format", cfg.Format)
	v.SetDefault("max_tasks", cfg.MaxTasks)
	v.SetDefault("namespace", cfg.Namespace)
	v.SetDefault("scope", cfg.Scope)
	v.SetDefault("manager.name", cfg.ManagerName)
	v.SetDefault("invocation_id", cfg.InvocationID)
	v.SetDefault("store.path", cfg.StorePath)
	v.SetDefault("worker.command", cfg.WorkerCommand)
	v.SetDefault("worker.type_hint", cfg.TypeHint)
	v.SetDefault("features.skip", cfg.EnableSkip)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading .conductorrc: %w", err)
	}

	// Map nested YAML keys to flat Config fields.
	cfg.Format = v.GetString("format")
	cfg.MaxTasks = v.GetInt("max_tasks")
	cfg.Namespace = v.GetString("namespace")
	cfg.Scope = v.GetString("scope")
	cfg.ManagerName = v.GetString("manager.name")
	cfg.InvocationID = v.GetString("invocation_id")
	cfg.StorePath = v.GetString("store.path")
	cfg.WorkerCommand = v.GetString("worker.command")
	cfg.WorkerArgs = v.GetStringSlice("worker.args")
	cfg.TypeHint = v.GetBool("worker.type_hint")
	cfg.EnableSkip = v.GetBool("features.skip")

	return cfg, nil
}

// ValidateConfig checks the configuration for invalid values and returns
// a clear error message identifying every problem found.
func (cm *viperConfigManager) ValidateConfig(cfg *models.Config) error {
	if cfg == nil {
		return fmt.Errorf("configuration is nil")
	}

	var errs []string

	if !codec.ValidFormat(codec.Format(cfg.Format)) {
		errs = append(errs, fmt.Sprintf(
			"format %q is invalid, must be one of: json, markdown, yaml, xml",
			cfg.Format,
		))
	}

	if cfg.MaxTasks <= 0 {
		errs = append(errs, fmt.Sprintf("max_tasks must be positive, got %d", cfg.MaxTasks))
	}

	for key, value := range map[string]string{
		"namespace":    cfg.Namespace,
		"scope":        cfg.Scope,
		"manager.name": cfg.ManagerName,
	} {
		if value == "" {
			errs = append(errs, key+" must not be empty")
		}
		if strings.Contains(value, "::") {
			errs = append(errs, fmt.Sprintf("%s %q must not contain %q", key, value, "::"))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}
