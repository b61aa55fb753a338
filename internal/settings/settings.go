// Package settings handles the tool's own configuration using Viper.
// This is distinct from the binary split config consumed by the
// interception engine; see the config package for that.
package settings

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Settings represents the application configuration.
type Settings struct {
	// WindowManager describes the process the coordinator freezes and
	// restarts around topology changes.
	WindowManager WMSettings `mapstructure:"window_manager"`

	// Engine tunes the interception engine's config polling.
	Engine EngineSettings `mapstructure:"engine"`

	// Session controls the display-persistence file rewrite.
	Session SessionSettings `mapstructure:"session"`

	// Logging configuration.
	Logging LoggingSettings `mapstructure:"logging"`
}

// WMSettings contains window-manager coordination settings.
type WMSettings struct {
	ProcessName    string        `mapstructure:"process_name"`    // e.g. "cinnamon"
	RestartCommand []string      `mapstructure:"restart_command"` // e.g. ["cinnamon", "--replace"]
	PreloadLibrary string        `mapstructure:"preload_library"` // interception library path
	SettleTimeout  time.Duration `mapstructure:"settle_timeout"`  // restart settle bound
	FreezeTimeout  time.Duration `mapstructure:"freeze_timeout"`  // stop-signal settle bound
}

// EngineSettings contains interception engine settings.
type EngineSettings struct {
	ConfigPath   string        `mapstructure:"config_path"`   // binary config override
	PollInterval time.Duration `mapstructure:"poll_interval"` // mtime poll throttle
}

// SessionSettings contains display-persistence settings.
type SessionSettings struct {
	MonitorsFile string `mapstructure:"monitors_file"` // session monitors XML path
}

// LoggingSettings contains logging settings.
type LoggingSettings struct {
	LogLevel string `mapstructure:"log_level"` // overrides the LOG_LEVEL env var
}

// Default provides sensible defaults for a Cinnamon/Muffin session, the
// window manager this tool was written against.
var Default = Settings{
	WindowManager: WMSettings{
		ProcessName:    "cinnamon",
		RestartCommand: []string{"cinnamon", "--replace"},
		PreloadLibrary: "",
		SettleTimeout:  15 * time.Second,
		FreezeTimeout:  3 * time.Second,
	},
	Engine: EngineSettings{
		ConfigPath:   "",
		PollInterval: 500 * time.Millisecond,
	},
	Session: SessionSettings{
		MonitorsFile: "",
	},
	Logging: LoggingSettings{
		LogLevel: "",
	},
}

var (
	current      *Settings
	pathOverride string
)

// SetPath allows overriding the settings file path.
func SetPath(path string) {
	pathOverride = path
}

// Init initializes the settings system.
func Init() error {
	viper.SetConfigName("xsplit")
	viper.SetConfigType("toml")

	if pathOverride != "" {
		viper.SetConfigFile(pathOverride)
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "xsplit"))
		}
		viper.AddConfigPath("/etc/xsplit")
	}

	viper.SetDefault("window_manager.process_name", Default.WindowManager.ProcessName)
	viper.SetDefault("window_manager.restart_command", Default.WindowManager.RestartCommand)
	viper.SetDefault("window_manager.preload_library", Default.WindowManager.PreloadLibrary)
	viper.SetDefault("window_manager.settle_timeout", Default.WindowManager.SettleTimeout)
	viper.SetDefault("window_manager.freeze_timeout", Default.WindowManager.FreezeTimeout)
	viper.SetDefault("engine.config_path", Default.Engine.ConfigPath)
	viper.SetDefault("engine.poll_interval", Default.Engine.PollInterval)
	viper.SetDefault("session.monitors_file", Default.Session.MonitorsFile)
	viper.SetDefault("logging.log_level", Default.Logging.LogLevel)

	if err := viper.ReadInConfig(); err != nil {
		// A missing settings file is fine, defaults apply.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			if !os.IsNotExist(err) {
				return fmt.Errorf("failed to read settings: %w", err)
			}
		}
	}

	s := Default
	if err := viper.Unmarshal(&s); err != nil {
		return fmt.Errorf("failed to parse settings: %w", err)
	}
	current = &s
	return nil
}

// Get returns the loaded settings, initializing with defaults if Init
// has not run.
func Get() *Settings {
	if current == nil {
		s := Default
		current = &s
	}
	return current
}
