package config

type Config struct {
	Restic  ResticConfig  `yaml:"restic"`
	Index   IndexConfig   `yaml:"index"`
	Exclude []string      `yaml:"exclude"`
	Logging LoggingConfig `yaml:"logging"`
	Watch   WatchConfig   `yaml:"watch"`
}

type ResticConfig struct {
	Executable      string   `yaml:"executable"`
	Repository      string   `yaml:"repository"`
	PasswordCommand string   `yaml:"passwordCommand"`
	Env             []string `yaml:"env"` // KEY=VALUE pairs added to the restic environment
}

type IndexConfig struct {
	Address  string `yaml:"address"` // ":ephemeral:", "sqlite://...", "postgres://...", ...
	CacheDir string `yaml:"cacheDir"`
}

type LoggingConfig struct {
	Level      string `yaml:"level"` // "debug", "info", "warn", "error"
	File       string `yaml:"file"`
	JSON       bool   `yaml:"json"`
	NoTerminal bool   `yaml:"noTerminal"`
}

type WatchConfig struct {
	Schedule string `yaml:"schedule"` // cron expression or descriptor, e.g. "@hourly"
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Restic: ResticConfig{
			Executable: "restic",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Watch: WatchConfig{
			Schedule: "@hourly",
		},
	}
}
