// Package conf holds app configuration read from an optional YAML file.
package conf

import (
	"fmt"
	"os"
	"time"

	"github.com/TomasB/isitchristmas/internal/data"
	"gopkg.in/yaml.v3"
)

// AppConfig is the service configuration. Every field has a working default;
// the config file only needs to exist when overriding something.
type AppConfig struct {
	Web struct {
		Port int `yaml:"port"`
	} `yaml:"web"`
	Geo struct {
		// Ordered candidate paths for the GeoLite2 country database;
		// the first existing file wins.
		DatabasePaths []string `yaml:"database-paths"`
	} `yaml:"geo"`
	Capture struct {
		TargetURL      string   `yaml:"target-url"`
		ViewportWidth  int      `yaml:"viewport-width"`
		ViewportHeight int      `yaml:"viewport-height"`
		SettleDelay    Duration `yaml:"settle-delay"`
		Timeout        Duration `yaml:"timeout"`
		ChromePath     string   `yaml:"chrome-path"`
	} `yaml:"capture"`
	// WebDir contains templates/index.html and the styles/ directory.
	WebDir string `yaml:"web-dir"`
	Debug  bool   `yaml:"debug"`
}

// Duration is a time.Duration that unmarshals from YAML strings like "500ms"
// or "45s".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// ReadConfig loads the config file at path. A missing file is not an error;
// defaults apply. Capture settings left at zero are defaulted by the capture
// package itself.
func ReadConfig(path string) (AppConfig, error) {
	var c AppConfig

	buf, err := os.ReadFile(path)
	if err != nil {
		setDefaults(&c)
		if os.IsNotExist(err) {
			return c, nil
		}
		return c, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(buf, &c); err != nil {
		setDefaults(&c)
		return c, fmt.Errorf("failed to parse config: %w", err)
	}

	setDefaults(&c)
	return c, nil
}

func setDefaults(c *AppConfig) {
	if c.Web.Port == 0 {
		c.Web.Port = 8000
	}
	if len(c.Geo.DatabasePaths) == 0 {
		c.Geo.DatabasePaths = data.DefaultDatabasePaths
	}
	if c.WebDir == "" {
		c.WebDir = "web"
	}
}
