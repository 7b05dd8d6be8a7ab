package feed

import (
	"time"
)

// Configuration types

type Config struct {
	Name     string         // Derived from filename (without .yml extension)
	URL      string         `yaml:"url"`
	Settings ConfigSettings `yaml:"settings"`
	Output   ConfigOutput   `yaml:"output"`
}

type ConfigSettings struct {
	Enabled            bool   `yaml:"enabled"`
	Interval           string `yaml:"interval"`             // e.g. "300", "15m", "8h", "1d"
	IncludeOnlyChanged bool   `yaml:"include_only_changed"` // skip entries at or before the checkpoint date
	Timeout            int    `yaml:"timeout"`              // fetch timeout, seconds
	ExtractContent     bool   `yaml:"extract_content"`      // enable content extraction
}

type ConfigOutput struct {
	Index      string `yaml:"index"`
	Sourcetype string `yaml:"sourcetype"`
	Host       string `yaml:"host"`
}

// Interval returns the parsed poll interval. Configs are validated on
// load, so parse errors cannot happen here.
func (c *Config) Interval() time.Duration {
	interval, err := ParseInterval(c.Settings.Interval)
	if err != nil {
		return time.Hour
	}
	return interval
}
