package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// ClubFile is the optional club settings file. TOML is the default format;
// files ending in .yaml or .yml are read as YAML.
//
//	required_minimum = "75.00"
//	timezone = "Europe/Rome"
//	admin_emails = ["board@club.example"]
type ClubFile struct {
	RequiredMinimum Amount   `toml:"required_minimum" yaml:"required_minimum"`
	Timezone        string   `toml:"timezone" yaml:"timezone"`
	AdminEmails     []string `toml:"admin_emails" yaml:"admin_emails"`
}

// Amount accepts a quoted decimal or a bare number.
type Amount string

// UnmarshalTOML implements toml.Unmarshaler.
func (a *Amount) UnmarshalTOML(v any) error {
	switch x := v.(type) {
	case string:
		*a = Amount(x)
	case int64:
		*a = Amount(strconv.FormatInt(x, 10))
	case float64:
		*a = Amount(strconv.FormatFloat(x, 'f', -1, 64))
	default:
		return fmt.Errorf("required_minimum: unsupported value %v", v)
	}
	return nil
}

// LoadClubFile reads and decodes the club settings file at path.
func LoadClubFile(path string) (ClubFile, error) {
	var club ClubFile
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err := os.ReadFile(path)
		if err != nil {
			return ClubFile{}, fmt.Errorf("read club file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &club); err != nil {
			return ClubFile{}, fmt.Errorf("decode club file %s: %w", path, err)
		}
	default:
		md, err := toml.DecodeFile(path, &club)
		if err != nil {
			return ClubFile{}, fmt.Errorf("decode club file %s: %w", path, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return ClubFile{}, fmt.Errorf("club file %s: unknown keys %v", path, undecoded)
		}
	}
	return club, nil
}

func (f ClubFile) apply(c *Config) {
	if f.RequiredMinimum != "" {
		c.RequiredMinimum = string(f.RequiredMinimum)
	}
	if f.Timezone != "" {
		c.Timezone = f.Timezone
	}
	if len(f.AdminEmails) > 0 {
		c.AdminEmails = append([]string(nil), f.AdminEmails...)
	}
}
