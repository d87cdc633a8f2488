package config

import (
	"fmt"
	"os"

	"github.com/khabaroff/apikey-rotator/src/models"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// DefaultDailyLimit applies to seed entries without daily_limit
const DefaultDailyLimit = 100

// SeedFile is the YAML layout of KEYS_FILE
type SeedFile struct {
	Keys []SeedKey `yaml:"keys"`
}

// SeedKey is one key entry of the seed file
type SeedKey struct {
	Key        string `yaml:"key"`
	Name       string `yaml:"name"`
	DailyLimit int    `yaml:"daily_limit"`
	Active     *bool  `yaml:"active"`
}

// LoadSeed reads and parses the seed file at path.
// Environment variables in the format ${VAR} are expanded before parsing.
// Entries whose key expands to an empty string are skipped.
func LoadSeed(path string) ([]models.KeyRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var seed SeedFile
	if err := yaml.Unmarshal([]byte(expanded), &seed); err != nil {
		return nil, fmt.Errorf("failed to parse seed file: %w", err)
	}

	return seed.Records()
}

// Records validates the entries and converts them to key records
func (s SeedFile) Records() ([]models.KeyRecord, error) {
	records := make([]models.KeyRecord, 0, len(s.Keys))
	seen := make(map[string]bool, len(s.Keys))

	for i, entry := range s.Keys {
		if entry.Key == "" {
			log.Warn().Int("index", i).Str("name", entry.Name).Msg("seed entry has no key, skipping")
			continue
		}
		if seen[entry.Key] {
			return nil, fmt.Errorf("seed: keys[%d]: duplicate key %s", i, models.MaskKey(entry.Key))
		}
		seen[entry.Key] = true

		limit := entry.DailyLimit
		if limit == 0 {
			limit = DefaultDailyLimit
		}
		if limit < 0 {
			return nil, fmt.Errorf("seed: keys[%d] (%s): daily_limit must be positive", i, entry.Name)
		}

		name := entry.Name
		if name == "" {
			name = fmt.Sprintf("Key %d", i+1)
		}

		active := true
		if entry.Active != nil {
			active = *entry.Active
		}

		records = append(records, models.KeyRecord{
			Key:        entry.Key,
			Name:       name,
			Active:     active,
			DailyLimit: limit,
		})
	}

	return records, nil
}
