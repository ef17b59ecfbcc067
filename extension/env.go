package extension

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// EnvPrefix prefixes every variable LoadEnv reads, e.g. PERK_REDIS_URL.
const EnvPrefix = "PERK_"

// LoadEnv reads a Config from PERK_* environment variables. Any dotenv files
// given are loaded first; missing files are skipped and variables already
// set in the environment win. Unset fields take their defaults.
func LoadEnv(files ...string) (Config, error) {
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("perk: load %s: %w", f, err)
		}
	}

	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return Config{}, fmt.Errorf("perk: parse env: %w", err)
	}
	return cfg.WithDefaults(), nil
}
