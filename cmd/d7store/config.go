// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
)

// config holds the defaults a TOML config file may supply; explicit flags
// always override them.
type config struct {
	Basedir  string `toml:"basedir"`
	LogLevel string `toml:"log_level"`
}

func defaultConfig() config {
	return config{Basedir: defaultBasedir}
}

func loadConfig(path string) (config, error) {
	cfg := defaultConfig()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return config{}, fmt.Errorf("decoding %s: %w", path, err)
	}
	return cfg, nil
}

// scanConfigFlag looks for "-c"/"--config" among the global flags preceding
// the subcommand token, so its value can seed the real flag.FlagSet's
// defaults before that set is built. It stops at the first non-flag
// argument (the subcommand name), mirroring where flag.Parse itself would
// stop, so it never mistakes a subcommand's own "-c" for the global one;
// "-b"/"--basedir" is skipped along with its value for the same reason.
func scanConfigFlag(args []string) string {
	for i := 0; i < len(args); i++ {
		a := args[i]
		switch {
		case a == "-c" || a == "--config":
			if i+1 < len(args) {
				return args[i+1]
			}
			return ""
		case strings.HasPrefix(a, "-c="):
			return strings.TrimPrefix(a, "-c=")
		case strings.HasPrefix(a, "--config="):
			return strings.TrimPrefix(a, "--config=")
		case a == "-b" || a == "--basedir":
			i++ // skip its value
		case a == "-v" || a == "-vv":
			// no value to skip
		case strings.HasPrefix(a, "-b=") || strings.HasPrefix(a, "--basedir="):
			// value is inline, nothing further to skip
		case !strings.HasPrefix(a, "-"):
			return ""
		}
	}
	return ""
}
