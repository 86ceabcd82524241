// Package flagx holds small helpers for sharing os.Args between independent
// flag sets.
package flagx

import (
	"flag"
	"os"
	"strings"
)

// ConfigFileEnv names the environment variable consulted when no -c/-config
// flag is given.
const ConfigFileEnv = "RENTDESK_CONFIG"

// FilterArgs returns a slice of command-line arguments that only contains
// the allowed flags (and their values) specified in allowedFlags.
//
// Supported formats:
//  1. Flag and value as separate arguments:  -c conf.json
//  2. Flag and value combined with '=':      --config=conf.json
func FilterArgs(args []string, allowedFlags []string) []string {
	allowed := make(map[string]struct{}, len(allowedFlags))
	for _, f := range allowedFlags {
		allowed[f] = struct{}{}
	}

	// never nil, so callers can pass it straight to flag.FlagSet.Parse
	filtered := make([]string, 0, len(args))

	for i := 0; i < len(args); i++ {
		arg := args[i]

		if strings.HasPrefix(arg, "-") && strings.Contains(arg, "=") {
			name := strings.SplitN(arg, "=", 2)[0]
			if _, ok := allowed[name]; ok {
				filtered = append(filtered, arg)
			}
			continue
		}

		if _, ok := allowed[arg]; ok {
			filtered = append(filtered, arg)
			// a following token that is not itself a flag is the value
			if i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
				filtered = append(filtered, args[i+1])
				i++
			}
		}
	}

	return filtered
}

// ConfigFile returns the JSON config path given by -c or -config. When
// neither flag is present the RENTDESK_CONFIG environment variable is used;
// an empty string means no file should be loaded.
func ConfigFile() string {
	var config string

	args := FilterArgs(os.Args[1:], []string{"-c", "-config"})

	fs := flag.NewFlagSet("json", flag.ContinueOnError)
	fs.StringVar(&config, "config", "", "Path to config file")
	fs.StringVar(&config, "c", "", "Path to config file (short)")
	_ = fs.Parse(args)

	if config == "" {
		config = os.Getenv(ConfigFileEnv)
	}

	return config
}
