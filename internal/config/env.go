package config

import (
	"sort"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes the environment variable of every configuration key
const EnvPrefix = "IMPRESSO"

// EnvOverride records an environment variable that takes precedence over
// the configuration file for Key
type EnvOverride struct {
	Key string
	Var string
}

// Keys returns every configuration key, sorted
func Keys() []string {
	v := viper.New()
	setDefaults(v)
	keys := v.AllKeys()
	sort.Strings(keys)
	return keys
}

// EnvVars returns the environment variables read for key, the prefixed name
// first
func EnvVars(key string) []string {
	vars := []string{EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))}
	if legacy, ok := legacyEnv[key]; ok {
		vars = append(vars, legacy)
	}
	return vars
}

// EnvOverrides lists the keys whose value comes from a non-empty environment
// variable, looked up with lookup (os.LookupEnv outside tests).
func EnvOverrides(lookup func(string) (string, bool)) []EnvOverride {
	var out []EnvOverride
	for _, key := range Keys() {
		for _, name := range EnvVars(key) {
			if value, ok := lookup(name); ok && value != "" {
				out = append(out, EnvOverride{Key: key, Var: name})
				break
			}
		}
	}
	return out
}
