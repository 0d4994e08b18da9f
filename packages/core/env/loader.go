package env

import (
	"os"
	"strings"
)

// DefaultPrefix selects environment variables that become suite variables,
// e.g. APICHECK_baseUrl.
const DefaultPrefix = "APICHECK_"

// LoadVariables builds the variable set for a run. Later sources win:
// prefixed system environment, then env files in order, then explicit
// overrides.
func LoadVariables(envFiles []string, overrides map[string]string) (map[string]any, error) {
	sources := []map[string]any{LoadSystemEnv(DefaultPrefix)}
	for _, path := range envFiles {
		vars, err := LoadAndExportDotEnv(path)
		if err != nil {
			return nil, err
		}
		sources = append(sources, toAny(vars))
	}
	sources = append(sources, toAny(overrides))
	return MergeVariables(sources...), nil
}

func toAny(m map[string]string) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func MergeVariables(sources ...map[string]any) map[string]any {
	result := make(map[string]any)
	for _, src := range sources {
		for k, v := range src {
			result[k] = v
		}
	}
	return result
}

func LoadSystemEnv(prefix string) map[string]any {
	result := make(map[string]any)
	for _, e := range os.Environ() {
		key, value, ok := strings.Cut(e, "=")
		if !ok {
			continue
		}
		if prefix == "" {
			result[key] = value
		} else if len(key) > len(prefix) && strings.HasPrefix(key, prefix) {
			result[key[len(prefix):]] = value
		}
	}
	return result
}
