package utils

import (
	"fmt"
	"sort"
)

// MapToEnvList converts a map to a slice of "key=value" strings, sorted by key.
func MapToEnvList(env map[string]string) []string {
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	envList := make([]string, 0, len(env))
	for _, k := range keys {
		envList = append(envList, fmt.Sprintf("%s=%s", k, env[k]))
	}
	return envList
}
