package utils

// GetString reads a string out of a decoded JSON object.
func GetString(m map[string]any, key string, defaultValue string) string {
	if m == nil {
		return defaultValue
	}
	s, ok := m[key].(string)
	if !ok {
		return defaultValue
	}
	return s
}
