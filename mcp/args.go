package mcp

// Argument accessors for tool handlers. JSON decoding yields untyped maps;
// these helpers coerce the common shapes and fall back to a default when
// the argument is absent or of the wrong type.

// StringArg returns args[key] as a string.
func StringArg(args map[string]any, key, fallback string) string {
	if value, ok := args[key].(string); ok {
		return value
	}
	return fallback
}

// BoolArg returns args[key] as a bool.
func BoolArg(args map[string]any, key string, fallback bool) bool {
	if value, ok := args[key].(bool); ok {
		return value
	}
	return fallback
}

// IntArg returns args[key] as an int, accepting the float64 JSON numbers
// produce.
func IntArg(args map[string]any, key string, fallback int) int {
	switch value := args[key].(type) {
	case float64:
		return int(value)
	case int:
		return value
	default:
		return fallback
	}
}

// MapArg returns args[key] as an object.
func MapArg(args map[string]any, key string) map[string]any {
	if value, ok := args[key].(map[string]any); ok {
		return value
	}
	return nil
}

// StringSliceArg returns args[key] as a string slice, skipping non-string
// elements.
func StringSliceArg(args map[string]any, key string) []string {
	raw, ok := args[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// SliceArg returns args[key] as a slice of objects.
func SliceArg(args map[string]any, key string) []map[string]any {
	raw, ok := args[key].([]any)
	if !ok {
		return nil
	}
	out := make([]map[string]any, 0, len(raw))
	for _, item := range raw {
		if m, ok := item.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}
