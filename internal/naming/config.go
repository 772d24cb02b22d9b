// Package naming derives REST resource names from entity names, including
// snake_case conversion, pluralization and collision detection.
package naming

// Config holds naming overrides.
type Config struct {
	// PluralOverrides maps a snake_case entity name to its resource name,
	// e.g. {"tipo_cliente": "tiposcliente"}.
	PluralOverrides map[string]string `mapstructure:"plural_overrides"`
}

// DefaultConfig returns a Config without overrides.
func DefaultConfig() Config {
	return Config{PluralOverrides: make(map[string]string)}
}
