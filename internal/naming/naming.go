package naming

import (
	"log/slog"
	"strings"
	"unicode"

	"github.com/jinzhu/inflection"
)

// Namer converts entity names to REST resource names.
type Namer struct {
	config   Config
	logger   *slog.Logger
	resolver *CollisionResolver
}

// New creates a Namer with the given configuration
func New(cfg Config, logger *slog.Logger) *Namer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Namer{
		config:   cfg,
		logger:   logger,
		resolver: NewCollisionResolver(logger),
	}
}

// Default returns a Namer with default configuration
func Default() *Namer {
	return New(DefaultConfig(), nil)
}

// Reset clears registered resource names.
func (n *Namer) Reset() {
	n.resolver = NewCollisionResolver(n.logger)
}

// ResourceName converts an entity name to its resource name: the plural of
// its snake_case form.
// Example: "TipoCliente" -> "tipo_clientes"
func (n *Namer) ResourceName(entityName string) string {
	return n.Pluralize(ToSnakeCase(entityName))
}

// Pluralize returns the configured override for word, or its English plural.
func (n *Namer) Pluralize(word string) string {
	if plural, ok := n.config.PluralOverrides[word]; ok {
		return plural
	}
	return inflection.Plural(word)
}

// RegisterResource returns the resource name of entityName, suffixed when
// another entity already uses it.
func (n *Namer) RegisterResource(entityName string) string {
	return n.resolver.Register(n.ResourceName(entityName), "entity:"+entityName)
}

// ToSnakeCase converts PascalCase or camelCase to snake_case.
// Example: "TipoCliente" -> "tipo_cliente", "HTTPServer" -> "http_server"
func ToSnakeCase(s string) string {
	runes := []rune(s)
	var b strings.Builder
	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 && runes[i-1] != '_' {
				prevLower := unicode.IsLower(runes[i-1]) || unicode.IsDigit(runes[i-1])
				nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
				if prevLower || (unicode.IsUpper(runes[i-1]) && nextLower) {
					b.WriteByte('_')
				}
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
