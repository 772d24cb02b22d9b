package naming

import (
	"fmt"
	"log/slog"
)

// CollisionResolver tracks registered names and resolves collisions
// by applying numeric suffixes when duplicates are detected.
type CollisionResolver struct {
	seen   map[string]string // resource name → source entity
	logger *slog.Logger
}

// NewCollisionResolver creates a new collision resolver.
func NewCollisionResolver(logger *slog.Logger) *CollisionResolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &CollisionResolver{
		seen:   make(map[string]string),
		logger: logger,
	}
}

// Register records name for source and returns the resolved name. A name
// already taken by another source gets the next free numeric suffix.
func (c *CollisionResolver) Register(name, source string) string {
	existing, exists := c.seen[name]
	if !exists {
		c.seen[name] = source
		return name
	}

	c.logger.Warn("naming collision detected, applying suffix",
		slog.String("name", name),
		slog.String("existing_source", existing),
		slog.String("new_source", source),
	)
	for i := 2; ; i++ {
		suffixed := fmt.Sprintf("%s%d", name, i)
		if _, taken := c.seen[suffixed]; !taken {
			c.seen[suffixed] = source
			return suffixed
		}
	}
}

// Exists reports whether name is registered.
func (c *CollisionResolver) Exists(name string) bool {
	_, ok := c.seen[name]
	return ok
}
