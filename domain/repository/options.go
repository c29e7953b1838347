package repository

import "time"

// WithName filters by the "name" column.
func WithName(name string) Option {
	return WithCondition("name", name)
}

// WithEnabled filters for enabled rows (enabled = true).
func WithEnabled() Option {
	return WithCondition("enabled", true)
}

// WithKind filters by the "kind" column.
func WithKind(kind string) Option {
	return WithCondition("kind", kind)
}

// WithEntityType filters by the "entity_type" column.
func WithEntityType(entityType string) Option {
	return WithCondition("entity_type", entityType)
}

// WithContainer filters by the "container" column.
func WithContainer(container string) Option {
	return WithCondition("container", container)
}

// WithTargetType filters by the "target_type" column.
func WithTargetType(targetType string) Option {
	return WithCondition("target_type", targetType)
}

// WithRescanDueBefore filters datasources whose last scan was before the
// given time (or that were never scanned).
func WithRescanDueBefore(t time.Time) Option {
	return WithWhere("last_scanned_at IS NULL OR last_scanned_at < ?", t)
}

// WithDetectedSince filters rows detected at or after the given time.
func WithDetectedSince(t time.Time) Option {
	return WithWhere("detected_at >= ?", t)
}
