package service

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"

	"github.com/piimap/piimap/domain/repository"
	"github.com/piimap/piimap/domain/rule"
	"github.com/piimap/piimap/domain/task"
)

// Rules manages the persisted rule set and triggers recognizer reloads
// after mutations.
type Rules struct {
	store  rule.Store
	queue  *Queue
	logger *slog.Logger
}

// NewRules creates a new Rules service.
func NewRules(store rule.Store, queue *Queue, logger *slog.Logger) *Rules {
	return &Rules{
		store:  store,
		queue:  queue,
		logger: logger,
	}
}

// Add validates and persists a rule, then queues a recognizer reload.
func (s *Rules) Add(ctx context.Context, r rule.Rule) (rule.Rule, error) {
	if err := validateRule(r); err != nil {
		return rule.Rule{}, err
	}

	saved, err := s.store.Save(ctx, r)
	if err != nil {
		return rule.Rule{}, fmt.Errorf("save rule: %w", err)
	}

	s.triggerReload(ctx)
	s.logger.Info("rule added",
		slog.Int64("rule_id", saved.ID()),
		slog.String("name", saved.Name()),
		slog.String("kind", string(saved.Kind())),
	)
	return saved, nil
}

// Get returns a rule by ID.
func (s *Rules) Get(ctx context.Context, id int64) (rule.Rule, error) {
	return s.store.FindOne(ctx, repository.WithID(id))
}

// List returns all persisted rules.
func (s *Rules) List(ctx context.Context, opts ...repository.Option) ([]rule.Rule, error) {
	return s.store.Find(ctx, opts...)
}

// SetEnabled toggles a rule and queues a recognizer reload.
func (s *Rules) SetEnabled(ctx context.Context, id int64, enabled bool) (rule.Rule, error) {
	r, err := s.store.FindOne(ctx, repository.WithID(id))
	if err != nil {
		return rule.Rule{}, fmt.Errorf("get rule: %w", err)
	}

	saved, err := s.store.Save(ctx, r.WithEnabled(enabled))
	if err != nil {
		return rule.Rule{}, fmt.Errorf("save rule: %w", err)
	}

	s.triggerReload(ctx)
	s.logger.Info("rule toggled",
		slog.Int64("rule_id", id),
		slog.Bool("enabled", enabled),
	)
	return saved, nil
}

// Delete removes a rule and queues a recognizer reload.
func (s *Rules) Delete(ctx context.Context, id int64) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete rule: %w", err)
	}
	s.triggerReload(ctx)
	s.logger.Info("rule deleted", slog.Int64("rule_id", id))
	return nil
}

func (s *Rules) triggerReload(ctx context.Context) {
	operations := task.PrescribedOperations{}.ReloadRules()
	if err := s.queue.EnqueueOperations(ctx, operations, task.PriorityCritical, nil); err != nil {
		s.logger.Warn("failed to enqueue rule reload", slog.String("error", err.Error()))
	}
}

// validateRule rejects rules the engine could not load. The same checks run
// again at load time, where failures downgrade to skips.
func validateRule(r rule.Rule) error {
	if r.Name() == "" {
		return &ConfigurationError{Subject: "rule", Err: fmt.Errorf("name is required")}
	}
	if _, err := rule.ParseKind(string(r.Kind())); err != nil {
		return &ConfigurationError{Subject: r.Name(), Err: err}
	}
	if r.Kind() == rule.KindPattern {
		if r.EntityType() == "" {
			return &ConfigurationError{Subject: r.Name(), Err: fmt.Errorf("pattern rule requires an entity type")}
		}
		if _, err := regexp.Compile(r.Pattern()); err != nil {
			return &ConfigurationError{Subject: r.Name(), Err: err}
		}
	}
	return nil
}
