package inventory

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

const DefaultAmount = 1

type MutateRequest struct {
	Code   string
	Name   string
	Action string
	// Amount defaults to DefaultAmount when nil.
	Amount *int
}

type Service struct {
	Store     *Store
	Publisher Publisher
	Metrics   *Metrics
	Log       *zap.Logger
}

func (s *Service) Fetch(ctx context.Context) (Collection, error) {
	return s.Store.Load(ctx)
}

func (s *Service) Lookup(ctx context.Context, code string) (ProductRecord, bool, error) {
	code, err := ValidateCode(code)
	if err != nil {
		return ProductRecord{}, false, err
	}

	c, err := s.Store.Load(ctx)
	if err != nil {
		return ProductRecord{}, false, err
	}
	p, ok := c.Find(code)
	return p, ok, nil
}

// Mutate validates req, applies it and returns the full collection as
// persisted. Input errors are returned before storage is touched.
func (s *Service) Mutate(ctx context.Context, req MutateRequest) (Collection, error) {
	code, action, amount, err := validateMutation(req)
	if err != nil {
		s.Metrics.observe(metricAction(req.Action), outcomeInvalid)
		return Collection{}, err
	}

	c, p, err := s.Store.Upsert(ctx, code, req.Name, action, amount)
	if err != nil {
		outcome := outcomeStorageError
		if IsInputError(err) {
			outcome = outcomeInvalid
		}
		s.Metrics.observe(string(action), outcome)
		return Collection{}, err
	}

	s.Metrics.observe(string(action), outcomeOK)
	s.Metrics.setProducts(c.Len())
	s.publish(ctx, upsertedEvent(p, action))
	return c, nil
}

func (s *Service) Delete(ctx context.Context, code string) (Collection, error) {
	code, err := ValidateCode(code)
	if err != nil {
		s.Metrics.observe(actionDelete, outcomeInvalid)
		return Collection{}, err
	}

	c, removed, err := s.Store.DeleteByCode(ctx, code)
	if err != nil {
		s.Metrics.observe(actionDelete, outcomeStorageError)
		return Collection{}, err
	}

	s.Metrics.observe(actionDelete, outcomeOK)
	s.Metrics.setProducts(c.Len())
	if removed {
		s.publish(ctx, deletedEvent(code, s.Store.now().UTC()))
	}
	return c, nil
}

func validateMutation(req MutateRequest) (string, Action, int, error) {
	code, err := ValidateCode(req.Code)
	if err != nil {
		return "", "", 0, err
	}

	action, err := ParseAction(req.Action)
	if err != nil {
		return "", "", 0, err
	}

	amount := DefaultAmount
	if req.Amount != nil {
		amount = *req.Amount
	}
	if amount < 0 {
		return "", "", 0, ErrInvalidAmount
	}

	return code, action, amount, nil
}

// publish logs failures and never fails the caller.
func (s *Service) publish(ctx context.Context, e ChangeEvent) {
	if s.Publisher == nil {
		return
	}
	if err := s.Publisher.Publish(ctx, e); err != nil {
		s.logger().Warn("publish inventory event failed",
			zap.Error(err),
			zap.String("event_type", e.Type),
			zap.String("code", e.Code),
		)
	}
}

func (s *Service) logger() *zap.Logger {
	if s.Log == nil {
		return zap.NewNop()
	}
	return s.Log
}

func metricAction(raw string) string {
	a, err := ParseAction(raw)
	if err != nil {
		return "unknown"
	}
	return string(a)
}

func IsInputError(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}
