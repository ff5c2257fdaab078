package closure

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var ErrClosureNotFound = errors.New("closure not found")

// Closure is a persisted reconciliation of one drawer on one business day.
type Closure struct {
	ID           string
	BusinessDate time.Time
	Note         string
	Input        Input
	Summary      Summary
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Store persists closures. Get returns ErrClosureNotFound for unknown ids.
type Store interface {
	CreateClosure(ctx context.Context, c Closure) error
	UpdateClosure(ctx context.Context, c Closure) error
	GetClosure(ctx context.Context, id string) (Closure, error)
	ListClosures(ctx context.Context) ([]Closure, error)
}

type Service struct {
	store Store
	now   func() time.Time
}

func NewService(store Store) *Service {
	return &Service{store: store, now: time.Now}
}

// Open reconciles in and persists the result.
func (s *Service) Open(ctx context.Context, businessDate time.Time, note string, in Input) (Closure, error) {
	now := s.now()
	if businessDate.IsZero() {
		businessDate = now
	}
	c := Closure{
		ID:           uuid.NewString(),
		BusinessDate: businessDate,
		Note:         note,
		Input:        in,
		Summary:      Reconcile(in),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.CreateClosure(ctx, c); err != nil {
		return Closure{}, fmt.Errorf("create closure: %w", err)
	}
	return c, nil
}

func (s *Service) Get(ctx context.Context, id string) (Closure, error) {
	return s.store.GetClosure(ctx, id)
}

// List returns stored closures, latest business date first.
func (s *Service) List(ctx context.Context) ([]Closure, error) {
	return s.store.ListClosures(ctx)
}

// AddExpense appends an expense to a stored closure and recomputes it.
func (s *Service) AddExpense(ctx context.Context, id string, e Expense) (Closure, error) {
	c, err := s.store.GetClosure(ctx, id)
	if err != nil {
		return Closure{}, err
	}
	c.Input, c.Summary = AddExpense(c.Input, e)
	c.UpdatedAt = s.now()
	if err := s.store.UpdateClosure(ctx, c); err != nil {
		return Closure{}, fmt.Errorf("update closure: %w", err)
	}
	return c, nil
}
