package ledger

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

var (
	ErrInvalidUser   = errors.New("user id is empty")
	ErrInvalidRecord = errors.New("record is incomplete")
)

type Config struct {
	DSN string `envconfig:"DSN" split_words:"true" required:"true"`
}

// Store is the domain persistence contract injected into workers. The
// dispatcher never touches it.
type Store interface {
	CreateTransaction(ctx context.Context, tx *Transaction) error
	ListCategories(ctx context.Context, userID string) ([]Category, error)
	UpsertCategory(ctx context.Context, category *Category) error
	CreateRecurringRule(ctx context.Context, rule *RecurringRule) error
	ListRecurringRules(ctx context.Context, userID string) ([]RecurringRule, error)
	CreateSavingsPlan(ctx context.Context, plan *SavingsPlan) error
	ListSavingsPlans(ctx context.Context, userID string) ([]SavingsPlan, error)
}

// PostgresStore persists ledger records via bun over pgdriver.
type PostgresStore struct {
	db *bun.DB
}

func NewPostgresStore(cfg Config) (*PostgresStore, error) {
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, errors.New("postgres dsn is required")
	}

	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	return &PostgresStore{db: db}, nil
}

// Init creates the ledger tables when they do not exist yet.
func (s *PostgresStore) Init(ctx context.Context) error {
	models := []any{
		(*Category)(nil),
		(*Transaction)(nil),
		(*RecurringRule)(nil),
		(*SavingsPlan)(nil),
	}
	for _, model := range models {
		if _, err := s.db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) CreateTransaction(ctx context.Context, tx *Transaction) error {
	if tx == nil || strings.TrimSpace(tx.UserID) == "" {
		return ErrInvalidUser
	}
	if tx.Amount == 0 {
		return ErrInvalidRecord
	}
	if tx.OccurredAt.IsZero() {
		tx.OccurredAt = time.Now().UTC()
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.NewInsert().Model(tx).Exec(ctx)
	return err
}

func (s *PostgresStore) ListCategories(ctx context.Context, userID string) ([]Category, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrInvalidUser
	}
	var categories []Category
	err := s.db.NewSelect().
		Model(&categories).
		Where("user_id = ?", userID).
		Order("name ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return categories, nil
}

func (s *PostgresStore) UpsertCategory(ctx context.Context, category *Category) error {
	if category == nil || strings.TrimSpace(category.UserID) == "" {
		return ErrInvalidUser
	}
	if strings.TrimSpace(category.Name) == "" {
		return ErrInvalidRecord
	}
	now := time.Now().UTC()
	if category.CreatedAt.IsZero() {
		category.CreatedAt = now
	}
	category.UpdatedAt = now

	_, err := s.db.NewInsert().
		Model(category).
		On("CONFLICT (user_id, name) DO UPDATE").
		Set("allocation_pct = EXCLUDED.allocation_pct").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return err
}

func (s *PostgresStore) CreateRecurringRule(ctx context.Context, rule *RecurringRule) error {
	if rule == nil || strings.TrimSpace(rule.UserID) == "" {
		return ErrInvalidUser
	}
	if strings.TrimSpace(rule.Schedule) == "" || strings.TrimSpace(rule.Description) == "" {
		return ErrInvalidRecord
	}
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.NewInsert().Model(rule).Exec(ctx)
	return err
}

func (s *PostgresStore) ListRecurringRules(ctx context.Context, userID string) ([]RecurringRule, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrInvalidUser
	}
	var rules []RecurringRule
	err := s.db.NewSelect().
		Model(&rules).
		Where("user_id = ?", userID).
		Order("next_run_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rules, nil
}

func (s *PostgresStore) CreateSavingsPlan(ctx context.Context, plan *SavingsPlan) error {
	if plan == nil || strings.TrimSpace(plan.UserID) == "" {
		return ErrInvalidUser
	}
	if strings.TrimSpace(plan.Name) == "" || plan.TargetAmount <= 0 {
		return ErrInvalidRecord
	}
	now := time.Now().UTC()
	if plan.CreatedAt.IsZero() {
		plan.CreatedAt = now
	}
	plan.UpdatedAt = now
	_, err := s.db.NewInsert().Model(plan).Exec(ctx)
	return err
}

func (s *PostgresStore) ListSavingsPlans(ctx context.Context, userID string) ([]SavingsPlan, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrInvalidUser
	}
	var plans []SavingsPlan
	err := s.db.NewSelect().
		Model(&plans).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return plans, nil
}
