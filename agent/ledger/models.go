package ledger

import (
	"time"

	"github.com/uptrace/bun"
)

// Category is a budget category with a percentage allocation of income.
type Category struct {
	bun.BaseModel `bun:"table:categories,alias:c"`

	ID            string    `bun:"id,pk" json:"id"`
	UserID        string    `bun:"user_id,notnull" json:"user_id"`
	Name          string    `bun:"name,notnull" json:"name"`
	AllocationPct float64   `bun:"allocation_pct" json:"allocation_pct"`
	CreatedAt     time.Time `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt     time.Time `bun:"updated_at,notnull" json:"updated_at"`
}

// Transaction is one recorded spend or income event.
type Transaction struct {
	bun.BaseModel `bun:"table:transactions,alias:t"`

	ID         string    `bun:"id,pk" json:"id"`
	UserID     string    `bun:"user_id,notnull" json:"user_id"`
	Category   string    `bun:"category" json:"category"`
	Merchant   string    `bun:"merchant" json:"merchant"`
	Amount     float64   `bun:"amount,notnull" json:"amount"`
	Note       string    `bun:"note" json:"note,omitempty"`
	OccurredAt time.Time `bun:"occurred_at,notnull" json:"occurred_at"`
	CreatedAt  time.Time `bun:"created_at,notnull" json:"created_at"`
}

// RecurringRule is a repeating transaction described by a cron schedule.
type RecurringRule struct {
	bun.BaseModel `bun:"table:recurring_rules,alias:r"`

	ID          string    `bun:"id,pk" json:"id"`
	UserID      string    `bun:"user_id,notnull" json:"user_id"`
	Description string    `bun:"description,notnull" json:"description"`
	Amount      float64   `bun:"amount,notnull" json:"amount"`
	Schedule    string    `bun:"schedule,notnull" json:"schedule"`
	NextRunAt   time.Time `bun:"next_run_at,notnull" json:"next_run_at"`
	CreatedAt   time.Time `bun:"created_at,notnull" json:"created_at"`
}

// SavingsPlan is a goal with a target amount and a monthly contribution.
type SavingsPlan struct {
	bun.BaseModel `bun:"table:savings_plans,alias:s"`

	ID                  string    `bun:"id,pk" json:"id"`
	UserID              string    `bun:"user_id,notnull" json:"user_id"`
	Name                string    `bun:"name,notnull" json:"name"`
	TargetAmount        float64   `bun:"target_amount,notnull" json:"target_amount"`
	MonthlyContribution float64   `bun:"monthly_contribution" json:"monthly_contribution"`
	SavedAmount         float64   `bun:"saved_amount" json:"saved_amount"`
	CreatedAt           time.Time `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt           time.Time `bun:"updated_at,notnull" json:"updated_at"`
}
