package llm

import (
	"fmt"
	"strings"
	"time"

	contractx "github.com/pocketsage/pocketsage/agent/contract"
)

// Role names a consumer of the language capability for per-role model
// and temperature overrides.
type Role string

const (
	RoleClassifier  Role = "classifier"
	RoleTransaction Role = Role(contractx.WorkerTransactionClassifier)
	RoleBudget      Role = Role(contractx.WorkerBudgetPlanner)
	RoleRecurring   Role = Role(contractx.WorkerRecurringScheduler)
	RoleSavings     Role = Role(contractx.WorkerSavingsPlanner)
)

type Config struct {
	Model              string        `envconfig:"MODEL" split_words:"true" required:"true"`
	MaxCompletionToken int           `envconfig:"MAX_COMPLETION_TOKEN" split_words:"true" default:"2000"`
	Temperature        float64       `envconfig:"TEMPERATURE" split_words:"true" default:"0.2"`
	Timeout            time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"30s"`

	ClassifierModel         string  `envconfig:"CLASSIFIER_MODEL" split_words:"true"`
	TransactionModel        string  `envconfig:"TRANSACTION_MODEL" split_words:"true"`
	BudgetModel             string  `envconfig:"BUDGET_MODEL" split_words:"true"`
	RecurringModel          string  `envconfig:"RECURRING_MODEL" split_words:"true"`
	SavingsModel            string  `envconfig:"SAVINGS_MODEL" split_words:"true"`
	ClassifierTemperature   float64 `envconfig:"CLASSIFIER_TEMPERATURE" split_words:"true" default:"-1"`
	TransactionTemperature  float64 `envconfig:"TRANSACTION_TEMPERATURE" split_words:"true" default:"-1"`
	BudgetTemperature       float64 `envconfig:"BUDGET_TEMPERATURE" split_words:"true" default:"-1"`
	RecurringTemperature    float64 `envconfig:"RECURRING_TEMPERATURE" split_words:"true" default:"-1"`
	SavingsTemperature      float64 `envconfig:"SAVINGS_TEMPERATURE" split_words:"true" default:"-1"`
}

// Settings is the resolved model configuration for one role.
type Settings struct {
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Model) == "" {
		return fmt.Errorf("%w: default model is required", contractx.ErrValidation)
	}
	return nil
}

// For resolves the model settings for a role, falling back to the
// defaults when no override is set.
func (c Config) For(role Role) Settings {
	modelName := strings.TrimSpace(c.Model)
	temp := c.Temperature

	var override string
	var tempOverride float64
	switch role {
	case RoleClassifier:
		override, tempOverride = c.ClassifierModel, c.ClassifierTemperature
	case RoleTransaction:
		override, tempOverride = c.TransactionModel, c.TransactionTemperature
	case RoleBudget:
		override, tempOverride = c.BudgetModel, c.BudgetTemperature
	case RoleRecurring:
		override, tempOverride = c.RecurringModel, c.RecurringTemperature
	case RoleSavings:
		override, tempOverride = c.SavingsModel, c.SavingsTemperature
	default:
		tempOverride = -1
	}

	if v := strings.TrimSpace(override); v != "" {
		modelName = v
	}
	if tempOverride >= 0 {
		temp = tempOverride
	}

	return Settings{
		Model:       modelName,
		Temperature: temp,
		MaxTokens:   c.MaxCompletionToken,
		Timeout:     c.Timeout,
	}
}
