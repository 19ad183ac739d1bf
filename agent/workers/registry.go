package workers

import (
	"time"

	openaisdk "github.com/openai/openai-go"
	contractx "github.com/pocketsage/pocketsage/agent/contract"
	ledgerx "github.com/pocketsage/pocketsage/agent/ledger"
	llmx "github.com/pocketsage/pocketsage/agent/llm"
	promptx "github.com/pocketsage/pocketsage/agent/prompt"
)

// Descriptors is the static capability table fed to the classifier.
// Fixed at deployment time; never mutated at runtime.
var Descriptors = []contractx.WorkerDescriptor{
	{
		Name:        contractx.WorkerTransactionClassifier,
		Description: "Records and categorizes a spending or income transaction the user mentions.",
	},
	{
		Name:        contractx.WorkerBudgetPlanner,
		Description: "Creates or adjusts budget categories and their percentage allocations.",
	},
	{
		Name:        contractx.WorkerRecurringScheduler,
		Description: "Sets up repeating transactions such as subscriptions, bills, and salaries.",
	},
	{
		Name:        contractx.WorkerSavingsPlanner,
		Description: "Plans savings goals with target amounts and monthly contributions.",
	},
}

type registryImpl struct {
	workers map[contractx.WorkerName]contractx.Worker
}

func (r *registryImpl) Lookup(name contractx.WorkerName) (contractx.Worker, bool) {
	w, ok := r.workers[name]
	return w, ok
}

func (r *registryImpl) Catalog() []contractx.WorkerDescriptor {
	return Descriptors
}

// NewRegistry builds the fixed worker table. Every worker shares the
// OpenRouter client and the ledger store; models and temperatures are
// resolved per role from the LLM config.
func NewRegistry(
	client *openaisdk.Client,
	cfg llmx.Config,
	store ledgerx.Store,
) (contractx.Registry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	prompts := promptx.LoadPromptSet()

	txCore, err := newModelCore(client, cfg.For(llmx.RoleTransaction), prompts.Transaction, contractx.WorkerTransactionClassifier)
	if err != nil {
		return nil, err
	}
	budgetCore, err := newModelCore(client, cfg.For(llmx.RoleBudget), prompts.Budget, contractx.WorkerBudgetPlanner)
	if err != nil {
		return nil, err
	}
	recurringCore, err := newModelCore(client, cfg.For(llmx.RoleRecurring), prompts.Recurring, contractx.WorkerRecurringScheduler)
	if err != nil {
		return nil, err
	}
	savingsCore, err := newModelCore(client, cfg.For(llmx.RoleSavings), prompts.Savings, contractx.WorkerSavingsPlanner)
	if err != nil {
		return nil, err
	}

	return &registryImpl{
		workers: map[contractx.WorkerName]contractx.Worker{
			contractx.WorkerTransactionClassifier: &TransactionClassifier{core: txCore, ledger: store, now: time.Now},
			contractx.WorkerBudgetPlanner:         &BudgetPlanner{core: budgetCore, ledger: store, now: time.Now},
			contractx.WorkerRecurringScheduler:    &RecurringScheduler{core: recurringCore, ledger: store, now: time.Now},
			contractx.WorkerSavingsPlanner:        &SavingsPlanner{core: savingsCore, ledger: store, now: time.Now},
		},
	}, nil
}
