package prompt

import (
	_ "embed"
	"strings"
)

var (
	//go:embed template/classifier.txt
	classifierRaw string

	//go:embed template/transaction.txt
	transactionRaw string

	//go:embed template/budget.txt
	budgetRaw string

	//go:embed template/recurring.txt
	recurringRaw string

	//go:embed template/savings.txt
	savingsRaw string
)

// PromptSet holds loaded prompt content.
type PromptSet struct {
	Classifier  string
	Transaction string
	Budget      string
	Recurring   string
	Savings     string
}

// LoadPromptSet returns a PromptSet with trimmed prompt strings.
// This is safe to call concurrently; the embed is compile-time, and trimming is cheap.
func LoadPromptSet() PromptSet {
	return PromptSet{
		Classifier:  strings.TrimSpace(classifierRaw),
		Transaction: strings.TrimSpace(transactionRaw),
		Budget:      strings.TrimSpace(budgetRaw),
		Recurring:   strings.TrimSpace(recurringRaw),
		Savings:     strings.TrimSpace(savingsRaw),
	}
}
