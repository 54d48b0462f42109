package http

import (
	"time"

	"dailyexpense/internal/core"
)

// expenseResponse is the wire form of an expense. The document-style _id
// and user keys are what existing clients read.
type expenseResponse struct {
	ID        string        `json:"_id"`
	Owner     string        `json:"user"`
	Amount    core.Money    `json:"amount"`
	Category  core.Category `json:"category"`
	Note      string        `json:"note"`
	Date      time.Time     `json:"date"`
	CreatedAt time.Time     `json:"createdAt"`
}

// totalResponse is one summary row, shaped like a $group result.
type totalResponse struct {
	ID          core.Category `json:"_id"`
	Category    core.Category `json:"category"`
	TotalAmount core.Money    `json:"totalAmount"`
}

type messageResponse struct {
	Msg string `json:"msg"`
}

type healthResponse struct {
	Status   string  `json:"status"`
	DB       string  `json:"db"`
	Backend  string  `json:"backend"`
	Identity string  `json:"identity"`
	Env      string  `json:"env"`
	Uptime   float64 `json:"uptime"`
	DBError  string  `json:"dbError,omitempty"`
}

func newExpenseResponse(e core.Expense) expenseResponse {
	return expenseResponse{
		ID:        e.ID,
		Owner:     e.Owner,
		Amount:    e.Amount,
		Category:  e.Category,
		Note:      e.Note,
		Date:      e.Date.UTC(),
		CreatedAt: e.CreatedAt.UTC(),
	}
}

func newExpenseList(expenses []core.Expense) []expenseResponse {
	out := make([]expenseResponse, len(expenses))
	for i, e := range expenses {
		out[i] = newExpenseResponse(e)
	}
	return out
}

func newTotalList(totals []core.CategoryTotal) []totalResponse {
	out := make([]totalResponse, len(totals))
	for i, t := range totals {
		out[i] = totalResponse{ID: t.Category, Category: t.Category, TotalAmount: t.Total}
	}
	return out
}
