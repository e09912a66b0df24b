package apiclient

import (
	"errors"
	"fmt"

	"expenso/internal/catalog"
	"expenso/internal/core"
)

// AuthResponse is returned by login and register.
type AuthResponse struct {
	User  core.User `json:"user"`
	Token string    `json:"token"`
}

func (r *AuthResponse) validate() error {
	if r.Token == "" {
		return errors.New("missing token")
	}
	if r.User.Email == "" {
		return errors.New("missing user email")
	}
	return nil
}

type TokenResponse struct {
	Token string `json:"token"`
}

func (r *TokenResponse) validate() error {
	if r.Token == "" {
		return errors.New("missing token")
	}
	return nil
}

type MessageResponse struct {
	Message string `json:"message"`
}

type UserResponse struct {
	User core.User `json:"user"`
}

func (r *UserResponse) validate() error {
	if r.User.Email == "" {
		return errors.New("missing user email")
	}
	return nil
}

// TransactionList is one page of GET /transactions.
type TransactionList struct {
	Items      []core.Transaction `json:"items"`
	Pagination core.Pagination    `json:"pagination"`
}

func (r *TransactionList) validate() error {
	if r.Items == nil {
		r.Items = []core.Transaction{}
	}
	for i := range r.Items {
		if err := validateTransaction(&r.Items[i]); err != nil {
			return fmt.Errorf("items[%d]: %w", i, err)
		}
	}
	p := &r.Pagination
	if p.Total < 0 || p.Limit < 0 || p.Page < 0 {
		return errors.New("negative pagination values")
	}
	if p.TotalPages == 0 && p.Total > 0 {
		p.TotalPages = core.TotalPagesFor(p.Total, p.Limit)
	}
	return nil
}

type transactionEnvelope struct {
	core.Transaction
}

func (r *transactionEnvelope) validate() error {
	return validateTransaction(&r.Transaction)
}

func validateTransaction(t *core.Transaction) error {
	if t.ID == "" {
		return errors.New("transaction without id")
	}
	if !t.Type.Valid() {
		return fmt.Errorf("transaction %s has type %q", t.ID, t.Type)
	}
	return nil
}

type dashboardEnvelope struct {
	core.DashboardData
}

func (r *dashboardEnvelope) validate() error {
	for i := range r.RecentTransactions {
		if err := validateTransaction(&r.RecentTransactions[i]); err != nil {
			return fmt.Errorf("recentTransactions[%d]: %w", i, err)
		}
	}
	r.DashboardData = r.DashboardData.Normalize()
	return nil
}

type reportEnvelope struct {
	core.Report
}

func (r *reportEnvelope) validate() error {
	r.Report = r.Report.Normalize()
	return nil
}

type categoryList []catalog.Category

func (r *categoryList) validate() error {
	for i, c := range *r {
		if c.ID == "" {
			return fmt.Errorf("categories[%d]: missing id", i)
		}
		if !c.Type.Valid() {
			return fmt.Errorf("categories[%d]: type %q", i, c.Type)
		}
	}
	return nil
}

// TransactionPayload is the body of create and update calls.
type TransactionPayload struct {
	Amount      core.Money           `json:"amount"`
	Type        core.TransactionType `json:"type"`
	Category    string               `json:"category"`
	Description string               `json:"description"`
	Date        core.Date            `json:"date"`
	Notes       string               `json:"notes,omitempty"`
}

func PayloadFrom(t core.Transaction) TransactionPayload {
	return TransactionPayload{
		Amount:      t.Amount,
		Type:        t.Type,
		Category:    t.Category,
		Description: t.Description,
		Date:        t.Date,
		Notes:       t.Notes,
	}
}

type ProfileUpdate struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type PasswordChange struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}
