package core

import (
	"sort"
	"strings"
)

// MinDescriptionLen is the shortest accepted description after trimming.
const MinDescriptionLen = 3

type Transaction struct {
	ID          string          `json:"id"`
	Amount      Money           `json:"amount"`
	Type        TransactionType `json:"type"`
	Category    string          `json:"category"`
	Description string          `json:"description"`
	Date        Date            `json:"date"`
	Notes       string          `json:"notes,omitempty"`
}

// TransactionInput is the raw form submission before validation.
type TransactionInput struct {
	Amount      string
	Type        string
	Category    string
	Description string
	Date        string
	Notes       string
}

// CategoryChecker reports whether a category id belongs to the set for a type.
type CategoryChecker interface {
	Valid(t TransactionType, category string) bool
}

// ValidationErrors maps form field names to messages for inline display.
type ValidationErrors map[string]string

func (v ValidationErrors) Error() string {
	fields := make([]string, 0, len(v))
	for f := range v {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, f+": "+v[f])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Has reports whether field has an error.
func (v ValidationErrors) Has(field string) bool {
	_, ok := v[field]
	return ok
}

// Parse validates every field and returns the typed transaction (without id)
// or a ValidationErrors holding one message per bad field.
func (in TransactionInput) Parse(categories CategoryChecker) (Transaction, error) {
	errs := ValidationErrors{}
	var tx Transaction

	t, err := ParseTransactionType(in.Type)
	if err != nil {
		errs["type"] = "Type is required"
	}
	tx.Type = t

	amount, err := ParseAmount(in.Amount)
	if err != nil {
		if strings.TrimSpace(in.Amount) == "" {
			errs["amount"] = "Amount is required"
		} else {
			errs["amount"] = "Enter a valid amount (minimum 0.01, at most 2 decimals)"
		}
	}
	tx.Amount = amount

	desc := strings.TrimSpace(in.Description)
	switch {
	case desc == "":
		errs["description"] = "Description is required"
	case len([]rune(desc)) < MinDescriptionLen:
		errs["description"] = "Description must be at least 3 characters"
	}
	tx.Description = desc

	cat := strings.TrimSpace(in.Category)
	switch {
	case cat == "":
		errs["category"] = "Category is required"
	case t.Valid() && !categories.Valid(t, cat):
		errs["category"] = "Category does not match the transaction type"
	}
	tx.Category = cat

	if strings.TrimSpace(in.Date) == "" {
		errs["date"] = "Date is required"
	} else if d, err := ParseDate(in.Date); err != nil {
		errs["date"] = "Enter a valid date"
	} else {
		tx.Date = d
	}

	tx.Notes = strings.TrimSpace(in.Notes)

	if len(errs) > 0 {
		return Transaction{}, errs
	}
	return tx, nil
}

// Validate checks an already-typed transaction, e.g. one loaded for editing.
func (t Transaction) Validate(categories CategoryChecker) error {
	if !t.Type.Valid() {
		return ErrInvalidType
	}
	if err := t.Amount.Validate(); err != nil {
		return err
	}
	if len([]rune(strings.TrimSpace(t.Description))) < MinDescriptionLen {
		return ErrInvalidDescription
	}
	if !categories.Valid(t.Type, t.Category) {
		return ErrInvalidCategory
	}
	return t.Date.Validate()
}

// Input converts back to the form representation for pre-filling the edit page.
func (t Transaction) Input() TransactionInput {
	return TransactionInput{
		Amount:      t.Amount.String(),
		Type:        string(t.Type),
		Category:    t.Category,
		Description: t.Description,
		Date:        t.Date.String(),
		Notes:       t.Notes,
	}
}

// RemoveTransaction drops the first entry whose id matches and reports whether
// anything was removed. The input slice is not modified.
func RemoveTransaction(list []Transaction, id string) ([]Transaction, bool) {
	for i := range list {
		if list[i].ID == id {
			out := make([]Transaction, 0, len(list)-1)
			out = append(out, list[:i]...)
			return append(out, list[i+1:]...), true
		}
	}
	return list, false
}
