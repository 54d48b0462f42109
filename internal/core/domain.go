package core

import (
	"errors"
	"slices"
	"strings"
	"time"
	"unicode/utf8"
)

// MaxNoteLength is the longest note accepted, counted in characters.
const MaxNoteLength = 200

const (
	Food          Category = "Food"
	Travel        Category = "Travel"
	Hostel        Category = "Hostel"
	Snacks        Category = "Snacks"
	Entertainment Category = "Entertainment"
	Education     Category = "Education"
	Study         Category = "Study"
	Personal      Category = "Personal"
	Others        Category = "Others"
)

// Categories lists every accepted category in display order.
var Categories = []Category{Food, Travel, Hostel, Snacks, Entertainment, Education, Study, Personal, Others}

type (
	Category string

	// Expense is a single spending entry. ID, Owner and CreatedAt are set by
	// the store and never change afterwards.
	Expense struct {
		ID        string
		Owner     string
		Amount    Money
		Category  Category
		Note      string
		Date      time.Time
		CreatedAt time.Time
	}

	// NewExpense carries the caller-supplied fields of an expense to create.
	// A nil Amount means the amount was not supplied.
	NewExpense struct {
		Amount   *Money
		Category Category
		Note     string
		Date     time.Time
	}

	// ExpensePatch is a partial update. Nil fields are left untouched; a
	// non-nil empty Note clears the note.
	ExpensePatch struct {
		Amount   *Money
		Category *Category
		Note     *string
		Date     *time.Time
	}

	// CategoryTotal is one row of the per-category summary.
	CategoryTotal struct {
		Category Category
		Total    Money
	}
)

// ValidationError marks input that was rejected before reaching storage.
type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string { return e.msg }

// NewValidationError creates a ValidationError with a user-facing message.
func NewValidationError(msg string) *ValidationError {
	return &ValidationError{msg: msg}
}

var (
	ErrMissingAmount   = NewValidationError("amount is required")
	ErrInvalidAmount   = NewValidationError("amount must be a non-negative number")
	ErrAmountTooLarge  = NewValidationError("amount must be less than 10000000")
	ErrInvalidCategory = NewValidationError("category must be one of " + categoryList())
	ErrNoteTooLong     = NewValidationError("note too long (max 200 characters)")
	ErrInvalidDate     = NewValidationError("invalid date")
	ErrMissingOwner    = NewValidationError("owner is required")

	ErrExpenseNotFound = errors.New("expense not found")
)

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// ParseCategory matches s case-insensitively against the known categories.
func ParseCategory(s string) (Category, error) {
	s = strings.TrimSpace(s)
	for _, c := range Categories {
		if strings.EqualFold(s, string(c)) {
			return c, nil
		}
	}
	return "", ErrInvalidCategory
}

func (c Category) IsValid() bool {
	return slices.Contains(Categories, c)
}

func (c Category) String() string { return string(c) }

func categoryList() string {
	names := make([]string, len(Categories))
	for i, c := range Categories {
		names[i] = string(c)
	}
	return strings.Join(names, ", ")
}

// NormalizeNote trims surrounding whitespace.
func NormalizeNote(note string) string {
	return strings.TrimSpace(note)
}

func validateNote(note string) error {
	if utf8.RuneCountInString(note) > MaxNoteLength {
		return ErrNoteTooLong
	}
	return nil
}

func (e Expense) Validate() error {
	if strings.TrimSpace(e.Owner) == "" {
		return ErrMissingOwner
	}
	if err := e.Amount.Validate(); err != nil {
		return err
	}
	if !e.Category.IsValid() {
		return ErrInvalidCategory
	}
	if err := validateNote(e.Note); err != nil {
		return err
	}
	if e.Date.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// Build turns the input into an Expense owned by owner, applying defaults:
// category Others and date now when absent. ID and CreatedAt are left for
// the store.
func (n NewExpense) Build(owner string, now time.Time) (Expense, error) {
	if n.Amount == nil {
		return Expense{}, ErrMissingAmount
	}
	e := Expense{
		Owner:    strings.TrimSpace(owner),
		Amount:   *n.Amount,
		Category: n.Category,
		Note:     NormalizeNote(n.Note),
		Date:     n.Date,
	}
	if e.Category == "" {
		e.Category = Others
	}
	if e.Date.IsZero() {
		e.Date = now
	}
	if err := e.Validate(); err != nil {
		return Expense{}, err
	}
	return e, nil
}

// Normalize trims the note in place and validates every present field.
func (p *ExpensePatch) Normalize() error {
	if p.Amount != nil {
		if err := p.Amount.Validate(); err != nil {
			return err
		}
	}
	if p.Category != nil && !p.Category.IsValid() {
		return ErrInvalidCategory
	}
	if p.Note != nil {
		note := NormalizeNote(*p.Note)
		if err := validateNote(note); err != nil {
			return err
		}
		p.Note = &note
	}
	if p.Date != nil && p.Date.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// IsEmpty reports whether the patch changes nothing.
func (p ExpensePatch) IsEmpty() bool {
	return p.Amount == nil && p.Category == nil && p.Note == nil && p.Date == nil
}

// Apply returns e with every present patch field replaced.
func (p ExpensePatch) Apply(e Expense) Expense {
	if p.Amount != nil {
		e.Amount = *p.Amount
	}
	if p.Category != nil {
		e.Category = *p.Category
	}
	if p.Note != nil {
		e.Note = *p.Note
	}
	if p.Date != nil {
		e.Date = *p.Date
	}
	return e
}

// SortTotals orders totals by category display order. Summaries are
// unordered by contract; this only makes output stable.
func SortTotals(totals []CategoryTotal) {
	slices.SortFunc(totals, func(a, b CategoryTotal) int {
		return slices.Index(Categories, a.Category) - slices.Index(Categories, b.Category)
	})
}
