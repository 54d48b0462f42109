// Package http provides the JSON REST API: routing, request parsing,
// identity resolution and error mapping.
package http

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"dailyexpense/internal/core"
)

// MaxBodyBytes bounds every request body.
const MaxBodyBytes = 1 << 20

var (
	errInvalidBody  = core.NewValidationError("invalid JSON body")
	errBodyTooLarge = errors.New("request body too large")
)

// dateLayouts are tried in order; values without a zone are read as UTC.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// expenseRequest is the body of POST and PUT /api/expenses. Pointer fields
// distinguish an absent (or null) field from a zero value.
type expenseRequest struct {
	Amount   *core.Money `json:"amount"`
	Category *string     `json:"category"`
	Note     *string     `json:"note"`
	Date     *string     `json:"date"`
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// limitBody caps the request body so decoding fails past MaxBodyBytes.
func limitBody(limit int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		}
		c.Next()
	}
}

// bindJSON decodes the body into dst. An empty body decodes as an empty
// object so validation reports the missing fields.
func bindJSON(c *gin.Context, dst any) error {
	if c.Request.Body == nil || c.Request.Body == http.NoBody {
		return nil
	}
	err := c.ShouldBindJSON(dst)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return errBodyTooLarge
	}
	if core.IsValidation(err) {
		return err
	}
	return errInvalidBody
}

// parseDate accepts RFC 3339 timestamps, local date-times and plain dates.
func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, core.ErrInvalidDate
}

// toNewExpense converts the body of a create request. Blank category and
// date fall back to the defaults applied by core.NewExpense.Build.
func (r expenseRequest) toNewExpense() (core.NewExpense, error) {
	in := core.NewExpense{Amount: r.Amount}
	if r.Category != nil && strings.TrimSpace(*r.Category) != "" {
		cat, err := core.ParseCategory(*r.Category)
		if err != nil {
			return core.NewExpense{}, err
		}
		in.Category = cat
	}
	if r.Note != nil {
		in.Note = *r.Note
	}
	if r.Date != nil && strings.TrimSpace(*r.Date) != "" {
		d, err := parseDate(*r.Date)
		if err != nil {
			return core.NewExpense{}, err
		}
		in.Date = d
	}
	return in, nil
}

// toPatch converts the body of an update request. Present fields must be
// valid; an empty note is kept so it clears the stored note.
func (r expenseRequest) toPatch() (core.ExpensePatch, error) {
	p := core.ExpensePatch{Amount: r.Amount, Note: r.Note}
	if r.Category != nil {
		cat, err := core.ParseCategory(*r.Category)
		if err != nil {
			return core.ExpensePatch{}, err
		}
		p.Category = &cat
	}
	if r.Date != nil {
		d, err := parseDate(*r.Date)
		if err != nil {
			return core.ExpensePatch{}, err
		}
		p.Date = &d
	}
	return p, nil
}
