// Package validation holds the field rules for budget requests. Rules run in a
// fixed order and stop at the first failure, which is returned as a classified
// validation error.
//
// Request bodies are decoded into Fields so that presence can be told apart
// from zero values: a key that is absent or null was not provided, while
// "amount": 0 was provided and is rejected.
package validation

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/tbourn/go-budget-api/internal/apperr"
	"github.com/tbourn/go-budget-api/internal/domain"
)

// Messages returned to clients.
const (
	MsgIDNotNumber       = "Budget ID must be a number"
	MsgMissingFields     = "Please provide name, amount, and category"
	MsgAmountPositive    = "Amount must be a positive number"
	MsgNameTooShort      = "Budget name must be at least 3 characters"
	MsgNameExists        = "Budget with this name already exists"
	MsgNameNotString     = "Budget name must be a string"
	MsgCategoryNotString = "Budget category must be a string"
)

// Amounts are stored as DECIMAL(20,8): below 10^12 with at most eight
// fractional digits.
const (
	amountRule  = "gt=0,lt=1000000000000"
	amountScale = 8
)

// createInput carries the decoded create fields through the validator.
type createInput struct {
	Amount float64 `validate:"gt=0,lt=1000000000000"`
	Name   string  `validate:"min=3"`
}

var validate = validator.New()

// NotFoundMessage is the message for an id with no matching budget.
func NotFoundMessage(id string) string {
	return fmt.Sprintf("Budget with ID %s not found", id)
}

// ParseID parses a path identifier. Input that is not a number is a
// validation error; a finite number that is not an integer can never match a
// budget and is reported as not found.
func ParseID(raw string) (int64, error) {
	s := strings.TrimSpace(raw)
	if id, err := strconv.ParseInt(s, 10, 64); err == nil {
		return id, nil
	}
	if strings.ContainsAny(s, "xXpP_") {
		return 0, apperr.Validation(MsgIDNotNumber)
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, apperr.Validation(MsgIDNotNumber)
	}
	if f != math.Trunc(f) || f >= math.MaxInt64 || f < math.MinInt64 {
		return 0, apperr.NotFound(NotFoundMessage(raw))
	}
	return int64(f), nil
}

// Fields is a decoded JSON object body keyed by field name.
type Fields map[string]json.RawMessage

// DecodeBody decodes a request body. An empty body is an empty object; any
// other input that is not a JSON object is a body parse error.
func DecodeBody(raw []byte) (Fields, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return Fields{}, nil
	}
	var f Fields
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, apperr.BodyParse(err)
	}
	if f == nil {
		f = Fields{}
	}
	return f, nil
}

// provided returns the raw value of a field that is present and not null.
func (f Fields) provided(name string) (json.RawMessage, bool) {
	raw, ok := f[name]
	if !ok {
		return nil, false
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, false
	}
	return raw, true
}

// filled is provided, with the empty string also counting as missing.
func (f Fields) filled(name string) bool {
	raw, ok := f.provided(name)
	return ok && !bytes.Equal(raw, []byte(`""`))
}

// Create checks a creation body and returns the budget to insert. Name
// uniqueness is enforced by the store when the budget is inserted.
func Create(f Fields) (domain.NewBudget, error) {
	if !f.filled("name") || !f.filled("amount") || !f.filled("category") {
		return domain.NewBudget{}, apperr.Validation(MsgMissingFields)
	}

	rawAmount, _ := f.provided("amount")
	approx, ok := numberValue(rawAmount)
	if !ok {
		return domain.NewBudget{}, apperr.Validation(MsgAmountPositive)
	}
	rawName, _ := f.provided("name")
	name, nameOK := asString(rawName)

	inputErr := validate.Struct(createInput{Amount: approx, Name: name})
	var verrs validator.ValidationErrors
	if errors.As(inputErr, &verrs) {
		for _, fe := range verrs {
			if fe.Field() == "Amount" {
				return domain.NewBudget{}, apperr.Validation(MsgAmountPositive)
			}
		}
	}
	amount, err := exactAmount(rawAmount)
	if err != nil {
		return domain.NewBudget{}, err
	}
	if inputErr != nil || !nameOK {
		return domain.NewBudget{}, apperr.Validation(MsgNameTooShort)
	}

	rawCategory, _ := f.provided("category")
	category, ok := asString(rawCategory)
	if !ok {
		return domain.NewBudget{}, apperr.Validation(MsgCategoryNotString)
	}

	return domain.NewBudget{Name: name, Amount: amount, Category: category}, nil
}

// Update checks an update body and returns the patch of provided fields.
// Only the amount is rule-checked; name and category must merely be strings.
func Update(f Fields) (domain.BudgetPatch, error) {
	var p domain.BudgetPatch

	if raw, ok := f.provided("amount"); ok {
		amount, err := positiveAmount(raw)
		if err != nil {
			return domain.BudgetPatch{}, err
		}
		p.Amount = &amount
	}
	if raw, ok := f.provided("name"); ok {
		name, ok := asString(raw)
		if !ok {
			return domain.BudgetPatch{}, apperr.Validation(MsgNameNotString)
		}
		p.Name = &name
	}
	if raw, ok := f.provided("category"); ok {
		category, ok := asString(raw)
		if !ok {
			return domain.BudgetPatch{}, apperr.Validation(MsgCategoryNotString)
		}
		p.Category = &category
	}
	return p, nil
}

// positiveAmount accepts only a JSON number greater than zero that fits the
// stored precision.
func positiveAmount(raw json.RawMessage) (decimal.Decimal, error) {
	approx, ok := numberValue(raw)
	if !ok || validate.Var(approx, amountRule) != nil {
		return decimal.Decimal{}, apperr.Validation(MsgAmountPositive)
	}
	return exactAmount(raw)
}

// numberValue parses a JSON number as a float64. Values that overflow a
// float64 are rejected here and underflow yields 0, so huge exponents never
// reach the decimal parser.
func numberValue(raw json.RawMessage) (float64, bool) {
	if len(raw) == 0 || !(raw[0] == '-' || (raw[0] >= '0' && raw[0] <= '9')) {
		return 0, false
	}
	f, err := strconv.ParseFloat(string(raw), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// exactAmount keeps the literal digits of a range-checked number, rounded to
// the stored scale.
func exactAmount(raw json.RawMessage) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(string(raw))
	if err != nil {
		return decimal.Decimal{}, apperr.Validation(MsgAmountPositive)
	}
	if amount.Exponent() < -amountScale {
		amount = amount.Round(amountScale)
	}
	if !amount.IsPositive() {
		return decimal.Decimal{}, apperr.Validation(MsgAmountPositive)
	}
	return amount, nil
}

func asString(raw json.RawMessage) (string, bool) {
	if len(raw) == 0 || raw[0] != '"' {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}
