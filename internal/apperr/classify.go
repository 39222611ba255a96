package apperr

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/glebarez/go-sqlite"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// Constraint codes understood by the funnel. They follow PostgreSQL SQLSTATE
// values; SQLite failures are translated onto them.
const (
	CodeUniqueViolation     = "23505"
	CodeForeignKeyViolation = "23503"
	CodeInvalidTextRep      = "22P02"
)

// SQLite extended result codes for constraint failures.
const (
	sqliteConstraintForeignKey = 787
	sqliteConstraintPrimaryKey = 1555
	sqliteConstraintUnique     = 2067
)

// Constraint is the response a recognized backend code maps to.
type Constraint struct {
	Status  int
	Message string
}

var constraints = map[string]Constraint{
	CodeUniqueViolation:     {Status: http.StatusConflict, Message: "Duplicate field value entered"},
	CodeForeignKeyViolation: {Status: http.StatusBadRequest, Message: "Foreign key constraint violation"},
	CodeInvalidTextRep:      {Status: http.StatusBadRequest, Message: "Invalid input syntax"},
}

// LookupConstraint returns the mapped response for a constraint code.
func LookupConstraint(code string) (Constraint, bool) {
	c, ok := constraints[code]
	return c, ok
}

// sqlStater is implemented by driver errors that expose an SQLSTATE.
type sqlStater interface {
	SQLState() string
}

// Classify normalizes any error into an *Error. A classified error passes
// through untouched; everything else is unclassified unless a recognizer
// below claims it.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}

	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}

	if code := constraintCode(err); code != "" {
		return &Error{
			Kind:    KindDatabase,
			Status:  http.StatusInternalServerError,
			Message: "Database operation failed",
			Code:    code,
			Cause:   err,
			stack:   capture(err),
		}
	}

	var (
		sqliteErr *sqlite.Error
		pgErr     *pgconn.PgError
		syntaxErr *json.SyntaxError
		typeErr   *json.UnmarshalTypeError
		maxErr    *http.MaxBytesError
	)
	switch {
	case errors.As(err, &sqliteErr), errors.As(err, &pgErr):
		return &Error{
			Kind:    KindDatabase,
			Status:  http.StatusInternalServerError,
			Message: "Database operation failed",
			Cause:   err,
			stack:   capture(err),
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		return &Error{Kind: KindNotFound, Status: http.StatusNotFound, Message: "Resource not found", Cause: err, stack: capture(err)}
	case errors.As(err, &syntaxErr), errors.As(err, &typeErr), errors.Is(err, io.ErrUnexpectedEOF):
		return BodyParse(err)
	case errors.As(err, &maxErr):
		return &Error{
			Kind:    KindUnclassified,
			Status:  http.StatusRequestEntityTooLarge,
			Message: "Request body too large",
			Cause:   err,
			stack:   capture(err),
		}
	}

	return Wrap(err)
}

// constraintCode extracts a constraint code from driver or ORM errors.
func constraintCode(err error) string {
	if err == nil {
		return ""
	}

	// The constraint table is keyed by SQLSTATE; Postgres errors carry it
	// directly and SQLite errors are translated below.
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	var st sqlStater
	if errors.As(err, &st) {
		return st.SQLState()
	}

	switch {
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return CodeUniqueViolation
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		return CodeForeignKeyViolation
	}

	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqliteConstraintUnique, sqliteConstraintPrimaryKey:
			return CodeUniqueViolation
		case sqliteConstraintForeignKey:
			return CodeForeignKeyViolation
		}
	}

	// The pure-Go SQLite driver sometimes surfaces constraint failures as text only.
	low := strings.ToLower(err.Error())
	switch {
	case strings.Contains(low, "unique constraint failed"),
		strings.Contains(low, "constraint failed: unique"):
		return CodeUniqueViolation
	case strings.Contains(low, "foreign key constraint failed"):
		return CodeForeignKeyViolation
	}
	return ""
}
