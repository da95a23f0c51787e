package sqlstore

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"

	"github.com/conduit-lang/datamap/pkg/orm/adapter"
)

var (
	// ErrConnection is returned when the database cannot be reached
	ErrConnection = errors.New("unable to connect to database")

	// ErrUnknownDriver is returned when the configured driver is not supported
	ErrUnknownDriver = errors.New("unknown database driver")

	// ErrUniqueViolation is returned when a unique constraint is violated
	ErrUniqueViolation = errors.New("unique constraint violation")

	// ErrForeignKeyViolation is returned when a foreign key constraint is violated
	ErrForeignKeyViolation = errors.New("foreign key constraint violation")

	// ErrCheckViolation is returned when a check constraint is violated
	ErrCheckViolation = errors.New("check constraint violation")

	// ErrNotNullViolation is returned when a NOT NULL constraint is violated
	ErrNotNullViolation = errors.New("not null constraint violation")
)

// ConnectionError reports a failed connection check. The configuration it
// carries has its password masked.
type ConnectionError struct {
	Config adapter.Config
	Err    error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("%s with config %s: %v", ErrConnection, e.Config, e.Err)
}

func (e *ConnectionError) Unwrap() []error {
	return []error{ErrConnection, e.Err}
}

// postgres SQLSTATE codes
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
	codeCheckViolation      = "23514"
	codeNotNullViolation    = "23502"
)

// ConvertDBError classifies constraint violations reported by any of the
// supported drivers. The driver error stays in the chain.
func ConvertDBError(err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return classify(pgErr.Code, err)
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return classify(string(pqErr.Code), err)
	}

	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) && liteErr.Code == sqlite3.ErrConstraint {
		switch liteErr.ExtendedCode {
		case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
			return fmt.Errorf("%w: %w", ErrUniqueViolation, err)
		case sqlite3.ErrConstraintForeignKey:
			return fmt.Errorf("%w: %w", ErrForeignKeyViolation, err)
		case sqlite3.ErrConstraintCheck:
			return fmt.Errorf("%w: %w", ErrCheckViolation, err)
		case sqlite3.ErrConstraintNotNull:
			return fmt.Errorf("%w: %w", ErrNotNullViolation, err)
		}
	}

	return err
}

func classify(code string, err error) error {
	switch code {
	case codeUniqueViolation:
		return fmt.Errorf("%w: %w", ErrUniqueViolation, err)
	case codeForeignKeyViolation:
		return fmt.Errorf("%w: %w", ErrForeignKeyViolation, err)
	case codeCheckViolation:
		return fmt.Errorf("%w: %w", ErrCheckViolation, err)
	case codeNotNullViolation:
		return fmt.Errorf("%w: %w", ErrNotNullViolation, err)
	}
	return err
}

// IsUniqueViolation returns true if the error is ErrUniqueViolation
func IsUniqueViolation(err error) bool {
	return errors.Is(err, ErrUniqueViolation)
}

// IsForeignKeyViolation returns true if the error is ErrForeignKeyViolation
func IsForeignKeyViolation(err error) bool {
	return errors.Is(err, ErrForeignKeyViolation)
}

// IsConnectionError returns true if the error is a failed connection check
func IsConnectionError(err error) bool {
	return errors.Is(err, ErrConnection)
}
