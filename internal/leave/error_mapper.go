package leave

import (
	"errors"
	"strings"

	leaveerrors "hr-admin/internal/leave/errors"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

func mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return leaveerrors.ErrRequestNotFound
	}

	return err
}

// isDuplicateBalance reports whether an insert lost the (user_id, year)
// uniqueness race. Two concurrent accrual checks may both see no row; the
// slower insert fails with 23505 and is treated as a no-op.
func isDuplicateBalance(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}

	return strings.Contains(strings.ToLower(err.Error()), "duplicate key value")
}
