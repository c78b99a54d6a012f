package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/shenikar/waste_incident_sync/internal/models"
)

// classifyError сводит ошибки pgx к таксономии хранилища: отказ сервера по
// правилам данных или правам - WriteRejected, всё остальное - RemoteUnavailable.
func classifyError(op string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, models.ErrNotFound)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgerrcode.IsIntegrityConstraintViolation(pgErr.Code),
			pgerrcode.IsDataException(pgErr.Code),
			pgErr.Code == pgerrcode.InsufficientPrivilege:
			return fmt.Errorf("%s: %w: %s", op, models.ErrWriteRejected, pgErr.Message)
		}
	}

	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, models.ErrRemoteUnavailable, err)
}
