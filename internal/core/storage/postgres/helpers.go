package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"

	"github.com/aevon-lab/tradepulse/internal/core/storage"
	"github.com/lib/pq"
)

type scanner interface {
	Scan(dest ...interface{}) error
}

// unavailableClasses are SQLSTATE classes that mean the store cannot serve
// the request right now, as opposed to a bad query.
var unavailableClasses = map[pq.ErrorClass]bool{
	"08": true, // connection exception
	"53": true, // insufficient resources
	"57": true, // operator intervention (statement timeout, admin shutdown)
}

// classify maps driver errors onto storage.ErrDataSourceUnavailable when the
// failure is about reachability or time, and wraps everything else as is.
func classify(ctx context.Context, op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return storage.Unavailable(op, err)
	}
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s: %w", op, err)
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		return storage.Unavailable(op, err)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && unavailableClasses[pqErr.Code.Class()] {
		return storage.Unavailable(op, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return storage.Unavailable(op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
