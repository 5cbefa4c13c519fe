package sqldb

import (
	"database/sql/driver"
	"errors"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

var ErrUnsupportedDriver = errors.New("sqldb: unsupported driver")

const (
	mysqlDeadlock        = 1213
	mysqlLockWaitTimeout = 1205

	pqSerializationFailure pq.ErrorCode = "40001"
	pqDeadlockDetected     pq.ErrorCode = "40P01"
	pqConnectionException  pq.ErrorClass = "08"
)

// IsTransient reports whether err is lock contention or a dropped connection
// reported by one of the supported drivers, i.e. worth retrying as is.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, mysql.ErrInvalidConn) {
		return true
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == mysqlDeadlock || myErr.Number == mysqlLockWaitTimeout
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == pqSerializationFailure ||
			pqErr.Code == pqDeadlockDetected ||
			pqErr.Code.Class() == pqConnectionException
	}

	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.Code == sqlite3.ErrBusy || liteErr.Code == sqlite3.ErrLocked
	}
	return false
}
