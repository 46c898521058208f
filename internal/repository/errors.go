// Package repository implements the MySQL data store. Sentinel errors let
// services and handlers tell failure scenarios apart without inspecting
// driver errors: ErrNotFound maps to 404, ErrConflict and ErrDuplicate to 409.
package repository

import (
	"database/sql"
	"errors"

	"github.com/go-sql-driver/mysql"
)

// ErrNotFound is returned when the requested row does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when an update or delete cannot proceed because
// of the row's current state, such as discarding a draft that was already
// finalized.
var ErrConflict = errors.New("conflict")

// ErrDuplicate is returned when an insert violates a unique key. Callers
// reconciling derived rows treat it as "already present".
var ErrDuplicate = errors.New("duplicate")

// ErrEmailExists is returned when registering an email already in use.
var ErrEmailExists = errors.New("email already exists")

const mysqlDuplicateEntry = 1062

func isDuplicate(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlDuplicateEntry
}

// notFound converts sql.ErrNoRows into ErrNotFound and passes other errors
// through.
func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
