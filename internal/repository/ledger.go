package repository

import (
	"context"
	"errors"
	"fmt"

	"comandapos/internal/model"

	"github.com/google/uuid"
)

// Table names of the ledger.
const (
	TableCashSessions  = "cash_sessions"
	TableCashMovements = "cash_movements"
	TableOrders        = "orders"
	TableOrderItems    = "order_items"
)

var (
	ErrNotFound      = errors.New("record not found")
	ErrUnknownColumn = errors.New("unknown column")

	// ErrDuplicate is returned when an insert violates a unique constraint,
	// e.g. a second open cash session for the same collaborator.
	ErrDuplicate = errors.New("duplicate record")

	// ErrUnsupported is returned by stores that have no native session-status
	// concept (legacy event logs).
	ErrUnsupported = errors.New("operation not supported by this store")
)

// Query is the filter set accepted by Table.Query. Keys are column names.
type Query struct {
	Eq      map[string]any
	Gte     map[string]any
	Lte     map[string]any
	OrderBy string
	Desc    bool
	Limit   int
}

// Where starts a query with a single equality filter.
func Where(column string, value any) Query {
	return Query{Eq: map[string]any{column: value}}
}

func (q Query) AndEq(column string, value any) Query {
	q.Eq = with(q.Eq, column, value)
	return q
}

func (q Query) AndGte(column string, value any) Query {
	q.Gte = with(q.Gte, column, value)
	return q
}

func (q Query) AndLte(column string, value any) Query {
	q.Lte = with(q.Lte, column, value)
	return q
}

func (q Query) Order(column string, desc bool) Query {
	q.OrderBy = column
	q.Desc = desc
	return q
}

func (q Query) Take(n int) Query {
	q.Limit = n
	return q
}

func with(m map[string]any, k string, v any) map[string]any {
	out := make(map[string]any, len(m)+1)
	for key, val := range m {
		out[key] = val
	}
	out[k] = v
	return out
}

// Validate rejects columns that are not part of the table.
func (q Query) Validate(table string, columns map[string]bool) error {
	check := func(col string) error {
		if !columns[col] {
			return fmt.Errorf("%w %q on %s", ErrUnknownColumn, col, table)
		}
		return nil
	}
	for _, m := range []map[string]any{q.Eq, q.Gte, q.Lte} {
		for col := range m {
			if err := check(col); err != nil {
				return err
			}
		}
	}
	if q.OrderBy != "" {
		return check(q.OrderBy)
	}
	return nil
}

// Table is the generic data-access contract for one record kind.
// No business rules live here.
type Table[T any] interface {
	Insert(ctx context.Context, rec *T) error
	Update(ctx context.Context, id uuid.UUID, patch map[string]any) (*T, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Query(ctx context.Context, q Query) ([]T, error)
	QueryOne(ctx context.Context, q Query) (*T, error)
}

// LedgerStore groups the four tables the core writes to.
type LedgerStore struct {
	Sessions   Table[model.CashSession]
	Movements  Table[model.CashMovement]
	Orders     Table[model.Order]
	OrderItems Table[model.OrderItem]
}

// Columns lists the filterable/patchable columns per table.
var Columns = map[string]map[string]bool{
	TableCashSessions:  set("id", "collaborator_id", "opened_at", "closed_at", "opening_float", "closing_amount", "status"),
	TableCashMovements: set("id", "responsible_id", "type", "amount", "description", "created_at"),
	TableOrders:        set("id", "collaborator_id", "customer_name", "tab_number", "status", "payment_method", "total", "created_at", "updated_at"),
	TableOrderItems:    set("id", "order_id", "product_id", "product_name", "quantity", "unit_price", "subtotal", "created_at"),
}

func set(cols ...string) map[string]bool {
	m := make(map[string]bool, len(cols))
	for _, c := range cols {
		m[c] = true
	}
	return m
}

// WithoutSessions returns a copy of the store whose session table answers
// ErrUnsupported, for deployments that only carry the legacy movement log.
func (s LedgerStore) WithoutSessions() *LedgerStore {
	s.Sessions = unsupportedTable[model.CashSession]{table: TableCashSessions}
	return &s
}

type unsupportedTable[T any] struct{ table string }

func (u unsupportedTable[T]) err() error {
	return fmt.Errorf("%s: %w", u.table, ErrUnsupported)
}

func (u unsupportedTable[T]) Insert(context.Context, *T) error { return u.err() }

func (u unsupportedTable[T]) Update(context.Context, uuid.UUID, map[string]any) (*T, error) {
	return nil, u.err()
}

func (u unsupportedTable[T]) Delete(context.Context, uuid.UUID) error { return u.err() }

func (u unsupportedTable[T]) Query(context.Context, Query) ([]T, error) { return nil, u.err() }

func (u unsupportedTable[T]) QueryOne(context.Context, Query) (*T, error) { return nil, u.err() }
