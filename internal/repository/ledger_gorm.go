package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"comandapos/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// NewLedgerStore returns the GORM-backed ledger. The *gorm.DB must be opened
// with TranslateError so unique violations surface as ErrDuplicate.
func NewLedgerStore(db *gorm.DB) *LedgerStore {
	return &LedgerStore{
		Sessions:   &gormTable[model.CashSession]{db: db, table: TableCashSessions},
		Movements:  &gormTable[model.CashMovement]{db: db, table: TableCashMovements},
		Orders:     &gormTable[model.Order]{db: db, table: TableOrders},
		OrderItems: &gormTable[model.OrderItem]{db: db, table: TableOrderItems},
	}
}

type gormTable[T any] struct {
	db    *gorm.DB
	table string
}

func (t *gormTable[T]) Insert(ctx context.Context, rec *T) error {
	return translate(t.db.WithContext(ctx).Create(rec).Error)
}

func (t *gormTable[T]) Update(ctx context.Context, id uuid.UUID, patch map[string]any) (*T, error) {
	for col := range patch {
		if !Columns[t.table][col] || col == "id" {
			return nil, fmt.Errorf("%w %q on %s", ErrUnknownColumn, col, t.table)
		}
	}
	res := t.db.WithContext(ctx).Model(new(T)).Where("id = ?", id).Updates(patch)
	if res.Error != nil {
		return nil, translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	var out T
	if err := t.db.WithContext(ctx).Where("id = ?", id).First(&out).Error; err != nil {
		return nil, translate(err)
	}
	return &out, nil
}

func (t *gormTable[T]) Delete(ctx context.Context, id uuid.UUID) error {
	res := t.db.WithContext(ctx).Where("id = ?", id).Delete(new(T))
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *gormTable[T]) Query(ctx context.Context, q Query) ([]T, error) {
	if err := q.Validate(t.table, Columns[t.table]); err != nil {
		return nil, err
	}
	db := t.db.WithContext(ctx).Model(new(T))
	for _, col := range sortedKeys(q.Eq) {
		db = db.Where(clause.Eq{Column: clause.Column{Name: col}, Value: q.Eq[col]})
	}
	for _, col := range sortedKeys(q.Gte) {
		db = db.Where(clause.Gte{Column: clause.Column{Name: col}, Value: q.Gte[col]})
	}
	for _, col := range sortedKeys(q.Lte) {
		db = db.Where(clause.Lte{Column: clause.Column{Name: col}, Value: q.Lte[col]})
	}
	if q.OrderBy != "" {
		db = db.Order(clause.OrderByColumn{Column: clause.Column{Name: q.OrderBy}, Desc: q.Desc})
	}
	if q.Limit > 0 {
		db = db.Limit(q.Limit)
	}
	var out []T
	if err := db.Find(&out).Error; err != nil {
		return nil, translate(err)
	}
	return out, nil
}

func (t *gormTable[T]) QueryOne(ctx context.Context, q Query) (*T, error) {
	rows, err := t.Query(ctx, q.Take(1))
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	return &rows[0], nil
}

// translate maps driver errors onto the repository sentinels.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	}
	return err
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
