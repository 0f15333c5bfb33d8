package memory

import (
	"cmp"
	"context"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"
	"time"

	"comandapos/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm/schema"
)

var schemaCache sync.Map

// clock matches the auto timestamps of the SQL store.
func clock() time.Time { return time.Now().UTC().Truncate(time.Microsecond) }

// table keeps rows in insertion order. Column access goes through the GORM
// schema of T so column names match the SQL store exactly.
type table[T any] struct {
	st     *Store
	name   string
	schema *schema.Schema
	rows   []T

	// conflict reports whether rec would violate a unique constraint
	// against rows other than self.
	conflict func(rows []T, rec *T, self uuid.UUID) bool
}

func newTable[T any](st *Store, name string, conflict func([]T, *T, uuid.UUID) bool) *table[T] {
	sch, err := schema.Parse(new(T), &schemaCache, schema.NamingStrategy{})
	if err != nil {
		panic(fmt.Sprintf("memory: parse schema for %s: %v", name, err))
	}
	return &table[T]{st: st, name: name, schema: sch, conflict: conflict}
}

func (t *table[T]) Insert(ctx context.Context, rec *T) error {
	t.st.mu.Lock()
	defer t.st.mu.Unlock()
	if err := t.st.fault(OpInsert, t.name); err != nil {
		return err
	}

	row := *rec
	if t.id(&row) == uuid.Nil {
		t.set(ctx, &row, "id", uuid.New())
	}
	now := clock()
	for _, f := range t.schema.Fields {
		if f.AutoCreateTime > 0 || f.AutoUpdateTime > 0 {
			if v, zero := f.ValueOf(ctx, reflect.ValueOf(&row).Elem()); zero || v == nil {
				t.set(ctx, &row, f.DBName, now)
			}
		}
	}
	id := t.id(&row)
	if t.indexOf(id) >= 0 {
		return fmt.Errorf("%w: %s id %s", repository.ErrDuplicate, t.name, id)
	}
	if t.conflict != nil && t.conflict(t.rows, &row, id) {
		return fmt.Errorf("%w: %s unique constraint", repository.ErrDuplicate, t.name)
	}
	t.rows = append(t.rows, row)
	*rec = row
	return nil
}

func (t *table[T]) Update(ctx context.Context, id uuid.UUID, patch map[string]any) (*T, error) {
	t.st.mu.Lock()
	defer t.st.mu.Unlock()
	if err := t.st.fault(OpUpdate, t.name); err != nil {
		return nil, err
	}
	for col := range patch {
		if !repository.Columns[t.name][col] || col == "id" {
			return nil, fmt.Errorf("%w %q on %s", repository.ErrUnknownColumn, col, t.name)
		}
	}
	i := t.indexOf(id)
	if i < 0 {
		return nil, repository.ErrNotFound
	}

	row := t.rows[i]
	for col, v := range patch {
		if err := t.set(ctx, &row, col, v); err != nil {
			return nil, err
		}
	}
	if _, ok := patch["updated_at"]; !ok {
		for _, f := range t.schema.Fields {
			if f.AutoUpdateTime > 0 {
				t.set(ctx, &row, f.DBName, clock())
			}
		}
	}
	if t.conflict != nil && t.conflict(t.rows, &row, id) {
		return nil, fmt.Errorf("%w: %s unique constraint", repository.ErrDuplicate, t.name)
	}
	t.rows[i] = row
	out := row
	return &out, nil
}

func (t *table[T]) Delete(_ context.Context, id uuid.UUID) error {
	t.st.mu.Lock()
	defer t.st.mu.Unlock()
	if err := t.st.fault(OpDelete, t.name); err != nil {
		return err
	}
	i := t.indexOf(id)
	if i < 0 {
		return repository.ErrNotFound
	}
	t.rows = append(t.rows[:i], t.rows[i+1:]...)
	return nil
}

func (t *table[T]) Query(ctx context.Context, q repository.Query) ([]T, error) {
	if err := q.Validate(t.name, repository.Columns[t.name]); err != nil {
		return nil, err
	}
	t.st.mu.Lock()
	defer t.st.mu.Unlock()
	if err := t.st.fault(OpQuery, t.name); err != nil {
		return nil, err
	}

	out := make([]T, 0)
	for i := range t.rows {
		if t.matches(ctx, &t.rows[i], q) {
			out = append(out, t.rows[i])
		}
	}
	if q.OrderBy != "" {
		sort.SliceStable(out, func(a, b int) bool {
			c, _ := compare(t.get(ctx, &out[a], q.OrderBy), t.get(ctx, &out[b], q.OrderBy))
			if q.Desc {
				return c > 0
			}
			return c < 0
		})
	}
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (t *table[T]) QueryOne(ctx context.Context, q repository.Query) (*T, error) {
	rows, err := t.Query(ctx, q.Take(1))
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, repository.ErrNotFound
	}
	return &rows[0], nil
}

func (t *table[T]) all() []T {
	t.st.mu.Lock()
	defer t.st.mu.Unlock()
	return append([]T(nil), t.rows...)
}

func (t *table[T]) matches(ctx context.Context, row *T, q repository.Query) bool {
	for col, want := range q.Eq {
		if c, ok := compare(t.get(ctx, row, col), want); !ok || c != 0 {
			return false
		}
	}
	for col, bound := range q.Gte {
		if c, ok := compare(t.get(ctx, row, col), bound); !ok || c < 0 {
			return false
		}
	}
	for col, bound := range q.Lte {
		if c, ok := compare(t.get(ctx, row, col), bound); !ok || c > 0 {
			return false
		}
	}
	return true
}

func (t *table[T]) indexOf(id uuid.UUID) int {
	for i := range t.rows {
		if t.id(&t.rows[i]) == id {
			return i
		}
	}
	return -1
}

func (t *table[T]) id(row *T) uuid.UUID {
	id, _ := t.get(context.Background(), row, "id").(uuid.UUID)
	return id
}

func (t *table[T]) get(ctx context.Context, row *T, col string) any {
	f := t.schema.LookUpField(col)
	if f == nil {
		return nil
	}
	v, _ := f.ValueOf(ctx, reflect.ValueOf(row).Elem())
	return v
}

func (t *table[T]) set(ctx context.Context, row *T, col string, v any) error {
	f := t.schema.LookUpField(col)
	if f == nil {
		return fmt.Errorf("%w %q on %s", repository.ErrUnknownColumn, col, t.name)
	}
	return f.Set(ctx, reflect.ValueOf(row).Elem(), v)
}

// compare orders two column values. ok is false when the values are not
// comparable; NULL only compares equal to NULL.
func compare(a, b any) (c int, ok bool) {
	a, b = deref(a), deref(b)
	if a == nil || b == nil {
		return 0, a == nil && b == nil
	}
	switch x := a.(type) {
	case time.Time:
		if y, ok := b.(time.Time); ok {
			return x.Compare(y), true
		}
	case decimal.Decimal:
		if y, ok := b.(decimal.Decimal); ok {
			return x.Cmp(y), true
		}
	case uuid.UUID:
		if y, ok := b.(uuid.UUID); ok {
			return strings.Compare(x.String(), y.String()), true
		}
	case string:
		if y, ok := b.(string); ok {
			return strings.Compare(x, y), true
		}
	case int:
		if y, ok := b.(int); ok {
			return cmp.Compare(x, y), true
		}
	}
	return 0, false
}

func deref(v any) any {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() {
		return nil
	}
	if rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil
		}
		return rv.Elem().Interface()
	}
	return v
}
