// Package memory is an in-process ledger used by tests and local demos.
// It honours the same contract as the GORM store, including the
// one-open-session-per-collaborator constraint, and can inject faults
// into individual operations.
package memory

import (
	"sync"

	"comandapos/internal/model"
	"comandapos/internal/repository"

	"github.com/google/uuid"
)

// Operation names accepted by Fault.Op.
const (
	OpInsert = "insert"
	OpUpdate = "update"
	OpDelete = "delete"
	OpQuery  = "query"
)

// Fault makes matching operations fail with Err. Empty Op or Table match
// anything. Times limits how many calls fail; zero means every call.
type Fault struct {
	Op    string
	Table string
	Times int
	Err   error
}

type Store struct {
	mu     sync.Mutex
	faults []*Fault

	sessions   *table[model.CashSession]
	movements  *table[model.CashMovement]
	orders     *table[model.Order]
	orderItems *table[model.OrderItem]
}

func New() *Store {
	s := &Store{}
	s.sessions = newTable(s, repository.TableCashSessions, oneOpenSessionPerCollaborator)
	s.movements = newTable[model.CashMovement](s, repository.TableCashMovements, nil)
	s.orders = newTable[model.Order](s, repository.TableOrders, nil)
	s.orderItems = newTable[model.OrderItem](s, repository.TableOrderItems, nil)
	return s
}

// Ledger exposes the store through the repository contract.
func (s *Store) Ledger() *repository.LedgerStore {
	return &repository.LedgerStore{
		Sessions:   s.sessions,
		Movements:  s.movements,
		Orders:     s.orders,
		OrderItems: s.orderItems,
	}
}

func (s *Store) InjectFault(f Fault) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults = append(s.faults, &f)
}

func (s *Store) ClearFaults() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults = nil
}

// Snapshot helpers for assertions. They bypass fault injection.

func (s *Store) Sessions() []model.CashSession { return s.sessions.all() }
func (s *Store) Movements() []model.CashMovement { return s.movements.all() }
func (s *Store) Orders() []model.Order { return s.orders.all() }
func (s *Store) OrderItems() []model.OrderItem { return s.orderItems.all() }

// fault must be called with s.mu held.
func (s *Store) fault(op, tbl string) error {
	for i, f := range s.faults {
		if (f.Op != "" && f.Op != op) || (f.Table != "" && f.Table != tbl) {
			continue
		}
		if f.Times > 0 {
			f.Times--
			if f.Times == 0 {
				s.faults = append(s.faults[:i], s.faults[i+1:]...)
			}
		}
		return f.Err
	}
	return nil
}

func oneOpenSessionPerCollaborator(rows []model.CashSession, rec *model.CashSession, self uuid.UUID) bool {
	if rec.Status != model.SessionOpen {
		return false
	}
	for _, r := range rows {
		if r.ID != self && r.CollaboratorID == rec.CollaboratorID && r.Status == model.SessionOpen {
			return true
		}
	}
	return false
}
