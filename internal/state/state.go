// Package state is the client's cache of ledger-owned data plus the pending
// form. Collections are only ever replaced wholesale.
package state

import (
	"sync"

	"unibank/internal/models"
)

// PendingOperation holds the raw form values for the next mutating call.
type PendingOperation struct {
	Amount            string
	SenderAccountID   string
	ReceiverAccountID string
}

func (p PendingOperation) IsZero() bool {
	return p == PendingOperation{}
}

// Snapshot is a copy of the cache at one instant.
type Snapshot struct {
	Accounts []models.Account
	// HistoryAccountID is the account Transactions belongs to, 0 if none was fetched.
	HistoryAccountID int
	Transactions     []models.Transaction
	AccessLogs       []models.AccessLogEntry
	Pending          PendingOperation
}

// AppState is created once by the composition root and shared by reference.
type AppState struct {
	mu               sync.RWMutex
	accounts         []models.Account
	historyAccountID int
	transactions     []models.Transaction
	accessLogs       []models.AccessLogEntry
	pending          PendingOperation
}

func New() *AppState {
	return &AppState{}
}

func (s *AppState) SetAccounts(accounts []models.Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts = cloneSlice(accounts)
}

func (s *AppState) Accounts() []models.Account {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneSlice(s.accounts)
}

// SetTransactions replaces the cached history with the one fetched for accountID.
func (s *AppState) SetTransactions(accountID int, transactions []models.Transaction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.historyAccountID = accountID
	s.transactions = cloneSlice(transactions)
}

func (s *AppState) Transactions() (int, []models.Transaction) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.historyAccountID, cloneSlice(s.transactions)
}

func (s *AppState) SetAccessLogs(entries []models.AccessLogEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accessLogs = cloneSlice(entries)
}

func (s *AppState) AccessLogs() []models.AccessLogEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneSlice(s.accessLogs)
}

func (s *AppState) SetPending(p PendingOperation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = p
}

func (s *AppState) Pending() PendingOperation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pending
}

func (s *AppState) ClearPending() {
	s.SetPending(PendingOperation{})
}

// Reset drops everything; used when the session ends.
func (s *AppState) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts = nil
	s.historyAccountID = 0
	s.transactions = nil
	s.accessLogs = nil
	s.pending = PendingOperation{}
}

func (s *AppState) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		Accounts:         cloneSlice(s.accounts),
		HistoryAccountID: s.historyAccountID,
		Transactions:     cloneSlice(s.transactions),
		AccessLogs:       cloneSlice(s.accessLogs),
		Pending:          s.pending,
	}
}

func cloneSlice[T any](in []T) []T {
	if in == nil {
		return nil
	}
	out := make([]T, len(in))
	copy(out, in)
	return out
}
