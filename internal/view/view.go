// Package view tracks which screen is active. Navigation is never blocked by
// in-flight work; every transition bumps a generation counter so late
// results for a screen the user already left can be recognised.
package view

import (
	"context"
	"fmt"
	"sync"
)

type Name string

const (
	Unauthenticated Name = "unauthenticated"
	Accounts        Name = "accounts"
	Transactions    Name = "transactions"
	Logs            Name = "logs"
)

// Parse maps user input onto a navigable view.
func Parse(s string) (Name, error) {
	switch n := Name(s); n {
	case Accounts, Transactions, Logs:
		return n, nil
	case "dashboard":
		return Accounts, nil
	default:
		return "", fmt.Errorf("unknown view %q", s)
	}
}

// AuthChecker reports whether a session exists.
type AuthChecker interface {
	Authenticated() bool
}

// HistoryLoader fetches the transaction history for an account.
type HistoryLoader interface {
	FetchHistory(ctx context.Context, accountID int) error
}

type Machine struct {
	mu         sync.RWMutex
	current    Name
	focus      int
	generation uint64

	auth   AuthChecker
	loader HistoryLoader
}

func New(auth AuthChecker) *Machine {
	return &Machine{current: Accounts, auth: auth}
}

// Bind sets the loader used when an account is opened.
func (m *Machine) Bind(loader HistoryLoader) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loader = loader
}

// Current returns the visible view. Without a session that is always
// Unauthenticated, whatever was navigated to last.
func (m *Machine) Current() Name {
	if m.auth != nil && !m.auth.Authenticated() {
		return Unauthenticated
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Navigate switches views unconditionally.
func (m *Machine) Navigate(n Name) error {
	name, err := Parse(string(n))
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = name
	m.generation++
	return nil
}

// OpenAccount enters the transactions view for accountID and fetches its
// history as part of the transition.
func (m *Machine) OpenAccount(ctx context.Context, accountID int) error {
	m.mu.Lock()
	m.current = Transactions
	m.focus = accountID
	m.generation++
	loader := m.loader
	m.mu.Unlock()

	if loader == nil {
		return nil
	}
	return loader.FetchHistory(ctx, accountID)
}

// FocusedAccount returns the account whose history is shown, if any.
func (m *Machine) FocusedAccount() (int, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.focus, m.focus != 0
}

// ShowingHistory reports whether the transactions view is visible for an account.
func (m *Machine) ShowingHistory() (int, bool) {
	if m.Current() != Transactions {
		return 0, false
	}
	return m.FocusedAccount()
}

func (m *Machine) Generation() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.generation
}

// Reset returns to the default view with nothing focused.
func (m *Machine) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = Accounts
	m.focus = 0
	m.generation++
}
