package console

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"unibank/internal/models"
	"unibank/internal/session"
	"unibank/internal/state"
	"unibank/internal/status"
	"unibank/internal/view"
)

type fakeActions struct {
	mu        sync.Mutex
	calls     []string
	forms     []state.PendingOperation
	registers []models.RegisterRequest
	st        *state.AppState
	ch        *status.Channel
}

func (f *fakeActions) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeActions) Register(_ context.Context, req models.RegisterRequest) (*models.User, error) {
	f.record("register")
	f.mu.Lock()
	f.registers = append(f.registers, req)
	f.mu.Unlock()
	return &models.User{Email: req.Email}, nil
}

func (f *fakeActions) Login(_ context.Context, email, _ string) error {
	f.record("login " + email)
	return nil
}

func (f *fakeActions) Logout() error { f.record("logout"); return nil }

func (f *fakeActions) RefreshAccounts(context.Context) error {
	f.record("refresh")
	f.st.SetAccounts([]models.Account{{ID: 1, AccountNumber: "1234-5678-9012-3456", Balance: decimal.RequireFromString("12.5")}})
	return nil
}

func (f *fakeActions) CreateAccount(context.Context) (*models.Account, error) {
	f.record("create")
	return &models.Account{ID: 2}, nil
}

func (f *fakeActions) CloseAccount(_ context.Context, id int) error {
	f.record("close")
	return nil
}

func (f *fakeActions) form(call string, form state.PendingOperation) (*models.Transaction, error) {
	f.record(call)
	f.mu.Lock()
	f.forms = append(f.forms, form)
	f.mu.Unlock()
	return &models.Transaction{}, nil
}

func (f *fakeActions) Transfer(_ context.Context, form state.PendingOperation) (*models.Transaction, error) {
	return f.form("transfer", form)
}

func (f *fakeActions) Deposit(_ context.Context, form state.PendingOperation) (*models.Transaction, error) {
	return f.form("deposit", form)
}

func (f *fakeActions) Withdraw(_ context.Context, form state.PendingOperation) (*models.Transaction, error) {
	return f.form("withdraw", form)
}

func (f *fakeActions) FetchAccessLogs(_ context.Context, all bool) error {
	if all {
		f.record("logs all")
	} else {
		f.record("logs")
	}
	return nil
}

func (f *fakeActions) Dismiss() { f.record("dismiss"); f.ch.Clear() }

func (f *fakeActions) CancelInFlight() int { f.record("cancel"); return 0 }

type historyLoader struct{ actions *fakeActions }

func (h historyLoader) FetchHistory(_ context.Context, id int) error {
	h.actions.record("history")
	h.actions.st.SetTransactions(id, []models.Transaction{{ID: 5, Amount: decimal.NewFromInt(3), ReceiverAccountID: &id}})
	return nil
}

type signedIn struct{ session.Session }

func (s signedIn) Authenticated() bool { return s.Present() }
func (s signedIn) Current() session.Session { return s.Session }

type fixture struct {
	console *Console
	actions *fakeActions
	nav     *view.Machine
	out     *bytes.Buffer
	ch      *status.Channel
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := state.New()
	ch := status.New()
	actions := &fakeActions{st: st, ch: ch}
	ident := signedIn{session.Session{Token: "tok", State: session.Authenticated, Subject: "a@x.com"}}
	nav := view.New(ident)
	nav.Bind(historyLoader{actions})
	out := &bytes.Buffer{}
	return &fixture{
		console: New(actions, nav, ident, st, ch, out, nil),
		actions: actions,
		nav:     nav,
		out:     out,
		ch:      ch,
	}
}

func (f *fixture) exec(t *testing.T, line string) {
	t.Helper()
	_, err := f.console.Execute(context.Background(), line)
	require.NoError(t, err)
	f.console.Wait()
}

func TestSplitArgs(t *testing.T) {
	tests := []struct {
		line string
		want []string
	}{
		{`login a@x.com p1`, []string{"login", "a@x.com", "p1"}},
		{`register a@x.com "Ada Lovelace" pw`, []string{"register", "a@x.com", "Ada Lovelace", "pw"}},
		{`register a@x.com 'Ada  L' pw admin`, []string{"register", "a@x.com", "Ada  L", "pw", "admin"}},
		{`  transfer   1 2  40.5 `, []string{"transfer", "1", "2", "40.5"}},
		{`login a@x.com p\ w`, []string{"login", "a@x.com", "p w"}},
		{`x ""`, []string{"x", ""}},
		{``, nil},
	}
	for _, tt := range tests {
		got, err := splitArgs(tt.line)
		require.NoError(t, err, tt.line)
		assert.Equal(t, tt.want, got, tt.line)
	}

	_, err := splitArgs(`register "unterminated`)
	assert.Error(t, err)
}

func TestTransferPassesRawForm(t *testing.T) {
	f := newFixture(t)
	f.exec(t, "transfer 1 2 40")

	require.Len(t, f.actions.forms, 1)
	assert.Equal(t, state.PendingOperation{SenderAccountID: "1", ReceiverAccountID: "2", Amount: "40"}, f.actions.forms[0])
}

func TestDepositAndWithdrawForms(t *testing.T) {
	f := newFixture(t)
	f.exec(t, "deposit 3 10")
	f.exec(t, "withdraw 3 abc")

	require.Len(t, f.actions.forms, 2)
	assert.Equal(t, state.PendingOperation{ReceiverAccountID: "3", Amount: "10"}, f.actions.forms[0])
	assert.Equal(t, state.PendingOperation{SenderAccountID: "3", Amount: "abc"}, f.actions.forms[1])
}

func TestRegisterWithQuotedName(t *testing.T) {
	f := newFixture(t)
	f.exec(t, `register ada@x.com "Ada Lovelace" secret admin`)

	require.Len(t, f.actions.registers, 1)
	assert.Equal(t, models.RegisterRequest{Email: "ada@x.com", FullName: "Ada Lovelace", Password: "secret", Role: "admin"}, f.actions.registers[0])
}

func TestAccountsRendersRefreshedList(t *testing.T) {
	f := newFixture(t)
	f.exec(t, "accounts")

	assert.Equal(t, []string{"refresh"}, f.actions.calls)
	assert.Contains(t, f.out.String(), "1234-5678-9012-3456")
	assert.Contains(t, f.out.String(), "12.50")
}

func TestHistoryOpensAccount(t *testing.T) {
	f := newFixture(t)
	f.exec(t, "history 7")

	assert.Equal(t, view.Transactions, f.nav.Current())
	assert.Equal(t, []string{"history"}, f.actions.calls)
	assert.Contains(t, f.out.String(), "Transactions for account 7")
	assert.Contains(t, f.out.String(), "deposit")
}

func TestLogsAllNavigates(t *testing.T) {
	f := newFixture(t)
	f.exec(t, "logs all")

	assert.Equal(t, view.Logs, f.nav.Current())
	assert.Equal(t, []string{"logs all"}, f.actions.calls)
}

func TestUsageErrors(t *testing.T) {
	f := newFixture(t)
	for _, line := range []string{
		"transfer 1 2",
		"history abc",
		"close-account 0",
		"view settings",
		"logs some",
		"frobnicate",
		`login "a@x.com`,
	} {
		_, err := f.console.Execute(context.Background(), line)
		assert.ErrorIs(t, err, ErrUsage, line)
	}
	f.console.Wait()
	assert.Empty(t, f.actions.calls)
}

func TestWhoamiAndStatus(t *testing.T) {
	f := newFixture(t)
	f.ch.Publish(status.KindSuccess, "Transfer completed.")

	f.exec(t, "whoami")
	f.exec(t, "status")

	out := f.out.String()
	assert.Contains(t, out, "Signed in as a@x.com [authenticated]")
	assert.Contains(t, out, "[success] Transfer completed.")
}

func TestRunPrintsStatusChangesAndQuits(t *testing.T) {
	f := newFixture(t)
	in := strings.NewReader("dismiss\nquit\nlogout\n")

	f.ch.Publish(status.KindInfo, "hello")
	require.NoError(t, f.console.Run(context.Background(), in))

	assert.Equal(t, []string{"dismiss", "cancel"}, f.actions.calls)
}
