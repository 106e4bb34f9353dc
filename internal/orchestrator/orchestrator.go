// Package orchestrator sequences every user action against the ledger:
// submit, await the result, re-read the affected data, publish the outcome.
// Cached data is only ever replaced by what the ledger returns.
package orchestrator

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"unibank/internal/gateway"
	"unibank/internal/metrics"
	"unibank/internal/models"
	"unibank/internal/session"
	"unibank/internal/state"
	"unibank/internal/status"
	"unibank/internal/view"
)

// Ledger is the subset of the gateway the orchestrator drives.
type Ledger interface {
	Register(ctx context.Context, req models.RegisterRequest) (*models.User, error)
	ListAccounts(ctx context.Context) ([]models.Account, error)
	CreateAccount(ctx context.Context) (*models.Account, error)
	DeleteAccount(ctx context.Context, accountID int) (*models.Message, error)
	Transfer(ctx context.Context, senderAccountID string, req models.TransferRequest) (*models.Transaction, error)
	Deposit(ctx context.Context, req models.DepositRequest) (*models.Transaction, error)
	Withdraw(ctx context.Context, req models.WithdrawRequest) (*models.Transaction, error)
	ListTransactions(ctx context.Context, accountID int) ([]models.Transaction, error)
	ListAccessLogs(ctx context.Context) ([]models.AccessLogEntry, error)
	ListAllAccessLogs(ctx context.Context) ([]models.AccessLogEntry, error)
}

// Session is the part of the session store the orchestrator needs.
type Session interface {
	Login(ctx context.Context, email, password string) (session.Session, error)
	Logout() error
	Restore() (session.Session, error)
	Invalidate()
	MarkVerified()
	Authenticated() bool
	Current() session.Session
}

// View is the part of the view machine the orchestrator reads and resets.
type View interface {
	ShowingHistory() (int, bool)
	Generation() uint64
	Reset()
}

// AmountPolicy decides who rejects malformed amounts and ids.
type AmountPolicy string

const (
	// PolicyServer forwards whatever was typed and shows the ledger's verdict.
	PolicyServer AmountPolicy = "server"
	// PolicyLocal rejects malformed input before any call is made.
	PolicyLocal AmountPolicy = "local"
)

type Config struct {
	// Timeout bounds each operation, including its refresh. Zero means none.
	Timeout      time.Duration
	AmountPolicy AmountPolicy
}

type Orchestrator struct {
	ledger  Ledger
	session Session
	state   *state.AppState
	view    View
	status  *status.Channel
	logger  *logrus.Entry
	cfg     Config

	mutating atomic.Bool
	seq      atomic.Uint64
	// epoch advances whenever the session changes hands; outcomes of
	// operations started under an older epoch are not published.
	epoch atomic.Uint64

	// latest request sequence per collection; older results are dropped.
	accountsSeq atomic.Uint64
	historySeq  atomic.Uint64
	logsSeq     atomic.Uint64

	mu       sync.Mutex
	inFlight map[uint64]context.CancelFunc
}

func New(ledger Ledger, sess Session, st *state.AppState, v View, ch *status.Channel, cfg Config, logger *logrus.Entry) *Orchestrator {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	if cfg.AmountPolicy == "" {
		cfg.AmountPolicy = PolicyServer
	}
	return &Orchestrator{
		ledger:   ledger,
		session:  sess,
		state:    st,
		view:     v,
		status:   ch,
		logger:   logger.WithField("component", "orchestrator"),
		cfg:      cfg,
		inFlight: map[uint64]context.CancelFunc{},
	}
}

// begin starts a request: it marks the channel busy and registers a
// cancellable, time-bounded context. The returned func must be deferred.
func (o *Orchestrator) begin(ctx context.Context) (context.Context, uint64, func()) {
	seq := o.seq.Add(1)

	var cancel context.CancelFunc
	if o.cfg.Timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, o.cfg.Timeout)
	} else {
		ctx, cancel = context.WithCancel(ctx)
	}

	o.mu.Lock()
	o.inFlight[seq] = cancel
	o.mu.Unlock()
	o.status.SetBusy(true)

	return ctx, seq, func() {
		o.mu.Lock()
		delete(o.inFlight, seq)
		o.mu.Unlock()
		cancel()
		o.status.SetBusy(false)
	}
}

// CancelInFlight aborts every outstanding request and returns how many there were.
func (o *Orchestrator) CancelInFlight() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, cancel := range o.inFlight {
		cancel()
	}
	return len(o.inFlight)
}

// Busy reports whether a mutating operation is outstanding.
func (o *Orchestrator) Busy() bool {
	return o.mutating.Load()
}

// Dismiss clears the visible message.
func (o *Orchestrator) Dismiss() {
	o.status.Clear()
}

// acquire takes the single-flight guard.
func (o *Orchestrator) acquire(op string) bool {
	if o.mutating.CompareAndSwap(false, true) {
		return true
	}
	metrics.ObserveOperation(op, "busy")
	o.status.Publish(status.KindWarning, ErrBusy.Error())
	return false
}

func (o *Orchestrator) release() {
	o.mutating.Store(false)
}

func (o *Orchestrator) requireSession(op string) error {
	if o.session.Authenticated() {
		return nil
	}
	metrics.ObserveOperation(op, "unauthenticated")
	o.status.PublishError(ErrNotAuthenticated)
	return ErrNotAuthenticated
}

// stale reports whether the session changed since epoch was read.
func (o *Orchestrator) stale(epoch uint64) bool {
	return o.epoch.Load() != epoch
}

// fail publishes err. A rejected session ends the session instead. Failures
// of operations from an earlier session are only logged.
func (o *Orchestrator) fail(op string, epoch uint64, err error) {
	log := o.logger.WithField("op", op).WithError(err)
	if o.stale(epoch) {
		log.Debug("dropping failure from an earlier session")
		metrics.ObserveOperation(op, "discarded")
		return
	}
	if gateway.IsUnauthorized(err) {
		log.Warn("ledger rejected the session")
		metrics.ObserveOperation(op, "expired")
		o.expire(err)
		return
	}
	log.Warn("operation failed")
	metrics.ObserveOperation(op, "failed")
	o.status.PublishError(err)
}

// expire ends a session the ledger no longer accepts.
func (o *Orchestrator) expire(err error) {
	o.epoch.Add(1)
	o.session.Invalidate()
	o.discardPending()
	o.state.Reset()
	o.view.Reset()
	o.status.Publish(status.KindError, "Error: "+status.Reason(err)+". Please sign in again.")
}

// discardPending makes every in-flight fetch result stale.
func (o *Orchestrator) discardPending() {
	seq := o.seq.Add(1)
	o.accountsSeq.Store(seq)
	o.historySeq.Store(seq)
	o.logsSeq.Store(seq)
}

func (o *Orchestrator) loadAccounts(ctx context.Context) error {
	seq := o.seq.Add(1)
	o.accountsSeq.Store(seq)

	accounts, err := o.ledger.ListAccounts(ctx)
	if err != nil {
		return err
	}
	if o.accountsSeq.Load() != seq {
		o.logger.WithField("seq", seq).Debug("discarding superseded account list")
		return nil
	}
	o.session.MarkVerified()
	o.state.SetAccounts(accounts)
	return nil
}

func (o *Orchestrator) loadHistory(ctx context.Context, accountID int, generation uint64) error {
	seq := o.seq.Add(1)
	o.historySeq.Store(seq)

	txs, err := o.ledger.ListTransactions(ctx, accountID)
	if err != nil {
		return err
	}
	if o.historySeq.Load() != seq || o.view.Generation() != generation {
		o.logger.WithFields(logrus.Fields{"seq": seq, "account_id": accountID}).Debug("discarding stale history")
		return nil
	}
	o.session.MarkVerified()
	o.state.SetTransactions(accountID, txs)
	return nil
}

// refresh re-reads what a mutation may have changed.
func (o *Orchestrator) refresh(ctx context.Context) error {
	generation := o.view.Generation()
	if err := o.loadAccounts(ctx); err != nil {
		return err
	}
	if accountID, ok := o.view.ShowingHistory(); ok {
		return o.loadHistory(ctx, accountID, generation)
	}
	return nil
}

// mutation describes one side-effecting operation.
type mutation struct {
	name     string
	form     *state.PendingOperation
	validate func() error
	submit   func(ctx context.Context) error
	success  string
}

// mutate runs m as submit, await, refresh, publish. On failure nothing is
// refreshed and the pending form is kept for correction. The pending form is
// only replaced once the single-flight guard is held.
func (o *Orchestrator) mutate(ctx context.Context, m mutation) error {
	if err := o.requireSession(m.name); err != nil {
		return err
	}
	if !o.acquire(m.name) {
		return ErrBusy
	}
	defer o.release()

	epoch := o.epoch.Load()
	if m.form != nil {
		o.state.SetPending(*m.form)
	}
	if m.validate != nil && o.cfg.AmountPolicy == PolicyLocal {
		if err := m.validate(); err != nil {
			metrics.ObserveOperation(m.name, "invalid")
			o.status.PublishError(err)
			return err
		}
	}

	ctx, seq, end := o.begin(ctx)
	defer end()
	log := o.logger.WithFields(logrus.Fields{"op": m.name, "seq": seq})

	if err := m.submit(ctx); err != nil {
		o.fail(m.name, epoch, err)
		return err
	}
	if o.stale(epoch) {
		log.Debug("session changed while submitting; outcome not published")
		metrics.ObserveOperation(m.name, "discarded")
		return nil
	}
	o.session.MarkVerified()
	if m.form != nil {
		o.state.ClearPending()
	}

	if err := o.refresh(ctx); err != nil {
		if gateway.IsUnauthorized(err) || o.stale(epoch) {
			o.fail(m.name, epoch, err)
			return nil
		}
		log.WithError(err).Warn("refresh after mutation failed")
		metrics.ObserveOperation(m.name, "refresh_failed")
		o.status.Publish(status.KindWarning, m.success+", but balances could not be refreshed: "+status.Reason(err))
		return nil
	}

	if o.stale(epoch) {
		return nil
	}
	log.Info("operation completed")
	metrics.ObserveOperation(m.name, "ok")
	o.status.Publish(status.KindSuccess, m.success)
	return nil
}

// Register creates a user. Role defaults to "user".
func (o *Orchestrator) Register(ctx context.Context, req models.RegisterRequest) (*models.User, error) {
	if strings.TrimSpace(req.Role) == "" {
		req.Role = "user"
	}
	if !o.acquire("register") {
		return nil, ErrBusy
	}
	defer o.release()

	epoch := o.epoch.Load()
	ctx, _, end := o.begin(ctx)
	defer end()

	user, err := o.ledger.Register(ctx, req)
	if err != nil {
		o.fail("register", epoch, err)
		return nil, err
	}
	metrics.ObserveOperation("register", "ok")
	o.status.Publish(status.KindSuccess, "User registered. You can now sign in.")
	return user, nil
}

// Login signs in and loads the account list. Whatever was cached for a
// previous identity is dropped first.
func (o *Orchestrator) Login(ctx context.Context, email, password string) error {
	if !o.acquire("login") {
		return ErrBusy
	}
	defer o.release()

	epoch := o.epoch.Load()
	ctx, _, end := o.begin(ctx)
	defer end()

	if _, err := o.session.Login(ctx, email, password); err != nil {
		o.fail("login", epoch, err)
		return err
	}
	epoch = o.epoch.Add(1)
	o.discardPending()
	o.state.Reset()
	o.view.Reset()
	metrics.ObserveOperation("login", "ok")
	o.status.Publish(status.KindSuccess, "Signed in.")

	if err := o.loadAccounts(ctx); err != nil {
		o.fail("accounts.refresh", epoch, err)
	}
	return nil
}

// Restore adopts a stored token, if any, and loads the account list with it.
func (o *Orchestrator) Restore(ctx context.Context) (session.Session, error) {
	sess, err := o.session.Restore()
	if err != nil {
		o.logger.WithError(err).Warn("stored credentials unreadable")
		return sess, err
	}
	if !sess.Present() {
		return sess, nil
	}
	if err := o.RefreshAccounts(ctx); err != nil {
		return o.session.Current(), err
	}
	return o.session.Current(), nil
}

// Logout ends the session and forgets every cached collection.
func (o *Orchestrator) Logout() error {
	o.epoch.Add(1)
	o.CancelInFlight()
	o.discardPending()
	err := o.session.Logout()
	o.state.Reset()
	o.view.Reset()
	if err != nil {
		o.logger.WithError(err).Warn("stored token could not be removed")
		o.status.PublishError(err)
		return err
	}
	o.status.Publish(status.KindInfo, "Signed out.")
	return nil
}

// RefreshAccounts re-reads the account list.
func (o *Orchestrator) RefreshAccounts(ctx context.Context) error {
	if err := o.requireSession("accounts.refresh"); err != nil {
		return err
	}
	epoch := o.epoch.Load()
	ctx, _, end := o.begin(ctx)
	defer end()

	if err := o.loadAccounts(ctx); err != nil {
		o.fail("accounts.refresh", epoch, err)
		return err
	}
	metrics.ObserveOperation("accounts.refresh", "ok")
	return nil
}

// FetchHistory loads the transactions of accountID. The result is dropped if
// the view changed while the request was out.
func (o *Orchestrator) FetchHistory(ctx context.Context, accountID int) error {
	if err := o.requireSession("transactions.fetch"); err != nil {
		return err
	}
	epoch := o.epoch.Load()
	generation := o.view.Generation()
	ctx, _, end := o.begin(ctx)
	defer end()

	if err := o.loadHistory(ctx, accountID, generation); err != nil {
		o.fail("transactions.fetch", epoch, err)
		return err
	}
	metrics.ObserveOperation("transactions.fetch", "ok")
	return nil
}

// FetchAccessLogs loads the caller's access log, or everyone's when all is set.
func (o *Orchestrator) FetchAccessLogs(ctx context.Context, all bool) error {
	if err := o.requireSession("access_logs.fetch"); err != nil {
		return err
	}
	epoch := o.epoch.Load()
	generation := o.view.Generation()
	ctx, _, end := o.begin(ctx)
	defer end()

	seq := o.seq.Add(1)
	o.logsSeq.Store(seq)

	list := o.ledger.ListAccessLogs
	if all {
		list = o.ledger.ListAllAccessLogs
	}
	entries, err := list(ctx)
	if err != nil {
		o.fail("access_logs.fetch", epoch, err)
		return err
	}
	if o.logsSeq.Load() != seq || o.view.Generation() != generation {
		o.logger.WithField("seq", seq).Debug("discarding stale access logs")
		return nil
	}
	o.session.MarkVerified()
	o.state.SetAccessLogs(entries)
	metrics.ObserveOperation("access_logs.fetch", "ok")
	return nil
}

func (o *Orchestrator) CreateAccount(ctx context.Context) (*models.Account, error) {
	var created *models.Account
	err := o.mutate(ctx, mutation{
		name: "accounts.create",
		submit: func(ctx context.Context) error {
			acc, err := o.ledger.CreateAccount(ctx)
			created = acc
			return err
		},
		success: "Account created.",
	})
	return created, err
}

// CloseAccount deletes accountID on the ledger.
func (o *Orchestrator) CloseAccount(ctx context.Context, accountID int) error {
	return o.mutate(ctx, mutation{
		name: "accounts.delete",
		submit: func(ctx context.Context) error {
			_, err := o.ledger.DeleteAccount(ctx, accountID)
			return err
		},
		success: "Account closed.",
	})
}

// Transfer moves form.Amount from form.SenderAccountID to form.ReceiverAccountID.
func (o *Orchestrator) Transfer(ctx context.Context, form state.PendingOperation) (*models.Transaction, error) {
	req := models.TransferRequest{
		Amount:            models.ParseAmount(form.Amount),
		ReceiverAccountID: models.ParseID(form.ReceiverAccountID),
	}
	var tx *models.Transaction
	err := o.mutate(ctx, mutation{
		name: "transactions.transfer",
		form: &form,
		validate: func() error {
			sender := models.ParseID(form.SenderAccountID)
			if err := validateID("sender account", sender); err != nil {
				return err
			}
			if err := validateID("receiver account", req.ReceiverAccountID); err != nil {
				return err
			}
			if *sender == *req.ReceiverAccountID {
				return &ValidationError{Field: "receiver account", Problem: "must differ from the sender"}
			}
			return validateAmount(req.Amount)
		},
		submit: func(ctx context.Context) error {
			var err error
			tx, err = o.ledger.Transfer(ctx, form.SenderAccountID, req)
			return err
		},
		success: "Transfer completed.",
	})
	return tx, err
}

// Deposit credits form.Amount to form.ReceiverAccountID.
func (o *Orchestrator) Deposit(ctx context.Context, form state.PendingOperation) (*models.Transaction, error) {
	req := models.DepositRequest{
		Amount:            models.ParseAmount(form.Amount),
		ReceiverAccountID: models.ParseID(form.ReceiverAccountID),
	}
	var tx *models.Transaction
	err := o.mutate(ctx, mutation{
		name: "transactions.deposit",
		form: &form,
		validate: func() error {
			if err := validateID("receiver account", req.ReceiverAccountID); err != nil {
				return err
			}
			return validateAmount(req.Amount)
		},
		submit: func(ctx context.Context) error {
			var err error
			tx, err = o.ledger.Deposit(ctx, req)
			return err
		},
		success: "Deposit completed.",
	})
	return tx, err
}

// Withdraw debits form.Amount from form.SenderAccountID.
func (o *Orchestrator) Withdraw(ctx context.Context, form state.PendingOperation) (*models.Transaction, error) {
	req := models.WithdrawRequest{
		Amount:          models.ParseAmount(form.Amount),
		SenderAccountID: models.ParseID(form.SenderAccountID),
	}
	var tx *models.Transaction
	err := o.mutate(ctx, mutation{
		name: "transactions.withdraw",
		form: &form,
		validate: func() error {
			if err := validateID("sender account", req.SenderAccountID); err != nil {
				return err
			}
			return validateAmount(req.Amount)
		},
		submit: func(ctx context.Context) error {
			var err error
			tx, err = o.ledger.Withdraw(ctx, req)
			return err
		},
		success: "Withdrawal completed.",
	})
	return tx, err
}

func validateID(field string, id *int) error {
	if id == nil {
		return &ValidationError{Field: field, Problem: "must be a whole number"}
	}
	if *id <= 0 {
		return &ValidationError{Field: field, Problem: "must be positive"}
	}
	return nil
}

func validateAmount(a models.Amount) error {
	if !a.Valid {
		return &ValidationError{Field: "amount", Problem: "must be a number"}
	}
	if !a.Positive() {
		return &ValidationError{Field: "amount", Problem: "must be greater than zero"}
	}
	return nil
}

var _ View = (*view.Machine)(nil)
