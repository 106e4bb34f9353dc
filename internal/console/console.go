// Package console is the line-oriented front end. Commands that talk to the
// ledger run in the background; the prompt stays usable while they are out
// and every status change is printed as it is published.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"unibank/internal/models"
	"unibank/internal/session"
	"unibank/internal/state"
	"unibank/internal/status"
	"unibank/internal/view"
)

// Actions is implemented by the orchestrator.
type Actions interface {
	Register(ctx context.Context, req models.RegisterRequest) (*models.User, error)
	Login(ctx context.Context, email, password string) error
	Logout() error
	RefreshAccounts(ctx context.Context) error
	CreateAccount(ctx context.Context) (*models.Account, error)
	CloseAccount(ctx context.Context, accountID int) error
	Transfer(ctx context.Context, form state.PendingOperation) (*models.Transaction, error)
	Deposit(ctx context.Context, form state.PendingOperation) (*models.Transaction, error)
	Withdraw(ctx context.Context, form state.PendingOperation) (*models.Transaction, error)
	FetchAccessLogs(ctx context.Context, all bool) error
	Dismiss()
	CancelInFlight() int
}

// Navigator is implemented by the view machine.
type Navigator interface {
	Current() view.Name
	Navigate(n view.Name) error
	OpenAccount(ctx context.Context, accountID int) error
}

// Identity reports the current session.
type Identity interface {
	Current() session.Session
}

// ErrUsage marks malformed commands.
var ErrUsage = errors.New("usage")

func usage(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrUsage}, args...)...)
}

type Console struct {
	actions  Actions
	nav      Navigator
	identity Identity
	state    *state.AppState
	status   *status.Channel
	logger   *logrus.Entry

	outMu sync.Mutex
	out   io.Writer

	wg sync.WaitGroup
}

func New(actions Actions, nav Navigator, identity Identity, st *state.AppState, ch *status.Channel, out io.Writer, logger *logrus.Entry) *Console {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Console{
		actions:  actions,
		nav:      nav,
		identity: identity,
		state:    st,
		status:   ch,
		out:      out,
		logger:   logger.WithField("component", "console"),
	}
}

// printf writes to the output under the console lock.
func (c *Console) printf(format string, args ...any) {
	c.outMu.Lock()
	defer c.outMu.Unlock()
	fmt.Fprintf(c.out, format, args...)
}

func (c *Console) render(fn func(w io.Writer)) {
	c.outMu.Lock()
	defer c.outMu.Unlock()
	fn(c.out)
}

// Wait blocks until every background command has finished.
func (c *Console) Wait() {
	c.wg.Wait()
}

// spawn runs fn in the background and shows the current view afterwards.
// Failures have already been published on the status channel.
func (c *Console) spawn(ctx context.Context, name string, fn func(ctx context.Context) error) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		if err := fn(ctx); err != nil {
			c.logger.WithError(err).WithField("command", name).Debug("command failed")
			return
		}
		c.show()
	}()
}

// show renders whatever the active view displays.
func (c *Console) show() {
	switch c.nav.Current() {
	case view.Unauthenticated:
		c.printf("Not signed in. Use login or register.\n")
	case view.Accounts:
		accounts := c.state.Accounts()
		c.render(func(w io.Writer) { renderAccounts(w, accounts) })
	case view.Transactions:
		id, txs := c.state.Transactions()
		c.render(func(w io.Writer) { renderTransactions(w, id, txs) })
	case view.Logs:
		entries := c.state.AccessLogs()
		c.render(func(w io.Writer) { renderLogs(w, entries) })
	}
}

func parseAccountID(raw string) (int, error) {
	id, err := strconv.Atoi(raw)
	if err != nil || id <= 0 {
		return 0, usage("account id must be a positive whole number, got %q", raw)
	}
	return id, nil
}

// Execute runs one command line. It reports whether the console should exit.
func (c *Console) Execute(ctx context.Context, line string) (bool, error) {
	args, err := splitArgs(line)
	if err != nil {
		return false, usage("%v", err)
	}
	if len(args) == 0 {
		return false, nil
	}
	cmd, args := strings.ToLower(args[0]), args[1:]

	switch cmd {
	case "help", "?":
		c.printf("%s\n", helpText)

	case "quit", "exit":
		return true, nil

	case "register":
		if len(args) < 3 || len(args) > 4 {
			return false, usage(`register <email> "<full name>" <password> [role]`)
		}
		req := models.RegisterRequest{Email: args[0], FullName: args[1], Password: args[2]}
		if len(args) == 4 {
			req.Role = args[3]
		}
		c.spawn(ctx, cmd, func(ctx context.Context) error {
			_, err := c.actions.Register(ctx, req)
			return err
		})

	case "login":
		if len(args) != 2 {
			return false, usage("login <email> <password>")
		}
		email, password := args[0], args[1]
		c.spawn(ctx, cmd, func(ctx context.Context) error {
			return c.actions.Login(ctx, email, password)
		})

	case "logout":
		_ = c.actions.Logout()

	case "whoami":
		sess := c.identity.Current()
		c.render(func(w io.Writer) { renderSession(w, sess) })

	case "accounts", "dashboard":
		_ = c.nav.Navigate(view.Accounts)
		c.spawn(ctx, cmd, c.actions.RefreshAccounts)

	case "new-account":
		c.spawn(ctx, cmd, func(ctx context.Context) error {
			_, err := c.actions.CreateAccount(ctx)
			return err
		})

	case "close-account":
		if len(args) != 1 {
			return false, usage("close-account <id>")
		}
		id, err := parseAccountID(args[0])
		if err != nil {
			return false, err
		}
		c.spawn(ctx, cmd, func(ctx context.Context) error {
			return c.actions.CloseAccount(ctx, id)
		})

	case "history":
		if len(args) != 1 {
			return false, usage("history <id>")
		}
		id, err := parseAccountID(args[0])
		if err != nil {
			return false, err
		}
		c.spawn(ctx, cmd, func(ctx context.Context) error {
			return c.nav.OpenAccount(ctx, id)
		})

	case "transfer":
		if len(args) != 3 {
			return false, usage("transfer <from> <to> <amount>")
		}
		form := state.PendingOperation{SenderAccountID: args[0], ReceiverAccountID: args[1], Amount: args[2]}
		c.spawn(ctx, cmd, func(ctx context.Context) error {
			_, err := c.actions.Transfer(ctx, form)
			return err
		})

	case "deposit":
		if len(args) != 2 {
			return false, usage("deposit <to> <amount>")
		}
		form := state.PendingOperation{ReceiverAccountID: args[0], Amount: args[1]}
		c.spawn(ctx, cmd, func(ctx context.Context) error {
			_, err := c.actions.Deposit(ctx, form)
			return err
		})

	case "withdraw":
		if len(args) != 2 {
			return false, usage("withdraw <from> <amount>")
		}
		form := state.PendingOperation{SenderAccountID: args[0], Amount: args[1]}
		c.spawn(ctx, cmd, func(ctx context.Context) error {
			_, err := c.actions.Withdraw(ctx, form)
			return err
		})

	case "logs":
		all := false
		switch {
		case len(args) == 1 && strings.EqualFold(args[0], "all"):
			all = true
		case len(args) != 0:
			return false, usage("logs [all]")
		}
		_ = c.nav.Navigate(view.Logs)
		c.spawn(ctx, cmd, func(ctx context.Context) error {
			return c.actions.FetchAccessLogs(ctx, all)
		})

	case "view":
		if len(args) != 1 {
			return false, usage("view <accounts|transactions|logs>")
		}
		name, err := view.Parse(strings.ToLower(args[0]))
		if err != nil {
			return false, usage("%v", err)
		}
		if err := c.nav.Navigate(name); err != nil {
			return false, usage("%v", err)
		}
		c.show()

	case "dismiss":
		c.actions.Dismiss()

	case "cancel":
		n := c.actions.CancelInFlight()
		c.printf("cancelled %d request(s)\n", n)

	case "status":
		st := c.status.Current()
		c.render(func(w io.Writer) { renderStatus(w, st) })

	default:
		return false, usage("unknown command %q, try help", cmd)
	}
	return false, nil
}

// Run reads commands from in until quit, EOF or ctx is done.
func (c *Console) Run(ctx context.Context, in io.Reader) error {
	var (
		lastMu sync.Mutex
		last   status.Status
	)
	c.status.Subscribe(func(st status.Status) {
		lastMu.Lock()
		changed := st.Message != last.Message || st.Kind != last.Kind
		last = st
		lastMu.Unlock()
		if changed && st.HasMessage() {
			c.render(func(w io.Writer) { renderStatus(w, st) })
		}
	})

	defer func() {
		c.actions.CancelInFlight()
		c.Wait()
	}()

	c.show()
	scanner := bufio.NewScanner(in)
	for {
		c.printf("> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		if ctx.Err() != nil {
			return nil
		}
		quit, err := c.Execute(ctx, scanner.Text())
		if err != nil {
			c.printf("%v\n", err)
		}
		if quit {
			return nil
		}
	}
}
