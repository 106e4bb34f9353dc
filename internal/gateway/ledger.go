package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"unibank/internal/models"
)

const (
	tokenPath         = "/auth/token"
	registerPath      = "/auth/register"
	accountsPath      = "/accounts"
	transactionsPath  = "/transactions"
	depositPath       = "/transactions/deposit"
	withdrawPath      = "/transactions/withdraw"
	accessLogsPath    = "/access-logs"
	allAccessLogsPath = "/access-logs/all"
)

// Login exchanges credentials for a token. The call is never authenticated.
func (c *Client) Login(ctx context.Context, email, password string) (*models.Token, error) {
	form := url.Values{}
	form.Set("username", email)
	form.Set("password", password)

	var token models.Token
	err := c.do(ctx, call{
		endpoint:  "auth.token",
		method:    http.MethodPost,
		path:      tokenPath,
		form:      form,
		anonymous: true,
	}, &token)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(token.AccessToken) == "" {
		return nil, &AuthError{StatusCode: http.StatusOK, reason: "ledger returned an empty token"}
	}
	return &token, nil
}

// Register creates a user. The call is never authenticated.
func (c *Client) Register(ctx context.Context, req models.RegisterRequest) (*models.User, error) {
	var user models.User
	err := c.do(ctx, call{
		endpoint:  "auth.register",
		method:    http.MethodPost,
		path:      registerPath,
		body:      req,
		anonymous: true,
	}, &user)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *Client) ListAccounts(ctx context.Context) ([]models.Account, error) {
	var accounts []models.Account
	if err := c.do(ctx, call{endpoint: "accounts.list", method: http.MethodGet, path: accountsPath}, &accounts); err != nil {
		return nil, err
	}
	if accounts == nil {
		accounts = []models.Account{}
	}
	return accounts, nil
}

func (c *Client) CreateAccount(ctx context.Context) (*models.Account, error) {
	var account models.Account
	if err := c.do(ctx, call{endpoint: "accounts.create", method: http.MethodPost, path: accountsPath}, &account); err != nil {
		return nil, err
	}
	return &account, nil
}

func (c *Client) DeleteAccount(ctx context.Context, accountID int) (*models.Message, error) {
	var msg models.Message
	err := c.do(ctx, call{
		endpoint: "accounts.delete",
		method:   http.MethodDelete,
		path:     fmt.Sprintf("%s/%d", accountsPath, accountID),
	}, &msg)
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// Transfer moves funds out of senderAccountID. The sender is passed through
// as typed so that malformed input reaches the ledger for rejection.
func (c *Client) Transfer(ctx context.Context, senderAccountID string, req models.TransferRequest) (*models.Transaction, error) {
	query := url.Values{}
	query.Set("sender_account_id", strings.TrimSpace(senderAccountID))

	var tx models.Transaction
	err := c.do(ctx, call{
		endpoint: "transactions.transfer",
		method:   http.MethodPost,
		path:     transactionsPath,
		query:    query,
		body:     req,
	}, &tx)
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

func (c *Client) Deposit(ctx context.Context, req models.DepositRequest) (*models.Transaction, error) {
	var tx models.Transaction
	if err := c.do(ctx, call{endpoint: "transactions.deposit", method: http.MethodPost, path: depositPath, body: req}, &tx); err != nil {
		return nil, err
	}
	return &tx, nil
}

func (c *Client) Withdraw(ctx context.Context, req models.WithdrawRequest) (*models.Transaction, error) {
	var tx models.Transaction
	if err := c.do(ctx, call{endpoint: "transactions.withdraw", method: http.MethodPost, path: withdrawPath, body: req}, &tx); err != nil {
		return nil, err
	}
	return &tx, nil
}

func (c *Client) ListTransactions(ctx context.Context, accountID int) ([]models.Transaction, error) {
	var txs []models.Transaction
	err := c.do(ctx, call{
		endpoint: "transactions.list",
		method:   http.MethodGet,
		path:     transactionsPath + "/" + strconv.Itoa(accountID),
	}, &txs)
	if err != nil {
		return nil, err
	}
	if txs == nil {
		txs = []models.Transaction{}
	}
	return txs, nil
}

func (c *Client) ListAccessLogs(ctx context.Context) ([]models.AccessLogEntry, error) {
	return c.listAccessLogs(ctx, "access_logs.list", accessLogsPath)
}

// ListAllAccessLogs returns every user's entries; the ledger restricts it to admins.
func (c *Client) ListAllAccessLogs(ctx context.Context) ([]models.AccessLogEntry, error) {
	return c.listAccessLogs(ctx, "access_logs.all", allAccessLogsPath)
}

func (c *Client) listAccessLogs(ctx context.Context, endpoint, path string) ([]models.AccessLogEntry, error) {
	var entries []models.AccessLogEntry
	if err := c.do(ctx, call{endpoint: endpoint, method: http.MethodGet, path: path}, &entries); err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []models.AccessLogEntry{}
	}
	return entries, nil
}

// IsUnauthorized reports whether err is the ledger rejecting the session.
func IsUnauthorized(err error) bool {
	var reqErr *RequestError
	return errors.As(err, &reqErr) && reqErr.Unauthorized()
}
