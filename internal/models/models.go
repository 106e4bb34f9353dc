// Path: internal/models/models.go
package models

import (
	"github.com/golang-jwt/jwt/v4"
	"github.com/shopspring/decimal"
)

// Wire types shared by the client and the reference ledger.

// User is the public view of a registered user.
type User struct {
	ID        int       `json:"id"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name"`
	Role      string    `json:"role"`
	IsActive  bool      `json:"is_active"`
	CreatedAt Timestamp `json:"created_at"`
}

// Account is a bank account as owned by the ledger. Clients only ever hold copies.
type Account struct {
	ID            int             `json:"id"`
	AccountNumber string          `json:"account_number"`
	Balance       decimal.Decimal `json:"balance"`
	OwnerID       int             `json:"owner_id"`
	CreatedAt     Timestamp       `json:"created_at"`
}

// TransactionStatus is the ledger-side state of a transaction.
type TransactionStatus string

const (
	TransactionPending   TransactionStatus = "pending"
	TransactionCompleted TransactionStatus = "completed"
	TransactionFailed    TransactionStatus = "failed"
)

// Transaction moves money between accounts. A nil sender is a deposit,
// a nil receiver is a withdrawal.
type Transaction struct {
	ID                int               `json:"id"`
	SenderAccountID   *int              `json:"sender_account_id"`
	ReceiverAccountID *int              `json:"receiver_account_id"`
	Amount            decimal.Decimal   `json:"amount"`
	Status            TransactionStatus `json:"status"`
	CreatedAt         Timestamp         `json:"created_at"`
}

// TransactionKind classifies a transaction from the accounts it touches.
type TransactionKind string

const (
	KindTransfer   TransactionKind = "transfer"
	KindDeposit    TransactionKind = "deposit"
	KindWithdrawal TransactionKind = "withdrawal"
)

// Kind reports whether t is a deposit, a withdrawal or a transfer.
func (t Transaction) Kind() TransactionKind {
	switch {
	case t.SenderAccountID == nil:
		return KindDeposit
	case t.ReceiverAccountID == nil:
		return KindWithdrawal
	default:
		return KindTransfer
	}
}

// AccessLogEntry records one authenticated call against the ledger.
type AccessLogEntry struct {
	ID        int       `json:"id"`
	UserID    int       `json:"user_id"`
	Action    string    `json:"action"`
	IPAddress string    `json:"ip_address"`
	UserAgent string    `json:"user_agent"`
	CreatedAt Timestamp `json:"created_at"`
}

// Token is the response of the token endpoint.
type Token struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// Message is a bare {"detail": "..."} body.
type Message struct {
	Detail string `json:"detail"`
}

type RegisterRequest struct {
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// TransferRequest is posted to /transactions with the sender in the query string.
type TransferRequest struct {
	Amount            Amount `json:"amount"`
	ReceiverAccountID *int   `json:"receiver_account_id"`
}

type DepositRequest struct {
	Amount            Amount `json:"amount"`
	ReceiverAccountID *int   `json:"receiver_account_id"`
}

type WithdrawRequest struct {
	Amount          Amount `json:"amount"`
	SenderAccountID *int   `json:"sender_account_id"`
}

// Claims are carried by ledger-issued tokens. Subject holds the user's email.
type Claims struct {
	UserID int    `json:"uid"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}
