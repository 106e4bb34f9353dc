package services

import (
	"time"

	"gorm.io/gorm"
)

// Service bundles every ledger service over one database.
type Service struct {
	Auth         AuthService
	Accounts     AccountService
	Transactions TransactionService
	Audit        AuditService
}

// NewService wires the services. secret signs tokens and seals balances.
func NewService(db *gorm.DB, secret string, tokenTTL time.Duration) *Service {
	return &Service{
		Auth:         NewAuthService(db, NewTokenIssuer(secret, tokenTTL)),
		Accounts:     NewAccountService(db, secret),
		Transactions: NewTransactionService(db, secret),
		Audit:        NewAuditService(db),
	}
}
