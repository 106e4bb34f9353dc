// Path: internal/services/transaction_service.go
package services

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"unibank/internal/models"
	"unibank/pkg/database"
	"unibank/pkg/utils"
)

// TransactionService handles transaction-related operations. Every movement
// runs in one database transaction with the touched accounts row-locked.
type TransactionService interface {
	Transfer(userID, senderID, receiverID uint, amount decimal.Decimal) (*models.Transaction, error)
	Deposit(receiverID uint, amount decimal.Decimal) (*models.Transaction, error)
	Withdraw(userID, senderID uint, amount decimal.Decimal) (*models.Transaction, error)
	ListTransactions(userID, accountID uint) ([]models.Transaction, error)
}

type transactionService struct {
	db        *gorm.DB
	secretKey string
}

// NewTransactionService creates a new TransactionService.
func NewTransactionService(db *gorm.DB, secretKey string) TransactionService {
	return &transactionService{
		db:        db,
		secretKey: secretKey,
	}
}

func validateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return &AppError{Code: 400, Message: "Amount must be greater than zero", Details: amount.String()}
	}
	if !amount.Equal(amount.Round(2)) {
		return &AppError{Code: 400, Message: "Amount must have at most two decimal places", Details: amount.String()}
	}
	return nil
}

// lockAccounts loads and row-locks ids in ascending order so concurrent
// transfers between the same pair cannot deadlock.
func (s *transactionService) lockAccounts(tx *gorm.DB, ids ...uint) (map[uint]*database.BankAccount, error) {
	sorted := append([]uint(nil), ids...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var rows []database.BankAccount
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id IN ?", sorted).
		Order("id").
		Find(&rows).Error
	if err != nil {
		return nil, internalError("Failed to lock accounts", err)
	}

	locked := make(map[uint]*database.BankAccount, len(rows))
	for i := range rows {
		acc := &rows[i]
		if !utils.VerifyBalanceHash(acc.Balance, acc.ID, acc.BalanceHash, s.secretKey) {
			return nil, &AppError{Code: 500, Message: "Balance integrity check failed", Details: fmt.Sprintf("account_id: %d", acc.ID)}
		}
		locked[acc.ID] = acc
	}
	return locked, nil
}

func (s *transactionService) setBalance(tx *gorm.DB, acc *database.BankAccount, balance decimal.Decimal) error {
	acc.Balance = balance
	acc.BalanceHash = utils.CalculateBalanceHash(balance, acc.ID, s.secretKey)
	err := tx.Model(acc).Updates(map[string]interface{}{
		"balance":      acc.Balance,
		"balance_hash": acc.BalanceHash,
	}).Error
	if err != nil {
		return internalError("Failed to update account balance", err)
	}
	return nil
}

func (s *transactionService) record(tx *gorm.DB, senderID, receiverID *uint, amount decimal.Decimal) (*models.Transaction, error) {
	row := database.Transaction{
		SenderAccountID:   senderID,
		ReceiverAccountID: receiverID,
		Amount:            amount,
		Status:            string(models.TransactionCompleted),
	}
	if err := tx.Create(&row).Error; err != nil {
		return nil, internalError("Failed to insert transaction record", err)
	}
	out := toTransaction(row)
	return &out, nil
}

// Transfer moves amount from one of the user's accounts to any account.
func (s *transactionService) Transfer(userID, senderID, receiverID uint, amount decimal.Decimal) (*models.Transaction, error) {
	if err := validateAmount(amount); err != nil {
		return nil, err
	}
	if senderID == receiverID {
		return nil, &AppError{Code: 400, Message: "Sender and receiver accounts must differ", Details: fmt.Sprintf("account_id: %d", senderID)}
	}

	var result *models.Transaction
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if _, err := findOwned(tx, userID, senderID); err != nil {
			return err
		}
		locked, err := s.lockAccounts(tx, senderID, receiverID)
		if err != nil {
			return err
		}
		sender, receiver := locked[senderID], locked[receiverID]
		if sender == nil {
			return &AppError{Code: 404, Message: "Sender account not found", Details: fmt.Sprintf("account_id: %d", senderID)}
		}
		if receiver == nil {
			return &AppError{Code: 404, Message: "Receiver account not found", Details: fmt.Sprintf("account_id: %d", receiverID)}
		}
		if sender.Balance.LessThan(amount) {
			return &AppError{Code: 400, Message: "Insufficient funds", Details: fmt.Sprintf("account_id: %d, balance: %s, requested: %s", senderID, sender.Balance, amount)}
		}

		if err := s.setBalance(tx, sender, sender.Balance.Sub(amount)); err != nil {
			return err
		}
		if err := s.setBalance(tx, receiver, receiver.Balance.Add(amount)); err != nil {
			return err
		}
		result, err = s.record(tx, &senderID, &receiverID, amount)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Deposit credits amount to any existing account.
func (s *transactionService) Deposit(receiverID uint, amount decimal.Decimal) (*models.Transaction, error) {
	if err := validateAmount(amount); err != nil {
		return nil, err
	}

	var result *models.Transaction
	err := s.db.Transaction(func(tx *gorm.DB) error {
		locked, err := s.lockAccounts(tx, receiverID)
		if err != nil {
			return err
		}
		receiver := locked[receiverID]
		if receiver == nil {
			return &AppError{Code: 404, Message: "Receiver account not found", Details: fmt.Sprintf("account_id: %d", receiverID)}
		}
		if err := s.setBalance(tx, receiver, receiver.Balance.Add(amount)); err != nil {
			return err
		}
		result, err = s.record(tx, nil, &receiverID, amount)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Withdraw debits amount from one of the user's accounts.
func (s *transactionService) Withdraw(userID, senderID uint, amount decimal.Decimal) (*models.Transaction, error) {
	if err := validateAmount(amount); err != nil {
		return nil, err
	}

	var result *models.Transaction
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if _, err := findOwned(tx, userID, senderID); err != nil {
			return err
		}
		locked, err := s.lockAccounts(tx, senderID)
		if err != nil {
			return err
		}
		sender := locked[senderID]
		if sender == nil {
			return &AppError{Code: 404, Message: "Sender account not found", Details: fmt.Sprintf("account_id: %d", senderID)}
		}
		if sender.Balance.LessThan(amount) {
			return &AppError{Code: 400, Message: "Insufficient funds", Details: fmt.Sprintf("account_id: %d, balance: %s, requested: %s", senderID, sender.Balance, amount)}
		}
		if err := s.setBalance(tx, sender, sender.Balance.Sub(amount)); err != nil {
			return err
		}
		result, err = s.record(tx, &senderID, nil, amount)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ListTransactions returns every transaction touching one of the user's
// accounts, newest first.
func (s *transactionService) ListTransactions(userID, accountID uint) ([]models.Transaction, error) {
	if _, err := findOwned(s.db, userID, accountID); err != nil {
		return nil, err
	}

	var rows []database.Transaction
	err := s.db.Where("sender_account_id = ? OR receiver_account_id = ?", accountID, accountID).
		Order("created_at DESC").
		Order("id DESC").
		Find(&rows).Error
	if err != nil {
		return nil, internalError("Failed to query transactions", err)
	}

	out := make([]models.Transaction, 0, len(rows))
	for _, row := range rows {
		out = append(out, toTransaction(row))
	}
	return out, nil
}
