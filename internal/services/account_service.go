// Path: internal/services/account_service.go
package services

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"unibank/internal/models"
	"unibank/pkg/database"
	"unibank/pkg/utils"
)

const maxNumberAttempts = 10

// AccountService handles account-related operations.
type AccountService interface {
	ListAccounts(ownerID uint) ([]models.Account, error)
	CreateAccount(ownerID uint) (*models.Account, error)
	DeleteAccount(ownerID, accountID uint) error
}

type accountService struct {
	db        *gorm.DB
	secretKey string
}

// NewAccountService creates a new AccountService.
func NewAccountService(db *gorm.DB, secretKey string) AccountService {
	return &accountService{
		db:        db,
		secretKey: secretKey,
	}
}

func (s *accountService) verify(acc database.BankAccount) error {
	if !utils.VerifyBalanceHash(acc.Balance, acc.ID, acc.BalanceHash, s.secretKey) {
		return &AppError{Code: 500, Message: "Balance integrity check failed", Details: fmt.Sprintf("account_id: %d", acc.ID)}
	}
	return nil
}

// ListAccounts retrieves all accounts for a given user.
func (s *accountService) ListAccounts(ownerID uint) ([]models.Account, error) {
	var rows []database.BankAccount
	if err := s.db.Where("owner_id = ?", ownerID).Order("id").Find(&rows).Error; err != nil {
		return nil, internalError("Failed to query accounts", err)
	}

	accounts := make([]models.Account, 0, len(rows))
	for _, acc := range rows {
		if err := s.verify(acc); err != nil {
			return nil, err
		}
		accounts = append(accounts, toAccount(acc))
	}
	return accounts, nil
}

// CreateAccount opens an empty account with a fresh unique number.
func (s *accountService) CreateAccount(ownerID uint) (*models.Account, error) {
	var created database.BankAccount
	err := s.db.Transaction(func(tx *gorm.DB) error {
		number, err := s.uniqueNumber(tx)
		if err != nil {
			return err
		}

		created = database.BankAccount{
			AccountNumber: number,
			Balance:       decimal.Zero,
			BalanceHash:   "pending",
			OwnerID:       ownerID,
		}
		if err := tx.Create(&created).Error; err != nil {
			return internalError("Failed to create account", err)
		}

		created.BalanceHash = utils.CalculateBalanceHash(created.Balance, created.ID, s.secretKey)
		if err := tx.Model(&created).Update("balance_hash", created.BalanceHash).Error; err != nil {
			return internalError("Failed to seal account balance", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	acc := toAccount(created)
	return &acc, nil
}

func (s *accountService) uniqueNumber(tx *gorm.DB) (string, error) {
	for i := 0; i < maxNumberAttempts; i++ {
		number, err := utils.GenerateAccountNumber()
		if err != nil {
			return "", internalError("Failed to generate account number", err)
		}
		var count int64
		if err := tx.Model(&database.BankAccount{}).Where("account_number = ?", number).Count(&count).Error; err != nil {
			return "", internalError("Failed to check account number", err)
		}
		if count == 0 {
			return number, nil
		}
	}
	return "", &AppError{Code: 500, Message: "Failed to generate unique account number"}
}

// DeleteAccount removes one of the owner's accounts. Past transactions keep
// their amounts but lose the reference.
func (s *accountService) DeleteAccount(ownerID, accountID uint) error {
	res := s.db.Where("id = ? AND owner_id = ?", accountID, ownerID).Delete(&database.BankAccount{})
	if res.Error != nil {
		return internalError("Failed to delete account", res.Error)
	}
	if res.RowsAffected == 0 {
		return &AppError{Code: 404, Message: "Account not found", Details: fmt.Sprintf("account_id: %d, user_id: %d", accountID, ownerID)}
	}
	return nil
}

// findOwned loads accountID if it belongs to ownerID.
func findOwned(tx *gorm.DB, ownerID, accountID uint) (*database.BankAccount, error) {
	var acc database.BankAccount
	err := tx.Where("id = ? AND owner_id = ?", accountID, ownerID).First(&acc).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &AppError{Code: 404, Message: "Account not found", Details: fmt.Sprintf("account_id: %d, user_id: %d", accountID, ownerID)}
		}
		return nil, internalError("Failed to query account", err)
	}
	return &acc, nil
}
