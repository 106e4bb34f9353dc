// Path: pkg/database/database.go
package database

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// User represents a registered user in the database.
type User struct {
	ID             uint      `gorm:"primaryKey"`
	Email          string    `gorm:"uniqueIndex;not null"`
	FullName       string    `gorm:"not null"`
	HashedPassword string    `gorm:"not null"`
	Role           string    `gorm:"not null;default:user"`
	IsActive       bool      `gorm:"not null;default:true"`
	CreatedAt      time.Time `gorm:"not null"`
}

// BankAccount represents an account in the database.
type BankAccount struct {
	ID            uint            `gorm:"primaryKey"`
	AccountNumber string          `gorm:"uniqueIndex;size:19;not null"`
	Balance       decimal.Decimal `gorm:"type:numeric(18,2);not null;default:0"`
	BalanceHash   string          `gorm:"not null"`
	OwnerID       uint            `gorm:"index;not null"`
	CreatedAt     time.Time       `gorm:"not null"`
	Owner         User            `gorm:"constraint:OnDelete:CASCADE;"`
}

func (BankAccount) TableName() string { return "accounts" }

// Transaction represents a movement of funds. A nil sender is a deposit, a
// nil receiver a withdrawal.
type Transaction struct {
	ID                uint `gorm:"primaryKey"`
	SenderAccountID   *uint
	ReceiverAccountID *uint
	Amount            decimal.Decimal `gorm:"type:numeric(18,2);not null"`
	Status            string          `gorm:"not null"`
	CreatedAt         time.Time       `gorm:"index;not null"`
	SenderAccount     *BankAccount    `gorm:"constraint:OnDelete:SET NULL;"`
	ReceiverAccount   *BankAccount    `gorm:"constraint:OnDelete:SET NULL;"`
}

// AccessLog records one call against the ledger. UserID is nil for
// anonymous calls.
type AccessLog struct {
	ID        uint `gorm:"primaryKey"`
	UserID    *uint
	Action    string    `gorm:"not null"`
	IPAddress string    `gorm:"not null"`
	UserAgent string    `gorm:"not null"`
	CreatedAt time.Time `gorm:"index;not null"`
	User      *User     `gorm:"constraint:OnDelete:SET NULL;"`
}

// InitDB opens the postgres database and creates tables if they don't exist.
func InitDB(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := createTables(db); err != nil {
		return nil, err
	}

	return db, nil
}

// createTables creates the necessary tables in the database.
func createTables(db *gorm.DB) error {
	err := db.AutoMigrate(&User{}, &BankAccount{}, &Transaction{}, &AccessLog{})
	if err != nil {
		return fmt.Errorf("failed to auto-migrate tables: %w", err)
	}

	return nil
}
