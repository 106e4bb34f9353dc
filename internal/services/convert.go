package services

import (
	"unibank/internal/models"
	"unibank/pkg/database"
)

func toUser(u database.User) models.User {
	return models.User{
		ID:        int(u.ID),
		Email:     u.Email,
		FullName:  u.FullName,
		Role:      u.Role,
		IsActive:  u.IsActive,
		CreatedAt: models.Timestamp{Time: u.CreatedAt},
	}
}

func toAccount(a database.BankAccount) models.Account {
	return models.Account{
		ID:            int(a.ID),
		AccountNumber: a.AccountNumber,
		Balance:       a.Balance,
		OwnerID:       int(a.OwnerID),
		CreatedAt:     models.Timestamp{Time: a.CreatedAt},
	}
}

func optionalID(id *uint) *int {
	if id == nil {
		return nil
	}
	v := int(*id)
	return &v
}

func toTransaction(t database.Transaction) models.Transaction {
	return models.Transaction{
		ID:                int(t.ID),
		SenderAccountID:   optionalID(t.SenderAccountID),
		ReceiverAccountID: optionalID(t.ReceiverAccountID),
		Amount:            t.Amount,
		Status:            models.TransactionStatus(t.Status),
		CreatedAt:         models.Timestamp{Time: t.CreatedAt},
	}
}

func toAccessLog(l database.AccessLog) models.AccessLogEntry {
	entry := models.AccessLogEntry{
		ID:        int(l.ID),
		Action:    l.Action,
		IPAddress: l.IPAddress,
		UserAgent: l.UserAgent,
		CreatedAt: models.Timestamp{Time: l.CreatedAt},
	}
	if l.UserID != nil {
		entry.UserID = int(*l.UserID)
	}
	return entry
}
