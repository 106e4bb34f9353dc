package services

import (
	"gorm.io/gorm"

	"unibank/internal/models"
	"unibank/pkg/database"
)

// AuditService stores and lists access log entries.
type AuditService interface {
	Record(userID *uint, action, ipAddress, userAgent string) error
	ListForUser(userID uint) ([]models.AccessLogEntry, error)
	ListAll() ([]models.AccessLogEntry, error)
}

type auditService struct {
	db *gorm.DB
}

func NewAuditService(db *gorm.DB) AuditService {
	return &auditService{db: db}
}

func (s *auditService) Record(userID *uint, action, ipAddress, userAgent string) error {
	if ipAddress == "" {
		ipAddress = "unknown"
	}
	if userAgent == "" {
		userAgent = "unknown"
	}
	entry := database.AccessLog{UserID: userID, Action: action, IPAddress: ipAddress, UserAgent: userAgent}
	if err := s.db.Create(&entry).Error; err != nil {
		return internalError("Failed to record access", err)
	}
	return nil
}

func (s *auditService) ListForUser(userID uint) ([]models.AccessLogEntry, error) {
	return s.list(s.db.Where("user_id = ?", userID))
}

func (s *auditService) ListAll() ([]models.AccessLogEntry, error) {
	return s.list(s.db)
}

func (s *auditService) list(q *gorm.DB) ([]models.AccessLogEntry, error) {
	var rows []database.AccessLog
	if err := q.Order("created_at DESC").Order("id DESC").Find(&rows).Error; err != nil {
		return nil, internalError("Failed to query access logs", err)
	}
	out := make([]models.AccessLogEntry, 0, len(rows))
	for _, row := range rows {
		out = append(out, toAccessLog(row))
	}
	return out, nil
}
