package models

import "time"

// CreditAudit records every manual credit mutation (admin add/reset/deduct)
// with the acting principal for later review.
type CreditAudit struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	AuditID     string    `gorm:"type:char(36);uniqueIndex" json:"audit_id"`
	UserID      string    `gorm:"type:varchar(191);not null;index" json:"user_id"`
	Action      string    `gorm:"type:varchar(20);not null;index" json:"action"`
	Amount      int       `gorm:"not null" json:"amount"`
	Description string    `gorm:"type:varchar(500);default:''" json:"description"`
	Actor       string    `gorm:"type:varchar(191);default:''" json:"actor"`
	CreatedAt   time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}
