package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// ParseSide accepts "buy"/"sell" in any case.
func ParseSide(s string) (Side, error) {
	switch Side(strings.ToUpper(strings.TrimSpace(s))) {
	case SideBuy:
		return SideBuy, nil
	case SideSell:
		return SideSell, nil
	}
	return "", fmt.Errorf("unknown trade side %q", s)
}

// Position is a user's current holding in one stock. Rows are hard-deleted
// when the quantity reaches zero, so there is no soft-delete column.
type Position struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	UserID      uint            `gorm:"not null;uniqueIndex:idx_position_user_stock" json:"user_id"`
	StockID     uint            `gorm:"not null;uniqueIndex:idx_position_user_stock" json:"stock_id"`
	Stock       Stock           `gorm:"constraint:OnDelete:RESTRICT" json:"-"`
	Quantity    int             `gorm:"not null" json:"quantity"`
	AvgCost     decimal.Decimal `gorm:"type:numeric(19,2);not null" json:"avg_cost"`
	RealizedPnl decimal.Decimal `gorm:"column:realized_pnl;type:numeric;not null;default:0" json:"realized_pnl"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

type Trade struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	UserID    uint            `gorm:"not null;index" json:"user_id"`
	StockID   uint            `gorm:"not null;index" json:"stock_id"`
	Stock     Stock           `gorm:"constraint:OnDelete:RESTRICT" json:"-"`
	Side      Side            `gorm:"type:varchar(4);not null" json:"side"`
	Quantity  int             `gorm:"not null" json:"quantity"`
	Price     decimal.Decimal `gorm:"type:numeric(19,4);not null" json:"price"`
	Timestamp time.Time       `gorm:"not null;index" json:"timestamp"`
}
