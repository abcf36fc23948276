package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Stock struct {
	ID        uint                `gorm:"primaryKey" json:"id"`
	Symbol    string              `gorm:"uniqueIndex;not null;size:16" json:"symbol"`
	Name      string              `gorm:"not null" json:"name"`
	Price     decimal.NullDecimal `gorm:"type:numeric(19,4)" json:"price"`
	CreatedAt time.Time           `json:"created_at"`
	UpdatedAt time.Time           `json:"updated_at"`
}

// StockPrice is an append-only price observation recorded by a refresh.
type StockPrice struct {
	ID        uint            `gorm:"primaryKey" json:"-"`
	StockID   uint            `gorm:"not null;index" json:"stock_id"`
	Symbol    string          `gorm:"not null;index;size:16" json:"symbol"`
	Price     decimal.Decimal `gorm:"type:numeric(19,4);not null" json:"price"`
	Timestamp time.Time       `gorm:"not null;index" json:"timestamp"`
}
