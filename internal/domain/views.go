package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// WalletView is the wire shape of a holding
type WalletView struct {
	ID              int64           `json:"id"`
	UserID          string          `json:"userId"`
	AssetSymbol     string          `json:"assetSymbol"`
	Quantity        decimal.Decimal `json:"quantity"`
	AverageBuyPrice decimal.Decimal `json:"averageBuyPrice"`
	Version         int64           `json:"version"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

// TransactionView is the wire shape of a transaction
type TransactionView struct {
	ID          int64           `json:"id"`
	WalletID    int64           `json:"walletId"`
	UserID      string          `json:"userId"`
	Type        TradeSide       `json:"type"`
	AssetSymbol string          `json:"assetSymbol"`
	Quantity    decimal.Decimal `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
	Reference   string          `json:"requestId,omitempty"`
	Timestamp   time.Time       `json:"timestamp"`
}

// NewWalletView converts a holding for the API
func NewWalletView(h Holding) WalletView {
	return WalletView{
		ID:              h.ID,
		UserID:          h.UserID,
		AssetSymbol:     h.AssetSymbol,
		Quantity:        h.Quantity,
		AverageBuyPrice: h.AverageBuyPrice,
		Version:         h.Version,
		UpdatedAt:       h.UpdatedAt,
	}
}

// NewTransactionView converts a transaction for the API
func NewTransactionView(tx Transaction) TransactionView {
	return TransactionView{
		ID:          tx.ID,
		WalletID:    tx.HoldingID,
		UserID:      tx.UserID,
		Type:        tx.Type,
		AssetSymbol: tx.AssetSymbol,
		Quantity:    tx.Quantity,
		Price:       tx.Price,
		Reference:   tx.Reference,
		Timestamp:   tx.Timestamp,
	}
}
