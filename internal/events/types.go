// Package events provides in-process event publication for trades, assets and maintenance jobs.
package events

import (
	"encoding/json"
	"time"
)

// EventType represents different event types
type EventType string

const (
	TradeExecuted  EventType = "TRADE_EXECUTED"
	TradeRejected  EventType = "TRADE_REJECTED"
	HoldingChanged EventType = "HOLDING_CHANGED"

	AssetCreated      EventType = "ASSET_CREATED"
	AssetPriceUpdated EventType = "ASSET_PRICE_UPDATED"
	AssetDeleted      EventType = "ASSET_DELETED"

	LedgerAuditCompleted EventType = "LEDGER_AUDIT_COMPLETED"
	BackupCompleted      EventType = "BACKUP_COMPLETED"
	ErrorOccurred        EventType = "ERROR_OCCURRED"
)

// AllTypes lists every event type, used by subscribers that want everything
var AllTypes = []EventType{
	TradeExecuted,
	TradeRejected,
	HoldingChanged,
	AssetCreated,
	AssetPriceUpdated,
	AssetDeleted,
	LedgerAuditCompleted,
	BackupCompleted,
	ErrorOccurred,
}

// Event is a published event with its typed payload
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Data      EventData `json:"data,omitempty"`
	Type      EventType `json:"type"`
	Module    string    `json:"module"`
}

// MarshalJSON keeps a stable field order on the wire
func (e Event) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type      EventType `json:"type"`
		Module    string    `json:"module"`
		Timestamp string    `json:"timestamp"`
		Data      EventData `json:"data,omitempty"`
	}{
		Type:      e.Type,
		Module:    e.Module,
		Timestamp: e.Timestamp.UTC().Format(time.RFC3339Nano),
		Data:      e.Data,
	})
}
