package events

// EventData is the interface that all event payloads implement
type EventData interface {
	// EventType returns the event type this data is associated with
	EventType() EventType
}

// TradeExecutedData contains data for TradeExecuted events.
// Decimal amounts are carried as canonical strings.
type TradeExecutedData struct {
	UserID        string `json:"user_id"`
	Symbol        string `json:"symbol"`
	Side          string `json:"side"`
	Quantity      string `json:"quantity"`
	Price         string `json:"price"`
	TransactionID int64  `json:"transaction_id"`
	Reference     string `json:"reference,omitempty"`
	Attempts      int    `json:"attempts"`
}

// EventType returns the event type for TradeExecutedData
func (d *TradeExecutedData) EventType() EventType {
	return TradeExecuted
}

// TradeRejectedData contains data for TradeRejected events
type TradeRejectedData struct {
	UserID   string `json:"user_id"`
	Symbol   string `json:"symbol"`
	Side     string `json:"side"`
	Quantity string `json:"quantity"`
	Kind     string `json:"kind"`
	Reason   string `json:"reason"`
}

// EventType returns the event type for TradeRejectedData
func (d *TradeRejectedData) EventType() EventType {
	return TradeRejected
}

// HoldingChangedData contains data for HoldingChanged events
type HoldingChangedData struct {
	UserID          string `json:"user_id"`
	Symbol          string `json:"symbol"`
	Quantity        string `json:"quantity"`
	AverageBuyPrice string `json:"average_buy_price"`
	Version         int64  `json:"version"`
}

// EventType returns the event type for HoldingChangedData
func (d *HoldingChangedData) EventType() EventType {
	return HoldingChanged
}

// AssetData contains data for AssetCreated and AssetDeleted events
type AssetData struct {
	Type   EventType `json:"-"`
	Symbol string    `json:"symbol"`
	Name   string    `json:"name,omitempty"`
	Kind   string    `json:"asset_type,omitempty"`
}

// EventType returns the event type the asset data was emitted with
func (d *AssetData) EventType() EventType {
	return d.Type
}

// AssetPriceUpdatedData contains data for AssetPriceUpdated events
type AssetPriceUpdatedData struct {
	Symbol   string `json:"symbol"`
	OldPrice string `json:"old_price"`
	NewPrice string `json:"new_price"`
}

// EventType returns the event type for AssetPriceUpdatedData
func (d *AssetPriceUpdatedData) EventType() EventType {
	return AssetPriceUpdated
}

// LedgerAuditCompletedData contains data for LedgerAuditCompleted events
type LedgerAuditCompletedData struct {
	PositionsChecked int      `json:"positions_checked"`
	Discrepancies    int      `json:"discrepancies"`
	Positions        []string `json:"positions,omitempty"` // user/symbol keys that failed
	DurationMs       int64    `json:"duration_ms"`
}

// EventType returns the event type for LedgerAuditCompletedData
func (d *LedgerAuditCompletedData) EventType() EventType {
	return LedgerAuditCompleted
}

// BackupCompletedData contains data for BackupCompleted events
type BackupCompletedData struct {
	Archive   string `json:"archive"`
	SizeBytes int64  `json:"size_bytes"`
	Uploaded  bool   `json:"uploaded"`
}

// EventType returns the event type for BackupCompletedData
func (d *BackupCompletedData) EventType() EventType {
	return BackupCompleted
}

// ErrorEventData contains data for ErrorOccurred events
type ErrorEventData struct {
	Error   string                 `json:"error"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// EventType returns the event type for ErrorEventData
func (d *ErrorEventData) EventType() EventType {
	return ErrorOccurred
}
