package trading

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/TNT-747/investtrack/internal/domain"
)

// Apply computes the holding that results from one trade at execPrice.
//
// BUY moves the average to the quantity-weighted mean of the old position and the
// new lot, rounded half-up to AveragePriceScale places. SELL leaves the average
// untouched, including when it drains the position.
func Apply(h domain.Holding, side domain.TradeSide, quantity, execPrice decimal.Decimal) (domain.Holding, error) {
	if !quantity.IsPositive() {
		return h, domain.NewTradeError(domain.KindInvalidQuantity, "Quantity must be positive")
	}
	if !execPrice.IsPositive() {
		return h, domain.NewTradeError(domain.KindInvariantViolation, "execution price %s is not positive", execPrice)
	}

	switch side {
	case domain.SideBuy:
		newQuantity := h.Quantity.Add(quantity)
		if h.Quantity.IsZero() {
			h.AverageBuyPrice = execPrice.Round(domain.AveragePriceScale)
		} else {
			total := h.Quantity.Mul(h.AverageBuyPrice).Add(quantity.Mul(execPrice))
			h.AverageBuyPrice = total.DivRound(newQuantity, domain.AveragePriceScale)
		}
		h.Quantity = newQuantity

	case domain.SideSell:
		if h.Quantity.LessThan(quantity) {
			return h, domain.NewTradeError(domain.KindInsufficientHoldings,
				"Insufficient balance. You have %s but trying to sell %s", h.Quantity, quantity)
		}
		h.Quantity = h.Quantity.Sub(quantity)

	default:
		return h, domain.NewTradeError(domain.KindInvalidRequest, "Transaction type must be BUY or SELL")
	}

	return h, nil
}

// Replay folds a position's transactions, oldest first, through Apply starting
// from an empty holding. The result must equal the stored holding.
func Replay(userID, symbol string, txs []domain.Transaction) (domain.Holding, error) {
	h := domain.NewHolding(userID, symbol)
	for _, tx := range txs {
		next, err := Apply(h, tx.Type, tx.Quantity, tx.Price)
		if err != nil {
			return h, fmt.Errorf("replay of %s/%s failed at transaction %d: %w", userID, symbol, tx.ID, err)
		}
		h = next
	}
	return h, nil
}
