package models

import (
	"time"
)

// Payment records the single successful charge that completed an order.
type Payment struct {
	ID         string    `json:"id"`
	OrderID    string    `json:"orderId"`
	GatewayRef string    `json:"gatewayRef"`
	Amount     int64     `json:"amount"`
	CreatedAt  time.Time `json:"createdAt"`
}

// ChargeResult is what the payment provider reports for a charge.
type ChargeResult struct {
	Reference string    `json:"reference"`
	ChargedAt time.Time `json:"chargedAt"`
}
