// Package models contains data structures for the application's domain models.
package models

import "time"

// WalletTransactionType is the direction of a wallet movement.
type WalletTransactionType string

const (
	// WalletCredit adds funds to a wallet.
	WalletCredit WalletTransactionType = "credit"
	// WalletDebit removes funds from a wallet.
	WalletDebit WalletTransactionType = "debit"
)

// WalletTransactionReason explains why a wallet movement happened.
type WalletTransactionReason string

const (
	// ReasonSale credits a seller after a confirmed order.
	ReasonSale WalletTransactionReason = "sale"
	// ReasonPurchase debits a buyer for a confirmed order.
	ReasonPurchase WalletTransactionReason = "purchase"
	// ReasonDeposit credits funds arriving through the payment gateway.
	ReasonDeposit WalletTransactionReason = "deposit"
	// ReasonWithdrawal debits funds leaving the platform.
	ReasonWithdrawal WalletTransactionReason = "withdrawal"
	// ReasonManual covers administrative adjustments.
	ReasonManual WalletTransactionReason = "manual"
)

// Wallet ledger entry statuses. A deposit is recorded pending when funding is
// initialized and settled once the gateway confirms payment.
const (
	WalletStatusPending = "pending"
	WalletStatusSuccess = "success"
)

// WalletTransaction is a ledger entry for a user's wallet. Settled entries are
// never modified; a pending deposit is updated once when it settles.
type WalletTransaction struct {
	ID     uint                  `gorm:"primaryKey" json:"id"`
	UserID uint                  `gorm:"not null;index" json:"user_id"`
	User   *User                 `gorm:"foreignKey:UserID" json:"-"`
	Type   WalletTransactionType `gorm:"type:varchar(10);not null" json:"type"`
	// Amount is always positive; Type carries the direction. Minor units.
	Amount int64                   `gorm:"not null" json:"amount"`
	Reason WalletTransactionReason `gorm:"type:varchar(20);not null" json:"reason"`
	Status string                  `gorm:"type:varchar(20);default:'success'" json:"status"`
	// Reference ties deposits to a payment gateway transaction.
	Reference string    `gorm:"index" json:"reference,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
