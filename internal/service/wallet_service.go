package service

import (
	"context"
	"fmt"

	"alltrade/internal/models"
	"alltrade/internal/payments"
	"alltrade/internal/repository"
)

// WalletService handles wallet funding through the payment gateway and
// exposes balances and transaction history.
type WalletService struct {
	walletRepo    repository.WalletRepository
	userRepo      repository.UserRepository
	gateway       payments.Gateway
	notifications *NotificationService
}

// FundResult is returned from a funding initialization.
type FundResult struct {
	PaymentReference string `json:"payment_reference"`
	CheckoutURL      string `json:"checkout_url"`
}

// NewWalletService returns a new WalletService.
func NewWalletService(
	walletRepo repository.WalletRepository,
	userRepo repository.UserRepository,
	gateway payments.Gateway,
	notifications *NotificationService,
) *WalletService {
	return &WalletService{
		walletRepo:    walletRepo,
		userRepo:      userRepo,
		gateway:       gateway,
		notifications: notifications,
	}
}

// Fund initializes a gateway transaction for the amount and returns the
// checkout URL. No wallet movement happens until the deposit is verified.
func (s *WalletService) Fund(ctx context.Context, userID uint, amount int64) (*FundResult, error) {
	if amount <= 0 {
		return nil, models.NewValidationError("Funding amount must be positive")
	}
	if s.gateway == nil {
		return nil, models.NewInternalError(fmt.Errorf("payment gateway not configured"))
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	tx, err := s.gateway.InitTransaction(ctx, payments.InitRequest{
		Amount:       amount,
		CustomerName: user.Username,
		Email:        user.Email,
		Description:  "Wallet funding",
	})
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	// The pending row ties the reference to this user, so nobody else can
	// claim the deposit at verification time.
	if _, err := s.walletRepo.RecordPendingDeposit(ctx, userID, amount, tx.PaymentReference); err != nil {
		return nil, err
	}

	return &FundResult{
		PaymentReference: tx.PaymentReference,
		CheckoutURL:      tx.CheckoutURL,
	}, nil
}

// VerifyDeposit checks a funding transaction with the gateway and credits the
// wallet when it is paid. Only the user who initiated the funding can verify
// its reference, and verification is idempotent: a deposit already settled
// returns the recorded entry without moving money again.
func (s *WalletService) VerifyDeposit(ctx context.Context, userID uint, reference string) (*models.WalletTransaction, error) {
	if reference == "" {
		return nil, models.NewValidationError("Payment reference is required")
	}

	pending, err := s.walletRepo.FindByReference(ctx, reference)
	if err != nil {
		return nil, err
	}
	if pending == nil || pending.UserID != userID {
		return nil, models.NewNotFoundError("Deposit", reference)
	}
	if pending.Status != models.WalletStatusPending {
		return pending, nil
	}

	if s.gateway == nil {
		return nil, models.NewInternalError(fmt.Errorf("payment gateway not configured"))
	}
	tx, err := s.gateway.VerifyTransaction(ctx, reference)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	if tx.Status != payments.StatusPaid {
		return nil, models.NewValidationError("Payment not completed (status: " + tx.Status + ")")
	}

	entry, err := s.walletRepo.SettleDeposit(ctx, pending.ID, tx.AmountPaid)
	if err != nil {
		return nil, err
	}

	if s.notifications != nil {
		_, _ = s.notifications.Notify(ctx, NotifyInput{
			UserID: userID,
			Title:  "Wallet funded",
			Body:   fmt.Sprintf("Your wallet was credited with %d", tx.AmountPaid),
			Type:   models.NotificationTypeSystem,
			Meta:   map[string]any{"reference": reference, "amount": tx.AmountPaid},
		})
	}
	return entry, nil
}

// Credit applies a manual credit to a user's wallet, recorded with its own
// ledger reference. Used by the administrative adjustment endpoint.
func (s *WalletService) Credit(ctx context.Context, userID uint, amount int64) (*models.WalletTransaction, error) {
	if amount <= 0 {
		return nil, models.NewValidationError("Credit amount must be positive")
	}
	if _, err := s.userRepo.GetByID(ctx, userID); err != nil {
		return nil, err
	}
	return s.walletRepo.Credit(ctx, userID, amount, models.ReasonManual, payments.NewReference())
}

// Debit applies a manual debit to a user's wallet. Fails on insufficient funds.
func (s *WalletService) Debit(ctx context.Context, userID uint, amount int64) (*models.WalletTransaction, error) {
	if amount <= 0 {
		return nil, models.NewValidationError("Debit amount must be positive")
	}
	if _, err := s.userRepo.GetByID(ctx, userID); err != nil {
		return nil, err
	}
	return s.walletRepo.Debit(ctx, userID, amount, models.ReasonManual, payments.NewReference())
}

// Balance returns the user's current wallet balance in minor units.
func (s *WalletService) Balance(ctx context.Context, userID uint) (int64, error) {
	return s.walletRepo.GetBalance(ctx, userID)
}

// History returns the user's ledger entries, newest first.
func (s *WalletService) History(ctx context.Context, userID uint, limit, offset int) ([]*models.WalletTransaction, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.walletRepo.ListTransactions(ctx, userID, limit, offset)
}
