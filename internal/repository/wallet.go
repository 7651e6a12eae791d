package repository

import (
	"context"
	"errors"

	"alltrade/internal/cache"
	"alltrade/internal/models"

	"gorm.io/gorm"
)

// ErrInsufficientFunds is returned when a debit would take a wallet negative.
var ErrInsufficientFunds = errors.New("insufficient wallet balance")

// WalletRepository moves money between user wallets. Every movement writes a
// ledger row in the same transaction that adjusts the balance.
type WalletRepository interface {
	Credit(ctx context.Context, userID uint, amount int64, reason models.WalletTransactionReason, reference string) (*models.WalletTransaction, error)
	Debit(ctx context.Context, userID uint, amount int64, reason models.WalletTransactionReason, reference string) (*models.WalletTransaction, error)
	Transfer(ctx context.Context, fromID, toID uint, amount int64, reference string) error
	GetBalance(ctx context.Context, userID uint) (int64, error)
	ListTransactions(ctx context.Context, userID uint, limit, offset int) ([]*models.WalletTransaction, error)
	FindByReference(ctx context.Context, reference string) (*models.WalletTransaction, error)
	RecordPendingDeposit(ctx context.Context, userID uint, amount int64, reference string) (*models.WalletTransaction, error)
	SettleDeposit(ctx context.Context, entryID uint, amountPaid int64) (*models.WalletTransaction, error)
}

type walletRepository struct {
	db *gorm.DB
}

// NewWalletRepository returns a new WalletRepository implementation.
func NewWalletRepository(db *gorm.DB) WalletRepository {
	return &walletRepository{db: db}
}

func (r *walletRepository) Credit(ctx context.Context, userID uint, amount int64, reason models.WalletTransactionReason, reference string) (*models.WalletTransaction, error) {
	if amount <= 0 {
		return nil, models.NewValidationError("Credit amount must be positive")
	}

	entry := &models.WalletTransaction{
		UserID:    userID,
		Type:      models.WalletCredit,
		Amount:    amount,
		Reason:    reason,
		Reference: reference,
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return creditTx(tx, entry)
	})
	if err != nil {
		return nil, wrapWalletErr(err)
	}
	cache.InvalidateUser(ctx, userID)
	return entry, nil
}

func (r *walletRepository) Debit(ctx context.Context, userID uint, amount int64, reason models.WalletTransactionReason, reference string) (*models.WalletTransaction, error) {
	if amount <= 0 {
		return nil, models.NewValidationError("Debit amount must be positive")
	}

	entry := &models.WalletTransaction{
		UserID:    userID,
		Type:      models.WalletDebit,
		Amount:    amount,
		Reason:    reason,
		Reference: reference,
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return debitTx(tx, entry)
	})
	if err != nil {
		return nil, wrapWalletErr(err)
	}
	cache.InvalidateUser(ctx, userID)
	return entry, nil
}

// Transfer debits one wallet and credits another in a single transaction, so
// money never vanishes between the two legs.
func (r *walletRepository) Transfer(ctx context.Context, fromID, toID uint, amount int64, reference string) error {
	if amount <= 0 {
		return models.NewValidationError("Transfer amount must be positive")
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		debit := &models.WalletTransaction{
			UserID:    fromID,
			Type:      models.WalletDebit,
			Amount:    amount,
			Reason:    models.ReasonPurchase,
			Reference: reference,
		}
		if err := debitTx(tx, debit); err != nil {
			return err
		}
		credit := &models.WalletTransaction{
			UserID:    toID,
			Type:      models.WalletCredit,
			Amount:    amount,
			Reason:    models.ReasonSale,
			Reference: reference,
		}
		return creditTx(tx, credit)
	})
	if err != nil {
		return wrapWalletErr(err)
	}

	cache.InvalidateUser(ctx, fromID)
	cache.InvalidateUser(ctx, toID)
	return nil
}

// debitTx fails the transaction with ErrInsufficientFunds when the guarded
// balance update touches no row.
func debitTx(tx *gorm.DB, entry *models.WalletTransaction) error {
	if entry.Status == "" {
		entry.Status = models.WalletStatusSuccess
	}
	result := tx.Model(&models.User{}).
		Where("id = ? AND wallet_balance >= ?", entry.UserID, entry.Amount).
		Update("wallet_balance", gorm.Expr("wallet_balance - ?", entry.Amount))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrInsufficientFunds
	}
	return tx.Create(entry).Error
}

func creditTx(tx *gorm.DB, entry *models.WalletTransaction) error {
	if entry.Status == "" {
		entry.Status = models.WalletStatusSuccess
	}
	result := tx.Model(&models.User{}).
		Where("id = ?", entry.UserID).
		Update("wallet_balance", gorm.Expr("wallet_balance + ?", entry.Amount))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return tx.Create(entry).Error
}

func wrapWalletErr(err error) error {
	switch {
	case errors.Is(err, ErrInsufficientFunds):
		return models.NewValidationError("Insufficient wallet balance")
	case errors.Is(err, gorm.ErrRecordNotFound):
		return models.NewNotFoundError("User", 0)
	default:
		return models.NewInternalError(err)
	}
}

func (r *walletRepository) GetBalance(ctx context.Context, userID uint) (int64, error) {
	var user models.User
	err := readDB(r.db).WithContext(ctx).
		Select("wallet_balance").
		First(&user, userID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, models.NewNotFoundError("User", userID)
		}
		return 0, models.NewInternalError(err)
	}
	return user.WalletBalance, nil
}

func (r *walletRepository) ListTransactions(ctx context.Context, userID uint, limit, offset int) ([]*models.WalletTransaction, error) {
	var transactions []*models.WalletTransaction
	err := readDB(r.db).WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Offset(offset).
		Find(&transactions).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return transactions, nil
}

// RecordPendingDeposit writes a pending ledger row tying a gateway reference
// to the user who initiated the funding. The balance does not change until
// the deposit settles.
func (r *walletRepository) RecordPendingDeposit(ctx context.Context, userID uint, amount int64, reference string) (*models.WalletTransaction, error) {
	if amount <= 0 {
		return nil, models.NewValidationError("Deposit amount must be positive")
	}
	if reference == "" {
		return nil, models.NewValidationError("Deposit reference is required")
	}
	entry := &models.WalletTransaction{
		UserID:    userID,
		Type:      models.WalletCredit,
		Amount:    amount,
		Reason:    models.ReasonDeposit,
		Status:    models.WalletStatusPending,
		Reference: reference,
	}
	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return entry, nil
}

// SettleDeposit marks a pending deposit paid and credits the wallet with the
// amount the gateway reported. The guarded status update means concurrent
// settlements of the same entry credit at most once.
func (r *walletRepository) SettleDeposit(ctx context.Context, entryID uint, amountPaid int64) (*models.WalletTransaction, error) {
	if amountPaid <= 0 {
		return nil, models.NewValidationError("Deposit amount must be positive")
	}
	var entry models.WalletTransaction
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.WalletTransaction{}).
			Where("id = ? AND status = ?", entryID, models.WalletStatusPending).
			Updates(map[string]any{
				"amount": amountPaid,
				"status": models.WalletStatusSuccess,
			})
		if res.Error != nil {
			return res.Error
		}
		if err := tx.First(&entry, entryID).Error; err != nil {
			return err
		}
		if res.RowsAffected == 0 {
			// Already settled by a concurrent verification.
			return nil
		}
		result := tx.Model(&models.User{}).
			Where("id = ?", entry.UserID).
			Update("wallet_balance", gorm.Expr("wallet_balance + ?", amountPaid))
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	if err != nil {
		return nil, wrapWalletErr(err)
	}
	cache.InvalidateUser(ctx, entry.UserID)
	return &entry, nil
}

// FindByReference returns the deposit entry recorded for a gateway reference,
// pending or settled, or (nil, nil) when none exists. Used to keep funding
// idempotent and to tie a reference to the user who initiated it.
func (r *walletRepository) FindByReference(ctx context.Context, reference string) (*models.WalletTransaction, error) {
	if reference == "" {
		return nil, nil
	}
	var entry models.WalletTransaction
	err := readDB(r.db).WithContext(ctx).
		Where("reference = ? AND type = ?", reference, models.WalletCredit).
		First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	return &entry, nil
}
