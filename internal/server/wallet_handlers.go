// Package server contains HTTP and WebSocket handlers for the application's API endpoints.
package server

import (
	"alltrade/internal/models"

	"github.com/gofiber/fiber/v2"
)

// GetWalletBalance handles GET /api/wallet.
func (s *Server) GetWalletBalance(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := c.Locals("userID").(uint)

	balance, err := s.walletService.Balance(ctx, userID)
	if err != nil {
		return respondWithAppError(c, err)
	}
	return c.JSON(fiber.Map{"balance": balance})
}

// GetWalletHistory handles GET /api/wallet/transactions.
func (s *Server) GetWalletHistory(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := c.Locals("userID").(uint)
	p := parsePagination(c, 20)

	entries, err := s.walletService.History(ctx, userID, p.Limit, p.Offset)
	if err != nil {
		return respondWithAppError(c, err)
	}
	return c.JSON(entries)
}

// FundWallet handles POST /api/wallet/fund. It initializes a gateway
// transaction and returns the checkout URL; the wallet is credited only
// after verification.
func (s *Server) FundWallet(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := c.Locals("userID").(uint)

	var req struct {
		Amount int64 `json:"amount"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	result, err := s.walletService.Fund(ctx, userID, req.Amount)
	if err != nil {
		return respondWithAppError(c, err)
	}
	return c.JSON(result)
}

// CreditWallet handles POST /api/wallet/credit (admin only).
func (s *Server) CreditWallet(c *fiber.Ctx) error {
	return s.adjustWallet(c, true)
}

// DebitWallet handles POST /api/wallet/debit (admin only).
func (s *Server) DebitWallet(c *fiber.Ctx) error {
	return s.adjustWallet(c, false)
}

func (s *Server) adjustWallet(c *fiber.Ctx, credit bool) error {
	ctx := c.UserContext()

	var req struct {
		UserID uint  `json:"user_id"`
		Amount int64 `json:"amount"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}
	if req.UserID == 0 {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("user_id is required"))
	}

	var entry *models.WalletTransaction
	var err error
	if credit {
		entry, err = s.walletService.Credit(ctx, req.UserID, req.Amount)
	} else {
		entry, err = s.walletService.Debit(ctx, req.UserID, req.Amount)
	}
	if err != nil {
		return respondWithAppError(c, err)
	}
	return c.JSON(entry)
}

// VerifyDeposit handles POST /api/wallet/verify. Verification is idempotent;
// replaying a reference returns the original ledger entry.
func (s *Server) VerifyDeposit(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := c.Locals("userID").(uint)

	var req struct {
		Reference string `json:"reference"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	entry, err := s.walletService.VerifyDeposit(ctx, userID, req.Reference)
	if err != nil {
		return respondWithAppError(c, err)
	}

	s.publishUserEvent(ctx, userID, eventWalletCredited, fiber.Map{
		"reference": entry.Reference,
		"amount":    entry.Amount,
	})

	return c.JSON(entry)
}
