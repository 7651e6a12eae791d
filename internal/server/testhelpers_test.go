package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"alltrade/internal/config"
	"alltrade/internal/featureflags"
	"alltrade/internal/models"
	"alltrade/internal/notifications"
	"alltrade/internal/payments"
	"alltrade/internal/repository"
	"alltrade/internal/service"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// fakeGateway is an in-memory payments.Gateway for wallet tests.
type fakeGateway struct {
	initFn   func(ctx context.Context, req payments.InitRequest) (*payments.Transaction, error)
	verifyFn func(ctx context.Context, reference string) (*payments.Transaction, error)
}

func (g *fakeGateway) InitTransaction(ctx context.Context, req payments.InitRequest) (*payments.Transaction, error) {
	return g.initFn(ctx, req)
}

func (g *fakeGateway) VerifyTransaction(ctx context.Context, reference string) (*payments.Transaction, error) {
	return g.verifyFn(ctx, reference)
}

// newTestServer builds a Server over an in-memory SQLite database and a
// miniredis instance, mirroring NewServerWithDeps without the Prometheus
// middleware so tests can run side by side.
func newTestServer(t *testing.T, gateway payments.Gateway) *Server {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Product{},
		&models.Comment{},
		&models.Follow{},
		&models.Order{},
		&models.WalletTransaction{},
		&models.Conversation{},
		&models.Message{},
		&models.ConversationParticipant{},
		&models.Notification{},
		&models.PushSubscription{},
	))

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := &config.Config{
		JWTSecret:   "test-secret-key-for-handler-tests!!",
		Env:         "test",
		DeliveryFee: 500,
	}

	userRepo := repository.NewUserRepository(db)
	productRepo := repository.NewProductRepository(db)
	commentRepo := repository.NewCommentRepository(db)
	chatRepo := repository.NewChatRepository(db)
	followRepo := repository.NewFollowRepository(db)
	orderRepo := repository.NewOrderRepository(db)
	walletRepo := repository.NewWalletRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	s := &Server{
		config:           cfg,
		db:               db,
		redis:            rdb,
		userRepo:         userRepo,
		productRepo:      productRepo,
		commentRepo:      commentRepo,
		chatRepo:         chatRepo,
		followRepo:       followRepo,
		orderRepo:        orderRepo,
		walletRepo:       walletRepo,
		notificationRepo: notificationRepo,
		featureFlags:     featureflags.NewManager(""),
		consumedTickets:  make(map[string]consumedTicketEntry),
		notifier:         notifications.NewNotifier(rdb),
	}

	s.notificationService = service.NewNotificationService(notificationRepo, s.notifier, nil)
	s.userService = service.NewUserService(userRepo, followRepo, s.notificationService)
	s.productService = service.NewProductService(productRepo, s.isAdminByUserID)
	s.commentService = service.NewCommentService(commentRepo, productRepo, s.notificationService, s.isAdminByUserID)
	s.chatService = service.NewChatService(chatRepo, userRepo, s.notificationService)
	s.walletService = service.NewWalletService(walletRepo, userRepo, gateway, s.notificationService)
	s.orderService = service.NewOrderService(orderRepo, productRepo, walletRepo, userRepo,
		s.chatService, s.notificationService, cfg.DeliveryFee)

	return s
}

// authedApp returns a Fiber app whose requests carry the given user ID, the
// way AuthRequired would set it.
func authedApp(userID uint) *fiber.App {
	app := fiber.New()
	if userID != 0 {
		app.Use(func(c *fiber.Ctx) error {
			c.Locals("userID", userID)
			return c.Next()
		})
	}
	return app
}

func createTestUser(t *testing.T, db *gorm.DB, username string) *models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	require.NoError(t, err)
	user := &models.User{
		Username: username,
		Email:    username + "@example.com",
		Password: string(hash),
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func createTestProduct(t *testing.T, db *gorm.DB, sellerID uint, price int64) *models.Product {
	t.Helper()
	product := &models.Product{
		SellerID:    sellerID,
		Title:       "Handmade leather bag",
		Description: "Brown, stitched by hand",
		Price:       price,
		Category:    models.CategoryProduct,
		IsVisible:   true,
	}
	require.NoError(t, db.Create(product).Error)
	return product
}

func creditTestWallet(t *testing.T, s *Server, userID uint, amount int64, reference string) {
	t.Helper()
	_, err := s.walletRepo.Credit(context.Background(), userID, amount, models.ReasonDeposit, reference)
	require.NoError(t, err)
}

func jsonRequest(method, target string, body any) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decodeBody(t *testing.T, resp *http.Response, dest any) {
	t.Helper()
	defer func() { _ = resp.Body.Close() }()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(dest))
}
