// Package seed provides helpers to create test and demo data for the
// application database. These helpers are intended for development and
// testing only.
package seed

import (
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"time"

	"alltrade/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Factory builds domain entities and persists them to the database.
// It is a thin helper used by seed presets and tests.
type Factory struct {
	db   *gorm.DB
	opts SeedOptions
	// synthetic ID counter when running in DryRun mode
	nextID uint
}

// NewFactory creates a new Factory bound to the provided Gorm DB.
func NewFactory(db *gorm.DB, opts SeedOptions) *Factory {
	// seed gofakeit for richer content
	gofakeit.Seed(time.Now().UnixNano())
	return &Factory{db: db, opts: opts, nextID: 1000}
}

// CreateUser constructs and persists a sample `models.User`.
// Optional override functions may modify the generated user before saving.
func (f *Factory) CreateUser(overrides ...func(*models.User)) (*models.User, error) {
	user := &models.User{
		Username: gofakeit.Username() + fmt.Sprintf("%d", gofakeit.Number(100, 999)),
		Email:    gofakeit.Email(),
		Bio:      gofakeit.Sentence(10),
		Avatar:   fmt.Sprintf("https://i.pravatar.cc/150?u=%s", gofakeit.UUID()),
		Location: gofakeit.City(),
	}

	// Password handling: allow skipping bcrypt in dev fast mode
	if f.opts.SkipBcrypt {
		user.Password = "password123"
	} else {
		hashedPassword, _ := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.DefaultCost)
		user.Password = string(hashedPassword)
	}

	for _, override := range overrides {
		override(user)
	}

	if f.opts.DryRun {
		f.nextID++
		user.ID = f.nextID
		log.Printf("[dry-run] CreateUser: %+v", user)
		return user, nil
	}

	if err := f.db.Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// BuildProduct constructs a listing for the given seller without persisting
// it. Useful for batching.
func (f *Factory) BuildProduct(seller *models.User, category models.ProductCategory, overrides ...func(*models.Product)) *models.Product {
	product := &models.Product{
		SellerID:    seller.ID,
		Title:       gofakeit.ProductName(),
		Description: gofakeit.Paragraph(1, 3, 8, "\n"),
		Price:       int64(gofakeit.Number(500, 500_000)) * 100,
		Media: []string{
			fmt.Sprintf("https://picsum.photos/seed/%s/800/800", gofakeit.UUID()),
		},
		Location:  seller.Location,
		Category:  category,
		Tags:      []string{gofakeit.ProductCategory(), gofakeit.HackerNoun()},
		IsVisible: true,
	}

	// realistic created_at spread
	maxDays := f.opts.MaxDays
	if maxDays <= 0 {
		maxDays = 90
	}
	// #nosec G404: acceptable for seeding
	r := rand.New(rand.NewSource(time.Now().UnixNano()))
	daysBack := r.Intn(maxDays)
	hoursBack := r.Intn(24)
	product.CreatedAt = time.Now().Add(-time.Duration(daysBack)*24*time.Hour - time.Duration(hoursBack)*time.Hour)

	for _, override := range overrides {
		override(product)
	}
	return product
}

// CreateProduct constructs and persists a listing for the given seller.
func (f *Factory) CreateProduct(seller *models.User, category models.ProductCategory, overrides ...func(*models.Product)) (*models.Product, error) {
	product := f.BuildProduct(seller, category, overrides...)

	if f.opts.DryRun {
		f.nextID++
		product.ID = f.nextID
		log.Printf("[dry-run] CreateProduct: seller=%d title=%q", product.SellerID, product.Title)
		return product, nil
	}

	if err := f.db.Create(product).Error; err != nil {
		return nil, err
	}
	return product, nil
}

// CreateProductsBatch persists multiple listings in a single DB call when possible.
func (f *Factory) CreateProductsBatch(products []*models.Product) error {
	if f.opts.DryRun {
		for _, p := range products {
			f.nextID++
			p.ID = f.nextID
		}
		log.Printf("[dry-run] CreateProductsBatch: %d products (no DB write)", len(products))
		return nil
	}
	return f.db.Create(&products).Error
}

// CreateComment constructs and persists a review on the provided listing
// authored by the provided user.
func (f *Factory) CreateComment(user *models.User, product *models.Product, overrides ...func(*models.Comment)) (*models.Comment, error) {
	comment := &models.Comment{
		Content:   gofakeit.Sentence(8),
		UserID:    user.ID,
		ProductID: product.ID,
	}
	if gofakeit.Bool() {
		rating := gofakeit.Number(1, 5)
		comment.Rating = &rating
	}

	for _, override := range overrides {
		override(comment)
	}

	if err := f.db.Create(comment).Error; err != nil {
		return nil, err
	}
	return comment, nil
}

// CreateFollow persists a follow edge and keeps the denormalized counters in
// step the way the toggle endpoint does.
func (f *Factory) CreateFollow(follower, target *models.User) error {
	follow := &models.Follow{
		FollowerID: follower.ID,
		TargetID:   target.ID,
	}
	return f.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(follow).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.User{}).Where("id = ?", target.ID).
			UpdateColumn("followers_count", gorm.Expr("followers_count + 1")).Error; err != nil {
			return err
		}
		return tx.Model(&models.User{}).Where("id = ?", follower.ID).
			UpdateColumn("following_count", gorm.Expr("following_count + 1")).Error
	})
}

// CreateOrder persists an order for the given buyer and listing.
func (f *Factory) CreateOrder(buyer *models.User, product *models.Product, status models.OrderStatus, overrides ...func(*models.Order)) (*models.Order, error) {
	order := &models.Order{
		BuyerID:          buyer.ID,
		ProductID:        product.ID,
		Amount:           product.Price,
		Status:           status,
		PaymentReference: "AT-seed-" + gofakeit.UUID(),
	}

	for _, override := range overrides {
		override(order)
	}

	if err := f.db.Create(order).Error; err != nil {
		return nil, err
	}
	return order, nil
}

// CreateWalletCredit persists a deposit ledger entry and bumps the user's
// balance.
func (f *Factory) CreateWalletCredit(user *models.User, amount int64) (*models.WalletTransaction, error) {
	entry := &models.WalletTransaction{
		UserID:    user.ID,
		Type:      models.WalletCredit,
		Amount:    amount,
		Reason:    models.ReasonDeposit,
		Reference: "AT-seed-" + gofakeit.UUID(),
	}
	err := f.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(entry).Error; err != nil {
			return err
		}
		return tx.Model(&models.User{}).Where("id = ?", user.ID).
			UpdateColumn("wallet_balance", gorm.Expr("wallet_balance + ?", amount)).Error
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// CreateConversation persists a direct conversation between two users with
// participant rows.
func (f *Factory) CreateConversation(a, b *models.User) (*models.Conversation, error) {
	conv := &models.Conversation{}
	err := f.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(conv).Error; err != nil {
			return err
		}
		participants := []models.ConversationParticipant{
			{ConversationID: conv.ID, UserID: a.ID, LastReadAt: time.Now()},
			{ConversationID: conv.ID, UserID: b.ID, LastReadAt: time.Now()},
		}
		return tx.Create(&participants).Error
	})
	if err != nil {
		return nil, err
	}
	return conv, nil
}

// CreateMessage constructs and persists a sample `models.Message` in the
// provided conversation from the provided sender.
func (f *Factory) CreateMessage(conversation *models.Conversation, sender *models.User, overrides ...func(*models.Message)) (*models.Message, error) {
	message := &models.Message{
		ConversationID: conversation.ID,
		SenderID:       sender.ID,
		Text:           gofakeit.Sentence(10),
	}

	for _, override := range overrides {
		override(message)
	}

	if err := f.db.Create(message).Error; err != nil {
		return nil, err
	}
	if err := f.db.Model(&models.Conversation{}).Where("id = ?", conversation.ID).
		UpdateColumn("last_message_text", message.Text).Error; err != nil {
		return nil, err
	}
	return message, nil
}

// CreateNotification persists a notification for the given user.
func (f *Factory) CreateNotification(user *models.User, notifType models.NotificationType, overrides ...func(*models.Notification)) (*models.Notification, error) {
	meta, _ := json.Marshal(map[string]any{"seed": true})
	notification := &models.Notification{
		UserID: user.ID,
		Title:  gofakeit.Sentence(4),
		Body:   gofakeit.Sentence(12),
		Type:   notifType,
		Meta:   meta,
	}

	for _, override := range overrides {
		override(notification)
	}

	if err := f.db.Create(notification).Error; err != nil {
		return nil, err
	}
	return notification, nil
}
