// Package seed provides database seeding utilities for development and testing.
package seed

import (
	"fmt"
	"log"
	"math/rand"
	"time"

	"alltrade/internal/models"

	"gorm.io/gorm"
)

// SeedOptions tune how the seeder generates data.
type SeedOptions struct {
	// DryRun logs what would be created without touching the database.
	DryRun bool
	// SkipBcrypt stores plaintext passwords; only for fast local iteration.
	SkipBcrypt bool
	// MaxDays spreads created_at timestamps over this many days back.
	MaxDays int
}

// Seeder populates the database with marketplace demo data.
type Seeder struct {
	db      *gorm.DB
	factory *Factory
}

// NewSeeder creates a Seeder with default options.
func NewSeeder(db *gorm.DB) *Seeder {
	return NewSeederWithOptions(db, SeedOptions{})
}

// NewSeederWithOptions creates a Seeder with explicit options.
func NewSeederWithOptions(db *gorm.DB, opts SeedOptions) *Seeder {
	return &Seeder{db: db, factory: NewFactory(db, opts)}
}

// Factory exposes the underlying entity factory.
func (s *Seeder) Factory() *Factory {
	return s.factory
}

// ClearAll truncates every seeded table.
func (s *Seeder) ClearAll() error {
	log.Println("clearing existing data")
	sql := `TRUNCATE TABLE notifications, push_subscriptions, wallet_transactions, orders,
		comments, follows, messages, conversation_participants, conversations,
		products, users RESTART IDENTITY CASCADE;`
	return s.db.Exec(sql).Error
}

// SeedMarketplace creates users with listings. Roughly a third of the users
// act as sellers; every seller gets a handful of product and service listings.
func (s *Seeder) SeedMarketplace(numUsers, numProducts int) ([]*models.User, error) {
	log.Printf("seeding %d users and %d listings", numUsers, numProducts)

	users := make([]*models.User, 0, numUsers)
	for i := 0; i < numUsers; i++ {
		user, err := s.factory.CreateUser()
		if err != nil {
			return nil, fmt.Errorf("create user: %w", err)
		}
		users = append(users, user)
		if i > 0 && i%100 == 0 {
			log.Printf("created %d users...", i)
		}
	}

	if len(users) == 0 {
		return users, nil
	}

	// #nosec G404: acceptable for seeding
	r := rand.New(rand.NewSource(time.Now().UnixNano()))
	sellers := users[:max(1, len(users)/3)]

	products := make([]*models.Product, 0, numProducts)
	for i := 0; i < numProducts; i++ {
		seller := sellers[r.Intn(len(sellers))]
		category := models.CategoryProduct
		if r.Float32() < 0.3 {
			category = models.CategoryService
		}
		products = append(products, s.factory.BuildProduct(seller, category))
	}
	if len(products) > 0 {
		if err := s.factory.CreateProductsBatch(products); err != nil {
			return nil, fmt.Errorf("create products: %w", err)
		}
	}
	log.Printf("created %d listings", len(products))

	return users, nil
}

// SeedEngagement layers follows, reviews, funded wallets and settled orders
// on top of an already seeded marketplace.
func (s *Seeder) SeedEngagement(users []*models.User) error {
	if len(users) < 2 {
		return nil
	}

	// #nosec G404: acceptable for seeding
	r := rand.New(rand.NewSource(time.Now().UnixNano()))

	var products []*models.Product
	if err := s.db.Find(&products).Error; err != nil {
		return fmt.Errorf("load products: %w", err)
	}

	// Follows: each user follows a few others.
	for _, user := range users {
		for i := 0; i < r.Intn(5); i++ {
			target := users[r.Intn(len(users))]
			if target.ID == user.ID {
				continue
			}
			// Duplicate pairs violate the composite key; skip quietly.
			_ = s.factory.CreateFollow(user, target)
		}
	}
	log.Println("seeded follow graph")

	if len(products) == 0 {
		return nil
	}

	// Reviews on random listings.
	for i := 0; i < len(products)*2; i++ {
		product := products[r.Intn(len(products))]
		user := users[r.Intn(len(users))]
		if user.ID == product.SellerID {
			continue
		}
		if _, err := s.factory.CreateComment(user, product); err != nil {
			return fmt.Errorf("create comment: %w", err)
		}
	}
	log.Println("seeded reviews")

	// Fund some wallets and record completed orders.
	for i := 0; i < len(users)/2; i++ {
		buyer := users[r.Intn(len(users))]
		product := products[r.Intn(len(products))]
		if buyer.ID == product.SellerID {
			continue
		}
		if _, err := s.factory.CreateWalletCredit(buyer, product.Price*2); err != nil {
			return fmt.Errorf("fund wallet: %w", err)
		}
		if _, err := s.factory.CreateOrder(buyer, product, models.OrderStatusCompleted); err != nil {
			return fmt.Errorf("create order: %w", err)
		}
	}
	log.Println("seeded wallets and orders")

	return nil
}
