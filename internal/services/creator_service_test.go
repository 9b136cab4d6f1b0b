package services_test

import (
	"strings"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/localnerve/tipjar/internal/models"
	"github.com/localnerve/tipjar/internal/services"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// setupTestDB creates an in-memory SQLite database for service testing
func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}

	err = db.AutoMigrate(
		&models.Creator{},
		&models.Donation{},
		&models.Goal{},
		&models.Message{},
		&models.DailyAnalytics{},
	)
	if err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}

	return db
}

func registerTestCreator(t *testing.T, db *gorm.DB, email, username string) *models.Creator {
	creator, err := services.RegisterCreator(db, services.RegisterCreatorInput{
		Email:    email,
		Username: username,
		Name:     "Test Creator",
	})
	if err != nil {
		t.Fatalf("Failed to register creator %s: %v", email, err)
	}
	return creator
}

func TestRegisterCreator_Defaults(t *testing.T) {
	db := setupTestDB(t)

	creator := registerTestCreator(t, db, "Maria@Example.COM", "maria")

	if creator.Email != "maria@example.com" {
		t.Errorf("email = %q, want lowercased", creator.Email)
	}
	if creator.Currency != models.CurrencyUSD {
		t.Errorf("currency = %q, want default USD", creator.Currency)
	}
	if !creator.IsActive || !creator.IsPublic || !creator.AllowMessages {
		t.Error("new creators should be active, public, and accepting messages")
	}
	if creator.ID == "" {
		t.Error("expected a generated id")
	}
}

func TestRegisterCreator_EmailConflict(t *testing.T) {
	db := setupTestDB(t)
	registerTestCreator(t, db, "maria@example.com", "maria")

	_, err := services.RegisterCreator(db, services.RegisterCreatorInput{
		Email:    "maria@example.com",
		Username: "other",
	})
	if err == nil || !strings.Contains(err.Error(), "conflict") {
		t.Fatalf("expected conflict error, got %v", err)
	}
}

func TestAllocateUsername_Probing(t *testing.T) {
	db := setupTestDB(t)

	// First registration takes the base handle
	c1 := registerTestCreator(t, db, "a@example.com", "maria")
	if c1.Username != "maria" {
		t.Errorf("username = %q, want maria", c1.Username)
	}

	// Collisions walk the numeric suffix
	c2 := registerTestCreator(t, db, "b@example.com", "maria")
	if c2.Username != "maria1" {
		t.Errorf("username = %q, want maria1", c2.Username)
	}
	c3 := registerTestCreator(t, db, "c@example.com", "maria")
	if c3.Username != "maria2" {
		t.Errorf("username = %q, want maria2", c3.Username)
	}
}

func TestAllocateUsername_MaxLengthBase(t *testing.T) {
	db := setupTestDB(t)

	long := strings.Repeat("a", 30)
	c1 := registerTestCreator(t, db, "a@example.com", long)
	if c1.Username != long {
		t.Errorf("username = %q, want the full 30-character handle", c1.Username)
	}

	// The suffixed candidate stays within the 30-character ceiling
	c2 := registerTestCreator(t, db, "b@example.com", long)
	want := strings.Repeat("a", 29) + "1"
	if c2.Username != want {
		t.Errorf("username = %q, want %q", c2.Username, want)
	}
	if len(c2.Username) > 30 {
		t.Errorf("username length = %d, want <= 30", len(c2.Username))
	}
}

func TestAllocateUsername_Normalization(t *testing.T) {
	db := setupTestDB(t)

	creator := registerTestCreator(t, db, "d@example.com", "Mar ia!_9")
	if creator.Username != "maria_9" {
		t.Errorf("username = %q, want normalized maria_9", creator.Username)
	}

	// Too short after normalization falls back to the generic handle
	short := registerTestCreator(t, db, "e@example.com", "!!")
	if short.Username != "creator" {
		t.Errorf("username = %q, want creator fallback", short.Username)
	}
}

func TestRegisterCreator_UsernameFromEmail(t *testing.T) {
	db := setupTestDB(t)

	creator := registerTestCreator(t, db, "jane.doe@example.com", "")
	if creator.Username != "janedoe" {
		t.Errorf("username = %q, want janedoe from email local part", creator.Username)
	}
}

func TestUpdateProfile(t *testing.T) {
	db := setupTestDB(t)
	creator := registerTestCreator(t, db, "maria@example.com", "maria")

	bio := "I draw maps."
	name := "Maria M."
	updated, err := services.UpdateProfile(db, creator.ID, services.UpdateProfileInput{
		Bio:  &bio,
		Name: &name,
	})
	if err != nil {
		t.Fatalf("UpdateProfile failed: %v", err)
	}
	if updated.Bio != bio || updated.Name != name {
		t.Errorf("profile not updated: bio=%q name=%q", updated.Bio, updated.Name)
	}
	// Untouched fields survive
	if updated.Username != "maria" {
		t.Errorf("username changed unexpectedly: %q", updated.Username)
	}
}

func TestUpdateProfile_NotFound(t *testing.T) {
	db := setupTestDB(t)

	bio := "x"
	_, err := services.UpdateProfile(db, "no-such-id", services.UpdateProfileInput{Bio: &bio})
	if err != services.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeactivateCreator(t *testing.T) {
	db := setupTestDB(t)
	creator := registerTestCreator(t, db, "maria@example.com", "maria")

	if err := services.DeactivateCreator(db, creator.ID); err != nil {
		t.Fatalf("DeactivateCreator failed: %v", err)
	}

	reloaded, err := services.GetCreatorByUsername(db, "maria")
	if err != nil {
		t.Fatalf("creator row should survive deactivation: %v", err)
	}
	if reloaded.IsActive {
		t.Error("creator should be inactive")
	}
}

func completedDonation(t *testing.T, db *gorm.DB, creator *models.Creator, amount int64, email, paymentID string) {
	t.Helper()
	donation, err := services.CreateDonation(db, creator, decimal.NewFromInt(3), services.CreateDonationInput{
		Amount:          decimal.NewFromInt(amount),
		SupporterEmail:  email,
		PaymentID:       paymentID,
		PaymentProvider: models.PaymentProviderStripe,
	})
	if err != nil {
		t.Fatalf("CreateDonation failed: %v", err)
	}
	if _, _, err := services.ApplyPaymentEvent(db, donation.PaymentID, models.DonationStatusCompleted); err != nil {
		t.Fatalf("ApplyPaymentEvent failed: %v", err)
	}
}

func TestRecomputeCreatorStats(t *testing.T) {
	db := setupTestDB(t)
	creator := registerTestCreator(t, db, "maria@example.com", "maria")

	completedDonation(t, db, creator, 10, "sam@example.com", "pay_1")
	completedDonation(t, db, creator, 5, "sam@example.com", "pay_2")
	completedDonation(t, db, creator, 20, "kim@example.com", "pay_3")
	completedDonation(t, db, creator, 7, "", "pay_4") // no email, not a counted supporter

	// A pending donation must not contribute
	if _, err := services.CreateDonation(db, creator, decimal.NewFromInt(3), services.CreateDonationInput{
		Amount:          decimal.NewFromInt(100),
		PaymentID:       "pay_5",
		PaymentProvider: models.PaymentProviderStripe,
	}); err != nil {
		t.Fatalf("CreateDonation failed: %v", err)
	}

	reloaded, _ := services.GetCreatorByUsername(db, "maria")
	if !reloaded.TotalDonations.Equal(decimal.NewFromInt(42)) {
		t.Errorf("TotalDonations = %s, want 42", reloaded.TotalDonations)
	}
	if reloaded.TotalSupporters != 2 {
		t.Errorf("TotalSupporters = %d, want 2 distinct emails", reloaded.TotalSupporters)
	}
}

func TestRecomputeCreatorStats_Idempotent(t *testing.T) {
	db := setupTestDB(t)
	creator := registerTestCreator(t, db, "maria@example.com", "maria")
	completedDonation(t, db, creator, 10, "sam@example.com", "pay_1")

	for i := 0; i < 3; i++ {
		if err := services.RecomputeCreatorStats(db, creator.ID); err != nil {
			t.Fatalf("rollup %d failed: %v", i, err)
		}
	}

	reloaded, _ := services.GetCreatorByUsername(db, "maria")
	if !reloaded.TotalDonations.Equal(decimal.NewFromInt(10)) {
		t.Errorf("TotalDonations = %s, want 10 after repeated rollups", reloaded.TotalDonations)
	}
	if reloaded.TotalSupporters != 1 {
		t.Errorf("TotalSupporters = %d, want 1 after repeated rollups", reloaded.TotalSupporters)
	}
}

func TestRecomputeCreatorStats_MissingCreator(t *testing.T) {
	db := setupTestDB(t)

	if err := services.RecomputeCreatorStats(db, "no-such-id"); err != nil {
		t.Fatalf("rollup for missing creator should be a no-op, got %v", err)
	}
}
