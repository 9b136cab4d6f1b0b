package services_test

import (
	"errors"
	"testing"

	"github.com/localnerve/tipjar/internal/models"
	"github.com/localnerve/tipjar/internal/services"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func createPendingDonation(t *testing.T, db *gorm.DB, creator *models.Creator, amount int64, paymentID string) *models.Donation {
	t.Helper()
	donation, err := services.CreateDonation(db, creator, decimal.NewFromInt(3), services.CreateDonationInput{
		Amount:          decimal.NewFromInt(amount),
		SupporterName:   "Sam",
		SupporterEmail:  "sam@example.com",
		PaymentID:       paymentID,
		PaymentProvider: models.PaymentProviderStripe,
	})
	if err != nil {
		t.Fatalf("CreateDonation failed: %v", err)
	}
	return donation
}

func TestCreateDonation(t *testing.T) {
	db := setupTestDB(t)
	creator := registerTestCreator(t, db, "maria@example.com", "maria")

	donation, err := services.CreateDonation(db, creator, decimal.NewFromInt(3), services.CreateDonationInput{
		Amount:           decimal.NewFromInt(10),
		SupporterName:    "  Sam ",
		SupporterEmail:   "Sam@Example.com",
		SupporterMessage: "great maps",
		PaymentID:        "pay_1",
		PaymentProvider:  models.PaymentProviderStripe,
	})
	if err != nil {
		t.Fatalf("CreateDonation failed: %v", err)
	}

	if donation.PaymentStatus != models.DonationStatusPending {
		t.Errorf("status = %q, want pending", donation.PaymentStatus)
	}
	if donation.SupporterName != "Sam" {
		t.Errorf("SupporterName = %q, want trimmed Sam", donation.SupporterName)
	}
	if donation.SupporterEmail != "sam@example.com" {
		t.Errorf("SupporterEmail = %q, want lowercased", donation.SupporterEmail)
	}
	if donation.CoffeeCount != 3 {
		t.Errorf("CoffeeCount = %d, want 3", donation.CoffeeCount)
	}
	if !donation.HasMessage {
		t.Error("HasMessage should be set at the write boundary")
	}
	if donation.Currency != creator.Currency {
		t.Errorf("Currency = %q, want creator default %q", donation.Currency, creator.Currency)
	}
	if donation.CreatorUsername != "maria" {
		t.Errorf("CreatorUsername = %q, want denormalized maria", donation.CreatorUsername)
	}
}

func TestCreateDonation_InactiveCreator(t *testing.T) {
	db := setupTestDB(t)
	creator := registerTestCreator(t, db, "maria@example.com", "maria")
	if err := services.DeactivateCreator(db, creator.ID); err != nil {
		t.Fatalf("DeactivateCreator failed: %v", err)
	}
	creator.IsActive = false

	_, err := services.CreateDonation(db, creator, decimal.NewFromInt(3), services.CreateDonationInput{
		Amount:          decimal.NewFromInt(10),
		PaymentProvider: models.PaymentProviderStripe,
	})
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for inactive creator, got %v", err)
	}
}

func TestCreateDonation_DuplicatePaymentID(t *testing.T) {
	db := setupTestDB(t)
	creator := registerTestCreator(t, db, "maria@example.com", "maria")
	createPendingDonation(t, db, creator, 10, "pay_1")

	_, err := services.CreateDonation(db, creator, decimal.NewFromInt(3), services.CreateDonationInput{
		Amount:          decimal.NewFromInt(5),
		PaymentID:       "pay_1",
		PaymentProvider: models.PaymentProviderStripe,
	})
	if !errors.Is(err, services.ErrConflict) {
		t.Fatalf("expected ErrConflict for duplicate payment reference, got %v", err)
	}
}

func TestApplyPaymentEvent_Transitions(t *testing.T) {
	db := setupTestDB(t)
	creator := registerTestCreator(t, db, "maria@example.com", "maria")
	createPendingDonation(t, db, creator, 10, "pay_1")

	// pending -> completed
	donation, changed, err := services.ApplyPaymentEvent(db, "pay_1", models.DonationStatusCompleted)
	if err != nil {
		t.Fatalf("pending->completed failed: %v", err)
	}
	if !changed || donation.PaymentStatus != models.DonationStatusCompleted {
		t.Errorf("changed=%v status=%q, want changed completed", changed, donation.PaymentStatus)
	}

	// Repeated event is a no-op, not an error
	_, changed, err = services.ApplyPaymentEvent(db, "pay_1", models.DonationStatusCompleted)
	if err != nil {
		t.Fatalf("repeated completed event should be a no-op: %v", err)
	}
	if changed {
		t.Error("repeated event must not report a change")
	}

	// completed -> failed is rejected
	_, _, err = services.ApplyPaymentEvent(db, "pay_1", models.DonationStatusFailed)
	if !errors.Is(err, services.ErrInvalidTransition) {
		t.Fatalf("completed->failed should be ErrInvalidTransition, got %v", err)
	}

	// completed -> refunded is allowed
	donation, changed, err = services.ApplyPaymentEvent(db, "pay_1", models.DonationStatusRefunded)
	if err != nil {
		t.Fatalf("completed->refunded failed: %v", err)
	}
	if !changed || !donation.IsRefunded || donation.RefundedAt == nil {
		t.Error("refund should set is_refunded and refunded_at with the status")
	}

	// refunded is terminal
	_, _, err = services.ApplyPaymentEvent(db, "pay_1", models.DonationStatusCompleted)
	if !errors.Is(err, services.ErrInvalidTransition) {
		t.Fatalf("refunded->completed should be ErrInvalidTransition, got %v", err)
	}
}

func TestApplyPaymentEvent_FailedIsTerminal(t *testing.T) {
	db := setupTestDB(t)
	creator := registerTestCreator(t, db, "maria@example.com", "maria")
	createPendingDonation(t, db, creator, 10, "pay_1")

	if _, _, err := services.ApplyPaymentEvent(db, "pay_1", models.DonationStatusFailed); err != nil {
		t.Fatalf("pending->failed failed: %v", err)
	}

	_, _, err := services.ApplyPaymentEvent(db, "pay_1", models.DonationStatusCompleted)
	if !errors.Is(err, services.ErrInvalidTransition) {
		t.Fatalf("failed->completed should be ErrInvalidTransition, got %v", err)
	}
}

func TestApplyPaymentEvent_UnknownPayment(t *testing.T) {
	db := setupTestDB(t)

	_, _, err := services.ApplyPaymentEvent(db, "pay_missing", models.DonationStatusCompleted)
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown payment reference, got %v", err)
	}
}

func TestRefundDonation_OwnershipAndRollup(t *testing.T) {
	db := setupTestDB(t)
	maria := registerTestCreator(t, db, "maria@example.com", "maria")
	other := registerTestCreator(t, db, "other@example.com", "other")

	donation := createPendingDonation(t, db, maria, 10, "pay_1")
	if _, _, err := services.ApplyPaymentEvent(db, "pay_1", models.DonationStatusCompleted); err != nil {
		t.Fatalf("complete failed: %v", err)
	}

	// Completion updated the cached totals
	reloaded, _ := services.GetCreatorByUsername(db, "maria")
	if !reloaded.TotalDonations.Equal(decimal.NewFromInt(10)) || reloaded.TotalSupporters != 1 {
		t.Fatalf("after completion: totals = (%s, %d), want (10, 1)",
			reloaded.TotalDonations, reloaded.TotalSupporters)
	}

	// Another creator cannot refund it
	if _, err := services.RefundDonation(db, donation.ID, other.ID); !errors.Is(err, services.ErrNotOwner) {
		t.Fatalf("expected ErrNotOwner, got %v", err)
	}

	// The owner can, and the rollup excludes the refunded entry
	refunded, err := services.RefundDonation(db, donation.ID, maria.ID)
	if err != nil {
		t.Fatalf("RefundDonation failed: %v", err)
	}
	if refunded.PaymentStatus != models.DonationStatusRefunded {
		t.Errorf("status = %q, want refunded", refunded.PaymentStatus)
	}

	reloaded, _ = services.GetCreatorByUsername(db, "maria")
	if !reloaded.TotalDonations.Equal(decimal.Zero) || reloaded.TotalSupporters != 0 {
		t.Errorf("after refund: totals = (%s, %d), want (0, 0)",
			reloaded.TotalDonations, reloaded.TotalSupporters)
	}
}

func TestRefundDonation_PendingRejected(t *testing.T) {
	db := setupTestDB(t)
	maria := registerTestCreator(t, db, "maria@example.com", "maria")
	donation := createPendingDonation(t, db, maria, 10, "pay_1")

	_, err := services.RefundDonation(db, donation.ID, maria.ID)
	if !errors.Is(err, services.ErrInvalidTransition) {
		t.Fatalf("refunding a pending donation should be ErrInvalidTransition, got %v", err)
	}
}

func TestPublicListings(t *testing.T) {
	db := setupTestDB(t)
	creator := registerTestCreator(t, db, "maria@example.com", "maria")

	hidden := false
	amounts := []struct {
		amount    int64
		paymentID string
		public    *bool
		anonymous bool
		complete  bool
	}{
		{25, "pay_1", nil, false, true},
		{5, "pay_2", nil, true, true},
		{50, "pay_3", &hidden, false, true}, // private, never listed
		{100, "pay_4", nil, false, false},   // still pending, never listed
	}
	for _, a := range amounts {
		_, err := services.CreateDonation(db, creator, decimal.NewFromInt(3), services.CreateDonationInput{
			Amount:          decimal.NewFromInt(a.amount),
			SupporterName:   "Sam",
			IsAnonymous:     a.anonymous,
			IsPublic:        a.public,
			PaymentID:       a.paymentID,
			PaymentProvider: models.PaymentProviderStripe,
		})
		if err != nil {
			t.Fatalf("CreateDonation %s failed: %v", a.paymentID, err)
		}
		if a.complete {
			if _, _, err := services.ApplyPaymentEvent(db, a.paymentID, models.DonationStatusCompleted); err != nil {
				t.Fatalf("complete %s failed: %v", a.paymentID, err)
			}
		}
	}

	top, err := services.GetTopDonations(db, creator.ID, 10)
	if err != nil {
		t.Fatalf("GetTopDonations failed: %v", err)
	}
	if len(top) != 2 {
		t.Fatalf("top listing has %d entries, want 2 (private and pending excluded)", len(top))
	}
	if !top[0].Amount.Equal(decimal.NewFromInt(25)) {
		t.Errorf("top[0] = %s, want 25", top[0].Amount)
	}
	if top[1].DisplayName != "Anonymous" {
		t.Errorf("anonymous donation shows name %q", top[1].DisplayName)
	}

	recent, err := services.GetRecentDonations(db, creator.ID, 1)
	if err != nil {
		t.Fatalf("GetRecentDonations failed: %v", err)
	}
	if len(recent) != 1 {
		t.Fatalf("recent listing has %d entries, want limit 1", len(recent))
	}
}

func TestGetDonationStats(t *testing.T) {
	db := setupTestDB(t)
	creator := registerTestCreator(t, db, "maria@example.com", "maria")

	completedDonation(t, db, creator, 10, "sam@example.com", "pay_1")
	completedDonation(t, db, creator, 20, "kim@example.com", "pay_2")

	stats, err := services.GetDonationStats(db, creator.ID, nil, nil)
	if err != nil {
		t.Fatalf("GetDonationStats failed: %v", err)
	}
	if !stats.TotalAmount.Equal(decimal.NewFromInt(30)) {
		t.Errorf("TotalAmount = %s, want 30", stats.TotalAmount)
	}
	if stats.TotalDonations != 2 {
		t.Errorf("TotalDonations = %d, want 2", stats.TotalDonations)
	}
	if !stats.AverageAmount.Equal(decimal.NewFromInt(15)) {
		t.Errorf("AverageAmount = %s, want 15", stats.AverageAmount)
	}
	if stats.UniqueSupporters != 2 {
		t.Errorf("UniqueSupporters = %d, want 2", stats.UniqueSupporters)
	}
	if stats.TotalCoffees != 3+6 {
		t.Errorf("TotalCoffees = %d, want 9", stats.TotalCoffees)
	}
}

func TestListPendingDonations(t *testing.T) {
	db := setupTestDB(t)
	creator := registerTestCreator(t, db, "maria@example.com", "maria")

	createPendingDonation(t, db, creator, 10, "pay_1")
	createPendingDonation(t, db, creator, 5, "pay_2")
	completedDonation(t, db, creator, 20, "kim@example.com", "pay_3")

	// No payment reference: invisible to the reconciler
	if _, err := services.CreateDonation(db, creator, decimal.NewFromInt(3), services.CreateDonationInput{
		Amount:          decimal.NewFromInt(7),
		PaymentProvider: models.PaymentProviderBank,
	}); err != nil {
		t.Fatalf("CreateDonation failed: %v", err)
	}

	pending, err := services.ListPendingDonations(db, 0)
	if err != nil {
		t.Fatalf("ListPendingDonations failed: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("pending count = %d, want 2", len(pending))
	}
	for _, d := range pending {
		if d.PaymentID == "" {
			t.Error("pending listing must only carry entries with a payment reference")
		}
	}
}
