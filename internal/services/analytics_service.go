package services

import (
	"net/url"
	"strings"
	"time"

	"github.com/localnerve/tipjar/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var socialHosts = []string{
	"twitter.com", "x.com", "t.co", "facebook.com", "instagram.com",
	"youtube.com", "tiktok.com", "linkedin.com", "reddit.com",
}

var searchHosts = []string{
	"google.", "bing.com", "duckduckgo.com", "yahoo.", "yandex.", "baidu.com",
}

// ClassifySource buckets a referer URL into a traffic source.
func ClassifySource(referer string) string {
	if referer == "" {
		return models.SourceDirect
	}
	u, err := url.Parse(referer)
	if err != nil || u.Host == "" {
		return models.SourceDirect
	}
	host := strings.ToLower(strings.TrimPrefix(u.Host, "www."))
	for _, h := range socialHosts {
		if host == h || strings.HasSuffix(host, "."+h) {
			return models.SourceSocial
		}
	}
	for _, h := range searchHosts {
		if strings.HasPrefix(host, h) || strings.Contains(host, "."+h) {
			return models.SourceSearch
		}
	}
	return models.SourceReferral
}

// sourceColumn maps a source bucket to its snapshot column.
func sourceColumn(source string) string {
	switch source {
	case models.SourceSocial:
		return "source_social"
	case models.SourceSearch:
		return "source_search"
	case models.SourceReferral:
		return "source_referral"
	default:
		return "source_direct"
	}
}

// bumpDay increments columns on the creator's snapshot for the given day,
// creating the row if this is the day's first event. The unique
// (creator, date) index keeps concurrent first events from double-inserting.
func bumpDay(db *gorm.DB, creatorID string, day time.Time, increments map[string]interface{}) error {
	snapshot := models.DailyAnalytics{CreatorID: creatorID, Date: day}
	if err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "creator_id"}, {Name: "date"}},
		DoNothing: true,
	}).Create(&snapshot).Error; err != nil {
		return err
	}

	updates := map[string]interface{}{}
	for column := range increments {
		updates[column] = gorm.Expr(column+" + ?", increments[column])
	}

	return db.Model(&models.DailyAnalytics{}).
		Where("creator_id = ? AND date = ?", creatorID, day).
		Updates(updates).Error
}

// RecordProfileView counts one profile view for today, bucketed by referer.
func RecordProfileView(db *gorm.DB, creatorID, referer string) error {
	return bumpDay(db, creatorID, models.Day(time.Now()), map[string]interface{}{
		"views": 1,
		sourceColumn(ClassifySource(referer)): 1,
	})
}

// RecordDonationCompleted counts a donation that just completed: the day's
// donation count and amount, plus a new supporter when this is the email's
// first completed donation with the creator.
func RecordDonationCompleted(db *gorm.DB, donation *models.Donation) error {
	increments := map[string]interface{}{
		"donations":       1,
		"donation_amount": donation.Amount,
	}

	prior, err := CountSupporterCompleted(db, donation.CreatorID, donation.SupporterEmail)
	if err != nil {
		return err
	}
	// The donation itself is already completed, so a count of one means the
	// supporter is new.
	if donation.SupporterEmail != "" && prior <= 1 {
		increments["new_supporters"] = 1
	}

	return bumpDay(db, donation.CreatorID, models.Day(time.Now()), increments)
}

// RecordMessage counts one inbound message for today.
func RecordMessage(db *gorm.DB, creatorID string) error {
	return bumpDay(db, creatorID, models.Day(time.Now()), map[string]interface{}{
		"messages": 1,
	})
}

// GetAnalyticsRange returns the creator's daily snapshots between start and
// end inclusive, date-ordered.
func GetAnalyticsRange(db *gorm.DB, creatorID string, start, end time.Time) ([]models.DailyAnalytics, error) {
	var snapshots []models.DailyAnalytics
	err := db.Where("creator_id = ? AND date >= ? AND date <= ?",
		creatorID, models.Day(start), models.Day(end)).
		Order("date ASC").
		Find(&snapshots).Error
	return snapshots, err
}
