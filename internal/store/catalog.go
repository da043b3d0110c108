package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/cabanera/booking-assistant/internal/model"
)

// GetVenue loads a venue by id.
func (s *Store) GetVenue(ctx context.Context, id string) (*model.Venue, error) {
	var venue model.Venue
	if err := s.db.WithContext(ctx).First(&venue, "id = ?", id).Error; err != nil {
		return nil, translateErr(err)
	}
	return &venue, nil
}

// ListActivePlans returns the active plans of a venue ordered by price.
func (s *Store) ListActivePlans(ctx context.Context, venueID string) ([]model.Plan, error) {
	var plans []model.Plan
	err := s.db.WithContext(ctx).
		Where("venue_id = ? AND is_active = ?", venueID, true).
		Order("adult_price ASC").
		Find(&plans).Error
	return plans, err
}

// ListApplicableTemplates returns the active canned responses that apply to a
// venue: its own templates plus the global system ones.
func (s *Store) ListApplicableTemplates(ctx context.Context, venueID string) ([]model.MessageTemplate, error) {
	var templates []model.MessageTemplate
	err := s.db.WithContext(ctx).
		Where("is_active = ? AND (venue_id = ? OR (venue_id IS NULL AND is_system = ?))",
			true, venueID, true).
		Order("name ASC").
		Find(&templates).Error
	return templates, err
}

// ListReservations returns every booked occupancy of a venue.
func (s *Store) ListReservations(ctx context.Context, venueID string) ([]model.Reservation, error) {
	var reservations []model.Reservation
	err := s.db.WithContext(ctx).
		Where("venue_id = ?", venueID).
		Order("date ASC").
		Find(&reservations).Error
	return reservations, err
}

// ListActiveAmenities returns the active amenities linked to a venue.
func (s *Store) ListActiveAmenities(ctx context.Context, venueID string) ([]model.Amenity, error) {
	var amenities []model.Amenity
	err := s.db.WithContext(ctx).
		Joins("JOIN venue_amenities ON venue_amenities.amenity_id = amenities.id").
		Where("venue_amenities.venue_id = ? AND amenities.is_active = ?", venueID, true).
		Order("amenities.name ASC").
		Find(&amenities).Error
	return amenities, err
}

// ListPlanAmenities returns the active amenities linked to a plan.
func (s *Store) ListPlanAmenities(ctx context.Context, planID string) ([]model.Amenity, error) {
	var amenities []model.Amenity
	err := s.db.WithContext(ctx).
		Joins("JOIN plan_amenities ON plan_amenities.amenity_id = amenities.id").
		Where("plan_amenities.plan_id = ? AND amenities.is_active = ?", planID, true).
		Order("amenities.name ASC").
		Find(&amenities).Error
	return amenities, err
}

// CreateEstimate inserts an estimate, assigning an id and creation time when
// absent.
func (s *Store) CreateEstimate(ctx context.Context, est *model.Estimate) error {
	if est.ID == "" {
		est.ID = uuid.Must(uuid.NewV7()).String()
	}
	if est.CreatedAt.IsZero() {
		est.CreatedAt = time.Now().UTC()
	}
	return s.db.WithContext(ctx).Create(est).Error
}

// GetSetting looks up an AI feature setting by key. A missing row yields
// ErrNotFound so callers can fall back to the default provider.
func (s *Store) GetSetting(ctx context.Context, key string) (*model.AISetting, error) {
	var setting model.AISetting
	if err := s.db.WithContext(ctx).First(&setting, "setting_key = ?", key).Error; err != nil {
		return nil, translateErr(err)
	}
	return &setting, nil
}
