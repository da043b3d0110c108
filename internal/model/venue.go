package model

import (
	"time"
)

// Venue is a bookable property with guest-facing metadata.
type Venue struct {
	ID               string    `gorm:"primaryKey" json:"id"`
	Name             string    `json:"name"`
	Address          string    `json:"address,omitempty"`
	City             string    `json:"city,omitempty"`
	Department       string    `json:"department,omitempty"`
	AddressReference string    `json:"address_reference,omitempty"`
	WazeLink         string    `json:"waze_link,omitempty"`
	GoogleMapsLink   string    `json:"google_maps_link,omitempty"`
	WifiSSID         string    `json:"wifi_ssid,omitempty"`
	WifiPassword     string    `json:"wifi_password,omitempty"`
	Whatsapp         string    `json:"whatsapp,omitempty"`
	Instagram        string    `json:"instagram,omitempty"`
	VenueInfo        string    `json:"venue_info,omitempty"`
	DeliveryInfo     string    `json:"delivery_info,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Plan is a priced package defining capacity bounds and inclusions for a
// stay at a venue.
type Plan struct {
	ID                string  `gorm:"primaryKey" json:"id"`
	VenueID           string  `gorm:"index" json:"venue_id"`
	Name              string  `json:"name"`
	PlanType          string  `json:"plan_type,omitempty"`
	Description       string  `json:"description,omitempty"`
	AdultPrice        float64 `json:"adult_price"`
	ChildPrice        float64 `json:"child_price"`
	MinGuests         int     `json:"min_guests,omitempty"`
	MaxCapacity       int     `json:"max_capacity,omitempty"`
	CheckInTime       string  `json:"check_in_time,omitempty"`
	CheckOutTime      string  `json:"check_out_time,omitempty"`
	IncludesFood      bool    `json:"includes_food"`
	FoodDescription   string  `json:"food_description,omitempty"`
	IncludesBeverages bool    `json:"includes_beverages"`
	IncludesOvernight bool    `json:"includes_overnight"`
	IncludesRooms     bool    `json:"includes_rooms"`
	IsActive          bool    `gorm:"index" json:"is_active"`
}

// MessageTemplate is a canned response. Templates with a nil VenueID and the
// system flag apply to every venue.
type MessageTemplate struct {
	ID       string  `gorm:"primaryKey" json:"id"`
	VenueID  *string `gorm:"index" json:"venue_id,omitempty"`
	Name     string  `json:"name"`
	Content  string  `json:"content"`
	IsActive bool    `gorm:"index" json:"is_active"`
	IsSystem bool    `json:"is_system"`
}

// Reservation is a booked occupancy of a venue. Duration is stored as a
// string of seconds; absent or unparseable values mean a 12h day-use stay.
type Reservation struct {
	ID       string    `gorm:"primaryKey" json:"id"`
	VenueID  string    `gorm:"index" json:"venue_id"`
	Date     time.Time `json:"date"`
	Duration string    `json:"duration,omitempty"`
	Adults   int       `json:"adults"`
	Children int       `json:"children"`
}

// TableName keeps the historical table name for reservations.
func (Reservation) TableName() string {
	return "accommodations"
}

// Amenity is a venue or plan feature (pool, jacuzzi, BBQ, ...).
type Amenity struct {
	ID          string `gorm:"primaryKey" json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Category    string `json:"category,omitempty"`
	IsActive    bool   `gorm:"index" json:"is_active"`
}

// VenueAmenity links an amenity to a venue.
type VenueAmenity struct {
	ID        uint   `gorm:"primaryKey" json:"-"`
	VenueID   string `gorm:"index" json:"venue_id"`
	AmenityID string `gorm:"index" json:"amenity_id"`
}

// PlanAmenity links an amenity to a plan.
type PlanAmenity struct {
	ID        uint   `gorm:"primaryKey" json:"-"`
	PlanID    string `gorm:"index" json:"plan_id"`
	AmenityID string `gorm:"index" json:"amenity_id"`
}

// EstimateStatusPending is the initial status of assistant-created estimates.
const EstimateStatusPending = "pending"

// EstimateCreatedByAssistant tags estimates created by the chat assistant.
const EstimateCreatedByAssistant = "chat_ai"

// Estimate is a tentative, unconfirmed booking request pending staff
// follow-up.
type Estimate struct {
	ID              string     `gorm:"primaryKey" json:"id"`
	VenueID         string     `gorm:"index" json:"venue_id"`
	PlanID          *string    `json:"plan_id,omitempty"`
	CustomerName    string     `json:"customer_name"`
	ContactType     string     `json:"contact_type"`
	ContactValue    string     `json:"contact_value"`
	CheckIn         *time.Time `json:"check_in,omitempty"`
	CheckOut        *time.Time `json:"check_out,omitempty"`
	Adults          int        `json:"adults"`
	Children        int        `json:"children"`
	CalculatedPrice *float64   `json:"calculated_price,omitempty"`
	Notes           string     `json:"notes,omitempty"`
	ConversationID  *string    `gorm:"index" json:"conversation_id,omitempty"`
	Status          string     `json:"status"`
	CreatedBy       string     `json:"created_by"`
	CreatedAt       time.Time  `json:"created_at"`
}

// AISetting selects the provider code for an AI-assisted feature
// ("customer_chat", "receipt_extraction", "message_suggestions").
type AISetting struct {
	SettingKey   string    `gorm:"primaryKey" json:"setting_key"`
	ProviderCode string    `json:"provider_code"`
	UpdatedAt    time.Time `json:"updated_at"`
}
