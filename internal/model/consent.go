package model

import "time"

// ConsentRecord holds the opt-in flags for a single user. There is at most
// one row per user (UNIQUE user_id); it is created with the defaults below
// the first time it is read or written.
//
// Fields:
//
//	PassiveDetection  – default true.
//	LocationTracking  – default false.
//	Journaling        – default true.
//	EmergencySharing  – default false.
type ConsentRecord struct {
	ID               string    // consent_records.id
	UserID           string    // consent_records.user_id
	PassiveDetection bool      // consent_records.passive_detection
	LocationTracking bool      // consent_records.location_tracking
	Journaling       bool      // consent_records.journaling
	EmergencySharing bool      // consent_records.emergency_sharing
	CreatedAt        time.Time // consent_records.created_at
	UpdatedAt        time.Time // consent_records.updated_at
}

// DefaultConsent returns a record populated with the default flags.
func DefaultConsent(id, userID string) ConsentRecord {
	return ConsentRecord{
		ID:               id,
		UserID:           userID,
		PassiveDetection: true,
		LocationTracking: false,
		Journaling:       true,
		EmergencySharing: false,
	}
}
