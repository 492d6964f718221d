package model

import "time"

// EmergencyContact is a person the user trusts to be reached in an
// emergency. IsAdvocate marks professional advocates.
type EmergencyContact struct {
	ID           string    // emergency_contacts.id
	UserID       string    // emergency_contacts.user_id
	Name         string    // emergency_contacts.name
	Phone        *string   // emergency_contacts.phone (nullable)
	Email        *string   // emergency_contacts.email (nullable)
	Relationship *string   // emergency_contacts.relationship (nullable)
	IsAdvocate   bool      // emergency_contacts.is_advocate
	CreatedAt    time.Time // emergency_contacts.created_at
}
