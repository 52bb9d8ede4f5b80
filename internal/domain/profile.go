// Package domain contains core business types and interfaces.
//
// This file defines the Profile domain type: the per-user record holding the
// credit balance and subscription state consulted by the credit gate.
package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// SubscriptionStatus is the free-form subscription column of a profile.
// Besides "free" and "admin", any other value names a VIP tier.
type SubscriptionStatus string

const (
	SubscriptionFree  SubscriptionStatus = "free"
	SubscriptionAdmin SubscriptionStatus = "admin"

	// VIP tiers sold through Stripe. Admins may assign other tier names.
	SubscriptionMonthly SubscriptionStatus = "mensal"
	SubscriptionYearly  SubscriptionStatus = "anual"
)

// String returns the string representation of the status.
func (s SubscriptionStatus) String() string {
	return string(s)
}

// IsVIPTier reports whether the status names a paid tier.
func (s SubscriptionStatus) IsVIPTier() bool {
	return s != "" && s != SubscriptionFree && s != SubscriptionAdmin
}

// ParseSubscriptionStatus normalises admin input into a status value.
func ParseSubscriptionStatus(raw string) (SubscriptionStatus, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return "", Invalid("profile.parse_status", "subscription status is required")
	}
	if len(s) > 32 {
		return "", Invalid("profile.parse_status", "subscription status is too long")
	}
	return SubscriptionStatus(s), nil
}

// Profile is the application-side record of a user. Identity is owned by the
// external auth system; ID is the subject of its tokens.
type Profile struct {
	ID                  uuid.UUID
	Email               string
	Name                string
	BirthDate           string // free text as typed by the user
	Credits             int
	SubscriptionStatus  SubscriptionStatus
	SubscriptionEndDate *time.Time
	StripeCustomerID    string
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// IsAdmin returns true if the profile has the admin status.
func (p *Profile) IsAdmin() bool {
	return p.SubscriptionStatus == SubscriptionAdmin
}

// IsActiveVIP returns true if the profile has a non-free status whose end
// date is still in the future.
func (p *Profile) IsActiveVIP(now time.Time) bool {
	if p.SubscriptionStatus == SubscriptionFree || p.SubscriptionStatus == "" {
		return false
	}
	return p.SubscriptionEndDate != nil && p.SubscriptionEndDate.After(now)
}

// HasUnlimitedReadings returns true when readings never consume credits.
func (p *Profile) HasUnlimitedReadings(now time.Time) bool {
	return p.IsAdmin() || p.IsActiveVIP(now)
}

// UpdateProfileParams contains the fields a user may change on their own profile.
type UpdateProfileParams struct {
	UserID    uuid.UUID
	Name      string
	BirthDate string
}

// Validate trims and checks the user supplied fields.
func (p *UpdateProfileParams) Validate() error {
	const op = "profile.update"
	p.Name = strings.TrimSpace(p.Name)
	p.BirthDate = strings.TrimSpace(p.BirthDate)
	if len(p.Name) > 100 {
		return Invalid(op, "name must be 100 characters or less")
	}
	if len(p.BirthDate) > 32 {
		return Invalid(op, "birth date is too long")
	}
	return nil
}
