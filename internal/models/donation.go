package models

import "time"

// DonationSize is the self-reported coarse volume of a donation.
type DonationSize string

const (
	DonationLow    DonationSize = "low_donation"    // one or a few items
	DonationMedium DonationSize = "medium_donation" // about one grocery bag
	DonationHigh   DonationSize = "high_donation"   // more than one grocery bag
)

// Valid reports whether s is one of the three known size buckets.
func (s DonationSize) Valid() bool {
	switch s {
	case DonationLow, DonationMedium, DonationHigh:
		return true
	}
	return false
}

// DonationReport is a user-submitted donation notice. Immutable once created;
// readers filter to the last 24 hours rather than deleting old reports.
type DonationReport struct {
	ID            string       `json:"id" db:"id"`
	PantryID      string       `json:"pantryId" db:"pantry_id"`
	DonationSize  DonationSize `json:"donationSize" db:"donation_size"`
	DonationItems []string     `json:"donationItems,omitempty" db:"donation_items"`
	Note          string       `json:"note,omitempty" db:"note"`
	PhotoURLs     []string     `json:"photoUrls,omitempty" db:"photo_urls"`
	CreatedAt     time.Time    `json:"createdAt" db:"created_at"`
}
