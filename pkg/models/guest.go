package models

import (
	"fmt"
	"time"
)

// PendingName is the placeholder display name for guests who have not told us their name.
const PendingName = "pending"

// Tier is the loyalty tier of a guest.
type Tier string

const (
	TierBronze   Tier = "Bronze"
	TierSilver   Tier = "Silver"
	TierGold     Tier = "Gold"
	TierPlatinum Tier = "Platinum"
)

// Valid reports whether t is a known tier. The empty tier is valid and means Bronze.
func (t Tier) Valid() bool {
	switch t {
	case "", TierBronze, TierSilver, TierGold, TierPlatinum:
		return true
	}
	return false
}

// GuestRecord is the canonical identity of a guest, stored at guests/<ID>. The ID is the
// normalized phone number and never changes.
type GuestRecord struct {
	ID                string                `json:"phoneNumber"`
	Name              string                `json:"name"`
	Tier              Tier                  `json:"tier,omitempty"`
	Consent           bool                  `json:"consent"`
	CreatedAt         time.Time             `json:"createdAt"`
	UpdatedAt         time.Time             `json:"updatedAt"`
	ConsentPromptedAt *time.Time            `json:"consentPromptedAt,omitempty"`
	LastCascadeUpdate *time.Time            `json:"lastCascadeUpdate,omitempty"`
	NameUpdateHistory map[string]NameUpdate `json:"nameUpdateHistory,omitempty"`
}

// NameUpdate is one audit entry of a name propagation.
type NameUpdate struct {
	OldName        string         `json:"oldName"`
	NewName        string         `json:"newName"`
	UpdatedRecords UpdatedRecords `json:"updatedRecords"`
	UpdatedBy      string         `json:"updatedBy,omitempty"`
	Timestamp      time.Time      `json:"timestamp"`
}

// HistoryKey is the nameUpdateHistory key for an update started at t. Keys are zero-padded
// unix milliseconds so lexical order is chronological.
func HistoryKey(t time.Time) string {
	return fmt.Sprintf("%013d", t.UnixMilli())
}

// GuestMetrics are derived from the guest's transactional records.
type GuestMetrics struct {
	VisitCount      int       `json:"visitCount"`
	TotalSpent      float64   `json:"totalSpent"`
	AverageSpend    float64   `json:"averageSpend"`
	LastVisit       time.Time `json:"lastVisit"`
	FavoriteStore   string    `json:"favoriteStore,omitempty"`
	EngagementScore int       `json:"engagementScore"`
}

// GuestWithMetrics is a guest record enriched for listing.
type GuestWithMetrics struct {
	GuestRecord
	Metrics GuestMetrics `json:"metrics"`
}
