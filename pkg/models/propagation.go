package models

import (
	"fmt"
	"time"
)

// Bucket groups target collections in the propagation summary.
type Bucket string

const (
	BucketRewards  Bucket = "rewards"
	BucketReceipts Bucket = "receipts"
	BucketOther    Bucket = "other"
)

// UpdatedRecords counts rewritten denormalized copies per bucket.
type UpdatedRecords struct {
	Rewards  int `json:"rewards"`
	Receipts int `json:"receipts"`
	Other    int `json:"other"`
}

// Add adds n to the bucket's counter.
func (u *UpdatedRecords) Add(bucket Bucket, n int) {
	switch bucket {
	case BucketRewards:
		u.Rewards += n
	case BucketReceipts:
		u.Receipts += n
	default:
		u.Other += n
	}
}

func (u UpdatedRecords) Total() int {
	return u.Rewards + u.Receipts + u.Other
}

// CollectionOutcome is what happened to one target collection during a propagation.
type CollectionOutcome struct {
	Collection string        `json:"collection"`
	Bucket     Bucket        `json:"bucket"`
	Matched    int           `json:"matched"`
	Updated    int           `json:"updated"`
	Skipped    bool          `json:"skipped,omitempty"`
	Error      string        `json:"error,omitempty"`
	Duration   time.Duration `json:"duration"`
}

// PropagationResult is the terminal report of a fan-out update.
// Success is true only when no collection failed.
type PropagationResult struct {
	GuestID        string              `json:"guestId"`
	OldName        string              `json:"oldName"`
	NewName        string              `json:"newName"`
	Success        bool                `json:"success"`
	UpdatedRecords UpdatedRecords      `json:"updatedRecords"`
	Errors         []string            `json:"errors"`
	Details        []string            `json:"details"`
	Collections    []CollectionOutcome `json:"collections"`
	StartedAt      time.Time           `json:"startedAt"`
	CompletedAt    time.Time           `json:"completedAt"`
}

// FailedCollections lists the collections that recorded an error, in processing order.
func (r *PropagationResult) FailedCollections() []string {
	var failed []string
	for _, c := range r.Collections {
		if c.Error != "" {
			failed = append(failed, c.Collection)
		}
	}
	return failed
}

// Summary renders the outcome the way operators read it: partial success is distinct from
// failure.
func (r *PropagationResult) Summary() string {
	failed := len(r.FailedCollections())
	if failed == 0 {
		return fmt.Sprintf("%d records updated", r.UpdatedRecords.Total())
	}
	return fmt.Sprintf("%d records updated, %d collections failed", r.UpdatedRecords.Total(), failed)
}
