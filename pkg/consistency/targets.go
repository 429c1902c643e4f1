package consistency

import (
	"strings"

	"github.com/Gobusters/ectolinq"

	apperrors "github.com/AndreasKatsouris/MerakiCaptivePortal-firebaseDB-sub003/pkg/errors"
	"github.com/AndreasKatsouris/MerakiCaptivePortal-firebaseDB-sub003/pkg/models"
)

const (
	// NameField is the denormalized copy of the guest's display name.
	NameField = "guestName"
	// UpdatedAtField and CascadeField are stamped on every rewritten copy.
	UpdatedAtField = "updatedAt"
	CascadeField   = "lastCascadeUpdate"
)

var (
	// DefaultCollections is the ordered list of collections holding guest name copies.
	DefaultCollections = []string{"rewards", "receipts", "vouchers", "notifications", "analytics-cache"}
	// DefaultForeignKeys are the field names a collection may use to reference the guest.
	DefaultForeignKeys = []string{"guestPhone", "guestPhoneNumber"}
)

// Target is one collection holding denormalized guest names.
type Target struct {
	Name        string
	Bucket      models.Bucket
	ForeignKeys []string
}

// BucketFor maps a collection to its summary bucket.
func BucketFor(collection string) models.Bucket {
	switch collection {
	case "rewards":
		return models.BucketRewards
	case "receipts":
		return models.BucketReceipts
	}
	return models.BucketOther
}

// TargetsFor builds the target list for the named collections. Collections without an entry
// in foreignKeys use DefaultForeignKeys. Blank and repeated names are dropped.
func TargetsFor(collections []string, foreignKeys map[string][]string) []Target {
	targets := make([]Target, 0, len(collections))
	var seen []string
	for _, name := range collections {
		name = strings.TrimSpace(name)
		if name == "" || ectolinq.Contains(seen, name) {
			continue
		}
		seen = append(seen, name)

		keys := foreignKeys[name]
		if len(keys) == 0 {
			keys = DefaultForeignKeys
		}
		targets = append(targets, Target{
			Name:        name,
			Bucket:      BucketFor(name),
			ForeignKeys: append([]string(nil), keys...),
		})
	}
	return targets
}

// DefaultTargets returns the targets for DefaultCollections.
func DefaultTargets() []Target {
	return TargetsFor(DefaultCollections, nil)
}

// ParseForeignKeys parses a per-collection alias table of the form
//
//	receipts=guestPhoneNumber|guestPhone;rewards=guestPhone
func ParseForeignKeys(raw string) (map[string][]string, error) {
	table := map[string][]string{}
	for _, entry := range strings.Split(raw, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		collection, fields, ok := strings.Cut(entry, "=")
		collection = strings.TrimSpace(collection)
		if !ok || collection == "" {
			return nil, apperrors.NewValidationErrorf("foreign_keys", "malformed entry '%s'", entry)
		}
		keys := ectolinq.Filter(
			ectolinq.Map(strings.Split(fields, "|"), strings.TrimSpace),
			func(k string) bool { return k != "" },
		)
		if len(keys) == 0 {
			return nil, apperrors.NewValidationErrorf("foreign_keys", "no fields for collection '%s'", collection)
		}
		table[collection] = keys
	}
	return table, nil
}
