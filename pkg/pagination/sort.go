package pagination

import (
	"github.com/AndreasKatsouris/MerakiCaptivePortal-firebaseDB-sub003/pkg/docstore"
)

type sortKind int

const (
	sortByKey sortKind = iota
	sortByField
	sortClientOnly
)

// LessFunc orders two records of a page.
type LessFunc func(a, b docstore.Entry) bool

// SortSpec is the requested ordering of a listing. The store orders by one criterion only:
// the record key or a single child field. Anything else is ClientOnly and is applied to each
// page after it has been fetched in key order, never to the whole collection.
type SortSpec struct {
	kind       sortKind
	field      string
	descending bool
	less       LessFunc
}

// ByKey orders by record key.
func ByKey() SortSpec {
	return SortSpec{kind: sortByKey}
}

// ByField orders by a stored child field, server side.
func ByField(field string) SortSpec {
	return SortSpec{kind: sortByField, field: field}
}

// ClientOnly orders each page by a derived value. Pages are still cut in key order.
func ClientOnly(name string, less LessFunc) SortSpec {
	return SortSpec{kind: sortClientOnly, field: name, less: less}
}

// Desc reverses the ordering. Only client-only sorts can be reversed.
func (s SortSpec) Desc() SortSpec {
	s.descending = true
	return s
}

// Field is the ordering field, or "" for key order.
func (s SortSpec) Field() string {
	return s.field
}

// Descending reports whether the ordering is reversed.
func (s SortSpec) Descending() bool {
	return s.descending
}

// ServerOrderable reports whether the store can apply the ordering across pages.
func (s SortSpec) ServerOrderable() bool {
	return s.kind != sortClientOnly
}

// PartialSort reports whether the ordering only holds within a page.
func (s SortSpec) PartialSort() bool {
	return s.kind == sortClientOnly
}

// orderBy is the store ordering criterion used to cut pages.
func (s SortSpec) orderBy() string {
	if s.kind == sortByField {
		return s.field
	}
	return ""
}

func (s SortSpec) String() string {
	name := "key"
	switch s.kind {
	case sortByField:
		name = "field:" + s.field
	case sortClientOnly:
		name = "client:" + s.field
	}
	if s.descending {
		name += ":desc"
	}
	return name
}
