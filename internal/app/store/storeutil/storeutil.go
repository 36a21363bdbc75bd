// Package storeutil holds paging helpers shared by the stores and the
// paged list pages.
package storeutil

import (
	"math"
	"strconv"

	"go.mongodb.org/mongo-driver/mongo/options"
)

// DefaultLimit is used when a caller passes a non-positive page size.
const DefaultLimit = 20

// MaxPage is the highest page a ?page= parameter can ask for.
const MaxPage = 1 << 20

// ParsePage reads a 1-based ?page= value. Missing or invalid values give
// page 1; larger values are capped at MaxPage.
func ParsePage(raw string) int64 {
	p, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || p < 1 {
		return 1
	}
	return min(p, MaxPage)
}

// Offset returns the number of documents before the 1-based page. Pages
// below 1 count as 1; pages too far out to address saturate at
// math.MaxInt64, which matches nothing.
func Offset(limit, page int64) int64 {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if page <= 1 {
		return 0
	}
	if page-1 > math.MaxInt64/limit {
		return math.MaxInt64
	}
	return (page - 1) * limit
}

// Paginate returns find options for the 1-based page of limit documents.
func Paginate(limit, page int64) *options.FindOptions {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return options.Find().SetLimit(limit).SetSkip(Offset(limit, page))
}
