package models

import (
	"time"
)

// NotAvailable marks a field that could not be resolved. Exports never contain
// empty cells for declared fields.
const NotAvailable = "N/A"

// DateLayout is used for every "Date Scraped" column.
const DateLayout = "2006-01-02 15:04:05"

// Common column names shared by several platforms.
const (
	FieldProductName  = "Product Name"
	FieldPriceINR     = "Price (INR)"
	FieldPrice        = "Price"
	FieldRating       = "Rating"
	FieldRatingsCount = "Number of Ratings"
	FieldReviewsCount = "Number of Reviews"
	FieldResultType   = "Result Type"
	FieldPlatform     = "Platform"
	FieldDateScraped  = "Date Scraped"
	FieldURL          = "URL"

	FieldReviewerName = "Reviewer Name"
	FieldReviewDate   = "Review Date"
	FieldReviewText   = "Review Text"

	FieldPrimaryRankNumber     = "Primary Rank Number"
	FieldPrimaryRankCategory   = "Primary Rank Category"
	FieldSecondaryRankNumber   = "Secondary Rank Number"
	FieldSecondaryRankCategory = "Secondary Rank Category"
)

// Result types assigned to listing entries.
const (
	ResultOrganic   = "Organic"
	ResultSponsored = "Sponsored"
	ResultDirect    = "Direct URL"
)

// Schema is the ordered column set of a result batch.
type Schema []string

// ReviewSchema is shared by every review export.
var ReviewSchema = Schema{FieldReviewerName, FieldRating, FieldReviewDate, FieldReviewText}

// NewItem returns an item holding every schema field set to NotAvailable.
func (s Schema) NewItem() *Item {
	item := &Item{
		fields: make([]string, len(s)),
		values: make(map[string]string, len(s)),
	}
	copy(item.fields, s)
	for _, f := range s {
		item.values[f] = NotAvailable
	}
	return item
}

// Has reports whether field is part of the schema.
func (s Schema) Has(field string) bool {
	for _, f := range s {
		if f == field {
			return true
		}
	}
	return false
}

// Item is one extracted record: an ordered field→value mapping.
type Item struct {
	fields []string
	values map[string]string
}

// Set stores value for field. Empty values are stored as NotAvailable and fields
// outside the item's schema are appended at the end.
func (i *Item) Set(field, value string) {
	if value == "" {
		value = NotAvailable
	}
	if _, ok := i.values[field]; !ok {
		i.fields = append(i.fields, field)
	}
	i.values[field] = value
}

// Get returns the value for field, NotAvailable when unknown.
func (i *Item) Get(field string) string {
	if v, ok := i.values[field]; ok {
		return v
	}
	return NotAvailable
}

// Resolved reports whether field holds a real value.
func (i *Item) Resolved(field string) bool {
	v, ok := i.values[field]
	return ok && v != NotAvailable
}

// Fields returns the field names in column order.
func (i *Item) Fields() []string {
	out := make([]string, len(i.fields))
	copy(out, i.fields)
	return out
}

// Row returns the values ordered by columns.
func (i *Item) Row(columns []string) []string {
	row := make([]string, len(columns))
	for idx, c := range columns {
		row[idx] = i.Get(c)
	}
	return row
}

// Map returns a copy of the values, used for archiving.
func (i *Item) Map() map[string]string {
	out := make(map[string]string, len(i.values))
	for k, v := range i.values {
		out[k] = v
	}
	return out
}

// Identity is the minimal record taken from a listing card before the deep-fetch.
type Identity struct {
	URL        string
	ResultType string
	CapturedAt time.Time
}

// Stamp formats t for the "Date Scraped" column.
func Stamp(t time.Time) string {
	return t.Format(DateLayout)
}
