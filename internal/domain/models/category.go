package models

import (
	"fmt"
	"strings"
)

// Category enumerates the livestock categories plus the egg production output.
type Category string

const (
	CategoryLaying    Category = "laying"
	CategoryGrowing   Category = "growing"
	CategoryFattening Category = "fattening"
	CategoryEggs      Category = "eggs"
)

// LivestockCategories lists the batch-backed categories in catalogue order.
var LivestockCategories = []Category{CategoryLaying, CategoryGrowing, CategoryFattening}

// IsLivestock reports whether the category is backed by bird batches.
func (c Category) IsLivestock() bool {
	switch c {
	case CategoryLaying, CategoryGrowing, CategoryFattening:
		return true
	default:
		return false
	}
}

// ParseCategory normalizes free-form input into a known Category.
func ParseCategory(value string) (Category, error) {
	normalized := Category(strings.TrimSpace(strings.ToLower(value)))
	switch normalized {
	case CategoryLaying, CategoryGrowing, CategoryFattening, CategoryEggs:
		return normalized, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownCategory, value)
	}
}
