package models

import "time"

// BatchStatus tracks the lifecycle of a batch.
type BatchStatus string

const (
	BatchActive   BatchStatus = "active"
	BatchInactive BatchStatus = "inactive"
)

// Batch is a cohort of birds of one category tracked from start date to depletion.
type Batch struct {
	ID        string
	Category  Category
	Name      string
	Breed     string
	Status    BatchStatus
	StartDate time.Time
	// HeadCount is nil when the stored record has no count at all.
	HeadCount *int
	// AverageWeightLb is nil until the batch has been weighed.
	AverageWeightLb *float64
}

// Sellable reports whether the batch currently yields products.
func (b Batch) Sellable() bool {
	return b.Status == BatchActive && b.HeadCount != nil && *b.HeadCount > 0
}

// EggSizes captures the per-size egg counts of one production row.
type EggSizes struct {
	Small      int
	Medium     int
	Large      int
	ExtraLarge int
}

// Total sums all size tiers.
func (s EggSizes) Total() int {
	return s.Small + s.Medium + s.Large + s.ExtraLarge
}

// Add returns the tier-wise sum of both values.
func (s EggSizes) Add(other EggSizes) EggSizes {
	return EggSizes{
		Small:      s.Small + other.Small,
		Medium:     s.Medium + other.Medium,
		Large:      s.Large + other.Large,
		ExtraLarge: s.ExtraLarge + other.ExtraLarge,
	}
}

// Label names the only populated tier, or "mixed" when several are populated.
func (s EggSizes) Label() string {
	tiers := []struct {
		name  string
		count int
	}{
		{"small", s.Small},
		{"medium", s.Medium},
		{"large", s.Large},
		{"extra_large", s.ExtraLarge},
	}

	label := ""
	for _, tier := range tiers {
		if tier.count == 0 {
			continue
		}
		if label != "" {
			return "mixed"
		}
		label = tier.name
	}
	if label == "" {
		return "mixed"
	}
	return label
}

// ProductionRow is one logged egg collection for a laying batch.
// ConsumedUnits counts the eggs of the row already sold; Consumed is set once
// none remain.
type ProductionRow struct {
	ID            string
	BatchID       string
	Date          time.Time
	Sizes         EggSizes
	ConsumedUnits int
	Consumed      bool
}

// Remaining is the number of eggs of the row still for sale.
func (r ProductionRow) Remaining() int {
	if r.Consumed {
		return 0
	}
	return max(r.Sizes.Total()-r.ConsumedUnits, 0)
}
