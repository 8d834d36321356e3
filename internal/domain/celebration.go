package domain

import "time"

// Status enumerates celebration escrow lifecycle states.
type Status string

const (
	StatusActive   Status = "active"
	StatusPaused   Status = "paused"
	StatusResolved Status = "resolved"
	StatusDefunct  Status = "defunct"
)

// Valid reports whether s is a known lifecycle state.
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusPaused, StatusResolved, StatusDefunct:
		return true
	}
	return false
}

// Terminal reports whether s admits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusResolved || s == StatusDefunct
}

// Trigger enumerates who or what initiated a status change.
type Trigger string

const (
	TriggerSystem    Trigger = "system"
	TriggerAdmin     Trigger = "admin"
	TriggerUser      Trigger = "user"
	TriggerAPI       Trigger = "api"
	TriggerScheduled Trigger = "scheduled-condition"
)

// DonorSnapshot is the point-in-time copy of the contributor's identity taken
// when money was committed. It is written once at creation and never mutated by
// later status changes, even if the contributor's live profile changes.
type DonorSnapshot struct {
	Name             string
	Street           string
	City             string
	State            string
	PostalCode       string
	Occupation       string
	Employer         string
	EmploymentStatus string
	Tier             Tier
}

// Celebration is one donor's conditional contribution, held in escrow until an
// external legislative condition occurs. Amounts are integer cents.
type Celebration struct {
	ID            string
	ContributorID string
	RecipientID   string
	BillID        string
	Jurisdiction  string

	AmountCents int64
	TipCents    int64
	FeeCents    int64
	TotalCents  int64

	// IdempotencyKey is assigned once per creation attempt and is globally
	// unique. Settlement events reference the record through it.
	IdempotencyKey string

	// CurrentStatus is a projection of the last ledger entry's NewStatus. The
	// ledger is authoritative; the two are only ever updated together.
	CurrentStatus Status
	Ledger        []StatusEntry

	Donor DonorSnapshot

	// Version guards optimistic concurrency; incremented on every persisted
	// ledger append.
	Version int64

	CreatedAt time.Time
}

// CountsTowardLimit reports whether this record's amount still accrues against
// the contributor's cap. Escrowed and resolved amounts count; the regulatory
// obligation attaches at commitment time and is fulfilled, not voided, by
// resolution. Only a defunct record (never charged) stops counting.
func (c *Celebration) CountsTowardLimit() bool {
	return c.CurrentStatus != StatusDefunct
}

// ProcessingFeeCents computes the card-processing fee for a charge of the
// given size: 2.9% rounded half up, plus 30 cents.
func ProcessingFeeCents(amountCents int64) int64 {
	if amountCents <= 0 {
		return 0
	}
	return (amountCents*29+500)/1000 + 30
}
