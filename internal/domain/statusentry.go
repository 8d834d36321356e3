package domain

import "time"

// StatusEntry is one record in a celebration's append-only status ledger.
// Entries are never mutated or deleted once written.
type StatusEntry struct {
	ID              string
	PreviousStatus  Status
	NewStatus       Status
	ChangedAt       time.Time
	Reason          string
	TriggeredBy     Trigger
	TriggeredByID   string
	TriggeredByName string
	Metadata        Metadata
	TierAtTime      Tier
	Compliant       bool
}

// Metadata is the status-specific payload attached to a ledger entry. Each
// concrete type declares which target status it is valid for, so every shape
// is statically known and exhaustively handled rather than a grab-bag of
// optional fields.
type Metadata interface {
	// Kind is the stable discriminator used in the persisted envelope.
	Kind() string
	// AppliesTo reports whether the payload is valid for a transition into
	// the given status.
	AppliesTo(s Status) bool
}

// ResolutionMetadata records how the underlying legislative condition
// resolved and how the escrowed funds were released.
type ResolutionMetadata struct {
	BillResult    string    `json:"bill_result"`
	VoteDate      time.Time `json:"vote_date"`
	RollCall      string    `json:"roll_call,omitempty"`
	ProviderRef   string    `json:"provider_ref,omitempty"`
	ReleasedCents int64     `json:"released_cents"`
}

func (ResolutionMetadata) Kind() string { return "resolution" }
func (ResolutionMetadata) AppliesTo(s Status) bool { return s == StatusResolved }

// PauseMetadata records why escrow was put on hold.
type PauseMetadata struct {
	RequestedBy    string     `json:"requested_by,omitempty"`
	Note           string     `json:"note,omitempty"`
	ExpectedResume *time.Time `json:"expected_resume,omitempty"`
}

func (PauseMetadata) Kind() string { return "pause" }
func (PauseMetadata) AppliesTo(s Status) bool { return s == StatusPaused }

// SessionEndMetadata records a congressional session ending before the bill
// reached a vote, voiding the contribution.
type SessionEndMetadata struct {
	Congress       int       `json:"congress"`
	SessionEndedAt time.Time `json:"session_ended_at"`
}

func (SessionEndMetadata) Kind() string { return "session_end" }
func (SessionEndMetadata) AppliesTo(s Status) bool { return s == StatusDefunct }

// SettlementFailureMetadata records a payment capture that failed at the
// provider, so no charge ever occurred.
type SettlementFailureMetadata struct {
	ProviderRef   string `json:"provider_ref,omitempty"`
	FailureReason string `json:"failure_reason,omitempty"`
}

func (SettlementFailureMetadata) Kind() string { return "settlement_failure" }
func (SettlementFailureMetadata) AppliesTo(s Status) bool { return s == StatusDefunct }

// AdminNoteMetadata carries free-form operator notes and is valid for any
// target status.
type AdminNoteMetadata struct {
	Note string `json:"note"`
}

func (AdminNoteMetadata) Kind() string { return "admin_note" }
func (AdminNoteMetadata) AppliesTo(Status) bool { return true }
