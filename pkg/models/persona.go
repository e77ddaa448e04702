package models

// PersonaDefaultName is substituted when a persona is created with a blank
// name.
const PersonaDefaultName = "Unnamed"

// Confidence is an ordinal rating attached to an examiner assertion.
type Confidence int

const (
	ConfidenceLow      Confidence = 1
	ConfidenceModerate Confidence = 2
	ConfidenceHigh     Confidence = 3
)

func (c Confidence) String() string {
	switch c {
	case ConfidenceModerate:
		return "Moderate confidence"
	case ConfidenceHigh:
		return "High confidence"
	default:
		return "Low confidence"
	}
}

// ConfidenceFromID maps a stored level id back to a Confidence, defaulting
// to low for unrecognized values.
func ConfidenceFromID(id int) Confidence {
	switch Confidence(id) {
	case ConfidenceModerate, ConfidenceHigh:
		return Confidence(id)
	default:
		return ConfidenceLow
	}
}

// PersonaStatus is the lifecycle status of a persona. Deleted personas keep
// their row but are excluded from graph traversal.
type PersonaStatus int

const (
	PersonaStatusUnknown PersonaStatus = 1
	PersonaStatusActive  PersonaStatus = 2
	PersonaStatusMerged  PersonaStatus = 3
	PersonaStatusSplit   PersonaStatus = 4
	PersonaStatusDeleted PersonaStatus = 5
)

func (s PersonaStatus) String() string {
	switch s {
	case PersonaStatusActive:
		return "Active"
	case PersonaStatusMerged:
		return "Merged"
	case PersonaStatusSplit:
		return "Split"
	case PersonaStatusDeleted:
		return "Deleted"
	default:
		return "Unknown"
	}
}

// PersonaStatusFromID maps a stored status id back to a PersonaStatus,
// defaulting to unknown.
func PersonaStatusFromID(id int) PersonaStatus {
	switch PersonaStatus(id) {
	case PersonaStatusActive, PersonaStatusMerged, PersonaStatusSplit, PersonaStatusDeleted:
		return PersonaStatus(id)
	default:
		return PersonaStatusUnknown
	}
}

// Examiner is the analyst a persona assertion is attributed to, keyed by
// login name.
type Examiner struct {
	ID          int64  `db:"id" json:"id"`
	LoginName   string `db:"login_name" json:"login_name"`
	DisplayName string `db:"display_name" json:"display_name,omitempty"`
}

// Persona is an examiner-asserted real-world identity hypothesis linking one
// or more accounts. CreatedDate is set once at creation and never mutated.
type Persona struct {
	ID           int64         `db:"id" json:"id"`
	UUID         string        `db:"uuid" json:"uuid"`
	Name         string        `db:"name" json:"name"`
	Comment      string        `db:"comment" json:"comment,omitempty"`
	CreatedDate  int64         `db:"created_date" json:"created_date"`
	ModifiedDate int64         `db:"modified_date" json:"modified_date"`
	Status       PersonaStatus `db:"status_id" json:"status"`
	ExaminerID   int64         `db:"examiner_id" json:"examiner_id"`
}

// PersonaAccount links a persona to an account with a justification and
// confidence. (persona_id, account_id) is unique; the same account may link
// to many personas and vice versa.
type PersonaAccount struct {
	ID            int64      `db:"id" json:"id"`
	PersonaID     int64      `db:"persona_id" json:"persona_id"`
	AccountID     int64      `db:"account_id" json:"account_id"`
	Justification string     `db:"justification" json:"justification,omitempty"`
	Confidence    Confidence `db:"confidence_id" json:"confidence"`
	DateAdded     int64      `db:"date_added" json:"date_added"`
	ExaminerID    int64      `db:"examiner_id" json:"examiner_id"`
}

// PersonaAlias is an alternate name for a persona. Alias text carries no
// uniqueness constraint.
type PersonaAlias struct {
	ID            int64      `db:"id" json:"id"`
	PersonaID     int64      `db:"persona_id" json:"persona_id"`
	Alias         string     `db:"alias" json:"alias"`
	Justification string     `db:"justification" json:"justification,omitempty"`
	Confidence    Confidence `db:"confidence_id" json:"confidence"`
	DateAdded     int64      `db:"date_added" json:"date_added"`
	ExaminerID    int64      `db:"examiner_id" json:"examiner_id"`
}

// PersonaMetadata is a key/value annotation on a persona. (persona_id, name)
// is unique.
type PersonaMetadata struct {
	ID            int64      `db:"id" json:"id"`
	PersonaID     int64      `db:"persona_id" json:"persona_id"`
	Name          string     `db:"name" json:"name"`
	Value         string     `db:"value" json:"value"`
	Justification string     `db:"justification" json:"justification,omitempty"`
	Confidence    Confidence `db:"confidence_id" json:"confidence"`
	DateAdded     int64      `db:"date_added" json:"date_added"`
	ExaminerID    int64      `db:"examiner_id" json:"examiner_id"`
}
