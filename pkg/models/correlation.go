package models

// Correlation type IDs are stable and immutable once assigned; new types may
// only be appended.
const (
	FilesTypeID  = 0
	DomainTypeID = 1
	EmailTypeID  = 2
	PhoneTypeID  = 3
	USBIDTypeID  = 4
)

// CorrelationType is a category of identifier with its own normalization
// rule and storage table.
type CorrelationType struct {
	ID          int    `db:"id" json:"id"`
	DisplayName string `db:"display_name" json:"display_name"`
	DBTableName string `db:"db_table_name" json:"db_table_name"`
	Supported   bool   `db:"supported" json:"supported"`
	Enabled     bool   `db:"enabled" json:"enabled"`
}

// InstanceTableName returns the attribute-instance table for this type.
func (t CorrelationType) InstanceTableName() string {
	return t.DBTableName + "_instances"
}

// ReferenceTableName returns the reference-value table for this type. Only
// the file type has a backing reference table; callers must check
// HasReferenceTable first.
func (t CorrelationType) ReferenceTableName() string {
	return "reference_" + t.DBTableName
}

// HasReferenceTable reports whether reference sets of this type have backing
// storage.
func (t CorrelationType) HasReferenceTable() bool {
	return t.ID == FilesTypeID
}

// DefaultCorrelationTypes returns the built-in correlation types, seeded
// into the correlation_types table by migrations.
func DefaultCorrelationTypes() []CorrelationType {
	return []CorrelationType{
		{ID: FilesTypeID, DisplayName: "Files", DBTableName: "file", Supported: true, Enabled: true},
		{ID: DomainTypeID, DisplayName: "Domains", DBTableName: "domain", Supported: true, Enabled: true},
		{ID: EmailTypeID, DisplayName: "Email Addresses", DBTableName: "email_address", Supported: true, Enabled: true},
		{ID: PhoneTypeID, DisplayName: "Phone Numbers", DBTableName: "phone_number", Supported: true, Enabled: true},
		{ID: USBIDTypeID, DisplayName: "USB Devices", DBTableName: "usb_devices", Supported: true, Enabled: true},
	}
}

// KnownStatus marks a value as benign, notable, or unvetted.
type KnownStatus int

const (
	KnownStatusUnknown KnownStatus = 0
	KnownStatusKnown   KnownStatus = 1
	KnownStatusNotable KnownStatus = 2
)

func (s KnownStatus) String() string {
	switch s {
	case KnownStatusKnown:
		return "known"
	case KnownStatusNotable:
		return "notable"
	default:
		return "unknown"
	}
}

// CorrelationCase identifies a case registered in the correlation store.
// The UUID comes from the external case database; registration is an
// idempotent upsert on it.
type CorrelationCase struct {
	ID           int64  `db:"id" json:"id"`
	CaseUUID     string `db:"case_uid" json:"case_uuid"`
	DisplayName  string `db:"case_name" json:"display_name"`
	CreationDate int64  `db:"creation_date" json:"creation_date"`
	CaseNumber   string `db:"case_number" json:"case_number,omitempty"`
	ExaminerName string `db:"examiner_name" json:"examiner_name,omitempty"`
	ExaminerEmail string `db:"examiner_email" json:"examiner_email,omitempty"`
	ExaminerPhone string `db:"examiner_phone" json:"examiner_phone,omitempty"`
	Notes        string `db:"notes" json:"notes,omitempty"`
	OrgID        *int64 `db:"org_id" json:"org_id,omitempty"`
}

// CorrelationDataSource identifies a data source within a case. The device
// identifier is unique per case, not globally.
type CorrelationDataSource struct {
	ID       int64  `db:"id" json:"id"`
	CaseID   int64  `db:"case_id" json:"case_id"`
	DeviceID string `db:"device_id" json:"device_id"`
	Name     string `db:"name" json:"name"`
}

// CorrelationAttributeInstance ties a normalized value to the case, data
// source, and artifact it was observed in.
type CorrelationAttributeInstance struct {
	ID           int64       `db:"id" json:"id"`
	TypeID       int         `db:"-" json:"type_id"`
	Value        string      `db:"value" json:"value"`
	CaseID       int64       `db:"case_id" json:"case_id"`
	DataSourceID int64       `db:"data_source_id" json:"data_source_id"`
	FilePath     string      `db:"file_path" json:"file_path"`
	KnownStatus  KnownStatus `db:"known_status" json:"known_status"`
	Comment      string      `db:"comment" json:"comment,omitempty"`
	CreatedDate  int64       `db:"created_date" json:"created_date"`
	AccountID    *int64      `db:"account_id" json:"account_id,omitempty"`
}
