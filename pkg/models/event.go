package models

// Event types carried on the correlation ingest topic.
const (
	EventTypeInstancesObserved = "instances.observed"
	EventTypeReferenceImport   = "reference.import"
)

// ObservedAccount identifies the account an attribute instance belongs to,
// keyed by account type name (e.g. "EMAIL") and raw identifier.
type ObservedAccount struct {
	TypeName   string `json:"type_name" validate:"required"`
	Identifier string `json:"identifier" validate:"required"`
}

// ObservedInstance is a single attribute occurrence reported by an ingest
// node. Values are raw; normalization happens on write.
type ObservedInstance struct {
	TypeID      int              `json:"type_id" validate:"gte=0"`
	Value       string           `json:"value" validate:"required"`
	FilePath    string           `json:"file_path"`
	KnownStatus KnownStatus      `json:"known_status" validate:"gte=0,lte=2"`
	Comment     string           `json:"comment"`
	Account     *ObservedAccount `json:"account,omitempty"`
}

// InstancesObservedEvent is a batch of attribute instances observed while
// processing one data source of one case. The case and data source are
// registered on first sight, so ingest nodes never pre-register them.
type InstancesObservedEvent struct {
	CaseUUID       string             `json:"case_uuid" validate:"required"`
	CaseName       string             `json:"case_name"`
	DeviceID       string             `json:"device_id" validate:"required"`
	DataSourceName string             `json:"data_source_name"`
	Examiner       string             `json:"examiner"`
	Instances      []ObservedInstance `json:"instances" validate:"required,min=1,dive"`
}

// ReferenceImportEvent is a chunk of a reference set import. The set is
// created on the first chunk for a given name and version.
type ReferenceImportEvent struct {
	SetName     string      `json:"set_name" validate:"required"`
	Version     string      `json:"version"`
	TypeID      int         `json:"type_id" validate:"gte=0"`
	KnownStatus KnownStatus `json:"known_status" validate:"gte=0,lte=2"`
	ImportDate  int64       `json:"import_date"`
	OrgID       *int64      `json:"org_id,omitempty"`
	Values      []string    `json:"values" validate:"required,min=1"`
}
