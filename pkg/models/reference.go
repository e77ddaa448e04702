package models

// Organization owns reference sets and optionally cases. The name is unique;
// an organization cannot be deleted while a reference set references it.
type Organization struct {
	ID        int64  `db:"id" json:"id"`
	Name      string `db:"org_name" json:"name"`
	POCName   string `db:"poc_name" json:"poc_name,omitempty"`
	POCEmail  string `db:"poc_email" json:"poc_email,omitempty"`
	POCPhone  string `db:"poc_phone" json:"poc_phone,omitempty"`
}

// ReferenceSet is a named, versioned collection of known values used for
// allow/deny-list matching. (Name, Version) is unique.
type ReferenceSet struct {
	ID          int64       `db:"id" json:"id"`
	OrgID       int64       `db:"org_id" json:"org_id"`
	Name        string      `db:"set_name" json:"name"`
	Version     string      `db:"version" json:"version"`
	KnownStatus KnownStatus `db:"known_status" json:"known_status"`
	ReadOnly    bool        `db:"read_only" json:"read_only"`
	TypeID      int         `db:"type_id" json:"type_id"`
	ImportDate  int64       `db:"import_date" json:"import_date"`
}

// ReferenceInstance is one value belonging to a reference set.
type ReferenceInstance struct {
	ID          int64       `db:"id" json:"id"`
	SetID       int64       `db:"reference_set_id" json:"reference_set_id"`
	Value       string      `db:"value" json:"value"`
	KnownStatus KnownStatus `db:"known_status" json:"known_status"`
	Comment     string      `db:"comment" json:"comment,omitempty"`
}
