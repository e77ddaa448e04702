package models

// Built-in account type names. Each account type binds to the correlation
// type whose instance table records observations of its identifiers.
const (
	AccountTypeEmail = "EMAIL"
	AccountTypePhone = "PHONE"
)

// AccountType categorizes accounts and binds them to a correlation type.
type AccountType struct {
	ID                int    `db:"id" json:"id"`
	TypeName          string `db:"type_name" json:"type_name"`
	DisplayName       string `db:"display_name" json:"display_name"`
	CorrelationTypeID int    `db:"correlation_type_id" json:"correlation_type_id"`
}

// DefaultAccountTypes returns the built-in account types seeded by
// migrations.
func DefaultAccountTypes() []AccountType {
	return []AccountType{
		{ID: 1, TypeName: AccountTypeEmail, DisplayName: "Email", CorrelationTypeID: EmailTypeID},
		{ID: 2, TypeName: AccountTypePhone, DisplayName: "Phone", CorrelationTypeID: PhoneTypeID},
	}
}

// Account is a normalized, typed identifier observed in forensic data,
// independent of any case. (account_type_id, identifier) is unique and
// creation is get-or-create.
type Account struct {
	ID         int64  `db:"id" json:"id"`
	TypeID     int    `db:"account_type_id" json:"account_type_id"`
	Identifier string `db:"account_unique_identifier" json:"identifier"`
}
