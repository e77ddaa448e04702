// Package persona manages examiner-asserted identities and their links to
// accounts, plus the graph traversals between personas, accounts, cases,
// and data sources. Deleted personas keep their rows but never appear in
// traversal results.
package persona

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/juniper/pkg/database"
	"github.com/Ramsey-B/juniper/pkg/errs"
	"github.com/Ramsey-B/juniper/pkg/models"
	"github.com/Ramsey-B/juniper/pkg/tracing"
	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"
)

type PersonaRepository interface {
	GetOrCreateExaminer(ctx context.Context, loginName, displayName string) (*models.Examiner, error)
	CreatePersona(ctx context.Context, name, comment string, status models.PersonaStatus, examinerID int64) (*models.Persona, error)
	CreatePersonaForAccount(ctx context.Context, name, comment string, status models.PersonaStatus, link models.PersonaAccount) (*models.Persona, error)
	GetPersonaByUUID(ctx context.Context, personaUUID string) (*models.Persona, error)
	GetPersonaByID(ctx context.Context, id int64) (*models.Persona, error)
	GetPersonasByName(ctx context.Context, partialName string) ([]models.Persona, error)
	SetPersonaName(ctx context.Context, id int64, name string) error
	SetPersonaComment(ctx context.Context, id int64, comment string) error
	DeletePersona(ctx context.Context, id int64) error

	AddAccountToPersona(ctx context.Context, link models.PersonaAccount) (*models.PersonaAccount, error)
	ModifyPersonaAccount(ctx context.Context, linkID int64, confidence models.Confidence, justification string) error
	RemovePersonaAccount(ctx context.Context, linkID int64) error
	GetPersonaAccounts(ctx context.Context, personaID int64) ([]models.PersonaAccount, error)
	GetPersonasForAccount(ctx context.Context, accountID int64) ([]models.Persona, error)
	GetAccountsForPersona(ctx context.Context, personaID int64) ([]models.Account, error)
	GetPersonaAccountsForAccount(ctx context.Context, accountID int64) ([]models.PersonaAccount, error)

	AddAliasToPersona(ctx context.Context, alias models.PersonaAlias) (*models.PersonaAlias, error)
	GetPersonaAliases(ctx context.Context, personaID int64) ([]models.PersonaAlias, error)
	AddMetadataToPersona(ctx context.Context, md models.PersonaMetadata) (*models.PersonaMetadata, error)
	GetPersonaMetadata(ctx context.Context, personaID int64) ([]models.PersonaMetadata, error)

	GetCasesForPersona(ctx context.Context, personaID int64) ([]models.CorrelationCase, error)
	GetDataSourcesForPersona(ctx context.Context, personaID int64) ([]models.CorrelationDataSource, error)
	GetPersonasForCase(ctx context.Context, caseID int64) ([]models.Persona, error)
	GetPersonasForDataSource(ctx context.Context, dataSourceID int64) ([]models.Persona, error)
}

type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

const personaTable = "personas"
const examinerTable = "examiners"
const accountLinkTable = "persona_accounts"
const aliasTable = "persona_alias"
const metadataTable = "persona_metadata"

var personaColumns = []string{
	"id", "uuid", "name", "comment", "created_date", "modified_date", "status_id", "examiner_id",
}

// GetOrCreateExaminer returns the examiner registered under loginName,
// creating the row on first sight.
func (r *Repository) GetOrCreateExaminer(ctx context.Context, loginName, displayName string) (*models.Examiner, error) {
	ctx, span := tracing.StartSpan(ctx, "PersonaRepository.GetOrCreateExaminer")
	defer span.End()

	if strings.TrimSpace(loginName) == "" {
		return nil, errs.NewValidationError("examiner", loginName, errs.ReasonEmpty, "login name is required")
	}

	ib := database.NewInsertBuilder()
	ib.InsertInto(examinerTable)
	ib.Cols("login_name", "display_name")
	ib.Values(loginName, displayName)
	ib.OnConflictDoNothing("login_name")

	query, args := ib.Build()

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to create examiner")
		return nil, fmt.Errorf("failed to create examiner: %w", err)
	}

	sb := sqlbuilder.NewSelectBuilder()
	sb.Select("id", "login_name", "display_name")
	sb.From(examinerTable)
	sb.Where(sb.Equal("login_name", loginName))

	query, args = sb.Build()

	var examiner models.Examiner
	if err := r.db.GetContext(ctx, &examiner, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to get examiner")
		return nil, fmt.Errorf("failed to get examiner: %w", err)
	}

	return &examiner, nil
}

// CreatePersona creates a persona attributed to the examiner. A blank name
// falls back to the unnamed placeholder.
func (r *Repository) CreatePersona(ctx context.Context, name, comment string, status models.PersonaStatus, examinerID int64) (*models.Persona, error) {
	ctx, span := tracing.StartSpan(ctx, "PersonaRepository.CreatePersona")
	defer span.End()

	if strings.TrimSpace(name) == "" {
		name = models.PersonaDefaultName
	}

	now := time.Now().UnixMilli()
	personaUUID := uuid.New().String()

	ib := database.NewInsertBuilder()
	ib.InsertInto(personaTable)
	ib.Cols("uuid", "name", "comment", "created_date", "modified_date", "status_id", "examiner_id")
	ib.Values(personaUUID, name, comment, now, now, status, examinerID)

	query, args := ib.Build()

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to create persona")
		return nil, fmt.Errorf("failed to create persona: %w", err)
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"uuid": personaUUID,
		"name": name,
	}).Info("created persona")

	return r.GetPersonaByUUID(ctx, personaUUID)
}

// CreatePersonaForAccount creates a persona and its first account link in a
// single transaction. Either both rows land or neither does.
func (r *Repository) CreatePersonaForAccount(ctx context.Context, name, comment string, status models.PersonaStatus, link models.PersonaAccount) (*models.Persona, error) {
	ctx, span := tracing.StartSpan(ctx, "PersonaRepository.CreatePersonaForAccount")
	defer span.End()

	if strings.TrimSpace(name) == "" {
		name = models.PersonaDefaultName
	}

	now := time.Now().UnixMilli()
	personaUUID := uuid.New().String()
	if link.DateAdded == 0 {
		link.DateAdded = now
	}

	txCtx, tx, err := r.db.GetTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create persona for account: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	ib := database.NewInsertBuilder()
	ib.InsertInto(personaTable)
	ib.Cols("uuid", "name", "comment", "created_date", "modified_date", "status_id", "examiner_id")
	ib.Values(personaUUID, name, comment, now, now, status, link.ExaminerID)
	ib.Returning("id")

	query, args := ib.Build()

	if err := tx.QueryRowxContext(txCtx, query, args...).Scan(&link.PersonaID); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to create persona for account")
		return nil, fmt.Errorf("failed to create persona for account: %w", err)
	}

	ib = database.NewInsertBuilder()
	ib.InsertInto(accountLinkTable)
	ib.Cols("persona_id", "account_id", "justification", "confidence_id", "date_added", "examiner_id")
	ib.Values(link.PersonaID, link.AccountID, link.Justification, link.Confidence, link.DateAdded, link.ExaminerID)

	query, args = ib.Build()

	if _, err := tx.ExecContext(txCtx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to link account to new persona")
		return nil, fmt.Errorf("failed to link account to new persona: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to create persona for account: %w", err)
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"uuid":       personaUUID,
		"account_id": link.AccountID,
	}).Info("created persona for account")

	return r.GetPersonaByUUID(ctx, personaUUID)
}

// GetPersonaByUUID returns the persona with the given UUID, or nil.
func (r *Repository) GetPersonaByUUID(ctx context.Context, personaUUID string) (*models.Persona, error) {
	ctx, span := tracing.StartSpan(ctx, "PersonaRepository.GetPersonaByUUID")
	defer span.End()

	sb := sqlbuilder.NewSelectBuilder()
	sb.Select(personaColumns...)
	sb.From(personaTable)
	sb.Where(sb.Equal("uuid", personaUUID))

	return r.getOne(ctx, sb)
}

// GetPersonaByID returns the persona row with the given id, or nil.
func (r *Repository) GetPersonaByID(ctx context.Context, id int64) (*models.Persona, error) {
	ctx, span := tracing.StartSpan(ctx, "PersonaRepository.GetPersonaByID")
	defer span.End()

	sb := sqlbuilder.NewSelectBuilder()
	sb.Select(personaColumns...)
	sb.From(personaTable)
	sb.Where(sb.Equal("id", id))

	return r.getOne(ctx, sb)
}

func (r *Repository) getOne(ctx context.Context, sb *sqlbuilder.SelectBuilder) (*models.Persona, error) {
	query, args := sb.Build()

	var p models.Persona
	err := r.db.GetContext(ctx, &p, query, args...)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).Error("failed to get persona")
		return nil, fmt.Errorf("failed to get persona: %w", err)
	}

	return &p, nil
}

var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

// GetPersonasByName returns non-deleted personas whose name contains
// partialName, compared case-insensitively. An empty string matches every
// persona.
func (r *Repository) GetPersonasByName(ctx context.Context, partialName string) ([]models.Persona, error) {
	ctx, span := tracing.StartSpan(ctx, "PersonaRepository.GetPersonasByName")
	defer span.End()

	sb := sqlbuilder.NewSelectBuilder()
	sb.Select(personaColumns...)
	sb.From(personaTable)
	// Case-insensitive containment match; % _ ! in the input are literals.
	pattern := "%" + likeEscaper.Replace(partialName) + "%"
	sb.Where(
		"LOWER(name) LIKE LOWER("+sb.Var(pattern)+") ESCAPE '!'",
		sb.NotEqual("status_id", models.PersonaStatusDeleted),
	)
	sb.OrderBy("id")

	query, args := sb.Build()

	var personas []models.Persona
	if err := r.db.SelectContext(ctx, &personas, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to search personas by name")
		return nil, fmt.Errorf("failed to search personas: %w", err)
	}

	return personas, nil
}

// SetPersonaName renames the persona. A blank name falls back to the
// unnamed placeholder.
func (r *Repository) SetPersonaName(ctx context.Context, id int64, name string) error {
	if strings.TrimSpace(name) == "" {
		name = models.PersonaDefaultName
	}
	return r.updatePersona(ctx, "PersonaRepository.SetPersonaName", id, "name", name)
}

// SetPersonaComment replaces the persona's comment.
func (r *Repository) SetPersonaComment(ctx context.Context, id int64, comment string) error {
	return r.updatePersona(ctx, "PersonaRepository.SetPersonaComment", id, "comment", comment)
}

// DeletePersona marks the persona deleted. The row and its links survive
// for audit, but traversals skip them from here on.
func (r *Repository) DeletePersona(ctx context.Context, id int64) error {
	return r.updatePersona(ctx, "PersonaRepository.DeletePersona", id, "status_id", models.PersonaStatusDeleted)
}

func (r *Repository) updatePersona(ctx context.Context, spanName string, id int64, column string, value any) error {
	ctx, span := tracing.StartSpan(ctx, spanName)
	defer span.End()

	ub := sqlbuilder.NewUpdateBuilder()
	ub.Update(personaTable)
	ub.Set(
		ub.Assign(column, value),
		ub.Assign("modified_date", time.Now().UnixMilli()),
	)
	ub.Where(ub.Equal("id", id))

	query, args := ub.Build()

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to update persona")
		return fmt.Errorf("failed to update persona: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update persona: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("persona %d: %w", id, errs.ErrNotFound)
	}

	return nil
}

// AddAccountToPersona links an account to the persona. (persona, account)
// is unique; the same account may belong to any number of personas.
func (r *Repository) AddAccountToPersona(ctx context.Context, link models.PersonaAccount) (*models.PersonaAccount, error) {
	ctx, span := tracing.StartSpan(ctx, "PersonaRepository.AddAccountToPersona")
	defer span.End()

	if link.DateAdded == 0 {
		link.DateAdded = time.Now().UnixMilli()
	}

	ib := database.NewInsertBuilder()
	ib.InsertInto(accountLinkTable)
	ib.Cols("persona_id", "account_id", "justification", "confidence_id", "date_added", "examiner_id")
	ib.Values(link.PersonaID, link.AccountID, link.Justification, link.Confidence, link.DateAdded, link.ExaminerID)
	ib.Returning("id")

	query, args := ib.Build()

	if err := r.db.QueryRowxContext(ctx, query, args...).Scan(&link.ID); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to link account to persona")
		return nil, fmt.Errorf("failed to link account to persona: %w", err)
	}

	if err := r.touch(ctx, link.PersonaID); err != nil {
		return nil, err
	}

	return &link, nil
}

// ModifyPersonaAccount updates the confidence and justification of an
// existing persona-account link.
func (r *Repository) ModifyPersonaAccount(ctx context.Context, linkID int64, confidence models.Confidence, justification string) error {
	ctx, span := tracing.StartSpan(ctx, "PersonaRepository.ModifyPersonaAccount")
	defer span.End()

	ub := sqlbuilder.NewUpdateBuilder()
	ub.Update(accountLinkTable)
	ub.Set(
		ub.Assign("confidence_id", confidence),
		ub.Assign("justification", justification),
	)
	ub.Where(ub.Equal("id", linkID))

	query, args := ub.Build()

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to modify persona account link")
		return fmt.Errorf("failed to modify persona account link: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to modify persona account link: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("persona account link %d: %w", linkID, errs.ErrNotFound)
	}

	return nil
}

// RemovePersonaAccount deletes a persona-account link.
func (r *Repository) RemovePersonaAccount(ctx context.Context, linkID int64) error {
	ctx, span := tracing.StartSpan(ctx, "PersonaRepository.RemovePersonaAccount")
	defer span.End()

	db := sqlbuilder.NewDeleteBuilder()
	db.DeleteFrom(accountLinkTable)
	db.Where(db.Equal("id", linkID))

	query, args := db.Build()

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to remove persona account link")
		return fmt.Errorf("failed to remove persona account link: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to remove persona account link: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("persona account link %d: %w", linkID, errs.ErrNotFound)
	}

	return nil
}

// GetPersonaAccounts returns every account link of the persona.
func (r *Repository) GetPersonaAccounts(ctx context.Context, personaID int64) ([]models.PersonaAccount, error) {
	ctx, span := tracing.StartSpan(ctx, "PersonaRepository.GetPersonaAccounts")
	defer span.End()

	sb := sqlbuilder.NewSelectBuilder()
	sb.Select("id", "persona_id", "account_id", "justification", "confidence_id", "date_added", "examiner_id")
	sb.From(accountLinkTable)
	sb.Where(sb.Equal("persona_id", personaID))
	sb.OrderBy("id")

	query, args := sb.Build()

	var links []models.PersonaAccount
	if err := r.db.SelectContext(ctx, &links, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to get persona accounts")
		return nil, fmt.Errorf("failed to get persona accounts: %w", err)
	}

	return links, nil
}

// GetPersonasForAccount returns every non-deleted persona linked to the
// account.
func (r *Repository) GetPersonasForAccount(ctx context.Context, accountID int64) ([]models.Persona, error) {
	ctx, span := tracing.StartSpan(ctx, "PersonaRepository.GetPersonasForAccount")
	defer span.End()

	sb := sqlbuilder.NewSelectBuilder()
	sb.Select("p.id", "p.uuid", "p.name", "p.comment", "p.created_date", "p.modified_date", "p.status_id", "p.examiner_id")
	sb.From(personaTable + " AS p")
	sb.JoinWithOption(sqlbuilder.InnerJoin, accountLinkTable+" AS pa", "pa.persona_id = p.id")
	sb.Where(
		sb.Equal("pa.account_id", accountID),
		sb.NotEqual("p.status_id", models.PersonaStatusDeleted),
	)
	sb.OrderBy("p.id")

	query, args := sb.Build()

	var personas []models.Persona
	if err := r.db.SelectContext(ctx, &personas, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to get personas for account")
		return nil, fmt.Errorf("failed to get personas for account: %w", err)
	}

	return personas, nil
}

// GetAccountsForPersona returns the accounts linked to the persona.
func (r *Repository) GetAccountsForPersona(ctx context.Context, personaID int64) ([]models.Account, error) {
	ctx, span := tracing.StartSpan(ctx, "PersonaRepository.GetAccountsForPersona")
	defer span.End()

	sb := sqlbuilder.NewSelectBuilder()
	sb.Select("a.id", "a.account_type_id", "a.account_unique_identifier")
	sb.From("accounts AS a")
	sb.JoinWithOption(sqlbuilder.InnerJoin, accountLinkTable+" AS pa", "pa.account_id = a.id")
	sb.Where(sb.Equal("pa.persona_id", personaID))
	sb.OrderBy("a.id")

	query, args := sb.Build()

	var accounts []models.Account
	if err := r.db.SelectContext(ctx, &accounts, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to get accounts for persona")
		return nil, fmt.Errorf("failed to get accounts for persona: %w", err)
	}

	return accounts, nil
}

// GetPersonaAccountsForAccount returns every link rooted at the account,
// skipping links whose persona has been deleted.
func (r *Repository) GetPersonaAccountsForAccount(ctx context.Context, accountID int64) ([]models.PersonaAccount, error) {
	ctx, span := tracing.StartSpan(ctx, "PersonaRepository.GetPersonaAccountsForAccount")
	defer span.End()

	sb := sqlbuilder.NewSelectBuilder()
	sb.Select("pa.id", "pa.persona_id", "pa.account_id", "pa.justification", "pa.confidence_id", "pa.date_added", "pa.examiner_id")
	sb.From(accountLinkTable + " AS pa")
	sb.JoinWithOption(sqlbuilder.InnerJoin, personaTable+" AS p", "p.id = pa.persona_id")
	sb.Where(
		sb.Equal("pa.account_id", accountID),
		sb.NotEqual("p.status_id", models.PersonaStatusDeleted),
	)
	sb.OrderBy("pa.id")

	query, args := sb.Build()

	var links []models.PersonaAccount
	if err := r.db.SelectContext(ctx, &links, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to get persona links for account")
		return nil, fmt.Errorf("failed to get persona links for account: %w", err)
	}

	return links, nil
}

// AddAliasToPersona records an alternate name for the persona.
func (r *Repository) AddAliasToPersona(ctx context.Context, alias models.PersonaAlias) (*models.PersonaAlias, error) {
	ctx, span := tracing.StartSpan(ctx, "PersonaRepository.AddAliasToPersona")
	defer span.End()

	if strings.TrimSpace(alias.Alias) == "" {
		return nil, errs.NewValidationError("persona alias", alias.Alias, errs.ReasonEmpty, "alias is required")
	}
	if alias.DateAdded == 0 {
		alias.DateAdded = time.Now().UnixMilli()
	}

	ib := database.NewInsertBuilder()
	ib.InsertInto(aliasTable)
	ib.Cols("persona_id", "alias", "justification", "confidence_id", "date_added", "examiner_id")
	ib.Values(alias.PersonaID, alias.Alias, alias.Justification, alias.Confidence, alias.DateAdded, alias.ExaminerID)
	ib.Returning("id")

	query, args := ib.Build()

	if err := r.db.QueryRowxContext(ctx, query, args...).Scan(&alias.ID); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to add persona alias")
		return nil, fmt.Errorf("failed to add persona alias: %w", err)
	}

	if err := r.touch(ctx, alias.PersonaID); err != nil {
		return nil, err
	}

	return &alias, nil
}

// GetPersonaAliases returns every alias of the persona.
func (r *Repository) GetPersonaAliases(ctx context.Context, personaID int64) ([]models.PersonaAlias, error) {
	ctx, span := tracing.StartSpan(ctx, "PersonaRepository.GetPersonaAliases")
	defer span.End()

	sb := sqlbuilder.NewSelectBuilder()
	sb.Select("id", "persona_id", "alias", "justification", "confidence_id", "date_added", "examiner_id")
	sb.From(aliasTable)
	sb.Where(sb.Equal("persona_id", personaID))
	sb.OrderBy("id")

	query, args := sb.Build()

	var aliases []models.PersonaAlias
	if err := r.db.SelectContext(ctx, &aliases, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to get persona aliases")
		return nil, fmt.Errorf("failed to get persona aliases: %w", err)
	}

	return aliases, nil
}

// AddMetadataToPersona records a key/value annotation. (persona, name) is
// unique.
func (r *Repository) AddMetadataToPersona(ctx context.Context, md models.PersonaMetadata) (*models.PersonaMetadata, error) {
	ctx, span := tracing.StartSpan(ctx, "PersonaRepository.AddMetadataToPersona")
	defer span.End()

	if strings.TrimSpace(md.Name) == "" {
		return nil, errs.NewValidationError("persona metadata", md.Name, errs.ReasonEmpty, "metadata name is required")
	}
	if md.DateAdded == 0 {
		md.DateAdded = time.Now().UnixMilli()
	}

	ib := database.NewInsertBuilder()
	ib.InsertInto(metadataTable)
	ib.Cols("persona_id", "name", "value", "justification", "confidence_id", "date_added", "examiner_id")
	ib.Values(md.PersonaID, md.Name, md.Value, md.Justification, md.Confidence, md.DateAdded, md.ExaminerID)
	ib.Returning("id")

	query, args := ib.Build()

	if err := r.db.QueryRowxContext(ctx, query, args...).Scan(&md.ID); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to add persona metadata")
		return nil, fmt.Errorf("failed to add persona metadata: %w", err)
	}

	if err := r.touch(ctx, md.PersonaID); err != nil {
		return nil, err
	}

	return &md, nil
}

// GetPersonaMetadata returns every annotation of the persona.
func (r *Repository) GetPersonaMetadata(ctx context.Context, personaID int64) ([]models.PersonaMetadata, error) {
	ctx, span := tracing.StartSpan(ctx, "PersonaRepository.GetPersonaMetadata")
	defer span.End()

	sb := sqlbuilder.NewSelectBuilder()
	sb.Select("id", "persona_id", "name", "value", "justification", "confidence_id", "date_added", "examiner_id")
	sb.From(metadataTable)
	sb.Where(sb.Equal("persona_id", personaID))
	sb.OrderBy("id")

	query, args := sb.Build()

	var metadata []models.PersonaMetadata
	if err := r.db.SelectContext(ctx, &metadata, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to get persona metadata")
		return nil, fmt.Errorf("failed to get persona metadata: %w", err)
	}

	return metadata, nil
}

func (r *Repository) touch(ctx context.Context, personaID int64) error {
	ub := sqlbuilder.NewUpdateBuilder()
	ub.Update(personaTable)
	ub.Set(ub.Assign("modified_date", time.Now().UnixMilli()))
	ub.Where(ub.Equal("id", personaID))

	query, args := ub.Build()

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to touch persona: %w", err)
	}
	return nil
}

// instanceTables returns the attribute tables of every enabled correlation
// type, for the fan-out traversals below.
func (r *Repository) instanceTables(ctx context.Context) ([]string, error) {
	sb := sqlbuilder.NewSelectBuilder()
	sb.Select("db_table_name")
	sb.From("correlation_types")
	sb.Where(sb.Equal("enabled", true))
	sb.OrderBy("id")

	query, args := sb.Build()

	var names []string
	if err := r.db.SelectContext(ctx, &names, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list correlation types: %w", err)
	}

	for i := range names {
		names[i] += "_instances"
	}
	return names, nil
}

// GetCasesForPersona returns every case in which any account of the persona
// was observed, deduplicated across types and data sources.
func (r *Repository) GetCasesForPersona(ctx context.Context, personaID int64) ([]models.CorrelationCase, error) {
	ctx, span := tracing.StartSpan(ctx, "PersonaRepository.GetCasesForPersona")
	defer span.End()

	tables, err := r.instanceTables(ctx)
	if err != nil {
		return nil, err
	}

	seen := make(map[int64]bool)
	var cases []models.CorrelationCase
	for _, table := range tables {
		sb := sqlbuilder.NewSelectBuilder()
		sb.Distinct()
		sb.Select("c.id", "c.case_uid", "c.case_name", "c.creation_date", "c.case_number",
			"c.examiner_name", "c.examiner_email", "c.examiner_phone", "c.notes", "c.org_id")
		sb.From("cases AS c")
		sb.JoinWithOption(sqlbuilder.InnerJoin, table+" AS i", "i.case_id = c.id")
		sb.JoinWithOption(sqlbuilder.InnerJoin, accountLinkTable+" AS pa", "pa.account_id = i.account_id")
		sb.Where(sb.Equal("pa.persona_id", personaID))

		query, args := sb.Build()

		var rows []models.CorrelationCase
		if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
			r.logger.WithContext(ctx).WithError(err).Error("failed to get cases for persona")
			return nil, fmt.Errorf("failed to get cases for persona: %w", err)
		}
		for _, row := range rows {
			if !seen[row.ID] {
				seen[row.ID] = true
				cases = append(cases, row)
			}
		}
	}

	return cases, nil
}

// GetDataSourcesForPersona returns every data source on which any account
// of the persona was observed.
func (r *Repository) GetDataSourcesForPersona(ctx context.Context, personaID int64) ([]models.CorrelationDataSource, error) {
	ctx, span := tracing.StartSpan(ctx, "PersonaRepository.GetDataSourcesForPersona")
	defer span.End()

	tables, err := r.instanceTables(ctx)
	if err != nil {
		return nil, err
	}

	seen := make(map[int64]bool)
	var sources []models.CorrelationDataSource
	for _, table := range tables {
		sb := sqlbuilder.NewSelectBuilder()
		sb.Distinct()
		sb.Select("d.id", "d.case_id", "d.device_id", "d.name")
		sb.From("data_sources AS d")
		sb.JoinWithOption(sqlbuilder.InnerJoin, table+" AS i", "i.data_source_id = d.id")
		sb.JoinWithOption(sqlbuilder.InnerJoin, accountLinkTable+" AS pa", "pa.account_id = i.account_id")
		sb.Where(sb.Equal("pa.persona_id", personaID))

		query, args := sb.Build()

		var rows []models.CorrelationDataSource
		if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
			r.logger.WithContext(ctx).WithError(err).Error("failed to get data sources for persona")
			return nil, fmt.Errorf("failed to get data sources for persona: %w", err)
		}
		for _, row := range rows {
			if !seen[row.ID] {
				seen[row.ID] = true
				sources = append(sources, row)
			}
		}
	}

	return sources, nil
}

// GetPersonasForCase returns every non-deleted persona whose accounts were
// observed in the case.
func (r *Repository) GetPersonasForCase(ctx context.Context, caseID int64) ([]models.Persona, error) {
	ctx, span := tracing.StartSpan(ctx, "PersonaRepository.GetPersonasForCase")
	defer span.End()

	return r.personasByInstanceColumn(ctx, "case_id", caseID)
}

// GetPersonasForDataSource returns every non-deleted persona whose accounts
// were observed on the data source.
func (r *Repository) GetPersonasForDataSource(ctx context.Context, dataSourceID int64) ([]models.Persona, error) {
	ctx, span := tracing.StartSpan(ctx, "PersonaRepository.GetPersonasForDataSource")
	defer span.End()

	return r.personasByInstanceColumn(ctx, "data_source_id", dataSourceID)
}

func (r *Repository) personasByInstanceColumn(ctx context.Context, column string, id int64) ([]models.Persona, error) {
	tables, err := r.instanceTables(ctx)
	if err != nil {
		return nil, err
	}

	seen := make(map[int64]bool)
	var personas []models.Persona
	for _, table := range tables {
		sb := sqlbuilder.NewSelectBuilder()
		sb.Distinct()
		sb.Select("p.id", "p.uuid", "p.name", "p.comment", "p.created_date", "p.modified_date", "p.status_id", "p.examiner_id")
		sb.From(personaTable + " AS p")
		sb.JoinWithOption(sqlbuilder.InnerJoin, accountLinkTable+" AS pa", "pa.persona_id = p.id")
		sb.JoinWithOption(sqlbuilder.InnerJoin, table+" AS i", "i.account_id = pa.account_id")
		sb.Where(
			sb.Equal("i."+column, id),
			sb.NotEqual("p.status_id", models.PersonaStatusDeleted),
		)

		query, args := sb.Build()

		var rows []models.Persona
		if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
			r.logger.WithContext(ctx).WithError(err).Error("failed to get personas for " + column)
			return nil, fmt.Errorf("failed to get personas: %w", err)
		}
		for _, row := range rows {
			if !seen[row.ID] {
				seen[row.ID] = true
				personas = append(personas, row)
			}
		}
	}

	return personas, nil
}
