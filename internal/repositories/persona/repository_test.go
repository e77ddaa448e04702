package persona

import (
	"context"
	"testing"

	"github.com/Ramsey-B/juniper/internal/repositories/account"
	"github.com/Ramsey-B/juniper/internal/repositories/correlationcase"
	"github.com/Ramsey-B/juniper/internal/repositories/datasource"
	"github.com/Ramsey-B/juniper/internal/repositories/dbtest"
	"github.com/Ramsey-B/juniper/internal/repositories/instance"
	"github.com/Ramsey-B/juniper/pkg/errs"
	"github.com/Ramsey-B/juniper/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExaminers(t *testing.T) {
	db := dbtest.NewDB(t)
	repo := NewRepository(db, dbtest.NewLogger())
	ctx := context.Background()

	t.Run("GetOrCreateByLogin", func(t *testing.T) {
		first, err := repo.GetOrCreateExaminer(ctx, "jdoe", "Jane Doe")
		require.NoError(t, err)
		assert.NotZero(t, first.ID)

		second, err := repo.GetOrCreateExaminer(ctx, "jdoe", "someone else")
		require.NoError(t, err)
		assert.Equal(t, first.ID, second.ID)
		assert.Equal(t, "Jane Doe", second.DisplayName)
	})

	t.Run("EmptyLoginFailsValidation", func(t *testing.T) {
		_, err := repo.GetOrCreateExaminer(ctx, " ", "")
		require.Error(t, err)
		assert.True(t, errs.IsValidation(err))
	})
}

func TestPersonaLifecycle(t *testing.T) {
	db := dbtest.NewDB(t)
	repo := NewRepository(db, dbtest.NewLogger())
	ctx := context.Background()

	examiner, err := repo.GetOrCreateExaminer(ctx, "analyst", "")
	require.NoError(t, err)

	t.Run("BlankNameGetsPlaceholder", func(t *testing.T) {
		p, err := repo.CreatePersona(ctx, "", "first sighting", models.PersonaStatusActive, examiner.ID)
		require.NoError(t, err)
		assert.Equal(t, models.PersonaDefaultName, p.Name)
		assert.NotEmpty(t, p.UUID)
		assert.Equal(t, models.PersonaStatusActive, p.Status)
		assert.Equal(t, p.CreatedDate, p.ModifiedDate)
	})

	t.Run("RenameAndComment", func(t *testing.T) {
		p, err := repo.CreatePersona(ctx, "John Smith", "", models.PersonaStatusUnknown, examiner.ID)
		require.NoError(t, err)

		require.NoError(t, repo.SetPersonaName(ctx, p.ID, "J. Smith"))
		require.NoError(t, repo.SetPersonaComment(ctx, p.ID, "confirmed by chat logs"))

		reloaded, err := repo.GetPersonaByID(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, "J. Smith", reloaded.Name)
		assert.Equal(t, "confirmed by chat logs", reloaded.Comment)
		assert.Equal(t, p.CreatedDate, reloaded.CreatedDate)
	})

	t.Run("SearchByPartialName", func(t *testing.T) {
		personas, err := repo.GetPersonasByName(ctx, "Smith")
		require.NoError(t, err)
		require.Len(t, personas, 1)
		assert.Equal(t, "J. Smith", personas[0].Name)
	})

	t.Run("SearchIsCaseInsensitive", func(t *testing.T) {
		personas, err := repo.GetPersonasByName(ctx, "sMiTh")
		require.NoError(t, err)
		require.Len(t, personas, 1)
		assert.Equal(t, "J. Smith", personas[0].Name)
	})

	t.Run("SearchTreatsWildcardsAsLiterals", func(t *testing.T) {
		personas, err := repo.GetPersonasByName(ctx, "S_ith")
		require.NoError(t, err)
		assert.Empty(t, personas)

		personas, err = repo.GetPersonasByName(ctx, "%")
		require.NoError(t, err)
		assert.Empty(t, personas)

		p, err := repo.CreatePersona(ctx, "100% Legit", "", models.PersonaStatusActive, examiner.ID)
		require.NoError(t, err)

		personas, err = repo.GetPersonasByName(ctx, "100%")
		require.NoError(t, err)
		require.Len(t, personas, 1)
		assert.Equal(t, p.ID, personas[0].ID)
	})

	t.Run("DeleteFlipsStatusAndHidesFromSearch", func(t *testing.T) {
		p, err := repo.CreatePersona(ctx, "Ephemeral", "", models.PersonaStatusActive, examiner.ID)
		require.NoError(t, err)

		require.NoError(t, repo.DeletePersona(ctx, p.ID))

		reloaded, err := repo.GetPersonaByID(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, models.PersonaStatusDeleted, reloaded.Status)

		personas, err := repo.GetPersonasByName(ctx, "Ephemeral")
		require.NoError(t, err)
		assert.Empty(t, personas)
	})

	t.Run("MissingPersonaUpdateFails", func(t *testing.T) {
		err := repo.SetPersonaName(ctx, 99999, "x")
		require.ErrorIs(t, err, errs.ErrNotFound)
	})
}

func TestPersonaAccounts(t *testing.T) {
	db := dbtest.NewDB(t)
	logger := dbtest.NewLogger()
	repo := NewRepository(db, logger)
	accounts := account.NewRepository(db, logger)
	ctx := context.Background()

	examiner, err := repo.GetOrCreateExaminer(ctx, "analyst", "")
	require.NoError(t, err)

	emailType := models.DefaultAccountTypes()[0]
	acct, err := accounts.GetOrCreateAccount(ctx, emailType, "shared@example.com")
	require.NoError(t, err)

	p1, err := repo.CreatePersona(ctx, "Persona One", "", models.PersonaStatusActive, examiner.ID)
	require.NoError(t, err)
	p2, err := repo.CreatePersona(ctx, "Persona Two", "", models.PersonaStatusActive, examiner.ID)
	require.NoError(t, err)

	t.Run("SameAccountLinksToManyPersonas", func(t *testing.T) {
		for _, p := range []*models.Persona{p1, p2} {
			_, err := repo.AddAccountToPersona(ctx, models.PersonaAccount{
				PersonaID:     p.ID,
				AccountID:     acct.ID,
				Justification: "same address in both dumps",
				Confidence:    models.ConfidenceModerate,
				ExaminerID:    examiner.ID,
			})
			require.NoError(t, err)
		}

		personas, err := repo.GetPersonasForAccount(ctx, acct.ID)
		require.NoError(t, err)
		assert.Len(t, personas, 2)
	})

	t.Run("DuplicateLinkFails", func(t *testing.T) {
		_, err := repo.AddAccountToPersona(ctx, models.PersonaAccount{
			PersonaID: p1.ID, AccountID: acct.ID, Confidence: models.ConfidenceLow, ExaminerID: examiner.ID,
		})
		require.Error(t, err)
	})

	t.Run("ModifyLink", func(t *testing.T) {
		links, err := repo.GetPersonaAccounts(ctx, p1.ID)
		require.NoError(t, err)
		require.Len(t, links, 1)

		require.NoError(t, repo.ModifyPersonaAccount(ctx, links[0].ID, models.ConfidenceHigh, "verified"))

		links, err = repo.GetPersonaAccounts(ctx, p1.ID)
		require.NoError(t, err)
		assert.Equal(t, models.ConfidenceHigh, links[0].Confidence)
		assert.Equal(t, "verified", links[0].Justification)
	})

	t.Run("AccountsForPersona", func(t *testing.T) {
		linked, err := repo.GetAccountsForPersona(ctx, p1.ID)
		require.NoError(t, err)
		require.Len(t, linked, 1)
		assert.Equal(t, "shared@example.com", linked[0].Identifier)
	})

	t.Run("LinksForAccount", func(t *testing.T) {
		links, err := repo.GetPersonaAccountsForAccount(ctx, acct.ID)
		require.NoError(t, err)
		assert.Len(t, links, 2)
	})

	t.Run("RemoveLink", func(t *testing.T) {
		links, err := repo.GetPersonaAccounts(ctx, p2.ID)
		require.NoError(t, err)
		require.Len(t, links, 1)

		require.NoError(t, repo.RemovePersonaAccount(ctx, links[0].ID))

		personas, err := repo.GetPersonasForAccount(ctx, acct.ID)
		require.NoError(t, err)
		assert.Len(t, personas, 1)
	})

	t.Run("DeletedPersonaExcludedFromAccountLookup", func(t *testing.T) {
		require.NoError(t, repo.DeletePersona(ctx, p1.ID))

		personas, err := repo.GetPersonasForAccount(ctx, acct.ID)
		require.NoError(t, err)
		assert.Empty(t, personas)

		links, err := repo.GetPersonaAccountsForAccount(ctx, acct.ID)
		require.NoError(t, err)
		assert.Empty(t, links)
	})
}

func TestCreatePersonaForAccount(t *testing.T) {
	db := dbtest.NewDB(t)
	logger := dbtest.NewLogger()
	repo := NewRepository(db, logger)
	accounts := account.NewRepository(db, logger)
	ctx := context.Background()

	examiner, err := repo.GetOrCreateExaminer(ctx, "analyst", "")
	require.NoError(t, err)

	emailType := models.DefaultAccountTypes()[0]
	acct, err := accounts.GetOrCreateAccount(ctx, emailType, "fresh@example.com")
	require.NoError(t, err)

	t.Run("CreatesPersonaAndLinkTogether", func(t *testing.T) {
		p, err := repo.CreatePersonaForAccount(ctx, "Fresh Persona", "from intake", models.PersonaStatusActive, models.PersonaAccount{
			AccountID:     acct.ID,
			Justification: "account owner",
			Confidence:    models.ConfidenceHigh,
			ExaminerID:    examiner.ID,
		})
		require.NoError(t, err)
		assert.NotZero(t, p.ID)
		assert.Equal(t, "Fresh Persona", p.Name)

		links, err := repo.GetPersonaAccounts(ctx, p.ID)
		require.NoError(t, err)
		require.Len(t, links, 1)
		assert.Equal(t, acct.ID, links[0].AccountID)
		assert.Equal(t, models.ConfidenceHigh, links[0].Confidence)
	})

	t.Run("BlankNameGetsPlaceholder", func(t *testing.T) {
		p, err := repo.CreatePersonaForAccount(ctx, "  ", "", models.PersonaStatusActive, models.PersonaAccount{
			AccountID: acct.ID, Confidence: models.ConfidenceLow, ExaminerID: examiner.ID,
		})
		require.NoError(t, err)
		assert.Equal(t, models.PersonaDefaultName, p.Name)
	})

	t.Run("FailedLinkLeavesNoPersonaBehind", func(t *testing.T) {
		before, err := repo.GetPersonasByName(ctx, "Orphan")
		require.NoError(t, err)
		require.Empty(t, before)

		_, err = repo.CreatePersonaForAccount(ctx, "Orphan", "", models.PersonaStatusActive, models.PersonaAccount{
			AccountID: acct.ID + 1000, Confidence: models.ConfidenceLow, ExaminerID: examiner.ID,
		})
		require.Error(t, err)

		after, err := repo.GetPersonasByName(ctx, "Orphan")
		require.NoError(t, err)
		assert.Empty(t, after)
	})
}

func TestPersonaAliasesAndMetadata(t *testing.T) {
	db := dbtest.NewDB(t)
	repo := NewRepository(db, dbtest.NewLogger())
	ctx := context.Background()

	examiner, err := repo.GetOrCreateExaminer(ctx, "analyst", "")
	require.NoError(t, err)
	p, err := repo.CreatePersona(ctx, "Aliased", "", models.PersonaStatusActive, examiner.ID)
	require.NoError(t, err)

	t.Run("Aliases", func(t *testing.T) {
		_, err := repo.AddAliasToPersona(ctx, models.PersonaAlias{
			PersonaID: p.ID, Alias: "shadow_fox", Confidence: models.ConfidenceLow, ExaminerID: examiner.ID,
		})
		require.NoError(t, err)

		aliases, err := repo.GetPersonaAliases(ctx, p.ID)
		require.NoError(t, err)
		require.Len(t, aliases, 1)
		assert.Equal(t, "shadow_fox", aliases[0].Alias)
	})

	t.Run("MetadataNameUniquePerPersona", func(t *testing.T) {
		_, err := repo.AddMetadataToPersona(ctx, models.PersonaMetadata{
			PersonaID: p.ID, Name: "occupation", Value: "courier", Confidence: models.ConfidenceLow, ExaminerID: examiner.ID,
		})
		require.NoError(t, err)

		_, err = repo.AddMetadataToPersona(ctx, models.PersonaMetadata{
			PersonaID: p.ID, Name: "occupation", Value: "driver", Confidence: models.ConfidenceLow, ExaminerID: examiner.ID,
		})
		require.Error(t, err)

		md, err := repo.GetPersonaMetadata(ctx, p.ID)
		require.NoError(t, err)
		require.Len(t, md, 1)
		assert.Equal(t, "courier", md[0].Value)
	})
}

func TestPersonaTraversals(t *testing.T) {
	db := dbtest.NewDB(t)
	logger := dbtest.NewLogger()
	repo := NewRepository(db, logger)
	accounts := account.NewRepository(db, logger)
	cases := correlationcase.NewRepository(db, logger)
	sources := datasource.NewRepository(db, logger)
	instances := instance.NewRepository(db, logger)
	ctx := context.Background()

	examiner, err := repo.GetOrCreateExaminer(ctx, "analyst", "")
	require.NoError(t, err)

	case1, err := cases.CreateCase(ctx, models.CorrelationCase{CaseUUID: "c1", DisplayName: "Case 1"})
	require.NoError(t, err)
	case2, err := cases.CreateCase(ctx, models.CorrelationCase{CaseUUID: "c2", DisplayName: "Case 2"})
	require.NoError(t, err)

	ds1, err := sources.CreateDataSource(ctx, models.CorrelationDataSource{CaseID: case1.ID, DeviceID: "d1", Name: "img1"})
	require.NoError(t, err)
	ds2, err := sources.CreateDataSource(ctx, models.CorrelationDataSource{CaseID: case2.ID, DeviceID: "d2", Name: "img2"})
	require.NoError(t, err)

	emailType := models.DefaultAccountTypes()[0]
	acct, err := accounts.GetOrCreateAccount(ctx, emailType, "jane@example.com")
	require.NoError(t, err)

	emailCorrelation := models.DefaultCorrelationTypes()[models.EmailTypeID]
	for _, obs := range []struct {
		caseID int64
		dsID   int64
		path   string
	}{
		{case1.ID, ds1.ID, "/mbox/1"},
		{case2.ID, ds2.ID, "/mbox/2"},
	} {
		err := instances.AddInstance(ctx, emailCorrelation, models.CorrelationAttributeInstance{
			Value:        "jane@example.com",
			CaseID:       obs.caseID,
			DataSourceID: obs.dsID,
			FilePath:     obs.path,
			AccountID:    &acct.ID,
		})
		require.NoError(t, err)
	}

	p1, err := repo.CreatePersona(ctx, "Jane", "", models.PersonaStatusActive, examiner.ID)
	require.NoError(t, err)
	p2, err := repo.CreatePersona(ctx, "Jane Alt", "", models.PersonaStatusActive, examiner.ID)
	require.NoError(t, err)

	for _, p := range []*models.Persona{p1, p2} {
		_, err := repo.AddAccountToPersona(ctx, models.PersonaAccount{
			PersonaID: p.ID, AccountID: acct.ID, Confidence: models.ConfidenceHigh, ExaminerID: examiner.ID,
		})
		require.NoError(t, err)
	}

	t.Run("CasesForPersona", func(t *testing.T) {
		found, err := repo.GetCasesForPersona(ctx, p1.ID)
		require.NoError(t, err)
		require.Len(t, found, 2)

		uuids := []string{found[0].CaseUUID, found[1].CaseUUID}
		assert.ElementsMatch(t, []string{"c1", "c2"}, uuids)
	})

	t.Run("DataSourcesForPersona", func(t *testing.T) {
		found, err := repo.GetDataSourcesForPersona(ctx, p1.ID)
		require.NoError(t, err)
		assert.Len(t, found, 2)
	})

	t.Run("PersonasForCase", func(t *testing.T) {
		found, err := repo.GetPersonasForCase(ctx, case1.ID)
		require.NoError(t, err)
		assert.Len(t, found, 2)
	})

	t.Run("PersonasForDataSource", func(t *testing.T) {
		found, err := repo.GetPersonasForDataSource(ctx, ds2.ID)
		require.NoError(t, err)
		assert.Len(t, found, 2)
	})

	t.Run("DeletedPersonaDropsOutOfTraversals", func(t *testing.T) {
		require.NoError(t, repo.DeletePersona(ctx, p2.ID))

		found, err := repo.GetPersonasForCase(ctx, case1.ID)
		require.NoError(t, err)
		require.Len(t, found, 1)
		assert.Equal(t, p1.ID, found[0].ID)
	})
}
