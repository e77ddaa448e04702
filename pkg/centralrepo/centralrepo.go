// Package centralrepo assembles the correlation store behind one handle.
// Callers obtain a CentralRepository explicitly and reach each concern
// through its repository; there is no process-wide singleton.
package centralrepo

import (
	"context"
	"fmt"

	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/juniper/internal/repositories/account"
	"github.com/Ramsey-B/juniper/internal/repositories/correlationcase"
	"github.com/Ramsey-B/juniper/internal/repositories/correlationtype"
	"github.com/Ramsey-B/juniper/internal/repositories/datasource"
	"github.com/Ramsey-B/juniper/internal/repositories/dbinfo"
	"github.com/Ramsey-B/juniper/internal/repositories/instance"
	"github.com/Ramsey-B/juniper/internal/repositories/organization"
	"github.com/Ramsey-B/juniper/internal/repositories/persona"
	"github.com/Ramsey-B/juniper/internal/repositories/referenceset"
	"github.com/Ramsey-B/juniper/pkg/database"
	"github.com/Ramsey-B/juniper/pkg/models"
)

// CentralRepository is the call-level surface of the correlation store.
type CentralRepository struct {
	db     database.DB
	logger ectologger.Logger

	Types         correlationtype.CorrelationTypeRepository
	Cases         correlationcase.CaseRepository
	DataSources   datasource.DataSourceRepository
	Organizations organization.OrganizationRepository
	ReferenceSets referenceset.ReferenceSetRepository
	Instances     instance.InstanceRepository
	Accounts      account.AccountRepository
	Personas      persona.PersonaRepository
	DBInfo        dbinfo.DBInfoRepository
}

// New wires every repository onto the shared database handle.
func New(db database.DB, logger ectologger.Logger) *CentralRepository {
	return &CentralRepository{
		db:            db,
		logger:        logger,
		Types:         correlationtype.NewRepository(db, logger),
		Cases:         correlationcase.NewRepository(db, logger),
		DataSources:   datasource.NewRepository(db, logger),
		Organizations: organization.NewRepository(db, logger),
		ReferenceSets: referenceset.NewRepository(db, logger),
		Instances:     instance.NewRepository(db, logger),
		Accounts:      account.NewRepository(db, logger),
		Personas:      persona.NewRepository(db, logger),
		DBInfo:        dbinfo.NewRepository(db, logger),
	}
}

// GetCorrelationType resolves a type id against the registry.
func (cr *CentralRepository) GetCorrelationType(ctx context.Context, typeID int) (models.CorrelationType, error) {
	ct, err := cr.Types.GetByID(ctx, typeID)
	if err != nil {
		return models.CorrelationType{}, err
	}
	if ct == nil {
		return models.CorrelationType{}, fmt.Errorf("unknown correlation type %d", typeID)
	}
	return *ct, nil
}

// Close releases the underlying database handle.
func (cr *CentralRepository) Close() error {
	return cr.db.Close()
}
