// Package processor turns ingest events into central repository writes.
// Permanently bad input (validation failures, unknown types, malformed
// values) is logged and dropped so the consumer can commit; transient
// failures propagate so the message is redelivered.
package processor

import (
	"context"
	"fmt"

	"github.com/Gobusters/ectologger"
	"github.com/go-playground/validator/v10"

	"github.com/Ramsey-B/juniper/config"
	"github.com/Ramsey-B/juniper/pkg/centralrepo"
	"github.com/Ramsey-B/juniper/pkg/errs"
	"github.com/Ramsey-B/juniper/pkg/kafka"
	"github.com/Ramsey-B/juniper/pkg/models"
	"github.com/Ramsey-B/juniper/pkg/normalizers"
	"github.com/Ramsey-B/juniper/pkg/tracing"
)

// DefaultOrganizationName owns reference sets imported without an explicit
// organization.
const DefaultOrganizationName = "Not Specified"

// Processor handles correlation events from the ingest topic.
type Processor struct {
	repo     *centralrepo.CentralRepository
	logger   ectologger.Logger
	validate *validator.Validate

	referenceBatchSize int
	instanceBatchSize  int
}

// New creates a processor writing into the given central repository.
func New(repo *centralrepo.CentralRepository, logger ectologger.Logger, cfg config.Config) *Processor {
	return &Processor{
		repo:               repo,
		logger:             logger,
		validate:           validator.New(),
		referenceBatchSize: cfg.ReferenceImportBatchSize,
		instanceBatchSize:  cfg.InstanceInsertBatchSize,
	}
}

// HandleMessage dispatches an incoming message by event type. It satisfies
// kafka.MessageHandler.
func (p *Processor) HandleMessage(ctx context.Context, msg *kafka.IncomingMessage) error {
	ctx, span := tracing.StartSpan(ctx, "Processor.HandleMessage")
	defer span.End()

	switch eventType := msg.EventType(); eventType {
	case models.EventTypeInstancesObserved:
		evt, err := msg.ParseInstancesObserved()
		if err != nil {
			p.logger.WithContext(ctx).WithError(err).Error("dropping unparseable instance event")
			return nil
		}
		return p.ProcessInstancesObserved(ctx, evt)
	case models.EventTypeReferenceImport:
		evt, err := msg.ParseReferenceImport()
		if err != nil {
			p.logger.WithContext(ctx).WithError(err).Error("dropping unparseable reference import event")
			return nil
		}
		return p.ProcessReferenceImport(ctx, evt)
	default:
		p.logger.WithContext(ctx).WithFields(map[string]any{
			"event_type": eventType,
		}).Warn("dropping event of unknown type")
		return nil
	}
}

// ProcessInstancesObserved registers the event's case and data source, then
// stores its attribute instances grouped per correlation type. Malformed
// values are dropped individually; the rest of the batch still lands.
func (p *Processor) ProcessInstancesObserved(ctx context.Context, evt *models.InstancesObservedEvent) error {
	ctx, span := tracing.StartSpan(ctx, "Processor.ProcessInstancesObserved")
	defer span.End()

	if err := p.validate.Struct(evt); err != nil {
		p.logger.WithContext(ctx).WithError(err).Error("dropping invalid instance event")
		return nil
	}

	c, err := p.repo.Cases.CreateCase(ctx, models.CorrelationCase{
		CaseUUID:     evt.CaseUUID,
		DisplayName:  evt.CaseName,
		ExaminerName: evt.Examiner,
	})
	if err != nil {
		return fmt.Errorf("failed to register case %q: %w", evt.CaseUUID, err)
	}

	// Redelivered events re-register the same device, which is not an error.
	ds, err := p.repo.DataSources.GetDataSource(ctx, c.ID, evt.DeviceID)
	if err != nil {
		return fmt.Errorf("failed to look up data source %q: %w", evt.DeviceID, err)
	}
	if ds == nil {
		ds, err = p.repo.DataSources.CreateDataSource(ctx, models.CorrelationDataSource{
			CaseID:   c.ID,
			DeviceID: evt.DeviceID,
			Name:     evt.DataSourceName,
		})
		if err != nil {
			return fmt.Errorf("failed to register data source %q: %w", evt.DeviceID, err)
		}
	}

	byType := make(map[int][]models.CorrelationAttributeInstance)
	for _, obs := range evt.Instances {
		if _, err := normalizers.Normalize(obs.TypeID, obs.Value); err != nil {
			p.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
				"type_id": obs.TypeID,
				"value":   obs.Value,
			}).Warn("dropping malformed instance value")
			continue
		}

		inst := models.CorrelationAttributeInstance{
			TypeID:       obs.TypeID,
			Value:        obs.Value,
			CaseID:       c.ID,
			DataSourceID: ds.ID,
			FilePath:     obs.FilePath,
			KnownStatus:  obs.KnownStatus,
			Comment:      obs.Comment,
		}

		if obs.Account != nil {
			accountID, err := p.resolveAccount(ctx, obs.Account)
			if err != nil {
				return err
			}
			inst.AccountID = accountID
		}

		byType[obs.TypeID] = append(byType[obs.TypeID], inst)
	}

	total := 0
	for typeID, instances := range byType {
		ct, err := p.repo.GetCorrelationType(ctx, typeID)
		if err != nil {
			p.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
				"type_id": typeID,
			}).Warn("dropping instances of unknown correlation type")
			continue
		}

		added, err := p.repo.Instances.BulkAddInstances(ctx, ct, instances, p.instanceBatchSize)
		if err != nil {
			return fmt.Errorf("failed to store %s instances: %w", ct.DBTableName, err)
		}
		total += added
	}

	p.logger.WithContext(ctx).WithFields(map[string]any{
		"case_uuid": evt.CaseUUID,
		"device_id": evt.DeviceID,
		"added":     total,
	}).Info("stored observed instances")

	return nil
}

// resolveAccount resolves an observed account to its row id, creating the
// account on first sight. A nil id is returned when the account type is
// unknown or the identifier does not normalize.
func (p *Processor) resolveAccount(ctx context.Context, obs *models.ObservedAccount) (*int64, error) {
	accountType, err := p.repo.Accounts.GetAccountTypeByName(ctx, obs.TypeName)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve account type %q: %w", obs.TypeName, err)
	}
	if accountType == nil {
		p.logger.WithContext(ctx).WithFields(map[string]any{
			"type_name": obs.TypeName,
		}).Warn("dropping account of unknown type")
		return nil, nil
	}

	acct, err := p.repo.Accounts.GetOrCreateAccount(ctx, *accountType, obs.Identifier)
	if err != nil {
		if errs.IsValidation(err) {
			p.logger.WithContext(ctx).WithError(err).Warn("dropping malformed account identifier")
			return nil, nil
		}
		return nil, fmt.Errorf("failed to resolve account %q: %w", obs.Identifier, err)
	}

	return &acct.ID, nil
}

// ProcessReferenceImport appends a chunk of values to a reference set,
// creating the set (and the default organization) on first sight.
func (p *Processor) ProcessReferenceImport(ctx context.Context, evt *models.ReferenceImportEvent) error {
	ctx, span := tracing.StartSpan(ctx, "Processor.ProcessReferenceImport")
	defer span.End()

	if err := p.validate.Struct(evt); err != nil {
		p.logger.WithContext(ctx).WithError(err).Error("dropping invalid reference import event")
		return nil
	}

	ct, err := p.repo.GetCorrelationType(ctx, evt.TypeID)
	if err != nil {
		p.logger.WithContext(ctx).WithError(err).Error("dropping reference import for unknown correlation type")
		return nil
	}
	if !ct.HasReferenceTable() {
		p.logger.WithContext(ctx).WithFields(map[string]any{
			"type_id": evt.TypeID,
		}).Error("dropping reference import for type without reference storage")
		return nil
	}

	set, err := p.resolveReferenceSet(ctx, ct, evt)
	if err != nil {
		return err
	}

	instances := make([]models.ReferenceInstance, 0, len(evt.Values))
	for _, value := range evt.Values {
		if _, err := normalizers.Normalize(ct.ID, value); err != nil {
			p.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
				"value": value,
			}).Warn("dropping malformed reference value")
			continue
		}
		instances = append(instances, models.ReferenceInstance{
			SetID:       set.ID,
			Value:       value,
			KnownStatus: evt.KnownStatus,
		})
	}
	if len(instances) == 0 {
		return nil
	}

	added, err := p.repo.ReferenceSets.BulkAddReferenceInstances(ctx, ct, instances, p.referenceBatchSize)
	if err != nil {
		return fmt.Errorf("failed to import reference values into %q: %w", set.Name, err)
	}

	p.logger.WithContext(ctx).WithFields(map[string]any{
		"set_name": set.Name,
		"version":  set.Version,
		"added":    added,
	}).Info("imported reference values")

	return nil
}

func (p *Processor) resolveReferenceSet(ctx context.Context, ct models.CorrelationType, evt *models.ReferenceImportEvent) (*models.ReferenceSet, error) {
	sets, err := p.repo.ReferenceSets.GetReferenceSetsByType(ctx, ct.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list reference sets: %w", err)
	}
	for i := range sets {
		if sets[i].Name == evt.SetName && sets[i].Version == evt.Version {
			return &sets[i], nil
		}
	}

	orgID, err := p.resolveOrgID(ctx, evt.OrgID)
	if err != nil {
		return nil, err
	}

	return p.repo.ReferenceSets.CreateReferenceSet(ctx, models.ReferenceSet{
		OrgID:       orgID,
		Name:        evt.SetName,
		Version:     evt.Version,
		KnownStatus: evt.KnownStatus,
		TypeID:      ct.ID,
		ImportDate:  evt.ImportDate,
	})
}

func (p *Processor) resolveOrgID(ctx context.Context, orgID *int64) (int64, error) {
	if orgID != nil {
		return *orgID, nil
	}

	org, err := p.repo.Organizations.GetOrganizationByName(ctx, DefaultOrganizationName)
	if err != nil {
		return 0, fmt.Errorf("failed to look up default organization: %w", err)
	}
	if org == nil {
		org, err = p.repo.Organizations.CreateOrganization(ctx, models.Organization{Name: DefaultOrganizationName})
		if err != nil {
			return 0, fmt.Errorf("failed to create default organization: %w", err)
		}
	}
	return org.ID, nil
}
