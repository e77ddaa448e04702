package graph

import (
	"context"
	"fmt"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/juniper/pkg/centralrepo"
	"github.com/Ramsey-B/juniper/pkg/models"
	"github.com/Ramsey-B/juniper/pkg/tracing"
)

// Projector mirrors personas and their account links into the graph store.
// Nodes are keyed by persona UUID and account row id, so re-projection is
// idempotent.
type Projector struct {
	client *Client
	repo   *centralrepo.CentralRepository
	logger ectologger.Logger
}

// NewProjector creates a projector reading from the central repository.
func NewProjector(client *Client, repo *centralrepo.CentralRepository, logger ectologger.Logger) *Projector {
	return &Projector{
		client: client,
		repo:   repo,
		logger: logger,
	}
}

// ProjectPersona mirrors one persona and all of its account links. Deleted
// personas are removed from the graph instead.
func (p *Projector) ProjectPersona(ctx context.Context, personaID int64) error {
	ctx, span := tracing.StartSpan(ctx, "graph.Projector.ProjectPersona")
	defer span.End()

	persona, err := p.repo.Personas.GetPersonaByID(ctx, personaID)
	if err != nil {
		return fmt.Errorf("failed to load persona %d: %w", personaID, err)
	}
	if persona == nil {
		return nil
	}
	if persona.Status == models.PersonaStatusDeleted {
		return p.RemovePersona(ctx, persona.UUID)
	}

	links, err := p.repo.Personas.GetPersonaAccounts(ctx, personaID)
	if err != nil {
		return fmt.Errorf("failed to load persona accounts: %w", err)
	}

	statements := []Statement{{
		Cypher: `
			MERGE (p:Persona {uuid: $uuid})
			SET p.name = $name, p.status = $status
		`,
		Params: map[string]any{
			"uuid":   persona.UUID,
			"name":   persona.Name,
			"status": persona.Status.String(),
		},
	}}

	for _, link := range links {
		acct, err := p.repo.Accounts.GetAccountByID(ctx, link.AccountID)
		if err != nil {
			return fmt.Errorf("failed to load account %d: %w", link.AccountID, err)
		}
		if acct == nil {
			continue
		}

		statements = append(statements, Statement{
			Cypher: `
				MERGE (a:Account {account_id: $account_id})
				SET a.identifier = $identifier, a.type_id = $type_id
				WITH a
				MATCH (p:Persona {uuid: $uuid})
				MERGE (p)-[r:LINKED_TO]->(a)
				SET r.confidence = $confidence, r.justification = $justification
			`,
			Params: map[string]any{
				"account_id":    acct.ID,
				"identifier":    acct.Identifier,
				"type_id":       acct.TypeID,
				"uuid":          persona.UUID,
				"confidence":    int(link.Confidence),
				"justification": link.Justification,
			},
		})
	}

	if err := p.client.WriteBatch(ctx, statements); err != nil {
		return fmt.Errorf("failed to project persona %q: %w", persona.UUID, err)
	}

	p.logger.WithContext(ctx).WithFields(map[string]any{
		"uuid":     persona.UUID,
		"accounts": len(links),
	}).Info("projected persona")

	return nil
}

// RemovePersona detaches and deletes the persona node. Account nodes stay;
// other personas may still link to them.
func (p *Projector) RemovePersona(ctx context.Context, personaUUID string) error {
	ctx, span := tracing.StartSpan(ctx, "graph.Projector.RemovePersona")
	defer span.End()

	err := p.client.WriteBatch(ctx, []Statement{{
		Cypher: `
			MATCH (p:Persona {uuid: $uuid})
			DETACH DELETE p
		`,
		Params: map[string]any{"uuid": personaUUID},
	}})
	if err != nil {
		return fmt.Errorf("failed to remove persona %q from graph: %w", personaUUID, err)
	}
	return nil
}

// ProjectAll re-projects every non-deleted persona. Intended for startup
// reconciliation after the graph store has been rebuilt.
func (p *Projector) ProjectAll(ctx context.Context) error {
	ctx, span := tracing.StartSpan(ctx, "graph.Projector.ProjectAll")
	defer span.End()

	personas, err := p.repo.Personas.GetPersonasByName(ctx, "")
	if err != nil {
		return fmt.Errorf("failed to list personas: %w", err)
	}

	for _, persona := range personas {
		if err := p.ProjectPersona(ctx, persona.ID); err != nil {
			return err
		}
	}

	p.logger.WithContext(ctx).WithFields(map[string]any{
		"count": len(personas),
	}).Info("projected persona graph")

	return nil
}
