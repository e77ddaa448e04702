// Package graph projects the persona identity graph into Memgraph/Neo4j
// over Bolt. The projection is for visualization only; authoritative reads
// stay in the relational store.
package graph

import (
	"context"
	"fmt"

	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/juniper/pkg/tracing"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Client wraps the Bolt driver for the projection store.
type Client struct {
	driver neo4j.DriverWithContext
	logger ectologger.Logger
}

// Config holds graph database configuration
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
}

// Statement is one parameterized Cypher statement.
type Statement struct {
	Cypher string
	Params map[string]any
}

// NewClient creates a new graph database client
func NewClient(cfg Config, logger ectologger.Logger) (*Client, error) {
	uri := fmt.Sprintf("bolt://%s:%d", cfg.Host, cfg.Port)

	auth := neo4j.NoAuth()
	if cfg.Username != "" {
		auth = neo4j.BasicAuth(cfg.Username, cfg.Password, "")
	}

	driver, err := neo4j.NewDriverWithContext(uri, auth)
	if err != nil {
		return nil, fmt.Errorf("failed to create graph driver: %w", err)
	}

	return &Client{
		driver: driver,
		logger: logger,
	}, nil
}

// Close closes the driver connection
func (c *Client) Close(ctx context.Context) error {
	return c.driver.Close(ctx)
}

// VerifyConnectivity checks if the database is reachable
func (c *Client) VerifyConnectivity(ctx context.Context) error {
	return c.driver.VerifyConnectivity(ctx)
}

// WriteBatch runs the statements in order inside one managed write
// transaction. The driver may retry the whole transaction on transient
// failures, so statements must be idempotent (the projector's MERGEs are).
func (c *Client) WriteBatch(ctx context.Context, statements []Statement) error {
	if len(statements) == 0 {
		return nil
	}

	ctx, span := tracing.StartSpan(ctx, "graph.Client.WriteBatch")
	defer span.End()

	session := c.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode: neo4j.AccessModeWrite,
	})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		for _, stmt := range statements {
			if _, err := tx.Run(ctx, stmt.Cypher, stmt.Params); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	if err != nil {
		c.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"statements": len(statements),
		}).Error("graph write batch failed")
		return fmt.Errorf("failed to write graph batch: %w", err)
	}

	return nil
}
