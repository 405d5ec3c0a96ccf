package backend

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/ejmockler/indra-cogex-mcp/internal/catalog"
	"github.com/ejmockler/indra-cogex-mcp/internal/pool"
	"github.com/ejmockler/indra-cogex-mcp/internal/types"
)

// Neo4jConfig configures the primary graph database client.
type Neo4jConfig struct {
	// Enabled turns the primary backend on.
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// URI is the bolt endpoint, e.g. neo4j://localhost:7687. The scheme
	// controls encryption (neo4j+s, bolt+s).
	URI      string `mapstructure:"uri" yaml:"uri"`
	Username string `mapstructure:"username" yaml:"username"`
	Password string `mapstructure:"password" yaml:"password"`
	Database string `mapstructure:"database" yaml:"database"`

	// ConnectionTimeout bounds socket connects inside the driver.
	ConnectionTimeout time.Duration `mapstructure:"connection_timeout" yaml:"connection_timeout" validate:"min=0"`

	// QueryTimeout bounds a single query, both client side and as the
	// server-side transaction timeout.
	QueryTimeout time.Duration `mapstructure:"query_timeout" yaml:"query_timeout" validate:"min=0"`
}

// DefaultNeo4jConfig returns defaults for a local database.
func DefaultNeo4jConfig() Neo4jConfig {
	return Neo4jConfig{
		Enabled:           true,
		URI:               "neo4j://localhost:7687",
		Username:          "neo4j",
		Database:          "neo4j",
		ConnectionTimeout: 10 * time.Second,
		QueryTimeout:      30 * time.Second,
	}
}

// readSession is the part of neo4j.SessionWithContext the client uses.
type readSession interface {
	ExecuteRead(ctx context.Context, work neo4j.ManagedTransactionWork, configurers ...func(*neo4j.TransactionConfig)) (any, error)
	Close(ctx context.Context) error
}

// Neo4jClient is the primary backend. It runs catalog Cypher in read
// transactions over sessions checked out of a bounded pool.
type Neo4jClient struct {
	cfg    Neo4jConfig
	driver neo4j.DriverWithContext
	pool   *pool.Pool[readSession]
}

// NewNeo4jClient creates the driver and the session pool. No connection is
// made until the first query or probe.
func NewNeo4jClient(cfg Neo4jConfig, poolCfg pool.Config) (*Neo4jClient, error) {
	auth := neo4j.NoAuth()
	if cfg.Username != "" {
		auth = neo4j.BasicAuth(cfg.Username, cfg.Password, "")
	}

	driver, err := neo4j.NewDriverWithContext(cfg.URI, auth, func(c *neo4j.Config) {
		// One extra bolt connection so health probes never wait behind queries.
		c.MaxConnectionPoolSize = poolCfg.MaxSize + 1
		c.ConnectionAcquisitionTimeout = poolCfg.AcquireTimeout
		if cfg.ConnectionTimeout > 0 {
			c.SocketConnectTimeout = cfg.ConnectionTimeout
		}
		if poolCfg.MaxLifetime > 0 {
			c.MaxConnectionLifetime = poolCfg.MaxLifetime
		}
		// Retries belong to the adapter's retry policy, not the driver.
		c.MaxTransactionRetryTime = 0
		c.UserAgent = "cogex-adapter"
	})
	if err != nil {
		return nil, types.NewConfigError(types.CONFIG_VALIDATION_FAILED,
			fmt.Sprintf("invalid neo4j configuration for %s", cfg.URI), err)
	}

	c := newNeo4jClient(cfg, driver, poolCfg, nil)
	return c, nil
}

// newNeo4jClient wires the pool. A nil factory opens driver sessions.
func newNeo4jClient(cfg Neo4jConfig, driver neo4j.DriverWithContext, poolCfg pool.Config, factory pool.Factory[readSession]) *Neo4jClient {
	c := &Neo4jClient{cfg: cfg, driver: driver}
	if factory == nil {
		factory = pool.FactoryFunc[readSession](c.openSession)
	}
	c.pool = pool.New[readSession](poolCfg, factory)
	return c
}

func (c *Neo4jClient) openSession(ctx context.Context) (readSession, error) {
	return c.driver.NewSession(ctx, neo4j.SessionConfig{
		DatabaseName: c.cfg.Database,
		AccessMode:   neo4j.AccessModeRead,
	}), nil
}

// Identity implements Client.
func (c *Neo4jClient) Identity() types.Backend {
	return types.BackendPrimary
}

// Execute implements Client. The session goes back to the pool after a
// success or a domain error and is discarded after any other failure.
func (c *Neo4jClient) Execute(ctx context.Context, q catalog.Query, params map[string]any) ([]Record, error) {
	if c.cfg.QueryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.QueryTimeout)
		defer cancel()
	}

	conn, err := c.pool.Acquire(ctx, 0)
	if err != nil {
		return nil, withBackend(err, types.BackendPrimary)
	}

	var txOpts []func(*neo4j.TransactionConfig)
	if c.cfg.QueryTimeout > 0 {
		txOpts = append(txOpts, neo4j.WithTxTimeout(c.cfg.QueryTimeout))
	}

	out, err := conn.Session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, q.Cypher, params)
		if err != nil {
			return nil, err
		}
		records, err := result.Collect(ctx)
		if err != nil {
			return nil, err
		}
		return convertRecords(records), nil
	}, txOpts...)

	if err != nil {
		cerr := classifyNeo4j(err)
		if types.IsDomain(cerr) {
			c.pool.Release(conn)
		} else {
			c.pool.Discard(conn)
		}
		return nil, cerr
	}

	c.pool.Release(conn)
	return out.([]Record), nil
}

// Probe implements Client using the driver's connectivity check, which uses
// a driver connection rather than a pooled session.
func (c *Neo4jClient) Probe(ctx context.Context) error {
	return classifyNeo4j(c.driver.VerifyConnectivity(ctx))
}

// PoolStats reports session pool utilization.
func (c *Neo4jClient) PoolStats() pool.Stats {
	return c.pool.Stats()
}

// Close drains the session pool and closes the driver.
func (c *Neo4jClient) Close(ctx context.Context) error {
	perr := c.pool.Close(ctx)
	if err := c.driver.Close(ctx); err != nil {
		return fmt.Errorf("failed to close neo4j driver: %w", err)
	}
	return perr
}
