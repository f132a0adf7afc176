package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/h2-custody/internal/db"
	"github.com/sells-group/h2-custody/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

var _ Store = (*PostgresStore)(nil)

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

const pgStepColumns = `s.id, s.type, s.started_at, s.ended_at, s.executed_by_id, s.recorded_by_id,
	b.id, b.amount::text, b.type, b.color, b.rfnbo_type, b.active, b.owner_id, b.hydrogen_storage_unit_id`

// preparedStatements lists queries to prepare on each new connection for
// the lineage reads every graph walk performs.
var preparedStatements = map[string]string{
	"read_steps": `SELECT ` + pgStepColumns + `
		FROM process_steps s JOIN batches b ON b.process_step_id = s.id
		WHERE s.id = ANY($1)`,
	"read_predecessors": `SELECT l.successor_id, p.id, p.process_step_id, p.amount::text
		FROM batch_links l JOIN batches p ON p.id = l.predecessor_id
		WHERE l.successor_id = ANY($1) ORDER BY l.id`,
	"read_successors": `SELECT l.predecessor_id, c.id, c.process_step_id, c.amount::text
		FROM batch_links l JOIN batches c ON c.id = l.successor_id
		WHERE l.predecessor_id = ANY($1) ORDER BY l.id`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS process_steps (
	id             TEXT PRIMARY KEY,
	seq            BIGSERIAL,
	type           TEXT NOT NULL,
	started_at     TIMESTAMPTZ NOT NULL,
	ended_at       TIMESTAMPTZ NOT NULL,
	executed_by_id TEXT NOT NULL DEFAULT '',
	recorded_by_id TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS batches (
	id                       TEXT PRIMARY KEY,
	process_step_id          TEXT NOT NULL UNIQUE REFERENCES process_steps(id),
	amount                   NUMERIC NOT NULL CHECK (amount >= 0),
	type                     TEXT NOT NULL,
	color                    TEXT NOT NULL DEFAULT '',
	rfnbo_type               TEXT NOT NULL DEFAULT '',
	active                   BOOLEAN NOT NULL DEFAULT true,
	owner_id                 TEXT NOT NULL DEFAULT '',
	hydrogen_storage_unit_id TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS batch_links (
	id             BIGSERIAL PRIMARY KEY,
	predecessor_id TEXT NOT NULL REFERENCES batches(id),
	successor_id   TEXT NOT NULL REFERENCES batches(id),
	UNIQUE (predecessor_id, successor_id)
);

CREATE TABLE IF NOT EXISTS power_production_units (
	id                         TEXT PRIMARY KEY,
	name                       TEXT NOT NULL DEFAULT '',
	bidding_zone               TEXT NOT NULL DEFAULT '',
	commissioned_on            TIMESTAMPTZ NOT NULL,
	financial_support_received BOOLEAN NOT NULL DEFAULT false
);

CREATE TABLE IF NOT EXISTS hydrogen_production_units (
	id              TEXT PRIMARY KEY,
	name            TEXT NOT NULL DEFAULT '',
	bidding_zone    TEXT NOT NULL DEFAULT '',
	commissioned_on TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_batches_inventory ON batches(hydrogen_storage_unit_id, type) WHERE active;
CREATE INDEX IF NOT EXISTS idx_batch_links_successor ON batch_links(successor_id);
`

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

// Migrate creates the lineage and unit tables.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// ReadUnique implements ProcessStepReader.
func (s *PostgresStore) ReadUnique(ctx context.Context, id string) (*model.ProcessStep, error) {
	steps, err := s.ReadMany(ctx, []string{id})
	if err != nil {
		return nil, err
	}
	if len(steps) == 0 {
		return nil, eris.Wrapf(model.ErrStepNotFound, "invalid process step %s", id)
	}
	return &steps[0], nil
}

// ReadMany implements ProcessStepReader.
func (s *PostgresStore) ReadMany(ctx context.Context, ids []string) ([]model.ProcessStep, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	rows, err := s.pool.Query(ctx, preparedStatements["read_steps"], ids)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: read steps")
	}
	set := newStepSet()
	for rows.Next() {
		step, err := scanStep(rows)
		if err != nil {
			rows.Close()
			return nil, eris.Wrap(err, "postgres: scan step")
		}
		set.add(step)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: iterate steps")
	}
	if len(set.byID) == 0 {
		return nil, nil
	}

	batchIDs := set.batchIDs()
	if err := s.readLinks(ctx, "read_predecessors", batchIDs, set.addPredecessor); err != nil {
		return nil, err
	}
	if err := s.readLinks(ctx, "read_successors", batchIDs, set.addSuccessor); err != nil {
		return nil, err
	}
	return set.ordered(ids), nil
}

func (s *PostgresStore) readLinks(ctx context.Context, stmt string, batchIDs []string, attach func(string, model.BatchLink)) error {
	rows, err := s.pool.Query(ctx, preparedStatements[stmt], batchIDs)
	if err != nil {
		return eris.Wrapf(err, "postgres: %s", stmt)
	}
	defer rows.Close()

	for rows.Next() {
		anchor, link, err := scanLink(rows)
		if err != nil {
			return eris.Wrapf(err, "postgres: scan %s", stmt)
		}
		attach(anchor, link)
	}
	return eris.Wrapf(rows.Err(), "postgres: iterate %s", stmt)
}

// ReadPowerUnitsByIDs implements ProductionUnitReader.
func (s *PostgresStore) ReadPowerUnitsByIDs(ctx context.Context, ids []string) ([]model.PowerProductionUnit, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, bidding_zone, commissioned_on, financial_support_received
		 FROM power_production_units WHERE id = ANY($1) ORDER BY id`,
		ids,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: read power units")
	}
	defer rows.Close()

	var out []model.PowerProductionUnit
	for rows.Next() {
		var u model.PowerProductionUnit
		if err := rows.Scan(&u.ID, &u.Name, &u.BiddingZone, &u.CommissionedOn, &u.FinancialSupportReceived); err != nil {
			return nil, eris.Wrap(err, "postgres: scan power unit")
		}
		u.CommissionedOn = u.CommissionedOn.UTC()
		out = append(out, u)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate power units")
}

// ReadHydrogenUnitsByIDs implements ProductionUnitReader.
func (s *PostgresStore) ReadHydrogenUnitsByIDs(ctx context.Context, ids []string) ([]model.HydrogenProductionUnit, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, bidding_zone, commissioned_on
		 FROM hydrogen_production_units WHERE id = ANY($1) ORDER BY id`,
		ids,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: read hydrogen units")
	}
	defer rows.Close()

	var out []model.HydrogenProductionUnit
	for rows.Next() {
		var u model.HydrogenProductionUnit
		if err := rows.Scan(&u.ID, &u.Name, &u.BiddingZone, &u.CommissionedOn); err != nil {
			return nil, eris.Wrap(err, "postgres: scan hydrogen unit")
		}
		u.CommissionedOn = u.CommissionedOn.UTC()
		out = append(out, u)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate hydrogen units")
}

// ListAvailableHydrogenSteps implements InventoryReader.
func (s *PostgresStore) ListAvailableHydrogenSteps(ctx context.Context, storageUnitID string) ([]model.ProcessStep, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT s.id FROM process_steps s JOIN batches b ON b.process_step_id = s.id
		 WHERE b.active AND b.type = $1 AND b.hydrogen_storage_unit_id = $2
		 ORDER BY s.started_at, s.seq`,
		string(model.BatchTypeHydrogen), storageUnitID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list inventory")
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, eris.Wrap(err, "postgres: collect inventory")
	}
	return s.ReadMany(ctx, ids)
}

// ApplyBottling implements BottlingWriter. Consumed batches are deactivated,
// new steps inserted and their links bulk-copied in one transaction.
func (s *PostgresStore) ApplyBottling(ctx context.Context, plan model.BottlingPlan) error {
	inserts, consumed := planInserts(plan)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin bottling")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if len(consumed) > 0 {
		tag, err := tx.Exec(ctx,
			`UPDATE batches SET active = false WHERE id = ANY($1) AND active`,
			consumed,
		)
		if err != nil {
			return eris.Wrap(err, "postgres: deactivate batches")
		}
		if tag.RowsAffected() != int64(len(consumed)) {
			return eris.Wrapf(model.ErrInsufficientStock,
				"postgres: %d of %d batches were already consumed", int64(len(consumed))-tag.RowsAffected(), len(consumed))
		}
	}

	var links [][]any
	for _, step := range inserts {
		l, err := insertPgStep(ctx, tx, step)
		if err != nil {
			return err
		}
		links = append(links, l...)
	}
	if _, err := db.CopyFrom(ctx, tx, "batch_links", []string{"predecessor_id", "successor_id"}, links); err != nil {
		return eris.Wrap(err, "postgres: copy bottling links")
	}

	return eris.Wrap(tx.Commit(ctx), "postgres: commit bottling")
}

// insertPgStep inserts the step and its batch and returns the batch's
// predecessor link rows.
func insertPgStep(ctx context.Context, tx pgx.Tx, step model.ProcessStep) ([][]any, error) {
	if err := validateStep("postgres", step); err != nil {
		return nil, err
	}
	if _, err := tx.Exec(ctx,
		`INSERT INTO process_steps (id, type, started_at, ended_at, executed_by_id, recorded_by_id)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		step.ID, string(step.Type), step.StartedAt.UTC(), step.EndedAt.UTC(), step.ExecutedByID, step.RecordedByID,
	); err != nil {
		return nil, eris.Wrapf(err, "postgres: insert step %s", step.ID)
	}

	b := step.Batch
	color, rfnbo := batchColor(b)
	if _, err := tx.Exec(ctx,
		`INSERT INTO batches (id, process_step_id, amount, type, color, rfnbo_type, active, owner_id, hydrogen_storage_unit_id)
		 VALUES ($1, $2, $3::text::numeric, $4, $5, $6, $7, $8, $9)`,
		b.ID, step.ID, b.Amount.String(), string(b.Type), color, rfnbo, b.Active, b.OwnerID, b.HydrogenStorageUnitID,
	); err != nil {
		return nil, eris.Wrapf(err, "postgres: insert batch %s", b.ID)
	}

	links := make([][]any, 0, len(b.Predecessors))
	for _, p := range b.Predecessors {
		links = append(links, []any{p.BatchID, b.ID})
	}
	return links, nil
}

// InsertStep implements Seeder.
func (s *PostgresStore) InsertStep(ctx context.Context, step model.ProcessStep) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin insert step")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	links, err := insertPgStep(ctx, tx, step)
	if err != nil {
		return err
	}
	if _, err := db.CopyFrom(ctx, tx, "batch_links", []string{"predecessor_id", "successor_id"}, links); err != nil {
		return eris.Wrapf(err, "postgres: copy links of %s", step.ID)
	}
	return eris.Wrap(tx.Commit(ctx), "postgres: commit insert step")
}

// InsertPowerUnit implements Seeder. Existing units are overwritten.
func (s *PostgresStore) InsertPowerUnit(ctx context.Context, u model.PowerProductionUnit) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO power_production_units (id, name, bidding_zone, commissioned_on, financial_support_received)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (id) DO UPDATE SET
		   name = $2, bidding_zone = $3, commissioned_on = $4, financial_support_received = $5`,
		u.ID, u.Name, u.BiddingZone, u.CommissionedOn.UTC(), u.FinancialSupportReceived,
	)
	return eris.Wrapf(err, "postgres: upsert power unit %s", u.ID)
}

// InsertHydrogenUnit implements Seeder. Existing units are overwritten.
func (s *PostgresStore) InsertHydrogenUnit(ctx context.Context, u model.HydrogenProductionUnit) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO hydrogen_production_units (id, name, bidding_zone, commissioned_on)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (id) DO UPDATE SET
		   name = $2, bidding_zone = $3, commissioned_on = $4`,
		u.ID, u.Name, u.BiddingZone, u.CommissionedOn.UTC(),
	)
	return eris.Wrapf(err, "postgres: upsert hydrogen unit %s", u.ID)
}
