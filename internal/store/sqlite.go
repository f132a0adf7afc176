package store

import (
	"context"
	"database/sql"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/h2-custody/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	// One connection keeps the pragmas in effect and serializes writers.
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS process_steps (
	id             TEXT PRIMARY KEY,
	type           TEXT NOT NULL,
	started_at     DATETIME NOT NULL,
	ended_at       DATETIME NOT NULL,
	executed_by_id TEXT NOT NULL DEFAULT '',
	recorded_by_id TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS batches (
	id                       TEXT PRIMARY KEY,
	process_step_id          TEXT NOT NULL UNIQUE REFERENCES process_steps(id),
	amount                   TEXT NOT NULL,
	type                     TEXT NOT NULL,
	color                    TEXT NOT NULL DEFAULT '',
	rfnbo_type               TEXT NOT NULL DEFAULT '',
	active                   INTEGER NOT NULL DEFAULT 1,
	owner_id                 TEXT NOT NULL DEFAULT '',
	hydrogen_storage_unit_id TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS batch_links (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	predecessor_id TEXT NOT NULL REFERENCES batches(id),
	successor_id   TEXT NOT NULL REFERENCES batches(id),
	UNIQUE (predecessor_id, successor_id)
);

CREATE TABLE IF NOT EXISTS power_production_units (
	id                         TEXT PRIMARY KEY,
	name                       TEXT NOT NULL DEFAULT '',
	bidding_zone               TEXT NOT NULL DEFAULT '',
	commissioned_on            DATETIME NOT NULL,
	financial_support_received INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS hydrogen_production_units (
	id              TEXT PRIMARY KEY,
	name            TEXT NOT NULL DEFAULT '',
	bidding_zone    TEXT NOT NULL DEFAULT '',
	commissioned_on DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_batches_inventory ON batches(hydrogen_storage_unit_id, type, active);
CREATE INDEX IF NOT EXISTS idx_batch_links_successor ON batch_links(successor_id);
`

const sqliteStepColumns = `s.id, s.type, s.started_at, s.ended_at, s.executed_by_id, s.recorded_by_id,
	b.id, b.amount, b.type, b.color, b.rfnbo_type, b.active, b.owner_id, b.hydrogen_storage_unit_id`

// Ping checks that the database file is reachable.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ReadUnique implements ProcessStepReader.
func (s *SQLiteStore) ReadUnique(ctx context.Context, id string) (*model.ProcessStep, error) {
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
func (s *SQLiteStore) ReadMany(ctx context.Context, ids []string) ([]model.ProcessStep, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sqliteStepColumns+`
		 FROM process_steps s JOIN batches b ON b.process_step_id = s.id
		 WHERE s.id IN (`+placeholders(len(ids))+`)`,
		stringArgs(ids)...,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: read steps")
	}
	set := newStepSet()
	for rows.Next() {
		step, err := scanStep(rows)
		if err != nil {
			rows.Close()
			return nil, eris.Wrap(err, "sqlite: scan step")
		}
		set.add(step)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: iterate steps")
	}
	if len(set.byID) == 0 {
		return nil, nil
	}

	batchIDs := set.batchIDs()
	in := placeholders(len(batchIDs))
	if err := s.readLinks(ctx,
		`SELECT l.successor_id, p.id, p.process_step_id, p.amount
		 FROM batch_links l JOIN batches p ON p.id = l.predecessor_id
		 WHERE l.successor_id IN (`+in+`) ORDER BY l.id`,
		batchIDs, set.addPredecessor,
	); err != nil {
		return nil, eris.Wrap(err, "sqlite: read predecessors")
	}
	if err := s.readLinks(ctx,
		`SELECT l.predecessor_id, c.id, c.process_step_id, c.amount
		 FROM batch_links l JOIN batches c ON c.id = l.successor_id
		 WHERE l.predecessor_id IN (`+in+`) ORDER BY l.id`,
		batchIDs, set.addSuccessor,
	); err != nil {
		return nil, eris.Wrap(err, "sqlite: read successors")
	}
	return set.ordered(ids), nil
}

func (s *SQLiteStore) readLinks(ctx context.Context, query string, batchIDs []string, attach func(string, model.BatchLink)) error {
	rows, err := s.db.QueryContext(ctx, query, stringArgs(batchIDs)...)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		anchor, link, err := scanLink(rows)
		if err != nil {
			return err
		}
		attach(anchor, link)
	}
	return rows.Err()
}

// ReadPowerUnitsByIDs implements ProductionUnitReader.
func (s *SQLiteStore) ReadPowerUnitsByIDs(ctx context.Context, ids []string) ([]model.PowerProductionUnit, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, bidding_zone, commissioned_on, financial_support_received
		 FROM power_production_units WHERE id IN (`+placeholders(len(ids))+`) ORDER BY id`,
		stringArgs(ids)...,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: read power units")
	}
	defer rows.Close()

	var out []model.PowerProductionUnit
	for rows.Next() {
		var u model.PowerProductionUnit
		if err := rows.Scan(&u.ID, &u.Name, &u.BiddingZone, &u.CommissionedOn, &u.FinancialSupportReceived); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan power unit")
		}
		u.CommissionedOn = u.CommissionedOn.UTC()
		out = append(out, u)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate power units")
}

// ReadHydrogenUnitsByIDs implements ProductionUnitReader.
func (s *SQLiteStore) ReadHydrogenUnitsByIDs(ctx context.Context, ids []string) ([]model.HydrogenProductionUnit, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, bidding_zone, commissioned_on
		 FROM hydrogen_production_units WHERE id IN (`+placeholders(len(ids))+`) ORDER BY id`,
		stringArgs(ids)...,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: read hydrogen units")
	}
	defer rows.Close()

	var out []model.HydrogenProductionUnit
	for rows.Next() {
		var u model.HydrogenProductionUnit
		if err := rows.Scan(&u.ID, &u.Name, &u.BiddingZone, &u.CommissionedOn); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan hydrogen unit")
		}
		u.CommissionedOn = u.CommissionedOn.UTC()
		out = append(out, u)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate hydrogen units")
}

// ListAvailableHydrogenSteps implements InventoryReader.
func (s *SQLiteStore) ListAvailableHydrogenSteps(ctx context.Context, storageUnitID string) ([]model.ProcessStep, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT s.id FROM process_steps s JOIN batches b ON b.process_step_id = s.id
		 WHERE b.active = 1 AND b.type = ? AND b.hydrogen_storage_unit_id = ?
		 ORDER BY s.started_at, s.rowid`,
		string(model.BatchTypeHydrogen), storageUnitID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list inventory")
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, eris.Wrap(err, "sqlite: scan inventory")
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: iterate inventory")
	}
	return s.ReadMany(ctx, ids)
}

// ApplyBottling implements BottlingWriter.
func (s *SQLiteStore) ApplyBottling(ctx context.Context, plan model.BottlingPlan) error {
	inserts, consumed := planInserts(plan)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin bottling")
	}
	defer tx.Rollback() //nolint:errcheck

	for _, bid := range consumed {
		res, err := tx.ExecContext(ctx, `UPDATE batches SET active = 0 WHERE id = ? AND active = 1`, bid)
		if err != nil {
			return eris.Wrapf(err, "sqlite: deactivate batch %s", bid)
		}
		if n, err := res.RowsAffected(); err != nil {
			return eris.Wrap(err, "sqlite: rows affected")
		} else if n == 0 {
			return eris.Wrapf(model.ErrInsufficientStock, "sqlite: batch %s was already consumed", bid)
		}
	}
	for _, step := range inserts {
		if err := insertSQLiteStep(ctx, tx, step); err != nil {
			return err
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit bottling")
}

func insertSQLiteStep(ctx context.Context, tx *sql.Tx, step model.ProcessStep) error {
	if err := validateStep("sqlite", step); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO process_steps (id, type, started_at, ended_at, executed_by_id, recorded_by_id)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		step.ID, string(step.Type), step.StartedAt.UTC(), step.EndedAt.UTC(), step.ExecutedByID, step.RecordedByID,
	); err != nil {
		return eris.Wrapf(err, "sqlite: insert step %s", step.ID)
	}

	b := step.Batch
	color, rfnbo := batchColor(b)
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO batches (id, process_step_id, amount, type, color, rfnbo_type, active, owner_id, hydrogen_storage_unit_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, step.ID, b.Amount.String(), string(b.Type), color, rfnbo, b.Active, b.OwnerID, b.HydrogenStorageUnitID,
	); err != nil {
		return eris.Wrapf(err, "sqlite: insert batch %s", b.ID)
	}

	for _, p := range b.Predecessors {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO batch_links (predecessor_id, successor_id) VALUES (?, ?)`,
			p.BatchID, b.ID,
		); err != nil {
			return eris.Wrapf(err, "sqlite: link %s -> %s", p.BatchID, b.ID)
		}
	}
	return nil
}

// InsertStep implements Seeder.
func (s *SQLiteStore) InsertStep(ctx context.Context, step model.ProcessStep) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin insert step")
	}
	defer tx.Rollback() //nolint:errcheck

	if err := insertSQLiteStep(ctx, tx, step); err != nil {
		return err
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit insert step")
}

// InsertPowerUnit implements Seeder. Existing units are overwritten.
func (s *SQLiteStore) InsertPowerUnit(ctx context.Context, u model.PowerProductionUnit) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO power_production_units (id, name, bidding_zone, commissioned_on, financial_support_received)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
		   name = excluded.name, bidding_zone = excluded.bidding_zone,
		   commissioned_on = excluded.commissioned_on,
		   financial_support_received = excluded.financial_support_received`,
		u.ID, u.Name, u.BiddingZone, u.CommissionedOn.UTC(), u.FinancialSupportReceived,
	)
	return eris.Wrapf(err, "sqlite: upsert power unit %s", u.ID)
}

// InsertHydrogenUnit implements Seeder. Existing units are overwritten.
func (s *SQLiteStore) InsertHydrogenUnit(ctx context.Context, u model.HydrogenProductionUnit) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO hydrogen_production_units (id, name, bidding_zone, commissioned_on)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
		   name = excluded.name, bidding_zone = excluded.bidding_zone,
		   commissioned_on = excluded.commissioned_on`,
		u.ID, u.Name, u.BiddingZone, u.CommissionedOn.UTC(),
	)
	return eris.Wrapf(err, "sqlite: upsert hydrogen unit %s", u.ID)
}
