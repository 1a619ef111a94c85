// Package database implements the game store on PostgreSQL with pgx.
// Each operation runs in one transaction holding a per-game advisory lock,
// so operations on the same game serialize while distinct games proceed in
// parallel.
package database

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Justyxx-14/backend-sub000/internal/models"
	"github.com/Justyxx-14/backend-sub000/internal/store"
)

// Schema creates the tables the store needs. Applied at startup.
const Schema = `
CREATE TABLE IF NOT EXISTS players (
	id      UUID PRIMARY KEY,
	game_id UUID NOT NULL,
	name    TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS players_game_idx ON players (game_id);

CREATE TABLE IF NOT EXISTS cards (
	id             UUID PRIMARY KEY,
	game_id        UUID NOT NULL,
	kind           TEXT NOT NULL,
	code           TEXT NOT NULL,
	name           TEXT NOT NULL,
	description    TEXT NOT NULL DEFAULT '',
	effect         SMALLINT NOT NULL DEFAULT 0,
	zone           TEXT NOT NULL,
	holder_id      UUID,
	sequence_index INT NOT NULL DEFAULT -1
);
CREATE INDEX IF NOT EXISTS cards_game_zone_idx ON cards (game_id, zone);
CREATE INDEX IF NOT EXISTS cards_holder_idx ON cards (game_id, holder_id);

CREATE TABLE IF NOT EXISTS secrets (
	id          UUID PRIMARY KEY,
	game_id     UUID NOT NULL,
	name        TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	role        TEXT NOT NULL,
	holder_id   UUID NOT NULL,
	revealed    BOOLEAN NOT NULL DEFAULT FALSE
);
CREATE INDEX IF NOT EXISTS secrets_game_idx ON secrets (game_id);

CREATE TABLE IF NOT EXISTS sets (
	id       UUID PRIMARY KEY,
	game_id  UUID NOT NULL,
	owner_id UUID NOT NULL,
	set_type TEXT NOT NULL,
	card_ids JSONB NOT NULL DEFAULT '[]',
	resolved BOOLEAN NOT NULL DEFAULT FALSE
);
CREATE INDEX IF NOT EXISTS sets_game_idx ON sets (game_id);

CREATE TABLE IF NOT EXISTS turn_states (
	game_id                   UUID PRIMARY KEY,
	phase                     TEXT NOT NULL,
	current_player_id         UUID NOT NULL,
	target_player_id          UUID,
	current_event_card_id     UUID,
	passing_direction         TEXT NOT NULL DEFAULT '',
	vote_map                  JSONB,
	pending_devious           JSONB NOT NULL DEFAULT '[]',
	cancel_flag               BOOLEAN NOT NULL DEFAULT FALSE,
	last_observed_cancel_flag BOOLEAN NOT NULL DEFAULT FALSE,
	ended                     BOOLEAN NOT NULL DEFAULT FALSE
);
`

// Postgres is the production store.Store.
type Postgres struct {
	pool *pgxpool.Pool
}

// New wraps an established connection pool.
func New(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// Connect dials the database and applies the schema.
func Connect(ctx context.Context, url string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	if _, err := pool.Exec(ctx, Schema); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

func (p *Postgres) run(ctx context.Context, gameID uuid.UUID, readOnly bool, fn func(tx store.Tx) error) error {
	opts := pgx.TxOptions{}
	if readOnly {
		opts.AccessMode = pgx.ReadOnly
	}
	tx, err := p.pool.BeginTx(ctx, opts)
	if err != nil {
		return &store.StorageError{Op: "begin", Err: err}
	}
	defer tx.Rollback(ctx)

	if !readOnly {
		// Serializes concurrent operations on the same game for the span
		// of this transaction.
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1::text, 0))`, gameID); err != nil {
			return &store.StorageError{Op: "lock", Err: err}
		}
	}
	if err := fn(&pgTx{ctx: ctx, tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return &store.StorageError{Op: "commit", Err: err}
	}
	return nil
}

// Update implements store.Store.
func (p *Postgres) Update(ctx context.Context, gameID uuid.UUID, fn func(tx store.Tx) error) error {
	return p.run(ctx, gameID, false, fn)
}

// View implements store.Store.
func (p *Postgres) View(ctx context.Context, gameID uuid.UUID, fn func(tx store.Tx) error) error {
	return p.run(ctx, gameID, true, fn)
}

type pgTx struct {
	ctx context.Context
	tx  pgx.Tx
}

// nullable maps uuid.Nil to SQL NULL.
func nullable(id uuid.UUID) any {
	if id == uuid.Nil {
		return nil
	}
	return id
}

func fromPtr(p *uuid.UUID) uuid.UUID {
	if p == nil {
		return uuid.Nil
	}
	return *p
}

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &store.StorageError{Op: op, Err: err}
}

const cardColumns = `id, game_id, kind, code, name, description, effect, zone, holder_id, sequence_index`

func scanCard(row pgx.Row) (*models.Card, error) {
	var c models.Card
	var holder *uuid.UUID
	err := row.Scan(&c.ID, &c.GameID, &c.Kind, &c.Code, &c.Name, &c.Description, &c.Effect, &c.Zone, &holder, &c.SequenceIndex)
	if err != nil {
		return nil, err
	}
	c.HolderID = fromPtr(holder)
	return &c, nil
}

func (t *pgTx) queryCards(query string, args ...any) ([]*models.Card, error) {
	rows, err := t.tx.Query(t.ctx, query, args...)
	if err != nil {
		return nil, wrap("query cards", err)
	}
	defer rows.Close()
	var out []*models.Card
	for rows.Next() {
		c, err := scanCard(rows)
		if err != nil {
			return nil, wrap("scan card", err)
		}
		out = append(out, c)
	}
	return out, wrap("query cards", rows.Err())
}

func (t *pgTx) CreateCard(c *models.Card) error {
	_, err := t.tx.Exec(t.ctx,
		`INSERT INTO cards (`+cardColumns+`) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		c.ID, c.GameID, c.Kind, c.Code, c.Name, c.Description, c.Effect, c.Zone, nullable(c.HolderID), c.SequenceIndex)
	return wrap("insert card", err)
}

func (t *pgTx) Card(id uuid.UUID) (*models.Card, error) {
	c, err := scanCard(t.tx.QueryRow(t.ctx, `SELECT `+cardColumns+` FROM cards WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, wrap("select card", err)
	}
	return c, nil
}

func (t *pgTx) CardsByGame(gameID uuid.UUID) ([]*models.Card, error) {
	return t.queryCards(`SELECT `+cardColumns+` FROM cards WHERE game_id = $1`, gameID)
}

func (t *pgTx) CardsInZone(gameID uuid.UUID, zone models.Zone) ([]*models.Card, error) {
	return t.queryCards(`SELECT `+cardColumns+` FROM cards WHERE game_id = $1 AND zone = $2`, gameID, zone)
}

func (t *pgTx) HandCards(gameID, playerID uuid.UUID) ([]*models.Card, error) {
	return t.queryCards(
		`SELECT `+cardColumns+` FROM cards WHERE game_id = $1 AND zone = $2 AND holder_id = $3`,
		gameID, models.ZoneHand, playerID)
}

func (t *pgTx) UpdateCard(c *models.Card) error {
	tag, err := t.tx.Exec(t.ctx,
		`UPDATE cards SET zone = $2, holder_id = $3, sequence_index = $4 WHERE id = $1`,
		c.ID, c.Zone, nullable(c.HolderID), c.SequenceIndex)
	if err != nil {
		return wrap("update card", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

const secretColumns = `id, game_id, name, description, role, holder_id, revealed`

func scanSecret(row pgx.Row) (*models.Secret, error) {
	var s models.Secret
	err := row.Scan(&s.ID, &s.GameID, &s.Name, &s.Description, &s.Role, &s.HolderID, &s.Revealed)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (t *pgTx) querySecrets(query string, args ...any) ([]*models.Secret, error) {
	rows, err := t.tx.Query(t.ctx, query, args...)
	if err != nil {
		return nil, wrap("query secrets", err)
	}
	defer rows.Close()
	var out []*models.Secret
	for rows.Next() {
		s, err := scanSecret(rows)
		if err != nil {
			return nil, wrap("scan secret", err)
		}
		out = append(out, s)
	}
	return out, wrap("query secrets", rows.Err())
}

func (t *pgTx) CreateSecret(s *models.Secret) error {
	_, err := t.tx.Exec(t.ctx,
		`INSERT INTO secrets (`+secretColumns+`) VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		s.ID, s.GameID, s.Name, s.Description, s.Role, s.HolderID, s.Revealed)
	return wrap("insert secret", err)
}

func (t *pgTx) Secret(id uuid.UUID) (*models.Secret, error) {
	s, err := scanSecret(t.tx.QueryRow(t.ctx, `SELECT `+secretColumns+` FROM secrets WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, wrap("select secret", err)
	}
	return s, nil
}

func (t *pgTx) SecretsByGame(gameID uuid.UUID) ([]*models.Secret, error) {
	return t.querySecrets(`SELECT `+secretColumns+` FROM secrets WHERE game_id = $1`, gameID)
}

func (t *pgTx) SecretsHeldBy(gameID, playerID uuid.UUID) ([]*models.Secret, error) {
	return t.querySecrets(`SELECT `+secretColumns+` FROM secrets WHERE game_id = $1 AND holder_id = $2`, gameID, playerID)
}

func (t *pgTx) UpdateSecret(s *models.Secret) error {
	tag, err := t.tx.Exec(t.ctx,
		`UPDATE secrets SET holder_id = $2, revealed = $3 WHERE id = $1`,
		s.ID, s.HolderID, s.Revealed)
	if err != nil {
		return wrap("update secret", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func scanSet(row pgx.Row) (*models.Set, error) {
	var s models.Set
	var raw []byte
	err := row.Scan(&s.ID, &s.GameID, &s.OwnerID, &s.Type, &raw, &s.Resolved)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(raw, &s.CardIDs); err != nil {
		return nil, err
	}
	return &s, nil
}

func (t *pgTx) CreateSet(s *models.Set) error {
	cardIDs, err := json.Marshal(s.CardIDs)
	if err != nil {
		return wrap("encode set", err)
	}
	_, err = t.tx.Exec(t.ctx,
		`INSERT INTO sets (id, game_id, owner_id, set_type, card_ids, resolved) VALUES ($1,$2,$3,$4,$5,$6)`,
		s.ID, s.GameID, s.OwnerID, s.Type, cardIDs, s.Resolved)
	return wrap("insert set", err)
}

func (t *pgTx) Set(id uuid.UUID) (*models.Set, error) {
	s, err := scanSet(t.tx.QueryRow(t.ctx,
		`SELECT id, game_id, owner_id, set_type, card_ids, resolved FROM sets WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, wrap("select set", err)
	}
	return s, nil
}

func (t *pgTx) SetsByGame(gameID uuid.UUID) ([]*models.Set, error) {
	rows, err := t.tx.Query(t.ctx,
		`SELECT id, game_id, owner_id, set_type, card_ids, resolved FROM sets WHERE game_id = $1`, gameID)
	if err != nil {
		return nil, wrap("query sets", err)
	}
	defer rows.Close()
	var out []*models.Set
	for rows.Next() {
		s, err := scanSet(rows)
		if err != nil {
			return nil, wrap("scan set", err)
		}
		out = append(out, s)
	}
	return out, wrap("query sets", rows.Err())
}

func (t *pgTx) UpdateSet(s *models.Set) error {
	cardIDs, err := json.Marshal(s.CardIDs)
	if err != nil {
		return wrap("encode set", err)
	}
	tag, err := t.tx.Exec(t.ctx,
		`UPDATE sets SET owner_id = $2, card_ids = $3, resolved = $4 WHERE id = $1`,
		s.ID, s.OwnerID, cardIDs, s.Resolved)
	if err != nil {
		return wrap("update set", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (t *pgTx) CreatePlayer(p *models.Player) error {
	_, err := t.tx.Exec(t.ctx,
		`INSERT INTO players (id, game_id, name) VALUES ($1,$2,$3)`,
		p.ID, p.GameID, p.Name)
	return wrap("insert player", err)
}

func (t *pgTx) Player(id uuid.UUID) (*models.Player, error) {
	var p models.Player
	err := t.tx.QueryRow(t.ctx, `SELECT id, game_id, name FROM players WHERE id = $1`, id).
		Scan(&p.ID, &p.GameID, &p.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, wrap("select player", err)
	}
	return &p, nil
}

func (t *pgTx) PlayersByGame(gameID uuid.UUID) ([]*models.Player, error) {
	rows, err := t.tx.Query(t.ctx,
		`SELECT id, game_id, name FROM players WHERE game_id = $1 ORDER BY id::text`, gameID)
	if err != nil {
		return nil, wrap("query players", err)
	}
	defer rows.Close()
	var out []*models.Player
	for rows.Next() {
		var p models.Player
		if err := rows.Scan(&p.ID, &p.GameID, &p.Name); err != nil {
			return nil, wrap("scan player", err)
		}
		out = append(out, &p)
	}
	return out, wrap("query players", rows.Err())
}

const turnColumns = `game_id, phase, current_player_id, target_player_id, current_event_card_id,
	passing_direction, vote_map, pending_devious, cancel_flag, last_observed_cancel_flag, ended`

func (t *pgTx) CreateTurnState(ts *models.TurnState) error {
	voteMap, pendingDevious, err := encodeTurnJSON(ts)
	if err != nil {
		return wrap("encode turn state", err)
	}
	_, err = t.tx.Exec(t.ctx,
		`INSERT INTO turn_states (`+turnColumns+`) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		ts.GameID, ts.Phase, ts.CurrentPlayerID, nullable(ts.TargetPlayerID), nullable(ts.CurrentEventCardID),
		ts.PassingDirection, voteMap, pendingDevious, ts.CancelFlag, ts.LastObservedCancelFlag, ts.Ended)
	return wrap("insert turn state", err)
}

func (t *pgTx) TurnState(gameID uuid.UUID) (*models.TurnState, error) {
	var ts models.TurnState
	var target, eventCard *uuid.UUID
	var voteMap, pendingDevious []byte
	err := t.tx.QueryRow(t.ctx,
		`SELECT `+turnColumns+` FROM turn_states WHERE game_id = $1`, gameID).
		Scan(&ts.GameID, &ts.Phase, &ts.CurrentPlayerID, &target, &eventCard,
			&ts.PassingDirection, &voteMap, &pendingDevious, &ts.CancelFlag, &ts.LastObservedCancelFlag, &ts.Ended)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, wrap("select turn state", err)
	}
	ts.TargetPlayerID = fromPtr(target)
	ts.CurrentEventCardID = fromPtr(eventCard)
	if voteMap != nil {
		if err := json.Unmarshal(voteMap, &ts.VoteMap); err != nil {
			return nil, wrap("decode vote map", err)
		}
	}
	if err := json.Unmarshal(pendingDevious, &ts.PendingDevious); err != nil {
		return nil, wrap("decode pending devious", err)
	}
	return &ts, nil
}

func (t *pgTx) UpdateTurnState(ts *models.TurnState) error {
	voteMap, pendingDevious, err := encodeTurnJSON(ts)
	if err != nil {
		return wrap("encode turn state", err)
	}
	tag, err := t.tx.Exec(t.ctx,
		`UPDATE turn_states SET phase = $2, current_player_id = $3, target_player_id = $4,
			current_event_card_id = $5, passing_direction = $6, vote_map = $7,
			pending_devious = $8, cancel_flag = $9, last_observed_cancel_flag = $10, ended = $11
		WHERE game_id = $1`,
		ts.GameID, ts.Phase, ts.CurrentPlayerID, nullable(ts.TargetPlayerID), nullable(ts.CurrentEventCardID),
		ts.PassingDirection, voteMap, pendingDevious, ts.CancelFlag, ts.LastObservedCancelFlag, ts.Ended)
	if err != nil {
		return wrap("update turn state", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func encodeTurnJSON(ts *models.TurnState) (voteMap, pendingDevious []byte, err error) {
	if ts.VoteMap != nil {
		voteMap, err = json.Marshal(ts.VoteMap)
		if err != nil {
			return nil, nil, err
		}
	}
	ids := ts.PendingDevious
	if ids == nil {
		ids = []uuid.UUID{}
	}
	pendingDevious, err = json.Marshal(ids)
	if err != nil {
		return nil, nil, err
	}
	return voteMap, pendingDevious, nil
}
