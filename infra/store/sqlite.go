// Package store provides the SQLite-backed implementation of the core
// persistence contracts.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/voltmesh/fex/core/model"
	corestore "github.com/voltmesh/fex/core/store"
)

// SQLiteStore persists offerings, offers and offer events to a SQLite
// database. Records are stored as JSON with the columns needed for lookups.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates the database at path and ensures schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	schema := `
    CREATE TABLE IF NOT EXISTS offerings (
        id TEXT PRIMARY KEY,
        created INTEGER,
        record TEXT
    );
    CREATE TABLE IF NOT EXISTS offers (
        id TEXT PRIMARY KEY,
        offering_id TEXT,
        facility_uid TEXT,
        state TEXT,
        record TEXT
    );
    CREATE INDEX IF NOT EXISTS idx_offers_offering ON offers(offering_id);
    CREATE TABLE IF NOT EXISTS offer_events (
        id TEXT PRIMARY KEY,
        exchange_uid TEXT,
        state TEXT,
        record TEXT
    );`
	if _, err := db.Exec(schema); err != nil {
		if cerr := db.Close(); cerr != nil {
			return nil, fmt.Errorf("close db: %v (schema err: %w)", cerr, err)
		}
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

// SaveOffering stores the offering.
func (s *SQLiteStore) SaveOffering(ctx context.Context, off model.Offering) error {
	b, err := json.Marshal(off)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO offerings (id, created, record) VALUES (?, ?, ?)`,
		off.ID.String(), off.Created.Unix(), string(b))
	return err
}

// GetOffering returns the offering or corestore.ErrNotFound.
func (s *SQLiteStore) GetOffering(ctx context.Context, id uuid.UUID) (model.Offering, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT record FROM offerings WHERE id = ?`, id.String()).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Offering{}, corestore.ErrNotFound
	}
	if err != nil {
		return model.Offering{}, err
	}
	var off model.Offering
	if err := json.Unmarshal([]byte(data), &off); err != nil {
		return model.Offering{}, fmt.Errorf("unmarshal offering: %w", err)
	}
	return off, nil
}

// SaveOffers stores the offers of one fan-out in a single transaction.
func (s *SQLiteStore) SaveOffers(ctx context.Context, offers []model.Offer) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	for _, o := range offers {
		b, err := json.Marshal(o)
		if err != nil {
			_ = tx.Rollback()
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO offers (id, offering_id, facility_uid, state, record) VALUES (?, ?, ?, ?, ?)`,
			o.ID.String(), o.OfferingID.String(), o.FacilityUID, o.State.String(), string(b)); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// UpdateOffer rewrites the offer record.
func (s *SQLiteStore) UpdateOffer(ctx context.Context, offer model.Offer) error {
	b, err := json.Marshal(offer)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE offers SET state = ?, record = ? WHERE id = ?`,
		offer.State.String(), string(b), offer.ID.String())
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return corestore.ErrNotFound
	}
	return nil
}

// GetOffer returns the offer or corestore.ErrNotFound.
func (s *SQLiteStore) GetOffer(ctx context.Context, id uuid.UUID) (model.Offer, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT record FROM offers WHERE id = ?`, id.String()).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Offer{}, corestore.ErrNotFound
	}
	if err != nil {
		return model.Offer{}, err
	}
	var o model.Offer
	if err := json.Unmarshal([]byte(data), &o); err != nil {
		return model.Offer{}, fmt.Errorf("unmarshal offer: %w", err)
	}
	return o, nil
}

// ListOffers returns every offer of the offering.
func (s *SQLiteStore) ListOffers(ctx context.Context, offeringID uuid.UUID) ([]model.Offer, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT record FROM offers WHERE offering_id = ? ORDER BY facility_uid`, offeringID.String())
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var res []model.Offer
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var o model.Offer
		if err := json.Unmarshal([]byte(data), &o); err != nil {
			return nil, fmt.Errorf("unmarshal offer: %w", err)
		}
		res = append(res, o)
	}
	return res, rows.Err()
}

// SaveEvent stores the offer event.
func (s *SQLiteStore) SaveEvent(ctx context.Context, ev model.OfferEvent) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO offer_events (id, exchange_uid, state, record) VALUES (?, ?, ?, ?)`,
		ev.ID.String(), ev.ExchangeUID, ev.State.String(), string(b))
	return err
}

// UpdateEvent rewrites the offer event record.
func (s *SQLiteStore) UpdateEvent(ctx context.Context, ev model.OfferEvent) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE offer_events SET state = ?, record = ? WHERE id = ?`,
		ev.State.String(), string(b), ev.ID.String())
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return corestore.ErrNotFound
	}
	return nil
}

// GetEvent returns the offer event or corestore.ErrNotFound.
func (s *SQLiteStore) GetEvent(ctx context.Context, id uuid.UUID) (model.OfferEvent, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT record FROM offer_events WHERE id = ?`, id.String()).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return model.OfferEvent{}, corestore.ErrNotFound
	}
	if err != nil {
		return model.OfferEvent{}, err
	}
	var ev model.OfferEvent
	if err := json.Unmarshal([]byte(data), &ev); err != nil {
		return model.OfferEvent{}, fmt.Errorf("unmarshal offer event: %w", err)
	}
	return ev, nil
}

// Close closes the database handle.
func (s *SQLiteStore) Close() error { return s.db.Close() }
