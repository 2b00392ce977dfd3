package storage

import (
	"database/sql"
	"time"

	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/example/tow-dispatch/internal/models"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	// quick ping
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

func (p *PostgresStore) DB() *sql.DB { return p.db }

func (p *PostgresStore) Close() error { return p.db.Close() }

func (p *PostgresStore) SaveTrip(t *models.Trip) error {
	_, err := p.db.Exec(`INSERT INTO trips(id, offer_id, pickup_lat, pickup_lon, dropoff_lat, dropoff_lon, pickup_address, dropoff_address, final_price, negotiated, status, accepted_at, completed_at, updated_at) VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
		t.ID, t.OfferID, t.Pickup.Lat, t.Pickup.Lon, t.Dropoff.Lat, t.Dropoff.Lon, t.PickupAddress, t.DropoffAddress,
		t.FinalPrice.String(), t.Negotiated, string(t.Status), t.AcceptedAt, t.CompletedAt, t.UpdatedAt)
	return err
}

func (p *PostgresStore) UpdateTrip(t *models.Trip) error {
	res, err := p.db.Exec(`UPDATE trips SET status=$1, completed_at=$2, updated_at=$3 WHERE id=$4`, string(t.Status), t.CompletedAt, time.Now(), t.ID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrTripNotFound
	}
	return nil
}

func (p *PostgresStore) ListTrips() ([]models.Trip, error) {
	rows, err := p.db.Query(`SELECT id, offer_id, pickup_lat, pickup_lon, dropoff_lat, dropoff_lon, pickup_address, dropoff_address, final_price, negotiated, status, accepted_at, completed_at, updated_at FROM trips ORDER BY accepted_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.Trip
	for rows.Next() {
		var (
			t         models.Trip
			price     string
			status    string
			completed sql.NullTime
		)
		if err := rows.Scan(&t.ID, &t.OfferID, &t.Pickup.Lat, &t.Pickup.Lon, &t.Dropoff.Lat, &t.Dropoff.Lon,
			&t.PickupAddress, &t.DropoffAddress, &price, &t.Negotiated, &status, &t.AcceptedAt, &completed, &t.UpdatedAt); err != nil {
			return nil, err
		}
		if t.FinalPrice, err = decimal.NewFromString(price); err != nil {
			return nil, err
		}
		t.Status = models.TripStatus(status)
		if completed.Valid {
			c := completed.Time
			t.CompletedAt = &c
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
