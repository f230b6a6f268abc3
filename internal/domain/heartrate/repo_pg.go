package heartrate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/memerye/BME-547-Heart-Rate-Sentinel-Server/internal/platform/db"
)

type patientRepoPG struct {
	pool *pgxpool.Pool
}

func NewPatientRepo(pool *pgxpool.Pool) PatientRepository {
	return &patientRepoPG{pool: pool}
}

func (r *patientRepoPG) conn(ctx context.Context) querier {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const (
	upsertPatientSQL = `
		INSERT INTO patient (patient_id, attending_email, age_years)
		VALUES ($1, $2, $3)
		ON CONFLICT (patient_id) DO UPDATE
		SET attending_email = EXCLUDED.attending_email,
			age_years = EXCLUDED.age_years,
			updated_at = now()`

	lockPatientSQL = `SELECT patient_id FROM patient WHERE patient_id = $1 FOR UPDATE`

	insertReadingSQL = `
		INSERT INTO heart_rate_reading (patient_id, heart_rate, status, recorded_at)
		VALUES ($1, $2, $3, $4)`

	readingCols = `heart_rate, status, recorded_at`
)

func (r *patientRepoPG) Create(ctx context.Context, id int64, email string, ageYears float64) error {
	if _, err := r.conn(ctx).Exec(ctx, upsertPatientSQL, id, email, ageYears); err != nil {
		return fmt.Errorf("upsert patient %d: %w", id, err)
	}
	return nil
}

func (r *patientRepoPG) Exists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM patient WHERE patient_id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("patient exists %d: %w", id, err)
	}
	return exists, nil
}

func (r *patientRepoPG) GetAge(ctx context.Context, id int64) (float64, error) {
	var age float64
	err := r.conn(ctx).QueryRow(ctx, `SELECT age_years FROM patient WHERE patient_id = $1`, id).Scan(&age)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrPatientNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("patient age %d: %w", id, err)
	}
	return age, nil
}

// AppendReading locks the patient row before inserting so that concurrent
// appends for one patient are applied one at a time.
func (r *patientRepoPG) AppendReading(ctx context.Context, id int64, reading Reading) error {
	return db.WithTx(ctx, r.pool, func(ctx context.Context) error {
		var locked int64
		err := r.conn(ctx).QueryRow(ctx, lockPatientSQL, id).Scan(&locked)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrPatientNotFound
		}
		if err != nil {
			return fmt.Errorf("lock patient %d: %w", id, err)
		}
		_, err = r.conn(ctx).Exec(ctx, insertReadingSQL,
			id, reading.HeartRate, string(reading.Status), reading.Timestamp.UTC())
		if err != nil {
			return fmt.Errorf("insert reading for %d: %w", id, err)
		}
		return nil
	})
}

func (r *patientRepoPG) GetAll(ctx context.Context, id int64) ([]int, []time.Time, error) {
	p, err := r.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return p.HeartRates(), p.Timestamps(), nil
}

func (r *patientRepoPG) Get(ctx context.Context, id int64) (*Patient, error) {
	p := &Patient{ID: id, Readings: []Reading{}}
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT attending_email, age_years FROM patient WHERE patient_id = $1`, id,
	).Scan(&p.AttendingEmail, &p.AgeYears)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrPatientNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get patient %d: %w", id, err)
	}

	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+readingCols+` FROM heart_rate_reading WHERE patient_id = $1 ORDER BY id`, id)
	if err != nil {
		return nil, fmt.Errorf("list readings for %d: %w", id, err)
	}
	defer rows.Close()
	for rows.Next() {
		reading, err := scanReading(rows)
		if err != nil {
			return nil, err
		}
		p.Readings = append(p.Readings, reading)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list readings for %d: %w", id, err)
	}
	return p, nil
}

func scanReading(row pgx.Row) (Reading, error) {
	var (
		reading Reading
		status  string
	)
	if err := row.Scan(&reading.HeartRate, &status, &reading.Timestamp); err != nil {
		return Reading{}, fmt.Errorf("scan reading: %w", err)
	}
	reading.Status = Status(status)
	reading.Timestamp = reading.Timestamp.UTC()
	return reading, nil
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}
