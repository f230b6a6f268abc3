package heartrate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	redisKeyPrefix   = "hr:patient:"
	redisAppendTries = 3
)

type patientRepoRedis struct {
	client *redis.Client
}

// NewRedisPatientRepo stores each patient as a hash with a companion list of
// JSON encoded readings.
func NewRedisPatientRepo(client *redis.Client) PatientRepository {
	return &patientRepoRedis{client: client}
}

func patientKey(id int64) string {
	return redisKeyPrefix + strconv.FormatInt(id, 10)
}

func readingsKey(id int64) string {
	return patientKey(id) + ":readings"
}

type redisReading struct {
	HeartRate int    `json:"heartRate"`
	Status    Status `json:"status"`
	Timestamp string `json:"timestamp"`
}

func (r *patientRepoRedis) Create(ctx context.Context, id int64, email string, ageYears float64) error {
	err := r.client.HSet(ctx, patientKey(id), map[string]interface{}{
		"attending_email": email,
		"age_years":       strconv.FormatFloat(ageYears, 'g', -1, 64),
	}).Err()
	if err != nil {
		return fmt.Errorf("redis create patient %d: %w", id, err)
	}
	return nil
}

func (r *patientRepoRedis) Exists(ctx context.Context, id int64) (bool, error) {
	n, err := r.client.Exists(ctx, patientKey(id)).Result()
	if err != nil {
		return false, fmt.Errorf("redis patient exists %d: %w", id, err)
	}
	return n > 0, nil
}

func (r *patientRepoRedis) GetAge(ctx context.Context, id int64) (float64, error) {
	raw, err := r.client.HGet(ctx, patientKey(id), "age_years").Result()
	if errors.Is(err, redis.Nil) {
		return 0, ErrPatientNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("redis patient age %d: %w", id, err)
	}
	age, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("redis patient age %d: %w", id, err)
	}
	return age, nil
}

// AppendReading pushes the reading inside a WATCH on the patient hash so a
// reading is never stored for a patient that does not exist.
func (r *patientRepoRedis) AppendReading(ctx context.Context, id int64, reading Reading) error {
	payload, err := json.Marshal(redisReading{
		HeartRate: reading.HeartRate,
		Status:    reading.Status,
		Timestamp: FormatTimestamp(reading.Timestamp),
	})
	if err != nil {
		return fmt.Errorf("encode reading: %w", err)
	}

	key := patientKey(id)
	txf := func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrPatientNotFound
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.RPush(ctx, readingsKey(id), payload)
			return nil
		})
		return err
	}

	for i := 0; i < redisAppendTries; i++ {
		err = r.client.Watch(ctx, txf, key)
		if !errors.Is(err, redis.TxFailedErr) {
			break
		}
	}
	if errors.Is(err, ErrPatientNotFound) {
		return err
	}
	if err != nil {
		return fmt.Errorf("redis append reading %d: %w", id, err)
	}
	return nil
}

func (r *patientRepoRedis) GetAll(ctx context.Context, id int64) ([]int, []time.Time, error) {
	p, err := r.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return p.HeartRates(), p.Timestamps(), nil
}

func (r *patientRepoRedis) Get(ctx context.Context, id int64) (*Patient, error) {
	fields, err := r.client.HGetAll(ctx, patientKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis get patient %d: %w", id, err)
	}
	if len(fields) == 0 {
		return nil, ErrPatientNotFound
	}
	age, err := strconv.ParseFloat(fields["age_years"], 64)
	if err != nil {
		return nil, fmt.Errorf("redis get patient %d: %w", id, err)
	}
	p := &Patient{
		ID:             id,
		AttendingEmail: fields["attending_email"],
		AgeYears:       age,
		Readings:       []Reading{},
	}

	raw, err := r.client.LRange(ctx, readingsKey(id), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis list readings %d: %w", id, err)
	}
	for _, item := range raw {
		var rr redisReading
		if err := json.Unmarshal([]byte(item), &rr); err != nil {
			return nil, fmt.Errorf("decode reading for %d: %w", id, err)
		}
		ts, err := ParseTimestamp(rr.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("decode reading for %d: %w", id, err)
		}
		p.Readings = append(p.Readings, Reading{HeartRate: rr.HeartRate, Status: rr.Status, Timestamp: ts})
	}
	return p, nil
}
