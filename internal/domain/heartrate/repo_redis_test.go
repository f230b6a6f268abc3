package heartrate

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedisRepo(t *testing.T) (*miniredis.Miniredis, PatientRepository) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, NewRedisPatientRepo(client)
}

func TestRedisRepo_CreateAndGet(t *testing.T) {
	mr, repo := setupRedisRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, 5, "5555@domain.com", 50.5))

	assert.True(t, mr.Exists("hr:patient:5"))
	assert.Equal(t, "5555@domain.com", mr.HGet("hr:patient:5", "attending_email"))

	ok, err := repo.Exists(ctx, 5)
	require.NoError(t, err)
	assert.True(t, ok)

	age, err := repo.GetAge(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, 50.5, age)

	p, err := repo.Get(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, int64(5), p.ID)
	assert.Empty(t, p.Readings)
}

func TestRedisRepo_AppendAndRead(t *testing.T) {
	_, repo := setupRedisRepo(t)
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, 7, "a@b.com", 30))

	t0 := time.Date(2024, 5, 1, 8, 0, 0, 123456000, time.UTC)
	require.NoError(t, repo.AppendReading(ctx, 7, Reading{HeartRate: 120, Status: StatusTachycardic, Timestamp: t0}))
	require.NoError(t, repo.AppendReading(ctx, 7, Reading{HeartRate: 80, Status: StatusNotTachycardic, Timestamp: t0.Add(time.Second)}))

	hrs, ts, err := repo.GetAll(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, []int{120, 80}, hrs)
	require.Len(t, ts, 2)
	assert.True(t, ts[0].Equal(t0))

	p, err := repo.Get(ctx, 7)
	require.NoError(t, err)
	latest, ok := p.Latest()
	require.True(t, ok)
	assert.Equal(t, StatusNotTachycardic, latest.Status)
}

func TestRedisRepo_ReRegistrationKeepsReadings(t *testing.T) {
	_, repo := setupRedisRepo(t)
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, 8, "a@b.com", 30))
	require.NoError(t, repo.AppendReading(ctx, 8, Reading{HeartRate: 90, Status: StatusNotTachycardic, Timestamp: time.Now()}))
	require.NoError(t, repo.Create(ctx, 8, "c@d.com", 31))

	p, err := repo.Get(ctx, 8)
	require.NoError(t, err)
	assert.Equal(t, "c@d.com", p.AttendingEmail)
	assert.Equal(t, 31.0, p.AgeYears)
	assert.Len(t, p.Readings, 1)
}

func TestRedisRepo_UnknownPatient(t *testing.T) {
	mr, repo := setupRedisRepo(t)
	ctx := context.Background()

	ok, err := repo.Exists(ctx, 404)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = repo.GetAge(ctx, 404)
	assert.ErrorIs(t, err, ErrPatientNotFound)

	err = repo.AppendReading(ctx, 404, Reading{HeartRate: 80, Timestamp: time.Now()})
	assert.ErrorIs(t, err, ErrPatientNotFound)
	assert.False(t, mr.Exists("hr:patient:404:readings"))

	_, err = repo.Get(ctx, 404)
	assert.ErrorIs(t, err, ErrPatientNotFound)
}

func TestRedisRepo_ConcurrentAppends(t *testing.T) {
	_, repo := setupRedisRepo(t)
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, 9, "a@b.com", 30))

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(hr int) {
			defer wg.Done()
			_ = repo.AppendReading(ctx, 9, Reading{HeartRate: hr, Status: StatusNotTachycardic, Timestamp: time.Now()})
		}(60 + i)
	}
	wg.Wait()

	hrs, _, err := repo.GetAll(ctx, 9)
	require.NoError(t, err)
	assert.Len(t, hrs, n)
}
