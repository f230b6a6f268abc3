package heartrate

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestMemoryRepo_CreateAndGet(t *testing.T) {
	repo := NewMemoryPatientRepo()
	ctx := context.Background()

	if ok, _ := repo.Exists(ctx, 1); ok {
		t.Fatal("expected patient 1 to be absent")
	}
	if err := repo.Create(ctx, 1, "doc@duke.edu", 30); err != nil {
		t.Fatalf("Create: %v", err)
	}
	ok, err := repo.Exists(ctx, 1)
	if err != nil || !ok {
		t.Fatalf("expected patient to exist, got %v %v", ok, err)
	}
	age, err := repo.GetAge(ctx, 1)
	if err != nil || age != 30 {
		t.Errorf("GetAge = %v, %v", age, err)
	}

	p, err := repo.Get(ctx, 1)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if p.AttendingEmail != "doc@duke.edu" {
		t.Errorf("unexpected email %q", p.AttendingEmail)
	}
	if p.Readings == nil || len(p.Readings) != 0 {
		t.Errorf("expected empty reading history, got %v", p.Readings)
	}
}

func TestMemoryRepo_UnknownPatient(t *testing.T) {
	repo := NewMemoryPatientRepo()
	ctx := context.Background()

	if _, err := repo.GetAge(ctx, 9); !errors.Is(err, ErrPatientNotFound) {
		t.Errorf("GetAge: expected ErrPatientNotFound, got %v", err)
	}
	if err := repo.AppendReading(ctx, 9, Reading{HeartRate: 80}); !errors.Is(err, ErrPatientNotFound) {
		t.Errorf("AppendReading: expected ErrPatientNotFound, got %v", err)
	}
	if _, _, err := repo.GetAll(ctx, 9); !errors.Is(err, ErrPatientNotFound) {
		t.Errorf("GetAll: expected ErrPatientNotFound, got %v", err)
	}
	if _, err := repo.Get(ctx, 9); !errors.Is(err, ErrPatientNotFound) {
		t.Errorf("Get: expected ErrPatientNotFound, got %v", err)
	}
}

func TestMemoryRepo_ReRegistrationKeepsReadings(t *testing.T) {
	repo := NewMemoryPatientRepo()
	ctx := context.Background()
	now := time.Now().UTC()

	repo.Create(ctx, 2, "a@b.com", 10)
	repo.AppendReading(ctx, 2, Reading{HeartRate: 120, Status: StatusNotTachycardic, Timestamp: now})
	repo.Create(ctx, 2, "c@d.com", 11)

	p, _ := repo.Get(ctx, 2)
	if p.AttendingEmail != "c@d.com" || p.AgeYears != 11 {
		t.Errorf("expected updated fields, got %q %v", p.AttendingEmail, p.AgeYears)
	}
	if len(p.Readings) != 1 || p.Readings[0].HeartRate != 120 {
		t.Errorf("expected readings to survive re-registration, got %v", p.Readings)
	}
}

func TestMemoryRepo_GetReturnsCopy(t *testing.T) {
	repo := NewMemoryPatientRepo()
	ctx := context.Background()
	repo.Create(ctx, 3, "a@b.com", 10)
	repo.AppendReading(ctx, 3, Reading{HeartRate: 70})

	p, _ := repo.Get(ctx, 3)
	p.Readings[0].HeartRate = 999

	hrs, _, _ := repo.GetAll(ctx, 3)
	if hrs[0] != 70 {
		t.Errorf("stored reading mutated through Get result: %v", hrs)
	}
}

func TestMemoryRepo_ConcurrentAppends(t *testing.T) {
	repo := NewMemoryPatientRepo()
	ctx := context.Background()
	repo.Create(ctx, 4, "a@b.com", 40)

	const n = 200
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(hr int) {
			defer wg.Done()
			repo.AppendReading(ctx, 4, Reading{HeartRate: hr, Timestamp: time.Now()})
		}(i)
	}
	wg.Wait()

	hrs, ts, err := repo.GetAll(ctx, 4)
	if err != nil {
		t.Fatalf("GetAll: %v", err)
	}
	if len(hrs) != n || len(ts) != n {
		t.Errorf("expected %d readings, got %d/%d", n, len(hrs), len(ts))
	}
}
