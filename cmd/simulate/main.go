package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

type SimConfig struct {
	APIBaseURL      string
	Duration        time.Duration
	Workers         int
	BookingRatio    float64
	CancelRatio     float64
	RescheduleRatio float64
	ReadRatio       float64
	HorizonDays     int
}

type DataPool struct {
	Patients   []uuid.UUID
	Therapists []uuid.UUID

	mu           sync.RWMutex
	appointments []uuid.UUID // created during this run
}

func (dp *DataPool) AddAppointment(id uuid.UUID) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.appointments = append(dp.appointments, id)
}

func (dp *DataPool) RandomAppointment(rng *rand.Rand) (uuid.UUID, bool) {
	dp.mu.RLock()
	defer dp.mu.RUnlock()
	if len(dp.appointments) == 0 {
		return uuid.Nil, false
	}
	return dp.appointments[rng.Intn(len(dp.appointments))], true
}

// envelope is the Result shape every endpoint answers with.
type envelope struct {
	OK        bool            `json:"ok"`
	Value     json.RawMessage `json:"value"`
	ErrorKind string          `json:"errorKind"`
	Message   string          `json:"message"`
}

type slot struct {
	Start time.Time `json:"start"`
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	Latencies []time.Duration
	mu        sync.Mutex
}

func (om *OperationMetrics) Record(latency time.Duration, success bool, conflict bool) {
	atomic.AddInt64(&om.Total, 1)
	switch {
	case success:
		atomic.AddInt64(&om.Success, 1)
	case conflict:
		atomic.AddInt64(&om.Conflict, 1)
	default:
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.Latencies = append(om.Latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, min, max, p50, p95 time.Duration) {
	om.mu.Lock()
	latencies := make([]time.Duration, len(om.Latencies))
	copy(latencies, om.Latencies)
	om.mu.Unlock()

	if len(latencies) == 0 {
		return 0, 0, 0, 0, 0
	}
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}

	percentile := func(p int) time.Duration {
		idx := len(latencies) * p / 100
		if idx >= len(latencies) {
			idx = len(latencies) - 1
		}
		return latencies[idx]
	}

	return sum / time.Duration(len(latencies)), latencies[0], latencies[len(latencies)-1], percentile(50), percentile(95)
}

type Metrics struct {
	Booking    OperationMetrics
	Cancel     OperationMetrics
	Reschedule OperationMetrics
	Slots      OperationMetrics
	ReadByID   OperationMetrics
	Buckets    OperationMetrics
}

type Simulator struct {
	config  SimConfig
	pool    *DataPool
	client  *http.Client
	metrics Metrics
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("simulator starting")

	cfg := loadConfig()
	if err := validateConfig(cfg); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	log.Printf("config: duration=%s workers=%d booking=%.2f cancel=%.2f reschedule=%.2f read=%.2f",
		cfg.Duration, cfg.Workers, cfg.BookingRatio, cfg.CancelRatio, cfg.RescheduleRatio, cfg.ReadRatio)

	sim := &Simulator{
		config: cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	dataPool, err := sim.loadDataPool(ctx)
	if err != nil {
		log.Fatalf("load data pool: %v", err)
	}
	sim.pool = dataPool
	log.Printf("loaded: %d patients, %d therapists", len(dataPool.Patients), len(dataPool.Therapists))

	sim.Run()
	sim.PrintReport()
}

func loadConfig() SimConfig {
	_ = godotenv.Load()

	cfg := SimConfig{
		APIBaseURL:      strings.TrimRight(getEnv("SIM_API_BASE_URL", "http://localhost:8080"), "/"),
		Duration:        getDuration("SIM_DURATION", 30*time.Second),
		Workers:         getInt("SIM_WORKERS", 10),
		BookingRatio:    getFloat("SIM_BOOKING_RATIO", 0.4),
		CancelRatio:     getFloat("SIM_CANCEL_RATIO", 0.1),
		RescheduleRatio: getFloat("SIM_RESCHEDULE_RATIO", 0.1),
		ReadRatio:       getFloat("SIM_READ_RATIO", 0.4),
		HorizonDays:     getInt("SIM_HORIZON_DAYS", 14),
	}

	total := cfg.BookingRatio + cfg.CancelRatio + cfg.RescheduleRatio + cfg.ReadRatio
	if total > 0 {
		cfg.BookingRatio /= total
		cfg.CancelRatio /= total
		cfg.RescheduleRatio /= total
		cfg.ReadRatio /= total
	}

	return cfg
}

func validateConfig(cfg SimConfig) error {
	if cfg.Workers <= 0 {
		return fmt.Errorf("SIM_WORKERS must be > 0")
	}
	if cfg.Duration <= 0 {
		return fmt.Errorf("SIM_DURATION must be > 0")
	}
	if cfg.HorizonDays <= 0 {
		return fmt.Errorf("SIM_HORIZON_DAYS must be > 0")
	}
	return nil
}

func (s *Simulator) loadDataPool(ctx context.Context) (*DataPool, error) {
	var people []struct {
		ID uuid.UUID `json:"id"`
	}
	dataPool := &DataPool{}

	if _, err := s.call(ctx, http.MethodGet, "/patients", nil, &people); err != nil {
		return nil, fmt.Errorf("load patients: %w", err)
	}
	for _, p := range people {
		dataPool.Patients = append(dataPool.Patients, p.ID)
	}

	people = nil
	if _, err := s.call(ctx, http.MethodGet, "/therapists", nil, &people); err != nil {
		return nil, fmt.Errorf("load therapists: %w", err)
	}
	for _, t := range people {
		dataPool.Therapists = append(dataPool.Therapists, t.ID)
	}

	if len(dataPool.Patients) == 0 {
		return nil, fmt.Errorf("no patients loaded")
	}
	if len(dataPool.Therapists) == 0 {
		return nil, fmt.Errorf("no therapists loaded")
	}
	return dataPool, nil
}

// call sends one request and decodes the Result value into out when ok.
func (s *Simulator) call(ctx context.Context, method, path string, body any, out any) (int, error) {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.config.APIBaseURL+path, reader)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return resp.StatusCode, fmt.Errorf("decode response: %w", err)
	}
	if !env.OK {
		return resp.StatusCode, fmt.Errorf("%s: %s", env.ErrorKind, env.Message)
	}
	if out != nil && len(env.Value) > 0 {
		if err := json.Unmarshal(env.Value, out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode value: %w", err)
		}
	}
	return resp.StatusCode, nil
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	log.Printf("starting simulation for %s with %d workers", s.config.Duration, s.config.Workers)

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID)
		}(i)
	}

	wg.Wait()
	log.Println("simulation complete")
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		r := rng.Float64()
		switch {
		case r < s.config.BookingRatio:
			s.doBooking(ctx, rng)
		case r < s.config.BookingRatio+s.config.CancelRatio:
			s.doCancel(ctx, rng)
		case r < s.config.BookingRatio+s.config.CancelRatio+s.config.RescheduleRatio:
			s.doReschedule(ctx, rng)
		default:
			if rng.Intn(2) == 0 {
				s.doReadByID(ctx, rng)
			} else {
				s.doBuckets(ctx, rng)
			}
		}
	}
}

// timed runs one request and records it; 409 counts as a conflict.
// Requests cut off by the end of the run are not recorded.
func (s *Simulator) timed(ctx context.Context, om *OperationMetrics, fn func() (int, error)) error {
	start := time.Now()
	status, err := fn()
	if ctx.Err() != nil {
		return ctx.Err()
	}
	om.Record(time.Since(start), err == nil, status == http.StatusConflict)
	return err
}

func (s *Simulator) randomSlot(ctx context.Context, rng *rand.Rand, therapistID uuid.UUID) (time.Time, bool) {
	day := time.Now().UTC().AddDate(0, 0, 1+rng.Intn(s.config.HorizonDays)).Format("2006-01-02")

	var slots []slot
	err := s.timed(ctx, &s.metrics.Slots, func() (int, error) {
		return s.call(ctx, http.MethodGet, fmt.Sprintf("/therapists/%s/slots?date=%s", therapistID, day), nil, &slots)
	})
	if err != nil || len(slots) == 0 {
		return time.Time{}, false
	}
	return slots[rng.Intn(len(slots))].Start, true
}

func (s *Simulator) doBooking(ctx context.Context, rng *rand.Rand) {
	therapistID := s.pool.Therapists[rng.Intn(len(s.pool.Therapists))]
	patientID := s.pool.Patients[rng.Intn(len(s.pool.Patients))]

	start, ok := s.randomSlot(ctx, rng, therapistID)
	if !ok {
		return
	}

	var created struct {
		ID uuid.UUID `json:"id"`
	}
	err := s.timed(ctx, &s.metrics.Booking, func() (int, error) {
		return s.call(ctx, http.MethodPost, "/appointments", map[string]string{
			"patient_id":   patientID.String(),
			"therapist_id": therapistID.String(),
			"date_time":    start.Format(time.RFC3339),
		}, &created)
	})
	if err == nil && created.ID != uuid.Nil {
		s.pool.AddAppointment(created.ID)
	}
}

func (s *Simulator) doCancel(ctx context.Context, rng *rand.Rand) {
	apptID, ok := s.pool.RandomAppointment(rng)
	if !ok {
		return
	}
	_ = s.timed(ctx, &s.metrics.Cancel, func() (int, error) {
		return s.call(ctx, http.MethodPost, fmt.Sprintf("/appointments/%s/cancel", apptID), nil, nil)
	})
}

func (s *Simulator) doReschedule(ctx context.Context, rng *rand.Rand) {
	apptID, ok := s.pool.RandomAppointment(rng)
	if !ok {
		return
	}
	newStart := time.Now().UTC().
		AddDate(0, 0, 1+rng.Intn(s.config.HorizonDays)).
		Truncate(time.Hour)

	_ = s.timed(ctx, &s.metrics.Reschedule, func() (int, error) {
		return s.call(ctx, http.MethodPost, fmt.Sprintf("/appointments/%s/reschedule", apptID),
			map[string]string{"date_time": newStart.Format(time.RFC3339)}, nil)
	})
}

func (s *Simulator) doReadByID(ctx context.Context, rng *rand.Rand) {
	apptID, ok := s.pool.RandomAppointment(rng)
	if !ok {
		return
	}
	_ = s.timed(ctx, &s.metrics.ReadByID, func() (int, error) {
		return s.call(ctx, http.MethodGet, "/appointments/"+apptID.String(), nil, nil)
	})
}

func (s *Simulator) doBuckets(ctx context.Context, rng *rand.Rand) {
	patientID := s.pool.Patients[rng.Intn(len(s.pool.Patients))]
	_ = s.timed(ctx, &s.metrics.Buckets, func() (int, error) {
		return s.call(ctx, http.MethodGet, fmt.Sprintf("/patients/%s/buckets", patientID), nil, nil)
	})
}

func (s *Simulator) PrintReport() {
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Duration: %s\n", s.config.Duration)
	fmt.Printf("Workers: %d\n", s.config.Workers)
	fmt.Println()

	printOperationReport("Booking", &s.metrics.Booking)
	printOperationReport("Cancel", &s.metrics.Cancel)
	printOperationReport("Reschedule", &s.metrics.Reschedule)
	printOperationReport("Slots", &s.metrics.Slots)
	printOperationReport("Read by ID", &s.metrics.ReadByID)
	printOperationReport("Patient buckets", &s.metrics.Buckets)
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}

	success := atomic.LoadInt64(&om.Success)
	conflict := atomic.LoadInt64(&om.Conflict)
	failed := atomic.LoadInt64(&om.Error)

	avg, min, max, p50, p95 := om.Stats()

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Total: %d\n", total)
	fmt.Printf("  Success: %d (%.1f%%)\n", success, float64(success)/float64(total)*100)
	if conflict > 0 {
		fmt.Printf("  Conflicts: %d (%.1f%%)\n", conflict, float64(conflict)/float64(total)*100)
	}
	if failed > 0 {
		fmt.Printf("  Errors: %d (%.1f%%)\n", failed, float64(failed)/float64(total)*100)
	}
	fmt.Printf("  Latency: avg=%s min=%s max=%s p50=%s p95=%s\n",
		avg.Round(time.Millisecond), min.Round(time.Millisecond), max.Round(time.Millisecond),
		p50.Round(time.Millisecond), p95.Round(time.Millisecond))
	fmt.Println()
}

// Helper functions

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}
