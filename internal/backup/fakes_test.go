package backup

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"
)

// fakeReader serves tables of generated rows
type fakeReader struct {
	mu      sync.Mutex
	sizes   map[string]int
	failAt  map[string]int // offset at which ReadPage fails
	panicOn map[string]bool
	calls   map[string][]int
}

func newFakeReader(sizes map[string]int) *fakeReader {
	return &fakeReader{
		sizes:   sizes,
		failAt:  map[string]int{},
		panicOn: map[string]bool{},
		calls:   map[string][]int{},
	}
}

func (r *fakeReader) ReadPage(ctx context.Context, table string, offset, limit int) ([]Row, error) {
	r.mu.Lock()
	r.calls[table] = append(r.calls[table], offset)
	fail, hasFail := r.failAt[table]
	panics := r.panicOn[table]
	size := r.sizes[table]
	r.mu.Unlock()

	if panics {
		panic("reader exploded on " + table)
	}
	if hasFail && offset >= fail {
		return nil, errors.New("read failed")
	}

	var rows []Row
	for i := offset; i < size && i < offset+limit; i++ {
		rows = append(rows, NewRow([]string{"id", "table"}, []any{i, table}))
	}
	return rows, nil
}

func (r *fakeReader) offsets(table string) []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int(nil), r.calls[table]...)
}

// fakeSchedules is an in-memory ScheduleStore
type fakeSchedules struct {
	mu       sync.Mutex
	due      []Schedule
	dueErr   error
	advanced map[string]time.Time
	failFor  map[string]bool
}

func newFakeSchedules(due ...Schedule) *fakeSchedules {
	return &fakeSchedules{due: due, advanced: map[string]time.Time{}, failFor: map[string]bool{}}
}

func (s *fakeSchedules) Due(ctx context.Context, now time.Time) ([]Schedule, error) {
	if s.dueErr != nil {
		return nil, s.dueErr
	}
	return append([]Schedule(nil), s.due...), nil
}

func (s *fakeSchedules) Advance(ctx context.Context, id string, lastRun, nextRun time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failFor[id] {
		return errors.New("update failed")
	}
	s.advanced[id] = nextRun
	return nil
}

// fakeLedger is an in-memory Ledger
type fakeLedger struct {
	mu        sync.Mutex
	records   []Record
	seq       int
	clock     func() time.Time
	insertErr error
	listErr   error
	deleteErr map[string]error
}

func newFakeLedger() *fakeLedger {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l := &fakeLedger{deleteErr: map[string]error{}}
	l.clock = func() time.Time { return base.Add(time.Duration(l.seq) * time.Minute) }
	return l
}

func (l *fakeLedger) Insert(ctx context.Context, rec *Record) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.insertErr != nil {
		return l.insertErr
	}
	l.seq++
	rec.ID = fmt.Sprintf("rec-%03d", l.seq)
	rec.CreatedAt = l.clock()
	l.records = append(l.records, *rec)
	return nil
}

func (l *fakeLedger) ListCompleted(ctx context.Context) ([]Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.listErr != nil {
		return nil, l.listErr
	}
	var out []Record
	for _, r := range l.records {
		if r.Status == StatusCompleted {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (l *fakeLedger) Delete(ctx context.Context, id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.deleteErr[id]; err != nil {
		return err
	}
	for i, r := range l.records {
		if r.ID == id {
			l.records = append(l.records[:i], l.records[i+1:]...)
			return nil
		}
	}
	return nil
}

func (l *fakeLedger) all() []Record {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Record(nil), l.records...)
}

// seed adds count completed records with increasing CreatedAt
func (l *fakeLedger) seed(count int) {
	for i := 0; i < count; i++ {
		_ = l.Insert(context.Background(), &Record{
			FilePath: fmt.Sprintf("owner/seed-%03d.json", i),
			Status:   StatusCompleted,
		})
	}
}

// memoryStorage is an in-memory StorageProvider
type memoryStorage struct {
	mu        sync.Mutex
	objects   map[string][]byte
	putErr    error
	removeErr map[string]error
	removed   []string
}

func newMemoryStorage() *memoryStorage {
	return &memoryStorage{objects: map[string][]byte{}, removeErr: map[string]error{}}
}

func (m *memoryStorage) Put(ctx context.Context, path string, data []byte, contentType string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.putErr != nil {
		return m.putErr
	}
	m.objects[path] = append([]byte(nil), data...)
	return nil
}

func (m *memoryStorage) Remove(ctx context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removed = append(m.removed, path)
	if err := m.removeErr[path]; err != nil {
		return err
	}
	delete(m.objects, path)
	return nil
}

func (m *memoryStorage) Location(path string) string { return "mem://" + path }

// MockStorageProvider is a testify mock of StorageProvider
type MockStorageProvider struct {
	mock.Mock
}

func (m *MockStorageProvider) Put(ctx context.Context, path string, data []byte, contentType string) error {
	args := m.Called(ctx, path, data, contentType)
	return args.Error(0)
}

func (m *MockStorageProvider) Remove(ctx context.Context, path string) error {
	args := m.Called(ctx, path)
	return args.Error(0)
}

func (m *MockStorageProvider) Location(path string) string {
	return "mock://" + path
}
