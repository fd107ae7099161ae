package stripesync

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestDB opens an isolated in-memory database. The connection pool is
// pinned to one connection so every statement sees the same memory store.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	return db
}

// createMirrorTable materializes a mirror table from its column allow-list.
// SQLite's dynamic typing makes declared types unnecessary for these tests.
func createMirrorTable(t *testing.T, db *gorm.DB, table TableName, columns []string) {
	t.Helper()

	defs := make([]string, 0, len(columns)+1)
	for _, col := range columns {
		if col == "id" {
			defs = append(defs, `"id" text PRIMARY KEY`)
			continue
		}
		defs = append(defs, quoteIdent(col))
	}
	defs = append(defs, `"last_synced_at" text`)

	ddl := fmt.Sprintf(`CREATE TABLE %s (%s)`, quoteIdent(string(table)), strings.Join(defs, ", "))
	require.NoError(t, db.Exec(ddl).Error)
}

func newTestStore(t *testing.T, tables map[TableName][]string) *GormStore {
	t.Helper()

	db := newTestDB(t)
	for table, columns := range tables {
		createMirrorTable(t, db, table, columns)
	}
	return NewGormStore(db, "")
}

// sliceIterator yields a fixed entity slice, or fails with err.
type sliceIterator struct {
	entities []Entity
	pos      int
	err      error
}

func (it *sliceIterator) Next() bool {
	if it.err != nil {
		return false
	}
	it.pos++
	return it.pos <= len(it.entities)
}

func (it *sliceIterator) Entity() Entity {
	if it.pos < 1 || it.pos > len(it.entities) {
		return nil
	}
	return it.entities[it.pos-1]
}

func (it *sliceIterator) Err() error { return it.err }

// fakeRemote serves canned objects and records what was asked of it.
type fakeRemote struct {
	mu sync.Mutex

	objects  map[ObjectKind]map[string]Entity
	listings map[ObjectKind][]Entity
	// children is keyed "<kind>/<field>/<parentID>".
	children map[string][]Entity
	// byParent is keyed "<kind>/<parentID>" for parent-scoped listings.
	byParent map[string][]Entity

	retrieved []string
	listErr   error
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		objects:  make(map[ObjectKind]map[string]Entity),
		listings: make(map[ObjectKind][]Entity),
		children: make(map[string][]Entity),
		byParent: make(map[string][]Entity),
	}
}

func (f *fakeRemote) addObject(kind ObjectKind, entity Entity) {
	if f.objects[kind] == nil {
		f.objects[kind] = make(map[string]Entity)
	}
	f.objects[kind][entity.ID()] = entity
}

func (f *fakeRemote) Retrieve(_ context.Context, kind ObjectKind, id string) (Entity, error) {
	f.mu.Lock()
	f.retrieved = append(f.retrieved, fmt.Sprintf("%s/%s", kind, id))
	f.mu.Unlock()

	entity, ok := f.objects[kind][id]
	if !ok {
		return nil, fmt.Errorf("%w: %s %s", ErrUpstreamNotFound, kind, id)
	}
	return entity, nil
}

func (f *fakeRemote) List(_ context.Context, kind ObjectKind, params ListParams) EntityIterator {
	if f.listErr != nil {
		return &sliceIterator{err: f.listErr}
	}
	if params.Parent != "" {
		return &sliceIterator{entities: f.byParent[fmt.Sprintf("%s/%s", kind, params.Parent)]}
	}
	return &sliceIterator{entities: f.listings[kind]}
}

func (f *fakeRemote) ListChildren(_ context.Context, parent ObjectKind, field, parentID string) EntityIterator {
	return &sliceIterator{entities: f.children[fmt.Sprintf("%s/%s/%s", parent, field, parentID)]}
}

func (f *fakeRemote) retrieveCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.retrieved)
}

// fakeStore records UpsertMany batches without touching a database.
type fakeStore struct {
	mu       sync.Mutex
	batches  []int
	tables   []TableName
	existing map[TableName]map[string]struct{}
}

func newFakeStore() *fakeStore {
	return &fakeStore{existing: make(map[TableName]map[string]struct{})}
}

func (f *fakeStore) UpsertMany(_ context.Context, table TableName, rows []Entity, _ []string, _ time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = append(f.batches, len(rows))
	f.tables = append(f.tables, table)
	if f.existing[table] == nil {
		f.existing[table] = make(map[string]struct{})
	}
	for _, row := range rows {
		f.existing[table][row.ID()] = struct{}{}
	}
	return len(rows), nil
}

func (f *fakeStore) DeleteByID(_ context.Context, table TableName, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.existing[table][id]; ok {
		delete(f.existing[table], id)
		return true, nil
	}
	return false, nil
}

func (f *fakeStore) FindMissingIDs(_ context.Context, table TableName, ids []string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var missing []string
	for _, id := range ids {
		if _, ok := f.existing[table][id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

func (f *fakeStore) MarkAbsentChildrenDeleted(context.Context, TableName, string, string, []string) (int64, error) {
	return 0, nil
}

func (f *fakeStore) DeleteAbsentChildren(context.Context, TableName, string, string, []string) (int64, error) {
	return 0, nil
}

func (f *fakeStore) NonDeletedIDs(_ context.Context, table TableName) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []string
	for id := range f.existing[table] {
		ids = append(ids, id)
	}
	return ids, nil
}

func (f *fakeStore) batchSizes() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.batches...)
}
