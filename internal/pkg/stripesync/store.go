package stripesync

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// Store is the relation capability the engine writes through. Implementations
// must provide insert-or-update atomicity per row; the engine layers the
// timestamp guard and batching on top.
type Store interface {
	// UpsertMany writes rows keyed by id. A row is applied only when the
	// stored last_synced_at is null or strictly older than syncedAt; a stale
	// row is left fully unchanged. Returns the number of rows applied.
	UpsertMany(ctx context.Context, table TableName, rows []Entity, columns []string, syncedAt time.Time) (int, error)

	// DeleteByID removes a row unconditionally. Deleting an absent row is
	// not an error; the bool reports whether a row existed.
	DeleteByID(ctx context.Context, table TableName, id string) (bool, error)

	// FindMissingIDs returns the subset of candidate ids with no mirror row,
	// preserving input order.
	FindMissingIDs(ctx context.Context, table TableName, ids []string) ([]string, error)

	// MarkAbsentChildrenDeleted flags child rows of one parent whose id is
	// not in keep as deleted, in a single parent-scoped statement.
	MarkAbsentChildrenDeleted(ctx context.Context, table TableName, parentColumn, parentID string, keep []string) (int64, error)

	// DeleteAbsentChildren removes child rows of one parent whose id is not
	// in keep, in a single parent-scoped statement.
	DeleteAbsentChildren(ctx context.Context, table TableName, parentColumn, parentID string, keep []string) (int64, error)

	// NonDeletedIDs lists ids of rows not flagged deleted.
	NonDeletedIDs(ctx context.Context, table TableName) ([]string, error)
}

// Rows within a chunk are written concurrently, chunks sequentially, so peak
// connection use is bounded by the chunk width.
const upsertChunkSize = 5

// Fixed-width UTC layout so timestamp ordering survives both timestamptz and
// plain-text comparison.
const syncTimestampLayout = "2006-01-02 15:04:05.000000000Z"

func formatSyncTimestamp(t time.Time) string {
	return t.UTC().Format(syncTimestampLayout)
}

// GormStore is the gorm-backed Store used in production and tests.
type GormStore struct {
	db     *gorm.DB
	prefix string
}

// NewGormStore wraps a gorm handle with an optional table prefix.
func NewGormStore(db *gorm.DB, tablePrefix string) *GormStore {
	return &GormStore{db: db, prefix: NormalizePrefix(tablePrefix)}
}

// TableName resolves a logical table to its physical, prefixed name.
func (s *GormStore) TableName(table TableName) string {
	return s.prefix + string(table)
}

func quoteIdent(name string) string {
	return `"` + name + `"`
}

func (s *GormStore) UpsertMany(ctx context.Context, table TableName, rows []Entity, columns []string, syncedAt time.Time) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	ts := formatSyncTimestamp(syncedAt)
	var applied atomic.Int64

	for _, chunk := range chunkEntities(rows, upsertChunkSize) {
		g, gctx := errgroup.WithContext(ctx)
		for _, row := range chunk {
			row := row
			g.Go(func() error {
				ok, err := s.upsertOne(gctx, table, row, columns, ts)
				if err != nil {
					return err
				}
				if ok {
					applied.Add(1)
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return int(applied.Load()), err
		}
	}

	return int(applied.Load()), nil
}

// upsertOne issues one insert-or-update statement. All declared columns are
// updated together under the timestamp guard, so a stale write can never
// partially apply.
func (s *GormStore) upsertOne(ctx context.Context, table TableName, row Entity, columns []string, ts string) (bool, error) {
	cleansed := cleanseRow(row)

	names := make([]string, 0, len(columns)+1)
	values := make([]any, 0, len(columns)+1)
	assignments := make([]string, 0, len(columns))
	for _, col := range columns {
		if col == "last_synced_at" {
			continue
		}
		v, ok := cleansed[col]
		if !ok {
			continue
		}
		names = append(names, quoteIdent(col))
		values = append(values, v)
		if col != "id" {
			assignments = append(assignments, fmt.Sprintf("%s = excluded.%s", quoteIdent(col), quoteIdent(col)))
		}
	}
	names = append(names, quoteIdent("last_synced_at"))
	values = append(values, ts)
	assignments = append(assignments, `"last_synced_at" = excluded."last_synced_at"`)

	tbl := quoteIdent(s.TableName(table))
	query := fmt.Sprintf(
		`INSERT INTO %s (%s) VALUES (%s) ON CONFLICT ("id") DO UPDATE SET %s WHERE %s."last_synced_at" IS NULL OR %s."last_synced_at" < excluded."last_synced_at"`,
		tbl,
		strings.Join(names, ","),
		strings.TrimSuffix(strings.Repeat("?,", len(values)), ","),
		strings.Join(assignments, ","),
		tbl, tbl,
	)

	tx := s.db.WithContext(ctx).Exec(query, values...)
	if tx.Error != nil {
		return false, fmt.Errorf("upsert into %s: %w", s.TableName(table), tx.Error)
	}
	return tx.RowsAffected > 0, nil
}

func (s *GormStore) DeleteByID(ctx context.Context, table TableName, id string) (bool, error) {
	query := fmt.Sprintf(`DELETE FROM %s WHERE "id" = ?`, quoteIdent(s.TableName(table)))
	tx := s.db.WithContext(ctx).Exec(query, id)
	if tx.Error != nil {
		return false, fmt.Errorf("delete from %s: %w", s.TableName(table), tx.Error)
	}
	return tx.RowsAffected > 0, nil
}

func (s *GormStore) FindMissingIDs(ctx context.Context, table TableName, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var existing []string
	query := fmt.Sprintf(`SELECT "id" FROM %s WHERE "id" IN ?`, quoteIdent(s.TableName(table)))
	if err := s.db.WithContext(ctx).Raw(query, ids).Scan(&existing).Error; err != nil {
		return nil, fmt.Errorf("find missing in %s: %w", s.TableName(table), err)
	}

	present := make(map[string]struct{}, len(existing))
	for _, id := range existing {
		present[id] = struct{}{}
	}
	missing := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := present[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

func (s *GormStore) MarkAbsentChildrenDeleted(ctx context.Context, table TableName, parentColumn, parentID string, keep []string) (int64, error) {
	query := fmt.Sprintf(
		`UPDATE %s SET "deleted" = ? WHERE %s = ? AND ("deleted" IS NULL OR "deleted" = ?)`,
		quoteIdent(s.TableName(table)), quoteIdent(parentColumn),
	)
	args := []any{true, parentID, false}
	if len(keep) > 0 {
		query += ` AND "id" NOT IN ?`
		args = append(args, keep)
	}

	tx := s.db.WithContext(ctx).Exec(query, args...)
	if tx.Error != nil {
		return 0, fmt.Errorf("mark deleted in %s: %w", s.TableName(table), tx.Error)
	}
	return tx.RowsAffected, nil
}

func (s *GormStore) DeleteAbsentChildren(ctx context.Context, table TableName, parentColumn, parentID string, keep []string) (int64, error) {
	query := fmt.Sprintf(
		`DELETE FROM %s WHERE %s = ?`,
		quoteIdent(s.TableName(table)), quoteIdent(parentColumn),
	)
	args := []any{parentID}
	if len(keep) > 0 {
		query += ` AND "id" NOT IN ?`
		args = append(args, keep)
	}

	tx := s.db.WithContext(ctx).Exec(query, args...)
	if tx.Error != nil {
		return 0, fmt.Errorf("delete children in %s: %w", s.TableName(table), tx.Error)
	}
	return tx.RowsAffected, nil
}

func (s *GormStore) NonDeletedIDs(ctx context.Context, table TableName) ([]string, error) {
	var ids []string
	query := fmt.Sprintf(`SELECT "id" FROM %s WHERE "deleted" IS NULL OR "deleted" = ?`, quoteIdent(s.TableName(table)))
	if err := s.db.WithContext(ctx).Raw(query, false).Scan(&ids).Error; err != nil {
		return nil, fmt.Errorf("list ids in %s: %w", s.TableName(table), err)
	}
	return ids, nil
}
