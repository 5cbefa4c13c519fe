// Package sqlstore is the durable like store: one row per like relation plus a
// per-item counter, both changed in the same transaction.
package sqlstore

import (
	"context"
	"database/sql"
	"slices"
	"sort"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/pkg/errors"

	"github.com/huynhanx03/go-thumb/internal/model"
	"github.com/huynhanx03/go-thumb/pkg/database/sqldb"
)

// maxRowsPerStatement keeps multi-row statements under the placeholder limits of
// every supported driver.
const maxRowsPerStatement = 1000

type Store struct {
	drv *entsql.Driver
	now func() time.Time
}

func New(drv *entsql.Driver) *Store {
	return &Store{drv: drv, now: time.Now}
}

func (s *Store) builder() *entsql.DialectBuilder {
	return entsql.Dialect(s.drv.Dialect())
}

// Migrate creates the tables if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	stmts, ok := ddl[s.drv.Dialect()]
	if !ok {
		return errors.Wrapf(sqldb.ErrUnsupportedDriver, "migrate %s", s.drv.Dialect())
	}
	for _, stmt := range stmts {
		if err := s.drv.Exec(ctx, stmt, []any{}, nil); err != nil {
			return errors.Wrap(err, "migrate")
		}
	}
	return nil
}

// ApplyBatch inserts and deletes the given relations and moves each item counter by
// the number of rows actually changed, all in one transaction. Inserting an existing
// relation or deleting a missing one changes nothing. It returns the applied delta
// per item.
func (s *Store) ApplyBatch(ctx context.Context, batch model.Batch) (deltas map[int64]int64, err error) {
	deltas = make(map[int64]int64)
	if batch.Empty() {
		return deltas, nil
	}

	tx, err := s.drv.Tx(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "begin tx")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := s.now()
	inserts := groupByItem(batch.Inserts)
	for _, item := range sortedKeys(inserts) {
		for chunk := range slices.Chunk(inserts[item], maxRowsPerStatement) {
			ins := s.builder().Insert(tableThumb).Columns(colUserID, colBlogID, colCreateTime)
			for _, actor := range chunk {
				ins.Values(actor, item, now)
			}
			ins.OnConflict(entsql.ConflictColumns(colUserID, colBlogID), entsql.DoNothing())

			n, err := execAffected(ctx, tx, ins)
			if err != nil {
				return nil, errors.Wrapf(err, "insert likes for item %d", item)
			}
			deltas[item] += n
		}
	}

	deletes := groupByItem(batch.Deletes)
	for _, item := range sortedKeys(deletes) {
		for chunk := range slices.Chunk(deletes[item], maxRowsPerStatement) {
			actors := make([]any, len(chunk))
			for i, actor := range chunk {
				actors[i] = actor
			}
			del := s.builder().Delete(tableThumb).Where(entsql.And(
				entsql.EQ(colBlogID, item),
				entsql.In(colUserID, actors...),
			))

			n, err := execAffected(ctx, tx, del)
			if err != nil {
				return nil, errors.Wrapf(err, "delete likes for item %d", item)
			}
			deltas[item] -= n
		}
	}

	for _, item := range sortedKeys(deltas) {
		delta := deltas[item]
		if delta == 0 {
			delete(deltas, item)
			continue
		}
		upsert := s.builder().Insert(tableBlog).
			Columns(colID, colThumbCount).
			Values(item, delta).
			OnConflict(
				entsql.ConflictColumns(colID),
				entsql.ResolveWith(func(u *entsql.UpdateSet) {
					u.Add(colThumbCount, delta)
				}),
			)
		if _, err := execAffected(ctx, tx, upsert); err != nil {
			return nil, errors.Wrapf(err, "update counter for item %d", item)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, errors.Wrap(err, "commit")
	}
	return deltas, nil
}

// ItemIDsByActor returns every item the actor has a durable like for.
func (s *Store) ItemIDsByActor(ctx context.Context, actor int64) ([]int64, error) {
	query, args := s.builder().
		Select(colBlogID).
		From(entsql.Table(tableThumb)).
		Where(entsql.EQ(colUserID, actor)).
		Query()

	ids, err := s.queryInts(ctx, query, args)
	return ids, errors.Wrapf(err, "items of actor %d", actor)
}

// Count returns the stored like counter of item, 0 when it has none.
func (s *Store) Count(ctx context.Context, item int64) (int64, error) {
	query, args := s.builder().
		Select(colThumbCount).
		From(entsql.Table(tableBlog)).
		Where(entsql.EQ(colID, item)).
		Query()

	counts, err := s.queryInts(ctx, query, args)
	if err != nil {
		return 0, errors.Wrapf(err, "count of item %d", item)
	}
	if len(counts) == 0 {
		return 0, nil
	}
	return counts[0], nil
}

// Rows returns the number of like relations stored for item.
func (s *Store) Rows(ctx context.Context, item int64) (int64, error) {
	query, args := s.builder().
		Select(entsql.Count("*")).
		From(entsql.Table(tableThumb)).
		Where(entsql.EQ(colBlogID, item)).
		Query()

	counts, err := s.queryInts(ctx, query, args)
	if err != nil {
		return 0, errors.Wrapf(err, "rows of item %d", item)
	}
	if len(counts) == 0 {
		return 0, nil
	}
	return counts[0], nil
}

func (s *Store) Close() error {
	return s.drv.Close()
}

func (s *Store) queryInts(ctx context.Context, query string, args []any) ([]int64, error) {
	var rows entsql.Rows
	if err := s.drv.Query(ctx, query, args, &rows); err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var v int64
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func execAffected(ctx context.Context, ex dialect.ExecQuerier, q entsql.Querier) (int64, error) {
	query, args := q.Query()
	var res sql.Result
	if err := ex.Exec(ctx, query, args, &res); err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func groupByItem(pairs []model.Pair) map[int64][]int64 {
	out := make(map[int64][]int64)
	seen := make(map[model.Pair]struct{}, len(pairs))
	for _, p := range pairs {
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		out[p.Item] = append(out[p.Item], p.Actor)
	}
	return out
}

func sortedKeys[V any](m map[int64]V) []int64 {
	keys := make([]int64, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
