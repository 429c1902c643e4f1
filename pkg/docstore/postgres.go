package docstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/huandu/go-sqlbuilder"
	"github.com/lib/pq"

	"github.com/AndreasKatsouris/MerakiCaptivePortal-firebaseDB-sub003/pkg/database"
	"github.com/AndreasKatsouris/MerakiCaptivePortal-firebaseDB-sub003/pkg/tracing"
)

const documentsTable = "documents"

// PostgresStore keeps each document (the second path segment) as one jsonb row keyed by
// (collection, key). Paths deeper than a document are read-modify-written inside a
// transaction holding the row lock.
type PostgresStore struct {
	db     database.DB
	logger ectologger.Logger
}

func NewPostgresStore(db database.DB, logger ectologger.Logger) *PostgresStore {
	return &PostgresStore{
		db:     db,
		logger: logger,
	}
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
}

type documentRow struct {
	Key  string              `db:"key"`
	Data database.JSONB[any] `db:"data"`
}

func (s *PostgresStore) Get(ctx context.Context, path string) (any, error) {
	ctx, span := tracing.StartSpan(ctx, "docstore.PostgresStore.Get")
	defer span.End()

	parts, err := SplitPath(path)
	if err != nil {
		return nil, err
	}

	switch len(parts) {
	case 0:
		return nil, fmt.Errorf("%w: reading the root is not supported", ErrInvalidPath)
	case 1:
		entries, err := s.queryCollection(ctx, s.db, parts[0], Query{})
		if err != nil {
			return nil, err
		}
		if len(entries) == 0 {
			return nil, ErrNotFound
		}
		collection := make(map[string]any, len(entries))
		for _, e := range entries {
			collection[e.Key] = e.Value
		}
		return collection, nil
	default:
		doc, err := s.getDocument(ctx, s.db, parts[0], parts[1], false)
		if err != nil {
			return nil, err
		}
		node, ok := lookup(doc, parts[2:])
		if !ok {
			return nil, ErrNotFound
		}
		return node, nil
	}
}

func (s *PostgresStore) Set(ctx context.Context, path string, value any) error {
	ctx, span := tracing.StartSpan(ctx, "docstore.PostgresStore.Set")
	defer span.End()

	parts, err := SplitPath(path)
	if err != nil {
		return err
	}
	if len(parts) == 0 {
		return fmt.Errorf("%w: cannot overwrite the root", ErrInvalidPath)
	}
	tree, err := toTree(value)
	if err != nil {
		return err
	}

	err = database.WithTx(ctx, s.db, func(ctx context.Context, tx database.Tx) error {
		return s.setPath(ctx, tx, parts, tree)
	})
	if err != nil {
		tracing.RecordError(span, err)
		s.logger.WithContext(ctx).WithError(err).WithField("path", path).Error("Failed to set document")
	}
	return err
}

func (s *PostgresStore) Patch(ctx context.Context, updates map[string]any) error {
	ctx, span := tracing.StartSpan(ctx, "docstore.PostgresStore.Patch")
	defer span.End()

	ops, err := preparePatch(updates)
	if err != nil {
		return err
	}

	err = database.WithTx(ctx, s.db, func(ctx context.Context, tx database.Tx) error {
		for _, op := range ops {
			if err := s.setPath(ctx, tx, op.parts, op.value); err != nil {
				return fmt.Errorf("patch %q: %w", op.path, err)
			}
		}
		return nil
	})
	if err != nil {
		tracing.RecordError(span, err)
		s.logger.WithContext(ctx).WithError(err).WithField("paths", len(ops)).Error("Failed to apply patch")
	}
	return err
}

func (s *PostgresStore) Remove(ctx context.Context, path string) error {
	return s.Set(ctx, path, nil)
}

func (s *PostgresStore) RangeQuery(ctx context.Context, path string, q Query) ([]Entry, error) {
	ctx, span := tracing.StartSpan(ctx, "docstore.PostgresStore.RangeQuery")
	defer span.End()

	parts, err := SplitPath(path)
	if err != nil {
		return nil, err
	}

	switch len(parts) {
	case 0:
		return nil, fmt.Errorf("%w: querying the root is not supported", ErrInvalidPath)
	case 1:
		entries, err := s.queryCollection(ctx, s.db, parts[0], q)
		if err != nil {
			tracing.RecordError(span, err)
			s.logger.WithContext(ctx).WithError(err).WithField("collection", parts[0]).Error("Failed to query collection")
		}
		return entries, err
	default:
		node, err := s.Get(ctx, path)
		if errors.Is(err, ErrNotFound) {
			return []Entry{}, nil
		}
		if err != nil {
			return nil, err
		}
		return ApplyQuery(Children(node), q), nil
	}
}

func (s *PostgresStore) Transaction(ctx context.Context, path string, fn TxFunc) (any, error) {
	ctx, span := tracing.StartSpan(ctx, "docstore.PostgresStore.Transaction")
	defer span.End()

	parts, err := SplitPath(path)
	if err != nil {
		return nil, err
	}
	if len(parts) < 2 {
		return nil, fmt.Errorf("%w: transactions need a document path", ErrInvalidPath)
	}

	var result any
	err = database.WithTx(ctx, s.db, func(ctx context.Context, tx database.Tx) error {
		// serializes transactions on a document even while its row does not exist yet
		if _, err := tx.ExecContext(ctx, "SELECT pg_advisory_xact_lock(hashtext($1))", Join(parts[0], parts[1])); err != nil {
			return err
		}

		doc, err := s.getDocument(ctx, tx, parts[0], parts[1], true)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}
		current, _ := lookup(doc, parts[2:])

		next, err := fn(deepCopy(current))
		if err != nil {
			if errors.Is(err, ErrAbort) {
				result = current
			}
			return err
		}

		tree, err := toTree(next)
		if err != nil {
			return err
		}
		if err := s.writeDocument(ctx, tx, parts[0], parts[1], setIn(doc, parts[2:], tree)); err != nil {
			return err
		}
		result = tree
		return nil
	})
	if errors.Is(err, ErrAbort) {
		return result, ErrAbort
	}
	if err != nil {
		tracing.RecordError(span, err)
		return nil, err
	}
	return result, nil
}

// setPath writes one path inside an open transaction.
func (s *PostgresStore) setPath(ctx context.Context, tx querier, parts []string, value any) error {
	switch len(parts) {
	case 1:
		return s.replaceCollection(ctx, tx, parts[0], value)
	case 2:
		return s.writeDocument(ctx, tx, parts[0], parts[1], value)
	default:
		doc, err := s.getDocument(ctx, tx, parts[0], parts[1], true)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}
		return s.writeDocument(ctx, tx, parts[0], parts[1], setIn(doc, parts[2:], value))
	}
}

func (s *PostgresStore) replaceCollection(ctx context.Context, tx querier, collection string, value any) error {
	children, ok := value.(map[string]any)
	if value != nil && !ok {
		return fmt.Errorf("%w: collection %q can only hold documents", ErrInvalidPath, collection)
	}

	db := database.NewDeleteBuilder()
	db.DeleteFrom(documentsTable).Where(db.Equal("collection", collection))
	query, args := db.Build()
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return err
	}

	for key, doc := range children {
		if err := s.writeDocument(ctx, tx, collection, key, doc); err != nil {
			return err
		}
	}
	return nil
}

func (s *PostgresStore) getDocument(ctx context.Context, q querier, collection, key string, forUpdate bool) (any, error) {
	sb := database.NewSelectBuilder()
	sb.Select("data").From(documentsTable).Where(
		sb.Equal("collection", collection),
		sb.Equal("key", key),
	)
	if forUpdate {
		sb.ForUpdate()
	}

	query, args := sb.Build()
	var data database.JSONB[any]
	if err := q.GetContext(ctx, &data, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return data.GetValue(), nil
}

func (s *PostgresStore) writeDocument(ctx context.Context, q querier, collection, key string, doc any) error {
	if doc == nil {
		db := database.NewDeleteBuilder()
		db.DeleteFrom(documentsTable).Where(db.Equal("collection", collection), db.Equal("key", key))
		query, args := db.Build()
		_, err := q.ExecContext(ctx, query, args...)
		return err
	}

	ib := database.NewInsertBuilder()
	ib.InsertInto(documentsTable).
		Cols("collection", "key", "data", "updated_at").
		Values(collection, key, database.JSONB[any]{Data: doc}, time.Now().UTC())
	ib.OnConflictUpdate([]string{"collection", "key"}, "data", "updated_at")

	query, args := ib.Build()
	_, err := q.ExecContext(ctx, query, args...)
	return err
}

// queryCollection pushes ordering, bounds and limit down to SQL. Field ordering reproduces
// Compare through a (rank, number, string) sort tuple.
func (s *PostgresStore) queryCollection(ctx context.Context, q querier, collection string, query Query) ([]Entry, error) {
	sb := database.NewSelectBuilder()
	sb.Select("key", "data").From(documentsTable).Where(sb.Equal("collection", collection))

	const keyExpr = `key COLLATE "C"`

	if query.OrderBy == "" {
		if query.StartAt != nil {
			start, ok := query.StartAt.Value.(string)
			if !ok {
				return nil, fmt.Errorf("%w: key bounds must be strings", ErrInvalidPath)
			}
			sb.Where(sb.GTE(keyExpr, start))
		}
		if query.EndAt != nil {
			end, ok := query.EndAt.Value.(string)
			if !ok {
				return nil, fmt.Errorf("%w: key bounds must be strings", ErrInvalidPath)
			}
			sb.Where(sb.LTE(keyExpr, end))
		}
		if query.StartAfter != nil {
			sb.Where(sb.GreaterThan(keyExpr, query.StartAfter.Key))
		}
		sb.OrderBy(keyExpr)
	} else {
		field, err := SplitPath(query.OrderBy)
		if err != nil {
			return nil, err
		}

		if query.StartAt != nil {
			r, n, str := SortKey(query.StartAt.Value)
			rank, num, text := sortExprs(sb, field)
			sb.Where(fmt.Sprintf("(%s, %s, %s) >= (%s, %s, %s)", rank, num, text, sb.Var(r), sb.Var(n), sb.Var(str)))
		}
		if query.EndAt != nil {
			r, n, str := SortKey(query.EndAt.Value)
			rank, num, text := sortExprs(sb, field)
			sb.Where(fmt.Sprintf("(%s, %s, %s) <= (%s, %s, %s)", rank, num, text, sb.Var(r), sb.Var(n), sb.Var(str)))
		}
		if query.StartAfter != nil {
			r, n, str := SortKey(query.StartAfter.Value)
			rank, num, text := sortExprs(sb, field)
			sb.Where(fmt.Sprintf("(%s, %s, %s, %s) > (%s, %s, %s, %s)",
				rank, num, text, keyExpr, sb.Var(r), sb.Var(n), sb.Var(str), sb.Var(query.StartAfter.Key)))
		}

		rank, num, text := sortExprs(sb, field)
		sb.OrderBy(rank, num, text, keyExpr)
	}

	if query.Limit > 0 {
		sb.Limit(query.Limit)
	}

	sqlQuery, args := sb.Build()
	var rows []documentRow
	if err := q.SelectContext(ctx, &rows, sqlQuery, args...); err != nil {
		return nil, err
	}

	entries := make([]Entry, len(rows))
	for i, row := range rows {
		entries[i] = Entry{Key: row.Key, Value: row.Data.GetValue()}
	}
	return entries, nil
}

func sortExprs(sb *sqlbuilder.SelectBuilder, field []string) (rank, num, text string) {
	p := func() string { return sb.Var(pq.StringArray(field)) }

	rank = fmt.Sprintf(`(CASE jsonb_typeof(data #> %s) WHEN 'boolean' THEN CASE WHEN data #>> %s = 'true' THEN %d ELSE %d END `+
		`WHEN 'number' THEN %d WHEN 'string' THEN %d WHEN 'object' THEN %d WHEN 'array' THEN %d ELSE %d END)`,
		p(), p(), rankTrue, rankFalse, rankNumber, rankString, rankObject, rankObject, rankNull)
	num = fmt.Sprintf(`(CASE WHEN jsonb_typeof(data #> %s) = 'number' THEN (data #>> %s)::numeric ELSE 0 END)`, p(), p())
	text = fmt.Sprintf(`(CASE WHEN jsonb_typeof(data #> %s) = 'string' THEN data #>> %s ELSE '' END) COLLATE "C"`, p(), p())
	return rank, num, text
}
