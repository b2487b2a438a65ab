package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
)

// MySQLStore maps the logical collection concept onto per-collection tables.
// Each table holds (id, doc) rows where doc is a JSON column, so callers get
// the same document semantics the Mongo backend provides. Tables are created
// lazily on first use.
type MySQLStore struct {
	db *sql.DB

	mu     sync.Mutex
	tables map[string]bool
}

// identRe restricts collection and field names to safe SQL identifiers.
// Names come from code constants, never from request input.
var identRe = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// OpenMySQL connects to MySQL and verifies the connection.
func OpenMySQL(user, pass, host, port, name string) (*MySQLStore, error) {
	auth := user
	if pass != "" {
		auth = fmt.Sprintf("%s:%s", user, pass)
	}
	// parseTime=true -> DATETIME -> time.Time | loc=UTC keeps times consistent
	dsn := fmt.Sprintf("%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=true&loc=UTC",
		auth, host, port, name)

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}

	// Pool settings
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(30 * time.Minute)

	// Ping with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	return &MySQLStore{db: db, tables: make(map[string]bool)}, nil
}

// NewMySQLStore wraps an existing connection. Used by tests.
func NewMySQLStore(db *sql.DB) *MySQLStore {
	return &MySQLStore{db: db, tables: make(map[string]bool)}
}

func (s *MySQLStore) ensureTable(ctx context.Context, collection string) error {
	if !identRe.MatchString(collection) {
		return fmt.Errorf("store: invalid collection name %q", collection)
	}
	s.mu.Lock()
	ready := s.tables[collection]
	s.mu.Unlock()
	if ready {
		return nil
	}
	q := fmt.Sprintf(
		"CREATE TABLE IF NOT EXISTS %s (id VARCHAR(36) PRIMARY KEY, doc JSON NOT NULL, created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP)",
		collection)
	if _, err := s.db.ExecContext(ctx, q); err != nil {
		return err
	}
	s.mu.Lock()
	s.tables[collection] = true
	s.mu.Unlock()
	return nil
}

// buildWhere turns an equality query into a WHERE clause over JSON paths.
func buildWhere(query Query) (string, []any, error) {
	if len(query) == 0 {
		return "", nil, nil
	}
	conds := make([]string, 0, len(query))
	args := make([]any, 0, len(query))
	for k, v := range query {
		if !identRe.MatchString(k) {
			return "", nil, fmt.Errorf("store: invalid field name %q", k)
		}
		conds = append(conds, fmt.Sprintf("JSON_UNQUOTE(JSON_EXTRACT(doc, '$.%s')) = ?", k))
		args = append(args, jsonScalar(v))
	}
	return " WHERE " + strings.Join(conds, " AND "), args, nil
}

// jsonScalar renders a query value the way JSON_UNQUOTE(JSON_EXTRACT(...))
// renders it, so bound parameters compare equal.
func jsonScalar(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case bool:
		if t {
			return "true"
		}
		return "false"
	case nil:
		return "null"
	default:
		b, _ := json.Marshal(v)
		return string(b)
	}
}

func (s *MySQLStore) InsertOne(ctx context.Context, collection string, doc Document) (string, error) {
	if err := s.ensureTable(ctx, collection); err != nil {
		return "", err
	}
	id, _ := doc["id"].(string)
	if id == "" {
		id = uuid.NewString()
		doc["id"] = id
	}
	body, err := json.Marshal(doc)
	if err != nil {
		return "", err
	}
	q := fmt.Sprintf("INSERT INTO %s (id, doc) VALUES (?, CAST(? AS JSON))", collection)
	if _, err := s.db.ExecContext(ctx, q, id, string(body)); err != nil {
		return "", err
	}
	return id, nil
}

func (s *MySQLStore) FindOne(ctx context.Context, collection string, query Query) (Document, error) {
	if err := s.ensureTable(ctx, collection); err != nil {
		return nil, err
	}
	where, args, err := buildWhere(query)
	if err != nil {
		return nil, err
	}
	q := fmt.Sprintf("SELECT doc FROM %s%s LIMIT 1", collection, where)
	var raw []byte
	if err := s.db.QueryRowContext(ctx, q, args...).Scan(&raw); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func (s *MySQLStore) FindMany(ctx context.Context, collection string, query Query, limit int) ([]Document, error) {
	if err := s.ensureTable(ctx, collection); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 100
	}
	where, args, err := buildWhere(query)
	if err != nil {
		return nil, err
	}
	q := fmt.Sprintf("SELECT doc FROM %s%s LIMIT ?", collection, where)
	rows, err := s.db.QueryContext(ctx, q, append(args, limit)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	docs := make([]Document, 0)
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var doc Document
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func (s *MySQLStore) UpdateOne(ctx context.Context, collection string, query Query, update Document) (bool, error) {
	if err := s.ensureTable(ctx, collection); err != nil {
		return false, err
	}
	where, args, err := buildWhere(query)
	if err != nil {
		return false, err
	}
	patch, err := json.Marshal(update)
	if err != nil {
		return false, err
	}
	q := fmt.Sprintf("UPDATE %s SET doc = JSON_MERGE_PATCH(doc, CAST(? AS JSON))%s LIMIT 1", collection, where)
	res, err := s.db.ExecContext(ctx, q, append([]any{string(patch)}, args...)...)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *MySQLStore) DeleteOne(ctx context.Context, collection string, query Query) (bool, error) {
	if err := s.ensureTable(ctx, collection); err != nil {
		return false, err
	}
	where, args, err := buildWhere(query)
	if err != nil {
		return false, err
	}
	q := fmt.Sprintf("DELETE FROM %s%s LIMIT 1", collection, where)
	res, err := s.db.ExecContext(ctx, q, args...)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *MySQLStore) AdjustOne(ctx context.Context, collection string, query Query, field string, delta int64, boundField string) (bool, error) {
	if err := s.ensureTable(ctx, collection); err != nil {
		return false, err
	}
	if !identRe.MatchString(field) {
		return false, fmt.Errorf("store: invalid field name %q", field)
	}
	where, args, err := buildWhere(query)
	if err != nil {
		return false, err
	}

	val := fmt.Sprintf("CAST(JSON_EXTRACT(doc, '$.%s') AS SIGNED)", field)
	var guard string
	var guardArgs []any
	switch {
	case delta > 0:
		if !identRe.MatchString(boundField) {
			return false, fmt.Errorf("store: invalid bound field %q", boundField)
		}
		guard = fmt.Sprintf("%s < CAST(JSON_EXTRACT(doc, '$.%s') AS SIGNED)", val, boundField)
	default:
		guard = fmt.Sprintf("%s >= ?", val)
		guardArgs = []any{-delta}
	}
	if where == "" {
		where = " WHERE " + guard
	} else {
		where += " AND " + guard
	}

	q := fmt.Sprintf("UPDATE %s SET doc = JSON_SET(doc, '$.%s', %s + ?)%s LIMIT 1",
		collection, field, val, where)
	res, err := s.db.ExecContext(ctx, q, append(append([]any{delta}, args...), guardArgs...)...)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *MySQLStore) Close(ctx context.Context) error { return s.db.Close() }
