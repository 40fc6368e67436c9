package store

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/signalsfoundry/sdh-provisioner/internal/inventory"
	"github.com/signalsfoundry/sdh-provisioner/model"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 0 - initial schema
// 1 - index on relationships.name
const currentSchemaVersion = 1

// Store is the SQLite journal behind the inventory. It implements
// inventory.Journal.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

var _ inventory.Journal = (*Store)(nil)

// Open creates or opens the database at path (":memory:" works for tests)
// and applies pragmas and migrations.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	// SQLite allows a single writer; one connection also keeps :memory:
	// databases alive between calls.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, err
	}
	if err := applySchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db, now: time.Now}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("execute %q: %w", pragma, err)
		}
	}
	return nil
}

func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}

	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}
	if version < 1 {
		if _, err := db.Exec("CREATE INDEX IF NOT EXISTS idx_relationships_name ON relationships (name)"); err != nil {
			return fmt.Errorf("migrate to v1: %w", err)
		}
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}

// Apply writes one inventory changeset in a single transaction.
func (s *Store) Apply(ctx context.Context, cs inventory.Changeset) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	now := s.now().UnixNano()
	for _, obj := range cs.CreatedObjects {
		attrs, err := encodeMap(obj.Attributes)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO objects (class_name, id, name, parent_class, parent_id, attributes, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			obj.ClassName, obj.ID, obj.Name, obj.Parent.ClassName, obj.Parent.ID, attrs, now)
		if err != nil {
			return fmt.Errorf("insert object %s: %w", obj.Ref().Key(), err)
		}
	}
	for _, rel := range cs.CreatedRelationships {
		props, err := encodeMap(rel.Properties)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO relationships (id, name, a_class, a_id, b_class, b_id, properties)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			rel.ID, rel.Name, rel.A.ClassName, rel.A.ID, rel.B.ClassName, rel.B.ID, props)
		if err != nil {
			return fmt.Errorf("insert relationship %s: %w", rel.ID, err)
		}
	}
	for _, id := range cs.DeletedRelationships {
		if _, err := tx.ExecContext(ctx, `DELETE FROM relationships WHERE id = ?`, id); err != nil {
			return fmt.Errorf("delete relationship %s: %w", id, err)
		}
	}
	for _, ref := range cs.DeletedObjects {
		if _, err := tx.ExecContext(ctx, `DELETE FROM objects WHERE class_name = ? AND id = ?`, ref.ClassName, ref.ID); err != nil {
			return fmt.Errorf("delete object %s: %w", ref.Key(), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Load returns every persisted object, in creation order, and every
// relationship.
func (s *Store) Load(ctx context.Context) ([]model.BusinessObject, []model.Relationship, error) {
	objects, err := s.loadObjects(ctx)
	if err != nil {
		return nil, nil, err
	}
	rels, err := s.loadRelationships(ctx)
	if err != nil {
		return nil, nil, err
	}
	return objects, rels, nil
}

func (s *Store) loadObjects(ctx context.Context) ([]model.BusinessObject, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT class_name, id, name, parent_class, parent_id, attributes FROM objects ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("query objects: %w", err)
	}
	defer rows.Close()

	var objects []model.BusinessObject
	for rows.Next() {
		var (
			obj   model.BusinessObject
			attrs string
		)
		if err := rows.Scan(&obj.ClassName, &obj.ID, &obj.Name, &obj.Parent.ClassName, &obj.Parent.ID, &attrs); err != nil {
			return nil, fmt.Errorf("scan object: %w", err)
		}
		if obj.Attributes, err = decodeMap(attrs); err != nil {
			return nil, fmt.Errorf("object %s: %w", obj.Ref().Key(), err)
		}
		objects = append(objects, obj)
	}
	return objects, rows.Err()
}

func (s *Store) loadRelationships(ctx context.Context) ([]model.Relationship, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, a_class, a_id, b_class, b_id, properties FROM relationships ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("query relationships: %w", err)
	}
	defer rows.Close()

	var rels []model.Relationship
	for rows.Next() {
		var (
			rel   model.Relationship
			props string
		)
		if err := rows.Scan(&rel.ID, &rel.Name, &rel.A.ClassName, &rel.A.ID, &rel.B.ClassName, &rel.B.ID, &props); err != nil {
			return nil, fmt.Errorf("scan relationship: %w", err)
		}
		if rel.Properties, err = decodeMap(props); err != nil {
			return nil, fmt.Errorf("relationship %s: %w", rel.ID, err)
		}
		rels = append(rels, rel)
	}
	return rels, rows.Err()
}

// Restore loads the persisted inventory into st.
func (s *Store) Restore(ctx context.Context, st *inventory.State) (objects int, err error) {
	objs, rels, err := s.Load(ctx)
	if err != nil {
		return 0, err
	}
	if err := st.Restore(objs, rels); err != nil {
		return 0, fmt.Errorf("restore inventory: %w", err)
	}
	return len(objs), nil
}

func encodeMap(m map[string]string) (string, error) {
	if len(m) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("encode properties: %w", err)
	}
	return string(b), nil
}

func decodeMap(s string) (map[string]string, error) {
	if s == "" || s == "{}" {
		return nil, nil
	}
	var m map[string]string
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return nil, fmt.Errorf("decode properties: %w", err)
	}
	return m, nil
}
