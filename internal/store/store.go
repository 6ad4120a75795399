// Package store persists repositories in a SQL database
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/cockroachdb/errors"
	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver
	_ "github.com/lib/pq"              // postgres driver
	_ "github.com/mattn/go-sqlite3"    // sqlite3 driver
	"go.uber.org/zap"

	"github.com/modelgraph/modelgraph/internal/model"
	"github.com/modelgraph/modelgraph/internal/serialization"
)

// Drivers lists the supported database/sql driver names
var Drivers = []string{"sqlite3", "postgres", "pgx"}

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS elements (
	id VARCHAR(36) PRIMARY KEY,
	type TEXT NOT NULL,
	root BOOLEAN NOT NULL DEFAULT FALSE,
	position INTEGER NOT NULL
)`,
	`CREATE TABLE IF NOT EXISTS attribute_values (
	element_id VARCHAR(36) NOT NULL REFERENCES elements(id) ON DELETE CASCADE,
	feature TEXT NOT NULL,
	value TEXT NOT NULL,
	PRIMARY KEY (element_id, feature)
)`,
	`CREATE TABLE IF NOT EXISTS reference_values (
	element_id VARCHAR(36) NOT NULL REFERENCES elements(id) ON DELETE CASCADE,
	feature TEXT NOT NULL,
	position INTEGER NOT NULL,
	ref TEXT NOT NULL,
	PRIMARY KEY (element_id, feature, position)
)`,
}

// Store saves and loads repositories through database/sql
type Store struct {
	db     *sql.DB
	driver string
	logger *zap.Logger
}

// Option configures a Store
type Option func(*Store)

// WithLogger sets the store logger
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// Open connects to the database identified by driver and dsn
func Open(driver, dsn string, opts ...Option) (*Store, error) {
	if !slices.Contains(Drivers, driver) {
		return nil, errors.WithHint(errors.Newf("unsupported store driver %q", driver),
			"use one of "+strings.Join(Drivers, ", "))
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %s store", driver)
	}
	if driver == "sqlite3" {
		// a single connection keeps in-memory databases alive across calls
		db.SetMaxOpenConns(1)
	}
	return New(db, driver, opts...), nil
}

// New wraps an open database
func New(db *sql.DB, driver string, opts ...Option) *Store {
	s := &Store{db: db, driver: driver, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DB returns the underlying database
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate creates the store tables if they do not exist
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return errors.Wrap(err, "failed to create store tables")
		}
	}
	return nil
}

// Save replaces the stored model with the content of repo in one transaction
func (s *Store) Save(ctx context.Context, repo *model.Repository) error {
	doc := serialization.Encode(repo)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	for _, table := range []string{"reference_values", "attribute_values", "elements"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return errors.Wrapf(err, "failed to clear %s", table)
		}
	}

	insertElement := s.rebind("INSERT INTO elements (id, type, root, position) VALUES (?, ?, ?, ?)")
	insertAttribute := s.rebind("INSERT INTO attribute_values (element_id, feature, value) VALUES (?, ?, ?)")
	insertReference := s.rebind("INSERT INTO reference_values (element_id, feature, position, ref) VALUES (?, ?, ?, ?)")

	for i, ed := range doc.Elements {
		if _, err := tx.ExecContext(ctx, insertElement, ed.ID, ed.Type, ed.Root, i); err != nil {
			return errors.Wrapf(err, "failed to insert element %s", ed.ID)
		}
		for _, name := range sortedKeys(ed.Attributes) {
			value, err := json.Marshal(ed.Attributes[name])
			if err != nil {
				return errors.Wrapf(err, "failed to encode %s of %s", name, ed.ID)
			}
			if _, err := tx.ExecContext(ctx, insertAttribute, ed.ID, name, string(value)); err != nil {
				return errors.Wrapf(err, "failed to insert attribute %s of %s", name, ed.ID)
			}
		}
		for _, name := range sortedKeys(ed.References) {
			for pos, ref := range ed.References[name] {
				if _, err := tx.ExecContext(ctx, insertReference, ed.ID, name, pos, ref); err != nil {
					return errors.Wrapf(err, "failed to insert reference %s of %s", name, ed.ID)
				}
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "failed to commit transaction")
	}
	s.logger.Info("model saved", zap.String("driver", s.driver), zap.Int("elements", len(doc.Elements)))
	return nil
}

// Load adds the stored model to repo
func (s *Store) Load(ctx context.Context, repo *model.Repository, opts serialization.Options) error {
	doc, err := s.read(ctx)
	if err != nil {
		return err
	}
	if err := serialization.Decode(repo, doc, opts); err != nil {
		return err
	}
	s.logger.Info("model loaded", zap.String("driver", s.driver), zap.Int("elements", len(doc.Elements)))
	return nil
}

func (s *Store) read(ctx context.Context) (*serialization.Document, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	doc := &serialization.Document{}
	index := make(map[string]int)

	rows, err := tx.QueryContext(ctx, "SELECT id, type, root FROM elements ORDER BY position")
	if err != nil {
		return nil, errors.Wrap(err, "failed to query elements")
	}
	for rows.Next() {
		var ed serialization.ElementDoc
		if err := rows.Scan(&ed.ID, &ed.Type, &ed.Root); err != nil {
			rows.Close()
			return nil, errors.Wrap(err, "failed to scan element")
		}
		index[ed.ID] = len(doc.Elements)
		doc.Elements = append(doc.Elements, ed)
	}
	if err := closeRows(rows); err != nil {
		return nil, err
	}

	rows, err = tx.QueryContext(ctx, "SELECT element_id, feature, value FROM attribute_values")
	if err != nil {
		return nil, errors.Wrap(err, "failed to query attributes")
	}
	for rows.Next() {
		var id, feature, raw string
		if err := rows.Scan(&id, &feature, &raw); err != nil {
			rows.Close()
			return nil, errors.Wrap(err, "failed to scan attribute")
		}
		ed, err := element(doc, index, id)
		if err != nil {
			rows.Close()
			return nil, err
		}
		value, err := decodeValue(raw)
		if err != nil {
			rows.Close()
			return nil, errors.Wrapf(err, "attribute %s of %s", feature, id)
		}
		if ed.Attributes == nil {
			ed.Attributes = make(map[string]any)
		}
		ed.Attributes[feature] = value
	}
	if err := closeRows(rows); err != nil {
		return nil, err
	}

	rows, err = tx.QueryContext(ctx,
		"SELECT element_id, feature, ref FROM reference_values ORDER BY element_id, feature, position")
	if err != nil {
		return nil, errors.Wrap(err, "failed to query references")
	}
	for rows.Next() {
		var id, feature, ref string
		if err := rows.Scan(&id, &feature, &ref); err != nil {
			rows.Close()
			return nil, errors.Wrap(err, "failed to scan reference")
		}
		ed, err := element(doc, index, id)
		if err != nil {
			rows.Close()
			return nil, err
		}
		if ed.References == nil {
			ed.References = make(map[string][]string)
		}
		ed.References[feature] = append(ed.References[feature], ref)
	}
	if err := closeRows(rows); err != nil {
		return nil, err
	}
	return doc, nil
}

// rebind converts ? placeholders to $n for postgres drivers
func (s *Store) rebind(query string) string {
	if s.driver == "sqlite3" {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func element(doc *serialization.Document, index map[string]int, id string) (*serialization.ElementDoc, error) {
	i, ok := index[id]
	if !ok {
		return nil, errors.Newf("row references unknown element %s", id)
	}
	return &doc.Elements[i], nil
}

func decodeValue(raw string) (any, error) {
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

func closeRows(rows *sql.Rows) error {
	if err := rows.Err(); err != nil {
		rows.Close()
		return errors.Wrap(err, "failed to read rows")
	}
	return rows.Close()
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
