// Package sqlstore implements the content repository on database/sql. The
// sqlite and mssql backends share this store and differ only in their
// Dialect: driver name, placeholder syntax and DDL types.
//
// The node table holds folders, content and files alike; properties, tags,
// categories and vanity URLs hang off the node identifier. The category tree
// is derived from the nodes stored under the system category root.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/ohler55/ojg/oj"

	"github.com/smonier/importContentFromJson/internal/repository"
	"github.com/smonier/importContentFromJson/internal/schema"
)

// CategoryRoot is the fixed ancestor of all category nodes.
const CategoryRoot = "/sites/systemsite/categories"

// CategoryType marks category nodes in the node table.
const CategoryType = "jnt:category"

// Dialect carries the per-engine SQL differences.
type Dialect struct {
	// Name tags errors ("sqlite", "mssql").
	Name string
	// Placeholder renders the n-th (1-based) bind parameter.
	Placeholder func(n int) string
	// CreateTables is the idempotent schema DDL, executed in order.
	CreateTables []string
}

// Store implements repository.Service and repository.Seeder.
type Store struct {
	db *sql.DB
	d  Dialect
}

// New wraps an open database handle. Call Init once before use.
func New(db *sql.DB, d Dialect) *Store {
	return &Store{db: db, d: d}
}

var (
	_ repository.Service = (*Store)(nil)
	_ repository.Seeder  = (*Store)(nil)
)

// Init creates the schema.
func (s *Store) Init(ctx context.Context) error {
	for _, ddl := range s.d.CreateTables {
		if _, err := s.db.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("%s: create schema: %w", s.d.Name, err)
		}
	}
	return nil
}

func (s *Store) Close() { _ = s.db.Close() }

// ph renders a query template, replacing each "?" with the dialect's
// positional placeholder.
func (s *Store) ph(q string) string {
	var b strings.Builder
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteString(s.d.Placeholder(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *Store) CheckPath(ctx context.Context, path string) (repository.PathInfo, error) {
	var id string
	err := s.db.QueryRowContext(ctx, s.ph(`SELECT uuid FROM nodes WHERE path = ?`), path).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return repository.PathInfo{}, nil
	}
	if err != nil {
		return repository.PathInfo{}, fmt.Errorf("%s: check path %s: %w", s.d.Name, path, err)
	}
	return repository.PathInfo{Exists: true, UUID: id}, nil
}

func (s *Store) insertNode(ctx context.Context, tx *sql.Tx, path, name, nodeType, mime string, binary []byte) (string, error) {
	id := uuid.NewString()
	_, err := tx.ExecContext(ctx,
		s.ph(`INSERT INTO nodes (uuid, path, name, node_type, mime_type, binary_data) VALUES (?, ?, ?, ?, ?, ?)`),
		id, path, name, nodeType, mime, binary)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (s *Store) CreatePath(ctx context.Context, parentPath, name, nodeType string) (string, error) {
	path := strings.TrimSuffix(parentPath, "/") + "/" + name

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("%s: create path %s: %w", s.d.Name, path, err)
	}
	defer tx.Rollback()

	id, err := s.insertNode(ctx, tx, path, name, nodeType, "", nil)
	if err != nil {
		return "", fmt.Errorf("%s: create path %s: %w", s.d.Name, path, err)
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("%s: create path %s: %w", s.d.Name, path, err)
	}
	return id, nil
}

func (s *Store) CreateContent(ctx context.Context, path, name, primaryNodeType string, props []repository.PropertyInput) (string, error) {
	full := strings.TrimSuffix(path, "/") + "/" + name

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("%s: create content %s: %w", s.d.Name, full, err)
	}
	defer tx.Rollback()

	id, err := s.insertNode(ctx, tx, full, name, primaryNodeType, "", nil)
	if err != nil {
		return "", fmt.Errorf("%s: create content %s: %w", s.d.Name, full, err)
	}
	if err := s.writeProps(ctx, tx, id, props); err != nil {
		return "", fmt.Errorf("%s: create content %s: %w", s.d.Name, full, err)
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("%s: create content %s: %w", s.d.Name, full, err)
	}
	return id, nil
}

func (s *Store) UpdateContent(ctx context.Context, idOrPath string, props []repository.PropertyInput) (string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("%s: update %s: %w", s.d.Name, idOrPath, err)
	}
	defer tx.Rollback()

	var id string
	err = tx.QueryRowContext(ctx,
		s.ph(`SELECT uuid FROM nodes WHERE uuid = ? OR path = ?`), idOrPath, idOrPath).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%s: update %s: %w", s.d.Name, idOrPath, repository.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("%s: update %s: %w", s.d.Name, idOrPath, err)
	}

	if _, err := tx.ExecContext(ctx, s.ph(`DELETE FROM node_props WHERE node_uuid = ?`), id); err != nil {
		return "", fmt.Errorf("%s: update %s: %w", s.d.Name, idOrPath, err)
	}
	if err := s.writeProps(ctx, tx, id, props); err != nil {
		return "", fmt.Errorf("%s: update %s: %w", s.d.Name, idOrPath, err)
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("%s: update %s: %w", s.d.Name, idOrPath, err)
	}
	return id, nil
}

func (s *Store) writeProps(ctx context.Context, tx *sql.Tx, id string, props []repository.PropertyInput) error {
	insert := s.ph(`INSERT INTO node_props (node_uuid, name, lang, ord, multi, value) VALUES (?, ?, ?, ?, ?, ?)`)
	for _, p := range props {
		if p.Values != nil {
			for i, v := range p.Values {
				if _, err := tx.ExecContext(ctx, insert, id, p.Name, p.Language, i, 1, valueText(v)); err != nil {
					return err
				}
			}
			continue
		}
		if _, err := tx.ExecContext(ctx, insert, id, p.Name, p.Language, 0, 0, valueText(p.Value)); err != nil {
			return err
		}
	}
	return nil
}

// valueText stores strings verbatim and everything else as JSON so values
// survive a round trip without driver-specific coercion.
func valueText(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return oj.JSON(v)
}

// Properties reads back the stored property rows of a node, multi-valued
// properties in insertion order. Used by the service layer and tests.
func (s *Store) Properties(ctx context.Context, id string) ([]repository.PropertyInput, error) {
	rows, err := s.db.QueryContext(ctx,
		s.ph(`SELECT name, lang, ord, multi, value FROM node_props WHERE node_uuid = ? ORDER BY name, ord`), id)
	if err != nil {
		return nil, fmt.Errorf("%s: read props %s: %w", s.d.Name, id, err)
	}
	defer rows.Close()

	var out []repository.PropertyInput
	for rows.Next() {
		var (
			name, lang, value string
			ord, multi        int
		)
		if err := rows.Scan(&name, &lang, &ord, &multi, &value); err != nil {
			return nil, fmt.Errorf("%s: read props %s: %w", s.d.Name, id, err)
		}
		if multi == 1 {
			if n := len(out); n > 0 && out[n-1].Name == name && out[n-1].Values != nil {
				out[n-1].Values = append(out[n-1].Values, value)
				continue
			}
			out = append(out, repository.PropertyInput{Name: name, Language: lang, Values: []any{value}})
			continue
		}
		out = append(out, repository.PropertyInput{Name: name, Language: lang, Value: value})
	}
	return out, rows.Err()
}

func (s *Store) ContentTypes(ctx context.Context, siteKey, language string) ([]schema.ContentType, error) {
	rows, err := s.db.QueryContext(ctx,
		s.ph(`SELECT name, display_name, icon FROM content_types WHERE site_key = ? ORDER BY display_name`), siteKey)
	if err != nil {
		return nil, fmt.Errorf("%s: content types %s: %w", s.d.Name, siteKey, err)
	}
	defer rows.Close()

	var out []schema.ContentType
	for rows.Next() {
		var t schema.ContentType
		if err := rows.Scan(&t.Name, &t.DisplayName, &t.Icon); err != nil {
			return nil, fmt.Errorf("%s: content types %s: %w", s.d.Name, siteKey, err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Store) ContentTypeProperties(ctx context.Context, typeName, language string) ([]schema.PropertyDefinition, error) {
	rows, err := s.db.QueryContext(ctx,
		s.ph(`SELECT name, display_name, required_type, multiple, i18n, mandatory, constraints
		      FROM property_defs WHERE type_name = ? ORDER BY name`), typeName)
	if err != nil {
		return nil, fmt.Errorf("%s: properties of %s: %w", s.d.Name, typeName, err)
	}
	defer rows.Close()

	var out []schema.PropertyDefinition
	for rows.Next() {
		var (
			d                         schema.PropertyDefinition
			multiple, i18n, mandatory int
			constraints               string
		)
		if err := rows.Scan(&d.Name, &d.DisplayName, &d.RequiredType, &multiple, &i18n, &mandatory, &constraints); err != nil {
			return nil, fmt.Errorf("%s: properties of %s: %w", s.d.Name, typeName, err)
		}
		d.Multiple = multiple == 1
		d.Internationalized = i18n == 1
		d.Mandatory = mandatory == 1
		if constraints != "" {
			d.Constraints = strings.Split(constraints, "\n")
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *Store) CheckImage(ctx context.Context, path string) (*repository.NodeInfo, error) {
	var info repository.NodeInfo
	err := s.db.QueryRowContext(ctx,
		s.ph(`SELECT uuid, name FROM nodes WHERE path = ?`), path).Scan(&info.UUID, &info.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: check image %s: %w", s.d.Name, path, err)
	}
	return &info, nil
}

func (s *Store) UploadFile(ctx context.Context, name, path, mimeType string, data []byte) (string, error) {
	full := strings.TrimSuffix(path, "/") + "/" + name

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("%s: upload %s: %w", s.d.Name, full, err)
	}
	defer tx.Rollback()

	id, err := s.insertNode(ctx, tx, full, name, "jnt:file", mimeType, data)
	if err != nil {
		return "", fmt.Errorf("%s: upload %s: %w", s.d.Name, full, err)
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("%s: upload %s: %w", s.d.Name, full, err)
	}
	return id, nil
}

func (s *Store) requireNode(ctx context.Context, id string) error {
	var one int
	err := s.db.QueryRowContext(ctx, s.ph(`SELECT 1 FROM nodes WHERE uuid = ?`), id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: node %s: %w", s.d.Name, id, repository.ErrNotFound)
	}
	return err
}

func (s *Store) AddTags(ctx context.Context, id string, tags []string) error {
	if err := s.requireNode(ctx, id); err != nil {
		return err
	}
	for _, tag := range tags {
		if _, err := s.db.ExecContext(ctx,
			s.ph(`INSERT INTO node_tags (node_uuid, tag) VALUES (?, ?)`), id, tag); err != nil {
			return fmt.Errorf("%s: add tag %q: %w", s.d.Name, tag, err)
		}
	}
	return nil
}

func (s *Store) AddCategories(ctx context.Context, id string, categoryIDs []string) error {
	if err := s.requireNode(ctx, id); err != nil {
		return err
	}
	for _, cat := range categoryIDs {
		if _, err := s.db.ExecContext(ctx,
			s.ph(`INSERT INTO node_cats (node_uuid, category_uuid) VALUES (?, ?)`), id, cat); err != nil {
			return fmt.Errorf("%s: add category %q: %w", s.d.Name, cat, err)
		}
	}
	return nil
}

func (s *Store) AddVanityURL(ctx context.Context, id, language, url string) error {
	if err := s.requireNode(ctx, id); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx,
		s.ph(`INSERT INTO vanity_urls (node_uuid, lang, url) VALUES (?, ?, ?)`), id, language, url); err != nil {
		return fmt.Errorf("%s: add vanity %q: %w", s.d.Name, url, err)
	}
	return nil
}

func (s *Store) CategoryTree(ctx context.Context) ([]repository.CategoryNode, error) {
	rows, err := s.db.QueryContext(ctx,
		s.ph(`SELECT path, name, uuid FROM nodes WHERE node_type = ? AND path LIKE ? ORDER BY path`),
		CategoryType, CategoryRoot+"/%")
	if err != nil {
		return nil, fmt.Errorf("%s: category tree: %w", s.d.Name, err)
	}
	defer rows.Close()

	type flat struct {
		path, name, uuid string
	}
	var cats []flat
	for rows.Next() {
		var f flat
		if err := rows.Scan(&f.path, &f.name, &f.uuid); err != nil {
			return nil, fmt.Errorf("%s: category tree: %w", s.d.Name, err)
		}
		cats = append(cats, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: category tree: %w", s.d.Name, err)
	}

	// Group direct children by parent path, then assemble recursively.
	// Rows arrive ordered by path, so sibling order is stable.
	children := make(map[string][]flat)
	for _, f := range cats {
		parent := f.path[:strings.LastIndex(f.path, "/")]
		children[parent] = append(children[parent], f)
	}
	var build func(f flat) repository.CategoryNode
	build = func(f flat) repository.CategoryNode {
		n := repository.CategoryNode{Name: f.name, UUID: f.uuid}
		for _, c := range children[f.path] {
			n.Children = append(n.Children, build(c))
		}
		return n
	}

	roots := children[CategoryRoot]
	out := make([]repository.CategoryNode, 0, len(roots))
	for _, f := range roots {
		out = append(out, build(f))
	}
	return out, nil
}

func (s *Store) SiteLanguages(ctx context.Context, siteKey string) ([]schema.Language, error) {
	rows, err := s.db.QueryContext(ctx,
		s.ph(`SELECT code, display_name FROM site_languages WHERE site_key = ? ORDER BY code`), siteKey)
	if err != nil {
		return nil, fmt.Errorf("%s: languages %s: %w", s.d.Name, siteKey, err)
	}
	defer rows.Close()

	var out []schema.Language
	for rows.Next() {
		var l schema.Language
		if err := rows.Scan(&l.Code, &l.DisplayName); err != nil {
			return nil, fmt.Errorf("%s: languages %s: %w", s.d.Name, siteKey, err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// SeedContentType registers a content type and its property definitions,
// replacing any previous definition of the same type.
func (s *Store) SeedContentType(ctx context.Context, siteKey string, t schema.ContentType, defs []schema.PropertyDefinition) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: seed type %s: %w", s.d.Name, t.Name, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, s.ph(`DELETE FROM content_types WHERE site_key = ? AND name = ?`), siteKey, t.Name); err != nil {
		return fmt.Errorf("%s: seed type %s: %w", s.d.Name, t.Name, err)
	}
	if _, err := tx.ExecContext(ctx, s.ph(`DELETE FROM property_defs WHERE type_name = ?`), t.Name); err != nil {
		return fmt.Errorf("%s: seed type %s: %w", s.d.Name, t.Name, err)
	}
	if _, err := tx.ExecContext(ctx,
		s.ph(`INSERT INTO content_types (site_key, name, display_name, icon) VALUES (?, ?, ?, ?)`),
		siteKey, t.Name, t.DisplayName, t.Icon); err != nil {
		return fmt.Errorf("%s: seed type %s: %w", s.d.Name, t.Name, err)
	}
	for _, d := range defs {
		if _, err := tx.ExecContext(ctx,
			s.ph(`INSERT INTO property_defs (type_name, name, display_name, required_type, multiple, i18n, mandatory, constraints)
			      VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
			t.Name, d.Name, d.DisplayName, d.RequiredType, b2i(d.Multiple), b2i(d.Internationalized), b2i(d.Mandatory),
			strings.Join(d.Constraints, "\n")); err != nil {
			return fmt.Errorf("%s: seed type %s: %w", s.d.Name, t.Name, err)
		}
	}
	return tx.Commit()
}

// SeedLanguages registers the languages of a site, replacing previous rows.
func (s *Store) SeedLanguages(ctx context.Context, siteKey string, langs []schema.Language) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: seed languages: %w", s.d.Name, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, s.ph(`DELETE FROM site_languages WHERE site_key = ?`), siteKey); err != nil {
		return fmt.Errorf("%s: seed languages: %w", s.d.Name, err)
	}
	for _, l := range langs {
		if _, err := tx.ExecContext(ctx,
			s.ph(`INSERT INTO site_languages (site_key, code, display_name) VALUES (?, ?, ?)`),
			siteKey, l.Code, l.DisplayName); err != nil {
			return fmt.Errorf("%s: seed languages: %w", s.d.Name, err)
		}
	}
	return tx.Commit()
}

func b2i(b bool) int {
	if b {
		return 1
	}
	return 0
}
