package stores

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	// SQLite driver
	_ "modernc.org/sqlite"

	"github.com/propgraph/propgraph/pkg/engine"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore implements engine.Store using SQLite.
type SQLiteStore struct {
	db   *sql.DB
	path string
	cfg  Config
}

// Config holds SQLite store configuration.
type Config struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// NewSQLiteStore creates a new SQLite store instance.
func NewSQLiteStore(cfg Config) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	// Set defaults
	if cfg.MaxOpenConns == 0 {
		cfg.MaxOpenConns = 25
	}
	if cfg.MaxIdleConns == 0 {
		cfg.MaxIdleConns = 5
	}
	if cfg.ConnMaxLifetime == 0 {
		cfg.ConnMaxLifetime = 5 * time.Minute
	}

	return &SQLiteStore{
		path: cfg.Path,
		cfg:  cfg,
	}, nil
}

// Init initializes the database connection and enables WAL mode.
func (s *SQLiteStore) Init(ctx context.Context) error {
	dsn := fmt.Sprintf("%s?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL&_txlock=immediate", s.path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(s.cfg.MaxOpenConns)
	db.SetMaxIdleConns(s.cfg.MaxIdleConns)
	db.SetConnMaxLifetime(s.cfg.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	// Ensure foreign keys are enabled (connection-level setting)
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s.db = db
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Migrate runs database migrations from the embedded filesystem.
func (s *SQLiteStore) Migrate(_ context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	driver, err := sqlite3.WithInstance(s.db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create database driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// Begin starts a new serializable transaction.
func (s *SQLiteStore) Begin(ctx context.Context) (engine.Tx, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not initialized")
	}
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{
		Isolation: sql.LevelSerializable,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return &sqliteTx{tx: tx}, nil
}

type sqliteTx struct {
	tx *sql.Tx
}

func (t *sqliteTx) Commit(_ context.Context) error {
	return t.tx.Commit()
}

func (t *sqliteTx) Rollback(_ context.Context) error {
	err := t.tx.Rollback()
	if errors.Is(err, sql.ErrTxDone) {
		return nil
	}
	return err
}

// contextColumns flattens an AttributeContext into its column values.
func contextColumns(c engine.AttributeContext) (kind, propID, internalID, externalID, schemaID, variantID, componentID string) {
	return string(c.Discriminator.Kind),
		string(c.Discriminator.PropID),
		string(c.Discriminator.InternalProviderID),
		string(c.Discriminator.ExternalProviderID),
		string(c.SchemaID),
		string(c.SchemaVariantID),
		string(c.ComponentID)
}

// contextFromColumns rebuilds an AttributeContext from its column values.
func contextFromColumns(kind, propID, internalID, externalID, schemaID, variantID, componentID string) engine.AttributeContext {
	var d engine.Discriminator
	switch engine.DiscriminatorKind(kind) {
	case engine.DiscriminatorProp:
		d = engine.PropDiscriminator(engine.PropID(propID))
	case engine.DiscriminatorInternalProvider:
		d = engine.InternalProviderDiscriminator(engine.InternalProviderID(internalID))
	case engine.DiscriminatorExternalProvider:
		d = engine.ExternalProviderDiscriminator(engine.ExternalProviderID(externalID))
	default:
		d = engine.NoDiscriminator()
	}
	return engine.AttributeContext{
		Discriminator:   d,
		SchemaID:        engine.SchemaID(schemaID),
		SchemaVariantID: engine.SchemaVariantID(variantID),
		ComponentID:     engine.ComponentID(componentID),
	}
}

func (t *sqliteTx) CreateSchema(ctx context.Context, schema *engine.Schema) error {
	query := `INSERT INTO schemas (id, name, created_at) VALUES (?, ?, ?)`
	if _, err := t.tx.ExecContext(ctx, query, schema.ID, schema.Name, schema.CreatedAt); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

func (t *sqliteTx) GetSchema(ctx context.Context, id engine.SchemaID) (*engine.Schema, error) {
	query := `SELECT id, name, created_at FROM schemas WHERE id = ?`
	schema := &engine.Schema{}
	err := t.tx.QueryRowContext(ctx, query, id).Scan(&schema.ID, &schema.Name, &schema.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("schema not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get schema: %w", err)
	}
	return schema, nil
}

func (t *sqliteTx) CreateSchemaVariant(ctx context.Context, variant *engine.SchemaVariant) error {
	query := `INSERT INTO schema_variants (id, schema_id, name, root_prop_id, created_at) VALUES (?, ?, ?, ?, ?)`
	if _, err := t.tx.ExecContext(ctx, query, variant.ID, variant.SchemaID, variant.Name, variant.RootPropID, variant.CreatedAt); err != nil {
		return fmt.Errorf("failed to create schema variant: %w", err)
	}
	return nil
}

func (t *sqliteTx) GetSchemaVariant(ctx context.Context, id engine.SchemaVariantID) (*engine.SchemaVariant, error) {
	query := `SELECT id, schema_id, name, root_prop_id, created_at FROM schema_variants WHERE id = ?`
	variant := &engine.SchemaVariant{}
	err := t.tx.QueryRowContext(ctx, query, id).Scan(&variant.ID, &variant.SchemaID, &variant.Name, &variant.RootPropID, &variant.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("schema variant not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get schema variant: %w", err)
	}
	return variant, nil
}

func (t *sqliteTx) UpdateSchemaVariant(ctx context.Context, variant *engine.SchemaVariant) error {
	query := `UPDATE schema_variants SET schema_id = ?, name = ?, root_prop_id = ? WHERE id = ?`
	result, err := t.tx.ExecContext(ctx, query, variant.SchemaID, variant.Name, variant.RootPropID, variant.ID)
	if err != nil {
		return fmt.Errorf("failed to update schema variant: %w", err)
	}
	return requireRow(result, "schema variant", string(variant.ID))
}

func (t *sqliteTx) CreateProp(ctx context.Context, prop *engine.Prop) error {
	query := `INSERT INTO props (id, schema_variant_id, parent_id, name, kind, created_at) VALUES (?, ?, ?, ?, ?, ?)`
	if _, err := t.tx.ExecContext(ctx, query, prop.ID, prop.SchemaVariantID, prop.ParentID, prop.Name, prop.Kind, prop.CreatedAt); err != nil {
		return fmt.Errorf("failed to create prop: %w", err)
	}
	return nil
}

func (t *sqliteTx) GetProp(ctx context.Context, id engine.PropID) (*engine.Prop, error) {
	query := `SELECT id, schema_variant_id, parent_id, name, kind, created_at FROM props WHERE id = ?`
	prop := &engine.Prop{}
	err := t.tx.QueryRowContext(ctx, query, id).Scan(&prop.ID, &prop.SchemaVariantID, &prop.ParentID, &prop.Name, &prop.Kind, &prop.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("prop not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get prop: %w", err)
	}
	return prop, nil
}

func (t *sqliteTx) ListProps(ctx context.Context, filter engine.PropFilter) ([]*engine.Prop, error) {
	query := `SELECT id, schema_variant_id, parent_id, name, kind, created_at FROM props ORDER BY rowid`
	rows, err := t.tx.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list props: %w", err)
	}
	defer rows.Close()

	var out []*engine.Prop
	for rows.Next() {
		prop := &engine.Prop{}
		if err := rows.Scan(&prop.ID, &prop.SchemaVariantID, &prop.ParentID, &prop.Name, &prop.Kind, &prop.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan prop: %w", err)
		}
		if filter.Match(prop) {
			out = append(out, prop)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating props: %w", err)
	}
	return out, nil
}

func (t *sqliteTx) CreateComponent(ctx context.Context, component *engine.Component) error {
	query := `INSERT INTO components (id, name, type, schema_id, schema_variant_id, created_at) VALUES (?, ?, ?, ?, ?, ?)`
	if _, err := t.tx.ExecContext(ctx, query, component.ID, component.Name, component.Type, component.SchemaID, component.SchemaVariantID, component.CreatedAt); err != nil {
		return fmt.Errorf("failed to create component: %w", err)
	}
	return nil
}

func (t *sqliteTx) GetComponent(ctx context.Context, id engine.ComponentID) (*engine.Component, error) {
	query := `SELECT id, name, type, schema_id, schema_variant_id, created_at FROM components WHERE id = ?`
	component := &engine.Component{}
	err := t.tx.QueryRowContext(ctx, query, id).Scan(&component.ID, &component.Name, &component.Type, &component.SchemaID, &component.SchemaVariantID, &component.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("component not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get component: %w", err)
	}
	return component, nil
}

func (t *sqliteTx) UpdateComponent(ctx context.Context, component *engine.Component) error {
	query := `UPDATE components SET name = ?, type = ? WHERE id = ?`
	result, err := t.tx.ExecContext(ctx, query, component.Name, component.Type, component.ID)
	if err != nil {
		return fmt.Errorf("failed to update component: %w", err)
	}
	return requireRow(result, "component", string(component.ID))
}

func (t *sqliteTx) CreateNode(ctx context.Context, node *engine.Node) error {
	query := `INSERT INTO nodes (id, component_id, created_at) VALUES (?, ?, ?)`
	if _, err := t.tx.ExecContext(ctx, query, node.ID, node.ComponentID, node.CreatedAt); err != nil {
		return fmt.Errorf("failed to create node: %w", err)
	}
	return nil
}

func (t *sqliteTx) GetNode(ctx context.Context, id engine.NodeID) (*engine.Node, error) {
	query := `SELECT id, component_id, created_at FROM nodes WHERE id = ?`
	node := &engine.Node{}
	err := t.tx.QueryRowContext(ctx, query, id).Scan(&node.ID, &node.ComponentID, &node.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("node not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get node: %w", err)
	}
	return node, nil
}

func (t *sqliteTx) CreateInternalProvider(ctx context.Context, provider *engine.InternalProvider) error {
	query := `
		INSERT INTO internal_providers (id, schema_id, schema_variant_id, prop_id, name, attribute_prototype_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	if _, err := t.tx.ExecContext(ctx, query, provider.ID, provider.SchemaID, provider.SchemaVariantID, provider.PropID, provider.Name, provider.AttributePrototypeID, provider.CreatedAt); err != nil {
		return fmt.Errorf("failed to create internal provider: %w", err)
	}
	return nil
}

func (t *sqliteTx) GetInternalProvider(ctx context.Context, id engine.InternalProviderID) (*engine.InternalProvider, error) {
	query := `
		SELECT id, schema_id, schema_variant_id, prop_id, name, attribute_prototype_id, created_at
		FROM internal_providers WHERE id = ?
	`
	provider := &engine.InternalProvider{}
	err := t.tx.QueryRowContext(ctx, query, id).Scan(&provider.ID, &provider.SchemaID, &provider.SchemaVariantID, &provider.PropID, &provider.Name, &provider.AttributePrototypeID, &provider.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("internal provider not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get internal provider: %w", err)
	}
	return provider, nil
}

func (t *sqliteTx) ListInternalProviders(ctx context.Context, filter engine.InternalProviderFilter) ([]*engine.InternalProvider, error) {
	query := `
		SELECT id, schema_id, schema_variant_id, prop_id, name, attribute_prototype_id, created_at
		FROM internal_providers ORDER BY rowid
	`
	rows, err := t.tx.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list internal providers: %w", err)
	}
	defer rows.Close()

	var out []*engine.InternalProvider
	for rows.Next() {
		provider := &engine.InternalProvider{}
		if err := rows.Scan(&provider.ID, &provider.SchemaID, &provider.SchemaVariantID, &provider.PropID, &provider.Name, &provider.AttributePrototypeID, &provider.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan internal provider: %w", err)
		}
		if filter.Match(provider) {
			out = append(out, provider)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating internal providers: %w", err)
	}
	return out, nil
}

func (t *sqliteTx) CreateExternalProvider(ctx context.Context, provider *engine.ExternalProvider) error {
	query := `
		INSERT INTO external_providers (id, schema_id, schema_variant_id, prop_id, name, attribute_prototype_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	if _, err := t.tx.ExecContext(ctx, query, provider.ID, provider.SchemaID, provider.SchemaVariantID, provider.PropID, provider.Name, provider.AttributePrototypeID, provider.CreatedAt); err != nil {
		return fmt.Errorf("failed to create external provider: %w", err)
	}
	return nil
}

func (t *sqliteTx) GetExternalProvider(ctx context.Context, id engine.ExternalProviderID) (*engine.ExternalProvider, error) {
	query := `
		SELECT id, schema_id, schema_variant_id, prop_id, name, attribute_prototype_id, created_at
		FROM external_providers WHERE id = ?
	`
	provider := &engine.ExternalProvider{}
	err := t.tx.QueryRowContext(ctx, query, id).Scan(&provider.ID, &provider.SchemaID, &provider.SchemaVariantID, &provider.PropID, &provider.Name, &provider.AttributePrototypeID, &provider.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("external provider not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get external provider: %w", err)
	}
	return provider, nil
}

func (t *sqliteTx) ListExternalProviders(ctx context.Context, filter engine.ExternalProviderFilter) ([]*engine.ExternalProvider, error) {
	query := `
		SELECT id, schema_id, schema_variant_id, prop_id, name, attribute_prototype_id, created_at
		FROM external_providers ORDER BY rowid
	`
	rows, err := t.tx.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list external providers: %w", err)
	}
	defer rows.Close()

	var out []*engine.ExternalProvider
	for rows.Next() {
		provider := &engine.ExternalProvider{}
		if err := rows.Scan(&provider.ID, &provider.SchemaID, &provider.SchemaVariantID, &provider.PropID, &provider.Name, &provider.AttributePrototypeID, &provider.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan external provider: %w", err)
		}
		if filter.Match(provider) {
			out = append(out, provider)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating external providers: %w", err)
	}
	return out, nil
}

func (t *sqliteTx) CreateSocket(ctx context.Context, socket *engine.Socket) error {
	query := `
		INSERT INTO sockets (id, schema_variant_id, name, kind, edge_kind, arity, internal_provider_id, external_provider_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	if _, err := t.tx.ExecContext(ctx, query, socket.ID, socket.SchemaVariantID, socket.Name, socket.Kind, socket.EdgeKind, socket.Arity, socket.InternalProviderID, socket.ExternalProviderID, socket.CreatedAt); err != nil {
		return fmt.Errorf("failed to create socket: %w", err)
	}
	return nil
}

func (t *sqliteTx) GetSocket(ctx context.Context, id engine.SocketID) (*engine.Socket, error) {
	query := `
		SELECT id, schema_variant_id, name, kind, edge_kind, arity, internal_provider_id, external_provider_id, created_at
		FROM sockets WHERE id = ?
	`
	socket := &engine.Socket{}
	err := t.tx.QueryRowContext(ctx, query, id).Scan(&socket.ID, &socket.SchemaVariantID, &socket.Name, &socket.Kind, &socket.EdgeKind, &socket.Arity, &socket.InternalProviderID, &socket.ExternalProviderID, &socket.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("socket not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get socket: %w", err)
	}
	return socket, nil
}

func (t *sqliteTx) ListSockets(ctx context.Context, filter engine.SocketFilter) ([]*engine.Socket, error) {
	query := `
		SELECT id, schema_variant_id, name, kind, edge_kind, arity, internal_provider_id, external_provider_id, created_at
		FROM sockets ORDER BY rowid
	`
	rows, err := t.tx.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list sockets: %w", err)
	}
	defer rows.Close()

	var out []*engine.Socket
	for rows.Next() {
		socket := &engine.Socket{}
		if err := rows.Scan(&socket.ID, &socket.SchemaVariantID, &socket.Name, &socket.Kind, &socket.EdgeKind, &socket.Arity, &socket.InternalProviderID, &socket.ExternalProviderID, &socket.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan socket: %w", err)
		}
		if filter.Match(socket) {
			out = append(out, socket)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sockets: %w", err)
	}
	return out, nil
}

func (t *sqliteTx) CreateEdge(ctx context.Context, edge *engine.Edge) error {
	query := `
		INSERT INTO edges (id, kind, from_node_id, from_component_id, from_socket_id, to_node_id, to_component_id, to_socket_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	if _, err := t.tx.ExecContext(ctx, query, edge.ID, edge.Kind, edge.FromNodeID, edge.FromComponentID, edge.FromSocketID, edge.ToNodeID, edge.ToComponentID, edge.ToSocketID, edge.CreatedAt); err != nil {
		return fmt.Errorf("failed to create edge: %w", err)
	}
	return nil
}

func (t *sqliteTx) ListEdges(ctx context.Context, filter engine.EdgeFilter) ([]*engine.Edge, error) {
	query := `
		SELECT id, kind, from_node_id, from_component_id, from_socket_id, to_node_id, to_component_id, to_socket_id, created_at
		FROM edges ORDER BY rowid
	`
	rows, err := t.tx.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list edges: %w", err)
	}
	defer rows.Close()

	var out []*engine.Edge
	for rows.Next() {
		edge := &engine.Edge{}
		if err := rows.Scan(&edge.ID, &edge.Kind, &edge.FromNodeID, &edge.FromComponentID, &edge.FromSocketID, &edge.ToNodeID, &edge.ToComponentID, &edge.ToSocketID, &edge.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan edge: %w", err)
		}
		if filter.Match(edge) {
			out = append(out, edge)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating edges: %w", err)
	}
	return out, nil
}

func (t *sqliteTx) CreateConnection(ctx context.Context, connection *engine.Connection) error {
	query := `
		INSERT INTO connections (id, edge_id, kind, from_node_id, from_socket_id, to_node_id, to_socket_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	if _, err := t.tx.ExecContext(ctx, query, connection.ID, connection.EdgeID, connection.Kind, connection.FromNodeID, connection.FromSocketID, connection.ToNodeID, connection.ToSocketID, connection.CreatedAt); err != nil {
		return fmt.Errorf("failed to create connection: %w", err)
	}
	return nil
}

func (t *sqliteTx) ListConnections(ctx context.Context, filter engine.ConnectionFilter) ([]*engine.Connection, error) {
	query := `
		SELECT id, edge_id, kind, from_node_id, from_socket_id, to_node_id, to_socket_id, created_at
		FROM connections ORDER BY rowid
	`
	rows, err := t.tx.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list connections: %w", err)
	}
	defer rows.Close()

	var out []*engine.Connection
	for rows.Next() {
		connection := &engine.Connection{}
		if err := rows.Scan(&connection.ID, &connection.EdgeID, &connection.Kind, &connection.FromNodeID, &connection.FromSocketID, &connection.ToNodeID, &connection.ToSocketID, &connection.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan connection: %w", err)
		}
		if filter.Match(connection) {
			out = append(out, connection)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating connections: %w", err)
	}
	return out, nil
}

func (t *sqliteTx) CreateValue(ctx context.Context, value *engine.AttributeValue) error {
	kind, propID, internalID, externalID, schemaID, variantID, componentID := contextColumns(value.Context)
	indexMap, err := marshalIndexMap(value.IndexMap)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO attribute_values (
			id, discriminator_kind, prop_id, internal_provider_id, external_provider_id,
			schema_id, schema_variant_id, component_id,
			key, func_binding_return_value_id, proxy_for_attribute_value_id, sealed_proxy,
			index_map, parent_attribute_value_id, attribute_prototype_id, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	if _, err := t.tx.ExecContext(ctx, query,
		value.ID, kind, propID, internalID, externalID,
		schemaID, variantID, componentID,
		value.Key, value.FuncBindingReturnValueID, value.ProxyForAttributeValueID, value.SealedProxy,
		indexMap, value.ParentAttributeValueID, value.AttributePrototypeID, value.CreatedAt, value.UpdatedAt,
	); err != nil {
		return fmt.Errorf("failed to create attribute value: %w", err)
	}
	return nil
}

const attributeValueColumns = `
	id, discriminator_kind, prop_id, internal_provider_id, external_provider_id,
	schema_id, schema_variant_id, component_id,
	key, func_binding_return_value_id, proxy_for_attribute_value_id, sealed_proxy,
	index_map, parent_attribute_value_id, attribute_prototype_id, created_at, updated_at
`

func scanAttributeValue(scan func(dest ...any) error) (*engine.AttributeValue, error) {
	value := &engine.AttributeValue{}
	var kind, propID, internalID, externalID, schemaID, variantID, componentID string
	var indexMap sql.NullString
	err := scan(
		&value.ID, &kind, &propID, &internalID, &externalID,
		&schemaID, &variantID, &componentID,
		&value.Key, &value.FuncBindingReturnValueID, &value.ProxyForAttributeValueID, &value.SealedProxy,
		&indexMap, &value.ParentAttributeValueID, &value.AttributePrototypeID, &value.CreatedAt, &value.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	value.Context = contextFromColumns(kind, propID, internalID, externalID, schemaID, variantID, componentID)
	if indexMap.Valid {
		im := engine.NewIndexMap()
		if err := json.Unmarshal([]byte(indexMap.String), im); err != nil {
			return nil, fmt.Errorf("failed to decode index map: %w", err)
		}
		value.IndexMap = im
	}
	return value, nil
}

func marshalIndexMap(im *engine.IndexMap) (sql.NullString, error) {
	if im == nil {
		return sql.NullString{}, nil
	}
	raw, err := json.Marshal(im)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("failed to encode index map: %w", err)
	}
	return sql.NullString{String: string(raw), Valid: true}, nil
}

func (t *sqliteTx) GetValue(ctx context.Context, id engine.AttributeValueID) (*engine.AttributeValue, error) {
	query := `SELECT ` + attributeValueColumns + ` FROM attribute_values WHERE id = ?`
	row := t.tx.QueryRowContext(ctx, query, id)
	value, err := scanAttributeValue(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("attribute value not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get attribute value: %w", err)
	}
	return value, nil
}

func (t *sqliteTx) UpdateValue(ctx context.Context, value *engine.AttributeValue) error {
	indexMap, err := marshalIndexMap(value.IndexMap)
	if err != nil {
		return err
	}
	query := `
		UPDATE attribute_values
		SET key = ?, func_binding_return_value_id = ?, proxy_for_attribute_value_id = ?, sealed_proxy = ?,
			index_map = ?, parent_attribute_value_id = ?, attribute_prototype_id = ?, updated_at = ?
		WHERE id = ?
	`
	result, err := t.tx.ExecContext(ctx, query,
		value.Key, value.FuncBindingReturnValueID, value.ProxyForAttributeValueID, value.SealedProxy,
		indexMap, value.ParentAttributeValueID, value.AttributePrototypeID, value.UpdatedAt, value.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update attribute value: %w", err)
	}
	return requireRow(result, "attribute value", string(value.ID))
}

func (t *sqliteTx) DeleteValue(ctx context.Context, id engine.AttributeValueID) error {
	result, err := t.tx.ExecContext(ctx, `DELETE FROM attribute_values WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete attribute value: %w", err)
	}
	return requireRow(result, "attribute value", string(id))
}

func (t *sqliteTx) ListValues(ctx context.Context, filter engine.ValueFilter) ([]*engine.AttributeValue, error) {
	query := `SELECT ` + attributeValueColumns + ` FROM attribute_values ORDER BY rowid`
	rows, err := t.tx.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list attribute values: %w", err)
	}
	defer rows.Close()

	var out []*engine.AttributeValue
	for rows.Next() {
		value, err := scanAttributeValue(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan attribute value: %w", err)
		}
		if filter.Match(value) {
			out = append(out, value)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating attribute values: %w", err)
	}
	return out, nil
}

func (t *sqliteTx) CreatePrototype(ctx context.Context, prototype *engine.AttributePrototype) error {
	kind, propID, internalID, externalID, schemaID, variantID, componentID := contextColumns(prototype.Context)
	query := `
		INSERT INTO attribute_prototypes (
			id, discriminator_kind, prop_id, internal_provider_id, external_provider_id,
			schema_id, schema_variant_id, component_id,
			func_id, static_args, key, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	if _, err := t.tx.ExecContext(ctx, query,
		prototype.ID, kind, propID, internalID, externalID,
		schemaID, variantID, componentID,
		prototype.FuncID, nullableRaw(prototype.StaticArgs), prototype.Key, prototype.CreatedAt, prototype.UpdatedAt,
	); err != nil {
		return fmt.Errorf("failed to create attribute prototype: %w", err)
	}
	return nil
}

const attributePrototypeColumns = `
	id, discriminator_kind, prop_id, internal_provider_id, external_provider_id,
	schema_id, schema_variant_id, component_id,
	func_id, static_args, key, created_at, updated_at
`

func scanAttributePrototype(scan func(dest ...any) error) (*engine.AttributePrototype, error) {
	prototype := &engine.AttributePrototype{}
	var kind, propID, internalID, externalID, schemaID, variantID, componentID string
	var staticArgs sql.NullString
	err := scan(
		&prototype.ID, &kind, &propID, &internalID, &externalID,
		&schemaID, &variantID, &componentID,
		&prototype.FuncID, &staticArgs, &prototype.Key, &prototype.CreatedAt, &prototype.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	prototype.Context = contextFromColumns(kind, propID, internalID, externalID, schemaID, variantID, componentID)
	if staticArgs.Valid {
		prototype.StaticArgs = json.RawMessage(staticArgs.String)
	}
	return prototype, nil
}

func nullableRaw(raw json.RawMessage) sql.NullString {
	if raw == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(raw), Valid: true}
}

func (t *sqliteTx) GetPrototype(ctx context.Context, id engine.AttributePrototypeID) (*engine.AttributePrototype, error) {
	query := `SELECT ` + attributePrototypeColumns + ` FROM attribute_prototypes WHERE id = ?`
	row := t.tx.QueryRowContext(ctx, query, id)
	prototype, err := scanAttributePrototype(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("attribute prototype not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get attribute prototype: %w", err)
	}
	return prototype, nil
}

func (t *sqliteTx) UpdatePrototype(ctx context.Context, prototype *engine.AttributePrototype) error {
	query := `
		UPDATE attribute_prototypes
		SET func_id = ?, static_args = ?, key = ?, updated_at = ?
		WHERE id = ?
	`
	result, err := t.tx.ExecContext(ctx, query, prototype.FuncID, nullableRaw(prototype.StaticArgs), prototype.Key, prototype.UpdatedAt, prototype.ID)
	if err != nil {
		return fmt.Errorf("failed to update attribute prototype: %w", err)
	}
	return requireRow(result, "attribute prototype", string(prototype.ID))
}

func (t *sqliteTx) ListPrototypes(ctx context.Context, filter engine.PrototypeFilter) ([]*engine.AttributePrototype, error) {
	query := `SELECT ` + attributePrototypeColumns + ` FROM attribute_prototypes ORDER BY rowid`
	rows, err := t.tx.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list attribute prototypes: %w", err)
	}
	defer rows.Close()

	var out []*engine.AttributePrototype
	for rows.Next() {
		prototype, err := scanAttributePrototype(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan attribute prototype: %w", err)
		}
		if filter.Match(prototype) {
			out = append(out, prototype)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating attribute prototypes: %w", err)
	}
	return out, nil
}

func (t *sqliteTx) CreatePrototypeArgument(ctx context.Context, argument *engine.AttributePrototypeArgument) error {
	query := `
		INSERT INTO attribute_prototype_arguments (
			id, prototype_id, name, internal_provider_id, external_provider_id,
			tail_component_id, head_component_id, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	if _, err := t.tx.ExecContext(ctx, query,
		argument.ID, argument.PrototypeID, argument.Name, argument.InternalProviderID, argument.ExternalProviderID,
		argument.TailComponentID, argument.HeadComponentID, argument.CreatedAt,
	); err != nil {
		return fmt.Errorf("failed to create prototype argument: %w", err)
	}
	return nil
}

func (t *sqliteTx) ListPrototypeArguments(ctx context.Context, filter engine.ArgumentFilter) ([]*engine.AttributePrototypeArgument, error) {
	query := `
		SELECT id, prototype_id, name, internal_provider_id, external_provider_id, tail_component_id, head_component_id, created_at
		FROM attribute_prototype_arguments ORDER BY rowid
	`
	rows, err := t.tx.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list prototype arguments: %w", err)
	}
	defer rows.Close()

	var out []*engine.AttributePrototypeArgument
	for rows.Next() {
		argument := &engine.AttributePrototypeArgument{}
		if err := rows.Scan(&argument.ID, &argument.PrototypeID, &argument.Name, &argument.InternalProviderID, &argument.ExternalProviderID, &argument.TailComponentID, &argument.HeadComponentID, &argument.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan prototype argument: %w", err)
		}
		if filter.Match(argument) {
			out = append(out, argument)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating prototype arguments: %w", err)
	}
	return out, nil
}

func (t *sqliteTx) CreateReturnValue(ctx context.Context, rv *engine.FuncBindingReturnValue) error {
	query := `INSERT INTO func_binding_return_values (id, func_id, value, created_at) VALUES (?, ?, ?, ?)`
	if _, err := t.tx.ExecContext(ctx, query, rv.ID, rv.FuncID, nullableRaw(rv.Value), rv.CreatedAt); err != nil {
		return fmt.Errorf("failed to create return value: %w", err)
	}
	return nil
}

func (t *sqliteTx) GetReturnValue(ctx context.Context, id engine.FuncBindingReturnValueID) (*engine.FuncBindingReturnValue, error) {
	query := `SELECT id, func_id, value, created_at FROM func_binding_return_values WHERE id = ?`
	rv := &engine.FuncBindingReturnValue{}
	var value sql.NullString
	err := t.tx.QueryRowContext(ctx, query, id).Scan(&rv.ID, &rv.FuncID, &value, &rv.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("return value not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get return value: %w", err)
	}
	if value.Valid {
		rv.Value = json.RawMessage(value.String)
	}
	return rv, nil
}

func requireRow(result sql.Result, entity, id string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%s not found: %s", entity, id)
	}
	return nil
}
