package sqlrepo

import (
	"log"
)

const (
	DefaultSchema   = "dbo"
	DefaultPageSize = 20
)

// Config holds the settings shared by every statement a Repository creates.
type Config struct {
	// Schema is used for entities that do not name their own.
	Schema string
	// PageSize is the page length of paged selects without Top.
	PageSize int
	// NoLocks adds WITH (NOLOCK) to every table of new selects.
	NoLocks bool
	// Logger receives every executed statement. Nil disables logging.
	Logger *log.Logger
}

type Option func(*Config)

func WithSchema(schema string) Option {
	return func(c *Config) { c.Schema = schema }
}

func WithPageSize(size int) Option {
	return func(c *Config) { c.PageSize = size }
}

func WithNoLocks(noLocks bool) Option {
	return func(c *Config) { c.NoLocks = noLocks }
}

func WithLogger(logger *log.Logger) Option {
	return func(c *Config) { c.Logger = logger }
}

func defaultConfig() Config {
	return Config{Schema: DefaultSchema, PageSize: DefaultPageSize, Logger: log.Default()}
}

func (c Config) schemaOr(schema string) string {
	if schema != "" {
		return schema
	}
	if c.Schema != "" {
		return c.Schema
	}
	return DefaultSchema
}

func (c Config) pageSize() int {
	if c.PageSize > 0 {
		return c.PageSize
	}
	return DefaultPageSize
}

func (c Config) logf(format string, args ...any) {
	if c.Logger != nil {
		c.Logger.Printf(format, args...)
	}
}

// Repository creates statements bound to one executor and configuration.
type Repository struct {
	executor Executor
	config   Config
}

func New(executor Executor, options ...Option) *Repository {
	r := &Repository{executor: executor, config: defaultConfig()}
	for _, o := range options {
		o(&r.config)
	}
	return r
}

// Config returns the repository configuration.
func (r *Repository) Config() Config {
	return r.config
}

// Select starts a SELECT with entity as the anchor table.
func (r *Repository) Select(entity any) *SelectStatement {
	return newSelect(r.executor, r.config, entity)
}

// Update starts an UPDATE of entity's table.
func (r *Repository) Update(entity any) *UpdateStatement {
	return newUpdate(r.executor, r.config, entity)
}

// Insert starts an INSERT into entity's table.
func (r *Repository) Insert(entity any) *InsertStatement {
	return newInsert(r.executor, r.config, entity)
}
