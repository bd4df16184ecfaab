package db

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
	"github.com/rs/zerolog/log"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"

	"document-qa/internal/config"
	"document-qa/internal/models"
)

// Chunk is one stored chunk record, tagged with the generation that wrote it.
type Chunk struct {
	bun.BaseModel `bun:"table:document_chunks,alias:c"`
	ID            int64           `bun:"id,pk,autoincrement"`
	Generation    int64           `bun:"generation,notnull"`
	DocumentID    string          `bun:"document_id,notnull"`
	DocumentName  string          `bun:"document_name,notnull"`
	Content       string          `bun:"content,notnull"`
	Embedding     pgvector.Vector `bun:"embedding,notnull,type:vector"`
}

// GenerationPointer is a single-row table naming the committed generation.
type GenerationPointer struct {
	bun.BaseModel `bun:"table:document_generation,alias:g"`
	ID            int   `bun:"id,pk"`
	Current       int64 `bun:"current,notnull"`
}

type matchRow struct {
	Content      string  `bun:"content"`
	DocumentName string  `bun:"document_name"`
	Score        float32 `bun:"score"`
}

func NewDB(sqldb *sql.DB, debug bool) *bun.DB {
	db := bun.NewDB(sqldb, pgdialect.New())
	if debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}
	return db
}

// ConnectDB opens a lazy connection pool with the configured driver.
func ConnectDB(cfg *config.DatabaseConfig) (*sql.DB, error) {
	switch cfg.Driver {
	case "pgdriver", "":
		return sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.DSN))), nil
	case "pq":
		return sql.Open("postgres", cfg.DSN)
	default:
		return nil, fmt.Errorf("unknown database driver: %s", cfg.Driver)
	}
}

// Store is the overwrite-mode pgvector store. Searches read the generation in
// the pointer row; Commit flips the pointer and deletes every other generation
// in one transaction.
type Store struct {
	db        *bun.DB
	dimension int
}

func NewStore(db *bun.DB, dimension int) *Store {
	return &Store{db: db, dimension: dimension}
}

// InitDB creates the extension, both tables and the pointer row.
func (s *Store) InitDB(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("creating vector extension: %w", err)
	}
	if _, err := s.db.NewCreateTable().Model((*Chunk)(nil)).IfNotExists().Exec(ctx); err != nil {
		return fmt.Errorf("creating chunk table: %w", err)
	}
	if _, err := s.db.NewCreateTable().Model((*GenerationPointer)(nil)).IfNotExists().Exec(ctx); err != nil {
		return fmt.Errorf("creating generation table: %w", err)
	}
	_, err := s.db.NewInsert().Model(&GenerationPointer{ID: 1}).On("CONFLICT (id) DO NOTHING").Exec(ctx)
	return err
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Reset(ctx context.Context) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewTruncateTable().Model((*Chunk)(nil)).Exec(ctx); err != nil {
			return err
		}
		return setCurrent(ctx, tx, 0)
	})
}

// Insert stages batch under its generation, clearing rows a failed attempt at
// the same uncommitted generation may have left. The committed generation is
// never written to.
func (s *Store) Insert(ctx context.Context, batch models.Batch) error {
	if err := batch.Validate(); err != nil {
		return err
	}
	if len(batch.Texts) == 0 {
		return nil
	}

	rows := make([]Chunk, len(batch.Texts))
	for i := range batch.Texts {
		if len(batch.Vectors[i]) != s.dimension {
			return fmt.Errorf("%w: vector %d has %d dimensions, want %d", models.ErrDimensionMismatch, i, len(batch.Vectors[i]), s.dimension)
		}
		rows[i] = Chunk{
			Generation:   int64(batch.Generation),
			DocumentID:   batch.DocumentID,
			DocumentName: batch.DocumentName,
			Content:      batch.Texts[i],
			Embedding:    pgvector.NewVector(batch.Vectors[i]),
		}
	}

	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var current int64
		err := tx.NewSelect().Model((*GenerationPointer)(nil)).Column("current").Where("id = ?", 1).For("UPDATE").Scan(ctx, &current)
		if err != nil {
			return err
		}
		if current == int64(batch.Generation) {
			return fmt.Errorf("%w: %d", models.ErrGenerationCommitted, batch.Generation)
		}

		_, err = tx.NewDelete().
			Model((*Chunk)(nil)).
			Where("generation = ?", int64(batch.Generation)).
			Exec(ctx)
		if err != nil {
			return err
		}
		_, err = tx.NewInsert().Model(&rows).Exec(ctx)
		return err
	})
}

func (s *Store) Commit(ctx context.Context, gen uint64) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := setCurrent(ctx, tx, gen); err != nil {
			return err
		}
		res, err := tx.NewDelete().Model((*Chunk)(nil)).Where("generation <> ?", int64(gen)).Exec(ctx)
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err == nil {
			log.Debug().Int64("deleted", n).Uint64("generation", gen).Msg("Dropped superseded chunks")
		}
		return nil
	})
}

func setCurrent(ctx context.Context, tx bun.Tx, gen uint64) error {
	_, err := tx.NewUpdate().
		Model((*GenerationPointer)(nil)).
		Set("current = ?", int64(gen)).
		Where("id = ?", 1).
		Exec(ctx)
	return err
}

func (s *Store) Generation(ctx context.Context) (uint64, error) {
	var current int64
	err := s.db.NewSelect().Model((*GenerationPointer)(nil)).Column("current").Where("id = ?", 1).Scan(ctx, &current)
	if err != nil {
		return 0, err
	}
	return uint64(current), nil
}

func (s *Store) searchQuery(vector []float32, k int) *bun.SelectQuery {
	vec := pgvector.NewVector(vector)
	current := s.db.NewSelect().Model((*GenerationPointer)(nil)).Column("current").Where("id = ?", 1)
	return s.db.NewSelect().
		Model((*Chunk)(nil)).
		Column("content", "document_name").
		ColumnExpr("1 - (embedding <=> ?) AS score", vec).
		Where("generation = (?)", current).
		OrderExpr("embedding <=> ?", vec).
		Limit(k)
}

// Search ranks the committed generation by cosine similarity.
func (s *Store) Search(ctx context.Context, vector []float32, k int) ([]models.Match, error) {
	if len(vector) != s.dimension {
		return nil, fmt.Errorf("%w: query has %d dimensions, want %d", models.ErrDimensionMismatch, len(vector), s.dimension)
	}
	if k <= 0 {
		return nil, nil
	}

	var rows []matchRow
	if err := s.searchQuery(vector, k).Scan(ctx, &rows); err != nil {
		return nil, err
	}

	matches := make([]models.Match, len(rows))
	for i, r := range rows {
		matches[i] = models.Match{Text: r.Content, Score: r.Score, DocumentName: r.DocumentName}
	}
	return matches, nil
}
