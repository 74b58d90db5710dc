package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-sql-driver/mysql"

	"github.com/go-scripts/reviewscrape/pkg/common"
)

// Store keeps extracted review tables in MySQL, one set of rows per source URL
type Store struct {
	db     *sql.DB
	logger *log.Logger
}

// Source is a stored source URL and how many reviews it has
type Source struct {
	URL     string
	Reviews int
}

// Open connects to MySQL with dsn and checks the connection
func Open(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("invalid DSN: %w", err)
	}
	cfg.ParseTime = true

	connector, err := mysql.NewConnector(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connector: %w", err)
	}
	db := sql.OpenDB(connector)
	db.SetMaxOpenConns(4)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to %s: %w", cfg.Addr, err)
	}
	return New(db), nil
}

// New wraps an existing connection
func New(db *sql.DB) *Store {
	return &Store{db: db, logger: log.Default()}
}

// WithLogger sets the logger and returns s
func (s *Store) WithLogger(l *log.Logger) *Store {
	s.logger = l
	return s
}

// EnsureSchema creates the reviews table if it does not exist
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, createReviewsSQL); err != nil {
		return fmt.Errorf("failed to create reviews table: %w", err)
	}
	return nil
}

// SaveReviews replaces every stored review of source with reviews in one
// transaction. Absent ratings and texts are stored as NULL.
func (s *Store) SaveReviews(ctx context.Context, source string, reviews []common.Review) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx, deleteReviewsSQL, source)
	if err != nil {
		return fmt.Errorf("failed to delete previous reviews: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		s.logger.Debug("Replacing stored reviews", "source", source, "previous", n)
	}

	stmt, err := tx.PrepareContext(ctx, insertReviewSQL)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, r := range reviews {
		if _, err = stmt.ExecContext(ctx, source, i, valInt(r.Rating), valStr(r.Text)); err != nil {
			return fmt.Errorf("failed to insert review %d: %w", i, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit reviews: %w", err)
	}
	s.logger.Info("Stored reviews", "source", source, "count", len(reviews))
	return nil
}

// LoadReviews returns the reviews of source in document order
func (s *Store) LoadReviews(ctx context.Context, source string) ([]common.Review, error) {
	rows, err := s.db.QueryContext(ctx, selectReviewsSQL, source)
	if err != nil {
		return nil, fmt.Errorf("failed to query reviews: %w", err)
	}
	defer rows.Close()

	reviews := []common.Review{}
	for rows.Next() {
		var (
			position int
			rating   sql.NullInt64
			text     sql.NullString
		)
		if err := rows.Scan(&position, &rating, &text); err != nil {
			return nil, fmt.Errorf("failed to scan review: %w", err)
		}
		r := common.Review{Position: position}
		if rating.Valid {
			r.Rating = common.IntPtr(int(rating.Int64))
		}
		if text.Valid {
			r.Text = common.StringPtr(text.String)
		}
		reviews = append(reviews, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read reviews: %w", err)
	}
	return reviews, nil
}

// Sources lists the stored source URLs
func (s *Store) Sources(ctx context.Context) ([]Source, error) {
	rows, err := s.db.QueryContext(ctx, listSourcesSQL)
	if err != nil {
		return nil, fmt.Errorf("failed to list sources: %w", err)
	}
	defer rows.Close()

	var sources []Source
	for rows.Next() {
		var src Source
		if err := rows.Scan(&src.URL, &src.Reviews); err != nil {
			return nil, fmt.Errorf("failed to scan source: %w", err)
		}
		sources = append(sources, src)
	}
	return sources, rows.Err()
}

// Close closes the connection
func (s *Store) Close() error {
	return s.db.Close()
}

func valInt(p *int) any {
	if p == nil {
		return nil
	}
	return *p
}

func valStr(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}
