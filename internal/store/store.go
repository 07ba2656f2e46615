package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"github.com/nitesh/news_digest/internal/digest"
	"github.com/nitesh/news_digest/pkg/models"
)

// SQLStore persists article and preference snapshots. The same queries run
// on postgres (lib/pq) and sqlite; only the placeholder style differs.
type SQLStore struct {
	db *sqlx.DB
	sb sq.StatementBuilderType
}

// NewSQLStore wraps an open database. driverName picks the placeholder
// format: "postgres" uses $1, anything else uses ?.
func NewSQLStore(db *sql.DB, driverName string) *SQLStore {
	format := sq.PlaceholderFormat(sq.Question)
	if driverName == "postgres" {
		format = sq.Dollar
	}
	return &SQLStore{
		db: sqlx.NewDb(db, driverName),
		sb: sq.StatementBuilder.PlaceholderFormat(format),
	}
}

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS articles(
  id TEXT PRIMARY KEY,
  position INTEGER NOT NULL,
  title TEXT NOT NULL,
  source TEXT NOT NULL,
  author TEXT NOT NULL DEFAULT '',
  published_at TIMESTAMP NOT NULL,
  url TEXT NOT NULL DEFAULT '',
  image_url TEXT NOT NULL DEFAULT '',
  content TEXT NOT NULL DEFAULT '',
  summary TEXT NOT NULL DEFAULT '',
  sentiment TEXT NOT NULL,
  explanation TEXT NOT NULL DEFAULT '',
  topics TEXT NOT NULL DEFAULT '[]',
  is_read BOOLEAN NOT NULL DEFAULT FALSE,
  is_saved BOOLEAN NOT NULL DEFAULT FALSE
)`,
	`CREATE INDEX IF NOT EXISTS idx_articles_position ON articles(position)`,
	`CREATE INDEX IF NOT EXISTS idx_articles_published ON articles(published_at)`,
	`CREATE TABLE IF NOT EXISTS preferences(
  user_id TEXT PRIMARY KEY,
  topics TEXT NOT NULL DEFAULT '[]',
  keywords TEXT NOT NULL DEFAULT '[]',
  sources TEXT NOT NULL DEFAULT '[]',
  excluded_sources TEXT NOT NULL DEFAULT '[]'
)`,
}

// RunMigrations creates the tables if they do not exist yet.
func (p *SQLStore) RunMigrations(ctx context.Context) error {
	for _, stmt := range migrations {
		if _, err := p.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

var articleColumns = []string{
	"id", "title", "source", "author", "published_at", "url", "image_url",
	"content", "summary", "sentiment", "explanation", "topics", "is_read", "is_saved",
}

const articleUpsertSuffix = `ON CONFLICT (id) DO UPDATE SET
 position=EXCLUDED.position,
 is_read=EXCLUDED.is_read,
 is_saved=EXCLUDED.is_saved`

// SaveArticles upserts articles in one transaction. The slice order becomes
// the stored insertion order. Content columns are written on first insert
// only; later saves refresh position and flags.
func (p *SQLStore) SaveArticles(ctx context.Context, articles []models.Article) error {
	if len(articles) == 0 {
		return nil
	}
	tx, err := p.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}

	for i, a := range articles {
		query, args, err := p.sb.Insert("articles").
			Columns(append([]string{"position"}, articleColumns...)...).
			Values(i, a.ID, a.Title, a.Source, a.Author, a.PublishedAt.UTC(), a.URL, a.ImageURL,
				a.Content, a.Summary, string(a.Sentiment), a.Explanation, a.Topics, a.IsRead, a.IsSaved).
			Suffix(articleUpsertSuffix).
			ToSql()
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("build insert: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert article id=%s: %w", a.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// SaveArticleState writes the read and saved flags of one article.
func (p *SQLStore) SaveArticleState(ctx context.Context, id string, isRead, isSaved bool) error {
	query, args, err := p.sb.Update("articles").
		Set("is_read", isRead).
		Set("is_saved", isSaved).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}
	res, err := p.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update article id=%s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("update article id=%s: %w", id, digest.ErrNotFound)
	}
	return nil
}

// LoadArticles returns every stored article in insertion order.
func (p *SQLStore) LoadArticles(ctx context.Context) ([]models.Article, error) {
	query, args, err := p.sb.Select(articleColumns...).
		From("articles").
		OrderBy("position ASC", "id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}
	rows := []models.Article{}
	if err := p.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("load articles: %w", err)
	}
	for i := range rows {
		rows[i].PublishedAt = rows[i].PublishedAt.UTC()
	}
	return rows, nil
}

// SavePreferences upserts the profile snapshot for prefs.UserID.
func (p *SQLStore) SavePreferences(ctx context.Context, prefs models.Preferences) error {
	query, args, err := p.sb.Insert("preferences").
		Columns("user_id", "topics", "keywords", "sources", "excluded_sources").
		Values(prefs.UserID, prefs.Topics, prefs.Keywords, prefs.Sources, prefs.ExcludedSources).
		Suffix(`ON CONFLICT (user_id) DO UPDATE SET
 topics=EXCLUDED.topics,
 keywords=EXCLUDED.keywords,
 sources=EXCLUDED.sources,
 excluded_sources=EXCLUDED.excluded_sources`).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := p.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("save preferences user=%s: %w", prefs.UserID, err)
	}
	return nil
}

// LoadPreferences returns the stored profile for userID. found is false
// when the user has never saved one.
func (p *SQLStore) LoadPreferences(ctx context.Context, userID string) (models.Preferences, bool, error) {
	query, args, err := p.sb.Select("user_id", "topics", "keywords", "sources", "excluded_sources").
		From("preferences").
		Where(sq.Eq{"user_id": userID}).
		ToSql()
	if err != nil {
		return models.Preferences{}, false, fmt.Errorf("build select: %w", err)
	}
	var prefs models.Preferences
	if err := p.db.GetContext(ctx, &prefs, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Preferences{}, false, nil
		}
		return models.Preferences{}, false, fmt.Errorf("load preferences user=%s: %w", userID, err)
	}
	return prefs, true, nil
}
