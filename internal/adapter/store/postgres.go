package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/moltocasto/podcast-qa/internal/domain"
	"github.com/moltocasto/podcast-qa/internal/port"
)

// PostgresStore handles all relational database operations.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore opens a connection and returns a store instance.
func NewPostgresStore(databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// NewPostgresStoreWithDB wraps an already opened database handle.
func NewPostgresStoreWithDB(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Close closes the database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for use in transactions.
func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

// --- Podcasts ---

// ListPodcasts returns every podcast ordered by id.
func (s *PostgresStore) ListPodcasts(ctx context.Context) ([]domain.Podcast, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, COALESCE(feed_url, '') FROM podcasts ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list podcasts: %w", err)
	}
	defer rows.Close()

	var podcasts []domain.Podcast
	for rows.Next() {
		var p domain.Podcast
		if err := rows.Scan(&p.ID, &p.Name, &p.FeedURL); err != nil {
			return nil, fmt.Errorf("scan podcast: %w", err)
		}
		podcasts = append(podcasts, p)
	}
	return podcasts, rows.Err()
}

// GetPodcast retrieves a podcast by id.
func (s *PostgresStore) GetPodcast(ctx context.Context, podcastID int64) (*domain.Podcast, error) {
	var p domain.Podcast
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, COALESCE(feed_url, '') FROM podcasts WHERE id = $1`, podcastID,
	).Scan(&p.ID, &p.Name, &p.FeedURL)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, port.ErrPodcastNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get podcast: %w", err)
	}
	return &p, nil
}

// --- Episodes ---

const episodeColumns = `podcastid, episodeid, title, COALESCE(summary, ''), COALESCE(url, ''),
	COALESCE(authors, ''), published, COALESCE(duration, ''), questions, transcribed`

func scanEpisode(row interface{ Scan(...any) error }, extra ...any) (*domain.Episode, error) {
	var (
		e         domain.Episode
		published sql.NullTime
	)
	dest := []any{
		&e.PodcastID, &e.EpisodeID, &e.Title, &e.Summary, &e.URL,
		&e.Authors, &published, &e.Duration, pq.Array(&e.Questions), &e.Transcribed,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	e.Published = published.Time
	return &e, nil
}

// ListTranscribedEpisodes returns up to limit transcribed episodes, latest episode number first.
func (s *PostgresStore) ListTranscribedEpisodes(ctx context.Context, podcastID int64, limit int) ([]domain.Episode, error) {
	query := `SELECT ` + episodeColumns + `
	          FROM episodes
	          WHERE podcastid = $1 AND transcribed
	          ORDER BY episodeid DESC
	          LIMIT $2`

	rows, err := s.db.QueryContext(ctx, query, podcastID, limit)
	if err != nil {
		return nil, fmt.Errorf("list episodes: %w", err)
	}
	defer rows.Close()

	var episodes []domain.Episode
	for rows.Next() {
		e, err := scanEpisode(rows)
		if err != nil {
			return nil, fmt.Errorf("scan episode: %w", err)
		}
		episodes = append(episodes, *e)
	}
	return episodes, rows.Err()
}

// GetEpisode retrieves one episode including its transcript.
func (s *PostgresStore) GetEpisode(ctx context.Context, podcastID, episodeID int64) (*domain.Episode, error) {
	query := `SELECT ` + episodeColumns + `, transcript, COALESCE(transcripttext, '')
	          FROM episodes
	          WHERE podcastid = $1 AND episodeid = $2`

	var (
		transcript []byte
		text       string
	)
	e, err := scanEpisode(s.db.QueryRowContext(ctx, query, podcastID, episodeID), &transcript, &text)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, port.ErrEpisodeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get episode: %w", err)
	}
	e.Transcript = transcript
	e.TranscriptText = text
	return e, nil
}

// InsertEpisodes adds episodes that are not stored yet and returns how many were inserted.
func (s *PostgresStore) InsertEpisodes(ctx context.Context, podcastID int64, episodes []domain.Episode) (int, error) {
	if len(episodes) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO episodes (podcastid, episodeid, title, summary, url, authors, published, duration, transcribed)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, false)
		 ON CONFLICT (podcastid, episodeid) DO NOTHING`)
	if err != nil {
		return 0, fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for _, e := range episodes {
		var published sql.NullTime
		if !e.Published.IsZero() {
			published = sql.NullTime{Time: e.Published, Valid: true}
		}
		res, err := stmt.ExecContext(ctx,
			podcastID, e.EpisodeID, e.Title, e.Summary, e.URL, e.Authors, published, e.Duration,
		)
		if err != nil {
			return 0, fmt.Errorf("insert episode %d: %w", e.EpisodeID, err)
		}
		if n, err := res.RowsAffected(); err == nil {
			inserted += int(n)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return inserted, nil
}

// SaveTranscript stores the speech-to-text result and marks the episode transcribed.
func (s *PostgresStore) SaveTranscript(ctx context.Context, podcastID, episodeID int64, raw []byte, text string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE episodes SET transcript = $3::jsonb, transcripttext = $4, transcribed = true
		 WHERE podcastid = $1 AND episodeid = $2`,
		podcastID, episodeID, string(raw), text,
	)
	if err != nil {
		return fmt.Errorf("save transcript: %w", err)
	}
	return requireAffected(res, port.ErrEpisodeNotFound)
}

// SaveQuestions replaces the sample questions of an episode.
func (s *PostgresStore) SaveQuestions(ctx context.Context, podcastID, episodeID int64, questions []string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE episodes SET questions = $3 WHERE podcastid = $1 AND episodeid = $2`,
		podcastID, episodeID, pq.Array(questions),
	)
	if err != nil {
		return fmt.Errorf("save questions: %w", err)
	}
	return requireAffected(res, port.ErrEpisodeNotFound)
}

func requireAffected(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}

// --- Audit Logs ---

// WriteAudit implements middleware.AuditWriter.
func (s *PostgresStore) WriteAudit(action, resource, resourceID, details, ip, userAgent string) error {
	if details == "" {
		details = "{}"
	}
	query := `INSERT INTO audit_logs (action, resource, resource_id, details, ip, user_agent)
	          VALUES ($1, $2, $3, $4::jsonb, $5, $6)`
	_, err := s.db.ExecContext(context.Background(), query,
		action, resource, resourceID, details, ip, userAgent,
	)
	return err
}

// ListAuditLogs returns recent audit logs with optional filters.
func (s *PostgresStore) ListAuditLogs(ctx context.Context, limit int, action string) ([]domain.AuditLog, error) {
	query := `SELECT id, action, resource, resource_id, details, ip, user_agent, created_at
	          FROM audit_logs`
	args := []interface{}{}
	argIdx := 1

	if action != "" {
		query += fmt.Sprintf(" WHERE action = $%d", argIdx)
		args = append(args, action)
		argIdx++
	}

	query += " ORDER BY created_at DESC"

	if limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list audit logs: %w", err)
	}
	defer rows.Close()

	var logs []domain.AuditLog
	for rows.Next() {
		var l domain.AuditLog
		if err := rows.Scan(
			&l.ID, &l.Action, &l.Resource, &l.ResourceID,
			&l.Details, &l.IP, &l.UserAgent, &l.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan audit log: %w", err)
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}
