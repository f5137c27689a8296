package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"alfalfa/internal/decoder"
	"alfalfa/internal/frame"
)

var (
	// ErrNotFound is returned when no entry matches a lookup.
	ErrNotFound = errors.New("catalog entry not found")
	// ErrLocked is returned when another process holds the catalog for writing.
	ErrLocked = errors.New("catalog is locked by another writer")
	// ErrReadOnly is returned by writes on a catalog opened with OpenReadOnly.
	ErrReadOnly = errors.New("catalog opened read-only")
)

// Entry is one serialized frame in the catalog.
type Entry struct {
	ID         string
	Stream     string
	FrameIndex int
	Width      uint16
	Height     uint16

	// Reconstructor names the pixel engine the fingerprints were computed
	// with. Fingerprints cover reference pictures, so a client must decode
	// with the same engine.
	Reconstructor string
	Shown         bool
	Frame         frame.SerializedFrame
	CreatedAt     time.Time
}

// StreamSummary aggregates the entries recorded for one stream.
type StreamSummary struct {
	Stream string
	Frames int
	Bytes  int64
}

// Store persists serialized frames in SQLite. Writers hold an exclusive file
// lock next to the database for as long as the store is open.
type Store struct {
	db       *sql.DB
	path     string
	lock     *flock.Flock
	readOnly bool
}

// Open opens or creates the catalog at path for writing.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure catalog directory: %w", err)
	}

	lock := flock.New(path + ".lock")
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire catalog lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrLocked, path)
	}

	store, err := open(path, false)
	if err != nil {
		_ = lock.Unlock()
		return nil, err
	}
	store.lock = lock
	return store, nil
}

// OpenReadOnly opens an existing catalog without taking the writer lock.
func OpenReadOnly(path string) (*Store, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	return open(path, true)
}

func open(path string, readOnly bool) (*Store, error) {
	// Pragmas go in the DSN so every pooled connection gets them.
	pragmas := url.Values{}
	pragmas.Add("_pragma", "busy_timeout(5000)")
	pragmas.Add("_pragma", "journal_mode(WAL)")
	if readOnly {
		pragmas.Add("_pragma", "query_only(1)")
	}
	db, err := sql.Open("sqlite", path+"?"+pragmas.Encode())
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	store := &Store{db: db, path: path, readOnly: readOnly}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database path.
func (s *Store) Path() string { return s.path }

// Close closes the database and releases the writer lock.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	err := s.db.Close()
	if s.lock != nil {
		if unlockErr := s.lock.Unlock(); unlockErr != nil && err == nil {
			err = fmt.Errorf("release catalog lock: %w", unlockErr)
		}
	}
	return err
}

// Put stores e and returns it with its ID and creation time. A frame already
// recorded for the same stream and endpoints is returned unchanged, with
// created set to false.
func (s *Store) Put(ctx context.Context, e Entry) (stored Entry, created bool, err error) {
	if s.readOnly {
		return Entry{}, false, ErrReadOnly
	}
	if e.Stream == "" {
		return Entry{}, false, errors.New("catalog entry needs a stream name")
	}
	e.ID = uuid.NewString()
	e.CreatedAt = time.Now().UTC()

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO serialized_frames (
            id, stream, frame_index, width, height, reconstructor, shown,
            source_fingerprint, target_fingerprint, chunk, size, created_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT (stream, source_fingerprint, target_fingerprint) DO NOTHING`,
		e.ID,
		e.Stream,
		e.FrameIndex,
		e.Width,
		e.Height,
		e.Reconstructor,
		e.Shown,
		e.Frame.Source.String(),
		e.Frame.Target.String(),
		e.Frame.Chunk,
		len(e.Frame.Chunk),
		e.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return Entry{}, false, fmt.Errorf("insert serialized frame: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 1 {
		return e, true, nil
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM serialized_frames
         WHERE stream = ? AND source_fingerprint = ? AND target_fingerprint = ?`,
		e.Stream, e.Frame.Source.String(), e.Frame.Target.String(),
	)
	existing, err := scanEntry(row)
	return existing, false, err
}

// Get returns the entry with the given ID.
func (s *Store) Get(ctx context.Context, id string) (Entry, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM serialized_frames WHERE id = ?`, id)
	return scanEntry(row)
}

// Candidates returns every frame that can be decoded from source, ordered by
// stream and frame index.
func (s *Store) Candidates(ctx context.Context, source decoder.Fingerprint) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+entryColumns+` FROM serialized_frames
         WHERE source_fingerprint = ?
         ORDER BY stream, frame_index`,
		source.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("query candidates: %w", err)
	}
	return scanEntries(rows)
}

// Stream returns the entries recorded for one stream in frame order.
func (s *Store) Stream(ctx context.Context, stream string) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+entryColumns+` FROM serialized_frames WHERE stream = ? ORDER BY frame_index`,
		stream,
	)
	if err != nil {
		return nil, fmt.Errorf("query stream: %w", err)
	}
	return scanEntries(rows)
}

// Streams summarises the catalog per stream.
func (s *Store) Streams(ctx context.Context) ([]StreamSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT stream, COUNT(1), COALESCE(SUM(size), 0) FROM serialized_frames GROUP BY stream ORDER BY stream`,
	)
	if err != nil {
		return nil, fmt.Errorf("query streams: %w", err)
	}
	defer rows.Close()

	var out []StreamSummary
	for rows.Next() {
		var sum StreamSummary
		if err := rows.Scan(&sum.Stream, &sum.Frames, &sum.Bytes); err != nil {
			return nil, fmt.Errorf("scan stream summary: %w", err)
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}

// Count returns the number of stored frames.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM serialized_frames`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count serialized frames: %w", err)
	}
	return n, nil
}

const entryColumns = `id, stream, frame_index, width, height, reconstructor, shown,
    source_fingerprint, target_fingerprint, chunk, created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (Entry, error) {
	var (
		e         Entry
		source    string
		target    string
		createdAt string
	)
	err := row.Scan(&e.ID, &e.Stream, &e.FrameIndex, &e.Width, &e.Height, &e.Reconstructor, &e.Shown,
		&source, &target, &e.Frame.Chunk, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, ErrNotFound
	}
	if err != nil {
		return Entry{}, fmt.Errorf("scan serialized frame: %w", err)
	}
	if e.Frame.Source, err = decoder.ParseFingerprint(source); err != nil {
		return Entry{}, fmt.Errorf("entry %s source: %w", e.ID, err)
	}
	if e.Frame.Target, err = decoder.ParseFingerprint(target); err != nil {
		return Entry{}, fmt.Errorf("entry %s target: %w", e.ID, err)
	}
	if e.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return Entry{}, fmt.Errorf("entry %s created_at: %w", e.ID, err)
	}
	return e, nil
}

func scanEntries(rows *sql.Rows) ([]Entry, error) {
	defer rows.Close()
	var out []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate serialized frames: %w", err)
	}
	return out, nil
}
