package epaper

import (
	"bytes"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/bodgit/epaper/pack"
	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"
	_ "github.com/mattn/go-sqlite3"
)

// ErrFrameNotFound is returned when no frame has the requested ID.
var ErrFrameNotFound = errors.New("epaper: frame not found")

// Frame is a converted image stored in a FrameDB.
type Frame struct {
	ID      uuid.UUID
	SHA1    string
	Profile string
	Name    string
	Created time.Time
	Config  pack.Config
	// Buffer is only populated by FrameDB.Frame and FrameDB.FindFrame.
	Buffer *pack.Buffer
}

// FrameDB stores packed frames in a SQLite database keyed by the SHA-1 of
// the source image and the profile used to convert it.
type FrameDB struct {
	db  *sql.DB
	enc *zstd.Encoder
	dec *zstd.Decoder
}

// NewFrameDB opens or creates the database in file.
func NewFrameDB(file string) (*FrameDB, error) {
	db, err := sql.Open("sqlite3", fmt.Sprintf("%s?_foreign_keys=on&_busy_timeout=5000", file))
	if err != nil {
		return nil, err
	}
	// One writer at a time
	db.SetMaxOpenConns(1)

	if _, err = db.Exec("CREATE TABLE IF NOT EXISTS frame (id TEXT PRIMARY KEY NOT NULL, sha1 TEXT NOT NULL, profile TEXT NOT NULL, name TEXT NOT NULL, data BLOB NOT NULL, created INTEGER NOT NULL, UNIQUE(sha1, profile))"); err != nil {
		db.Close()
		return nil, err
	}

	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	if err != nil {
		db.Close()
		return nil, err
	}

	dec, err := zstd.NewReader(nil)
	if err != nil {
		enc.Close()
		db.Close()
		return nil, err
	}

	return &FrameDB{
		db:  db,
		enc: enc,
		dec: dec,
	}, nil
}

// Close closes the database.
func (db *FrameDB) Close() error {
	db.dec.Close()
	if err := db.enc.Close(); err != nil {
		db.db.Close()
		return err
	}
	return db.db.Close()
}

// AddFrame stores b, unless a frame with the same sha1 and profile already
// exists, and returns the ID of the frame. added reports whether b was
// stored.
func (db *FrameDB) AddFrame(sha1, profile, name string, b *pack.Buffer) (id uuid.UUID, added bool, err error) {
	var existing string
	switch err := db.db.QueryRow("SELECT id FROM frame WHERE sha1 = ? AND profile = ?", sha1, profile).Scan(&existing); err {
	case sql.ErrNoRows:
		data, err := b.MarshalBinary()
		if err != nil {
			return uuid.Nil, false, err
		}

		u, err := uuid.NewRandom()
		if err != nil {
			return uuid.Nil, false, err
		}

		result, err := db.db.Exec("INSERT OR IGNORE INTO frame (id, sha1, profile, name, data, created) VALUES (?, ?, ?, ?, ?, ?)", u.String(), sha1, profile, name, db.enc.EncodeAll(data, nil), time.Now().Unix())
		if err != nil {
			return uuid.Nil, false, err
		}
		n, err := result.RowsAffected()
		if err != nil {
			return uuid.Nil, false, err
		}
		if n == 0 {
			// Lost a race with another writer
			return db.AddFrame(sha1, profile, name, b)
		}
		return u, true, nil
	case nil:
		id, err := uuid.Parse(existing)
		return id, false, err
	default:
		return uuid.Nil, false, err
	}
}

const frameColumns = "id, sha1, profile, name, created, data"

type scanner interface {
	Scan(dest ...any) error
}

func (db *FrameDB) scanFrame(row scanner, withBuffer bool) (*Frame, error) {
	var (
		f       Frame
		id      string
		created int64
		data    []byte
	)
	if err := row.Scan(&id, &f.SHA1, &f.Profile, &f.Name, &created, &data); err != nil {
		return nil, err
	}

	var err error
	if f.ID, err = uuid.Parse(id); err != nil {
		return nil, err
	}
	f.Created = time.Unix(created, 0)

	raw, err := db.dec.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("epaper: frame %s: %w", id, err)
	}

	if !withBuffer {
		if f.Config, err = pack.DecodeConfig(bytes.NewReader(raw)); err != nil {
			return nil, fmt.Errorf("epaper: frame %s: %w", id, err)
		}
		return &f, nil
	}

	b, err := pack.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("epaper: frame %s: %w", id, err)
	}
	f.Config = pack.Config{
		Width:        b.Width,
		Height:       b.Height,
		BitsPerPixel: b.BitsPerPixel,
		Stride:       b.Stride,
		Order:        b.Order,
		Inverted:     b.Inverted,
	}
	f.Buffer = b

	return &f, nil
}

// FindFrame returns the frame converted from the image with the given sha1
// using profile, or nil if there isn't one.
func (db *FrameDB) FindFrame(sha1, profile string) (*Frame, error) {
	f, err := db.scanFrame(db.db.QueryRow("SELECT "+frameColumns+" FROM frame WHERE sha1 = ? AND profile = ?", sha1, profile), true)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, nil
	case err != nil:
		return nil, err
	}
	return f, nil
}

// Frame returns the frame with the given ID.
func (db *FrameDB) Frame(id uuid.UUID) (*Frame, error) {
	f, err := db.scanFrame(db.db.QueryRow("SELECT "+frameColumns+" FROM frame WHERE id = ?", id.String()), true)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, fmt.Errorf("%w: %s", ErrFrameNotFound, id)
	case err != nil:
		return nil, err
	}
	return f, nil
}

// Frames returns every stored frame, oldest first, without its Buffer.
func (db *FrameDB) Frames() ([]*Frame, error) {
	rows, err := db.db.Query("SELECT " + frameColumns + " FROM frame ORDER BY created, name, id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var frames []*Frame
	for rows.Next() {
		f, err := db.scanFrame(rows, false)
		if err != nil {
			return nil, err
		}
		frames = append(frames, f)
	}

	return frames, rows.Err()
}

// DeleteFrame removes the frame with the given ID.
func (db *FrameDB) DeleteFrame(id uuid.UUID) error {
	result, err := db.db.Exec("DELETE FROM frame WHERE id = ?", id.String())
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrFrameNotFound, id)
	}
	return nil
}
