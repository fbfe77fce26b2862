package infra

import (
	"database/sql"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	sqlcipher "github.com/mutecomm/go-sqlcipher/v4"

	"github.com/eliteGoblin/focusd/inputguard/internal/domain"
)

// Ensure sqlcipher driver is registered.
var _ = sqlcipher.ErrBusy

const (
	activityDBName   = "activities.db"
	activityBlobName = "detected_activities"
	schemaVersion    = "1"
)

// EncryptedBackend implements domain.ActivityBackend on a SQLCipher
// database. The log is kept as a single row so its on-disk shape matches
// the file backend.
type EncryptedBackend struct {
	db     *sql.DB
	dbPath string
	now    func() time.Time
}

// NewEncryptedBackend opens (or creates) the encrypted database in dataDir.
// The key is used as the SQLCipher passphrase via PRAGMA key.
func NewEncryptedBackend(dataDir string, key []byte) (*EncryptedBackend, error) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, activityDBName)
	dsn := fmt.Sprintf("%s?_pragma_key=x'%s'&_pragma_cipher_page_size=4096",
		dbPath, hex.EncodeToString(key))
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open encrypted database: %w", err)
	}

	// A wrong key only surfaces on first real access.
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to encrypted database: %w", err)
	}

	b := &EncryptedBackend{db: db, dbPath: dbPath, now: time.Now}
	if err := b.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return b, nil
}

func (b *EncryptedBackend) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS activity_blobs (
		name TEXT PRIMARY KEY,
		payload BLOB NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	if _, err := b.db.Exec(schema); err != nil {
		return err
	}
	_, err := b.db.Exec(`INSERT OR IGNORE INTO meta (key, value) VALUES ('schema_version', ?)`, schemaVersion)
	return err
}

func (b *EncryptedBackend) Location() string {
	return b.dbPath
}

// Load returns nil when nothing has been saved yet.
func (b *EncryptedBackend) Load() ([]byte, error) {
	var payload []byte
	err := b.db.QueryRow(`SELECT payload FROM activity_blobs WHERE name = ?`, activityBlobName).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return payload, nil
}

func (b *EncryptedBackend) Save(data []byte) error {
	_, err := b.db.Exec(`
		INSERT OR REPLACE INTO activity_blobs (name, payload, updated_at)
		VALUES (?, ?, ?)`,
		activityBlobName, data, b.now().Unix(),
	)
	return err
}

// LastSaved returns when the log was last written, or zero if never.
func (b *EncryptedBackend) LastSaved() (time.Time, error) {
	var ts int64
	err := b.db.QueryRow(`SELECT updated_at FROM activity_blobs WHERE name = ?`, activityBlobName).Scan(&ts)
	if err == sql.ErrNoRows {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(ts, 0), nil
}

// Close releases the database connection.
func (b *EncryptedBackend) Close() error {
	if b.db != nil {
		return b.db.Close()
	}
	return nil
}

var _ domain.ActivityBackend = (*EncryptedBackend)(nil)
