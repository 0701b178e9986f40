// Package audit keeps a tamper-evident journal of posting operations. Events
// are hash-chained and persisted to SQLite so the trail survives restarts and
// any edit to a stored row breaks verification.
package audit

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event is one journal row. Hash covers every field before it plus the
// previous event's hash.
type Event struct {
	ID           string `json:"id"`
	Timestamp    string `json:"timestamp"`
	Actor        string `json:"actor"`
	Action       string `json:"action"`
	Subject      string `json:"subject"`
	Detail       string `json:"detail,omitempty"`
	PreviousHash string `json:"previous_hash"`
	Hash         string `json:"hash"`
}

func chainHash(prev, ts, id, actor, action, subject, detail string) string {
	input := strings.Join([]string{prev, ts, id, actor, action, subject, detail}, "|")
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:])
}

// Journal appends hash-chained events to a SQLite database.
type Journal struct {
	mu           sync.Mutex
	db           *sql.DB
	previousHash string
}

const journalSchema = `
CREATE TABLE IF NOT EXISTS audit_events (
	seq           INTEGER PRIMARY KEY AUTOINCREMENT,
	id            TEXT NOT NULL,
	timestamp     TEXT NOT NULL,
	actor         TEXT NOT NULL,
	action        TEXT NOT NULL,
	subject       TEXT NOT NULL,
	detail        TEXT NOT NULL DEFAULT '',
	previous_hash TEXT NOT NULL,
	hash          TEXT NOT NULL
)`

// Open prepares the journal over an open database, creating the table and
// resuming the chain from the last stored event.
func Open(ctx context.Context, db *sql.DB) (*Journal, error) {
	if _, err := db.ExecContext(ctx, journalSchema); err != nil {
		return nil, fmt.Errorf("failed to create audit table: %w", err)
	}

	j := &Journal{db: db, previousHash: strings.Repeat("0", 64)}

	var last string
	err := db.QueryRowContext(ctx, `SELECT hash FROM audit_events ORDER BY seq DESC LIMIT 1`).Scan(&last)
	if err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to read audit chain head: %w", err)
	}
	if err == nil {
		j.previousHash = last
	}
	return j, nil
}

// Record appends one event to the chain and persists it.
func (j *Journal) Record(ctx context.Context, actor, action, subject, detail string) (*Event, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	e := &Event{
		ID:           uuid.New().String(),
		Timestamp:    time.Now().UTC().Format(time.RFC3339Nano),
		Actor:        actor,
		Action:       action,
		Subject:      subject,
		Detail:       detail,
		PreviousHash: j.previousHash,
	}
	e.Hash = chainHash(e.PreviousHash, e.Timestamp, e.ID, e.Actor, e.Action, e.Subject, e.Detail)

	_, err := j.db.ExecContext(ctx, `
		INSERT INTO audit_events (id, timestamp, actor, action, subject, detail, previous_hash, hash)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Timestamp, e.Actor, e.Action, e.Subject, e.Detail, e.PreviousHash, e.Hash)
	if err != nil {
		return nil, fmt.Errorf("failed to persist audit event: %w", err)
	}

	j.previousHash = e.Hash
	return e, nil
}

// List returns every stored event in chain order.
func (j *Journal) List(ctx context.Context) ([]*Event, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT id, timestamp, actor, action, subject, detail, previous_hash, hash
		FROM audit_events ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit events: %w", err)
	}
	defer rows.Close()

	var out []*Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.Timestamp, &e.Actor, &e.Action, &e.Subject,
			&e.Detail, &e.PreviousHash, &e.Hash); err != nil {
			return nil, err
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

// VerifyChain checks that a slice of events forms an unbroken hash chain.
func VerifyChain(events []*Event) bool {
	for i, e := range events {
		if i > 0 && e.PreviousHash != events[i-1].Hash {
			return false
		}
		if chainHash(e.PreviousHash, e.Timestamp, e.ID, e.Actor, e.Action, e.Subject, e.Detail) != e.Hash {
			return false
		}
	}
	return true
}
