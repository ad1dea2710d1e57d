// Package repositories persists moderation state in BadgerDB.
package repositories

import (
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

const (
	warnPrefix = "warn:"
	histPrefix = "hist:"
)

// WarningLedger persists the last enforcement instant per chat in
// BadgerDB, plus an append-only history of warnings for inspection.
//
// Keys:
//
//	warn:{chat_id}                          -> last warning, unix nanos
//	hist:{chat_id}:{nanos_padded}:{uuid}    -> one entry per warning
//
// The 19-digit zero padding keeps history entries chronologically
// sorted under lexicographical iteration; the UUID disambiguates two
// warnings landing on the same nanosecond.
type WarningLedger struct {
	mu  sync.Mutex
	db  *badger.DB
	log *slog.Logger
}

func NewWarningLedger(db *badger.DB, log *slog.Logger) *WarningLedger {
	return &WarningLedger{db: db, log: log}
}

// LastWarning returns the most recent enforcement instant for the chat.
// The boolean is false when the chat has never been warned.
func (l *WarningLedger) LastWarning(chatID string) (time.Time, bool, error) {
	var nanos int64
	found := false
	err := l.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(warnPrefix + chatID))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			parsed, err := strconv.ParseInt(string(val), 10, 64)
			if err != nil {
				return fmt.Errorf("corrupt ledger value for %q: %w", chatID, err)
			}
			nanos = parsed
			found = true
			return nil
		})
	})
	if err != nil || !found {
		return time.Time{}, false, err
	}
	return time.Unix(0, nanos).UTC(), true, nil
}

// RecordWarning advances the chat's last-enforcement instant and writes
// a history entry. Timestamps are monotonic per chat: an instant older
// than the stored one is dropped.
func (l *WarningLedger) RecordWarning(chatID string, at time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	current, found, err := l.LastWarning(chatID)
	if err != nil {
		return err
	}
	if found && at.Before(current) {
		l.log.Debug("Ignoring out-of-order warning timestamp",
			"chat", chatID, "stored", current, "incoming", at)
		return nil
	}

	value := []byte(fmt.Sprintf("%019d", at.UnixNano()))
	histKey := fmt.Sprintf("%s%s:%019d:%s", histPrefix, chatID, at.UnixNano(), uuid.NewString())
	return l.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte(warnPrefix+chatID), value); err != nil {
			return err
		}
		return txn.Set([]byte(histKey), value)
	})
}
