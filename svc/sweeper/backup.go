package sweeper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/creditkit/svc/account"
)

const backupContentType = "application/x-ndjson"

// record is one line of a backup object.
type record struct {
	Seq          int64             `json:"seq"`
	ID           uuid.UUID         `json:"id"`
	AccountID    uuid.UUID         `json:"account_id"`
	Amount       int64             `json:"amount"`
	Kind         string            `json:"kind"`
	Description  string            `json:"description"`
	BalanceAfter int64             `json:"balance_after"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
}

// BackupKey names the object holding transactions fromSeq..toSeq. The same
// range always maps to the same key, so a retried upload overwrites.
func BackupKey(at time.Time, fromSeq, toSeq int64) string {
	return fmt.Sprintf("%s/%020d-%020d.jsonl", at.UTC().Format("2006/01/02"), fromSeq, toSeq)
}

// backup exports everything written since the last recorded backup, one
// object per BackupBatchSize transactions. It stops at the first row created
// within BackupSettle of now; that row and everything after it wait for the
// next run.
func (s *Sweeper) backup(ctx context.Context, now time.Time, r *Report) error {
	if s.uploader == nil {
		return nil
	}

	last, err := s.store.LastBackup(ctx)
	if err != nil {
		return errors.Join(ErrBackupFailed, err)
	}
	var after int64
	if last != nil {
		after = last.ToSeq
	}
	cutoff := now.Add(-s.cfg.BackupSettle)

	for {
		txs, err := s.store.TransactionsAfter(ctx, after, s.cfg.BackupBatchSize)
		if err != nil {
			return errors.Join(ErrBackupFailed, err)
		}
		fetched := len(txs)
		txs = settled(txs, cutoff)
		if len(txs) == 0 {
			return nil
		}

		body, err := encodeJSONL(txs)
		if err != nil {
			return errors.Join(ErrBackupFailed, err)
		}
		from, to := txs[0].Seq, txs[len(txs)-1].Seq
		key := BackupKey(now, from, to)
		if err := s.uploader.Upload(ctx, key, body, backupContentType); err != nil {
			return errors.Join(ErrBackupFailed, err)
		}
		if err := s.store.SaveBackup(ctx, account.Backup{
			ID:        uuid.New(),
			Key:       key,
			FromSeq:   from,
			ToSeq:     to,
			Count:     len(txs),
			CreatedAt: now,
		}); err != nil {
			return errors.Join(ErrBackupFailed, err)
		}

		r.BackedUp += len(txs)
		r.BackupKeys = append(r.BackupKeys, key)
		s.metrics.backup(len(txs))
		after = to

		if len(txs) < fetched || fetched < s.cfg.BackupBatchSize {
			return nil
		}
	}
}

// settled returns the leading transactions created before cutoff.
func settled(txs []account.Transaction, cutoff time.Time) []account.Transaction {
	for i, t := range txs {
		if !t.CreatedAt.Before(cutoff) {
			return txs[:i]
		}
	}
	return txs
}

func encodeJSONL(txs []account.Transaction) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, t := range txs {
		if err := enc.Encode(record{
			Seq:          t.Seq,
			ID:           t.ID,
			AccountID:    t.AccountID,
			Amount:       t.Amount,
			Kind:         string(t.Kind),
			Description:  t.Description,
			BalanceAfter: t.BalanceAfter,
			Metadata:     t.Metadata,
			CreatedAt:    t.CreatedAt.UTC(),
		}); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}
