// Package modelqueue provides types for queueing pieces of data.

package modelqueue

import (
	"time"

	"github.com/shopspring/decimal"
)

// LedgerEvent is a committed ledger mutation handed to the notification broker.
type LedgerEvent struct {
	ID          string          `json:"id"`
	Operation   string          `json:"operation"`
	UserID      string          `json:"user_id"`
	Amount      decimal.Decimal `json:"amount"`
	EntryID     int64           `json:"entry_id,omitempty"`
	Status      string          `json:"status,omitempty"`
	CommittedAt time.Time       `json:"committed_at"`
	RetryCount  int             `json:"-"`
}
