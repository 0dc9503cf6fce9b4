package service

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/copytrade-ledger/internal/config"
	"github.com/copytrade-ledger/internal/ledger"
	"github.com/copytrade-ledger/internal/models"
)

// sessionDocument is the persisted form of a session
type sessionDocument struct {
	Ledger      ledger.Snapshot `json:"ledger"`
	Following   []string        `json:"following"`
	Trades      []models.Trade  `json:"trades"`
	SeenUpdates []string        `json:"seenUpdates,omitempty"`
}

// session is one connected account. mu serializes transitions so that the
// revision assigned to a snapshot follows the order of the transitions.
type session struct {
	mu        sync.Mutex
	ledger    *ledger.Ledger
	following []string
	trades    []models.Trade
	seen      *updateLog
	closed    bool
}

// closingSession stands in for an account while its disconnect writes the
// final state. When that write fails the entry stays parked: the store is
// behind, so the next Connect reopens from doc (or from scratch if the state
// was cleared) instead of reading the store.
type closingSession struct {
	done    chan struct{}
	parked  bool
	cleared bool
	doc     []byte
}

func newSession(l *ledger.Ledger, seenLimit int) *session {
	return &session{ledger: l, seen: newUpdateLog(seenLimit)}
}

func restoreSession(data []byte, opts ledger.Options, seenLimit int) (*session, error) {
	var doc sessionDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	l, err := ledger.Restore(doc.Ledger, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to restore ledger: %w", err)
	}

	s := newSession(l, seenLimit)
	s.following = doc.Following
	s.trades = doc.Trades
	for _, id := range doc.SeenUpdates {
		s.seen.add(id)
	}
	return s, nil
}

func (s *session) encode() ([]byte, error) {
	return json.Marshal(sessionDocument{
		Ledger:      s.ledger.Snapshot(),
		Following:   s.following,
		Trades:      s.trades,
		SeenUpdates: s.seen.ids(),
	})
}

func (s *session) isFollowing(traderID string) bool {
	for _, id := range s.following {
		if id == traderID {
			return true
		}
	}
	return false
}

// updateLog remembers the most recent feed update ids, oldest evicted first
type updateLog struct {
	limit int
	order []string
	set   map[string]struct{}
}

func newUpdateLog(limit int) *updateLog {
	if limit <= 0 {
		limit = config.DefaultSeenUpdateLimit
	}
	return &updateLog{limit: limit, set: make(map[string]struct{})}
}

func (u *updateLog) contains(id string) bool {
	_, ok := u.set[id]
	return ok
}

func (u *updateLog) add(id string) {
	if u.contains(id) {
		return
	}
	u.set[id] = struct{}{}
	u.order = append(u.order, id)
	for len(u.order) > u.limit {
		delete(u.set, u.order[0])
		u.order = u.order[1:]
	}
}

func (u *updateLog) ids() []string {
	return append([]string(nil), u.order...)
}
