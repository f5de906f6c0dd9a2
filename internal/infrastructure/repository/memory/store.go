package memory

import (
	"errors"
	"sync"
	"time"

	"github.com/riskibarqy/oddsline/internal/domain/bet"
	"github.com/riskibarqy/oddsline/internal/domain/match"
	"github.com/riskibarqy/oddsline/internal/domain/wallet"
	"github.com/shopspring/decimal"
)

var errNotFound = errors.New("not found")

// Store holds matches, bets and accounts behind one lock so the cross-entity
// rules (no delete with bets, atomic settle and credit) hold as they do in a
// database transaction.
type Store struct {
	mu          sync.Mutex
	matches     map[int64]match.Match
	nextMatchID int64
	bets        map[int64]bet.Bet
	nextBetID   int64
	accounts    map[int64]wallet.Account
	now         func() time.Time
}

func NewStore() *Store {
	return &Store{
		matches:  make(map[int64]match.Match),
		bets:     make(map[int64]bet.Bet),
		accounts: make(map[int64]wallet.Account),
		now:      time.Now,
	}
}

func (s *Store) Matches() *MatchRepository {
	return &MatchRepository{store: s}
}

func (s *Store) Bets() *BetRepository {
	return &BetRepository{store: s}
}

func (s *Store) Wallets() *WalletRepository {
	return &WalletRepository{store: s}
}

// OpenAccount creates or replaces the account of a user.
func (s *Store) OpenAccount(userID int64, balance decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[userID] = wallet.Account{UserID: userID, Balance: balance}
}

// PlaceBet stores a pending bet the way the external placement path would.
func (s *Store) PlaceBet(item bet.Bet) bet.Bet {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextBetID++
	item.ID = s.nextBetID
	item.Status = bet.StatusPending
	item.SettledAt = nil
	if item.CreatedAt.IsZero() {
		item.CreatedAt = s.now().UTC()
	}
	s.bets[item.ID] = item
	return item
}

func (s *Store) hasBetsLocked(matchID int64) bool {
	for _, item := range s.bets {
		if item.MatchID == matchID {
			return true
		}
	}
	return false
}

func (s *Store) hasPendingBetsLocked(matchID int64) bool {
	for _, item := range s.bets {
		if item.MatchID == matchID && item.Status == bet.StatusPending {
			return true
		}
	}
	return false
}

func cloneMatch(m match.Match) match.Match {
	out := m
	if m.HomeScore != nil {
		v := *m.HomeScore
		out.HomeScore = &v
	}
	if m.AwayScore != nil {
		v := *m.AwayScore
		out.AwayScore = &v
	}
	out.Markets = cloneMarkets(m.Markets)
	return out
}

func cloneMarkets(items []match.Market) []match.Market {
	if items == nil {
		return nil
	}
	out := make([]match.Market, 0, len(items))
	for _, item := range items {
		copied := item
		copied.Outcomes = append([]match.Outcome(nil), item.Outcomes...)
		out = append(out, copied)
	}
	return out
}
