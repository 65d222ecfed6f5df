// Package referral walks the downline of a user level by level.
package referral

import (
	"context"
	"fmt"

	"github.com/danilovkiri/dk-go-mmsledger/internal/models/modeldto"
	"github.com/danilovkiri/dk-go-mmsledger/internal/models/modelledger"
	referralService "github.com/danilovkiri/dk-go-mmsledger/internal/service/referral/v1"
	serviceErrors "github.com/danilovkiri/dk-go-mmsledger/internal/service/ledger/v1/errors"
	"github.com/danilovkiri/dk-go-mmsledger/internal/storage/v1"
	"github.com/rs/zerolog"
)

const (
	DefaultDepth = 2
	MaxDepth     = 5
)

// Referral serves downline reads.
type Referral struct {
	storage storage.Reader
	log     *zerolog.Logger
}

var _ referralService.Referral = (*Referral)(nil)

// InitService builds the referral reader.
func InitService(st storage.Reader, log *zerolog.Logger) (*Referral, error) {
	if st == nil {
		return nil, &serviceErrors.ServiceFoundNilArgument{Msg: "nil storage was passed to service initializer"}
	}
	if log == nil {
		return nil, &serviceErrors.ServiceFoundNilArgument{Msg: "nil logger was passed to service initializer"}
	}
	return &Referral{storage: st, log: log}, nil
}

// ClampDepth maps a requested depth onto [1, MaxDepth]; zero or less means DefaultDepth.
func ClampDepth(depth int) int {
	switch {
	case depth <= 0:
		return DefaultDepth
	case depth > MaxDepth:
		return MaxDepth
	}
	return depth
}

// DirectDownline returns the users sponsored by userID.
func (r *Referral) DirectDownline(ctx context.Context, userID string) ([]modelledger.User, error) {
	users, err := r.storage.ListDownline(ctx, []string{userID})
	if err != nil {
		r.log.Error().Err(err).Str("operation", "direct downline").Str("user", userID).Msg("downline read failed")
		return nil, err
	}
	return excluding(users, map[string]bool{userID: true}), nil
}

// IndirectDownline returns one slice per level, level 1 first. The walk stops at
// maxDepth or at the first empty level and never revisits a user.
func (r *Referral) IndirectDownline(ctx context.Context, userID string, maxDepth int) ([][]modelledger.User, error) {
	maxDepth = ClampDepth(maxDepth)
	visited := map[string]bool{userID: true}
	frontier := []string{userID}
	var levels [][]modelledger.User
	for depth := 1; depth <= maxDepth; depth++ {
		users, err := r.storage.ListDownline(ctx, frontier)
		if err != nil {
			r.log.Error().Err(err).Str("operation", "indirect downline").Str("user", userID).Int("depth", depth).Msg("downline read failed")
			return nil, err
		}
		level := excluding(users, visited)
		if len(level) == 0 {
			break
		}
		frontier = frontier[:0]
		for _, u := range level {
			visited[u.ID] = true
			frontier = append(frontier, u.ID)
		}
		levels = append(levels, level)
	}
	return levels, nil
}

// Network summarizes the downline: members per level and their total asset.
func (r *Referral) Network(ctx context.Context, userID string, maxDepth int) (*modeldto.Network, error) {
	levels, err := r.IndirectDownline(ctx, userID, maxDepth)
	if err != nil {
		return nil, err
	}
	network := &modeldto.Network{Levels: make([]modeldto.NetworkLevel, 0, len(levels))}
	var ids []string
	for i, level := range levels {
		network.Levels = append(network.Levels, modeldto.NetworkLevel{Level: i + 1, Users: level})
		for _, u := range level {
			ids = append(ids, u.ID)
		}
	}
	network.TotalUsers = len(ids)
	network.TotalAsset, err = r.storage.SumAssets(ctx, ids)
	if err != nil {
		r.log.Error().Err(err).Str("operation", "network").Str("user", userID).Msg("asset sum failed")
		return nil, err
	}
	r.log.Info().Msg(fmt.Sprintf("network of %s: %d users over %d levels", userID, network.TotalUsers, len(levels)))
	return network, nil
}

func excluding(users []modelledger.User, seen map[string]bool) []modelledger.User {
	out := make([]modelledger.User, 0, len(users))
	for _, u := range users {
		if !seen[u.ID] {
			out = append(out, u)
		}
	}
	return out
}
