package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"giftcode-relay/internal/api"
	"giftcode-relay/internal/constants"
	"giftcode-relay/internal/domain"
	"giftcode-relay/internal/repository"

	"github.com/rs/zerolog"
)

var ErrAccountNotFound = errors.New("account not found")

// Roster manages the tracked accounts. New fids are verified against the game
// service before they enter the roster, and reads that touch the service
// write the observed nickname and furnace level back.
type Roster struct {
	client   GameClient
	accounts *repository.AccountRepository
	ledger   *repository.RedemptionRepository
	logger   zerolog.Logger
}

func NewRoster(client GameClient, accounts *repository.AccountRepository, ledger *repository.RedemptionRepository, logger zerolog.Logger) *Roster {
	return &Roster{client: client, accounts: accounts, ledger: ledger, logger: logger}
}

// AddResult partitions the fids of one Add call.
type AddResult struct {
	Added    []string `json:"added,omitempty"`
	Existing []int64  `json:"existing,omitempty"`
	Failed   []int64  `json:"failed,omitempty"`
}

// Add verifies each fid against the game service and inserts the new ones.
// Unknown or unreachable fids land in Failed without aborting the rest.
func (s *Roster) Add(ctx context.Context, fids []int64) (*AddResult, error) {
	result := &AddResult{}

	for _, fid := range fids {
		info, player, err := s.lookupPlayer(ctx, fid)
		if err != nil || info.Msg != api.MsgPlayerOK {
			s.logger.Warn().Err(err).Int64("fid", fid).Msg("player lookup failed, skipping")
			result.Failed = append(result.Failed, fid)
			continue
		}

		dbCtx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
		created, err := s.accounts.Insert(dbCtx, fid, player.Nickname, player.StoveLv)
		cancel()
		if err != nil {
			s.logger.Error().Err(err).Int64("fid", fid).Msg("failed to insert account")
			result.Failed = append(result.Failed, fid)
			continue
		}
		if created {
			result.Added = append(result.Added, player.Nickname)
		} else {
			result.Existing = append(result.Existing, fid)
		}
	}

	s.logger.Info().
		Int("added", len(result.Added)).
		Int("existing", len(result.Existing)).
		Int("failed", len(result.Failed)).
		Msg("roster add completed")

	return result, nil
}

func (s *Roster) List(ctx context.Context) ([]domain.Account, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()
	return s.accounts.List(ctx)
}

// Refresh fetches the account's live profile, writes nickname and furnace
// level back to the roster, and returns the updated record.
func (s *Roster) Refresh(ctx context.Context, fid int64) (*domain.Account, error) {
	getCtx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	acct, err := s.accounts.Get(getCtx, fid)
	cancel()
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get account %d: %w", fid, err)
	}

	info, player, err := s.lookupPlayer(ctx, fid)
	if err != nil {
		return nil, err
	}
	if info.Msg != api.MsgPlayerOK {
		return nil, fmt.Errorf("refresh account %d: service answered %q", fid, info.Msg)
	}

	// Fresh deadline: the lookup may have spent several seconds on retries.
	updCtx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()
	if err := s.accounts.UpdateProfile(updCtx, fid, player.Nickname, player.StoveLv); err != nil {
		return nil, err
	}

	acct.Nickname = player.Nickname
	acct.FurnaceLv = player.StoveLv
	return acct, nil
}

func (s *Roster) Remove(ctx context.Context, fid int64) error {
	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()

	err := s.accounts.Delete(ctx, fid)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrAccountNotFound
	}
	return err
}

// Link binds an external identity to the account, inserting the account from
// live service data when it is not on the roster yet.
func (s *Roster) Link(ctx context.Context, fid int64, externalID string) error {
	if externalID == "" {
		return fmt.Errorf("external id must not be empty")
	}

	setCtx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	err := s.accounts.SetExternalID(setCtx, fid, externalID)
	cancel()
	if !errors.Is(err, sql.ErrNoRows) {
		return err
	}

	info, player, err := s.lookupPlayer(ctx, fid)
	if err != nil {
		return err
	}
	if info.Msg != api.MsgPlayerOK {
		return ErrAccountNotFound
	}

	// Fresh deadline: the lookup may have spent several seconds on retries.
	dbCtx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()
	if _, err := s.accounts.Insert(dbCtx, fid, player.Nickname, player.StoveLv); err != nil {
		return err
	}
	return s.accounts.SetExternalID(dbCtx, fid, externalID)
}

func (s *Roster) Unlink(ctx context.Context, fid int64) error {
	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()

	err := s.accounts.SetExternalID(ctx, fid, "")
	if errors.Is(err, sql.ErrNoRows) {
		return ErrAccountNotFound
	}
	return err
}

func (s *Roster) History(ctx context.Context, fid int64) ([]domain.RedemptionRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()
	return s.ledger.History(ctx, fid)
}

func (s *Roster) lookupPlayer(ctx context.Context, fid int64) (*api.PlayerResponse, api.PlayerData, error) {
	apiCtx, cancel := context.WithTimeout(ctx, constants.ExternalAPITimeout)
	defer cancel()

	info, err := s.client.GetPlayer(apiCtx, fid)
	if err != nil {
		return nil, api.PlayerData{}, err
	}
	player, ok := info.Player()
	if info.Msg == api.MsgPlayerOK && !ok {
		return nil, api.PlayerData{}, fmt.Errorf("lookup player %d: malformed data payload", fid)
	}
	return info, player, nil
}
