package service

import (
	"context"
	"fmt"
	"time"

	"giftcode-relay/internal/api"
	"giftcode-relay/internal/constants"
	"giftcode-relay/internal/domain"
	"giftcode-relay/internal/repository"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// GameClient is the slice of the gift code API the redemption services need.
type GameClient interface {
	GetPlayer(ctx context.Context, fid int64) (*api.PlayerResponse, error)
	RedeemCode(ctx context.Context, fid int64, code string) (*api.GiftCodeResponse, error)
}

// Redeemer runs a gift code across the whole roster and partitions the
// results. It is stateless between runs; everything durable lives in the
// roster and the redemption ledger.
type Redeemer struct {
	client   GameClient
	accounts *repository.AccountRepository
	ledger   *repository.RedemptionRepository
	workers  int
	logger   zerolog.Logger
}

func NewRedeemer(client GameClient, accounts *repository.AccountRepository, ledger *repository.RedemptionRepository, workers int, logger zerolog.Logger) *Redeemer {
	if workers < 1 {
		workers = 1
	}
	return &Redeemer{
		client:   client,
		accounts: accounts,
		ledger:   ledger,
		workers:  workers,
		logger:   logger,
	}
}

// Redeem snapshots the roster and claims the code for every account. Accounts
// are independent: a fault in one is contained there and routed to the error
// partition, never aborting the batch.
//
// Cancelling ctx stops handing out new accounts; in-flight accounts finish,
// are classified, and keep their ledger writes. Accounts never dispatched are
// reported in the skipped count only.
func (s *Redeemer) Redeem(ctx context.Context, code string) (*domain.Report, error) {
	listCtx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()

	snapshot, err := s.accounts.List(listCtx)
	if err != nil {
		return nil, fmt.Errorf("snapshot roster: %w", err)
	}

	runID, err := gonanoid.New()
	if err != nil {
		return nil, fmt.Errorf("generate run id: %w", err)
	}

	s.logger.Info().
		Str("run_id", runID).
		Str("code", code).
		Int("accounts", len(snapshot)).
		Int("workers", s.workers).
		Msg("starting batch redemption")

	report := &domain.Report{
		RunID:     runID,
		Code:      code,
		Total:     len(snapshot),
		StartedAt: time.Now(),
	}

	// Each worker writes only its own slot, so the fan-in needs no locking.
	outcomes := make([]domain.Outcome, len(snapshot))

	g := new(errgroup.Group)
	g.SetLimit(s.workers)

	for i, acct := range snapshot {
		if ctx.Err() != nil {
			s.logger.Warn().
				Str("run_id", runID).
				Int("remaining", len(snapshot)-i).
				Msg("batch cancelled, draining in-flight accounts")
			break
		}
		g.Go(func() error {
			// re-check after waiting for a worker slot: a cancellation
			// that arrived in the meantime means this account was never
			// really in flight
			if ctx.Err() != nil {
				return nil
			}
			outcomes[i] = s.processAccount(ctx, acct, code)
			return nil
		})
	}
	_ = g.Wait()

	for i, acct := range snapshot {
		if outcomes[i] == "" {
			report.Skipped++
			continue
		}
		report.Add(outcomes[i], acct.Nickname)
	}
	report.FinishedAt = time.Now()

	s.logger.Info().
		Str("run_id", runID).
		Int("success", len(report.Success)).
		Int("already_received", len(report.AlreadyReceived)).
		Int("similar_code", len(report.SimilarCode)).
		Int("not_logged_in", len(report.NotLoggedIn)).
		Int("errors", len(report.Errors)).
		Int("skipped", report.Skipped).
		Msg("batch redemption finished")

	return report, nil
}

// processAccount runs the info-then-claim sequence for one account. All
// faults, panics included, stay inside this boundary and come back as an
// error outcome.
func (s *Redeemer) processAccount(ctx context.Context, acct domain.Account, code string) (outcome domain.Outcome) {
	defer func() {
		if rec := recover(); rec != nil {
			s.logger.Error().
				Int64("fid", acct.Fid).
				Interface("panic", rec).
				Msg("account processing panicked")
			outcome = domain.OutcomeError
		}
	}()

	// Detached from the batch context so an in-flight account drains
	// instead of being cut off mid-protocol.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), constants.AccountTimeout)
	defer cancel()

	info, err := s.client.GetPlayer(ctx, acct.Fid)
	if err != nil {
		s.logger.Error().Err(err).Int64("fid", acct.Fid).Msg("player info call failed")
		return domain.OutcomeError
	}
	if info.Msg != api.MsgPlayerOK {
		s.logger.Warn().Int64("fid", acct.Fid).Str("msg", info.Msg).Msg("player not authenticated")
		return domain.OutcomeNotLoggedIn
	}

	if player, ok := info.Player(); ok {
		if err := s.accounts.UpdateProfile(ctx, acct.Fid, player.Nickname, player.StoveLv); err != nil {
			s.logger.Warn().Err(err).Int64("fid", acct.Fid).Msg("profile write-back failed")
		}
	}

	claim, err := s.client.RedeemCode(ctx, acct.Fid, code)
	if err != nil {
		s.logger.Error().Err(err).Int64("fid", acct.Fid).Str("code", code).Msg("claim call failed")
		return domain.OutcomeError
	}

	outcome = Classify(info, claim)
	s.logger.Debug().
		Int64("fid", acct.Fid).
		Str("code", code).
		Str("outcome", string(outcome)).
		Msg("account classified")

	if outcome == domain.OutcomeSuccess {
		if err := s.ledger.RecordSuccess(ctx, acct.Fid, code, time.Now()); err != nil {
			// The remote redemption went through; a bookkeeping failure
			// must not demote the outcome.
			s.logger.Error().Err(err).Int64("fid", acct.Fid).Str("code", code).Msg("ledger write failed")
		}
	}
	return outcome
}
