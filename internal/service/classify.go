package service

import (
	"giftcode-relay/internal/api"
	"giftcode-relay/internal/domain"
)

// Classify maps the raw player-info and claim responses to one outcome kind.
// The sentinel strings and error codes are matched exactly; any combination
// outside the table is an error outcome.
func Classify(info *api.PlayerResponse, claim *api.GiftCodeResponse) domain.Outcome {
	if info == nil || info.Msg != api.MsgPlayerOK {
		return domain.OutcomeNotLoggedIn
	}
	if claim == nil {
		return domain.OutcomeError
	}

	switch {
	case claim.Msg == api.MsgRedeemOK:
		return domain.OutcomeSuccess
	case claim.Msg == api.MsgReceived && claim.ErrCode == api.ErrCodeReceived:
		return domain.OutcomeAlreadyReceived
	case claim.Msg == api.MsgSameType && claim.ErrCode == api.ErrCodeSameType:
		return domain.OutcomeSimilarCode
	case claim.Msg == api.MsgNotLogin:
		return domain.OutcomeNotLoggedIn
	default:
		return domain.OutcomeError
	}
}
