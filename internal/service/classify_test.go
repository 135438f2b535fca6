package service

import (
	"testing"

	"giftcode-relay/internal/api"
	"giftcode-relay/internal/domain"
)

func infoOK() *api.PlayerResponse {
	return &api.PlayerResponse{Msg: api.MsgPlayerOK}
}

func TestClassifyTable(t *testing.T) {
	tests := []struct {
		name  string
		info  *api.PlayerResponse
		claim *api.GiftCodeResponse
		want  domain.Outcome
	}{
		{"info not success", &api.PlayerResponse{Msg: "login expired"}, nil, domain.OutcomeNotLoggedIn},
		{"info nil", nil, nil, domain.OutcomeNotLoggedIn},
		{"claim success", infoOK(), &api.GiftCodeResponse{Msg: api.MsgRedeemOK}, domain.OutcomeSuccess},
		{"already received", infoOK(), &api.GiftCodeResponse{Msg: api.MsgReceived, ErrCode: api.ErrCodeReceived}, domain.OutcomeAlreadyReceived},
		{"same type", infoOK(), &api.GiftCodeResponse{Msg: api.MsgSameType, ErrCode: api.ErrCodeSameType}, domain.OutcomeSimilarCode},
		{"not login", infoOK(), &api.GiftCodeResponse{Msg: api.MsgNotLogin}, domain.OutcomeNotLoggedIn},
		{"received msg with wrong code", infoOK(), &api.GiftCodeResponse{Msg: api.MsgReceived, ErrCode: 40999}, domain.OutcomeError},
		{"same type msg with wrong code", infoOK(), &api.GiftCodeResponse{Msg: api.MsgSameType, ErrCode: 40008}, domain.OutcomeError},
		{"unknown message", infoOK(), &api.GiftCodeResponse{Msg: "TIME ERROR.", ErrCode: 40007}, domain.OutcomeError},
		{"empty claim", infoOK(), &api.GiftCodeResponse{}, domain.OutcomeError},
		{"nil claim", infoOK(), nil, domain.OutcomeError},
	}

	for _, tt := range tests {
		if got := Classify(tt.info, tt.claim); got != tt.want {
			t.Errorf("%s: Classify = %s, want %s", tt.name, got, tt.want)
		}
	}
}

func TestClassifySentinelsExact(t *testing.T) {
	// lowercase or unpunctuated variants are not the service's sentinels
	if got := Classify(infoOK(), &api.GiftCodeResponse{Msg: "success"}); got != domain.OutcomeError {
		t.Errorf("lowercase success classified as %s", got)
	}
	if got := Classify(infoOK(), &api.GiftCodeResponse{Msg: "RECEIVED", ErrCode: api.ErrCodeReceived}); got != domain.OutcomeError {
		t.Errorf("RECEIVED without period classified as %s", got)
	}
}
