package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"giftcode-relay/internal/domain"
	"giftcode-relay/internal/service"

	"github.com/rs/zerolog"
)

// Server is the JSON surface consumed by the presentation collaborator (a
// chat bot in practice). It exposes the roster, the redemption ledger, and
// the batch redemption trigger; all formatting beyond plain JSON is the
// collaborator's business.
type Server struct {
	redeemer *service.Redeemer
	roster   *service.Roster
	logger   zerolog.Logger
}

func NewServer(redeemer *service.Redeemer, roster *service.Roster, logger zerolog.Logger) *Server {
	return &Server{redeemer: redeemer, roster: roster, logger: logger}
}

func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/redeem", s.handleRedeem)
	mux.HandleFunc("POST /v1/accounts", s.handleAddAccounts)
	mux.HandleFunc("GET /v1/accounts", s.handleListAccounts)
	mux.HandleFunc("GET /v1/accounts/{fid}", s.handleGetAccount)
	mux.HandleFunc("DELETE /v1/accounts/{fid}", s.handleRemoveAccount)
	mux.HandleFunc("POST /v1/accounts/{fid}/link", s.handleLink)
	mux.HandleFunc("DELETE /v1/accounts/{fid}/link", s.handleUnlink)
	mux.HandleFunc("GET /v1/accounts/{fid}/history", s.handleHistory)
}

type redeemRequest struct {
	Code string `json:"code"`
}

func (s *Server) handleRedeem(w http.ResponseWriter, r *http.Request) {
	var req redeemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Code = strings.TrimSpace(req.Code)
	if req.Code == "" {
		s.writeError(w, http.StatusBadRequest, "code is required")
		return
	}

	report, err := s.redeemer.Redeem(r.Context(), req.Code)
	if err != nil {
		s.logger.Error().Err(err).Str("code", req.Code).Msg("batch redemption failed")
		s.writeError(w, http.StatusInternalServerError, "redemption failed")
		return
	}
	s.writeJSON(w, http.StatusOK, report)
}

type addAccountsRequest struct {
	Fids []int64 `json:"fids"`
}

func (s *Server) handleAddAccounts(w http.ResponseWriter, r *http.Request) {
	var req addAccountsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Fids) == 0 {
		s.writeError(w, http.StatusBadRequest, "fids is required")
		return
	}

	result, err := s.roster.Add(r.Context(), req.Fids)
	if err != nil {
		s.logger.Error().Err(err).Msg("roster add failed")
		s.writeError(w, http.StatusInternalServerError, "roster add failed")
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

type accountResponse struct {
	Fid        int64  `json:"fid"`
	Nickname   string `json:"nickname"`
	FurnaceLv  int    `json:"furnace_lv"`
	ExternalID string `json:"external_id,omitempty"`
}

func toAccountResponse(a domain.Account) accountResponse {
	return accountResponse{
		Fid:        a.Fid,
		Nickname:   a.Nickname,
		FurnaceLv:  a.FurnaceLv,
		ExternalID: a.ExternalID,
	}
}

func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := s.roster.List(r.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("roster list failed")
		s.writeError(w, http.StatusInternalServerError, "roster list failed")
		return
	}

	resp := make([]accountResponse, 0, len(accounts))
	for _, a := range accounts {
		resp = append(resp, toAccountResponse(a))
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	fid, ok := s.pathFid(w, r)
	if !ok {
		return
	}

	acct, err := s.roster.Refresh(r.Context(), fid)
	if errors.Is(err, service.ErrAccountNotFound) {
		s.writeError(w, http.StatusNotFound, "account not found")
		return
	}
	if err != nil {
		s.logger.Error().Err(err).Int64("fid", fid).Msg("account refresh failed")
		s.writeError(w, http.StatusInternalServerError, "account refresh failed")
		return
	}
	s.writeJSON(w, http.StatusOK, toAccountResponse(*acct))
}

func (s *Server) handleRemoveAccount(w http.ResponseWriter, r *http.Request) {
	fid, ok := s.pathFid(w, r)
	if !ok {
		return
	}

	err := s.roster.Remove(r.Context(), fid)
	if errors.Is(err, service.ErrAccountNotFound) {
		s.writeError(w, http.StatusNotFound, "account not found")
		return
	}
	if err != nil {
		s.logger.Error().Err(err).Int64("fid", fid).Msg("account removal failed")
		s.writeError(w, http.StatusInternalServerError, "account removal failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type linkRequest struct {
	ExternalID string `json:"external_id"`
}

func (s *Server) handleLink(w http.ResponseWriter, r *http.Request) {
	fid, ok := s.pathFid(w, r)
	if !ok {
		return
	}

	var req linkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ExternalID == "" {
		s.writeError(w, http.StatusBadRequest, "external_id is required")
		return
	}

	err := s.roster.Link(r.Context(), fid, req.ExternalID)
	if errors.Is(err, service.ErrAccountNotFound) {
		s.writeError(w, http.StatusNotFound, "account not found")
		return
	}
	if err != nil {
		s.logger.Error().Err(err).Int64("fid", fid).Msg("account link failed")
		s.writeError(w, http.StatusConflict, "account link failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUnlink(w http.ResponseWriter, r *http.Request) {
	fid, ok := s.pathFid(w, r)
	if !ok {
		return
	}

	err := s.roster.Unlink(r.Context(), fid)
	if errors.Is(err, service.ErrAccountNotFound) {
		s.writeError(w, http.StatusNotFound, "account not found")
		return
	}
	if err != nil {
		s.logger.Error().Err(err).Int64("fid", fid).Msg("account unlink failed")
		s.writeError(w, http.StatusInternalServerError, "account unlink failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type historyEntry struct {
	Code       string    `json:"code"`
	RedeemedAt time.Time `json:"redeemed_at"`
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	fid, ok := s.pathFid(w, r)
	if !ok {
		return
	}

	records, err := s.roster.History(r.Context(), fid)
	if err != nil {
		s.logger.Error().Err(err).Int64("fid", fid).Msg("history lookup failed")
		s.writeError(w, http.StatusInternalServerError, "history lookup failed")
		return
	}

	resp := make([]historyEntry, 0, len(records))
	for _, rec := range records {
		resp = append(resp, historyEntry{Code: rec.Code, RedeemedAt: rec.RedeemedAt})
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) pathFid(w http.ResponseWriter, r *http.Request) (int64, bool) {
	fid, err := strconv.ParseInt(r.PathValue("fid"), 10, 64)
	if err != nil || fid <= 0 {
		s.writeError(w, http.StatusBadRequest, "invalid fid")
		return 0, false
	}
	return fid, true
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error().Err(err).Msg("failed to encode response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
