package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"

	"SettleCore/internal/model"
)

// Caller identity headers, injected by the fronting gateway after
// authentication.
const (
	headerUserID  = "X-User-Id"
	headerIsAdmin = "X-Is-Admin"
)

func (s *Server) registerRoutes(mux *runtime.ServeMux) error {
	routes := []struct {
		method  string
		path    string
		handler runtime.HandlerFunc
	}{
		{http.MethodPost, "/v1/accounts", s.handleCreateAccount},
		{http.MethodPost, "/v1/accounts/{id}/active", s.handleSetAccountActive},
		{http.MethodGet, "/v1/balance", s.handleGetBalance},
		{http.MethodGet, "/v1/journal", s.handleListJournal},

		{http.MethodPost, "/v1/requisites", s.handleCreateRequisite},
		{http.MethodGet, "/v1/requisites", s.handleListRequisites},
		{http.MethodPut, "/v1/requisites/{id}", s.handleUpdateRequisite},
		{http.MethodDelete, "/v1/requisites/{id}", s.handleDeleteRequisite},

		{http.MethodPost, "/v1/transactions", s.handleCreateTransaction},
		{http.MethodGet, "/v1/transactions", s.handleListTransactions},
		{http.MethodGet, "/v1/transactions/{id}", s.handleGetTransaction},
		{http.MethodPost, "/v1/transactions/{id}/confirm", s.handleConfirmTransaction},
		{http.MethodDelete, "/v1/transactions/{id}", s.handleDeleteTransaction},

		{http.MethodPost, "/v1/disputes", s.handleOpenDispute},
		{http.MethodGet, "/v1/disputes/{id}", s.handleGetDispute},
		{http.MethodPost, "/v1/disputes/{id}/reply", s.handleDisputeReply},
		{http.MethodPost, "/v1/disputes/{id}/accept", s.handleDisputeAccept},
		{http.MethodPost, "/v1/disputes/{id}/resolve", s.handleDisputeResolve},

		{http.MethodPost, "/v1/transfers/deposits", s.handleRequestDeposit},
		{http.MethodPost, "/v1/transfers/withdrawals", s.handleRequestWithdrawal},
		{http.MethodGet, "/v1/transfers/{id}", s.handleGetTransfer},
		{http.MethodPost, "/v1/transfers/{id}/confirm", s.handleConfirmTransfer},

		{http.MethodPost, "/v1/wallets", s.handleAddWallet},
	}
	for _, r := range routes {
		if err := mux.HandlePath(r.method, r.path, r.handler); err != nil {
			return err
		}
	}
	return nil
}

// --- accounts ---

func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	defer s.observe("create_account", time.Now())
	if !isAdmin(r) {
		s.writeError(w, model.NotFoundf("resource"))
		return
	}
	var req struct {
		ID uuid.UUID `json:"id"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	account, err := s.deps.Engine.CreateAccount(r.Context(), req.ID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, account)
}

func (s *Server) handleSetAccountActive(w http.ResponseWriter, r *http.Request, pathParams map[string]string) {
	defer s.observe("set_account_active", time.Now())
	if !isAdmin(r) {
		s.writeError(w, model.NotFoundf("resource"))
		return
	}
	id, err := pathUUID(pathParams, "id")
	if err != nil {
		s.writeError(w, err)
		return
	}
	var req struct {
		Active bool `json:"active"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.deps.Engine.SetAccountActive(r.Context(), id, req.Active); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"active": req.Active})
}

func (s *Server) handleGetBalance(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	defer s.observe("get_balance", time.Now())
	callerID, err := caller(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	balance, err := s.deps.Query.GetBalance(r.Context(), callerID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, balance)
}

func (s *Server) handleListJournal(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	defer s.observe("list_journal", time.Now())
	callerID, err := caller(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	entries, err := s.deps.Query.ListJournal(r.Context(), callerID, queryLimit(r), queryBefore(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, entries)
}

// --- requisites ---

type requisiteRequest struct {
	TraderID       uuid.UUID `json:"trader_id"`
	FullName       string    `json:"full_name"`
	PaymentMethod  string    `json:"payment_method"`
	CardNumber     string    `json:"card_number"`
	PhoneNumber    string    `json:"phone_number"`
	BankName       string    `json:"bank_name"`
	MinAmount      int64     `json:"min_amount"`
	MaxAmount      int64     `json:"max_amount"`
	MaxDailyAmount int64     `json:"max_daily_amount"`
	Priority       int32     `json:"priority"`
}

func (req *requisiteRequest) toModel() *model.Requisite {
	return &model.Requisite{
		TraderID:       req.TraderID,
		FullName:       req.FullName,
		PaymentMethod:  model.PaymentMethod(req.PaymentMethod),
		CardNumber:     req.CardNumber,
		PhoneNumber:    req.PhoneNumber,
		BankName:       req.BankName,
		MinAmount:      req.MinAmount,
		MaxAmount:      req.MaxAmount,
		MaxDailyAmount: req.MaxDailyAmount,
		Priority:       req.Priority,
	}
}

func (s *Server) handleCreateRequisite(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	defer s.observe("create_requisite", time.Now())
	callerID, err := caller(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	var req requisiteRequest
	if !s.decode(w, r, &req) {
		return
	}
	requisite := req.toModel()
	if requisite.TraderID == uuid.Nil {
		requisite.TraderID = callerID
	}
	if err := s.deps.Engine.CreateRequisite(r.Context(), callerID, isAdmin(r), requisite); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, requisite)
}

func (s *Server) handleListRequisites(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	defer s.observe("list_requisites", time.Now())
	callerID, err := caller(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	requisites, err := s.deps.Query.ListRequisites(r.Context(), callerID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, requisites)
}

func (s *Server) handleUpdateRequisite(w http.ResponseWriter, r *http.Request, pathParams map[string]string) {
	defer s.observe("update_requisite", time.Now())
	callerID, err := caller(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	id, err := pathUUID(pathParams, "id")
	if err != nil {
		s.writeError(w, err)
		return
	}
	var req requisiteRequest
	if !s.decode(w, r, &req) {
		return
	}
	requisite := req.toModel()
	requisite.ID = id
	if err := s.deps.Engine.UpdateRequisite(r.Context(), callerID, isAdmin(r), requisite); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, requisite)
}

func (s *Server) handleDeleteRequisite(w http.ResponseWriter, r *http.Request, pathParams map[string]string) {
	defer s.observe("delete_requisite", time.Now())
	callerID, err := caller(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	id, err := pathUUID(pathParams, "id")
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.deps.Engine.DeleteRequisite(r.Context(), callerID, isAdmin(r), id); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- transactions ---

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	defer s.observe("create_transaction", time.Now())
	callerID, err := caller(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	var req struct {
		Amount        int64  `json:"amount"`
		PaymentMethod string `json:"payment_method"`
		Type          string `json:"type"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	txn, err := s.deps.Engine.CreateFundingRequest(
		r.Context(), callerID, req.Amount,
		model.PaymentMethod(req.PaymentMethod), model.TransactionType(req.Type),
	)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, txn)
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	defer s.observe("list_transactions", time.Now())
	callerID, err := caller(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	txns, err := s.deps.Query.ListTransactions(
		r.Context(), callerID, r.URL.Query().Get("status"), queryLimit(r), queryBefore(r),
	)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, txns)
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request, pathParams map[string]string) {
	defer s.observe("get_transaction", time.Now())
	callerID, err := caller(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	id, err := pathUUID(pathParams, "id")
	if err != nil {
		s.writeError(w, err)
		return
	}
	txn, err := s.deps.Query.GetTransaction(r.Context(), id, callerID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, txn)
}

func (s *Server) handleConfirmTransaction(w http.ResponseWriter, r *http.Request, pathParams map[string]string) {
	defer s.observe("confirm_transaction", time.Now())
	callerID, err := caller(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	id, err := pathUUID(pathParams, "id")
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.deps.Engine.Confirm(r.Context(), id, callerID); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": string(model.TransactionStatusSuccess)})
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request, pathParams map[string]string) {
	defer s.observe("delete_transaction", time.Now())
	if !isAdmin(r) {
		s.writeError(w, model.NotFoundf("resource"))
		return
	}
	id, err := pathUUID(pathParams, "id")
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.deps.Engine.DeleteTransaction(r.Context(), id); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- disputes ---

func (s *Server) handleOpenDispute(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	defer s.observe("open_dispute", time.Now())
	callerID, err := caller(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	var req struct {
		TransactionID uuid.UUID `json:"transaction_id"`
		Description   string    `json:"description"`
		ImageURLs     []string  `json:"image_urls"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	dispute, err := s.deps.Engine.OpenDispute(r.Context(), req.TransactionID, callerID, req.Description, req.ImageURLs)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, dispute)
}

func (s *Server) handleGetDispute(w http.ResponseWriter, r *http.Request, pathParams map[string]string) {
	defer s.observe("get_dispute", time.Now())
	callerID, err := caller(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	id, err := pathUUID(pathParams, "id")
	if err != nil {
		s.writeError(w, err)
		return
	}
	dispute, err := s.deps.Query.GetDispute(r.Context(), id, callerID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, dispute)
}

func (s *Server) handleDisputeReply(w http.ResponseWriter, r *http.Request, pathParams map[string]string) {
	defer s.observe("dispute_reply", time.Now())
	callerID, err := caller(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	id, err := pathUUID(pathParams, "id")
	if err != nil {
		s.writeError(w, err)
		return
	}
	var req struct {
		Description string   `json:"description"`
		ImageURLs   []string `json:"image_urls"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.deps.Engine.TraderReply(r.Context(), id, callerID, req.Description, req.ImageURLs); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"replied": true})
}

func (s *Server) handleDisputeAccept(w http.ResponseWriter, r *http.Request, pathParams map[string]string) {
	defer s.observe("dispute_accept", time.Now())
	callerID, err := caller(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	id, err := pathUUID(pathParams, "id")
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.deps.Engine.TraderAccepts(r.Context(), id, callerID); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": string(model.DisputeStatusClosed)})
}

func (s *Server) handleDisputeResolve(w http.ResponseWriter, r *http.Request, pathParams map[string]string) {
	defer s.observe("dispute_resolve", time.Now())
	// Binding rulings come from support staff only.
	if !isAdmin(r) {
		s.writeError(w, model.NotFoundf("resource"))
		return
	}
	id, err := pathUUID(pathParams, "id")
	if err != nil {
		s.writeError(w, err)
		return
	}
	var req struct {
		WinnerID uuid.UUID `json:"winner_id"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.deps.Engine.SupportRules(r.Context(), id, req.WinnerID); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": string(model.DisputeStatusClosed)})
}

// --- transfers ---

func (s *Server) handleRequestDeposit(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	defer s.observe("request_deposit", time.Now())
	callerID, err := caller(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	var req struct {
		Amount int64 `json:"amount"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	transfer, err := s.deps.Confirmer.RequestDeposit(r.Context(), callerID, req.Amount)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, transfer)
}

func (s *Server) handleRequestWithdrawal(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	defer s.observe("request_withdrawal", time.Now())
	callerID, err := caller(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	var req struct {
		ToAddress string `json:"to_address"`
		Amount    int64  `json:"amount"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	transfer, err := s.deps.Confirmer.RequestWithdrawal(r.Context(), callerID, req.ToAddress, req.Amount)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, transfer)
}

func (s *Server) handleGetTransfer(w http.ResponseWriter, r *http.Request, pathParams map[string]string) {
	defer s.observe("get_transfer", time.Now())
	callerID, err := caller(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	id, err := pathUUID(pathParams, "id")
	if err != nil {
		s.writeError(w, err)
		return
	}
	transfer, err := s.deps.Query.GetTransfer(r.Context(), id, callerID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, transfer)
}

// handleConfirmTransfer finalizes a transfer leg. Deposits carry the claimed
// chain hash in the body; withdrawal broadcast is support-triggered and
// carries none.
func (s *Server) handleConfirmTransfer(w http.ResponseWriter, r *http.Request, pathParams map[string]string) {
	defer s.observe("confirm_transfer", time.Now())
	id, err := pathUUID(pathParams, "id")
	if err != nil {
		s.writeError(w, err)
		return
	}
	var req struct {
		Hash string `json:"hash"`
	}
	if !s.decode(w, r, &req) {
		return
	}

	if req.Hash != "" {
		err = s.deps.Confirmer.ConfirmDeposit(r.Context(), id, req.Hash)
	} else {
		if !isAdmin(r) {
			s.writeError(w, model.NotFoundf("resource"))
			return
		}
		err = s.deps.Confirmer.ConfirmWithdrawal(r.Context(), id)
	}
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": string(model.TransferStatusSuccess)})
}

// --- wallets ---

func (s *Server) handleAddWallet(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	defer s.observe("add_wallet", time.Now())
	if !isAdmin(r) {
		s.writeError(w, model.NotFoundf("resource"))
		return
	}
	var req struct {
		Address    string `json:"address"`
		PrivateKey string `json:"private_key"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	wallet, err := s.deps.Confirmer.AddWallet(r.Context(), req.Address, req.PrivateKey)
	if err != nil {
		s.writeError(w, err)
		return
	}
	// The private key never leaves the service.
	s.writeJSON(w, http.StatusCreated, map[string]string{
		"id":      wallet.ID.String(),
		"address": wallet.Address,
	})
}

// --- helpers ---

func caller(r *http.Request) (uuid.UUID, error) {
	raw := r.Header.Get(headerUserID)
	if raw == "" {
		return uuid.Nil, model.BadRequestf("missing %s header", headerUserID)
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, model.BadRequestf("invalid %s header", headerUserID)
	}
	return id, nil
}

func isAdmin(r *http.Request) bool {
	return r.Header.Get(headerIsAdmin) == "true"
}

func pathUUID(pathParams map[string]string, key string) (uuid.UUID, error) {
	id, err := uuid.Parse(pathParams[key])
	if err != nil {
		return uuid.Nil, model.BadRequestf("invalid %s", key)
	}
	return id, nil
}

func queryLimit(r *http.Request) int {
	n, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	return n
}

func queryBefore(r *http.Request) *time.Time {
	raw := r.URL.Query().Get("before")
	if raw == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil
	}
	return &t
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		s.writeError(w, model.BadRequestf("invalid request body: %v", err))
		return false
	}
	return true
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error().Err(err).Msg("encoding response failed")
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	switch {
	case model.IsNotFound(err):
		code = http.StatusNotFound
	case model.IsConflict(err):
		code = http.StatusConflict
	case model.IsBadRequest(err):
		code = http.StatusBadRequest
	}
	if code == http.StatusInternalServerError {
		s.log.Error().Err(err).Msg("request failed")
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}

func (s *Server) observe(endpoint string, start time.Time) {
	if s.deps.Metrics != nil {
		s.deps.Metrics.QueryRequests.WithLabelValues(endpoint).Inc()
		s.deps.Metrics.QueryDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	}
}
