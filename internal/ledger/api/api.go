// Package api: 원장 모듈 운영 API
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/blocklite-dev/blocklite/internal/ledger/app"
	"github.com/blocklite-dev/blocklite/server/utils"
	"github.com/blocklite-dev/blocklite/shared/txhash"
)

// LedgerAPIHandler 원장 모듈 API 핸들러
type LedgerAPIHandler struct {
	manager *app.BlockManager
}

// NewLedgerAPIHandler 원장 API 핸들러 생성
func NewLedgerAPIHandler(manager *app.BlockManager) *LedgerAPIHandler {
	return &LedgerAPIHandler{manager: manager}
}

// RegisterRoutes ModuleRegistrar 인터페이스 구현
func (h *LedgerAPIHandler) RegisterRoutes(router *chi.Mux) error {
	router.Route("/api/ledger", func(r chi.Router) {
		r.Get("/status", h.handleStatus)
		r.Get("/block", h.handleGetBlock)
		r.Post("/produce", h.handleProduce)
	})
	return nil
}

// handleStatus 체인 높이와 생산 카운터
func (h *LedgerAPIHandler) handleStatus(w http.ResponseWriter, r *http.Request) {
	if h.manager == nil {
		utils.WriteErrorResponse(w, "ledger not initialized", http.StatusServiceUnavailable)
		return
	}
	_ = utils.WriteJSONResponse(w, h.manager.Stats())
}

// handleGetBlock 블록 단건 조회
// 선택 규칙: hash 쿼리가 있으면 해시로, height가 있으면 높이로, 둘 다 없으면 최신 블록
func (h *LedgerAPIHandler) handleGetBlock(w http.ResponseWriter, r *http.Request) {
	if h.manager == nil {
		utils.WriteErrorResponse(w, "ledger not initialized", http.StatusServiceUnavailable)
		return
	}

	hash := r.URL.Query().Get("hash")
	height := utils.ParseInt64Param(r, "height", -1)

	var (
		blk map[string]any
		ok  bool
	)
	switch {
	case hash != "":
		blk, ok = h.manager.GetBlockByHash(txhash.Normalize(hash))
	case height >= 0:
		blk, ok = h.manager.GetBlockByHeight(height)
	default:
		blk, ok = h.manager.GetLastBlock()
	}
	if !ok {
		utils.WriteErrorResponse(w, "block not found", http.StatusNotFound)
		return
	}
	_ = utils.WriteJSONResponse(w, blk)
}

// handleProduce 대기 트랜잭션을 즉시 블록으로 커밋
func (h *LedgerAPIHandler) handleProduce(w http.ResponseWriter, r *http.Request) {
	if h.manager == nil {
		utils.WriteErrorResponse(w, "ledger not initialized", http.StatusServiceUnavailable)
		return
	}

	committed, err := h.manager.ProduceNow()
	if err != nil {
		utils.WriteErrorResponse(w, "block production failed: "+err.Error(), http.StatusInternalServerError)
		return
	}
	_ = utils.WriteJSONResponse(w, map[string]any{
		"committed_txs": committed,
		"height":        h.manager.Height(),
	})
}
