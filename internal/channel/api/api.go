// Package api: 채널 모듈 운영 API
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/blocklite-dev/blocklite/internal/channel/app"
	"github.com/blocklite-dev/blocklite/internal/channel/infra"
	"github.com/blocklite-dev/blocklite/server/utils"
)

// ChannelAPIHandler 채널 모듈 API 핸들러
type ChannelAPIHandler struct {
	dispatcher *app.Dispatcher
	service    *infra.ChannelService
}

// NewChannelAPIHandler 채널 API 핸들러 생성
func NewChannelAPIHandler(dispatcher *app.Dispatcher, service *infra.ChannelService) *ChannelAPIHandler {
	return &ChannelAPIHandler{
		dispatcher: dispatcher,
		service:    service,
	}
}

// RegisterRoutes ModuleRegistrar 인터페이스 구현
func (h *ChannelAPIHandler) RegisterRoutes(router *chi.Mux) error {
	router.Route("/api/channel", func(r chi.Router) {
		r.Get("/health", h.handleHealth)
		r.Get("/statistics", h.handleStatistics)
		r.Get("/queue", h.handleQueue)
	})
	return nil
}

// handleHealth 채널 서비스 헬스 체크
func (h *ChannelAPIHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	healthy := h.dispatcher != nil && h.service != nil
	response := map[string]any{
		"healthy": healthy,
		"service": "channel",
	}
	if !healthy {
		response["status"] = "not_initialized"
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = utils.WriteJSONResponse(w, response)
		return
	}
	response["status"] = "running"
	_ = utils.WriteJSONResponse(w, response)
}

// handleStatistics 디스패처 카운터와 전송 계층 처리율
func (h *ChannelAPIHandler) handleStatistics(w http.ResponseWriter, r *http.Request) {
	if h.dispatcher == nil || h.service == nil {
		_ = utils.WriteJSONResponse(w, map[string]any{"status": "not_initialized"})
		return
	}
	// 혹시 모를 패닉까지도 흡수
	defer func() {
		if rec := recover(); rec != nil {
			_ = utils.WriteJSONResponse(w, map[string]any{"status": "stats_unavailable"})
		}
	}()

	_ = utils.WriteJSONResponse(w, map[string]any{
		"dispatcher": h.dispatcher.Stats(),
		"transport":  h.service.Stats(),
	})
}

// handleQueue 대기열과 워커 큐 점유 상태
func (h *ChannelAPIHandler) handleQueue(w http.ResponseWriter, r *http.Request) {
	if h.dispatcher == nil || h.service == nil {
		_ = utils.WriteJSONResponse(w, map[string]any{"pending_count": 0, "pending": []string{}})
		return
	}

	pending := h.dispatcher.PendingSnapshot()
	hashes := make([]string, 0, len(pending))
	for _, ptx := range pending {
		hashes = append(hashes, ptx.Hash)
	}

	used, capacity := h.service.QueueStatus()
	usagePercent := 0.0
	if capacity > 0 {
		usagePercent = float64(used) / float64(capacity) * 100
	}

	_ = utils.WriteJSONResponse(w, map[string]any{
		"pending_count": len(hashes),
		"pending":       hashes,
		"worker_queue": map[string]any{
			"usage":         used,
			"capacity":      capacity,
			"usage_percent": usagePercent,
		},
	})
}
