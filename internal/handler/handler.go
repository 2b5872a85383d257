// Package handler 提供對戰服務的 HTTP 與 WebSocket 介面
package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/koopa0/pong-match/internal/game"
	"github.com/koopa0/pong-match/internal/manager"
	apperrors "github.com/koopa0/pong-match/pkg/errors"
	"github.com/koopa0/pong-match/pkg/logger"
)

// Handler HTTP 請求處理器
type Handler struct {
	manager *manager.Manager
	logger  *slog.Logger
}

// NewHandler 創建 HTTP 處理器
func NewHandler(mgr *manager.Manager, logger *slog.Logger) *Handler {
	return &Handler{
		manager: mgr,
		logger:  logger,
	}
}

// Routes 設定路由
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	// 中間件鏈
	wrap := func(handler http.HandlerFunc) http.HandlerFunc {
		return h.requestID(h.recoverer(h.loggerMiddleware(handler)))
	}

	// 對戰 API
	mux.HandleFunc("POST /api/v1/matches", wrap(h.createMatch))
	mux.HandleFunc("GET /api/v1/matches", wrap(h.listMatches))
	mux.HandleFunc("GET /api/v1/matches/{match_id}", wrap(h.getMatch))
	mux.HandleFunc("DELETE /api/v1/matches/{match_id}", wrap(h.deleteMatch))
	mux.HandleFunc("POST /api/v1/matches/{match_id}/join", wrap(h.joinMatch))
	mux.HandleFunc("POST /api/v1/matches/{match_id}/ready", wrap(h.setReady))
	mux.HandleFunc("POST /api/v1/matches/{match_id}/move", wrap(h.movePaddle))
	mux.HandleFunc("POST /api/v1/matches/{match_id}/settings", wrap(h.modifySettings))
	mux.HandleFunc("POST /api/v1/matches/{match_id}/leave", wrap(h.leaveMatch))

	// 健康檢查
	mux.HandleFunc("GET /health", wrap(h.health))
	mux.HandleFunc("GET /stats", wrap(h.stats))

	return mux
}

// 請求結構
type createMatchRequest struct {
	ID       string         `json:"id,omitempty"`
	Mode     game.Mode      `json:"mode"`
	Settings *game.Settings `json:"settings,omitempty"`
}

type playerRequest struct {
	PlayerID int64 `json:"player_id"`
}

type readyRequest struct {
	PlayerID int64 `json:"player_id"`
	Ready    bool  `json:"ready"`
}

type moveRequest struct {
	PlayerID  int64  `json:"player_id"`
	Direction string `json:"direction"`
}

type settingsRequest struct {
	PlayerID int64              `json:"player_id"`
	Settings game.SettingsPatch `json:"settings"`
}

// createMatch 創建對戰
func (h *Handler) createMatch(w http.ResponseWriter, r *http.Request) {
	var req createMatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.errorResponse(w, "無效的請求格式", http.StatusBadRequest)
		return
	}

	id, err := h.manager.CreateMatch(r.Context(), manager.CreateOptions{
		ID:       req.ID,
		Mode:     req.Mode,
		Settings: req.Settings,
	})
	if err != nil {
		h.appError(w, err)
		return
	}

	state, err := h.manager.GetMatchState(id)
	if err != nil {
		h.appError(w, err)
		return
	}
	h.jsonResponse(w, state, http.StatusCreated)
}

// listMatches 列出進行中的對戰
func (h *Handler) listMatches(w http.ResponseWriter, r *http.Request) {
	ids := h.manager.ListActiveIDs()
	h.jsonResponse(w, map[string]any{
		"matches": ids,
		"total":   len(ids),
	}, http.StatusOK)
}

// getMatch 獲取對戰快照
func (h *Handler) getMatch(w http.ResponseWriter, r *http.Request) {
	state, err := h.manager.GetMatchState(r.PathValue("match_id"))
	if err != nil {
		h.appError(w, err)
		return
	}
	h.jsonResponse(w, state, http.StatusOK)
}

// deleteMatch 刪除對戰
func (h *Handler) deleteMatch(w http.ResponseWriter, r *http.Request) {
	if err := h.manager.DeleteMatch(r.PathValue("match_id")); err != nil {
		h.appError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// joinMatch 加入對戰
func (h *Handler) joinMatch(w http.ResponseWriter, r *http.Request) {
	matchID := r.PathValue("match_id")

	var req playerRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.manager.JoinMatch(r.Context(), matchID, req.PlayerID); err != nil {
		h.appError(w, err)
		return
	}
	h.stateResponse(w, matchID)
}

// setReady 設定準備狀態
func (h *Handler) setReady(w http.ResponseWriter, r *http.Request) {
	matchID := r.PathValue("match_id")

	var req readyRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.manager.SetPlayerReady(matchID, req.PlayerID, req.Ready); err != nil {
		h.appError(w, err)
		return
	}
	h.stateResponse(w, matchID)
}

// movePaddle 移動球拍
func (h *Handler) movePaddle(w http.ResponseWriter, r *http.Request) {
	matchID := r.PathValue("match_id")

	var req moveRequest
	if !h.decode(w, r, &req) {
		return
	}
	dir, err := game.ParseDirection(req.Direction)
	if err != nil {
		h.appError(w, err)
		return
	}
	if err := h.manager.MovePaddle(matchID, req.PlayerID, dir); err != nil {
		h.appError(w, err)
		return
	}
	h.jsonResponse(w, map[string]any{
		"success": true,
	}, http.StatusOK)
}

// modifySettings 修改對戰規則
func (h *Handler) modifySettings(w http.ResponseWriter, r *http.Request) {
	matchID := r.PathValue("match_id")

	var req settingsRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.manager.ModifySettings(matchID, req.PlayerID, req.Settings); err != nil {
		h.appError(w, err)
		return
	}
	h.stateResponse(w, matchID)
}

// leaveMatch 離開對戰
func (h *Handler) leaveMatch(w http.ResponseWriter, r *http.Request) {
	var req playerRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.manager.LeaveGame(r.Context(), r.PathValue("match_id"), req.PlayerID); err != nil {
		h.appError(w, err)
		return
	}
	h.jsonResponse(w, map[string]any{
		"success": true,
	}, http.StatusOK)
}

// health 健康檢查
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	h.jsonResponse(w, map[string]any{
		"status": "healthy",
		"time":   time.Now().Unix(),
	}, http.StatusOK)
}

// stats 統計資訊
func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	h.jsonResponse(w, h.manager.Stats(), http.StatusOK)
}

// decode 解析請求並檢查玩家 ID
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, req interface{ playerID() int64 }) bool {
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		h.errorResponse(w, "無效的請求格式", http.StatusBadRequest)
		return false
	}
	if req.playerID() <= 0 {
		h.errorResponse(w, "玩家ID為必填", http.StatusBadRequest)
		return false
	}
	return true
}

func (r *playerRequest) playerID() int64   { return r.PlayerID }
func (r *readyRequest) playerID() int64    { return r.PlayerID }
func (r *moveRequest) playerID() int64     { return r.PlayerID }
func (r *settingsRequest) playerID() int64 { return r.PlayerID }

// stateResponse 返回對戰最新快照
func (h *Handler) stateResponse(w http.ResponseWriter, matchID string) {
	state, err := h.manager.GetMatchState(matchID)
	if err != nil {
		// 對戰可能在指令後立即結束並移除
		h.jsonResponse(w, map[string]any{
			"success": true,
		}, http.StatusOK)
		return
	}
	h.jsonResponse(w, state, http.StatusOK)
}

// jsonResponse 返回 JSON 響應
func (h *Handler) jsonResponse(w http.ResponseWriter, data any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("編碼 JSON 失敗", "error", err)
	}
}

// errorResponse 返回錯誤響應
func (h *Handler) errorResponse(w http.ResponseWriter, message string, status int) {
	h.jsonResponse(w, map[string]any{
		"error": message,
	}, status)
}

// appError 依錯誤碼返回對應的狀態碼
func (h *Handler) appError(w http.ResponseWriter, err error) {
	code := apperrors.Code(err)
	status := StatusFor(code)
	if status == http.StatusInternalServerError {
		h.logger.Error("處理請求失敗", "error", err)
	}
	h.jsonResponse(w, map[string]any{
		"error": err.Error(),
		"code":  code,
	}, status)
}

// StatusFor 錯誤碼對應的 HTTP 狀態碼
func StatusFor(code string) int {
	switch code {
	case apperrors.ErrCodeNotFound:
		return http.StatusNotFound
	case apperrors.ErrCodeNotParticipant:
		return http.StatusForbidden
	case apperrors.ErrCodeGameFull, apperrors.ErrCodeInvalidTransition:
		return http.StatusConflict
	case apperrors.ErrCodeInvalidInput:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// requestID 為每個請求附加 request_id
func (h *Handler) requestID(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next(w, r.WithContext(logger.WithRequestID(r.Context(), id)))
	}
}

// loggerMiddleware 日誌中間件
func (h *Handler) loggerMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// 包裝 ResponseWriter 以獲取狀態碼
		ww := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		next(ww, r)

		h.logger.InfoContext(r.Context(), "HTTP 請求",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.statusCode,
			"duration", time.Since(start))
	}
}

// recoverer panic 恢復中間件
func (h *Handler) recoverer(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				h.logger.ErrorContext(r.Context(), "處理請求時發生 panic",
					"error", err,
					"method", r.Method,
					"path", r.URL.Path)

				h.errorResponse(w, "內部伺服器錯誤", http.StatusInternalServerError)
			}
		}()

		next(w, r)
	}
}

// responseWriter 包裝 ResponseWriter 以獲取狀態碼
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (w *responseWriter) WriteHeader(code int) {
	w.statusCode = code
	w.ResponseWriter.WriteHeader(code)
}
