// Package session 会话接口的HTTP处理器
package session

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/z-novel-studio/internal/service/conversation"
	sessionService "github.com/zhouzirui/z-novel-studio/internal/service/session"
	"github.com/zhouzirui/z-novel-studio/pkg/utils"
)

// Handler 将会话操作暴露为 REST 接口
type Handler struct {
	sessions *sessionService.Service
}

// New 创建会话处理器
func New(sessions *sessionService.Service) *Handler {
	return &Handler{sessions: sessions}
}

// RegisterRoutes 注册会话相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/sessions", h.handleCreate)
	r.Route("/sessions/{sessionID}", func(sr chi.Router) {
		sr.Get("/", h.handleSnapshot)
		sr.Delete("/", h.handleDelete)
		sr.Post("/commit", h.handleCommit)
		sr.Post("/rollback", h.handleRollback)
		sr.Get("/suggestions", h.handleSuggestions)
		sr.Get("/analysis", h.handleAnalysisState)
		sr.Post("/analyze", h.handleAnalyze)
		sr.Get("/novels", h.handleListNovels)
		sr.Post("/novels", h.handleGenerateNovel)
		sr.Put("/guide", h.handleSetGuide)
	})
}

// handleCreate 创建会话并装载章节上下文
func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		ChapterID int64 `json:"chapter_id"`
		UserID    int64 `json:"user_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if payload.ChapterID <= 0 || payload.UserID <= 0 {
		utils.RespondError(w, http.StatusBadRequest, "chapter_id and user_id are required")
		return
	}

	id, sess, analysisDue, err := h.sessions.Create(r.Context(), payload.ChapterID, payload.UserID)
	if err != nil {
		utils.RespondError(w, http.StatusBadGateway, err.Error())
		return
	}
	if analysisDue {
		h.kickAnalysis(id, sess)
	}

	utils.RespondJSON(w, http.StatusCreated, map[string]any{
		"id":       id,
		"snapshot": sess.Snapshot(),
	})
}

// handleSnapshot 返回会话当前状态
func (h *Handler) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.lookup(w, r)
	if !ok {
		return
	}
	utils.RespondJSON(w, http.StatusOK, sess.Snapshot())
}

// handleDelete 丢弃会话
func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	if err := h.sessions.Delete(id); err != nil {
		utils.RespondError(w, http.StatusNotFound, err.Error())
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// handleCommit 提交当前输入并生成AI续写
func (h *Handler) handleCommit(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.lookup(w, r)
	if !ok {
		return
	}

	var payload struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := sess.CommitEdit(r.Context(), payload.Text)
	if err != nil {
		utils.RespondError(w, commitStatus(err), err.Error())
		return
	}
	if result.AnalysisDue {
		h.kickAnalysis(chi.URLParam(r, "sessionID"), sess)
	}

	utils.RespondJSON(w, http.StatusOK, result)
}

// handleRollback 回溯到指定消息
func (h *Handler) handleRollback(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.lookup(w, r)
	if !ok {
		return
	}

	var payload struct {
		MessageID int64 `json:"message_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if payload.MessageID == 0 {
		utils.RespondError(w, http.StatusBadRequest, "message_id is required")
		return
	}

	result, err := sess.Rollback(r.Context(), payload.MessageID)
	if err != nil {
		utils.RespondError(w, http.StatusBadGateway, err.Error())
		return
	}
	if result.AnalysisDue {
		h.kickAnalysis(chi.URLParam(r, "sessionID"), sess)
	}

	utils.RespondJSON(w, http.StatusOK, result)
}

// handleSuggestions 获取写作建议
func (h *Handler) handleSuggestions(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.lookup(w, r)
	if !ok {
		return
	}

	suggestions, err := sess.FetchSuggestions(r.Context())
	if err != nil {
		if errors.Is(err, conversation.ErrNotEditing) {
			utils.RespondError(w, http.StatusConflict, err.Error())
			return
		}
		utils.RespondError(w, http.StatusBadGateway, err.Error())
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string][]string{"suggestions": suggestions})
}

// handleAnalysisState 返回剧情分析状态
func (h *Handler) handleAnalysisState(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.lookup(w, r)
	if !ok {
		return
	}
	utils.RespondJSON(w, http.StatusOK, sess.Snapshot().Analysis)
}

// handleAnalyze 手动触发剧情分析
func (h *Handler) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.lookup(w, r)
	if !ok {
		return
	}

	analysis, err := sess.AnalyzeStory(r.Context())
	if err != nil {
		if errors.Is(err, conversation.ErrAnalysisInFlight) {
			utils.RespondError(w, http.StatusConflict, err.Error())
			return
		}
		utils.RespondError(w, http.StatusBadGateway, err.Error())
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]string{"analysis": analysis})
}

// handleListNovels 列出故事集
func (h *Handler) handleListNovels(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.lookup(w, r)
	if !ok {
		return
	}
	utils.RespondJSON(w, http.StatusOK, sess.Snapshot().Novels)
}

// handleGenerateNovel 将对话生成为独立故事
func (h *Handler) handleGenerateNovel(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.lookup(w, r)
	if !ok {
		return
	}

	novel, err := sess.GenerateStory(r.Context())
	if err != nil {
		if errors.Is(err, conversation.ErrNovelInFlight) {
			utils.RespondError(w, http.StatusConflict, err.Error())
			return
		}
		utils.RespondError(w, http.StatusBadGateway, err.Error())
		return
	}
	utils.RespondJSON(w, http.StatusCreated, novel)
}

// handleSetGuide 保存剧情引导
func (h *Handler) handleSetGuide(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.lookup(w, r)
	if !ok {
		return
	}

	var payload struct {
		StoryGuide string `json:"story_guide"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sess.SetStoryGuide(payload.StoryGuide)
	utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "saved"})
}

func (h *Handler) lookup(w http.ResponseWriter, r *http.Request) (*conversation.Session, bool) {
	sess, err := h.sessions.Get(chi.URLParam(r, "sessionID"))
	if err != nil {
		utils.RespondError(w, http.StatusNotFound, err.Error())
		return nil, false
	}
	return sess, true
}

// kickAnalysis runs story analysis in the background. In-flight requests are
// never cancelled by the triggering request; failures stay in their own panel.
func (h *Handler) kickAnalysis(sessionID string, sess *conversation.Session) {
	go func() {
		if _, err := sess.AnalyzeStory(context.Background()); err != nil {
			if errors.Is(err, conversation.ErrAnalysisInFlight) {
				return
			}
			log.Printf("[analysis] session=%s failed: %v", sessionID, err)
		}
	}()
}

func commitStatus(err error) int {
	switch {
	case errors.Is(err, conversation.ErrTurnInFlight):
		return http.StatusConflict
	case errors.Is(err, conversation.ErrNotEditing):
		return http.StatusConflict
	default:
		return http.StatusBadGateway
	}
}
