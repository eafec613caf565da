package web

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"stockdesk/internal/app"
	"stockdesk/internal/core"
)

// pendingProposal is stored server-side until the user confirms or cancels.
type pendingProposal struct {
	Proposal  core.ActionProposal
	CreatedAt time.Time
}

const pendingTTL = 15 * time.Minute

// pendingStore is a thread-safe in-memory store with TTL expiry. Proposals
// never execute from the interpret call alone: the client must round-trip the
// confirmation token.
type pendingStore struct {
	mu        sync.Mutex
	proposals map[string]pendingProposal
}

func newPendingStore() *pendingStore {
	return &pendingStore{proposals: make(map[string]pendingProposal)}
}

func (s *pendingStore) put(token string, p pendingProposal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.proposals[token] = p
}

func (s *pendingStore) get(token string) (pendingProposal, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.proposals[token]
	if !ok {
		return pendingProposal{}, false
	}
	if time.Since(p.CreatedAt) > pendingTTL {
		delete(s.proposals, token)
		return pendingProposal{}, false
	}
	return p, true
}

func (s *pendingStore) delete(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.proposals, token)
}

// startPurge starts a background goroutine that evicts expired entries every 5 minutes.
func (s *pendingStore) startPurge(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.mu.Lock()
				for token, p := range s.proposals {
					if time.Since(p.CreatedAt) > pendingTTL {
						delete(s.proposals, token)
					}
				}
				s.mu.Unlock()
			}
		}
	}()
}

type assistantResponse struct {
	IsClarification bool                 `json:"is_clarification"`
	Message         string               `json:"message,omitempty"`
	Proposal        *core.ActionProposal `json:"proposal,omitempty"`
	Token           string               `json:"token,omitempty"`
}

// assistantInterpret handles POST /api/assistant: it sends the natural-language
// request to the agent and returns either a clarification question or a
// proposal plus a confirmation token.
func (h *Handler) assistantInterpret(w http.ResponseWriter, r *http.Request) {
	var req app.AssistantRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	result, err := h.svc.InterpretRequest(r.Context(), req)
	if err != nil {
		serviceError(w, r, err)
		return
	}

	if result.IsClarification {
		writeJSON(w, assistantResponse{
			IsClarification: true,
			Message:         result.ClarificationMessage,
		})
		return
	}

	token := uuid.NewString()
	h.pending.put(token, pendingProposal{Proposal: *result.Proposal, CreatedAt: time.Now()})
	writeJSON(w, assistantResponse{
		Proposal: result.Proposal,
		Token:    token,
	})
}

type confirmRequest struct {
	Token  string `json:"token"`
	Cancel bool   `json:"cancel,omitempty"`
}

// assistantConfirm handles POST /api/assistant/confirm: it executes (or
// discards) a previously interpreted proposal identified by its token.
func (h *Handler) assistantConfirm(w http.ResponseWriter, r *http.Request) {
	var req confirmRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Token == "" {
		writeError(w, r, "token is required", "BAD_REQUEST", http.StatusBadRequest)
		return
	}

	pending, ok := h.pending.get(req.Token)
	if !ok {
		writeError(w, r, "token not found or expired", "NOT_FOUND", http.StatusNotFound)
		return
	}
	h.pending.delete(req.Token)

	if req.Cancel {
		writeJSON(w, map[string]string{"status": "cancelled"})
		return
	}

	result, err := h.svc.ExecuteProposal(r.Context(), pending.Proposal)
	if err != nil {
		serviceError(w, r, err)
		return
	}
	writeJSON(w, result)
}
