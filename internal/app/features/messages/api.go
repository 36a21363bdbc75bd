// internal/app/features/messages/api.go
package messages

import (
	"net/http"

	"github.com/dalemusser/pinboard/internal/app/system/auth"
	"github.com/dalemusser/pinboard/internal/app/system/jsonutil"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type sendRequest struct {
	ReceiverID string `json:"receiverId"`
	Content    string `json:"content"`
}

func (h *Handler) apiSend(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.CurrentUser(r)
	var req sendRequest
	if err := jsonutil.Decode(r, &req); err != nil {
		jsonutil.BadRequest(w, "Invalid request body")
		return
	}
	to, err := primitive.ObjectIDFromHex(req.ReceiverID)
	if err != nil {
		jsonutil.BadRequest(w, "Invalid receiver id")
		return
	}

	m, err := h.send(r.Context(), user.UserID(), to, req.Content)
	if err != nil {
		switch code := errorCode(err); code {
		case codeMissing:
			jsonutil.NotFound(w, codeMessages[code])
		case codeFailed:
			h.errLog.Log(r, "failed to send message", err)
			jsonutil.InternalError(w, "Failed to send message")
		default:
			jsonutil.BadRequest(w, codeMessages[code])
		}
		return
	}
	jsonutil.Created(w, m)
}

func (h *Handler) apiConversations(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.CurrentUser(r)
	convs, err := h.conversations(r.Context(), user.UserID())
	if err != nil {
		h.errLog.Log(r, "failed to load conversations", err)
		jsonutil.InternalError(w, "Failed to load conversations")
		return
	}
	jsonutil.OK(w, convs)
}

// apiConversation returns the thread with one user and marks what they
// sent as read.
func (h *Handler) apiConversation(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.CurrentUser(r)
	me := user.UserID()
	other, err := primitive.ObjectIDFromHex(chi.URLParam(r, "userId"))
	if err != nil {
		jsonutil.BadRequest(w, "Invalid user id")
		return
	}

	msgs, err := h.messages.Conversation(r.Context(), me, other, threadLimit)
	if err != nil {
		h.errLog.Log(r, "failed to load conversation", err)
		jsonutil.InternalError(w, "Failed to load conversation")
		return
	}
	if _, err := h.messages.MarkRead(r.Context(), me, other); err != nil {
		h.errLog.Log(r, "failed to mark messages read", err)
	}
	jsonutil.OK(w, msgs)
}
