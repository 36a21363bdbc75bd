// internal/app/features/messages/pages.go
package messages

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/dalemusser/pinboard/internal/app/system/auth"
	"github.com/dalemusser/pinboard/internal/app/system/postview"
	"github.com/dalemusser/pinboard/internal/app/system/viewdata"
	"github.com/dalemusser/pinboard/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/templates"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/mongo"
)

// InboxRow is one conversation in the inbox.
type InboxRow struct {
	Username string
	Name     string
	ImageURL string
	Initial  string
	Preview  string
	FromMe   bool
	Unread   int
	When     string
}

type inboxVM struct {
	viewdata.BaseVM
	Conversations []InboxRow
}

// Bubble is one message in a thread.
type Bubble struct {
	Content string
	Mine    bool
	When    string
}

type threadVM struct {
	viewdata.BaseVM
	Partner  models.UserSummary
	Initial  string
	Messages []Bubble
	Error    string
	Success  string
}

const previewLen = 80

func (h *Handler) showInbox(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.CurrentUser(r)
	me := user.UserID()
	convs, err := h.conversations(r.Context(), me)
	if err != nil {
		h.errLog.Log(r, "failed to load conversations", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	rows := make([]InboxRow, 0, len(convs))
	for _, c := range convs {
		rows = append(rows, InboxRow{
			Username: c.Partner.Username,
			Name:     c.Partner.Name,
			ImageURL: c.Partner.ImageURL,
			Initial:  c.Partner.Initial(),
			Preview:  preview(c.LastMessage.Content),
			FromMe:   c.LastMessage.SenderID == me,
			Unread:   c.Unread,
			When:     c.LastMessage.CreatedAt.UTC().Format(postview.TimeLayout),
		})
	}
	templates.Render(w, r, "messages/inbox", inboxVM{
		BaseVM:        viewdata.NewBaseVM(r, "Messages", "/feed"),
		Conversations: rows,
	})
}

func preview(s string) string {
	rs := []rune(s)
	if len(rs) <= previewLen {
		return s
	}
	return string(rs[:previewLen]) + "…"
}

// showThread renders the conversation with one user and marks it read.
func (h *Handler) showThread(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user, _ := auth.CurrentUser(r)
	me := user.UserID()

	partner, err := h.users.GetByUsername(ctx, chi.URLParam(r, "username"))
	if errors.Is(err, mongo.ErrNoDocuments) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		h.errLog.Log(r, "failed to load message partner", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	msgs, err := h.messages.Conversation(ctx, me, partner.ID, threadLimit)
	if err != nil {
		h.errLog.Log(r, "failed to load conversation", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	if _, err := h.messages.MarkRead(ctx, me, partner.ID); err != nil {
		h.errLog.Log(r, "failed to mark messages read", err)
	}

	bubbles := make([]Bubble, 0, len(msgs))
	for _, m := range msgs {
		bubbles = append(bubbles, Bubble{
			Content: m.Content,
			Mine:    m.SenderID == me,
			When:    m.CreatedAt.UTC().Format(postview.TimeLayout),
		})
	}
	summary := models.UserSummary{ID: partner.ID, Name: partner.FullName, Username: partner.Username, ImageURL: partner.ImageURL}

	// Built after MarkRead so the nav badge is current.
	vm := threadVM{
		BaseVM:   viewdata.NewBaseVM(r, "Messages with @"+partner.Username, "/messages"),
		Partner:  summary,
		Initial:  summary.Initial(),
		Messages: bubbles,
		Error:    codeMessages[r.URL.Query().Get("error")],
	}
	templates.Render(w, r, "messages/thread", vm)
}

func (h *Handler) handleSend(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user, _ := auth.CurrentUser(r)
	username := chi.URLParam(r, "username")

	partner, err := h.users.GetByUsername(ctx, username)
	if errors.Is(err, mongo.ErrNoDocuments) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		h.errLog.Log(r, "failed to load message partner", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	if _, err := h.send(ctx, user.UserID(), partner.ID, r.FormValue("content")); err != nil {
		code := errorCode(err)
		if code == codeFailed {
			h.errLog.Log(r, "failed to send message", err)
		}
		http.Redirect(w, r, "/messages/"+url.PathEscape(partner.Username)+"?error="+code, http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, "/messages/"+url.PathEscape(partner.Username), http.StatusSeeOther)
}
