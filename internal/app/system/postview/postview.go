// Package postview turns stored posts into the cards rendered on the feed,
// board, profile and search pages and returned by the posts API.
package postview

import (
	"context"
	"html/template"
	"net/http"
	"time"

	boardstore "github.com/dalemusser/pinboard/internal/app/store/boards"
	commentstore "github.com/dalemusser/pinboard/internal/app/store/comments"
	engagementstore "github.com/dalemusser/pinboard/internal/app/store/engagement"
	userstore "github.com/dalemusser/pinboard/internal/app/store/users"
	"github.com/dalemusser/pinboard/internal/app/system/auth"
	"github.com/dalemusser/pinboard/internal/app/system/htmlsanitize"
	"github.com/dalemusser/pinboard/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// TimeLayout is used for every timestamp shown next to content.
const TimeLayout = "Jan 2, 2006 3:04 PM"

// BoardRef names the board a post was made in.
type BoardRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// CommentVM is one comment under a post card.
type CommentVM struct {
	ID        string             `json:"id"`
	Author    models.UserSummary `json:"user"`
	Initial   string             `json:"-"`
	Content   string             `json:"content"`
	CreatedAt time.Time          `json:"createdAt"`
	When      string             `json:"-"`
}

// PostVM is a post card.
type PostVM struct {
	ID            string             `json:"id"`
	Author        models.UserSummary `json:"user"`
	AuthorInitial string             `json:"-"`
	Board         *BoardRef          `json:"bulletinBoard,omitempty"`

	Content     string        `json:"content"`
	ContentHTML template.HTML `json:"-"`
	Hashtags    []string      `json:"hashtags,omitempty"`

	MediaURL string `json:"mediaUrl,omitempty"`
	IsImage  bool   `json:"-"`
	IsVideo  bool   `json:"-"`

	Likes    int `json:"likes"`
	Comments int `json:"commentCount"`
	Reposts  int `json:"reposts"`
	Shares   int `json:"shares"`

	Liked     bool `json:"liked"`
	Reposted  bool `json:"reposted"`
	CanDelete bool `json:"canDelete"`

	CommentList []CommentVM `json:"comments"`

	CreatedAt time.Time `json:"createdAt"`
	When      string    `json:"-"`
}

// Viewer is who the cards are built for.
type Viewer struct {
	ID      primitive.ObjectID
	IsAdmin bool
}

// Builder joins posts with their authors, boards, comments and the viewer's
// engagement.
type Builder struct {
	users      *userstore.Store
	boards     *boardstore.Store
	comments   *commentstore.Store
	engagement *engagementstore.Store
	log        *zap.Logger
}

func NewBuilder(db *mongo.Database, logger *zap.Logger) *Builder {
	return &Builder{
		users:      userstore.New(db),
		boards:     boardstore.New(db, logger),
		comments:   commentstore.New(db),
		engagement: engagementstore.New(db, logger),
		log:        logger,
	}
}

// Build returns one card per post, in the order given. Comments are only
// loaded when withComments is set.
func (b *Builder) Build(ctx context.Context, posts []models.Post, viewer Viewer, withComments bool) ([]PostVM, error) {
	if len(posts) == 0 {
		return []PostVM{}, nil
	}

	postIDs := make([]primitive.ObjectID, len(posts))
	userIDs := make([]primitive.ObjectID, 0, len(posts))
	var boardIDs []primitive.ObjectID
	for i, p := range posts {
		postIDs[i] = p.ID
		userIDs = append(userIDs, p.UserID)
		if p.BoardID != nil {
			boardIDs = append(boardIDs, *p.BoardID)
		}
	}

	var byPost map[primitive.ObjectID][]models.Comment
	if withComments {
		var err error
		byPost, err = b.comments.ListByPosts(ctx, postIDs)
		if err != nil {
			return nil, err
		}
		for _, cs := range byPost {
			for _, c := range cs {
				userIDs = append(userIDs, c.UserID)
			}
		}
	}

	authors, err := b.users.Summaries(ctx, userIDs)
	if err != nil {
		return nil, err
	}
	boards, err := b.boards.GetByIDs(ctx, boardIDs)
	if err != nil {
		return nil, err
	}

	liked := map[primitive.ObjectID]bool{}
	reposted := map[primitive.ObjectID]bool{}
	if !viewer.ID.IsZero() {
		if liked, err = b.engagement.LikedSet(ctx, viewer.ID, postIDs); err != nil {
			return nil, err
		}
		if reposted, err = b.engagement.RepostedSet(ctx, viewer.ID, postIDs); err != nil {
			return nil, err
		}
	}

	out := make([]PostVM, len(posts))
	for i, p := range posts {
		author := summaryOf(authors, p.UserID)
		vm := PostVM{
			ID:            p.ID.Hex(),
			Author:        author,
			AuthorInitial: author.Initial(),
			Content:       p.Content,
			ContentHTML:   htmlsanitize.Render(p.Content),
			Hashtags:      p.Hashtags,
			MediaURL:      p.MediaURL,
			IsImage:       p.MediaURL != "" && p.MediaType == models.MediaImage,
			IsVideo:       p.MediaURL != "" && p.MediaType == models.MediaVideo,
			Likes:         p.LikeCount,
			Comments:      p.CommentCount,
			Reposts:       p.RepostCount,
			Shares:        p.ShareCount,
			Liked:         liked[p.ID],
			Reposted:      reposted[p.ID],
			CanDelete:     viewer.IsAdmin || (!viewer.ID.IsZero() && viewer.ID == p.UserID),
			CommentList:   []CommentVM{},
			CreatedAt:     p.CreatedAt,
			When:          p.CreatedAt.UTC().Format(TimeLayout),
		}
		if p.BoardID != nil {
			if bd, ok := boards[*p.BoardID]; ok {
				vm.Board = &BoardRef{ID: bd.ID.Hex(), Name: bd.Name, Slug: bd.Slug}
			}
		}
		for _, c := range byPost[p.ID] {
			vm.CommentList = append(vm.CommentList, Comment(c, summaryOf(authors, c.UserID)))
		}
		out[i] = vm
	}
	return out, nil
}

// Comment builds a single comment card.
func Comment(c models.Comment, author models.UserSummary) CommentVM {
	return CommentVM{
		ID:        c.ID.Hex(),
		Author:    author,
		Initial:   author.Initial(),
		Content:   c.Content,
		CreatedAt: c.CreatedAt,
		When:      c.CreatedAt.UTC().Format(TimeLayout),
	}
}

// summaryOf falls back to a placeholder for accounts that no longer exist.
func summaryOf(m map[primitive.ObjectID]models.UserSummary, id primitive.ObjectID) models.UserSummary {
	if s, ok := m[id]; ok {
		return s
	}
	return models.UserSummary{ID: id, Name: "Deleted user", Username: "deleted"}
}

// Composer feeds the shared post_form template. Pages that show the form
// embed it next to their BaseVM.
type Composer struct {
	PostBoardID  string
	PostBoards   []BoardRef
	ComposeError string
}

// Compose error codes carried back to the page in the "compose" query
// parameter after a failed form post.
const (
	ComposeEmpty     = "empty"
	ComposeTooLong   = "too_long"
	ComposeNotMember = "not_member"
	ComposeTooLarge  = "media_too_large"
	ComposeMediaType = "media_type"
	ComposeFailed    = "failed"
)

// ComposeMessage maps a compose error code to the text shown above the form.
func ComposeMessage(code string) string {
	switch code {
	case "":
		return ""
	case ComposeEmpty:
		return "Write something or attach a photo or video."
	case ComposeTooLong:
		return "Posts can be at most 2000 characters."
	case ComposeNotMember:
		return "Join the board to post in it."
	case ComposeTooLarge:
		return "That file is too large."
	case ComposeMediaType:
		return "Only images and videos can be attached."
	default:
		return "Your post could not be published. Please try again."
	}
}

// ViewerOf returns the signed-in viewer of r, or the zero Viewer.
func ViewerOf(r *http.Request) Viewer {
	u, ok := auth.CurrentUser(r)
	if !ok {
		return Viewer{}
	}
	return Viewer{ID: u.UserID(), IsAdmin: u.Role == models.RoleAdmin}
}
