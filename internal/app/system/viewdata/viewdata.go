// internal/app/system/viewdata/viewdata.go
package viewdata

import (
	"context"
	"net/http"
	"strings"

	messagestore "github.com/dalemusser/pinboard/internal/app/store/messages"
	"github.com/dalemusser/pinboard/internal/app/system/authz"
	"github.com/dalemusser/pinboard/internal/app/system/timeouts"
	"github.com/dalemusser/waffle/pantry/httpnav"
	"github.com/gorilla/csrf"
	"go.mongodb.org/mongo-driver/mongo"
)

// DefaultSiteName is used until Init supplies the configured name.
const DefaultSiteName = "PinBoard"

// BaseVM carries the fields the shared layout needs. Embed it in page
// view models:
//
//	data := boardsVM{BaseVM: viewdata.NewBaseVM(r, "Boards", "/feed")}
type BaseVM struct {
	SiteName string

	IsLoggedIn      bool
	IsAdmin         bool
	UserID          string
	Username        string
	UserName        string
	UserImageURL    string
	Role            string
	ThemePreference string
	UnreadMessages  int64

	Title       string
	BackURL     string
	CurrentPath string

	CSRFToken string
}

// UserInitial is the avatar fallback letter.
func (vm BaseVM) UserInitial() string {
	name := strings.TrimSpace(vm.UserName)
	if name == "" {
		name = vm.Username
	}
	if name == "" {
		return "?"
	}
	return strings.ToUpper(string([]rune(name)[0]))
}

var (
	siteName = DefaultSiteName
	messages *messagestore.Store
)

// Init sets the site name and the database used for the unread badge.
// Call once at startup.
func Init(name string, db *mongo.Database) {
	if strings.TrimSpace(name) != "" {
		siteName = name
	}
	if db != nil {
		messages = messagestore.New(db)
	}
}

// SiteName returns the configured site name.
func SiteName() string { return siteName }

// NewBaseVM builds the BaseVM for a titled page. backDefault is used when
// the request carries no return path.
func NewBaseVM(r *http.Request, title, backDefault string) BaseVM {
	vm := New(r)
	vm.Title = title
	vm.BackURL = httpnav.ResolveBackURL(r, backDefault)
	return vm
}

// New builds the BaseVM from the request's signed-in user.
func New(r *http.Request) BaseVM {
	v := authz.ViewerOf(r)
	role := v.Role
	if !v.SignedIn() {
		role = "visitor"
	}

	vm := BaseVM{
		SiteName:        siteName,
		IsLoggedIn:      v.SignedIn(),
		IsAdmin:         v.IsAdmin(),
		Role:            role,
		UserName:        v.Name,
		ThemePreference: v.Theme,
		CurrentPath:     httpnav.CurrentPath(r),
		CSRFToken:       csrf.Token(r),
	}
	if !v.SignedIn() {
		return vm
	}

	userID := v.ID
	vm.UserID = userID.Hex()
	vm.Username = v.Username
	vm.UserImageURL = v.ImageURL
	if messages != nil {
		ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
		defer cancel()
		if n, err := messages.UnreadCount(ctx, userID); err == nil {
			vm.UnreadMessages = n
		}
	}
	return vm
}
