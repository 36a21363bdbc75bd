package viewdata

import (
	"net/http/httptest"
	"testing"

	"github.com/dalemusser/pinboard/internal/app/system/auth"
)

func TestNew_SignedOut(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	vm := New(r)
	if vm.IsLoggedIn || vm.UserID != "" {
		t.Errorf("signed-out vm = %+v", vm)
	}
	if vm.SiteName == "" {
		t.Error("SiteName empty")
	}
	if vm.UserInitial() != "?" {
		t.Errorf("UserInitial() = %q, want ?", vm.UserInitial())
	}
}

func TestNewBaseVM_SignedIn(t *testing.T) {
	r := httptest.NewRequest("GET", "/boards", nil)
	r = auth.WithTestUser(r, &auth.SessionUser{
		ID:       "507f1f77bcf86cd799439011",
		Name:     "ada lovelace",
		Username: "ada",
		Role:     "admin",
		ImageURL: "/media/a.png",
	})

	vm := NewBaseVM(r, "Boards", "/feed")
	if !vm.IsLoggedIn || !vm.IsAdmin {
		t.Errorf("vm flags = %+v", vm)
	}
	if vm.Username != "ada" || vm.UserImageURL != "/media/a.png" {
		t.Errorf("vm user fields = %+v", vm)
	}
	if vm.Title != "Boards" || vm.CurrentPath != "/boards" {
		t.Errorf("vm page fields = %+v", vm)
	}
	if vm.UserInitial() != "A" {
		t.Errorf("UserInitial() = %q, want A", vm.UserInitial())
	}
}
