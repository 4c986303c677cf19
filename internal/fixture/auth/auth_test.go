package auth

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestLogin_FixedResult(t *testing.T) {
	want := map[string]string{"user_id": "123", "token": "abc"}

	cases := []struct{ email, password string }{
		{"alice@example.com", "hunter2"},
		{"", ""},
		{"not-an-email", "x"},
	}
	for _, tc := range cases {
		got := Login(tc.email, tc.password)
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("Login(%q, %q) mismatch (-want +got):\n%s", tc.email, tc.password, diff)
		}
	}
}

func TestLogout_MutatesNothing(t *testing.T) {
	session := map[string]any{"user_id": "123", "created_at": int64(1000)}
	want := map[string]any{"user_id": "123", "created_at": int64(1000)}

	Logout(session)
	Logout(nil)
	Logout(map[string]any{})

	if diff := cmp.Diff(want, session); diff != "" {
		t.Errorf("Logout mutated session (-want +got):\n%s", diff)
	}
}

func TestCheckSessionExpiry(t *testing.T) {
	now := time.Now().Unix()

	tests := []struct {
		name    string
		session map[string]any
		want    bool
	}{
		{"empty session defaults to epoch", map[string]any{}, true},
		{"fresh session", map[string]any{"created_at": now}, false},
		{"just inside threshold", map[string]any{"created_at": now - 5399}, false},
		{"just past threshold", map[string]any{"created_at": now - 5401}, true},
		{"float timestamp", map[string]any{"created_at": float64(now)}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CheckSessionExpiry(tt.session); got != tt.want {
				t.Errorf("CheckSessionExpiry(%v) = %v, want %v", tt.session, got, tt.want)
			}
		})
	}
}

// The annotation comments are the whole point of this package; downstream
// scanning depends on their exact text and placement.
func TestAnnotationsPreserved(t *testing.T) {
	src, err := os.ReadFile("auth.go")
	if err != nil {
		t.Fatalf("read auth.go: %v", err)
	}
	content := string(src)

	for _, tag := range []string{
		"// @req FR:sample-feature/auth.login",
		"// @req FR:sample-feature/auth.logout",
		"// @req FR:sample-feature/auth.session.expiry",
	} {
		if !strings.Contains(content, tag) {
			t.Errorf("missing annotation %q", tag)
		}
	}

	// Module-level block: login and logout tags before the package clause.
	pkgIdx := strings.Index(content, "package auth")
	header := content[:pkgIdx]
	if strings.Count(header, "@req") != 2 {
		t.Errorf("expected 2 module-level tags before package clause, got %d", strings.Count(header, "@req"))
	}
}
