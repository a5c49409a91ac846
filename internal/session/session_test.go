package session

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/starford/folio/internal/auth"
)

func testManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager([]byte("0123456789abcdef0123456789abcdef"), "folio_session", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	return m
}

// roundTrip saves st and returns a request carrying the resulting cookie.
func roundTrip(t *testing.T, m *Manager, st *State) *http.Request {
	t.Helper()
	w := httptest.NewRecorder()
	if err := m.Save(w, st); err != nil {
		t.Fatalf("Save: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range w.Result().Cookies() {
		req.AddCookie(c)
	}
	return req
}

func TestSaveLoad(t *testing.T) {
	m := testManager(t)
	req := roundTrip(t, m, &State{Username: "admin", Flash: "Welcome!"})

	st := m.Load(req)
	if st.Username != "admin" || st.Flash != "Welcome!" {
		t.Errorf("state = %+v", st)
	}
	if !st.SignedIn() {
		t.Error("expected signed in")
	}
}

func TestLoad_NoCookie(t *testing.T) {
	m := testManager(t)
	st := m.Load(httptest.NewRequest(http.MethodGet, "/", nil))
	if st.SignedIn() || st.Flash != "" {
		t.Errorf("state = %+v, want empty", st)
	}
}

func TestLoad_TamperedCookie(t *testing.T) {
	m := testManager(t)
	other, _ := NewManager([]byte("another-secret-of-enough-length!"), "folio_session", time.Hour)
	req := roundTrip(t, other, &State{Username: "admin"})

	if st := m.Load(req); st.SignedIn() {
		t.Error("cookie signed with another key must be rejected")
	}
}

func TestLoad_Expired(t *testing.T) {
	m := testManager(t)
	req := roundTrip(t, m, &State{Username: "admin"})

	m.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	if st := m.Load(req); st.SignedIn() {
		t.Error("expired cookie must be rejected")
	}
}

func TestSave_EmptyClearsCookie(t *testing.T) {
	m := testManager(t)
	w := httptest.NewRecorder()
	if err := m.Save(w, &State{}); err != nil {
		t.Fatal(err)
	}
	cookies := w.Result().Cookies()
	if len(cookies) != 1 || cookies[0].MaxAge >= 0 {
		t.Errorf("cookies = %+v, want a deletion cookie", cookies)
	}
}

func TestPopFlash(t *testing.T) {
	st := &State{Flash: "hello"}
	if got := st.PopFlash(); got != "hello" {
		t.Errorf("PopFlash = %q", got)
	}
	if st.Flash != "" {
		t.Error("flash not cleared")
	}
}

func TestMiddleware_SetsIdentity(t *testing.T) {
	m := testManager(t)
	req := roundTrip(t, m, &State{Username: "admin"})

	var gotUser string
	var gotState *State
	h := m.Middleware(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		gotUser, _ = auth.User(r.Context())
		gotState = FromContext(r.Context())
	}))
	h.ServeHTTP(httptest.NewRecorder(), req)

	if gotUser != "admin" {
		t.Errorf("auth user = %q", gotUser)
	}
	if gotState == nil || gotState.Username != "admin" {
		t.Errorf("state = %+v", gotState)
	}
}

func TestNewManager_EmptySecret(t *testing.T) {
	if _, err := NewManager(nil, "s", time.Hour); err == nil {
		t.Fatal("expected error for empty secret")
	}
}
