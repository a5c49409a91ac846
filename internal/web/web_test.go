package web

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/folio/internal/docservice"
	"github.com/starford/folio/internal/session"
	"github.com/starford/folio/internal/testutil"
)

// client carries the session cookie between requests like a browser.
type client struct {
	t       *testing.T
	handler http.Handler
	cookies map[string]*http.Cookie
}

func (c *client) do(req *http.Request) *httptest.ResponseRecorder {
	c.t.Helper()
	for _, ck := range c.cookies {
		req.AddCookie(ck)
	}
	w := httptest.NewRecorder()
	c.handler.ServeHTTP(w, req)
	for _, ck := range w.Result().Cookies() {
		if ck.MaxAge < 0 {
			delete(c.cookies, ck.Name)
			continue
		}
		c.cookies[ck.Name] = ck
	}
	return w
}

func (c *client) get(path string) *httptest.ResponseRecorder {
	return c.do(httptest.NewRequest(http.MethodGet, path, nil))
}

func (c *client) post(path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req)
}

// follow asserts w is a redirect and fetches its target.
func (c *client) follow(w *httptest.ResponseRecorder) *httptest.ResponseRecorder {
	c.t.Helper()
	require.Equal(c.t, http.StatusFound, w.Code, "body: %s", w.Body.String())
	return c.get(w.Header().Get("Location"))
}

func (c *client) signIn() {
	c.t.Helper()
	w := c.post("/users/signin", url.Values{"username": {"admin"}, "password": {"secret"}})
	require.Equal(c.t, http.StatusFound, w.Code)
}

func setup(t *testing.T) (*client, *testutil.Env) {
	t.Helper()
	env := testutil.NewEnv(t)
	env.AddUser(t, "admin", "secret")

	sessions, err := session.NewManager([]byte("test-secret-0123456789"), "folio_session", time.Hour)
	require.NoError(t, err)
	h, err := NewHandler(docservice.NewService(env.Store, env.History), env.Credentials, sessions)
	require.NoError(t, err)

	return &client{t: t, handler: NewRouter(h), cookies: map[string]*http.Cookie{}}, env
}

func TestIndex(t *testing.T) {
	c, env := setup(t)
	env.CreateDocument(t, "about.md", "# About")
	env.CreateDocument(t, "changes.txt", "v0")
	env.CreateDocument(t, "history.txt", "1993")

	w := c.get("/")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/html; charset=utf-8", w.Header().Get("Content-Type"))
	body := w.Body.String()
	for _, name := range []string{"about.md", "changes.txt", "history.txt"} {
		assert.Contains(t, body, name)
	}
	assert.NotContains(t, body, "View old content")
	assert.Contains(t, body, "Sign In")
}

func TestShow_PlainText(t *testing.T) {
	c, env := setup(t)
	env.CreateDocument(t, "history.txt", "1993 - Yukihiro Matsumoto dreams up Ruby.")

	w := c.get("/history.txt")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/plain; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Equal(t, "1993 - Yukihiro Matsumoto dreams up Ruby.", w.Body.String())
	assert.NotEmpty(t, w.Header().Get("ETag"))
}

func TestShow_NotModified(t *testing.T) {
	c, env := setup(t)
	env.CreateDocument(t, "history.txt", "1993")

	etag := c.get("/history.txt").Header().Get("ETag")
	req := httptest.NewRequest(http.MethodGet, "/history.txt", nil)
	req.Header.Set("If-None-Match", etag)
	w := c.do(req)
	assert.Equal(t, http.StatusNotModified, w.Code)
	assert.Empty(t, w.Body.String())
}

func TestShow_Markdown(t *testing.T) {
	c, env := setup(t)
	env.CreateDocument(t, "about.md", "# Ruby is...")

	w := c.get("/about.md")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/html; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), "<h1>Ruby is...</h1>")
}

func TestShow_Missing(t *testing.T) {
	c, _ := setup(t)

	w := c.follow(c.get("/notafile.ext"))
	assert.Contains(t, w.Body.String(), "notafile.ext does not exist.")

	// The flash is shown once.
	w = c.get("/")
	assert.NotContains(t, w.Body.String(), "does not exist")
}

func TestShow_Image(t *testing.T) {
	c, env := setup(t)
	png := []byte("\x89PNG\r\n\x1a\nrest")
	require.NoError(t, env.Store.CreateImage("pic.png", png))

	w := c.get("/pic.png")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.Equal(t, png, w.Body.Bytes())
}

func TestGuardedRoutesRedirectAnonymous(t *testing.T) {
	c, env := setup(t)
	env.CreateDocument(t, "changes.txt", "v0")

	for _, path := range []string{"/new", "/upload", "/changes.txt/edit", "/changes.txt/duplicate", "/changes.txt/history"} {
		w := c.get(path)
		require.Equal(t, http.StatusFound, w.Code, path)
		assert.Equal(t, "/", w.Header().Get("Location"), path)
		assert.Contains(t, c.get("/").Body.String(), MsgSignInRequired, path)
	}
}

func TestAnonymousMutationsChangeNothing(t *testing.T) {
	c, env := setup(t)
	env.CreateDocument(t, "changes.txt", "v0")

	c.post("/new", url.Values{"new_document": {"story.md"}})
	c.post("/changes.txt/edit", url.Values{"contents": {"new"}})
	c.post("/changes.txt/alter", url.Values{"delete": {"delete"}})
	c.post("/changes.txt/duplicate", url.Values{"duplicate_document": {"copy"}})

	entries, err := os.ReadDir(env.ContentDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	data, err := env.Store.Read("changes.txt")
	require.NoError(t, err)
	assert.Equal(t, "v0", string(data))
	hist, err := env.History.History("changes.txt")
	require.NoError(t, err)
	assert.Empty(t, hist)
}

func TestSignInFlow(t *testing.T) {
	c, _ := setup(t)

	w := c.get("/users/signin")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Username: </label>")
	assert.Contains(t, w.Body.String(), "Sign in</button>")

	w = c.post("/users/signin", url.Values{"username": {"admin"}, "password": {"wrong"}})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), MsgInvalidCredentials)
	assert.Contains(t, w.Body.String(), `value="admin"`)

	w = c.follow(c.post("/users/signin", url.Values{"username": {"admin"}, "password": {"secret"}}))
	assert.Contains(t, w.Body.String(), MsgWelcome)
	assert.Contains(t, w.Body.String(), "Signed in as admin")

	w = c.follow(c.post("/users/signout", nil))
	assert.Contains(t, w.Body.String(), MsgSignedOut)
	assert.Contains(t, w.Body.String(), "Sign In")
	assert.NotContains(t, w.Body.String(), "Signed in as")
}

func TestSignUp(t *testing.T) {
	c, _ := setup(t)

	w := c.follow(c.post("/users/signup", url.Values{"username": {"bob"}, "password": {"hunter2"}}))
	assert.Contains(t, w.Body.String(), "Welcome bob, our newest member!")
	assert.Contains(t, w.Body.String(), "Signed in as bob")

	c.post("/users/signout", nil)
	w = c.post("/users/signup", url.Values{"username": {"bob"}, "password": {"other"}})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), MsgUsernameTaken)

	w = c.post("/users/signup", url.Values{"username": {"  "}, "password": {"x"}})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), MsgSignUpFieldsBlank)

	w = c.follow(c.post("/users/signin", url.Values{"username": {"bob"}, "password": {"hunter2"}}))
	assert.Contains(t, w.Body.String(), "Signed in as bob")
}

func TestSignUp_LongPassword(t *testing.T) {
	c, _ := setup(t)
	long := strings.Repeat("x", 73)

	w := c.post("/users/signup", url.Values{"username": {"bob"}, "password": {long}})
	require.Equal(t, http.StatusFound, w.Code, "body: %s", w.Body.String())

	c.post("/users/signout", nil)
	w = c.follow(c.post("/users/signin", url.Values{"username": {"bob"}, "password": {long}}))
	assert.Contains(t, w.Body.String(), "Signed in as bob")
}

func TestSignInTrimsUsername(t *testing.T) {
	c, _ := setup(t)

	c.post("/users/signup", url.Values{"username": {" bob "}, "password": {"hunter2"}})
	c.post("/users/signout", nil)

	w := c.follow(c.post("/users/signin", url.Values{"username": {" bob"}, "password": {"hunter2"}}))
	assert.Contains(t, w.Body.String(), "Signed in as bob")
}

func TestFlashShownOnce(t *testing.T) {
	c, _ := setup(t)

	w := c.follow(c.post("/users/signin", url.Values{"username": {"admin"}, "password": {"secret"}}))
	assert.Contains(t, w.Body.String(), MsgWelcome)

	w = c.get("/")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), MsgWelcome)
	assert.Contains(t, w.Body.String(), "Signed in as admin")

	// A message set by a failed action is gone after one page too.
	w = c.follow(c.get("/missing.txt"))
	assert.Contains(t, w.Body.String(), "missing.txt does not exist.")
	w = c.get("/users/signin")
	assert.NotContains(t, w.Body.String(), "does not exist.")
}

func TestFlashWaitsForRenderedPage(t *testing.T) {
	c, env := setup(t)
	env.CreateDocument(t, "about.txt", "hello")

	w := c.post("/users/signin", url.Values{"username": {"admin"}, "password": {"secret"}})
	require.Equal(t, http.StatusFound, w.Code)

	w = c.get("/about.txt")
	assert.Equal(t, "hello", w.Body.String())

	w = c.get("/")
	assert.Contains(t, w.Body.String(), MsgWelcome)
	w = c.get("/")
	assert.NotContains(t, w.Body.String(), MsgWelcome)
}

func TestCreateDocument(t *testing.T) {
	c, env := setup(t)
	c.signIn()

	w := c.get("/new")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Add a new document")

	w = c.follow(c.post("/new", url.Values{"new_document": {"test.txt"}}))
	assert.Contains(t, w.Body.String(), "test.txt has been created.")
	assert.Contains(t, w.Body.String(), `href="/test.txt"`)

	exists, err := env.Store.Exists("test.txt")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestCreateDocument_Rejected(t *testing.T) {
	c, env := setup(t)
	env.CreateDocument(t, "taken.md", "x")
	c.signIn()

	tests := []struct {
		name string
		want string
	}{
		{"", "A name is required. Please enter a valid filename."},
		{"noext", "A file extension is required."},
		{"bad name.md", "Names may only contain letters, digits, underscores and hyphens."},
		{"script.sh", ".sh files are not supported."},
		{"taken.md", "taken.md already exists."},
	}
	for _, tt := range tests {
		w := c.post("/new", url.Values{"new_document": {tt.name}})
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code, tt.name)
		assert.Contains(t, w.Body.String(), tt.want, tt.name)
	}

	entries, err := os.ReadDir(env.ContentDir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestEditRecordsHistory(t *testing.T) {
	c, env := setup(t)
	env.CreateDocument(t, "changes.txt", "v0")
	c.signIn()

	w := c.get("/changes.txt/edit")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "<textarea")
	assert.Contains(t, w.Body.String(), "Save Changes</button>")

	w = c.follow(c.post("/changes.txt/edit", url.Values{"contents": {"new content"}}))
	assert.Contains(t, w.Body.String(), "changes.txt has been updated.")
	assert.Contains(t, w.Body.String(), "View old content")

	assert.Equal(t, "new content", c.get("/changes.txt").Body.String())

	w = c.get("/changes.txt/history")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "<pre>v0</pre>")
}

func TestEditMissing(t *testing.T) {
	c, _ := setup(t)
	c.signIn()

	w := c.follow(c.get("/nothing.txt/edit"))
	assert.Contains(t, w.Body.String(), "nothing.txt does not exist.")

	w = c.follow(c.post("/nothing.txt/edit", url.Values{"contents": {"x"}}))
	assert.Contains(t, w.Body.String(), "nothing.txt does not exist.")
}

func TestDelete(t *testing.T) {
	c, env := setup(t)
	env.CreateDocument(t, "test.txt", "x")
	c.signIn()

	w := c.follow(c.post("/test.txt/alter", url.Values{"delete": {"delete"}}))
	assert.Contains(t, w.Body.String(), "test.txt has been deleted.")

	w = c.get("/")
	assert.NotContains(t, w.Body.String(), `href="/test.txt"`)
	_, err := os.Stat(filepath.Join(env.ContentDir, "test.txt"))
	assert.True(t, os.IsNotExist(err))
}

func TestDuplicate(t *testing.T) {
	c, env := setup(t)
	env.CreateDocument(t, "changes.txt", "v0")
	c.signIn()

	w := c.post("/changes.txt/alter", url.Values{"duplicate": {"duplicate"}})
	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/changes.txt/duplicate", w.Header().Get("Location"))

	w = c.get("/changes.txt/duplicate")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `name="duplicate_document"`)

	w = c.follow(c.post("/changes.txt/duplicate", url.Values{"duplicate_document": {"copy"}}))
	assert.Contains(t, w.Body.String(), "A duplicate copy of changes.txt has been created as copy.txt.")

	data, err := env.Store.Read("copy.txt")
	require.NoError(t, err)
	assert.Equal(t, "v0", string(data))

	w = c.post("/changes.txt/duplicate", url.Values{"duplicate_document": {"copy"}})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "copy.txt already exists.")

	w = c.post("/changes.txt/duplicate", url.Values{"duplicate_document": {""}})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "A name is required.")
}

func TestAlterWithoutAction(t *testing.T) {
	c, env := setup(t)
	env.CreateDocument(t, "changes.txt", "v0")
	c.signIn()

	w := c.post("/changes.txt/alter", nil)
	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/", w.Header().Get("Location"))
	exists, err := env.Store.Exists("changes.txt")
	require.NoError(t, err)
	assert.True(t, exists)
}

func upload(t *testing.T, c *client, filename string, data []byte) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("image", filename)
	require.NoError(t, err)
	_, err = fw.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return c.do(req)
}

func TestUpload(t *testing.T) {
	c, env := setup(t)
	c.signIn()

	w := c.get("/upload")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "The image you would like to upload: ")

	w = c.follow(upload(t, c, "pic.png", []byte("png-bytes")))
	assert.Contains(t, w.Body.String(), "pic.png has been uploaded.")
	assert.Contains(t, w.Body.String(), `href="/pic.png"`)

	data, err := os.ReadFile(filepath.Join(env.ContentDir, "pic.png"))
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(data))

	w = upload(t, c, "notes.txt", []byte("text"))
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), ".txt files are not supported.")
	_, err = os.Stat(filepath.Join(env.ContentDir, "notes.txt"))
	assert.True(t, os.IsNotExist(err))
}

func TestHistoryEmpty(t *testing.T) {
	c, env := setup(t)
	env.CreateDocument(t, "about.md", "x")
	c.signIn()

	w := c.get("/about.md/history")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "No earlier versions.")
}
