package server_test

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jjudge-oj/todolist/config"
	"github.com/jjudge-oj/todolist/internal/server"
	"github.com/jjudge-oj/todolist/internal/services"
	"github.com/jjudge-oj/todolist/internal/session"
	"github.com/jjudge-oj/todolist/internal/storage"
	"github.com/jjudge-oj/todolist/internal/store"
	"github.com/jjudge-oj/todolist/types"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type testApp struct {
	server *httptest.Server
	users  *vanishingUsers
	todos  *store.MemoryTodoRepository
}

// vanishingUsers can pretend every user was deleted.
type vanishingUsers struct {
	*store.MemoryUserRepository
	gone atomic.Bool
}

func (v *vanishingUsers) GetByID(ctx context.Context, id string) (types.User, error) {
	if v.gone.Load() {
		return types.User{}, store.ErrNotFound
	}
	return v.MemoryUserRepository.GetByID(ctx, id)
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	objects, err := storage.NewLocalClient(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, objects.EnsureBucket(context.Background()))

	app := &testApp{
		users: &vanishingUsers{MemoryUserRepository: store.NewMemoryUserRepository()},
		todos: store.NewMemoryTodoRepository(),
	}

	cfg := config.Config{
		Title: "full-stack todo app",
		Session: config.SessionConfig{
			Secret:     "test-secret",
			CookieName: "todolist.sid",
			TTL:        time.Hour,
		},
		Upload: config.UploadConfig{MaxBytes: 1 << 20},
	}
	handler, err := server.NewHandler(cfg, server.Dependencies{
		Users:       app.users,
		Todos:       app.todos,
		Sessions:    session.NewMemoryStore(),
		Objects:     objects,
		AuthOptions: []services.AuthOption{services.WithHashCost(bcrypt.MinCost)},
	})
	require.NoError(t, err)

	app.server = httptest.NewServer(handler)
	t.Cleanup(app.server.Close)
	return app
}

// browser follows redirects and keeps cookies.
func (a *testApp) browser(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{Jar: jar}
}

// noFollow returns a client sharing c's cookies that stops at redirects.
func noFollow(c *http.Client) *http.Client {
	return &http.Client{
		Jar: c.Jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func (a *testApp) get(t *testing.T, c *http.Client, path string) (*http.Response, string) {
	t.Helper()
	resp, err := c.Get(a.server.URL + path)
	require.NoError(t, err)
	return resp, readBody(t, resp)
}

func (a *testApp) postForm(t *testing.T, c *http.Client, path string, values url.Values) (*http.Response, string) {
	t.Helper()
	resp, err := c.PostForm(a.server.URL+path, values)
	require.NoError(t, err)
	return resp, readBody(t, resp)
}

func (a *testApp) upload(t *testing.T, c *http.Client, filename string, content []byte) (*http.Response, string) {
	t.Helper()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	if filename != "" {
		part, err := writer.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	} else {
		require.NoError(t, writer.WriteField("note", "no file here"))
	}
	require.NoError(t, writer.Close())

	req, err := http.NewRequest(http.MethodPost, a.server.URL+"/profile", &body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.Do(req)
	require.NoError(t, err)
	return resp, readBody(t, resp)
}

func (a *testApp) registerAndLogin(t *testing.T, c *http.Client) {
	t.Helper()

	resp, body := a.postForm(t, c, "/register", url.Values{
		"username":  {"alice"},
		"email":     {"a@x.com"},
		"password":  {"secret1"},
		"password2": {"secret1"},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "/login", resp.Request.URL.Path)
	require.Contains(t, body, services.MsgRegistered)

	resp, body = a.postForm(t, c, "/login", url.Values{
		"username": {"alice"},
		"password": {"secret1"},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "/profile", resp.Request.URL.Path)
	require.Contains(t, body, "alice")
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(data)
}

func TestHealthz(t *testing.T) {
	app := newTestApp(t)

	resp, body := app.get(t, app.browser(t), "/healthz")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "ok", body)
}

func TestStaticAssets(t *testing.T) {
	app := newTestApp(t)

	resp, _ := app.get(t, app.browser(t), types.DefaultImagePath)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = app.get(t, app.browser(t), "/static/css/style.css")
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRegisterLoginProfile(t *testing.T) {
	app := newTestApp(t)
	c := app.browser(t)

	app.registerAndLogin(t, c)

	resp, body := app.get(t, c, "/profile")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, body, "alice")
	require.Contains(t, body, types.DefaultImagePath)
}

func TestRegister_MismatchedPasswordsCreatesNoUser(t *testing.T) {
	app := newTestApp(t)

	resp, body := app.postForm(t, app.browser(t), "/register", url.Values{
		"username":  {"alice"},
		"email":     {"a@x.com"},
		"password":  {"secret1"},
		"password2": {"secret2"},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "/register", resp.Request.URL.Path)
	require.Contains(t, body, services.MsgPasswordsMismatch)
	require.Contains(t, body, `value="alice"`)

	_, err := app.users.GetByUsername(context.Background(), "alice")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestRegister_DuplicateEmail(t *testing.T) {
	app := newTestApp(t)
	app.registerAndLogin(t, app.browser(t))

	_, body := app.postForm(t, app.browser(t), "/register", url.Values{
		"username":  {"bob"},
		"email":     {"a@x.com"},
		"password":  {"secret1"},
		"password2": {"secret1"},
	})
	require.Contains(t, body, services.MsgEmailRegistered)

	_, err := app.users.GetByUsername(context.Background(), "bob")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestLogin_WrongPasswordEstablishesNoSession(t *testing.T) {
	app := newTestApp(t)
	app.registerAndLogin(t, app.browser(t))

	c := app.browser(t)
	resp, body := app.postForm(t, c, "/login", url.Values{
		"username": {"alice"},
		"password": {"wrong-password"},
	})
	require.Equal(t, "/login", resp.Request.URL.Path)
	require.Contains(t, body, services.MsgPasswordIncorrect)

	resp, body = app.get(t, c, "/profile")
	require.Equal(t, "/login", resp.Request.URL.Path)
	require.Contains(t, body, services.MsgLoginRequired)
}

func TestLogin_UnknownUsername(t *testing.T) {
	app := newTestApp(t)

	resp, body := app.postForm(t, app.browser(t), "/login", url.Values{
		"username": {"ghost"},
		"password": {"secret1"},
	})
	require.Equal(t, "/login", resp.Request.URL.Path)
	require.Contains(t, body, services.MsgUnknownUsername)
}

func TestLogout(t *testing.T) {
	app := newTestApp(t)
	c := app.browser(t)
	app.registerAndLogin(t, c)

	resp, body := app.get(t, c, "/logout")
	require.Equal(t, "/login", resp.Request.URL.Path)
	require.Contains(t, body, services.MsgLoggedOut)

	resp, _ = app.get(t, noFollow(c), "/profile")
	require.Equal(t, http.StatusFound, resp.StatusCode)
	require.Equal(t, "/login", resp.Header.Get("Location"))
}

func TestTodoPagesRequireLogin(t *testing.T) {
	app := newTestApp(t)
	c := noFollow(app.browser(t))

	for _, path := range []string{"/", "/edit/anything", "/profile"} {
		resp, _ := app.get(t, c, path)
		require.Equal(t, http.StatusFound, resp.StatusCode, path)
		require.Equal(t, "/login", resp.Header.Get("Location"), path)
	}

	resp, _ := app.postForm(t, c, "/", url.Values{"todoName": {"Buy milk"}, "desc": {"2%"}})
	require.Equal(t, http.StatusFound, resp.StatusCode)
	require.Equal(t, "/login", resp.Header.Get("Location"))

	todos, err := app.todos.List(context.Background())
	require.NoError(t, err)
	require.Empty(t, todos)
}

func TestLoginRequiredFlash(t *testing.T) {
	app := newTestApp(t)

	resp, body := app.get(t, app.browser(t), "/")
	require.Equal(t, "/login", resp.Request.URL.Path)
	require.Contains(t, body, services.MsgLoginRequired)
}

func TestTodoLifecycle(t *testing.T) {
	app := newTestApp(t)
	c := app.browser(t)
	app.registerAndLogin(t, c)

	resp, body := app.postForm(t, c, "/", url.Values{"todoName": {"Buy milk"}, "desc": {"2%"}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "/", resp.Request.URL.Path)
	require.Contains(t, body, "Buy milk")

	todos, err := app.todos.List(context.Background())
	require.NoError(t, err)
	require.Len(t, todos, 1)
	id := todos[0].ID

	resp, body = app.get(t, c, "/edit/"+id)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, body, `value="Buy milk"`)

	_, body = app.postForm(t, c, "/edit/"+id, url.Values{"todoName": {"Buy oat milk"}, "desc": {"1L"}})
	require.Contains(t, body, "Buy oat milk")

	resp, body = app.postForm(t, c, "/delete/"+id, nil)
	require.Equal(t, "/", resp.Request.URL.Path)
	require.NotContains(t, body, "Buy oat milk")

	// Deleting again is a no-op.
	resp, _ = app.postForm(t, c, "/delete/"+id, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestTodoCreate_MissingFieldsRerendersList(t *testing.T) {
	app := newTestApp(t)
	c := app.browser(t)
	app.registerAndLogin(t, c)

	resp, body := app.postForm(t, c, "/", url.Values{"todoName": {"Buy milk"}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, body, services.MsgFillAllFields)

	todos, err := app.todos.List(context.Background())
	require.NoError(t, err)
	require.Empty(t, todos)
}

func TestTodoEdit_MissingRedirectsToList(t *testing.T) {
	app := newTestApp(t)
	c := app.browser(t)
	app.registerAndLogin(t, c)

	resp, _ := app.get(t, noFollow(c), "/edit/missing")
	require.Equal(t, http.StatusFound, resp.StatusCode)
	require.Equal(t, "/", resp.Header.Get("Location"))

	resp, _ = app.postForm(t, noFollow(c), "/edit/missing", url.Values{"todoName": {"x"}, "desc": {"y"}})
	require.Equal(t, http.StatusFound, resp.StatusCode)
	require.Equal(t, "/", resp.Header.Get("Location"))
}

func TestUpload_Unauthenticated(t *testing.T) {
	app := newTestApp(t)
	app.registerAndLogin(t, app.browser(t))

	resp, body := app.upload(t, app.browser(t), "me.png", []byte("png"))
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, services.MsgUnauthenticated, body)

	user, err := app.users.GetByUsername(context.Background(), "alice")
	require.NoError(t, err)
	require.Equal(t, types.DefaultImagePath, user.ImagePath)
}

func TestUpload_NoFile(t *testing.T) {
	app := newTestApp(t)
	c := app.browser(t)
	app.registerAndLogin(t, c)

	resp, body := app.upload(t, c, "", nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, services.MsgNoFile, body)
}

func TestUpload_TooLarge(t *testing.T) {
	app := newTestApp(t)
	c := app.browser(t)
	app.registerAndLogin(t, c)

	resp, _ := app.upload(t, c, "big.bin", bytes.Repeat([]byte("x"), 1<<20+4096))
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	user, err := app.users.GetByUsername(context.Background(), "alice")
	require.NoError(t, err)
	require.Equal(t, types.DefaultImagePath, user.ImagePath)
}

func TestUpload_UpdatesProfileImage(t *testing.T) {
	app := newTestApp(t)
	c := app.browser(t)
	app.registerAndLogin(t, c)

	resp, body := app.upload(t, c, "me.png", []byte("png-bytes"))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, services.MsgUploaded, body)

	user, err := app.users.GetByUsername(context.Background(), "alice")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(user.ImagePath, services.UploadsPath))
	require.True(t, strings.HasSuffix(user.ImagePath, "-me.png"))

	_, body = app.get(t, c, "/profile")
	require.Contains(t, body, user.ImagePath)

	resp, body = app.get(t, app.browser(t), user.ImagePath)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "png-bytes", body)
	require.Equal(t, "image/png", resp.Header.Get("Content-Type"))

	resp, _ = app.get(t, app.browser(t), "/uploads/missing.png")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestUpload_NonImageServedAsAttachment(t *testing.T) {
	app := newTestApp(t)
	c := app.browser(t)
	app.registerAndLogin(t, c)

	for _, name := range []string{"x.html", "x.svg"} {
		resp, body := app.upload(t, c, name, []byte("<script>alert(1)</script>"))
		require.Equal(t, http.StatusOK, resp.StatusCode, body)

		user, err := app.users.GetByUsername(context.Background(), "alice")
		require.NoError(t, err)
		require.True(t, strings.HasSuffix(user.ImagePath, "-"+name))

		resp, _ = app.get(t, app.browser(t), user.ImagePath)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Equal(t, "application/octet-stream", resp.Header.Get("Content-Type"), name)
		require.True(t, strings.HasPrefix(resp.Header.Get("Content-Disposition"), "attachment"), name)
		require.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
		require.Contains(t, resp.Header.Get("Content-Security-Policy"), "sandbox")
	}
}

func TestSessionForUserThatNoLongerExists(t *testing.T) {
	app := newTestApp(t)
	c := app.browser(t)

	app.registerAndLogin(t, c)
	app.users.gone.Store(true)

	resp, body := app.get(t, c, "/profile")
	require.Equal(t, "/login", resp.Request.URL.Path)
	require.Contains(t, body, services.MsgLoginRequired)
}
