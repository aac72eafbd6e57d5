package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"

	"broadcaster/internal/facebook"
	"broadcaster/internal/middleware"
	"broadcaster/internal/models"
	"broadcaster/internal/optimizely"
	"broadcaster/internal/publish"
	"broadcaster/internal/session"
	"broadcaster/internal/storage"
	"broadcaster/internal/store"
)

var errBoom = errors.New("boom")

// request builds a request carrying the identity of userID.
func request(method, target, body string, userID uuid.UUID) *http.Request {
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	r := httptest.NewRequest(method, target, rdr)
	if body != "" {
		r.Header.Set("Content-Type", "application/json")
	}
	if userID != uuid.Nil {
		r = r.WithContext(middleware.WithIdentity(r.Context(), &middleware.Identity{UserID: userID, Via: middleware.ViaToken}))
	}
	return r
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &m); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return m
}

func wantStatus(t *testing.T, w *httptest.ResponseRecorder, status int) {
	t.Helper()
	if w.Code != status {
		t.Fatalf("status = %d, want %d (body %s)", w.Code, status, w.Body.String())
	}
}

func wantError(t *testing.T, w *httptest.ResponseRecorder, status int, msg string) {
	t.Helper()
	wantStatus(t, w, status)
	if got := decodeBody(t, w)["error"]; got != msg {
		t.Errorf("error = %q, want %q", got, msg)
	}
}

func strptr(s string) *string { return &s }

// fakeUsers is an in-memory UserStore keyed by id.
type fakeUsers struct {
	mu      sync.Mutex
	users   map[uuid.UUID]*models.User
	configs map[uuid.UUID]models.OptimizelyConfig
	err     error
}

func newFakeUsers(users ...*models.User) *fakeUsers {
	f := &fakeUsers{users: map[uuid.UUID]*models.User{}, configs: map[uuid.UUID]models.OptimizelyConfig{}}
	for _, u := range users {
		f.users[u.ID] = u
	}
	return f
}

func (f *fakeUsers) FindByID(id uuid.UUID) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.users[id], nil
}

func (f *fakeUsers) FindOrCreate(email string) (*models.User, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, false, f.err
	}
	for _, u := range f.users {
		if u.Email == email {
			return u, false, nil
		}
	}
	u := &models.User{ID: uuid.New(), Email: email}
	f.users[u.ID] = u
	return u, true, nil
}

// Passwords are stored in the clear; hashing belongs to the real store.
func (f *fakeUsers) SetPassword(userID uuid.UUID, password string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[userID].PasswordHash = &password
	return nil
}

func (f *fakeUsers) CheckPassword(user *models.User, password string) bool {
	return user.PasswordHash != nil && *user.PasswordHash == password
}

func (f *fakeUsers) RotateAPIKey(userID uuid.UUID) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := "key-" + uuid.NewString()
	f.users[userID].APISecretKey = &key
	return key, nil
}

func (f *fakeUsers) GetOptimizelyConfig(userID uuid.UUID) (*models.OptimizelyConfig, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if _, ok := f.users[userID]; !ok {
		return nil, nil
	}
	c := f.configs[userID]
	return &c, nil
}

func (f *fakeUsers) SaveOptimizelyConfig(userID uuid.UUID, c models.OptimizelyConfig) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.configs[userID] = c
	return nil
}

func (f *fakeUsers) SetDefaultContainer(userID uuid.UUID, containerID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[userID].DefaultContainerID = &containerID
	return nil
}

type fakeTokens struct {
	created   []*session.Data
	destroyed []string
}

func (f *fakeTokens) Create(_ context.Context, data *session.Data) (string, error) {
	f.created = append(f.created, data)
	return "tok-1", nil
}

func (f *fakeTokens) Destroy(_ context.Context, token string) error {
	f.destroyed = append(f.destroyed, token)
	return nil
}

type fakeAccounts struct {
	list    []models.SocialAccount
	added   []models.SocialAccount
	toggled map[uuid.UUID]bool
	group   models.Platform
}

func (f *fakeAccounts) ListByUser(uuid.UUID) ([]models.SocialAccount, error) { return f.list, nil }

func (f *fakeAccounts) Add(userID uuid.UUID, platform models.Platform, displayName, platformUserID, accessToken string) (*models.SocialAccount, error) {
	a := models.SocialAccount{
		ID: uuid.New(), UserID: userID, Platform: platform, DisplayName: displayName,
		PlatformUserID: models.NullIfEmpty(platformUserID), AccessToken: models.NullIfEmpty(accessToken), IsActive: true,
	}
	f.added = append(f.added, a)
	return &a, nil
}

func (f *fakeAccounts) SetActive(id, _ uuid.UUID, active bool) (bool, error) {
	if _, ok := f.toggled[id]; !ok {
		return false, nil
	}
	f.toggled[id] = active
	return true, nil
}

func (f *fakeAccounts) SetPlatformActive(_ uuid.UUID, platform models.Platform, _ bool) (int64, error) {
	f.group = platform
	return 2, nil
}

type fakeFBAuth struct {
	profile  *facebook.Profile
	err      error
	extended string
	code     string
}

func (f *fakeFBAuth) ExtendToken(_ context.Context, short string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.extended = short
	return "long-" + short, nil
}

func (f *fakeFBAuth) Me(context.Context, string) (*facebook.Profile, error) { return f.profile, f.err }

func (f *fakeFBAuth) AuthCodeURL(state string) string {
	return "https://www.facebook.com/dialog/oauth?state=" + state
}

func (f *fakeFBAuth) Exchange(_ context.Context, code string) (string, error) {
	f.code = code
	return "user-token", f.err
}

// fakeStates is a single-use state map.
type fakeStates struct {
	states map[string]uuid.UUID
}

func (f *fakeStates) IssueState(_ context.Context, userID uuid.UUID) (string, error) {
	if f.states == nil {
		f.states = map[string]uuid.UUID{}
	}
	s := "state-" + userID.String()
	f.states[s] = userID
	return s, nil
}

func (f *fakeStates) ConsumeState(_ context.Context, state string) (uuid.UUID, bool, error) {
	id, ok := f.states[state]
	delete(f.states, state)
	return id, ok, nil
}

type fakePages struct {
	pages   []models.FacebookPage
	tokens  map[string]string
	removed []uuid.UUID
	err     error
}

func (f *fakePages) ListByUser(uuid.UUID) ([]models.FacebookPage, error) { return f.pages, f.err }

func (f *fakePages) Add(userID uuid.UUID, pageID, pageName, accessToken string) (*models.FacebookPage, error) {
	for _, p := range f.pages {
		if p.PageID == pageID {
			return nil, store.ErrDuplicate
		}
	}
	p := models.FacebookPage{ID: uuid.New(), UserID: userID, PageID: pageID, PageName: pageName, AccessToken: models.NullIfEmpty(accessToken), IsActive: true}
	f.pages = append(f.pages, p)
	return &p, nil
}

func (f *fakePages) Remove(id, _ uuid.UUID) (bool, error) {
	for i, p := range f.pages {
		if p.ID == id {
			f.pages = append(f.pages[:i], f.pages[i+1:]...)
			f.removed = append(f.removed, id)
			return true, nil
		}
	}
	return false, nil
}

func (f *fakePages) SetActive(id, _ uuid.UUID, active bool) (bool, error) {
	for i := range f.pages {
		if f.pages[i].ID == id {
			f.pages[i].IsActive = active
			return true, nil
		}
	}
	return false, nil
}

func (f *fakePages) UpdateName(id, _ uuid.UUID, name string) (bool, error) {
	for i := range f.pages {
		if f.pages[i].ID == id {
			f.pages[i].PageName = name
			return true, nil
		}
	}
	return false, nil
}

func (f *fakePages) UpdateToken(_ uuid.UUID, pageID, token string) (bool, error) {
	if f.tokens == nil {
		f.tokens = map[string]string{}
	}
	f.tokens[pageID] = token
	return true, nil
}

func (f *fakePages) ResetForUser(uuid.UUID) (int64, error) {
	n := int64(len(f.pages))
	f.pages = nil
	return n, f.err
}

type fakeDeliveries struct {
	recorded []publish.Outcome
	message  string
	err      error
	limit    int
}

func (f *fakeDeliveries) RecordBatch(_ context.Context, _ uuid.UUID, message string, outcomes []publish.Outcome) error {
	f.message = message
	f.recorded = append(f.recorded, outcomes...)
	return f.err
}

func (f *fakeDeliveries) ListRecent(_ uuid.UUID, limit int) ([]models.Delivery, error) {
	f.limit = limit
	return nil, nil
}

type fakeGraph struct {
	page     *facebook.Page
	accounts []facebook.Page
	err      error
	posted   []string
}

func (f *fakeGraph) Page(context.Context, string, string) (*facebook.Page, error) { return f.page, f.err }

func (f *fakeGraph) Accounts(context.Context, string) ([]facebook.Page, error) {
	return f.accounts, f.err
}

func (f *fakeGraph) PostFeed(_ context.Context, pageID, _, message, _ string) (string, error) {
	f.posted = append(f.posted, "feed:"+pageID+":"+message)
	return pageID + "_1", f.err
}

func (f *fakeGraph) PostPhoto(_ context.Context, pageID, _, imageURL, _ string) (string, error) {
	f.posted = append(f.posted, "photo:"+pageID+":"+imageURL)
	return pageID + "_2", f.err
}

type fakeBroadcaster struct {
	result *publish.Result
	err    error
	msg    publish.Message
}

func (f *fakeBroadcaster) PublishToAllActive(_ context.Context, _ uuid.UUID, msg publish.Message) (*publish.Result, error) {
	f.msg = msg
	return f.result, f.err
}

type fakeUploader struct {
	contentType string
	bytes       int
	err         error
}

func (f *fakeUploader) UploadImage(_ context.Context, userID uuid.UUID, contentType string, body io.Reader, size int64) (*storage.Object, error) {
	if f.err != nil {
		return nil, f.err
	}
	b, _ := io.ReadAll(body)
	f.contentType, f.bytes = contentType, len(b)
	key := "media/" + userID.String() + "/x.png"
	return &storage.Object{Key: key, URL: "https://cdn.test/" + key, Size: size}, nil
}

// fakeCMS records the arguments of each call.
type fakeCMS struct {
	creds      optimizely.Credentials
	tokenErr   error
	created    any
	createURL  string
	createTok  string
	createErr  error
	containers []optimizely.Container
	listErr    error
	listCalls  int
	gqlQuery   string
	gqlErr     error
}

func (f *fakeCMS) FetchToken(_ context.Context, creds optimizely.Credentials) (*optimizely.Token, error) {
	f.creds = creds
	if f.tokenErr != nil {
		return nil, f.tokenErr
	}
	if !creds.Complete() {
		return nil, optimizely.ErrNotConfigured
	}
	return &optimizely.Token{AccessToken: "cms-token", TokenType: "Bearer", ExpiresIn: 3600}, nil
}

func (f *fakeCMS) CreateContent(_ context.Context, apiURL, token string, item any) (json.RawMessage, error) {
	f.createURL, f.createTok, f.created = apiURL, token, item
	if f.createErr != nil {
		return nil, f.createErr
	}
	return json.RawMessage(`{"key":"new-key"}`), nil
}

func (f *fakeCMS) GraphQL(_ context.Context, _, _, query string, _ map[string]any) (json.RawMessage, error) {
	f.gqlQuery = query
	if f.gqlErr != nil {
		return nil, f.gqlErr
	}
	return json.RawMessage(`{"data":{"ok":true}}`), nil
}

func (f *fakeCMS) Containers(context.Context, string, string) ([]optimizely.Container, error) {
	f.listCalls++
	return f.containers, f.listErr
}

type fakeContainerCache struct {
	entries map[string][]optimizely.Container
}

func (f *fakeContainerCache) Get(_ context.Context, key string) ([]optimizely.Container, bool) {
	v, ok := f.entries[key]
	return v, ok
}

func (f *fakeContainerCache) Set(_ context.Context, key string, containers []optimizely.Container) {
	if f.entries == nil {
		f.entries = map[string][]optimizely.Container{}
	}
	f.entries[key] = containers
}
