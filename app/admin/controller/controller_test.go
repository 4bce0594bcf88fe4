package controller

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	admintypes "github.com/canopy-network/stakedrop/app/admin/types"
	workertypes "github.com/canopy-network/stakedrop/app/worker/types"
	"github.com/canopy-network/stakedrop/pkg/db/postgres/snapshots"
	"github.com/canopy-network/stakedrop/pkg/temporal"
	"github.com/canopy-network/stakedrop/pkg/utils"
	"github.com/go-jose/go-jose/v4/json"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/client"
	"go.uber.org/zap/zaptest"
)

type fakeStore struct {
	list      []snapshots.Snapshot
	healthErr error
}

func (f *fakeStore) ListSnapshots(_ context.Context, chainID uint64, _ int) ([]snapshots.Snapshot, error) {
	var out []snapshots.Snapshot
	for _, s := range f.list {
		if s.ChainID == chainID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeStore) GetSnapshot(_ context.Context, chainID uint64, root string) (*snapshots.Snapshot, error) {
	for _, s := range f.list {
		if s.ChainID == chainID && s.ID == root {
			return &s, nil
		}
	}
	return nil, snapshots.ErrNotFound
}

func (f *fakeStore) Health(context.Context) error { return f.healthErr }

type started struct {
	id       string
	workflow string
	args     []interface{}
}

type fakeWorkflows struct {
	started   []started
	schedules []client.ScheduleOptions
	startErr  error
}

func (f *fakeWorkflows) StartWorkflow(_ context.Context, id, workflow string, args ...interface{}) (string, error) {
	if f.startErr != nil {
		return "", f.startErr
	}
	f.started = append(f.started, started{id: id, workflow: workflow, args: args})
	return "run-1", nil
}

func (f *fakeWorkflows) EnsureSchedule(_ context.Context, opts client.ScheduleOptions) error {
	f.schedules = append(f.schedules, opts)
	return nil
}

func (f *fakeWorkflows) Health(context.Context) (temporal.Health, error) {
	return temporal.Health{ConnectionOK: true}, nil
}

func newTestRouter(t *testing.T, store *fakeStore, wf *fakeWorkflows) (*Controller, *mux.Router) {
	t.Helper()
	t.Setenv("ADMIN_TOKEN", "secret-token")
	t.Setenv("ADMIN_USER", "alice")
	t.Setenv("ADMIN_PASSWORD", "hunter2")
	t.Setenv("ADMIN_USERS", "")

	app := &admintypes.App{
		Store:     store,
		Workflows: wf,
		Queue:     temporal.QueueSnapshot,
		Logger:    zaptest.NewLogger(t),
	}
	c := NewController(app)
	r, err := c.NewRouter()
	require.NoError(t, err)
	return c, r
}

func do(r http.Handler, method, path, body string, mods ...func(*http.Request)) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for _, m := range mods {
		m(req)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func bearer(token string) func(*http.Request) {
	return func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }
}

func TestLoginIssuesSession(t *testing.T) {
	_, r := newTestRouter(t, &fakeStore{}, &fakeWorkflows{})

	rec := do(r, http.MethodPost, "/api/auth/login", `{"username":"alice","password":"nope"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(r, http.MethodPost, "/api/auth/login", `{"username":"alice","password":"hunter2"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, sessionCookie, cookies[0].Name)

	rec = do(r, http.MethodGet, "/api/chains/1/snapshots", "", func(req *http.Request) { req.AddCookie(cookies[0]) })
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireAuth(t *testing.T) {
	_, r := newTestRouter(t, &fakeStore{}, &fakeWorkflows{})

	assert.Equal(t, http.StatusUnauthorized, do(r, http.MethodGet, "/api/chains/1/snapshots", "").Code)
	assert.Equal(t, http.StatusUnauthorized, do(r, http.MethodGet, "/api/chains/1/snapshots", "", bearer("wrong")).Code)
	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/api/chains/1/snapshots", "", bearer("secret-token")).Code)
}

func TestRequireAdminRejectsViewer(t *testing.T) {
	viewerHash, err := utils.PasswordHash("pw")
	require.NoError(t, err)
	c, _ := newTestRouter(t, &fakeStore{}, &fakeWorkflows{})
	c.Users["bob"] = admintypes.User{Username: "bob", Hash: viewerHash, Role: "viewer"}
	r, err := c.NewRouter()
	require.NoError(t, err)

	rec := do(r, http.MethodPost, "/api/auth/login", `{"username":"bob","password":"pw"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	cookie := rec.Result().Cookies()[0]

	withCookie := func(req *http.Request) { req.AddCookie(cookie) }
	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/api/chains/1/snapshots", "", withCookie).Code)
	assert.Equal(t, http.StatusForbidden, do(r, http.MethodPost, "/api/snapshots", `{}`, withCookie).Code)
}

func TestIssueSessionCookie(t *testing.T) {
	c, r := newTestRouter(t, &fakeStore{}, &fakeWorkflows{})

	rec := httptest.NewRecorder()
	c.IssueSession(rec, admintypes.User{Username: "carol", Role: "admin"})
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, sessionCookie, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)

	withCookie := func(req *http.Request) { req.AddCookie(cookies[0]) }
	rec = do(r, http.MethodPost, "/api/snapshots",
		`{"chainId":1,"subject":"stake","startHeight":1,"endHeight":30,"droppedAmount":"1"}`, withCookie)
	assert.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
}

func TestSnapshotsList(t *testing.T) {
	store := &fakeStore{list: []snapshots.Snapshot{
		{ID: "0xaa", ChainID: 1, TotalClaimable: "999"},
		{ID: "0xbb", ChainID: 2},
	}}
	_, r := newTestRouter(t, store, &fakeWorkflows{})

	rec := do(r, http.MethodGet, "/api/chains/1/snapshots", "", bearer("secret-token"))
	require.Equal(t, http.StatusOK, rec.Code)
	var out []snapshots.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out, 1)
	assert.Equal(t, "999", out[0].TotalClaimable)

	rec = do(r, http.MethodGet, "/api/chains/3/snapshots", "", bearer("secret-token"))
	assert.JSONEq(t, `[]`, rec.Body.String())

	assert.Equal(t, http.StatusNotFound, do(r, http.MethodGet, "/api/chains/1/snapshots/0xcc", "", bearer("secret-token")).Code)
	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/api/chains/1/snapshots/0xaa", "", bearer("secret-token")).Code)
	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodGet, "/api/chains/x/snapshots", "", bearer("secret-token")).Code)
}

func TestSnapshotStart(t *testing.T) {
	wf := &fakeWorkflows{}
	_, r := newTestRouter(t, &fakeStore{}, wf)

	rec := do(r, http.MethodPost, "/api/snapshots",
		`{"chainId":1,"subject":"stake","startHeight":1,"endHeight":30,"droppedAmount":"1000"}`, bearer("secret-token"))
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"workflowId":"snapshot:1:stake:1-30","runId":"run-1"}`, rec.Body.String())

	require.Len(t, wf.started, 1)
	assert.Equal(t, workertypes.SnapshotWorkflowName, wf.started[0].workflow)
	in := wf.started[0].args[0].(workertypes.SnapshotInput)
	assert.Equal(t, uint64(30), in.Request.EndHeight)
	assert.Equal(t, "1000", in.Request.Dropped)
}

func TestSnapshotStartRejectsInvalid(t *testing.T) {
	wf := &fakeWorkflows{}
	_, r := newTestRouter(t, &fakeStore{}, wf)

	for _, body := range []string{
		`not json`,
		`{"chainId":1,"startHeight":1,"endHeight":30,"droppedAmount":"-5"}`,
		`{"chainId":1,"startHeight":0,"endHeight":30,"droppedAmount":"5"}`,
		`{"chainId":1,"endHeight":30,"droppedAmount":"5"}`,
		`{"chainId":1,"startHeight":30,"endHeight":30,"droppedAmount":"5"}`,
		`{"chainId":1,"droppedAmount":"5"}`,
		`{"chainId":1,"subject":"bonds","startHeight":1,"endHeight":30,"droppedAmount":"5"}`,
	} {
		rec := do(r, http.MethodPost, "/api/snapshots", body, bearer("secret-token"))
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
	assert.Empty(t, wf.started)
}

func TestSnapshotStartTemporalDown(t *testing.T) {
	_, r := newTestRouter(t, &fakeStore{}, &fakeWorkflows{startErr: errors.New("unavailable")})
	rec := do(r, http.MethodPost, "/api/snapshots",
		`{"chainId":1,"startHeight":1,"endHeight":30,"droppedAmount":"1000"}`, bearer("secret-token"))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestScheduleUpsert(t *testing.T) {
	wf := &fakeWorkflows{}
	_, r := newTestRouter(t, &fakeStore{}, wf)

	rec := do(r, http.MethodPost, "/api/schedules",
		`{"chainId":7,"subject":"balance","droppedAmount":"500","cron":"0 0 * * *"}`, bearer("secret-token"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var out struct {
		ScheduleID string `json:"scheduleId"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, "snapshot:7", out.ScheduleID)

	require.Len(t, wf.schedules, 1)
	assert.Equal(t, []string{"0 0 * * *"}, wf.schedules[0].Spec.CronExpressions)

	rec = do(r, http.MethodPost, "/api/schedules",
		`{"chainId":7,"droppedAmount":"500","cron":"every day"}`, bearer("secret-token"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Len(t, wf.schedules, 1)
}

func TestHealth(t *testing.T) {
	_, r := newTestRouter(t, &fakeStore{}, &fakeWorkflows{})
	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/api/health", "").Code)

	_, r = newTestRouter(t, &fakeStore{healthErr: errors.New("down")}, &fakeWorkflows{})
	rec := do(r, http.MethodGet, "/api/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "down")
}

func TestWithCORSPreflight(t *testing.T) {
	h := WithCORS(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("preflight must not reach the handler")
	}))
	req := httptest.NewRequest(http.MethodOptions, "/api/snapshots", nil)
	req.Header.Set("Origin", "https://dash.example")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://dash.example", rec.Header().Get("Access-Control-Allow-Origin"))
}
