package api

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dharsanguruparan/IngestDrop/internal/auth"
	"github.com/dharsanguruparan/IngestDrop/internal/config"
	"github.com/dharsanguruparan/IngestDrop/internal/model"
	"github.com/dharsanguruparan/IngestDrop/internal/processing"
	"github.com/dharsanguruparan/IngestDrop/internal/queue"
	"github.com/dharsanguruparan/IngestDrop/internal/service"
	"github.com/dharsanguruparan/IngestDrop/internal/storage"
)

const contactsCSV = "Email,First Name,Last Name,Company\n" +
	"ana@example.com,Ana,Silva,Acme\n" +
	"ana@example.com,Ana,Souza,Acme\n"

type nopDispatcher struct{}

func (nopDispatcher) Dispatch(context.Context, queue.ProcessPayload) error { return nil }

type testAPI struct {
	handler  http.Handler
	store    *storage.MemoryStore
	pipeline *processing.Pipeline
}

func newTestAPI(maxBytes int64) *testAPI {
	store := storage.NewMemoryStore()
	objects := storage.NewMemoryObjects()
	jobs := service.NewJobs(store, objects, nopDispatcher{}, maxBytes, nil)
	review := service.NewReview(store, nil)
	srv := New(config.ServerConfig{AllowedOrigins: []string{"*"}}, maxBytes, jobs, review, nil)
	return &testAPI{
		handler:  srv.Routes(),
		store:    store,
		pipeline: processing.NewPipeline(store, objects, processing.Options{}, nil),
	}
}

func (a *testAPI) do(t *testing.T, method, path string, body *bytes.Buffer, contentType string, groups ...string) *httptest.ResponseRecorder {
	t.Helper()
	if body == nil {
		body = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set(auth.HeaderUserID, "alice")
	req.Header.Set(auth.HeaderGroups, strings.Join(groups, ","))
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

func multipartBody(t *testing.T, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	buf := &bytes.Buffer{}
	mw := multipart.NewWriter(buf)
	require.NoError(t, mw.WriteField("note", "ignored"))
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return buf, mw.FormDataContentType()
}

func (a *testAPI) upload(t *testing.T, filename, content string) *httptest.ResponseRecorder {
	body, ct := multipartBody(t, filename, content)
	return a.do(t, http.MethodPost, "/jobs/upload", body, ct, auth.GroupUploader)
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestHealthz(t *testing.T) {
	a := newTestAPI(1 << 20)
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestMissingIdentityIsUnauthorized(t *testing.T) {
	a := newTestAPI(1 << 20)
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/jobs", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestUploadFlow(t *testing.T) {
	a := newTestAPI(1 << 20)

	rec := a.upload(t, "contacts.csv", contactsCSV)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[service.UploadResult](t, rec)
	assert.Equal(t, 2, created.TotalRows)
	assert.Equal(t, "contacts.csv", created.Filename)

	rec = a.upload(t, "again.csv", contactsCSV)
	assert.Equal(t, http.StatusConflict, rec.Code)
	dup := decode[map[string]string](t, rec)
	assert.Equal(t, created.JobID, dup["job_id"])

	rec = a.do(t, http.MethodGet, "/jobs", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[struct {
		Jobs  []model.Job `json:"jobs"`
		Total int         `json:"total"`
	}](t, rec)
	assert.Equal(t, 1, list.Total)
	assert.Equal(t, model.JobPending, list.Jobs[0].Status)
	assert.NotContains(t, rec.Body.String(), "fingerprint")
}

func TestUploadRejections(t *testing.T) {
	a := newTestAPI(64)

	rec := a.upload(t, "contacts.txt", contactsCSV)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.upload(t, "big.csv", contactsCSV+strings.Repeat("x@y.com,X,Y,Z\n", 10))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "exceeds")

	rec = a.upload(t, "headers.csv", "email,name\na@b.com,A\n")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "missing required columns")

	body, ct := multipartBody(t, "contacts.csv", contactsCSV)
	rec = a.do(t, http.MethodPost, "/jobs/upload", body, ct)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = a.do(t, http.MethodPost, "/jobs/upload", bytes.NewBufferString("plain"), "text/plain", auth.GroupUploader)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReviewFlow(t *testing.T) {
	a := newTestAPI(1 << 20)
	created := decode[service.UploadResult](t, a.upload(t, "contacts.csv", contactsCSV))
	_, err := a.pipeline.Process(context.Background(), created.JobID)
	require.NoError(t, err)

	rec := a.do(t, http.MethodGet, "/jobs/"+created.JobID+"/issues", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	issues := decode[service.IssueList](t, rec)
	require.Len(t, issues.Issues, 1)
	assert.Equal(t, 1, issues.Unresolved)
	assert.Len(t, issues.Issues[0].AffectedRows, 2)
	issueID := issues.Issues[0].ID

	rec = a.do(t, http.MethodPatch, "/issues/"+issueID, bytes.NewBufferString(`{"issue_resolved":true}`), "application/json", auth.GroupUploader)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = a.do(t, http.MethodPatch, "/issues/"+issueID, bytes.NewBufferString(`{"resolved":true}`), "application/json", auth.GroupEditor)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(t, http.MethodPatch, "/issues/"+issueID,
		bytes.NewBufferString(`{"issue_resolved":true,"issue_resolution_comment":"kept first"}`), "application/json", auth.GroupEditor)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	issue := decode[model.Issue](t, rec)
	assert.True(t, issue.Resolved)
	require.NotNil(t, issue.ResolvedBy)
	assert.Equal(t, "alice", *issue.ResolvedBy)

	rec = a.do(t, http.MethodGet, "/jobs/"+created.JobID+"/staging", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	staging := decode[struct {
		Staging []model.StagingRecord `json:"staging"`
	}](t, rec)
	require.Len(t, staging.Staging, 2)
	rowID := staging.Staging[1].ID

	rec = a.do(t, http.MethodPatch, "/staging/"+rowID, bytes.NewBufferString(`{"staging_status":"DISCARD"}`), "application/json", auth.GroupEditor)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.StagingDiscard, decode[model.StagingRecord](t, rec).Status)

	rec = a.do(t, http.MethodPatch, "/staging/"+rowID, bytes.NewBufferString(`{"staging_status":"PENDING"}`), "application/json", auth.GroupEditor)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(t, http.MethodPost, "/jobs/"+created.JobID+"/reprocess", nil, "", auth.GroupUploader)
	assert.Equal(t, http.StatusAccepted, rec.Code)
}

func TestDeleteJob(t *testing.T) {
	a := newTestAPI(1 << 20)
	created := decode[service.UploadResult](t, a.upload(t, "contacts.csv", contactsCSV))

	rec := a.do(t, http.MethodDelete, "/jobs/"+created.JobID, nil, "", auth.GroupUploader)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = a.do(t, http.MethodDelete, "/jobs/"+created.JobID, nil, "", auth.GroupEditor)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = a.do(t, http.MethodGet, "/jobs/"+created.JobID, nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCompletedJobIsProtected(t *testing.T) {
	a := newTestAPI(1 << 20)
	created := decode[service.UploadResult](t, a.upload(t, "clean.csv", "email,first_name,last_name,company\nc@d.com,C,D,E\n"))
	res, err := a.pipeline.Process(context.Background(), created.JobID)
	require.NoError(t, err)
	require.Equal(t, model.JobCompleted, res.Status)

	rec := a.do(t, http.MethodDelete, "/jobs/"+created.JobID, nil, "", auth.GroupEditor)
	assert.Equal(t, http.StatusConflict, rec.Code)
	rec = a.do(t, http.MethodPost, "/jobs/"+created.JobID+"/reprocess", nil, "", auth.GroupUploader)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestContacts(t *testing.T) {
	a := newTestAPI(1 << 20)
	require.NoError(t, a.store.AddContact(model.Contact{UserID: "alice", Email: "bob@example.com", FirstName: "Bob"}))

	rec := a.do(t, http.MethodGet, "/contacts/bob@example.com", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Bob", decode[model.Contact](t, rec).FirstName)

	rec = a.do(t, http.MethodGet, "/contacts/nobody@example.com", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = a.do(t, http.MethodGet, "/contacts", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"total":1`)
}
