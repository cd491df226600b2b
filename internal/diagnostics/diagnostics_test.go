package diagnostics

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/manash/pollgen/internal/pollinations"
	"github.com/manash/pollgen/internal/upload"
)

type fakeAccount struct {
	configured bool
	idErr      error
	acctErr    error
}

func (f *fakeAccount) Configured() bool { return f.configured }

func (f *fakeAccount) AccountID(context.Context) (string, error) {
	if f.idErr != nil {
		return "", f.idErr
	}
	return "acct-1", nil
}

func (f *fakeAccount) Account(_ context.Context, id string) (*upload.Account, error) {
	if f.acctErr != nil {
		return nil, f.acctErr
	}
	return &upload.Account{ID: id, Email: "me@example.com"}, nil
}

func modelsServer(t *testing.T, status int, body string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "/models", r.URL.Path)
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server, &calls
}

func statuses(r Report) []StepStatus {
	out := make([]StepStatus, len(r.Steps))
	for i, s := range r.Steps {
		out[i] = s.Status
	}
	return out
}

func TestRun_AllPassing(t *testing.T) {
	server, calls := modelsServer(t, http.StatusOK, `["flux","kontext","turbo"]`)
	probe := New(Options{
		Endpoint: pollinations.NewEndpoint(server.URL),
		Account:  &fakeAccount{configured: true},
	})

	report := probe.Run(context.Background())
	assert.True(t, report.OK())
	assert.Equal(t, []StepStatus{StepPassed, StepPassed, StepPassed, StepPassed, StepPassed}, statuses(report))
	assert.Equal(t, "3 models found", report.Steps[0].Message)
	assert.Equal(t, "me@example.com", report.Steps[4].Message)
	assert.EqualValues(t, 1, calls.Load(), "models endpoint is called exactly once")
}

func TestRun_ObjectModelList(t *testing.T) {
	server, _ := modelsServer(t, http.StatusOK, `[{"name":"flux"},{"name":"kontext","description":"edit"}]`)
	report := New(Options{Endpoint: pollinations.NewEndpoint(server.URL)}).Run(context.Background())

	assert.Equal(t, StepPassed, report.Steps[1].Status)
}

func TestRun_MissingRequiredModel(t *testing.T) {
	server, _ := modelsServer(t, http.StatusOK, `["flux"]`)
	report := New(Options{Endpoint: pollinations.NewEndpoint(server.URL)}).Run(context.Background())

	assert.Equal(t, StepWarning, report.Steps[1].Status)
	assert.Contains(t, report.Steps[1].Message, "kontext")
	assert.True(t, report.OK(), "warnings do not fail the report")
}

func TestRun_APIFailureIsNotRetried(t *testing.T) {
	server, calls := modelsServer(t, http.StatusServiceUnavailable, ``)
	report := New(Options{Endpoint: pollinations.NewEndpoint(server.URL)}).Run(context.Background())

	assert.False(t, report.OK())
	assert.Equal(t, StepFailed, report.Steps[0].Status)
	assert.Equal(t, StepSkipped, report.Steps[1].Status)
	assert.EqualValues(t, 1, calls.Load())
}

func TestRun_GoFile(t *testing.T) {
	tests := []struct {
		name    string
		account AccountChecker
		want    []StepStatus
	}{
		{"not configured", &fakeAccount{}, []StepStatus{StepWarning, StepSkipped, StepSkipped}},
		{"nil checker", nil, []StepStatus{StepWarning, StepSkipped, StepSkipped}},
		{"id lookup fails", &fakeAccount{configured: true, idErr: errors.New("401")}, []StepStatus{StepPassed, StepFailed, StepSkipped}},
		{"token rejected", &fakeAccount{configured: true, acctErr: upload.ErrAccountInvalid}, []StepStatus{StepPassed, StepPassed, StepFailed}},
	}

	server, _ := modelsServer(t, http.StatusOK, `["flux","kontext"]`)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report := New(Options{Endpoint: pollinations.NewEndpoint(server.URL), Account: tt.account}).Run(context.Background())
			require.Len(t, report.Steps, 5)
			assert.Equal(t, tt.want, statuses(report)[2:])
		})
	}
}

func TestParseModels(t *testing.T) {
	names, err := parseModels([]byte(`["a", {"name":"b"}, 3, {"other":1}]`))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, names)

	_, err = parseModels([]byte(`{"models":[]}`))
	assert.Error(t, err)
}

func TestRender(t *testing.T) {
	color.NoColor = true
	defer func() { color.NoColor = false }()

	report := Report{Steps: []Step{
		{Name: "Pollinations API reachable", Status: StepPassed, Message: "2 models found"},
		{Name: "GoFile account lookup", Status: StepFailed, Error: errors.New("HTTP 401")},
	}}

	var buf bytes.Buffer
	Render(&buf, report)
	out := buf.String()

	assert.Contains(t, out, "✓ Pollinations API reachable - 2 models found")
	assert.Contains(t, out, "✗ GoFile account lookup")
	assert.Contains(t, out, "└─ HTTP 401")
	assert.Contains(t, out, "Diagnostics Failed")
}
