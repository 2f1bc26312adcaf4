package api_test

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/ConfabulousDev/lovelog/internal/api"
	"github.com/ConfabulousDev/lovelog/internal/models"
	"github.com/ConfabulousDev/lovelog/internal/testutil"
)

func TestDiagnosisAPI_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	env := testutil.SetupTestEnvironment(t)
	const user = "U0123456789abcdef0123456789abcdef"

	logKey, err := env.Storage.ArchiveLog(env.Ctx, user, "m-1", []byte(testutil.SampleExport("a", "b", 4)))
	if err != nil {
		t.Fatalf("ArchiveLog: %v", err)
	}
	d := &models.Diagnosis{
		LineUserID:      user,
		SourceMessageID: "m-1",
		SelfName:        "a",
		OtherName:       "b",
		MessageCount:    4,
		OverallScore:    70,
		Personality:     "ひつじ",
		Report:          json.RawMessage(`{}`),
		LogObjectKey:    &logKey,
	}
	if err := env.DB.CreateDiagnosis(env.Ctx, d); err != nil {
		t.Fatalf("CreateDiagnosis: %v", err)
	}
	testutil.CreateTestDiagnosis(t, env, user, "m-2", 80)

	srv := api.NewServer(api.Config{DB: env.DB, Storage: env.Storage, APIKey: "k"})
	ts := testutil.StartTestServer(t, env, srv.SetupRoutes())

	do := func(method, path string) *http.Response {
		t.Helper()
		req, _ := http.NewRequest(method, ts.URL+path, nil)
		req.Header.Set("Authorization", "Bearer k")
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("%s %s: %v", method, path, err)
		}
		t.Cleanup(func() { resp.Body.Close() })
		return resp
	}

	resp := do(http.MethodGet, "/api/v1/users/"+user+"/diagnoses")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list status = %d", resp.StatusCode)
	}
	var list api.DiagnosisListResponse
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if list.Total != 2 || len(list.Diagnoses) != 2 {
		t.Errorf("list = %d/%d, want 2/2", len(list.Diagnoses), list.Total)
	}

	resp = do(http.MethodDelete, "/api/v1/diagnoses/"+d.ID.String())
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete status = %d", resp.StatusCode)
	}
	if _, err := env.Storage.LoadLog(env.Ctx, logKey); err == nil {
		t.Error("archived log should be deleted with the diagnosis")
	}

	resp = do(http.MethodGet, "/api/v1/diagnoses/"+d.ID.String())
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("get after delete status = %d, want 404", resp.StatusCode)
	}

	health, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	health.Body.Close()
	if health.StatusCode != http.StatusOK {
		t.Errorf("health status = %d", health.StatusCode)
	}

	analyzed, err := ts.PostText("/api/v1/analyze?me=a", testutil.SampleExport("a", "b", 4), nil)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	defer analyzed.Body.Close()
	if analyzed.StatusCode != http.StatusOK {
		t.Errorf("analyze status = %d", analyzed.StatusCode)
	}
}
