package db_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/ConfabulousDev/lovelog/internal/db"
	"github.com/ConfabulousDev/lovelog/internal/models"
	"github.com/ConfabulousDev/lovelog/internal/testutil"
)

const testUser = "U0123456789abcdef0123456789abcdef"

func TestCreateAndGetDiagnosis(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	env := testutil.SetupTestEnvironment(t)
	env.CleanDB(t)

	key := "logs/" + testUser + "/1.txt.zst"
	d := &models.Diagnosis{
		LineUserID:      testUser,
		SourceMessageID: "1",
		SelfName:        "たろう",
		OtherName:       "はなこ",
		MessageCount:    42,
		OverallScore:    88,
		Personality:     "こじか",
		CommonWords:     []string{"おはよう", "おやすみ"},
		Report:          json.RawMessage(`{"messageCount":42}`),
		LogObjectKey:    &key,
	}
	if err := env.DB.CreateDiagnosis(env.Ctx, d); err != nil {
		t.Fatalf("CreateDiagnosis failed: %v", err)
	}
	if d.ID == uuid.Nil {
		t.Fatal("expected ID to be assigned")
	}
	if d.CreatedAt.IsZero() {
		t.Error("expected CreatedAt to be assigned")
	}

	got, err := env.DB.GetDiagnosis(env.Ctx, d.ID)
	if err != nil {
		t.Fatalf("GetDiagnosis failed: %v", err)
	}
	if got.OverallScore != 88 || got.Personality != "こじか" {
		t.Errorf("got score=%d personality=%s", got.OverallScore, got.Personality)
	}
	if len(got.CommonWords) != 2 || got.CommonWords[1] != "おやすみ" {
		t.Errorf("CommonWords = %v", got.CommonWords)
	}
	if got.LogObjectKey == nil || *got.LogObjectKey != key {
		t.Errorf("LogObjectKey = %v, want %s", got.LogObjectKey, key)
	}

	var report map[string]int
	if err := json.Unmarshal(got.Report, &report); err != nil {
		t.Fatalf("report is not JSON: %v", err)
	}
	if report["messageCount"] != 42 {
		t.Errorf("report.messageCount = %d, want 42", report["messageCount"])
	}
}

func TestCreateDiagnosis_Duplicate(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	env := testutil.SetupTestEnvironment(t)
	env.CleanDB(t)

	testutil.CreateTestDiagnosis(t, env, testUser, "dup", 70)

	again := &models.Diagnosis{
		LineUserID:      testUser,
		SourceMessageID: "dup",
		SelfName:        "a",
		OtherName:       "b",
		Personality:     "ひつじ",
		Report:          json.RawMessage(`{}`),
	}
	err := env.DB.CreateDiagnosis(env.Ctx, again)
	if !errors.Is(err, db.ErrDuplicateDiagnosis) {
		t.Errorf("err = %v, want ErrDuplicateDiagnosis", err)
	}
}

func TestGetDiagnosis_NotFound(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	env := testutil.SetupTestEnvironment(t)
	env.CleanDB(t)

	_, err := env.DB.GetDiagnosis(env.Ctx, uuid.New())
	if !errors.Is(err, db.ErrDiagnosisNotFound) {
		t.Errorf("err = %v, want ErrDiagnosisNotFound", err)
	}
}

func TestListAndCountDiagnosesByUser(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	env := testutil.SetupTestEnvironment(t)
	env.CleanDB(t)

	for i, id := range []string{"a", "b", "c"} {
		testutil.CreateTestDiagnosis(t, env, testUser, id, 60+i)
	}
	testutil.CreateTestDiagnosis(t, env, "Uffffffffffffffffffffffffffffffff", "x", 10)

	count, err := env.DB.CountDiagnosesByUser(env.Ctx, testUser)
	if err != nil {
		t.Fatalf("CountDiagnosesByUser failed: %v", err)
	}
	if count != 3 {
		t.Errorf("count = %d, want 3", count)
	}

	list, err := env.DB.ListDiagnosesByUser(env.Ctx, testUser, 2)
	if err != nil {
		t.Fatalf("ListDiagnosesByUser failed: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("len(list) = %d, want 2", len(list))
	}
	if list[0].CreatedAt.Before(list[1].CreatedAt) {
		t.Error("expected newest first")
	}

	empty, err := env.DB.ListDiagnosesByUser(env.Ctx, "Unobody", 10)
	if err != nil {
		t.Fatalf("ListDiagnosesByUser failed: %v", err)
	}
	if empty == nil || len(empty) != 0 {
		t.Errorf("expected empty non-nil slice, got %v", empty)
	}
}

func TestDeleteDiagnosis(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	env := testutil.SetupTestEnvironment(t)
	env.CleanDB(t)

	d := testutil.CreateTestDiagnosis(t, env, testUser, "del", 50)

	logKey, err := env.DB.DeleteDiagnosis(env.Ctx, d.ID)
	if err != nil {
		t.Fatalf("DeleteDiagnosis failed: %v", err)
	}
	if logKey != nil {
		t.Errorf("logKey = %v, want nil", *logKey)
	}

	if _, err := env.DB.DeleteDiagnosis(env.Ctx, d.ID); !errors.Is(err, db.ErrDiagnosisNotFound) {
		t.Errorf("second delete err = %v, want ErrDiagnosisNotFound", err)
	}
}
