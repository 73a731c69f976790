package store

import (
	"bytes"
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const sampleCatalog = `
interviews:
  - id: backend-screen
    title: Backend screen
    questions:
      - id: q1
        prompt: Tell me about a system you designed.
        reference_answer: Mentions trade-offs.
        time_limit: 120s
      - prompt: How do you debug a memory leak?
`

func TestParseCatalog(t *testing.T) {
	c, err := ParseCatalog([]byte(sampleCatalog))
	if err != nil {
		t.Fatalf("ParseCatalog: %v", err)
	}
	if c.Len() != 1 {
		t.Fatalf("Len=%d, want 1", c.Len())
	}

	iv, err := c.LoadInterview(context.Background(), "backend-screen")
	if err != nil {
		t.Fatalf("LoadInterview: %v", err)
	}
	if iv.Title != "Backend screen" || len(iv.Questions) != 2 {
		t.Fatalf("interview=%+v", iv)
	}
	if iv.Questions[0].TimeLimit != 120*time.Second {
		t.Fatalf("time_limit=%v, want 120s", iv.Questions[0].TimeLimit)
	}
	if iv.Questions[0].ReferenceAnswer != "Mentions trade-offs." {
		t.Fatalf("reference=%q", iv.Questions[0].ReferenceAnswer)
	}
	if iv.Questions[1].ID != "q2" {
		t.Fatalf("generated id=%q, want q2", iv.Questions[1].ID)
	}

	iv.Questions[0].Prompt = "mutated"
	again, _ := c.LoadInterview(context.Background(), "backend-screen")
	if again.Questions[0].Prompt == "mutated" {
		t.Fatalf("LoadInterview shares question slice with catalog")
	}
}

func TestParseCatalog_Validation(t *testing.T) {
	tests := map[string]string{
		"missing id":         "interviews:\n  - questions:\n      - prompt: x\n",
		"no questions":       "interviews:\n  - id: a\n",
		"blank prompt":       "interviews:\n  - id: a\n    questions:\n      - prompt: ' '\n",
		"duplicate question": "interviews:\n  - id: a\n    questions:\n      - {id: x, prompt: p}\n      - {id: x, prompt: q}\n",
		"duplicate interview": "interviews:\n  - id: a\n    questions: [{prompt: p}]\n" +
			"  - id: a\n    questions: [{prompt: p}]\n",
		"bad yaml":         "interviews: [",
		"bad time limit":   "interviews:\n  - id: a\n    questions:\n      - {prompt: p, time_limit: soon}\n",
		"negative seconds": "interviews:\n  - id: a\n    questions:\n      - {prompt: p, time_limit: -5s}\n",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := ParseCatalog([]byte(doc)); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestCatalog_NotFound(t *testing.T) {
	c, err := ParseCatalog([]byte(sampleCatalog))
	if err != nil {
		t.Fatalf("ParseCatalog: %v", err)
	}
	if _, err := c.LoadInterview(context.Background(), "nope"); !errors.Is(err, ErrInterviewNotFound) {
		t.Fatalf("err=%v, want ErrInterviewNotFound", err)
	}
	var nilCatalog *Catalog
	if _, err := nilCatalog.LoadInterview(context.Background(), "x"); !errors.Is(err, ErrInterviewNotFound) {
		t.Fatalf("nil catalog err=%v", err)
	}
}

func TestLoadCatalog_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "interviews.yaml")
	if err := os.WriteFile(path, []byte(sampleCatalog), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	c, err := LoadCatalog(path)
	if err != nil {
		t.Fatalf("LoadCatalog: %v", err)
	}
	if c.Len() != 1 {
		t.Fatalf("Len=%d", c.Len())
	}
	if _, err := LoadCatalog(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLogSink(t *testing.T) {
	var buf bytes.Buffer
	sink := LogSink{Logger: slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))}
	score := 5.0
	if err := sink.SaveResponse(context.Background(), Response{SessionID: "s1", QuestionID: "q1", Score: &score}); err != nil {
		t.Fatalf("SaveResponse: %v", err)
	}
	if err := sink.SaveProgress(context.Background(), Progress{SessionID: "s1", Status: "listening"}); err != nil {
		t.Fatalf("SaveProgress: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"interview response", "question_id=q1", "score=5", "interview progress", "status=listening"} {
		if !strings.Contains(out, want) {
			t.Fatalf("log %q missing %q", out, want)
		}
	}
}

func TestEmbeddedMigrations(t *testing.T) {
	entries, err := fs.ReadDir(migrationsFS, "migrations")
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("migrations=%d, want 2", len(entries))
	}
	for _, e := range entries {
		data, err := fs.ReadFile(migrationsFS, "migrations/"+e.Name())
		if err != nil {
			t.Fatalf("ReadFile(%s): %v", e.Name(), err)
		}
		if !strings.Contains(string(data), "-- +goose Up") || !strings.Contains(string(data), "-- +goose Down") {
			t.Fatalf("%s missing goose annotations", e.Name())
		}
	}
}

// Runs against a real database when INTERVIEW_TEST_DATABASE_URL is set.
func TestPostgres_RoundTrip(t *testing.T) {
	dsn := os.Getenv("INTERVIEW_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("INTERVIEW_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	pg, err := OpenPostgres(ctx, dsn)
	if err != nil {
		t.Fatalf("OpenPostgres: %v", err)
	}
	defer pg.Close()

	if _, err := pg.Migrate(ctx, MigrateUp); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	id := "it_" + time.Now().Format("150405.000000")
	if _, err := pg.pool.Exec(ctx, `INSERT INTO interviews (id, title) VALUES ($1, 'it')`, id); err != nil {
		t.Fatalf("insert interview: %v", err)
	}
	defer pg.pool.Exec(ctx, `DELETE FROM interviews WHERE id = $1`, id)
	if _, err := pg.pool.Exec(ctx, `INSERT INTO interview_questions (interview_id, id, position, prompt, time_limit_sec) VALUES ($1, 'b', 2, 'second', 0), ($1, 'a', 1, 'first', 90)`, id); err != nil {
		t.Fatalf("insert questions: %v", err)
	}

	iv, err := pg.LoadInterview(ctx, id)
	if err != nil {
		t.Fatalf("LoadInterview: %v", err)
	}
	if len(iv.Questions) != 2 || iv.Questions[0].ID != "a" || iv.Questions[0].TimeLimit != 90*time.Second {
		t.Fatalf("questions=%+v", iv.Questions)
	}
	if _, err := pg.LoadInterview(ctx, id+"-missing"); !errors.Is(err, ErrInterviewNotFound) {
		t.Fatalf("err=%v, want ErrInterviewNotFound", err)
	}

	if err := pg.SaveResponse(ctx, Response{SessionID: id, InterviewID: id, QuestionID: "a", CandidateID: "c", Transcript: "t"}); err != nil {
		t.Fatalf("SaveResponse: %v", err)
	}
	for _, status := range []string{"listening", "submitted"} {
		if err := pg.SaveProgress(ctx, Progress{SessionID: id, InterviewID: id, CandidateID: "c", Status: status}); err != nil {
			t.Fatalf("SaveProgress: %v", err)
		}
	}
}
