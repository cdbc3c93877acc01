package workflow_test

import (
	"context"
	"errors"
	"testing"

	"castsync/internal/config"
	"castsync/internal/logging"
	"castsync/internal/services"
	"castsync/internal/testsupport"
	"castsync/internal/workflow"
)

type harness struct {
	cfg    *config.Config
	server *fakeMediaServer
	deps   *workflow.Dependencies
	proc   *workflow.Processor
}

func newHarness(t *testing.T, regionalRoutes map[string]string) *harness {
	t.Helper()
	server, serverURL := newFakeMediaServer(t, moodItem)
	tmdbSrv := newJSONServer(t, map[string]string{"/movie/843/credits": moodCredits})
	regionalSrv := newJSONServer(t, regionalRoutes)

	cfg := testsupport.NewConfig(t,
		testsupport.WithMediaServer(serverURL.URL, "key"),
		testsupport.WithTMDB(tmdbSrv.URL, "key"),
		testsupport.WithRegional(regionalSrv.URL),
	)
	db := testsupport.MustOpenDB(t, cfg)
	deps, err := workflow.NewDependencies(cfg, db, logging.NewNop())
	if err != nil {
		t.Fatalf("NewDependencies: %v", err)
	}
	return &harness{cfg: cfg, server: server, deps: deps, proc: deps.Processor()}
}

func TestProcessReconcilesAndWritesBack(t *testing.T) {
	h := newHarness(t, map[string]string{"/subject/1291557/celebrities": moodRegional})
	ctx := context.Background()

	report, err := h.proc.Process(ctx, "42", workflow.Options{})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if !report.Changed || !report.Written {
		t.Fatalf("expected a write-back, got changed=%v written=%v", report.Changed, report.Written)
	}
	if report.RegionalStrategy != "subject_id" {
		t.Fatalf("unexpected strategy %q", report.RegionalStrategy)
	}
	if report.Added() != 1 {
		t.Fatalf("expected one added person, got %d", report.Added())
	}

	people := h.server.postedPeople(t)
	want := []string{"梁朝伟", "张曼玉", "潘迪华", "Wong Kar-wai"}
	if len(people) != len(want) {
		t.Fatalf("expected %d people, got %v", len(want), people)
	}
	for i, name := range want {
		if people[i]["Name"] != name {
			t.Fatalf("person %d = %v, want %s", i, people[i]["Name"], name)
		}
	}
	if people[0]["Role"] != "周慕云" || people[0]["Id"] != "p1" {
		t.Fatalf("unexpected first person %v", people[0])
	}
	if people[3]["Type"] != "Director" {
		t.Fatalf("expected director preserved, got %v", people[3])
	}

	rec, err := h.deps.Identities.FindByRegionalID(ctx, "r1")
	if err != nil {
		t.Fatalf("FindByRegionalID: %v", err)
	}
	if rec == nil || rec.LocalID != "p1" || rec.MetadataID != "1337" {
		t.Fatalf("expected identity linking p1 and r1, got %+v", rec)
	}
}

func TestProcessSkipsUnchangedCast(t *testing.T) {
	h := newHarness(t, map[string]string{"/subject/1291557/celebrities": moodRegional})
	ctx := context.Background()

	if _, err := h.proc.Process(ctx, "42", workflow.Options{}); err != nil {
		t.Fatalf("first Process: %v", err)
	}
	report, err := h.proc.Process(ctx, "42", workflow.Options{})
	if err != nil {
		t.Fatalf("second Process: %v", err)
	}
	if report.Changed || report.Written {
		t.Fatalf("expected second run to be a no-op, got changed=%v", report.Changed)
	}
	if got := h.server.updateCount(); got != 1 {
		t.Fatalf("expected exactly one update, got %d", got)
	}
}

func TestProcessDryRunPersistsNothing(t *testing.T) {
	h := newHarness(t, map[string]string{"/subject/1291557/celebrities": moodRegional})
	ctx := context.Background()

	report, err := h.proc.Process(ctx, "42", workflow.Options{DryRun: true})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if !report.Changed || report.Written {
		t.Fatalf("expected a pending change without write, got %+v", report)
	}
	if len(report.Result.Writes) == 0 {
		t.Fatal("expected identity writes to be computed")
	}
	if h.server.updateCount() != 0 {
		t.Fatal("dry run must not write back")
	}
	count, err := h.deps.Identities.Count(ctx)
	if err != nil || count != 0 {
		t.Fatalf("expected no stored identities, got %d err=%v", count, err)
	}
}

func TestProcessWithoutRegionalCastKeepsServerCast(t *testing.T) {
	h := newHarness(t, map[string]string{})
	report, err := h.proc.Process(context.Background(), "42", workflow.Options{})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if report.RegionalStrategy != "" {
		t.Fatalf("expected no regional strategy, got %q", report.RegionalStrategy)
	}
	names := make([]string, 0, len(report.Cast))
	for _, p := range report.Cast {
		names = append(names, p.Name)
	}
	if len(names) != 3 || names[0] != "Tony Leung Chiu-wai" || names[2] != "Rebecca Pan" {
		t.Fatalf("unexpected cast %v", names)
	}
}

func TestProcessRegionalRateLimitDefers(t *testing.T) {
	h := newHarness(t, map[string]string{"/subject/1291557/celebrities": "429"})
	_, err := h.proc.Process(context.Background(), "42", workflow.Options{})
	if !errors.Is(err, services.ErrRateLimited) {
		t.Fatalf("expected rate limit error, got %v", err)
	}
	if status := services.FailureStatus(err); status != "deferred" {
		t.Fatalf("expected deferred status, got %s", status)
	}
	if h.server.updateCount() != 0 {
		t.Fatal("no write-back expected after a failed fetch")
	}
}

func TestProcessUnknownItem(t *testing.T) {
	h := newHarness(t, map[string]string{})
	_, err := h.proc.Process(context.Background(), "missing", workflow.Options{})
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
