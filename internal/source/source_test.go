package source_test

import (
	"context"
	"errors"
	"testing"

	"castsync/internal/logging"
	"castsync/internal/services"
	"castsync/internal/services/regional"
	"castsync/internal/source"
)

type fakeRegional struct {
	casts    map[string][]regional.CastMember
	subjects map[string][]regional.Subject
	castErr  error
	searches []string
}

func (f *fakeRegional) GetCastForSubject(_ context.Context, id string) ([]regional.CastMember, error) {
	if f.castErr != nil {
		return nil, f.castErr
	}
	cast, ok := f.casts[id]
	if !ok {
		return nil, services.Wrap(services.ErrNotFound, "regional", "cast", "missing", nil)
	}
	return cast, nil
}

func (f *fakeRegional) SearchSubject(_ context.Context, title string, _ int) ([]regional.Subject, error) {
	f.searches = append(f.searches, title)
	return f.subjects[title], nil
}

func TestChainPrefersSubjectID(t *testing.T) {
	api := &fakeRegional{casts: map[string][]regional.CastMember{
		"1291557": {{ID: "c1", Name: "梁朝伟"}},
	}}
	chain := source.Default(api, logging.NewNop())

	res, err := chain.Attempt(context.Background(), source.Request{SubjectID: "1291557", Title: "花样年华"})
	if err != nil {
		t.Fatalf("Attempt failed: %v", err)
	}
	if res.Strategy != "subject_id" || len(res.Cast) != 1 {
		t.Fatalf("unexpected result: %#v", res)
	}
	if len(api.searches) != 0 {
		t.Fatalf("expected no title search, got %v", api.searches)
	}
}

func TestChainFallsBackToTitleSearch(t *testing.T) {
	tests := []struct {
		name    string
		req     source.Request
		subject []regional.Subject
		wantID  string
	}{
		{
			name:    "title and year",
			req:     source.Request{Title: "In the Mood for Love", Year: 2000},
			subject: []regional.Subject{{ID: "wrong", Title: "In the Mood for Love", Year: "1990"}, {ID: "s1", Title: "In the Mood for Love", Year: "2000"}},
			wantID:  "s1",
		},
		{
			name:    "original title matches",
			req:     source.Request{Title: "In the Mood for Love", OriginalTitle: "花樣年華", Year: 2000},
			subject: []regional.Subject{{ID: "s2", Title: "花样年华", OriginalTitle: "花樣年華", Year: "2000"}},
			wantID:  "s2",
		},
		{
			name:    "unknown year accepted",
			req:     source.Request{Title: "In the Mood for Love"},
			subject: []regional.Subject{{ID: "s3", Title: "in the mood for love", Year: "2000"}},
			wantID:  "s3",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &fakeRegional{
				casts:    map[string][]regional.CastMember{tt.wantID: {{ID: "c1", Name: "张曼玉"}}},
				subjects: map[string][]regional.Subject{tt.req.Title: tt.subject},
			}
			res, err := source.Default(api, logging.NewNop()).Attempt(context.Background(), tt.req)
			if err != nil {
				t.Fatalf("Attempt failed: %v", err)
			}
			if res.SubjectID != tt.wantID || res.Strategy != "title_search" {
				t.Fatalf("unexpected result: %#v", res)
			}
		})
	}
}

func TestChainMissReturnsNotFound(t *testing.T) {
	api := &fakeRegional{subjects: map[string][]regional.Subject{
		"Unknown": {{ID: "x", Title: "Something Else"}},
	}}
	_, err := source.Default(api, logging.NewNop()).Attempt(context.Background(), source.Request{Title: "Unknown"})
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestChainStopsOnOtherErrors(t *testing.T) {
	api := &fakeRegional{castErr: services.Wrap(services.ErrRateLimited, "regional", "cast", "slow down", nil)}
	_, err := source.Default(api, logging.NewNop()).Attempt(context.Background(), source.Request{SubjectID: "1", Title: "Anything"})
	if !errors.Is(err, services.ErrRateLimited) {
		t.Fatalf("expected rate limit to propagate, got %v", err)
	}
	if len(api.searches) != 0 {
		t.Fatal("expected chain to stop before title search")
	}
}

func TestEmptyChain(t *testing.T) {
	_, err := source.Default(nil, logging.NewNop()).Attempt(context.Background(), source.Request{Title: "x"})
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
