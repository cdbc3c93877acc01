package mediaserver_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"castsync/internal/services"
	"castsync/internal/services/mediaserver"
)

const itemDoc = `{
  "Id": "42",
  "Name": "Heat",
  "OriginalTitle": "Heat",
  "Type": "Movie",
  "ProductionYear": 1995,
  "Overview": "A group of professional bank robbers.",
  "ProviderIds": {"Tmdb": "949", "Imdb": "tt0113277", "Douban": "1294910"},
  "People": [
    {"Name": "Al Pacino", "Id": "p1", "Role": "Vincent Hanna", "Type": "Actor", "ProviderIds": {"Tmdb": "1158"}},
    {"Name": "Michael Mann", "Id": "p9", "Type": "Director"},
    {"Name": "Robert De Niro", "Id": "p2", "Role": "Neil McCauley", "Type": "Actor"}
  ]
}`

func TestGetItemDetails(t *testing.T) {
	t.Parallel()

	var gotPath, gotToken, gotFields string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotToken = r.Header.Get("X-Emby-Token")
		gotFields = r.URL.Query().Get("Fields")
		_, _ = io.WriteString(w, itemDoc)
	}))
	defer srv.Close()

	client, err := mediaserver.New(srv.URL, "secret", "u1")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	item, err := client.GetItemDetails(context.Background(), "42")
	if err != nil {
		t.Fatalf("GetItemDetails: %v", err)
	}
	if gotPath != "/Users/u1/Items/42" {
		t.Fatalf("unexpected path %q", gotPath)
	}
	if gotToken != "secret" {
		t.Fatalf("expected token header, got %q", gotToken)
	}
	if gotFields == "" {
		t.Fatal("expected Fields query")
	}
	if item.Name != "Heat" || item.ProductionYear != 1995 {
		t.Fatalf("unexpected item %+v", item)
	}
	if got := item.ProviderID("tmdb"); got != "949" {
		t.Fatalf("expected case-insensitive provider lookup, got %q", got)
	}
	if got := item.ProviderID(mediaserver.ProviderRegional); got != "1294910" {
		t.Fatalf("regional id = %q", got)
	}
	cast := item.Cast()
	if len(cast) != 2 || cast[0].Name != "Al Pacino" || cast[1].Name != "Robert De Niro" {
		t.Fatalf("unexpected cast %+v", cast)
	}
	kind, err := item.Kind()
	if err != nil || kind != "movie" {
		t.Fatalf("Kind = %q, %v", kind, err)
	}
}

func TestGetItemDetailsWithoutUser(t *testing.T) {
	t.Parallel()

	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_, _ = io.WriteString(w, `{"Name":"Show","Type":"Series"}`)
	}))
	defer srv.Close()

	client, err := mediaserver.New(srv.URL+"/", "secret", "")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	item, err := client.GetItemDetails(context.Background(), "7")
	if err != nil {
		t.Fatalf("GetItemDetails: %v", err)
	}
	if gotPath != "/Items/7" {
		t.Fatalf("unexpected path %q", gotPath)
	}
	if item.ID != "7" {
		t.Fatalf("expected id backfilled, got %q", item.ID)
	}
	if kind, _ := item.Kind(); kind != "tv" {
		t.Fatalf("expected tv kind, got %q", kind)
	}
}

func TestUpdateItemCastPreservesDocument(t *testing.T) {
	t.Parallel()

	var posted map[string]json.RawMessage
	var method, path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			_, _ = io.WriteString(w, itemDoc)
			return
		}
		method, path = r.Method, r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&posted); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	client, err := mediaserver.New(srv.URL, "secret", "")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	item, err := client.GetItemDetails(context.Background(), "42")
	if err != nil {
		t.Fatalf("GetItemDetails: %v", err)
	}
	cast := []mediaserver.Person{
		{Name: "阿尔·帕西诺", ID: "p1", Role: "文森特·汉纳", Type: mediaserver.PersonActor},
	}
	if err := client.UpdateItemCast(context.Background(), item, cast); err != nil {
		t.Fatalf("UpdateItemCast: %v", err)
	}
	if method != http.MethodPost || path != "/Items/42" {
		t.Fatalf("unexpected request %s %s", method, path)
	}
	if string(posted["Overview"]) != `"A group of professional bank robbers."` {
		t.Fatalf("expected unknown fields preserved, got %s", posted["Overview"])
	}
	var people []mediaserver.Person
	if err := json.Unmarshal(posted["People"], &people); err != nil {
		t.Fatalf("decode people: %v", err)
	}
	if len(people) != 2 {
		t.Fatalf("expected cast plus director, got %+v", people)
	}
	if people[0].Name != "阿尔·帕西诺" || people[1].Type != mediaserver.PersonDirector {
		t.Fatalf("unexpected people %+v", people)
	}
}

func TestStatusErrorsAreClassified(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		status int
		marker error
	}{
		{"not found", http.StatusNotFound, services.ErrNotFound},
		{"unauthorized", http.StatusUnauthorized, services.ErrConfiguration},
		{"rate limited", http.StatusTooManyRequests, services.ErrRateLimited},
		{"server error", http.StatusBadGateway, services.ErrTransient},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tc.status)
			}))
			defer srv.Close()

			client, err := mediaserver.New(srv.URL, "secret", "")
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			_, err = client.GetItemDetails(context.Background(), "1")
			if !errors.Is(err, tc.marker) {
				t.Fatalf("expected %v, got %v", tc.marker, err)
			}
		})
	}
}

func TestNewRequiresCredentials(t *testing.T) {
	t.Parallel()

	if _, err := mediaserver.New("", "key", ""); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error for missing url, got %v", err)
	}
	if _, err := mediaserver.New("http://localhost", " ", ""); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error for missing key, got %v", err)
	}
}
