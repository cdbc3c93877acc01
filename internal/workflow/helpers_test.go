package workflow_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

const moodItem = `{
  "Id": "42",
  "Name": "In the Mood for Love",
  "OriginalTitle": "花樣年華",
  "Type": "Movie",
  "ProductionYear": 2000,
  "Overview": "Hong Kong, 1962.",
  "ProviderIds": {"Tmdb": "843", "Douban": "1291557"},
  "People": [
    {"Name": "Tony Leung Chiu-wai", "Id": "p1", "Role": "Chow Mo-wan", "Type": "Actor", "ProviderIds": {"Tmdb": "1337"}},
    {"Name": "Maggie Cheung", "Id": "p2", "Role": "Su Li-zhen", "Type": "Actor", "ProviderIds": {"Tmdb": "1338"}},
    {"Name": "Wong Kar-wai", "Id": "p9", "Type": "Director"}
  ]
}`

const moodCredits = `{"id": 843, "cast": [
  {"id": 1337, "name": "Tony Leung Chiu-wai", "character": "Chow Mo-wan", "order": 0},
  {"id": 1338, "name": "Maggie Cheung", "character": "Su Li-zhen", "order": 1},
  {"id": 1339, "name": "Rebecca Pan", "character": "Mrs. Suen", "order": 2}
]}`

const moodRegional = `{"actors": [
  {"id": "r1", "name": "梁朝伟", "latin_name": "Tony Leung Chiu-wai", "character": "周慕云"},
  {"id": "r2", "name": "张曼玉", "latin_name": "Maggie Cheung", "character": "苏丽珍"},
  {"id": "r3", "name": "潘迪华", "latin_name": "Rebecca Pan", "character": "孙太太"}
]}`

// fakeMediaServer serves one item and stores whatever is posted back.
type fakeMediaServer struct {
	mu      sync.Mutex
	doc     string
	updates int
	posted  map[string]json.RawMessage
}

func newFakeMediaServer(t *testing.T, doc string) (*fakeMediaServer, *httptest.Server) {
	t.Helper()
	f := &fakeMediaServer{doc: doc}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		if !strings.HasSuffix(r.URL.Path, "/Items/42") {
			http.NotFound(w, r)
			return
		}
		switch r.Method {
		case http.MethodGet:
			_, _ = io.WriteString(w, f.doc)
		case http.MethodPost:
			body, _ := io.ReadAll(r.Body)
			var posted map[string]json.RawMessage
			if err := json.Unmarshal(body, &posted); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			f.posted = posted
			f.doc = string(body)
			f.updates++
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	}))
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeMediaServer) updateCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.updates
}

func (f *fakeMediaServer) postedPeople(t *testing.T) []map[string]any {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	var people []map[string]any
	if err := json.Unmarshal(f.posted["People"], &people); err != nil {
		t.Fatalf("decode posted people: %v", err)
	}
	return people
}

func newJSONServer(t *testing.T, routes map[string]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := routes[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		if body == "429" {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}
