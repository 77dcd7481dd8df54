package tests

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/BuzzLyutic/tasksync/internal/gtasks"
	"github.com/BuzzLyutic/tasksync/internal/handler"
	"github.com/BuzzLyutic/tasksync/internal/repo"
	"github.com/BuzzLyutic/tasksync/internal/service"
)

// SetupServer поднимает полный HTTP-стек поверх файлового хранилища
// в t.TempDir(). provider может быть nil.
func SetupServer(t *testing.T, provider service.Provider) *httptest.Server {
	t.Helper()
	server, _ := setupServer(t, t.TempDir(), provider)
	return server
}

// SetupServerInDir is SetupServer over a caller-owned directory. The
// shutdown func releases the file locks so the directory can be reused.
func SetupServerInDir(t *testing.T, dir string) (*httptest.Server, func()) {
	t.Helper()
	return setupServer(t, dir, nil)
}

func setupServer(t *testing.T, dir string, provider service.Provider) (*httptest.Server, func()) {
	t.Helper()

	registry := service.NewRegistry(func(userID string) (repo.Store, error) {
		return repo.NewFileStore(dir, userID)
	}, zap.NewNop())

	h := handler.New(registry, provider, 2*time.Second, "", zap.NewNop())

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"status":"ok"}`)
	})
	h.Register(r)

	server := httptest.NewServer(r)
	shutdown := func() {
		server.Close()
		registry.Close()
	}
	t.Cleanup(shutdown)
	return server, shutdown
}

// remoteItem - запись на стороне фейкового Google Tasks
type remoteItem struct {
	ID       string `json:"id,omitempty"`
	Title    string `json:"title"`
	Notes    string `json:"notes,omitempty"`
	Status   string `json:"status,omitempty"`
	Due      string `json:"due,omitempty"`
	Updated  string `json:"updated,omitempty"`
	Position string `json:"position,omitempty"`
}

// FakeGoogle is an in-memory server speaking the Google Tasks v1 shape,
// enough for the sync client to run against.
type FakeGoogle struct {
	mu    sync.Mutex
	seq   int
	Items map[string][]remoteItem
}

func NewFakeGoogle() *FakeGoogle {
	return &FakeGoogle{Items: map[string][]remoteItem{"default-list": {}}}
}

// Seed добавляет задачу в удаленный список
func (f *FakeGoogle) Seed(listID, title, status string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	id := fmt.Sprintf("g%d", f.seq)
	f.Items[listID] = append(f.Items[listID], remoteItem{
		ID:      id,
		Title:   title,
		Status:  status,
		Updated: time.Now().UTC().Format(time.RFC3339),
	})
	return id
}

func (f *FakeGoogle) CountItems(listID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Items[listID])
}

func (f *FakeGoogle) Server(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()

	mux.HandleFunc("GET /users/@me/lists", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		type col struct {
			ID    string `json:"id"`
			Title string `json:"title"`
		}
		cols := make([]col, 0, len(f.Items))
		for id := range f.Items {
			cols = append(cols, col{ID: id, Title: id})
		}
		json.NewEncoder(w).Encode(map[string]any{"items": cols})
	})
	mux.HandleFunc("GET /lists/{list}/tasks", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		json.NewEncoder(w).Encode(map[string]any{"items": f.Items[r.PathValue("list")]})
	})
	mux.HandleFunc("POST /lists/{list}/tasks", func(w http.ResponseWriter, r *http.Request) {
		var item remoteItem
		if err := json.NewDecoder(r.Body).Decode(&item); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.mu.Lock()
		defer f.mu.Unlock()
		f.seq++
		item.ID = fmt.Sprintf("g%d", f.seq)
		item.Updated = time.Now().UTC().Format(time.RFC3339)
		list := r.PathValue("list")
		f.Items[list] = append(f.Items[list], item)
		json.NewEncoder(w).Encode(item)
	})
	mux.HandleFunc("PUT /lists/{list}/tasks/{item}", func(w http.ResponseWriter, r *http.Request) {
		var item remoteItem
		if err := json.NewDecoder(r.Body).Decode(&item); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.mu.Lock()
		defer f.mu.Unlock()
		list := r.PathValue("list")
		for i, existing := range f.Items[list] {
			if existing.ID == r.PathValue("item") {
				item.ID = existing.ID
				item.Updated = time.Now().UTC().Format(time.RFC3339)
				f.Items[list][i] = item
				json.NewEncoder(w).Encode(item)
				return
			}
		}
		http.Error(w, "not found", http.StatusNotFound)
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

// Provider строит gtasks-клиент поверх фейка
func (f *FakeGoogle) Provider(t *testing.T) service.Provider {
	t.Helper()
	return gtasks.New(f.Server(t).URL, "test-token", 2*time.Second, zap.NewNop())
}
