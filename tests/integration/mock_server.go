package integration

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"civitdl/pkg/civitai"
)

// MockCivitaiServer simulates the CivitAI TRPC API and delivery CDN for
// integration tests. It serves fixture collections, posts and media from
// one httptest server and records request counts per procedure.
type MockCivitaiServer struct {
	server *httptest.Server

	mu          sync.Mutex
	collections map[int64]*civitai.Collection
	posts       map[int64]*civitai.Post
	images      map[string][]civitai.Image // keyed by target string
	media       map[int64][]byte           // keyed by image ID

	requestCounts map[string]int
	mediaHits     int
	failures      map[string]*failurePlan
}

// failurePlan injects a fixed number of error responses for a procedure.
type failurePlan struct {
	status    int
	remaining int
}

// NewMockCivitaiServer creates and starts a mock server with empty fixtures.
func NewMockCivitaiServer() *MockCivitaiServer {
	m := &MockCivitaiServer{
		collections:   make(map[int64]*civitai.Collection),
		posts:         make(map[int64]*civitai.Post),
		images:        make(map[string][]civitai.Image),
		media:         make(map[int64][]byte),
		requestCounts: make(map[string]int),
		failures:      make(map[string]*failurePlan),
	}
	m.server = httptest.NewServer(http.HandlerFunc(m.handle))
	return m
}

// URL returns the base URL of the mock server.
func (m *MockCivitaiServer) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockCivitaiServer) Close() {
	m.server.Close()
}

// AddCollection registers a collection fixture with its listing items.
// Media bytes default to a per-item placeholder.
func (m *MockCivitaiServer) AddCollection(col *civitai.Collection, items []civitai.Image) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.collections[col.ID] = col
	m.images[civitai.CollectionTarget(col.ID).String()] = items
	for _, img := range items {
		if _, ok := m.media[img.ID]; !ok {
			m.media[img.ID] = []byte(fmt.Sprintf("media-%d", img.ID))
		}
	}
}

// AddPost registers a post fixture with its listing items.
func (m *MockCivitaiServer) AddPost(post *civitai.Post, items []civitai.Image) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.posts[post.ID] = post
	m.images[civitai.PostTarget(post.ID).String()] = items
	for _, img := range items {
		if _, ok := m.media[img.ID]; !ok {
			m.media[img.ID] = []byte(fmt.Sprintf("media-%d", img.ID))
		}
	}
}

// FailNext makes the next n requests to a procedure return the given
// HTTP status before normal handling resumes.
func (m *MockCivitaiServer) FailNext(procedure string, status, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[procedure] = &failurePlan{status: status, remaining: n}
}

// RequestCount returns how many requests a procedure has received.
func (m *MockCivitaiServer) RequestCount(procedure string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requestCounts[procedure]
}

// MediaHits returns how many media downloads the CDN side has served.
func (m *MockCivitaiServer) MediaHits() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mediaHits
}

// ResetCounters clears all request counters.
func (m *MockCivitaiServer) ResetCounters() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCounts = make(map[string]int)
	m.mediaHits = 0
}

func (m *MockCivitaiServer) handle(w http.ResponseWriter, r *http.Request) {
	procedure := strings.TrimPrefix(r.URL.Path, "/")

	// Media requests carry the account as the first path element
	if strings.HasPrefix(r.URL.Path, "/test-key/") {
		m.handleMedia(w, r)
		return
	}

	m.mu.Lock()
	m.requestCounts[procedure]++
	if plan, ok := m.failures[procedure]; ok && plan.remaining > 0 {
		plan.remaining--
		status := plan.status
		m.mu.Unlock()
		w.WriteHeader(status)
		return
	}
	m.mu.Unlock()

	input := m.decodeInput(r)

	switch procedure {
	case "collection.getById":
		m.handleCollection(w, input)
	case "post.get":
		m.handlePost(w, input)
	case "image.getInfinite":
		m.handleImagePage(w, input)
	case "image.get":
		m.handleImageDetail(w, input)
	case "image.getGenerationData":
		writeTRPCResult(w, &civitai.GenerationData{
			Meta: &civitai.GenerationMeta{
				Prompt:         "a castle on a hill",
				NegativePrompt: "blurry",
				Steps:          30,
				Sampler:        "Euler a",
			},
			Resources: []civitai.GenerationResource{
				{ModelID: 5, ModelName: "DreamShaper", ModelType: "Checkpoint"},
			},
		})
	case "tag.getVotableTags":
		writeTRPCResult(w, []civitai.VotableTag{
			{ID: 1, Name: "landscape"},
			{ID: 2, Name: "castle"},
		})
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (m *MockCivitaiServer) handleMedia(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	m.mediaHits++
	var data []byte
	for id, bytes := range m.media {
		if strings.Contains(r.URL.Path, fmt.Sprintf("/key-%d/", id)) {
			data = bytes
			break
		}
	}
	m.mu.Unlock()

	if data == nil {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	w.Write(data)
}

// decodeInput parses the TRPC input query parameter.
func (m *MockCivitaiServer) decodeInput(r *http.Request) map[string]interface{} {
	raw := r.URL.Query().Get("input")
	var input struct {
		JSON map[string]interface{} `json:"json"`
	}
	if err := json.Unmarshal([]byte(raw), &input); err != nil {
		return nil
	}
	return input.JSON
}

func inputID(input map[string]interface{}, key string) int64 {
	if input == nil {
		return 0
	}
	if v, ok := input[key].(float64); ok {
		return int64(v)
	}
	return 0
}

func (m *MockCivitaiServer) handleCollection(w http.ResponseWriter, input map[string]interface{}) {
	m.mu.Lock()
	col, ok := m.collections[inputID(input, "id")]
	m.mu.Unlock()

	if !ok {
		writeTRPCError(w, "NOT_FOUND", 404, "Collection not found")
		return
	}
	writeTRPCResult(w, map[string]interface{}{"collection": col})
}

func (m *MockCivitaiServer) handlePost(w http.ResponseWriter, input map[string]interface{}) {
	m.mu.Lock()
	post, ok := m.posts[inputID(input, "id")]
	m.mu.Unlock()

	if !ok {
		writeTRPCError(w, "NOT_FOUND", 404, "Post not found")
		return
	}
	writeTRPCResult(w, post)
}

func (m *MockCivitaiServer) handleImagePage(w http.ResponseWriter, input map[string]interface{}) {
	var target civitai.Target
	if id := inputID(input, "collectionId"); id != 0 {
		target = civitai.CollectionTarget(id)
	} else if id := inputID(input, "postId"); id != 0 {
		target = civitai.PostTarget(id)
	}

	m.mu.Lock()
	items := m.images[target.String()]
	m.mu.Unlock()

	writeTRPCResult(w, map[string]interface{}{
		"items":      items,
		"nextCursor": nil,
	})
}

func (m *MockCivitaiServer) handleImageDetail(w http.ResponseWriter, input map[string]interface{}) {
	id := inputID(input, "id")

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, items := range m.images {
		for _, img := range items {
			if img.ID == id {
				writeTRPCResult(w, img)
				return
			}
		}
	}
	writeTRPCError(w, "NOT_FOUND", 404, "Image not found")
}

func writeTRPCResult(w http.ResponseWriter, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"result": map[string]interface{}{
			"data": map[string]interface{}{"json": payload},
		},
	})
}

func writeTRPCError(w http.ResponseWriter, code string, httpStatus int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error": map[string]interface{}{
			"json": map[string]interface{}{
				"message": message,
				"data": map[string]interface{}{
					"code":       code,
					"httpStatus": httpStatus,
				},
			},
		},
	})
}

// testImage builds a listing-style image fixture whose media resolves to a
// bare CDN key.
func testImage(id int64, mimeType string) civitai.Image {
	now := time.Now().UTC().Truncate(time.Second)
	return civitai.Image{
		ID:        id,
		Name:      fmt.Sprintf("image-%d", id),
		URL:       fmt.Sprintf("key-%d", id),
		Width:     1024,
		Height:    1024,
		MimeType:  mimeType,
		NSFWLevel: 1,
		CreatedAt: &now,
		User:      &civitai.User{ID: 1, Username: "civit_user"},
		Stats:     &civitai.ImageStats{LikeCount: 3, HeartCount: 1},
	}
}
