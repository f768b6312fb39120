package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"igcrawler/pkg/config"
)

const (
	// MediaHash and TagExploreHash are the query hashes the mock accepts.
	MediaHash      = "e769aa130647d2354c40ea6a439bfc08"
	TagExploreHash = "f92f56d47dc7a55b606908374b43a314"

	Username = "crawler"
	Password = "hunter2"
)

// RecordedRequest is what the mock saw of one request.
type RecordedRequest struct {
	Method    string
	Path      string
	RawQuery  string
	CSRFToken string
}

// LoginReply overrides the login endpoint's answer.
type LoginReply struct {
	Status int
	Body   string
	// SetSession sets a sessionid cookie alongside Body
	SetSession bool
}

// MockInstagramServer simulates the landing page, login, GraphQL pagination
// and blended search endpoints.
type MockInstagramServer struct {
	server       *httptest.Server
	requestCount int32

	mu             sync.RWMutex
	profiles       map[string]Profile
	users          []SearchUser
	tags           []SearchTag
	errorResponses map[string]int
	delays         map[string]time.Duration
	requests       []RecordedRequest
	login          *LoginReply
	noCSRF         bool
	tokenSeq       int
	repeatCursor   bool
}

// NewMockInstagramServer starts a mock server. Close it when done.
func NewMockInstagramServer() *MockInstagramServer {
	m := &MockInstagramServer{
		profiles:       make(map[string]Profile),
		errorResponses: make(map[string]int),
		delays:         make(map[string]time.Duration),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/accounts/login/ajax/", m.handleLogin)
	mux.HandleFunc("/graphql/query/", m.handleQuery)
	mux.HandleFunc("/web/search/topsearch/", m.handleSearch)
	mux.HandleFunc("/", m.handlePage)

	m.server = httptest.NewServer(m.record(mux))
	return m
}

func (m *MockInstagramServer) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&m.requestCount, 1)
		m.mu.Lock()
		m.requests = append(m.requests, RecordedRequest{
			Method:    r.Method,
			Path:      r.URL.Path,
			RawQuery:  r.URL.RawQuery,
			CSRFToken: r.Header.Get("X-CSRFToken"),
		})
		delay := m.delays[r.URL.Path]
		code := m.errorResponses[r.URL.Path]
		m.mu.Unlock()

		if delay > 0 {
			time.Sleep(delay)
		}
		if code > 0 {
			m.sendError(w, code)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// handlePage serves the landing page and profile pages.
func (m *MockInstagramServer) handlePage(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	noCSRF := m.noCSRF
	m.tokenSeq++
	token := fmt.Sprintf("csrf-%d", m.tokenSeq)
	m.mu.Unlock()

	if !noCSRF {
		http.SetCookie(w, &http.Cookie{Name: "csrftoken", Value: token, Path: "/"})
	}

	name := strings.Trim(r.URL.Path, "/")
	if name == "" {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte("<!DOCTYPE html><html><head><title>Instagram</title></head><body></body></html>"))
		return
	}

	m.mu.RLock()
	profile, ok := m.profiles[name]
	m.mu.RUnlock()
	if !ok {
		m.sendError(w, http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(ProfileHTML(SharedData(profile)))
}

// handleLogin checks the anti-forgery header and the credentials.
func (m *MockInstagramServer) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	m.mu.RLock()
	reply := m.login
	m.mu.RUnlock()

	if reply != nil {
		if reply.SetSession {
			http.SetCookie(w, &http.Cookie{Name: "sessionid", Value: "test_session_id", Path: "/", HttpOnly: true})
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(reply.Status)
		w.Write([]byte(reply.Body))
		return
	}

	csrf, err := r.Cookie("csrftoken")
	if err != nil || r.Header.Get("X-CSRFToken") != csrf.Value {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"message":"CSRF token missing or incorrect","status":"fail"}`))
		return
	}

	if err := r.ParseForm(); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if r.PostForm.Get("username") != Username || r.PostForm.Get("password") != Password {
		w.Write([]byte(`{"authenticated":false,"user":true,"status":"ok"}`))
		return
	}

	http.SetCookie(w, &http.Cookie{Name: "sessionid", Value: "test_session_id", Path: "/", HttpOnly: true})
	http.SetCookie(w, &http.Cookie{Name: "csrftoken", Value: "csrf-authenticated", Path: "/"})
	json.NewEncoder(w).Encode(map[string]interface{}{
		"authenticated": true,
		"user":          true,
		"userId":        "123456789",
		"status":        "ok",
	})
}

// handleQuery serves media continuation pages and tag explore queries.
func (m *MockInstagramServer) handleQuery(w http.ResponseWriter, r *http.Request) {
	hash := r.URL.Query().Get("query_hash")
	var variables map[string]interface{}
	if err := json.Unmarshal([]byte(r.URL.Query().Get("variables")), &variables); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	switch hash {
	case TagExploreHash:
		tag, _ := variables["tag_name"].(string)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": map[string]interface{}{
				"hashtag": map[string]interface{}{
					"name":                    tag,
					"edge_hashtag_to_media":   map[string]interface{}{"count": 42},
					"edge_hashtag_to_content": map[string]interface{}{"edges": []interface{}{}},
				},
			},
			"status": "ok",
		})
	case MediaHash:
		id, _ := variables["id"].(string)
		after, _ := variables["after"].(string)
		m.servePage(w, id, after)
	default:
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"message":"unknown query hash","status":"fail"}`))
	}
}

func (m *MockInstagramServer) servePage(w http.ResponseWriter, id, after string) {
	m.mu.RLock()
	var profile *Profile
	for _, p := range m.profiles {
		if p.ID == id {
			p := p
			profile = &p
			break
		}
	}
	repeat := m.repeatCursor
	m.mu.RUnlock()

	if profile == nil {
		w.Write([]byte(`{"data":{"user":null},"status":"ok"}`))
		return
	}

	index := -1
	for i := 1; i < len(profile.Pages); i++ {
		if CursorFor(i) == after {
			index = i
			break
		}
	}
	if index < 0 {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"message":"invalid cursor","status":"fail"}`))
		return
	}

	hasNext := index+1 < len(profile.Pages)
	cursor := ""
	if hasNext {
		cursor = CursorFor(index + 1)
		if repeat {
			cursor = after
		}
	}
	w.Write(MediaJSON(profile.MediaCount(), profile.Pages[index], hasNext, cursor))
}

// handleSearch answers blended search; a leading '#' searches hashtags.
func (m *MockInstagramServer) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("query")

	m.mu.RLock()
	defer m.mu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	if strings.HasPrefix(q, "#") {
		var tags []SearchTag
		for _, t := range m.tags {
			if strings.Contains(t.Name, strings.TrimPrefix(q, "#")) {
				tags = append(tags, t)
			}
		}
		w.Write(TagSearchJSON(tags))
		return
	}

	var users []SearchUser
	for _, u := range m.users {
		if strings.Contains(u.Username, q) || strings.Contains(strings.ToLower(u.FullName), strings.ToLower(q)) {
			users = append(users, u)
		}
	}
	w.Write(UserSearchJSON(users))
}

func (m *MockInstagramServer) sendError(w http.ResponseWriter, code int) {
	w.Header().Set("Content-Type", "application/json")
	if code == http.StatusTooManyRequests {
		w.Header().Set("Retry-After", "60")
	}
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"message": http.StatusText(code),
		"status":  "fail",
	})
}

// AddProfile registers an account served at /<username>/.
func (m *MockInstagramServer) AddProfile(p Profile) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[p.Username] = p
}

// SetSearchResults sets the accounts and hashtags blended search can return.
func (m *MockInstagramServer) SetSearchResults(users []SearchUser, tags []SearchTag) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users = users
	m.tags = tags
}

// SetLoginReply makes login answer with reply instead of checking credentials.
func (m *MockInstagramServer) SetLoginReply(reply LoginReply) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.login = &reply
}

// DisableCSRFCookie stops the landing page from setting csrftoken.
func (m *MockInstagramServer) DisableCSRFCookie() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.noCSRF = true
}

// RepeatCursor makes every continuation page return the cursor it was asked for.
func (m *MockInstagramServer) RepeatCursor() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.repeatCursor = true
}

// SetErrorResponse makes requests to path fail with code
func (m *MockInstagramServer) SetErrorResponse(path string, code int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorResponses[path] = code
}

// ClearErrorResponse removes error configuration for a path
func (m *MockInstagramServer) ClearErrorResponse(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.errorResponses, path)
}

// SetDelay configures response delay for a path
func (m *MockInstagramServer) SetDelay(path string, delay time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delays[path] = delay
}

// GetURL returns the base URL of the mock server
func (m *MockInstagramServer) GetURL() string {
	return m.server.URL
}

// Endpoints points every endpoint at the mock server.
func (m *MockInstagramServer) Endpoints() config.EndpointsConfig {
	return config.EndpointsConfig{
		BaseURL:        m.server.URL + "/",
		LoginURL:       m.server.URL + "/accounts/login/ajax/",
		MediaHash:      MediaHash,
		QueryURL:       m.server.URL + "/graphql/query/",
		SearchURL:      m.server.URL + "/web/search/topsearch/?context=blended&query=",
		TagExploreHash: TagExploreHash,
	}
}

// GetRequestCount returns the total number of requests
func (m *MockInstagramServer) GetRequestCount() int {
	return int(atomic.LoadInt32(&m.requestCount))
}

// Requests returns every request seen so far, in arrival order.
func (m *MockInstagramServer) Requests() []RecordedRequest {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]RecordedRequest, len(m.requests))
	copy(out, m.requests)
	return out
}

// RequestsTo counts requests whose path equals path.
func (m *MockInstagramServer) RequestsTo(path string) int {
	n := 0
	for _, r := range m.Requests() {
		if r.Path == path {
			n++
		}
	}
	return n
}

// ResetCounters forgets recorded requests
func (m *MockInstagramServer) ResetCounters() {
	atomic.StoreInt32(&m.requestCount, 0)
	m.mu.Lock()
	m.requests = nil
	m.mu.Unlock()
}

// Close shuts down the mock server
func (m *MockInstagramServer) Close() {
	m.server.Close()
}
