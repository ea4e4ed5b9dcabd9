// Package testutil provides a configurable mock of the results upstream for tests.
package testutil

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	json "github.com/goccy/go-json"
)

// Paths served by MockUpstream.
const (
	DiscoveryPath = "/urls.json"
	ResultsPath   = "/results/results.json.php"
)

// MockResponse defines the behavior for one mock response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockUpstream serves a discovery document and per-day results documents.
// Each day can be told to fail a number of times before it succeeds.
type MockUpstream struct {
	server *httptest.Server
	mu     sync.RWMutex

	discovery *MockResponse
	days      map[string]string
	failures  map[string][]MockResponse

	// Tracking
	RequestCount   int
	DiscoveryCount int
	DayCount       map[string]int
	LastUserAgent  string
}

// NewMockUpstream creates and starts a mock upstream whose discovery
// document lists the server itself under "common".
func NewMockUpstream() *MockUpstream {
	mock := &MockUpstream{
		days:     make(map[string]string),
		failures: make(map[string][]MockResponse),
		DayCount: make(map[string]int),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.RequestCount++
		mock.LastUserAgent = r.UserAgent()
		mock.mu.Unlock()

		switch r.URL.Path {
		case DiscoveryPath:
			mock.serveDiscovery(w)
		case ResultsPath:
			mock.serveDay(w, r.URL.Query().Get("lineDate"))
		default:
			http.NotFound(w, r)
		}
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockUpstream) URL() string {
	return m.server.URL
}

// DiscoveryURL returns the URL of the discovery document.
func (m *MockUpstream) DiscoveryURL() string {
	return m.server.URL + DiscoveryPath
}

// HostFragment returns the server address in the upstream "//host:port" form.
func (m *MockUpstream) HostFragment() string {
	return strings.TrimPrefix(m.server.URL, "http:")
}

// Close shuts down the mock server.
func (m *MockUpstream) Close() {
	m.server.Close()
}

// SetDiscovery overrides the discovery response.
func (m *MockUpstream) SetDiscovery(resp MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.discovery = &resp
}

// SetDay sets the document served for a YYYY-MM-DD day.
func (m *MockUpstream) SetDay(day, body string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.days[day] = body
}

// FailDay queues responses served for day before the configured document.
func (m *MockUpstream) FailDay(day string, responses ...MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[day] = append(m.failures[day], responses...)
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockUpstream) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

// GetDayCount returns the number of results requests for day.
func (m *MockUpstream) GetDayCount(day string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.DayCount[day]
}

// GetDiscoveryCount returns the number of discovery requests.
func (m *MockUpstream) GetDiscoveryCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.DiscoveryCount
}

func (m *MockUpstream) serveDiscovery(w http.ResponseWriter) {
	m.mu.Lock()
	m.DiscoveryCount++
	override := m.discovery
	m.mu.Unlock()

	if override != nil {
		write(w, *override)
		return
	}

	body, _ := json.Marshal(map[string][]string{"common": {m.HostFragment()}})
	write(w, NewHealthyResponse(string(body)))
}

func (m *MockUpstream) serveDay(w http.ResponseWriter, day string) {
	m.mu.Lock()
	m.DayCount[day]++
	var resp MockResponse
	if queued := m.failures[day]; len(queued) > 0 {
		resp = queued[0]
		m.failures[day] = queued[1:]
	} else if body, ok := m.days[day]; ok {
		resp = NewHealthyResponse(body)
	} else {
		resp = NewHealthyResponse(EmptyDocument)
	}
	m.mu.Unlock()

	write(w, resp)
}

func write(w http.ResponseWriter, resp MockResponse) {
	if resp.Delay > 0 {
		time.Sleep(resp.Delay)
	}
	for key, value := range resp.Headers {
		w.Header().Set(key, value)
	}
	w.WriteHeader(resp.StatusCode)
	if resp.Body != "" {
		w.Write([]byte(resp.Body))
	}
}

// EmptyDocument is a results document without events.
const EmptyDocument = `{"events": [], "sections": []}`

// Event is a minimal upstream event for building documents.
type Event struct {
	Name      string
	StartTime time.Time
}

// Document builds a results document with a single section referencing every event.
func Document(section string, events ...Event) string {
	type rawEvent struct {
		ID        int    `json:"id"`
		Name      string `json:"name"`
		StartTime int64  `json:"startTime"`
	}
	type rawSection struct {
		Name   string `json:"name"`
		Events []int  `json:"events"`
	}

	doc := struct {
		Events   []rawEvent   `json:"events"`
		Sections []rawSection `json:"sections"`
	}{Events: []rawEvent{}, Sections: []rawSection{}}

	refs := make([]int, 0, len(events))
	for i, ev := range events {
		doc.Events = append(doc.Events, rawEvent{ID: 1000 + i, Name: ev.Name, StartTime: ev.StartTime.Unix()})
		refs = append(refs, i+1)
	}
	if section != "" && len(refs) > 0 {
		doc.Sections = append(doc.Sections, rawSection{Name: section, Events: refs})
	}

	body, err := json.Marshal(doc)
	if err != nil {
		panic(fmt.Sprintf("build document: %v", err))
	}
	return string(body)
}

// NewHealthyResponse creates a standard 200 OK JSON response.
func NewHealthyResponse(data string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       data,
		Headers: map[string]string{
			"Content-Type": "application/json; charset=utf-8",
		},
	}
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"error": "Internal server error"}`,
		Headers: map[string]string{
			"Content-Type": "application/json; charset=utf-8",
		},
	}
}

// NewBusyResponse creates a 200 response whose body is not JSON, as served by an overloaded mirror.
func NewBusyResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       `<html><body>Server busy</body></html>`,
		Headers: map[string]string{
			"Content-Type": "text/html",
		},
	}
}

// NewCorruptResponse creates a 200 response whose body is not valid UTF-8.
func NewCorruptResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       string([]byte{'{', 0xff, 0xfe, 0xfd, '}'}),
		Headers: map[string]string{
			"Content-Type": "application/json",
		},
	}
}
