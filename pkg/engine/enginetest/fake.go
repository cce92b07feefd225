// Package enginetest provides an in-process fake engine for tests.
package enginetest

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
)

// Response is one canned reply.
type Response struct {
	Status int
	Body   any
}

// JSON builds a 200 response.
func JSON(body any) Response { return Response{Status: http.StatusOK, Body: body} }

// Detail builds an error response wrapped in a {"detail": ...} envelope.
func Detail(status int, detail any) Response {
	return Response{Status: status, Body: map[string]any{"detail": detail}}
}

// Fake is a scripted engine. Each route replays its queue in order and keeps
// repeating the last response once the queue is drained.
type Fake struct {
	Server *httptest.Server

	mu     sync.Mutex
	routes map[string][]Response
	gates  map[string]chan struct{}
	calls  map[string]int
	bodies map[string][]map[string]any
}

// New starts a fake engine. Callers must Close it.
func New() *Fake {
	f := &Fake{
		routes: make(map[string][]Response),
		gates:  make(map[string]chan struct{}),
		calls:  make(map[string]int),
		bodies: make(map[string][]map[string]any),
	}
	f.Server = httptest.NewServer(http.HandlerFunc(f.serve))
	return f
}

// URL is the base URL of the fake.
func (f *Fake) URL() string { return f.Server.URL }

// Close stops the server.
func (f *Fake) Close() { f.Server.Close() }

// On scripts the responses for "METHOD /path".
func (f *Fake) On(route string, responses ...Response) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.routes[route] = append([]Response(nil), responses...)
}

// Gate makes the route block until the returned channel is closed.
func (f *Fake) Gate(route string) chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan struct{})
	f.gates[route] = ch
	return ch
}

// Calls returns how many times the route was hit.
func (f *Fake) Calls(route string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[route]
}

// Bodies returns the decoded JSON bodies received on the route.
func (f *Fake) Bodies(route string) []map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]map[string]any(nil), f.bodies[route]...)
}

// LastBody returns the most recent body received on the route, or nil.
func (f *Fake) LastBody(route string) map[string]any {
	b := f.Bodies(route)
	if len(b) == 0 {
		return nil
	}
	return b[len(b)-1]
}

func (f *Fake) serve(w http.ResponseWriter, r *http.Request) {
	route := r.Method + " " + r.URL.Path

	var body map[string]any
	if raw, _ := io.ReadAll(r.Body); len(strings.TrimSpace(string(raw))) > 0 {
		_ = json.Unmarshal(raw, &body)
	}

	f.mu.Lock()
	f.calls[route]++
	f.bodies[route] = append(f.bodies[route], body)
	gate := f.gates[route]
	queue := f.routes[route]
	var resp Response
	found := len(queue) > 0
	if found {
		resp = queue[0]
		if len(queue) > 1 {
			f.routes[route] = queue[1:]
		}
	}
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-r.Context().Done():
			return
		}
	}

	if !found {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"detail":"Not Found"}`))
		return
	}

	status := resp.Status
	if status == 0 {
		status = http.StatusOK
	}
	switch b := resp.Body.(type) {
	case []byte:
		w.WriteHeader(status)
		_, _ = w.Write(b)
	case nil:
		w.WriteHeader(status)
	default:
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(b)
	}
}
