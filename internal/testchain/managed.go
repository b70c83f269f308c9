package testchain

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
)

// HeadHeader carries the head pointer on requests and responses.
const HeadHeader = "Head"

// ManagedNetwork fakes a hosted fork: a JSON-RPC endpoint whose every state
// change produces a new head, and a REST API that reports the fork's head.
// A request carrying a known head is served on top of that head.
type ManagedNetwork struct {
	chain *Chain

	AccessKey string
	Account   string
	Project   string
	ForkID    string

	RPC *httptest.Server
	API *httptest.Server

	mu      sync.Mutex
	head    string
	heads   map[string]*state
	nextID  int
	apiHits int
	seen    []string
}

// NewManagedNetwork starts both servers. Close them with Close.
func NewManagedNetwork(c *Chain) *ManagedNetwork {
	n := &ManagedNetwork{
		chain:     c,
		AccessKey: "test-access-key",
		Account:   "fixture",
		Project:   "aave",
		ForkID:    "3f2f1c2e-fork",
		heads:     make(map[string]*state),
	}
	n.head = n.record(c.exportState())

	rpcServer := c.Server()
	n.RPC = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n.serveRPC(rpcServer, w, r)
	}))
	n.API = httptest.NewServer(http.HandlerFunc(n.serveAPI))
	return n
}

func (n *ManagedNetwork) Close() {
	n.RPC.Close()
	n.API.Close()
}

// Head is the fork's current head.
func (n *ManagedNetwork) Head() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.head
}

// APIHits counts REST requests that passed authentication.
func (n *ManagedNetwork) APIHits() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.apiHits
}

// SeenHeads lists the Head request header of every RPC request, "" if absent.
func (n *ManagedNetwork) SeenHeads() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string{}, n.seen...)
}

func (n *ManagedNetwork) record(st *state) string {
	n.nextID++
	id := fmt.Sprintf("sim-%04d", n.nextID)
	n.heads[id] = st
	return id
}

func (n *ManagedNetwork) serveRPC(srv http.Handler, w http.ResponseWriter, r *http.Request) {
	requested := r.Header.Get(HeadHeader)

	n.mu.Lock()
	n.seen = append(n.seen, requested)
	current := n.head
	if requested != "" {
		st, ok := n.heads[requested]
		if !ok {
			n.mu.Unlock()
			http.Error(w, "unknown head "+requested, http.StatusBadRequest)
			return
		}
		current = requested
		n.chain.importState(st)
	} else {
		n.chain.importState(n.heads[current])
	}
	n.mu.Unlock()

	before := n.chain.stateVersion()
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, r)

	n.mu.Lock()
	if n.chain.stateVersion() != before {
		current = n.record(n.chain.exportState())
	}
	n.head = current
	n.mu.Unlock()

	for key, values := range rec.Header() {
		for _, value := range values {
			w.Header().Add(key, value)
		}
	}
	w.Header().Set(HeadHeader, current)
	w.WriteHeader(rec.Code)
	_, _ = w.Write(rec.Body.Bytes())
}

type forkResponse struct {
	SimulationFork struct {
		ID               string `json:"id"`
		HeadSimulationID string `json:"head_simulation_id"`
	} `json:"simulation_fork"`
}

func (n *ManagedNetwork) serveAPI(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("X-Access-Key") != n.AccessKey {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	want := fmt.Sprintf("/account/%s/project/%s/fork/%s", n.Account, n.Project, n.ForkID)
	if r.Method != http.MethodGet || r.URL.Path != want {
		http.NotFound(w, r)
		return
	}

	n.mu.Lock()
	n.apiHits++
	var resp forkResponse
	resp.SimulationFork.ID = n.ForkID
	resp.SimulationFork.HeadSimulationID = n.head
	n.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}
