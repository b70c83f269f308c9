package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/rpc"
)

// HeadHeader carries the head pointer on managed network RPC traffic.
const HeadHeader = "Head"

const defaultAPITimeout = 10 * time.Second

// TenderlyConfig locates one fork on the managed network.
type TenderlyConfig struct {
	RPCURL    string
	APIURL    string
	AccessKey string
	Account   string
	Project   string
	ForkID    string
	// Transport is used for both RPC and API traffic; nil means http.DefaultTransport.
	Transport http.RoundTripper
}

func (c *TenderlyConfig) validate() error {
	if c.RPCURL == "" {
		return errors.New("rpc url is required")
	}
	if c.APIURL == "" {
		return errors.New("api url is required")
	}
	if c.Account == "" || c.Project == "" {
		return errors.New("account and project are required")
	}
	if c.ForkID == "" {
		return errors.New("fork id is required")
	}
	return nil
}

// TenderlyNetwork tracks the head of a managed fork. Every RPC request sent
// through its transport carries the current head and every response moves
// it forward, so SetHead rewinds all later traffic.
type TenderlyNetwork struct {
	cfg  TenderlyConfig
	base http.RoundTripper
	api  *http.Client

	mu   sync.Mutex
	head string
}

func NewTenderlyNetwork(cfg TenderlyConfig) (*TenderlyNetwork, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid tenderly network configuration: %w", err)
	}
	base := cfg.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	return &TenderlyNetwork{
		cfg:  cfg,
		base: base,
		api:  &http.Client{Transport: base, Timeout: defaultAPITimeout},
	}, nil
}

// RoundTrip implements http.RoundTripper.
func (n *TenderlyNetwork) RoundTrip(req *http.Request) (*http.Response, error) {
	n.mu.Lock()
	head := n.head
	n.mu.Unlock()

	if head != "" {
		req = req.Clone(req.Context())
		req.Header.Set(HeadHeader, head)
	}
	resp, err := n.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if next := resp.Header.Get(HeadHeader); next != "" {
		n.mu.Lock()
		n.head = next
		n.mu.Unlock()
	}
	return resp, nil
}

// HTTPClient returns a client whose traffic follows the head.
func (n *TenderlyNetwork) HTTPClient() *http.Client {
	return &http.Client{Transport: n}
}

// Dial connects an RPC client to the fork through the head-tracking transport.
func (n *TenderlyNetwork) Dial(ctx context.Context) (*rpc.Client, error) {
	client, err := rpc.DialOptions(ctx, n.cfg.RPCURL, rpc.WithHTTPClient(n.HTTPClient()))
	if err != nil {
		return nil, fmt.Errorf("failed to dial managed network: %w", err)
	}
	return client, nil
}

// GetHead returns the current head, reading it from the API on first use.
func (n *TenderlyNetwork) GetHead(ctx context.Context) (string, error) {
	n.mu.Lock()
	head := n.head
	n.mu.Unlock()
	if head != "" {
		return head, nil
	}

	head, err := n.fetchHead(ctx)
	if err != nil {
		return "", err
	}
	if head == "" {
		return "", ErrNoHead
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	// RPC traffic may have moved the head while the API call was in flight.
	if n.head == "" {
		n.head = head
	}
	return n.head, nil
}

// SetHead points all later RPC traffic at head.
func (n *TenderlyNetwork) SetHead(ctx context.Context, head string) error {
	if head == "" {
		return ErrNoHead
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.head = head
	return nil
}

type forkResponse struct {
	SimulationFork struct {
		ID               string `json:"id"`
		HeadSimulationID string `json:"head_simulation_id"`
	} `json:"simulation_fork"`
}

func (n *TenderlyNetwork) fetchHead(ctx context.Context) (string, error) {
	endpoint, err := url.JoinPath(n.cfg.APIURL, "account", n.cfg.Account, "project", n.cfg.Project, "fork", n.cfg.ForkID)
	if err != nil {
		return "", fmt.Errorf("invalid api url: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("X-Access-Key", n.cfg.AccessKey)
	req.Header.Set("Accept", "application/json")

	resp, err := n.api.Do(req)
	if err != nil {
		return "", fmt.Errorf("fork head request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("fork head request failed: %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	var fork forkResponse
	if err := json.NewDecoder(resp.Body).Decode(&fork); err != nil {
		return "", fmt.Errorf("invalid fork head response: %w", err)
	}
	return fork.SimulationFork.HeadSimulationID, nil
}
