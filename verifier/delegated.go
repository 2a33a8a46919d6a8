package verifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/vocdoni/davinci-pool/types"
)

// Service is an external proof acceptor addressed by target name. A nil
// error means the proof was accepted. magic is nil when the pool has none
// configured.
type Service interface {
	Verify(ctx context.Context, target string, proof, magic []byte) error
}

// devProofHeader marks proofs accepted by the development verifier.
var devProofHeader = []byte("POS!")

// devFallbackProof is accepted by the development verifier when no magic is
// given.
var devFallbackProof = []byte("VALID")

// DevService is the in-process development verifier. Targets must be
// registered before use. With magic it accepts only proofs equal to it;
// without, it accepts proofs starting with "POS!" or equal to "VALID".
type DevService struct {
	mu      sync.RWMutex
	targets map[string]struct{}
}

// NewDevService returns a development verifier answering for targets.
func NewDevService(targets ...string) *DevService {
	d := &DevService{targets: make(map[string]struct{})}
	for _, t := range targets {
		d.Register(t)
	}
	return d
}

// Register makes target addressable.
func (d *DevService) Register(target string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.targets[target] = struct{}{}
}

func (d *DevService) Verify(_ context.Context, target string, proof, magic []byte) error {
	d.mu.RLock()
	_, ok := d.targets[target]
	d.mu.RUnlock()
	if !ok {
		return fmt.Errorf("unknown verifier target %q", target)
	}
	if magic != nil {
		if !bytes.Equal(proof, magic) {
			return types.ErrInvalidProof
		}
		return nil
	}
	if bytes.HasPrefix(proof, devProofHeader) || bytes.Equal(proof, devFallbackProof) {
		return nil
	}
	return types.ErrInvalidProof
}

// DefaultHTTPTimeout bounds a remote verification when the context has no
// deadline.
const DefaultHTTPTimeout = 10 * time.Second

// HTTPService delegates verification to a remote service: it POSTs
// {"proof", "magic"} as JSON to <base>/<target> and accepts on 200 OK.
type HTTPService struct {
	base   *url.URL
	client *http.Client
}

// verifyRequest is the body sent to the remote verifier.
type verifyRequest struct {
	Proof types.HexBytes `json:"proof"`
	Magic types.HexBytes `json:"magic,omitempty"`
}

// NewHTTPService returns a remote verifier rooted at baseURL.
func NewHTTPService(baseURL string) (*HTTPService, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid delegated verifier url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid delegated verifier url scheme %q", u.Scheme)
	}
	return &HTTPService{
		base:   u,
		client: &http.Client{Timeout: DefaultHTTPTimeout},
	}, nil
}

func (s *HTTPService) Verify(ctx context.Context, target string, proof, magic []byte) error {
	body, err := json.Marshal(&verifyRequest{Proof: proof, Magic: magic})
	if err != nil {
		return err
	}
	endpoint := s.base.JoinPath(url.PathEscape(strings.Trim(target, "/")))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("rejected with status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return nil
}
