// Package entropy draws fresh generation seeds from random.org, falling back
// to crypto/rand when no API key is configured or the service is unreachable.
package entropy

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

const defaultEndpoint = "https://api.random.org/json-rpc/4/invoke"

// poolSize is how many seeds one random.org request fetches.
const poolSize = 16

// Source hands out seeds from a local pool refilled from random.org.
// A nil *Source is valid and always uses crypto/rand.
type Source struct {
	apiKey   string
	endpoint string
	client   *http.Client

	mu   sync.Mutex
	pool []int64
}

// NewSource creates a random.org backed source. Returns nil if apiKey is empty.
func NewSource(apiKey string) *Source {
	if apiKey == "" {
		return nil
	}
	return &Source{
		apiKey:   apiKey,
		endpoint: defaultEndpoint,
		client:   &http.Client{Timeout: 15 * time.Second},
	}
}

// Enabled reports whether seeds come from random.org.
func (s *Source) Enabled() bool {
	return s != nil && s.apiKey != ""
}

// Seed returns a fresh non-negative seed.
func (s *Source) Seed(ctx context.Context) int64 {
	if !s.Enabled() {
		return CryptoSeed()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.pool) == 0 {
		if err := s.refill(ctx); err != nil {
			slog.Debug("random.org refill failed", "error", err)
		}
	}
	if len(s.pool) == 0 {
		return CryptoSeed()
	}

	seed := s.pool[0]
	s.pool = s.pool[1:]
	return seed
}

func (s *Source) refill(ctx context.Context) error {
	req := map[string]any{
		"jsonrpc": "2.0",
		"method":  "generateIntegers",
		"params": map[string]any{
			"apiKey": s.apiKey,
			"n":      poolSize,
			"min":    0,
			"max":    1_000_000_000,
		},
		"id": 1,
	}
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("random.org status %d", resp.StatusCode)
	}

	var result struct {
		Result struct {
			Random struct {
				Data []int64 `json:"data"`
			} `json:"random"`
		} `json:"result"`
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	if result.Error != nil {
		return fmt.Errorf("random.org: %s", result.Error.Message)
	}

	s.pool = append(s.pool, result.Result.Random.Data...)
	slog.Debug("random.org pool refilled", "count", len(result.Result.Random.Data))
	return nil
}

// CryptoSeed returns a non-negative seed from crypto/rand.
func CryptoSeed() int64 {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return time.Now().UnixNano() & (1<<63 - 1)
	}
	return int64(binary.LittleEndian.Uint64(buf[:]) >> 1)
}
