package oracle

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/radieske/oracle-casino/internal/ledger"
)

// HTTPBeacon consulta um beacon de aleatoriedade no estilo drand:
//
//	GET {base}/public/{round} -> {"round":n,"randomness":"<hex>"}
//	GET {base}/public/latest  -> última rodada publicada
//
// 404 significa que a rodada ainda não foi publicada.
type HTTPBeacon struct {
	BaseURL string
	HTTP    *http.Client
}

func NewHTTPBeacon(base string) *HTTPBeacon {
	return &HTTPBeacon{
		BaseURL: strings.TrimSuffix(base, "/"),
		HTTP:    &http.Client{Timeout: 2 * time.Second},
	}
}

var _ ledger.RandomnessSource = (*HTTPBeacon)(nil)

type beaconResponse struct {
	Round      uint64 `json:"round"`
	Randomness string `json:"randomness"`
}

func (c *HTTPBeacon) RandomValueForRound(ctx context.Context, round uint64) ([]byte, bool, error) {
	out, found, err := c.get(ctx, "/public/"+strconv.FormatUint(round, 10))
	if err != nil || !found {
		return nil, false, err
	}
	if out.Round != round {
		return nil, false, fmt.Errorf("beacon answered round %d for round %d", out.Round, round)
	}
	value, err := hex.DecodeString(out.Randomness)
	if err != nil {
		return nil, false, fmt.Errorf("beacon randomness: %w", err)
	}
	if len(value) == 0 {
		return nil, false, nil
	}
	return value, true, nil
}

func (c *HTTPBeacon) LatestRound(ctx context.Context) (uint64, error) {
	out, found, err := c.get(ctx, "/public/latest")
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, nil // nada publicado ainda
	}
	return out.Round, nil
}

func (c *HTTPBeacon) get(ctx context.Context, path string) (*beaconResponse, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return nil, false, err
	}
	req.Header.Set("Accept", "application/json")
	res, err := c.HTTP.Do(req)
	if err != nil {
		return nil, false, err
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return nil, false, nil
	}
	if res.StatusCode >= 300 {
		return nil, false, fmt.Errorf("beacon http %d", res.StatusCode)
	}
	var out beaconResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return nil, false, fmt.Errorf("decode beacon: %w", err)
	}
	return &out, true, nil
}
