// Package beacon simula um beacon de aleatoriedade no estilo drand para
// ambientes locais: uma rodada nova a cada período, valor derivado da seed.
package beacon

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/radieske/oracle-casino/internal/oracle"
)

// Simulator publica a rodada n no instante genesis + n*period.
// randomness(n) = sha256(seed || bigEndian(n)); a rodada 0 nunca existe.
type Simulator struct {
	Seed    []byte
	Genesis time.Time
	Period  time.Duration
	Now     func() time.Time
}

func New(seed string, genesis time.Time, period time.Duration) *Simulator {
	return &Simulator{Seed: []byte(seed), Genesis: genesis, Period: period, Now: time.Now}
}

// Latest devolve a última rodada publicada (0 antes da primeira).
func (s *Simulator) Latest() uint64 {
	now := s.Now()
	if now.Before(s.Genesis) || s.Period <= 0 {
		return 0
	}
	return uint64(now.Sub(s.Genesis) / s.Period)
}

// Randomness devolve o valor da rodada, ou false se ainda não foi publicada.
func (s *Simulator) Randomness(round uint64) ([]byte, bool) {
	if round == 0 || round > s.Latest() {
		return nil, false
	}
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], round)
	h := sha256.New()
	h.Write(s.Seed)
	h.Write(n[:])
	return h.Sum(nil), true
}

type roundResponse struct {
	Round      uint64 `json:"round"`
	Randomness string `json:"randomness"`
}

// Router expõe /public/latest e /public/{round} no formato lido por oracle.HTTPBeacon.
func (s *Simulator) Router() http.Handler {
	r := chi.NewRouter()
	r.Get("/public/latest", func(w http.ResponseWriter, _ *http.Request) {
		latest := s.Latest()
		if latest == 0 {
			http.NotFound(w, nil)
			return
		}
		v, _ := s.Randomness(latest)
		writeRound(w, latest, v)
	})
	r.Get("/public/{round}", func(w http.ResponseWriter, r *http.Request) {
		n, err := strconv.ParseUint(chi.URLParam(r, "round"), 10, 64)
		if err != nil {
			http.Error(w, "invalid round", http.StatusBadRequest)
			return
		}
		v, ok := s.Randomness(n)
		if !ok {
			http.NotFound(w, r)
			return
		}
		writeRound(w, n, v)
	})
	return r
}

func writeRound(w http.ResponseWriter, round uint64, v []byte) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(roundResponse{Round: round, Randomness: hex.EncodeToString(v)})
}

type redisSetter interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// mirrorBackfill limita quantas rodadas antigas são copiadas de uma vez.
const mirrorBackfill = 64

// Mirror copia as rodadas publicadas depois de from para o Redis, nas chaves
// lidas por oracle.RedisRounds. Devolve a última rodada copiada.
func (s *Simulator) Mirror(ctx context.Context, rdb redisSetter, from uint64) (uint64, error) {
	latest := s.Latest()
	start := from + 1
	if latest >= mirrorBackfill && start+mirrorBackfill <= latest {
		start = latest - mirrorBackfill + 1
	}
	for n := start; n <= latest; n++ {
		v, _ := s.Randomness(n)
		if err := rdb.Set(ctx, oracle.RoundKey(n), hex.EncodeToString(v), 0).Err(); err != nil {
			return n - 1, err
		}
	}
	if latest > from {
		if err := rdb.Set(ctx, oracle.LatestKey, latest, 0).Err(); err != nil {
			return from, err
		}
	}
	return max(latest, from), nil
}

// RunMirror chama Mirror a cada período até o ctx ser cancelado.
// Published é chamado com a última rodada copiada.
func (s *Simulator) RunMirror(ctx context.Context, rdb redisSetter, log *zap.Logger, published func(uint64)) {
	t := time.NewTicker(s.Period)
	defer t.Stop()
	var last uint64
	for {
		n, err := s.Mirror(ctx, rdb, last)
		if err != nil {
			log.Warn("beacon mirror failed", zap.Uint64("round", n+1), zap.Error(err))
		}
		if n > last && published != nil {
			published(n)
		}
		last = n
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}
