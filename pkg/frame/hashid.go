package frame

import (
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"
)

const hashSuffixLen = 9

// HashRegistry hands out one opaque share token per fid for the lifetime of
// the process. Tokens are created on first use and never invalidated, so a
// user's share link stays stable across requests.
type HashRegistry struct {
	mu  sync.Mutex
	ids map[string]string

	now  func() time.Time
	rand *rand.Rand
}

// NewHashRegistry creates an empty registry.
func NewHashRegistry() *HashRegistry {
	return &HashRegistry{
		ids:  make(map[string]string),
		now:  time.Now,
		rand: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Get returns the token for fid, generating it on first call.
func (r *HashRegistry) Get(fid string) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id, ok := r.ids[fid]; ok {
		return id
	}
	id := fmt.Sprintf("%d-%s-%s", r.now().UnixMilli(), fid, r.randomSuffix())
	r.ids[fid] = id
	return id
}

const base36Alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

func (r *HashRegistry) randomSuffix() string {
	var b strings.Builder
	b.Grow(hashSuffixLen)
	for i := 0; i < hashSuffixLen; i++ {
		b.WriteByte(base36Alphabet[r.rand.Intn(len(base36Alphabet))])
	}
	return b.String()
}
