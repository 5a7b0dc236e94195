package frame

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/basenuts/nut-state/pkg/holders"
	"github.com/basenuts/nut-state/pkg/neynar"
	"github.com/basenuts/nut-state/pkg/ratelimit"
	"github.com/basenuts/nut-state/pkg/snapshot"
	"github.com/basenuts/nut-state/pkg/stats"
)

type fakeRefresher struct {
	snap      *snapshot.Snapshot
	triggered chan struct{}
}

func newFakeRefresher() *fakeRefresher {
	snap := snapshot.New()
	snap.Queries[stats.DefaultTodayQueryID] = &snapshot.QueryEntry{Rows: []snapshot.Row{
		{"fid": float64(880), "peanut_count": float64(12)},
	}}
	snap.Queries[stats.DefaultTotalQueryID] = &snapshot.QueryEntry{Rows: []snapshot.Row{
		{"fid": float64(880), "total_peanut_count": float64(250)},
	}}
	snap.Queries[stats.DefaultSentQueryID] = &snapshot.QueryEntry{Rows: []snapshot.Row{
		{"fid": float64(880), "sent_peanut_count": float64(22)},
	}}
	snap.Queries[stats.DefaultRankQueryID] = &snapshot.QueryEntry{Rows: []snapshot.Row{
		{"fid": float64(880), "rank": float64(17)},
	}}
	return &fakeRefresher{snap: snap, triggered: make(chan struct{}, 8)}
}

func (f *fakeRefresher) Current() *snapshot.Snapshot { return f.snap }

func (f *fakeRefresher) TryRefresh(ctx context.Context) bool {
	select {
	case f.triggered <- struct{}{}:
	default:
	}
	return true
}

type fakeIdentity struct {
	user *neynar.User
	err  error
}

func (f *fakeIdentity) UserByFID(ctx context.Context, fid string) (*neynar.User, error) {
	return f.user, f.err
}

func generousLimiter() *ratelimit.Limiter {
	return ratelimit.New(ratelimit.Config{
		ShortWindow:   time.Second,
		ShortLimit:    1000,
		LongWindow:    time.Minute,
		LongLimit:     1000,
		LoadThreshold: 2,
	}, zerolog.Nop())
}

func newTestHandler(t *testing.T, limiter *ratelimit.Limiter, refresher Refresher, identity Identity, ix *holders.Index) *Handler {
	t.Helper()
	cfg := DefaultConfig("https://frame.example")
	cfg.AllowancePerNFT = 5
	h, err := New(cfg, limiter, refresher, identity, ix, stats.DefaultQueries(), zerolog.Nop())
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return h
}

func serve(h *Handler, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func waitTriggered(t *testing.T, f *fakeRefresher) {
	t.Helper()
	select {
	case <-f.triggered:
	case <-time.After(2 * time.Second):
		t.Fatal("Refresh was not triggered")
	}
}

func TestHandler_RendersStatsFrame(t *testing.T) {
	refresher := newFakeRefresher()
	h := newTestHandler(t, generousLimiter(), refresher, nil, nil)

	rec := serve(h, "/?fid=880&username=alice&pfpUrl=https%3A%2F%2Fimg.example%2Fa.png")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{
		`property="fc:frame" content="vNext"`,
		`content="My State"`,
		`content="Share"`,
		`content="Join Us"`,
		"warpcast.com/~/compose",
		"Today: 12",
		"Total: 250",
		"Remaining allowance: 8",
		"Rank: 17",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("Body missing %q", want)
		}
	}
	waitTriggered(t, refresher)
}

func TestHandler_DefaultsWhenParamsMissing(t *testing.T) {
	refresher := newFakeRefresher()
	h := newTestHandler(t, generousLimiter(), refresher, nil, nil)

	body := serve(h, "/").Body.String()

	if !strings.Contains(body, "Unknown") {
		t.Error("Body missing default username")
	}
	if !strings.Contains(body, "N/A") {
		t.Error("Body missing default fid")
	}
}

func TestHandler_IdentityFillsMissingProfile(t *testing.T) {
	refresher := newFakeRefresher()
	identity := &fakeIdentity{user: &neynar.User{FID: 880, Username: "alice", PfpURL: "https://img.example/a.png"}}
	h := newTestHandler(t, generousLimiter(), refresher, identity, nil)

	body := serve(h, "/?fid=880").Body.String()

	if !strings.Contains(body, "alice") {
		t.Error("Body missing username from identity lookup")
	}
}

func TestHandler_IdentityFailureDegradesToDefaults(t *testing.T) {
	refresher := newFakeRefresher()
	identity := &fakeIdentity{err: errors.New("upstream down")}
	h := newTestHandler(t, generousLimiter(), refresher, identity, nil)

	rec := serve(h, "/?fid=880")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Unknown") {
		t.Error("Body missing default username after identity failure")
	}
}

func TestHandler_HolderCeilingRaisesAllowance(t *testing.T) {
	dir := t.TempDir()
	data, err := json.Marshal(holders.File{Holders: []holders.Holding{{Wallet: "0xaaa", Count: 2}}})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	path := filepath.Join(dir, "holders.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	ix := holders.LoadIndex([]string{path}, zerolog.Nop())

	user := &neynar.User{FID: 880, Username: "alice"}
	user.VerifiedAddresses.EthAddresses = []string{"0xAAA"}

	refresher := newFakeRefresher()
	h := newTestHandler(t, generousLimiter(), refresher, &fakeIdentity{user: user}, ix)

	body := serve(h, "/?fid=880").Body.String()

	// Base 30 plus 5 per held NFT (2 held) minus 22 sent.
	if !strings.Contains(body, "Remaining allowance: 18") {
		t.Errorf("Body missing raised allowance, got:\n%s", body)
	}
}

func TestHandler_RateLimitRejection(t *testing.T) {
	limiter := ratelimit.New(ratelimit.Config{
		ShortWindow:   time.Minute,
		ShortLimit:    1,
		LongWindow:    time.Hour,
		LongLimit:     1000,
		LoadThreshold: 0,
	}, zerolog.Nop())
	refresher := newFakeRefresher()
	h := newTestHandler(t, limiter, refresher, nil, nil)

	serve(h, "/?fid=880")
	waitTriggered(t, refresher)

	rec := serve(h, "/?fid=880")
	if !strings.Contains(rec.Body.String(), "Too many requests") {
		t.Error("Expected rejection frame on second request")
	}
	select {
	case <-refresher.triggered:
		t.Error("Rejected request must not trigger a refresh")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestHandler_LoadSheddingSkipsRefresh(t *testing.T) {
	limiter := ratelimit.New(ratelimit.Config{
		ShortWindow:   time.Minute,
		ShortLimit:    3,
		LongWindow:    time.Hour,
		LongLimit:     1000,
		LoadThreshold: 2,
	}, zerolog.Nop())
	refresher := newFakeRefresher()
	h := newTestHandler(t, limiter, refresher, nil, nil)

	serve(h, "/?fid=880")
	waitTriggered(t, refresher)

	rec := serve(h, "/?fid=880")
	if !strings.Contains(rec.Body.String(), "try again in a moment") {
		t.Errorf("Expected shed frame, got:\n%s", rec.Body.String())
	}
	select {
	case <-refresher.triggered:
		t.Error("Shed request must not trigger a refresh")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestHashRegistry(t *testing.T) {
	reg := NewHashRegistry()

	first := reg.Get("880")
	if second := reg.Get("880"); second != first {
		t.Errorf("Get() returned %q then %q, want stable token", first, second)
	}
	if other := reg.Get("123"); other == first {
		t.Error("Distinct fids must get distinct tokens")
	}

	pattern := regexp.MustCompile(`^\d+-880-[0-9a-z]{9}$`)
	if !pattern.MatchString(first) {
		t.Errorf("Token %q does not match <unix-ms>-<fid>-<base36>", first)
	}
}
