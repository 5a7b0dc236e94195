// Package frame serves the inbound frame endpoint: it gates requests through
// the rate limiter, resolves the user's display identity, triggers a refresh
// pass without blocking the response, and renders the stats frame document.
package frame

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/basenuts/nut-state/pkg/holders"
	"github.com/basenuts/nut-state/pkg/neynar"
	"github.com/basenuts/nut-state/pkg/ratelimit"
	"github.com/basenuts/nut-state/pkg/snapshot"
	"github.com/basenuts/nut-state/pkg/stats"
)

// Refresher is the scheduler surface the handler needs: the current
// snapshot and a non-blocking refresh trigger.
type Refresher interface {
	Current() *snapshot.Snapshot
	TryRefresh(ctx context.Context) bool
}

// Identity resolves a fid to profile data and wallets. May be nil; the
// handler then renders with whatever the query string carried.
type Identity interface {
	UserByFID(ctx context.Context, fid string) (*neynar.User, error)
}

// Config holds the handler configuration.
type Config struct {
	// PublicURL is the externally reachable frame endpoint, used in share
	// links.
	PublicURL string

	// ImageURL is the stats-card image endpoint (default: PublicURL+"/image").
	ImageURL string

	// ShareText is the prefilled compose text for the Share button.
	ShareText string

	// CommunityURL is the Join Us button target.
	CommunityURL string

	// BaseAllowance every user gets per day.
	BaseAllowance int64

	// AllowancePerNFT is the ceiling bonus per held NFT (0 disables).
	AllowancePerNFT int64

	// IdentityTimeout bounds the identity lookup so a slow upstream cannot
	// stall frame responses.
	IdentityTimeout time.Duration
}

// DefaultConfig returns the handler defaults for a given public URL.
func DefaultConfig(publicURL string) Config {
	return Config{
		PublicURL:       publicURL,
		ImageURL:        publicURL + "/image",
		ShareText:       "Check out your 🥜 stats!",
		CommunityURL:    "https://warpcast.com/basenuts",
		BaseAllowance:   holders.DefaultBaseAllowance,
		IdentityTimeout: 3 * time.Second,
	}
}

// Handler is the frame HTTP handler.
type Handler struct {
	limiter   *ratelimit.Limiter
	refresher Refresher
	identity  Identity
	holders   *holders.Index
	queries   stats.Queries
	hashIDs   *HashRegistry
	config    Config
	logger    zerolog.Logger
}

// New creates a frame handler. identity and holderIndex may be nil.
func New(cfg Config, limiter *ratelimit.Limiter, refresher Refresher, identity Identity, holderIndex *holders.Index, queries stats.Queries, logger zerolog.Logger) (*Handler, error) {
	if limiter == nil {
		return nil, fmt.Errorf("rate limiter is required")
	}
	if refresher == nil {
		return nil, fmt.Errorf("refresher is required")
	}
	if cfg.PublicURL == "" {
		return nil, fmt.Errorf("public url is required")
	}
	if cfg.ImageURL == "" {
		cfg.ImageURL = cfg.PublicURL + "/image"
	}
	if cfg.BaseAllowance <= 0 {
		cfg.BaseAllowance = holders.DefaultBaseAllowance
	}
	if cfg.IdentityTimeout <= 0 {
		cfg.IdentityTimeout = 3 * time.Second
	}

	return &Handler{
		limiter:   limiter,
		refresher: refresher,
		identity:  identity,
		holders:   holderIndex,
		queries:   queries,
		hashIDs:   NewHashRegistry(),
		config:    cfg,
		logger:    logger,
	}, nil
}

// ServeHTTP implements the frame endpoint.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	adm := h.limiter.Check()
	if !adm.Allowed {
		responsesTotal.WithLabelValues("rejected").Inc()
		h.writeMessage(w, "Too many requests. Please slow down and try again.")
		return
	}
	if adm.LoadShedding {
		responsesTotal.WithLabelValues("shed").Inc()
		h.writeMessage(w, "We are handling a lot of traffic right now. Please try again in a moment.")
		return
	}

	fid := r.URL.Query().Get("fid")
	username := r.URL.Query().Get("username")
	pfpURL := r.URL.Query().Get("pfpUrl")

	ceiling := h.config.BaseAllowance
	if fid != "" && h.identity != nil && (username == "" || pfpURL == "" || h.holders != nil) {
		if user := h.lookupIdentity(r.Context(), fid); user != nil {
			if username == "" {
				username = user.Username
			}
			if pfpURL == "" {
				pfpURL = user.PfpURL
			}
			if h.holders != nil {
				ceiling = h.holders.Ceiling(user.Wallets(), h.config.BaseAllowance, h.config.AllowancePerNFT)
			}
		}
	}
	if fid == "" {
		fid = "N/A"
	}
	if username == "" {
		username = "Unknown"
	}

	// Detached from the request: the trigger is dropped if a pass is
	// already in flight, and a full pass must not delay the response.
	go h.refresher.TryRefresh(context.WithoutCancel(r.Context()))

	st := stats.Lookup(h.refresher.Current(), h.queries, fid, ceiling)

	hashID := h.hashIDs.Get(fid)
	frameURL := shareFrameURL(h.config.PublicURL, hashID, fid, username, pfpURL)

	view := statsView{
		Version:    frameVersion,
		ImageURL:   statsImageURL(h.config.ImageURL, fid, username, pfpURL, st),
		PostURL:    h.config.PublicURL,
		ComposeURL: composeCastURL(h.config.ShareText, frameURL),
		JoinURL:    h.config.CommunityURL,
		Username:   username,
		FID:        fid,
		Stats:      st,
	}

	var buf bytes.Buffer
	if err := renderStats(&buf, view); err != nil {
		h.logger.Error().Err(err).Str("fid", fid).Msg("Frame render failed")
		responsesTotal.WithLabelValues("error").Inc()
		h.writeMessage(w, "Something went wrong. Please try again.")
		return
	}

	responsesTotal.WithLabelValues("ok").Inc()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

// lookupIdentity resolves fid with a bounded timeout. Any failure degrades
// to nil so the frame still renders with defaults.
func (h *Handler) lookupIdentity(ctx context.Context, fid string) *neynar.User {
	ctx, cancel := context.WithTimeout(ctx, h.config.IdentityTimeout)
	defer cancel()

	user, err := h.identity.UserByFID(ctx, fid)
	if err != nil {
		identityFallbacks.Inc()
		h.logger.Warn().Err(err).Str("fid", fid).Msg("Identity lookup failed, using defaults")
		return nil
	}
	return user
}

func (h *Handler) writeMessage(w http.ResponseWriter, message string) {
	var buf bytes.Buffer
	if err := renderMessage(&buf, messageView{
		Version:  frameVersion,
		ImageURL: h.config.ImageURL,
		PostURL:  h.config.PublicURL,
		Message:  message,
	}); err != nil {
		http.Error(w, message, http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}
