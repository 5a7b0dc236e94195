package frame

import (
	"fmt"
	"html/template"
	"io"
	"net/url"

	"github.com/basenuts/nut-state/pkg/stats"
)

// frameVersion is the Farcaster frame protocol version advertised in meta tags.
const frameVersion = "vNext"

// statsView is the template payload for a rendered stats frame.
type statsView struct {
	Version    string
	ImageURL   string
	PostURL    string
	ComposeURL string
	JoinURL    string
	Username   string
	FID        string
	Stats      stats.Stats
}

// messageView is the template payload for a degraded single-message frame.
type messageView struct {
	Version  string
	ImageURL string
	PostURL  string
	Message  string
}

var statsTmpl = template.Must(template.New("stats").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8"/>
<meta property="og:title" content="Nut State"/>
<meta property="og:image" content="{{.ImageURL}}"/>
<meta property="fc:frame" content="{{.Version}}"/>
<meta property="fc:frame:image" content="{{.ImageURL}}"/>
<meta property="fc:frame:post_url" content="{{.PostURL}}"/>
<meta property="fc:frame:button:1" content="My State"/>
<meta property="fc:frame:button:2" content="Share"/>
<meta property="fc:frame:button:2:action" content="link"/>
<meta property="fc:frame:button:2:target" content="{{.ComposeURL}}"/>
<meta property="fc:frame:button:3" content="Join Us"/>
<meta property="fc:frame:button:3:action" content="link"/>
<meta property="fc:frame:button:3:target" content="{{.JoinURL}}"/>
<title>Nut State</title>
</head>
<body>
<h1>{{.Username}} (FID {{.FID}})</h1>
<ul>
<li>Today: {{.Stats.Today}}</li>
<li>Total: {{.Stats.Total}}</li>
<li>Remaining allowance: {{.Stats.Remaining}}</li>
<li>Rank: {{.Stats.Rank}}</li>
</ul>
</body>
</html>
`))

var messageTmpl = template.Must(template.New("message").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8"/>
<meta property="og:title" content="Nut State"/>
<meta property="og:image" content="{{.ImageURL}}"/>
<meta property="fc:frame" content="{{.Version}}"/>
<meta property="fc:frame:image" content="{{.ImageURL}}"/>
<meta property="fc:frame:post_url" content="{{.PostURL}}"/>
<meta property="fc:frame:button:1" content="Try Again"/>
<title>Nut State</title>
</head>
<body>
<p>{{.Message}}</p>
</body>
</html>
`))

func renderStats(w io.Writer, view statsView) error {
	return statsTmpl.Execute(w, view)
}

func renderMessage(w io.Writer, view messageView) error {
	return messageTmpl.Execute(w, view)
}

// statsImageURL builds the image URL for the rendered stats card. The image
// service reads the same values back out of the query string.
func statsImageURL(base, fid, username, pfpURL string, st stats.Stats) string {
	params := url.Values{}
	params.Set("fid", fid)
	params.Set("username", username)
	if pfpURL != "" {
		params.Set("pfpUrl", pfpURL)
	}
	params.Set("today", fmt.Sprintf("%d", st.Today))
	params.Set("total", fmt.Sprintf("%d", st.Total))
	params.Set("remaining", fmt.Sprintf("%d", st.Remaining))
	params.Set("rank", fmt.Sprintf("%d", st.Rank))
	return base + "?" + params.Encode()
}

// composeCastURL builds the warpcast compose link embedding the user's
// stable share URL.
func composeCastURL(shareText, frameURL string) string {
	return "https://warpcast.com/~/compose?text=" + url.QueryEscape(shareText) +
		"&embeds[]=" + url.QueryEscape(frameURL)
}

// shareFrameURL builds the per-user share URL carrying the hash id and the
// display params, so an embedded open renders without an identity lookup.
func shareFrameURL(publicURL, hashID, fid, username, pfpURL string) string {
	params := url.Values{}
	params.Set("hashid", hashID)
	params.Set("fid", fid)
	params.Set("username", username)
	if pfpURL != "" {
		params.Set("pfpUrl", pfpURL)
	}
	return publicURL + "?" + params.Encode()
}
