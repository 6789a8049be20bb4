package handler

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
	"github.com/jellydator/ttlcache/v3"

	"github.com/nostrfeed/feedcache/config"
	"github.com/nostrfeed/feedcache/feed"
)

const (
	maxProfilePubkeys = 200
	maxAvatarBytes    = 2 << 20 // 2 MiB
	avatarCacheTTL    = 15 * time.Minute
)

// avatarImage is a fetched and sniffed profile picture.
type avatarImage struct {
	data        []byte
	contentType string
}

// ProfilesHandler serves subject metadata and proxies profile pictures so
// the UI never talks to arbitrary image hosts directly.
type ProfilesHandler struct {
	profiles *feed.Profiles
	cfg      config.Config
	client   *http.Client
	avatars  *ttlcache.Cache[string, avatarImage]
}

func NewProfilesHandler(profiles *feed.Profiles, cfg config.Config) *ProfilesHandler {
	avatars := ttlcache.New[string, avatarImage](
		ttlcache.WithTTL[string, avatarImage](avatarCacheTTL),
		ttlcache.WithDisableTouchOnHit[string, avatarImage](),
	)
	go avatars.Start()
	return &ProfilesHandler{
		profiles: profiles,
		cfg:      cfg,
		client:   &http.Client{Timeout: cfg.FetchTimeout},
		avatars:  avatars,
	}
}

// GetProfile handles GET /profiles/:pubkey.
func (h *ProfilesHandler) GetProfile(c *gin.Context) {
	pubkey := c.Param("pubkey")
	p := h.profiles.ProfileFor(c.Request.Context(), pubkey, h.cfg.FetchTimeout)
	c.JSON(http.StatusOK, p)
}

// GetProfiles handles GET /profiles?pubkeys=<pk>,<pk>,...
// Returns a record per requested pubkey; silent pubkeys come back as
// explicit empty records rather than being omitted.
func (h *ProfilesHandler) GetProfiles(c *gin.Context) {
	pubkeys := csvParam(c, "pubkeys")
	if len(pubkeys) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "pubkeys parameter is required"})
		return
	}
	if len(pubkeys) > maxProfilePubkeys {
		c.JSON(http.StatusBadRequest, gin.H{"error": "too many pubkeys"})
		return
	}

	profiles := h.profiles.ProfilesFor(c.Request.Context(), pubkeys, h.cfg.FetchTimeout)
	c.JSON(http.StatusOK, gin.H{"profiles": profiles})
}

// Invalidate handles POST /profiles/invalidate.
// Called after the current identity edits their own metadata.
func (h *ProfilesHandler) Invalidate(c *gin.Context) {
	var body struct {
		Pubkeys []string `json:"pubkeys"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || len(body.Pubkeys) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "body must contain a non-empty pubkeys array"})
		return
	}

	h.profiles.Invalidate(body.Pubkeys...)
	h.avatars.DeleteAll()
	c.Status(http.StatusNoContent)
}

// GetAvatar handles GET /profiles/:pubkey/avatar.
// Fetches the picture URL from the subject's metadata, sniffs the bytes to
// a content type and caches the result so repeated timeline renders don't
// re-download from the image host.
func (h *ProfilesHandler) GetAvatar(c *gin.Context) {
	pubkey := c.Param("pubkey")

	if item := h.avatars.Get(pubkey); item != nil {
		img := item.Value()
		c.Data(http.StatusOK, img.contentType, img.data)
		return
	}

	p := h.profiles.ProfileFor(c.Request.Context(), pubkey, h.cfg.FetchTimeout)
	if p.Picture == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "no profile picture"})
		return
	}

	img, err := h.fetchAvatar(c, p.Picture)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to fetch profile picture"})
		return
	}

	h.avatars.Set(pubkey, img, ttlcache.DefaultTTL)
	c.Data(http.StatusOK, img.contentType, img.data)
}

func (h *ProfilesHandler) fetchAvatar(c *gin.Context, url string) (avatarImage, error) {
	req, err := http.NewRequestWithContext(c.Request.Context(), http.MethodGet, url, nil)
	if err != nil {
		return avatarImage{}, err
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return avatarImage{}, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return avatarImage{}, fmt.Errorf("image host returned %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxAvatarBytes))
	if err != nil {
		return avatarImage{}, err
	}

	ct := sniffImageType(data, resp.Header.Get("Content-Type"))
	if ct == "" {
		return avatarImage{}, fmt.Errorf("response body is not an image")
	}
	return avatarImage{data: data, contentType: ct}, nil
}

// sniffImageType returns the content-type of image bytes, preferring the
// upstream header when it already names an image/* type and falling back
// to mimetype.Detect, which recognises more formats than the stdlib
// (WebP, AVIF, HEIC, etc.). Returns "" when neither is an image.
func sniffImageType(data []byte, headerCT string) string {
	mimeType := strings.SplitN(headerCT, ";", 2)[0]
	if strings.HasPrefix(mimeType, "image/") {
		return mimeType
	}
	detected := mimetype.Detect(data)
	if strings.HasPrefix(detected.String(), "image/") {
		return detected.String()
	}
	return ""
}
