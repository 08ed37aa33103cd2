package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/giftmind/giftmind-backend/internal/config"
)

// HomePayload is the aggregate for the inspirations home screen.
type HomePayload struct {
	PrivateBoard  interface{}   `json:"privateBoard"`
	FeaturedItems []interface{} `json:"featuredItems"`
	WeeklyThemes  []interface{} `json:"weeklyThemes"`
}

// InspirationsService proxies the CMS content API (Strapi-shaped) and
// flattens its response envelopes for the client.
type InspirationsService struct {
	cfg        *config.Config
	httpClient *http.Client
	cache      *CacheService
	mediaBase  string
}

func NewInspirationsService(cfg *config.Config, cache *CacheService) *InspirationsService {
	return &InspirationsService{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		cache:      cache,
		mediaBase:  strings.TrimSuffix(strings.TrimSuffix(cfg.CMSBaseURL, "/"), "/api"),
	}
}

// FlattenCMSResponse unwraps the CMS response shells ({data}, {id,attributes})
// recursively and normalizes media fields: single media objects collapse to an
// absolute URL string, image arrays to string slices, and items without a
// coverUrl get one derived from their first image.
func FlattenCMSResponse(data interface{}, mediaBase string) interface{} {
	switch v := data.(type) {
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, item := range v {
			out[i] = FlattenCMSResponse(item, mediaBase)
		}
		return out
	case map[string]interface{}:
		if inner, ok := v["data"]; ok && inner != nil {
			return FlattenCMSResponse(inner, mediaBase)
		}
		if id, hasID := v["id"]; hasID {
			if attrs, hasAttrs := v["attributes"]; hasAttrs {
				flat, _ := FlattenCMSResponse(attrs, mediaBase).(map[string]interface{})
				if flat == nil {
					flat = map[string]interface{}{}
				}
				flat["id"] = id
				return flat
			}
		}

		out := map[string]interface{}{}
		for key, val := range v {
			out[key] = FlattenCMSResponse(val, mediaBase)
		}

		// A media object collapses to its absolute URL.
		if u, ok := out["url"].(string); ok {
			return absolutizeURL(u, mediaBase)
		}

		for _, field := range []string{"images", "detailImages"} {
			if imgs, ok := out[field].([]interface{}); ok {
				out[field] = absolutizeImageList(imgs, mediaBase)
			}
		}

		switch cover := out["coverUrl"].(type) {
		case string:
			out["coverUrl"] = absolutizeURL(cover, mediaBase)
		case map[string]interface{}:
			if u, ok := cover["url"].(string); ok {
				out["coverUrl"] = absolutizeURL(u, mediaBase)
			}
		}

		// Items without a cover fall back to their first image.
		if _, ok := out["coverUrl"]; !ok || out["coverUrl"] == nil {
			for _, field := range []string{"images", "detailImages"} {
				if imgs, ok := out[field].([]interface{}); ok && len(imgs) > 0 {
					out["coverUrl"] = imgs[0]
					break
				}
			}
		}
		return out
	default:
		return data
	}
}

func absolutizeURL(u, mediaBase string) string {
	if strings.HasPrefix(u, "/") {
		return mediaBase + u
	}
	return u
}

func absolutizeImageList(imgs []interface{}, mediaBase string) []interface{} {
	out := make([]interface{}, 0, len(imgs))
	for _, img := range imgs {
		var u string
		switch v := img.(type) {
		case string:
			u = v
		case map[string]interface{}:
			u, _ = v["url"].(string)
		}
		if u == "" {
			continue
		}
		out = append(out, absolutizeURL(u, mediaBase))
	}
	return out
}

func (s *InspirationsService) fetch(ctx context.Context, path string, params url.Values) (interface{}, error) {
	endpoint := s.cfg.CMSBaseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderError, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: cms returned %d for %s", ErrProviderError, resp.StatusCode, path)
	}

	var body interface{}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: decode cms response: %v", ErrProviderError, err)
	}
	return FlattenCMSResponse(body, s.mediaBase), nil
}

func themesPopulate() url.Values {
	p := url.Values{}
	p.Set("populate[coverUrl]", "true")
	p.Set("populate[items][populate][images]", "true")
	p.Set("populate[items][populate][detailImages]", "true")
	return p
}

// HomeData returns the aggregate for the home screen. CMS failures degrade to
// an empty payload rather than an error, matching the mini-program's
// expectation that the screen always renders.
func (s *InspirationsService) HomeData(ctx context.Context) *HomePayload {
	const cacheKey = "inspirations:home"
	var cached HomePayload
	if hit, _ := s.cache.Get(cacheKey, &cached); hit {
		return &cached
	}

	empty := &HomePayload{FeaturedItems: []interface{}{}, WeeklyThemes: []interface{}{}}

	themesRaw, err := s.fetch(ctx, "/themes", themesPopulate())
	if err != nil {
		log.Printf("inspirations: home themes fetch failed: %v", err)
		return empty
	}
	itemParams := url.Values{}
	itemParams.Set("filters[isFeatured][$eq]", "true")
	itemParams.Set("populate[images]", "true")
	itemParams.Set("populate[detailImages]", "true")
	itemsRaw, err := s.fetch(ctx, "/items", itemParams)
	if err != nil {
		log.Printf("inspirations: home items fetch failed: %v", err)
		return empty
	}

	themes, _ := themesRaw.([]interface{})
	items, _ := itemsRaw.([]interface{})
	if items == nil {
		items = []interface{}{}
	}

	// RFC 3339 timestamps sort correctly as strings.
	sort.SliceStable(themes, func(i, j int) bool {
		return themeUpdatedAt(themes[i]) > themeUpdatedAt(themes[j])
	})

	var privateBoard interface{}
	for _, t := range themes {
		if m, ok := t.(map[string]interface{}); ok {
			if b, _ := m["isPrivateBoard"].(bool); b {
				privateBoard = t
				break
			}
		}
	}
	if privateBoard == nil && len(themes) > 0 {
		privateBoard = themes[0]
	}

	weekly := []interface{}{}
	for _, t := range themes {
		if !sameThemeID(t, privateBoard) {
			weekly = append(weekly, t)
		}
	}

	payload := &HomePayload{
		PrivateBoard:  privateBoard,
		FeaturedItems: items,
		WeeklyThemes:  weekly,
	}
	if err := s.cache.Set(cacheKey, payload); err != nil {
		log.Printf("inspirations: failed to cache home payload: %v", err)
	}
	return payload
}

func themeUpdatedAt(t interface{}) string {
	if m, ok := t.(map[string]interface{}); ok {
		if s, ok := m["updatedAt"].(string); ok {
			return s
		}
	}
	return ""
}

func sameThemeID(a, b interface{}) bool {
	am, aok := a.(map[string]interface{})
	bm, bok := b.(map[string]interface{})
	if !aok || !bok {
		return false
	}
	return am["id"] == bm["id"]
}

// ThemeByID fetches one theme, trying findOne first and falling back to a
// filtered list query, then a slug match. Returns nil when nothing matches.
func (s *InspirationsService) ThemeByID(ctx context.Context, id string) interface{} {
	cacheKey := CacheKey("inspirations:theme", id)
	var cached interface{}
	if hit, _ := s.cache.Get(cacheKey, &cached); hit {
		return cached
	}

	if theme, err := s.fetch(ctx, "/themes/"+url.PathEscape(id), themesPopulate()); err == nil && theme != nil {
		s.cacheBestEffort(cacheKey, theme)
		return theme
	}

	for _, filter := range []string{"filters[id][$eq]", "filters[slug][$eq]"} {
		params := themesPopulate()
		params.Set(filter, id)
		params.Set("pagination[pageSize]", "1")
		raw, err := s.fetch(ctx, "/themes", params)
		if err != nil {
			log.Printf("inspirations: theme %s lookup via %s failed: %v", id, filter, err)
			continue
		}
		if list, ok := raw.([]interface{}); ok && len(list) > 0 {
			s.cacheBestEffort(cacheKey, list[0])
			return list[0]
		}
	}
	return nil
}

// ItemByID fetches one item via a filtered list query, falling back to a slug
// match. Returns nil when nothing matches.
func (s *InspirationsService) ItemByID(ctx context.Context, id string) interface{} {
	cacheKey := CacheKey("inspirations:item", id)
	var cached interface{}
	if hit, _ := s.cache.Get(cacheKey, &cached); hit {
		return cached
	}

	for _, filter := range []string{"filters[id][$eq]", "filters[slug][$eq]"} {
		params := url.Values{}
		params.Set("populate[images]", "true")
		params.Set("populate[detailImages]", "true")
		params.Set(filter, id)
		params.Set("pagination[pageSize]", "1")
		raw, err := s.fetch(ctx, "/items", params)
		if err != nil {
			log.Printf("inspirations: item %s lookup via %s failed: %v", id, filter, err)
			continue
		}
		if list, ok := raw.([]interface{}); ok && len(list) > 0 {
			s.cacheBestEffort(cacheKey, list[0])
			return list[0]
		}
	}
	return nil
}

// Items returns the flattened item catalog for the recommender, cached.
func (s *InspirationsService) Items(ctx context.Context) ([]interface{}, error) {
	const cacheKey = "inspirations:items"
	var cached []interface{}
	if hit, _ := s.cache.Get(cacheKey, &cached); hit {
		return cached, nil
	}

	params := url.Values{}
	params.Set("populate[images]", "true")
	params.Set("populate[detailImages]", "true")
	params.Set("pagination[pageSize]", "100")
	raw, err := s.fetch(ctx, "/items", params)
	if err != nil {
		return nil, err
	}
	items, _ := raw.([]interface{})
	if items == nil {
		items = []interface{}{}
	}
	s.cacheBestEffort(cacheKey, items)
	return items, nil
}

func (s *InspirationsService) cacheBestEffort(key string, value interface{}) {
	if err := s.cache.Set(key, value); err != nil {
		log.Printf("inspirations: failed to cache %s: %v", key, err)
	}
}
