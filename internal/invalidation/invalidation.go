// Package invalidation translates domain mutations into cache operations so
// callers do not need to know the key taxonomy.
//
// Lists, browse views and rendered pages are cleared broadly: their keys depend
// on filters that are not tracked, so any of them may embed the changed item.
package invalidation

import (
	"context"

	"github.com/magickit/go-magickit-cache/internal/metrics"
	"github.com/magickit/go-magickit-cache/model"
	"github.com/rs/zerolog"
)

// Store is the part of the Cache Service the coordinator writes through.
type Store interface {
	Delete(ctx context.Context, key model.Key) bool
	ClearByPattern(ctx context.Context, pattern model.Pattern) (removed int64)
}

// Kind label values.
const (
	KindContent       = "content"
	KindContentType   = "content_type"
	KindAllContent    = "all_content"
	KindMedia         = "media"
	KindSystemMetrics = "system_metrics"
	KindSystemHealth  = "system_health"
	KindSystemAlerts  = "system_alerts"
	KindUser          = "user"
	KindAPI           = "api"
)

// contentNamespaces are every prefix derived from content data.
var contentNamespaces = []string{
	model.NsContent,
	model.NsContentSEO,
	model.NsStructuredData,
	model.NsContentType,
	model.NsContentList,
	model.NsPageRender,
}

type Coordinator struct {
	cache  Store
	logger zerolog.Logger
}

func New(cache Store, logger zerolog.Logger) *Coordinator {
	return &Coordinator{
		cache:  cache,
		logger: logger.With().Str("component", "invalidation").Logger(),
	}
}

// InvalidateContent drops the entries of one content item. typeID may be empty.
func (c *Coordinator) InvalidateContent(ctx context.Context, slug, typeID string) {
	c.cache.Delete(ctx, model.ContentKey(slug))
	c.cache.Delete(ctx, model.ContentSEOKey(slug))
	c.cache.Delete(ctx, model.StructuredDataKey(slug))

	lists := c.cache.ClearByPattern(ctx, model.PrefixPattern(model.NsContentList))
	pages := c.cache.ClearByPattern(ctx, model.PrefixPattern(model.NsPageRender))

	if typeID != "" {
		c.cache.Delete(ctx, model.ContentTypeKey(typeID))
	}
	c.done(KindContent).
		Str("slug", slug).
		Str("content_type", typeID).
		Int64("lists", lists).
		Int64("pages", pages).
		Msg("content invalidated")
}

// InvalidateContentType drops a type definition with its listings and every rendered page.
func (c *Coordinator) InvalidateContentType(ctx context.Context, typeID string) {
	c.cache.Delete(ctx, model.ContentTypeKey(typeID))
	lists := c.cache.ClearByPattern(ctx, model.PrefixPattern(model.NsContentList, typeID))
	pages := c.cache.ClearByPattern(ctx, model.PrefixPattern(model.NsPageRender))

	c.done(KindContentType).
		Str("content_type", typeID).
		Int64("lists", lists).
		Int64("pages", pages).
		Msg("content type invalidated")
}

// InvalidateAllContent clears every content-derived namespace. Meant for bulk imports and migrations.
func (c *Coordinator) InvalidateAllContent(ctx context.Context) {
	var removed int64
	for _, ns := range contentNamespaces {
		removed += c.cache.ClearByPattern(ctx, model.PrefixPattern(ns))
	}
	c.done(KindAllContent).Int64("removed", removed).Msg("all content invalidated")
}

// InvalidateMedia clears media listings and browse views. mediaID and folderID may be empty.
func (c *Coordinator) InvalidateMedia(ctx context.Context, mediaID, folderID string) {
	removed := c.cache.ClearByPattern(ctx, model.PrefixPattern(model.NsMediaList))
	removed += c.cache.ClearByPattern(ctx, model.PrefixPattern(model.NsMediaBrowser))

	if mediaID != "" {
		c.cache.Delete(ctx, model.MediaKey(mediaID))
	}
	if folderID != "" {
		removed += c.cache.ClearByPattern(ctx, model.PrefixPattern(model.NsMediaFolder, folderID))
	}
	c.done(KindMedia).
		Str("media", mediaID).
		Str("folder", folderID).
		Int64("removed", removed).
		Msg("media invalidated")
}

func (c *Coordinator) InvalidateSystemMetrics(ctx context.Context) {
	removed := c.cache.ClearByPattern(ctx, model.PrefixPattern(model.NsSystemMetrics))
	c.done(KindSystemMetrics).Int64("removed", removed).Msg("system metrics invalidated")
}

func (c *Coordinator) InvalidateSystemHealth(ctx context.Context) {
	c.cache.Delete(ctx, model.SystemHealthKey())
	c.done(KindSystemHealth).Msg("system health invalidated")
}

// InvalidateSystemAlerts drops one alert type, or all of them when alertType is empty.
func (c *Coordinator) InvalidateSystemAlerts(ctx context.Context, alertType string) {
	if alertType != "" {
		c.cache.Delete(ctx, model.SystemAlertsKey(alertType))
	} else {
		c.cache.ClearByPattern(ctx, model.PrefixPattern(model.NsSystemAlerts))
	}
	c.done(KindSystemAlerts).Str("alert_type", alertType).Msg("system alerts invalidated")
}

// InvalidateUser drops a user's permissions and, when sessionID is set, that session.
func (c *Coordinator) InvalidateUser(ctx context.Context, userID, sessionID string) {
	c.cache.Delete(ctx, model.UserPermissionsKey(userID))
	if sessionID != "" {
		c.cache.Delete(ctx, model.UserSessionKey(sessionID))
	}
	c.done(KindUser).Str("user", userID).Msg("user invalidated")
}

// InvalidateAPIResponses clears every cached response of endpoint regardless of params.
func (c *Coordinator) InvalidateAPIResponses(ctx context.Context, endpoint string) {
	removed := c.cache.ClearByPattern(ctx, model.PrefixPattern(model.NsAPI, endpoint))
	c.done(KindAPI).Str("endpoint", endpoint).Int64("removed", removed).Msg("api responses invalidated")
}

func (c *Coordinator) done(kind string) *zerolog.Event {
	metrics.CacheInvalidations.WithLabelValues(kind).Inc()
	return c.logger.Debug().Str("kind", kind)
}
