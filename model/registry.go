package model

import (
	"fmt"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/zeebo/xxh3"
)

// Namespaces shared by producers, consumers and the invalidation coordinator.
const (
	NsContent        = "content"
	NsContentSEO     = "content-seo"
	NsStructuredData = "structured-data"
	NsContentType    = "content-type"
	NsContentList    = "content-list"
	NsPageRender     = "page-render"
	NsMedia          = "media"
	NsMediaFolder    = "media-folder"
	NsMediaList      = "media-list"
	NsMediaBrowser   = "media-browser"
	NsSystemMetrics  = "system-metrics"
	NsSystemHealth   = "system-health"
	NsSystemAlerts   = "system-alerts"
	NsDBQuery        = "db-query"
	NsAPI            = "api"
	NsUserSession    = "user-session"
	NsUserPerms      = "user-permissions"
	NsCDNPurge       = "cdn-purge"
)

// noFilter is the fingerprint of an absent filter set.
const noFilter = "all"

// unencodable prefixes fingerprints of values without a JSON form.
const unencodable = "g"

func ContentKey(slug string) Key           { return NewKey(NsContent, slug) }
func ContentSEOKey(slug string) Key        { return NewKey(NsContentSEO, slug) }
func StructuredDataKey(slug string) Key    { return NewKey(NsStructuredData, slug) }
func ContentTypeKey(typeID string) Key     { return NewKey(NsContentType, typeID) }
func PageRenderKey(slug string) Key        { return NewKey(NsPageRender, slug) }
func MediaKey(mediaID string) Key          { return NewKey(NsMedia, mediaID) }
func SystemHealthKey() Key                 { return NewKey(NsSystemHealth, "snapshot") }
func SystemAlertsKey(alertType string) Key { return NewKey(NsSystemAlerts, alertType) }
func UserSessionKey(sessionID string) Key  { return NewKey(NsUserSession, sessionID) }
func UserPermissionsKey(userID string) Key { return NewKey(NsUserPerms, userID) }
func CDNPurgeKey(purgeID string) Key       { return NewKey(NsCDNPurge, purgeID) }

// ContentListKey identifies one filtered page of a content type's listing.
// filters may be any JSON-encodable value; maps are fingerprinted independently of key order.
func ContentListKey(typeID string, filters any) Key {
	return NewKey(NsContentList, typeID, Fingerprint(filters))
}

// MediaFolderKey identifies one view of a folder's contents.
func MediaFolderKey(folderID string, view string) Key {
	return NewKey(NsMediaFolder, folderID, view)
}

func MediaListKey(filters any) Key {
	return NewKey(NsMediaList, Fingerprint(filters))
}

func MediaBrowserKey(folderID string, filters any) Key {
	return NewKey(NsMediaBrowser, folderID, Fingerprint(filters))
}

// SystemMetricsKey buckets metrics snapshots by unix millisecond timestamp.
func SystemMetricsKey(at time.Time) Key {
	return NewKey(NsSystemMetrics, strconv.FormatInt(at.UnixMilli(), 10))
}

// DBQueryKey fingerprints a collection query and its arguments.
func DBQueryKey(collection string, query any) Key {
	return NewKey(NsDBQuery, collection, Fingerprint(query))
}

// APIResponseKey identifies a cached API response by endpoint and request params.
func APIResponseKey(endpoint string, params any) Key {
	return NewKey(NsAPI, endpoint, Fingerprint(params))
}

// Fingerprint is a stable short digest of v's JSON form.
func Fingerprint(v any) string {
	if v == nil {
		return noFilter
	}
	data, err := json.Marshal(v)
	if err != nil {
		// NaN, channels and funcs have no JSON form; fall back to the Go syntax
		// form, marked so it cannot collide with a JSON digest
		return unencodable + strconv.FormatUint(xxh3.HashString(fmt.Sprintf("%#v", v)), 16)
	}
	if string(data) == "null" || string(data) == "{}" {
		return noFilter
	}
	return strconv.FormatUint(xxh3.Hash(data), 16)
}
