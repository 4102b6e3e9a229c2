package shopify

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	shopSuffix     = ".myshopify.com"
	locationPrefix = "gid://shopify/Location/"
)

var hostPattern = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]*[a-z0-9])?(\.[a-z0-9]([a-z0-9-]*[a-z0-9])?)*(:[0-9]{1,5})?$`)

// NormalizeShopDomain turns what merchants paste into the shop header
// ("https://demo.myshopify.com/", "demo") into a bare host.
func NormalizeShopDomain(raw string) (string, error) {
	shop := strings.ToLower(strings.TrimSpace(raw))
	shop = strings.TrimPrefix(shop, "https://")
	shop = strings.TrimPrefix(shop, "http://")
	shop = strings.TrimRight(shop, "/")

	if !hostPattern.MatchString(shop) {
		return "", fmt.Errorf("invalid shop domain %q", raw)
	}
	if !strings.ContainsAny(shop, ".:") {
		shop += shopSuffix
	}
	return shop, nil
}

// IsShopifyHost reports whether a normalized host is a shop on
// myshopify.com reached over the default port.
func IsShopifyHost(host string) bool {
	return strings.HasSuffix(host, shopSuffix) && !strings.Contains(host, ":")
}

// LocationGID returns the global id of an inventory location. Plain numeric
// ids are prefixed; ids that already are gids pass through.
func LocationGID(id string) string {
	id = strings.TrimSpace(id)
	if id == "" || strings.HasPrefix(id, "gid://") {
		return id
	}
	return locationPrefix + id
}
