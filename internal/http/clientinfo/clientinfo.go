// Package clientinfo derives visit attributes from an incoming request.
package clientinfo

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/fraglink-io/fraglink/internal/app/model"
)

const (
	fallbackLang   = "en"
	fallbackTZ     = "UTC"
	fallbackScreen = "?x?"
)

// FromCtx collects what the visit ledger records about a request. The shell
// page forwards ref, lang, tz and screen as query parameters; absent values
// fall back to the request headers and then to fixed defaults. The ref
// parameter wins over the Referer header because the fragment hop makes the
// header point at the shell page itself.
func FromCtx(c *fiber.Ctx) model.ClientInfo {
	return model.ClientInfo{
		Referrer: queryOr(c, "ref", c.Get(fiber.HeaderReferer)),
		OS:       OSFromUserAgent(c.Get(fiber.HeaderUserAgent)),
		Lang:     language(c),
		TZ:       queryOr(c, "tz", fallbackTZ),
		Screen:   queryOr(c, "screen", fallbackScreen),
	}
}

// OSFromUserAgent maps a user-agent string to an OS family by substring,
// testing Windows, macOS, Android, iOS and Linux in that order. iPhone
// agents mention "Mac OS X" and so land on macOS; the order is part of the
// recorded format and stays put.
func OSFromUserAgent(ua string) string {
	lower := strings.ToLower(ua)
	switch {
	case strings.Contains(lower, "windows"):
		return "Windows"
	case strings.Contains(lower, "mac"):
		return "macOS"
	case strings.Contains(lower, "android"):
		return "Android"
	case strings.Contains(lower, "iphone"), strings.Contains(lower, "ipad"), strings.Contains(lower, "ios"):
		return "iOS"
	case strings.Contains(lower, "linux"):
		return "Linux"
	default:
		return "Other"
	}
}

func language(c *fiber.Ctx) string {
	if lang := c.Query("lang"); lang != "" {
		return lang
	}
	if accept := c.Get(fiber.HeaderAcceptLanguage); accept != "" {
		// First tag only, quality weights stripped.
		tag := accept
		if i := strings.IndexByte(tag, ','); i >= 0 {
			tag = tag[:i]
		}
		if i := strings.IndexByte(tag, ';'); i >= 0 {
			tag = tag[:i]
		}
		if tag = strings.TrimSpace(tag); tag != "" {
			return tag
		}
	}
	return fallbackLang
}

func queryOr(c *fiber.Ctx, key, fallback string) string {
	if v := c.Query(key); v != "" {
		return v
	}
	return fallback
}
