package analytics

import (
	"strings"

	"golang.org/x/text/language"

	"github.com/radiusdt/roas-board/internal/models"
)

// Unknown is the fallback for any dimension that cannot be parsed.
const Unknown = "Unknown"

const (
	PlatformAndroid = "Android"
	PlatformIOS     = "iOS"
)

// platformSuffixes are stripped from app labels. Exact trailing match only.
var platformSuffixes = []struct {
	suffix   string
	platform string
}{
	{" Android", PlatformAndroid},
	{" iOS", PlatformIOS},
}

// NormalizedRow holds the dimensions extracted from a raw row.
type NormalizedRow struct {
	Game      string
	Platform  string
	AdNetwork string
	Country   string
	Publisher string

	// Unknown lists the fields that fell back to Unknown.
	Unknown []string
}

// Normalize extracts (game, platform, ad network, country, publisher) from a row.
// It never fails; unparseable parts become Unknown.
func Normalize(row models.RawRow) NormalizedRow {
	game, appPlatform := StripPlatformSuffix(strings.TrimSpace(row.App))
	platform, network, country := parseNetworkLabel(row.Network)

	if platform == "" {
		platform = appPlatform
	}

	n := NormalizedRow{
		Game:      game,
		Platform:  platform,
		AdNetwork: network,
		Country:   country,
		Publisher: strings.TrimSpace(row.Publisher),
	}

	n.Game = n.fallback("game", n.Game)
	n.Platform = n.fallback("platform", n.Platform)
	n.AdNetwork = n.fallback("ad_network", n.AdNetwork)
	n.Country = n.fallback("country", n.Country)
	n.Publisher = n.fallback("publisher", n.Publisher)
	return n
}

func (n *NormalizedRow) fallback(field, v string) string {
	if v != "" {
		return v
	}
	n.Unknown = append(n.Unknown, field)
	return Unknown
}

// StripPlatformSuffix removes a trailing " Android" or " iOS" from an app label
// and reports the platform it implied. Labels without an exact suffix are returned
// unchanged with an empty platform.
func StripPlatformSuffix(app string) (string, string) {
	for _, s := range platformSuffixes {
		if strings.HasSuffix(app, s.suffix) {
			return strings.TrimSpace(strings.TrimSuffix(app, s.suffix)), s.platform
		}
	}
	return app, ""
}

// parseNetworkLabel splits labels like "Android_AppLovin_US".
// Empty results mean the part could not be determined.
func parseNetworkLabel(label string) (platform, network, country string) {
	tokens := splitLabel(label)
	if len(tokens) == 0 {
		return "", "", ""
	}

	rest := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if platform == "" {
			if p := platformToken(t); p != "" {
				platform = p
				continue
			}
		}
		rest = append(rest, t)
	}

	// Country only comes from the last token, and only when something else remains
	// to be the network.
	if len(rest) > 1 && isCountryCode(rest[len(rest)-1]) {
		country = strings.ToUpper(rest[len(rest)-1])
		rest = rest[:len(rest)-1]
	}

	network = strings.Join(rest, " ")
	return platform, network, country
}

func splitLabel(label string) []string {
	fields := strings.FieldsFunc(label, func(r rune) bool {
		return r == '_' || r == '-' || r == '|' || r == '/'
	})
	tokens := fields[:0]
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			tokens = append(tokens, f)
		}
	}
	return tokens
}

func platformToken(t string) string {
	switch strings.ToLower(t) {
	case "android":
		return PlatformAndroid
	case "ios":
		return PlatformIOS
	}
	return ""
}

// regionAliases maps codes common in ad labels onto their ISO 3166-1 form.
var regionAliases = map[string]string{"UK": "GB"}

// isCountryCode accepts ISO 3166-1 alpha-2 or alpha-3 country codes written
// in a single case; "Ads" in "Unity_Ads" is a network name, and "UAC" in
// "Google_UAC" is not a country.
func isCountryCode(t string) bool {
	if len(t) < 2 || len(t) > 3 {
		return false
	}
	upper, lower := 0, 0
	for _, r := range t {
		switch {
		case r >= 'A' && r <= 'Z':
			upper++
		case r >= 'a' && r <= 'z':
			lower++
		default:
			return false
		}
	}
	if upper > 0 && lower > 0 {
		return false
	}
	code := strings.ToUpper(t)
	if alias, ok := regionAliases[code]; ok {
		code = alias
	}
	region, err := language.ParseRegion(code)
	return err == nil && region.IsCountry()
}
