package cache

import (
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/mmcdole/marquee/internal/domain"
)

// KeyPrefix namespaces response cache entries in shared storage.
// ClearAll removes exactly the keys carrying it.
const KeyPrefix = domain.ResponseCacheKeyPrefix

// endpointEscaper keeps '?' inside an endpoint from being read as the
// start of the parameter list.
var endpointEscaper = strings.NewReplacer("%", "%25", "?", "%3F")

// KeyFor derives the cache key for an endpoint and flat parameter set.
//
// Format: {KeyPrefix}{endpoint}?{name}={value}&...
//
// Names are sorted so insertion order never matters. Each value is JSON
// encoded (so 20 and "20" differ) and both halves are query-escaped, which
// keeps '&' and '=' inside names or values from forging another pair.
// A value JSON cannot encode falls back to its fmt string form.
func KeyFor(endpoint string, params map[string]any) string {
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString(KeyPrefix)
	b.WriteString(endpointEscaper.Replace(endpoint))
	b.WriteByte('?')
	for i, name := range names {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(name))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(encodeParam(params[name])))
	}
	return b.String()
}

func encodeParam(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(data)
}
