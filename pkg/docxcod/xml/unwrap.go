package xml

import (
	"bytes"
	"regexp"
)

var (
	placeholderRegex = regexp.MustCompile(`<` + PlaceholderTag + `\s*/>|<` + PlaceholderTag + `>((?:<!\[CDATA\[[\s\S]*?\]\]>|&#xD;)*)</` + PlaceholderTag + `>`)
	sectionRegex     = regexp.MustCompile(`<!\[CDATA\[([\s\S]*?)\]\]>|&#xD;`)
)

// Unwrap replaces every serialized placeholder in src with its template source,
// turning the part into flat template text.
func Unwrap(src []byte) []byte {
	return placeholderRegex.ReplaceAllFunc(src, func(m []byte) []byte {
		var payload bytes.Buffer
		for _, section := range sectionRegex.FindAllSubmatch(m, -1) {
			if section[1] == nil {
				payload.WriteByte('\r')
				continue
			}
			payload.Write(section[1])
		}
		return []byte(Placeholder{Payload: payload.String()}.Source())
	})
}

// ContainsPlaceholder reports whether src still holds a serialized placeholder.
func ContainsPlaceholder(src []byte) bool {
	return placeholderRegex.Match(src)
}
