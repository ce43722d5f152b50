package docxcod

import (
	dxml "github.com/stania/kraken-docxcod/pkg/docxcod/xml"
)

// UnwrapPlaceholders replaces each serialized placeholder with its template
// source, leaving flat template text.
func UnwrapPlaceholders(src []byte) []byte {
	return dxml.Unwrap(src)
}

// Unwrapper is the processor form of UnwrapPlaceholders.
type Unwrapper struct {
	Parts []string
}

func (u Unwrapper) Process(pkg *Package, env TemplateData) error {
	for _, part := range u.Parts {
		content, err := pkg.Part(part)
		if err != nil {
			return err
		}
		pkg.SetPart(part, UnwrapPlaceholders(content))
	}
	return nil
}
