package docxcod

// TemplateRunner renders parts as flat template source against the
// environment handed to Apply.
type TemplateRunner struct {
	Parts []string
	// Templates holds already parsed parts; other parts are parsed on the fly.
	Templates map[string]*Template
	Options   []RenderOption
}

func (r TemplateRunner) Process(pkg *Package, env TemplateData) error {
	for _, part := range r.Parts {
		tmpl, ok := r.Templates[part]
		if !ok {
			content, err := pkg.Part(part)
			if err != nil {
				return err
			}
			if tmpl, err = ParseTemplate(string(content)); err != nil {
				return WithContext(err, "parse template", map[string]interface{}{"part": part})
			}
		}

		out, err := tmpl.Render(env, r.Options...)
		if err != nil {
			return WithContext(err, "render template", map[string]interface{}{"part": part})
		}
		pkg.SetPart(part, []byte(out))
	}
	return nil
}
