package template

import "go.uber.org/zap"

// Render walks a template document and renders every string leaf against
// ctx. The document is either a mapping or a bare string; a bare string that
// holds a JSON object is treated as that object. A bare string that does not
// render to an object yields an empty mapping.
//
// Expression errors are returned as *RenderError.
func (r *Renderer) Render(document any, ctx *Context) (map[string]any, error) {
	switch doc := document.(type) {
	case map[string]any:
		return r.renderMapping(doc, ctx)
	case string:
		if parsed, ok := parseJSON(doc); ok {
			if m, isMap := parsed.(map[string]any); isMap {
				return r.renderMapping(m, ctx)
			}
		}
		v, err := r.RenderLeaf(doc, ctx)
		if err != nil {
			return nil, err
		}
		if m, isMap := v.JSON.(map[string]any); v.Kind == KindJSON && isMap {
			return m, nil
		}
		r.logger.Debug("template document did not render to an object", zap.String("kind", v.Kind.String()))
		return map[string]any{}, nil
	default:
		return map[string]any{}, nil
	}
}

func (r *Renderer) renderMapping(doc map[string]any, ctx *Context) (map[string]any, error) {
	result := make(map[string]any, len(doc))
	for key, value := range doc {
		switch v := value.(type) {
		case string:
			rendered, err := r.RenderLeaf(v, ctx)
			if err != nil {
				return nil, err
			}
			if out, present := rendered.Value(); present {
				result[key] = out
			}
		case map[string]any:
			nested, err := r.renderMapping(v, ctx)
			if err != nil {
				return nil, err
			}
			result[key] = nested
		default:
			result[key] = value
		}
	}
	return result, nil
}
