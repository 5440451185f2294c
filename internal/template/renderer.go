package template

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"text/template"
	"text/template/parse"

	"go.uber.org/zap"
)

// orEmptyFunc ends every printing action so that a reference resolving to
// nothing prints as empty text.
const orEmptyFunc = "offlineOrEmpty"

// RenderError wraps a template that failed to parse or execute
type RenderError struct {
	Template string
	Err      error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render template %q: %v", e.Template, e.Err)
}

func (e *RenderError) Unwrap() error {
	return e.Err
}

// Renderer renders template documents against an evaluation context.
// Parsed templates are cached by content and shared between requests.
type Renderer struct {
	logger    *zap.Logger
	funcs     template.FuncMap
	mu        sync.RWMutex
	templates map[string]*template.Template
}

// NewRenderer creates a new template renderer
func NewRenderer(logger *zap.Logger) *Renderer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Renderer{
		logger:    logger.Named("template"),
		funcs:     funcMap(),
		templates: make(map[string]*template.Template),
	}
}

// generateTemplateName generates a unique name for a template based on its content
func generateTemplateName(tmpl string) string {
	hash := sha256.Sum256([]byte(tmpl))
	return fmt.Sprintf("tmpl_%s", hex.EncodeToString(hash[:8]))
}

func (r *Renderer) lookup(tmpl string) (*template.Template, error) {
	name := generateTemplateName(tmpl)

	r.mu.RLock()
	t, ok := r.templates[name]
	r.mu.RUnlock()
	if ok {
		return t, nil
	}

	t, err := template.New(name).Funcs(r.funcs).Option("missingkey=default").Parse(tmpl)
	if err != nil {
		return nil, err
	}
	for _, tt := range t.Templates() {
		if tt.Tree != nil {
			emptyMissing(tt.Tree, tt.Tree.Root)
		}
	}

	r.mu.Lock()
	r.templates[name] = t
	r.mu.Unlock()
	return t, nil
}

// RenderString evaluates tmpl against ctx and returns the raw text
func (r *Renderer) RenderString(tmpl string, ctx *Context) (string, error) {
	t, err := r.lookup(tmpl)
	if err != nil {
		return "", &RenderError{Template: tmpl, Err: err}
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, ctx.templateData()); err != nil {
		return "", &RenderError{Template: tmpl, Err: err}
	}

	out := buf.String()
	r.logger.Debug("template rendered", zap.String("template", tmpl), zap.String("result", out))
	return out, nil
}

// RenderLeaf renders one expression string and re-types the result
func (r *Renderer) RenderLeaf(tmpl string, ctx *Context) (RenderedValue, error) {
	out, err := r.RenderString(tmpl, ctx)
	if err != nil {
		return RenderedValue{}, err
	}
	return ParseRendered(out), nil
}

// emptyMissing pipes every printing action of the tree through orEmptyFunc.
// Actions that declare or assign variables print nothing and are left alone.
func emptyMissing(tree *parse.Tree, node parse.Node) {
	switch n := node.(type) {
	case *parse.ListNode:
		if n == nil {
			return
		}
		for _, child := range n.Nodes {
			emptyMissing(tree, child)
		}
	case *parse.ActionNode:
		if n.Pipe == nil || len(n.Pipe.Decl) > 0 {
			return
		}
		ident := parse.NewIdentifier(orEmptyFunc).SetTree(tree).SetPos(n.Pos)
		n.Pipe.Cmds = append(n.Pipe.Cmds, &parse.CommandNode{
			NodeType: parse.NodeCommand,
			Pos:      n.Pos,
			Args:     []parse.Node{ident},
		})
	case *parse.IfNode:
		emptyMissing(tree, n.List)
		emptyMissing(tree, n.ElseList)
	case *parse.RangeNode:
		emptyMissing(tree, n.List)
		emptyMissing(tree, n.ElseList)
	case *parse.WithNode:
		emptyMissing(tree, n.List)
		emptyMissing(tree, n.ElseList)
	}
}

func orEmpty(v any) any {
	if v == nil {
		return ""
	}
	return v
}
