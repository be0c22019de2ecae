package report

import (
	"bytes"
	"context"
	"html/template"

	"github.com/odyssey-erp/explotacion/internal/budget"
	"github.com/odyssey-erp/explotacion/internal/shared"
	"github.com/odyssey-erp/explotacion/web"
)

const statementTemplate = "statement.html"

// HTMLRenderer turns HTML into PDF bytes.
type HTMLRenderer interface {
	RenderHTML(ctx context.Context, html string, page PageOptions) ([]byte, error)
}

// StatementRenderer prints the operating account of a service order.
type StatementRenderer struct {
	client    HTMLRenderer
	templates *template.Template
}

// NewStatementRenderer parses the embedded statement template.
func NewStatementRenderer(client HTMLRenderer) (*StatementRenderer, error) {
	funcs := template.FuncMap{
		"amount": shared.FormatAmount,
		"pct":    shared.FormatPct,
	}
	tpl, err := template.New(statementTemplate).Funcs(funcs).ParseFS(web.Templates, "templates/reports/"+statementTemplate)
	if err != nil {
		return nil, err
	}
	return &StatementRenderer{client: client, templates: tpl}, nil
}

// HTML renders the statement document.
func (r *StatementRenderer) HTML(st budget.Statement) (string, error) {
	buf := &bytes.Buffer{}
	if err := r.templates.ExecuteTemplate(buf, statementTemplate, st); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// PDF renders the statement and converts it through the PDF backend.
func (r *StatementRenderer) PDF(ctx context.Context, st budget.Statement) ([]byte, error) {
	if r.client == nil {
		return nil, ErrDisabled
	}
	html, err := r.HTML(st)
	if err != nil {
		return nil, err
	}
	return r.client.RenderHTML(ctx, html, A4Portrait)
}
