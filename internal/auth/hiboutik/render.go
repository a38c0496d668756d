package hiboutik

import (
	"fmt"
	"html/template"
	"io"
)

// Renderer presents a FlowResult, typically by writing an HTML page.
type Renderer interface {
	Render(result *FlowResult, c *Client) error
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(result *FlowResult, c *Client) error

// Render calls f.
func (f RendererFunc) Render(result *FlowResult, c *Client) error {
	return f(result, c)
}

// PageData is what install and result templates are executed with.
type PageData struct {
	Page             Page
	URL              string
	Error            string
	ErrorDescription string
	Result           *TokenResult
	Account          string
	Scope            string
}

func newPageData(result *FlowResult, c *Client) PageData {
	data := PageData{
		Page:             result.Page,
		URL:              result.URL,
		Error:            result.Error,
		ErrorDescription: result.ErrorDescription,
		Result:           result.Result,
	}
	if c != nil {
		data.Account = c.cfg.Account
		data.Scope = c.cfg.Scope
	}
	return data
}

// TemplateRenderer executes an html/template into W.
type TemplateRenderer struct {
	Template *template.Template
	W        io.Writer
}

// NewTemplateRenderer binds tmpl to w.
func NewTemplateRenderer(tmpl *template.Template, w io.Writer) *TemplateRenderer {
	return &TemplateRenderer{Template: tmpl, W: w}
}

// Render implements Renderer.
func (t *TemplateRenderer) Render(result *FlowResult, c *Client) error {
	if t == nil || t.Template == nil || t.W == nil {
		return fmt.Errorf("hiboutik render: template renderer is not configured")
	}
	if err := t.Template.Execute(t.W, newPageData(result, c)); err != nil {
		return fmt.Errorf("hiboutik render: execute %s: %w", t.Template.Name(), err)
	}
	return nil
}

// LoadTemplate parses the template file at path. An empty path selects the
// built-in page for the given kind.
func LoadTemplate(page Page, path string) (*template.Template, error) {
	if path == "" {
		return DefaultTemplate(page)
	}
	tmpl, err := template.ParseFiles(path)
	if err != nil {
		return nil, fmt.Errorf("hiboutik render: load %s template: %w", page, err)
	}
	return tmpl, nil
}

// DefaultTemplate returns the built-in page for kind.
func DefaultTemplate(page Page) (*template.Template, error) {
	var src string
	switch page {
	case PageInstall:
		src = installPageHTML
	case PageResult:
		src = resultPageHTML
	default:
		return nil, fmt.Errorf("hiboutik render: unknown page %q", page)
	}
	return template.New(string(page)).Parse(src)
}

const pageHead = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>{{if .Account}}{{.Account}} - {{end}}Hiboutik application</title>
    <style>
        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif;
            display: flex;
            justify-content: center;
            align-items: center;
            min-height: 100vh;
            margin: 0;
            background: #f3f4f6;
        }
        .container {
            background: white;
            padding: 2rem;
            border-radius: 12px;
            box-shadow: 0 10px 25px rgba(0,0,0,0.1);
            max-width: 480px;
            width: 100%;
            text-align: center;
        }
        .error { color: #b91c1c; }
        .token { font-family: monospace; word-break: break-all; }
        .button {
            display: inline-block;
            padding: 0.75rem 1.5rem;
            background: #2563eb;
            color: white;
            border-radius: 6px;
            text-decoration: none;
        }
    </style>
</head>
<body>
    <div class="container">
`

const pageFoot = `    </div>
</body>
</html>
`

const installPageHTML = pageHead + `{{if .Error}}
        <p class="error">Error: {{if .ErrorDescription}}{{.ErrorDescription}}{{else}}{{.Error}}{{end}}</p>
{{else}}
        <h1>Install the application</h1>
        <p>Requested access: {{.Scope}}</p>
        <a class="button" href="{{.URL}}">Install</a>
{{end}}` + pageFoot

const resultPageHTML = pageHead + `{{if .Result.Error}}
        <p class="error">{{if .Result.ErrorDescription}}{{.Result.ErrorDescription}}{{else}}{{.Result.Error}}{{end}}</p>
{{else}}
        <h1>Application installed</h1>
        <p class="token">token: {{.Result.AccessToken}}</p>
{{end}}` + pageFoot
