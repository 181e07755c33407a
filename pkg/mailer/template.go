package mailer

import (
	"bytes"
	"fmt"
	"html/template"
)

type templateData struct {
	Username string
	Link     string
}

const layout = `<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; background: #f4f4f7; padding: 24px;">
  <div style="max-width: 480px; margin: 0 auto; background: #ffffff; border-radius: 8px; padding: 32px;">
    <h2 style="color: #333333;">{{block "title" .}}{{end}}</h2>
    <p>Hi {{.Username}},</p>
    {{block "body" .}}{{end}}
    <p style="text-align: center; margin: 32px 0;">
      <a href="{{.Link}}" style="background: #4f46e5; color: #ffffff; padding: 12px 24px; border-radius: 6px; text-decoration: none;">{{block "action" .}}{{end}}</a>
    </p>
    <p style="color: #888888; font-size: 12px;">If the button does not work, open this link: {{.Link}}</p>
  </div>
</body>
</html>`

var (
	verificationTemplate = mustParse(`
{{define "title"}}Welcome to Chat{{end}}
{{define "body"}}<p>Please confirm your email address. This link expires in 24 hours.</p>{{end}}
{{define "action"}}Verify email{{end}}`)

	resetTemplate = mustParse(`
{{define "title"}}Password reset{{end}}
{{define "body"}}<p>We received a request to reset your password. This link expires in 1 hour. If you did not request it, ignore this email.</p>{{end}}
{{define "action"}}Reset password{{end}}`)
)

func mustParse(overrides string) *template.Template {
	return template.Must(template.Must(template.New("layout").Parse(layout)).Parse(overrides))
}

func render(tpl *template.Template, data templateData) (string, error) {
	var buf bytes.Buffer
	if err := tpl.ExecuteTemplate(&buf, "layout", data); err != nil {
		return "", fmt.Errorf("渲染邮件模板失败: %w", err)
	}
	return buf.String(), nil
}
