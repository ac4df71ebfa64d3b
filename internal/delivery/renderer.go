package delivery

import (
	"bytes"
	"embed"
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/bracketops/incidentd/internal/domain"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

//go:embed templates/*.tmpl
var templatesFS embed.FS

// Renderer renders notifications from templates, one per delivery method.
type Renderer struct {
	templates map[domain.NotificationMethod]*template.Template
}

// NewRenderer creates a new renderer and loads all templates.
func NewRenderer() (*Renderer, error) {
	funcMap := template.FuncMap{
		"title":         titleCase,
		"upper":         strings.ToUpper,
		"lower":         strings.ToLower,
		"formatTime":    formatTime,
		"severityEmoji": severityEmoji,
		"statusEmoji":   statusEmoji,
	}

	r := &Renderer{
		templates: make(map[domain.NotificationMethod]*template.Template),
	}

	methods := []domain.NotificationMethod{
		domain.NotificationMethodEmail,
		domain.NotificationMethodWebhook,
		domain.NotificationMethodSMS,
	}

	for _, method := range methods {
		filename := fmt.Sprintf("templates/%s.tmpl", method)

		content, err := templatesFS.ReadFile(filename)
		if err != nil {
			return nil, fmt.Errorf("read template %s: %w", filename, err)
		}

		tmpl, err := template.New(string(method)).Funcs(funcMap).Parse(string(content))
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", method, err)
		}

		r.templates[method] = tmpl
	}

	return r, nil
}

// Render renders a notification payload for the specified delivery method.
// Returns subject and body.
func (r *Renderer) Render(method domain.NotificationMethod, payload Payload) (subject, body string, err error) {
	tmpl, ok := r.templates[method]
	if !ok {
		return "", "", fmt.Errorf("template not found: %s", method)
	}

	subject = fmt.Sprintf("[%s] %s", strings.ToUpper(string(payload.Severity)), payload.Title)

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, payload); err != nil {
		return "", "", fmt.Errorf("execute template %s: %w", method, err)
	}

	body = strings.TrimSpace(buf.String())
	return subject, body, nil
}

// Template functions

var titleCaser = cases.Title(language.English)

func titleCase(s string) string {
	return titleCaser.String(strings.ReplaceAll(s, "_", " "))
}

func formatTime(t time.Time) string {
	return t.UTC().Format("Jan 2, 2006 15:04 UTC")
}

func severityEmoji(severity domain.Severity) string {
	switch severity {
	case domain.SeverityLow:
		return "🟢"
	case domain.SeverityMedium:
		return "🟡"
	case domain.SeverityHigh:
		return "🟠"
	case domain.SeverityCritical:
		return "🔴"
	default:
		return "⚪"
	}
}

func statusEmoji(status domain.Status) string {
	switch status {
	case domain.StatusActive:
		return "🚨"
	case domain.StatusInvestigating:
		return "🔍"
	case domain.StatusContained:
		return "🛡️"
	case domain.StatusMitigated:
		return "🔧"
	case domain.StatusResolved:
		return "✅"
	default:
		return "📋"
	}
}
