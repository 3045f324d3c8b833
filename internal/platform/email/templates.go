package email

import (
	"fmt"
	"strings"
	"sync"
)

// Template is a reusable email template with {{key}} placeholders.
type Template struct {
	ID      string
	Subject string
	HTML    string
}

// TemplateEngine stores templates and renders them with a data map.
type TemplateEngine struct {
	mu        sync.RWMutex
	templates map[string]*Template
}

// TemplateReportReady is the template used for result-report delivery.
const TemplateReportReady = "report-ready"

// NewTemplateEngine creates an engine with the built-in lab templates
// pre-registered.
func NewTemplateEngine() *TemplateEngine {
	e := &TemplateEngine{templates: make(map[string]*Template)}
	e.registerBuiltIn()
	return e
}

func (e *TemplateEngine) registerBuiltIn() {
	builtIn := []Template{
		{
			ID:      TemplateReportReady,
			Subject: "Resultados de laboratorio — Caso {{case_code}}",
			HTML: `<div style="font-family:sans-serif;max-width:600px">
<h2>Estimado(a) {{patient_name}},</h2>
<p>Los resultados de su estudio (caso <strong>{{case_code}}</strong>) ya se encuentran disponibles.</p>
<p><a href="{{pdf_url}}">Descargar reporte en PDF</a></p>
<p>Si el enlace no funciona, copie y pegue esta dirección en su navegador:<br>{{pdf_url}}</p>
<p>— {{lab_name}}</p>
</div>`,
		},
		{
			ID:      "case-registered",
			Subject: "Caso {{case_code}} registrado",
			HTML: `<div style="font-family:sans-serif;max-width:600px">
<p>Estimado(a) {{patient_name}}, su caso <strong>{{case_code}}</strong> fue registrado el {{date}}.</p>
<p>Le notificaremos cuando los resultados estén listos.</p>
<p>— {{lab_name}}</p>
</div>`,
		},
	}
	for i := range builtIn {
		t := builtIn[i]
		e.templates[t.ID] = &t
	}
}

// Register adds or replaces a template.
func (e *TemplateEngine) Register(t Template) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.templates[t.ID] = &t
}

// Render substitutes {{key}} placeholders from data. Placeholders absent
// from data are left as-is.
func (e *TemplateEngine) Render(templateID string, data map[string]string) (subject, html string, err error) {
	e.mu.RLock()
	t, ok := e.templates[templateID]
	e.mu.RUnlock()
	if !ok {
		return "", "", fmt.Errorf("template %q not found", templateID)
	}

	subject = t.Subject
	html = t.HTML
	for k, v := range data {
		placeholder := "{{" + k + "}}"
		subject = strings.ReplaceAll(subject, placeholder, v)
		html = strings.ReplaceAll(html, placeholder, v)
	}
	return subject, html, nil
}
