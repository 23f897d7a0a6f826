// internal/mail/templates.go
package mail

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	texttemplate "text/template"
)

// TemplateData holds the values available to mail templates.
type TemplateData struct {
	ClientName string
	Vehicle    string
	Plate      string
	OrderID    string
	Total      float64
	ShopName   string
}

type emailTemplate struct {
	subject  string
	bodyHTML string
	bodyText string
}

// Built-in templates, in the shop's customer-facing language.
var templates = map[string]emailTemplate{
	TypeOrderReady: {
		subject: "Su vehículo {{.Plate}} está listo",
		bodyHTML: `<p>Hola {{.ClientName}},</p>
<p>Su vehículo <strong>{{.Vehicle}}</strong> (placas <strong>{{.Plate}}</strong>) está listo para recoger.</p>
<p>Total de la orden: <strong>${{printf "%.2f" .Total}}</strong></p>
<p>{{.ShopName}}</p>`,
		bodyText: `Hola {{.ClientName}},

Su vehículo {{.Vehicle}} (placas {{.Plate}}) está listo para recoger.
Total de la orden: ${{printf "%.2f" .Total}}

{{.ShopName}}`,
	},
	TypeOrderDelivered: {
		subject: "Gracias por su preferencia",
		bodyHTML: `<p>Hola {{.ClientName}},</p>
<p>Su vehículo <strong>{{.Vehicle}}</strong> (placas <strong>{{.Plate}}</strong>) fue entregado.</p>
<p>Total pagado: <strong>${{printf "%.2f" .Total}}</strong></p>
<p>¡Gracias por su preferencia!</p>
<p>{{.ShopName}}</p>`,
		bodyText: `Hola {{.ClientName}},

Su vehículo {{.Vehicle}} (placas {{.Plate}}) fue entregado.
Total pagado: ${{printf "%.2f" .Total}}

¡Gracias por su preferencia!

{{.ShopName}}`,
	},
	TypeWelcome: {
		subject: "Bienvenido a {{.ShopName}}",
		bodyHTML: `<p>Hola {{.ClientName}},</p>
<p>Su cuenta fue creada. Desde el portal puede seguir el estado de sus órdenes de servicio en tiempo real.</p>
<p>{{.ShopName}}</p>`,
		bodyText: `Hola {{.ClientName}},

Su cuenta fue creada. Desde el portal puede seguir el estado de sus órdenes de servicio en tiempo real.

{{.ShopName}}`,
	},
}

// Render produces the subject, HTML body and text body for a template type.
func Render(templateType string, data TemplateData) (subject, html, text string, err error) {
	tpl, ok := templates[templateType]
	if !ok {
		return "", "", "", fmt.Errorf("unknown template type: %q", templateType)
	}

	subject, err = renderText("subject", tpl.subject, data)
	if err != nil {
		return "", "", "", err
	}
	html, err = renderHTML("html", tpl.bodyHTML, data)
	if err != nil {
		return "", "", "", err
	}
	text, err = renderText("text", tpl.bodyText, data)
	if err != nil {
		return "", "", "", err
	}
	return subject, html, text, nil
}

func renderText(name, tpl string, data TemplateData) (string, error) {
	t, err := texttemplate.New(name).Parse(tpl)
	if err != nil {
		return "", fmt.Errorf("failed to parse %s template: %w", name, err)
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render %s template: %w", name, err)
	}
	return buf.String(), nil
}

func renderHTML(name, tpl string, data TemplateData) (string, error) {
	t, err := htmltemplate.New(name).Parse(tpl)
	if err != nil {
		return "", fmt.Errorf("failed to parse %s template: %w", name, err)
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render %s template: %w", name, err)
	}
	return buf.String(), nil
}
