package notify

import (
	"text/template"
	"time"
)

var subjects = map[Kind]string{
	KindAccepted:   "Order accepted",
	KindPreparing:  "Order being prepared",
	KindReady:      "Order ready",
	KindCompleted:  "Order completed",
	KindCancelled:  "Order cancelled",
	KindETAUpdated: "Updated time for order",
}

var bodies = map[Kind]string{
	KindAccepted: `Hi {{.Name}}, {{.Restaurant}} accepted your order #{{.Reference}}. ` +
		`{{if .PreOrderAt}}It will be ready for {{.PreOrderAt}}.{{else}}Estimated time: {{.Minutes}} min.{{end}}`,
	KindPreparing: `Hi {{.Name}}, your order #{{.Reference}} is being prepared.`,
	KindReady:     `Hi {{.Name}}, your order #{{.Reference}} is ready{{if eq .OrderType "delivery"}} and on its way{{else}} for pickup{{end}}.`,
	KindCompleted: `Hi {{.Name}}, order #{{.Reference}} is complete. Amount {{.Total}} {{.Currency}} via {{.Payment}}. Thank you!`,
	KindCancelled: `Hi {{.Name}}, your order #{{.Reference}} was cancelled{{if .Reason}}: {{.Reason}}{{end}}.`,
	KindETAUpdated: `Hi {{.Name}}, {{if .PreOrderAt}}your order #{{.Reference}} is now scheduled for {{.PreOrderAt}}.` +
		`{{else}}your order #{{.Reference}} will take about {{.Minutes}} min.{{end}}`,
}

type messageData struct {
	Name       string
	Reference  string
	Restaurant string
	OrderType  string
	Minutes    int
	PreOrderAt string
	Total      string
	Currency   string
	Payment    string
	Reason     string
}

func templateData(n Notice) messageData {
	name := n.Contact.Name
	if name == "" {
		name = "there"
	}
	restaurant := n.Order.Restaurant.Name
	if restaurant == "" {
		restaurant = "The restaurant"
	}
	d := messageData{
		Name:       name,
		Reference:  n.Order.Reference,
		Restaurant: restaurant,
		OrderType:  string(n.Order.OrderType),
		Minutes:    n.Order.EstimatedMinutes(),
		Total:      n.Order.Total.StringFixed(2),
		Currency:   n.Order.Currency,
		Payment:    string(n.Order.PaymentMethod),
		Reason:     n.Reason,
	}
	if n.Order.PreOrderTime != nil {
		d.PreOrderAt = n.Order.PreOrderTime.Format(time.RFC1123)
	}
	return d
}

func mustParseTemplates() map[Kind]*template.Template {
	out := make(map[Kind]*template.Template, len(bodies))
	for kind, body := range bodies {
		out[kind] = template.Must(template.New(string(kind)).Parse(body))
	}
	return out
}
