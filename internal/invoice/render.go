// Package invoice turns structured booking data into an opaque
// document.  Callers treat the output as bytes; the HTML rendering
// here is a stand-in for whatever document engine production wires in.
package invoice

import (
	"bytes"
	"html/template"

	"github.com/veridia/plot-reservation/internal/model"
)

// Property describes the plot as printed on the invoice.
type Property struct {
	PlotNo     string
	StreetName string
	Location   string
	AreaSqm    int64
}

// Amounts carries the money lines.  Deposit and Remaining are only
// printed for reservations.
type Amounts struct {
	Total     int64
	Deposit   *int64
	Remaining *int64
}

// Data is the full input contract of the renderer.
type Data struct {
	TransactionID uint64
	Type          model.TransactionType
	Property      Property
	Customer      model.Customer
	Amounts       Amounts
	BankAccounts  []string
}

var tmpl = template.Must(template.New("invoice").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Invoice #{{.TransactionID}}</title></head>
<body>
<h1>Invoice #{{.TransactionID}}</h1>
<p>Type: {{.Type}}</p>
<h2>Property</h2>
<p>Plot {{.Property.PlotNo}}, {{.Property.StreetName}}, {{.Property.Location}} ({{.Property.AreaSqm}} sqm)</p>
<h2>Customer</h2>
<p>{{.Customer.Name}} &lt;{{.Customer.Email}}&gt; {{.Customer.Phone}}</p>
<h2>Amounts</h2>
<table>
<tr><td>Total</td><td>{{.Amounts.Total}}</td></tr>
{{if .Amounts.Deposit}}<tr><td>Deposit</td><td>{{.Amounts.Deposit}}</td></tr>{{end}}
{{if .Amounts.Remaining}}<tr><td>Remaining</td><td>{{.Amounts.Remaining}}</td></tr>{{end}}
</table>
<h2>Payment instructions</h2>
<ul>
{{range .BankAccounts}}<li>{{.}}</li>{{end}}
</ul>
</body>
</html>
`))

// Render produces the invoice document for the given data.
func Render(d Data) ([]byte, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, d); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
