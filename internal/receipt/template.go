// Package receipt renders payment receipts as PDF and archives them to
// Google Drive.
package receipt

import (
	"fmt"
	"html/template"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/soundrent-backoffice/internal/model"
)

// Company is the issuer block printed on every receipt.
type Company struct {
	Name    string
	Address string
	SIRET   string
}

// Data is everything a receipt shows. Client and Pack may be nil when the
// reservation no longer references them.
type Data struct {
	Company     Company
	Payment     model.Payment
	Reservation model.Reservation
	Client      *model.Client
	Pack        *model.Pack
	IssuedAt    time.Time
}

// Number is the receipt number, stable for a payment.
func (d Data) Number() string {
	year := d.Payment.DatePaiement.Year()
	if d.Payment.DatePaiement.IsZero() {
		year = d.IssuedAt.Year()
	}
	return fmt.Sprintf("REC-%d-%05d", year, d.Payment.ID)
}

// FileName is the PDF file name used for downloads and the archive.
func (d Data) FileName() string {
	ref := d.Reservation.Ref
	if ref == "" {
		ref = fmt.Sprintf("reservation-%d", d.Reservation.ID)
	}
	return fmt.Sprintf("recu-%s-%s.pdf", ref, strings.ToLower(d.Payment.Type))
}

var funcs = template.FuncMap{
	"eur": euros,
	"date": func(d *model.Date) string {
		if d == nil || d.IsZero() {
			return "-"
		}
		return d.Format("02/01/2006")
	},
}

func euros(v decimal.Decimal) string {
	return strings.Replace(v.StringFixed(2), ".", ",", 1) + " €"
}

var receiptTmpl = template.Must(template.New("receipt").Funcs(funcs).Parse(`<!DOCTYPE html>
<html lang="fr">
<head>
<meta charset="utf-8">
<title>Reçu {{.Number}}</title>
<style>
  @page { size: A4; margin: 18mm; }
  body { font-family: Helvetica, Arial, sans-serif; font-size: 11pt; color: #222; }
  header { display: flex; justify-content: space-between; border-bottom: 2px solid #222; padding-bottom: 8px; }
  h1 { font-size: 18pt; margin: 0; }
  table { width: 100%; border-collapse: collapse; margin-top: 16px; }
  td, th { padding: 6px 4px; border-bottom: 1px solid #ddd; text-align: left; }
  td.amount { text-align: right; font-weight: bold; }
  .muted { color: #777; font-size: 9pt; }
</style>
</head>
<body>
<header>
  <div>
    <h1>{{.Company.Name}}</h1>
    {{with .Company.Address}}<div>{{.}}</div>{{end}}
    {{with .Company.SIRET}}<div class="muted">SIRET {{.}}</div>{{end}}
  </div>
  <div>
    <div><strong>Reçu n° {{.Number}}</strong></div>
    <div>Émis le {{.IssuedAt.Format "02/01/2006"}}</div>
  </div>
</header>

<section>
  <h2>Client</h2>
  {{if .Client}}<div>{{.Client.FullName}}</div>{{else}}<div>{{.Reservation.FullName}}</div>{{end}}
  {{with .Reservation.Email}}<div>{{.}}</div>{{end}}
  {{with .Reservation.Telephone}}<div>{{.}}</div>{{end}}
  {{if .Client}}{{with .Client.Adresse}}<div>{{.}}</div>{{end}}{{end}}
</section>

<section>
  <h2>Réservation {{.Reservation.Ref}}</h2>
  <table>
    <tr><th>Prestation</th><td>{{if .Pack}}{{.Pack.NomPack}}{{else}}-{{end}}</td></tr>
    <tr><th>Date</th><td>{{date .Reservation.DateEvent}}</td></tr>
    <tr><th>Lieu</th><td>{{.Reservation.VilleZone}}{{with .Reservation.AdresseEvent}} - {{.}}{{end}}</td></tr>
    <tr><th>Montant total</th><td class="amount">{{eur .Reservation.MontantTotal}}</td></tr>
  </table>
</section>

<section>
  <h2>Paiement</h2>
  <table>
    <tr><th>Type</th><td>{{.Payment.Type}}</td></tr>
    <tr><th>Moyen</th><td>{{.Payment.Moyen}}</td></tr>
    <tr><th>Date</th><td>{{date .PaymentDate}}</td></tr>
    <tr><th>Montant reçu</th><td class="amount">{{eur .Payment.MontantEUR}}</td></tr>
  </table>
  {{with .Payment.Notes}}<p class="muted">{{.}}</p>{{end}}
</section>
</body>
</html>
`))

// PaymentDate is the payment day as a pointer for the date helper.
func (d Data) PaymentDate() *model.Date {
	return &d.Payment.DatePaiement
}

// Render writes the receipt HTML.
func Render(w io.Writer, d Data) error {
	if err := receiptTmpl.Execute(w, d); err != nil {
		return fmt.Errorf("render receipt: %w", err)
	}
	return nil
}
