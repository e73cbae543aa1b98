// Package receipt renders a recorded sale as a fixed-width ticket for
// thermal receipt printers.
package receipt

import (
	"bytes"
	"io"
	"strconv"
	"strings"
	"text/template"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"clinicpos/m/domain"
)

const Width = 42

type Header struct {
	ClinicName string
	Subtitle   string
	Currency   string
}

const ticket = `{{center .Header.ClinicName}}
{{with .Header.Subtitle}}{{center .}}
{{end}}{{center "Reçu de Vente"}}
{{center .Date}}
{{rule}}
{{with .Patient}}Patient: {{.Name}}
{{with .Phone}}Téléphone: {{.}}
{{end}}{{with .Age}}Âge: {{.}}
{{end}}{{rule}}
{{end}}{{range .Lines}}{{row .Label (money .Amount)}}
{{end}}{{rule}}
{{row "Total:" (money .Total)}}
{{row "Paiement:" .Payment}}

{{center "Merci de votre visite !"}}
{{center .Number}}
`

type Renderer struct {
	header Header
	tmpl   *template.Template
}

func New(h Header) *Renderer {
	if h.Currency == "" {
		h.Currency = "XOF"
	}
	r := &Renderer{header: h}
	r.tmpl = template.Must(template.New("receipt").Funcs(template.FuncMap{
		"center": center,
		"row":    row,
		"rule":   func() string { return strings.Repeat("-", Width) },
		"money": func(d decimal.Decimal) string {
			return d.StringFixed(2) + " " + h.Currency
		},
	}).Parse(ticket))
	return r
}

type patientView struct {
	Name  string
	Phone string
	Age   string
}

type lineView struct {
	Label  string
	Amount decimal.Decimal
}

type view struct {
	Header  Header
	Date    string
	Patient *patientView
	Lines   []lineView
	Total   decimal.Decimal
	Payment string
	Number  string
}

// Render writes the ticket for sale. patient supplies the birth date used for
// the age line and may be nil; sale.Patient is used for the name otherwise.
func (r *Renderer) Render(w io.Writer, sale domain.Sale, patient *domain.Patient) error {
	v := view{
		Header:  r.header,
		Date:    sale.CreatedAt.Format("02/01/2006 15:04"),
		Total:   sale.Total,
		Payment: paymentLabel(sale.PaymentMethod),
		Number:  "Reçu #" + strconv.FormatInt(sale.ID, 10),
	}
	switch {
	case patient != nil:
		pv := &patientView{Name: patient.FullName(), Phone: patient.Phone}
		if age, ok := patient.Age(sale.CreatedAt); ok {
			pv.Age = strconv.Itoa(age) + " ans"
		}
		v.Patient = pv
	case sale.Patient != nil:
		v.Patient = &patientView{Name: sale.Patient.FullName(), Phone: sale.Patient.Phone}
	}
	for _, item := range sale.Items {
		v.Lines = append(v.Lines, lineView{
			Label:  item.Name + " x" + strconv.FormatInt(item.Quantity, 10),
			Amount: item.Subtotal(),
		})
	}
	return r.tmpl.Execute(w, v)
}

func (r *Renderer) String(sale domain.Sale, patient *domain.Patient) (string, error) {
	var buf bytes.Buffer
	if err := r.Render(&buf, sale, patient); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func paymentLabel(method string) string {
	switch method {
	case domain.PaymentCash:
		return "Espèces"
	case domain.PaymentCard:
		return "Carte"
	case domain.PaymentMobileMoney:
		return "Mobile Money"
	case domain.PaymentInsurance:
		return "Assurance"
	}
	return method
}

func center(s string) string {
	n := utf8.RuneCountInString(s)
	if n >= Width {
		return truncate(s, Width)
	}
	return strings.Repeat(" ", (Width-n)/2) + s
}

// row pads left and right to the full width, shortening left if needed.
func row(left, right string) string {
	space := Width - utf8.RuneCountInString(right) - 1
	if space < 1 {
		return truncate(right, Width)
	}
	left = truncate(left, space)
	gap := Width - utf8.RuneCountInString(left) - utf8.RuneCountInString(right)
	return left + strings.Repeat(" ", gap) + right
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
