package receipt

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/soundrent-backoffice/internal/model"
	"github.com/iliyamo/soundrent-backoffice/internal/repository"
)

type getter[T any] map[uint64]*T

func (g getter[T]) Get(_ context.Context, id uint64) (*T, error) {
	v, ok := g[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return v, nil
}

type capturePrinter struct{ html string }

func (c *capturePrinter) PrintPDF(_ context.Context, html string) ([]byte, error) {
	c.html = html
	return []byte("%PDF-1.7"), nil
}

type captureArchive struct {
	name string
	size int
}

func (c *captureArchive) Upload(_ context.Context, name string, pdf []byte) (string, error) {
	c.name, c.size = name, len(pdf)
	return "drive-1", nil
}

func ptr(v uint64) *uint64 { return &v }

func fixture() *Service {
	day, _ := model.ParseDate("2025-06-10")
	paid, _ := model.ParseDate("2025-05-20")
	return &Service{
		Payments: getter[model.Payment]{7: {
			ID: 7, ReservationID: 3, Type: model.PaymentAcompte,
			MontantEUR: decimal.RequireFromString("150"), Moyen: "CB", DatePaiement: paid,
			Notes: "Acompte <versé>",
		}},
		Reservations: getter[model.Reservation]{3: {
			ID: 3, Ref: "RES-2025-003", FullName: "Camille Durand", ClientID: ptr(1), PackID: ptr(9),
			DateEvent: &day, VilleZone: model.ZoneParis, MontantTotal: decimal.RequireFromString("545.5"),
		}},
		Clients: getter[model.Client]{1: {ID: 1, Prenom: "Camille", Nom: "Durand", Adresse: "3 rue Oberkampf"}},
		Packs:   getter[model.Pack]{},
		Printer: &capturePrinter{},
		Company: Company{Name: "SoundRent", SIRET: "123 456 789 00010"},
		Now:     func() time.Time { return time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC) },
	}
}

func TestRender(t *testing.T) {
	d, err := fixture().Data(context.Background(), 7)
	if err != nil {
		t.Fatal(err)
	}
	if d.Pack != nil {
		t.Errorf("missing pack resolved to %+v", d.Pack)
	}
	var buf bytes.Buffer
	if err := Render(&buf, d); err != nil {
		t.Fatal(err)
	}
	html := buf.String()
	for _, want := range []string{
		"Reçu n° REC-2025-00007",
		"Camille Durand",
		"3 rue Oberkampf",
		"545,50 €",
		"150,00 €",
		"10/06/2025",
		"20/05/2025",
		"SIRET 123 456 789 00010",
		"Acompte &lt;versé&gt;",
	} {
		if !strings.Contains(html, want) {
			t.Errorf("receipt missing %q", want)
		}
	}
}

func TestPDFAndArchive(t *testing.T) {
	s := fixture()
	if _, err := s.ArchivePDF(context.Background(), 7); !errors.Is(err, ErrArchiveDisabled) {
		t.Fatalf("ArchivePDF() without archive error = %v", err)
	}

	arch := &captureArchive{}
	s.Archive = arch
	id, err := s.ArchivePDF(context.Background(), 7)
	if err != nil || id != "drive-1" {
		t.Fatalf("ArchivePDF() = %q, %v", id, err)
	}
	if arch.name != "recu-RES-2025-003-acompte.pdf" || arch.size == 0 {
		t.Errorf("uploaded %q (%d bytes)", arch.name, arch.size)
	}
	if !strings.Contains(s.Printer.(*capturePrinter).html, "RES-2025-003") {
		t.Error("printer did not receive the receipt html")
	}

	if _, _, err := s.PDF(context.Background(), 99); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("PDF() of unknown payment error = %v", err)
	}
}

func TestEscapeQuery(t *testing.T) {
	if got := escapeQuery(`l'été\x`); got != `l\'été\\x` {
		t.Errorf("escapeQuery() = %q", got)
	}
}
