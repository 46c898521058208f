package receipt

import (
	"bytes"
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/soundrent-backoffice/internal/model"
	"github.com/iliyamo/soundrent-backoffice/internal/repository"
)

// ErrArchiveDisabled is returned by Archive when no Drive folder is set up.
var ErrArchiveDisabled = errors.New("receipt: drive archive not configured")

// Printer turns an HTML document into a PDF.
type Printer interface {
	PrintPDF(ctx context.Context, html string) ([]byte, error)
}

// Archiver stores a rendered receipt and returns its id.
type Archiver interface {
	Upload(ctx context.Context, name string, pdf []byte) (string, error)
}

type (
	PaymentGetter     interface{ Get(ctx context.Context, id uint64) (*model.Payment, error) }
	ReservationGetter interface{ Get(ctx context.Context, id uint64) (*model.Reservation, error) }
	ClientGetter      interface{ Get(ctx context.Context, id uint64) (*model.Client, error) }
	PackGetter        interface{ Get(ctx context.Context, id uint64) (*model.Pack, error) }
)

// Service assembles receipts from stored records.
type Service struct {
	Payments     PaymentGetter
	Reservations ReservationGetter
	Clients      ClientGetter
	Packs        PackGetter
	Printer      Printer
	Archive      Archiver // nil disables archiving
	Company      Company
	Log          *zap.Logger
	Now          func() time.Time
}

// Data loads everything the receipt of payment id shows.
func (s *Service) Data(ctx context.Context, id uint64) (Data, error) {
	p, err := s.Payments.Get(ctx, id)
	if err != nil {
		return Data{}, err
	}
	r, err := s.Reservations.Get(ctx, p.ReservationID)
	if err != nil {
		return Data{}, err
	}
	d := Data{Company: s.Company, Payment: *p, Reservation: *r, IssuedAt: s.now()}
	if r.ClientID != nil {
		if d.Client, err = s.Clients.Get(ctx, *r.ClientID); err != nil && !errors.Is(err, repository.ErrNotFound) {
			return Data{}, err
		}
	}
	if r.PackID != nil {
		if d.Pack, err = s.Packs.Get(ctx, *r.PackID); err != nil && !errors.Is(err, repository.ErrNotFound) {
			return Data{}, err
		}
	}
	return d, nil
}

// PDF renders the receipt of payment id.
func (s *Service) PDF(ctx context.Context, id uint64) ([]byte, string, error) {
	d, err := s.Data(ctx, id)
	if err != nil {
		return nil, "", err
	}
	var html bytes.Buffer
	if err := Render(&html, d); err != nil {
		return nil, "", err
	}
	pdf, err := s.Printer.PrintPDF(ctx, html.String())
	if err != nil {
		return nil, "", err
	}
	return pdf, d.FileName(), nil
}

// ArchivePDF renders the receipt of payment id and uploads it.
func (s *Service) ArchivePDF(ctx context.Context, id uint64) (string, error) {
	if s.Archive == nil {
		return "", ErrArchiveDisabled
	}
	pdf, name, err := s.PDF(ctx, id)
	if err != nil {
		return "", err
	}
	fileID, err := s.Archive.Upload(ctx, name, pdf)
	if err != nil {
		return "", err
	}
	if s.Log != nil {
		s.Log.Info("receipt archived", zap.Uint64("payment_id", id), zap.String("file", name), zap.String("drive_id", fileID))
	}
	return fileID, nil
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}
