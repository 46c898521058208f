package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/soundrent-backoffice/internal/events"
	"github.com/iliyamo/soundrent-backoffice/internal/model"
	"github.com/iliyamo/soundrent-backoffice/internal/pricing"
	"github.com/iliyamo/soundrent-backoffice/internal/repository"
)

// EmptyDraft reports whether the form carries nothing worth autosaving.
func EmptyDraft(f ReservationForm) bool {
	return f.ClientID == 0 &&
		f.PackID == 0 &&
		(f.DateEvent == nil || f.DateEvent.IsZero()) &&
		f.AdresseEvent == "" &&
		f.Notes == "" &&
		!f.PrixTotalTTC.IsPositive() &&
		(f.VilleZone == "" || f.VilleZone == model.ZoneParis)
}

// draftFrom builds the stored snapshot of a partially filled form. Missing
// fields get the defaults of a new form.
func draftFrom(f ReservationForm, r *model.Reservation) {
	if f.ClientID != 0 {
		id := f.ClientID
		r.ClientID = &id
	} else {
		r.ClientID = nil
	}
	if f.PackID != 0 {
		id := f.PackID
		r.PackID = &id
	} else {
		r.PackID = nil
	}
	r.DateEvent, r.DateFinEvent = nil, nil
	if f.DateEvent != nil && !f.DateEvent.IsZero() {
		r.DateEvent = f.DateEvent
	}
	if f.DateFinEvent != nil && !f.DateFinEvent.IsZero() {
		r.DateFinEvent = f.DateFinEvent
	}
	r.HeureEvent = model.Clock(f.HeureEvent, DefaultHeureEvent)
	r.HeureFinEvent = model.Clock(f.HeureFinEvent, DefaultHeureFinEvent)
	r.VilleZone = f.VilleZone
	if !r.VilleZone.Valid() {
		r.VilleZone = model.ZoneParis
	}
	r.AdresseEvent = f.AdresseEvent
	r.Statut = model.StatutBrouillon
	r.IsDraft = true
	r.PrixTotalTTC = nonNegative(f.PrixTotalTTC)
	r.RemisePourcentage = f.RemisePourcentage
	r.TechnicienNecessaire = f.TechnicienNecessaire
	r.LivraisonAller = f.LivraisonAller
	r.LivraisonRetour = f.LivraisonRetour
	r.CautionStatut = f.CautionStatut
	r.CautionEUR = nonNegative(f.CautionEUR)
	if r.CautionStatut == "" {
		r.CautionStatut = model.CautionAPercevoir
		if r.CautionEUR.IsZero() {
			r.CautionEUR = DefaultCaution
		}
	}
	r.CautionRetenueEUR = nonNegative(f.CautionRetenueEUR)
	r.AcompteDu = nonNegative(f.AcompteDu)
	r.AcompteRegle = f.AcompteRegle
	r.SoldeRegle = f.SoldeRegle
	r.Notes = f.Notes
}

// UpsertDraft stores the form as a draft. With draftID zero a new draft is
// inserted; otherwise that draft is updated. It returns the draft id and
// skipped=true when the form was empty and nothing was written.
func (s *ReservationService) UpsertDraft(ctx context.Context, draftID uint64, f ReservationForm) (id uint64, skipped bool, err error) {
	f.normalizeText()
	if EmptyDraft(f) {
		return draftID, true, nil
	}
	r := &model.Reservation{}
	existing := false
	if draftID != 0 {
		cur, err := s.reservations.Get(ctx, draftID)
		switch {
		case errors.Is(err, repository.ErrNotFound):
		case err != nil:
			return draftID, false, persistence("load draft", err)
		case !cur.IsDraft:
			return draftID, false, invalid("draft_id", "ce brouillon a déjà été finalisé")
		default:
			r, existing = cur, true
		}
	}

	draftFrom(f, r)
	if f.ClientID != 0 {
		if c, err := s.clients.Get(ctx, f.ClientID); err == nil {
			r.FullName, r.Email, r.Telephone = c.FullName(), c.Email, c.Telephone
		}
	} else {
		r.FullName, r.Email, r.Telephone = "", "", ""
	}
	pricing.Apply(r)
	now := s.now().UTC()
	r.DraftUpdatedAt = &now

	if existing {
		err = s.reservations.Update(ctx, r)
	} else {
		err = s.reservations.Insert(ctx, r)
	}
	if err != nil {
		return draftID, false, persistence("save draft", err)
	}
	s.log.Debug("draft saved", zap.Uint64("draft_id", r.ID), zap.Bool("created", !existing))
	return r.ID, false, nil
}

func (f *ReservationForm) normalizeText() {
	f.roundAmounts()
	f.AdresseEvent = trim(f.AdresseEvent)
	f.Notes = trim(f.Notes)
}

// LatestDraft returns the most recently edited draft, or nil when there is
// none.
func (s *ReservationService) LatestDraft(ctx context.Context) (*model.Reservation, error) {
	drafts, err := s.reservations.ListDrafts(ctx, 1)
	if err != nil || len(drafts) == 0 {
		return nil, err
	}
	return &drafts[0], nil
}

// ListDrafts returns up to limit drafts, most recent first.
func (s *ReservationService) ListDrafts(ctx context.Context, limit int) ([]model.Reservation, error) {
	if limit <= 0 {
		limit = 10
	}
	return s.reservations.ListDrafts(ctx, limit)
}

// DiscardDraft deletes a draft. Final reservations are refused.
func (s *ReservationService) DiscardDraft(ctx context.Context, id uint64) error {
	if err := s.reservations.DeleteDraft(ctx, id); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return invalid("id", "seuls les brouillons peuvent être supprimés")
		}
		return err
	}
	s.events.Publish(ctx, events.Event{Name: events.ReservationUpdated, ReservationID: id, Action: "draft-discarded"})
	return nil
}

// PurgeDrafts deletes drafts untouched for longer than ttl.
func (s *ReservationService) PurgeDrafts(ctx context.Context, ttl time.Duration) (int64, error) {
	if ttl <= 0 {
		return 0, nil
	}
	n, err := s.reservations.PurgeDrafts(ctx, s.now().Add(-ttl))
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.log.Info("expired drafts purged", zap.Int64("count", n), zap.Duration("ttl", ttl))
	}
	return n, nil
}

// SaveSession finalizes the form edited in autosave session key. Pending
// autosave state is written first so the save converts that draft in
// place, and the session is dropped once the save succeeds. A session
// draft other than the one named by the form is discarded.
func (s *ReservationService) SaveSession(ctx context.Context, a *Autosaver, key string, form ReservationForm) (*SaveResult, error) {
	if a == nil || form.ID != 0 {
		return s.Save(ctx, form)
	}
	sessionDraft, err := a.Flush(key)
	if err != nil {
		s.log.Warn("autosave flush before save failed", zap.String("session", key), zap.Error(err))
	}
	var orphan uint64
	switch {
	case form.DraftID == 0:
		form.DraftID = sessionDraft
	case sessionDraft != 0 && sessionDraft != form.DraftID:
		orphan = sessionDraft
	}

	res, err := s.Save(ctx, form)
	if err != nil {
		return nil, err
	}
	a.Forget(key)
	if orphan != 0 {
		if err := s.DiscardDraft(ctx, orphan); err != nil && !errors.Is(err, repository.ErrNotFound) {
			s.log.Warn("discard session draft", zap.Uint64("draft_id", orphan), zap.Error(err))
		}
	}
	return res, nil
}
