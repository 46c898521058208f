package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/iliyamo/soundrent-backoffice/internal/events"
	"github.com/iliyamo/soundrent-backoffice/internal/model"
)

func TestQuickActionAcomptePaye(t *testing.T) {
	fx := newFixture()
	ctx := context.Background()
	saved, err := fx.svc.Save(ctx, validForm())
	if err != nil {
		t.Fatal(err)
	}
	id := saved.Reservation.ID

	res, err := fx.svc.QuickAction(ctx, id, ActionAcomptePaye)
	if err != nil {
		t.Fatal(err)
	}
	if res.Payment == nil || !res.Payment.MontantEUR.Equal(dec(50)) {
		t.Fatalf("Payment = %+v, want 50 EUR deposit", res.Payment)
	}
	if res.Payment.Notes != "Acompte marqué comme payé depuis la liste des réservations - RES-2025-001" {
		t.Errorf("Notes = %q", res.Payment.Notes)
	}
	if !res.Reservation.AcompteRegle || res.Reservation.Statut != model.StatutAcomptePaye {
		t.Errorf("reservation = regle:%v statut:%q", res.Reservation.AcompteRegle, res.Reservation.Statut)
	}

	again, err := fx.svc.QuickAction(ctx, id, ActionAcomptePaye)
	if err != nil {
		t.Fatal(err)
	}
	if again.Payment != nil || len(fx.payments.ofType(id, model.PaymentAcompte)) != 1 {
		t.Error("second quick action created another deposit")
	}
	names := fx.events.names()
	if names[len(names)-1] != events.PaymentUpdated {
		t.Errorf("last event = %s, want %s", names[len(names)-1], events.PaymentUpdated)
	}
}

func TestQuickActionSoldeAndCaution(t *testing.T) {
	fx := newFixture()
	ctx := context.Background()
	saved, err := fx.svc.Save(ctx, validForm())
	if err != nil {
		t.Fatal(err)
	}
	id := saved.Reservation.ID

	res, err := fx.svc.QuickAction(ctx, id, ActionSoldePaye)
	if err != nil {
		t.Fatal(err)
	}
	if res.Payment == nil || !res.Payment.MontantEUR.Equal(dec(130)) || res.Reservation.Statut != model.StatutSoldee {
		t.Errorf("solde action = %+v / %q", res.Payment, res.Reservation.Statut)
	}
	res, err = fx.svc.QuickAction(ctx, id, ActionCautionRecue)
	if err != nil {
		t.Fatal(err)
	}
	if res.Payment != nil || res.Reservation.CautionStatut != model.CautionRecue {
		t.Errorf("caution action = %+v / %q", res.Payment, res.Reservation.CautionStatut)
	}
}

func TestQuickActionRejectsUnknownActionAndDrafts(t *testing.T) {
	fx := newFixture()
	ctx := context.Background()
	if _, err := fx.svc.QuickAction(ctx, 1, "rembourser"); !IsValidation(err) {
		t.Errorf("unknown action error = %v, want validation error", err)
	}
	id, _, _ := fx.svc.UpsertDraft(ctx, 0, ReservationForm{ClientID: 1})
	if _, err := fx.svc.QuickAction(ctx, id, ActionAcomptePaye); !IsValidation(err) {
		t.Errorf("draft quick action error = %v, want validation error", err)
	}
}

func TestUpdateDeliveryStatus(t *testing.T) {
	fx := newFixture()
	ctx := context.Background()
	saved, err := fx.svc.Save(ctx, validForm())
	if err != nil {
		t.Fatal(err)
	}
	d := fx.deliveries.ofType(saved.Reservation.ID, model.DeliveryLivraison)[0]

	got, err := fx.svc.UpdateDeliveryStatus(ctx, d.ID, model.DeliveryEnCours)
	if err != nil {
		t.Fatal(err)
	}
	if got.DateEffective == nil || got.DateEffective.String() != "2025-06-01" || got.HeureEffective != "10:30" {
		t.Errorf("effective = %v %q, want 2025-06-01 10:30", got.DateEffective, got.HeureEffective)
	}
	got, err = fx.svc.UpdateDeliveryStatus(ctx, d.ID, model.DeliveryPrevue)
	if err != nil {
		t.Fatal(err)
	}
	if got.DateEffective != nil || got.HeureEffective != "" {
		t.Errorf("Prévue kept effective stamp %v %q", got.DateEffective, got.HeureEffective)
	}
	if _, err := fx.svc.UpdateDeliveryStatus(ctx, d.ID, "Perdue"); !IsValidation(err) {
		t.Errorf("unknown statut error = %v", err)
	}
}

func TestSyncAllDeliveries(t *testing.T) {
	fx := newFixture()
	ctx := context.Background()
	f := validForm()
	f.LivraisonRetour = false
	if _, err := fx.svc.Save(ctx, f); err != nil {
		t.Fatal(err)
	}
	cancelled := validForm()
	cancelled.Statut = model.StatutAnnulee
	c, err := fx.svc.Save(ctx, cancelled)
	if err != nil {
		t.Fatal(err)
	}
	for _, d := range fx.deliveries.ofType(c.Reservation.ID, model.DeliveryLivraison) {
		_ = fx.deliveries.Delete(ctx, d.ID)
	}
	// Drop every delivery of the first reservation; sync must restore it.
	for _, d := range fx.deliveries.ofType(1, model.DeliveryLivraison) {
		_ = fx.deliveries.Delete(ctx, d.ID)
	}

	sum, err := fx.svc.SyncAllDeliveries(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if sum.Reservations != 1 || sum.Created != 1 {
		t.Errorf("summary = %+v, want 1 reservation and 1 created", sum)
	}
	if n := len(fx.deliveries.ofType(c.Reservation.ID, model.DeliveryLivraison)); n != 0 {
		t.Errorf("cancelled reservation got %d deliveries", n)
	}
}

func TestSyncAllDeliveriesPagesPastOnePage(t *testing.T) {
	fx := newFixture()
	ctx := context.Background()
	total := model.MaxPage + 20
	for i := 0; i < total; i++ {
		r := &model.Reservation{
			Ref:            fmt.Sprintf("RES-2025-%03d", i+1),
			Statut:         model.StatutConfirmee,
			DateEvent:      mustDate("2025-06-10"),
			HeureEvent:     "19:00",
			VilleZone:      model.ZoneParis,
			LivraisonAller: true,
		}
		if err := fx.reservations.Insert(ctx, r); err != nil {
			t.Fatal(err)
		}
	}

	sum, err := fx.svc.SyncAllDeliveries(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if sum.Reservations != total || sum.Created != total {
		t.Errorf("summary = %d reservations, %d created; want %d each", sum.Reservations, sum.Created, total)
	}
	if fx.reservations.listCalls != 2 {
		t.Errorf("List called %d times, want 2 pages", fx.reservations.listCalls)
	}
	if n := len(fx.deliveries.ofType(uint64(total), model.DeliveryLivraison)); n != 1 {
		t.Errorf("last reservation has %d deliveries, want 1", n)
	}
}
