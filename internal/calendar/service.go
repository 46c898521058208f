package calendar

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/iliyamo/soundrent-backoffice/internal/model"
	"github.com/iliyamo/soundrent-backoffice/internal/repository"
)

// Store keeps sync settings and provider tokens.
type Store interface {
	Settings(ctx context.Context) (model.CalendarSettings, error)
	SaveSettings(ctx context.Context, s model.CalendarSettings) error
	Token(ctx context.Context, provider string) (*model.CalendarToken, error)
	SaveToken(ctx context.Context, t model.CalendarToken) error
	DeleteToken(ctx context.Context, provider string) error
}

// ReservationLister feeds the bulk sync and the ICS export.
type ReservationLister interface {
	List(ctx context.Context, f model.ReservationFilter) ([]model.Reservation, error)
}

// PackGetter resolves pack names.
type PackGetter interface {
	Get(ctx context.Context, id uint64) (*model.Pack, error)
}

// Options configures a Service.
type Options struct {
	Store        Store
	OAuth        *OAuth
	Factory      Factory
	Reservations ReservationLister
	Packs        PackGetter
	CalendarName string
	Location     *time.Location
	Timeout      time.Duration
	Log          *zap.Logger
}

// Service pushes reservations to the connected calendars and manages the
// provider connections.
type Service struct {
	store        Store
	oauth        *OAuth
	factory      Factory
	reservations ReservationLister
	packs        PackGetter
	name         string
	loc          *time.Location
	timeout      time.Duration
	log          *zap.Logger

	// calendar ids per provider, resolved once per process
	mu     sync.Mutex
	calIDs map[string]string
}

// NewService returns a calendar service.
func NewService(o Options) *Service {
	s := &Service{
		store:        o.Store,
		oauth:        o.OAuth,
		factory:      o.Factory,
		reservations: o.Reservations,
		packs:        o.Packs,
		name:         o.CalendarName,
		loc:          o.Location,
		timeout:      o.Timeout,
		log:          o.Log,
		calIDs:       make(map[string]string),
	}
	if s.factory == nil {
		s.factory = DefaultFactory
	}
	if s.name == "" {
		s.name = DefaultCalendarName
	}
	if s.loc == nil {
		s.loc = time.UTC
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	return s
}

// Status is the connection state shown on the settings screen.
type Status struct {
	Settings   model.CalendarSettings `json:"settings"`
	Connected  map[string]bool        `json:"connected"`
	Configured []string               `json:"configured"`
}

// Status reports settings and which providers hold a token.
func (s *Service) Status(ctx context.Context) (Status, error) {
	st := Status{Connected: map[string]bool{}}
	var err error
	if st.Settings, err = s.store.Settings(ctx); err != nil {
		return st, err
	}
	for _, p := range []string{model.ProviderGoogle, model.ProviderOutlook} {
		_, err := s.store.Token(ctx, p)
		switch {
		case err == nil:
			st.Connected[p] = true
		case errors.Is(err, repository.ErrNotFound):
			st.Connected[p] = false
		default:
			return st, err
		}
	}
	if s.oauth != nil {
		st.Configured = s.oauth.Configured()
	}
	return st, nil
}

// UpdateSettings stores the auto-sync switch and provider toggles.
func (s *Service) UpdateSettings(ctx context.Context, in model.CalendarSettings) (model.CalendarSettings, error) {
	if err := s.store.SaveSettings(ctx, in); err != nil {
		return in, err
	}
	return s.store.Settings(ctx)
}

// Connect completes an OAuth callback: the code is exchanged, the token
// stored and the provider enabled.
func (s *Service) Connect(ctx context.Context, provider, code string) error {
	if s.oauth == nil {
		return ErrNotConfigured
	}
	tok, err := s.oauth.Exchange(ctx, provider, code)
	if err != nil {
		return err
	}
	if err := s.store.SaveToken(ctx, toModel(provider, tok)); err != nil {
		return fmt.Errorf("save token: %w", err)
	}
	settings, err := s.store.Settings(ctx)
	if err != nil {
		return err
	}
	setEnabled(&settings, provider, true)
	s.forgetCalendar(provider)
	return s.store.SaveSettings(ctx, settings)
}

// Disconnect forgets the token of provider and disables it.
func (s *Service) Disconnect(ctx context.Context, provider string) error {
	if err := s.store.DeleteToken(ctx, provider); err != nil {
		return err
	}
	settings, err := s.store.Settings(ctx)
	if err != nil {
		return err
	}
	setEnabled(&settings, provider, false)
	s.forgetCalendar(provider)
	return s.store.SaveSettings(ctx, settings)
}

func setEnabled(st *model.CalendarSettings, provider string, on bool) {
	switch provider {
	case model.ProviderGoogle:
		st.GoogleEnabled = on
	case model.ProviderOutlook:
		st.OutlookEnabled = on
	}
}

// Push mirrors r into every enabled and connected calendar when auto sync
// is on. pushed is false when nothing was attempted.
func (s *Service) Push(ctx context.Context, r *model.Reservation, pack *model.Pack) (bool, error) {
	settings, err := s.store.Settings(ctx)
	if err != nil {
		return false, fmt.Errorf("load calendar settings: %w", err)
	}
	if !settings.AutoSync {
		return false, nil
	}
	packName := ""
	if pack != nil {
		packName = pack.NomPack
	}
	return s.push(ctx, settings, r, packName)
}

func (s *Service) push(ctx context.Context, settings model.CalendarSettings, r *model.Reservation, packName string) (bool, error) {
	if r.IsDraft {
		return false, nil
	}
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	var (
		pushed bool
		errs   []error
	)
	for _, name := range []string{model.ProviderGoogle, model.ProviderOutlook} {
		if !settings.Enabled(name) {
			continue
		}
		p, err := s.provider(ctx, name)
		if errors.Is(err, repository.ErrNotFound) {
			continue
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			continue
		}
		if err := s.pushTo(ctx, name, p, r, packName); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			continue
		}
		pushed = true
	}
	return pushed, errors.Join(errs...)
}

// provider opens a client for name. Tokens refreshed by the client are
// written back to the store.
func (s *Service) provider(ctx context.Context, name string) (Provider, error) {
	tok, err := s.store.Token(ctx, name)
	if err != nil {
		return nil, err
	}
	var ts oauth2.TokenSource = oauth2.StaticTokenSource(fromModel(tok))
	if s.oauth != nil {
		if cfg, err := s.oauth.Config(name); err == nil {
			ts = cfg.TokenSource(ctx, fromModel(tok))
		}
	}
	ts = &savingTokenSource{ctx: ctx, provider: name, base: ts, last: tok.AccessToken, store: s.store, log: s.log}
	return s.factory(ctx, name, ts)
}

// pushTo replaces the event of r in the SoundRent calendar of p. A
// cancelled reservation only has its event removed.
func (s *Service) pushTo(ctx context.Context, name string, p Provider, r *model.Reservation, packName string) error {
	calID, err := s.calendarID(ctx, name, p)
	if err != nil {
		return err
	}
	marker := Marker(r.ID)
	existing, err := p.ListEvents(ctx, calID, marker)
	if err != nil {
		return err
	}
	for _, ev := range existing {
		if !HasMarker(ev.Description, r.ID) {
			continue
		}
		if err := p.DeleteEvent(ctx, calID, ev.ID); err != nil {
			return err
		}
	}
	if r.Statut == model.StatutAnnulee {
		return nil
	}
	ev, ok := BuildEvent(r, packName, s.loc)
	if !ok {
		return nil
	}
	id, err := p.CreateEvent(ctx, calID, ev)
	if err != nil {
		return err
	}
	s.log.Debug("calendar event created", zap.String("provider", name), zap.Uint64("reservation_id", r.ID), zap.String("event_id", id))
	return nil
}

// calendarID finds or creates the SoundRent calendar of provider name.
func (s *Service) calendarID(ctx context.Context, name string, p Provider) (string, error) {
	s.mu.Lock()
	id, ok := s.calIDs[name]
	s.mu.Unlock()
	if ok {
		return id, nil
	}
	cals, err := p.ListCalendars(ctx)
	if err != nil {
		return "", err
	}
	for _, c := range cals {
		if c.Name == s.name {
			id = c.ID
			break
		}
	}
	if id == "" {
		c, err := p.CreateCalendar(ctx, s.name, s.loc.String())
		if err != nil {
			return "", err
		}
		id = c.ID
		s.log.Info("calendar created", zap.String("provider", name), zap.String("calendar", s.name))
	}
	s.mu.Lock()
	s.calIDs[name] = id
	s.mu.Unlock()
	return id, nil
}

func (s *Service) forgetCalendar(provider string) {
	s.mu.Lock()
	delete(s.calIDs, provider)
	s.mu.Unlock()
}

// SyncReport summarises SyncAll.
type SyncReport struct {
	Pushed int      `json:"pushed"`
	Failed int      `json:"failed"`
	Errors []string `json:"errors,omitempty"`
}

// SyncAll pushes every final reservation to the enabled calendars whether
// or not auto sync is on.
func (s *Service) SyncAll(ctx context.Context) (SyncReport, error) {
	var rep SyncReport
	if s.reservations == nil {
		return rep, errors.New("calendar: no reservation source")
	}
	settings, err := s.store.Settings(ctx)
	if err != nil {
		return rep, err
	}
	if !settings.GoogleEnabled && !settings.OutlookEnabled {
		return rep, ErrNotConfigured
	}
	rows, err := s.allReservations(ctx)
	if err != nil {
		return rep, err
	}
	packs := s.packNames(ctx, rows)
	for i := range rows {
		r := &rows[i]
		pushed, err := s.push(ctx, settings, r, packs[derefID(r.PackID)])
		switch {
		case err != nil:
			rep.Failed++
			rep.Errors = append(rep.Errors, fmt.Sprintf("%s: %v", r.Ref, err))
		case pushed:
			rep.Pushed++
		}
	}
	s.log.Info("calendar sync finished", zap.Int("pushed", rep.Pushed), zap.Int("failed", rep.Failed))
	return rep, nil
}

// allReservations pages through every final reservation.
func (s *Service) allReservations(ctx context.Context) ([]model.Reservation, error) {
	var all []model.Reservation
	for offset := 0; ; offset += model.MaxPage {
		page, err := s.reservations.List(ctx, model.ReservationFilter{Limit: model.MaxPage, Offset: offset})
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if len(page) < model.MaxPage {
			return all, nil
		}
	}
}

func (s *Service) packNames(ctx context.Context, rows []model.Reservation) map[uint64]string {
	names := make(map[uint64]string)
	if s.packs == nil {
		return names
	}
	for _, r := range rows {
		id := derefID(r.PackID)
		if id == 0 {
			continue
		}
		if _, ok := names[id]; ok {
			continue
		}
		if p, err := s.packs.Get(ctx, id); err == nil {
			names[id] = p.NomPack
		} else {
			names[id] = ""
		}
	}
	return names
}

func derefID(p *uint64) uint64 {
	if p == nil {
		return 0
	}
	return *p
}

// savingTokenSource persists a token whenever the underlying source
// refreshed it.
type savingTokenSource struct {
	ctx      context.Context
	provider string
	base     oauth2.TokenSource
	store    Store
	log      *zap.Logger

	mu   sync.Mutex
	last string
}

func (t *savingTokenSource) Token() (*oauth2.Token, error) {
	tok, err := t.base.Token()
	if err != nil {
		return nil, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if tok.AccessToken != t.last {
		t.last = tok.AccessToken
		if err := t.store.SaveToken(context.WithoutCancel(t.ctx), toModel(t.provider, tok)); err != nil {
			t.log.Warn("persist refreshed token failed", zap.String("provider", t.provider), zap.Error(err))
		}
	}
	return tok, nil
}
