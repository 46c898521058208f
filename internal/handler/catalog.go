package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/iliyamo/soundrent-backoffice/internal/model"
)

// ClientStore is the client storage used by CatalogHandler.
type ClientStore interface {
	Get(ctx context.Context, id uint64) (*model.Client, error)
	List(ctx context.Context, search string, limit, offset int) ([]model.Client, error)
	Create(ctx context.Context, c *model.Client) error
	Update(ctx context.Context, c *model.Client) error
}

// PackStore is the pack storage used by CatalogHandler.
type PackStore interface {
	Get(ctx context.Context, id uint64) (*model.Pack, error)
	List(ctx context.Context, all bool) ([]model.Pack, error)
	Create(ctx context.Context, p *model.Pack) error
	Update(ctx context.Context, p *model.Pack) error
}

// CatalogHandler serves clients and packs.
type CatalogHandler struct {
	Clients ClientStore
	Packs   PackStore
	Log     *zap.Logger
}

func NewCatalogHandler(c ClientStore, p PackStore, log *zap.Logger) *CatalogHandler {
	return &CatalogHandler{Clients: c, Packs: p, Log: log}
}

type clientReq struct {
	Prenom    string `json:"prenom"`
	Nom       string `json:"nom"`
	Email     string `json:"email"`
	Telephone string `json:"telephone"`
	Adresse   string `json:"adresse"`
	Notes     string `json:"notes"`
}

func (r clientReq) validate() map[string]string {
	errs := map[string]string{}
	if r.Nom == "" && r.Prenom == "" {
		errs["nom"] = "nom ou prénom obligatoire"
	}
	if r.Email != "" && !strings.Contains(r.Email, "@") {
		errs["email"] = "email invalide"
	}
	return errs
}

func (r *clientReq) trim() {
	r.Prenom = strings.TrimSpace(r.Prenom)
	r.Nom = strings.TrimSpace(r.Nom)
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	r.Telephone = strings.TrimSpace(r.Telephone)
	r.Adresse = strings.TrimSpace(r.Adresse)
	r.Notes = strings.TrimSpace(r.Notes)
}

func (r clientReq) apply(c *model.Client) {
	c.Prenom, c.Nom, c.Email = r.Prenom, r.Nom, r.Email
	c.Telephone, c.Adresse, c.Notes = r.Telephone, r.Adresse, r.Notes
}

func (h *CatalogHandler) ListClients(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	rows, err := h.Clients.List(ctx, c.QueryParam("q"), queryInt(c, "limit", 100), queryInt(c, "offset", 0))
	if err != nil {
		return fail(c, h.Log, err)
	}
	if rows == nil {
		rows = []model.Client{}
	}
	return c.JSON(http.StatusOK, rows)
}

func (h *CatalogHandler) GetClient(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return fail(c, h.Log, err)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	cl, err := h.Clients.Get(ctx, id)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, cl)
}

func (h *CatalogHandler) CreateClient(c echo.Context) error {
	var req clientReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	req.trim()
	if errs := req.validate(); len(errs) > 0 {
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": "validation failed", "fields": errs})
	}
	var cl model.Client
	req.apply(&cl)
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.Clients.Create(ctx, &cl); err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, cl)
}

func (h *CatalogHandler) UpdateClient(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return fail(c, h.Log, err)
	}
	var req clientReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	req.trim()
	if errs := req.validate(); len(errs) > 0 {
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": "validation failed", "fields": errs})
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	cl, err := h.Clients.Get(ctx, id)
	if err != nil {
		return fail(c, h.Log, err)
	}
	req.apply(cl)
	if err := h.Clients.Update(ctx, cl); err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, cl)
}

type packReq struct {
	NomPack     string          `json:"nom_pack"`
	Description string          `json:"description"`
	PrixBaseTTC decimal.Decimal `json:"prix_base_ttc"`
	Actif       *bool           `json:"actif"`
}

func (r packReq) validate() map[string]string {
	errs := map[string]string{}
	if strings.TrimSpace(r.NomPack) == "" {
		errs["nom_pack"] = "nom obligatoire"
	}
	if r.PrixBaseTTC.IsNegative() {
		errs["prix_base_ttc"] = "prix négatif"
	}
	return errs
}

func (r packReq) apply(p *model.Pack) {
	p.NomPack = strings.TrimSpace(r.NomPack)
	p.Description = strings.TrimSpace(r.Description)
	p.PrixBaseTTC = r.PrixBaseTTC
	if r.Actif != nil {
		p.Actif = *r.Actif
	}
}

// ListPacks returns active packs; ?all=1 includes inactive ones.
func (h *CatalogHandler) ListPacks(c echo.Context) error {
	all, _ := strconv.ParseBool(c.QueryParam("all"))
	ctx, cancel := reqCtx(c)
	defer cancel()
	rows, err := h.Packs.List(ctx, all)
	if err != nil {
		return fail(c, h.Log, err)
	}
	if rows == nil {
		rows = []model.Pack{}
	}
	return c.JSON(http.StatusOK, rows)
}

func (h *CatalogHandler) GetPack(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return fail(c, h.Log, err)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	p, err := h.Packs.Get(ctx, id)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *CatalogHandler) CreatePack(c echo.Context) error {
	var req packReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if errs := req.validate(); len(errs) > 0 {
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": "validation failed", "fields": errs})
	}
	p := model.Pack{Actif: true}
	req.apply(&p)
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.Packs.Create(ctx, &p); err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *CatalogHandler) UpdatePack(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return fail(c, h.Log, err)
	}
	var req packReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if errs := req.validate(); len(errs) > 0 {
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": "validation failed", "fields": errs})
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	p, err := h.Packs.Get(ctx, id)
	if err != nil {
		return fail(c, h.Log, err)
	}
	req.apply(p)
	if err := h.Packs.Update(ctx, p); err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, p)
}
