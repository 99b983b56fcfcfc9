package http

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/kg46sp8kps-web/gestima-sub002/internal/domain/batches"
	"github.com/kg46sp8kps-web/gestima-sub002/internal/domain/materials"
	"github.com/kg46sp8kps-web/gestima-sub002/internal/domain/parts"
	"github.com/kg46sp8kps-web/gestima-sub002/internal/domain/sysconfig"
	"github.com/kg46sp8kps-web/gestima-sub002/internal/domain/workcenters"
	"github.com/kg46sp8kps-web/gestima-sub002/internal/export"
	"github.com/kg46sp8kps-web/gestima-sub002/internal/pricing"
	"github.com/kg46sp8kps-web/gestima-sub002/internal/snapshot"
)

type Pricer interface {
	Series(ctx context.Context, partID int64, quantities []int) ([]pricing.Breakdown, error)
	ResolveTier(ctx context.Context, categoryID int64, weight decimal.Decimal) (materials.PriceTier, error)
	FindNearestUpward(ctx context.Context, categoryID int64, shape materials.Shape, required []materials.Dim) (materials.Match, bool, error)
}

type Engine interface {
	PriceSeries(ctx context.Context, partID int64, quantities []int) ([]batches.Batch, error)
	CreateBatchSet(ctx context.Context, partID int64, name string, quantities []int) (batches.BatchSet, []batches.Batch, error)
	ReadPrice(ctx context.Context, batchID int64) (snapshot.PriceView, error)
	GetSnapshot(ctx context.Context, batchID int64) (batches.Snapshot, error)
	FreezeBatch(ctx context.Context, batchID, expectedVersion int64) (batches.Snapshot, error)
	FreezeBatchSet(ctx context.Context, setID int64) ([]batches.Snapshot, error)
	Recalculate(ctx context.Context, batchID, expectedVersion int64) (batches.Batch, error)
	ReportStale(ctx context.Context, partID int64) ([]batches.Batch, error)
}

type Parts interface {
	GetPart(ctx context.Context, id int64) (parts.Part, bool, error)
}

type Categories interface {
	GetPriceCategory(ctx context.Context, id int64) (materials.PriceCategory, bool, error)
}

type TierWriter interface {
	ReplaceTiers(ctx context.Context, categoryID, expectedVersion int64, tiers []materials.PriceTier) (int64, error)
}

type WorkCenters interface {
	GetWorkCenter(ctx context.Context, id int64) (workcenters.WorkCenter, bool, error)
	UpdateWorkCenterRates(ctx context.Context, id, expectedVersion int64, rates workcenters.Rates, at time.Time) (int64, error)
}

type SystemConfig interface {
	GetSystemConfig(ctx context.Context) (sysconfig.Config, error)
	UpdateSystemConfig(ctx context.Context, expectedVersion int64, coef sysconfig.Coefficients, by string, at time.Time) (int64, error)
	SystemConfigHistory(ctx context.Context, limit int) ([]sysconfig.HistoryEntry, error)
}

type Deps struct {
	Pricer       Pricer
	Engine       Engine
	Parts        Parts
	Categories   Categories
	TierWriter   TierWriter
	WorkCenters  WorkCenters
	SystemConfig SystemConfig
}

// API is the JSON surface over the pricer and the snapshot engine.
type API struct {
	Deps
	log *slog.Logger
	now func() time.Time
}

func NewAPI(deps Deps, log *slog.Logger) *API {
	return &API{Deps: deps, log: log.With("component", "http"), now: time.Now}
}

func (a *API) Routes() http.Handler {
	r := chi.NewRouter()

	r.Get("/tiers/resolve", a.handleResolveTier)
	r.Get("/materials/match", a.handleMatch)

	r.Route("/parts/{id}", func(r chi.Router) {
		r.Post("/price", a.handlePrice)
		r.Post("/batches", a.handleCreateBatches)
		r.Get("/stale", a.handleStale)
		r.Get("/quote.xlsx", a.handleQuoteWorkbook)
	})

	r.Route("/batches/{id}", func(r chi.Router) {
		r.Get("/price", a.handleReadPrice)
		r.Get("/snapshot", a.handleSnapshot)
		r.Post("/freeze", a.handleFreeze)
		r.Post("/recalculate", a.handleRecalculate)
	})
	r.Post("/batch-sets/{id}/freeze", a.handleFreezeSet)

	r.Get("/categories/{id}/tiers.xlsx", a.handleExportTiers)
	r.Post("/categories/{id}/tiers.xlsx", a.handleImportTiers)

	r.Put("/work-centers/{id}/rates", a.handleUpdateRates)

	r.Get("/config", a.handleGetConfig)
	r.Put("/config/coefficients", a.handleUpdateCoefficients)
	r.Get("/config/history", a.handleConfigHistory)
	return r
}

func (a *API) handleResolveTier(w http.ResponseWriter, r *http.Request) {
	categoryID, err := queryInt(r, "category_id")
	if err != nil {
		a.badRequest(w, err)
		return
	}
	weight, err := decimal.NewFromString(r.URL.Query().Get("weight"))
	if err != nil {
		a.badRequest(w, fmt.Errorf("weight: %w", err))
		return
	}
	tier, err := a.Pricer.ResolveTier(r.Context(), categoryID, weight)
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tier)
}

type matchResponse struct {
	Found    bool             `json:"found"`
	Item     *itemView        `json:"item,omitempty"`
	Oversize *decimal.Decimal `json:"oversize_mm,omitempty"`
}

type itemView struct {
	ID             int64                `json:"id"`
	Code           string               `json:"code"`
	Name           string               `json:"name"`
	Shape          materials.Shape      `json:"shape"`
	Dims           materials.Dimensions `json:"dims"`
	WeightPerMeter decimal.NullDecimal  `json:"weight_per_meter"`
}

func (a *API) handleMatch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	categoryID, err := queryInt(r, "category_id")
	if err != nil {
		a.badRequest(w, err)
		return
	}
	shape := materials.Shape(q.Get("shape"))
	var dims materials.Dimensions
	for name, dst := range map[string]*decimal.NullDecimal{
		"diameter": &dims.Diameter, "width": &dims.Width, "height": &dims.Height, "wall_thickness": &dims.WallThickness,
	} {
		if v := q.Get(name); v != "" {
			d, err := decimal.NewFromString(v)
			if err != nil {
				a.badRequest(w, fmt.Errorf("%s: %w", name, err))
				return
			}
			*dst = decimal.NewNullDecimal(d)
		}
	}
	required, err := materials.DecodeProfile(shape, dims)
	if err != nil {
		a.fail(w, err)
		return
	}

	m, found, err := a.Pricer.FindNearestUpward(r.Context(), categoryID, shape, required)
	if err != nil {
		a.fail(w, err)
		return
	}
	resp := matchResponse{Found: found}
	if found {
		resp.Item = &itemView{
			ID: m.Item.ID, Code: m.Item.Code, Name: m.Item.Name, Shape: m.Item.Shape,
			Dims: m.Item.Dims, WeightPerMeter: m.Item.WeightPerMeter,
		}
		resp.Oversize = &m.Oversize
	}
	writeJSON(w, http.StatusOK, resp)
}

type quantitiesRequest struct {
	Quantities []int  `json:"quantities"`
	SetName    string `json:"set_name,omitempty"`
}

func (a *API) handlePrice(w http.ResponseWriter, r *http.Request) {
	partID, err := pathID(r)
	if err != nil {
		a.badRequest(w, err)
		return
	}
	var req quantitiesRequest
	if err := readJSON(r, &req); err != nil {
		a.badRequest(w, err)
		return
	}
	bds, err := a.Pricer.Series(r.Context(), partID, req.Quantities)
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bds)
}

// handleCreateBatches stores one draft batch per quantity, grouped in a set
// when set_name is given.
func (a *API) handleCreateBatches(w http.ResponseWriter, r *http.Request) {
	partID, err := pathID(r)
	if err != nil {
		a.badRequest(w, err)
		return
	}
	var req quantitiesRequest
	if err := readJSON(r, &req); err != nil {
		a.badRequest(w, err)
		return
	}
	if req.SetName == "" {
		out, err := a.Engine.PriceSeries(r.Context(), partID, req.Quantities)
		if err != nil {
			a.fail(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"batches": out})
		return
	}
	set, out, err := a.Engine.CreateBatchSet(r.Context(), partID, req.SetName, req.Quantities)
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"set": set, "batches": out})
}

func (a *API) handleStale(w http.ResponseWriter, r *http.Request) {
	partID, err := pathID(r)
	if err != nil {
		a.badRequest(w, err)
		return
	}
	stale, err := a.Engine.ReportStale(r.Context(), partID)
	if err != nil {
		a.fail(w, err)
		return
	}
	if stale == nil {
		stale = []batches.Batch{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"stale": stale})
}

func (a *API) handleQuoteWorkbook(w http.ResponseWriter, r *http.Request) {
	partID, err := pathID(r)
	if err != nil {
		a.badRequest(w, err)
		return
	}
	qtys, err := queryInts(r, "qty")
	if err != nil {
		a.badRequest(w, err)
		return
	}
	p, ok, err := a.Parts.GetPart(r.Context(), partID)
	if err != nil {
		a.fail(w, err)
		return
	}
	if !ok {
		a.fail(w, fmt.Errorf("part %d: %w", partID, pricing.ErrNotFound))
		return
	}
	bds, err := a.Pricer.Series(r.Context(), partID, qtys)
	if err != nil {
		a.fail(w, err)
		return
	}
	buf, err := export.QuoteWorkbook(p.Number+" "+p.Name, bds)
	if err != nil {
		a.fail(w, err)
		return
	}
	writeXLSX(w, fmt.Sprintf("quote_%s.xlsx", p.Number), buf.Bytes())
}

func (a *API) handleReadPrice(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		a.badRequest(w, err)
		return
	}
	v, err := a.Engine.ReadPrice(r.Context(), id)
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (a *API) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		a.badRequest(w, err)
		return
	}
	s, err := a.Engine.GetSnapshot(r.Context(), id)
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

type versionRequest struct {
	Version int64 `json:"version"`
}

func (a *API) handleFreeze(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		a.badRequest(w, err)
		return
	}
	var req versionRequest
	if err := readOptionalJSON(r, &req); err != nil {
		a.badRequest(w, err)
		return
	}
	s, err := a.Engine.FreezeBatch(r.Context(), id, req.Version)
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (a *API) handleRecalculate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		a.badRequest(w, err)
		return
	}
	var req versionRequest
	if err := readOptionalJSON(r, &req); err != nil {
		a.badRequest(w, err)
		return
	}
	b, err := a.Engine.Recalculate(r.Context(), id, req.Version)
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (a *API) handleFreezeSet(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		a.badRequest(w, err)
		return
	}
	snaps, err := a.Engine.FreezeBatchSet(r.Context(), id)
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"snapshots": snaps})
}

func (a *API) handleExportTiers(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		a.badRequest(w, err)
		return
	}
	cat, ok, err := a.Categories.GetPriceCategory(r.Context(), id)
	if err != nil {
		a.fail(w, err)
		return
	}
	if !ok {
		a.fail(w, fmt.Errorf("price category %d: %w", id, pricing.ErrNotFound))
		return
	}
	buf, err := export.TiersWorkbook(cat)
	if err != nil {
		a.fail(w, err)
		return
	}
	w.Header().Set("ETag", fmt.Sprintf(`"%d"`, cat.Version))
	writeXLSX(w, fmt.Sprintf("tiers_%s.xlsx", cat.Code), buf.Bytes())
}

// handleImportTiers replaces a category's brackets with the uploaded workbook.
// ?version= is the category version the editor started from.
func (a *API) handleImportTiers(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		a.badRequest(w, err)
		return
	}
	version, err := queryInt(r, "version")
	if err != nil {
		a.badRequest(w, err)
		return
	}
	tiers, err := export.ParseTiers(http.MaxBytesReader(w, r.Body, maxUpload))
	if err != nil {
		a.fail(w, err)
		return
	}
	v, err := a.TierWriter.ReplaceTiers(r.Context(), id, version, tiers)
	if err != nil {
		a.fail(w, err)
		return
	}
	a.log.Info("price tiers imported", "category_id", id, "tiers", len(tiers), "version", v)
	writeJSON(w, http.StatusOK, map[string]any{"version": v, "tiers": len(tiers)})
}

type ratesRequest struct {
	Version int64             `json:"version"`
	Rates   workcenters.Rates `json:"rates"`
}

func (a *API) handleUpdateRates(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		a.badRequest(w, err)
		return
	}
	var req ratesRequest
	if err := readJSON(r, &req); err != nil {
		a.badRequest(w, err)
		return
	}
	v, err := a.WorkCenters.UpdateWorkCenterRates(r.Context(), id, req.Version, req.Rates, a.now().UTC())
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"version": v})
}

func (a *API) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	c, err := a.SystemConfig.GetSystemConfig(r.Context())
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"coefficients":    c.Coefficients,
		"default_density": c.DefaultDensity,
		"version":         c.Version,
		"updated_at":      c.UpdatedAt,
		"updated_by":      c.UpdatedBy,
	})
}

type coefficientsRequest struct {
	Version      int64                  `json:"version"`
	Coefficients sysconfig.Coefficients `json:"coefficients"`
	ChangedBy    string                 `json:"changed_by"`
}

func (a *API) handleUpdateCoefficients(w http.ResponseWriter, r *http.Request) {
	var req coefficientsRequest
	if err := readJSON(r, &req); err != nil {
		a.badRequest(w, err)
		return
	}
	v, err := a.SystemConfig.UpdateSystemConfig(r.Context(), req.Version, req.Coefficients, req.ChangedBy, a.now().UTC())
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"version": v})
}

func (a *API) handleConfigHistory(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if r.URL.Query().Has("limit") {
		n, err := queryInt(r, "limit")
		if err != nil {
			a.badRequest(w, err)
			return
		}
		limit = int(n)
	}
	h, err := a.SystemConfig.SystemConfigHistory(r.Context(), limit)
	if err != nil {
		a.fail(w, err)
		return
	}
	if h == nil {
		h = []sysconfig.HistoryEntry{}
	}
	writeJSON(w, http.StatusOK, h)
}
