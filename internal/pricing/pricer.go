package pricing

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/kg46sp8kps-web/gestima-sub002/internal/domain/materials"
	"github.com/kg46sp8kps-web/gestima-sub002/internal/domain/parts"
	"github.com/kg46sp8kps-web/gestima-sub002/internal/domain/sysconfig"
	"github.com/kg46sp8kps-web/gestima-sub002/internal/domain/workcenters"
)

type PartSource interface {
	GetPart(ctx context.Context, id int64) (parts.Part, bool, error)
	GetMaterialInput(ctx context.Context, id int64) (parts.MaterialInput, bool, error)
	ListMaterialInputs(ctx context.Context, partID int64) ([]parts.MaterialInput, error)
	GetOperations(ctx context.Context, partID int64) ([]parts.Operation, error)
}

type WorkCenterSource interface {
	GetWorkCenter(ctx context.Context, id int64) (workcenters.WorkCenter, bool, error)
}

type ConfigSource interface {
	GetSystemConfig(ctx context.Context) (sysconfig.Config, error)
}

// Catalog bundles the read-only collaborators pricing depends on.
type Catalog struct {
	Parts       PartSource
	WorkCenters WorkCenterSource
	Materials   MaterialSource
	Config      ConfigSource
}

// Observer receives one call per pricing request. result is "ok" or a Reason code.
type Observer interface {
	ObservePricing(result string, d time.Duration)
}

type nopObserver struct{}

func (nopObserver) ObservePricing(string, time.Duration) {}

type Options struct {
	// Parallelism bounds concurrent compositions in Series. <= 0 means 4.
	Parallelism int
	// MaxQuantities caps the length of one series. <= 0 means no cap.
	MaxQuantities int
	Observer      Observer
	Now           func() time.Time
}

type Pricer struct {
	cat  Catalog
	opts Options
	log  *slog.Logger
}

func NewPricer(cat Catalog, opts Options, log *slog.Logger) *Pricer {
	if opts.Parallelism <= 0 {
		opts.Parallelism = 4
	}
	if opts.Observer == nil {
		opts.Observer = nopObserver{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Pricer{cat: cat, opts: opts, log: log.With("component", "pricer")}
}

// Price computes one quantity of a part from current catalog data.
func (p *Pricer) Price(ctx context.Context, partID int64, quantity int) (Breakdown, error) {
	out, err := p.Series(ctx, partID, []int{quantity})
	if err != nil {
		return Breakdown{}, err
	}
	return out[0], nil
}

// Series prices every quantity against one consistent load of the catalog.
// Results keep the order of quantities.
func (p *Pricer) Series(ctx context.Context, partID int64, quantities []int) (out []Breakdown, err error) {
	start := time.Now()
	defer func() {
		result := "ok"
		if err != nil {
			result = Reason(err)
		}
		p.opts.Observer.ObservePricing(result, time.Since(start))
	}()

	if len(quantities) == 0 {
		return nil, fmt.Errorf("%w: empty quantity series", ErrInvalidQuantity)
	}
	if p.opts.MaxQuantities > 0 && len(quantities) > p.opts.MaxQuantities {
		return nil, fmt.Errorf("%w: %d quantities, at most %d allowed", ErrInvalidQuantity, len(quantities), p.opts.MaxQuantities)
	}
	for _, q := range quantities {
		if q <= 0 {
			return nil, fmt.Errorf("%w: %d", ErrInvalidQuantity, q)
		}
	}

	in, cfg, err := p.Load(ctx, partID)
	if err != nil {
		return nil, err
	}

	out = make([]Breakdown, len(quantities))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.Parallelism)
	for i, q := range quantities {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			b, err := Compose(in, q, cfg.Coefficients)
			if err != nil {
				return err
			}
			out[i] = b
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		p.log.Debug("series failed", "part_id", partID, "err", err)
		return nil, err
	}
	return out, nil
}

// Load reads and resolves everything the part's price depends on.
func (p *Pricer) Load(ctx context.Context, partID int64) (Input, sysconfig.Config, error) {
	if _, ok, err := p.cat.Parts.GetPart(ctx, partID); err != nil {
		return Input{}, sysconfig.Config{}, fmt.Errorf("get part %d: %w", partID, err)
	} else if !ok {
		return Input{}, sysconfig.Config{}, fmt.Errorf("part %d: %w", partID, ErrNotFound)
	}

	cfg, err := p.cat.Config.GetSystemConfig(ctx)
	if err != nil {
		return Input{}, sysconfig.Config{}, fmt.Errorf("get system config: %w", err)
	}

	inputs, err := p.cat.Parts.ListMaterialInputs(ctx, partID)
	if err != nil {
		return Input{}, cfg, fmt.Errorf("list material inputs: %w", err)
	}
	ops, err := p.cat.Parts.GetOperations(ctx, partID)
	if err != nil {
		return Input{}, cfg, fmt.Errorf("get operations: %w", err)
	}

	in := Input{
		PartID:        partID,
		ConfigVersion: cfg.Version,
		ComputedAt:    p.opts.Now().UTC(),
	}
	for _, mi := range inputs {
		rm, err := p.resolveMaterial(ctx, mi, cfg)
		if err != nil {
			return Input{}, cfg, err
		}
		in.Materials = append(in.Materials, rm)
	}
	for _, op := range ops {
		ro := ResolvedOperation{Operation: op}
		if !op.Cooperation {
			wc, ok, err := p.cat.WorkCenters.GetWorkCenter(ctx, op.WorkCenterID)
			if err != nil {
				return Input{}, cfg, fmt.Errorf("get work center %d: %w", op.WorkCenterID, err)
			}
			if !ok || wc.Deleted() {
				return Input{}, cfg, fmt.Errorf("operation %d: work center %d: %w", op.ID, op.WorkCenterID, ErrNotFound)
			}
			ro.WorkCenter = wc
		}
		in.Operations = append(in.Operations, ro)
	}
	return in, cfg, nil
}

func (p *Pricer) resolveMaterial(ctx context.Context, mi parts.MaterialInput, cfg sysconfig.Config) (ResolvedMaterial, error) {
	fail := func(reason string, err error) (ResolvedMaterial, error) {
		return ResolvedMaterial{}, &UnpricableMaterialError{InputID: mi.ID, Reason: reason, Err: err}
	}

	geom, err := mi.Geometry()
	if err != nil {
		return fail(UnpricableInvalidGeometry, err)
	}
	cat, ok, err := p.cat.Materials.GetPriceCategory(ctx, mi.CategoryID)
	if err != nil {
		return ResolvedMaterial{}, fmt.Errorf("get price category %d: %w", mi.CategoryID, err)
	}
	if !ok {
		return fail(UnpricableUnknownCategory, nil)
	}

	rm := ResolvedMaterial{Input: mi, Geometry: geom, Category: cat}

	var item *materials.Item
	if mi.ItemID != nil {
		it, ok, err := p.cat.Materials.GetItem(ctx, *mi.ItemID)
		if err != nil {
			return ResolvedMaterial{}, fmt.Errorf("get material item %d: %w", *mi.ItemID, err)
		}
		// A tombstoned pinned item is treated as absent and the matcher picks a replacement.
		if ok && !it.Deleted() {
			item = &it
		} else {
			p.log.Debug("pinned item unavailable", "input_id", mi.ID, "item_id", *mi.ItemID)
		}
	}
	if item == nil {
		m, found, err := p.FindNearestUpward(ctx, mi.CategoryID, mi.Shape, geom.Profile())
		if err != nil {
			return ResolvedMaterial{}, err
		}
		if !found {
			return fail(UnpricableNoStockMatch, nil)
		}
		item = &m.Item
		rm.Matched = true
	}
	rm.Item = item
	if item.Shape == mi.Shape {
		if profile, err := materials.DecodeProfile(item.Shape, item.Dims); err == nil {
			rm.Geometry = geom.WithProfile(dimValues(profile))
		}
	}

	groupID := firstID(item.GroupID, mi.GroupID, cat.GroupID)
	if groupID != nil {
		g, ok, err := p.cat.Materials.GetGroup(ctx, *groupID)
		if err != nil {
			return ResolvedMaterial{}, fmt.Errorf("get material group %d: %w", *groupID, err)
		}
		if ok && g.Density.IsPositive() {
			rm.Density = g.Density
			rm.WeightSource = WeightDensity
			return rm, nil
		}
	}
	if item.WeightPerMeter.Valid {
		return rm, nil
	}
	if !cfg.DefaultDensity.IsPositive() {
		return fail(UnpricableUnknownDensity, nil)
	}
	p.log.Warn("material priced with default density", "input_id", mi.ID, "density", cfg.DefaultDensity.String())
	rm.Density = cfg.DefaultDensity
	rm.WeightSource = WeightDefaultDensity
	return rm, nil
}

// ResolveTier is the standalone bracket lookup.
func (p *Pricer) ResolveTier(ctx context.Context, categoryID int64, weight decimal.Decimal) (materials.PriceTier, error) {
	cat, ok, err := p.cat.Materials.GetPriceCategory(ctx, categoryID)
	if err != nil {
		return materials.PriceTier{}, err
	}
	if !ok {
		return materials.PriceTier{}, fmt.Errorf("price category %d: %w", categoryID, ErrNotFound)
	}
	tier, err := materials.ResolveTier(cat, weight)
	if err == nil {
		p.log.Debug("tier resolved", "category_id", categoryID, "weight", weight.String(), "tier_id", tier.ID)
	}
	return tier, err
}

// FindNearestUpward is the standalone stock lookup. found=false is a normal answer.
func (p *Pricer) FindNearestUpward(ctx context.Context, categoryID int64, shape materials.Shape, required []materials.Dim) (materials.Match, bool, error) {
	items, err := p.cat.Materials.GetMaterialItems(ctx, categoryID, shape)
	if err != nil {
		return materials.Match{}, false, fmt.Errorf("get material items: %w", err)
	}
	m, found := materials.FindNearestUpward(items, categoryID, shape, required)
	if found {
		p.log.Debug("stock matched", "category_id", categoryID, "shape", shape, "item_id", m.Item.ID, "oversize", m.Oversize.String())
	}
	return m, found, nil
}

func firstID(ids ...*int64) *int64 {
	for _, id := range ids {
		if id != nil {
			return id
		}
	}
	return nil
}

func dimValues(ds []materials.Dim) []decimal.Decimal {
	out := make([]decimal.Decimal, len(ds))
	for i, d := range ds {
		out[i] = d.Value
	}
	return out
}
