package resolve

import (
	"context"
	"strings"

	"github.com/agext/levenshtein"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/labor-atlas/internal/model"
)

// ErrEmptyCompany is returned when the raw company string normalizes to nothing.
var ErrEmptyCompany = eris.New("resolve: empty company name")

// Store is the persistence surface the resolver needs.
type Store interface {
	GetCompanyAlias(ctx context.Context, normalized string) (*model.CompanyAlias, error)
	GetCompanyByNormalizedName(ctx context.Context, normalized string) (*model.Company, error)
	GetCompany(ctx context.Context, id int64) (*model.Company, error)
	ListCompanies(ctx context.Context) ([]model.Company, error)
	CreateCompany(ctx context.Context, c *model.Company) error
	CreateCompanyAlias(ctx context.Context, a *model.CompanyAlias) error
	UpdateCompanyIndustry(ctx context.Context, id int64, industry string) error
	GetLocation(ctx context.Context, city, state string) (*model.Location, error)
	ListLocations(ctx context.Context) ([]model.Location, error)
}

// Resolution is the result of resolving one raw company/location pair.
// LocationID and MetroID are nil when the location could not be matched;
// such records are kept and flagged, never dropped.
type Resolution struct {
	CompanyID       int64
	CompanyCreated  bool
	LocationID      *int64
	MetroID         *int64
	LocationMatched bool
}

// Resolver resolves raw company and location strings against the alias
// table and the static location/metro table.
type Resolver struct {
	store          Store
	fuzzyThreshold float64
}

// NewResolver creates a resolver. fuzzyThreshold is the minimum
// levenshtein similarity (0-1) for a fuzzy alias match.
func NewResolver(store Store, fuzzyThreshold float64) *Resolver {
	if fuzzyThreshold <= 0 {
		fuzzyThreshold = 0.88
	}
	return &Resolver{store: store, fuzzyThreshold: fuzzyThreshold}
}

// Resolve maps a raw company and raw location to canonical identities.
// Company resolution is a three-pass cascade:
//  1. Alias-table exact match on the normalized name
//  2. Companies-table exact match on the normalized name
//  3. Fuzzy match against known normalized names; a hit registers a new alias
//
// No match creates a new company. Location resolution is stricter: exact
// city+state lookup, then a fuzzy city match within the same state;
// anything else stays unresolved.
func (r *Resolver) Resolve(ctx context.Context, rawCompany, rawLocation string) (*Resolution, error) {
	normalized := NormalizeCompany(rawCompany)
	if normalized == "" {
		return nil, ErrEmptyCompany
	}

	res := &Resolution{}

	companyID, created, err := r.resolveCompany(ctx, rawCompany, normalized)
	if err != nil {
		return nil, err
	}
	res.CompanyID = companyID
	res.CompanyCreated = created

	loc, err := r.resolveLocation(ctx, rawLocation)
	if err != nil {
		return nil, err
	}
	if loc != nil {
		res.LocationID = &loc.ID
		res.MetroID = loc.MetroID
		res.LocationMatched = true
	} else if strings.TrimSpace(rawLocation) != "" {
		zap.L().Debug("resolve: unresolvable location, keeping record flagged",
			zap.String("raw_location", rawLocation),
		)
	}

	return res, nil
}

func (r *Resolver) resolveCompany(ctx context.Context, raw, normalized string) (int64, bool, error) {
	// Pass 1: alias table.
	alias, err := r.store.GetCompanyAlias(ctx, normalized)
	if err != nil {
		return 0, false, eris.Wrap(err, "resolve: alias lookup")
	}
	if alias != nil {
		return alias.CompanyID, false, nil
	}

	// Pass 2: normalized company name.
	existing, err := r.store.GetCompanyByNormalizedName(ctx, normalized)
	if err != nil {
		return 0, false, eris.Wrap(err, "resolve: company lookup")
	}
	if existing != nil {
		return existing.ID, false, nil
	}

	// Pass 3: fuzzy match against known names.
	match, score, err := r.fuzzyCompany(ctx, normalized)
	if err != nil {
		return 0, false, err
	}
	if match != nil {
		zap.L().Debug("resolve: fuzzy company match",
			zap.String("raw", raw),
			zap.String("matched", match.NormalizedName),
			zap.Float64("similarity", score),
		)
		// Register the variant as an alias so the next hit is exact.
		if err := r.store.CreateCompanyAlias(ctx, &model.CompanyAlias{
			CompanyID:  match.ID,
			Alias:      strings.TrimSpace(raw),
			Normalized: normalized,
		}); err != nil {
			return 0, false, eris.Wrap(err, "resolve: register alias")
		}
		return match.ID, false, nil
	}

	// No match: create.
	company := &model.Company{
		Name:           strings.TrimSpace(raw),
		NormalizedName: normalized,
	}
	if err := r.store.CreateCompany(ctx, company); err != nil {
		return 0, false, eris.Wrap(err, "resolve: create company")
	}
	if err := r.store.CreateCompanyAlias(ctx, &model.CompanyAlias{
		CompanyID:  company.ID,
		Alias:      company.Name,
		Normalized: normalized,
	}); err != nil {
		return 0, false, eris.Wrap(err, "resolve: create self alias")
	}

	zap.L().Info("resolve: created new company",
		zap.String("name", company.Name),
		zap.String("normalized", normalized),
		zap.Int64("company_id", company.ID),
	)
	return company.ID, true, nil
}

// fuzzyCompany scans known companies for the closest normalized-name
// match above the similarity threshold.
func (r *Resolver) fuzzyCompany(ctx context.Context, normalized string) (*model.Company, float64, error) {
	companies, err := r.store.ListCompanies(ctx)
	if err != nil {
		return nil, 0, eris.Wrap(err, "resolve: list companies for fuzzy match")
	}

	var best *model.Company
	var bestScore float64
	for i := range companies {
		score := levenshtein.Match(normalized, companies[i].NormalizedName, nil)
		if score >= r.fuzzyThreshold && score > bestScore {
			best = &companies[i]
			bestScore = score
		}
	}
	return best, bestScore, nil
}

// resolveLocation matches a raw location against the static location
// table. Returns nil when the location cannot be matched confidently.
func (r *Resolver) resolveLocation(ctx context.Context, rawLocation string) (*model.Location, error) {
	city, state := NormalizeLocation(rawLocation)
	if city == "" || state == "" {
		return nil, nil
	}

	loc, err := r.store.GetLocation(ctx, city, state)
	if err != nil {
		return nil, eris.Wrap(err, "resolve: location lookup")
	}
	if loc != nil {
		return loc, nil
	}

	// Fuzzy city match within the same state. Stricter than company
	// matching: higher floor, exact state required.
	locations, err := r.store.ListLocations(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "resolve: list locations")
	}
	threshold := r.fuzzyThreshold
	if threshold < 0.9 {
		threshold = 0.9
	}
	var best *model.Location
	var bestScore float64
	for i := range locations {
		if locations[i].State != state {
			continue
		}
		score := levenshtein.Match(strings.ToUpper(city), strings.ToUpper(locations[i].City), nil)
		if score >= threshold && score > bestScore {
			best = &locations[i]
			bestScore = score
		}
	}
	return best, nil
}

// SetIndustryIfEmpty backfills a company's industry from source data the
// first time a record carries one.
func (r *Resolver) SetIndustryIfEmpty(ctx context.Context, companyID int64, industry string) error {
	industry = strings.TrimSpace(industry)
	if industry == "" {
		return nil
	}
	company, err := r.store.GetCompany(ctx, companyID)
	if err != nil {
		return eris.Wrap(err, "resolve: get company")
	}
	if company == nil || company.Industry != "" {
		return nil
	}
	return eris.Wrap(r.store.UpdateCompanyIndustry(ctx, companyID, industry), "resolve: set industry")
}
