package infer

import (
	"sort"

	"go.uber.org/zap"

	"github.com/sells-group/labor-atlas/internal/model"
)

// HeadcountEstimate is the allocator's output for one role at a company.
type HeadcountEstimate struct {
	RoleID   int64               `json:"role_id"`
	Count    float64             `json:"count"`
	Tier     model.HeadcountTier `json:"tier"`
	Observed bool                `json:"observed"`
}

// roleTemplate is the median share of a company's workforce one role
// accounts for, across the companies of an industry.
type roleTemplate struct {
	share     map[int64]float64
	companies int
}

// Allocator distributes company headcount across roles. Observed counts
// pass through exactly; industry templates fill in only the roles the
// sources never showed.
type Allocator struct {
	snapshot     *Snapshot
	templates    map[string]*roleTemplate
	global       *roleTemplate
	minCompanies int
}

// NewAllocator builds role-share templates from the snapshot. A
// template from at least minCompanies companies earns the medium
// confidence tier; smaller ones are tagged low. Companies without an
// industry fall back to a cross-industry template at the low tier.
func NewAllocator(snapshot *Snapshot, minCompanies int) *Allocator {
	if minCompanies <= 0 {
		minCompanies = 50
	}
	a := &Allocator{
		snapshot:     snapshot,
		templates:    make(map[string]*roleTemplate),
		minCompanies: minCompanies,
	}

	// Per-company role shares, grouped by industry.
	type companyRoles struct {
		counts map[int64]float64
		total  float64
	}
	perCompany := make(map[int64]*companyRoles)
	for i := range snapshot.Jobs {
		job := &snapshot.Jobs[i]
		cr := perCompany[job.CompanyID]
		if cr == nil {
			cr = &companyRoles{counts: make(map[int64]float64)}
			perCompany[job.CompanyID] = cr
		}
		cr.counts[job.RoleID]++
		cr.total++
	}

	shares := make(map[string]map[int64][]float64)
	companiesSeen := make(map[string]int)
	globalShares := make(map[int64][]float64)
	globalCompanies := 0
	for companyID, cr := range perCompany {
		if cr.total == 0 {
			continue
		}
		globalCompanies++
		for roleID, n := range cr.counts {
			globalShares[roleID] = append(globalShares[roleID], n/cr.total)
		}
		c := snapshot.Company(companyID)
		if c == nil || c.Industry == "" {
			continue
		}
		companiesSeen[c.Industry]++
		byRole := shares[c.Industry]
		if byRole == nil {
			byRole = make(map[int64][]float64)
			shares[c.Industry] = byRole
		}
		for roleID, n := range cr.counts {
			byRole[roleID] = append(byRole[roleID], n/cr.total)
		}
	}

	for industry, byRole := range shares {
		tpl := &roleTemplate{share: make(map[int64]float64, len(byRole)), companies: companiesSeen[industry]}
		for roleID, vals := range byRole {
			tpl.share[roleID] = median(vals)
		}
		a.templates[industry] = tpl
	}
	if globalCompanies > 0 {
		tpl := &roleTemplate{share: make(map[int64]float64, len(globalShares)), companies: globalCompanies}
		for roleID, vals := range globalShares {
			tpl.share[roleID] = median(vals)
		}
		a.global = tpl
	}
	return a
}

// Allocate estimates per-role headcount for one company. Roles with
// observations return their exact observed count with the high tier;
// templates never overwrite an observed figure.
func (a *Allocator) Allocate(companyID int64) []HeadcountEstimate {
	observed := make(map[int64]float64)
	var observedTotal float64
	for i := range a.snapshot.Jobs {
		job := &a.snapshot.Jobs[i]
		if job.CompanyID == companyID {
			observed[job.RoleID]++
			observedTotal++
		}
	}

	out := make([]HeadcountEstimate, 0, len(observed))
	for roleID, n := range observed {
		out = append(out, HeadcountEstimate{RoleID: roleID, Count: n, Tier: model.HeadcountObserved, Observed: true})
	}

	tpl, fallback := a.templateFor(companyID)
	if tpl != nil && observedTotal > 0 {
		// Scale the template by the share of the workforce we actually
		// observed: seeing 25% of a typical peer's roles implies a
		// workforce four times the observed count.
		var coverage float64
		for roleID := range observed {
			coverage += tpl.share[roleID]
		}
		if coverage > 0 {
			estimatedTotal := observedTotal / coverage
			tier := model.HeadcountSparse
			if !fallback && tpl.companies >= a.minCompanies {
				tier = model.HeadcountTemplate
			}
			for roleID, share := range tpl.share {
				if _, ok := observed[roleID]; ok {
					continue
				}
				if share <= 0 {
					continue
				}
				out = append(out, HeadcountEstimate{RoleID: roleID, Count: estimatedTotal * share, Tier: tier})
			}
		} else {
			zap.L().Debug("infer: no template coverage for observed roles",
				zap.Int64("company_id", companyID),
			)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].RoleID < out[j].RoleID })
	return out
}

// templateFor resolves the template to allocate against. The second
// return reports a cross-industry fallback, which is always treated
// as the low tier no matter how many companies backed it.
func (a *Allocator) templateFor(companyID int64) (*roleTemplate, bool) {
	c := a.snapshot.Company(companyID)
	if c != nil && c.Industry != "" {
		if tpl := a.templates[c.Industry]; tpl != nil {
			return tpl, false
		}
	}
	return a.global, true
}
