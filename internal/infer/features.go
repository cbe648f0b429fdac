package infer

import (
	"context"
	"sort"

	"github.com/sells-group/labor-atlas/internal/model"
	"github.com/sells-group/labor-atlas/internal/store"
)

// Snapshot is a point-in-time view of the observation base used for
// both training and prediction. Models trained on a snapshot see the
// same aggregates at prediction time, so features stay consistent
// within one run.
type Snapshot struct {
	Jobs      []model.ObservedJob
	companies map[int64]*model.Company
	metroOf   map[int64]*int64 // location id -> metro id

	globalMedian    float64
	roleMedian      map[int64]float64
	metroMedian     map[int64]float64
	companyMedian   map[int64]float64
	companyObserved map[int64]int
	industryCode    map[string]float64

	keys map[flatKey]bool
}

// flatKey is a comparable form of ArchetypeKey, with nil metro folded
// to zero, usable as a map key.
type flatKey struct {
	company, metro, role int64
	seniority            model.Seniority
}

func flatten(key model.ArchetypeKey) flatKey {
	f := flatKey{company: key.CompanyID, role: key.RoleID, seniority: key.Seniority}
	if key.MetroID != nil {
		f.metro = *key.MetroID
	}
	return f
}

func (f flatKey) key() model.ArchetypeKey {
	k := model.ArchetypeKey{CompanyID: f.company, RoleID: f.role, Seniority: f.seniority}
	if f.metro != 0 {
		m := f.metro
		k.MetroID = &m
	}
	return k
}

// NewSnapshot loads the non-stale observation base and precomputes the
// aggregates features are built from.
func NewSnapshot(ctx context.Context, st store.Store) (*Snapshot, error) {
	jobs, err := st.ListObservedJobs(ctx, store.ObservedJobFilter{})
	if err != nil {
		return nil, err
	}
	companies, err := st.ListCompanies(ctx)
	if err != nil {
		return nil, err
	}
	locations, err := st.ListLocations(ctx)
	if err != nil {
		return nil, err
	}

	s := &Snapshot{
		Jobs:            jobs,
		companies:       make(map[int64]*model.Company, len(companies)),
		metroOf:         make(map[int64]*int64, len(locations)),
		roleMedian:      make(map[int64]float64),
		metroMedian:     make(map[int64]float64),
		companyMedian:   make(map[int64]float64),
		companyObserved: make(map[int64]int),
		industryCode:    make(map[string]float64),
		keys:            make(map[flatKey]bool),
	}
	for i := range companies {
		s.companies[companies[i].ID] = &companies[i]
	}
	for _, loc := range locations {
		s.metroOf[loc.ID] = loc.MetroID
	}

	var all []float64
	byRole := make(map[int64][]float64)
	byMetro := make(map[int64][]float64)
	byCompany := make(map[int64][]float64)
	industries := make(map[string]bool)

	for i := range jobs {
		job := &jobs[i]
		s.companyObserved[job.CompanyID]++
		s.keys[flatten(s.jobKey(job))] = true
		if c := s.companies[job.CompanyID]; c != nil && c.Industry != "" {
			industries[c.Industry] = true
		}
		if job.Salary == nil {
			continue
		}
		v := *job.Salary
		all = append(all, v)
		byRole[job.RoleID] = append(byRole[job.RoleID], v)
		byCompany[job.CompanyID] = append(byCompany[job.CompanyID], v)
		if m := s.metroID(job); m != nil {
			byMetro[*m] = append(byMetro[*m], v)
		}
	}

	s.globalMedian = median(all)
	for id, vals := range byRole {
		s.roleMedian[id] = median(vals)
	}
	for id, vals := range byMetro {
		s.metroMedian[id] = median(vals)
	}
	for id, vals := range byCompany {
		s.companyMedian[id] = median(vals)
	}

	// Stable ordinal encoding for industries present in the snapshot.
	names := make([]string, 0, len(industries))
	for name := range industries {
		names = append(names, name)
	}
	sort.Strings(names)
	for i, name := range names {
		s.industryCode[name] = float64(i + 1)
	}
	return s, nil
}

// featureDim is the width of the vectors Features produces.
const featureDim = 8

// Features builds the model input vector for one archetype key. Unseen
// companies, metros, and roles contribute the next-coarser aggregate,
// never an error.
func (s *Snapshot) Features(key model.ArchetypeKey) []float64 {
	roleMed := s.fallbackMedian(s.roleMedian, key.RoleID)

	metroMed := s.globalMedian
	hasMetro := 0.0
	if key.MetroID != nil {
		metroMed = s.fallbackMedian(s.metroMedian, *key.MetroID)
		hasMetro = 1
	}

	companyMed := s.CompanyMedian(key.CompanyID, key.MetroID, key.RoleID)

	industry := 0.0
	if c := s.companies[key.CompanyID]; c != nil {
		industry = s.industryCode[c.Industry]
	}

	return []float64{
		float64(key.Seniority.Rank()),
		roleMed,
		metroMed,
		companyMed,
		float64(s.companyObserved[key.CompanyID]),
		industry,
		hasMetro,
		float64(key.RoleID),
	}
}

// CompanyMedian resolves the company's observed median salary, walking
// the fallback chain company -> metro -> role -> global.
func (s *Snapshot) CompanyMedian(companyID int64, metroID *int64, roleID int64) float64 {
	if v, ok := s.companyMedian[companyID]; ok {
		return v
	}
	if metroID != nil {
		if v, ok := s.metroMedian[*metroID]; ok {
			return v
		}
	}
	if v, ok := s.roleMedian[roleID]; ok {
		return v
	}
	return s.globalMedian
}

// HasKey reports whether the snapshot contains an observation for the key.
func (s *Snapshot) HasKey(key model.ArchetypeKey) bool {
	return s.keys[flatten(key)]
}

// Keys returns every distinct observed archetype key in the snapshot.
func (s *Snapshot) Keys() []model.ArchetypeKey {
	out := make([]model.ArchetypeKey, 0, len(s.keys))
	for k := range s.keys {
		out = append(out, k.key())
	}
	sort.Slice(out, func(a, b int) bool {
		if out[a].CompanyID != out[b].CompanyID {
			return out[a].CompanyID < out[b].CompanyID
		}
		if out[a].RoleID != out[b].RoleID {
			return out[a].RoleID < out[b].RoleID
		}
		am, bm := out[a].MetroID, out[b].MetroID
		switch {
		case am == nil && bm != nil:
			return true
		case am != nil && bm == nil:
			return false
		case am != nil && bm != nil && *am != *bm:
			return *am < *bm
		}
		return out[a].Seniority < out[b].Seniority
	})
	return out
}

// Companies returns the companies present in the snapshot.
func (s *Snapshot) Companies() []*model.Company {
	out := make([]*model.Company, 0, len(s.companies))
	for _, c := range s.companies {
		out = append(out, c)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].ID < out[b].ID })
	return out
}

// Company looks up a company by id, nil when absent from the snapshot.
func (s *Snapshot) Company(id int64) *model.Company {
	return s.companies[id]
}

func (s *Snapshot) jobKey(job *model.ObservedJob) model.ArchetypeKey {
	return model.ArchetypeKey{
		CompanyID: job.CompanyID,
		MetroID:   s.metroID(job),
		RoleID:    job.RoleID,
		Seniority: job.Seniority,
	}
}

func (s *Snapshot) metroID(job *model.ObservedJob) *int64 {
	if job.LocationID == nil {
		return nil
	}
	return s.metroOf[*job.LocationID]
}

func (s *Snapshot) fallbackMedian(m map[int64]float64, id int64) float64 {
	if v, ok := m[id]; ok {
		return v
	}
	return s.globalMedian
}

func median(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	sorted := append([]float64(nil), vals...)
	sort.Float64s(sorted)
	return quantileSorted(sorted, 0.5)
}
