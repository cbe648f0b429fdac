package resolve

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/labor-atlas/internal/model"
)

type fakeMergeStore struct {
	companies map[int64]*model.Company
	archetypes map[int64][]model.ArchetypeKey
	repointed  [][2]int64
	deleted    []int64
	audits     []model.AuditEntry
}

func (f *fakeMergeStore) GetCompany(_ context.Context, id int64) (*model.Company, error) {
	return f.companies[id], nil
}

func (f *fakeMergeStore) RepointCompanyRefs(_ context.Context, from, to int64) error {
	f.repointed = append(f.repointed, [2]int64{from, to})
	return nil
}

func (f *fakeMergeStore) DeleteArchetypesForCompany(_ context.Context, companyID int64) ([]model.ArchetypeKey, error) {
	keys := f.archetypes[companyID]
	delete(f.archetypes, companyID)
	return keys, nil
}

func (f *fakeMergeStore) DeleteCompany(_ context.Context, id int64) error {
	delete(f.companies, id)
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeMergeStore) AppendAudit(_ context.Context, e *model.AuditEntry) error {
	f.audits = append(f.audits, *e)
	return nil
}

func TestMergeCompanies(t *testing.T) {
	metro := int64(4)
	st := &fakeMergeStore{
		companies: map[int64]*model.Company{
			1: {ID: 1, Name: "Acme"},
			2: {ID: 2, Name: "Acme Corp"},
		},
		archetypes: map[int64][]model.ArchetypeKey{
			2: {{CompanyID: 2, MetroID: &metro, RoleID: 9, Seniority: model.SenioritySenior}},
		},
	}

	keys, err := MergeCompanies(context.Background(), st, 1, 2)
	require.NoError(t, err)

	require.Len(t, keys, 1)
	assert.Equal(t, int64(1), keys[0].CompanyID, "stale keys re-keyed to survivor")
	assert.Equal(t, [][2]int64{{2, 1}}, st.repointed)
	assert.Equal(t, []int64{2}, st.deleted)
	require.Len(t, st.audits, 1)
	assert.Equal(t, "merge", st.audits[0].Action)
}

func TestMergeCompanies_SelfMerge(t *testing.T) {
	st := &fakeMergeStore{companies: map[int64]*model.Company{1: {ID: 1}}}
	_, err := MergeCompanies(context.Background(), st, 1, 1)
	assert.Error(t, err)
}

func TestMergeCompanies_MissingCompany(t *testing.T) {
	st := &fakeMergeStore{companies: map[int64]*model.Company{1: {ID: 1}}}
	_, err := MergeCompanies(context.Background(), st, 1, 99)
	assert.Error(t, err)
}
