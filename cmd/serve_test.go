package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/labor-atlas/internal/model"
	"github.com/sells-group/labor-atlas/internal/store"
)

func newTestServer(t *testing.T) (*httptest.Server, *store.SQLiteStore) {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))

	srv := httptest.NewServer(newRouter(st))
	t.Cleanup(srv.Close)
	return srv, st
}

func seedArchetype(t *testing.T, st *store.SQLiteStore) model.Archetype {
	t.Helper()
	ctx := context.Background()

	src := model.Source{Name: "state_payroll", Category: model.CategoryPayroll, Tier: model.TierA, Weight: 0.95}
	require.NoError(t, st.UpsertSource(ctx, &src))
	role := model.CanonicalRole{Name: "Software Engineer"}
	require.NoError(t, st.UpsertRole(ctx, &role))
	co := model.Company{Name: "Acme", NormalizedName: "ACME"}
	require.NoError(t, st.CreateCompany(ctx, &co))

	raw := model.RawRecord{SourceID: src.ID, NaturalKey: "k1", RawCompany: "Acme"}
	_, err := st.UpsertRawRecord(ctx, &raw)
	require.NoError(t, err)
	job := model.ObservedJob{
		RawRecordID: raw.ID, CompanyID: co.ID, RoleID: role.ID,
		Seniority: model.SenioritySenior, SourceID: src.ID, ObservedAt: time.Now().UTC(),
	}
	_, err = st.UpsertObservedJob(ctx, &job)
	require.NoError(t, err)

	a := model.Archetype{
		CompanyID: co.ID, RoleID: role.ID, Seniority: model.SenioritySenior,
		Type: model.RecordObserved, Confidence: 0.7,
	}
	require.NoError(t, st.UpsertArchetype(ctx, &a))
	require.NoError(t, st.ReplaceEvidence(ctx, a.ID, []model.ArchetypeEvidence{
		{ObservedJobID: &job.ID, Weight: src.Weight},
	}))
	return a
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	return resp.StatusCode
}

func TestServe_Health(t *testing.T) {
	srv, _ := newTestServer(t)

	var body map[string]string
	code := getJSON(t, srv.URL+"/health", &body)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body["status"])
}

func TestServe_ListArchetypes(t *testing.T) {
	srv, st := newTestServer(t)
	a := seedArchetype(t, st)

	var body struct {
		Archetypes []model.Archetype `json:"archetypes"`
	}
	code := getJSON(t, srv.URL+"/archetypes?record_type=observed", &body)
	require.Equal(t, http.StatusOK, code)
	require.Len(t, body.Archetypes, 1)
	got := body.Archetypes[0]
	assert.Equal(t, a.ID, got.ID)
	assert.Equal(t, model.RecordObserved, got.Type)
	assert.Equal(t, 0.7, got.Confidence)

	// No inferred records exist yet.
	code = getJSON(t, srv.URL+"/archetypes?record_type=inferred", &body)
	require.Equal(t, http.StatusOK, code)
	assert.Empty(t, body.Archetypes)
}

func TestServe_ListEvidence(t *testing.T) {
	srv, st := newTestServer(t)
	a := seedArchetype(t, st)

	var body struct {
		ArchetypeID int64                     `json:"archetype_id"`
		Evidence    []model.ArchetypeEvidence `json:"evidence"`
	}
	code := getJSON(t, srv.URL+"/archetypes/"+itoa64(a.ID)+"/evidence", &body)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, a.ID, body.ArchetypeID)
	require.Len(t, body.Evidence, 1)
	assert.NotNil(t, body.Evidence[0].ObservedJobID)
}

func TestServe_EvidenceBadID(t *testing.T) {
	srv, _ := newTestServer(t)

	var body map[string]string
	code := getJSON(t, srv.URL+"/archetypes/nope/evidence", &body)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestServe_QualityReport(t *testing.T) {
	srv, st := newTestServer(t)
	seedArchetype(t, st)

	var body struct {
		Counts struct {
			Archetypes int64 `json:"archetypes"`
		} `json:"counts"`
		Coverage float64 `json:"coverage"`
	}
	code := getJSON(t, srv.URL+"/quality", &body)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, int64(1), body.Counts.Archetypes)
	assert.Equal(t, 1.0, body.Coverage)
}
