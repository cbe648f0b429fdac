package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/labor-atlas/internal/model"
	"github.com/sells-group/labor-atlas/internal/resolve"
	"github.com/sells-group/labor-atlas/internal/store"
)

var (
	queryCompany   string
	queryMetro     string
	queryRole      string
	querySeniority string
	queryType      string
	queryJSON      bool
	queryLimit     int
	queryOffset    int
)

// queryResult pairs an archetype with its provenance, so output always
// carries the observed/inferred tag and the evidence behind the numbers.
type queryResult struct {
	Archetype model.Archetype           `json:"archetype"`
	Evidence  []model.ArchetypeEvidence `json:"evidence"`
}

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Query archetype records",
	Long:  "Returns archetypes matching the filters, wildcards where omitted. Every record carries its observed/inferred tag, confidence breakdown, and evidence references.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		filter, err := buildArchetypeFilter(ctx, st)
		if err != nil {
			return err
		}

		archetypes, err := st.QueryArchetypes(ctx, *filter)
		if err != nil {
			return err
		}
		if len(archetypes) == 0 {
			fmt.Fprintln(os.Stderr, "No archetypes match.")
			return nil
		}

		results := make([]queryResult, 0, len(archetypes))
		for _, a := range archetypes {
			ev, err := st.ListEvidence(ctx, a.ID)
			if err != nil {
				return err
			}
			results = append(results, queryResult{Archetype: a, Evidence: ev})
		}

		if queryJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(results)
		}
		return formatResults(os.Stdout, results)
	},
}

func buildArchetypeFilter(ctx context.Context, st store.Store) (*store.ArchetypeFilter, error) {
	filter := &store.ArchetypeFilter{
		Seniority: model.Seniority(querySeniority),
		Type:      model.RecordType(queryType),
		Limit:     queryLimit,
		Offset:    queryOffset,
	}

	if queryCompany != "" {
		co, err := st.GetCompanyByNormalizedName(ctx, resolve.NormalizeCompany(queryCompany))
		if err != nil {
			return nil, err
		}
		if co == nil {
			return nil, eris.Errorf("company %q not found", queryCompany)
		}
		filter.CompanyID = co.ID
	}

	if queryRole != "" {
		roles, err := st.ListRoles(ctx)
		if err != nil {
			return nil, err
		}
		for _, r := range roles {
			if strings.EqualFold(r.Name, queryRole) {
				filter.RoleID = r.ID
				break
			}
		}
		if filter.RoleID == 0 {
			return nil, eris.Errorf("role %q not found", queryRole)
		}
	}

	if queryMetro != "" {
		metros, err := st.ListMetros(ctx)
		if err != nil {
			return nil, err
		}
		for _, m := range metros {
			if strings.EqualFold(m.Name, queryMetro) {
				id := m.ID
				filter.MetroID = &id
				break
			}
		}
		if filter.MetroID == nil {
			return nil, eris.Errorf("metro %q not found", queryMetro)
		}
	}

	return filter, nil
}

func formatResults(w *os.File, results []queryResult) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCOMPANY\tROLE\tSENIORITY\tTYPE\tSALARY P50\tHEADCOUNT P50\tCONFIDENCE\tEXIST PROB\tEVIDENCE")
	for _, r := range results {
		a := r.Archetype
		fmt.Fprintf(tw, "%d\t%d\t%d\t%s\t%s\t%s\t%s\t%.2f\t%s\t%d\n",
			a.ID, a.CompanyID, a.RoleID, a.Seniority, a.Type,
			fmtMoney(a.SalaryP50), fmtCount(a.HeadcountP50),
			a.Confidence, fmtProb(a.ExistenceProbability), len(r.Evidence))
	}
	return tw.Flush()
}

func fmtMoney(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("$%.0f", *v)
}

func fmtCount(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.1f", *v)
}

func fmtProb(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.2f", *v)
}

func init() {
	queryCmd.Flags().StringVar(&queryCompany, "company", "", "company name filter")
	queryCmd.Flags().StringVar(&queryMetro, "metro", "", "metro area name filter")
	queryCmd.Flags().StringVar(&queryRole, "role", "", "canonical role name filter")
	queryCmd.Flags().StringVar(&querySeniority, "seniority", "", "seniority level filter")
	queryCmd.Flags().StringVar(&queryType, "type", "", "record type filter: observed or inferred")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "emit JSON with full evidence")
	queryCmd.Flags().IntVar(&queryLimit, "limit", 100, "maximum records")
	queryCmd.Flags().IntVar(&queryOffset, "offset", 0, "pagination offset")
	rootCmd.AddCommand(queryCmd)
}
