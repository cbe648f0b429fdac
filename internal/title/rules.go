package title

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/labor-atlas/internal/model"
)

// DefaultRoles returns the seed role taxonomy with SOC occupation codes.
// The set is append-only: extending it means adding entries plus matching
// rules, never editing existing ones in place.
func DefaultRoles() []model.CanonicalRole {
	return []model.CanonicalRole{
		{ID: 1, Name: "Software Engineer", OccupationCode: "15-1252", Family: "engineering", Category: "tech"},
		{ID: 2, Name: "Data Scientist", OccupationCode: "15-2051", Family: "data", Category: "tech"},
		{ID: 3, Name: "Data Engineer", OccupationCode: "15-1243", Family: "data", Category: "tech"},
		{ID: 4, Name: "Data Analyst", OccupationCode: "15-2041", Family: "data", Category: "tech"},
		{ID: 5, Name: "DevOps Engineer", OccupationCode: "15-1244", Family: "engineering", Category: "tech"},
		{ID: 6, Name: "QA Engineer", OccupationCode: "15-1253", Family: "engineering", Category: "tech"},
		{ID: 7, Name: "Security Engineer", OccupationCode: "15-1212", Family: "engineering", Category: "tech"},
		{ID: 8, Name: "Product Manager", OccupationCode: "11-2021", Family: "product", Category: "business"},
		{ID: 9, Name: "Product Designer", OccupationCode: "27-1021", Family: "design", Category: "creative"},
		{ID: 10, Name: "Accountant", OccupationCode: "13-2011", Family: "finance", Category: "business"},
		{ID: 11, Name: "Financial Analyst", OccupationCode: "13-2051", Family: "finance", Category: "business"},
		{ID: 12, Name: "Recruiter", OccupationCode: "13-1071", Family: "people", Category: "business"},
		{ID: 13, Name: "HR Generalist", OccupationCode: "13-1071", Family: "people", Category: "business"},
		{ID: 14, Name: "Sales Representative", OccupationCode: "41-4012", Family: "sales", Category: "business"},
		{ID: 15, Name: "Account Executive", OccupationCode: "41-3091", Family: "sales", Category: "business"},
		{ID: 16, Name: "Marketing Manager", OccupationCode: "11-2021", Family: "marketing", Category: "business"},
		{ID: 17, Name: "Customer Support Specialist", OccupationCode: "43-4051", Family: "support", Category: "business"},
		{ID: 18, Name: "Operations Manager", OccupationCode: "11-1021", Family: "operations", Category: "business"},
		{ID: 19, Name: "Attorney", OccupationCode: "23-1011", Family: "legal", Category: "professional"},
		{ID: 20, Name: "Registered Nurse", OccupationCode: "29-1141", Family: "healthcare", Category: "professional"},
	}
}

// DefaultRules returns the seed title-mapping rule table. Priority bands:
// 10 for specific multi-word patterns, 20 for common variants, 30 for
// broad catch-alls. Within a band, first-inserted wins ties.
func DefaultRules() []model.TitleRule {
	return []model.TitleRule{
		// Specific patterns first.
		{ID: 1, Pattern: `software\s+(development\s+)?engineer|software\s+developer|\bswe\b`, RoleID: 1, Confidence: 0.95, Priority: 10},
		{ID: 2, Pattern: `(backend|back.end|frontend|front.end|full.?stack|mobile|ios|android)\s+(engineer|developer)`, RoleID: 1, Confidence: 0.9, Priority: 10},
		{ID: 3, Pattern: `machine\s+learning\s+(engineer|scientist)|ml\s+engineer`, RoleID: 2, Confidence: 0.9, Priority: 10},
		{ID: 4, Pattern: `data\s+scientist`, RoleID: 2, Confidence: 0.95, Priority: 10},
		{ID: 5, Pattern: `data\s+engineer|etl\s+developer`, RoleID: 3, Confidence: 0.95, Priority: 10},
		{ID: 6, Pattern: `data\s+analyst|analytics\s+analyst`, RoleID: 4, Confidence: 0.9, Priority: 10},
		{ID: 7, Pattern: `devops|site\s+reliability|platform\s+engineer|\bsre\b`, RoleID: 5, Confidence: 0.9, Priority: 10},
		{ID: 8, Pattern: `(qa|quality\s+assurance|test)\s+(engineer|analyst)|sdet`, RoleID: 6, Confidence: 0.9, Priority: 10},
		{ID: 9, Pattern: `security\s+(engineer|analyst)|infosec`, RoleID: 7, Confidence: 0.9, Priority: 10},
		{ID: 10, Pattern: `product\s+manager|product\s+owner`, RoleID: 8, Confidence: 0.95, Priority: 10},
		{ID: 11, Pattern: `(product|ux|ui|visual)\s+designer`, RoleID: 9, Confidence: 0.9, Priority: 10},
		{ID: 12, Pattern: `financial\s+analyst`, RoleID: 11, Confidence: 0.95, Priority: 10},
		{ID: 13, Pattern: `account\s+executive`, RoleID: 15, Confidence: 0.95, Priority: 10},
		{ID: 14, Pattern: `(technical\s+)?recruiter|talent\s+acquisition`, RoleID: 12, Confidence: 0.9, Priority: 10},
		{ID: 15, Pattern: `human\s+resources|hr\s+(generalist|specialist|coordinator)`, RoleID: 13, Confidence: 0.85, Priority: 10},
		{ID: 16, Pattern: `marketing\s+(manager|specialist|coordinator)`, RoleID: 16, Confidence: 0.85, Priority: 10},
		{ID: 17, Pattern: `customer\s+(support|success|service)`, RoleID: 17, Confidence: 0.85, Priority: 10},
		{ID: 18, Pattern: `operations\s+manager`, RoleID: 18, Confidence: 0.9, Priority: 10},
		{ID: 19, Pattern: `attorney|lawyer|legal\s+counsel`, RoleID: 19, Confidence: 0.9, Priority: 10},
		{ID: 20, Pattern: `registered\s+nurse|\brn\b`, RoleID: 20, Confidence: 0.9, Priority: 10},

		// Common variants.
		{ID: 21, Pattern: `(web|application|systems)\s+developer`, RoleID: 1, Confidence: 0.8, Priority: 20},
		{ID: 22, Pattern: `accountant|accounting\s+(specialist|clerk)`, RoleID: 10, Confidence: 0.85, Priority: 20},
		{ID: 23, Pattern: `sales\s+(rep|representative|associate)`, RoleID: 14, Confidence: 0.85, Priority: 20},
		{ID: 24, Pattern: `business\s+analyst`, RoleID: 4, Confidence: 0.7, Priority: 20},

		// Broad catch-alls; low confidence on purpose so borderline
		// titles land in the review queue instead of the dataset.
		{ID: 25, Pattern: `engineer`, RoleID: 1, Confidence: 0.45, Priority: 30},
		{ID: 26, Pattern: `analyst`, RoleID: 4, Confidence: 0.4, Priority: 30},
		{ID: 27, Pattern: `sales`, RoleID: 14, Confidence: 0.4, Priority: 30},
		{ID: 28, Pattern: `designer`, RoleID: 9, Confidence: 0.4, Priority: 30},
	}
}

// RoleNameByDefaultID resolves a DefaultRules role reference to its
// taxonomy name, so seeded rules can be remapped onto the ids the store
// actually assigned.
func RoleNameByDefaultID(id int64) (string, bool) {
	for _, r := range DefaultRoles() {
		if r.ID == id {
			return r.Name, true
		}
	}
	return "", false
}

// ruleFile is the YAML shape for an external rule table.
type ruleFile struct {
	Rules []struct {
		ID         int64   `yaml:"id"`
		Pattern    string  `yaml:"pattern"`
		RoleID     int64   `yaml:"role_id"`
		Seniority  string  `yaml:"seniority,omitempty"`
		Confidence float64 `yaml:"confidence"`
		Priority   int     `yaml:"priority"`
	} `yaml:"rules"`
}

// LoadRules reads a rule table from a YAML file. Rules are reference
// data loaded at pipeline start; extending the table means appending
// entries and re-running ingestion, not editing rules mid-run.
func LoadRules(path string) ([]model.TitleRule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "title: read rules file %s", path)
	}

	var rf ruleFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, eris.Wrapf(err, "title: parse rules file %s", path)
	}

	rules := make([]model.TitleRule, 0, len(rf.Rules))
	for _, r := range rf.Rules {
		if r.Pattern == "" || r.RoleID == 0 {
			return nil, eris.Errorf("title: rule %d missing pattern or role_id", r.ID)
		}
		rules = append(rules, model.TitleRule{
			ID:         r.ID,
			Pattern:    r.Pattern,
			RoleID:     r.RoleID,
			Seniority:  model.Seniority(r.Seniority),
			Confidence: r.Confidence,
			Priority:   r.Priority,
		})
	}
	return rules, nil
}
