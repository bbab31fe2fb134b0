// Package extract turns SAM.gov opportunity notices into contact and
// organization records for the research pipeline.
package extract

import (
	"strings"

	"github.com/sells-group/fedresearch-cli/internal/contacts"
	"github.com/sells-group/fedresearch-cli/internal/model"
	"github.com/sells-group/fedresearch-cli/pkg/sam"
)

// Records extracts the people and organizations worth researching from one
// page of opportunities. Points of contact become contact records tied to the
// notice's agency; awardees become organization records carrying the contract
// reference. Duplicate collapsing happens downstream in the contacts store.
func Records(opps []sam.Opportunity) []contacts.Record {
	var out []contacts.Record

	for _, opp := range opps {
		agency := cleanAgency(opp.Agency())
		contract := contractRef(opp)

		for _, poc := range opp.PointOfContact {
			name := strings.TrimSpace(poc.FullName)
			if name == "" {
				name = nameFromEmail(poc.Email)
			}
			if name == "" {
				continue
			}
			rec := contacts.Record{
				Kind:     model.KindContact,
				Name:     name,
				Title:    strings.TrimSpace(poc.Title),
				Agency:   agency,
				Email:    strings.TrimSpace(poc.Email),
				Phone:    strings.TrimSpace(poc.Phone),
				Priority: contactPriority(poc),
			}
			if agency != "" {
				rec.Agencies = []string{agency}
			}
			if contract != "" {
				rec.Contracts = []string{contract}
			}
			out = append(out, rec)
		}

		if opp.Award != nil && opp.Award.Awardee != nil {
			name := strings.TrimSpace(opp.Award.Awardee.Name)
			if name == "" {
				continue
			}
			rec := contacts.Record{
				Kind:         model.KindOrganization,
				Name:         name,
				Organization: name,
				Agency:       agency,
				Priority:     1,
			}
			if agency != "" {
				rec.Agencies = []string{agency}
			}
			if contract != "" {
				rec.Contracts = []string{contract}
			}
			out = append(out, rec)
		}
	}

	return out
}

// contractRef picks the most specific identifier for the notice.
func contractRef(opp sam.Opportunity) string {
	if opp.SolicitationNumber != "" {
		return opp.SolicitationNumber
	}
	return opp.NoticeID
}

// cleanAgency keeps only the department level of SAM.gov's dotted
// "DEPT.SUBAGENCY.OFFICE" path name.
func cleanAgency(path string) string {
	path = strings.TrimSpace(path)
	if idx := strings.Index(path, "."); idx > 0 {
		path = path[:idx]
	}
	return path
}

// contactPriority ranks primary contacts above secondary ones.
func contactPriority(poc sam.Contact) int {
	if strings.EqualFold(poc.Type, "primary") {
		return 1
	}
	return 2
}

// nameFromEmail recovers a display name from a "first.last@agency.gov"
// address when the notice omits the contact's name.
func nameFromEmail(email string) string {
	email = strings.TrimSpace(email)
	at := strings.Index(email, "@")
	if at <= 0 {
		return ""
	}
	local := email[:at]

	parts := strings.FieldsFunc(local, func(r rune) bool {
		return r == '.' || r == '_' || r == '-'
	})
	var words []string
	for _, p := range parts {
		if p == "" || strings.IndexFunc(p, isDigit) >= 0 {
			continue
		}
		words = append(words, strings.ToUpper(p[:1])+strings.ToLower(p[1:]))
	}
	if len(words) == 0 {
		return ""
	}
	return strings.Join(words, " ")
}

func isDigit(r rune) bool { return r >= '0' && r <= '9' }
