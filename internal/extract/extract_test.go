package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/fedresearch-cli/internal/model"
	"github.com/sells-group/fedresearch-cli/pkg/sam"
)

func TestRecordsContacts(t *testing.T) {
	opps := []sam.Opportunity{
		{
			NoticeID:           "n-1",
			SolicitationNumber: "47QTCA-26-R-0001",
			FullParentPathName: "GENERAL SERVICES ADMINISTRATION.FEDERAL ACQUISITION SERVICE",
			PointOfContact: []sam.Contact{
				{Type: "primary", FullName: "Jane Smith", Title: "Contracting Officer", Email: "jane.smith@gsa.gov", Phone: "202-555-0101"},
				{Type: "secondary", FullName: "Bob Lee", Email: "bob.lee@gsa.gov"},
			},
		},
	}

	recs := Records(opps)
	require.Len(t, recs, 2)

	assert.Equal(t, model.KindContact, recs[0].Kind)
	assert.Equal(t, "Jane Smith", recs[0].Name)
	assert.Equal(t, "Contracting Officer", recs[0].Title)
	assert.Equal(t, "GENERAL SERVICES ADMINISTRATION", recs[0].Agency)
	assert.Equal(t, []string{"47QTCA-26-R-0001"}, recs[0].Contracts)
	assert.Equal(t, 1, recs[0].Priority)

	assert.Equal(t, "Bob Lee", recs[1].Name)
	assert.Equal(t, 2, recs[1].Priority)
}

func TestRecordsAwardee(t *testing.T) {
	opps := []sam.Opportunity{
		{
			NoticeID:           "n-2",
			FullParentPathName: "DEPT OF DEFENSE.DEPT OF THE ARMY",
			Award: &sam.Award{
				Awardee: &sam.Awardee{Name: "Acme Federal LLC", UEI: "ABC123"},
			},
		},
	}

	recs := Records(opps)
	require.Len(t, recs, 1)
	assert.Equal(t, model.KindOrganization, recs[0].Kind)
	assert.Equal(t, "Acme Federal LLC", recs[0].Name)
	assert.Equal(t, "Acme Federal LLC", recs[0].Organization)
	assert.Equal(t, "DEPT OF DEFENSE", recs[0].Agency)
	assert.Equal(t, []string{"n-2"}, recs[0].Contracts)
	assert.Equal(t, 1, recs[0].Priority)
}

func TestRecordsNameFromEmail(t *testing.T) {
	opps := []sam.Opportunity{
		{
			NoticeID: "n-3",
			PointOfContact: []sam.Contact{
				{Type: "primary", Email: "maria.del-rio@va.gov"},
				{Type: "primary", Email: ""},
				{Type: "primary", Email: "noreply123@va.gov"},
			},
		},
	}

	recs := Records(opps)
	require.Len(t, recs, 1)
	assert.Equal(t, "Maria Del Rio", recs[0].Name)
}

func TestRecordsSkipsEmptyNotices(t *testing.T) {
	recs := Records([]sam.Opportunity{
		{NoticeID: "n-4"},
		{NoticeID: "n-5", Award: &sam.Award{Awardee: &sam.Awardee{Name: "  "}}},
	})
	assert.Empty(t, recs)
}
