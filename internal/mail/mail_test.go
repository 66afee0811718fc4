package mail

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/consentlab/takeout-agent/internal/models"
)

type fakeMailer struct {
	from    string
	to      []string
	subject string
	body    string
	err     error
}

func (f *fakeMailer) Send(_ context.Context, from string, to []string, subject, htmlBody string) error {
	f.from, f.to, f.subject, f.body = from, to, subject, htmlBody
	return f.err
}

func intPtr(v int64) *int64 { return &v }

func TestRenderParticipant_NewestFirst(t *testing.T) {
	consent := &models.Consent{StudyID: "abc"}
	logs := []models.LogEntry{
		{ID: 1, CID: intPtr(1), TS: time.Date(2023, 1, 2, 10, 0, 0, 0, time.UTC), Msg: "starting task"},
		{ID: 2, CID: intPtr(1), TS: time.Date(2023, 1, 2, 10, 5, 0, 0, time.UTC), Msg: "task complete"},
	}

	body, err := RenderParticipant(consent, logs)
	require.NoError(t, err)

	assert.Contains(t, body, "abc")
	assert.Contains(t, body, "starting task")
	assert.Less(t, strings.Index(body, "task complete"), strings.Index(body, "starting task"))
}

func TestBuildDigest_CountsOnlyRealArtifacts(t *testing.T) {
	day := time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)
	consents := []models.Consent{
		{StudyID: "a", SearchSID: "search/a.csv", LocationSID: "gps/a.csv"},
		{StudyID: "b", SearchSID: models.SIDError, LocationSID: "gps/b.csv"},
		{StudyID: "c", SearchSID: models.SIDNotFound, LocationSID: models.SIDNotFound},
	}

	d := BuildDigest(day, consents)
	assert.Equal(t, "January 02, 2023", d.Today)
	assert.Equal(t, 3, d.ConsentsAdded)
	assert.Equal(t, 1, d.Searches)
	assert.Equal(t, 2, d.Locations)
}

func TestNotifier_SendFailurePropagates(t *testing.T) {
	m := &fakeMailer{err: errors.New("rejected")}
	n := NewNotifier(m, "study@example.org", []string{"ops@example.org"}, "processed", "digest")

	err := n.NotifyProcessed(context.Background(), &models.Consent{StudyID: "abc"}, nil)
	assert.Error(t, err)
}

func TestNotifier_SendsDigestWithDatedSubject(t *testing.T) {
	m := &fakeMailer{}
	n := NewNotifier(m, "study@example.org", []string{"ops@example.org"}, "processed", "daily digest")

	d := BuildDigest(time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC), nil)
	require.NoError(t, n.SendDigest(context.Background(), d))

	assert.Equal(t, "study@example.org", m.from)
	assert.Equal(t, []string{"ops@example.org"}, m.to)
	assert.Equal(t, "daily digest January 02, 2023", m.subject)
	assert.Contains(t, m.body, "0 consent(s) added")
}
