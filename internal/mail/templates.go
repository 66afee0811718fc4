package mail

import (
	"bytes"
	"fmt"
	"html/template"
	"time"

	"github.com/consentlab/takeout-agent/internal/models"
)

var participantTmpl = template.Must(template.New("participant").Parse(`<html>
<body>
<p>Processing finished for participant <b>{{.StudyID}}</b>.</p>
<p>Log trail, newest first:</p>
<ul>
{{range .Logs}}<li>{{.}}</li>
{{end}}</ul>
</body>
</html>
`))

type participantData struct {
	StudyID string
	Logs    []string
}

// RenderParticipant renders the per-consent notification body. Log lines
// are included newest first.
func RenderParticipant(consent *models.Consent, logs []models.LogEntry) (string, error) {
	lines := make([]string, 0, len(logs))
	for i := len(logs) - 1; i >= 0; i-- {
		lines = append(lines, logs[i].String())
	}

	var buf bytes.Buffer
	err := participantTmpl.Execute(&buf, participantData{
		StudyID: consent.StudyID,
		Logs:    lines,
	})
	if err != nil {
		return "", fmt.Errorf("rendering notification failed: %w", err)
	}
	return buf.String(), nil
}

var digestTmpl = template.Must(template.New("digest").Parse(`<html>
<body>
<h3>Archive agent digest for {{.Today}}</h3>
<p>{{.ConsentsAdded}} consent(s) added, {{.Searches}} search artifact(s), {{.Locations}} location artifact(s).</p>
<table border="1" cellpadding="4">
<tr><th>study id</th><th>consented</th><th>status</th><th>search</th><th>location</th></tr>
{{range .Consents}}<tr><td>{{.StudyID}}</td><td>{{.ConsentDT.Format "2006-01-02"}}</td><td>{{.Status}}</td><td>{{.SearchSID}}</td><td>{{.LocationSID}}</td></tr>
{{end}}</table>
</body>
</html>
`))

// Digest summarizes one calendar day of processing.
type Digest struct {
	Today         string
	ConsentsAdded int
	Searches      int
	Locations     int
	Consents      []models.Consent
}

// BuildDigest summarizes the consents added on day. Categories count as
// successful only when the SID column names a real artifact.
func BuildDigest(day time.Time, consents []models.Consent) Digest {
	d := Digest{
		Today:    day.Format("January 02, 2006"),
		Consents: consents,
	}
	d.ConsentsAdded = len(consents)
	for _, c := range consents {
		if models.HasArtifact(c.SearchSID) {
			d.Searches++
		}
		if models.HasArtifact(c.LocationSID) {
			d.Locations++
		}
	}
	return d
}

// RenderDigest renders the daily digest body.
func RenderDigest(d Digest) (string, error) {
	var buf bytes.Buffer
	if err := digestTmpl.Execute(&buf, d); err != nil {
		return "", fmt.Errorf("rendering digest failed: %w", err)
	}
	return buf.String(), nil
}
