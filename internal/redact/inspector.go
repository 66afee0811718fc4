// Package redact removes personally identifying text from search titles
// before they leave the pipeline. Titles are sent to a content inspection
// service; every finding's quoted span is substituted with the name of the
// information type that matched it.
package redact

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// Finding is one sensitive span detected in a piece of text.
type Finding struct {
	Quote      string `json:"quote"`
	InfoType   string `json:"infoType"`
	Likelihood string `json:"likelihood"`
}

// Inspector detects sensitive spans in free text.
type Inspector interface {
	Inspect(ctx context.Context, text string) ([]Finding, error)
}

// RestInspector calls a content inspection endpoint over HTTP. The request
// shape follows the inspect-content API: a project scoped parent, a fixed
// inspect configuration, and a single text item per call.
type RestInspector struct {
	http          *resty.Client
	projectID     string
	infoTypes     []string
	minLikelihood string
}

func NewRestInspector(endpoint, projectID string, infoTypes []string, minLikelihood string, timeout time.Duration) *RestInspector {
	return &RestInspector{
		http:          resty.New().SetBaseURL(endpoint).SetTimeout(timeout),
		projectID:     projectID,
		infoTypes:     infoTypes,
		minLikelihood: minLikelihood,
	}
}

type inspectRequest struct {
	InspectConfig inspectConfig `json:"inspectConfig"`
	Item          inspectItem   `json:"item"`
}

type inspectConfig struct {
	InfoTypes     []namedInfoType `json:"infoTypes"`
	MinLikelihood string          `json:"minLikelihood"`
	IncludeQuote  bool            `json:"includeQuote"`
}

type namedInfoType struct {
	Name string `json:"name"`
}

type inspectItem struct {
	Value string `json:"value"`
}

type inspectResponse struct {
	Result struct {
		Findings []struct {
			Quote    string `json:"quote"`
			InfoType struct {
				Name string `json:"name"`
			} `json:"infoType"`
			Likelihood string `json:"likelihood"`
		} `json:"findings"`
	} `json:"result"`
}

func (r *RestInspector) Inspect(ctx context.Context, text string) ([]Finding, error) {
	infoTypes := make([]namedInfoType, 0, len(r.infoTypes))
	for _, name := range r.infoTypes {
		infoTypes = append(infoTypes, namedInfoType{Name: name})
	}

	result := &inspectResponse{}
	resp, err := r.http.R().
		SetContext(ctx).
		SetBody(&inspectRequest{
			InspectConfig: inspectConfig{
				InfoTypes:     infoTypes,
				MinLikelihood: r.minLikelihood,
				IncludeQuote:  true,
			},
			Item: inspectItem{Value: text},
		}).
		SetResult(result).
		Post(fmt.Sprintf("/v2/projects/%s/content:inspect", r.projectID))
	if err != nil {
		return nil, fmt.Errorf("content inspection failed: %w", err)
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("content inspection failed with status %d", resp.StatusCode())
	}

	findings := make([]Finding, 0, len(result.Result.Findings))
	for _, f := range result.Result.Findings {
		findings = append(findings, Finding{
			Quote:      f.Quote,
			InfoType:   f.InfoType.Name,
			Likelihood: f.Likelihood,
		})
	}
	return findings, nil
}
