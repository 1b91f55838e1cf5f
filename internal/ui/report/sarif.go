package report

import (
	"encoding/json"
	"io"

	"importcheck/internal/engine/resolver"
	"importcheck/internal/shared/version"
)

const (
	sarifSchema  = "https://schemastore.azurewebsites.net/schemas/json/sarif-2.1.0-rtm.5.json"
	sarifVersion = "2.1.0"
	toolName     = "importcheck"

	ruleIDUndefined = "IMP001"
	ruleIDExternal  = "IMP002"
)

type sarifReport struct {
	Schema  string     `json:"$schema"`
	Version string     `json:"version"`
	Runs    []sarifRun `json:"runs"`
}

type sarifRun struct {
	Tool    sarifTool     `json:"tool"`
	Results []sarifResult `json:"results"`
}

type sarifTool struct {
	Driver sarifDriver `json:"driver"`
}

type sarifDriver struct {
	Name    string      `json:"name"`
	Version string      `json:"version"`
	Rules   []sarifRule `json:"rules"`
}

type sarifRule struct {
	ID               string                 `json:"id"`
	Name             string                 `json:"name"`
	ShortDescription sarifMessage           `json:"shortDescription"`
	DefaultConfig    sarifRuleDefaultConfig `json:"defaultConfiguration"`
}

type sarifRuleDefaultConfig struct {
	Level string `json:"level"`
}

type sarifResult struct {
	RuleID    string          `json:"ruleId"`
	Level     string          `json:"level"`
	Message   sarifMessage    `json:"message"`
	Locations []sarifLocation `json:"locations,omitempty"`
}

type sarifMessage struct {
	Text string `json:"text"`
}

type sarifLocation struct {
	PhysicalLocation sarifPhysicalLocation `json:"physicalLocation"`
}

type sarifPhysicalLocation struct {
	ArtifactLocation sarifArtifactLocation `json:"artifactLocation"`
}

type sarifArtifactLocation struct {
	URI       string `json:"uri"`
	URIBaseID string `json:"uriBaseId"`
}

var sarifRules = []sarifRule{
	{
		ID:               ruleIDUndefined,
		Name:             "UndefinedLocalName",
		ShortDescription: sarifMessage{Text: "Import names something a project module does not define"},
		DefaultConfig:    sarifRuleDefaultConfig{Level: "error"},
	},
	{
		ID:               ruleIDExternal,
		Name:             "UnresolvedExternalImport",
		ShortDescription: sarifMessage{Text: "Import could not be resolved outside the project"},
		DefaultConfig:    sarifRuleDefaultConfig{Level: "error"},
	},
}

// GenerateSARIF builds a SARIF v2.1.0 document. File URIs are relative to
// the analysed root so reports stay shareable.
func GenerateSARIF(data Data) ([]byte, error) {
	results := make([]sarifResult, 0, len(data.Issues))
	for _, issue := range data.Issues {
		ruleID := ruleIDExternal
		if issue.Kind == resolver.IssueUndefined {
			ruleID = ruleIDUndefined
		}
		results = append(results, sarifResult{
			RuleID:  ruleID,
			Level:   "error",
			Message: sarifMessage{Text: issue.Message},
			Locations: []sarifLocation{{
				PhysicalLocation: sarifPhysicalLocation{
					ArtifactLocation: sarifArtifactLocation{
						URI:       relativeURI(data.Root, issue.File),
						URIBaseID: "%SRCROOT%",
					},
				},
			}},
		})
	}

	doc := sarifReport{
		Schema:  sarifSchema,
		Version: sarifVersion,
		Runs: []sarifRun{{
			Tool: sarifTool{Driver: sarifDriver{
				Name:    toolName,
				Version: version.Version,
				Rules:   sarifRules,
			}},
			Results: results,
		}},
	}
	return json.MarshalIndent(doc, "", "  ")
}

func WriteSARIF(w io.Writer, data Data) error {
	out, err := GenerateSARIF(data)
	if err != nil {
		return err
	}
	out = append(out, '\n')
	_, err = w.Write(out)
	return err
}
