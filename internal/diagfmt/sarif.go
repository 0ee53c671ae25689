package diagfmt

import (
	"encoding/json"
	"io"
	"sort"

	"monoc/internal/diag"
)

const (
	sarifSchema  = "https://json.schemastore.org/sarif-2.1.0.json"
	sarifVersion = "2.1.0"
)

type sarifLog struct {
	Schema  string     `json:"$schema"`
	Version string     `json:"version"`
	Runs    []sarifRun `json:"runs"`
}

type sarifRun struct {
	Tool        sarifTool         `json:"tool"`
	Invocations []sarifInvocation `json:"invocations,omitempty"`
	Results     []sarifResult     `json:"results"`
}

type sarifTool struct {
	Driver sarifDriver `json:"driver"`
}

type sarifDriver struct {
	Name    string      `json:"name"`
	Version string      `json:"version,omitempty"`
	Rules   []sarifRule `json:"rules"`
}

type sarifRule struct {
	ID               string       `json:"id"`
	ShortDescription sarifMessage `json:"shortDescription"`
}

type sarifInvocation struct {
	Arguments           []string `json:"arguments,omitempty"`
	ExecutionSuccessful bool     `json:"executionSuccessful"`
}

type sarifMessage struct {
	Text string `json:"text"`
}

type sarifResult struct {
	RuleID           string          `json:"ruleId"`
	Level            string          `json:"level"`
	Message          sarifMessage    `json:"message"`
	Locations        []sarifLocation `json:"locations,omitempty"`
	RelatedLocations []sarifLocation `json:"relatedLocations,omitempty"`
	Properties       map[string]any  `json:"properties,omitempty"`
}

type sarifLocation struct {
	PhysicalLocation *sarifPhysical `json:"physicalLocation,omitempty"`
	Message          *sarifMessage  `json:"message,omitempty"`
}

type sarifPhysical struct {
	ArtifactLocation sarifArtifact `json:"artifactLocation"`
	Region           sarifRegion   `json:"region"`
}

type sarifArtifact struct {
	URI string `json:"uri"`
}

type sarifRegion struct {
	ByteOffset uint32 `json:"byteOffset"`
	ByteLength uint32 `json:"byteLength"`
}

func sarifLevel(sev diag.Severity) string {
	switch sev {
	case diag.SevError:
		return "error"
	case diag.SevWarning:
		return "warning"
	default:
		return "note"
	}
}

// Sarif writes units as a single-run SARIF 2.1.0 log.
func Sarif(w io.Writer, units []Unit, meta SarifRunMeta) error {
	run := sarifRun{
		Tool:    sarifTool{Driver: sarifDriver{Name: meta.ToolName, Version: meta.ToolVersion}},
		Results: make([]sarifResult, 0),
	}
	rules := make(map[diag.Code]struct{})
	failed := false
	for _, u := range units {
		for i := range u.Diagnostics {
			d := &u.Diagnostics[i]
			rules[d.Code] = struct{}{}
			if d.Severity == diag.SevError {
				failed = true
			}
			res := sarifResult{
				RuleID:     d.Code.ID(),
				Level:      sarifLevel(d.Severity),
				Message:    sarifMessage{Text: d.Message},
				Properties: map[string]any{"module": u.Module},
			}
			if loc := makeLocation(d.Primary, u.Files, PathModeAuto); loc != nil {
				res.Locations = []sarifLocation{{PhysicalLocation: physical(loc)}}
			}
			for _, n := range d.Notes {
				rl := sarifLocation{Message: &sarifMessage{Text: n.Msg}}
				if loc := makeLocation(n.Span, u.Files, PathModeAuto); loc != nil {
					rl.PhysicalLocation = physical(loc)
				}
				res.RelatedLocations = append(res.RelatedLocations, rl)
			}
			run.Results = append(run.Results, res)
		}
	}

	codes := make([]diag.Code, 0, len(rules))
	for c := range rules {
		codes = append(codes, c)
	}
	sort.Slice(codes, func(i, j int) bool { return codes[i] < codes[j] })
	run.Tool.Driver.Rules = make([]sarifRule, 0, len(codes))
	for _, c := range codes {
		run.Tool.Driver.Rules = append(run.Tool.Driver.Rules, sarifRule{
			ID:               c.ID(),
			ShortDescription: sarifMessage{Text: c.Title()},
		})
	}
	if len(meta.InvocationArgs) > 0 {
		run.Invocations = []sarifInvocation{{Arguments: meta.InvocationArgs, ExecutionSuccessful: !failed}}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(sarifLog{Schema: sarifSchema, Version: sarifVersion, Runs: []sarifRun{run}})
}

func physical(loc *LocationJSON) *sarifPhysical {
	return &sarifPhysical{
		ArtifactLocation: sarifArtifact{URI: loc.File},
		Region:           sarifRegion{ByteOffset: loc.StartByte, ByteLength: loc.EndByte - loc.StartByte},
	}
}
