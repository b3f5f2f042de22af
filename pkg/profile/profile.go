// Package profile defines the canonical description of an AI system under
// assessment. A profile is immutable once submitted for an assessment run;
// corrections produce a new versioned profile rather than mutating the old one.
package profile

import (
	"fmt"
	"sort"
	"strings"
)

// InteractionMode describes how the system meets its users.
type InteractionMode string

const (
	InteractionDirect         InteractionMode = "direct_user_facing"
	InteractionDirectCustomer InteractionMode = "direct_customer_facing"
	InteractionIndirect       InteractionMode = "indirect"
	InteractionInternal       InteractionMode = "internal_only"
)

// DecisionImpact categorizes the consequence of the system's outputs.
type DecisionImpact string

const (
	ImpactAutomatedDecision DecisionImpact = "automated_decision"
	ImpactSignificant       DecisionImpact = "significant_impact"
	ImpactLegal             DecisionImpact = "legal_consequences"
	ImpactServiceDelivery   DecisionImpact = "service_delivery"
	ImpactAdvisory          DecisionImpact = "advisory_only"
)

// OversightLevel describes the degree of human control over system decisions.
type OversightLevel string

const (
	OversightNone     OversightLevel = "none"
	OversightMinimal  OversightLevel = "minimal"
	OversightModerate OversightLevel = "moderate"
	OversightFull     OversightLevel = "full_review"
)

// AISystemProfile is the immutable input to an assessment run.
type AISystemProfile struct {
	ID                string          `json:"id" yaml:"id"`
	Version           int             `json:"version" yaml:"version"`
	Name              string          `json:"name,omitempty" yaml:"name,omitempty"`
	Purpose           string          `json:"purpose" yaml:"purpose"`
	Sector            string          `json:"sector" yaml:"sector"`
	InteractionMode   InteractionMode `json:"interaction_mode" yaml:"interaction_mode"`
	DecisionImpact    DecisionImpact  `json:"decision_impact" yaml:"decision_impact"`
	DataTypes         []string        `json:"data_types" yaml:"data_types"`
	DeploymentContext string          `json:"deployment_context" yaml:"deployment_context"`
	UseCases          []string        `json:"use_cases,omitempty" yaml:"use_cases,omitempty"`
	RealTime          bool            `json:"real_time" yaml:"real_time"`
	HumanOversight    OversightLevel  `json:"human_oversight,omitempty" yaml:"human_oversight,omitempty"`
}

// IncompleteProfileError names the required attributes missing from a
// submitted profile. Callers get the full list, not just the first miss.
type IncompleteProfileError struct {
	Missing []string
}

func (e *IncompleteProfileError) Error() string {
	return fmt.Sprintf("incomplete profile: missing required attributes: %s", strings.Join(e.Missing, ", "))
}

// Validate checks that every required attribute is populated. It returns an
// *IncompleteProfileError listing all missing fields, or nil.
func (p *AISystemProfile) Validate() error {
	var missing []string
	if p.ID == "" {
		missing = append(missing, "id")
	}
	if p.Purpose == "" {
		missing = append(missing, "purpose")
	}
	if p.Sector == "" {
		missing = append(missing, "sector")
	}
	if p.InteractionMode == "" {
		missing = append(missing, "interaction_mode")
	}
	if p.DecisionImpact == "" {
		missing = append(missing, "decision_impact")
	}
	if len(p.DataTypes) == 0 {
		missing = append(missing, "data_types")
	}
	if p.DeploymentContext == "" {
		missing = append(missing, "deployment_context")
	}
	if len(missing) > 0 {
		return &IncompleteProfileError{Missing: missing}
	}
	return nil
}

// NextVersion returns a copy of the profile with the version bumped.
// Used when a correction supersedes a submitted profile.
func (p *AISystemProfile) NextVersion() AISystemProfile {
	next := *p
	next.DataTypes = append([]string(nil), p.DataTypes...)
	next.UseCases = append([]string(nil), p.UseCases...)
	next.Version = p.Version + 1
	return next
}

// HasDataType reports whether the profile declares the given data type.
func (p *AISystemProfile) HasDataType(dt string) bool {
	for _, d := range p.DataTypes {
		if d == dt {
			return true
		}
	}
	return false
}

// Attributes flattens the profile into the map shape consumed by rule
// predicates. Slices are sorted so the representation is stable.
func (p *AISystemProfile) Attributes() map[string]any {
	dataTypes := append([]string(nil), p.DataTypes...)
	sort.Strings(dataTypes)
	useCases := append([]string(nil), p.UseCases...)
	sort.Strings(useCases)

	return map[string]any{
		"id":                 p.ID,
		"version":            p.Version,
		"name":               p.Name,
		"purpose":            p.Purpose,
		"sector":             p.Sector,
		"interaction_mode":   string(p.InteractionMode),
		"decision_impact":    string(p.DecisionImpact),
		"data_types":         dataTypes,
		"deployment_context": p.DeploymentContext,
		"use_cases":          useCases,
		"real_time":          p.RealTime,
		"human_oversight":    string(p.HumanOversight),
	}
}
