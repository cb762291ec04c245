// Package ipc defines the wire-level shape of the service/session IPC
// surface (spec.md §6): request/response DTOs with JSON tags, plus a
// transport-agnostic Bus contract. internal/ipc/localbus provides a
// minimal in-process implementation good enough to drive the seed-suite
// scenarios end-to-end without a real D-Bus/gRPC stack.
//
// Grounded on the teacher's internal/api handler/DTO split
// (response.go's envelope, handler_node.go's request/response structs),
// translated from HTTP+JSON to an in-process method-call shape.
package ipc

import "github.com/resinat/locationd/internal/criteria"

// AccuracyEnvelopeDTO is the wire form of criteria.AccuracyEnvelope.
type AccuracyEnvelopeDTO struct {
	Horizontal *float64 `json:"horizontal,omitempty"`
	Vertical   *float64 `json:"vertical,omitempty"`
	Velocity   *float64 `json:"velocity,omitempty"`
	Heading    *float64 `json:"heading,omitempty"`
}

// CriteriaDTO is the wire form of criteria.Criteria (spec.md §6): feature
// and requirement sets flattened to bitsets, plus an optional accuracy
// envelope.
type CriteriaDTO struct {
	FeaturesBitset     uint64               `json:"features_bitset"`
	RequirementsBitset uint64               `json:"requirements_bitset"`
	Accuracy           *AccuracyEnvelopeDTO `json:"accuracy,omitempty"`
}

// ToCriteria converts the wire form to the domain type.
func (d CriteriaDTO) ToCriteria() criteria.Criteria {
	var features []criteria.Feature
	for _, f := range []criteria.Feature{criteria.FeaturePosition, criteria.FeatureHeading, criteria.FeatureVelocity} {
		if d.FeaturesBitset&(1<<uint(f)) != 0 {
			features = append(features, f)
		}
	}
	var reqs []criteria.Requirement
	for _, r := range []criteria.Requirement{
		criteria.RequirementSatellites, criteria.RequirementCellNetwork,
		criteria.RequirementDataNetwork, criteria.RequirementMonetarySpending,
	} {
		if d.RequirementsBitset&(1<<uint(r)) != 0 {
			reqs = append(reqs, r)
		}
	}

	c := criteria.Criteria{
		Features:     criteria.NewFeatureSet(features...),
		Requirements: criteria.NewRequirementSet(reqs...),
	}
	if d.Accuracy != nil {
		c.Accuracy = &criteria.AccuracyEnvelope{
			Horizontal: d.Accuracy.Horizontal,
			Vertical:   d.Accuracy.Vertical,
			Velocity:   d.Accuracy.Velocity,
			Heading:    d.Accuracy.Heading,
		}
	}
	return c
}

// CriteriaFromDomain converts a domain Criteria to its wire form.
func CriteriaFromDomain(c criteria.Criteria) CriteriaDTO {
	d := CriteriaDTO{}
	for _, f := range []criteria.Feature{criteria.FeaturePosition, criteria.FeatureHeading, criteria.FeatureVelocity} {
		if c.Features.Has(f) {
			d.FeaturesBitset |= 1 << uint(f)
		}
	}
	for _, r := range []criteria.Requirement{
		criteria.RequirementSatellites, criteria.RequirementCellNetwork,
		criteria.RequirementDataNetwork, criteria.RequirementMonetarySpending,
	} {
		if c.Requirements.Has(r) {
			d.RequirementsBitset |= 1 << uint(r)
		}
	}
	if c.Accuracy != nil {
		d.Accuracy = &AccuracyEnvelopeDTO{
			Horizontal: c.Accuracy.Horizontal,
			Vertical:   c.Accuracy.Vertical,
			Velocity:   c.Accuracy.Velocity,
			Heading:    c.Accuracy.Heading,
		}
	}
	return d
}

// AccuracyDTO is the wire form of measurement.Accuracy.
type AccuracyDTO struct {
	Horizontal *float64 `json:"horiz,omitempty"`
	Vertical   *float64 `json:"vert,omitempty"`
}

// PositionDTO is the wire form of measurement.Position (spec.md §6).
type PositionDTO struct {
	Lat float64     `json:"lat"`
	Lon float64     `json:"lon"`
	Alt *float64    `json:"alt,omitempty"`
	Acc AccuracyDTO `json:"acc"`
}

// UpdateDTO[T] is the wire form of measurement.Update[T]: a value plus a
// nanoseconds-since-epoch timestamp.
type UpdateDTO[T any] struct {
	Value T     `json:"value"`
	When  int64 `json:"when"`
}

// ServiceErrorDTO is the standard error envelope crossing the IPC
// boundary, matching the teacher's api.ErrorResponse/ErrorDetail shape.
type ServiceErrorDTO struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *ServiceErrorDTO) Error() string { return e.Code + ": " + e.Message }

// Well-known error codes (spec.md §6's service and session error sets).
const (
	ErrCodeInsufficientPermissions = "INSUFFICIENT_PERMISSIONS"
	ErrCodeCreatingSession         = "CREATING_SESSION"
	ErrCodeDuplicateSession        = "DUPLICATE_SESSION"
	ErrCodeAddingProvider          = "ADDING_PROVIDER"
	ErrCodeParsingUpdate           = "ERROR_PARSING_UPDATE"
	ErrCodeStartingUpdate          = "ERROR_STARTING_UPDATE"
	ErrCodeTransport               = "TRANSPORT"
)

// ServiceStateDTO mirrors engine.State over the wire.
type ServiceStateDTO int

const (
	ServiceStateDisabled ServiceStateDTO = iota
	ServiceStateEnabled
	ServiceStateActive
)
