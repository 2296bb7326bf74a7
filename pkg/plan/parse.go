package plan

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// strictUnmarshal decodes exactly one JSON document into v.
func strictUnmarshal(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return errors.New("trailing data after document")
	}
	if _, err := dec.Token(); err != io.EOF {
		return errors.New("trailing data after document")
	}
	return nil
}

// ErrInvalidRecord indicates a submitted document failed boundary
// validation.
var ErrInvalidRecord = errors.New("invalid record")

// ParseRecord decodes and validates a submitted record document. This is
// the single point where untyped input becomes a typed Record; nothing
// past this boundary re-validates shape.
func ParseRecord(data []byte) (*Record, error) {
	var r Record
	if err := strictUnmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return &r, nil
}

// Validate checks required fields and internal consistency.
func (r *Record) Validate() error {
	if strings.TrimSpace(r.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidRecord)
	}
	for i, f := range r.Funding {
		if strings.TrimSpace(f.FunderName) == "" && strings.TrimSpace(f.FunderID) == "" {
			return fmt.Errorf("%w: funding[%d] needs a funder name or id", ErrInvalidRecord, i)
		}
		switch f.Status {
		case "", FundingPlanned, FundingApplied, FundingGranted, FundingRejected:
		default:
			return fmt.Errorf("%w: funding[%d] has unknown status %q", ErrInvalidRecord, i, f.Status)
		}
	}
	for i, rel := range r.RelatedIdentifiers {
		if strings.TrimSpace(rel.Identifier) == "" {
			return fmt.Errorf("%w: related_identifiers[%d] is missing an identifier", ErrInvalidRecord, i)
		}
		if strings.TrimSpace(rel.Descriptor) == "" {
			return fmt.Errorf("%w: related_identifiers[%d] is missing a descriptor", ErrInvalidRecord, i)
		}
	}
	if r.Project.Start != nil && r.Project.End != nil && r.Project.End.Before(*r.Project.Start) {
		return fmt.Errorf("%w: project end precedes start", ErrInvalidRecord)
	}
	return nil
}
