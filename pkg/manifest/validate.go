package manifest

import (
	"errors"
	"fmt"

	"github.com/ebu/mcma-projects-sub000/pkg/model"
)

// SupportedVersion is the only manifest schema version this build accepts.
const SupportedVersion = "1.0"

// ErrValidationFailed indicates the manifest content is invalid.
var ErrValidationFailed = errors.New("manifest validation failed")

// Validate checks the manifest for structural problems: missing required
// fields, duplicate names and dangling profile references.
func (m *Manifest) Validate() error {
	if m.Version != SupportedVersion {
		return fmt.Errorf("%w: unsupported version %q (want %q)",
			ErrValidationFailed, m.Version, SupportedVersion)
	}

	profiles := make(map[string]bool, len(m.JobProfiles))
	for i, p := range m.JobProfiles {
		if p.Name == "" {
			return fmt.Errorf("%w: jobProfiles[%d] missing name", ErrValidationFailed, i)
		}
		if profiles[p.Name] {
			return fmt.Errorf("%w: duplicate job profile %q", ErrValidationFailed, p.Name)
		}
		profiles[p.Name] = true
		for j, in := range p.InputParameters {
			if in.ParameterName == "" {
				return fmt.Errorf("%w: jobProfiles[%d].inputParameters[%d] missing parameterName",
					ErrValidationFailed, i, j)
			}
		}
	}

	names := make(map[string]bool, len(m.Services))
	for i, s := range m.Services {
		if s.Name == "" {
			return fmt.Errorf("%w: services[%d] missing name", ErrValidationFailed, i)
		}
		if names[s.Name] {
			return fmt.Errorf("%w: duplicate service %q", ErrValidationFailed, s.Name)
		}
		names[s.Name] = true
		if s.JobType == "" {
			return fmt.Errorf("%w: service %q missing jobType", ErrValidationFailed, s.Name)
		}
		if _, ok := s.Service().ResourceEndpoint(model.TypeJobAssignment); !ok {
			return fmt.Errorf("%w: service %q declares no %s endpoint",
				ErrValidationFailed, s.Name, model.TypeJobAssignment)
		}
		for _, ref := range s.JobProfiles {
			if !profiles[ref] {
				return fmt.Errorf("%w: service %q references unknown job profile %q",
					ErrValidationFailed, s.Name, ref)
			}
		}
	}
	return nil
}
