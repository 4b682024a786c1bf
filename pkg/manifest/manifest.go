// Package manifest provides loading and validation of bootstrap manifests.
//
// A bootstrap manifest is a YAML or JSON file declaring the services and job
// profiles the processor expects to exist in the service registry. At
// startup (or via the bootstrap command) the declared resources are created
// in the registry if missing, so a fresh environment can accept jobs
// immediately.
//
// Example manifest (YAML):
//
//	version: "1.0"
//	services:
//	  - name: transform-service
//	    jobType: TransformJob
//	    resources:
//	      - resourceType: JobAssignment
//	        httpEndpoint: https://transform.example.com/job-assignments
//	jobProfiles:
//	  - name: ExtractTechnicalMetadata
//	    inputParameters:
//	      - parameterName: inputFile
//	        parameterType: Locator
package manifest

import (
	"github.com/ebu/mcma-projects-sub000/pkg/model"
)

// Manifest represents a validated bootstrap manifest.
type Manifest struct {
	// Version is the manifest schema version. Must be "1.0".
	Version string `json:"version" yaml:"version"`

	// Services declares the job-processing services to register.
	Services []ServiceEntry `json:"services,omitempty" yaml:"services,omitempty"`

	// JobProfiles declares the job profiles to register.
	JobProfiles []ProfileEntry `json:"jobProfiles,omitempty" yaml:"jobProfiles,omitempty"`
}

// ServiceEntry declares one service and the endpoints it exposes.
type ServiceEntry struct {
	// Name is the service's display name. Required.
	Name string `json:"name" yaml:"name"`

	// JobType is the job type the service processes. Required.
	JobType string `json:"jobType" yaml:"jobType"`

	// Resources lists the resource endpoints the service exposes. A service
	// that accepts work must expose a JobAssignment endpoint.
	Resources []ResourceEntry `json:"resources" yaml:"resources"`

	// JobProfiles names the profiles the service accepts. Names are resolved
	// to registry profile ids by the bootstrapper; a service with no
	// profiles never matches a job.
	JobProfiles []string `json:"jobProfiles,omitempty" yaml:"jobProfiles,omitempty"`
}

// ResourceEntry declares one resource endpoint of a service.
type ResourceEntry struct {
	// ResourceType names the resource the endpoint serves, e.g. "JobAssignment".
	ResourceType string `json:"resourceType" yaml:"resourceType"`

	// HTTPEndpoint is the endpoint URL.
	HTTPEndpoint string `json:"httpEndpoint" yaml:"httpEndpoint"`
}

// ProfileEntry declares one job profile.
type ProfileEntry struct {
	// Name is the profile name. Required, unique within the manifest.
	Name string `json:"name" yaml:"name"`

	// InputParameters lists the required input parameters.
	InputParameters []ParameterEntry `json:"inputParameters,omitempty" yaml:"inputParameters,omitempty"`

	// OptionalInputParameters lists inputs a caller may omit.
	OptionalInputParameters []ParameterEntry `json:"optionalInputParameters,omitempty" yaml:"optionalInputParameters,omitempty"`
}

// ParameterEntry declares one job profile parameter.
type ParameterEntry struct {
	ParameterName string `json:"parameterName" yaml:"parameterName"`
	ParameterType string `json:"parameterType,omitempty" yaml:"parameterType,omitempty"`
}

// Service converts the entry to its registry resource form. Profile name
// references are resolved to ids by the bootstrapper once profiles exist.
func (s ServiceEntry) Service() model.Service {
	svc := model.Service{
		Name:    s.Name,
		JobType: s.JobType,
	}
	for _, r := range s.Resources {
		svc.Resources = append(svc.Resources, model.ServiceResource{
			ResourceType: r.ResourceType,
			HTTPEndpoint: r.HTTPEndpoint,
		})
	}
	return svc
}

// Profile converts the entry to its registry resource form.
func (p ProfileEntry) Profile() model.JobProfile {
	profile := model.JobProfile{Name: p.Name}
	for _, in := range p.InputParameters {
		profile.InputParameters = append(profile.InputParameters, model.JobProfileParameter{
			ParameterName: in.ParameterName,
			ParameterType: in.ParameterType,
		})
	}
	for _, in := range p.OptionalInputParameters {
		profile.OptionalInputParameters = append(profile.OptionalInputParameters, model.JobProfileParameter{
			ParameterName: in.ParameterName,
			ParameterType: in.ParameterType,
		})
	}
	return profile
}
