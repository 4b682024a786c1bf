package model

// ServiceResource maps a resource type to the HTTP endpoint a registered
// service exposes for it.
type ServiceResource struct {
	ResourceType string `json:"resourceType"`
	HTTPEndpoint string `json:"httpEndpoint"`
}

// Service is a registered capability provider. Services are owned by the
// capability registry; the job processor only reads them.
type Service struct {
	ID            string            `json:"id,omitempty"`
	Name          string            `json:"name"`
	JobType       string            `json:"jobType,omitempty"`
	JobProfileIDs []string          `json:"jobProfileIds,omitempty"`
	Resources     []ServiceResource `json:"resources,omitempty"`
	AuthType      string            `json:"authType,omitempty"`
}

// ResourceEndpoint returns the endpoint the service exposes for the given
// resource type.
func (s Service) ResourceEndpoint(resourceType string) (string, bool) {
	for _, r := range s.Resources {
		if r.ResourceType == resourceType && r.HTTPEndpoint != "" {
			return r.HTTPEndpoint, true
		}
	}
	return "", false
}

// AcceptsProfile reports whether the service declares the given job profile.
func (s Service) AcceptsProfile(jobProfileID string) bool {
	for _, id := range s.JobProfileIDs {
		if id == jobProfileID {
			return true
		}
	}
	return false
}

// JobProfileParameter declares one named parameter of a profile.
type JobProfileParameter struct {
	ParameterName string `json:"parameterName"`
	ParameterType string `json:"parameterType,omitempty"`
}

// JobProfile declares a named operation's required and optional parameters.
type JobProfile struct {
	ID                      string                `json:"id,omitempty"`
	Name                    string                `json:"name"`
	InputParameters         []JobProfileParameter `json:"inputParameters,omitempty"`
	OptionalInputParameters []JobProfileParameter `json:"optionalInputParameters,omitempty"`
}
