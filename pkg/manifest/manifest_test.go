package manifest

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ebu/mcma-projects-sub000/pkg/model"
	"github.com/ebu/mcma-projects-sub000/pkg/registry"
)

const validYAML = `
version: "1.0"
services:
  - name: transform-service
    jobType: TransformJob
    resources:
      - resourceType: JobAssignment
        httpEndpoint: https://transform.example.com/job-assignments
    jobProfiles:
      - ExtractTechnicalMetadata
jobProfiles:
  - name: ExtractTechnicalMetadata
    inputParameters:
      - parameterName: inputFile
        parameterType: Locator
    optionalInputParameters:
      - parameterName: priority
`

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.yaml")
	require.NoError(t, os.WriteFile(path, []byte(validYAML), 0o644))

	m, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, SupportedVersion, m.Version)
	require.Len(t, m.Services, 1)
	require.Len(t, m.JobProfiles, 1)

	svc := m.Services[0].Service()
	assert.Equal(t, "transform-service", svc.Name)
	endpoint, ok := svc.ResourceEndpoint(model.TypeJobAssignment)
	require.True(t, ok)
	assert.Equal(t, "https://transform.example.com/job-assignments", endpoint)

	profile := m.JobProfiles[0].Profile()
	require.Len(t, profile.InputParameters, 1)
	assert.Equal(t, "inputFile", profile.InputParameters[0].ParameterName)
	require.Len(t, profile.OptionalInputParameters, 1)
}

func TestLoadJSON(t *testing.T) {
	content := `{
  "version": "1.0",
  "services": [
    {
      "name": "transform-service",
      "jobType": "TransformJob",
      "resources": [
        {"resourceType": "JobAssignment", "httpEndpoint": "https://t.example.com/job-assignments"}
      ]
    }
  ]
}`
	path := filepath.Join(t.TempDir(), "manifest.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	m, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, m.Services, 1)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestValidationFailures(t *testing.T) {
	base := func() *Manifest {
		return &Manifest{
			Version: SupportedVersion,
			JobProfiles: []ProfileEntry{
				{Name: "ExtractTechnicalMetadata", InputParameters: []ParameterEntry{{ParameterName: "inputFile"}}},
			},
			Services: []ServiceEntry{
				{
					Name:        "transform-service",
					JobType:     "TransformJob",
					Resources:   []ResourceEntry{{ResourceType: model.TypeJobAssignment, HTTPEndpoint: "https://t/job-assignments"}},
					JobProfiles: []string{"ExtractTechnicalMetadata"},
				},
			},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Manifest)
		message string
	}{
		{
			name:    "unsupported version",
			mutate:  func(m *Manifest) { m.Version = "2.0" },
			message: "unsupported version",
		},
		{
			name: "duplicate profile",
			mutate: func(m *Manifest) {
				m.JobProfiles = append(m.JobProfiles, ProfileEntry{Name: "ExtractTechnicalMetadata"})
			},
			message: "duplicate job profile",
		},
		{
			name: "duplicate service",
			mutate: func(m *Manifest) {
				m.Services = append(m.Services, m.Services[0])
			},
			message: "duplicate service",
		},
		{
			name:    "missing job type",
			mutate:  func(m *Manifest) { m.Services[0].JobType = "" },
			message: "missing jobType",
		},
		{
			name:    "missing assignment endpoint",
			mutate:  func(m *Manifest) { m.Services[0].Resources = nil },
			message: "no JobAssignment endpoint",
		},
		{
			name:    "dangling profile reference",
			mutate:  func(m *Manifest) { m.Services[0].JobProfiles = []string{"NoSuchProfile"} },
			message: "unknown job profile",
		},
		{
			name:    "parameter without name",
			mutate:  func(m *Manifest) { m.JobProfiles[0].InputParameters[0].ParameterName = "" },
			message: "missing parameterName",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			m := base()
			tc.mutate(m)
			err := m.Validate()
			require.ErrorIs(t, err, ErrValidationFailed)
			assert.Contains(t, err.Error(), tc.message)
		})
	}

	require.NoError(t, base().Validate())
}

func TestBootstrapCreatesMissingResources(t *testing.T) {
	ctx := context.Background()
	reg := registry.NewMemoryClient()

	m, err := LoadFromBytes([]byte(validYAML), "manifest.yaml")
	require.NoError(t, err)

	result, err := Bootstrap(ctx, m, reg, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, result.ProfilesCreated)
	assert.Equal(t, 1, result.ServicesCreated)
	assert.Equal(t, 0, result.ProfilesFound)
	assert.Equal(t, 0, result.ServicesFound)

	services, err := registry.QueryServicesByName(ctx, reg, "transform-service")
	require.NoError(t, err)
	require.Len(t, services, 1)

	// The profile name reference is resolved to the created profile's id.
	profiles, err := registry.QueryJobProfiles(ctx, reg, "ExtractTechnicalMetadata")
	require.NoError(t, err)
	require.Len(t, profiles, 1)
	require.Len(t, services[0].JobProfileIDs, 1)
	assert.Equal(t, profiles[0].ID, services[0].JobProfileIDs[0])
}

func TestBootstrapIsIdempotent(t *testing.T) {
	ctx := context.Background()
	reg := registry.NewMemoryClient()

	m, err := LoadFromBytes([]byte(validYAML), "manifest.yaml")
	require.NoError(t, err)

	_, err = Bootstrap(ctx, m, reg, nil)
	require.NoError(t, err)

	result, err := Bootstrap(ctx, m, reg, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, result.ProfilesCreated)
	assert.Equal(t, 0, result.ServicesCreated)
	assert.Equal(t, 1, result.ProfilesFound)
	assert.Equal(t, 1, result.ServicesFound)

	services, err := registry.QueryServicesByName(ctx, reg, "transform-service")
	require.NoError(t, err)
	assert.Len(t, services, 1)
}
