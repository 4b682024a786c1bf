package manifest

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ebu/mcma-projects-sub000/pkg/registry"
)

// BootstrapResult reports what Bootstrap created versus found in place.
type BootstrapResult struct {
	ProfilesCreated int
	ProfilesFound   int
	ServicesCreated int
	ServicesFound   int
}

// Bootstrap ensures the manifest's job profiles and services exist in the
// registry. Existing resources (matched by name) are left untouched;
// missing ones are created. Profile name references on services are
// resolved to registry ids.
func Bootstrap(ctx context.Context, m *Manifest, reg registry.Client, log *zap.Logger) (*BootstrapResult, error) {
	if log == nil {
		log = zap.NewNop()
	}
	result := &BootstrapResult{}

	profileIDs := make(map[string]string, len(m.JobProfiles))
	for _, entry := range m.JobProfiles {
		existing, err := registry.QueryJobProfiles(ctx, reg, entry.Name)
		if err != nil {
			return nil, fmt.Errorf("query job profile %q: %w", entry.Name, err)
		}
		if len(existing) > 0 {
			profileIDs[entry.Name] = existing[0].ID
			result.ProfilesFound++
			continue
		}

		profile := entry.Profile()
		created, err := registry.CreateJobProfile(ctx, reg, profile)
		if err != nil {
			return nil, fmt.Errorf("create job profile %q: %w", entry.Name, err)
		}
		profileIDs[entry.Name] = created.ID
		result.ProfilesCreated++
		log.Info("Registered job profile",
			zap.String("name", entry.Name),
			zap.String("id", created.ID))
	}

	for _, entry := range m.Services {
		existing, err := registry.QueryServicesByName(ctx, reg, entry.Name)
		if err != nil {
			return nil, fmt.Errorf("query service %q: %w", entry.Name, err)
		}
		if len(existing) > 0 {
			result.ServicesFound++
			continue
		}

		svc := entry.Service()
		for _, ref := range entry.JobProfiles {
			svc.JobProfileIDs = append(svc.JobProfileIDs, profileIDs[ref])
		}
		created, err := registry.CreateService(ctx, reg, svc)
		if err != nil {
			return nil, fmt.Errorf("create service %q: %w", entry.Name, err)
		}
		result.ServicesCreated++
		log.Info("Registered service",
			zap.String("name", entry.Name),
			zap.String("id", created.ID),
			zap.String("job_type", entry.JobType))
	}

	return result, nil
}
