package composite

import (
	opensearchclient "github.com/opensearch-project/opensearch-go/v2"

	"github.com/kingrain94/entitlement-api/internal/config"
	"github.com/kingrain94/entitlement-api/internal/repository"
	"github.com/kingrain94/entitlement-api/internal/repository/opensearch"
	"github.com/kingrain94/entitlement-api/internal/repository/postgres"
)

type compositeRepository struct {
	postgresRepo repository.PostgresRepository
	historyRepo  repository.FlagChangeRepository
}

func NewCompositeRepository(dbConnections *config.DatabaseConnections, osClient *opensearchclient.Client, osConfig *config.OpenSearchConfig) repository.Repository {
	return &compositeRepository{
		postgresRepo: postgres.NewPostgresRepository(dbConnections),
		historyRepo:  opensearch.NewRepository(osClient, osConfig),
	}
}

func (r *compositeRepository) Tenant() repository.TenantRepository {
	return r.postgresRepo.Tenant()
}

func (r *compositeRepository) FeatureFlag() repository.FeatureFlagRepository {
	return r.postgresRepo.FeatureFlag()
}

func (r *compositeRepository) Schema() repository.SchemaBinder {
	return r.postgresRepo.Schema()
}

func (r *compositeRepository) FlagHistory() repository.FlagChangeRepository {
	return r.historyRepo
}
