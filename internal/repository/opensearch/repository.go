package opensearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/opensearch-project/opensearch-go/v2"
	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"

	"github.com/kingrain94/entitlement-api/internal/config"
	"github.com/kingrain94/entitlement-api/internal/domain"
)

const defaultPageSize = 50

type FlagChangeRepository struct {
	client *opensearch.Client
	config *config.OpenSearchConfig
}

// NewRepository stores flag changes in monthly indices.
func NewRepository(client *opensearch.Client, config *config.OpenSearchConfig) *FlagChangeRepository {
	return &FlagChangeRepository{
		client: client,
		config: config,
	}
}

func changeTime(change *domain.FlagChange) time.Time {
	if change.Timestamp.IsZero() {
		return time.Now().UTC()
	}
	return change.Timestamp
}

func (r *FlagChangeRepository) Index(ctx context.Context, change *domain.FlagChange) error {
	indexTime := changeTime(change)
	indexName := r.config.GetIndexName(indexTime)

	if err := r.createIndex(ctx, indexName); err != nil {
		return fmt.Errorf("failed to ensure index exists: %w", err)
	}

	data, err := json.Marshal(change)
	if err != nil {
		return fmt.Errorf("failed to marshal flag change: %w", err)
	}

	req := opensearchapi.IndexRequest{
		Index:      indexName,
		DocumentID: change.ID,
		Body:       bytes.NewReader(data),
	}

	res, err := req.Do(ctx, r.client)
	if err != nil {
		return fmt.Errorf("failed to index document: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("error indexing document: %s", res.String())
	}

	return nil
}

func (r *FlagChangeRepository) BulkIndex(ctx context.Context, changes []domain.FlagChange) error {
	if len(changes) == 0 {
		return nil
	}

	groups := make(map[string][]domain.FlagChange)
	for i := range changes {
		indexName := r.config.GetIndexName(changeTime(&changes[i]))
		groups[indexName] = append(groups[indexName], changes[i])
	}

	for indexName, group := range groups {
		if err := r.bulkIndexGroup(ctx, indexName, group); err != nil {
			return fmt.Errorf("failed to bulk index group for index %s: %w", indexName, err)
		}
	}

	return nil
}

func (r *FlagChangeRepository) bulkIndexGroup(ctx context.Context, indexName string, changes []domain.FlagChange) error {
	if err := r.createIndex(ctx, indexName); err != nil {
		return fmt.Errorf("failed to ensure index exists: %w", err)
	}

	body, err := buildBulkBody(indexName, changes)
	if err != nil {
		return err
	}

	req := opensearchapi.BulkRequest{
		Body: strings.NewReader(body),
	}

	res, err := req.Do(ctx, r.client)
	if err != nil {
		return fmt.Errorf("failed to execute bulk request: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("bulk request failed: %s", res.String())
	}

	var result struct {
		Errors bool `json:"errors"`
	}
	if err := json.NewDecoder(res.Body).Decode(&result); err == nil && result.Errors {
		return fmt.Errorf("bulk request reported item failures for index %s", indexName)
	}

	return nil
}

// buildBulkBody renders the newline delimited action/document pairs of a bulk request
func buildBulkBody(indexName string, changes []domain.FlagChange) (string, error) {
	var bulkBody strings.Builder
	for _, change := range changes {
		action := map[string]any{
			"index": map[string]any{
				"_index": indexName,
				"_id":    change.ID,
			},
		}
		actionLine, err := json.Marshal(action)
		if err != nil {
			return "", fmt.Errorf("failed to marshal action: %w", err)
		}
		bulkBody.Write(actionLine)
		bulkBody.WriteString("\n")

		docLine, err := json.Marshal(change)
		if err != nil {
			return "", fmt.Errorf("failed to marshal document: %w", err)
		}
		bulkBody.Write(docLine)
		bulkBody.WriteString("\n")
	}
	return bulkBody.String(), nil
}

func (r *FlagChangeRepository) Search(ctx context.Context, filter *domain.FlagChangeFilter) ([]domain.FlagChange, error) {
	return r.search(ctx, buildSearchQuery(filter))
}

// ListBefore returns the oldest changes recorded before the cutoff.
func (r *FlagChangeRepository) ListBefore(ctx context.Context, before time.Time, limit int) ([]domain.FlagChange, error) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	query := map[string]any{
		"query": createTimeRangeQuery(time.Time{}, before, true),
		"size":  limit,
		"sort": []map[string]any{
			{"timestamp": map[string]any{"order": "asc"}},
		},
	}
	return r.search(ctx, query)
}

func (r *FlagChangeRepository) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	queryJSON, err := json.Marshal(map[string]any{
		"query": createTimeRangeQuery(time.Time{}, before, true),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to marshal query: %w", err)
	}

	refresh := true
	req := opensearchapi.DeleteByQueryRequest{
		Index:   []string{r.config.GetIndexPattern()},
		Body:    bytes.NewReader(queryJSON),
		Refresh: &refresh,
	}

	res, err := req.Do(ctx, r.client)
	if err != nil {
		return 0, fmt.Errorf("failed to execute delete by query: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		if res.StatusCode == 404 {
			return 0, nil
		}
		return 0, fmt.Errorf("delete by query failed: %s", res.String())
	}

	var result struct {
		Deleted int64 `json:"deleted"`
	}
	if err := json.NewDecoder(res.Body).Decode(&result); err != nil {
		return 0, fmt.Errorf("failed to decode response: %w", err)
	}
	return result.Deleted, nil
}

func (r *FlagChangeRepository) search(ctx context.Context, query map[string]any) ([]domain.FlagChange, error) {
	queryJSON, err := json.Marshal(query)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal query: %w", err)
	}

	req := opensearchapi.SearchRequest{
		Index: []string{r.config.GetIndexPattern()},
		Body:  bytes.NewReader(queryJSON),
	}

	res, err := req.Do(ctx, r.client)
	if err != nil {
		return nil, fmt.Errorf("failed to execute search: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		if res.StatusCode == 404 {
			return []domain.FlagChange{}, nil
		}
		return nil, fmt.Errorf("search request failed: %s", res.String())
	}

	var searchResult struct {
		Hits struct {
			Hits []struct {
				Source domain.FlagChange `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&searchResult); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	changes := make([]domain.FlagChange, 0, len(searchResult.Hits.Hits))
	for _, hit := range searchResult.Hits.Hits {
		changes = append(changes, hit.Source)
	}
	return changes, nil
}

// buildSearchQuery constructs the OpenSearch query based on the filter
func buildSearchQuery(filter *domain.FlagChangeFilter) map[string]any {
	must := make([]map[string]any, 0)

	exactMatches := map[string]string{
		"flag_key":   filter.FlagKey,
		"action":     string(filter.Action),
		"subject_id": filter.SubjectID,
		"actor_id":   filter.ActorID,
	}
	for field, value := range exactMatches {
		if value != "" {
			must = append(must, createTermQuery(field, value))
		}
	}

	if !filter.StartTime.IsZero() || !filter.EndTime.IsZero() {
		must = append(must, createTimeRangeQuery(filter.StartTime, filter.EndTime, false))
	}

	page, pageSize := filter.Page, filter.PageSize
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}

	return map[string]any{
		"query": map[string]any{
			"bool": map[string]any{
				"must": must,
			},
		},
		"from": (page - 1) * pageSize,
		"size": pageSize,
		"sort": []map[string]any{
			{"timestamp": map[string]any{"order": "desc"}},
		},
	}
}

func createTermQuery(field, value string) map[string]any {
	return map[string]any{
		"term": map[string]any{
			field: value,
		},
	}
}

// createTimeRangeQuery builds a timestamp range. exclusiveEnd uses lt instead of lte.
func createTimeRangeQuery(startTime, endTime time.Time, exclusiveEnd bool) map[string]any {
	timeRange := make(map[string]any)
	if !startTime.IsZero() {
		timeRange["gte"] = startTime
	}
	if !endTime.IsZero() {
		if exclusiveEnd {
			timeRange["lt"] = endTime
		} else {
			timeRange["lte"] = endTime
		}
	}
	return map[string]any{
		"range": map[string]any{
			"timestamp": timeRange,
		},
	}
}

// indexMapping keeps value unparsed since it may hold any JSON type
const indexMapping = `{
	"mappings": {
		"properties": {
			"id": { "type": "keyword" },
			"flag_key": { "type": "keyword" },
			"action": { "type": "keyword" },
			"subject_id": { "type": "keyword" },
			"actor_id": { "type": "keyword" },
			"tenant_id": { "type": "keyword" },
			"value": { "type": "object", "enabled": false },
			"timestamp": { "type": "date" }
		}
	},
	"settings": {
		"index": {
			"number_of_shards": 1,
			"number_of_replicas": 1,
			"refresh_interval": "1s"
		}
	}
}`

func (r *FlagChangeRepository) createIndex(ctx context.Context, indexName string) error {
	exists := opensearchapi.IndicesExistsRequest{
		Index: []string{indexName},
	}
	res, err := exists.Do(ctx, r.client)
	if err != nil {
		return fmt.Errorf("failed to check index existence: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode == 200 {
		return nil
	}

	create := opensearchapi.IndicesCreateRequest{
		Index: indexName,
		Body:  strings.NewReader(indexMapping),
	}

	res, err = create.Do(ctx, r.client)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	defer res.Body.Close()

	// Concurrent workers may race on the first write of the month.
	if res.IsError() && !strings.Contains(res.String(), "resource_already_exists_exception") {
		return fmt.Errorf("error creating index: %s", res.String())
	}

	return nil
}
