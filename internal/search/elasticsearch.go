package search

import (
	"bytes"
	"context"
	"encoding/json"

	"example.com/volunteerhub/services/signup/config"
	"example.com/volunteerhub/services/signup/internal/store"

	"github.com/elastic/go-elasticsearch/v7"
	"github.com/elastic/go-elasticsearch/v7/esapi"
	"github.com/pkg/errors"
)

// ElasticClient provides the best-effort opportunity search index. A nil
// *ElasticClient is valid and turns every operation into a no-op, so the
// service degrades cleanly when search is not configured.
type ElasticClient struct {
	client *elasticsearch.Client
	config config.ElasticConfig
}

// NewElasticClient creates a new Elasticsearch client
func NewElasticClient(cfg config.ElasticConfig) (*ElasticClient, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	esConfig := elasticsearch.Config{
		Addresses: []string{cfg.URL},
		Username:  cfg.Username,
		Password:  cfg.Password,
	}

	client, err := elasticsearch.NewClient(esConfig)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create Elasticsearch client")
	}

	return &ElasticClient{
		client: client,
		config: cfg,
	}, nil
}

// IndexOpportunity indexes an opportunity document
func (c *ElasticClient) IndexOpportunity(ctx context.Context, doc *store.Opportunity) error {
	if c == nil {
		return nil
	}

	docJSON, err := json.Marshal(doc)
	if err != nil {
		return errors.Wrap(err, "failed to marshal opportunity document")
	}

	req := esapi.IndexRequest{
		Index:      c.config.Index,
		DocumentID: doc.ID,
		Body:       bytes.NewReader(docJSON),
		Refresh:    "true",
	}

	res, err := req.Do(ctx, c.client)
	if err != nil {
		return errors.Wrap(err, "failed to execute Elasticsearch index request")
	}
	defer res.Body.Close()

	if res.IsError() {
		var e map[string]interface{}
		if err := json.NewDecoder(res.Body).Decode(&e); err != nil {
			return errors.Wrap(err, "failed to parse Elasticsearch error response")
		}
		return errors.Errorf("Elasticsearch index error: %v", e)
	}

	return nil
}

// DeleteOpportunity removes an opportunity from the index
func (c *ElasticClient) DeleteOpportunity(ctx context.Context, id string) error {
	if c == nil {
		return nil
	}

	req := esapi.DeleteRequest{
		Index:      c.config.Index,
		DocumentID: id,
	}

	res, err := req.Do(ctx, c.client)
	if err != nil {
		return errors.Wrap(err, "failed to execute Elasticsearch delete request")
	}
	defer res.Body.Close()

	// 404 just means the document never made it into the index.
	if res.IsError() && res.StatusCode != 404 {
		return errors.Errorf("Elasticsearch delete error: %s", res.Status())
	}

	return nil
}

// SearchOpportunities runs a keyword search over title, organization,
// category, location, and description.
func (c *ElasticClient) SearchOpportunities(ctx context.Context, keyword string) ([]*store.Opportunity, error) {
	if c == nil {
		return nil, nil
	}

	query := map[string]interface{}{
		"query": map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":  keyword,
				"fields": []string{"title", "organization", "category", "location", "description", "tags"},
			},
		},
	}

	queryJSON, err := json.Marshal(query)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal search query")
	}

	req := esapi.SearchRequest{
		Index: []string{c.config.Index},
		Body:  bytes.NewReader(queryJSON),
	}

	res, err := req.Do(ctx, c.client)
	if err != nil {
		return nil, errors.Wrap(err, "failed to execute Elasticsearch search request")
	}
	defer res.Body.Close()

	if res.IsError() {
		var e map[string]interface{}
		if err := json.NewDecoder(res.Body).Decode(&e); err != nil {
			return nil, errors.Wrap(err, "failed to parse Elasticsearch error response")
		}
		return nil, errors.Errorf("Elasticsearch search error: %v", e)
	}

	var result struct {
		Hits struct {
			Hits []struct {
				Source store.Opportunity `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&result); err != nil {
		return nil, errors.Wrap(err, "failed to parse Elasticsearch search response")
	}

	docs := make([]*store.Opportunity, 0, len(result.Hits.Hits))
	for i := range result.Hits.Hits {
		doc := result.Hits.Hits[i].Source
		docs = append(docs, &doc)
	}

	return docs, nil
}
