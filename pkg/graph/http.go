package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/agora-sim/agora/pkg/models"
)

// HTTPClient implements Client against a graphiti-style REST service.
type HTTPClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewHTTPClient creates a client for the graph service at baseURL.
func NewHTTPClient(baseURL, apiKey string) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 60 * time.Second},
	}
}

func (c *HTTPClient) CreateGraph(ctx context.Context, name string) (string, error) {
	var out struct {
		GraphID string `json:"graph_id"`
	}
	err := c.call(ctx, http.MethodPost, "/graphs", map[string]any{"name": name}, &out)
	if err != nil {
		return "", err
	}
	if out.GraphID == "" {
		return "", fmt.Errorf("graph service returned empty graph id")
	}
	return out.GraphID, nil
}

func (c *HTTPClient) SetOntology(ctx context.Context, graphID string, o *models.Ontology) error {
	return c.call(ctx, http.MethodPut, "/graphs/"+graphID+"/ontology", o, nil)
}

func (c *HTTPClient) AddEpisode(ctx context.Context, graphID, name, body string) (string, error) {
	var out struct {
		EpisodeUUID string `json:"episode_uuid"`
	}
	err := c.call(ctx, http.MethodPost, "/graphs/"+graphID+"/episodes",
		map[string]any{"name": name, "body": body}, &out)
	if err != nil {
		return "", err
	}
	return out.EpisodeUUID, nil
}

func (c *HTTPClient) EpisodeProcessed(ctx context.Context, graphID, episodeUUID string) (bool, error) {
	var out struct {
		Processed bool `json:"processed"`
	}
	path := "/graphs/" + graphID + "/episodes/" + episodeUUID
	if err := c.call(ctx, http.MethodGet, path, nil, &out); err != nil {
		return false, err
	}
	return out.Processed, nil
}

func (c *HTTPClient) GetNodes(ctx context.Context, graphID string) ([]Node, error) {
	var out struct {
		Nodes []Node `json:"nodes"`
	}
	if err := c.call(ctx, http.MethodGet, "/graphs/"+graphID+"/nodes", nil, &out); err != nil {
		return nil, err
	}
	return out.Nodes, nil
}

func (c *HTTPClient) GetEdges(ctx context.Context, graphID string) ([]Edge, error) {
	var out struct {
		Edges []Edge `json:"edges"`
	}
	if err := c.call(ctx, http.MethodGet, "/graphs/"+graphID+"/edges", nil, &out); err != nil {
		return nil, err
	}
	return out.Edges, nil
}

func (c *HTTPClient) SearchNodes(ctx context.Context, graphID, query string, limit int) ([]Node, error) {
	var out struct {
		Nodes []Node `json:"nodes"`
	}
	path := "/graphs/" + graphID + "/search/nodes?" + searchQuery(query, limit)
	if err := c.call(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Nodes, nil
}

func (c *HTTPClient) SearchEdges(ctx context.Context, graphID, query string, limit int) ([]Edge, error) {
	var out struct {
		Edges []Edge `json:"edges"`
	}
	path := "/graphs/" + graphID + "/search/edges?" + searchQuery(query, limit)
	if err := c.call(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Edges, nil
}

func (c *HTTPClient) UpsertNode(ctx context.Context, graphID string, u NodeUpsert) (string, error) {
	var out struct {
		UUID string `json:"uuid"`
	}
	err := c.call(ctx, http.MethodPost, "/graphs/"+graphID+"/nodes", map[string]any{
		"name":       u.Name,
		"labels":     u.Labels,
		"summary":    u.Summary,
		"attributes": u.Attributes,
	}, &out)
	if err != nil {
		return "", err
	}
	return out.UUID, nil
}

func (c *HTTPClient) CreateEdge(ctx context.Context, graphID string, u EdgeUpsert) error {
	return c.call(ctx, http.MethodPost, "/graphs/"+graphID+"/edges", map[string]any{
		"source_uuid": u.SourceUUID,
		"target_uuid": u.TargetUUID,
		"name":        u.Name,
		"fact":        u.Fact,
	}, nil)
}

func searchQuery(query string, limit int) string {
	v := url.Values{}
	v.Set("q", query)
	v.Set("limit", strconv.Itoa(limit))
	return v.Encode()
}

// call performs one JSON request. Non-2xx responses become errors carrying
// the response body.
func (c *HTTPClient) call(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encoding %s %s: %w", method, path, err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("graph request %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return fmt.Errorf("reading graph response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("graph service %s %s returned %d: %s",
			method, path, resp.StatusCode, strings.TrimSpace(string(data)))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parsing graph response for %s %s: %w", method, path, err)
	}
	return nil
}
