package wikibase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// MaxEntitiesPerRequest is the per-call entity limit of the wbgetentities
// endpoint. Larger id lists are chunked.
const MaxEntitiesPerRequest = 50

// Client talks to a Wikibase-compatible API (wikidata.org or a private
// instance).
type Client struct {
	BaseURL    string
	Language   string
	httpClient *http.Client
}

// Entity is the subset of entity data the mapper needs: datatype plus
// language-filtered label and description.
type Entity struct {
	ID          string
	Datatype    string
	Label       string
	Description string
	Missing     bool
}

// ConstraintClaim is one statement on a property's constraint-declaring
// property, with its qualifier values flattened per qualifier property id.
type ConstraintClaim struct {
	TypeID     string
	Rank       string
	Qualifiers map[string][]string
}

// SearchResult is one hit from the generic full-text entity search.
type SearchResult struct {
	ID          string
	Label       string
	Description string
}

// NewClient creates a client for the given API base URL, e.g.
// "https://www.wikidata.org/w/api.php".
func NewClient(baseURL, language string) *Client {
	if language == "" {
		language = "en"
	}
	return &Client{
		BaseURL:  baseURL,
		Language: language,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// GetEntities fetches datatype, label and description for a batch of entity
// ids. Ids the remote reports as missing come back with Missing set rather
// than being dropped, so callers can distinguish "absent" from "not asked".
func (c *Client) GetEntities(ctx context.Context, ids []string) (map[string]Entity, error) {
	entities := make(map[string]Entity, len(ids))
	for start := 0; start < len(ids); start += MaxEntitiesPerRequest {
		end := start + MaxEntitiesPerRequest
		if end > len(ids) {
			end = len(ids)
		}
		if err := c.getEntityChunk(ctx, ids[start:end], entities); err != nil {
			return nil, err
		}
	}
	return entities, nil
}

func (c *Client) getEntityChunk(ctx context.Context, ids []string, out map[string]Entity) error {
	params := url.Values{}
	params.Set("action", "wbgetentities")
	params.Set("format", "json")
	params.Set("ids", strings.Join(ids, "|"))
	params.Set("props", "datatype|labels|descriptions")
	params.Set("languages", c.Language)

	var payload struct {
		Entities map[string]struct {
			ID       string `json:"id"`
			Datatype string `json:"datatype"`
			Missing  *struct {
			} `json:"missing"`
			Labels map[string]struct {
				Value string `json:"value"`
			} `json:"labels"`
			Descriptions map[string]struct {
				Value string `json:"value"`
			} `json:"descriptions"`
		} `json:"entities"`
	}

	if err := c.get(ctx, params, &payload); err != nil {
		return err
	}

	for id, raw := range payload.Entities {
		e := Entity{ID: id, Datatype: raw.Datatype}
		if raw.Missing != nil {
			e.Missing = true
		}
		if l, ok := raw.Labels[c.Language]; ok {
			e.Label = l.Value
		}
		if d, ok := raw.Descriptions[c.Language]; ok {
			e.Description = d.Value
		}
		out[id] = e
	}
	return nil
}

// GetConstraintStatements fetches the claims of constraintProperty (P2302 on
// Wikidata) declared on propertyID and flattens each claim's qualifiers into
// string values: regexes and clarification texts as plain strings, referenced
// entities as their Q-ids.
func (c *Client) GetConstraintStatements(ctx context.Context, propertyID, constraintProperty string) ([]ConstraintClaim, error) {
	params := url.Values{}
	params.Set("action", "wbgetclaims")
	params.Set("format", "json")
	params.Set("entity", propertyID)
	params.Set("property", constraintProperty)

	var payload struct {
		Claims map[string][]struct {
			Rank     string `json:"rank"`
			MainSnak struct {
				DataValue struct {
					Value json.RawMessage `json:"value"`
				} `json:"datavalue"`
			} `json:"mainsnak"`
			Qualifiers map[string][]struct {
				DataValue struct {
					Value json.RawMessage `json:"value"`
				} `json:"datavalue"`
			} `json:"qualifiers"`
		} `json:"claims"`
	}

	if err := c.get(ctx, params, &payload); err != nil {
		return nil, err
	}

	var claims []ConstraintClaim
	for _, raw := range payload.Claims[constraintProperty] {
		claim := ConstraintClaim{
			TypeID:     snakValue(raw.MainSnak.DataValue.Value),
			Rank:       raw.Rank,
			Qualifiers: make(map[string][]string),
		}
		for qualProp, snaks := range raw.Qualifiers {
			for _, snak := range snaks {
				if v := snakValue(snak.DataValue.Value); v != "" {
					claim.Qualifiers[qualProp] = append(claim.Qualifiers[qualProp], v)
				}
			}
		}
		claims = append(claims, claim)
	}
	return claims, nil
}

// snakValue extracts a usable string from a snak datavalue, which is either a
// bare string (regexes, clarification text) or an entity reference object.
func snakValue(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var ref struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(raw, &ref); err == nil {
		return ref.ID
	}
	return ""
}

// Search runs a free-text entity search and returns up to limit unscored
// candidates.
func (c *Client) Search(ctx context.Context, text string, limit int) ([]SearchResult, error) {
	params := url.Values{}
	params.Set("action", "wbsearchentities")
	params.Set("format", "json")
	params.Set("search", text)
	params.Set("language", c.Language)
	params.Set("limit", fmt.Sprintf("%d", limit))

	var payload struct {
		Search []struct {
			ID          string `json:"id"`
			Label       string `json:"label"`
			Description string `json:"description"`
		} `json:"search"`
	}

	if err := c.get(ctx, params, &payload); err != nil {
		return nil, err
	}

	results := make([]SearchResult, 0, len(payload.Search))
	for _, hit := range payload.Search {
		results = append(results, SearchResult{
			ID:          hit.ID,
			Label:       hit.Label,
			Description: hit.Description,
		})
	}
	return results, nil
}

func (c *Client) get(ctx context.Context, params url.Values, out any) error {
	reqURL := c.BaseURL + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, "GET", reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &TransportError{URL: c.BaseURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &TransportError{URL: c.BaseURL, StatusCode: resp.StatusCode}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &FormatError{URL: c.BaseURL, Err: err}
	}
	return nil
}
