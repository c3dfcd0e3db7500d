package api

import "github.com/user/netlens/internal/model"

// AccountInfo describes the credits available to the API key.
type AccountInfo struct {
	QueryCredits int `json:"query_credits"`
	ScanCredits  int `json:"scan_credits"`
	UnlockedLeft int `json:"unlocked_left"`
}

// FacetValue is one bucket of a facet breakdown.
type FacetValue struct {
	Value any `json:"value"`
	Count int `json:"count"`
}

// SearchResult is the response to count and search requests.
type SearchResult struct {
	Total   int                     `json:"total"`
	Matches []model.Banner          `json:"matches"`
	Facets  map[string][]FacetValue `json:"facets"`
}

// HostInfo is the aggregate view of a single host.
type HostInfo struct {
	IP          string         `json:"ip_str"`
	Hostnames   []string       `json:"hostnames"`
	City        string         `json:"city"`
	CountryName string         `json:"country_name"`
	OS          string         `json:"os"`
	Org         string         `json:"org"`
	LastUpdate  string         `json:"last_update"`
	Ports       []int          `json:"ports"`
	Vulns       []string       `json:"vulns"`
	Data        []model.Banner `json:"data"`
}

// Dataset is one bulk data collection available for download.
type Dataset struct {
	Name        string `json:"name"`
	Scope       string `json:"scope"`
	Description string `json:"description"`
}

// DatasetFile is one downloadable file within a dataset.
type DatasetFile struct {
	Name      string `json:"name"`
	Size      int64  `json:"size"`
	Timestamp string `json:"timestamp"`
	URL       string `json:"url"`
}

type scanResponse struct {
	ID          string `json:"id"`
	Count       int    `json:"count"`
	CreditsLeft int    `json:"credits_left"`
}

type scanStatusResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type alertResponse struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Expired bool   `json:"expired"`
	Filters struct {
		IP []string `json:"ip"`
	} `json:"filters"`
}

type errorResponse struct {
	Error string `json:"error"`
}
