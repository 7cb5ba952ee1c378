package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Site holds the target's URLs.
type Site struct {
	Domain    string `yaml:"domain"`
	LoginURL  string `yaml:"login_url"`
	LoginPath string `yaml:"login_path"`
	SearchURL string `yaml:"search_url"`
	PageParam string `yaml:"page_param"`
}

type LoginSelectors struct {
	Form     []string `yaml:"form"`
	Username string   `yaml:"username"`
	Password string   `yaml:"password"`
}

type SearchSelectors struct {
	QueryInput   string `yaml:"query_input"`
	SubmitButton string `yaml:"submit_button"`
}

// ResultSelectors are ordered fallback chains; the first selector that
// yields something wins.
type ResultSelectors struct {
	Containers    []string `yaml:"containers"`
	Cards         []string `yaml:"cards"`
	Title         []string `yaml:"title"`
	Timestamp     []string `yaml:"timestamp"`
	Hostnames     []string `yaml:"hostnames"`
	Tags          []string `yaml:"tags"`
	Banner        []string `yaml:"banner"`
	NoResults     []string `yaml:"no_results"`
	NoResultsText string   `yaml:"no_results_text"`
}

type Selectors struct {
	Site    Site            `yaml:"site"`
	Login   LoginSelectors  `yaml:"login"`
	Search  SearchSelectors `yaml:"search"`
	Results ResultSelectors `yaml:"results"`
}

// DefaultSelectors returns the selectors for the current shodan.io markup.
func DefaultSelectors() Selectors {
	return Selectors{
		Site: Site{
			Domain:    "shodan.io",
			LoginURL:  "https://account.shodan.io/login",
			LoginPath: "/login",
			SearchURL: "https://www.shodan.io/search/advanced",
			PageParam: "page",
		},
		Login: LoginSelectors{
			Form:     []string{`form[action*="login"]`, `input[name="username"]`},
			Username: `input[name="username"]`,
			Password: `input[name="password"]`,
		},
		Search: SearchSelectors{
			QueryInput:   `input[name="query"]`,
			SubmitButton: `button[type="submit"]`,
		},
		Results: ResultSelectors{
			Containers:    []string{`div.result`, `.search-result`, `.result-item`},
			Cards:         []string{`div.result`, `.search-result`, `.result-item`},
			Title:         []string{`a.title`, `.heading a.title`, `h4 a`, `.heading a`},
			Timestamp:     []string{`.timestamp`, `time`},
			Hostnames:     []string{`.hostnames li`, `.hostnames`},
			Tags:          []string{`.tag`, `.tags a`},
			Banner:        []string{`pre`, `.banner`},
			NoResults:     []string{`.no-results`},
			NoResultsText: "No results found",
		},
	}
}

// LoadSelectors reads a YAML file over the defaults. Keys missing from the
// file keep their default value; a present list replaces the default list.
func LoadSelectors(path string) (Selectors, error) {
	s := DefaultSelectors()

	data, err := os.ReadFile(path)
	if err != nil {
		return s, fmt.Errorf("%w: read selectors file: %v", ErrConfig, err)
	}
	if err := yaml.Unmarshal(data, &s); err != nil {
		return s, fmt.Errorf("%w: parse selectors file %s: %v", ErrConfig, path, err)
	}
	return s, nil
}
