package sources

import (
	"encoding/json"
	"fmt"
	"os"
)

// Default is the built-in source catalog. Order matters: it fixes the
// display and deduplication order of every report. Deployments can override
// it with Load; the catalog is configuration, not code.
func Default() Catalog {
	return Catalog{
		{
			Platform:    "LinkedIn",
			Category:    Professional,
			URLTemplate: "https://linkedin.com/search/results/people/?keywords={name}",
			CitySuffix:  "&location={city}",
		},
		{
			Platform:    "Lattes (CNPq)",
			Category:    Academic,
			URLTemplate: "https://lattes.cnpq.br/buscacv?q={name}",
		},
		{
			Platform:    "Google Scholar",
			Category:    Academic,
			URLTemplate: "https://scholar.google.com/scholar?q=%22{name}%22",
		},
		{
			Platform:    "Facebook",
			Category:    Social,
			URLTemplate: "https://www.facebook.com/search/people/?q={name}",
		},
		{
			Platform:       "Instagram",
			Category:       Social,
			URLTemplate:    "https://instagram.com/{username}",
			SearchTemplate: "https://www.instagram.com/explore/tags/{nameCompact}",
			NeedsUsername:  true,
		},
		{
			Platform:       "Twitter/X",
			Category:       Social,
			URLTemplate:    "https://twitter.com/{username}",
			SearchTemplate: "https://twitter.com/search?q={name}&f=user",
			NeedsUsername:  true,
		},
		{
			Platform:      "GitHub",
			Category:      Development,
			URLTemplate:   "https://github.com/{username}",
			FetchTemplate: "https://api.github.com/users/{username}",
			NeedsUsername: true,
		},
		{
			Platform:      "GitLab",
			Category:      Development,
			URLTemplate:   "https://gitlab.com/{username}",
			NeedsUsername: true,
		},
		{
			Platform:    "Stack Overflow",
			Category:    Development,
			URLTemplate: "https://stackoverflow.com/users?tab=reputation&filter=all&search={name}",
		},
		{
			Platform:    "Medium",
			Category:    Content,
			URLTemplate: "https://medium.com/search/posts?q={name}",
		},
		{
			Platform:    "YouTube",
			Category:    Content,
			URLTemplate: "https://www.youtube.com/results?search_query={name}",
		},
		{
			Platform:     "JusBrasil",
			Category:     Legal,
			URLTemplate:  "https://www.jusbrasil.com.br/busca?q={name}",
			RequiresCity: true,
		},
		{
			Platform:     "Transparência Brasil",
			Category:     Public,
			URLTemplate:  "https://www.transparencia.org.br/busca?q={name}",
			RequiresCity: true,
		},
		{
			Platform:    "Google",
			Category:    General,
			URLTemplate: "https://www.google.com/search?q=%22{name}%22",
			CitySuffix:  "+%22{city}%22",
		},
	}
}

// Load reads a catalog from a JSON file. An empty catalog is rejected: a
// deployment that wants no sources has no reason to run a search at all.
func Load(path string) (Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	var c Catalog
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", path, err)
	}
	if len(c) == 0 {
		return nil, fmt.Errorf("catalog %s is empty", path)
	}
	for i, e := range c {
		if e.Platform == "" || e.URLTemplate == "" {
			return nil, fmt.Errorf("catalog %s: entry %d is missing platform or urlTemplate", path, i)
		}
	}
	return c, nil
}
