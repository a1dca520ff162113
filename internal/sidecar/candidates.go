package sidecar

import (
	"fmt"
	"net/url"
	"strings"
)

// ResolveFunc maps a candidate file name to an absolute URL for the given
// audio file.
type ResolveFunc func(audio *url.URL, filename string) (string, error)

func defaultResolve(audio *url.URL, filename string) (string, error) {
	return audio.ResolveReference(&url.URL{Path: filename}).String(), nil
}

// stripExtension removes the last extension unless the name is a dotfile.
func stripExtension(name string) string {
	i := strings.LastIndexByte(name, '.')
	if i <= 0 {
		return name
	}
	return name[:i]
}

// CandidateGroups returns one group of URLs per stem. Stems are the
// configured names followed by the audio file's basename; every group holds
// one URL per extension.
func CandidateGroups(audioURL string, cfg Config) ([][]string, error) {
	audio, err := url.Parse(audioURL)
	if err != nil {
		return nil, fmt.Errorf("invalid audio URL %q: %w", audioURL, err)
	}
	resolve := cfg.Resolve
	if resolve == nil {
		resolve = defaultResolve
	}

	stems := append([]string{}, cfg.Names...)
	if cfg.IncludeBasename {
		leaf := audio.Path[strings.LastIndexByte(audio.Path, '/')+1:]
		if base := stripExtension(leaf); base != "" {
			stems = append(stems, base)
		}
	}

	var groups [][]string
	seenStem := make(map[string]bool, len(stems))
	for _, stem := range stems {
		if stem == "" || seenStem[stem] {
			continue
		}
		seenStem[stem] = true

		var urls []string
		seenURL := make(map[string]bool, len(cfg.Exts))
		for _, ext := range cfg.Exts {
			u, err := resolve(audio, stem+"."+ext)
			if err != nil {
				return nil, fmt.Errorf("resolving sidecar %s.%s: %w", stem, ext, err)
			}
			if seenURL[u] {
				continue
			}
			seenURL[u] = true
			urls = append(urls, u)
		}
		if len(urls) > 0 {
			groups = append(groups, urls)
		}
	}
	return groups, nil
}
