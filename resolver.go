package resque

import (
	"context"
	"math/rand"
	"regexp"
	"strings"

	"github.com/resquego/resque/internal/keys"
	"github.com/resquego/resque/internal/nsredis"
)

// resolveQueues expands pattern against the live "queues" registry,
// honoring literals, "*" wildcards, and "!"-prefixed exclusions. Literal
// entries keep their input order and position; wildcard regions are filled
// with the live queues they match, in a single shared random order, and
// exclusions subtract from that random pool without ever removing a
// literal. If pattern contains neither a wildcard nor an exclusion, the
// literals are returned verbatim without touching Redis.
func resolveQueues(ctx context.Context, rdb *nsredis.Client, patterns []string) ([]string, error) {
	hasWildcard, hasExclusion := false, false
	for _, p := range patterns {
		switch {
		case strings.HasPrefix(p, "!"):
			hasExclusion = true
		case strings.Contains(p, "*"):
			hasWildcard = true
		}
	}
	if !hasWildcard && !hasExclusion {
		out := make([]string, len(patterns))
		copy(out, patterns)
		return out, nil
	}

	var exclusions []string
	for _, p := range patterns {
		if strings.HasPrefix(p, "!") {
			exclusions = append(exclusions, strings.TrimPrefix(p, "!"))
		}
	}

	live, err := rdb.SMembers(ctx, keys.Queues())
	if err != nil {
		return nil, newRedisUnavailable(err)
	}
	rand.Shuffle(len(live), func(i, j int) { live[i], live[j] = live[j], live[i] })

	remaining := make([]string, 0, len(live))
	for _, name := range live {
		if !matchesAnyGlob(exclusions, name) {
			remaining = append(remaining, name)
		}
	}
	available := make(map[string]bool, len(remaining))
	for _, name := range remaining {
		available[name] = true
	}

	var out []string
	for _, p := range patterns {
		switch {
		case strings.HasPrefix(p, "!"):
			continue
		case strings.Contains(p, "*"):
			for _, name := range remaining {
				if available[name] && globMatch(p, name) {
					out = append(out, name)
					available[name] = false
				}
			}
		default:
			out = append(out, p)
			available[p] = false
		}
	}
	return out, nil
}

func matchesAnyGlob(patterns []string, name string) bool {
	for _, p := range patterns {
		if globMatch(p, name) {
			return true
		}
	}
	return false
}

func globMatch(pattern, name string) bool {
	re, err := globToRegexp(pattern)
	if err != nil {
		return pattern == name
	}
	return re.MatchString(name)
}

func globToRegexp(pattern string) (*regexp.Regexp, error) {
	var b strings.Builder
	b.WriteString("^")
	for _, r := range pattern {
		if r == '*' {
			b.WriteString(".*")
		} else {
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString("$")
	return regexp.Compile(b.String())
}
