package domain

import (
	"context"
	"strings"
)

// Asset is one stored file in the asset index.
type Asset struct {
	PublicID string `json:"public_id"`
	URL      string `json:"url"`
}

// Match is the result of a search. PublicID is empty when nothing matched;
// Assets always lists every candidate that was considered.
type Match struct {
	PublicID string
	Assets   []Asset
}

func (m *Match) Found() bool { return m.PublicID != "" }

// AssetIndex lists the assets stored under a folder.
type AssetIndex interface {
	ListFolder(ctx context.Context, folder string, maxResults int) ([]Asset, error)
}

// NormalizeQuery lowercases q and drops everything outside [a-z0-9].
func NormalizeQuery(q string) string {
	q = strings.ToLower(q)
	var b strings.Builder
	b.Grow(len(q))
	for i := 0; i < len(q); i++ {
		c := q[i]
		if ('a' <= c && c <= 'z') || ('0' <= c && c <= '9') {
			b.WriteByte(c)
		}
	}
	return b.String()
}

// CandidateKey derives the search key of a public id: its last path segment,
// cut at the first underscore, lowercased. "signs/cat01_v2.png" -> "cat01".
func CandidateKey(publicID string) string {
	seg := publicID
	if i := strings.LastIndexByte(seg, '/'); i >= 0 {
		seg = seg[i+1:]
	}
	if i := strings.IndexByte(seg, '_'); i >= 0 {
		seg = seg[:i]
	}
	return strings.ToLower(seg)
}

// FindMatch returns the first asset, in index order, whose key equals the
// normalized query exactly.
func FindMatch(query string, assets []Asset) (Asset, bool) {
	key := NormalizeQuery(query)
	for _, a := range assets {
		if CandidateKey(a.PublicID) == key {
			return a, true
		}
	}
	return Asset{}, false
}
