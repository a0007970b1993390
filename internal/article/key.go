package article

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
	"unicode"
)

// KeyOptions tune the duplicate-identity key. Two articles with the
// same normalized title, first-author surname, and published-date
// bucket are considered the same work regardless of source or ID.
type KeyOptions struct {
	// BucketHours is the width of the published-date bucket. Zero
	// means the default of 24h (calendar-day granularity).
	BucketHours int
}

const defaultBucketHours = 24

// IdentityKey builds the stable cross-source identity for an article.
// The key survives punctuation and case variants of the title, so a
// preprint and its journal version collapse to one entry.
func IdentityKey(a Article, opts KeyOptions) string {
	bucket := time.Duration(opts.BucketHours) * time.Hour
	if bucket <= 0 {
		bucket = defaultBucketHours * time.Hour
	}

	parts := []string{
		normalizeTitle(a.Title),
		surname(a.FirstAuthor()),
		a.PublishedAt.UTC().Truncate(bucket).Format("2006-01-02T15"),
	}

	h := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(h[:16])
}

// normalizeTitle lowercases and strips everything that is not a letter
// or digit, collapsing word boundaries to single spaces.
func normalizeTitle(title string) string {
	var b strings.Builder
	b.Grow(len(title))
	for _, r := range strings.ToLower(title) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// surname extracts the last name token from an author string, handling
// both "Jane Doe" and "Doe, Jane" forms.
func surname(author string) string {
	author = strings.ToLower(strings.TrimSpace(author))
	if author == "" {
		return ""
	}
	if i := strings.IndexByte(author, ','); i >= 0 {
		return strings.TrimSpace(author[:i])
	}
	fields := strings.Fields(author)
	return fields[len(fields)-1]
}
