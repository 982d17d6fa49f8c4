package discord

import (
	"container/list"
	"strings"
	"sync"
	"time"
)

// OutboundDedup suppresses near-duplicate outbound chunks within a
// short recent window per (channel, username), grounded on the
// teacher's word-level Jaccard stringOverlap (teleprompter/selector.go)
// but computed over character trigrams per spec §4.1 step 3 ("near-
// duplicate suppression: trigram-Jaccard similarity against recent
// (channel, username) history above a configurable threshold").
type OutboundDedup struct {
	mu        sync.Mutex
	threshold float64
	window    int
	ttl       time.Duration
	recent    map[string]*list.List
}

type dedupEntry struct {
	content   string
	trigrams  map[string]struct{}
	expiresAt time.Time
}

// NewOutboundDedup builds a dedup checker with the given similarity
// threshold (spec default 0.9, config field DedupSimilarity) and a
// bounded per-key history window.
func NewOutboundDedup(threshold float64, window int, ttl time.Duration) *OutboundDedup {
	if threshold <= 0 {
		threshold = 0.9
	}
	if window <= 0 {
		window = 20
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &OutboundDedup{
		threshold: threshold,
		window:    window,
		ttl:       ttl,
		recent:    make(map[string]*list.List),
	}
}

func dedupKey(channelID, username string) string {
	return channelID + "\x00" + username
}

// IsNearDuplicate reports whether content is similar enough to anything
// recently sent under (channelID, username) to suppress.
func (d *OutboundDedup) IsNearDuplicate(channelID, username, content string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	key := dedupKey(channelID, username)
	hist, ok := d.recent[key]
	if !ok {
		return false
	}

	now := time.Now()
	grams := trigramSet(content)
	for e := hist.Front(); e != nil; e = e.Next() {
		entry := e.Value.(dedupEntry)
		if now.After(entry.expiresAt) {
			continue
		}
		if jaccard(grams, entry.trigrams) >= d.threshold {
			return true
		}
	}
	return false
}

// Record adds content to (channelID, username)'s recent history,
// trimming both expired entries and anything past the window bound.
func (d *OutboundDedup) Record(channelID, username, content string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	key := dedupKey(channelID, username)
	hist, ok := d.recent[key]
	if !ok {
		hist = list.New()
		d.recent[key] = hist
	}

	hist.PushFront(dedupEntry{
		content:   content,
		trigrams:  trigramSet(content),
		expiresAt: time.Now().Add(d.ttl),
	})
	for hist.Len() > d.window {
		oldest := hist.Back()
		if oldest == nil {
			break
		}
		hist.Remove(oldest)
	}
}

// trigramSet breaks normalized content into overlapping 3-rune windows.
// Content shorter than 3 runes becomes its own single-element set so
// very short chunks still compare sensibly rather than always matching.
func trigramSet(content string) map[string]struct{} {
	normalized := strings.ToLower(strings.Join(strings.Fields(content), " "))
	runes := []rune(normalized)
	set := make(map[string]struct{})
	if len(runes) < 3 {
		if len(runes) > 0 {
			set[string(runes)] = struct{}{}
		}
		return set
	}
	for i := 0; i+3 <= len(runes); i++ {
		set[string(runes[i:i+3])] = struct{}{}
	}
	return set
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1.0
	}
	if len(a) == 0 || len(b) == 0 {
		return 0.0
	}

	intersection := 0
	for g := range a {
		if _, ok := b[g]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0.0
	}
	return float64(intersection) / float64(union)
}
