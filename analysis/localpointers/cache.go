// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package localpointers

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
)

// SummaryCache stores published escape summaries keyed by method identity. It is the only shared mutable state of
// a whole-program run: each method's summary is published exactly once after its fixpoint converges, and is
// immutable afterwards, so concurrent readers need no coordination beyond the cache's own lock.
//
// The cache is an explicit value injected into the analyses rather than a process global, so that runs can be
// isolated from each other.
type SummaryCache struct {
	mu        sync.RWMutex
	summaries map[string]EscapeSummary
}

// NewSummaryCache returns an empty cache.
func NewSummaryCache() *SummaryCache {
	return &SummaryCache{summaries: map[string]EscapeSummary{}}
}

// Get returns the published summary of the given method, if any.
func (c *SummaryCache) Get(methodID string) (EscapeSummary, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.summaries[methodID]
	return s, ok
}

// Publish records the summary of the given method. The first publication wins; re-publishing is a no-op, since a
// summary is immutable once computed.
func (c *SummaryCache) Publish(methodID string, summary EscapeSummary) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.summaries[methodID]; !ok {
		c.summaries[methodID] = summary
	}
}

// Size returns the number of published summaries.
func (c *SummaryCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.summaries)
}

// MethodIDs returns the identities of all methods with a published summary, sorted.
func (c *SummaryCache) MethodIDs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ids := make([]string, 0, len(c.summaries))
	for id := range c.summaries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Save writes the cache in its line-oriented textual form, one "<method-id> <summary>" line per method, sorted by
// method identity so that the output is deterministic.
func (c *SummaryCache) Save(w io.Writer) error {
	bw := bufio.NewWriter(w)
	for _, id := range c.MethodIDs() {
		s, _ := c.Get(id)
		if _, err := fmt.Fprintf(bw, "%s %s\n", id, s.ToSExpr()); err != nil {
			return fmt.Errorf("could not write summary for %s: %w", id, err)
		}
	}
	return bw.Flush()
}

// Load reads summaries in the form written by Save and publishes them into the cache. A malformed line aborts the
// load with an error identifying the line; cached summaries must be indistinguishable from freshly computed ones,
// so a corrupt entry can never be skipped silently.
func (c *SummaryCache) Load(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	lineno := 0
	for scanner.Scan() {
		lineno++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		id, sexpr, ok := strings.Cut(line, " ")
		if !ok {
			return fmt.Errorf("line %d: expected \"<method-id> <summary>\"", lineno)
		}
		summary, err := FromSExpr(strings.TrimSpace(sexpr))
		if err != nil {
			return fmt.Errorf("line %d: %w", lineno, err)
		}
		c.Publish(id, summary)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("could not read summaries: %w", err)
	}
	return nil
}

// SaveFile writes the cache to the named file.
func (c *SummaryCache) SaveFile(path string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("could not create summaries file: %w", err)
	}
	defer file.Close()
	return c.Save(file)
}

// LoadFile reads summaries from the named file into the cache.
func (c *SummaryCache) LoadFile(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("could not open summaries file: %w", err)
	}
	defer file.Close()
	return c.Load(file)
}
