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
	"bytes"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

func TestCachePublishAndGet(t *testing.T) {
	cache := NewSummaryCache()
	if _, ok := cache.Get("LFoo;.bar:()V"); ok {
		t.Errorf("an empty cache should hold nothing")
	}

	first := NewEscapeSummary(NewParamSet(0), 1)
	cache.Publish("LFoo;.bar:()V", first)
	if got, ok := cache.Get("LFoo;.bar:()V"); !ok || !got.Equal(first) {
		t.Errorf("Get after Publish = (%s, %t), want (%s, true)", got, ok, first)
	}

	// The first publication wins.
	cache.Publish("LFoo;.bar:()V", NewEscapeSummary(TopParamSet()))
	if got, _ := cache.Get("LFoo;.bar:()V"); !got.Equal(first) {
		t.Errorf("re-publishing must not overwrite, got %s", got)
	}
	if cache.Size() != 1 {
		t.Errorf("Size() = %d, want 1", cache.Size())
	}
}

func TestCacheSaveLoadRoundTrip(t *testing.T) {
	cache := NewSummaryCache()
	cache.Publish("LB;.g:()V", NewEscapeSummary(TopParamSet(), 0))
	cache.Publish("LA;.f:()V", NewEscapeSummary(NewParamSet(0), 1))

	var buf bytes.Buffer
	if err := cache.Save(&buf); err != nil {
		t.Fatalf("Save: %v", err)
	}
	want := "LA;.f:()V ((#1) (#0))\nLB;.g:()V ((#0) Top)\n"
	if buf.String() != want {
		t.Errorf("Save wrote %q, want %q", buf.String(), want)
	}

	loaded := NewSummaryCache()
	if err := loaded.Load(strings.NewReader(buf.String())); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Size() != 2 {
		t.Fatalf("loaded %d summaries, want 2", loaded.Size())
	}
	for _, id := range cache.MethodIDs() {
		orig, _ := cache.Get(id)
		got, ok := loaded.Get(id)
		if !ok || !got.Equal(orig) {
			t.Errorf("loaded summary of %s = (%s, %t), want (%s, true)", id, got, ok, orig)
		}
	}
}

func TestCacheLoadSkipsBlankLines(t *testing.T) {
	cache := NewSummaryCache()
	input := "\nLA;.f:()V (() ())\n\n  \nLB;.g:()V (() Top)\n"
	if err := cache.Load(strings.NewReader(input)); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cache.Size() != 2 {
		t.Errorf("loaded %d summaries, want 2", cache.Size())
	}
}

func TestCacheLoadRejectsMalformedLines(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"no-summary", "LA;.f:()V\n"},
		{"bad-summary", "LA;.f:()V (()\n"},
		{"garbage", "not a summary line at all\n"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			cache := NewSummaryCache()
			err := cache.Load(strings.NewReader(test.input))
			if err == nil {
				t.Fatalf("Load(%q) should fail", test.input)
			}
			if !strings.Contains(err.Error(), "line 1") {
				t.Errorf("error should identify the line, got %v", err)
			}
		})
	}
}

func TestCacheFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "summaries.out")
	cache := NewSummaryCache()
	cache.Publish("LA;.f:()V", NewEscapeSummary(NewParamSet()))
	if err := cache.SaveFile(path); err != nil {
		t.Fatalf("SaveFile: %v", err)
	}

	loaded := NewSummaryCache()
	if err := loaded.LoadFile(path); err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if got, ok := loaded.Get("LA;.f:()V"); !ok || got.ToSExpr() != "(() ())" {
		t.Errorf("loaded (%s, %t), want ((() ()), true)", got, ok)
	}

	if err := loaded.LoadFile(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Errorf("loading a missing file should fail")
	}
}

func TestCacheConcurrentReaders(t *testing.T) {
	cache := NewSummaryCache()
	cache.Publish("LA;.f:()V", NewEscapeSummary(NewParamSet(0)))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				if s, ok := cache.Get("LA;.f:()V"); !ok || s.ToSExpr() != "(() (#0))" {
					t.Errorf("concurrent Get returned (%s, %t)", s, ok)
					return
				}
				cache.Publish("LA;.f:()V", NewEscapeSummary(TopParamSet()))
			}
		}(i)
	}
	wg.Wait()
}
