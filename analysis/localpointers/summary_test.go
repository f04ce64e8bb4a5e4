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

import "testing"

func TestSummarySExprForms(t *testing.T) {
	tests := []struct {
		name    string
		summary EscapeSummary
		want    string
	}{
		{"empty", NewEscapeSummary(NewParamSet()), "(() ())"},
		{"returned-only", NewEscapeSummary(NewParamSet(0)), "(() (#0))"},
		{"escaping-only", NewEscapeSummary(NewParamSet(), 1), "((#1) ())"},
		{"both", NewEscapeSummary(NewParamSet(0), 1), "((#1) (#0))"},
		{"top-returned", NewEscapeSummary(TopParamSet()), "(() Top)"},
		{"several", NewEscapeSummary(NewParamSet(0, 2), 1, 3), "((#1 #3) (#0 #2))"},
		{"multi-digit", NewEscapeSummary(NewParamSet(12)), "(() (#12))"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got := test.summary.ToSExpr()
			if got != test.want {
				t.Fatalf("ToSExpr() = %q, want %q", got, test.want)
			}
			parsed, err := FromSExpr(got)
			if err != nil {
				t.Fatalf("FromSExpr(%q): %v", got, err)
			}
			if !parsed.Equal(test.summary) {
				t.Errorf("FromSExpr(ToSExpr()) = %s, want %s", parsed, test.summary)
			}
		})
	}
}

func TestSummaryFromSExprAcceptsExtraSpaces(t *testing.T) {
	parsed, err := FromSExpr("( ( #1 )  ( #0 ) )")
	if err != nil {
		t.Fatalf("FromSExpr: %v", err)
	}
	if !parsed.Equal(NewEscapeSummary(NewParamSet(0), 1)) {
		t.Errorf("parsed %s, want ((#1) (#0))", parsed)
	}
}

func TestSummaryFromSExprRejectsMalformedInput(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"no-parens", "Top"},
		{"missing-returned", "((#1))"},
		{"unterminated", "((#1) (#0)"},
		{"unterminated-list", "((#1"},
		{"trailing", "((#1) (#0)) extra"},
		{"bad-atom", "(() Bottom)"},
		{"lowercase-top", "(() top)"},
		{"top-escaping", "(Top ())"},
		{"bare-index", "((1) (#0))"},
		{"hash-no-digits", "((#) (#0))"},
		{"negative-index", "((#-1) ())"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if _, err := FromSExpr(test.input); err == nil {
				t.Errorf("FromSExpr(%q) should fail", test.input)
			}
		})
	}
}

func TestParamSetOperations(t *testing.T) {
	p := NewParamSet(2, 0)
	if p.IsTop() {
		t.Errorf("a finite set is not Top")
	}
	p.Add(1)
	if !p.Has(0) || !p.Has(1) || !p.Has(2) || p.Has(3) {
		t.Errorf("unexpected membership in %s", p)
	}
	if got := p.String(); got != "(#0 #1 #2)" {
		t.Errorf("String() = %q, want %q", got, "(#0 #1 #2)")
	}

	top := TopParamSet()
	top.Add(5)
	if top.Has(5) || top.Len() != 0 {
		t.Errorf("adding to Top must be a no-op")
	}
	if top.String() != "Top" {
		t.Errorf("String() = %q, want Top", top.String())
	}
	if p.Equal(top) || !p.Equal(p.Copy()) || !top.Equal(top.Copy()) {
		t.Errorf("equality should distinguish Top from finite sets and respect copies")
	}
}
