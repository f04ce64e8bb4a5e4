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

// Package funcutil provides generic helpers over slices, maps and sets used throughout the analyses.
package funcutil

import (
	"sort"
	"sync"

	"golang.org/x/exp/constraints"
)

// Iter iterates over all elements in the slice and call the function on that element.
func Iter[T any](a []T, f func(T)) {
	for _, x := range a {
		f(x)
	}
}

// Map returns a new slice b such for any i <= len(a), b[i] = f(a[i])
func Map[T any, S any](a []T, f func(T) S) []S {
	var b []S
	for _, x := range a {
		b = append(b, f(x))
	}
	return b
}

// elt is a helper struct to ensure that MapParallel maintains element order.
type elt[T any] struct {
	idx int // index in original slice
	x   T
}

// MapParallel is a parallel version of Map using numRoutines goroutines.
func MapParallel[T any, S any](a []T, f func(T) S, numRoutines int) []S {
	in := make(chan elt[T])
	go func() {
		defer close(in)
		for i, x := range a {
			in <- elt[T]{i, x}
		}
	}()

	out := make(chan elt[S])
	wg := &sync.WaitGroup{}
	if numRoutines <= 0 {
		numRoutines = 1
	}

	wg.Add(numRoutines)
	for i := 0; i < numRoutines; i++ {
		go func() {
			defer wg.Done()
			for x := range in {
				out <- elt[S]{x.idx, f(x.x)}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(out)
	}()

	xs := make([]elt[S], 0, len(a))
	for x := range out {
		xs = append(xs, x)
	}

	res := make([]S, len(xs))
	for _, x := range xs {
		res[x.idx] = x.x
	}

	return res
}

// SetToOrderedSlice converts a set represented as a map from elements to booleans into a slice.
// Sorts the result in increasing order
func SetToOrderedSlice[T constraints.Ordered](set map[T]bool) []T {
	var s []T
	for r, b := range set {
		if b {
			s = append(s, r)
		}
	}
	sort.Slice(s, func(i int, j int) bool { return s[i] < s[j] })
	return s
}

// Reverse reverses the slice in place.
func Reverse[T any](a []T) {
	for i, j := 0, len(a)-1; i < j; i, j = i+1, j-1 {
		a[i], a[j] = a[j], a[i]
	}
}
