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

// Package localpointers implements a local-pointers (escape) analysis over method bodies in the ir
// representation. For each program point it computes which abstract memory origins (allocation sites and
// parameters) every register may reference, and whether each origin may have become reachable from outside the
// method. From the converged state it derives a compact per-method escape summary (which parameters may be
// returned, which may escape) that the analyses of calling methods consume, enabling interprocedural reasoning
// without inlining.
//
// Every situation the analysis cannot track precisely (unknown callees, values loaded from fields, unrecognized
// instructions) is modeled by conservative lattice values rather than errors: imprecision is always safe, never
// incorrect.
package localpointers
