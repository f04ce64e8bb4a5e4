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

// Package ir defines the instruction and control-flow-graph representation consumed by the analyses in this
// repository. The instruction set is restricted to the object-tracking operations of a Dalvik-style register
// machine; everything else is encoded as an unknown instruction. Building graphs from actual bytecode is the job
// of an external frontend, which targets the constructors of this package.
package ir
