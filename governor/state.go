// Copyright 2025 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package governor

import "fmt"

type ProposalState uint8

const (
	StateActive ProposalState = iota
	StateTimelocked
	StateExecutable
	StateExecuted
	StateExpired
	StateFailed
)

func (s ProposalState) String() string {
	switch s {
	case StateActive:
		return "ACTIVE"
	case StateTimelocked:
		return "TIMELOCKED"
	case StateExecutable:
		return "EXECUTABLE"
	case StateExecuted:
		return "EXECUTED"
	case StateExpired:
		return "EXPIRED"
	case StateFailed:
		return "FAILED"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", uint8(s))
	}
}
