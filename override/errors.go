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

package override

import "errors"

var (
	ErrAlreadyVoted        = errors.New("already voted in this round")
	ErrNoVotes             = errors.New("voter has no weight")
	ErrUnauthorized        = errors.New("caller is not the override owner")
	ErrInvalidConfig       = errors.New("invalid override configuration")
	ErrUnknownWeightSource = errors.New("unknown weight source")
	ErrNotActive           = errors.New("override is not active")
)
