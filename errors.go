/*
 * Copyright 2019 Dgraph Labs, Inc. and Contributors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package sketches

import (
	"errors"
	"fmt"

	pkgerrors "github.com/pkg/errors"
)

// Construction-time error sentinels. Runtime update/query operations never
// fail (spec §7, §4.10): saturation and empty-reservoir conditions are
// normal and handled inline, not surfaced as errors.
var (
	ErrInvalidCapacity    = errors.New("sketches: invalid capacity parameter")
	ErrInconsistentLayers = errors.New("sketches: inconsistent layer configuration")
	ErrKeyLengthMismatch  = errors.New("sketches: flow key length mismatch")
)

// invalidCapacity wraps ErrInvalidCapacity with the offending field/value,
// mirroring the teacher's construction-time validation in cache.go, which
// returns a plain errors.New for the sentinel message. Context is layered on
// with github.com/pkg/errors so callers can still errors.Is(err,
// ErrInvalidCapacity) after unwrapping.
func invalidCapacity(field string, got interface{}) error {
	return pkgerrors.Wrapf(ErrInvalidCapacity, "%s must be positive, got %v", field, got)
}

func inconsistentLayers(reason string) error {
	return pkgerrors.Wrap(ErrInconsistentLayers, reason)
}

func errKeyLengthMismatch(a, b int) error {
	return pkgerrors.Wrapf(ErrKeyLengthMismatch, "key lengths %d and %d differ", a, b)
}

// unrecognizedHashID reports an out-of-range CRC bank selector. The source
// (common/hash.h's CRCHash::operator()) leaves this case undefined; here it
// is a construction-time error instead, per spec.md's Design Notes.
func unrecognizedHashID(id int) error {
	return pkgerrors.Wrap(ErrInvalidCapacity, fmt.Sprintf("crc hash id %d out of range 0..8", id))
}
