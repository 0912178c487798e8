// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package capability

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnknownCapability is returned when no capability is registered under a name.
	ErrUnknownCapability = errors.New("unknown capability")

	// ErrUnknownMethod is returned when a capability has no such method.
	ErrUnknownMethod = errors.New("unknown method")

	// ErrInvalidParameter is returned when a call names a parameter the method does not declare.
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrSchemaMissing is a configuration error: a multi-argument call reached
	// a method whose schema declares no parameters.
	ErrSchemaMissing = errors.New("method schema declares no parameters")

	// ErrInvalidArgument is returned by capabilities for arguments of the wrong type.
	ErrInvalidArgument = errors.New("invalid argument")
)

// InvalidParameterError names the offending parameter and the valid set.
type InvalidParameterError struct {
	Function string
	Param    string
	Valid    []string
}

func (e *InvalidParameterError) Error() string {
	return fmt.Sprintf("invalid parameter name: %s for function %s. Valid parameters are: %s",
		e.Param, e.Function, strings.Join(e.Valid, ", "))
}

// Is makes errors.Is(err, ErrInvalidParameter) hold.
func (e *InvalidParameterError) Is(target error) bool {
	return target == ErrInvalidParameter
}

// UnknownMethod builds the error capabilities return from Invoke's default branch.
func UnknownMethod(capability, method string) error {
	return fmt.Errorf("%w: %s has no method %s", ErrUnknownMethod, capability, method)
}

func unknownCapability(name string) error {
	return fmt.Errorf("%w: function class %s does not exist", ErrUnknownCapability, name)
}
