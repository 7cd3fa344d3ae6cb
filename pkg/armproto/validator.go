// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package armproto

import "fmt"

// AnomalyType represents different types of frame anomalies
type AnomalyType int

const (
	AnomalyOutOfRange AnomalyType = iota
)

// ValidationError describes a decoded value outside its intended range.
// Frames with anomalies are still applied; the actuator clamps.
type ValidationError struct {
	Type    AnomalyType
	Joint   Joint
	Message string
}

// Error implements the error interface
func (v *ValidationError) Error() string {
	return v.Message
}

// ValidateAngles reports every joint whose angle exceeds MaxAngle
func ValidateAngles(a JointAngles) []ValidationError {
	var errors []ValidationError
	for _, j := range Joints {
		if v := a.Get(j); v > MaxAngle {
			errors = append(errors, ValidationError{
				Type:    AnomalyOutOfRange,
				Joint:   j,
				Message: fmt.Sprintf("%s angle %d exceeds %d (will be clamped)", j, v, MaxAngle),
			})
		}
	}
	return errors
}
