// Package errors provides the classified error type used across the assembler.
//
// Every fatal condition of an assembly session surfaces as a *ClassifiedError whose
// Message is the human-readable text shown to the user. The category decides how the
// CLI reports the failure (exit code, log level).
//
// Example usage:
//
//	err := errors.ReferenceError("Project with name 'QAction_1' could not be found!").
//		WithContext("unit", "QAction_1").
//		Build()
package errors
