// Package errors provides the classified errors used across docpipe.
//
// Every error that reaches the CLI carries an ErrorCategory, which selects the
// exit code, plus structured context that is logged with it:
//
//	err := errors.WrapError(runErr, errors.CategoryCommand, "command failed").
//		WithContext("command", "pnpm run build").
//		WithContext("exit_code", 1).
//		Build()
package errors
