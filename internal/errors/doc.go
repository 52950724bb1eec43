// Package errors provides the structured error type used across rpg-sheet.
//
// Errors carry a Code, a user-facing Message, an optional Cause and free-form
// metadata:
//
//	err := errors.NotFound("session state not found").
//	    WithMeta("key", key)
//
// Wrapping keeps the code of the wrapped error:
//
//	if err := repo.Put(ctx, input); err != nil {
//	    return errors.Wrap(err, "failed to save session state")
//	}
//
// # Validation Errors
//
// Document and configuration checks collect every problem before failing:
//
//	vb := errors.NewValidationBuilder()
//	errors.ValidateRequired("store", cfg.Store, vb)
//	errors.ValidateNonNegative("combat.hitPoints.maximum", maxHP, vb)
//	if err := vb.Build(); err != nil {
//	    return err
//	}
//
// # Layer-Specific Guidelines
//
// Repository layer:
//   - Return NotFound for missing keys
//   - Wrap driver errors with context
//
// Tracker layer:
//   - Never return errors for out-of-range amounts or unknown identifiers
//   - Log persistence failures instead of returning them
//   - Return InvalidArgument for rejected imports
//
// CLI layer:
//   - Print GetMessage(err) and exit with GetCode(err).ExitCode()
package errors
