// Package errors provides coded, actionable error messages for the tether
// command and its configuration loader.
//
// Each error carries a code that maps to a registered template:
//   - T1xx: configuration (file loading, validation)
//   - T2xx: transport (handshake, frames, listener)
//   - T3xx: runtime (dispatch, sessions, shutdown)
//   - T4xx: command line
//
// Configuration errors can point at the offending line of the file:
//
//	err := errors.New("T108").
//	    WithLocation("tether.yaml", 3, 7).
//	    WithSuggestion(`use "shared" or "per-browser"`)
//
//	errors.PrintError(os.Stderr, err)
//	// ERROR T108: Invalid session mode
//	//
//	//   tether.yaml:3:7
//	//
//	//        2 │ title: Counter
//	//   →    3 │ mode: both
//	//          │       ^
//	//        4 │ interval: 100ms
//	//
//	//   Hint: use "shared" or "per-browser"
package errors
