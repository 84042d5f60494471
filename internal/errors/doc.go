// Package errors provides structured, actionable error messages for the
// frp command line and server.
//
// Each error has a unique code that maps to a short message, a longer
// explanation and a documentation URL. The codes raised by the engine
// itself (frp.NodeError) are registered here too, so an abort caught at
// the edge of the program can be shown with the same catalogue entry:
//
//	defer func() {
//	    if r := recover(); r != nil {
//	        if ne, ok := frp.AsNodeError(r); ok {
//	            errors.PrintError(errors.FromNodeError(ne))
//	        }
//	    }
//	}()
//
// # Error Categories
//
//   - runtime: propagation aborts and wiring mistakes (E101-E199)
//   - config: configuration file problems (E301-E399)
//   - protocol: bridge and wire errors (E401-E499)
//   - cli: command line usage errors (E501-E599)
//
// # Usage
//
//	err := errors.New("E302").
//	    WithDetail(`server.addr "nope" is not host:port`).
//	    WithSuggestion(`Use a value such as ":8080"`)
//
//	fmt.Println(err.Format())
//	// Output:
//	// ERROR E302: Invalid configuration value
//	//
//	//   server.addr "nope" is not host:port
//	//
//	//   Hint: Use a value such as ":8080"
//	//
//	//   Learn more: https://frp.vango.dev/docs/errors/E302
package errors
