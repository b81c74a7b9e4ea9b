// Package plugin provides JavaScript request handlers.
//
// Scripts are loaded from a directory at startup. Each script must declare:
//   - a @request directive naming the request type it handles
//   - an optional @response directive naming the response type it produces
//   - a handle(request) function returning the response fields
//
// A script rejects a request with fail(code, message), which surfaces as a
// business fault carrying code.
//
// Example script:
//
//	// @request DiscountRequest
//	// @response DiscountResponse
//	function handle(request) {
//	    if (request.total <= 0) {
//	        fail("EMPTY_ORDER", "nothing to discount");
//	    }
//	    return { percent: request.total > 100 ? 10 : 0 };
//	}
package plugin
