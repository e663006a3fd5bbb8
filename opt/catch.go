package opt

import (
	"runtime"

	"github.com/cockroachdb/errors"
)

// CatchOptimizerError converts a value recovered from a panic in memo or
// exploration code into an error. Internal invariant violations are raised
// as assertion-failure panics rather than threaded through every call; this
// converts them back at the boundary of an optimization pass:
//
//   defer func() {
//     if r := recover(); r != nil {
//       err = opt.CatchOptimizerError(r)
//     }
//   }()
//
// The memo that raised the panic is left in an undefined state and must be
// discarded.
func CatchOptimizerError(r interface{}) error {
	err, ok := r.(error)
	if !ok {
		// Not an error object. For serious internal errors e.g. in the scheduler,
		// bad goroutine state, allocator problem etc, the go runtime throws a
		// string which does not implement error. So in this case we suspect we are
		// not able to recover, and must crash.
		panic(r)
	}
	if errors.HasInterface(err, (*runtime.Error)(nil)) {
		// Convert runtime errors (index out of range and friends) to assertion
		// failures, since they can only be caused by a corrupt memo.
		return errors.HandleAsAssertionFailure(err)
	}
	return err
}
