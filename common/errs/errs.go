package errs

// ErrorKind identifies a kind of internal error.
// fully support for errors.Is and errors.As.
type ErrorKind string

const (
	// NotFound is returned when a requested item is not found.
	NotFound = ErrorKind("Not Found")

	// Unauthorized is returned when the caller lacks the required role.
	Unauthorized = ErrorKind("Unauthorized")

	// LifecycleConflict is returned when an operation is not valid in the
	// current sale lifecycle state, e.g. minting while a sale is open.
	LifecycleConflict = ErrorKind("Lifecycle Conflict")

	// LimitExceeded is returned when a configured cap is reached: wallet
	// purchase limit, mint batch size, settlement batch ceiling.
	LimitExceeded = ErrorKind("Limit Exceeded")

	// InsufficientFunds is returned when the sent payment does not cover
	// the required amount.
	InsufficientFunds = ErrorKind("Insufficient Funds")

	// InvalidArgument is returned on malformed or inconsistent inputs.
	InvalidArgument = ErrorKind("Invalid Argument")

	Unsupported        = ErrorKind("Unsupported")
	InternalError      = ErrorKind("Internal Error")
	SomethingWentWrong = ErrorKind("Something went wrong")
	Timeout            = ErrorKind("Timeout")
	Duplicate          = ErrorKind("Duplicate")
	OverflowUint64     = ErrorKind("overflow uint64")
	OverflowUint128    = ErrorKind("overflow uint128")
)

// Error satisfies the error interface and prints human-readable errors.
func (e ErrorKind) Error() string {
	return string(e)
}
