package rwerrors

import (
	"errors"
	"strings"
)

// Dispatch (D) Errors
var (
	ErrUnknownSysCall = errors.New("D1|UnknownSysCall: Call instruction names a platform function outside the known set.")
	ErrCounterGap     = errors.New("D2|CounterGap: Row counter is not exactly one past the previous row.")
	ErrMissingState   = errors.New("D3|MissingState: Execution step is missing the machine state the generator needs.")
	ErrStackUnderflow = errors.New("D4|StackUnderflow: Operand shape reads below the bottom of the stack.")
)

// Bounds (B) Errors
var (
	ErrMemoryOutOfBounds = errors.New("B1|MemoryOutOfBounds: Memory range exceeds the current memory size.")
	ErrTableOutOfBounds  = errors.New("B2|TableOutOfBounds: Table index or element range exceeds the table size or maximum.")
)

// Fuel & Call (F) Errors
var (
	ErrOutOfFuel          = errors.New("F1|OutOfFuel: Remaining fuel is smaller than the amount to consume.")
	ErrCallDepthExceeded  = errors.New("F2|CallDepthExceeded: Nested execution exceeds the maximum call depth.")
	ErrTransactError      = errors.New("F3|TransactError: Nested hash-addressed execution did not finish successfully.")
	ErrOutputOverflow     = errors.New("F4|OutputOverflow: Nested execution output exceeds the declared return size.")
	ErrEngineNotAvailable = errors.New("F5|EngineNotAvailable: No execution engine is attached to the state.")
)

// Account (A) Errors
var (
	ErrNonceOverflow       = errors.New("A1|NonceOverflow: Account nonce is already at its maximum value.")
	ErrInsufficientBalance = errors.New("A2|InsufficientBalance: Account balance is smaller than the amount to subtract.")
	ErrCreateCollision     = errors.New("A3|CreateCollision: Target address of account creation is not empty.")
	ErrOverflowPayment     = errors.New("A4|OverflowPayment: Adding to the account balance overflows 256 bits.")
	ErrBadAccountFields    = errors.New("A5|BadAccountFields: Account field array has the wrong shape.")
	ErrNoCheckpoint        = errors.New("A6|NoCheckpoint: Commit or rollback without an open checkpoint.")
)

// GetErrorName extracts the error name from the error message.
func GetErrorName(err error) string {
	if err == nil {
		return "No Error"
	}
	errStr := err.Error()
	if !strings.Contains(errStr, "|") || !strings.Contains(errStr, ":") {
		return errStr
	}
	parts := strings.SplitN(errStr, "|", 2)
	nameParts := strings.SplitN(parts[1], ":", 2)
	return strings.TrimSpace(nameParts[0])
}

func GetErrorNames(errs []error) []string {
	errStrs := make([]string, len(errs))
	for i, err := range errs {
		errStrs[i] = GetErrorName(err)
	}
	return errStrs
}

// GetErrorCode extracts the error code from the error message.
func GetErrorCode(err error) string {
	if err == nil {
		return ""
	}
	errStr := err.Error()
	if !strings.Contains(errStr, "|") {
		return ""
	}
	parts := strings.SplitN(errStr, "|", 2)
	code := parts[0]
	// wrapped errors carry a "context: " prefix in front of the code
	if i := strings.LastIndex(code, ": "); i >= 0 {
		code = code[i+2:]
	}
	return strings.TrimSpace(code)
}

// GetErrorCodeWithName returns the error code and name in the format "Code_ErrorName".
func GetErrorCodeWithName(err error) string {
	code := GetErrorCode(err)
	name := GetErrorName(err)
	if code == "" || name == "" {
		return ""
	}
	return code + "_" + name
}

// GetErrorDesc extracts the error description from the error message.
func GetErrorDesc(err error) string {
	if err == nil {
		return ""
	}
	errStr := err.Error()
	if i := strings.Index(errStr, "|"); i >= 0 {
		errStr = errStr[i+1:]
	}
	parts := strings.SplitN(errStr, ":", 2)
	if len(parts) < 2 {
		return "DESC NOT SET"
	}
	return strings.TrimSpace(parts[1])
}
