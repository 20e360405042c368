package rwerrors

import (
	"errors"
	"fmt"
)

// ExitCode is a guest-visible outcome. Non-zero codes are ordinary data
// returned by a syscall and are never raised as builder errors on their own.
type ExitCode int32

const (
	ExitOk                  ExitCode = 0
	ExitPanic               ExitCode = -1
	ExitMemoryOutOfBounds   ExitCode = -2
	ExitOutputOverflow      ExitCode = -3
	ExitInsufficientBalance ExitCode = -4
	ExitOutOfFuel           ExitCode = -5
	ExitTransactError       ExitCode = -6
	ExitCallDepthOverflow   ExitCode = -7
	ExitNonceOverflow       ExitCode = -8
	ExitCreateCollision     ExitCode = -9
	ExitOverflowPayment     ExitCode = -10
	ExitUnknownSysCall      ExitCode = -11
	ExitBadFileDescriptor   ExitCode = -12
	ExitStorageError        ExitCode = -13
)

var exitCodeErrors = map[ExitCode]error{
	ExitMemoryOutOfBounds:   ErrMemoryOutOfBounds,
	ExitOutputOverflow:      ErrOutputOverflow,
	ExitInsufficientBalance: ErrInsufficientBalance,
	ExitOutOfFuel:           ErrOutOfFuel,
	ExitTransactError:       ErrTransactError,
	ExitCallDepthOverflow:   ErrCallDepthExceeded,
	ExitNonceOverflow:       ErrNonceOverflow,
	ExitCreateCollision:     ErrCreateCollision,
	ExitOverflowPayment:     ErrOverflowPayment,
	ExitUnknownSysCall:      ErrUnknownSysCall,
}

func (c ExitCode) IsOk() bool { return c == ExitOk }

// Err returns the sentinel matching c, nil for ExitOk.
func (c ExitCode) Err() error {
	if c == ExitOk {
		return nil
	}
	if err, ok := exitCodeErrors[c]; ok {
		return err
	}
	return fmt.Errorf("guest exit code %d", int32(c))
}

func (c ExitCode) String() string {
	switch c {
	case ExitOk:
		return "Ok"
	case ExitPanic:
		return "Panic"
	case ExitBadFileDescriptor:
		return "BadFileDescriptor"
	case ExitStorageError:
		return "StorageError"
	}
	if err, ok := exitCodeErrors[c]; ok {
		return GetErrorName(err)
	}
	return fmt.Sprintf("ExitCode(%d)", int32(c))
}

// ExitCodeOf maps a host-side error onto the code a guest would observe.
func ExitCodeOf(err error) ExitCode {
	if err == nil {
		return ExitOk
	}
	// OutputOverflow is wrapped inside TransactError, so test it first.
	if errors.Is(err, ErrOutputOverflow) {
		return ExitOutputOverflow
	}
	for code, sentinel := range exitCodeErrors {
		if code == ExitOutputOverflow {
			continue
		}
		if errors.Is(err, sentinel) {
			return code
		}
	}
	return ExitPanic
}
