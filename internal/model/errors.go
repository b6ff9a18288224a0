package model

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a resolution failure.
type Kind int

const (
	KindUnknown Kind = iota
	KindNetworkFailure
	KindBlockedOrRateLimited
	KindParseError
	KindProviderError
	KindNoData
	KindInvalidDate
	KindStorageFailure
)

// Sentinels for errors.Is matching by kind.
var (
	ErrNetworkFailure       = errors.New("network failure")
	ErrBlockedOrRateLimited = errors.New("blocked or rate limited")
	ErrParseError           = errors.New("parse error")
	ErrProviderError        = errors.New("provider error")
	ErrNoData               = errors.New("no data")
	ErrInvalidDate          = errors.New("invalid date")
	ErrStorageFailure       = errors.New("storage failure")
)

func (k Kind) String() string {
	switch k {
	case KindNetworkFailure:
		return "NetworkFailure"
	case KindBlockedOrRateLimited:
		return "BlockedOrRateLimited"
	case KindParseError:
		return "ParseError"
	case KindProviderError:
		return "ProviderError"
	case KindNoData:
		return "NoData"
	case KindInvalidDate:
		return "InvalidDate"
	case KindStorageFailure:
		return "StorageFailure"
	default:
		return "Unknown"
	}
}

func (k Kind) sentinel() error {
	switch k {
	case KindNetworkFailure:
		return ErrNetworkFailure
	case KindBlockedOrRateLimited:
		return ErrBlockedOrRateLimited
	case KindParseError:
		return ErrParseError
	case KindProviderError:
		return ErrProviderError
	case KindNoData:
		return ErrNoData
	case KindInvalidDate:
		return ErrInvalidDate
	case KindStorageFailure:
		return ErrStorageFailure
	default:
		return nil
	}
}

// Error carries the failure kind plus the symbol/period it concerns.
type Error struct {
	Kind    Kind
	Op      string // e.g. "fetch chart", "upsert"
	Symbol  string
	Period  string
	Message string
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
	}
	if e.Symbol != "" {
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(e.Symbol)
	}
	if e.Period != "" {
		fmt.Fprintf(&b, " (%s)", e.Period)
	}
	if b.Len() > 0 {
		b.WriteString(": ")
	}
	if s := e.Kind.sentinel(); s != nil {
		b.WriteString(s.Error())
	} else {
		b.WriteString("unknown error")
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is the sentinel for e's kind.
func (e *Error) Is(target error) bool {
	s := e.Kind.sentinel()
	return s != nil && target == s
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// WithContext fills in symbol/period on err when it is an *Error lacking them.
func WithContext(err error, symbol, period string) error {
	var e *Error
	if !errors.As(err, &e) {
		return err
	}
	if e.Symbol != "" && (e.Period != "" || period == "") {
		return err
	}
	cp := *e
	if cp.Symbol == "" {
		cp.Symbol = symbol
	}
	if cp.Period == "" {
		cp.Period = period
	}
	return &cp
}

func NetworkFailure(op, symbol string, err error) error {
	return &Error{Kind: KindNetworkFailure, Op: op, Symbol: symbol, Err: err}
}

func BlockedOrRateLimited(op, symbol, msg string) error {
	return &Error{Kind: KindBlockedOrRateLimited, Op: op, Symbol: symbol, Message: msg}
}

func ParseError(op, symbol string, err error) error {
	return &Error{Kind: KindParseError, Op: op, Symbol: symbol, Err: err}
}

func ProviderError(op, symbol, msg string) error {
	return &Error{Kind: KindProviderError, Op: op, Symbol: symbol, Message: msg}
}

func NoData(op, symbol, msg string) error {
	return &Error{Kind: KindNoData, Op: op, Symbol: symbol, Message: msg}
}

func InvalidDate(value string, err error) error {
	return &Error{Kind: KindInvalidDate, Op: "parse date", Message: fmt.Sprintf("%q", value), Err: err}
}

func StorageFailure(op, symbol string, err error) error {
	return &Error{Kind: KindStorageFailure, Op: op, Symbol: symbol, Err: err}
}
