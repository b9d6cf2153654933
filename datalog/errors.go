package datalog

import (
	"errors"
	"fmt"
)

// ErrorCategory groups error kinds by the stage and nature of the failure.
type ErrorCategory uint8

const (
	CategoryStructural ErrorCategory = iota + 1
	CategoryType
	CategoryReference
	CategoryArity
	CategoryAggregation
	CategoryDelegated
	CategoryUnimplemented
	CategoryInternal
)

func (c ErrorCategory) String() string {
	switch c {
	case CategoryStructural:
		return "structural"
	case CategoryType:
		return "type"
	case CategoryReference:
		return "reference"
	case CategoryArity:
		return "arity"
	case CategoryAggregation:
		return "aggregation"
	case CategoryDelegated:
		return "delegated"
	case CategoryUnimplemented:
		return "unimplemented"
	case CategoryInternal:
		return "internal"
	default:
		return "unknown"
	}
}

// ErrorKind identifies one failure of query compilation or projection.
type ErrorKind uint8

const (
	// Structural
	ErrDuplicateVariable ErrorKind = iota + 1
	ErrUnsupportedArgument
	ErrInvalidBinding
	ErrInvalidGroundConstant
	ErrGroundBindingsMismatch
	ErrNonMatchingVariablesInOrClause
	ErrNonMatchingVariablesInNotClause

	// Type
	ErrInputTypeDisagreement
	ErrInvalidArgument
	ErrInvalidArgumentType
	ErrValueTypeMismatch
	ErrEmptyTypeIntersection

	// Reference
	ErrUnrecognizedIdent
	ErrUnknownFunction
	ErrUnknownLimitVar
	ErrUnboundVariable
	ErrInvalidArgumentName

	// Arity
	ErrInvalidNumberOfArguments
	ErrUnexpectedResultsTupleLength
	ErrUnexpectedResultCount
	ErrInvalidLimit

	// Aggregation
	ErrCannotProjectImpossibleBinding
	ErrCannotApplyAggregateOperationToTypes
	ErrAmbiguousAggregates
	ErrInvalidProjection

	// Delegated
	ErrSchema
	ErrRowSource
	ErrPull
	ErrStorage

	// Unimplemented
	ErrNotYetImplemented

	// Internal
	ErrInternalInvariant
)

// Category returns the group a kind belongs to.
func (k ErrorKind) Category() ErrorCategory {
	switch {
	case k >= ErrDuplicateVariable && k <= ErrNonMatchingVariablesInNotClause:
		return CategoryStructural
	case k >= ErrInputTypeDisagreement && k <= ErrEmptyTypeIntersection:
		return CategoryType
	case k >= ErrUnrecognizedIdent && k <= ErrInvalidArgumentName:
		return CategoryReference
	case k >= ErrInvalidNumberOfArguments && k <= ErrInvalidLimit:
		return CategoryArity
	case k >= ErrCannotProjectImpossibleBinding && k <= ErrInvalidProjection:
		return CategoryAggregation
	case k >= ErrSchema && k <= ErrStorage:
		return CategoryDelegated
	case k == ErrNotYetImplemented:
		return CategoryUnimplemented
	case k == ErrInternalInvariant:
		return CategoryInternal
	default:
		return 0
	}
}

// BindingError describes a malformed binding of a function's output.
type BindingError uint8

const (
	BindingNoBoundVariable BindingError = iota + 1
	BindingUnexpected
	BindingRepeatedBoundVariable

	// Expected [[?x ?y]] but got some other type of binding.
	BindingExpectedBindRel

	// Expected [[?x ?y]] or [?x ...] but got some other type of binding.
	BindingExpectedBindRelOrBindColl

	// Expected some fixed number of bound slots; Error.Actual and
	// Error.Expected carry the counts.
	BindingInvalidNumberOfBindings
)

func (b BindingError) String() string {
	switch b {
	case BindingNoBoundVariable:
		return "no bound variable"
	case BindingUnexpected:
		return "unexpected binding"
	case BindingRepeatedBoundVariable:
		return "repeated bound variable"
	case BindingExpectedBindRel:
		return "expected [[?x ...]] relation binding"
	case BindingExpectedBindRelOrBindColl:
		return "expected relation or collection binding"
	case BindingInvalidNumberOfBindings:
		return "invalid number of bindings"
	default:
		return "unknown binding error"
	}
}

// Error is the single error type of query compilation and projection. Kind
// selects the variant; only the payload fields meaningful for that kind are
// set. Delegated kinds keep the collaborator's error in Err.
type Error struct {
	Kind ErrorKind

	Var     string // variable the failure is about
	Fn      string // function, predicate or aggregate name
	Role    string // clause role for duplicates, e.g. ":in"
	Literal string // offending literal, rendered
	Msg     string // free-form detail

	Position int // argument position
	Expected int // expected count (arity, tuple length, bindings)
	Actual   int // actual count

	Type          ValueType    // supplied type
	ExpectedType  ValueType    // required type
	Types         ValueTypeSet // held or offending set
	ExpectedTypes ValueTypeSet // allowed set

	Binding BindingError

	Err error
}

func (e *Error) Error() string {
	switch e.Kind {
	case ErrDuplicateVariable:
		return fmt.Sprintf("%s var %s is duplicated", e.Role, e.Var)
	case ErrUnsupportedArgument:
		return fmt.Sprintf("unexpected FnArg %s to %s", e.Literal, e.Fn)
	case ErrInvalidBinding:
		if e.Binding == BindingInvalidNumberOfBindings {
			return fmt.Sprintf("binding error in %s: %s: expected %d, got %d", e.Fn, e.Binding, e.Expected, e.Actual)
		}
		return fmt.Sprintf("binding error in %s: %s", e.Fn, e.Binding)
	case ErrInvalidGroundConstant:
		msg := "invalid expression in ground constant"
		if e.Literal != "" {
			msg += ": " + e.Literal
		}
		if e.Msg != "" {
			msg += " (" + e.Msg + ")"
		}
		return msg
	case ErrGroundBindingsMismatch:
		if e.Msg != "" {
			return "mismatched bindings in ground: " + e.Msg
		}
		return "mismatched bindings in ground"
	case ErrNonMatchingVariablesInOrClause:
		return withVar("non-matching variables in 'or' clause", e.Var)
	case ErrNonMatchingVariablesInNotClause:
		return withVar("non-matching variables in 'not' clause", e.Var)
	case ErrInputTypeDisagreement:
		return fmt.Sprintf("value %s of type %s provided for var %s, expected %s", e.Literal, e.Type, e.Var, e.ExpectedTypes)
	case ErrInvalidArgument:
		return fmt.Sprintf("invalid argument to %s: expected %s in position %d.", e.Fn, e.Msg, e.Position)
	case ErrInvalidArgumentType:
		return fmt.Sprintf("invalid argument to %s: expected one of %s in position %d.", e.Fn, e.ExpectedTypes, e.Position)
	case ErrValueTypeMismatch:
		return fmt.Sprintf("provided value of type %s doesn't match attribute value type %s", e.Type, e.ExpectedType)
	case ErrEmptyTypeIntersection:
		return fmt.Sprintf("var %s has types %s, which cannot satisfy %s", e.Var, e.Types, e.ExpectedTypes)
	case ErrUnrecognizedIdent:
		return fmt.Sprintf("no entid found for ident: %s", e.Literal)
	case ErrUnknownFunction:
		return fmt.Sprintf("no function named %s", e.Fn)
	case ErrUnknownLimitVar:
		return fmt.Sprintf(":limit var %s not present in :in", e.Var)
	case ErrUnboundVariable:
		if e.Msg != "" {
			return fmt.Sprintf("unbound variable %s %s", e.Var, e.Msg)
		}
		return fmt.Sprintf("unbound variable %s", e.Var)
	case ErrInvalidArgumentName:
		return fmt.Sprintf("invalid argument name: '%s'", e.Var)
	case ErrInvalidNumberOfArguments:
		return fmt.Sprintf("invalid number of arguments to %s: expected %d, got %d.", e.Fn, e.Expected, e.Actual)
	case ErrUnexpectedResultsTupleLength:
		return fmt.Sprintf("expected tuple of length %d, got tuple of length %d", e.Expected, e.Actual)
	case ErrUnexpectedResultCount:
		return fmt.Sprintf("expected exactly one row for %s find, got %s", e.Msg, e.Literal)
	case ErrInvalidLimit:
		return fmt.Sprintf("invalid limit %s of type %s: expected natural number.", e.Literal, e.Type)
	case ErrCannotProjectImpossibleBinding:
		return fmt.Sprintf("no possible types for value provided to %s", e.Fn)
	case ErrCannotApplyAggregateOperationToTypes:
		return fmt.Sprintf("cannot apply projection operation %s to types %s", e.Fn, e.Types)
	case ErrAmbiguousAggregates:
		return fmt.Sprintf("min/max expressions: %d (max 1), corresponding: %d", e.Actual, e.Expected)
	case ErrInvalidProjection:
		return "invalid projection: " + e.Msg
	case ErrSchema:
		return wrapped("schema", e)
	case ErrRowSource:
		return wrapped("row source", e)
	case ErrPull:
		return wrapped("pull", e)
	case ErrStorage:
		return wrapped("storage", e)
	case ErrNotYetImplemented:
		return "not yet implemented: " + e.Msg
	case ErrInternalInvariant:
		return "internal invariant violated: " + e.Msg
	default:
		return fmt.Sprintf("query error kind %d", e.Kind)
	}
}

func withVar(msg, v string) string {
	if v == "" {
		return msg
	}
	return msg + ": " + v
}

func wrapped(stage string, e *Error) string {
	if e.Err == nil {
		return stage + " error: " + e.Msg
	}
	if e.Msg != "" {
		return stage + " error: " + e.Msg + ": " + e.Err.Error()
	}
	return stage + " error: " + e.Err.Error()
}

// Unwrap exposes the collaborator error of delegated kinds.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error of the same kind, so callers can write
// errors.Is(err, &datalog.Error{Kind: datalog.ErrUnboundVariable}).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// Category returns the category of the error's kind.
func (e *Error) Category() ErrorCategory {
	return e.Kind.Category()
}

// IsInternal reports whether the error signals a defect (plan and data out
// of sync) rather than bad input.
func (e *Error) IsInternal() bool {
	return e.Kind == ErrInternalInvariant
}

// Wrap records err as a delegated failure of the given kind. An err that is
// already an *Error is returned unchanged.
func Wrap(kind ErrorKind, err error, msg string) error {
	if err == nil {
		return nil
	}
	var qe *Error
	if errors.As(err, &qe) {
		return err
	}
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// IsKind reports whether err or anything it wraps is an *Error of kind k.
func IsKind(err error, k ErrorKind) bool {
	var qe *Error
	for err != nil {
		if !errors.As(err, &qe) {
			return false
		}
		if qe.Kind == k {
			return true
		}
		err = qe.Err
	}
	return false
}

// NotYetImplemented reports a recognized but unsupported feature.
func NotYetImplemented(format string, args ...interface{}) *Error {
	return &Error{Kind: ErrNotYetImplemented, Msg: fmt.Sprintf(format, args...)}
}

// Internal reports a broken invariant between plan and data.
func Internal(format string, args ...interface{}) *Error {
	return &Error{Kind: ErrInternalInvariant, Msg: fmt.Sprintf(format, args...)}
}
