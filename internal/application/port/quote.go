package port

import (
	"context"

	"quotewatch/internal/domain/model"
)

// ResultKind REST 调用结果分类
type ResultKind int

const (
	ResultSuccess ResultKind = iota
	ResultEmpty
	ResultFailure
	ResultException
)

func (k ResultKind) String() string {
	switch k {
	case ResultSuccess:
		return "success"
	case ResultEmpty:
		return "empty"
	case ResultFailure:
		return "failure"
	default:
		return "exception"
	}
}

// Result REST 调用的类型化结果，不以 error 形式跨越 use-case 边界
type Result[T any] struct {
	Kind    ResultKind
	Data    T
	Code    int    // Failure: HTTP status
	Message string // Failure: body / Exception: err.Error()
	Err     error  // Exception
}

func Success[T any](v T) Result[T] { return Result[T]{Kind: ResultSuccess, Data: v} }
func Empty[T any]() Result[T]      { return Result[T]{Kind: ResultEmpty} }

func Failure[T any](code int, msg string) Result[T] {
	return Result[T]{Kind: ResultFailure, Code: code, Message: msg}
}

func Exception[T any](err error) Result[T] {
	return Result[T]{Kind: ResultException, Message: err.Error(), Err: err}
}

// OK reports a Success result.
func (r Result[T]) OK() bool { return r.Kind == ResultSuccess }

// QuoteClient 行情 REST 接口
type QuoteClient interface {
	GetQuote(ctx context.Context, symbol string) Result[model.QuoteResponse]
	GetTrades(ctx context.Context, symbol, date string, limit int) Result[model.TradesResponse]
}
