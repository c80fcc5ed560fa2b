package types

import (
	"context"
)

type Span_observers interface {
	Update(rec SpanRecord)
}

type Span_collectors interface {
	Span_observers
	Flush() *SpanBatch
	Run(context.Context) <-chan *SpanBatch
}
