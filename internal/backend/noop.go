package backend

import (
	"context"
	"time"
)

// NoOp is the backend used when the external tier is disabled.
// Reads are misses and writes report ErrDisabled.
type NoOp struct{}

func (NoOp) Get(context.Context, string) ([]byte, bool, error)        { return nil, false, nil }
func (NoOp) Set(context.Context, string, []byte, time.Duration) error { return ErrDisabled }
func (NoOp) Delete(context.Context, string) (bool, error)             { return false, nil }
func (NoOp) Clear(context.Context) error                              { return nil }
func (NoOp) Stats(context.Context) (Stats, error)                     { return Stats{}, ErrDisabled }
func (NoOp) Connected() bool                                          { return false }
func (NoOp) Close() error                                             { return nil }

func (NoOp) DeleteByPattern(context.Context, string, func(string) bool) (int64, error) {
	return 0, nil
}
