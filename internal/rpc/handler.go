package rpc

import (
	"context"
	"encoding/json"
	"fmt"
)

// Handler serves one remote method. args are the positional arguments as
// sent by the caller.
type Handler func(ctx context.Context, args []json.RawMessage) (any, error)

// Methods is the dispatch table of one identifier, keyed by method name.
type Methods map[string]Handler

// Arg decodes the i-th positional argument. Missing and null arguments decode
// to the zero value.
func Arg[T any](args []json.RawMessage, i int) (T, error) {
	var v T
	if i >= len(args) || len(args[i]) == 0 || string(args[i]) == "null" {
		return v, nil
	}
	if err := json.Unmarshal(args[i], &v); err != nil {
		return v, fmt.Errorf("%w: argument %d: %v", ErrInvalidArguments, i, err)
	}
	return v, nil
}

// Func0 binds a method without arguments.
func Func0[R any](fn func(context.Context) (R, error)) Handler {
	return func(ctx context.Context, _ []json.RawMessage) (any, error) {
		return fn(ctx)
	}
}

// Func1 binds a one-argument method.
func Func1[A, R any](fn func(context.Context, A) (R, error)) Handler {
	return func(ctx context.Context, args []json.RawMessage) (any, error) {
		a, err := Arg[A](args, 0)
		if err != nil {
			return nil, err
		}
		return fn(ctx, a)
	}
}

// Func2 binds a two-argument method.
func Func2[A, B, R any](fn func(context.Context, A, B) (R, error)) Handler {
	return func(ctx context.Context, args []json.RawMessage) (any, error) {
		a, err := Arg[A](args, 0)
		if err != nil {
			return nil, err
		}
		b, err := Arg[B](args, 1)
		if err != nil {
			return nil, err
		}
		return fn(ctx, a, b)
	}
}

// Func3 binds a three-argument method.
func Func3[A, B, C, R any](fn func(context.Context, A, B, C) (R, error)) Handler {
	return func(ctx context.Context, args []json.RawMessage) (any, error) {
		a, err := Arg[A](args, 0)
		if err != nil {
			return nil, err
		}
		b, err := Arg[B](args, 1)
		if err != nil {
			return nil, err
		}
		c, err := Arg[C](args, 2)
		if err != nil {
			return nil, err
		}
		return fn(ctx, a, b, c)
	}
}

// Func4 binds a four-argument method.
func Func4[A, B, C, D, R any](fn func(context.Context, A, B, C, D) (R, error)) Handler {
	return func(ctx context.Context, args []json.RawMessage) (any, error) {
		a, err := Arg[A](args, 0)
		if err != nil {
			return nil, err
		}
		b, err := Arg[B](args, 1)
		if err != nil {
			return nil, err
		}
		c, err := Arg[C](args, 2)
		if err != nil {
			return nil, err
		}
		d, err := Arg[D](args, 3)
		if err != nil {
			return nil, err
		}
		return fn(ctx, a, b, c, d)
	}
}

// Func5 binds a five-argument method.
func Func5[A, B, C, D, E, R any](fn func(context.Context, A, B, C, D, E) (R, error)) Handler {
	return func(ctx context.Context, args []json.RawMessage) (any, error) {
		a, err := Arg[A](args, 0)
		if err != nil {
			return nil, err
		}
		b, err := Arg[B](args, 1)
		if err != nil {
			return nil, err
		}
		c, err := Arg[C](args, 2)
		if err != nil {
			return nil, err
		}
		d, err := Arg[D](args, 3)
		if err != nil {
			return nil, err
		}
		e, err := Arg[E](args, 4)
		if err != nil {
			return nil, err
		}
		return fn(ctx, a, b, c, d, e)
	}
}

// Action0 binds a method without arguments or result.
func Action0(fn func(context.Context) error) Handler {
	return func(ctx context.Context, _ []json.RawMessage) (any, error) {
		return nil, fn(ctx)
	}
}

// Action1 binds a one-argument method without result.
func Action1[A any](fn func(context.Context, A) error) Handler {
	return func(ctx context.Context, args []json.RawMessage) (any, error) {
		a, err := Arg[A](args, 0)
		if err != nil {
			return nil, err
		}
		return nil, fn(ctx, a)
	}
}

// Action2 binds a two-argument method without result.
func Action2[A, B any](fn func(context.Context, A, B) error) Handler {
	return func(ctx context.Context, args []json.RawMessage) (any, error) {
		a, err := Arg[A](args, 0)
		if err != nil {
			return nil, err
		}
		b, err := Arg[B](args, 1)
		if err != nil {
			return nil, err
		}
		return nil, fn(ctx, a, b)
	}
}

// Action3 binds a three-argument method without result.
func Action3[A, B, C any](fn func(context.Context, A, B, C) error) Handler {
	return func(ctx context.Context, args []json.RawMessage) (any, error) {
		a, err := Arg[A](args, 0)
		if err != nil {
			return nil, err
		}
		b, err := Arg[B](args, 1)
		if err != nil {
			return nil, err
		}
		c, err := Arg[C](args, 2)
		if err != nil {
			return nil, err
		}
		return nil, fn(ctx, a, b, c)
	}
}

// Action4 binds a four-argument method without result.
func Action4[A, B, C, D any](fn func(context.Context, A, B, C, D) error) Handler {
	return func(ctx context.Context, args []json.RawMessage) (any, error) {
		a, err := Arg[A](args, 0)
		if err != nil {
			return nil, err
		}
		b, err := Arg[B](args, 1)
		if err != nil {
			return nil, err
		}
		c, err := Arg[C](args, 2)
		if err != nil {
			return nil, err
		}
		d, err := Arg[D](args, 3)
		if err != nil {
			return nil, err
		}
		return nil, fn(ctx, a, b, c, d)
	}
}
