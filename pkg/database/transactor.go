package database

import "context"

// Transactor runs fn so that every repository call made with the passed
// context is applied atomically: all of it or none of it.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}
