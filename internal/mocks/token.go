package mocks

import "time"

// Token is an already completed mqtt.Token.
type Token struct {
	err  error
	done chan struct{}
}

// NewToken returns a completed token carrying err.
func NewToken(err error) *Token {
	done := make(chan struct{})
	close(done)
	return &Token{err: err, done: done}
}

func (t *Token) Wait() bool                     { return true }
func (t *Token) WaitTimeout(time.Duration) bool { return true }
func (t *Token) Done() <-chan struct{}          { return t.done }
func (t *Token) Error() error                   { return t.err }
