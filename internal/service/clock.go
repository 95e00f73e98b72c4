package service

import "time"

// Clock abstracts wall time so periodic sweeps can be tested by advancing
// virtual time instead of sleeping.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now().UTC() }

// RealClock returns the wall clock.
func RealClock() Clock { return realClock{} }
