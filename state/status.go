package state

import (
	"errors"
	"fmt"
)

// Status is the closed set of results surfaced by the routing table
type Status uint8

const (
	StatusOK Status = iota
	StatusNoRoute
	StatusTooManyNetworks
)

var (
	ErrNoRoute         error = StatusNoRoute
	ErrTooManyNetworks error = StatusTooManyNetworks
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusNoRoute:
		return "no route to network"
	case StatusTooManyNetworks:
		return "too many networks"
	}
	return fmt.Sprintf("Status(%d)", uint8(s))
}

func (s Status) Error() string {
	return s.String()
}

// StatusOf maps an error returned by the routing table back onto its status code
func StatusOf(err error) Status {
	if err == nil {
		return StatusOK
	}
	var s Status
	if errors.As(err, &s) {
		return s
	}
	return StatusNoRoute
}
