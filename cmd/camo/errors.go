package main

import "fmt"

// Exit codes
const (
	exitEngine          = 1
	exitAccessToken     = 2
	exitSpaceID         = 3
	exitEnvironmentID   = 4
	exitContentTypeID   = 5
	exitContentTypeName = 6
	exitConnect         = 7
	exitContentTypeFind = 8
	exitContentTypeMake = 9
	exitEntries         = 10
	exitApply           = 11
)

// exitError carries a process exit code and a title for the failed step
type exitError struct {
	code  int
	title string
	err   error
}

func (e *exitError) Error() string {
	return fmt.Sprintf("%s: %v", e.title, e.err)
}

func (e *exitError) Unwrap() error {
	return e.err
}

func fail(code int, title string, err error) error {
	return &exitError{code: code, title: title, err: err}
}
