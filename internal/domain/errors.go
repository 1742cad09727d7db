package domain

import (
	"errors"
	"fmt"
)

// ErrExhausted is returned by allocators and volumes when they run out of
// space. It is the expected end of a probe, not a failure.
var ErrExhausted = errors.New("resource exhausted")

type ErrUnknownCommand struct {
	Command byte
}

func (e ErrUnknownCommand) Error() string {
	return fmt.Sprintf("unknown command: %q", e.Command)
}

type ErrMount struct {
	Op  string
	Err error
}

func (e ErrMount) Error() string {
	return fmt.Sprintf("mount %s: %v", e.Op, e.Err)
}

func (e ErrMount) Unwrap() error {
	return e.Err
}

type ErrBufferAlloc struct {
	Size int
	Err  error
}

func (e ErrBufferAlloc) Error() string {
	return fmt.Sprintf("allocate %d byte buffer: %v", e.Size, e.Err)
}

func (e ErrBufferAlloc) Unwrap() error {
	return e.Err
}

type ErrArtifactOpen struct {
	Name string
	Err  error
}

func (e ErrArtifactOpen) Error() string {
	return fmt.Sprintf("open %s: %v", e.Name, e.Err)
}

func (e ErrArtifactOpen) Unwrap() error {
	return e.Err
}

type ErrShortWrite struct {
	Requested int
	Written   int
	Err       error
}

func (e ErrShortWrite) Error() string {
	return fmt.Sprintf("short write: %d of %d bytes: %v", e.Written, e.Requested, e.Err)
}

func (e ErrShortWrite) Unwrap() error {
	return e.Err
}

type ErrAccounting struct {
	Written   uint64
	Available uint64
}

func (e ErrAccounting) Error() string {
	return fmt.Sprintf("written %d bytes exceeds available %d", e.Written, e.Available)
}
