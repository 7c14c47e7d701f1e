package domain

import "errors"

var (
	// ErrNotFound is returned by repositories when a row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateIdempotencyKey is returned when the store rejects an
	// insert because the idempotency key is already taken. Callers should
	// treat this as "already posted" and look up the prior result.
	ErrDuplicateIdempotencyKey = errors.New("duplicate idempotency key")

	// ErrUnbalanced is returned when a line set's debits and credits do
	// not sum equal. It indicates a posting-rule bug and is never retried.
	ErrUnbalanced = errors.New("transaction lines are not balanced")

	// ErrAlreadyReversed is returned when a transaction already has a
	// reversal referencing it.
	ErrAlreadyReversed = errors.New("transaction already reversed")

	// ErrNotLocked is returned when reversing an unlocked transaction;
	// unlocked transactions can simply be edited or deleted.
	ErrNotLocked = errors.New("transaction must be locked before reversal")

	// ErrOrgMismatch is returned when a transaction belongs to a
	// different organization than the caller's.
	ErrOrgMismatch = errors.New("transaction org mismatch")
)
