package affixtree

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidKey   = errors.New("key is empty")
	ErrDuplicateKey = errors.New("duplicate key")
)

// InvalidKeyError is returned by Insert when the key is empty.
type InvalidKeyError struct {
}

func (e InvalidKeyError) Error() string {
	return ErrInvalidKey.Error()
}

func (e InvalidKeyError) Is(target error) bool {
	return target == ErrInvalidKey
}

// DuplicateKeyError is returned by Insert when the key already holds a value.
// Value is the one that was rejected.
type DuplicateKeyError struct {
	Key   string
	Value interface{}
}

func (e DuplicateKeyError) Error() string {
	return fmt.Sprintf("duplicate key %q for value: %v", e.Key, e.Value)
}

func (e DuplicateKeyError) Is(target error) bool {
	return target == ErrDuplicateKey
}
