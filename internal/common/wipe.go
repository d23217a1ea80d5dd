// Package common holds tiny helpers shared across the client packages.
package common

// WipeByteArray zeroes b in place. Used for password buffers read from the
// terminal once they have been handed to the auth service.
func WipeByteArray(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
