// Package retry decides whether a failed attempt runs again and how long to
// wait before it does.
//
// A Policy pairs a maximum retry count with a DelaySpec. A DelaySpec is
// either a single duration reused for every retry or an ordered sequence;
// when the sequence is shorter than the number of retries, its last element
// repeats for the remainder.
package retry
