// Package ratelimit keeps a burst of new posts from turning into a wall of
// desktop notifications. SlidingWindow admits a fixed number of events in
// any window of the configured length; events over the limit are refused,
// not delayed.
package ratelimit
