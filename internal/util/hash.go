// Package util provides shared utility functions.
package util

import (
	"hash/fnv"
	"net"
)

// LinkID computes a 4-byte tag from the two endpoints of a network link. TCP
// and WebSocket links use it to tell their log lines apart; it does not need
// to be reversible.
func LinkID(local, remote net.Addr) uint32 {
	h := fnv.New32a()
	if local != nil {
		h.Write([]byte(local.String()))
	}
	if remote != nil {
		h.Write([]byte(remote.String()))
	}
	return h.Sum32()
}
