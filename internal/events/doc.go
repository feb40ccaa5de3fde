// Package events carries pipeline notifications to clients.
//
// Bus keeps a bounded, sequenced history so pollers can ask for everything
// after the last sequence they saw, and fans each event out to live
// subscribers. Publishing never blocks: a subscriber whose buffer is full is
// dropped and must reconnect. Hub serves the live stream over WebSocket.
package events
